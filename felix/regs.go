// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package felix

import "github.com/platinasystems/enetc/hw"

// Switch core register blocks.
const (
	sysBase  = 0x010000
	es0Base  = 0x040000
	is1Base  = 0x050000
	is2Base  = 0x060000
	gmiiBase = 0x100000
	qsysBase = 0x200000

	gmiiStride = 0x10000
)

const (
	// [0] switch core enable
	sysSystem hw.Reg = sysBase + 0x0e00

	// [1] initialize core memories, cleared by hardware when done
	sysRamCtrl hw.Reg = sysBase + 0x0f24

	// [0] enable
	es0TcamCtrl hw.Reg = es0Base + 0x03c0
	is1TcamCtrl hw.Reg = is1Base + 0x03c0
	is2TcamCtrl hw.Reg = is2Base + 0x03c0

	// [7:0] external CPU port queue mask, [11:8] external CPU port
	qsysExtCPUCfg hw.Reg = qsysBase + 0xf460 + 0x80

	sysSystemEnable = 1 << 0
	sysRamCtrlInit  = 1 << 1
	tcamCtrlEnable  = 1 << 0
	sysPortModeCPU  = 0x1e
)

// sysPortMode: [4:1] injection/extraction format
func sysPortMode(port int) hw.Reg { return sysSystem + 0xc + hw.Reg(port)*4 }

func qsysExtCPUPort(port int) uint32 { return uint32(port&0xf)<<8 | 0xff }

// Per port MAC registers.
func gmii(port int) hw.Reg { return gmiiBase + hw.Reg(port)*gmiiStride }

// [1:0] link speed
func gmiiClockCfg(port int) hw.Reg { return gmii(port) + 0x00 }

// [4] rx enable, [0] tx enable
func gmiiMacEnaCfg(port int) hw.Reg { return gmii(port) + 0x1c }

// inter frame gaps
func gmiiMacIfgCfg(port int) hw.Reg { return gmii(port) + 0x30 }

const (
	gmiiClockLink1G   = 1
	gmiiClockLink100M = 2
	gmiiClockLink10M  = 3

	gmiiMacEnaTx = 1 << 0
	gmiiMacEnaRx = 1 << 4

	gmiiMacIfgDefault = 0x515
)

// Per port queue system mode:
//
//	[14] port enable
//	[13:11] scheduler
//	[9] lossy, drop when out of buffers
func qsysSwPortMode(port int) hw.Reg { return qsysBase + 0xf460 + 0x20 + hw.Reg(port)*4 }

const (
	qsysSwPortEnable = 1 << 14
	qsysSwPortLossy  = 1 << 9
)

func qsysSwPortSched(n uint32) uint32 { return (n & 7) << 11 }
