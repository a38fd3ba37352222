// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package enetc

import "github.com/platinasystems/enetc/hw"

// Station interface registers.
const (
	// [31] enable
	simr hw.Reg = 0x0000
	// [31:16] read cache attributes, [15:0] write cache attributes
	sicar0 hw.Reg = 0x0040

	simrEnable      = 1 << 31
	sicarRdCoherent = 0x2b2b0000
	sicarWrCoherent = 0x00006727
)

type direction uint32

const (
	tx direction = 0
	rx direction = 1
)

func (d direction) String() string {
	if d == rx {
		return "rx"
	}
	return "tx"
}

const bdrBase = 0x8000

// bdrRegs returns the register block of ring n for direction d.
func bdrRegs(d direction, n uint32) uint32 { return bdrBase + uint32(d)*0x100 + n*0x200 }

// Ring register offsets within a bdr block.  Tx and Rx share mode and base
// address registers; index register roles differ.
const (
	// [31] enable
	bdrMode hw.Reg = 0x00
	bdrStat hw.Reg = 0x04

	// rx: buffer size in bytes
	rbbsr hw.Reg = 0x08

	// rx: consumer index, written by software
	rbcir hw.Reg = 0x0c

	// [31:7] 128 byte aligned descriptor ring bus address
	bdrBar0 hw.Reg = 0x10
	bdrBar1 hw.Reg = 0x14

	// tx: producer index, written by software
	// rx: producer index, written by hardware
	bdrPir hw.Reg = 0x18

	// tx: consumer index, written by hardware
	tbcir hw.Reg = 0x1c

	// number of descriptors
	bdrLen hw.Reg = 0x20

	bdrModeEnable = 1 << 31

	// [15:0] ring index
	bdrIndexMask = 0xffff
)

// Port registers.
const (
	portBase = 0x10000

	// [16] station interface 0 enable
	pmr hw.Reg = portBase + 0x0000

	// station interface 0 primary MAC address: [0] bytes 0-3, [1] bytes 4-5
	psipmar0 hw.Reg = portBase + 0x0100
	psipmar1 hw.Reg = portBase + 0x0104

	// [23:16] rx rings, [7:0] tx rings
	psicfgr0 hw.Reg = portBase + 0x0940

	// [15] reset on fatal error
	// [11] tx pad
	// [4] promiscuous
	// [1] rx enable
	// [0] tx enable
	pmCommandConfig hw.Reg = portBase + 0x8008

	// [15:0] max frame length
	pmMaxFrame hw.Reg = portBase + 0x8014

	// [15] in band autoneg enable
	// [14:13] speed: 0 100M, 1 10M, 2 1000M
	// [12] full duplex
	// [2] RGMII
	// [1:0] interface mode
	pmIfMode hw.Reg = portBase + 0x8300

	pmrSI0Enable = 1 << 16

	pmCommandConfigRxTxEnable = 0x8813

	pmIfModeMask      = 0x3 << 0
	pmIfModeRGMII     = 1 << 2
	pmIfModeFullDpx   = 1 << 12
	pmIfModeSpeedMask = 0x3 << 13
	pmIfModeSpeed10   = 1 << 13
	pmIfModeSpeed100  = 0 << 13
	pmIfModeSpeed1000 = 2 << 13
	pmIfModeAutoneg   = 1 << 15

	// Internal MDIO reaching this port's PCS.
	imdioBase = portBase + 0x8030
)
