// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package mdio drives the MDIO controller embedded in ENETC and Felix
// silicon.  It reaches the co-packaged PCS/SerDes blocks, not board PHYs.
package mdio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/platinasystems/enetc/hw"
)

var (
	ErrBusy    = errors.New("mdio busy")
	ErrRead    = errors.New("mdio read error")
	ErrInvalid = errors.New("invalid mdio address")
)

// NoDevad selects clause 22 framing.
const NoDevad = -1

// Offset of the internal MDIO block within an ENETC port or Felix BAR.
const ImdioBase = 0x8030

const (
	/* [6] clause 45 encoding
	   [1] read error, sticky until next config write
	   [0] busy */
	cfg hw.Reg = 0x00

	/* [15] read
	   [9:5] phy address
	   [4:0] register (clause 22) or device (clause 45) */
	ctl hw.Reg = 0x04

	// [15:0] read/write data
	data hw.Reg = 0x08

	// [15:0] clause 45 register address
	stat hw.Reg = 0x0c
)

const (
	cfgC22    = 0x00809508
	cfgC45    = 0x00809548
	cfgReadEr = 1 << 1
	cfgBusy   = 1 << 0
	ctlRead   = 1 << 15
)

// DefaultBudget matches the controller's worst case transaction time
// with room to spare.
var DefaultBudget = hw.Budget{Tries: 10000}

// Bus is one MDIO controller.  Transactions are serialized: several ports
// of a chip share the controller.
type Bus struct {
	mu     sync.Mutex
	w      hw.Window
	Budget hw.Budget
	Name   string
}

// New returns the controller whose registers start at base within w.
func New(w hw.Window, base uint32) *Bus {
	return &Bus{w: hw.Sub(w, base), Budget: DefaultBudget, Name: "imdio"}
}

func (b *Bus) wait(phase string) error {
	if !b.Budget.Poll(func() bool { return cfg.Get(b.w)&cfgBusy == 0 }) {
		return fmt.Errorf("%s: %s: %w after %v", b.Name, phase, ErrBusy, b.Budget)
	}
	return nil
}

func check(addr uint8, devad int, reg uint16) error {
	if addr > 0x1f {
		return fmt.Errorf("phy address 0x%x > 0x1f: %w", addr, ErrInvalid)
	}
	if devad < NoDevad {
		return fmt.Errorf("bad device %d: %w", devad, ErrInvalid)
	}
	if devad > 0x1f {
		return fmt.Errorf("device 0x%x > 0x1f: %w", devad, ErrInvalid)
	}
	if devad == NoDevad && reg > 0x1f {
		return fmt.Errorf("clause 22 register 0x%x > 0x1f: %w", reg, ErrInvalid)
	}
	return nil
}

func (b *Bus) start(addr uint8, devad int, reg uint16, read bool) (err error) {
	c := uint32(addr) << 5
	if devad == NoDevad {
		cfg.Set(b.w, cfgC22)
		if err = b.wait("config"); err != nil {
			return
		}
		c |= uint32(reg)
		if read {
			c |= ctlRead
		}
		ctl.Set(b.w, c)
		return
	}

	cfg.Set(b.w, cfgC45)
	if err = b.wait("config"); err != nil {
		return
	}
	// Address cycle.
	c |= uint32(devad)
	ctl.Set(b.w, c)
	if read {
		if err = b.wait("device select"); err != nil {
			return
		}
	}
	stat.Set(b.w, uint32(reg))
	if read {
		if err = b.wait("address"); err != nil {
			return
		}
		ctl.Set(b.w, c|ctlRead)
	}
	return
}

// Read reads register reg of device devad at PHY address addr.
func (b *Bus) Read(addr uint8, devad int, reg uint16) (v uint16, err error) {
	if err = check(addr, devad, reg); err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err = b.start(addr, devad, reg, true); err != nil {
		return
	}
	if err = b.wait("read"); err != nil {
		return
	}
	if cfg.Get(b.w)&cfgReadEr != 0 {
		err = fmt.Errorf("%s: addr 0x%x dev %d reg 0x%x: %w", b.Name, addr, devad, reg, ErrRead)
		return
	}
	v = uint16(data.Get(b.w))
	return
}

func (b *Bus) Write(addr uint8, devad int, reg, v uint16) (err error) {
	if err = check(addr, devad, reg); err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err = b.start(addr, devad, reg, false); err != nil {
		return
	}
	if err = b.wait("address"); err != nil {
		return
	}
	data.Set(b.w, uint32(v))
	return b.wait("write")
}

// Modify is a read-modify-write clearing clear then setting set.
func (b *Bus) Modify(addr uint8, devad int, reg, clear, set uint16) (err error) {
	v, err := b.Read(addr, devad, reg)
	if err != nil {
		return
	}
	return b.Write(addr, devad, reg, v&^clear|set)
}
