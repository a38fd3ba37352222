// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package pcs brings up the co-packaged PCS/SerDes block of an ENETC port
// or Felix switch port over its internal MDIO bus.  Each interface mode is a
// fixed write sequence; any negotiation happens on the wire.
package pcs

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/log"

	"github.com/platinasystems/enetc/hw"
	"github.com/platinasystems/enetc/mdio"
	"github.com/platinasystems/enetc/phy"
)

var ErrTimeout = errors.New("pcs reset timeout")

// Bus is the internal MDIO bus reaching the PCS.
type Bus interface {
	Read(addr uint8, devad int, reg uint16) (uint16, error)
	Write(addr uint8, devad int, reg, v uint16) error
}

// Registers common to the SGMII PCS and the (U)SXGMII replicator.
const (
	// [15] reset
	// [12] autoneg enable
	// [9] restart autoneg
	// [8] full duplex
	// [6] speed 1000
	CR         = 0x00
	CRReset    = 1 << 15
	CRResetAN  = 0x1200
	CRDefault  = 0x0140
	DevAbility = 0x04

	DevAbilitySGMII  = 0x4001
	DevAbilitySXGMII = 0x5001

	LinkTimer1    = 0x12
	LinkTimer2    = 0x13
	LinkTimer1Val = 0x06a0
	LinkTimer2Val = 0x0003

	// [3:2] speed, 2 => 1G
	// [1] use SGMII autoneg
	// [0] SGMII mode
	IfMode        = 0x14
	IfModeSGMII   = 1 << 0
	IfModeSGMIIAN = 1 << 1
	IfModeSpeed1G = 1 << 3

	// Clause 45 PCS MMD.
	DevadPCS = 3
	// (U)SXGMII replicator device, second clause 45 address inside the block.
	DevadReplicator = 0x1f

	ReplLinkTimer1Val = 0x3d09
	ReplLinkTimer2Val = 0x0001
)

// Variant selects the silicon specific parts of a sequence.
type Variant uint8

const (
	NIC Variant = iota
	Switch
)

func (v Variant) String() string {
	if v == Switch {
		return "switch"
	}
	return "nic"
}

type Op uint8

const (
	Write Op = iota
	// Read, set Value bits, write back.
	Set
	// Poll until Value bits read back clear.
	WaitClear
)

// Step is one PCS register transaction.
type Step struct {
	Op    Op
	Devad int
	Reg   uint16
	Value uint16
}

func (s Step) String() string {
	dev := "c22"
	if s.Devad != mdio.NoDevad {
		dev = fmt.Sprintf("dev %d", s.Devad)
	}
	switch s.Op {
	case Set:
		return fmt.Sprintf("%s reg 0x%02x |= 0x%04x", dev, s.Reg, s.Value)
	case WaitClear:
		return fmt.Sprintf("%s reg 0x%02x wait 0x%04x clear", dev, s.Reg, s.Value)
	}
	return fmt.Sprintf("%s reg 0x%02x = 0x%04x", dev, s.Reg, s.Value)
}

// LinkConfig is the one shot PCS configuration of a port.
type LinkConfig struct {
	Mode    phy.Interface
	Autoneg bool
	Variant Variant
}

// NewLinkConfig returns the configuration implied by mode.  2500BASE-X runs
// with a fixed speed; every other SGMII family mode autonegotiates.
func NewLinkConfig(mode phy.Interface, v Variant) LinkConfig {
	return LinkConfig{Mode: mode, Autoneg: mode != phy.Base2500X, Variant: v}
}

func (c LinkConfig) String() string {
	an := "fixed"
	if c.Autoneg {
		an = "autoneg"
	}
	return fmt.Sprintf("%v %v %v", c.Variant, c.Mode, an)
}

// Plan returns the register sequence for c.  It depends on nothing but c.
func (c LinkConfig) Plan() []Step {
	switch {
	case c.Mode.IsSGMII():
		return c.sgmii()
	case c.Mode.IsSXGMII():
		return c.sxgmii()
	}
	return nil
}

func (c LinkConfig) sgmii() []Step {
	// Fixed speed reads as 1G even when the PLL runs the lane at 2.5G.
	ifMode := uint16(IfModeSGMII)
	cr := uint16(CRDefault)
	if c.Autoneg {
		ifMode |= IfModeSGMIIAN
		cr |= CRResetAN
	} else {
		ifMode |= IfModeSpeed1G
		cr |= CRReset
	}
	const c22 = mdio.NoDevad
	return []Step{
		{Write, c22, IfMode, ifMode},
		{Write, c22, DevAbility, DevAbilitySGMII},
		{Write, c22, LinkTimer1, LinkTimer1Val},
		{Write, c22, LinkTimer2, LinkTimer2Val},
		{Write, c22, CR, cr},
	}
}

func (c LinkConfig) sxgmii() []Step {
	s := []Step{
		{Set, DevadPCS, CR, CRReset},
		{WaitClear, DevadPCS, CR, CRReset},
		{Write, DevadReplicator, DevAbility, DevAbilitySXGMII},
		{Write, DevadReplicator, CR, CRReset | CRResetAN},
	}
	if c.Variant == Switch {
		s = append(s,
			Step{Write, DevadReplicator, LinkTimer1, ReplLinkTimer1Val},
			Step{Write, DevadReplicator, LinkTimer2, ReplLinkTimer2Val})
	}
	return s
}

// DefaultResetBudget bounds the wait for a PCS reset to complete.
var DefaultResetBudget = hw.Budget{Tries: 1000, Delay: 10 * time.Millisecond}

// Configure runs c's plan against the PCS at addr.  A reset that never
// completes returns ErrTimeout; MDIO errors are returned as is.
func Configure(b Bus, addr uint8, c LinkConfig, reset hw.Budget) (err error) {
	for _, s := range c.Plan() {
		switch s.Op {
		case Write:
			err = b.Write(addr, s.Devad, s.Reg, s.Value)
		case Set:
			var v uint16
			if v, err = b.Read(addr, s.Devad, s.Reg); err == nil {
				err = b.Write(addr, s.Devad, s.Reg, v|s.Value)
			}
		case WaitClear:
			err = waitClear(b, addr, s, reset)
		}
		if err != nil {
			return fmt.Errorf("pcs %d %v: %v: %w", addr, c, s, err)
		}
	}
	return
}

func waitClear(b Bus, addr uint8, s Step, budget hw.Budget) (err error) {
	ok := budget.Poll(func() bool {
		var v uint16
		if v, err = b.Read(addr, s.Devad, s.Reg); err != nil {
			return true
		}
		return v&s.Value == 0
	})
	if err != nil {
		return
	}
	if !ok {
		log.Print("daemon", "err", "pcs ", addr, ": reset not complete after ", budget)
		return ErrTimeout
	}
	return
}
