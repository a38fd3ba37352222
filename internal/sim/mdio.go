// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sim

// Internal MDIO controller register offsets.
const (
	mdioCfg  = 0x00
	mdioCtl  = 0x04
	mdioData = 0x08
	mdioStat = 0x0c

	mdioCfgBusy   = 1 << 0
	mdioCfgReadEr = 1 << 1
	mdioCfgC45    = 1 << 6
	mdioCtlRead   = 1 << 15
)

// NoDevad addresses a clause 22 device.
const NoDevad = -1

type DevKey struct {
	Addr  uint8
	Devad int
}

type RegWrite struct {
	Reg   uint16
	Value uint16
}

// Device is one MDIO addressable register set.
type Device struct {
	Regs map[uint16]uint16

	// Bits that hardware clears after a write.  They read back set for
	// ClearAfter reads; a register missing from SelfClear keeps them forever.
	SelfClear  map[uint16]uint16
	ClearAfter int

	pending map[uint16]int

	// Every write in order.
	Writes []RegWrite
}

func NewDevice() *Device {
	return &Device{
		Regs:      make(map[uint16]uint16),
		SelfClear: make(map[uint16]uint16),
		pending:   make(map[uint16]int),
	}
}

func (d *Device) write(reg, v uint16) {
	d.Writes = append(d.Writes, RegWrite{reg, v})
	m := d.SelfClear[reg]
	if m != 0 && v&m != 0 && d.ClearAfter > 0 {
		d.pending[reg] = d.ClearAfter
	} else {
		v &^= m
	}
	d.Regs[reg] = v
}

func (d *Device) read(reg uint16) (v uint16) {
	v = d.Regs[reg]
	if n, ok := d.pending[reg]; ok {
		if n--; n <= 0 {
			delete(d.pending, reg)
			d.Regs[reg] &^= d.SelfClear[reg]
		} else {
			d.pending[reg] = n
		}
	}
	return
}

// WritesTo returns values written to reg in order.
func (d *Device) WritesTo(reg uint16) (v []uint16) {
	for _, w := range d.Writes {
		if w.Reg == reg {
			v = append(v, w.Value)
		}
	}
	return
}

// MDIO models the ENETC style internal MDIO controller at Base within Regs.
type MDIO struct {
	regs *Regs
	base uint32

	// Busy never clears.
	Stuck bool

	Devices map[DevKey]*Device

	c45     bool
	readErr bool
	phyAddr uint8
	sel     uint16 // c45 devad or c22 register
	c45Reg  uint16
	data    uint16
}

func NewMDIO(r *Regs, base uint32) *MDIO {
	m := &MDIO{regs: r, base: base, Devices: make(map[DevKey]*Device)}
	r.OnWrite(base+mdioCfg, m.cfg)
	r.OnRead(base+mdioCfg, m.status)
	r.OnWrite(base+mdioCtl, m.ctl)
	r.OnWrite(base+mdioStat, func(v uint32) { m.c45Reg = uint16(v) })
	r.OnWrite(base+mdioData, m.write)
	r.OnRead(base+mdioData, func() uint32 { return uint32(m.data) })
	return m
}

// Device returns the device at addr/devad, creating it if needed.
func (m *MDIO) Device(addr uint8, devad int) *Device {
	k := DevKey{addr, devad}
	d := m.Devices[k]
	if d == nil {
		d = NewDevice()
		m.Devices[k] = d
	}
	return d
}

func (m *MDIO) cfg(v uint32) {
	m.c45 = v&mdioCfgC45 != 0
	m.readErr = false
}

func (m *MDIO) status() uint32 {
	v := m.regs.Peek(m.base + mdioCfg)
	v &^= mdioCfgBusy | mdioCfgReadEr
	if m.Stuck {
		v |= mdioCfgBusy
	}
	if m.readErr {
		v |= mdioCfgReadEr
	}
	return v
}

func (m *MDIO) target() (d *Device, reg uint16, ok bool) {
	k := DevKey{Addr: m.phyAddr, Devad: NoDevad}
	reg = m.sel
	if m.c45 {
		k.Devad = int(m.sel)
		reg = m.c45Reg
	}
	d, ok = m.Devices[k]
	return
}

func (m *MDIO) ctl(v uint32) {
	if m.Stuck {
		return
	}
	m.phyAddr = uint8(v>>5) & 0x1f
	m.sel = uint16(v & 0x1f)
	if v&mdioCtlRead == 0 {
		return
	}
	d, reg, ok := m.target()
	if !ok {
		m.readErr = true
		m.data = 0xffff
		return
	}
	m.data = d.read(reg)
}

func (m *MDIO) write(v uint32) {
	if m.Stuck {
		return
	}
	if d, reg, ok := m.target(); ok {
		d.write(reg, uint16(v))
	}
}

// PCS register offsets shared by the ENETC and Felix PCS blocks.
const (
	PcsCR          = 0x00
	PcsDevAbility  = 0x04
	PcsLinkTimer1  = 0x12
	PcsLinkTimer2  = 0x13
	PcsIfMode      = 0x14
	PcsMMD         = 3
	PcsReplicator  = 0x1f
	pcsCRSelfClear = 1<<15 | 1<<9
)

// NewPCS attaches a PCS at addr: the clause 22 register set, a clause 45
// PCS MMD and the (U)SXGMII replicator, all with self clearing reset and
// restart bits.
func (m *MDIO) NewPCS(addr uint8) (c22, mmd, repl *Device) {
	c22 = m.Device(addr, NoDevad)
	mmd = m.Device(addr, PcsMMD)
	repl = m.Device(addr, PcsReplicator)
	for _, d := range []*Device{c22, mmd, repl} {
		d.SelfClear[PcsCR] = pcsCRSelfClear
	}
	return
}
