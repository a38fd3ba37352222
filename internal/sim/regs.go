// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sim models just enough ENETC, internal MDIO, PCS and Felix
// silicon to exercise the drivers without hardware.
package sim

import "fmt"

type Access struct {
	Offset uint32
	Value  uint32
}

func (a Access) String() string { return fmt.Sprintf("[0x%05x] = 0x%08x", a.Offset, a.Value) }

// Regs is a sparse register file implementing hw.Window.  Hooks model
// hardware side effects.
type Regs struct {
	mem     map[uint32]uint32
	onRead  map[uint32]func() uint32
	onWrite map[uint32]func(v uint32)

	// Every software write in order.
	Writes []Access
}

func NewRegs() *Regs {
	return &Regs{
		mem:     make(map[uint32]uint32),
		onRead:  make(map[uint32]func() uint32),
		onWrite: make(map[uint32]func(v uint32)),
	}
}

func (r *Regs) Read32(o uint32) uint32 {
	if f := r.onRead[o]; f != nil {
		return f()
	}
	return r.mem[o]
}

func (r *Regs) Write32(o uint32, v uint32) {
	r.Writes = append(r.Writes, Access{o, v})
	r.mem[o] = v
	if f := r.onWrite[o]; f != nil {
		f(v)
	}
}

// Peek and Poke access registers from the hardware side: no hooks, no log.
func (r *Regs) Peek(o uint32) uint32    { return r.mem[o] }
func (r *Regs) Poke(o uint32, v uint32) { r.mem[o] = v }

func (r *Regs) OnRead(o uint32, f func() uint32)   { r.onRead[o] = f }
func (r *Regs) OnWrite(o uint32, f func(v uint32)) { r.onWrite[o] = f }

// WritesTo returns the values written to offset o in order.
func (r *Regs) WritesTo(o uint32) (v []uint32) {
	for _, a := range r.Writes {
		if a.Offset == o {
			v = append(v, a.Value)
		}
	}
	return
}

func (r *Regs) ClearLog() { r.Writes = nil }
