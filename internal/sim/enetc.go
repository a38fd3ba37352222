// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sim

import (
	"encoding/binary"
	"fmt"

	"github.com/platinasystems/enetc/hw"
)

// ENETC station interface, ring 0 and port registers seen by the model.
const (
	enetcSIMR = 0x0000

	enetcTxRing = 0x8000
	enetcRxRing = 0x8100

	enetcBdrMode = 0x00
	enetcRBBSR   = 0x08
	enetcRBCIR   = 0x0c
	enetcBar0    = 0x10
	enetcBar1    = 0x14
	enetcPIR     = 0x18
	enetcTBCIR   = 0x1c
	enetcLen     = 0x20

	enetcEnable = 1 << 31

	// Internal MDIO of the port.
	EnetcMdio = 0x18030

	enetcBDSize = 16

	rxReady = 1 << 30
	rxFinal = 1 << 31
	txFinal = 1 << 15
)

// ENETC models the ring 0 DMA engine of one station interface.  A producer
// index write consumes transmit descriptors at once unless Stall is set;
// Inject fills receive descriptors.
type ENETC struct {
	Regs *Regs
	Heap *hw.Heap

	// Transmit descriptors stay owned by hardware.
	Stall bool

	// Transmitted frames go here, or into the receive ring with Loopback.
	OnTx     func(frame []byte)
	Loopback bool

	// Every transmitted frame in order.
	Tx [][]byte
}

func NewENETC(r *Regs, h *hw.Heap) *ENETC {
	e := &ENETC{Regs: r, Heap: h}
	r.OnWrite(enetcTxRing+enetcPIR, func(uint32) { e.Drain() })
	return e
}

func (e *ENETC) enabled(ring uint32) bool {
	return e.Regs.Peek(enetcSIMR)&enetcEnable != 0 && e.Regs.Peek(ring+enetcBdrMode)&enetcEnable != 0
}

func (e *ENETC) bar(ring uint32) uint64 {
	return uint64(e.Regs.Peek(ring+enetcBar0)) | uint64(e.Regs.Peek(ring+enetcBar1))<<32
}

func (e *ENETC) bd(ring, i uint32) []byte {
	b, err := e.Heap.Bytes(e.bar(ring)+uint64(i)*enetcBDSize, enetcBDSize)
	if err != nil {
		panic(fmt.Errorf("sim: ring 0x%x descriptor %d: %w", ring, i, err))
	}
	return b
}

// Drain consumes every transmit descriptor software has handed over.
func (e *ENETC) Drain() {
	if e.Stall || !e.enabled(enetcTxRing) {
		return
	}
	r := e.Regs
	n := r.Peek(enetcTxRing + enetcLen)
	pi := r.Peek(enetcTxRing+enetcPIR) & 0xffff
	ci := r.Peek(enetcTxRing+enetcTBCIR) & 0xffff
	for n > 0 && ci != pi {
		d := e.bd(enetcTxRing, ci)
		addr := binary.LittleEndian.Uint64(d[0:])
		l := int(binary.LittleEndian.Uint16(d[10:]))
		if binary.LittleEndian.Uint16(d[14:])&txFinal == 0 {
			panic(fmt.Errorf("sim: tx descriptor %d without final flag", ci))
		}
		b, err := e.Heap.Bytes(addr, l)
		if err != nil {
			panic(fmt.Errorf("sim: tx descriptor %d: %w", ci, err))
		}
		f := append([]byte(nil), b...)
		e.Tx = append(e.Tx, f)
		ci = (ci + 1) % n
		r.Poke(enetcTxRing+enetcTBCIR, ci)
		switch {
		case e.OnTx != nil:
			e.OnTx(f)
		case e.Loopback:
			e.Inject(f, 0)
		}
	}
}

// Inject receives a frame with the given error code into the next free
// receive descriptor.  It returns false when the ring is disabled or full or
// the frame exceeds the buffer size.
func (e *ENETC) Inject(frame []byte, errCode uint8) bool {
	if !e.enabled(enetcRxRing) {
		return false
	}
	r := e.Regs
	n := r.Peek(enetcRxRing + enetcLen)
	pi := r.Peek(enetcRxRing+enetcPIR) & 0xffff
	ci := r.Peek(enetcRxRing+enetcRBCIR) & 0xffff
	if n == 0 || (pi+1)%n == ci || len(frame) > int(r.Peek(enetcRxRing+enetcRBBSR)) {
		return false
	}
	d := e.bd(enetcRxRing, pi)
	addr := binary.LittleEndian.Uint64(d[0:])
	b, err := e.Heap.Bytes(addr, len(frame))
	if err != nil {
		panic(fmt.Errorf("sim: rx descriptor %d: %w", pi, err))
	}
	copy(b, frame)
	// Write back overlays the buffer address.
	for i := range d {
		d[i] = 0
	}
	binary.LittleEndian.PutUint16(d[8:], uint16(len(frame)))
	binary.LittleEndian.PutUint32(d[12:], rxReady|rxFinal|uint32(errCode)<<16)
	r.Poke(enetcRxRing+enetcPIR, (pi+1)%n)
	return true
}

// RxPending is the number of received descriptors software has not yet
// consumed.
func (e *ENETC) RxPending() int {
	r := e.Regs
	n := r.Peek(enetcRxRing + enetcLen)
	if n == 0 {
		return 0
	}
	pi := r.Peek(enetcRxRing+enetcPIR) & 0xffff
	ci := r.Peek(enetcRxRing+enetcRBCIR) & 0xffff
	return int((pi + n - ci) % n)
}
