// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package enetc

import (
	"fmt"

	"github.com/platinasystems/log"

	"github.com/platinasystems/enetc/hw"
)

type ringState uint8

const (
	ringUninitialized ringState = iota
	// Address, size, buffer size written; index registers zeroed.
	ringConfigured
	// Mode register enable bit set.
	ringEnabled
	// At least one frame handed over.
	ringActive
)

var ringStateNames = [...]string{
	ringUninitialized: "uninitialized",
	ringConfigured:    "configured",
	ringEnabled:       "enabled",
	ringActive:        "active",
}

func (s ringState) String() string { return ringStateNames[s] }

// ring is a buffer descriptor ring shared with hardware.  Head == tail
// means empty so at most len-1 descriptors are owned by hardware.
// A ring has a single software owner.
type ring struct {
	dir   direction
	index uint32
	regs  hw.Window
	desc  hw.Mem
	size  uint32
	state ringState

	// Software indices: next descriptor to fill (tx) or to consume (rx).
	nextProducer uint32
	nextConsumer uint32

	budget hw.Budget
	debug  bool
}

func (r *ring) String() string {
	return fmt.Sprintf("%v ring %d: %d descriptors, %v", r.dir, r.index, r.size, r.state)
}

func (r *ring) setup(w hw.Window, d hw.DMA, dir direction, index, n uint32) (err error) {
	if n < 2 || n > bdrIndexMask {
		return fmt.Errorf("%v ring %d: bad descriptor count %d", dir, index, n)
	}
	r.dir, r.index = dir, index
	r.regs = hw.Sub(w, bdrRegs(dir, index))
	// Descriptors are allocated once and reused on every restart.
	if r.desc.Bytes == nil || r.size != n {
		if r.desc, err = d.AllocAligned(uint(n)*bdSize, log2DescriptorAlignmentBytes); err != nil {
			r.desc, r.size = hw.Mem{}, 0
			return fmt.Errorf("%v ring %d descriptors: %w", dir, index, err)
		}
		r.size = n
	}
	zero(r.desc.Bytes)
	hw.Addr{bdrBar0, bdrBar1}.Set(r.regs, r.desc.Addr)
	bdrLen.Set(r.regs, n)
	r.nextProducer, r.nextConsumer = 0, 0
	return
}

func (r *ring) zeroIndices(sw, hwIndex hw.Reg) {
	sw.Set(r.regs, 0)
	hwIndex.Set(r.regs, 0)
	r.state = ringConfigured
}

func (r *ring) enable() {
	bdrMode.Set(r.regs, bdrModeEnable)
	r.state = ringEnabled
}

func (r *ring) disable() {
	if r.state == ringUninitialized {
		return
	}
	bdrMode.Set(r.regs, 0)
	r.state = ringConfigured
}

func (r *ring) bd(i uint32) []byte { return r.desc.Bytes[i*bdSize : (i+1)*bdSize] }

func (r *ring) next(i uint32) uint32 { return (i + 1) % r.size }

type txRing struct {
	ring
}

func (r *txRing) setup(w hw.Window, d hw.DMA, index, n uint32) error {
	if err := r.ring.setup(w, d, tx, index, n); err != nil {
		return err
	}
	r.zeroIndices(bdrPir, tbcir)
	r.enable()
	return nil
}

func (r *txRing) consumer() uint32 { return tbcir.Get(r.regs) & bdrIndexMask }

// full reports whether handing over one more descriptor would make
// producer and consumer indices equal.
func (r *txRing) full() bool { return r.next(r.nextProducer) == r.consumer() }

// send hands n bytes of buf to hardware as one frame and waits for
// hardware to consume it.  With a zero try budget send returns after the
// hand over.
func (r *txRing) send(buf hw.Mem, n int) error {
	if r.state < ringEnabled {
		return fmt.Errorf("%v: %w", &r.ring, ErrNotReady)
	}
	if n <= 0 || n > buf.Len() || n > 0xffff {
		return fmt.Errorf("tx ring %d: bad length %d for %d byte buffer", r.index, n, buf.Len())
	}
	ci := r.consumer()
	pi := r.nextProducer
	if r.next(pi) == ci {
		return fmt.Errorf("tx ring %d: producer %d consumer %d: %w", r.index, pi, ci, ErrRingFull)
	}

	d := txBD(r.bd(pi))
	d.clear()
	d.setAddr(buf.Addr)
	d.setBufLen(uint16(n))
	d.setFrameLen(uint16(n))
	d.setFlags(txFlagFinal)

	// Descriptor must be visible before hardware sees the new producer index.
	hw.MemoryBarrier()
	r.nextProducer = r.next(pi)
	bdrPir.Set(r.regs, r.nextProducer)
	r.state = ringActive

	if r.debug {
		log.Printf("daemon", "debug", "tx ring %d: bd %d addr 0x%x len %d", r.index, pi, buf.Addr, n)
	}
	if r.budget.Tries == 0 {
		return nil
	}
	if !r.budget.Poll(func() bool { return r.consumer() == r.nextProducer }) {
		return fmt.Errorf("tx ring %d: consumer %d never reached %d after %v: %w",
			r.index, r.consumer(), r.nextProducer, r.budget, ErrTimeout)
	}
	return nil
}

type rxRing struct {
	ring
	pool    *hw.Pool
	bufSize uint32
}

func (r *rxRing) setup(w hw.Window, d hw.DMA, index, n uint32, p *hw.Pool, bufSize uint32) error {
	if p == nil || p.Len() < int(n) {
		return fmt.Errorf("rx ring %d: pool too small for %d descriptors", index, n)
	}
	if p.BufferSize() < uint(bufSize) {
		return fmt.Errorf("rx ring %d: %d byte pool buffers smaller than %d", index, p.BufferSize(), bufSize)
	}
	for i := 0; i < int(n); i++ {
		if a := p.Buffer(i).Addr; a&(1<<log2RxBufferAlignmentBytes-1) != 0 {
			return fmt.Errorf("rx ring %d: buffer %d address 0x%x not %d byte aligned",
				index, i, a, 1<<log2RxBufferAlignmentBytes)
		}
	}
	if err := r.ring.setup(w, d, rx, index, n); err != nil {
		return err
	}
	r.pool, r.bufSize = p, bufSize
	rbbsr.Set(r.regs, bufSize)
	for i := uint32(0); i < n; i++ {
		rxBD(r.bd(i)).arm(r.pool.Buffer(int(i)).Addr)
	}
	hw.MemoryBarrier()
	r.zeroIndices(rbcir, bdrPir)
	r.enable()
	return nil
}

// buffer returns the receive buffer owned by descriptor i.
func (r *rxRing) buffer(i uint32) hw.Mem { return r.pool.Buffer(int(i)) }

// recv returns the next received frame.  The slice aliases the slot's pool
// buffer which goes back to hardware at once; it is valid until the ring
// wraps around to the slot again.  Frames with an error code or longer
// than the buffer are consumed and reported as ErrFrame.
func (r *rxRing) recv() (b []byte, err error) {
	if r.state < ringEnabled {
		return nil, fmt.Errorf("%v: %w", &r.ring, ErrNotReady)
	}
	ci := r.nextConsumer
	d := rxBD(r.bd(ci))
	if !r.budget.Poll(d.ready) {
		return nil, ErrWouldBlock
	}
	// Status must be read before the rest of the descriptor.
	hw.MemoryBarrier()
	n := uint32(d.bufLen())
	code := d.errorCode()
	if r.debug {
		log.Printf("daemon", "debug", "rx ring %d: bd %d len %d status 0x%x csum 0x%x parse 0x%x",
			r.index, ci, n, d.status(), d.inetCsum(), d.parseSummary())
	}
	buf := r.buffer(ci)

	d.arm(buf.Addr)
	hw.MemoryBarrier()
	r.nextConsumer = r.next(ci)
	rbcir.Set(r.regs, r.nextConsumer)
	r.state = ringActive

	switch {
	case code != 0:
		return nil, fmt.Errorf("rx ring %d: bd %d error code 0x%02x: %w", r.index, ci, code, ErrFrame)
	case n > r.bufSize:
		return nil, fmt.Errorf("rx ring %d: bd %d: %d byte frame exceeds %d byte buffer: %w",
			r.index, ci, n, r.bufSize, ErrFrame)
	}
	return buf.Bytes[:n], nil
}
