// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNoMem = errors.New("out of dma memory")

// Mem is a run of DMA memory: the CPU view and the bus address of its
// first byte.
type Mem struct {
	Bytes []byte
	Addr  uint64
}

func (m Mem) Len() int { return len(m.Bytes) }

// Slice returns n bytes of m starting at offset o.
func (m Mem) Slice(o, n int) Mem { return Mem{Bytes: m.Bytes[o : o+n], Addr: m.Addr + uint64(o)} }

// DMA allocates device visible memory.
type DMA interface {
	AllocAligned(n, log2Align uint) (Mem, error)
}

// Heap is a DMA region carved up by a bump allocator.  Memory is never
// freed; boot time drivers allocate once.
type Heap struct {
	mu   sync.Mutex
	data []byte
	base uint64
	next uint64
}

func NewHeap(size int, base uint64) *Heap { return NewHeapFromBytes(make([]byte, size), base) }

// NewHeapFromBytes uses b, e.g. an mmap of reserved physical memory, whose
// first byte has bus address base.
func NewHeapFromBytes(b []byte, base uint64) *Heap { return &Heap{data: b, base: base} }

func (h *Heap) Alloc(n uint) (Mem, error) { return h.AllocAligned(n, 0) }

func (h *Heap) AllocAligned(n, log2Align uint) (m Mem, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	align := uint64(1) << log2Align
	a := (h.base + h.next + align - 1) &^ (align - 1)
	o := a - h.base
	if o+uint64(n) > uint64(len(h.data)) {
		err = fmt.Errorf("%d bytes aligned %d: %w", n, align, ErrNoMem)
		return
	}
	h.next = o + uint64(n)
	m = Mem{Bytes: h.data[o : o+uint64(n) : o+uint64(n)], Addr: a}
	return
}

// Bytes translates a bus address range back to the CPU view.
func (h *Heap) Bytes(addr uint64, n int) ([]byte, error) {
	if addr < h.base || addr-h.base+uint64(n) > uint64(len(h.data)) {
		return nil, fmt.Errorf("hw: bus address 0x%x+%d outside dma heap", addr, n)
	}
	o := addr - h.base
	return h.data[o : o+uint64(n)], nil
}

func (h *Heap) String() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fmt.Sprintf("dma heap 0x%x: %d of %d bytes used", h.base, h.next, len(h.data))
}

// Pool is a fixed set of equally sized receive buffers.
type Pool struct {
	bufs []Mem
	size uint
}

func NewPool(d DMA, n, size, log2Align uint) (p *Pool, err error) {
	p = &Pool{bufs: make([]Mem, n), size: size}
	for i := range p.bufs {
		if p.bufs[i], err = d.AllocAligned(size, log2Align); err != nil {
			return nil, err
		}
	}
	return
}

func (p *Pool) Len() int         { return len(p.bufs) }
func (p *Pool) Buffer(i int) Mem { return p.bufs[i] }
func (p *Pool) BufferSize() uint { return p.size }
