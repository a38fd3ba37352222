// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Memory mapped register read/write, DMA memory and bounded polling.
package hw

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// A Window is a memory mapped register space addressed by byte offset.
type Window interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, v uint32)
}

// Reg is the byte offset of a 32 bit register within a Window.
type Reg uint32

func (r Reg) Get(w Window) uint32    { return w.Read32(uint32(r)) }
func (r Reg) Set(w Window, v uint32) { w.Write32(uint32(r), v) }
func (r Reg) Or(w Window, v uint32) (x uint32) {
	x = r.Get(w) | v
	r.Set(w, x)
	return
}
func (r Reg) AndNot(w Window, v uint32) (x uint32) {
	x = r.Get(w) &^ v
	r.Set(w, x)
	return
}

// Addr is a 64 bit bus address register pair: [0] low word, [1] high word.
type Addr [2]Reg

func (a Addr) Set(w Window, v uint64) {
	a[0].Set(w, uint32(v))
	a[1].Set(w, uint32(v>>32))
}

func (a Addr) Get(w Window) uint64 {
	return uint64(a[0].Get(w)) | uint64(a[1].Get(w))<<32
}

type sub struct {
	w    Window
	base uint32
}

func (s *sub) Read32(o uint32) uint32     { return s.w.Read32(s.base + o) }
func (s *sub) Write32(o uint32, v uint32) { s.w.Write32(s.base+o, v) }

// Sub returns the window of w starting at byte offset base.
func Sub(w Window, base uint32) Window {
	if s, ok := w.(*sub); ok {
		return &sub{w: s.w, base: s.base + base}
	}
	return &sub{w: w, base: base}
}

var fence uint32

// MemoryBarrier orders all prior stores to DMA memory before any following
// register write.
func MemoryBarrier() { atomic.AddUint32(&fence, 1) }

// Mapped is a Window backed by an mmap of a device resource, e.g.
// /sys/bus/pci/devices/0000:00:00.0/resource0.
type Mapped struct {
	f *os.File
	b []byte
}

func MapWindow(path string, size int) (*Mapped, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, err
	}
	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Mapped{f: f, b: b}, nil
}

func (m *Mapped) addr(o uint32) *uint32 {
	if o&3 != 0 || int(o)+4 > len(m.b) {
		panic(fmt.Errorf("hw: register offset 0x%x outside %d byte window", o, len(m.b)))
	}
	return (*uint32)(unsafe.Pointer(&m.b[o]))
}

func (m *Mapped) Read32(o uint32) uint32     { return atomic.LoadUint32(m.addr(o)) }
func (m *Mapped) Write32(o uint32, v uint32) { atomic.StoreUint32(m.addr(o), v) }

func (m *Mapped) Close() error {
	err := unix.Munmap(m.b)
	if e := m.f.Close(); err == nil {
		err = e
	}
	return err
}
