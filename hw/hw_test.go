// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package hw_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/enetc/hw"
)

type regs map[uint32]uint32

func (r regs) Read32(o uint32) uint32     { return r[o] }
func (r regs) Write32(o uint32, v uint32) { r[o] = v }

func TestReg(t *testing.T) {
	r := regs{}
	const x hw.Reg = 0x40
	x.Set(r, 0xf0)
	assert.Equal(t, uint32(0xf3), x.Or(r, 0x03))
	assert.Equal(t, uint32(0x33), x.AndNot(r, 0xc0))
	assert.Equal(t, uint32(0x33), r[0x40])
}

func TestAddr(t *testing.T) {
	r := regs{}
	a := hw.Addr{0x10, 0x14}
	a.Set(r, 0x0000001234567880)
	assert.Equal(t, uint32(0x34567880), r[0x10])
	assert.Equal(t, uint32(0x12), r[0x14])
	assert.Equal(t, uint64(0x1234567880), a.Get(r))
}

func TestSub(t *testing.T) {
	r := regs{}
	s := hw.Sub(hw.Sub(r, 0x8000), 0x100)
	s.Write32(0x18, 7)
	assert.Equal(t, uint32(7), r[0x8118])
	r[0x8120] = 8
	assert.Equal(t, uint32(8), s.Read32(0x20))
}

func TestHeapAlignment(t *testing.T) {
	h := hw.NewHeap(4096, 0x1000_0004)
	m, err := h.Alloc(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000_0004), m.Addr)

	m, err = h.AllocAligned(256, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000_0080), m.Addr)
	assert.Equal(t, 256, m.Len())

	m.Bytes[5] = 0x5a
	b, err := h.Bytes(m.Addr+5, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5a}, b)

	s := m.Slice(16, 32)
	assert.Equal(t, m.Addr+16, s.Addr)
	assert.Equal(t, 32, s.Len())

	_, err = h.Bytes(0x1000_0000, 4)
	assert.Error(t, err)
	_, err = h.Bytes(0x1000_0004+4090, 8)
	assert.Error(t, err)

	_, err = h.Alloc(8192)
	assert.ErrorIs(t, err, hw.ErrNoMem)
}

func TestPool(t *testing.T) {
	h := hw.NewHeap(1<<16, 0x4000_0000)
	p, err := hw.NewPool(h, 4, 1536, 6)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Len())
	assert.Equal(t, uint(1536), p.BufferSize())
	for i := 0; i < p.Len(); i++ {
		assert.Zero(t, p.Buffer(i).Addr&63)
		if i > 0 {
			assert.Greater(t, p.Buffer(i).Addr, p.Buffer(i-1).Addr)
		}
	}
	_, err = hw.NewPool(h, 64, 1536, 6)
	assert.ErrorIs(t, err, hw.ErrNoMem)
}

func TestBudgetPoll(t *testing.T) {
	n := 0
	b := hw.Budget{Tries: 5}
	assert.False(t, b.Poll(func() bool { n++; return false }))
	assert.Equal(t, 5, n)

	n = 0
	assert.True(t, b.Poll(func() bool { n++; return n == 3 }))
	assert.Equal(t, 3, n)

	n = 0
	assert.False(t, hw.Budget{}.Poll(func() bool { n++; return true }))
	assert.Zero(t, n)
}

func TestBudgetDelay(t *testing.T) {
	b := hw.Budget{Tries: 4, Delay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
	start := time.Now()
	assert.False(t, b.Poll(func() bool { return false }))
	// 1 + 2 + 4 ms between four checks.
	assert.GreaterOrEqual(t, time.Since(start), 7*time.Millisecond)
	assert.Equal(t, "4 tries, 1ms..4ms", b.String())
	assert.Equal(t, "3 tries, 0s", hw.Budget{Tries: 3}.String())
}

func TestMapWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bar0")
	require.NoError(t, os.WriteFile(path, make([]byte, 4096), 0600))

	m, err := hw.MapWindow(path, 4096)
	require.NoError(t, err)
	hw.Reg(0x40).Set(m, 0x2b2b6727)
	assert.Equal(t, uint32(0x2b2b6727), hw.Reg(0x40).Get(m))
	assert.Panics(t, func() { m.Read32(4096) })
	assert.Panics(t, func() { m.Read32(2) })
	require.NoError(t, m.Close())

	m, err = hw.MapWindow(path, 4096)
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, uint32(0x2b2b6727), m.Read32(0x40))

	_, err = hw.MapWindow(filepath.Join(t.TempDir(), "missing"), 4096)
	assert.Error(t, err)
}
