// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dsa_test

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/mdlayher/ethernet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/enetc/dsa"
	"github.com/platinasystems/enetc/enetc"
	"github.com/platinasystems/enetc/felix"
	"github.com/platinasystems/enetc/hw"
	"github.com/platinasystems/enetc/internal/sim"
	"github.com/platinasystems/enetc/mdio"
	"github.com/platinasystems/enetc/phy"
)

const frontPorts = 4

type rig struct {
	heap   *hw.Heap
	nic    *sim.ENETC
	fabric *sim.Felix
	master *enetc.Device
	sw     *felix.Switch
	dev    *dsa.Device
	phys   []*phy.Fixed
	ports  []*dsa.Port
}

func newRig(t *testing.T) *rig {
	heap := hw.NewHeap(1<<20, 0x9000_0000)
	nicRegs, swRegs, imdio := sim.NewRegs(), sim.NewRegs(), sim.NewRegs()
	r := &rig{heap: heap, nic: sim.NewENETC(nicRegs, heap)}
	r.fabric = sim.NewFelix(swRegs, r.nic)
	m := sim.NewMDIO(imdio, mdio.ImdioBase)
	for i := 0; i < felix.DefaultPorts; i++ {
		m.NewPCS(uint8(i))
	}

	r.master = enetc.New(nicRegs, heap, nil, phy.NewFixed(phy.Internal, phy.Speed2500, phy.Full), enetc.Config{
		Name:     "eno2",
		TxBudget: enetc.DefaultConfig.TxBudget,
		RxBudget: hw.Budget{Tries: 1},
	})
	r.sw = felix.New(swRegs, mdio.New(imdio, mdio.ImdioBase), felix.Config{})
	require.NoError(t, r.sw.Init())

	var err error
	r.dev, err = dsa.New(r.sw, r.master, heap, dsa.Config{CPUPort: felix.DefaultCPUPort})
	require.NoError(t, err)
	for i := 0; i < frontPorts; i++ {
		p := phy.NewFixed(phy.SGMII, phy.Speed1000, phy.Full)
		port, err := r.dev.AddPort(i, "", p)
		require.NoError(t, err)
		r.phys = append(r.phys, p)
		r.ports = append(r.ports, port)
	}
	return r
}

func payload(port, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(port<<4 + i)
	}
	return b
}

func TestStart(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.ports[1].Start())
	assert.True(t, r.ports[1].Enabled())
	assert.True(t, r.fabric.PortEnabled(1))
	assert.True(t, r.fabric.PortEnabled(felix.DefaultCPUPort))
	assert.False(t, r.fabric.PortEnabled(0))
	assert.True(t, r.phys[1].Running())
	assert.Equal(t, "swp1", r.ports[1].String())

	head, tail := r.dev.Headroom()
	assert.Equal(t, felix.HeaderLen, head)
	assert.Zero(t, tail)
}

func TestSend(t *testing.T) {
	r := newRig(t)
	p := r.ports[1]
	require.NoError(t, p.Start())
	require.NoError(t, p.Send(payload(1, 100)))
	require.Len(t, r.fabric.Egress[1], 1)
	assert.Equal(t, payload(1, 100), r.fabric.Egress[1][0])
	assert.Zero(t, r.fabric.Dropped)

	// Tagged frame on the wire between NIC and switch.
	require.Len(t, r.nic.Tx, 1)
	f := r.nic.Tx[0]
	assert.Len(t, f, felix.HeaderLen+100)
	assert.Equal(t, []byte{0x88, 0x80, 0x00, 0x0a}, f[12:16])
	assert.Equal(t, byte(1<<1), f[23])
}

func TestSendPadsShortFrames(t *testing.T) {
	r := newRig(t)
	p := r.ports[0]
	require.NoError(t, p.Start())
	require.NoError(t, p.Send(bytes.Repeat([]byte{0xff}, 200)))
	require.NoError(t, p.Send(payload(0, 20)))
	require.Len(t, r.fabric.Egress[0], 2)
	got := r.fabric.Egress[0][1]
	require.Len(t, got, dsa.MinFrame)
	assert.Equal(t, payload(0, 20), got[:20])
	assert.Equal(t, make([]byte, dsa.MinFrame-20), got[20:])
}

func TestSendTooLong(t *testing.T) {
	r := newRig(t)
	p := r.ports[0]
	require.NoError(t, p.Start())
	assert.ErrorIs(t, p.Send(make([]byte, dsa.DefaultMaxFrame-felix.HeaderLen+1)), dsa.ErrTooLong)
	assert.Empty(t, r.nic.Tx)
	assert.NoError(t, p.Send(make([]byte, dsa.DefaultMaxFrame-felix.HeaderLen)))
}

func TestRecvStripsTag(t *testing.T) {
	r := newRig(t)
	p := r.ports[2]
	require.NoError(t, p.Start())
	require.True(t, r.fabric.Ingress(2, payload(2, 64)))
	b, err := p.Recv()
	require.NoError(t, err)
	assert.Equal(t, payload(2, 64), b)

	_, err = p.Recv()
	assert.ErrorIs(t, err, enetc.ErrWouldBlock)
}

func TestRecvOtherPort(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.ports[0].Start())
	require.NoError(t, r.ports[2].Start())

	require.True(t, r.fabric.Ingress(2, payload(2, 64)))
	_, err := r.ports[0].Recv()
	assert.ErrorIs(t, err, dsa.ErrOtherPort)

	require.True(t, r.fabric.Ingress(2, payload(2, 70)))
	require.True(t, r.fabric.Ingress(0, payload(0, 80)))
	from, b, err := r.dev.Recv()
	require.NoError(t, err)
	assert.Same(t, r.ports[2], from)
	assert.Equal(t, payload(2, 70), b)
	from, b, err = r.dev.Recv()
	require.NoError(t, err)
	assert.Same(t, r.ports[0], from)
	assert.Equal(t, payload(0, 80), b)
}

func TestRecvBadFrames(t *testing.T) {
	r := newRig(t)
	p := r.ports[0]
	require.NoError(t, p.Start())

	require.True(t, r.nic.Inject(payload(0, 64), 0))
	_, err := p.Recv()
	assert.ErrorIs(t, err, felix.ErrProtocolMismatch)

	require.True(t, r.nic.Inject(payload(0, felix.HeaderLen), 0))
	_, err = p.Recv()
	assert.ErrorIs(t, err, dsa.ErrRunt)

	// Bad frames do not disturb the ring.
	require.True(t, r.fabric.Ingress(0, payload(0, 64)))
	b, err := p.Recv()
	require.NoError(t, err)
	assert.Equal(t, payload(0, 64), b)
}

func TestLoopbackEveryPort(t *testing.T) {
	r := newRig(t)
	r.fabric.Loopback = true
	for i, p := range r.ports {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			require.NoError(t, p.Start())
			require.NoError(t, p.Send(payload(i, 64)))
			b, err := p.Recv()
			require.NoError(t, err)
			assert.Equal(t, payload(i, 64), b)
		})
	}
}

func TestStop(t *testing.T) {
	r := newRig(t)
	p := r.ports[3]
	require.NoError(t, p.Start())
	p.Stop()
	assert.False(t, p.Enabled())
	assert.False(t, r.fabric.PortEnabled(3))
	assert.False(t, r.fabric.Ingress(3, payload(3, 64)))
	assert.True(t, r.phys[3].Running())
	assert.ErrorIs(t, p.Send(payload(3, 64)), dsa.ErrPortDown)
	_, err := p.Recv()
	assert.ErrorIs(t, err, dsa.ErrPortDown)

	// Restart without renegotiation.
	require.NoError(t, p.Start())
	assert.True(t, r.fabric.PortEnabled(3))
}

func TestFrames(t *testing.T) {
	r := newRig(t)
	r.fabric.Loopback = true
	p := r.ports[1]
	p.HardwareAddr = net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01}
	require.NoError(t, p.Start())

	require.NoError(t, p.SendFrame(&ethernet.Frame{
		Destination: ethernet.Broadcast,
		EtherType:   ethernet.EtherTypeARP,
		Payload:     []byte("who has"),
	}))
	f, err := p.RecvFrame()
	require.NoError(t, err)
	assert.Equal(t, ethernet.Broadcast, f.Destination)
	assert.Equal(t, p.HardwareAddr, f.Source)
	assert.Equal(t, ethernet.EtherTypeARP, f.EtherType)
	assert.True(t, bytes.HasPrefix(f.Payload, []byte("who has")))
}

func TestAddPort(t *testing.T) {
	r := newRig(t)
	fp := phy.NewFixed(phy.SGMII, phy.Speed1000, phy.Full)
	_, err := r.dev.AddPort(felix.DefaultCPUPort, "", fp)
	assert.Error(t, err)
	_, err = r.dev.AddPort(0, "", fp)
	assert.Error(t, err)
	_, err = r.dev.AddPort(5, "", nil)
	assert.Error(t, err)
	p, err := r.dev.AddPort(5, "lan5", fp)
	require.NoError(t, err)
	assert.Same(t, p, r.dev.Port(5))
}

func TestProbeFailure(t *testing.T) {
	r := newRig(t)
	// Ports past the switch are rejected at probe.
	_, err := r.dev.AddPort(felix.DefaultPorts, "", phy.NewFixed(phy.SGMII, phy.Speed1000, phy.Full))
	require.NoError(t, err)
	assert.Error(t, r.ports[0].Start())
	assert.False(t, r.ports[0].Enabled())
}

type probeOrder struct {
	*felix.Switch
	order []int
}

func (o *probeOrder) PortProbe(port int, p phy.Device) error {
	o.order = append(o.order, port)
	return o.Switch.PortProbe(port, p)
}

func TestProbeOrder(t *testing.T) {
	r := newRig(t)
	ops := &probeOrder{Switch: r.sw}
	dev, err := dsa.New(ops, r.master, r.heap, dsa.Config{CPUPort: felix.DefaultCPUPort})
	require.NoError(t, err)
	for _, i := range []int{3, 0, 5, 2, 1} {
		_, err := dev.AddPort(i, "", phy.NewFixed(phy.SGMII, phy.Speed1000, phy.Full))
		require.NoError(t, err)
	}
	require.NoError(t, dev.Probe())
	assert.Equal(t, []int{felix.DefaultCPUPort, 0, 1, 2, 3, 5}, ops.order)
}

type deadMaster struct {
	dsa.Master
}

func (deadMaster) Start() error { return errors.New("no carrier") }

func TestStartMasterFailure(t *testing.T) {
	r := newRig(t)
	dev, err := dsa.New(r.sw, deadMaster{r.master}, r.heap, dsa.Config{CPUPort: felix.DefaultCPUPort})
	require.NoError(t, err)
	p, err := dev.AddPort(1, "", phy.NewFixed(phy.SGMII, phy.Speed1000, phy.Full))
	require.NoError(t, err)

	assert.Error(t, p.Start())
	assert.False(t, p.Enabled())
	assert.False(t, r.sw.Enabled(1))
	assert.False(t, r.fabric.PortEnabled(1))
	assert.False(t, r.sw.Enabled(felix.DefaultCPUPort))
	assert.False(t, r.fabric.PortEnabled(felix.DefaultCPUPort))
}
