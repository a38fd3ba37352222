// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package felix

import (
	"math/bits"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/enetc/hw"
	"github.com/platinasystems/enetc/internal/sim"
	"github.com/platinasystems/enetc/mdio"
	"github.com/platinasystems/enetc/pcs"
	"github.com/platinasystems/enetc/phy"
)

type testSwitch struct {
	regs   *sim.Regs
	fabric *sim.Felix
	mdio   *sim.MDIO
	*Switch
}

func newTestSwitch(t *testing.T) *testSwitch {
	ts := &testSwitch{regs: sim.NewRegs()}
	ts.fabric = sim.NewFelix(ts.regs, nil)
	imdio := sim.NewRegs()
	ts.mdio = sim.NewMDIO(imdio, mdio.ImdioBase)
	for port := 0; port < DefaultPorts; port++ {
		ts.mdio.NewPCS(uint8(port))
	}
	c := DefaultConfig
	c.RAMInitBudget = hw.Budget{Tries: 5}
	c.PcsResetBudget = hw.Budget{Tries: 5}
	ts.Switch = New(ts.regs, mdio.New(imdio, mdio.ImdioBase), c)
	return ts
}

// extract turns an injection header into the extraction header the switch
// would put on the frame when it loops back into the same port.
func extract(t *testing.T, tag []byte) {
	mask := tag[tagInjectPortsOffset]
	require.Equal(t, 1, bits.OnesCount8(mask))
	tag[tagInjectPortsOffset] = 0
	tag[tagExtractPortOffset] = byte(bits.TrailingZeros8(mask)) << tagExtractPortShift
}

func TestTagRoundTrip(t *testing.T) {
	ts := newTestSwitch(t)
	payload := []byte("payload after the header")
	for port := 0; port < ts.PortCount(); port++ {
		f := make([]byte, HeaderLen+len(payload))
		copy(f[HeaderLen:], payload)
		require.NoError(t, ts.Xmit(port, f))
		assert.Equal(t, tagMagic[:], f[12:16])
		assert.Equal(t, byte(1<<uint(port)), f[23])
		assert.Equal(t, payload, f[HeaderLen:])

		extract(t, f)
		got, err := ts.Rcv(f)
		require.NoError(t, err)
		assert.Equal(t, port, got)
	}
}

func TestXmitBadPort(t *testing.T) {
	ts := newTestSwitch(t)
	f := make([]byte, HeaderLen)
	assert.Error(t, ts.Xmit(-1, f))
	assert.Error(t, ts.Xmit(DefaultPorts, f))
	assert.Error(t, ts.Xmit(0, f[:HeaderLen-1]))
	assert.Equal(t, make([]byte, HeaderLen), f)
}

func TestRcvMagicBitFlips(t *testing.T) {
	ts := newTestSwitch(t)
	good := make([]byte, HeaderLen)
	require.NoError(t, ts.Xmit(1, good))
	extract(t, good)
	_, err := ts.Rcv(good)
	require.NoError(t, err)

	for bit := 0; bit < 8*len(tagMagic); bit++ {
		f := append([]byte(nil), good...)
		f[tagMagicOffset+bit/8] ^= 1 << uint(bit%8)
		port, err := ts.Rcv(f)
		assert.ErrorIs(t, err, ErrProtocolMismatch, "bit %d", bit)
		assert.Equal(t, -1, port, "bit %d", bit)
	}
}

func TestRcvBadFrames(t *testing.T) {
	ts := newTestSwitch(t)
	f := make([]byte, HeaderLen)
	copy(f[tagMagicOffset:], tagMagic[:])
	f[tagExtractPortOffset] = 7 << tagExtractPortShift
	_, err := ts.Rcv(f)
	assert.ErrorIs(t, err, ErrProtocolMismatch)

	_, err = ts.Rcv(f[:20])
	assert.ErrorIs(t, err, ErrProtocolMismatch)

	// Bits outside the port field are ignored.
	f[tagExtractPortOffset] = 0x80 | 5<<tagExtractPortShift | 0x7
	port, err := ts.Rcv(f)
	require.NoError(t, err)
	assert.Equal(t, 5, port)
}

func TestInit(t *testing.T) {
	ts := newTestSwitch(t)
	require.NoError(t, ts.Init())
	r := ts.regs
	assert.Equal(t, []uint32{sysRamCtrlInit}, r.WritesTo(uint32(sysRamCtrl)))
	assert.Zero(t, sysRamCtrl.Get(r))
	assert.Equal(t, uint32(sysSystemEnable), sysSystem.Get(r))
	for _, reg := range []hw.Reg{es0TcamCtrl, is1TcamCtrl, is2TcamCtrl} {
		assert.Equal(t, uint32(tcamCtrlEnable), reg.Get(r))
	}
	assert.Equal(t, uint32(DefaultCPUPort<<8|0xff), qsysExtCPUCfg.Get(r))
	assert.Equal(t, uint32(sysPortModeCPU), r.Peek(0x010e00+0xc+4*DefaultCPUPort))
}

func TestInitTimeout(t *testing.T) {
	ts := newTestSwitch(t)
	ts.fabric.RAMInitStuck = true
	assert.ErrorIs(t, ts.Init(), ErrTimeout)
	assert.Empty(t, ts.regs.WritesTo(uint32(sysSystem)))
}

func TestPortProbeSGMII(t *testing.T) {
	ts := newTestSwitch(t)
	p := phy.NewFixed(phy.SGMII, phy.Speed1000, phy.Full)
	require.NoError(t, ts.PortProbe(2, p))
	c22 := ts.mdio.Device(2, sim.NoDevad)
	assert.Equal(t, []uint16{pcs.IfModeSGMII | pcs.IfModeSGMIIAN}, c22.WritesTo(sim.PcsIfMode))
	assert.Equal(t, []uint16{pcs.CRDefault | pcs.CRResetAN}, c22.WritesTo(sim.PcsCR))
	for port := 0; port < DefaultPorts; port++ {
		if port != 2 {
			assert.Empty(t, ts.mdio.Device(uint8(port), sim.NoDevad).Writes, "port %d", port)
		}
	}
}

func TestPortProbeRestrictsPHY(t *testing.T) {
	ts := newTestSwitch(t)
	p := phy.NewFixed(phy.Base10GR, phy.Speed10000, phy.Full)
	require.NoError(t, ts.PortProbe(1, p))
	assert.Zero(t, p.Supported()&phy.Cap10000baseTFull)
	assert.Zero(t, p.Advertising()&phy.Cap10000baseTFull)

	// Switch variant programs the replicator link timers.
	repl := ts.mdio.Device(1, sim.PcsReplicator)
	assert.Equal(t, []uint16{pcs.ReplLinkTimer1Val}, repl.WritesTo(sim.PcsLinkTimer1))
	assert.Equal(t, []uint16{pcs.ReplLinkTimer2Val}, repl.WritesTo(sim.PcsLinkTimer2))
}

func TestPortProbePcsTimeout(t *testing.T) {
	ts := newTestSwitch(t)
	delete(ts.mdio.Device(3, sim.PcsMMD).SelfClear, sim.PcsCR)
	err := ts.PortProbe(3, phy.NewFixed(phy.USXGMII, phy.Speed10000, phy.Full))
	assert.ErrorIs(t, err, pcs.ErrTimeout)
	assert.Error(t, ts.PortProbe(DefaultPorts, phy.NewFixed(phy.SGMII, phy.Speed1000, phy.Full)))
}

func TestPortEnableDisable(t *testing.T) {
	ts := newTestSwitch(t)
	r := ts.regs
	p := phy.NewFixed(phy.SGMII, phy.Speed100, phy.Full)
	require.NoError(t, ts.Init())
	require.NoError(t, ts.PortProbe(0, p))
	require.NoError(t, ts.PortEnable(0, p))

	assert.Equal(t, uint32(gmiiClockLink100M), gmiiClockCfg(0).Get(r))
	assert.Equal(t, uint32(gmiiMacIfgDefault), gmiiMacIfgCfg(0).Get(r))
	assert.Equal(t, uint32(gmiiMacEnaTx|gmiiMacEnaRx), gmiiMacEnaCfg(0).Get(r))
	assert.Equal(t, uint32(qsysSwPortEnable|qsysSwPortLossy|1<<11), qsysSwPortMode(0).Get(r))
	assert.True(t, ts.Enabled(0))
	assert.True(t, ts.fabric.PortEnabled(0))
	assert.False(t, ts.fabric.PortEnabled(1))
	assert.Equal(t, phy.Speed100, ts.Link(0).Speed)

	ts.PortDisable(0, p)
	assert.Zero(t, gmiiMacEnaCfg(0).Get(r))
	assert.Equal(t, uint32(qsysSwPortLossy|1<<11), qsysSwPortMode(0).Get(r))
	assert.False(t, ts.Enabled(0))
	assert.False(t, ts.fabric.PortEnabled(0))
	// Disable leaves the PHY running.
	assert.True(t, p.Running())

	require.NoError(t, ts.PortEnable(0, p))
	assert.True(t, ts.fabric.PortEnabled(0))
}

func TestClockCfg(t *testing.T) {
	for speed, want := range map[phy.Speed]uint32{
		phy.Speed10:    gmiiClockLink10M,
		phy.Speed100:   gmiiClockLink100M,
		phy.Speed1000:  gmiiClockLink1G,
		phy.Speed2500:  gmiiClockLink1G,
		phy.Speed10000: gmiiClockLink1G,
	} {
		assert.Equal(t, want, clockCfg(speed), "%v", speed)
	}
}
