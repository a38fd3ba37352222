// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package felix drives a Felix Ethernet switch whose CPU port is an ENETC
// station interface.  Frames to and from the CPU carry an
// injection/extraction header naming the front panel port.
package felix

import (
	"errors"
	"fmt"
	"time"

	"github.com/platinasystems/log"

	"github.com/platinasystems/enetc/hw"
	"github.com/platinasystems/enetc/pcs"
	"github.com/platinasystems/enetc/phy"
)

var ErrTimeout = errors.New("switch memory init timeout")

// Modes and speeds a switch port supports regardless of what the PHY claims.
const supportedFeatures = phy.GbitFeatures | phy.Cap2500baseXFull

type Config struct {
	Name string

	// Number of switch ports including CPU ports.
	Ports int

	// Port wired to the ENETC station interface.
	CPUPort int

	RAMInitBudget  hw.Budget
	PcsResetBudget hw.Budget
}

const (
	DefaultPorts   = 6
	DefaultCPUPort = 4
)

var DefaultConfig = Config{
	Name:           "felix",
	Ports:          DefaultPorts,
	CPUPort:        DefaultCPUPort,
	RAMInitBudget:  hw.Budget{Tries: 40000, Delay: time.Microsecond},
	PcsResetBudget: pcs.DefaultResetBudget,
}

type portState struct {
	phy     phy.Device
	link    phy.Link
	probed  bool
	enabled bool
}

type Switch struct {
	Config
	w     hw.Window
	mdio  pcs.Bus
	ports []portState
}

// New returns the switch with core registers in w and port PCS blocks
// behind the internal MDIO bus.
func New(w hw.Window, bus pcs.Bus, c Config) *Switch {
	d := &DefaultConfig
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.Ports == 0 {
		c.Ports, c.CPUPort = d.Ports, d.CPUPort
	}
	if c.RAMInitBudget.Tries == 0 {
		c.RAMInitBudget = d.RAMInitBudget
	}
	if c.PcsResetBudget.Tries == 0 {
		c.PcsResetBudget = d.PcsResetBudget
	}
	return &Switch{Config: c, w: w, mdio: bus, ports: make([]portState, c.Ports)}
}

func (s *Switch) String() string { return s.Name }

func (s *Switch) PortCount() int { return s.Ports }

func (s *Switch) checkPort(port int) error {
	if port < 0 || port >= s.Ports {
		return fmt.Errorf("%v: no port %d", s, port)
	}
	return nil
}

// Init initializes core memories, starts the core and classifiers and sets
// up the CPU port for tagged frames.
func (s *Switch) Init() error {
	if err := s.checkPort(s.CPUPort); err != nil {
		return fmt.Errorf("cpu port: %w", err)
	}
	sysRamCtrl.Set(s.w, sysRamCtrlInit)
	if !s.RAMInitBudget.Poll(func() bool { return sysRamCtrl.Get(s.w)&sysRamCtrlInit == 0 }) {
		log.Print("daemon", "err", s, ": core memory init did not complete after ", s.RAMInitBudget)
		return fmt.Errorf("%v: %w", s, ErrTimeout)
	}

	sysSystem.Set(s.w, sysSystemEnable)
	es0TcamCtrl.Set(s.w, tcamCtrlEnable)
	is1TcamCtrl.Set(s.w, tcamCtrlEnable)
	is2TcamCtrl.Set(s.w, tcamCtrlEnable)

	qsysExtCPUCfg.Set(s.w, qsysExtCPUPort(s.CPUPort))
	sysPortMode(s.CPUPort).Set(s.w, sysPortModeCPU)
	return nil
}

// PortProbe narrows the PHY to what the port supports, brings up the
// port's PCS and configures the PHY.
func (s *Switch) PortProbe(port int, p phy.Device) (err error) {
	if err = s.checkPort(port); err != nil {
		return
	}
	p.Restrict(supportedFeatures)
	lc := pcs.NewLinkConfig(p.Interface(), pcs.Switch)
	if err = pcs.Configure(s.mdio, uint8(port), lc, s.PcsResetBudget); err != nil {
		return fmt.Errorf("%v port %d: %w", s, port, err)
	}
	if err = p.Config(); err != nil {
		return fmt.Errorf("%v port %d: phy config: %w", s, port, err)
	}
	s.ports[port] = portState{phy: p, probed: true}
	return
}

// PortEnable starts the PHY then enables the port MAC at the negotiated
// speed and admits its traffic to the queue system.
func (s *Switch) PortEnable(port int, p phy.Device) (err error) {
	if err = s.checkPort(port); err != nil {
		return
	}
	ps := &s.ports[port]
	if ps.link, err = p.Startup(); err != nil {
		return fmt.Errorf("%v port %d: phy startup: %w", s, port, err)
	}
	gmiiClockCfg(port).Set(s.w, clockCfg(ps.link.Speed))
	gmiiMacIfgCfg(port).Set(s.w, gmiiMacIfgDefault)
	gmiiMacEnaCfg(port).Set(s.w, gmiiMacEnaTx|gmiiMacEnaRx)
	qsysSwPortMode(port).Set(s.w, qsysSwPortEnable|qsysSwPortLossy|qsysSwPortSched(1))
	ps.phy, ps.enabled = p, true
	log.Print("daemon", "info", s, " port ", port, ": link ", ps.link)
	return
}

// PortDisable stops the port MAC and queue admission.  The PHY keeps its
// link so the next enable does not renegotiate.
func (s *Switch) PortDisable(port int, p phy.Device) {
	if s.checkPort(port) != nil {
		return
	}
	gmiiMacEnaCfg(port).Set(s.w, 0)
	qsysSwPortMode(port).Set(s.w, qsysSwPortLossy|qsysSwPortSched(1))
	s.ports[port].enabled = false
}

// Enabled reports whether PortEnable succeeded on port without a later
// PortDisable.
func (s *Switch) Enabled(port int) bool {
	return s.checkPort(port) == nil && s.ports[port].enabled
}

// Link returns the link the PHY reported when port was last enabled.
func (s *Switch) Link(port int) phy.Link {
	if s.checkPort(port) != nil {
		return phy.Link{}
	}
	return s.ports[port].link
}

// clockCfg returns the GMII clock for speed.  Speeds above 1G run on the
// 1G clock; the SerDes PLL sets the real rate.
func clockCfg(speed phy.Speed) uint32 {
	switch speed {
	case phy.Speed10:
		return gmiiClockLink10M
	case phy.Speed100:
		return gmiiClockLink100M
	}
	return gmiiClockLink1G
}
