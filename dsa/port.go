// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package dsa

import (
	"fmt"
	"net"

	"github.com/mdlayher/ethernet"

	"github.com/platinasystems/enetc/phy"
)

// Port is one front panel switch port.
type Port struct {
	Index int
	Name  string
	PHY   phy.Device

	// Source address for SendFrame when a frame has none.
	HardwareAddr net.HardwareAddr

	dev     *Device
	enabled bool
}

func (p *Port) String() string { return p.Name }

func (p *Port) Enabled() bool { return p.enabled }

// Start enables the port and the CPU port in the switch and starts the
// master.
func (p *Port) Start() (err error) {
	d := p.dev
	if err = d.Probe(); err != nil {
		return
	}
	if err = d.ops.PortEnable(p.Index, p.PHY); err != nil {
		return fmt.Errorf("%v: %w", p, err)
	}
	if err = d.ops.PortEnable(d.CPUPort, d.CPUPHY); err != nil {
		d.ops.PortDisable(p.Index, p.PHY)
		return fmt.Errorf("%v: cpu port: %w", p, err)
	}
	if err = d.master.Start(); err != nil {
		d.ops.PortDisable(p.Index, p.PHY)
		if !d.anyEnabled() {
			d.ops.PortDisable(d.CPUPort, d.CPUPHY)
		}
		return fmt.Errorf("%v: master: %w", p, err)
	}
	p.enabled = true
	return
}

// Stop disables the port in the switch.  The master and CPU port keep
// running for other ports.
func (p *Port) Stop() {
	p.dev.ops.PortDisable(p.Index, p.PHY)
	p.enabled = false
}

// Send transmits payload, padded to the minimum frame size, out of the
// port.
func (p *Port) Send(payload []byte) error {
	if !p.enabled {
		return fmt.Errorf("%v: %w", p, ErrPortDown)
	}
	return p.dev.send(p.Index, payload)
}

// Recv returns the next frame received on the master if it arrived on this
// port, else ErrOtherPort.  Frames for other ports are dropped; use
// Device.Recv to demultiplex.
func (p *Port) Recv() ([]byte, error) {
	if !p.enabled {
		return nil, fmt.Errorf("%v: %w", p, ErrPortDown)
	}
	i, b, err := p.dev.recv()
	if err != nil {
		return nil, err
	}
	if i != p.Index {
		return nil, fmt.Errorf("%v: frame from port %d: %w", p, i, ErrOtherPort)
	}
	return b, nil
}

func (p *Port) SendFrame(f *ethernet.Frame) error {
	if f.Source == nil {
		f.Source = p.HardwareAddr
	}
	b, err := f.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%v: %w", p, err)
	}
	return p.Send(b)
}

func (p *Port) RecvFrame() (*ethernet.Frame, error) {
	b, err := p.Recv()
	if err != nil {
		return nil, err
	}
	f := new(ethernet.Frame)
	if err = f.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%v: %w", p, err)
	}
	return f, nil
}
