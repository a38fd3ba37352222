// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package dsa makes the ports of a switch usable as network interfaces
// multiplexed over the one master NIC wired to the switch CPU port.  Every
// frame carries a switch specific header naming its port.
package dsa

import (
	"errors"
	"fmt"
	"sort"

	"github.com/platinasystems/log"

	"github.com/platinasystems/enetc/hw"
	"github.com/platinasystems/enetc/phy"
)

var (
	ErrTooLong   = errors.New("frame too long")
	ErrRunt      = errors.New("frame shorter than switch tag")
	ErrOtherPort = errors.New("frame for another port")
	ErrPortDown  = errors.New("port not started")
)

// Ops is the switch side: port bring-up and the tag format.
type Ops interface {
	PortProbe(port int, p phy.Device) error
	PortEnable(port int, p phy.Device) error
	PortDisable(port int, p phy.Device)

	// Xmit writes the tag for port into the first head bytes of a frame.
	Xmit(port int, tag []byte) error
	// Rcv validates the tag of a received frame and returns its port.
	Rcv(tag []byte) (port int, err error)

	TagLen() (head, tail int)
}

// Master is the NIC carrying tagged frames.  Send must be done with buf
// when it returns.
type Master interface {
	Start() error
	Send(buf hw.Mem, n int) error
	Recv() ([]byte, error)
}

// Shortest untagged frame, excluding FCS.
const MinFrame = 60

const DefaultMaxFrame = 1536

type Config struct {
	CPUPort int
	// Link between the CPU port and the master, usually fixed.
	CPUPHY phy.Device

	// Largest tagged frame.
	MaxFrame int

	Debug bool
}

type Device struct {
	Config
	ops    Ops
	master Master
	head   int
	tail   int

	// Tagged transmit frames are built here.
	buf hw.Mem

	ports  map[int]*Port
	probed bool
}

// New returns a device with the switch ops behind master.  The transmit
// scratch buffer comes from d.
func New(ops Ops, master Master, d hw.DMA, c Config) (*Device, error) {
	if c.MaxFrame == 0 {
		c.MaxFrame = DefaultMaxFrame
	}
	if c.CPUPHY == nil {
		c.CPUPHY = phy.NewFixed(phy.Internal, phy.Speed2500, phy.Full)
	}
	dev := &Device{Config: c, ops: ops, master: master, ports: make(map[int]*Port)}
	dev.head, dev.tail = ops.TagLen()
	if dev.head+MinFrame+dev.tail > c.MaxFrame {
		return nil, fmt.Errorf("dsa: %d byte max frame < %d byte tagged minimum",
			c.MaxFrame, dev.head+MinFrame+dev.tail)
	}
	var err error
	if dev.buf, err = d.AllocAligned(uint(c.MaxFrame), 6); err != nil {
		return nil, fmt.Errorf("dsa: tx buffer: %w", err)
	}
	return dev, nil
}

// Headroom returns the tag length before and after each frame.
func (d *Device) Headroom() (head, tail int) { return d.head, d.tail }

// AddPort adds front panel port index with PHY p.
func (d *Device) AddPort(index int, name string, p phy.Device) (*Port, error) {
	if index == d.CPUPort {
		return nil, fmt.Errorf("dsa: port %d is the cpu port", index)
	}
	if _, dup := d.ports[index]; dup {
		return nil, fmt.Errorf("dsa: port %d already added", index)
	}
	if p == nil {
		return nil, fmt.Errorf("dsa: port %d has no phy", index)
	}
	if name == "" {
		name = fmt.Sprintf("swp%d", index)
	}
	port := &Port{Index: index, Name: name, PHY: p, dev: d}
	d.ports[index] = port
	return port, nil
}

func (d *Device) Port(index int) *Port { return d.ports[index] }

// Probe probes the CPU port then every added port in index order.
func (d *Device) Probe() (err error) {
	if d.probed {
		return
	}
	if err = d.ops.PortProbe(d.CPUPort, d.CPUPHY); err != nil {
		return fmt.Errorf("dsa: cpu port: %w", err)
	}
	for _, p := range d.sortedPorts() {
		if err = d.ops.PortProbe(p.Index, p.PHY); err != nil {
			return fmt.Errorf("dsa: %s: %w", p.Name, err)
		}
	}
	d.probed = true
	return
}

// sortedPorts returns the added ports in index order.
func (d *Device) sortedPorts() []*Port {
	ports := make([]*Port, 0, len(d.ports))
	for _, p := range d.ports {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Index < ports[j].Index })
	return ports
}

// anyEnabled reports whether some port is started.
func (d *Device) anyEnabled() bool {
	for _, p := range d.ports {
		if p.enabled {
			return true
		}
	}
	return false
}

// send tags payload for port and sends it on the master.
func (d *Device) send(port int, payload []byte) (err error) {
	n := len(payload)
	if n < MinFrame {
		n = MinFrame
	}
	total := d.head + n + d.tail
	if total > d.buf.Len() {
		return fmt.Errorf("dsa: %d byte frame: %w", len(payload), ErrTooLong)
	}
	b := d.buf.Bytes
	zero(b[:d.head])
	copy(b[d.head:], payload)
	zero(b[d.head+len(payload) : total])
	if err = d.ops.Xmit(port, b[:d.head]); err != nil {
		return
	}
	if d.Debug {
		log.Printf("daemon", "debug", "dsa: tx port %d len %d", port, n)
	}
	return d.master.Send(d.buf, total)
}

// recv receives the next frame from the master and returns its port index
// and payload.
func (d *Device) recv() (port int, payload []byte, err error) {
	port = -1
	b, err := d.master.Recv()
	if err != nil {
		return
	}
	if len(b) <= d.head+d.tail {
		err = fmt.Errorf("dsa: %d byte frame: %w", len(b), ErrRunt)
		return
	}
	if port, err = d.ops.Rcv(b[:d.head]); err != nil {
		err = fmt.Errorf("dsa: %w", err)
		return
	}
	payload = b[d.head : len(b)-d.tail]
	if d.Debug {
		log.Printf("daemon", "debug", "dsa: rx port %d len %d", port, len(payload))
	}
	return
}

// Recv receives the next frame from the master and returns the port it
// arrived on with the tag stripped.
func (d *Device) Recv() (*Port, []byte, error) {
	i, b, err := d.recv()
	if err != nil {
		return nil, nil, err
	}
	p := d.ports[i]
	if p == nil || !p.enabled {
		return nil, nil, fmt.Errorf("dsa: port %d: %w", i, ErrPortDown)
	}
	return p, b, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
