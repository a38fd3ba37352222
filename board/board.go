// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package board gathers the facts the drivers need from the board's
// flattened device tree: per port interface mode, MAC address and fixed
// links, and for a switch its CPU port and front panel ports.
package board

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/platinasystems/fdt"

	"github.com/platinasystems/enetc/phy"
)

var ErrNoMode = errors.New("no phy-mode")

const (
	CompatibleENETC = "fsl,enetc"
	CompatibleFelix = "mscc,felix-switch"
)

type FixedLink struct {
	Speed  phy.Speed
	Duplex phy.Duplex
}

// Port is a NIC or a switch port.
type Port struct {
	// Device tree node name, e.g. ethernet@0,2 or port@1.
	Name  string
	Label string
	// Switch port number.
	Index int

	Mode   phy.Interface
	HwAddr net.HardwareAddr
	Fixed  *FixedLink

	// Switch port wired to a NIC.
	CPU bool
}

func (p *Port) String() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

// PHY returns the fixed link PHY of p or nil when p has a real PHY.
func (p *Port) PHY() phy.Device {
	if p.Fixed == nil {
		return nil
	}
	return phy.NewFixed(p.Mode, p.Fixed.Speed, p.Fixed.Duplex)
}

type Switch struct {
	Name    string
	Ports   []Port
	CPUPort int
	// Bit per enabled non-CPU port.
	FrontPanel uint32
}

// Port returns the switch port numbered i.
func (s *Switch) Port(i int) *Port {
	for j := range s.Ports {
		if s.Ports[j].Index == i {
			return &s.Ports[j]
		}
	}
	return nil
}

func (s *Switch) update() {
	s.FrontPanel = 0
	for i := range s.Ports {
		p := &s.Ports[i]
		p.CPU = p.Index == s.CPUPort
		if !p.CPU {
			s.FrontPanel |= 1 << uint(p.Index)
		}
	}
}

type Config struct {
	NICs   []Port
	Switch *Switch
	Debug  bool
}

// NIC returns the NIC with the given node name or label.
func (c *Config) NIC(name string) *Port {
	for i := range c.NICs {
		if p := &c.NICs[i]; p.Name == name || p.Label == name {
			return p
		}
	}
	return nil
}

// Flattened device tree header: magic, total size, struct and strings
// offsets, then six more cells.
const (
	fdtMagic     = 0xd00dfeed
	fdtHeaderLen = 40
)

// ParseBlob parses a flattened device tree blob.  A malformed blob is an
// error.
func ParseBlob(b []byte) (*Config, error) {
	if len(b) < fdtHeaderLen {
		return nil, fmt.Errorf("device tree: %d byte blob", len(b))
	}
	if m := binary.BigEndian.Uint32(b[0:]); m != fdtMagic {
		return nil, fmt.Errorf("device tree: bad magic 0x%08x", m)
	}
	size := binary.BigEndian.Uint32(b[4:])
	if size < fdtHeaderLen || uint64(size) > uint64(len(b)) {
		return nil, fmt.Errorf("device tree: total size %d of %d byte blob", size, len(b))
	}
	b = b[:size]
	for _, o := range []uint32{binary.BigEndian.Uint32(b[8:]), binary.BigEndian.Uint32(b[12:])} {
		if o < fdtHeaderLen || o >= size {
			return nil, fmt.Errorf("device tree: block offset %d outside %d bytes", o, size)
		}
	}
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	if err := parseTree(t, b); err != nil {
		return nil, fmt.Errorf("device tree: %w", err)
	}
	if t.RootNode == nil {
		return nil, fmt.Errorf("device tree: no root node")
	}
	return Parse(t)
}

// parseTree runs the fdt parser, which indexes the blob unchecked.
func parseTree(t *fdt.Tree, b []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("truncated or corrupt blob: %v", r)
		}
	}()
	return t.Parse(b)
}

// Parse gathers every enabled ENETC and Felix switch node of t.
func Parse(t *fdt.Tree) (c *Config, err error) {
	c = new(Config)
	var nics, switches []*fdt.Node
	t.EachProperty("compatible", "", func(n *fdt.Node, name, value string) {
		if !enabled(t, n) {
			return
		}
		switch {
		case compatible(t, n, CompatibleENETC):
			nics = append(nics, n)
		case compatible(t, n, CompatibleFelix):
			switches = append(switches, n)
		}
	})
	sort.Slice(nics, func(i, j int) bool { return nics[i].Name < nics[j].Name })
	for _, n := range nics {
		p := Port{Name: n.Name, Index: -1}
		if err = parsePort(t, n, &p); err != nil {
			return nil, err
		}
		c.NICs = append(c.NICs, p)
	}
	switch len(switches) {
	case 0:
	case 1:
		if c.Switch, err = parseSwitch(t, switches[0]); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%d %s nodes", len(switches), CompatibleFelix)
	}
	return
}

func compatible(t *fdt.Tree, n *fdt.Node, s string) bool {
	for _, v := range t.PropStringSlice(n.Properties["compatible"]) {
		if v == s {
			return true
		}
	}
	return false
}

func enabled(t *fdt.Tree, n *fdt.Node) bool {
	v, ok := n.Properties["status"]
	if !ok {
		return true
	}
	s := t.PropString(v)
	return s == "okay" || s == "ok"
}

func parsePort(t *fdt.Tree, n *fdt.Node, p *Port) (err error) {
	mode, ok := n.Properties["phy-mode"]
	if !ok {
		mode, ok = n.Properties["phy-connection-type"]
	}
	if !ok {
		return fmt.Errorf("%s: %w", n.Name, ErrNoMode)
	}
	if p.Mode, err = phy.ParseInterface(t.PropString(mode)); err != nil {
		return fmt.Errorf("%s: %w", n.Name, err)
	}
	if v, ok := n.Properties["label"]; ok {
		p.Label = t.PropString(v)
	}
	if v, ok := n.Properties["local-mac-address"]; ok {
		if len(v) != 6 {
			return fmt.Errorf("%s: %d byte local-mac-address", n.Name, len(v))
		}
		p.HwAddr = append(net.HardwareAddr(nil), v...)
	}
	p.Fixed, err = fixedLink(t, n)
	if err != nil {
		return fmt.Errorf("%s: %w", n.Name, err)
	}
	return
}

// fixedLink parses either a fixed-link subnode or the older five cell
// property <id duplex speed pause asym-pause>.
func fixedLink(t *fdt.Tree, n *fdt.Node) (*FixedLink, error) {
	if fl, ok := n.Children["fixed-link"]; ok {
		v, ok := fl.Properties["speed"]
		if !ok || len(v) != 4 {
			return nil, fmt.Errorf("fixed-link without speed")
		}
		_, full := fl.Properties["full-duplex"]
		return &FixedLink{Speed: phy.Speed(t.PropUint32(v)), Duplex: phy.Duplex(full)}, nil
	}
	if v, ok := n.Properties["fixed-link"]; ok {
		cells := t.PropUint32Slice(v)
		if len(cells) != 5 {
			return nil, fmt.Errorf("fixed-link with %d cells", len(cells))
		}
		return &FixedLink{Speed: phy.Speed(cells[2]), Duplex: phy.Duplex(cells[1] != 0)}, nil
	}
	return nil, nil
}

func parseSwitch(t *fdt.Tree, n *fdt.Node) (*Switch, error) {
	s := &Switch{Name: n.Name, CPUPort: -1}
	ports := n.Children["ports"]
	if ports == nil {
		return nil, fmt.Errorf("%s: no ports", n.Name)
	}
	for name, pn := range ports.Children {
		if !strings.HasPrefix(name, "port@") || !enabled(t, pn) {
			continue
		}
		reg, ok := pn.Properties["reg"]
		if !ok || len(reg) != 4 {
			return nil, fmt.Errorf("%s/%s: no reg", n.Name, name)
		}
		p := Port{Name: name, Index: int(t.PropUint32(reg))}
		if err := parsePort(t, pn, &p); err != nil {
			return nil, fmt.Errorf("%s/%w", n.Name, err)
		}
		if _, ok := pn.Properties["ethernet"]; ok {
			if s.CPUPort >= 0 {
				return nil, fmt.Errorf("%s: cpu ports %d and %d", n.Name, s.CPUPort, p.Index)
			}
			s.CPUPort = p.Index
		}
		s.Ports = append(s.Ports, p)
	}
	if s.CPUPort < 0 {
		return nil, fmt.Errorf("%s: no cpu port", n.Name)
	}
	sort.Slice(s.Ports, func(i, j int) bool { return s.Ports[i].Index < s.Ports[j].Index })
	s.update()
	return s, nil
}
