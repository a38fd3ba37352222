// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package board

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/enetc/phy"
)

// Override applies boot argument overrides to c and returns the remaining
// arguments:
//
//	-phy-mode NAME:MODE  NAME is a NIC, swpN or a port label; repeatable
//	-cpu-port N          switch port wired to the NIC
//	-ethaddr MAC         first NIC's MAC address
//	-no-switch           ignore the switch
//	-debug               trace every frame
func (c *Config) Override(args []string) ([]string, error) {
	parm, args := parms.New(args, "-phy-mode", "-cpu-port", "-ethaddr")
	flag, args := flags.New(args, "-no-switch", "-debug")

	if flag.ByName["-no-switch"] {
		c.Switch = nil
	}
	if flag.ByName["-debug"] {
		c.Debug = true
	}
	for _, s := range strings.Fields(parm.ByName["-phy-mode"]) {
		i := strings.LastIndex(s, ":")
		if i < 0 {
			return args, fmt.Errorf("-phy-mode %q: want NAME:MODE", s)
		}
		p := c.port(s[:i])
		if p == nil {
			return args, fmt.Errorf("-phy-mode %q: no port %s", s, s[:i])
		}
		mode, err := phy.ParseInterface(s[i+1:])
		if err != nil {
			return args, fmt.Errorf("-phy-mode %q: %w", s, err)
		}
		p.Mode = mode
	}
	if s := parm.ByName["-cpu-port"]; s != "" {
		if c.Switch == nil {
			return args, fmt.Errorf("-cpu-port %s: no switch", s)
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return args, fmt.Errorf("-cpu-port %s: %w", s, err)
		}
		if c.Switch.Port(i) == nil {
			return args, fmt.Errorf("-cpu-port %s: no such port", s)
		}
		c.Switch.CPUPort = i
		c.Switch.update()
	}
	if s := parm.ByName["-ethaddr"]; s != "" {
		a, err := net.ParseMAC(s)
		if err != nil {
			return args, fmt.Errorf("-ethaddr: %w", err)
		}
		if len(a) != 6 || len(c.NICs) == 0 {
			return args, fmt.Errorf("-ethaddr %s: no ethernet NIC", s)
		}
		c.NICs[0].HwAddr = a
	}
	return args, nil
}

func (c *Config) port(name string) *Port {
	if p := c.NIC(name); p != nil {
		return p
	}
	if c.Switch == nil {
		return nil
	}
	for i := range c.Switch.Ports {
		p := &c.Switch.Ports[i]
		if p.Label == name || p.Name == name || fmt.Sprintf("swp%d", p.Index) == name {
			return p
		}
	}
	return nil
}
