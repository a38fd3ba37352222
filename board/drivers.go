// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package board

import (
	"github.com/platinasystems/enetc/dsa"
	"github.com/platinasystems/enetc/enetc"
	"github.com/platinasystems/enetc/felix"
)

// ENETC returns the driver configuration of p.  Transmits wait for
// completion.
func (c *Config) ENETC(p *Port) enetc.Config {
	ec := enetc.DefaultConfig
	ec.Name = p.String()
	ec.Mode = p.Mode
	ec.HwAddr = p.HwAddr
	ec.Debug = c.Debug
	return ec
}

// Felix returns the switch driver configuration.
func (s *Switch) Felix() felix.Config {
	fc := felix.DefaultConfig
	fc.Name = s.Name
	for _, p := range s.Ports {
		if p.Index >= fc.Ports {
			fc.Ports = p.Index + 1
		}
	}
	fc.CPUPort = s.CPUPort
	return fc
}

// DSA returns the port multiplexer configuration.
func (c *Config) DSA() dsa.Config {
	dc := dsa.Config{Debug: c.Debug}
	if s := c.Switch; s != nil {
		dc.CPUPort = s.CPUPort
		if p := s.Port(s.CPUPort); p != nil {
			dc.CPUPHY = p.PHY()
		}
	}
	return dc
}
