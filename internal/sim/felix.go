// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package sim

import "bytes"

// Felix switch core registers seen by the model.
const (
	felixRamCtrl     = 0x010f24
	felixRamCtrlInit = 1 << 1

	felixMacEna    = 0x10001c
	felixMacEnaTx  = 1 << 0
	felixMacEnaRx  = 1 << 4
	felixGmiiPort  = 0x10000
	felixSwPort    = 0x20f480
	felixSwPortEna = 1 << 14

	felixTagLen      = 32
	felixInjectPorts = 23
	felixExtractPort = 26
)

var felixMagic = []byte{0x88, 0x80, 0x00, 0x0a}

// Felix models the switch fabric behind the CPU port NIC: tagged frames the
// NIC transmits leave the ports named in the injection mask, and frames
// arriving on a port reach the NIC with an extraction header.
type Felix struct {
	Regs *Regs
	NIC  *ENETC

	// Memory init never completes.
	RAMInitStuck bool

	// Egress frames loop back into the port they leave.
	Loopback bool

	// Untagged payloads sent out of each port in order.
	Egress map[int][][]byte

	// Frames from the NIC without a valid injection header.
	Dropped int
}

// NewFelix attaches the fabric to nic, if any; r holds the switch core
// registers.
func NewFelix(r *Regs, nic *ENETC) *Felix {
	f := &Felix{Regs: r, NIC: nic, Egress: make(map[int][][]byte)}
	r.OnWrite(felixRamCtrl, func(v uint32) {
		if !f.RAMInitStuck {
			r.Poke(felixRamCtrl, v&^felixRamCtrlInit)
		}
	})
	if nic != nil {
		nic.OnTx = f.inject
	}
	return f
}

// PortEnabled reports whether the port MAC and queue system admit
// traffic.
func (f *Felix) PortEnabled(port int) bool {
	mac := f.Regs.Peek(felixMacEna + uint32(port)*felixGmiiPort)
	sw := f.Regs.Peek(felixSwPort + uint32(port)*4)
	return mac&(felixMacEnaTx|felixMacEnaRx) == felixMacEnaTx|felixMacEnaRx && sw&felixSwPortEna != 0
}

func (f *Felix) inject(frame []byte) {
	if len(frame) < felixTagLen || !bytes.Equal(frame[12:16], felixMagic) {
		f.Dropped++
		return
	}
	payload := frame[felixTagLen:]
	mask := frame[felixInjectPorts]
	for port := 0; port < 8; port++ {
		if mask&(1<<uint(port)) == 0 || !f.PortEnabled(port) {
			continue
		}
		f.Egress[port] = append(f.Egress[port], append([]byte(nil), payload...))
		if f.Loopback {
			f.Ingress(port, payload)
		}
	}
}

// Ingress delivers payload arriving on port to the NIC.  It returns false
// when the port is disabled or the NIC ring is full.
func (f *Felix) Ingress(port int, payload []byte) bool {
	if !f.PortEnabled(port) {
		return false
	}
	b := make([]byte, felixTagLen+len(payload))
	copy(b[12:], felixMagic)
	b[felixExtractPort] = byte(port) << 3
	copy(b[felixTagLen:], payload)
	return f.NIC.Inject(b, 0)
}
