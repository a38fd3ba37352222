// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package enetc

import (
	"net"

	"github.com/platinasystems/enetc/hw"
	"github.com/platinasystems/enetc/phy"
)

// setupMacIface adapts the MAC interface mode register to the link the PHY
// negotiated.  It reports whether the register was written.
func setupMacIface(w hw.Window, mode phy.Interface, l phy.Link) bool {
	old := pmIfMode.Get(w)
	v := old
	switch {
	case mode.IsRGMII():
		// In band status is not used on RGMII.
		v &^= pmIfModeAutoneg | pmIfModeSpeedMask | pmIfModeFullDpx
		switch l.Speed {
		case phy.Speed1000:
			v |= pmIfModeSpeed1000
		case phy.Speed100:
			v |= pmIfModeSpeed100
		case phy.Speed10:
			v |= pmIfModeSpeed10
		}
		if l.Duplex == phy.Full {
			v |= pmIfModeFullDpx
		}
	case mode.IsSXGMII(), mode == phy.XGMII:
		v &^= pmIfModeMask
	default:
		return false
	}
	if v == old {
		return false
	}
	pmIfMode.Set(w, v)
	return true
}

// enablePort gives station interface 0 all rings and turns on the MAC.
func enablePort(w hw.Window, txRings, rxRings uint32, maxFrame uint32) {
	psicfgr0.Set(w, rxRings<<16|txRings)
	pmMaxFrame.Set(w, maxFrame)
	pmCommandConfig.Set(w, pmCommandConfigRxTxEnable)
	pmr.Or(w, pmrSI0Enable)
	sicar0.Set(w, sicarRdCoherent|sicarWrCoherent)
	simr.Set(w, simrEnable)
}

func disablePort(w hw.Window) {
	simr.Set(w, 0)
	pmr.AndNot(w, pmrSI0Enable)
}

// setPrimaryMAC programs the station interface 0 address: bytes 0-3 in
// PSIPMAR0 least significant first, bytes 4-5 in PSIPMAR1.
func setPrimaryMAC(w hw.Window, a net.HardwareAddr) {
	psipmar0.Set(w, uint32(a[0])|uint32(a[1])<<8|uint32(a[2])<<16|uint32(a[3])<<24)
	psipmar1.Set(w, uint32(a[4])|uint32(a[5])<<8)
}

func primaryMAC(w hw.Window) net.HardwareAddr {
	lo, hi := psipmar0.Get(w), psipmar1.Get(w)
	return net.HardwareAddr{byte(lo), byte(lo >> 8), byte(lo >> 16), byte(lo >> 24), byte(hi), byte(hi >> 8)}
}
