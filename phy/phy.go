// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package phy defines the contract between MAC drivers and the board's
// PHYs: interface modes, link results and capability masks.
package phy

import (
	"fmt"
	"strings"
)

// Interface is the MAC to PHY electrical/link layer mode.
type Interface uint8

const (
	None Interface = iota
	Internal
	RGMII
	RGMIIID
	RGMIIRXID
	RGMIITXID
	SGMII
	Base2500X
	QSGMII
	XGMII
	USXGMII
	Base10GR
)

var interfaceNames = [...]string{
	None:      "",
	Internal:  "internal",
	RGMII:     "rgmii",
	RGMIIID:   "rgmii-id",
	RGMIIRXID: "rgmii-rxid",
	RGMIITXID: "rgmii-txid",
	SGMII:     "sgmii",
	Base2500X: "2500base-x",
	QSGMII:    "qsgmii",
	XGMII:     "xgmii",
	USXGMII:   "usxgmii",
	Base10GR:  "10gbase-r",
}

func (i Interface) String() string {
	if int(i) < len(interfaceNames) {
		if i == None {
			return "none"
		}
		return interfaceNames[i]
	}
	return fmt.Sprintf("interface %d", i)
}

// ParseInterface maps a device tree phy-mode string to an Interface.
func ParseInterface(s string) (Interface, error) {
	s = strings.ToLower(strings.TrimRight(s, "\x00"))
	if s == "10gbase-kr" {
		return Base10GR, nil
	}
	for i, n := range interfaceNames {
		if n != "" && n == s {
			return Interface(i), nil
		}
	}
	return None, fmt.Errorf("unknown phy-mode %q", s)
}

func (i Interface) IsRGMII() bool { return i >= RGMII && i <= RGMIITXID }

// IsSGMII is true for modes carried by the SGMII PCS.
func (i Interface) IsSGMII() bool { return i == SGMII || i == Base2500X || i == QSGMII }

// IsSXGMII is true for modes carried by the (U)SXGMII PCS.
func (i Interface) IsSXGMII() bool { return i == USXGMII || i == Base10GR }

type Speed int

const (
	Speed10    Speed = 10
	Speed100   Speed = 100
	Speed1000  Speed = 1000
	Speed2500  Speed = 2500
	Speed10000 Speed = 10000
)

func (s Speed) String() string {
	if s >= 1000 && s%1000 == 0 {
		return fmt.Sprintf("%dG", s/1000)
	}
	if s == Speed2500 {
		return "2.5G"
	}
	return fmt.Sprintf("%dM", int(s))
}

type Duplex bool

const (
	Half Duplex = false
	Full Duplex = true
)

func (d Duplex) String() string {
	if d == Full {
		return "full"
	}
	return "half"
}

// Link is the result of a completed negotiation.
type Link struct {
	Up     bool
	Speed  Speed
	Duplex Duplex
}

func (l Link) String() string {
	if !l.Up {
		return "down"
	}
	return fmt.Sprintf("up %v %v duplex", l.Speed, l.Duplex)
}

// Caps is a supported/advertised capability mask.
type Caps uint32

const (
	Cap10baseTHalf Caps = 1 << iota
	Cap10baseTFull
	Cap100baseTHalf
	Cap100baseTFull
	Cap1000baseTHalf
	Cap1000baseTFull
	CapAutoneg
	CapTP
	CapAUI
	CapMII
	CapFibre
	CapBNC
	Cap10000baseTFull
	CapPause
	CapAsymPause
	Cap2500baseXFull
)

const (
	BasicFeatures = Cap10baseTHalf | Cap10baseTFull | Cap100baseTHalf | Cap100baseTFull | CapAutoneg | CapTP | CapMII
	GbitFeatures  = BasicFeatures | Cap1000baseTHalf | Cap1000baseTFull
)

var capNames = [...]string{
	"10baseT/half", "10baseT/full", "100baseT/half", "100baseT/full",
	"1000baseT/half", "1000baseT/full", "autoneg", "tp", "aui", "mii",
	"fibre", "bnc", "10000baseT/full", "pause", "asym-pause", "2500baseX/full",
}

func (c Caps) String() (s string) {
	for i, n := range capNames {
		if c&(1<<uint(i)) != 0 {
			if s != "" {
				s += ", "
			}
			s += n
		}
	}
	return
}

// Device is a PHY as seen by a MAC driver.  Negotiation itself belongs to
// the implementation.
type Device interface {
	Interface() Interface
	Supported() Caps
	Advertising() Caps
	// Restrict narrows both supported and advertised capabilities to c.
	Restrict(c Caps)
	Config() error
	// Startup waits for link and returns its negotiated speed and duplex.
	Startup() (Link, error)
	Shutdown() error
}
