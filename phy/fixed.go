// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package phy

// Fixed is a PHY-less link, e.g. a device tree fixed-link or the internal
// link between a switch CPU port and its NIC.
type Fixed struct {
	Mode        Interface
	Speed       Speed
	Duplex      Duplex
	supported   Caps
	advertising Caps
	running     bool
}

func NewFixed(mode Interface, speed Speed, duplex Duplex) *Fixed {
	f := &Fixed{Mode: mode, Speed: speed, Duplex: duplex}
	f.supported = speedCaps(speed, duplex)
	f.advertising = f.supported
	return f
}

func speedCaps(s Speed, d Duplex) (c Caps) {
	switch s {
	case Speed10:
		c = Cap10baseTHalf
		if d == Full {
			c = Cap10baseTFull
		}
	case Speed100:
		c = Cap100baseTHalf
		if d == Full {
			c = Cap100baseTFull
		}
	case Speed1000:
		c = Cap1000baseTHalf
		if d == Full {
			c = Cap1000baseTFull
		}
	case Speed2500:
		c = Cap2500baseXFull
	case Speed10000:
		c = Cap10000baseTFull
	}
	return c | CapMII
}

func (f *Fixed) Interface() Interface { return f.Mode }
func (f *Fixed) Supported() Caps      { return f.supported }
func (f *Fixed) Advertising() Caps    { return f.advertising }
func (f *Fixed) Running() bool        { return f.running }

func (f *Fixed) Restrict(c Caps) {
	f.supported &= c
	f.advertising &= c
}

func (f *Fixed) Config() error { return nil }

func (f *Fixed) Startup() (Link, error) {
	f.running = true
	return Link{Up: true, Speed: f.Speed, Duplex: f.Duplex}, nil
}

func (f *Fixed) Shutdown() error {
	f.running = false
	return nil
}
