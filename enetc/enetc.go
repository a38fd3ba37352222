// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package enetc drives one station interface of an ENETC Ethernet
// controller: a single transmit and a single receive buffer descriptor ring,
// the port MAC and the PCS behind the port's internal MDIO bus.  Everything
// polls; nothing here is safe for concurrent use.
package enetc

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/platinasystems/log"

	"github.com/platinasystems/enetc/hw"
	"github.com/platinasystems/enetc/mdio"
	"github.com/platinasystems/enetc/pcs"
	"github.com/platinasystems/enetc/phy"
)

var (
	ErrTimeout    = errors.New("timeout")
	ErrRingFull   = fmt.Errorf("tx ring full: %w", ErrTimeout)
	ErrWouldBlock = errors.New("no frame received")
	ErrFrame      = errors.New("receive error")
	ErrNotReady   = errors.New("device not started")
)

// Modes and speeds the port supports regardless of what the PHY claims.
const supportedFeatures = phy.GbitFeatures | phy.Cap2500baseXFull

type Config struct {
	Name string

	// Link mode between MAC and PHY.
	Mode phy.Interface

	// Address of the PCS on the internal MDIO bus.
	PcsAddr uint8

	TxDescriptors uint32
	RxDescriptors uint32
	RxBufferSize  uint32
	MaxFrame      uint32

	// Transmit completion wait; Tries == 0 returns after hand over.
	TxBudget hw.Budget
	// Receive ready wait per Recv call.
	RxBudget hw.Budget
	// PCS reset wait for (U)SXGMII.
	PcsResetBudget hw.Budget

	// Primary MAC address; nil keeps the address already programmed.
	HwAddr net.HardwareAddr

	// Log every descriptor.
	Debug bool
}

const (
	DefaultDescriptors  = 8
	DefaultRxBufferSize = 1536
	DefaultMaxFrame     = 1536
	defaultPollTries    = 32000
)

var DefaultConfig = Config{
	Name:           "enetc",
	TxDescriptors:  DefaultDescriptors,
	RxDescriptors:  DefaultDescriptors,
	RxBufferSize:   DefaultRxBufferSize,
	MaxFrame:       DefaultMaxFrame,
	TxBudget:       hw.Budget{Tries: defaultPollTries, Delay: 10 * time.Microsecond},
	RxBudget:       hw.Budget{Tries: defaultPollTries},
	PcsResetBudget: pcs.DefaultResetBudget,
}

func (c *Config) setDefaults() {
	d := &DefaultConfig
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.TxDescriptors == 0 {
		c.TxDescriptors = d.TxDescriptors
	}
	if c.RxDescriptors == 0 {
		c.RxDescriptors = d.RxDescriptors
	}
	if c.RxBufferSize == 0 {
		c.RxBufferSize = d.RxBufferSize
	}
	if c.MaxFrame == 0 {
		c.MaxFrame = d.MaxFrame
	}
	if c.RxBudget.Tries == 0 {
		c.RxBudget = d.RxBudget
	}
	if c.PcsResetBudget.Tries == 0 {
		c.PcsResetBudget = d.PcsResetBudget
	}
}

type Device struct {
	Config

	w    hw.Window
	dma  hw.DMA
	pool *hw.Pool
	phy  phy.Device
	mdio *mdio.Bus

	tx txRing
	rx rxRing

	// One transmit bounce buffer per descriptor for SendFrame.
	bounce []hw.Mem

	link    phy.Link
	probed  bool
	started bool
}

// New returns a device with registers in w allocating descriptors from d.
// Receive buffers come from pool; a nil pool is allocated from d on Start.
// A zero TxBudget means posted transmits; use DefaultConfig.TxBudget to
// wait for completion.
func New(w hw.Window, d hw.DMA, pool *hw.Pool, p phy.Device, c Config) *Device {
	c.setDefaults()
	if c.Mode == phy.None && p != nil {
		c.Mode = p.Interface()
	}
	return &Device{
		Config: c,
		w:      w,
		dma:    d,
		pool:   pool,
		phy:    p,
		mdio:   mdio.New(w, imdioBase),
	}
}

func (d *Device) String() string { return fmt.Sprintf("%s %v", d.Name, d.Mode) }

// MDIO returns the port's internal MDIO bus.
func (d *Device) MDIO() *mdio.Bus { return d.mdio }

func (d *Device) Link() phy.Link { return d.link }

// Probe brings up the PCS for the configured mode and configures the PHY.
func (d *Device) Probe() (err error) {
	if d.probed {
		return nil
	}
	lc := pcs.NewLinkConfig(d.Mode, pcs.NIC)
	if err = pcs.Configure(d.mdio, d.PcsAddr, lc, d.PcsResetBudget); err != nil {
		return fmt.Errorf("%v: %w", d, err)
	}
	if d.phy != nil {
		d.phy.Restrict(supportedFeatures)
		if err = d.phy.Config(); err != nil {
			return fmt.Errorf("%v: phy config: %w", d, err)
		}
	}
	d.probed = true
	return nil
}

// Start enables the port and rings, starts the PHY and adapts the MAC to
// the resulting link.
func (d *Device) Start() (err error) {
	if d.started {
		return nil
	}
	if err = d.Probe(); err != nil {
		return
	}
	if d.HwAddr != nil {
		if err = d.SetHwAddr(d.HwAddr); err != nil {
			return
		}
	}
	if d.pool == nil {
		if d.pool, err = hw.NewPool(d.dma, uint(d.RxDescriptors), uint(d.RxBufferSize), log2RxBufferAlignmentBytes); err != nil {
			return fmt.Errorf("%v: rx pool: %w", d, err)
		}
	}
	if d.bounce == nil {
		d.bounce = make([]hw.Mem, d.TxDescriptors)
		for i := range d.bounce {
			if d.bounce[i], err = d.dma.AllocAligned(uint(d.MaxFrame), log2RxBufferAlignmentBytes); err != nil {
				d.bounce = nil
				return fmt.Errorf("%v: tx buffers: %w", d, err)
			}
		}
	}

	enablePort(d.w, 1, 1, d.MaxFrame)
	defer func() {
		if err != nil {
			d.tx.disable()
			d.rx.disable()
			disablePort(d.w)
		}
	}()
	d.tx.budget, d.tx.debug = d.TxBudget, d.Debug
	if err = d.tx.setup(d.w, d.dma, 0, d.TxDescriptors); err != nil {
		return fmt.Errorf("%v: %w", d, err)
	}
	d.rx.budget, d.rx.debug = d.RxBudget, d.Debug
	if err = d.rx.setup(d.w, d.dma, 0, d.RxDescriptors, d.pool, d.RxBufferSize); err != nil {
		return fmt.Errorf("%v: %w", d, err)
	}

	if d.phy != nil {
		if d.link, err = d.phy.Startup(); err != nil {
			return fmt.Errorf("%v: phy startup: %w", d, err)
		}
	}
	setupMacIface(d.w, d.Mode, d.link)
	d.started = true
	log.Print("daemon", "info", d, ": link ", d.link)
	return nil
}

// Stop disables the rings and station interface and shuts the PHY down.
func (d *Device) Stop() (err error) {
	if !d.started {
		return nil
	}
	d.tx.disable()
	d.rx.disable()
	disablePort(d.w)
	d.started = false
	if d.phy != nil {
		if err = d.phy.Shutdown(); err != nil {
			return fmt.Errorf("%v: phy shutdown: %w", d, err)
		}
	}
	return nil
}

// SetHwAddr programs the station interface primary MAC address.
func (d *Device) SetHwAddr(a net.HardwareAddr) error {
	if len(a) != 6 {
		return fmt.Errorf("%v: bad hardware address %v", d, a)
	}
	setPrimaryMAC(d.w, a)
	d.HwAddr = a
	return nil
}

// PrimaryMAC returns the programmed primary MAC address.
func (d *Device) PrimaryMAC() net.HardwareAddr { return primaryMAC(d.w) }

// Send transmits the first n bytes of buf, which must stay untouched until
// hardware consumes it.
func (d *Device) Send(buf hw.Mem, n int) error { return d.tx.send(buf, n) }

// SendFrame copies b into the bounce buffer of the next descriptor and
// sends it.
func (d *Device) SendFrame(b []byte) error {
	if !d.started {
		return fmt.Errorf("%v: %w", d, ErrNotReady)
	}
	if len(b) > int(d.MaxFrame) {
		return fmt.Errorf("%v: %d byte frame exceeds %d", d, len(b), d.MaxFrame)
	}
	buf := d.bounce[d.tx.nextProducer]
	copy(buf.Bytes, b)
	return d.tx.send(buf, len(b))
}

// Recv returns the next received frame.  The slice aliases a receive pool
// buffer and is valid until the ring wraps around to it again.
func (d *Device) Recv() ([]byte, error) { return d.rx.recv() }
