// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package enetc

import "encoding/binary"

// Buffer descriptors are 16 bytes, little endian.
const (
	bdSize = 16

	// Descriptor rings must be 128 byte aligned.
	log2DescriptorAlignmentBytes = 7

	// Receive buffers must be 64 byte aligned.
	log2RxBufferAlignmentBytes = 6
)

// Transmit descriptor:
//
//	[0:8]   buffer bus address
//	[8:10]  buffer length
//	[10:12] frame length
//	[12:14] error/checksum
//	[14:16] flags
type txBD []byte

const txFlagFinal = 1 << 15

func (d txBD) addr() uint64         { return binary.LittleEndian.Uint64(d[0:]) }
func (d txBD) bufLen() uint16       { return binary.LittleEndian.Uint16(d[8:]) }
func (d txBD) frameLen() uint16     { return binary.LittleEndian.Uint16(d[10:]) }
func (d txBD) errCsum() uint16      { return binary.LittleEndian.Uint16(d[12:]) }
func (d txBD) flags() uint16        { return binary.LittleEndian.Uint16(d[14:]) }
func (d txBD) setAddr(a uint64)     { binary.LittleEndian.PutUint64(d[0:], a) }
func (d txBD) setBufLen(l uint16)   { binary.LittleEndian.PutUint16(d[8:], l) }
func (d txBD) setFrameLen(l uint16) { binary.LittleEndian.PutUint16(d[10:], l) }
func (d txBD) setFlags(f uint16)    { binary.LittleEndian.PutUint16(d[14:], f) }
func (d txBD) final() bool          { return d.flags()&txFlagFinal != 0 }
func (d txBD) clear()               { zero(d) }

// Receive descriptor, as written by software:
//
//	[0:8]   buffer bus address
//	[8:16]  reserved
//
// and as written back by hardware:
//
//	[0:2]   internet checksum
//	[2:4]   parse summary
//	[4:8]   rss hash
//	[8:10]  buffer length
//	[10:12] vlan options
//	[12:16] status
type rxBD []byte

const (
	// Status bits.
	rxStatusReady = 1 << 30
	rxStatusFinal = 1 << 31

	// [23:16] error code
	rxStatusErrorShift = 16
	rxStatusErrorMask  = 0xff << rxStatusErrorShift
)

func (d rxBD) addr() uint64         { return binary.LittleEndian.Uint64(d[0:]) }
func (d rxBD) inetCsum() uint16     { return binary.LittleEndian.Uint16(d[0:]) }
func (d rxBD) parseSummary() uint16 { return binary.LittleEndian.Uint16(d[2:]) }
func (d rxBD) rssHash() uint32      { return binary.LittleEndian.Uint32(d[4:]) }
func (d rxBD) bufLen() uint16       { return binary.LittleEndian.Uint16(d[8:]) }
func (d rxBD) vlanOpt() uint16      { return binary.LittleEndian.Uint16(d[10:]) }
func (d rxBD) status() uint32       { return binary.LittleEndian.Uint32(d[12:]) }
func (d rxBD) ready() bool          { return d.status()&rxStatusReady != 0 }
func (d rxBD) errorCode() uint8     { return uint8((d.status() & rxStatusErrorMask) >> rxStatusErrorShift) }

// arm hands the descriptor back to hardware with buffer address a.
func (d rxBD) arm(a uint64) {
	zero(d)
	binary.LittleEndian.PutUint64(d[0:], a)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
