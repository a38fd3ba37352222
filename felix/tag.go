// Copyright © 2015-2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package felix

import (
	"errors"
	"fmt"
)

var ErrProtocolMismatch = errors.New("not a switch tagged frame")

// Injection/extraction header prepended to every frame exchanged with the
// CPU port:
//
//	[0:6]   dummy destination MAC
//	[6:12]  dummy source MAC
//	[12:16] magic
//	[16:32] metadata
const (
	HeaderLen = 32

	tagMagicOffset = 12
	tagMetaOffset  = 16

	// Metadata byte 7: injection destination port mask.
	tagInjectPortsOffset = tagMetaOffset + 7

	// Metadata byte 10, bits 6:3: extraction source port.
	tagExtractPortOffset = tagMetaOffset + 10
	tagExtractPortShift  = 3
	tagExtractPortMask   = 0xf
)

var tagMagic = [4]byte{0x88, 0x80, 0x00, 0x0a}

// Xmit writes the injection header for port into tag.  The rest of the
// frame is untouched.
func (s *Switch) Xmit(port int, tag []byte) error {
	if port < 0 || port >= s.Ports || port > 7 {
		return fmt.Errorf("%v: no port %d", s, port)
	}
	if len(tag) < HeaderLen {
		return fmt.Errorf("%v: %d byte tag < %d", s, len(tag), HeaderLen)
	}
	copy(tag[tagMagicOffset:], tagMagic[:])
	tag[tagInjectPortsOffset] = 1 << uint(port)
	return nil
}

// Rcv validates the extraction header in tag and returns the port the
// frame arrived on.
func (s *Switch) Rcv(tag []byte) (port int, err error) {
	if len(tag) < HeaderLen {
		return -1, fmt.Errorf("%d byte frame: %w", len(tag), ErrProtocolMismatch)
	}
	if m := tag[tagMagicOffset : tagMagicOffset+len(tagMagic)]; string(m) != string(tagMagic[:]) {
		return -1, fmt.Errorf("magic % x: %w", m, ErrProtocolMismatch)
	}
	port = int(tag[tagExtractPortOffset]>>tagExtractPortShift) & tagExtractPortMask
	if port >= s.Ports {
		return -1, fmt.Errorf("source port %d: %w", port, ErrProtocolMismatch)
	}
	return port, nil
}

// TagLen returns the header and trailer lengths the tag adds to a frame.
func (s *Switch) TagLen() (head, tail int) { return HeaderLen, 0 }
