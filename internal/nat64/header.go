// Copyright (C) 2021 Alexander Sowitzki
//
// This program is free software: you can redistribute it and/or modify it under the terms of the
// GNU Affero General Public License as published by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero General Public License for more
// details.
//
// You should have received a copy of the GNU Affero General Public License along with this program.
// If not, see <https://www.gnu.org/licenses/>.

// This file holds the stateless header translation rules (component 3 of the design: the
// HeaderTranslator). It only knows how to parse and build the two header shapes; it has no
// opinion on mappings, pools or dispositions, which live in translator.go.
package nat64

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	errShortPacket    = errors.New("packet shorter than its fixed header")
	errWrongVersion   = errors.New("ip version field does not match")
	errIpv4Options    = errors.New("ipv4 options are not supported")
)

// Ipv4Header is the subset of a parsed IPv4 header the translator needs.
type Ipv4Header struct {
	TotalLength int
	TTL         uint8
	Protocol    uint8
	Source      Ipv4Addr
	Destination Ipv4Addr
}

// ParseIpv4Header parses the 20 byte fixed IPv4 header at the front of b. Any IHL other than 5
// (i.e. any packet carrying IPv4 options) is rejected, per the explicit Non-goal on options
// handling.
func ParseIpv4Header(b []byte) (Ipv4Header, error) {
	if len(b) < Ipv4HeaderLen {
		return Ipv4Header{}, fmt.Errorf("parse ipv4 header: %w", errShortPacket)
	}

	version := b[0] >> 4
	ihl := int(b[0] & 0x0f)

	if version != 4 {
		return Ipv4Header{}, fmt.Errorf("parse ipv4 header: %w: %d", errWrongVersion, version)
	}

	if ihl != 5 {
		return Ipv4Header{}, fmt.Errorf("parse ipv4 header: %w: ihl %d", errIpv4Options, ihl)
	}

	h := Ipv4Header{
		TotalLength: int(binary.BigEndian.Uint16(b[2:4])),
		TTL:         b[8],
		Protocol:    b[9],
	}
	copy(h.Source[:], b[12:16])
	copy(h.Destination[:], b[16:20])

	return h, nil
}

// Ipv4BuildFields are the fields a caller supplies to build a fresh IPv4 header. TotalLength is
// computed by the builder from PayloadLen; the header checksum is always computed after the
// other fields are set.
type Ipv4BuildFields struct {
	Source      Ipv4Addr
	Destination Ipv4Addr
	Protocol    uint8
	TTL         uint8
	PayloadLen  int
}

// BuildIpv4Header renders fields into a canonical 20 byte, option-free IPv4 header with DSCP/ECN
// zeroed, identification zero and flags/fragment-offset zero (atomic datagram, DF unset; fragment
// policy is left to the link-layer collaborator per the OUT OF SCOPE list).
func BuildIpv4Header(fields Ipv4BuildFields) [Ipv4HeaderLen]byte {
	var h [Ipv4HeaderLen]byte

	h[0] = 0x45
	binary.BigEndian.PutUint16(h[2:4], uint16(Ipv4HeaderLen+fields.PayloadLen))
	h[8] = fields.TTL
	h[9] = fields.Protocol
	copy(h[12:16], fields.Source[:])
	copy(h[16:20], fields.Destination[:])
	binary.BigEndian.PutUint16(h[10:12], ipv4HeaderChecksum(h[:]))

	return h
}

// Ipv6Header is the subset of a parsed IPv6 header the translator needs.
type Ipv6Header struct {
	PayloadLength int
	NextHeader    uint8
	HopLimit      uint8
	Source        Ipv6Addr
	Destination   Ipv6Addr
}

// ParseIpv6Header parses the fixed 40 byte IPv6 header at the front of b.
func ParseIpv6Header(b []byte) (Ipv6Header, error) {
	if len(b) < Ipv6HeaderLen {
		return Ipv6Header{}, fmt.Errorf("parse ipv6 header: %w", errShortPacket)
	}

	version := b[0] >> 4
	if version != 6 {
		return Ipv6Header{}, fmt.Errorf("parse ipv6 header: %w: %d", errWrongVersion, version)
	}

	h := Ipv6Header{
		PayloadLength: int(binary.BigEndian.Uint16(b[4:6])),
		NextHeader:    b[6],
		HopLimit:      b[7],
	}
	copy(h.Source[:], b[8:24])
	copy(h.Destination[:], b[24:40])

	return h, nil
}

// Ipv6BuildFields are the fields a caller supplies to build a fresh IPv6 header.
type Ipv6BuildFields struct {
	Source      Ipv6Addr
	Destination Ipv6Addr
	NextHeader  uint8
	HopLimit    uint8
	PayloadLen  int
}

// BuildIpv6Header renders fields into a canonical 40 byte IPv6 header with a zero flow label.
func BuildIpv6Header(fields Ipv6BuildFields) [Ipv6HeaderLen]byte {
	var h [Ipv6HeaderLen]byte

	binary.BigEndian.PutUint32(h[0:4], 0x60000000)
	binary.BigEndian.PutUint16(h[4:6], uint16(fields.PayloadLen))
	h[6] = fields.NextHeader
	h[7] = fields.HopLimit
	copy(h[8:24], fields.Source[:])
	copy(h[24:40], fields.Destination[:])

	return h
}

// translateProtocolV6ToV4 maps an IPv6 next-header number to its IPv4 protocol number. ok is false for any
// protocol this translator does not understand, which callers must treat as a Drop.
func translateProtocolV6ToV4(nextHeader uint8) (uint8, bool) {
	switch nextHeader {
	case ProtocolTCP:
		return ProtocolTCP, true
	case ProtocolUDP:
		return ProtocolUDP, true
	case ProtocolICMPv6:
		return ProtocolICMPv4, true
	default:
		return 0, false
	}
}

func translateProtocolV4ToV6(protocol uint8) (uint8, bool) {
	switch protocol {
	case ProtocolTCP:
		return ProtocolTCP, true
	case ProtocolUDP:
		return ProtocolUDP, true
	case ProtocolICMPv4:
		return ProtocolICMPv6, true
	default:
		return 0, false
	}
}
