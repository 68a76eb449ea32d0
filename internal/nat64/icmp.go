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

// This file is component 4 of the design: the IcmpTranslator. It rewrites ICMPv4/ICMPv6 type and
// code and, for error messages, the embedded offending IP datagram they carry.
package nat64

import "encoding/binary"

// ICMPv4 types this translator understands.
const (
	icmpv4EchoReply         = 0
	icmpv4DestUnreachable   = 3
	icmpv4EchoRequest       = 8
	icmpv4TimeExceeded      = 11
	icmpv4ParameterProblem  = 12
)

// ICMPv6 types this translator understands.
const (
	icmpv6DestUnreachable  = 1
	icmpv6PacketTooBig     = 2
	icmpv6TimeExceeded     = 3
	icmpv6ParameterProblem = 4
	icmpv6EchoRequest      = 128
	icmpv6EchoReply        = 129
)

// icmpv4ToV6PointerTable converts IPv4 Parameter Problem pointers to IPv6 header offsets;
// icmpv6ToV4Pointer uses it for the reverse direction. 0xff marks a pointer with no counterpart,
// which forces a Drop.
var icmpv4ToV6PointerTable = [20]uint8{
	0, 1, 4, 4, 0xff, 0xff, 0xff, 0xff, 7, 6, 0xff, 0xff, 8, 8, 8, 8, 24, 24, 24, 24,
}

// icmpv6ToV4Pointer inverts the table above for the reverse direction. Several v4 pointers map
// to the same v6 offset, so the reverse is picked to be the lowest of any pointers that produced
// that offset, matching the field with the smallest footprint in the corresponding v4 header.
func icmpv6ToV4Pointer(v6Offset uint8) (uint8, bool) {
	for v4Ptr, off := range icmpv4ToV6PointerTable {
		if off != 0xff && off == v6Offset {
			return uint8(v4Ptr), true
		}
	}

	return 0, false
}

// ipv6NextHeaderOffset is the byte offset of the NextHeader field within an IPv6 header, used as
// the Parameter Problem pointer when an ICMPv4 Protocol Unreachable is translated.
const ipv6NextHeaderOffset = 6

// icmpHeader is the fixed 8 byte ICMP/ICMPv6 header shape shared by both families.
type icmpHeader struct {
	Type uint8
	Code uint8
	Rest [4]byte
}

func parseIcmpHeader(b []byte) icmpHeader {
	h := icmpHeader{Type: b[0], Code: b[1]}
	copy(h.Rest[:], b[4:8])

	return h
}

func (h icmpHeader) marshal() [IcmpHeaderLen]byte {
	var b [IcmpHeaderLen]byte

	b[0] = h.Type
	b[1] = h.Code
	copy(b[4:8], h.Rest[:])

	return b
}

// isIcmpv4Error reports whether an ICMPv4 message of the given type carries an embedded offending
// datagram, as opposed to Echo Request/Reply which do not.
func isIcmpv4Error(t uint8) bool {
	return t == icmpv4DestUnreachable || t == icmpv4TimeExceeded || t == icmpv4ParameterProblem
}

func isIcmpv6Error(t uint8) bool {
	return t == icmpv6DestUnreachable || t == icmpv6PacketTooBig ||
		t == icmpv6TimeExceeded || t == icmpv6ParameterProblem
}

// translateIcmpV4ToV6 rewrites the ICMPv4 message occupying the whole of msg (outer IP header
// already removed) into an ICMPv6 message in place. srcV6/dstV6 are the outer IPv6 header's
// addresses, needed for the ICMPv6 checksum's pseudo-header. It returns false for any type/code
// this translator does not carry a mapping for, which the caller must treat as a Drop.
func translateIcmpV4ToV6(msg Message, prefix Ipv6Prefix, mapping *AddressMapping, srcV6, dstV6 Ipv6Addr) bool {
	if msg.Len() < IcmpHeaderLen {
		return false
	}

	in := parseIcmpHeader(msg.ReadBytes(0, IcmpHeaderLen))

	out, ok := mapIcmpv4HeaderToV6(in)
	if !ok {
		return false
	}

	if isIcmpv4Error(in.Type) {
		if !rewriteEmbeddedV4ToV6(msg, prefix, mapping) {
			return false
		}
	}

	header := out.marshal()
	msg.WriteBytes(0, header[:])
	binary.BigEndian.PutUint16(header[2:4], icmpv6Checksum(srcV6, dstV6, msg.ReadBytes(0, msg.Len())))
	msg.WriteBytes(2, header[2:4])

	return true
}

// mapIcmpv4HeaderToV6 applies the type/code and, where relevant, rest-of-header remap described
// in the design's ICMP translation tables. The checksum field of the returned header is left
// zero; the caller fills it in once the embedded packet (if any) has been rewritten.
func mapIcmpv4HeaderToV6(in icmpHeader) (icmpHeader, bool) {
	switch in.Type {
	case icmpv4EchoRequest:
		return icmpHeader{Type: icmpv6EchoRequest, Rest: in.Rest}, true
	case icmpv4EchoReply:
		return icmpHeader{Type: icmpv6EchoReply, Rest: in.Rest}, true
	case icmpv4TimeExceeded:
		return icmpHeader{Type: icmpv6TimeExceeded, Code: in.Code}, true
	case icmpv4DestUnreachable:
		return mapDestUnreachableV4ToV6(in)
	case icmpv4ParameterProblem:
		return mapParameterProblemV4ToV6(in)
	default:
		return icmpHeader{}, false
	}
}

func mapDestUnreachableV4ToV6(in icmpHeader) (icmpHeader, bool) {
	switch in.Code {
	case 0, 1, 5, 6, 7, 8, 11, 12:
		return icmpHeader{Type: icmpv6DestUnreachable, Code: 0}, true
	case 3:
		return icmpHeader{Type: icmpv6DestUnreachable, Code: 4}, true
	case 9, 10, 13, 15:
		return icmpHeader{Type: icmpv6DestUnreachable, Code: 1}, true
	case 2:
		out := icmpHeader{Type: icmpv6ParameterProblem, Code: 1}
		binary.BigEndian.PutUint32(out.Rest[:], ipv6NextHeaderOffset)

		return out, true
	case 4:
		v4Mtu := binary.BigEndian.Uint16(in.Rest[2:4])
		mtu := uint32(v4Mtu) - uint32(Ipv6HeaderLen-Ipv4HeaderLen)
		out := icmpHeader{Type: icmpv6PacketTooBig, Code: 0}
		binary.BigEndian.PutUint32(out.Rest[:], mtu)

		return out, true
	case 14:
		return icmpHeader{}, false
	default:
		return icmpHeader{}, false
	}
}

func mapParameterProblemV4ToV6(in icmpHeader) (icmpHeader, bool) {
	if in.Code != 0 && in.Code != 2 {
		return icmpHeader{}, false
	}

	ptr := in.Rest[0]
	if int(ptr) >= len(icmpv4ToV6PointerTable) {
		return icmpHeader{}, false
	}

	v6Off := icmpv4ToV6PointerTable[ptr]
	if v6Off == 0xff {
		return icmpHeader{}, false
	}

	out := icmpHeader{Type: icmpv6ParameterProblem, Code: 0}
	binary.BigEndian.PutUint32(out.Rest[:], uint32(v6Off))

	return out, true
}

// rewriteEmbeddedV4ToV6 translates the embedded IPv4 datagram inside an ICMPv4 error message
// (occupying msg from offset [IcmpHeaderLen:]) into the IPv6 equivalent, in place. It enforces
// the embedded-address and embedded-checksum invariants from the design and returns false
// (caller must Drop) on any violation.
func rewriteEmbeddedV4ToV6(msg Message, prefix Ipv6Prefix, mapping *AddressMapping) bool {
	if msg.Len() < IcmpHeaderLen+Ipv4HeaderLen+MinIcmpErrorData {
		return false
	}

	innerBytes := msg.ReadBytes(IcmpHeaderLen, Ipv4HeaderLen)
	if ipv4HeaderChecksum(innerBytes) != 0 {
		return false
	}

	inner, err := ParseIpv4Header(innerBytes)
	if err != nil {
		return false
	}

	if inner.Source != mapping.Ip4 {
		return false
	}

	protocol, ok := translateProtocolV4ToV6(inner.Protocol)
	if !ok {
		return false
	}

	var scratch [MinIcmpErrorData]byte
	copy(scratch[:], msg.ReadBytes(IcmpHeaderLen+Ipv4HeaderLen, MinIcmpErrorData))

	newInner := BuildIpv6Header(Ipv6BuildFields{
		Source:      mapping.Ip6,
		Destination: SynthesizeFromIp4Address(prefix, inner.Destination),
		NextHeader:  protocol,
		HopLimit:    inner.TTL,
		PayloadLen:  MinIcmpErrorData,
	})

	msg.WriteBytes(IcmpHeaderLen, newInner[:])
	msg.WriteBytes(IcmpHeaderLen+Ipv6HeaderLen, scratch[:])
	msg.SetLength(IcmpHeaderLen + Ipv6HeaderLen + MinIcmpErrorData)

	return true
}

// translateIcmpV6ToV4 is the outbound counterpart of translateIcmpV4ToV6.
func translateIcmpV6ToV4(msg Message, prefix Ipv6Prefix, mapping *AddressMapping) bool {
	if msg.Len() < IcmpHeaderLen {
		return false
	}

	in := parseIcmpHeader(msg.ReadBytes(0, IcmpHeaderLen))

	out, ok := mapIcmpv6HeaderToV4(in)
	if !ok {
		return false
	}

	if isIcmpv6Error(in.Type) {
		if !rewriteEmbeddedV6ToV4(msg, prefix, mapping) {
			return false
		}
	}

	header := out.marshal()
	msg.WriteBytes(0, header[:])
	binary.BigEndian.PutUint16(header[2:4], icmpv4Checksum(msg.ReadBytes(0, msg.Len())))
	msg.WriteBytes(2, header[2:4])

	return true
}

func mapIcmpv6HeaderToV4(in icmpHeader) (icmpHeader, bool) {
	switch in.Type {
	case icmpv6EchoRequest:
		return icmpHeader{Type: icmpv4EchoRequest, Rest: in.Rest}, true
	case icmpv6EchoReply:
		return icmpHeader{Type: icmpv4EchoReply, Rest: in.Rest}, true
	case icmpv6TimeExceeded:
		return icmpHeader{Type: icmpv4TimeExceeded, Code: in.Code}, true
	case icmpv6DestUnreachable:
		return mapDestUnreachableV6ToV4(in)
	case icmpv6PacketTooBig:
		v6Mtu := binary.BigEndian.Uint32(in.Rest[:])
		mtu := uint16(v6Mtu + uint32(Ipv6HeaderLen-Ipv4HeaderLen))
		out := icmpHeader{Type: icmpv4DestUnreachable, Code: 4}
		binary.BigEndian.PutUint16(out.Rest[2:4], mtu)

		return out, true
	case icmpv6ParameterProblem:
		return mapParameterProblemV6ToV4(in)
	default:
		return icmpHeader{}, false
	}
}

// mapDestUnreachableV6ToV4 follows the RFC 7915 section 5.2 Destination Unreachable table; the
// design spec only calls out this direction in outline (type 1 to type 3 "with code remap").
func mapDestUnreachableV6ToV4(in icmpHeader) (icmpHeader, bool) {
	switch in.Code {
	case 0, 2, 3:
		return icmpHeader{Type: icmpv4DestUnreachable, Code: 1}, true
	case 1:
		return icmpHeader{Type: icmpv4DestUnreachable, Code: 10}, true
	case 4:
		return icmpHeader{Type: icmpv4DestUnreachable, Code: 3}, true
	default:
		return icmpHeader{}, false
	}
}

func mapParameterProblemV6ToV4(in icmpHeader) (icmpHeader, bool) {
	if in.Code != 0 {
		return icmpHeader{}, false
	}

	v6Off := binary.BigEndian.Uint32(in.Rest[:])

	ptr, ok := icmpv6ToV4Pointer(uint8(v6Off))
	if !ok {
		return icmpHeader{}, false
	}

	out := icmpHeader{Type: icmpv4ParameterProblem, Code: 0}
	out.Rest[0] = ptr

	return out, true
}

// rewriteEmbeddedV6ToV4 translates the embedded IPv6 datagram inside an ICMPv6 error message
// into IPv4, in place.
func rewriteEmbeddedV6ToV4(msg Message, prefix Ipv6Prefix, mapping *AddressMapping) bool {
	if msg.Len() < IcmpHeaderLen+Ipv6HeaderLen+MinIcmpErrorData {
		return false
	}

	inner, err := ParseIpv6Header(msg.ReadBytes(IcmpHeaderLen, Ipv6HeaderLen))
	if err != nil {
		return false
	}

	if inner.Destination != mapping.Ip6 {
		return false
	}

	protocol, ok := translateProtocolV6ToV4(inner.NextHeader)
	if !ok {
		return false
	}

	var scratch [MinIcmpErrorData]byte
	copy(scratch[:], msg.ReadBytes(IcmpHeaderLen+Ipv6HeaderLen, MinIcmpErrorData))

	newInner := BuildIpv4Header(Ipv4BuildFields{
		Source:      ExtractFromIp6Address(prefix, inner.Source),
		Destination: mapping.Ip4,
		Protocol:    protocol,
		TTL:         inner.HopLimit,
		PayloadLen:  MinIcmpErrorData,
	})

	msg.WriteBytes(IcmpHeaderLen, newInner[:])
	msg.WriteBytes(IcmpHeaderLen+Ipv4HeaderLen, scratch[:])
	msg.SetLength(IcmpHeaderLen + Ipv4HeaderLen + MinIcmpErrorData)

	return true
}
