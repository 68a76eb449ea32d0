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

package nat64

// sum16 folds arbitrary bytes into a ones-complement 16 bit checksum accumulator, as used by
// RFC 791 and RFC 1071. initial lets callers chain several regions (header, pseudo-header,
// payload) without concatenating them into one buffer first.
func sum16(data []byte, initial uint32) uint32 {
	acc := initial

	i := 0
	for ; i+1 < len(data); i += 2 {
		acc += uint32(data[i])<<8 | uint32(data[i+1])
	}

	if i < len(data) {
		acc += uint32(data[i]) << 8
	}

	return acc
}

// foldChecksum folds the accumulator's carries and returns the ones complement, i.e. the value
// that belongs in a checksum field so that a receiver summing the same bytes plus the checksum
// arrives at 0xffff.
func foldChecksum(acc uint32) uint16 {
	for acc>>16 != 0 {
		acc = (acc & 0xffff) + (acc >> 16)
	}

	return ^uint16(acc)
}

// ipv4HeaderChecksum computes the RFC 791 header checksum over a 20 byte IPv4 header whose
// checksum field (octets 10-11) is still zero.
func ipv4HeaderChecksum(header []byte) uint16 {
	return foldChecksum(sum16(header, 0))
}

// pseudoHeaderSumV4 accumulates the IPv4 pseudo-header fields used by TCP/UDP/ICMP checksums
// per RFC 793/768: source, destination, zero, protocol, transport length.
func pseudoHeaderSumV4(src, dst Ipv4Addr, protocol uint8, length int) uint32 {
	acc := sum16(src[:], 0)
	acc = sum16(dst[:], acc)
	acc += uint32(protocol)
	acc += uint32(length)

	return acc
}

// pseudoHeaderSumV6 accumulates the IPv6 pseudo-header fields per RFC 8200 section 8.1.
func pseudoHeaderSumV6(src, dst Ipv6Addr, nextHeader uint8, length int) uint32 {
	acc := sum16(src[:], 0)
	acc = sum16(dst[:], acc)
	acc += uint32(length)
	acc += uint32(nextHeader)

	return acc
}

// transportChecksum recomputes a TCP/UDP checksum over the given pseudo-header sum plus the
// transport segment (header and payload together), with the segment's own checksum field
// zeroed by the caller before calling. Recomputing in full, rather than patching a delta,
// keeps the implementation correct even when the original checksum was optionally zero
// (permitted for IPv4 UDP, forbidden for IPv6 UDP - RFC 7915 section 4.5).
func transportChecksum(pseudoSum uint32, segment []byte) uint16 {
	return foldChecksum(sum16(segment, pseudoSum))
}

// icmpv4Checksum computes the checksum for an ICMPv4 message. ICMPv4 has no pseudo-header.
func icmpv4Checksum(message []byte) uint16 {
	return foldChecksum(sum16(message, 0))
}

// icmpv6Checksum computes the checksum for an ICMPv6 message, which per RFC 4443 section 2.3
// is covered by the IPv6 pseudo-header (next header 58).
func icmpv6Checksum(src, dst Ipv6Addr, message []byte) uint16 {
	pseudoSum := pseudoHeaderSumV6(src, dst, ProtocolICMPv6, len(message))

	return foldChecksum(sum16(message, pseudoSum))
}
