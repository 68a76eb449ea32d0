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

// IP protocol numbers relevant to translation, per the IANA protocol number registry.
const (
	ProtocolICMPv4 = 1
	ProtocolTCP    = 6
	ProtocolUDP    = 17
	ProtocolICMPv6 = 58
)

const (
	// Ipv4HeaderLen is the size in bytes of a canonical, option-free IPv4 header.
	Ipv4HeaderLen = 20
	// Ipv6HeaderLen is the size in bytes of a fixed IPv6 header.
	Ipv6HeaderLen = 40
	// IcmpHeaderLen is the size in bytes of the fixed portion of an ICMP/ICMPv6 header.
	IcmpHeaderLen = 8
	// MinIcmpErrorData is the number of octets of the offending datagram RFC 792 requires
	// (and permits) an ICMP error message to carry after its own header.
	MinIcmpErrorData = 8
)
