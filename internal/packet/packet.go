// Copyright (C) 2022 Alexander Sowitzki
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

// Package packet provides access to dual-stack ip packet framing over a tun device.
package packet

import (
	"errors"
	"fmt"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

var (
	errShort   = errors.New("packet shorter than its minimal ip header")
	errVersion = errors.New("unsupported ip version")
)

// Packet is one IP datagram read off a tun device, alongside the IP version sniffed from its
// first nibble. A tun that carries NAT64 traffic sees both v4 and v6 datagrams interleaved.
type Packet struct {
	Version    int
	Marshalled []byte
}

func asPacket(data []byte) (*Packet, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("as packet: %w", errShort)
	}

	version := int(data[0]) >> 4

	minLen := 0

	switch version {
	case ipv4.Version:
		minLen = ipv4.HeaderLen
	case ipv6.Version:
		minLen = ipv6.HeaderLen
	default:
		return nil, fmt.Errorf("as packet: %w: %d", errVersion, version)
	}

	if len(data) < minLen {
		return nil, fmt.Errorf("as packet: %w", errShort)
	}

	return &Packet{version, data}, nil
}
