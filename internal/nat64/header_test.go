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

package nat64_test

import (
	"testing"

	"go.eqrx.net/nat64gw/internal/nat64"
)

func TestParseIpv4HeaderRejectsOptions(t *testing.T) {
	t.Parallel()

	header := nat64.BuildIpv4Header(nat64.Ipv4BuildFields{Protocol: nat64.ProtocolUDP, TTL: 1, PayloadLen: 0})

	b := append(header[:], make([]byte, 0)...)
	b[0] = 0x46 // IHL = 6, claims options.

	if _, err := nat64.ParseIpv4Header(b); err == nil {
		t.Fatal("expected an error for a header carrying options")
	}
}

func TestParseIpv4HeaderRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	header := nat64.BuildIpv4Header(nat64.Ipv4BuildFields{Protocol: nat64.ProtocolUDP, TTL: 1, PayloadLen: 0})
	b := header[:]
	b[0] = 0x65

	if _, err := nat64.ParseIpv4Header(b); err == nil {
		t.Fatal("expected an error for the wrong ip version")
	}
}

func TestParseIpv4HeaderRejectsShort(t *testing.T) {
	t.Parallel()

	if _, err := nat64.ParseIpv4Header(make([]byte, 10)); err == nil {
		t.Fatal("expected an error for a too-short header")
	}
}

func TestBuildAndParseIpv4HeaderRoundTrip(t *testing.T) {
	t.Parallel()

	fields := nat64.Ipv4BuildFields{
		Source:      nat64.Ipv4Addr{192, 0, 2, 1},
		Destination: nat64.Ipv4Addr{203, 0, 113, 5},
		Protocol:    nat64.ProtocolTCP,
		TTL:         55,
		PayloadLen:  100,
	}

	built := nat64.BuildIpv4Header(fields)

	parsed, err := nat64.ParseIpv4Header(built[:])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if parsed.Source != fields.Source {
		t.Fatalf("source: want %v, have %v", fields.Source, parsed.Source)
	}

	if parsed.Destination != fields.Destination {
		t.Fatalf("destination: want %v, have %v", fields.Destination, parsed.Destination)
	}

	if parsed.Protocol != fields.Protocol {
		t.Fatalf("protocol: want %d, have %d", fields.Protocol, parsed.Protocol)
	}

	if parsed.TTL != fields.TTL {
		t.Fatalf("ttl: want %d, have %d", fields.TTL, parsed.TTL)
	}

	if want, have := nat64.Ipv4HeaderLen+fields.PayloadLen, parsed.TotalLength; want != have {
		t.Fatalf("total length: want %d, have %d", want, have)
	}
}

func TestBuildAndParseIpv6HeaderRoundTrip(t *testing.T) {
	t.Parallel()

	fields := nat64.Ipv6BuildFields{
		Source:      nat64.Ipv6Addr{0x20, 0x01, 0x0d, 0xb8},
		Destination: nat64.Ipv6Addr{0x00, 0x64, 0xff, 0x9b},
		NextHeader:  nat64.ProtocolUDP,
		HopLimit:    55,
		PayloadLen:  12,
	}

	built := nat64.BuildIpv6Header(fields)

	parsed, err := nat64.ParseIpv6Header(built[:])
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if parsed.Source != fields.Source {
		t.Fatalf("source: want %v, have %v", fields.Source, parsed.Source)
	}

	if parsed.Destination != fields.Destination {
		t.Fatalf("destination: want %v, have %v", fields.Destination, parsed.Destination)
	}

	if parsed.NextHeader != fields.NextHeader {
		t.Fatalf("next header: want %d, have %d", fields.NextHeader, parsed.NextHeader)
	}

	if parsed.HopLimit != fields.HopLimit {
		t.Fatalf("hop limit: want %d, have %d", fields.HopLimit, parsed.HopLimit)
	}

	if want, have := fields.PayloadLen, parsed.PayloadLength; want != have {
		t.Fatalf("payload length: want %d, have %d", want, have)
	}
}

func TestParseIpv6HeaderRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	built := nat64.BuildIpv6Header(nat64.Ipv6BuildFields{})
	b := built[:]
	b[0] = 0x45

	if _, err := nat64.ParseIpv6Header(b); err == nil {
		t.Fatal("expected an error for the wrong ip version")
	}
}
