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
	"encoding/binary"
	"testing"

	"go.eqrx.net/nat64gw/internal/nat64"
)

// TestBuildIpv4HeaderChecksumKnownValue pins down a hand-computed checksum for a fixed set of
// header fields, guarding against a regression in the ones-complement summation.
func TestBuildIpv4HeaderChecksumKnownValue(t *testing.T) {
	t.Parallel()

	fields := nat64.Ipv4BuildFields{
		Source:      nat64.Ipv4Addr{192, 0, 2, 1},
		Destination: nat64.Ipv4Addr{203, 0, 113, 5},
		Protocol:    nat64.ProtocolUDP,
		TTL:         64,
		PayloadLen:  8,
	}

	built := nat64.BuildIpv4Header(fields)
	checksum := binary.BigEndian.Uint16(built[10:12])

	if want, have := uint16(0x7cca), checksum; want != have {
		t.Fatalf("want %#04x, have %#04x", want, have)
	}
}

// TestIpv4HeaderChecksumValidates re-sums a built header including its own checksum field, which
// must fold to 0xffff for any correctly computed ones-complement checksum.
func TestIpv4HeaderChecksumValidates(t *testing.T) {
	t.Parallel()

	fields := nat64.Ipv4BuildFields{
		Source:      nat64.Ipv4Addr{198, 51, 100, 7},
		Destination: nat64.Ipv4Addr{192, 0, 2, 44},
		Protocol:    nat64.ProtocolTCP,
		TTL:         32,
		PayloadLen:  120,
	}

	built := nat64.BuildIpv4Header(fields)

	var acc uint32
	for i := 0; i+1 < len(built); i += 2 {
		acc += uint32(built[i])<<8 | uint32(built[i+1])
	}

	for acc>>16 != 0 {
		acc = (acc & 0xffff) + (acc >> 16)
	}

	if want, have := uint32(0xffff), acc; want != have {
		t.Fatalf("checksum did not validate: want %#04x, have %#04x", want, have)
	}
}

func TestBuildIpv4HeaderChecksumValidates(t *testing.T) {
	t.Parallel()

	fields := nat64.Ipv4BuildFields{
		Source:      nat64.Ipv4Addr{192, 0, 2, 1},
		Destination: nat64.Ipv4Addr{203, 0, 113, 5},
		Protocol:    nat64.ProtocolUDP,
		TTL:         63,
		PayloadLen:  18,
	}

	header := nat64.BuildIpv4Header(fields)

	parsed, err := nat64.ParseIpv4Header(header[:])
	if err != nil {
		t.Fatalf("parse built header: %v", err)
	}

	if parsed.Source != fields.Source || parsed.Destination != fields.Destination {
		t.Fatal("addresses did not round trip")
	}
}
