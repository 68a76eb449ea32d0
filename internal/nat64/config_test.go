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
	"errors"
	"testing"

	"go.eqrx.net/nat64gw/internal/nat64"
)

func TestSetIp4CidrRejectsInvalidLength(t *testing.T) {
	t.Parallel()

	tr := nat64.NewTranslator(nat64.NewSystemClock())

	err := tr.SetIp4Cidr(nat64.Ipv4Cidr{Length: 0})
	if !errors.Is(err, nat64.ErrInvalidArgs) {
		t.Fatalf("want ErrInvalidArgs, have %v", err)
	}
}

func TestSetEnabledRejectsWithoutCidr(t *testing.T) {
	t.Parallel()

	tr := nat64.NewTranslator(nat64.NewSystemClock())

	err := tr.SetEnabled(true)
	if !errors.Is(err, nat64.ErrInvalidState) {
		t.Fatalf("want ErrInvalidState, have %v", err)
	}
}

func TestConfigAccessors(t *testing.T) {
	t.Parallel()

	tr := nat64.NewTranslator(nat64.NewSystemClock())

	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{192, 0, 2, 0}, Length: 28}
	prefix := nat64.Ipv6Prefix{Base: nat64.Ipv6Addr{0x00, 0x64, 0xff, 0x9b}, Length: 96}

	if err := tr.SetIp4Cidr(cidr); err != nil {
		t.Fatalf("set ipv4 cidr: %v", err)
	}

	tr.SetNat64Prefix(prefix)

	if tr.Ip4Cidr() != cidr {
		t.Fatalf("want %v, have %v", cidr, tr.Ip4Cidr())
	}

	if tr.Nat64Prefix() != prefix {
		t.Fatalf("want %v, have %v", prefix, tr.Nat64Prefix())
	}

	if tr.Enabled() {
		t.Fatal("should not be enabled until SetEnabled is called")
	}

	if want, have := 14, tr.AvailableAddresses(); want != have {
		t.Fatalf("want %d, have %d", want, have)
	}
}
