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

func TestAddressPoolInstallSlash28(t *testing.T) {
	t.Parallel()

	var pool nat64.AddressPool

	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{192, 0, 2, 0}, Length: 28}
	if err := pool.Install(cidr); err != nil {
		t.Fatalf("install: %v", err)
	}

	if want, have := 14, pool.Available(); want != have {
		t.Fatalf("want %d, have %d", want, have)
	}

	first, ok := pool.Take()
	if !ok {
		t.Fatal("take on non-empty pool failed")
	}

	if want, have := (nat64.Ipv4Addr{192, 0, 2, 1}), first; want != have {
		t.Fatalf("want %v, have %v", want, have)
	}
}

func TestAddressPoolInstallSlash32(t *testing.T) {
	t.Parallel()

	var pool nat64.AddressPool

	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{192, 0, 2, 7}, Length: 32}
	if err := pool.Install(cidr); err != nil {
		t.Fatalf("install: %v", err)
	}

	if want, have := 1, pool.Available(); want != have {
		t.Fatalf("want %d, have %d", want, have)
	}

	addr, ok := pool.Take()
	if !ok || addr != (nat64.Ipv4Addr{192, 0, 2, 7}) {
		t.Fatalf("want 192.0.2.7, have %v (ok=%v)", addr, ok)
	}
}

func TestAddressPoolInstallSlash31(t *testing.T) {
	t.Parallel()

	var pool nat64.AddressPool

	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{192, 0, 2, 8}, Length: 31}
	if err := pool.Install(cidr); err != nil {
		t.Fatalf("install: %v", err)
	}

	if want, have := 2, pool.Available(); want != have {
		t.Fatalf("want %d, have %d", want, have)
	}
}

func TestAddressPoolInstallInvalidLength(t *testing.T) {
	t.Parallel()

	var pool nat64.AddressPool

	if err := pool.Install(nat64.Ipv4Cidr{Length: 0}); err == nil {
		t.Fatal("length 0 should be rejected")
	}

	if err := pool.Install(nat64.Ipv4Cidr{Length: 33}); err == nil {
		t.Fatal("length 33 should be rejected")
	}
}

func TestAddressPoolInstallIdempotent(t *testing.T) {
	t.Parallel()

	var pool nat64.AddressPool

	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{192, 0, 2, 0}, Length: 28}
	if err := pool.Install(cidr); err != nil {
		t.Fatalf("install: %v", err)
	}

	_, _ = pool.Take()

	if err := pool.Install(cidr); err != nil {
		t.Fatalf("re-install: %v", err)
	}

	if want, have := 13, pool.Available(); want != have {
		t.Fatalf("re-installing the same cidr should not reset takes: want %d, have %d", want, have)
	}
}

func TestAddressPoolExhaustion(t *testing.T) {
	t.Parallel()

	var pool nat64.AddressPool

	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{192, 0, 2, 8}, Length: 31}
	if err := pool.Install(cidr); err != nil {
		t.Fatalf("install: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, ok := pool.Take(); !ok {
			t.Fatalf("take %d should have succeeded", i)
		}
	}

	if _, ok := pool.Take(); ok {
		t.Fatal("take on exhausted pool should fail")
	}
}

func TestAddressPoolPutWithoutTakePanics(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()

	var pool nat64.AddressPool

	// A /1 network's host count is capped at nat64.PoolSize, so the pool is already at its
	// absolute capacity right after install with nothing taken.
	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{10, 0, 0, 0}, Length: 1}
	if err := pool.Install(cidr); err != nil {
		t.Fatalf("install: %v", err)
	}

	if want, have := nat64.PoolSize, pool.Available(); want != have {
		t.Fatalf("want %d, have %d", want, have)
	}

	pool.Put(nat64.Ipv4Addr{192, 0, 2, 9})
}
