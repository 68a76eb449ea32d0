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

import "fmt"

// PoolSize bounds both the AddressPool and the MappingTable. It is a compile-time constant so
// that both structures can be backed by fixed-size arrays with no heap growth after Translator
// construction.
const PoolSize = 4096

// AddressPool is a fixed-capacity stack of free IPv4 host addresses derived from a configured
// CIDR. It never allocates once constructed: Install rewrites entries in place.
type AddressPool struct {
	addrs     [PoolSize]Ipv4Addr
	available int
	cidr      Ipv4Cidr
}

// Installed returns the CIDR currently backing the pool. A zero value (Length 0, which never
// validates) means none has been installed.
func (p *AddressPool) Installed() Ipv4Cidr { return p.cidr }

// Install validates length and repopulates the pool with the host addresses of cidr, per the
// derivation rules in the data model: /32 yields the address itself, /31 yields both addresses,
// and /1 through /30 yield network+1 through network+n, skipping the network and broadcast
// addresses and capping at [PoolSize]. Install is idempotent when cidr already matches the
// installed one.
func (p *AddressPool) Install(cidr Ipv4Cidr) error {
	if cidr.Length < 1 || cidr.Length > 32 {
		return fmt.Errorf("%w: %d", errInvalidCidr, cidr.Length)
	}

	if p.cidr.Equal(cidr) {
		return nil
	}

	// Take pops from the highest live index, so hosts are stored back to front: the first Take
	// after a fresh install must return host id 0 (network+1), per the pool invariant.
	count := hostCount(cidr.Length, PoolSize)
	for i := 0; i < count; i++ {
		p.addrs[count-1-i] = hostAt(cidr.Base, cidr.Length, i)
	}

	p.available = count
	p.cidr = cidr

	return nil
}

// Available reports how many addresses are currently free.
func (p *AddressPool) Available() int { return p.available }

// Take pops the top address off the pool. It returns false if the pool is exhausted.
func (p *AddressPool) Take() (Ipv4Addr, bool) {
	if p.available == 0 {
		return Ipv4Addr{}, false
	}

	p.available--

	return p.addrs[p.available], true
}

// Put pushes addr back onto the pool. The caller must ensure every Put is preceded by exactly
// one matching Take; Put does not check for duplicates.
func (p *AddressPool) Put(addr Ipv4Addr) {
	if p.available >= len(p.addrs) {
		panic("address pool: put without matching take")
	}

	p.addrs[p.available] = addr
	p.available++
}
