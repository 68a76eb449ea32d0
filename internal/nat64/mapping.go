// Copyright (C) 2021 Alexander Sowitzki
//
// This program is free software: you can redistribute it and/or modify it under the terms of the
// GNU Affero General Public License as published by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU Affero License for more details.
//
// You should have received a copy of the GNU Affero General Public License along with this program.
// If not, see <https://www.gnu.org/licenses/>.

package nat64

import "time"

// DefaultIdleTimeout is the idle interval after which a mapping becomes eligible for eviction,
// absent an explicit override at construction time.
const DefaultIdleTimeout = 300 * time.Second

// AddressMapping binds one tracked IPv6 host to a pool-allocated IPv4 address for as long as
// traffic keeps it from going idle.
type AddressMapping struct {
	Ip6      Ipv6Addr
	Ip4      Ipv4Addr
	ExpiryMs uint64
}

// handle indexes into the mapping table's slot arena. noHandle marks the end of a free list.
type handle uint16

const noHandle handle = 0xffff

// slot is one arena entry: either a live mapping or a link in the free list.
type slot struct {
	mapping AddressMapping
	next    handle
	inUse   bool
}

// MappingTable is a bounded arena of [AddressMapping] records plus an active index, sized to
// [PoolSize] entries so it never grows after construction. Active mappings are referenced by
// arena index rather than pointer, which sidesteps aliasing entirely.
type MappingTable struct {
	slots       [PoolSize]slot
	freeHead    handle
	active      []handle
	idleTimeout time.Duration
}

// NewMappingTable returns an empty table with every slot on the free list.
func NewMappingTable(idleTimeout time.Duration) *MappingTable {
	t := &MappingTable{idleTimeout: idleTimeout, active: make([]handle, 0, PoolSize)}
	t.reset()

	return t
}

func (t *MappingTable) reset() {
	for i := range t.slots {
		next := handle(i + 1)
		if i == len(t.slots)-1 {
			next = noHandle
		}

		t.slots[i] = slot{next: next}
	}

	t.freeHead = 0
	t.active = t.active[:0]
}

// Reset frees every mapping. The caller-owned [AddressPool] is untouched; the configuration
// layer is responsible for reinitializing it separately.
func (t *MappingTable) Reset() { t.reset() }

// Len returns the number of currently active mappings.
func (t *MappingTable) Len() int { return len(t.active) }

// FindByIp6 linearly scans the active list for a mapping whose Ip6 matches. Callers that intend
// to use the mapping across a traversal should call [MappingTable.Touch] on it.
func (t *MappingTable) FindByIp6(ip6 Ipv6Addr) *AddressMapping {
	for _, h := range t.active {
		if t.slots[h].mapping.Ip6 == ip6 {
			return &t.slots[h].mapping
		}
	}

	return nil
}

// FindByIp4 linearly scans the active list for a mapping whose Ip4 matches. At most one active
// mapping can match a given IPv4 address (an AddressPool invariant).
func (t *MappingTable) FindByIp4(ip4 Ipv4Addr) *AddressMapping {
	for _, h := range t.active {
		if t.slots[h].mapping.Ip4 == ip4 {
			return &t.slots[h].mapping
		}
	}

	return nil
}

// Touch refreshes m's expiry relative to now.
func (t *MappingTable) Touch(m *AddressMapping, nowMs uint64) {
	m.ExpiryMs = nowMs + uint64(t.idleTimeout.Milliseconds())
}

// GetOrCreate returns the active mapping for ip6, creating one from pool if none exists yet.
// When either the arena or the address pool is exhausted it first runs an idle sweep and retries
// once, per the amortized-expiry design: there is no background sweeper, so staleness is only
// ever resolved on allocation pressure. It returns false if no mapping could be produced (the
// arena or the address pool still has nothing free after the sweep).
func (t *MappingTable) GetOrCreate(ip6 Ipv6Addr, nowMs uint64, pool *AddressPool) (*AddressMapping, bool) {
	if m := t.FindByIp6(ip6); m != nil {
		return m, true
	}

	h, ok := t.alloc()
	if !ok {
		t.expireIdle(nowMs, pool)

		h, ok = t.alloc()
		if !ok {
			return nil, false
		}
	}

	addr, ok := pool.Take()
	if !ok {
		t.expireIdle(nowMs, pool)

		addr, ok = pool.Take()
		if !ok {
			t.free(h)

			return nil, false
		}
	}

	m := &t.slots[h].mapping
	*m = AddressMapping{Ip6: ip6, Ip4: addr}
	t.Touch(m, nowMs)
	t.active = append(t.active, h)

	return m, true
}

// alloc pops a slot off the free list without populating it.
func (t *MappingTable) alloc() (handle, bool) {
	if t.freeHead == noHandle {
		return noHandle, false
	}

	h := t.freeHead
	t.freeHead = t.slots[h].next
	t.slots[h].inUse = true

	return h, true
}

// free returns a slot to the free list without touching the active index; used only to unwind
// a just-allocated slot when the address pool turned out to be empty.
func (t *MappingTable) free(h handle) {
	t.slots[h].inUse = false
	t.slots[h].next = t.freeHead
	t.freeHead = h
}

// expireIdle evicts every mapping whose expiry has passed, returning their IPv4 addresses to
// pool. This is the only place expiry is ever enforced; there is no background timer.
func (t *MappingTable) expireIdle(nowMs uint64, pool *AddressPool) {
	kept := t.active[:0]

	for _, h := range t.active {
		if t.slots[h].mapping.ExpiryMs < nowMs {
			pool.Put(t.slots[h].mapping.Ip4)
			t.free(h)

			continue
		}

		kept = append(kept, h)
	}

	t.active = kept
}
