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

// This file is component 5 of the design: the Translator façade. It owns no rules of its own
// beyond sequencing; header shape lives in header.go, ICMP rules in icmp.go, mapping lifecycle in
// mapping.go.
package nat64

import (
	"encoding/binary"
	"sync"
	"time"
)

// Disposition is the tri-state outcome of handling one packet. ReplyIcmp is currently
// unreachable - nothing in this package synthesizes ICMP errors yet - but is kept as a distinct
// value since a Drop path may grow into one later.
type Disposition int

const (
	// Forward means the message should be emitted as-is (translated or, if the translator did
	// not claim the packet, byte-identical to the input).
	Forward Disposition = iota
	// Drop means the packet must be silently discarded.
	Drop
	// ReplyIcmp is reserved for a future disposition that synthesizes an ICMP error back to the
	// packet's origin. No current code path returns it.
	ReplyIcmp
)

// Translator is the NAT64 core. All of its state - the address pool, the mapping table and the
// configuration - is owned exclusively by it and guarded by mu, since a running gateway calls
// HandleOutgoing/HandleIncoming from its dataplane goroutine while the admin surface calls the
// configuration setters from HTTP handler goroutines. Packet handling itself remains logically
// single-threaded - one packet runs to completion before the next - the mutex only arbitrates
// between that goroutine and concurrent reconfiguration.
type Translator struct {
	mu       sync.Mutex
	pool     AddressPool
	mappings *MappingTable
	clock    Clock

	enabled bool
	prefix  Ipv6Prefix
}

// NewTranslator returns a disabled translator with an empty mapping table and no CIDR installed,
// using [DefaultIdleTimeout] for mapping expiry.
func NewTranslator(clock Clock) *Translator {
	return NewTranslatorWithIdleTimeout(clock, DefaultIdleTimeout)
}

// NewTranslatorWithIdleTimeout is [NewTranslator] with an explicit idle timeout, mainly useful
// for tests that need mappings to expire on a short, deterministic schedule.
func NewTranslatorWithIdleTimeout(clock Clock, idleTimeout time.Duration) *Translator {
	return &Translator{mappings: NewMappingTable(idleTimeout), clock: clock}
}

// HandleOutgoing implements the outbound (IPv6 to IPv4) state machine from the design notes.
func (t *Translator) HandleOutgoing(msg Message) Disposition {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.enabled {
		return Forward
	}

	raw := msg.ReadBytes(0, msg.Len())
	if len(raw) < Ipv6HeaderLen || raw[0]>>4 != 6 {
		return Drop
	}

	v6, err := ParseIpv6Header(raw[:Ipv6HeaderLen])
	if err != nil {
		return Drop
	}

	if !t.prefix.Valid() || !t.prefix.Contains(v6.Destination) {
		return Forward
	}

	if t.pool.Installed().Length == 0 {
		return Forward
	}

	if v6.HopLimit <= 1 {
		return Drop
	}

	mapping, ok := t.mappings.GetOrCreate(v6.Source, t.clock.NowMs(), &t.pool)
	if !ok {
		return Drop
	}

	t.mappings.Touch(mapping, t.clock.NowMs())

	msg.RemoveHeader(Ipv6HeaderLen)

	protocol, ok := translateProtocolV6ToV4(v6.NextHeader)
	if !ok {
		return Drop
	}

	destination := ExtractFromIp6Address(t.prefix, v6.Destination)

	if protocol == ProtocolICMPv4 {
		if !translateIcmpV6ToV4(msg, t.prefix, mapping) {
			return Drop
		}
	} else if !rewriteTransportChecksumV6ToV4(msg, mapping.Ip4, destination, protocol) {
		return Drop
	}

	header := BuildIpv4Header(Ipv4BuildFields{
		Source:      mapping.Ip4,
		Destination: destination,
		Protocol:    protocol,
		TTL:         v6.HopLimit - 1,
		PayloadLen:  msg.Len(),
	})

	if err := msg.PrependBytes(header[:]); err != nil {
		return Drop
	}

	return Forward
}

// HandleIncoming implements the inbound (IPv4 to IPv6) state machine from the design notes.
func (t *Translator) HandleIncoming(msg Message) Disposition {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw := msg.ReadBytes(0, msg.Len())
	if len(raw) >= 1 && raw[0]>>4 == 6 {
		return Forward
	}

	v4, err := ParseIpv4Header(raw)
	if err != nil {
		return Drop
	}

	if !t.prefix.Valid() {
		return Drop
	}

	if v4.TTL <= 1 {
		return Drop
	}

	mapping := t.mappings.FindByIp4(v4.Destination)
	if mapping == nil {
		return Drop
	}

	t.mappings.Touch(mapping, t.clock.NowMs())

	msg.RemoveHeader(Ipv4HeaderLen)

	nextHeader, ok := translateProtocolV4ToV6(v4.Protocol)
	if !ok {
		return Drop
	}

	source := SynthesizeFromIp4Address(t.prefix, v4.Source)

	if nextHeader == ProtocolICMPv6 {
		if !translateIcmpV4ToV6(msg, t.prefix, mapping, source, mapping.Ip6) {
			return Drop
		}
	} else if !rewriteTransportChecksumV4ToV6(msg, source, mapping.Ip6, nextHeader) {
		return Drop
	}

	header := BuildIpv6Header(Ipv6BuildFields{
		Source:      source,
		Destination: mapping.Ip6,
		NextHeader:  nextHeader,
		HopLimit:    v4.TTL - 1,
		PayloadLen:  msg.Len(),
	})

	if err := msg.PrependBytes(header[:]); err != nil {
		return Drop
	}

	return Forward
}

// rewriteTransportChecksumV6ToV4 recomputes a TCP/UDP checksum in place over msg (which holds
// exactly the transport segment, header and payload, after the IP header has been removed) using
// the new IPv4 pseudo-header. The segment's checksum field is zeroed before summing.
func rewriteTransportChecksumV6ToV4(msg Message, src, dst Ipv4Addr, protocol uint8) bool {
	offset, ok := checksumFieldOffset(protocol)
	if !ok {
		return true
	}

	if msg.Len() < offset+2 {
		return false
	}

	msg.WriteBytes(offset, []byte{0, 0})

	pseudoSum := pseudoHeaderSumV4(src, dst, protocol, msg.Len())
	checksum := transportChecksum(pseudoSum, msg.ReadBytes(0, msg.Len()))

	if protocol == ProtocolUDP && checksum == 0 {
		checksum = 0xffff
	}

	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], checksum)
	msg.WriteBytes(offset, buf[:])

	return true
}

// rewriteTransportChecksumV4ToV6 is the inbound counterpart. RFC 7915 section 4.5 forbids a zero
// UDP checksum on the IPv6 side, so this always writes a real value even if the IPv4 side left
// its optional checksum at zero: the full recompute in transportChecksum handles that uniformly.
func rewriteTransportChecksumV4ToV6(msg Message, src, dst Ipv6Addr, nextHeader uint8) bool {
	offset, ok := checksumFieldOffset(nextHeader)
	if !ok {
		return true
	}

	if msg.Len() < offset+2 {
		return false
	}

	msg.WriteBytes(offset, []byte{0, 0})

	pseudoSum := pseudoHeaderSumV6(src, dst, nextHeader, msg.Len())
	checksum := transportChecksum(pseudoSum, msg.ReadBytes(0, msg.Len()))

	// RFC 768: a UDP checksum that computes to zero is transmitted as all ones - zero itself
	// means "no checksum" and IPv6 UDP has no such escape hatch.
	if nextHeader == ProtocolUDP && checksum == 0 {
		checksum = 0xffff
	}

	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], checksum)
	msg.WriteBytes(offset, buf[:])

	return true
}

// checksumFieldOffset returns the byte offset of the checksum field within a TCP or UDP segment.
// ok is false for any other protocol, which callers with a transport checksum step should treat
// as "no rewrite needed" rather than a failure - only TCP and UDP reach this helper in practice.
func checksumFieldOffset(protocol uint8) (int, bool) {
	switch protocol {
	case ProtocolTCP:
		return 16, true
	case ProtocolUDP:
		return 6, true
	default:
		return 0, false
	}
}
