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

// Package nat64 implements the stateful core of a NAT64 translator: bidirectional IPv6/IPv4
// header translation per RFC 6145/7915, RFC 6052 address embedding, a bounded address-mapping
// table with amortized idle expiry, and checksum-neutral rewriting including ICMP error messages
// and their embedded offending datagrams.
//
// Packet handling is logically synchronous - one packet runs to completion before the next - and
// nothing here performs I/O, blocks, or allocates once a Translator is constructed. [Translator]
// guards its state with a mutex so its configuration setters may be called concurrently with
// HandleOutgoing/HandleIncoming from a separate goroutine, as an admin surface driving live
// reconfiguration would.
package nat64
