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

// This file is component 6 of the design: the configuration surface bolted onto [Translator].
package nat64

import (
	"errors"
	"fmt"
)

// ErrInvalidArgs is returned by [Translator.SetIp4Cidr] when the supplied CIDR length is out of
// the valid range.
var ErrInvalidArgs = errors.New("invalid configuration argument")

// ErrInvalidState is returned by [Translator.SetEnabled] when asked to enable a translator that
// has no address pool installed yet.
var ErrInvalidState = errors.New("translator is not ready to be enabled")

// SetIp4Cidr installs a new source address pool. Reconfiguring to a different CIDR discards every
// active mapping, since their ip4 bindings are no longer guaranteed valid; reconfiguring to the
// already-installed CIDR is a no-op that leaves the mapping table untouched.
func (t *Translator) SetIp4Cidr(cidr Ipv4Cidr) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cidr.Length < 1 || cidr.Length > 32 {
		return fmt.Errorf("set ipv4 cidr: %w: length %d", ErrInvalidArgs, cidr.Length)
	}

	if t.pool.Installed().Equal(cidr) {
		return nil
	}

	t.mappings.Reset()

	return t.pool.Install(cidr)
}

// SetNat64Prefix records the prefix used to synthesize and extract IPv4-embedded IPv6 addresses.
// It does not disturb the mapping table: existing mappings bind an IPv6 host to an IPv4 address
// and are independent of how that IPv4 address is later re-embedded into IPv6 for the return
// path.
func (t *Translator) SetNat64Prefix(prefix Ipv6Prefix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prefix = prefix
}

// Nat64Prefix returns the currently configured prefix.
func (t *Translator) Nat64Prefix() Ipv6Prefix {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.prefix
}

// Ip4Cidr returns the currently installed source CIDR.
func (t *Translator) Ip4Cidr() Ipv4Cidr {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.pool.Installed()
}

// Enabled reports whether the translator currently claims matching traffic.
func (t *Translator) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.enabled
}

// SetEnabled toggles whether the translator claims matching traffic. Enabling requires a source
// CIDR to already be installed. Disabling always succeeds; subsequent outbound packets Forward
// unchanged until re-enabled. HandleIncoming does not consult the flag, so inbound packets that
// match an existing mapping are still translated.
func (t *Translator) SetEnabled(enabled bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if enabled && t.pool.Installed().Length == 0 {
		return fmt.Errorf("set enabled: %w", ErrInvalidState)
	}

	t.enabled = enabled

	return nil
}

// MappingCount reports the number of currently active address mappings, mainly for diagnostics
// and metrics collaborators outside this package.
func (t *Translator) MappingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.mappings.Len()
}

// AvailableAddresses reports how many IPv4 addresses remain free in the pool.
func (t *Translator) AvailableAddresses() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.pool.Available()
}
