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

// Package env handles the environment variables the gateway daemon bootstraps itself from.
package env

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// errEnvNotFound indicates that a looked up env variable is not set.
var errEnvNotFound = errors.New("required env variable not set")

const (
	// Iface names the tun interface the gateway attaches its dataplane to.
	Iface = "NAT64GW_IFACE"
	// Ip4Cidr is the IPv4 CIDR the address pool is seeded from at startup, e.g. "192.0.2.0/24".
	// Optional: the translator starts with no pool installed and disabled if unset, waiting for
	// the admin API to configure it.
	Ip4Cidr = "NAT64GW_IP4_CIDR"
	// Nat64Prefix is the RFC 6052 translation prefix, e.g. "64:ff9b::/96". Optional, same
	// bootstrap semantics as Ip4Cidr.
	Nat64Prefix = "NAT64GW_PREFIX"
	// Enabled, when set to "true", enables the translator immediately after both Ip4Cidr and
	// Nat64Prefix have been applied.
	Enabled = "NAT64GW_ENABLED"
	// IdleTimeout overrides the mapping idle timeout, parsed with [time.ParseDuration]. Optional;
	// the translator's default is used when unset.
	IdleTimeout = "NAT64GW_IDLE_TIMEOUT"
)

// Lookup the environment variable name and return an error if not found. Just a wrapper for
// os.LookupEnv.
func Lookup(name string) (string, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return value, fmt.Errorf("%w: %s", errEnvNotFound, name)
	}

	return value, nil
}

// LookupDuration looks up name and parses it as a [time.Duration]. It returns ok=false without
// error when the variable is unset, so callers can fall back to a built-in default.
func LookupDuration(name string) (d time.Duration, ok bool, err error) {
	value, lookupErr := Lookup(name)
	if lookupErr != nil {
		return 0, false, nil
	}

	d, err = time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}

	return d, true, nil
}

// LookupBool looks up name and parses it as a boolean, defaulting to false when unset.
func LookupBool(name string) (bool, error) {
	value, ok := os.LookupEnv(name)
	if !ok {
		return false, nil
	}

	return value == "true" || value == "1", nil
}
