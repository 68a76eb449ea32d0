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

// Package gateway wires a [nat64.Translator] to a linux tun device, pumping every packet crossing
// the tun through the translator and writing back whatever it decides to forward.
package gateway

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"golang.org/x/net/ipv6"

	"go.eqrx.net/nat64gw/internal/bridge"
	"go.eqrx.net/nat64gw/internal/nat64"
	"go.eqrx.net/nat64gw/internal/packet"
	"go.eqrx.net/nat64gw/internal/tun"
)

// headroom and tailroom are sized to cover the worst case growth either translation direction can
// incur: an outbound IPv4 header (20 bytes) replacing a stripped IPv6 header (40 bytes) needs no
// extra tailroom, but an inbound ICMPv4 error embedding an IPv4 datagram grows the rebuilt
// embedded header by up to 20 bytes. Reserving both on every packet keeps the buffer sizing
// uniform regardless of direction.
const (
	headroom = nat64.Ipv6HeaderLen
	tailroom = nat64.Ipv6HeaderLen - nat64.Ipv4HeaderLen
)

// Gateway owns the [nat64.Translator] instance that rewrites packets crossing a tun device. It
// carries no protocol state of its own; the translator is the single source of truth for active
// mappings and configuration.
type Gateway struct {
	translator *nat64.Translator
	metrics    *Metrics
}

// New returns a [Gateway] driving translator, publishing packet and pool observations to metrics.
func New(translator *nat64.Translator, metrics *Metrics) *Gateway {
	return &Gateway{translator, metrics}
}

// Run attaches to the tun interface named ifaceName and translates packets crossing it until ctx
// is cancelled or an unrecoverable I/O error occurs.
func (g *Gateway) Run(ctx context.Context, log logr.Logger, ifaceName string) error {
	dev, err := tun.New(ifaceName)
	if err != nil {
		return fmt.Errorf("run gateway: open tun: %w", err)
	}

	return g.RunWithDevice(ctx, log, dev)
}

// RunWithDevice is [Run] with the tun device injected, so tests can drive the dataplane loop
// against an in-memory fake instead of a real linux tun.
func (g *Gateway) RunWithDevice(ctx context.Context, log logr.Logger, dev bridge.Device) error {
	if err := bridge.Pump(ctx, log.WithName("dataplane"), dev, g.translate); err != nil {
		return fmt.Errorf("run gateway: %w", err)
	}

	return nil
}

// translate dispatches pkt to the translator based on its sniffed IP version and reports the
// bytes to forward, if any.
func (g *Gateway) translate(pkt *packet.Packet) ([]byte, bool) {
	msg := nat64.NewBuffer(headroom, tailroom, pkt.Marshalled)

	var disposition nat64.Disposition
	if pkt.Version == ipv6.Version {
		disposition = g.translator.HandleOutgoing(msg)
	} else {
		disposition = g.translator.HandleIncoming(msg)
	}

	g.metrics.observe(disposition)

	if disposition != nat64.Forward {
		return nil, false
	}

	return msg.Bytes(), true
}
