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

package gateway

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"

	"dev.eqrx.net/rungroup"
	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.eqrx.net/nat64gw/internal/nat64"
	tlsconf "go.eqrx.net/nat64gw/internal/tls"
)

// errSocketCount is returned when systemd hands us a socket count Run does not know how to serve.
var errSocketCount = errors.New("admin: unexpected number of sockets from systemd")

// Admin serves the mTLS HTTP configuration surface that lets an operator reconfigure a running
// [nat64.Translator] without restarting the gateway process, plus a /metrics endpoint.
type Admin struct {
	translator *nat64.Translator
}

// NewAdmin returns an [Admin] bound to translator.
func NewAdmin(translator *nat64.Translator) *Admin {
	return &Admin{translator}
}

// status mirrors the translator's configuration surface for JSON serialization.
type status struct {
	Enabled            bool   `json:"enabled"`
	Ip4Cidr            string `json:"ip4_cidr,omitempty"`
	Nat64Prefix        string `json:"nat64_prefix,omitempty"`
	ActiveMappings     int    `json:"active_mappings"`
	AvailableAddresses int    `json:"available_addresses"`
}

// configRequest is the payload accepted by PUT /config. Fields left empty (Ip4Cidr, Nat64Prefix)
// leave the corresponding translator setting untouched.
type configRequest struct {
	Ip4Cidr     string `json:"ip4_cidr"`
	Nat64Prefix string `json:"nat64_prefix"`
	Enabled     *bool  `json:"enabled"`
}

// Run listens on the socket activated by systemd (see sd_listen_fds(3)) and serves the admin API
// over mTLS until ctx is cancelled.
func (a *Admin) Run(ctx context.Context, log logr.Logger) error {
	listeners, err := activation.Listeners()
	if err != nil {
		return fmt.Errorf("run admin: socket activation: %w", err)
	}

	if len(listeners) != 1 {
		return fmt.Errorf("run admin: %w: expected 1, got %d", errSocketCount, len(listeners))
	}

	tlsConfig, err := tlsconf.Config()
	if err != nil {
		return fmt.Errorf("run admin: %w", err)
	}

	listener := tls.NewListener(listeners[0], tlsConfig)
	server := &http.Server{Handler: a.mux(log)} //nolint:gosec // admin surface, timeouts owned by systemd socket lifetime.

	group := rungroup.New(ctx)

	group.Go(func(ctx context.Context) error {
		<-ctx.Done()

		if err := listener.Close(); err != nil {
			return fmt.Errorf("close admin listener: %w", err)
		}

		return nil
	})

	group.Go(func(context.Context) error {
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("serve admin: %w", err)
		}

		return nil
	})

	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		return fmt.Errorf("run admin: systemd notify: %w", err)
	}

	defer func() { _, _ = daemon.SdNotify(false, daemon.SdNotifyStopping) }()

	if err := group.Wait(); err != nil {
		return fmt.Errorf("run admin: %w", err)
	}

	return nil
}

// HandlerForTest exposes a's HTTP handler without the systemd/mTLS listener plumbing, so tests can
// drive the admin API directly with [net/http/httptest].
func HandlerForTest(a *Admin, log logr.Logger) http.Handler { return a.mux(log) }

func (a *Admin) mux(log logr.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", a.handleStatus)
	mux.HandleFunc("/config", a.handleConfig(log))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (a *Admin) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

		return
	}

	resp := status{
		Enabled:            a.translator.Enabled(),
		ActiveMappings:     a.translator.MappingCount(),
		AvailableAddresses: a.translator.AvailableAddresses(),
	}

	if cidr := a.translator.Ip4Cidr(); cidr.Length != 0 {
		resp.Ip4Cidr = fmt.Sprintf("%s/%d", cidr.Base, cidr.Length)
	}

	if prefix := a.translator.Nat64Prefix(); prefix.Valid() {
		resp.Nat64Prefix = fmt.Sprintf("%s/%d", prefix.Base, prefix.Length)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (a *Admin) handleConfig(log logr.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)

			return
		}

		var req configRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)

			return
		}

		if req.Ip4Cidr != "" {
			cidr, err := ParseIpv4Cidr(req.Ip4Cidr)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}

			if err := a.translator.SetIp4Cidr(cidr); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}
		}

		if req.Nat64Prefix != "" {
			prefix, err := ParseIpv6Prefix(req.Nat64Prefix)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}

			a.translator.SetNat64Prefix(prefix)
		}

		if req.Enabled != nil {
			if err := a.translator.SetEnabled(*req.Enabled); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)

				return
			}
		}

		log.Info("configuration updated", "remote", r.RemoteAddr)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ParseIpv4Cidr and ParseIpv6Prefix bridge operator-facing CIDR notation to the translator's
// wire-shaped address types using [net/netip], since nothing in this package's domain otherwise
// needs general-purpose IP text parsing.
func ParseIpv4Cidr(s string) (nat64.Ipv4Cidr, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return nat64.Ipv4Cidr{}, fmt.Errorf("parse ipv4 cidr %q: %w", s, err)
	}

	addr := prefix.Addr()
	if !addr.Is4() {
		return nat64.Ipv4Cidr{}, fmt.Errorf("parse ipv4 cidr %q: not an ipv4 address", s)
	}

	return nat64.Ipv4Cidr{Base: nat64.Ipv4Addr(addr.As4()), Length: uint8(prefix.Bits())}, nil
}

func ParseIpv6Prefix(s string) (nat64.Ipv6Prefix, error) {
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return nat64.Ipv6Prefix{}, fmt.Errorf("parse nat64 prefix %q: %w", s, err)
	}

	addr := prefix.Addr()
	if !addr.Is6() {
		return nat64.Ipv6Prefix{}, fmt.Errorf("parse nat64 prefix %q: not an ipv6 address", s)
	}

	return nat64.Ipv6Prefix{Base: nat64.Ipv6Addr(addr.As16()), Length: uint8(prefix.Bits())}, nil
}
