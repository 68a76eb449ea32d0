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

package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"

	"dev.eqrx.net/rungroup"
	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"go.eqrx.net/nat64gw/internal/env"
	"go.eqrx.net/nat64gw/internal/gateway"
	"go.eqrx.net/nat64gw/internal/nat64"
)

func main() {
	log := stdr.New(stdlog.New(os.Stderr, "", 0))

	var err error
	defer func() {
		if err != nil {
			log.Error(err, "program error")
			os.Exit(1)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), unix.SIGTERM, unix.SIGINT)
	defer cancel()

	err = run(ctx, log)
}

func run(ctx context.Context, log logr.Logger) error {
	iface := pflag.String("iface", "", "tun interface to attach the dataplane to (overrides "+env.Iface+")")
	pflag.Parse()

	translator, err := bootstrap()
	if err != nil {
		return err
	}

	ifaceName := *iface
	if ifaceName == "" {
		ifaceName, err = env.Lookup(env.Iface)
		if err != nil {
			return err
		}
	}

	metrics := gateway.NewMetrics(prometheus.DefaultRegisterer, translator)
	gw := gateway.New(translator, metrics)
	admin := gateway.NewAdmin(translator)

	group := rungroup.New(ctx)
	group.Go(func(ctx context.Context) error { return gw.Run(ctx, log.WithName("gateway"), ifaceName) })
	group.Go(func(ctx context.Context) error { return admin.Run(ctx, log.WithName("admin")) })

	if err := group.Wait(); err != nil {
		return err //nolint:wrapcheck
	}

	return nil
}

// bootstrap builds a [nat64.Translator] from the environment, applying an initial CIDR, prefix
// and idle timeout when the corresponding variables are set. It leaves the translator disabled
// unless env.Enabled asks otherwise, matching [nat64.Translator]'s own safe-by-default posture.
func bootstrap() (*nat64.Translator, error) {
	clock := nat64.NewSystemClock()

	idleTimeout, hasIdleTimeout, err := env.LookupDuration(env.IdleTimeout)
	if err != nil {
		return nil, err
	}

	translator := nat64.NewTranslator(clock)
	if hasIdleTimeout {
		translator = nat64.NewTranslatorWithIdleTimeout(clock, idleTimeout)
	}

	if cidrStr, lookupErr := env.Lookup(env.Ip4Cidr); lookupErr == nil {
		cidr, parseErr := gateway.ParseIpv4Cidr(cidrStr)
		if parseErr != nil {
			return nil, parseErr
		}

		if err := translator.SetIp4Cidr(cidr); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	if prefixStr, lookupErr := env.Lookup(env.Nat64Prefix); lookupErr == nil {
		prefix, parseErr := gateway.ParseIpv6Prefix(prefixStr)
		if parseErr != nil {
			return nil, parseErr
		}

		translator.SetNat64Prefix(prefix)
	}

	enabled, err := env.LookupBool(env.Enabled)
	if err != nil {
		return nil, err
	}

	if enabled {
		if err := translator.SetEnabled(true); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	return translator, nil
}
