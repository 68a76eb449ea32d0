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

package gateway_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"

	"go.eqrx.net/nat64gw/internal/gateway"
	"go.eqrx.net/nat64gw/internal/nat64"
)

// fakeTun is an in-memory stand-in for a tun device: reads drain an input queue, writes append to
// an output log, and Close unblocks any pending Read.
type fakeTun struct {
	mu     sync.Mutex
	in     [][]byte
	out    [][]byte
	closed chan struct{}
	mtu    int
}

func newFakeTun(mtu int) *fakeTun {
	return &fakeTun{closed: make(chan struct{}), mtu: mtu}
}

func (f *fakeTun) push(pkt []byte) {
	f.mu.Lock()
	f.in = append(f.in, pkt)
	f.mu.Unlock()
}

func (f *fakeTun) Read(p []byte) (int, error) {
	for {
		f.mu.Lock()
		if len(f.in) > 0 {
			pkt := f.in[0]
			f.in = f.in[1:]
			f.mu.Unlock()

			return copy(p, pkt), nil
		}
		f.mu.Unlock()

		select {
		case <-f.closed:
			return 0, io.EOF
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *fakeTun) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)

	f.mu.Lock()
	f.out = append(f.out, cp)
	f.mu.Unlock()

	return len(p), nil
}

func (f *fakeTun) Close() error {
	close(f.closed)

	return nil
}

func (f *fakeTun) MTU() int { return f.mtu }

func (f *fakeTun) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]byte, len(f.out))
	copy(out, f.out)

	return out
}

func buildIpv6Udp(t *testing.T, prefix nat64.Ipv6Prefix, src nat64.Ipv6Addr, dst nat64.Ipv4Addr) []byte {
	t.Helper()

	udp := []byte{0x30, 0x39, 0x00, 0x35, 0x00, 0x08, 0x00, 0x00}
	dstV6 := nat64.SynthesizeFromIp4Address(prefix, dst)

	header := nat64.BuildIpv6Header(nat64.Ipv6BuildFields{
		Source:      src,
		Destination: dstV6,
		NextHeader:  nat64.ProtocolUDP,
		HopLimit:    10,
		PayloadLen:  len(udp),
	})

	return append(header[:], udp...)
}

func TestGatewayNewAcceptsNilMetrics(t *testing.T) {
	t.Parallel()

	var m *gateway.Metrics

	// Should not panic when the gateway is constructed without a metrics collector.
	_ = gateway.New(nat64.NewTranslator(nat64.NewSystemClock()), m)
}

func TestNewMetricsRegistersCollectors(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	translator := nat64.NewTranslator(nat64.NewSystemClock())

	metrics := gateway.NewMetrics(reg, translator)
	if metrics == nil {
		t.Fatal("expected a non-nil metrics collector")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	if len(families) == 0 {
		t.Fatal("expected at least one registered metric family")
	}
}

func TestGatewayRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	translator := nat64.NewTranslator(nat64.NewSystemClock())
	prefix := nat64.Ipv6Prefix{Base: nat64.Ipv6Addr{0x00, 0x64, 0xff, 0x9b}, Length: 96}
	cidr := nat64.Ipv4Cidr{Base: nat64.Ipv4Addr{192, 0, 2, 0}, Length: 28}

	if err := translator.SetIp4Cidr(cidr); err != nil {
		t.Fatalf("set cidr: %v", err)
	}

	translator.SetNat64Prefix(prefix)

	if err := translator.SetEnabled(true); err != nil {
		t.Fatalf("set enabled: %v", err)
	}

	dev := newFakeTun(1500)
	dev.push(buildIpv6Udp(t, prefix, nat64.Ipv6Addr{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, nat64.Ipv4Addr{8, 8, 8, 8}))

	gw := gateway.New(translator, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- gw.RunWithDevice(ctx, logr.Discard(), dev)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("gateway did not stop after context cancellation")
	}

	if len(dev.written()) == 0 {
		t.Fatal("expected the translated packet to be written back to the device")
	}
}
