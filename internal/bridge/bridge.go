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

// Package bridge runs the read-translate-write loop that pumps packets across a single linux tun,
// rewriting each one with a caller-supplied translate function before writing back whatever it
// decides to forward.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"dev.eqrx.net/rungroup"
	"github.com/go-logr/logr"

	"go.eqrx.net/nat64gw/internal/packet"
)

// Translate maps one packet read off the device to the bytes that should be written back, or
// asks for the packet to be dropped.
type Translate func(*packet.Packet) (out []byte, forward bool)

// Device is what Pump needs from a packet source: a tun device in production, an in-memory fake
// in tests.
type Device interface {
	io.ReadWriteCloser
	MTU() int
}

// Pump attaches to dev and calls translate on every packet read from it until ctx is cancelled or
// an unrecoverable I/O error occurs. It owns dev's lifetime: cancelling ctx closes it.
func Pump(ctx context.Context, log logr.Logger, dev Device, translate Translate) error {
	reader := packet.NewMTUReader(dev)
	rwc := packet.NewReadWriteCloser(dev, reader)

	group := rungroup.New(ctx)

	group.Go(func(ctx context.Context) error {
		<-ctx.Done()

		if err := rwc.Close(); err != nil {
			return fmt.Errorf("close device: %w", err)
		}

		return nil
	})

	group.Go(func(context.Context) error {
		transportFrames(log, rwc, translate)

		return nil
	})

	if err := group.Wait(); err != nil {
		return fmt.Errorf("pump device: %w", err)
	}

	return nil
}

// transportFrames reads packets from rwc, translates each and writes back whatever survives.
// Returns on any unrecoverable I/O error.
func transportFrames(log logr.Logger, rwc *packet.ReadWriteCloser, translate Translate) {
	for {
		pkt, err := rwc.ReadPacket()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Error(err, "could not read packet")
			}

			return
		}

		out, forward := translate(pkt)
		if !forward {
			continue
		}

		if _, err := rwc.Write(out); err != nil {
			if !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				log.Error(err, "could not write packet")
			}

			return
		}
	}
}
