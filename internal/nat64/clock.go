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

package nat64

import "time"

// Clock supplies the monotonic millisecond timestamps the mapping table uses to decide idle
// expiry. It is read-only from the translator's point of view; nothing in this package ever
// blocks on it or schedules against it, per the no-background-timer design in the notes.
type Clock interface {
	NowMs() uint64
}

// SystemClock is a [Clock] backed by the runtime monotonic clock.
type SystemClock struct{ epoch time.Time }

// NewSystemClock returns a [SystemClock] whose NowMs is relative to the moment it is created.
// Only relative differences between calls are meaningful, which is all the mapping table needs.
func NewSystemClock() SystemClock { return SystemClock{time.Now()} }

// NowMs implements [Clock].
func (c SystemClock) NowMs() uint64 { return uint64(time.Since(c.epoch).Milliseconds()) }
