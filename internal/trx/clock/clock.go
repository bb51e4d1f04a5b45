// SPDX-License-Identifier: AGPL-3.0-or-later
// osmo-bts-trx - GSM layer 1 scheduler, channel coding and TRX protocol
// Copyright (C) 2026 OsmoBTS-TRX Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package clock implements the frame clock engine (spec.md section 4.7):
// it slaves a local frame-number counter to remote "IND CLOCK" datagrams,
// smooths gaps with a periodic timer tick, and declares the modem link lost
// after too many ticks pass without a fresh clock datagram.
package clock

import (
	"fmt"
	"time"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

// FrameDuration is the fixed GSM TDMA frame duration.
const FrameDuration = time.Duration(l1const.FrameDurationMicros) * time.Microsecond

// modDelta returns the signed difference (fn - last) modulo the hyperframe,
// normalised to the range that represents the shortest rotation between the
// two frame numbers.
func modDelta(fn, last uint32) int {
	const hf = l1const.Hyperframe
	d := (int64(fn) - int64(last)) % hf
	if d > hf/2 {
		d -= hf
	} else if d < -hf/2 {
		d += hf
	}
	return int(d)
}

// FrameClock is one phy link's clock slave.
type FrameClock struct {
	haveLastFN bool
	lastFN     uint32

	lostTicks int

	// pending holds FNs that became due for fn_tick since the last call to
	// Due, in increasing order; a resync or catch-up can enqueue more than
	// one.
	pending []uint32
}

// New returns a FrameClock with no established last-fn.
func New() *FrameClock {
	return &FrameClock{}
}

// LinkLostAfterTicks is the number of consecutive periodic-timer firings
// with no intervening clock datagram that declares the link lost (spec.md:
// "after ~400 timer firings").
const LinkLostAfterTicks = l1const.LostClockTicks

// OnClockIndication processes a received "IND CLOCK <fn>" datagram. It
// resets the lost-clock counter and queues the FN (or a catch-up run of
// FNs) for delivery via Due.
func (c *FrameClock) OnClockIndication(fn uint32) {
	c.lostTicks = 0
	fn %= l1const.Hyperframe
	if !c.haveLastFN {
		c.haveLastFN = true
		c.lastFN = fn
		c.pending = append(c.pending, fn)
		return
	}
	delta := modDelta(fn, c.lastFN)
	switch {
	case delta > l1const.MaxFNSkew || delta < -l1const.MaxFNSkew:
		// Beyond tolerance: resync immediately to the received fn rather
		// than walking every intermediate frame.
		c.lastFN = fn
		c.pending = append(c.pending, fn)
	case delta < 0:
		// We are ahead of the remote clock; nothing to deliver yet, the
		// periodic timer will catch the scheduler up.
	case delta == 0:
		// Duplicate of the last-seen fn: no new tick.
	default:
		for f := c.lastFN + 1; ; f++ {
			f %= l1const.Hyperframe
			c.pending = append(c.pending, f)
			if f == fn {
				break
			}
		}
		c.lastFN = fn
	}
}

// Tick processes one periodic-timer firing (spec.md: "fires every 4615 µs
// when no clock datagrams are arriving"). It advances to the next expected
// fn and increments the lost-clock counter; if the counter exceeds
// LinkLostAfterTicks, it returns linkLost=true and the caller must flush the
// TRXC queue, reset the scheduler and issue POWEROFF.
//
// The reactor must only call Tick for a period in which no clock datagram
// was received; a received datagram already advances the clock (and resets
// the lost-tick counter) via OnClockIndication, so also calling Tick for
// that same period would double-dispatch a frame.
func (c *FrameClock) Tick() (linkLost bool) {
	c.lostTicks++
	if c.haveLastFN {
		next := (c.lastFN + 1) % l1const.Hyperframe
		c.pending = append(c.pending, next)
		c.lastFN = next
	}
	return c.lostTicks > LinkLostAfterTicks
}

// Due drains and returns the frame numbers now ready for fn_tick dispatch,
// in the order they occurred. The caller must deliver every one to the
// scheduler to satisfy the "no upward TIME.ind is skipped or duplicated"
// invariant.
func (c *FrameClock) Due() []uint32 {
	due := c.pending
	c.pending = nil
	return due
}

// Reset clears all clock-slave state, for use after a POWEROFF triggered by
// link loss.
func (c *FrameClock) Reset() {
	*c = FrameClock{}
}

// LastFN returns the last-known frame number and whether one has been
// established yet.
func (c *FrameClock) LastFN() (fn uint32, ok bool) {
	return c.lastFN, c.haveLastFN
}

func (c *FrameClock) String() string {
	if !c.haveLastFN {
		return "clock(unsynced)"
	}
	return fmt.Sprintf("clock(fn=%d, lost_ticks=%d)", c.lastFN, c.lostTicks)
}
