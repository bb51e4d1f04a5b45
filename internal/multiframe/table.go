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

// Package multiframe holds the read-only multiframe descriptor tables that
// tell the scheduler which logical channel owns each frame number on each
// timeslot, for every physical channel combination (spec.md section 4.1/4.2,
// "Multiframe descriptor"). Tables are pure data plus small pure lookup
// functions; nothing here touches the network or the clock.
package multiframe

import (
	"fmt"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

// Role identifies the logical channel occupying one frame slot of a table,
// plus its logical subchannel (SDCCH/TCH subslot index, -1 when not
// applicable).
type Role struct {
	Chan l1const.ChanType
	Sub  int
}

var idleRole = Role{Chan: l1const.ChanNone, Sub: -1}

// Entry is one frame slot's downlink and uplink role. Idle marks a frame
// that carries no logical channel at all (spec.md: "idle-frame handling").
//
// DLBid/ULBid give the multi-burst block index (spec.md's dl_bid/ul_bid)
// when the table builder can fix it at construction time: channels whose
// `depth`-many bursts occupy consecutive frames within a single period
// repetition (BCCH, AGCH/PCH, SDCCH, and the SACCH of the SDCCH/4 and SDCCH/8
// tables) get it recorded here. Everything else leaves these at -1 and the
// scheduler derives the block index at run time from the absolute frame
// number, via one of two formulas depending on the channel's own shape
// (l1const.ChanType.PeriodStrideBid): on TCH timeslots, SACCH/PTCCH's
// single reserved frame recurs once per period, with the block spanning
// `depth` period repetitions (BidAt); TCH/F, TCH/H and PDTCH instead carry a
// burst on nearly every frame, with the block spanning `depth` consecutive
// frames (a plain fn % depth, computed by the scheduler, not this package).
type Entry struct {
	DL    Role
	UL    Role
	DLBid int
	ULBid int
	Idle  bool
}

// Table is the read-only multiframe descriptor for one physical channel
// combination: a fixed-length cycle of per-frame roles.
//
// spec.md's frames[i] = (dl_chan, dl_bid, ul_chan, ul_bid) packs the
// multi-burst block index (bid) into the same per-frame cell as the channel
// identity. That works for channels whose block length divides the table's
// period, but a TCH timeslot's SACCH block spans 4 repetitions of the period itself (its
// reserved frame recurs every Period frames, and one SACCH block spans 4
// such recurrences = 4*Period absolute frames) -- a literal frames[Period]
// array cannot hold its bid. This package instead stores channel identity
// per cell and derives bid from the absolute frame number via Entry/BidAt,
// which needs no extra state and degenerates to a simple index for
// channels whose block fits inside one period.
type Table struct {
	Pchan  l1const.Pchan
	Period int
	cells  []Entry
}

// At returns the frame slot for the given absolute frame number.
func (t *Table) At(fn uint32) Entry {
	return t.cells[int(fn)%t.Period]
}

// BidAt returns the multi-burst block index for the absolute frame number
// fn, given the channel's own interleaving depth, for a channel whose
// single reserved frame recurs once per period (SACCH, PTCCH -- see
// l1const.ChanType.PeriodStrideBid). Not valid for frame-continuous
// channels (TCH/F, TCH/H, PDTCH); the scheduler derives those with a plain
// fn % depth instead, since within any one period fn/period is constant.
func BidAt(fn uint32, period, depth int) int {
	if depth <= 0 {
		return 0
	}
	return int(fn/uint32(period)) % depth
}

// ResolveBid returns the entry's recorded block index if the table builder
// fixed one (DLBid/ULBid >= 0), or derives it from fn via BidAt. Only
// correct for period-stride channels (see BidAt); the scheduler does not
// use this for TCH/F, TCH/H or PDTCH.
func (t *Table) ResolveBid(fn uint32, recorded, depth int) int {
	if recorded >= 0 {
		return recorded
	}
	return BidAt(fn, t.Period, depth)
}

func newTable(pchan l1const.Pchan, period int, cells []Entry) (*Table, error) {
	if len(cells) != period {
		return nil, fmt.Errorf("multiframe: table for %s: built %d cells, want period %d", pchan, len(cells), period)
	}
	return &Table{Pchan: pchan, Period: period, cells: cells}, nil
}

func fill(period int, set func(fn int, e *Entry)) []Entry {
	cells := make([]Entry, period)
	for fn := range cells {
		cells[fn] = Entry{DL: idleRole, UL: idleRole, DLBid: -1, ULBid: -1, Idle: true}
		set(fn, &cells[fn])
	}
	return cells
}
