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

package sched

import "github.com/osmocom/osmo-bts-trx/internal/l1const"

// StaleQueueFrames bounds how far in the future a downlink primitive's fn
// may be before it is dropped as stale (spec.md section 5).
const StaleQueueFrames = l1const.MaxQueueAheadFrames

// dlItem is one queued downlink payload addressed to a specific fn.
type dlItem struct {
	fn      uint32
	payload []byte
}

// DLQueue is one logical channel's downlink FIFO, enqueued by PH-DATA.req /
// TCH.req and drained in FN order by the channel's TX step.
type DLQueue struct {
	items []dlItem
}

// Enqueue appends a payload for the given fn, in FIFO order (spec.md
// section 5: "PH-DATA.req ordering is FIFO within the channel queue").
func (q *DLQueue) Enqueue(fn uint32, payload []byte) {
	q.items = append(q.items, dlItem{fn, payload})
}

// Take removes and returns the payload queued for exactly fn, first dropping
// any earlier items whose fn is already behind it. The dropped items are not
// reported; DropStale is the call that returns what it drops.
func (q *DLQueue) Take(fn uint32) (payload []byte, ok bool) {
	for len(q.items) > 0 && q.items[0].fn < fn {
		q.items = q.items[1:]
	}
	if len(q.items) == 0 || q.items[0].fn != fn {
		return nil, false
	}
	payload = q.items[0].payload
	q.items = q.items[1:]
	return payload, true
}

// DropStale removes and returns queue items whose fn is more than
// StaleQueueFrames ahead of now (spec.md: "misconfigured RTS advance").
func (q *DLQueue) DropStale(now uint32) []uint32 {
	var dropped []uint32
	kept := q.items[:0]
	for _, it := range q.items {
		if fnAhead(it.fn, now) > StaleQueueFrames {
			dropped = append(dropped, it.fn)
			continue
		}
		kept = append(kept, it)
	}
	q.items = kept
	return dropped
}

// Reset drops every queued item, e.g. on a dynamic-timeslot reconfiguration
// (spec.md scenario S5: "any TCH.req pending at switch time is dropped").
func (q *DLQueue) Reset() {
	q.items = nil
}

// Len reports the number of queued items.
func (q *DLQueue) Len() int { return len(q.items) }

func fnAhead(fn, now uint32) int {
	const hf = l1const.Hyperframe
	d := (int64(fn) - int64(now)) % hf
	if d < 0 {
		d += hf
	}
	return int(d)
}
