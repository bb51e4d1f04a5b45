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

import (
	"fmt"

	"github.com/osmocom/osmo-bts-trx/internal/burst"
	"github.com/osmocom/osmo-bts-trx/internal/cipher"
	"github.com/osmocom/osmo-bts-trx/internal/codec"
	"github.com/osmocom/osmo-bts-trx/internal/l1const"
	"github.com/osmocom/osmo-bts-trx/internal/multiframe"
)

// lchanKey identifies one logical channel instance within a timeslot. For
// the broadcast control channels (BCCH/AGCH/PCH/CCCH) the multiframe table
// reuses Role.Sub to carry the block index rather than a subchannel
// identity, so normalizedSub collapses it back to a single instance.
type lchanKey struct {
	Chan l1const.ChanType
	Sub  int
}

func normalizedSub(c l1const.ChanType, sub int) int {
	switch c {
	case l1const.ChanBCCH, l1const.ChanAGCH, l1const.ChanPCH, l1const.ChanCCCH:
		return 0
	default:
		return sub
	}
}

// Timeslot is the Tick-driven scheduler state for one physical timeslot: its
// multiframe table, the lchans it currently hosts, and each lchan's
// downlink queue / uplink block accumulator (spec.md sections 2.4 and 4.2).
type Timeslot struct {
	TN    int
	Table *multiframe.Table
	BSIC  uint8

	RTSAdvance   uint32
	ClockAdvance uint32

	lchans  map[lchanKey]*Lchan
	dlq     map[lchanKey]*DLQueue
	ulb     map[lchanKey]*ULBlock
	dlSplit map[lchanKey][][]uint8
}

// NewTimeslot builds the scheduler state for a timeslot from its multiframe
// table, creating one inactive Lchan per distinct (channel type, subchannel)
// role the table references. rtsAdvance and clockAdvance come from the
// process-wide rts-advance/fn-advance config (spec.md section 6); callers
// without a config may pass l1const.DefaultRTSAdvance/DefaultClockAdvance.
func NewTimeslot(tn int, table *multiframe.Table, bsic uint8, rtsAdvance, clockAdvance uint32) *Timeslot {
	t := &Timeslot{
		TN:           tn,
		Table:        table,
		BSIC:         bsic,
		RTSAdvance:   rtsAdvance,
		ClockAdvance: clockAdvance,
		lchans:       map[lchanKey]*Lchan{},
		dlq:          map[lchanKey]*DLQueue{},
		ulb:          map[lchanKey]*ULBlock{},
		dlSplit:      map[lchanKey][][]uint8{},
	}
	for fn := 0; fn < table.Period; fn++ {
		e := table.At(uint32(fn))
		if e.Idle {
			continue
		}
		t.ensureLchan(e.DL)
		t.ensureLchan(e.UL)
	}
	return t
}

func (t *Timeslot) ensureLchan(r multiframe.Role) {
	if r.Chan == l1const.ChanNone || r.Chan == l1const.ChanFCCH || r.Chan == l1const.ChanSCH ||
		r.Chan == l1const.ChanRACH || r.Chan == l1const.ChanPRACH || r.Chan == l1const.ChanPTCCH {
		return
	}
	key := lchanKey{r.Chan, normalizedSub(r.Chan, r.Sub)}
	if _, ok := t.lchans[key]; ok {
		return
	}
	t.lchans[key] = NewLchan(r.Chan, key.Sub)
	t.dlq[key] = &DLQueue{}
	t.ulb[key] = NewULBlock(r.Chan.InterleaveDepth(), 114)
}

// Lchan looks up a hosted logical channel.
func (t *Timeslot) Lchan(chanType l1const.ChanType, sub int) (*Lchan, bool) {
	l, ok := t.lchans[lchanKey{chanType, normalizedSub(chanType, sub)}]
	return l, ok
}

// EnqueueDL queues a downlink payload for the given block-start fn.
func (t *Timeslot) EnqueueDL(chanType l1const.ChanType, sub int, fn uint32, payload []byte) {
	if q, ok := t.dlq[lchanKey{chanType, normalizedSub(chanType, sub)}]; ok {
		q.Enqueue(fn, payload)
	}
}

// BeginReleaseAll requests release of every currently active lchan and
// drops every queued downlink item, for a dynamic-timeslot reconfiguration
// (spec.md scenario S5: deactivate, then drop pending TCH.req, before
// SETSLOT). It returns the (chan, sub) pairs for which a release was just
// requested, for the caller to report upward.
func (t *Timeslot) BeginReleaseAll() []RTSEvent {
	var released []RTSEvent
	for key, l := range t.lchans {
		t.dlq[key].Reset()
		if l.Active() {
			l.RequestRelease()
			released = append(released, RTSEvent{Chan: key.Chan, Sub: key.Sub})
		}
	}
	return released
}

// AllReleased reports whether every hosted lchan has completed deactivation
// (spec.md scenario S5: SETSLOT only follows full drain).
func (t *Timeslot) AllReleased() bool {
	for _, l := range t.lchans {
		if l.State != l1const.LchanStateNone {
			return false
		}
	}
	return true
}

// ChanSub names one logical channel instance by type and subchannel.
type ChanSub struct {
	Chan l1const.ChanType
	Sub  int
}

// Hosted lists every logical channel instance this timeslot's table gives a
// role to, for a caller that needs to announce them (e.g. activation
// indications after a dynamic-timeslot reconfiguration).
func (t *Timeslot) Hosted() []ChanSub {
	out := make([]ChanSub, 0, len(t.lchans))
	for key := range t.lchans {
		out = append(out, ChanSub{Chan: key.Chan, Sub: key.Sub})
	}
	return out
}

// RTSEvent reports that a channel's next coded block starts at FN and the
// upper layer should now enqueue its payload (spec.md section 4.2, "RTS
// fires rts_advance frames ahead of transmission").
type RTSEvent struct {
	Chan  l1const.ChanType
	Sub   int
	FN    uint32
	IsTCH bool
}

// RTSStep reports the RTS events due for the block that will start
// RTSAdvance frames after fn.
func (t *Timeslot) RTSStep(fn uint32) []RTSEvent {
	target := (fn + t.RTSAdvance) % l1const.Hyperframe
	e := t.Table.At(target)
	if e.Idle || e.DL.Chan == l1const.ChanNone {
		return nil
	}
	depth := e.DL.Chan.InterleaveDepth()
	if t.bidFor(e.DL.Chan, target, e.DLBid, depth) != 0 {
		return nil
	}
	return []RTSEvent{{Chan: e.DL.Chan, Sub: e.DL.Sub, FN: target, IsTCH: e.DL.Chan.IsTCH()}}
}

// bidFor derives a channel's block index at fn: the table's recorded value
// if it fixed one at build time, or one of two derivations depending on
// whether the channel's reserved frame recurs once per period (SACCH,
// PTCCH) or on consecutive frames (TCH/F, TCH/H, PDTCH) -- see
// l1const.ChanType.PeriodStrideBid.
func (t *Timeslot) bidFor(chanType l1const.ChanType, fn uint32, recorded, depth int) int {
	if recorded >= 0 {
		return recorded
	}
	if chanType.PeriodStrideBid() {
		return multiframe.BidAt(fn, t.Table.Period, depth)
	}
	if depth <= 0 {
		return 0
	}
	return int(fn) % depth
}

func stealingFlags(c l1const.ChanType) (hl, hn uint8) {
	if c == l1const.ChanTCHF || c == l1const.ChanTCHH {
		return 0, 0
	}
	return 1, 1
}

// TXStep returns the 148-bit burst to transmit at fn, or nil if this
// timeslot's table leaves fn idle and the timeslot is not C0 (which must
// keep transmitting dummy bursts, spec.md section 4.2).
func (t *Timeslot) TXStep(fn uint32) ([]uint8, error) {
	e := t.Table.At(fn)
	idleBurst := func() ([]uint8, error) {
		if t.TN == 0 {
			return burst.DummyBurst(), nil
		}
		return nil, nil
	}
	if e.Idle || e.DL.Chan == l1const.ChanNone {
		return idleBurst()
	}
	switch e.DL.Chan {
	case l1const.ChanFCCH:
		return burst.FCCHBurst(), nil
	case l1const.ChanSCH:
		return nil, fmt.Errorf("sched: tx_step: SCH burst content comes from EncodeSCHBurst, not TXStep")
	}

	key := lchanKey{e.DL.Chan, normalizedSub(e.DL.Chan, e.DL.Sub)}
	l, ok := t.lchans[key]
	if !ok || !l.Active() {
		return idleBurst()
	}

	depth := e.DL.Chan.InterleaveDepth()
	bid := t.bidFor(e.DL.Chan, fn, e.DLBid, depth)
	family := FamilyFor(e.DL.Chan)

	if bid == 0 {
		queued, haveQueued := t.dlq[key].Take(fn)
		payload, isSID := l.DLPayload(fn, queued, haveQueued)
		var coded []uint8
		var err error
		switch {
		case isSID && payload != nil:
			l.NoteSIDSent(payload)
			coded, err = encodeSIDFrame(l, payload)
		case isSID:
			coded = codec.NoDataPayload(family.BlockLen())
		case payload != nil:
			coded, err = EncodeDL(l, payload)
		default:
			return idleBurst()
		}
		if err != nil {
			return nil, err
		}
		split, err := SplitBlock(family, depth, coded)
		if err != nil {
			return nil, err
		}
		t.dlSplit[key] = split
	}

	split := t.dlSplit[key]
	if split == nil || bid >= len(split) {
		return idleBurst()
	}
	iB := append([]uint8{}, split[bid]...)
	if l.Cipher == l1const.CipherRxTxReq || l.Cipher == l1const.CipherRxTxConf {
		iB = cipher.Apply(l.DLAlgo, l.Kc, fn, iB)
	}
	hl, hn := stealingFlags(e.DL.Chan)
	return burst.Map(iB, hl, hn)
}

func encodeSIDFrame(l *Lchan, payload []byte) ([]uint8, error) {
	bits := codec.BytesToBits(payload)
	if l.Chan == l1const.ChanTCHH {
		return codec.AMRHREncode(codec.AMRSID, l.AMR.DLCMR, bits)
	}
	return codec.AMRFREncode(codec.AMRSID, l.AMR.DLCMR, bits)
}

// ULIndication is a completed or single-burst uplink reception.
type ULIndication struct {
	Chan    l1const.ChanType
	Sub     int
	FN      uint32
	Payload []byte
	BFI     bool
	RSSI    int
	ToA256  int
}

// RXStep feeds one received, already-demodulated burst (already decrypted
// framing aside) into the timeslot's uplink accumulation, returning a
// completed indication once the owning channel's block is whole.
func (t *Timeslot) RXStep(fn uint32, eB []uint8, rssi, toa256 int) (*ULIndication, error) {
	e := t.Table.At(fn)
	if e.Idle || e.UL.Chan == l1const.ChanNone {
		return nil, nil
	}

	switch e.UL.Chan {
	case l1const.ChanRACH, l1const.ChanPRACH, l1const.ChanPTCCH:
		ra, err := DecodeAccessBurst(eB, t.BSIC)
		if err != nil {
			return nil, err
		}
		return &ULIndication{Chan: e.UL.Chan, Sub: e.UL.Sub, FN: fn, Payload: []byte{ra}, RSSI: rssi, ToA256: toa256}, nil
	}

	key := lchanKey{e.UL.Chan, normalizedSub(e.UL.Chan, e.UL.Sub)}
	l, ok := t.lchans[key]
	if !ok || !l.Active() {
		return nil, nil
	}

	iB, _, _, err := burst.Unmap(eB)
	if err != nil {
		return nil, err
	}
	if l.Cipher == l1const.CipherRxTxReq || l.Cipher == l1const.CipherRxTxConf {
		iB = cipher.Apply(l.ULAlgo, l.Kc, fn, iB)
	}

	depth := e.UL.Chan.InterleaveDepth()
	bid := t.bidFor(e.UL.Chan, fn, e.ULBid, depth)
	ub := t.ulb[key]
	ub.AddBurst(bid, fn, iB, rssi, toa256)
	if !ub.Complete() {
		return nil, nil
	}

	family := FamilyFor(e.UL.Chan)
	coded, mergeErr := MergeBlock(family, depth, ub.Bits())
	firstFN := ub.FirstFN
	avgRSSI, avgToA := ub.Average()
	ub.Discard()
	if mergeErr != nil {
		return nil, mergeErr
	}

	payload, ok2, decErr := DecodeUL(l, coded)
	if decErr != nil {
		return nil, decErr
	}
	return &ULIndication{Chan: e.UL.Chan, Sub: e.UL.Sub, FN: firstFN, Payload: payload, BFI: !ok2, RSSI: avgRSSI, ToA256: avgToA}, nil
}
