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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
	"github.com/osmocom/osmo-bts-trx/internal/multiframe"
)

func TestDLQueueFIFOOrderAndStaleness(t *testing.T) {
	var q DLQueue
	q.Enqueue(10, []byte("a"))
	q.Enqueue(20, []byte("b"))

	_, ok := q.Take(5)
	require.False(t, ok)

	p, ok := q.Take(10)
	require.True(t, ok)
	require.Equal(t, []byte("a"), p)

	p, ok = q.Take(20)
	require.True(t, ok)
	require.Equal(t, []byte("b"), p)

	q.Enqueue(1000, []byte("c"))
	dropped := q.DropStale(0)
	require.Len(t, dropped, 1)
	require.Equal(t, 0, q.Len())
}

func TestULBlockCompletesAndAverages(t *testing.T) {
	b := NewULBlock(4, 2)
	require.False(t, b.Complete())
	b.AddBurst(0, 100, []uint8{1, 0}, 10, 200)
	b.AddBurst(1, 101, []uint8{0, 1}, 20, 300)
	b.AddBurst(2, 102, []uint8{1, 1}, 30, 400)
	require.False(t, b.Complete())
	b.AddBurst(3, 103, []uint8{0, 0}, 40, 500)
	require.True(t, b.Complete())
	require.Equal(t, uint32(100), b.FirstFN)
	rssi, toa := b.Average()
	require.Equal(t, 25, rssi)
	require.Equal(t, 350, toa)

	b.Discard()
	require.False(t, b.Complete())
	require.True(t, b.HaveFirstFN())
}

func TestULBlockPartialDiscardDropsAnchorWithoutBidZero(t *testing.T) {
	b := NewULBlock(4, 2)
	b.AddBurst(1, 55, []uint8{1, 0}, 1, 1)
	b.Discard()
	require.False(t, b.HaveFirstFN())
}

func TestLchanActivationLifecycle(t *testing.T) {
	l := NewLchan(l1const.ChanSDCCH, 0)
	require.False(t, l.Active())
	l.RequestActivate()
	require.Equal(t, l1const.LchanStateActReq, l.State)
	l.ConfirmActivate()
	require.True(t, l.Active())
	l.AdvanceCipher()
	require.Equal(t, l1const.CipherRxReq, l.Cipher)
	l.RequestRelease()
	require.False(t, l.Active())
	l.ConfirmRelease()
	require.Equal(t, l1const.LchanStateNone, l.State)
	require.Equal(t, l1const.CipherNone, l.Cipher)
}

// TestS1BCCHEmissionOverMultiframe exercises scenario S1: a BCCH block
// enqueued at its RTS-indicated fn comes back out as four 148-bit bursts,
// while FCCH/SCH/idle frames are handled without touching the codec.
func TestS1BCCHEmissionOverMultiframe(t *testing.T) {
	table, err := multiframe.BuildBCCH()
	require.NoError(t, err)
	ts := NewTimeslot(0, table, 0x3f, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)

	l, ok := ts.Lchan(l1const.ChanBCCH, 0)
	require.True(t, ok)
	l.RequestActivate()
	l.ConfirmActivate()

	payload := make([]byte, 23)
	for i := range payload {
		payload[i] = byte(i)
	}
	ts.EnqueueDL(l1const.ChanBCCH, 0, 2, payload)

	for fn := uint32(2); fn < 6; fn++ {
		eB, err := ts.TXStep(fn)
		require.NoError(t, err)
		require.Len(t, eB, 148)
	}

	eB0, err := ts.TXStep(0)
	require.NoError(t, err)
	require.Equal(t, make([]uint8, 148), eB0)

	_, err = ts.TXStep(1)
	require.Error(t, err)
}

// TestS2RACHUpperBoundRoundTrip exercises scenario S2: an access burst
// encoding ra=0x5A under bsic=0x07 decodes back to the same ra.
func TestS2RACHUpperBoundRoundTrip(t *testing.T) {
	eB, err := EncodeAccessBurst(0x5A, 0x07)
	require.NoError(t, err)
	require.Len(t, eB, 148)

	ra, err := DecodeAccessBurst(eB, 0x07)
	require.NoError(t, err)
	require.EqualValues(t, 0x5A, ra)
}

// TestS3FRSpeechLoopbackOverTimeslot exercises scenario S3: an FR speech
// frame enqueued on an active TCH/F lchan round-trips through TXStep's
// 8-burst split and RXStep's reassembly back to the same payload.
func TestS3FRSpeechLoopbackOverTimeslot(t *testing.T) {
	table, err := multiframe.BuildTCHF(1)
	require.NoError(t, err)
	ts := NewTimeslot(1, table, 0x3f, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)

	l, ok := ts.Lchan(l1const.ChanTCHF, -1)
	require.True(t, ok)
	l.TCH = l1const.TCHModeSpeechV1
	l.RequestActivate()
	l.ConfirmActivate()

	payload := make([]byte, 33)
	for i := range payload {
		payload[i] = byte(i + 1)
	}
	payload[0] |= 0xd0 // a GSM-FR frame starts with the 0xd header nibble

	// Find a window of 8 consecutive TCH/F frames (no SACCH/idle) to
	// enqueue and play back a whole block without interruption.
	var start uint32
	for fn := uint32(0); fn < 104; fn++ {
		ok := true
		for i := 0; i < 8; i++ {
			e := table.At(fn + uint32(i))
			if e.Idle || e.DL.Chan != l1const.ChanTCHF {
				ok = false
				break
			}
		}
		if ok {
			start = fn
			break
		}
	}

	ts.EnqueueDL(l1const.ChanTCHF, -1, start, payload)

	rx := NewTimeslot(1, table, 0x3f, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	lrx, ok := rx.Lchan(l1const.ChanTCHF, -1)
	require.True(t, ok)
	lrx.TCH = l1const.TCHModeSpeechV1
	lrx.RequestActivate()
	lrx.ConfirmActivate()

	var ind *ULIndication
	for i := uint32(0); i < 8; i++ {
		fn := start + i
		eB, err := ts.TXStep(fn)
		require.NoError(t, err)
		require.NotNil(t, eB)

		got, err := rx.RXStep(fn, eB, 0, 0)
		require.NoError(t, err)
		if got != nil {
			ind = got
		}
	}

	require.NotNil(t, ind)
	require.False(t, ind.BFI)
	require.Equal(t, payload, ind.Payload)
}

// TestS4AMRDTXHangoverRepeatsLastSID exercises scenario S4: once DTX is
// enabled and the queue runs dry, the lchan repeats its last SID every
// SIDHangoverPeriod frames starting SIDHangoverStart frames after the last
// real speech frame, and returns nothing before any real speech frame has
// been seen.
func TestS4AMRDTXHangoverRepeatsLastSID(t *testing.T) {
	l := NewLchan(l1const.ChanTCHF, -1)
	l.TCH = l1const.TCHModeSpeechAMR
	l.DTX.Enabled = true

	// No real frame seen yet: nothing to repeat.
	payload, sid := l.DLPayload(100, nil, false)
	require.Nil(t, payload)
	require.False(t, sid)

	// A real speech frame arrives and anchors LastRealFN.
	real := []byte{1, 2, 3}
	payload, sid = l.DLPayload(200, real, true)
	require.Equal(t, real, payload)
	require.False(t, sid)

	sidPayload := []byte{9, 9, 9}
	l.NoteSIDSent(sidPayload)

	// Before the hangover start offset: still nothing.
	payload, sid = l.DLPayload(200+SIDHangoverStart-1, nil, false)
	require.Nil(t, payload)
	require.False(t, sid)

	// At the hangover start offset: repeat the last SID.
	payload, sid = l.DLPayload(200+SIDHangoverStart, nil, false)
	require.True(t, sid)
	require.Equal(t, sidPayload, payload)

	// One period later: repeat again.
	payload, sid = l.DLPayload(200+SIDHangoverStart+SIDHangoverPeriod, nil, false)
	require.True(t, sid)
	require.Equal(t, sidPayload, payload)

	// Mid-period: nothing.
	payload, sid = l.DLPayload(200+SIDHangoverStart+3, nil, false)
	require.Nil(t, payload)
	require.False(t, sid)
}

func TestS4AMRDTXNoSIDYetSignalsNoData(t *testing.T) {
	l := NewLchan(l1const.ChanTCHH, 0)
	l.TCH = l1const.TCHModeSpeechAMR
	l.DTX.Enabled = true
	l.DLPayload(50, []byte{1}, true)

	_, sid := l.DLPayload(50+SIDHangoverStart, nil, false)
	require.True(t, sid)
}
