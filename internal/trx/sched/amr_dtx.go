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

// SID hangover timing, 3GPP TS 26.093 Annex A.5.1.1: once a DTX call falls
// silent, the last SID is repeated every SIDHangoverPeriod frames, starting
// SIDHangoverStart frames after the last real speech frame (spec.md section
// 4.2, "DL AMR SID repetition").
const (
	SIDHangoverStart  = 3
	SIDHangoverPeriod = 8
)

// DLPayload picks the payload this lchan actually transmits at fn, applying
// DTX SID-repeat hangover when the downlink queue has nothing queued.
// sidFlag reports whether the returned payload is a SID frame (so the
// caller can route it through AMRFREncode/AMRHREncode with FT=SID instead
// of the call's normal speech mode); a nil payload with sidFlag true means
// "SID needed but none has ever been seen", so the caller substitutes
// codec.NoDataPayload.
func (l *Lchan) DLPayload(fn uint32, queued []byte, haveQueued bool) (payload []byte, sidFlag bool) {
	if haveQueued {
		l.DTX.LastRealFN = fn
		l.DTX.HaveLastReal = true
		return queued, false
	}
	if !l.DTX.Enabled || !l.DTX.HaveLastReal {
		return nil, false
	}
	delta := fnForwardDelta(fn, l.DTX.LastRealFN)
	if delta < SIDHangoverStart {
		return nil, false
	}
	if (delta-SIDHangoverStart)%SIDHangoverPeriod != 0 {
		return nil, false
	}
	return l.DTX.LastSID, true
}

// NoteSIDSent records the SID payload just transmitted, so the next
// hangover repeat can reuse it.
func (l *Lchan) NoteSIDSent(payload []byte) {
	l.DTX.LastSID = append([]byte{}, payload...)
}

func fnForwardDelta(fn, last uint32) int {
	const hf = l1const.Hyperframe
	d := (int64(fn) - int64(last)) % hf
	if d < 0 {
		d += hf
	}
	return int(d)
}
