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

// Package sched implements the per-timeslot, per-logical-channel scheduler
// state and multiframe-driven dispatch (spec.md sections 2.4 and 4.2): the
// active-channel mask, downlink/uplink burst buffers, cipher application,
// AMR/DTX bookkeeping and the lchan activation state machine.
package sched

import (
	"github.com/osmocom/osmo-bts-trx/internal/codec"
	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

// AMRConfig is an lchan's multirate configuration: up to 4 active codec
// modes plus the current codec-mode-request/frame-type indices in each
// direction (spec.md section 3, invariant (d)).
type AMRConfig struct {
	Active []uint8 // AMRMode values, len <= 4
	ULCMR  uint8
	ULFT   uint8
	DLCMR  uint8
	DLFT   uint8
}

// InSet reports whether mode m is one of the active codec modes.
func (a *AMRConfig) InSet(m uint8) bool {
	for _, x := range a.Active {
		if x == m {
			return true
		}
	}
	return false
}

// DTXState tracks downlink AMR SID hangover (spec.md section 4.2, "DL AMR
// SID repetition").
type DTXState struct {
	Enabled      bool
	LastSID      []byte // last AMR SID payload transmitted downlink, nil if none yet
	LastRealFN   uint32
	HaveLastReal bool
}

// Lchan is one logical channel subslot's scheduler-visible state.
type Lchan struct {
	Chan   l1const.ChanType
	Sub    int
	State  l1const.LchanState
	RSL    l1const.RSLMode
	TCH    l1const.TCHMode
	AMR    AMRConfig
	DTX    DTXState

	Cipher l1const.CipherState
	DLAlgo l1const.A5Algo
	ULAlgo l1const.A5Algo
	Kc     []byte

	// PDTCHCS is the current downlink coding scheme for a PDTCH lchan.
	PDTCHCS codec.CS

	LastSID      []byte
	LossCounter  int
	HandoverRACH bool

	// ULOngoingFACCH marks that a FACCH block was detected on the second of
	// a TCH/H pair of frames; the next TCH frame on this lchan must be
	// dropped rather than decoded (spec.md section 4.2).
	ULOngoingFACCH bool
}

// NewLchan returns an inactive lchan for the given channel type and
// subchannel index.
func NewLchan(chanType l1const.ChanType, sub int) *Lchan {
	return &Lchan{Chan: chanType, Sub: sub, State: l1const.LchanStateNone}
}

// Active reports whether the scheduler should invoke this lchan's
// functions (spec.md section 3, invariant (a)).
func (l *Lchan) Active() bool {
	return l.State == l1const.LchanStateActive
}

// RequestActivate starts the lchan's activation sequence.
func (l *Lchan) RequestActivate() {
	if l.State == l1const.LchanStateNone {
		l.State = l1const.LchanStateActReq
	}
}

// ConfirmActivate completes activation once every required SAPI has come
// up.
func (l *Lchan) ConfirmActivate() {
	if l.State == l1const.LchanStateActReq {
		l.State = l1const.LchanStateActive
	}
}

// RequestRelease starts deactivation.
func (l *Lchan) RequestRelease() {
	if l.State == l1const.LchanStateActive {
		l.State = l1const.LchanStateRelReq
	}
}

// ConfirmRelease completes deactivation, resetting per-call state.
func (l *Lchan) ConfirmRelease() {
	l.State = l1const.LchanStateNone
	l.Cipher = l1const.CipherNone
	l.LossCounter = 0
	l.LastSID = nil
	l.DTX = DTXState{}
	l.ULOngoingFACCH = false
}

// FailRelease marks a protocol-level deactivation failure.
func (l *Lchan) FailRelease() {
	l.State = l1const.LchanStateRelErr
}

// AdvanceCipher moves the cipher state one step forward once enabled for a
// call (spec.md section 3, invariant (c)).
func (l *Lchan) AdvanceCipher() {
	l.Cipher = l.Cipher.Advance()
}
