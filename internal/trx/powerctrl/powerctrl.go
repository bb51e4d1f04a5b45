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

// Package powerctrl implements the MS power control and timing-advance
// hysteresis loops (spec.md section 4.9): per-burst RSSI/ToA/CRC samples
// accumulate across a SACCH period, and on period boundary the accumulated
// average drives at most one power step and one TA step.
package powerctrl

import "github.com/osmocom/osmo-bts-trx/internal/l1const"

// ToAUnitsPerSymbol is the fixed-point scale of a ToA256 sample: 256 units
// per symbol period (spec.md section 4.9, "desired ToA 0, observed ToA256").
const ToAUnitsPerSymbol = 256

// Loop accumulates uplink measurements for one channel across a SACCH
// period and runs the power/TA hysteresis steps on period completion. One
// Loop is owned per active channel that carries a SACCH.
type Loop struct {
	Band l1const.Band

	TargetRSSI int // desired uplink RSSI, dBm-equivalent units
	DeadBand   int // hysteresis dead-band around TargetRSSI

	PowerEnabled bool
	TAEnabled    bool

	Power int // current commanded MS power level, within Band.PowerLevelRange
	TA    int // current commanded timing advance, [0, 63]

	sumRSSI, sumToA, n, crcErrs int
}

// NewLoop returns a Loop seeded at the band's maximum power level and TA 0,
// the conservative starting point before the first measurement arrives.
func NewLoop(band l1const.Band, targetRSSI, deadBand int) *Loop {
	_, hi := band.PowerLevelRange()
	return &Loop{
		Band:       band,
		TargetRSSI: targetRSSI,
		DeadBand:   deadBand,
		Power:      hi,
	}
}

// AddBurst folds one received burst's measurements into the current SACCH
// period's running sums.
func (l *Loop) AddBurst(rssi, toa256 int, crcOK bool) {
	l.sumRSSI += rssi
	l.sumToA += toa256
	l.n++
	if !crcOK {
		l.crcErrs++
	}
}

// Result is the outcome of a completed SACCH period: the averaged
// measurement values and, if either loop stepped, the new commanded values.
type Result struct {
	Valid      bool // false if no bursts were accumulated this period
	AvgRSSI    int
	AvgToA256  int
	BER10k     int
	PowerMoved bool
	TAMoved    bool
}

// StepPeriod finalizes the current SACCH period: averages the accumulated
// samples, runs the power and TA hysteresis steps, and resets the
// accumulators for the next period.
func (l *Loop) StepPeriod() Result {
	if l.n == 0 {
		return Result{}
	}
	r := Result{
		Valid:     true,
		AvgRSSI:   l.sumRSSI / l.n,
		AvgToA256: l.sumToA / l.n,
		BER10k:    l.crcErrs * 10000 / l.n,
	}
	if l.PowerEnabled {
		r.PowerMoved = l.stepPower(r.AvgRSSI)
	}
	if l.TAEnabled {
		r.TAMoved = l.stepTA(r.AvgToA256)
	}
	l.sumRSSI, l.sumToA, l.n, l.crcErrs = 0, 0, 0, 0
	return r
}

// stepPower applies spec.md section 4.9's dead-band rule: received too
// strong (observed exceeds target by more than the dead-band) commands the
// MS to back off a step; too weak commands it to raise one step.
func (l *Loop) stepPower(avgRSSI int) bool {
	lo, hi := l.Band.PowerLevelRange()
	delta := avgRSSI - l.TargetRSSI
	switch {
	case delta > l.DeadBand:
		if l.Power > lo {
			l.Power--
			return true
		}
	case delta < -l.DeadBand:
		if l.Power < hi {
			l.Power++
			return true
		}
	}
	return false
}

// stepTA applies spec.md section 4.9's timing-advance rule: more than one
// symbol late raises TA by one, more than one symbol early lowers it.
func (l *Loop) stepTA(avgToA256 int) bool {
	switch {
	case avgToA256 > ToAUnitsPerSymbol:
		if l.TA < 63 {
			l.TA++
			return true
		}
	case avgToA256 < -ToAUnitsPerSymbol:
		if l.TA > 0 {
			l.TA--
			return true
		}
	}
	return false
}
