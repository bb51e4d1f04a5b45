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

package powerctrl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

func TestStepPeriodNoBurstsIsInvalid(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 2)
	r := l.StepPeriod()
	require.False(t, r.Valid)
}

func TestPowerLoopBacksOffWhenTooStrong(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 2)
	l.PowerEnabled = true
	start := l.Power
	l.AddBurst(-60, 0, true)
	r := l.StepPeriod()
	require.True(t, r.Valid)
	require.True(t, r.PowerMoved)
	require.Equal(t, start-1, l.Power)
}

func TestPowerLoopRaisesWhenTooWeak(t *testing.T) {
	l := NewLoop(l1const.Band1800, -80, 2)
	l.PowerEnabled = true
	l.Power = 5
	l.AddBurst(-100, 0, true)
	r := l.StepPeriod()
	require.True(t, r.PowerMoved)
	require.Equal(t, 6, l.Power)
}

func TestPowerLoopClampsToBandRange(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 2)
	l.PowerEnabled = true
	_, hi := l1const.Band900.PowerLevelRange()
	l.Power = hi
	l.AddBurst(-100, 0, true) // too weak would raise, but already at hi
	r := l.StepPeriod()
	require.False(t, r.PowerMoved)
	require.Equal(t, hi, l.Power)
}

func TestPowerLoopWithinDeadBandDoesNotMove(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 3)
	l.PowerEnabled = true
	start := l.Power
	l.AddBurst(-81, 0, true)
	r := l.StepPeriod()
	require.False(t, r.PowerMoved)
	require.Equal(t, start, l.Power)
}

func TestTALoopRaisesAndLowers(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 2)
	l.TAEnabled = true
	l.TA = 10

	l.AddBurst(0, 300, true)
	r := l.StepPeriod()
	require.True(t, r.TAMoved)
	require.Equal(t, 11, l.TA)

	l.AddBurst(0, -300, true)
	r = l.StepPeriod()
	require.True(t, r.TAMoved)
	require.Equal(t, 10, l.TA)
}

func TestTALoopClampsToZeroAndSixtyThree(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 2)
	l.TAEnabled = true
	l.TA = 0
	l.AddBurst(0, -300, true)
	r := l.StepPeriod()
	require.False(t, r.TAMoved)
	require.Equal(t, 0, l.TA)

	l.TA = 63
	l.AddBurst(0, 300, true)
	r = l.StepPeriod()
	require.False(t, r.TAMoved)
	require.Equal(t, 63, l.TA)
}

func TestBER10kComputedFromCRCErrors(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 2)
	l.AddBurst(-80, 0, true)
	l.AddBurst(-80, 0, false)
	l.AddBurst(-80, 0, true)
	l.AddBurst(-80, 0, false)
	r := l.StepPeriod()
	require.Equal(t, 5000, r.BER10k)
	require.Equal(t, -80, r.AvgRSSI)
}

func TestAveragingAcrossMultipleBursts(t *testing.T) {
	l := NewLoop(l1const.Band900, -80, 2)
	l.AddBurst(-70, 100, true)
	l.AddBurst(-90, -100, true)
	r := l.StepPeriod()
	require.Equal(t, -80, r.AvgRSSI)
	require.Equal(t, 0, r.AvgToA256)

	// Accumulators reset after StepPeriod.
	r2 := l.StepPeriod()
	require.False(t, r2.Valid)
}
