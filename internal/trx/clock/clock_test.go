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

package clock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

func TestFirstClockIndicationEstablishesLastFN(t *testing.T) {
	c := New()
	c.OnClockIndication(1000)
	fn, ok := c.LastFN()
	require.True(t, ok)
	require.EqualValues(t, 1000, fn)
	require.Equal(t, []uint32{1000}, c.Due())
}

func TestSmallForwardDeltaCatchesUpEveryFrame(t *testing.T) {
	c := New()
	c.OnClockIndication(100)
	c.Due()
	c.OnClockIndication(105)
	due := c.Due()
	require.Equal(t, []uint32{101, 102, 103, 104, 105}, due)
}

func TestSmallBackwardDeltaDeliversNothing(t *testing.T) {
	c := New()
	c.OnClockIndication(100)
	c.Due()
	c.OnClockIndication(98)
	require.Empty(t, c.Due())
	fn, _ := c.LastFN()
	require.EqualValues(t, 100, fn)
}

func TestSkewBeyondThresholdForcesResync(t *testing.T) {
	c := New()
	c.OnClockIndication(100)
	c.Due()
	c.OnClockIndication(200)
	due := c.Due()
	require.Equal(t, []uint32{200}, due)
	fn, _ := c.LastFN()
	require.EqualValues(t, 200, fn)
}

func TestHyperframeWrapAroundIsSmallDelta(t *testing.T) {
	c := New()
	last := uint32(l1const.Hyperframe - 2)
	c.OnClockIndication(last)
	c.Due()
	c.OnClockIndication(1)
	due := c.Due()
	require.Equal(t, []uint32{l1const.Hyperframe - 1, 0, 1}, due)
}

func TestTickAdvancesAndIncrementsLostCounter(t *testing.T) {
	c := New()
	c.OnClockIndication(10)
	c.Due()
	lost := c.Tick()
	require.False(t, lost)
	due := c.Due()
	require.Equal(t, []uint32{11}, due)
}

func TestTickDeclaresLinkLostAfterThreshold(t *testing.T) {
	c := New()
	c.OnClockIndication(0)
	c.Due()
	var lost bool
	for i := 0; i < LinkLostAfterTicks+1; i++ {
		lost = c.Tick()
	}
	require.True(t, lost)
}

func TestClockIndicationResetsLostCounter(t *testing.T) {
	c := New()
	c.OnClockIndication(0)
	c.Due()
	for i := 0; i < LinkLostAfterTicks-1; i++ {
		c.Tick()
	}
	c.OnClockIndication(500)
	for i := 0; i < LinkLostAfterTicks-1; i++ {
		require.False(t, c.Tick())
	}
}

func TestResetClearsState(t *testing.T) {
	c := New()
	c.OnClockIndication(42)
	c.Reset()
	_, ok := c.LastFN()
	require.False(t, ok)
	require.Empty(t, c.Due())
}
