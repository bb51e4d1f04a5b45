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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

func assertExhaustive(t *testing.T, tbl *Table) {
	t.Helper()
	require.Len(t, tbl.cells, tbl.Period)
	for fn := 0; fn < tbl.Period; fn++ {
		e := tbl.At(uint32(fn))
		if e.Idle {
			continue
		}
		require.NotEqual(t, l1const.ChanNone, e.DL.Chan, "fn=%d", fn)
	}
}

func TestBCCHTableExhaustive(t *testing.T) {
	tbl, err := BuildBCCH()
	require.NoError(t, err)
	require.Equal(t, 51, tbl.Period)
	assertExhaustive(t, tbl)
}

func TestCCCHSDCCH4TableExhaustive(t *testing.T) {
	tbl, err := BuildCCCHSDCCH4()
	require.NoError(t, err)
	require.Equal(t, 102, tbl.Period)
	assertExhaustive(t, tbl)
}

func TestSDCCH8TableExhaustive(t *testing.T) {
	tbl, err := BuildSDCCH8()
	require.NoError(t, err)
	require.Equal(t, 102, tbl.Period)
	assertExhaustive(t, tbl)
}

func TestTCHFTableExhaustiveAllTimeslots(t *testing.T) {
	for tn := 0; tn < 8; tn++ {
		tbl, err := BuildTCHF(tn)
		require.NoError(t, err)
		require.Equal(t, 104, tbl.Period)
		assertExhaustive(t, tbl)

		sacch := tbl.At(uint32(sacchRotation[tn]))
		require.Equal(t, l1const.ChanSACCH, sacch.DL.Chan)
	}
}

func TestTCHFTS0HasFixedIdleFrame(t *testing.T) {
	tbl, err := BuildTCHF(0)
	require.NoError(t, err)
	e := tbl.At(tsIdleFN)
	require.True(t, e.Idle)
}

func TestTCHHTableExhaustiveAllTimeslots(t *testing.T) {
	for tn := 0; tn < 8; tn++ {
		tbl, err := BuildTCHH(tn)
		require.NoError(t, err)
		require.Equal(t, 104, tbl.Period)
		assertExhaustive(t, tbl)
	}
}

func TestPDCHTableExhaustiveAllTimeslots(t *testing.T) {
	for tn := 0; tn < 8; tn++ {
		tbl, err := BuildPDCH(tn)
		require.NoError(t, err)
		require.Equal(t, 104, tbl.Period)
		assertExhaustive(t, tbl)
	}
}

func TestBidAtCyclesWithinDepth(t *testing.T) {
	for i := 0; i < 20; i++ {
		bid := BidAt(uint32(i)*104+13, 104, 4)
		require.GreaterOrEqual(t, bid, 0)
		require.Less(t, bid, 4)
	}
}

func TestForPchanDispatchesEveryStaticCombination(t *testing.T) {
	combos := []l1const.Pchan{
		l1const.PchanCCCH,
		l1const.PchanCCCHSDCCH4,
		l1const.PchanCCCHSDCCH4CBCH,
		l1const.PchanSDCCH8SACCH8C,
		l1const.PchanSDCCH8SACCH8CCBCH,
		l1const.PchanTCHF,
		l1const.PchanTCHH,
		l1const.PchanPDCH,
	}
	for _, p := range combos {
		tbl, err := ForPchan(p, 1)
		require.NoError(t, err, p.String())
		require.NotNil(t, tbl)
	}
}
