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

package l1sap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChanNrRoundTrip(t *testing.T) {
	c := EncodeChanNr(0x08, 3)
	require.EqualValues(t, 0x08, c.Cbits())
	require.EqualValues(t, 3, c.TN())
}

func TestLinkIDSACCHBit(t *testing.T) {
	require.False(t, MainLink(0).IsSACCH())
	require.True(t, SACCHLink(0).IsSACCH())
	require.EqualValues(t, 0, SACCHLink(0)&0x3f)
}

func TestS2RACHIndFields(t *testing.T) {
	ind := PHRACHInd{ChanNr: EncodeChanNr(0x11, 0), RA: 0x5A, FN: 4, AccDelay: 10}
	require.EqualValues(t, 0x5A, ind.RA)
	require.EqualValues(t, 4, ind.FN)
}
