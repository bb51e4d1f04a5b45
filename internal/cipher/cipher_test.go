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

package cipher

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

func TestApplySymmetry(t *testing.T) {
	kc := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	bits := make([]uint8, 148)
	for i := range bits {
		bits[i] = uint8(i % 2)
	}
	for _, alg := range []l1const.A5Algo{l1const.A5None, l1const.A5_1, l1const.A5_2, l1const.A5_3} {
		enc := Apply(alg, kc, 12345, bits)
		dec := Apply(alg, kc, 12345, enc)
		require.Equal(t, bits, dec, "alg=%d", alg)
	}
}

func TestKeystreamDiffersByFrameNumber(t *testing.T) {
	kc := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	a := Keystream(l1const.A5_1, kc, 1, 148)
	b := Keystream(l1const.A5_1, kc, 2, 148)
	require.NotEqual(t, a, b)
}

func TestKeystreamDiffersByAlgorithm(t *testing.T) {
	kc := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	a := Keystream(l1const.A5_1, kc, 7, 148)
	b := Keystream(l1const.A5_2, kc, 7, 148)
	c := Keystream(l1const.A5_3, kc, 7, 148)
	require.NotEqual(t, a, b)
	require.NotEqual(t, b, c)
}

func TestNoneAlgorithmIsIdentity(t *testing.T) {
	bits := []uint8{1, 0, 1, 1, 0}
	out := Apply(l1const.A5None, nil, 0, bits)
	require.Equal(t, bits, out)
}
