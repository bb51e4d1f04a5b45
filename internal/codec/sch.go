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

package codec

import "fmt"

// SCH: 25 bits of synchronisation info (reduced frame number + BSIC)
// protected by a 10-bit CRC, rate-1/2 K=5 convolution, for a 78-bit coded
// burst payload.

// SCHEncode encodes 25 bits of SB info (MSB-first, one byte per bit) into
// a 78-bit coded burst payload.
func SCHEncode(sbInfo []uint8) ([]uint8, error) {
	if len(sbInfo) != 25 {
		return nil, fmt.Errorf("codec: sch_encode: sbInfo must be 25 bits, got %d", len(sbInfo))
	}
	crc := schCRC(sbInfo)
	payload := append(append([]uint8{}, sbInfo...), crc...)
	return ConvEncode(payload), nil
}

// SCHDecode Viterbi-decodes a 78-bit coded SCH burst payload, returning the
// 25-bit SB info or an error if the CRC fails.
func SCHDecode(burst []uint8) ([]uint8, error) {
	if len(burst) != 78 {
		return nil, fmt.Errorf("codec: sch_decode: burst must be 78 bits, got %d", len(burst))
	}
	decoded := ConvDecode(burst, 35)
	sbInfo := decoded[:25]
	gotCRC := decoded[25:35]
	wantCRC := schCRC(sbInfo)
	if !bitsEqual(gotCRC, wantCRC) {
		return nil, fmt.Errorf("codec: sch_decode: CRC check failed")
	}
	return sbInfo, nil
}
