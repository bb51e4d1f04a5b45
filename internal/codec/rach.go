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

// RACH: an 8-bit random-access reference protected by a 6-bit CRC that is
// XORed with the 6-bit {PLMN-colour|BS-colour} code derived from BSIC,
// rate-1/2 K=5 convolution, for a 36-bit coded access burst payload.

// bsicColourCode returns the 6-bit {NCC,BCC} code for a BSIC (bits 5..3 =
// NCC, bits 2..0 = BCC).
func bsicColourCode(bsic uint8) []uint8 {
	v := bsic & 0x3F
	bits := make([]uint8, 6)
	for i := 0; i < 6; i++ {
		bits[i] = (v >> uint(5-i)) & 1
	}
	return bits
}

// RACHEncode encodes an 8-bit random access reference for the given BSIC
// into a 36-bit coded burst payload.
func RACHEncode(ra uint8, bsic uint8) []uint8 {
	raBits := make([]uint8, 8)
	for i := 0; i < 8; i++ {
		raBits[i] = (ra >> uint(7-i)) & 1
	}
	crc := rachCRC(raBits)
	crc = xorBits(crc, bsicColourCode(bsic))
	payload := append(append([]uint8{}, raBits...), crc...)
	return ConvEncode(payload)
}

// RACHDecode Viterbi-decodes a 36-bit coded access burst for the given
// BSIC, returning the 8-bit random access reference or an error if the CRC
// (after removing the colour code) fails.
func RACHDecode(burst []uint8, bsic uint8) (uint8, error) {
	if len(burst) != 36 {
		return 0, fmt.Errorf("codec: rach_decode: burst must be 36 bits, got %d", len(burst))
	}
	decoded := ConvDecode(burst, 14)
	raBits := decoded[:8]
	gotCRC := xorBits(decoded[8:14], bsicColourCode(bsic))
	wantCRC := rachCRC(raBits)
	if !bitsEqual(gotCRC, wantCRC) {
		return 0, fmt.Errorf("codec: rach_decode: CRC check failed")
	}
	var ra uint8
	for i := 0; i < 8; i++ {
		ra = (ra << 1) | raBits[i]
	}
	return ra, nil
}
