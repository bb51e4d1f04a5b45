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

// TCH/HR: a 112-bit (14-byte) GSM half-rate speech frame split into a
// 102-bit protected class and a 10-bit unprotected class, CRC-3 protected,
// rate-1/2 K=5 convolution coded, for a 228-bit coded block (spec.md
// section 4.1).

const (
	TCHHRBytes   = 14
	tchHRBits    = 112
	tchHRClass1  = 102
	tchHRClass2  = 10
	TCHHRCodedBits = 228
)

// TCHHREncode encodes a 14-byte GSM-HR speech frame into a 228-bit coded block.
func TCHHREncode(data []byte) ([]uint8, error) {
	if len(data) != TCHHRBytes {
		return nil, fmt.Errorf("codec: tch_hr_encode: data must be %d bytes, got %d", TCHHRBytes, len(data))
	}
	raw := BytesToBits(data)[:tchHRBits]
	class1 := raw[:tchHRClass1]
	class2 := raw[tchHRClass1:]
	crc := tchFRCRC(class1[:50])
	payload := append(append([]uint8{}, class1...), crc...)
	coded := ConvEncode(payload)
	return append(coded, class2...), nil
}

// TCHHRDecode decodes a 228-bit coded block back to a 14-byte GSM-HR speech
// frame. ok is false when the CRC fails to verify.
func TCHHRDecode(cB []uint8) (data []byte, ok bool, err error) {
	if len(cB) != TCHHRCodedBits {
		return nil, false, fmt.Errorf("codec: tch_hr_decode: cB must be %d bits, got %d", TCHHRCodedBits, len(cB))
	}
	codedPart := cB[:218]
	class2 := cB[218:]
	decoded := ConvDecode(codedPart, tchHRClass1+3)
	class1 := decoded[:tchHRClass1]
	gotCRC := decoded[tchHRClass1:]
	wantCRC := tchFRCRC(class1[:50])
	raw := append(append([]uint8{}, class1...), class2...)
	if !bitsEqual(gotCRC, wantCRC) {
		return BitsToBytes(raw), false, nil
	}
	return BitsToBytes(raw), true, nil
}

// BFIPayloadHR is the GSM-HR bad-frame-indication payload: {0x70, zeros},
// spec.md section 4.2.
func BFIPayloadHR() []byte {
	p := make([]byte, TCHHRBytes+1)
	p[0] = 0x70
	return p
}
