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

// EFR: a 248-bit (31-byte) enhanced full-rate speech frame. Its 65
// most-significant bits are protected by an 8-bit CRC; the frame is then
// padded to the FR-compatible 260-bit width and passed through the
// identical FR outer coding (class split, CRC-3, rate-1/2 convolution),
// per spec.md section 4.1.

const (
	EFRBytes       = 31
	efrBits        = 248
	efrInnerBits   = 65
	efrSpareBits   = tchFRBits - efrBits - 8 // pads the composite frame to 260 bits
)

// EFREncode encodes a 31-byte EFR speech frame into a 456-bit coded block,
// reusing the FR outer coding.
func EFREncode(data []byte) ([]uint8, error) {
	if len(data) != EFRBytes {
		return nil, fmt.Errorf("codec: efr_encode: data must be %d bytes, got %d", EFRBytes, len(data))
	}
	raw := BytesToBits(data)[:efrBits]
	crc := efrCRC(raw[:efrInnerBits])
	composite := make([]uint8, tchFRBits)
	copy(composite, raw)
	copy(composite[efrBits:], crc)
	// remaining efrSpareBits are left zero.
	return tchFRCodeFromComposite(composite)
}

// EFRDecode decodes a 456-bit coded block back into a 31-byte EFR speech
// frame. ok is false if either the FR-outer CRC-3 or the EFR inner CRC-8
// fails.
func EFRDecode(cB []uint8) (data []byte, ok bool, err error) {
	composite, frOK, err := tchFRDecodeToComposite(cB)
	if err != nil {
		return nil, false, err
	}
	raw := composite[:efrBits]
	gotCRC := composite[efrBits : efrBits+8]
	wantCRC := efrCRC(raw[:efrInnerBits])
	out := BitsToBytes(raw)
	if !frOK || !bitsEqual(gotCRC, wantCRC) {
		return out, false, nil
	}
	return out, true, nil
}

// BFIPayloadEFR is the EFR bad-frame-indication payload: zero-filled.
func BFIPayloadEFR() []byte {
	return make([]byte, EFRBytes)
}

// tchFRCodeFromComposite runs the FR outer coding (no air-interface
// reorder) over an already-260-bit composite frame.
func tchFRCodeFromComposite(composite []uint8) ([]uint8, error) {
	class1a := composite[:tchFRClass1a]
	class1 := composite[:tchFRClass1]
	class2 := composite[tchFRClass1:]
	crc := tchFRCRC(class1a)
	payload := append(append([]uint8{}, class1...), crc...)
	coded := ConvEncode(payload)
	return append(coded, class2...), nil
}

func tchFRDecodeToComposite(cB []uint8) ([]uint8, bool, error) {
	if len(cB) != XCCHCodedBits {
		return nil, false, fmt.Errorf("codec: efr_decode: cB must be %d bits, got %d", XCCHCodedBits, len(cB))
	}
	codedPart := cB[:378]
	class2 := cB[378:]
	decoded := ConvDecode(codedPart, tchFRClass1+3)
	class1 := decoded[:tchFRClass1]
	gotCRC := decoded[tchFRClass1:]
	wantCRC := tchFRCRC(class1[:tchFRClass1a])
	composite := append(append([]uint8{}, class1...), class2...)
	return composite, bitsEqual(gotCRC, wantCRC), nil
}
