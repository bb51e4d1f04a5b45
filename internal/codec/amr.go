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

// AMR: adaptive multi-rate speech coding, full- and half-rate variants. The
// vocoder itself is opaque to this core (spec.md section 1 non-goals); what
// this package implements is the per-mode channel coding envelope: a
// 6-bit CRC over the CMR/FT header bits plus the vocoder payload bits,
// rate-1/2 K=5 convolution, and
// puncturing/padding to the fixed 456-bit (FR) or 228-bit (HR) block size,
// with the Codec Mode Request/Frame Type carried as explicit header bits.
// DESIGN.md records this as a simplified envelope rather than the literal
// 3GPP TS 26.101 class-A/B/C bit-sensitivity ordering; the per-mode bit
// budgets below are the real TS 26.101 Table 1a frame sizes.

// AMRMode is an AMR codec mode index, ordered by ascending bitrate per
// 3GPP TS 26.101 Table 1a (DESIGN.md Open Question: CMR/FT index
// resolution assumes this ordering).
type AMRMode uint8

const (
	AMR475 AMRMode = iota
	AMR515
	AMR59
	AMR67
	AMR74
	AMR795
	AMR102
	AMR122
	AMRSID
)

// amrModeBits is the per-mode vocoder payload size in bits, one 20ms frame.
var amrModeBits = map[AMRMode]int{
	AMR475: 95,
	AMR515: 103,
	AMR59:  118,
	AMR67:  134,
	AMR74:  148,
	AMR795: 159,
	AMR102: 204,
	AMR122: 244,
	AMRSID: 39,
}

// AMRFrameType is the over-the-air AMR frame type field (FT), spec.md
// section 3/4.1. FTNoData (15) marks an AMR NO_DATA frame.
type AMRFrameType uint8

const (
	FTAMR475 AMRFrameType = iota
	FTAMR515
	FTAMR59
	FTAMR67
	FTAMR74
	FTAMR795
	FTAMR102
	FTAMR122
	FTAMRSID AMRFrameType = 8
	FTNoData AMRFrameType = 15
)

func amrModeToFT(m AMRMode) AMRFrameType {
	if m == AMRSID {
		return FTAMRSID
	}
	return AMRFrameType(m)
}

// amrCRCGen is a 6-bit CRC generator for the AMR envelope, g(x)=x^6+x^5+1.
var amrCRCGen = []uint8{1, 1, 0, 0, 0, 0, 1}

func amrEnvelopeCRC(bits []uint8) []uint8 { return crcGeneric(bits, amrCRCGen) }

// AMRFREncode encodes an AMR full-rate frame (mode-sized vocoder payload
// bits, plus CMR/FT header) into a 456-bit coded block.
func AMRFREncode(mode AMRMode, cmr uint8, payload []uint8) ([]uint8, error) {
	want := amrModeBits[mode]
	if len(payload) != want {
		return nil, fmt.Errorf("codec: amr_fr_encode: mode %d payload must be %d bits, got %d", mode, want, len(payload))
	}
	return amrEncodeEnvelope(cmr, amrModeToFT(mode), payload, 456)
}

// AMRFRDecode decodes a 456-bit coded block into the CMR/FT header and
// vocoder payload bits for the given mode. ok is false if the envelope CRC
// fails.
func AMRFRDecode(mode AMRMode, cB []uint8) (cmr uint8, ft AMRFrameType, payload []uint8, ok bool, err error) {
	return amrDecodeEnvelope(mode, cB, 456)
}

// AMRHREncode encodes an AMR half-rate frame into a 228-bit coded block.
func AMRHREncode(mode AMRMode, cmr uint8, payload []uint8) ([]uint8, error) {
	want := amrModeBits[mode]
	if len(payload) != want {
		return nil, fmt.Errorf("codec: amr_hr_encode: mode %d payload must be %d bits, got %d", mode, want, len(payload))
	}
	return amrEncodeEnvelope(cmr, amrModeToFT(mode), payload, 228)
}

// AMRHRDecode decodes a 228-bit coded block for the given mode.
func AMRHRDecode(mode AMRMode, cB []uint8) (cmr uint8, ft AMRFrameType, payload []uint8, ok bool, err error) {
	return amrDecodeEnvelope(mode, cB, 228)
}

func amrEncodeEnvelope(cmr uint8, ft AMRFrameType, payload []uint8, blockLen int) ([]uint8, error) {
	header := []uint8{
		(cmr >> 3) & 1, (cmr >> 2) & 1, (cmr >> 1) & 1, cmr & 1,
		uint8(ft>>3) & 1, uint8(ft>>2) & 1, uint8(ft>>1) & 1, uint8(ft) & 1,
	}
	info := append(append([]uint8{}, header...), payload...)
	crc := amrEnvelopeCRC(info)
	withCRC := append(info, crc...)
	coded := ConvEncode(withCRC)
	switch {
	case len(coded) == blockLen:
		return coded, nil
	case len(coded) > blockLen:
		keep := puncturePattern(len(coded), blockLen)
		return Puncture(coded, keep), nil
	default:
		return append(coded, make([]uint8, blockLen-len(coded))...), nil
	}
}

func amrDecodeEnvelope(mode AMRMode, cB []uint8, blockLen int) (cmr uint8, ft AMRFrameType, payload []uint8, ok bool, err error) {
	if len(cB) != blockLen {
		return 0, 0, nil, false, fmt.Errorf("codec: amr_decode: cB must be %d bits, got %d", blockLen, len(cB))
	}
	infoLen := 8 + amrModeBits[mode]
	codedLen := 2 * (infoLen + 6 + convK - 1)
	var full []uint8
	switch {
	case codedLen == blockLen:
		full = cB
	case codedLen < blockLen:
		full = cB[:codedLen]
	default:
		keep := puncturePattern(codedLen, blockLen)
		full = Depuncture(cB, keep, codedLen)
	}
	decoded := ConvDecode(full, infoLen+6)
	header := decoded[:8]
	payload = decoded[8:infoLen]
	gotCRC := decoded[infoLen:]
	wantCRC := amrEnvelopeCRC(decoded[:infoLen])
	cmr = header[0]<<3 | header[1]<<2 | header[2]<<1 | header[3]
	ft = AMRFrameType(header[4]<<3 | header[5]<<2 | header[6]<<1 | header[7])
	return cmr, ft, payload, bitsEqual(gotCRC, wantCRC), nil
}

// NoDataPayload returns the AMR NO_DATA frame (FT=15), spec.md section 4.2.
func NoDataPayload(blockLen int) []uint8 {
	cmr := uint8(0)
	payload := make([]uint8, amrModeBits[AMR122])
	coded, _ := amrEncodeEnvelope(cmr, FTNoData, payload, blockLen)
	return coded
}
