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

package trxproto

import "fmt"

// PDU version, embedded in the top nibble of the header byte alongside the
// timeslot number (spec.md section 4.5: "[vvvv_ttt]").
const (
	VersionMax = 2
)

// ULBurst is one uplink burst indication (spec.md section 4.3, "TRXD
// uplink burst indication").
type ULBurst struct {
	Version uint8
	TN      uint8
	FN      uint32
	RSSI    int8 // report as -RSSI dBm
	ToA256  int16

	NopeInd bool
	Mod     uint8
	TSCSet  uint8
	TSC     uint8
	HaveCI  bool
	CI      int16 // centibels, v1+

	SoftBits []uint8 // raw wire bytes, 0x00..0xFE, 0xFF == soft value -127
}

// SoftValue decodes wire byte v into the signed soft value 127-v used by
// spec.md's bit-quality convention; 0xFF decodes to -127, like 0xFE.
func SoftValue(v uint8) int {
	if v == 0xFF {
		return -127
	}
	return 127 - int(v)
}

// HardBits converts the burst's soft bits to hard 0/1 decisions: a soft
// value >= 0 decides bit 0, negative decides bit 1. This is the thresholding
// this core applies before handing bits to internal/codec, which only
// implements hard-decision (erasure-aware) decoding (internal/codec's
// ConvDecode); a full soft-decision Viterbi is out of scope.
func (b *ULBurst) HardBits() []uint8 {
	out := make([]uint8, len(b.SoftBits))
	for i, v := range b.SoftBits {
		if SoftValue(v) >= 0 {
			out[i] = 0
		} else {
			out[i] = 1
		}
	}
	return out
}

// EncodeUplink serialises an uplink burst as the given PDU version.
func EncodeUplink(b ULBurst) ([]byte, error) {
	if b.Version > VersionMax {
		return nil, fmt.Errorf("trxproto: encode_uplink: unsupported version %d", b.Version)
	}
	out := make([]byte, 0, 8+len(b.SoftBits))
	out = append(out, (b.Version<<4)|(b.TN&7))
	out = appendU32(out, b.FN)
	out = append(out, byte(b.RSSI))
	out = appendU16(out, uint16(b.ToA256))
	if b.Version >= 1 {
		mts := byte(0)
		if b.NopeInd {
			mts |= 1 << 7
		}
		mts |= (b.Mod&3)<<5 | (b.TSCSet&1)<<4
		mts |= b.TSC & 7
		out = append(out, mts)
		out = appendU16(out, uint16(b.CI))
	}
	out = append(out, b.SoftBits...)
	return out, nil
}

// DecodeUplink parses an uplink burst datagram of the given PDU version.
func DecodeUplink(version uint8, data []byte) (ULBurst, error) {
	var b ULBurst
	b.Version = version
	minLen := 8
	if version >= 1 {
		minLen += 3
	}
	if len(data) < minLen {
		return b, fmt.Errorf("trxproto: decode_uplink: datagram too short: %d bytes", len(data))
	}
	hdr := data[0]
	if hdr>>4 != version {
		return b, fmt.Errorf("trxproto: decode_uplink: header version %d != expected %d", hdr>>4, version)
	}
	b.TN = hdr & 7
	off := 1
	b.FN = u32(data[off:])
	off += 4
	b.RSSI = int8(data[off])
	off++
	b.ToA256 = int16(u16(data[off:]))
	off += 2
	if version >= 1 {
		mts := data[off]
		off++
		b.NopeInd = mts&(1<<7) != 0
		b.Mod = (mts >> 5) & 3
		b.TSCSet = (mts >> 4) & 1
		b.TSC = mts & 7
		b.CI = int16(u16(data[off:]))
		b.HaveCI = true
		off += 2
	}
	soft := data[off:]
	if version == 0 && (len(soft) == 148+2 || len(soft) == 444+2) {
		soft = soft[:len(soft)-2] // v0 modems may append 2 garbage bytes
	}
	b.SoftBits = append([]byte{}, soft...)
	return b, nil
}

// DLBurst is one downlink burst request (spec.md section 4.3, "TRXD
// downlink burst request").
type DLBurst struct {
	Version uint8
	TN      uint8
	FN      uint32
	Att     uint8

	Mod    uint8
	TSC    uint8
	TSCSet uint8
	SCPIR  int8

	BatchInd bool
	Burst    []uint8 // hard bits, 0/1, one byte each
}

// EncodeDownlinkBatch serialises a batch of downlink PDUs into one datagram.
// Only the first PDU carries the frame number; v2 batches set BATCH.ind on
// every PDU but the last (spec.md section 4.5).
func EncodeDownlinkBatch(bursts []DLBurst) ([]byte, error) {
	if len(bursts) == 0 {
		return nil, fmt.Errorf("trxproto: encode_downlink: empty batch")
	}
	if len(bursts) > 1 && bursts[0].Version < 2 {
		return nil, fmt.Errorf("trxproto: encode_downlink: batching requires PDU version 2")
	}
	var out []byte
	for i, b := range bursts {
		if b.Version > VersionMax {
			return nil, fmt.Errorf("trxproto: encode_downlink: unsupported version %d", b.Version)
		}
		out = append(out, (b.Version<<4)|(b.TN&7))
		if i == 0 {
			out = appendU32(out, b.FN)
		}
		out = append(out, b.Att)
		if b.Version >= 2 {
			tsInfo := (b.Mod&3)<<5 | (b.TSCSet&1)<<4 | (b.TSC & 7)
			batchBit := byte(0)
			if i != len(bursts)-1 {
				batchBit = 1 << 7
			}
			out = append(out, tsInfo|batchBit)
			out = append(out, byte(b.SCPIR))
		}
		out = append(out, b.Burst...)
	}
	return out, nil
}

// DecodeDownlinkBatch parses a (possibly batched, v2-only) downlink
// datagram back into its constituent PDUs. v0/v1 datagrams always decode to
// exactly one PDU.
func DecodeDownlinkBatch(version uint8, data []byte, burstLen int) ([]DLBurst, error) {
	var out []DLBurst
	fn := uint32(0)
	haveFN := false
	for len(data) > 0 {
		if len(data) < 1 {
			return nil, fmt.Errorf("trxproto: decode_downlink: truncated header")
		}
		hdr := data[0]
		if hdr>>4 != version {
			return nil, fmt.Errorf("trxproto: decode_downlink: header version %d != expected %d", hdr>>4, version)
		}
		b := DLBurst{Version: version, TN: hdr & 7}
		off := 1
		if !haveFN {
			if len(data) < off+4 {
				return nil, fmt.Errorf("trxproto: decode_downlink: truncated FN")
			}
			fn = u32(data[off:])
			haveFN = true
			off += 4
		}
		b.FN = fn
		if len(data) < off+1 {
			return nil, fmt.Errorf("trxproto: decode_downlink: truncated attenuation")
		}
		b.Att = data[off]
		off++
		batch := false
		if version >= 2 {
			if len(data) < off+2 {
				return nil, fmt.Errorf("trxproto: decode_downlink: truncated ts_info/scpir")
			}
			tsInfo := data[off]
			batch = tsInfo&(1<<7) != 0
			b.Mod = (tsInfo >> 5) & 3
			b.TSCSet = (tsInfo >> 4) & 1
			b.TSC = tsInfo & 7
			b.SCPIR = int8(data[off+1])
			off += 2
		}
		if len(data) < off+burstLen {
			return nil, fmt.Errorf("trxproto: decode_downlink: truncated burst")
		}
		b.Burst = append([]uint8{}, data[off:off+burstLen]...)
		b.BatchInd = batch
		out = append(out, b)
		data = data[off+burstLen:]
		if !batch {
			break
		}
	}
	return out, nil
}

func appendU32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func appendU16(b []byte, v uint16) []byte {
	return append(b, byte(v>>8), byte(v))
}

func u32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func u16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
