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

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestXCCHRoundTrip(t *testing.T) {
	l2 := make([]byte, 23)
	for i := range l2 {
		l2[i] = byte(i*37 + 5)
	}
	coded, err := XCCHEncode(l2)
	require.NoError(t, err)
	require.Len(t, coded, XCCHCodedBits)
	decoded, err := XCCHDecode(coded)
	require.NoError(t, err)
	if diff := cmp.Diff(l2, decoded); diff != "" {
		t.Errorf("decoded L2 mismatch (-want +got):\n%s", diff)
	}
}

func TestXCCHInterleaveInvolution(t *testing.T) {
	c := make([]uint8, XCCHCodedBits)
	for i := range c {
		c[i] = uint8(i % 2)
	}
	if diff := cmp.Diff(c, XCCHDeinterleave(XCCHInterleave(c))); diff != "" {
		t.Errorf("interleave/deinterleave not involutive (-want +got):\n%s", diff)
	}
}

func TestXCCHDecodeCRCFailure(t *testing.T) {
	l2 := make([]byte, 23)
	coded, err := XCCHEncode(l2)
	require.NoError(t, err)
	for i := 0; i < len(coded); i += 2 {
		coded[i] ^= 1
	}
	_, err = XCCHDecode(coded)
	require.Error(t, err)
}

func TestRACHRoundTrip(t *testing.T) {
	for _, bsic := range []uint8{0, 7, 63} {
		for ra := 0; ra < 256; ra += 17 {
			coded := RACHEncode(uint8(ra), bsic)
			require.Len(t, coded, 36)
			got, err := RACHDecode(coded, bsic)
			require.NoError(t, err)
			require.Equal(t, uint8(ra), got)
		}
	}
}

func TestSCHRoundTrip(t *testing.T) {
	sb := make([]uint8, 25)
	for i := range sb {
		sb[i] = uint8((i * 13) % 2)
	}
	coded, err := SCHEncode(sb)
	require.NoError(t, err)
	require.Len(t, coded, 78)
	got, err := SCHDecode(coded)
	require.NoError(t, err)
	require.Equal(t, sb, got)
}

func TestTCHFRRoundTrip(t *testing.T) {
	data := make([]byte, TCHFRBytes)
	for i := range data {
		data[i] = byte(i*7 + 1)
	}
	data[0] = 0xd0 | data[0]&0x0f // a GSM-FR frame starts with the 0xd header nibble
	for _, netOrder := range []bool{true, false} {
		coded, err := TCHFREncode(data, netOrder)
		require.NoError(t, err)
		require.Len(t, coded, XCCHCodedBits)
		out, ok, err := TCHFRDecode(coded, netOrder)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, data, out)
	}
}

func TestTCHHRRoundTrip(t *testing.T) {
	data := make([]byte, TCHHRBytes)
	for i := range data {
		data[i] = byte(i*11 + 3)
	}
	coded, err := TCHHREncode(data)
	require.NoError(t, err)
	require.Len(t, coded, TCHHRCodedBits)
	out, ok, err := TCHHRDecode(coded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, data, out)
}

func TestEFRRoundTrip(t *testing.T) {
	data := make([]byte, EFRBytes)
	for i := range data {
		data[i] = byte(i*5 + 2)
	}
	coded, err := EFREncode(data)
	require.NoError(t, err)
	require.Len(t, coded, XCCHCodedBits)
	out, ok, err := EFRDecode(coded)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, data, out)
}

func TestPDTCHRoundTripAllSchemes(t *testing.T) {
	cases := []struct {
		cs  CS
		len int
	}{
		{CS1, 178},
		{CS2, 284},
		{CS3, 328},
		{CS4, 436},
	}
	for _, c := range cases {
		payload := make([]uint8, c.len)
		for i := range payload {
			payload[i] = uint8((i * 3) % 2)
		}
		for usf := uint8(0); usf < 8; usf++ {
			coded, err := PDTCHEncode(c.cs, usf, payload)
			require.NoError(t, err)
			require.Len(t, coded, 456)
			gotPayload, gotUSF, ok, err := PDTCHDecode(c.cs, coded)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, usf, gotUSF)
			require.Equal(t, payload, gotPayload)
		}
	}
}

func TestAMRFRRoundTrip(t *testing.T) {
	for mode, n := range amrModeBits {
		if mode == AMRSID {
			continue
		}
		payload := make([]uint8, n)
		for i := range payload {
			payload[i] = uint8(i % 2)
		}
		coded, err := AMRFREncode(mode, 5, payload)
		require.NoError(t, err)
		require.Len(t, coded, 456)
		cmr, ft, got, ok, err := AMRFRDecode(mode, coded)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint8(5), cmr)
		require.Equal(t, amrModeToFT(mode), ft)
		require.Equal(t, payload, got)
	}
}

func TestConvEncodeDecodeRoundTrip(t *testing.T) {
	bits := make([]uint8, 100)
	for i := range bits {
		bits[i] = uint8((i * 31) % 2)
	}
	coded := ConvEncode(bits)
	require.Len(t, coded, 2*(100+4))
	decoded := ConvDecode(coded, 100)
	require.Equal(t, bits, decoded)
}
