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

package bts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osmocom/osmo-bts-trx/internal/config"
	"github.com/osmocom/osmo-bts-trx/internal/l1const"
	"github.com/osmocom/osmo-bts-trx/internal/trx/l1sap"
	"github.com/osmocom/osmo-bts-trx/internal/trx/provision"
)

func TestLinkStateFromFSM(t *testing.T) {
	require.Equal(t, LinkShutdown, linkStateFromFSM(provision.StateClosed))
	require.Equal(t, LinkConnecting, linkStateFromFSM(provision.StateOpenPoweroff))
	require.Equal(t, LinkConnecting, linkStateFromFSM(provision.StateOpenWaitPoweronCnf))
	require.Equal(t, LinkConnected, linkStateFromFSM(provision.StateOpenPoweron))
	require.Equal(t, LinkConnecting, linkStateFromFSM(provision.StateOpenWaitPoweroffCnf))
}

func TestLinkStateString(t *testing.T) {
	require.Equal(t, "SHUTDOWN", LinkShutdown.String())
	require.Equal(t, "CONNECTING", LinkConnecting.String())
	require.Equal(t, "CONNECTED", LinkConnected.String())
}

func TestTRXSyncLinkState(t *testing.T) {
	trx, err := NewTRX(0, config.TRXConfig{ARFCN: 100, Band: "900"}, 7, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.NoError(t, err)
	require.Equal(t, LinkShutdown, trx.Link)

	trx.FSM.Open()
	trx.SyncLinkState()
	require.Equal(t, LinkConnecting, trx.Link)
}

func TestNewTRXUnknownBand(t *testing.T) {
	_, err := NewTRX(0, config.TRXConfig{ARFCN: 100, Band: "bogus"}, 7, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.Error(t, err)
}

func TestBTSNewOneTRXPerConfigEntry(t *testing.T) {
	cfg := &config.Config{
		BSIC: 12,
		TRXs: []config.TRXConfig{
			{ARFCN: 100, Band: "900"},
			{ARFCN: 512, Band: "1800"},
		},
	}
	b, err := New(cfg)
	require.NoError(t, err)
	require.Len(t, b.TRXs, 2)
	require.True(t, b.TRXs[0].IsLead)
	require.False(t, b.TRXs[1].IsLead)
	for _, trx := range b.TRXs {
		for _, ts := range trx.Slots {
			require.Equal(t, uint8(12), ts.BSIC)
		}
	}
}

func TestTimeslotConfigureStaticPchan(t *testing.T) {
	ts := NewTimeslot(0, 12, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.NoError(t, ts.Configure(l1const.PchanCCCHSDCCH4))
	require.Equal(t, l1const.PchanCCCHSDCCH4, ts.CurrentPchan)
	require.NotNil(t, ts.Sched)
	require.False(t, ts.Reconfiguring())
}

func TestTimeslotBeginReconfigureNoopWhenAlreadyCurrent(t *testing.T) {
	ts := NewTimeslot(3, 12, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.NoError(t, ts.Configure(l1const.PchanTCHF))
	ts.BeginReconfigure(l1const.PchanTCHF)
	require.False(t, ts.Reconfiguring())
}

// TestTimeslotReconfigureFullSequence drives a dynamic timeslot's pchan
// change all the way from TCH/F to PDCH through the drain -> SETSLOT ->
// rebuild state machine.
func TestTimeslotReconfigureFullSequence(t *testing.T) {
	ts := NewTimeslot(4, 12, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.NoError(t, ts.Configure(l1const.PchanTCHF))
	require.NotEmpty(t, ts.Sched.Hosted())

	ts.BeginReconfigure(l1const.PchanPDCH)
	require.True(t, ts.Reconfiguring())

	var slotItem provision.Item[l1const.SlotTypeCode]

	// Draining: emits a deactivate indication per active lchan. No lchan
	// was ever activated here, so there is nothing to release and
	// AllReleased() is already true on the next step.
	inds, err := ts.StepReconfigure(&slotItem)
	require.NoError(t, err)
	_ = inds

	// WaitDrain: everything already released (no lchan was ever
	// activated), so this step issues SETSLOT.
	inds, err = ts.StepReconfigure(&slotItem)
	require.NoError(t, err)
	require.Empty(t, inds)
	require.True(t, slotItem.Due())
	slotItem.MarkRequested()

	// Still waiting on the SETSLOT ack.
	inds, err = ts.StepReconfigure(&slotItem)
	require.NoError(t, err)
	require.Empty(t, inds)
	require.True(t, ts.Reconfiguring())

	slotItem.MarkAcked()
	inds, err = ts.StepReconfigure(&slotItem)
	require.NoError(t, err)
	require.Equal(t, l1const.PchanPDCH, ts.CurrentPchan)
	require.False(t, ts.Reconfiguring())
	for _, ind := range inds {
		require.Equal(t, l1sap.MPHInfoActivate, ind.Subtype)
	}
}

func TestTimeslotStepReconfigureIdleWhenNotReconfiguring(t *testing.T) {
	ts := NewTimeslot(0, 12, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.NoError(t, ts.Configure(l1const.PchanCCCH))
	var slotItem provision.Item[l1const.SlotTypeCode]
	inds, err := ts.StepReconfigure(&slotItem)
	require.NoError(t, err)
	require.Nil(t, inds)
}

func TestTimeslotResetOnLinkLoss(t *testing.T) {
	ts := NewTimeslot(2, 12, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.NoError(t, ts.Configure(l1const.PchanTCHF))
	ts.ResetOnLinkLoss()
	require.Nil(t, ts.Sched)
	require.Equal(t, l1const.PchanNone, ts.CurrentPchan)
	require.False(t, ts.Reconfiguring())
	require.Empty(t, ts.Power)
}

func TestChanNrForRepresentativeChannelTypes(t *testing.T) {
	cases := []struct {
		name  string
		pchan l1const.Pchan
		chn   l1const.ChanType
		sub   int
	}{
		{"tchf", l1const.PchanTCHF, l1const.ChanTCHF, 0},
		{"tchh-sub0", l1const.PchanTCHH, l1const.ChanTCHH, 0},
		{"tchh-sub1", l1const.PchanTCHH, l1const.ChanTCHH, 1},
		{"sdcch4", l1const.PchanCCCHSDCCH4, l1const.ChanSDCCH, 2},
		{"sdcch8", l1const.PchanSDCCH8SACCH8C, l1const.ChanSDCCH, 5},
		{"bcch", l1const.PchanCCCH, l1const.ChanBCCH, 0},
		{"pdtch", l1const.PchanPDCH, l1const.ChanPDTCH, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := chanNrFor(c.pchan, c.chn, c.sub, 3)
			require.NotZero(t, got)
		})
	}
}

func TestTRXOnClockLost(t *testing.T) {
	trx, err := NewTRX(0, config.TRXConfig{ARFCN: 100, Band: "900"}, 7, l1const.DefaultRTSAdvance, l1const.DefaultClockAdvance)
	require.NoError(t, err)
	require.NoError(t, trx.Slots[1].Configure(l1const.PchanTCHF))

	trx.FSM.Open()
	trx.OnClockLost()

	require.Equal(t, LinkShutdown, trx.Link)
	require.Equal(t, provision.StateClosed, trx.FSM.State())
	require.Nil(t, trx.Slots[1].Sched)
}
