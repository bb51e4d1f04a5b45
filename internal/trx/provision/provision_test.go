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

package provision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

func fullyConfigured() *Config {
	c := &Config{}
	c.ARFCN.Set(42)
	c.BSIC.Set(7)
	c.TSC.Set(7 & 7)
	c.NomTxPower.Set(40)
	c.Format.Set("sc8")
	return c
}

func TestItemDueLifecycle(t *testing.T) {
	var it Item[int]
	require.False(t, it.Due())
	it.Set(5)
	require.True(t, it.Due())
	it.MarkRequested()
	require.False(t, it.Due())
	it.MarkAcked()
	require.True(t, it.Acked())
	require.False(t, it.Due())

	it.Set(6)
	require.True(t, it.Due())
	require.False(t, it.Acked())
}

func TestItemMarkAckedValueAdoptsNegotiatedValue(t *testing.T) {
	var it Item[string]
	it.Set("2")
	it.MarkRequested()
	it.MarkAckedValue("1")
	require.True(t, it.Acked())
	require.False(t, it.Due())
}

func TestOpenAppliesDefaultSlotmaskAndLeadSendsPoweroff(t *testing.T) {
	cfg := &Config{}
	f := New(cfg, true)
	cmds := f.Open()
	require.Equal(t, StateOpenPoweroff, f.State())
	require.Equal(t, []l1const.Command{l1const.CmdPowerOff}, cmds)
	require.True(t, cfg.Slotmask.Due())
}

func TestOpenNonLeadSendsNoPoweroff(t *testing.T) {
	f := New(&Config{}, false)
	cmds := f.Open()
	require.Empty(t, cmds)
	require.Equal(t, StateOpenPoweroff, f.State())
}

func TestPreconfStepsAndAdvanceToPoweron(t *testing.T) {
	cfg := fullyConfigured()
	f := New(cfg, true)
	f.Open()

	seen := map[l1const.Command]bool{}
	for i := 0; i < 10; i++ {
		s := f.NextPreconfStep()
		if s == nil {
			break
		}
		seen[s.Cmd()] = true
		s.MarkSent()
		switch s.Cmd() {
		case l1const.CmdRxTune:
			cfg.ARFCN.MarkAcked()
		case l1const.CmdSetBSIC:
			cfg.BSIC.MarkAcked()
		case l1const.CmdSetTSC:
			cfg.TSC.MarkAcked()
		case l1const.CmdSetSlot:
			cfg.Slotmask.MarkAcked()
		case l1const.CmdNomTxPower:
			cfg.NomTxPower.MarkAcked()
		case l1const.CmdSetFormat:
			cfg.Format.MarkAcked()
		}
	}
	require.True(t, seen[l1const.CmdRxTune])
	require.True(t, seen[l1const.CmdSetBSIC])
	require.Nil(t, f.NextPreconfStep())

	now := time.Now()
	cmd := f.TryAdvanceToPoweron(true, now)
	require.Equal(t, l1const.CmdPowerOn, cmd)
	require.Equal(t, StateOpenWaitPoweronCnf, f.State())
}

func TestNonLeadWaitsUntilLeadSignalsPoweron(t *testing.T) {
	f := New(&Config{}, false)
	f.Open()
	require.Equal(t, StateOpenPoweroff, f.State())
	f.FollowLead(StateOpenWaitPoweronCnf)
	require.Equal(t, StateOpenPoweroff, f.State())
	f.FollowLead(StateOpenPoweron)
	require.Equal(t, StateOpenPoweron, f.State())
}

func TestPoweronRetryAfterInterval(t *testing.T) {
	cfg := &Config{}
	f := New(cfg, true)
	f.Open()
	now := time.Now()
	f.state = StateOpenWaitPoweronCnf
	f.poweronSentAt = now
	f.havePoweronAt = true

	require.Empty(t, f.MaybeRetryPoweron(now.Add(time.Second)))
	cmd := f.MaybeRetryPoweron(now.Add(PoweronRetryInterval + time.Millisecond))
	require.Equal(t, l1const.CmdPowerOn, cmd)
}

func TestHandlePoweronResultSuccess(t *testing.T) {
	f := New(&Config{}, true)
	f.state = StateOpenWaitPoweronCnf
	f.HandlePoweronResult(true)
	require.Equal(t, StateOpenPoweron, f.State())
}

func TestCloseLeadVsFollower(t *testing.T) {
	lead := New(&Config{}, true)
	lead.state = StateOpenPoweron
	cmd := lead.Close()
	require.Equal(t, l1const.CmdPowerOff, cmd)
	require.Equal(t, StateOpenWaitPoweroffCnf, lead.State())
	lead.HandlePoweroffResult()
	require.Equal(t, StateClosed, lead.State())

	follower := New(&Config{}, false)
	follower.state = StateOpenPoweron
	cmd = follower.Close()
	require.Empty(t, cmd)
	require.Equal(t, StateClosed, follower.State())
}

func TestPostPoweronStepsCoverSlotsAndLimits(t *testing.T) {
	cfg := &Config{}
	cfg.RxGain.Set(20)
	cfg.MaxDly.Set(63)
	cfg.Slots[0].Set(l1const.SlotTypeCCCH)
	f := New(cfg, true)
	f.state = StateOpenPoweron

	var cmds []l1const.Command
	for i := 0; i < 10; i++ {
		s := f.NextPostPoweronStep()
		if s == nil {
			break
		}
		cmds = append(cmds, s.Cmd())
		s.MarkSent()
		switch s.Cmd() {
		case l1const.CmdSetRxGain:
			cfg.RxGain.MarkAcked()
		case l1const.CmdSetMaxDly:
			cfg.MaxDly.MarkAcked()
		case l1const.CmdSetSlot:
			cfg.Slots[0].MarkAcked()
		}
	}
	require.Contains(t, cmds, l1const.CmdSetRxGain)
	require.Contains(t, cmds, l1const.CmdSetMaxDly)
	require.Contains(t, cmds, l1const.CmdSetSlot)
	require.Nil(t, f.NextPostPoweronStep())
}
