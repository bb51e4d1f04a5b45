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
	"fmt"
	"time"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

// PoweronRetryInterval is how long OPEN_WAIT_POWERON_CNF waits before
// re-issuing POWERON after a failed attempt (spec.md section 4.6).
const PoweronRetryInterval = 5 * time.Second

// DefaultSlotmask is the all-timeslots-enabled default applied on OPEN
// (spec.md section 4.6).
const DefaultSlotmask = 0xFF

// Config holds one TRX's desired provisioning state.
type Config struct {
	BSIC       Item[uint8]
	ARFCN      Item[int]
	Slotmask   Item[uint8]
	TSC        Item[uint8]
	NomTxPower Item[int]
	Format     Item[string]
	RxGain     Item[int]
	MaxDly     Item[int]
	MaxDlyNB   Item[int]
	Slots      [8]Item[l1const.SlotTypeCode]
}

// step is one outstanding (command, item-setter) pair the FSM wants sent.
type step struct {
	cmd    l1const.Command
	params string
	mark   func()
}

// FSM is one TRX's provisioning state machine. IsLead marks TRX#0 of a phy
// link: only the lead TRX drives POWERON/POWEROFF and the other TRX of the
// same link wait on LeadReady before leaving OPEN_POWEROFF.
type FSM struct {
	IsLead bool
	state  State
	cfg    *Config

	poweronSentAt time.Time
	havePoweronAt bool
}

// New returns an FSM in CLOSED state for the given TRX's config.
func New(cfg *Config, isLead bool) *FSM {
	return &FSM{IsLead: isLead, state: StateClosed, cfg: cfg}
}

// State reports the current FSM state.
func (f *FSM) State() State { return f.state }

// Open transitions CLOSED -> OPEN_POWEROFF, applying the default slotmask
// and, on the lead TRX only, pre-emptively requesting POWEROFF.
func (f *FSM) Open() []l1const.Command {
	if f.state != StateClosed {
		return nil
	}
	f.cfg.Slotmask.Set(DefaultSlotmask)
	f.state = StateOpenPoweroff
	if f.IsLead {
		return []l1const.Command{l1const.CmdPowerOff}
	}
	return nil
}

// allPreconfAcked reports whether every OPEN_POWEROFF field the FSM is
// responsible for (spec.md: CFG_ENABLE, CFG_BSIC, CFG_ARFCN, CFG_TS, plus
// RXTUNE/TXTUNE/SETTSC-or-SETBSIC/NOMTXPOWER/SETFORMAT confirmations) has
// been acked.
func (f *FSM) allPreconfAcked() bool {
	return f.cfg.Slotmask.Acked() && f.cfg.BSIC.Acked() && f.cfg.ARFCN.Acked() &&
		f.cfg.TSC.Acked() && f.cfg.NomTxPower.Acked() && f.cfg.Format.Acked()
}

// NextPreconfStep returns the next idempotent provisioning command due to be
// sent while in OPEN_POWEROFF, or nil if nothing is due right now.
func (f *FSM) NextPreconfStep() *step {
	if f.state != StateOpenPoweroff {
		return nil
	}
	switch {
	case f.cfg.ARFCN.Due():
		return &step{l1const.CmdRxTune, fmt.Sprintf("%d", f.cfg.ARFCN.desired), f.cfg.ARFCN.MarkRequested}
	case f.cfg.BSIC.Due():
		return &step{l1const.CmdSetBSIC, fmt.Sprintf("%d", f.cfg.BSIC.desired), f.cfg.BSIC.MarkRequested}
	case f.cfg.TSC.Due():
		return &step{l1const.CmdSetTSC, fmt.Sprintf("%d", f.cfg.TSC.desired), f.cfg.TSC.MarkRequested}
	case f.cfg.Slotmask.Due():
		return &step{l1const.CmdSetSlot, fmt.Sprintf("%d", f.cfg.Slotmask.desired), f.cfg.Slotmask.MarkRequested}
	case f.cfg.NomTxPower.Due():
		return &step{l1const.CmdNomTxPower, fmt.Sprintf("%d", f.cfg.NomTxPower.desired), f.cfg.NomTxPower.MarkRequested}
	case f.cfg.Format.Due():
		return &step{l1const.CmdSetFormat, f.cfg.Format.desired, f.cfg.Format.MarkRequested}
	default:
		return nil
	}
}

// TryAdvanceToPoweron moves the lead TRX from OPEN_POWEROFF to
// OPEN_WAIT_POWERON_CNF and issues POWERON, once its own preconfiguration is
// acked and leadReady is true. The FSM does not look at the other TRX of
// the phy link; leadReady is the caller's report on them. Non-lead TRX never advance past
// OPEN_POWEROFF on their own; they follow once the lead signals OPEN_POWERON
// via FollowLead.
func (f *FSM) TryAdvanceToPoweron(leadReady bool, now time.Time) l1const.Command {
	if f.state != StateOpenPoweroff || !f.IsLead || !f.allPreconfAcked() || !leadReady {
		return ""
	}
	f.state = StateOpenWaitPoweronCnf
	f.poweronSentAt = now
	f.havePoweronAt = true
	return l1const.CmdPowerOn
}

// HandlePoweronResult processes the POWERON response. On success the FSM
// moves to OPEN_POWERON; on failure it stays in OPEN_WAIT_POWERON_CNF and
// the caller should retry via MaybeRetryPoweron once PoweronRetryInterval
// has elapsed.
func (f *FSM) HandlePoweronResult(ok bool) {
	if f.state != StateOpenWaitPoweronCnf {
		return
	}
	if ok {
		f.state = StateOpenPoweron
	}
}

// MaybeRetryPoweron reissues POWERON if the FSM is still waiting for its
// confirmation after PoweronRetryInterval has elapsed (spec.md: "POWERON
// failure retried after 5 s").
func (f *FSM) MaybeRetryPoweron(now time.Time) l1const.Command {
	if f.state != StateOpenWaitPoweronCnf || !f.havePoweronAt {
		return ""
	}
	if now.Sub(f.poweronSentAt) < PoweronRetryInterval {
		return ""
	}
	f.poweronSentAt = now
	return l1const.CmdPowerOn
}

// FollowLead lets a non-lead TRX advance to OPEN_POWERON once the lead TRX
// has reached it.
func (f *FSM) FollowLead(leadState State) {
	if !f.IsLead && f.state == StateOpenPoweroff && leadState == StateOpenPoweron {
		f.state = StateOpenPoweron
	}
}

// NextPostPoweronStep returns the next post-power-on command due (SETRXGAIN,
// SETMAXDLY, SETMAXDLYNB, and per-timeslot SETSLOT), or nil once everything
// is acked.
func (f *FSM) NextPostPoweronStep() *step {
	if f.state != StateOpenPoweron {
		return nil
	}
	switch {
	case f.cfg.RxGain.Due():
		return &step{l1const.CmdSetRxGain, fmt.Sprintf("%d", f.cfg.RxGain.desired), f.cfg.RxGain.MarkRequested}
	case f.cfg.MaxDly.Due():
		return &step{l1const.CmdSetMaxDly, fmt.Sprintf("%d", f.cfg.MaxDly.desired), f.cfg.MaxDly.MarkRequested}
	case f.cfg.MaxDlyNB.Due():
		return &step{l1const.CmdSetMaxDlyNB, fmt.Sprintf("%d", f.cfg.MaxDlyNB.desired), f.cfg.MaxDlyNB.MarkRequested}
	default:
		for tn := range f.cfg.Slots {
			if f.cfg.Slots[tn].Due() {
				tn := tn
				return &step{l1const.CmdSetSlot, fmt.Sprintf("%d %d", tn, f.cfg.Slots[tn].desired), f.cfg.Slots[tn].MarkRequested}
			}
		}
	}
	return nil
}

// Close begins shutdown: the lead TRX sends POWEROFF and waits for
// confirmation; a non-lead TRX just tears down local state immediately.
func (f *FSM) Close() l1const.Command {
	if f.state == StateClosed {
		return ""
	}
	if !f.IsLead {
		f.state = StateClosed
		return ""
	}
	f.state = StateOpenWaitPoweroffCnf
	return l1const.CmdPowerOff
}

// HandlePoweroffResult completes the CLOSE sequence on the lead TRX.
func (f *FSM) HandlePoweroffResult() {
	if f.state == StateOpenWaitPoweroffCnf {
		f.state = StateClosed
	}
}

// ForceClosed snaps the FSM straight to CLOSED without waiting for a
// POWEROFF confirmation, for the clock-loss hard reset (spec.md: "clock
// lost... transition phy-link to SHUTDOWN"), where the far end is already
// presumed gone and the normal graceful-close handshake cannot complete.
func (f *FSM) ForceClosed() {
	f.state = StateClosed
	f.havePoweronAt = false
}

// Cmd and Params expose a *step for the caller to enqueue on the TRXC queue.
func (s *step) Cmd() l1const.Command { return s.cmd }
func (s *step) Params() string       { return s.params }
func (s *step) MarkSent()            { s.mark() }
