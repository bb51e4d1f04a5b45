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

// Package bts assembles the per-process BTS out of its TRXs, wiring
// multiframe+sched+trxproto+provision+clock+l1sap per phy link (spec.md
// section 3: "Fold [global state] into a BTS struct passed explicitly").
// There is exactly one BTS, holding one or more TRX, each owning 8
// timeslots. The assembly in bts.go performs no network I/O; reactor.go
// owns the TRXC/TRXD UDP sockets and the phy link's shared clock socket,
// feeds what they receive into this state, writes wire bytes back out, and
// sends upward l1sap primitives on Reactor.Upward.
package bts

import (
	"fmt"

	"github.com/osmocom/osmo-bts-trx/internal/config"
	"github.com/osmocom/osmo-bts-trx/internal/l1const"
	"github.com/osmocom/osmo-bts-trx/internal/multiframe"
	"github.com/osmocom/osmo-bts-trx/internal/trx/clock"
	"github.com/osmocom/osmo-bts-trx/internal/trx/l1sap"
	"github.com/osmocom/osmo-bts-trx/internal/trx/powerctrl"
	"github.com/osmocom/osmo-bts-trx/internal/trx/provision"
	"github.com/osmocom/osmo-bts-trx/internal/trx/sched"
	"github.com/osmocom/osmo-bts-trx/internal/trx/trxproto"
)

// LinkState is a phy link's reported connectivity (spec.md section 3:
// "link-state enum (SHUTDOWN/CONNECTING/CONNECTED)").
type LinkState uint8

const (
	LinkShutdown LinkState = iota
	LinkConnecting
	LinkConnected
)

func (s LinkState) String() string {
	switch s {
	case LinkShutdown:
		return "SHUTDOWN"
	case LinkConnecting:
		return "CONNECTING"
	case LinkConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// linkStateFromFSM derives the reported link state from the provisioning
// FSM's state: only OPEN_POWERON counts as fully connected.
func linkStateFromFSM(s provision.State) LinkState {
	switch s {
	case provision.StateClosed:
		return LinkShutdown
	case provision.StateOpenPoweron:
		return LinkConnected
	default:
		return LinkConnecting
	}
}

// reconfigState drives a dynamic timeslot's pchan change through the
// deactivate -> drain -> SETSLOT -> rebuild sequence of spec.md scenario S5.
type reconfigState uint8

const (
	reconfigNone reconfigState = iota
	reconfigDraining
	reconfigWaitDrain
	reconfigWaitSlotAck
)

// Timeslot is one TRX timeslot's configuration plus its scheduler state,
// which is rebuilt from scratch whenever the pchan changes.
type Timeslot struct {
	TN int

	CurrentPchan l1const.Pchan
	WantedPchan  l1const.Pchan

	Sched *sched.Timeslot
	BSIC  uint8

	// RTSAdvance and ClockAdvance come from the process-wide rts-advance/
	// fn-advance config (spec.md section 6) and are threaded into every
	// sched.Timeslot this Timeslot builds.
	RTSAdvance   uint32
	ClockAdvance uint32

	Power map[sched.ChanSub]*powerctrl.Loop

	reconfig reconfigState
}

// NewTimeslot returns an unconfigured (pchan NONE) timeslot.
func NewTimeslot(tn int, bsic uint8, rtsAdvance, clockAdvance uint32) *Timeslot {
	return &Timeslot{
		TN:           tn,
		BSIC:         bsic,
		RTSAdvance:   rtsAdvance,
		ClockAdvance: clockAdvance,
		Power:        map[sched.ChanSub]*powerctrl.Loop{},
	}
}

// Configure builds the scheduler state for a static (non-reconfiguring)
// pchan directly, bypassing the drain/SETSLOT sequence -- used for initial
// timeslot bring-up during provisioning, where there is nothing to drain.
func (ts *Timeslot) Configure(pchan l1const.Pchan) error {
	table, err := multiframe.ForPchan(pchan, ts.TN)
	if err != nil {
		return err
	}
	ts.Sched = sched.NewTimeslot(ts.TN, table, ts.BSIC, ts.RTSAdvance, ts.ClockAdvance)
	ts.CurrentPchan = pchan
	ts.WantedPchan = pchan
	ts.reconfig = reconfigNone
	return nil
}

// BeginReconfigure starts a dynamic pchan change to wanted. It is a no-op
// if wanted already matches the current configuration.
func (ts *Timeslot) BeginReconfigure(wanted l1const.Pchan) {
	if wanted == ts.CurrentPchan {
		return
	}
	ts.WantedPchan = wanted
	ts.reconfig = reconfigDraining
}

// StepReconfigure advances one step of an in-progress reconfiguration,
// returning any upward indications to emit now. slotItem is the
// provisioning FSM's per-timeslot SETSLOT item for this TN; the caller is
// responsible for actually sending the commands provision.FSM.
// NextPostPoweronStep produces once Set has been called here.
func (ts *Timeslot) StepReconfigure(slotItem *provision.Item[l1const.SlotTypeCode]) ([]l1sap.MPHInfoInd, error) {
	switch ts.reconfig {
	case reconfigNone:
		return nil, nil

	case reconfigDraining:
		var inds []l1sap.MPHInfoInd
		if ts.Sched != nil {
			for _, cs := range ts.Sched.BeginReleaseAll() {
				inds = append(inds, l1sap.MPHInfoInd{
					Subtype: l1sap.MPHInfoDeactivate,
					ChanNr:  chanNrFor(ts.CurrentPchan, cs.Chan, cs.Sub, ts.TN),
				})
			}
		}
		ts.reconfig = reconfigWaitDrain
		return inds, nil

	case reconfigWaitDrain:
		if ts.Sched != nil && !ts.Sched.AllReleased() {
			return nil, nil
		}
		code, err := l1const.SlotTypeFromPchan(ts.WantedPchan)
		if err != nil {
			return nil, fmt.Errorf("bts: reconfigure tn=%d: %w", ts.TN, err)
		}
		slotItem.Set(code)
		ts.reconfig = reconfigWaitSlotAck
		return nil, nil

	case reconfigWaitSlotAck:
		if !slotItem.Acked() {
			return nil, nil
		}
		if err := ts.Configure(ts.WantedPchan); err != nil {
			return nil, fmt.Errorf("bts: reconfigure tn=%d: %w", ts.TN, err)
		}
		var inds []l1sap.MPHInfoInd
		for _, cs := range ts.Sched.Hosted() {
			inds = append(inds, l1sap.MPHInfoInd{
				Subtype: l1sap.MPHInfoActivate,
				ChanNr:  chanNrFor(ts.CurrentPchan, cs.Chan, cs.Sub, ts.TN),
			})
		}
		return inds, nil

	default:
		return nil, nil
	}
}

// Reconfiguring reports whether a dynamic-timeslot transition is underway.
func (ts *Timeslot) Reconfiguring() bool { return ts.reconfig != reconfigNone }

// ResetOnLinkLoss tears down this timeslot's live scheduler state on clock
// loss (spec.md: "clock lost... reset scheduler"); the timeslot becomes
// unconfigured again and must be re-provisioned once the link recovers.
func (ts *Timeslot) ResetOnLinkLoss() {
	ts.Sched = nil
	ts.CurrentPchan = l1const.PchanNone
	ts.reconfig = reconfigNone
	ts.Power = map[sched.ChanSub]*powerctrl.Loop{}
}

// chanNrFor derives the RSL channel-number cbits for a logical channel
// instance, per 3GPP TS 08.58 section 9.3.1. This is a simplified mapping
// covering exactly the channel types spec.md's data model names; it does
// not attempt the full generality of real RSL channel-number assignment
// (e.g. Osmocom's PDCH-specific extensions).
func chanNrFor(pchan l1const.Pchan, c l1const.ChanType, sub int, tn int) l1sap.ChanNr {
	if sub < 0 {
		sub = 0
	}
	var cbits uint8
	switch c {
	case l1const.ChanTCHF, l1const.ChanFACCHF:
		cbits = 0x01
	case l1const.ChanTCHH, l1const.ChanFACCHH:
		cbits = 0x02 | uint8(sub&1)
	case l1const.ChanSACCH:
		switch pchan {
		case l1const.PchanTCHF:
			cbits = 0x01
		case l1const.PchanTCHH:
			cbits = 0x02 | uint8(sub&1)
		case l1const.PchanCCCHSDCCH4, l1const.PchanCCCHSDCCH4CBCH:
			cbits = 0x04 | uint8(sub&3)
		default:
			cbits = 0x08 | uint8(sub&7)
		}
	case l1const.ChanSDCCH:
		if pchan == l1const.PchanCCCHSDCCH4 || pchan == l1const.PchanCCCHSDCCH4CBCH {
			cbits = 0x04 | uint8(sub&3)
		} else {
			cbits = 0x08 | uint8(sub&7)
		}
	case l1const.ChanBCCH, l1const.ChanCCCH, l1const.ChanAGCH, l1const.ChanPCH, l1const.ChanRACH:
		cbits = 0x11
	case l1const.ChanPDTCH, l1const.ChanPTCCH, l1const.ChanPRACH:
		cbits = 0x11
	default:
		cbits = 0x11
	}
	return l1sap.EncodeChanNr(cbits, uint8(tn))
}

// TRX is one carrier: its provisioning FSM, clock slave, TRXC queue, and
// the 8 timeslots it owns (spec.md section 3, "TRX (carrier)").
type TRX struct {
	Index  int
	IsLead bool
	Band   l1const.Band

	ProvCfg *provision.Config
	FSM     *provision.FSM
	Clock   *clock.FrameClock
	TRXC    *trxproto.Queue

	Link LinkState

	Slots [8]*Timeslot
}

// NewTRX builds a TRX from its config-file entry. index 0 is always the
// lead of its phy link (spec.md section 4.6). bsic is the BTS-wide BSIC,
// shared by every TRX's timeslots. rtsAdvance and clockAdvance are the
// configured rts-advance/fn-advance, passed through to every timeslot.
func NewTRX(index int, cfg config.TRXConfig, bsic uint8, rtsAdvance, clockAdvance uint32) (*TRX, error) {
	band, err := l1const.ParseBand(cfg.Band)
	if err != nil {
		return nil, fmt.Errorf("bts: trx %d: %w", index, err)
	}
	pc := &provision.Config{}
	pc.ARFCN.Set(cfg.ARFCN)
	pc.NomTxPower.Set(cfg.NominalTxPowerDBm)
	pc.Format.Set("v1")

	t := &TRX{
		Index:   index,
		IsLead:  index == 0,
		Band:    band,
		ProvCfg: pc,
		Clock:   clock.New(),
		TRXC:    trxproto.NewQueue(),
		Link:    LinkShutdown,
	}
	pc.BSIC.Set(bsic)
	t.FSM = provision.New(pc, t.IsLead)
	for tn := range t.Slots {
		t.Slots[tn] = NewTimeslot(tn, bsic, rtsAdvance, clockAdvance)
	}
	return t, nil
}

// SyncLinkState refreshes Link from the provisioning FSM's current state.
func (t *TRX) SyncLinkState() {
	t.Link = linkStateFromFSM(t.FSM.State())
}

// OnClockLost performs the clock-loss hard reset (spec.md: "flush TRXC
// queue, reset scheduler, issue POWEROFF, transition phy-link to SHUTDOWN,
// notify upward"). Since the datagram stream is presumed already dead, this
// forces local state back to CLOSED rather than waiting on a POWEROFF
// confirmation that will never arrive.
func (t *TRX) OnClockLost() {
	t.TRXC = trxproto.NewQueue()
	for _, ts := range t.Slots {
		ts.ResetOnLinkLoss()
	}
	t.FSM.ForceClosed()
	t.Clock.Reset()
	t.Link = LinkShutdown
}

// BTS is the top-level process state: every TRX of this site.
type BTS struct {
	TRXs []*TRX
}

// New builds a BTS from its configuration, one TRX per config.TRXConfig
// entry, index 0 as the phy link's lead.
func New(cfg *config.Config) (*BTS, error) {
	b := &BTS{}
	for i, tc := range cfg.TRXs {
		trx, err := NewTRX(i, tc, cfg.BSIC, uint32(cfg.RTSAdvance), uint32(cfg.FNAdvance))
		if err != nil {
			return nil, err
		}
		b.TRXs = append(b.TRXs, trx)
	}
	return b, nil
}
