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
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
	"github.com/osmocom/osmo-bts-trx/internal/trx/clock"
	"github.com/osmocom/osmo-bts-trx/internal/trx/l1sap"
	"github.com/osmocom/osmo-bts-trx/internal/trx/sched"
	"github.com/osmocom/osmo-bts-trx/internal/trx/trxproto"
)

// Reactor drives one TRX's single-threaded cooperative event loop (spec.md
// section 5): a TRXC line, a TRXD datagram, or a frame tick, one at a time,
// with every field it touches owned exclusively by this goroutine. Multiple
// phy links each get their own Reactor, supervised together by BTS.Run.
type Reactor struct {
	TRX *TRX

	PDUVersion uint8

	trxc *net.UDPConn
	trxd *net.UDPConn

	// clockIn receives raw "IND CLOCK <fn>" datagrams from the phy link's
	// single shared clock socket (spec.md section 4.5), fanned out to every
	// TRX's reactor by runClockSocket. Delivery is non-blocking.
	clockIn chan []byte

	// Upward receives completed l1sap primitives (PHDataInd, TCHInd,
	// PHRACHInd, PHRTSInd, TCHRTSInd, MPHInfoInd) for the OML/RSL layer
	// above, which is out of this core's scope (spec.md section 1). Sends
	// are non-blocking; a full channel drops the primitive with a log.
	Upward chan any
}

// DialAddrs is the resolved local/remote UDP address pair for one TRX's
// TRXC and TRXD sockets (spec.md section 4.5: "for TRX #i the pair
// (clock+2i+1, clock+2i+2) is used for control and data").
type DialAddrs struct {
	LocalTRXC, RemoteTRXC string
	LocalTRXD, RemoteTRXD string
}

// AddrsForTRX computes one TRX's socket addresses from the process-wide
// base ports. Offset 0 is reserved for the phy link's shared clock socket
// (see PhyLinkClockAddrs), so TRX #i's control/data pair starts at offset
// 2i+1.
func AddrsForTRX(localIP, remoteIP string, basePortLocal, basePortRemote, index int) DialAddrs {
	return DialAddrs{
		LocalTRXC:  fmt.Sprintf("%s:%d", localIP, basePortLocal+2*index+1),
		RemoteTRXC: fmt.Sprintf("%s:%d", remoteIP, basePortRemote+2*index+1),
		LocalTRXD:  fmt.Sprintf("%s:%d", localIP, basePortLocal+2*index+2),
		RemoteTRXD: fmt.Sprintf("%s:%d", remoteIP, basePortRemote+2*index+2),
	}
}

// ClockAddrs is the resolved local/remote UDP address pair for a phy link's
// single shared clock socket.
type ClockAddrs struct {
	Local, Remote string
}

// PhyLinkClockAddrs computes the shared clock-socket address for a phy link
// from the process-wide base ports (spec.md section 4.5: "offset 0 is the
// clock").
func PhyLinkClockAddrs(localIP, remoteIP string, basePortLocal, basePortRemote int) ClockAddrs {
	return ClockAddrs{
		Local:  fmt.Sprintf("%s:%d", localIP, basePortLocal),
		Remote: fmt.Sprintf("%s:%d", remoteIP, basePortRemote),
	}
}

// DialClock dials the phy link's shared clock socket.
func DialClock(addrs ClockAddrs) (*net.UDPConn, error) {
	return dialUDP(addrs.Local, addrs.Remote)
}

// NewReactor dials both UDP sockets for trx and returns a ready-to-Run
// reactor. The phy link's shared clock socket is dialed separately (DialClock)
// and fed in through FeedClockLine by the caller's top-level Run.
func NewReactor(trx *TRX, addrs DialAddrs, pduVersion int) (*Reactor, error) {
	trxc, err := dialUDP(addrs.LocalTRXC, addrs.RemoteTRXC)
	if err != nil {
		return nil, fmt.Errorf("bts: trx %d: trxc: %w", trx.Index, err)
	}
	trxd, err := dialUDP(addrs.LocalTRXD, addrs.RemoteTRXD)
	if err != nil {
		trxc.Close()
		return nil, fmt.Errorf("bts: trx %d: trxd: %w", trx.Index, err)
	}
	return &Reactor{
		TRX:        trx,
		PDUVersion: uint8(pduVersion),
		trxc:       trxc,
		trxd:       trxd,
		clockIn:    make(chan []byte, 16),
		Upward:     make(chan any, 256),
	}, nil
}

func dialUDP(local, remote string) (*net.UDPConn, error) {
	laddr, err := net.ResolveUDPAddr("udp", local)
	if err != nil {
		return nil, err
	}
	raddr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, err
	}
	return net.DialUDP("udp", laddr, raddr)
}

// FeedClockLine delivers one "IND CLOCK <fn>" datagram read from the phy
// link's shared clock socket into this TRX's reactor loop. The caller (the
// phy link's single clock-socket reader, runClockSocket) may call this from
// any goroutine; delivery is non-blocking so a slow reactor cannot stall the
// broadcast to its siblings.
func (r *Reactor) FeedClockLine(line []byte) {
	select {
	case r.clockIn <- line:
	default:
		klog.Warningf("bts: trx %d: clock channel full, dropping clock indication", r.TRX.Index)
	}
}

// Close releases both sockets.
func (r *Reactor) Close() {
	r.trxc.Close()
	r.trxd.Close()
}

// Run blocks, processing TRXC lines, TRXD datagrams and frame ticks until
// ctx is cancelled or an unrecoverable protocol error occurs (a critical
// NACK, per spec.md's command table).
func (r *Reactor) Run(ctx context.Context) error {
	trxcCh := make(chan []byte, 16)
	trxdCh := make(chan []byte, 64)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()
	go readLoop(readCtx, r.trxc, trxcCh)
	go readLoop(readCtx, r.trxd, trxdCh)

	ticker := time.NewTicker(clock.FrameDuration)
	defer ticker.Stop()

	// sawClockTick tracks whether a real clock datagram advanced the frame
	// clock since the last timer firing, so the timer only steps the clock
	// forward itself during gaps between real datagrams (clock.FrameClock's
	// own contract: "the reactor must only call Tick for a period in which
	// no clock datagram was received").
	var sawClockTick bool

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-trxcCh:
			if !ok {
				return fmt.Errorf("bts: trx %d: trxc socket closed", r.TRX.Index)
			}
			if err := r.handleTRXCLine(ctx, string(buf)); err != nil {
				return err
			}
		case buf, ok := <-trxdCh:
			if !ok {
				return fmt.Errorf("bts: trx %d: trxd socket closed", r.TRX.Index)
			}
			r.handleTRXDDatagram(buf)
		case line := <-r.clockIn:
			fn, err := trxproto.ParseClockIndication(string(line))
			if err != nil {
				klog.Warningf("bts: trx %d: %v", r.TRX.Index, err)
				continue
			}
			r.OnClockDatagram(fn)
			sawClockTick = true
		case <-ticker.C:
			tick := !sawClockTick
			sawClockTick = false
			if err := r.handleTick(ctx, tick); err != nil {
				return err
			}
		}
	}
}

func readLoop(ctx context.Context, conn *net.UDPConn, out chan<- []byte) {
	buf := make([]byte, 2048)
	for {
		if ctx.Err() != nil {
			close(out)
			return
		}
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			close(out)
			return
		}
		cp := make([]byte, n)
		copy(cp, buf[:n])
		select {
		case out <- cp:
		case <-ctx.Done():
			close(out)
			return
		}
	}
}

func (r *Reactor) deliverUpward(v any) {
	select {
	case r.Upward <- v:
	default:
		klog.Warningf("bts: trx %d: upward channel full, dropping %T", r.TRX.Index, v)
	}
}

// handleTRXCLine completes one TRXC request/response round trip: the span
// covers parsing the response, retiring the head of the queue, and the
// resulting FSM transition, mirroring how the teacher traces one inbound
// packet through its repeater state machine in a single span.
func (r *Reactor) handleTRXCLine(ctx context.Context, line string) error {
	_, span := otel.Tracer("bts").Start(ctx, "Reactor.handleTRXCLine")
	defer span.End()

	cmd, status, params, err := trxproto.ParseResponse(line)
	if err != nil {
		klog.Warningf("bts: trx %d: %v", r.TRX.Index, err)
		return nil
	}
	ok, critical, respParams := r.TRX.TRXC.HandleResponse(cmd, status, params)
	switch cmd {
	case l1const.CmdPowerOn:
		r.TRX.FSM.HandlePoweronResult(ok)
	case l1const.CmdPowerOff:
		if ok {
			r.TRX.FSM.HandlePoweroffResult()
		}
	case l1const.CmdSetFormat:
		if ok {
			r.handleSetFormatAck(respParams)
		}
	}
	r.TRX.SyncLinkState()
	if !ok && critical {
		return fmt.Errorf("bts: trx %d: critical command %s NACKed", r.TRX.Index, cmd)
	}
	return nil
}

// handleSetFormatAck applies a SETFORMAT confirmation. The modem may ack a
// lower TRXD PDU version than requested (spec.md section 4.5, "modem may
// reply with a lower preferred version"); when it does, this adopts the
// negotiated version for both the provisioning item and subsequent TRXD
// encoding rather than continuing to encode at the un-downgraded version
// against a modem that no longer accepts it.
func (r *Reactor) handleSetFormatAck(params string) {
	negotiated, err := parsePDUVersion(params)
	if err != nil {
		klog.Warningf("bts: trx %d: setformat ack: %v", r.TRX.Index, err)
		r.TRX.ProvCfg.Format.MarkAcked()
		return
	}
	r.TRX.ProvCfg.Format.MarkAckedValue(fmt.Sprintf("v%d", negotiated))
	if negotiated != r.PDUVersion {
		klog.Warningf("bts: trx %d: modem negotiated trxd pdu version %d, down from %d", r.TRX.Index, negotiated, r.PDUVersion)
		r.PDUVersion = negotiated
	}
}

// parsePDUVersion accepts either a bare digit or a "v"-prefixed version
// string, since the provisioning item's desired value is seeded as "v1"
// (bts.NewTRX) while the wire param itself is the bare version number
// (spec.md section 4.5).
func parsePDUVersion(params string) (uint8, error) {
	s := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(params)), "v")
	n, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("bad pdu version %q: %w", params, err)
	}
	return uint8(n), nil
}

func (r *Reactor) handleTRXDDatagram(data []byte) {
	burst, err := trxproto.DecodeUplink(r.PDUVersion, data)
	if err != nil {
		klog.Warningf("bts: trx %d: trxd: %v", r.TRX.Index, err)
		return
	}
	if burst.NopeInd || int(burst.TN) >= len(r.TRX.Slots) {
		return
	}
	ts := r.TRX.Slots[burst.TN]
	if ts.Sched == nil {
		return
	}
	ind, err := ts.Sched.RXStep(burst.FN, burst.HardBits(), int(burst.RSSI), int(burst.ToA256))
	if err != nil {
		klog.Warningf("bts: trx %d tn %d: rx_step: %v", r.TRX.Index, burst.TN, err)
		return
	}
	if ind == nil {
		return
	}
	r.recordMeasurement(ts, ind)
	r.deliverUpward(r.upwardIndFor(ts, ind))
}

func (r *Reactor) upwardIndFor(ts *Timeslot, ind *sched.ULIndication) any {
	chanNr := chanNrFor(ts.CurrentPchan, ind.Chan, ind.Sub, ts.TN)
	switch ind.Chan {
	case l1const.ChanRACH, l1const.ChanPRACH, l1const.ChanPTCCH:
		ra := uint8(0)
		if len(ind.Payload) > 0 {
			ra = ind.Payload[0]
		}
		return l1sap.PHRACHInd{ChanNr: chanNr, RA: ra, FN: ind.FN, AccDelay: ind.ToA256 / 4}
	case l1const.ChanTCHF, l1const.ChanTCHH:
		return l1sap.TCHInd{ChanNr: chanNr, FN: ind.FN, Payload: ind.Payload}
	default:
		return l1sap.PHDataInd{ChanNr: chanNr, FN: ind.FN, RSSI: int8(ind.RSSI), Payload: ind.Payload}
	}
}

func (r *Reactor) recordMeasurement(ts *Timeslot, ind *sched.ULIndication) {
	loop, ok := ts.Power[sched.ChanSub{Chan: ind.Chan, Sub: ind.Sub}]
	if !ok {
		return
	}
	loop.AddBurst(ind.RSSI, ind.ToA256, !ind.BFI)
}

// handleTick runs once per timer firing. tick is false when a real clock
// datagram already advanced the frame clock during this period (via
// OnClockDatagram); in that case the periodic timer only drives provisioning,
// since stepping clock.FrameClock again here would double-dispatch the frame
// the datagram already accounted for. Every firing also steps the TRXC
// retransmit timer: a due request is resent, and a request past its retry
// ceiling takes the same hard-reset path as a lost clock.
func (r *Reactor) handleTick(ctx context.Context, tick bool) error {
	resend, linkDown := r.TRX.TRXC.Tick(time.Now())
	if linkDown != nil {
		klog.Warningf("bts: trx %d: %v", r.TRX.Index, linkDown)
		r.TRX.OnClockLost()
		r.deliverUpward(l1sap.MPHInfoInd{Subtype: l1sap.MPHInfoTime})
		return nil
	}
	if resend != nil {
		if _, err := r.trxc.Write([]byte(trxproto.FormatRequest(resend))); err != nil {
			klog.Warningf("bts: trx %d: trxc write: %v", r.TRX.Index, err)
		}
	}
	if tick {
		if r.TRX.Clock.Tick() {
			r.TRX.OnClockLost()
			r.deliverUpward(l1sap.MPHInfoInd{Subtype: l1sap.MPHInfoTime})
			return nil
		}
		for _, fn := range r.TRX.Clock.Due() {
			r.dispatchFN(fn)
		}
	}
	r.driveProvisioning(ctx)
	return nil
}

// OnClockDatagram feeds a received "IND CLOCK <fn>" line into the clock
// slave and dispatches any frame(s) it makes due. Only Run's own select loop
// calls this (via clockIn), preserving the one-goroutine-per-reactor
// ownership invariant.
func (r *Reactor) OnClockDatagram(fn uint32) {
	r.TRX.Clock.OnClockIndication(fn)
	for _, due := range r.TRX.Clock.Due() {
		r.dispatchFN(due)
	}
}

func (r *Reactor) dispatchFN(fn uint32) {
	for _, ts := range r.TRX.Slots {
		if ts.Sched == nil {
			continue
		}
		for _, rts := range ts.Sched.RTSStep(fn) {
			if rts.IsTCH {
				r.deliverUpward(l1sap.TCHRTSInd{ChanNr: chanNrFor(ts.CurrentPchan, rts.Chan, rts.Sub, ts.TN), FN: rts.FN})
			} else {
				r.deliverUpward(l1sap.PHRTSInd{ChanNr: chanNrFor(ts.CurrentPchan, rts.Chan, rts.Sub, ts.TN), FN: rts.FN})
			}
		}
		burst, err := ts.Sched.TXStep(fn)
		if err != nil {
			klog.Warningf("bts: trx %d tn %d: tx_step: %v", r.TRX.Index, ts.TN, err)
			continue
		}
		if burst == nil {
			continue
		}
		dl := trxproto.DLBurst{Version: r.PDUVersion, TN: uint8(ts.TN), FN: fn, Burst: burst}
		out, err := trxproto.EncodeDownlinkBatch([]trxproto.DLBurst{dl})
		if err != nil {
			klog.Warningf("bts: trx %d tn %d: encode_downlink: %v", r.TRX.Index, ts.TN, err)
			continue
		}
		if _, err := r.trxd.Write(out); err != nil {
			klog.Warningf("bts: trx %d tn %d: trxd write: %v", r.TRX.Index, ts.TN, err)
		}
	}
}

// driveProvisioning issues the next due TRXC command, if any, and is called
// once per tick -- cheap enough given the FSM only has a handful of steps
// to work through during bring-up. The span covers one FSM transition
// attempt.
func (r *Reactor) driveProvisioning(ctx context.Context) {
	_, span := otel.Tracer("bts").Start(ctx, "Reactor.driveProvisioning")
	defer span.End()

	trx := r.TRX
	if step := trx.FSM.NextPreconfStep(); step != nil {
		r.sendCommand(step.Cmd(), step.Params())
		step.MarkSent()
		return
	}
	// leadReady is always true here: a Reactor sees only its own TRX, so the
	// lead issues POWERON once its own preconfiguration is acked, without
	// waiting on the other TRX of the phy link.
	if cmd := trx.FSM.TryAdvanceToPoweron(true, time.Now()); cmd != "" {
		r.sendCommand(cmd, "")
		return
	}
	if cmd := trx.FSM.MaybeRetryPoweron(time.Now()); cmd != "" {
		r.sendCommand(cmd, "")
		return
	}
	if step := trx.FSM.NextPostPoweronStep(); step != nil {
		r.sendCommand(step.Cmd(), step.Params())
		step.MarkSent()
		return
	}
}

func (r *Reactor) sendCommand(cmd l1const.Command, params string) {
	req := r.TRX.TRXC.Enqueue(cmd, params)
	if req == nil {
		return
	}
	r.TRX.TRXC.MarkSent(time.Now())
	if _, err := r.trxc.Write([]byte(trxproto.FormatRequest(req))); err != nil {
		klog.Warningf("bts: trx %d: trxc write: %v", r.TRX.Index, err)
	}
}

// Run launches one Reactor per TRX plus the phy link's single shared
// clock-socket reader, and blocks until the first one returns an error or ctx
// is cancelled, per spec.md section 5's reactor-per-link model;
// golang.org/x/sync/errgroup propagates the first fatal error and cancels the
// rest.
func Run(ctx context.Context, clockConn *net.UDPConn, reactors []*Reactor) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runClockSocket(gctx, clockConn, reactors)
	})
	for _, r := range reactors {
		r := r
		g.Go(func() error {
			return r.Run(gctx)
		})
	}
	return g.Wait()
}

// runClockSocket reads the phy link's single shared clock socket and fans
// each datagram out to every TRX's reactor (spec.md section 4.5: "a shared
// clock socket per PHY link"). Each reactor parses and applies the datagram
// on its own goroutine via FeedClockLine, preserving per-reactor ownership.
func runClockSocket(ctx context.Context, conn *net.UDPConn, reactors []*Reactor) error {
	ch := make(chan []byte, 64)
	go readLoop(ctx, conn, ch)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case buf, ok := <-ch:
			if !ok {
				return fmt.Errorf("bts: clock socket closed")
			}
			for _, r := range reactors {
				r.FeedClockLine(buf)
			}
		}
	}
}
