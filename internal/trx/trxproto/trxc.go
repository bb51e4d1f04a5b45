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

// Package trxproto implements the TRX wire protocol: the TRXC
// command/response queue with retransmission (spec.md section 4.5), the
// TRXD burst datagram codec for PDU versions 0-2, and clock-indication
// parsing. The queue is driven by the caller's reactor loop (Tick) rather
// than its own timer goroutine, per the single-threaded cooperative
// scheduling model (spec.md section 5).
package trxproto

import (
	"fmt"
	"time"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

// RetryInterval is the bounded retransmit timer for the head TRXC request.
const RetryInterval = 2 * time.Second

// MaxRetries bounds the number of retransmissions before the queue reports
// the link dead, rather than retrying forever (original_source/trx_if.c;
// spec.md's own 2s timer alone has no ceiling).
const MaxRetries = 5

// Request is one outstanding TRXC command.
type Request struct {
	Cmd    l1const.Command
	Params string

	sentAt  time.Time
	retries int
}

// String renders the request the way it goes on the wire: "CMD <name> [params]".
func (r *Request) String() string {
	if r.Params == "" {
		return fmt.Sprintf("CMD %s", r.Cmd)
	}
	return fmt.Sprintf("CMD %s %s", r.Cmd, r.Params)
}

func key(cmd l1const.Command, params string) string { return string(cmd) + "\x00" + params }

// Queue is the per-TRXC-link outstanding-request queue: one in-flight head
// request at a time, retransmitted on Tick until acked or the retry ceiling
// is hit.
type Queue struct {
	pending    []*Request
	lastAcked  string
	hasLastAck bool
}

// NewQueue returns an empty TRXC queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue appends a command to the queue. If the queue was empty, the
// returned request must be sent immediately and its clock started; the
// caller does this by calling MarkSent. A duplicate of the current head
// request (same command and params) is suppressed and Enqueue returns nil,
// per spec.md's "duplicate head requests are suppressed".
func (q *Queue) Enqueue(cmd l1const.Command, params string) *Request {
	if len(q.pending) > 0 && key(q.pending[0].Cmd, q.pending[0].Params) == key(cmd, params) {
		return nil
	}
	req := &Request{Cmd: cmd, Params: params}
	q.pending = append(q.pending, req)
	if len(q.pending) == 1 {
		return req
	}
	return nil
}

// MarkSent records that the head request has just gone out, (re)starting
// its retransmit clock.
func (q *Queue) MarkSent(now time.Time) {
	if len(q.pending) == 0 {
		return
	}
	q.pending[0].sentAt = now
}

// Tick advances the retransmit timer. If the head request's timer has
// expired, it returns the request to resend (with its retry count
// incremented); if the retry ceiling has been exceeded, linkDown is set
// instead and the head request is dropped, since no amount of further
// retrying will recover it (original_source/trx_if.c).
func (q *Queue) Tick(now time.Time) (resend *Request, linkDown error) {
	if len(q.pending) == 0 {
		return nil, nil
	}
	head := q.pending[0]
	if now.Sub(head.sentAt) < RetryInterval {
		return nil, nil
	}
	if head.retries >= MaxRetries {
		q.pending = q.pending[1:]
		return nil, fmt.Errorf("trxproto: %s: no response after %d retries, link down", head.Cmd, MaxRetries)
	}
	head.retries++
	head.sentAt = now
	return head, nil
}

// HandleResponse processes an "RSP <name> <status> [params]" line. ok is
// false and critical reports whether a non-zero status should abort the
// process (spec.md's critical-vs-non-critical command table) rather than
// just being logged. respParams echoes the response's own params back to the
// caller (e.g. SETFORMAT's negotiated version), since the modem's reply does
// not always match what was requested. A late duplicate of the last-acked
// response (the head has already moved on) is silently discarded, per
// spec.md.
func (q *Queue) HandleResponse(cmd l1const.Command, status int, params string) (ok bool, critical bool, respParams string) {
	k := key(cmd, params)
	if len(q.pending) == 0 {
		return q.hasLastAck && q.lastAcked == k, false, params
	}
	head := q.pending[0]
	if head.Cmd != cmd {
		// Not the head's command: either a late duplicate of the last ack,
		// or a response to a request we never sent; either way it is not
		// actionable here.
		return q.hasLastAck && q.lastAcked == k, false, params
	}
	q.pending = q.pending[1:]
	q.lastAcked = k
	q.hasLastAck = true
	if status != 0 {
		return false, head.Cmd.Critical(), params
	}
	return true, false, params
}

// Len reports the number of outstanding requests, including the in-flight head.
func (q *Queue) Len() int { return len(q.pending) }
