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

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/osmocom/osmo-bts-trx/internal/l1const"
)

// ParseClockIndication parses a clock-indication datagram, "IND CLOCK
// <fn>\0", returning the frame number normalised modulo the GSM hyperframe.
func ParseClockIndication(line string) (uint32, error) {
	line = strings.TrimRight(line, "\x00")
	const prefix = "IND CLOCK "
	if !strings.HasPrefix(line, prefix) {
		return 0, fmt.Errorf("trxproto: parse_clock: malformed line %q", line)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(line[len(prefix):]), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("trxproto: parse_clock: %w", err)
	}
	return uint32(n) % l1const.Hyperframe, nil
}

// FormatClockIndication renders a clock-indication datagram for the given
// (already normalised) frame number.
func FormatClockIndication(fn uint32) string {
	return fmt.Sprintf("IND CLOCK %d\x00", fn%l1const.Hyperframe)
}

// FormatRequest renders a TRXC request line, "CMD <name> [params]\0".
func FormatRequest(r *Request) string {
	return r.String() + "\x00"
}

// ParseResponse parses a TRXC response line, "RSP <name> <status> [params]\0".
func ParseResponse(line string) (cmd l1const.Command, status int, params string, err error) {
	line = strings.TrimRight(line, "\x00")
	fields := strings.SplitN(line, " ", 4)
	if len(fields) < 3 || fields[0] != "RSP" {
		return "", 0, "", fmt.Errorf("trxproto: parse_response: malformed line %q", line)
	}
	status, err = strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, "", fmt.Errorf("trxproto: parse_response: bad status: %w", err)
	}
	if len(fields) == 4 {
		params = fields[3]
	}
	return l1const.Command(fields[1]), status, params, nil
}
