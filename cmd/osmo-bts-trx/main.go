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

package main

import (
	"os"

	"k8s.io/klog/v2"
)

// version and commit are set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	defer klog.Flush()
	if err := NewCommand(version, commit).Execute(); err != nil {
		klog.Errorf("cmd: %v", err)
		os.Exit(1)
	}
}
