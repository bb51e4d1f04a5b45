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

// Package config holds the process-wide configuration surface: TRX socket
// addressing, per-TRX power and control-loop parameters, and TRXD version
// negotiation. It only defines the struct and its defaults; loading a YAML
// document into it is the cmd package's job (spec.md section 6).
package config

import "fmt"

// Config is the top-level configuration for one BTS process, one or more
// TRXC/TRXD socket pairs.
type Config struct {
	LocalIP  string `yaml:"local-ip"`
	RemoteIP string `yaml:"remote-ip"`

	BasePortLocal  int `yaml:"base-port-local"`
	BasePortRemote int `yaml:"base-port-remote"`

	// FNAdvance is the clock-advance fed to the downlink TX function when
	// choosing which FN to render (spec.md section 4.2, default ~20).
	FNAdvance int `yaml:"fn-advance"`
	// RTSAdvance is how many frames ahead of the rendered FN a PH-RTS.ind
	// fires, so the upper layer's PH-DATA.req for that FN arrives in time.
	RTSAdvance int `yaml:"rts-advance"`

	TRXDPDUVersionMax int `yaml:"trxd-pdu-version-max"`

	// BSIC is shared by every TRX of this BTS (it identifies the site on
	// the SCH burst, not a single carrier).
	BSIC uint8 `yaml:"bsic"`

	TRXs []TRXConfig `yaml:"trxs"`
}

// TRXConfig is the per-TRX subset of configuration: power, band, and the
// MS-power/timing-advance control loops.
type TRXConfig struct {
	ARFCN int    `yaml:"arfcn"`
	Band  string `yaml:"band"`

	NominalTxPowerDBm int `yaml:"nominal-tx-power-dbm"`
	MaxPowerReduction int `yaml:"max-power-red"`

	MSPowerLoop       bool `yaml:"ms-power-loop"`
	MSPowerTargetRSSI int  `yaml:"ms-power-target-rssi"`
	TALoop            bool `yaml:"ta-loop"`

	AutoBand bool `yaml:"auto-band"`
}

// Default values applied by ApplyDefaults, spec.md section 6.
const (
	DefaultFNAdvance         = 20
	DefaultRTSAdvance        = 5
	DefaultTRXDPDUVersionMax = 2
	DefaultMSPowerTargetRSSI = -75
)

// ApplyDefaults fills zero-valued fields with their documented defaults.
// Mirrors the teacher's "if x == 0 { x = default }" idiom rather than
// struct tags, so an explicit zero in YAML cannot be distinguished from
// "unset". For trxd-pdu-version-max this means an explicit 0 is replaced by
// the default of 2: Validate accepts 0, but 0 cannot be configured as the
// maximum version.
func (c *Config) ApplyDefaults() {
	if c.FNAdvance == 0 {
		c.FNAdvance = DefaultFNAdvance
	}
	if c.RTSAdvance == 0 {
		c.RTSAdvance = DefaultRTSAdvance
	}
	if c.TRXDPDUVersionMax == 0 {
		c.TRXDPDUVersionMax = DefaultTRXDPDUVersionMax
	}
	for i := range c.TRXs {
		c.TRXs[i].applyDefaults()
	}
}

func (t *TRXConfig) applyDefaults() {
	if t.MSPowerTargetRSSI == 0 {
		t.MSPowerTargetRSSI = DefaultMSPowerTargetRSSI
	}
}

// Validate checks the fields this package can check without touching the
// network: required addressing, and a TRXD version within the supported
// range (spec.md section 4.5: "v0/v1/v2").
func (c *Config) Validate() error {
	if c.LocalIP == "" {
		return fmt.Errorf("config: local-ip is required")
	}
	if c.RemoteIP == "" {
		return fmt.Errorf("config: remote-ip is required")
	}
	if c.BasePortLocal == 0 || c.BasePortRemote == 0 {
		return fmt.Errorf("config: base-port-local and base-port-remote are required")
	}
	if c.TRXDPDUVersionMax < 0 || c.TRXDPDUVersionMax > 2 {
		return fmt.Errorf("config: trxd-pdu-version-max must be 0, 1 or 2, got %d", c.TRXDPDUVersionMax)
	}
	if len(c.TRXs) == 0 {
		return fmt.Errorf("config: at least one TRX is required")
	}
	return nil
}
