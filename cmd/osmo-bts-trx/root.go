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

// The osmo-bts-trx binary is the process launcher: it owns the config file
// flag, signal handling and component wiring, and hands an already-loaded
// *config.Config to the layer-1 core (spec.md section 1, "config file
// loading" is an explicitly out-of-scope external collaborator). This is the
// same split the teacher draws between its cobra command and the servers it
// constructs.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/osmocom/osmo-bts-trx/internal/config"
	"github.com/osmocom/osmo-bts-trx/internal/trx/bts"
)

// NewCommand returns the root cobra command for the osmo-bts-trx process.
func NewCommand(version, commit string) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "osmo-bts-trx",
		Version: fmt.Sprintf("%s-%s", version, commit),
		Annotations: map[string]string{
			"version": version,
			"commit":  commit,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRoot(cmd, configPath)
		},
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "/etc/osmocom/osmo-bts-trx.yaml", "Path to the TRX configuration file")
	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: open config: %w", err)
	}
	defer f.Close()

	var cfg config.Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("cmd: parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cmd: invalid config: %w", err)
	}
	return &cfg, nil
}

func runRoot(cmd *cobra.Command, configPath string) error {
	fmt.Printf("osmo-bts-trx %s (%s)\n", cmd.Annotations["version"], cmd.Annotations["commit"])

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	site, err := bts.New(cfg)
	if err != nil {
		return fmt.Errorf("cmd: build bts: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clockConn, err := bts.DialClock(bts.PhyLinkClockAddrs(cfg.LocalIP, cfg.RemoteIP, cfg.BasePortLocal, cfg.BasePortRemote))
	if err != nil {
		return fmt.Errorf("cmd: clock socket: %w", err)
	}
	defer clockConn.Close()

	reactors := make([]*bts.Reactor, 0, len(site.TRXs))
	for _, trx := range site.TRXs {
		addrs := bts.AddrsForTRX(cfg.LocalIP, cfg.RemoteIP, cfg.BasePortLocal, cfg.BasePortRemote, trx.Index)
		r, err := bts.NewReactor(trx, addrs, cfg.TRXDPDUVersionMax)
		if err != nil {
			return fmt.Errorf("cmd: trx %d: %w", trx.Index, err)
		}
		defer r.Close()
		reactors = append(reactors, r)
	}

	klog.Infof("cmd: osmo-bts-trx starting, %d trx", len(reactors))
	err = bts.Run(ctx, clockConn, reactors)
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("cmd: reactor supervision: %w", err)
	}
	klog.Info("cmd: osmo-bts-trx shutting down")
	return nil
}
