// Copyright 2024 The netharness Authors
// This file is part of netharness.
//
// netharness is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// netharness is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with netharness. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/netharness/netharness/dashboard"
	"github.com/netharness/netharness/log"
	"github.com/netharness/netharness/network"
	"github.com/netharness/netharness/topology"
)

var runCommand = &cli.Command{
	Action: migrateFlags(runNetwork),
	Name:   "run",
	Usage:  "Materialize a network and run it until interrupted",
	Flags:  networkFlags,
	Description: `
The run command plans the configured network, writes every node directory into
a fresh scratch directory and starts all nodes. It returns after an interrupt,
a shutdown request from the dashboard or once no node is left running. The
scratch directory is removed on exit.`,
}

// runNetwork is the main entry point of the harness.
func runNetwork(ctx *cli.Context) error {
	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}
	plan, err := cfg.networkPlan()
	if err != nil {
		return err
	}
	for _, g := range plan.Groups {
		if err := g.Artifacts.Validate(); err != nil {
			return err
		}
	}
	chainspec, descriptors, err := topology.Plan(plan, cfg.Ports)
	if err != nil {
		return err
	}

	sigctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	parent := cfg.Network.Scratch
	if parent != "" {
		if parent, err = resolvePath(parent); err != nil {
			return err
		}
	}
	id := uuid.NewString()
	scratch, err := os.MkdirTemp(parent, "netharness-"+id[:8]+"-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	log.Info("Materializing network", "id", id, "dir", scratch, "nodes", len(descriptors))

	nw, err := network.Materialize(sigctx, chainspec, descriptors, scratch, &network.Options{
		ID:     id,
		Stderr: cfg.nodeStderr(),
	})
	if err != nil {
		os.RemoveAll(scratch)
		return err
	}
	defer func() {
		if err := nw.Close(); err != nil {
			log.Error("Failed to tear down network", "err", err)
		}
	}()
	printNetwork(ctx.App.Writer, nw)

	if err := nw.StartAll(); err != nil {
		log.Error("Not all nodes could be started", "err", err)
	}
	if !cfg.Dashboard.Disabled {
		srv := dashboard.NewServer(nw, dashboardSettings(cfg.Dashboard))
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Stop()
	}

	err = nw.Wait(sigctx)
	if errors.Is(err, network.ErrNetworkClosed) {
		return nil
	}
	return err
}

// printNetwork writes a summary of the materialized instances.
func printNetwork(w io.Writer, nw *network.Network) {
	fmt.Fprintf(w, "Network %s in %s\n", nw.ID(), nw.Dir())

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Role", "Public key", "Bind", "RPC", "REST"})
	for _, inst := range nw.Instances() {
		desc := inst.Descriptor()
		table.Append([]string{
			inst.Name(),
			desc.Role.String(),
			inst.PublicKey().Hex(),
			fmt.Sprint(desc.Ports.Bind),
			fmt.Sprint(desc.Ports.RPC),
			fmt.Sprint(desc.Ports.REST),
		})
	}
	table.Render()
}
