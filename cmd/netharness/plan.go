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
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/netharness/netharness/topology"
)

var planCommand = &cli.Command{
	Action:      migrateFlags(printPlan),
	Name:        "plan",
	Usage:       "Print the planned network without starting it",
	Flags:       networkFlags,
	Description: `The plan command resolves names, ports and templates of every node. Nothing is written to disk.`,
}

func printPlan(ctx *cli.Context) error {
	cfg, err := buildConfig(ctx)
	if err != nil {
		return err
	}
	plan, err := cfg.networkPlan()
	if err != nil {
		return err
	}
	chainspec, descriptors, err := topology.Plan(plan, cfg.Ports)
	if err != nil {
		return err
	}
	writePlan(ctx.App.Writer, chainspec, descriptors)
	return nil
}

func writePlan(w io.Writer, chainspec string, descriptors []topology.Descriptor) {
	fmt.Fprintf(w, "Chainspec: %s\n", chainspec)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Role", "Bind", "RPC", "REST", "Spec. exec", "Events", "Config"})
	for _, d := range descriptors {
		ports := d.Ports
		table.Append([]string{
			d.Name,
			d.Role.String(),
			strconv.Itoa(ports.Bind),
			strconv.Itoa(ports.RPC),
			strconv.Itoa(ports.REST),
			strconv.Itoa(ports.SpeculativeExec),
			strconv.Itoa(ports.EventStream),
			d.ConfigSource,
		})
	}
	table.Render()
}
