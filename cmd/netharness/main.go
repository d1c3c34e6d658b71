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

// netharness spins up throwaway local networks of node processes for testing.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	artifactsFlag = &cli.StringFlag{
		Name:    "artifacts",
		Usage:   "Artifact bundle directory (replaces the groups of the config file)",
		EnvVars: []string{"NETHARNESS_ARTIFACTS"},
	}
	validatorsFlag = &cli.IntFlag{
		Name:  "validators",
		Usage: "Number of validators spawned from --artifacts",
		Value: 3,
	}
	observersFlag = &cli.IntFlag{
		Name:  "observers",
		Usage: "Number of observers spawned from --artifacts",
	}
	chainspecFlag = &cli.StringFlag{
		Name:  "chainspec",
		Usage: "Chainspec template overriding the one of the first bundle",
	}
	scratchFlag = &cli.StringFlag{
		Name:    "scratch",
		Usage:   "Parent directory of the per-run scratch directory",
		EnvVars: []string{"NETHARNESS_SCRATCH"},
	}
	binaryFlag = &cli.StringFlag{
		Name:  "binary",
		Usage: "Node executable name inside the artifact bundles",
	}
	dashboardAddrFlag = &cli.StringFlag{
		Name:  "dashboard.addr",
		Usage: "Dashboard listening address",
	}
	dashboardDisableFlag = &cli.BoolFlag{
		Name:  "dashboard.disable",
		Usage: "Do not serve the dashboard",
	}
	dashboardCorsFlag = &cli.StringFlag{
		Name:  "dashboard.cors",
		Usage: "Comma separated list of domains from which to accept cross origin requests",
	}

	verbosityFlag = &cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log.file",
		Usage: "Write logs to a rotated file in addition to the console",
	}
	logMaxSizeFlag = &cli.IntFlag{
		Name:  "log.maxsize",
		Usage: "Maximum size in MB of the log file before it gets rotated",
		Value: 100,
	}
	logOriginsFlag = &cli.BoolFlag{
		Name:  "log.origins",
		Usage: "Print the call site of every log record",
	}
	noColorFlag = &cli.BoolFlag{
		Name:  "nocolor",
		Usage: "Disable terminal colors in console logs",
	}
)

var (
	networkFlags = []cli.Flag{
		configFileFlag,
		artifactsFlag,
		validatorsFlag,
		observersFlag,
		chainspecFlag,
		scratchFlag,
		binaryFlag,
		dashboardAddrFlag,
		dashboardDisableFlag,
		dashboardCorsFlag,
	}
	logFlags = []cli.Flag{
		verbosityFlag,
		logFileFlag,
		logMaxSizeFlag,
		logOriginsFlag,
		noColorFlag,
	}
)

func newApp() *cli.App {
	app := &cli.App{
		Name:  "netharness",
		Usage: "local network harness for node testing",
		Flags: append(append([]cli.Flag{}, logFlags...), networkFlags...),
		Commands: []*cli.Command{
			runCommand,
			planCommand,
			keygenCommand,
			dumpConfigCommand,
		},
		Action: runNetwork,
		Before: setupLogging,
		After:  closeLogging,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		Fatalf("%v", err)
	}
}

// migrateFlags makes flags given before the command name visible to the
// command when it declares the same flags.
func migrateFlags(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		for _, flag := range ctx.Command.Flags {
			name := flag.Names()[0]
			if ctx.IsSet(name) {
				continue
			}
			for _, parent := range ctx.Lineage()[1:] {
				if parent.IsSet(name) {
					if err := ctx.Set(name, fmt.Sprint(parent.Value(name))); err != nil {
						return err
					}
					break
				}
			}
		}
		return action(ctx)
	}
}

// Fatalf formats a message to standard error and exits the program.
// The message is also printed to standard output if standard error
// is redirected to a different file.
func Fatalf(format string, args ...interface{}) {
	w := io.MultiWriter(os.Stdout, os.Stderr)
	if runtime.GOOS == "windows" {
		// The SameFile check below doesn't work on Windows.
		w = os.Stdout
	} else {
		outf, _ := os.Stdout.Stat()
		errf, _ := os.Stderr.Stat()
		if outf != nil && errf != nil && os.SameFile(outf, errf) {
			w = os.Stderr
		}
	}
	fmt.Fprintf(w, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}
