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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/imdario/mergo"
	"github.com/mitchellh/go-homedir"
	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/netharness/netharness/dashboard"
	"github.com/netharness/netharness/topology"
)

var dumpConfigCommand = &cli.Command{
	Action:      migrateFlags(dumpConfig),
	Name:        "dumpconfig",
	Usage:       "Show configuration values",
	ArgsUsage:   "",
	Flags:       networkFlags,
	Description: `The dumpconfig command shows configuration values.`,
}

const (
	stderrInherit = "inherit"
	stderrDiscard = "discard"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

type netharnessConfig struct {
	Network   networkConfig
	Ports     topology.PortBase
	Dashboard dashboardConfig
	Node      nodeConfig
}

type networkConfig struct {
	Chainspec string `toml:",omitempty"`
	Scratch   string `toml:",omitempty"`
	Groups    []groupConfig
}

type groupConfig struct {
	Name      string `toml:",omitempty"`
	Artifacts string
	Count     int
	Validator bool
	Config    string `toml:",omitempty"`
}

type dashboardConfig struct {
	Disabled   bool
	ListenAddr string
	Cors       []string `toml:",omitempty"`
	Vhosts     []string
}

type nodeConfig struct {
	Binary string
	Stderr string // "inherit" or "discard"
}

func defaultConfig() netharnessConfig {
	return netharnessConfig{
		Ports: topology.DefaultPortBase,
		Dashboard: dashboardConfig{
			ListenAddr: dashboard.DefaultConfig.ListenAddr,
			Vhosts:     append([]string(nil), dashboard.DefaultConfig.Vhosts...),
		},
		Node: nodeConfig{
			Binary: topology.DefaultBinary,
			Stderr: stderrInherit,
		},
	}
}

func loadConfig(file string, cfg *netharnessConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig layers the config file over the defaults and the command line
// over both.
func makeConfig(ctx *cli.Context) (netharnessConfig, error) {
	var cfg netharnessConfig
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := mergo.Merge(&cfg, defaultConfig()); err != nil {
		return cfg, err
	}
	if err := cmdLineOverride(&cfg, ctx); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildConfig assembles and validates the effective configuration.
func buildConfig(ctx *cli.Context) (netharnessConfig, error) {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return cfg, err
	}
	return cfg, validateConfig(&cfg)
}

func cmdLineOverride(cfg *netharnessConfig, ctx *cli.Context) error {
	if ctx.IsSet(artifactsFlag.Name) {
		dir := ctx.String(artifactsFlag.Name)
		cfg.Network.Groups = []groupConfig{{
			Artifacts: dir,
			Count:     ctx.Int(validatorsFlag.Name),
			Validator: true,
		}}
		if observers := ctx.Int(observersFlag.Name); observers > 0 {
			cfg.Network.Groups = append(cfg.Network.Groups, groupConfig{
				Artifacts: dir,
				Count:     observers,
			})
		}
	} else if ctx.IsSet(validatorsFlag.Name) || ctx.IsSet(observersFlag.Name) {
		return fmt.Errorf("--%s and --%s require --%s", validatorsFlag.Name, observersFlag.Name, artifactsFlag.Name)
	}
	if ctx.IsSet(chainspecFlag.Name) {
		cfg.Network.Chainspec = ctx.String(chainspecFlag.Name)
	}
	if ctx.IsSet(scratchFlag.Name) {
		cfg.Network.Scratch = ctx.String(scratchFlag.Name)
	}
	if ctx.IsSet(binaryFlag.Name) {
		cfg.Node.Binary = ctx.String(binaryFlag.Name)
	}
	if ctx.IsSet(dashboardAddrFlag.Name) {
		cfg.Dashboard.ListenAddr = ctx.String(dashboardAddrFlag.Name)
	}
	if ctx.IsSet(dashboardDisableFlag.Name) {
		cfg.Dashboard.Disabled = ctx.Bool(dashboardDisableFlag.Name)
	}
	if ctx.IsSet(dashboardCorsFlag.Name) {
		cfg.Dashboard.Cors = splitAndTrim(ctx.String(dashboardCorsFlag.Name))
	}
	return nil
}

func validateConfig(cfg *netharnessConfig) error {
	if len(cfg.Network.Groups) == 0 {
		return fmt.Errorf("no node groups configured, use --%s or --%s", artifactsFlag.Name, configFileFlag.Name)
	}
	for i, g := range cfg.Network.Groups {
		if g.Artifacts == "" {
			return fmt.Errorf("group %d: missing artifact directory", i)
		}
		if g.Count < 0 {
			return fmt.Errorf("group %d: %w: %d", i, topology.ErrInvalidCount, g.Count)
		}
	}
	if err := cfg.Ports.Validate(); err != nil {
		return err
	}
	switch cfg.Node.Stderr {
	case stderrInherit, stderrDiscard:
	default:
		return fmt.Errorf("invalid node stderr mode %q, want %q or %q", cfg.Node.Stderr, stderrInherit, stderrDiscard)
	}
	if !cfg.Dashboard.Disabled && cfg.Dashboard.ListenAddr == "" {
		return errors.New("dashboard enabled without a listen address")
	}
	return nil
}

// networkPlan converts the configured groups into a topology plan. All file
// locations are made absolute since node processes run inside their own
// directories.
func (cfg *netharnessConfig) networkPlan() (topology.NetworkPlan, error) {
	var plan topology.NetworkPlan
	if cfg.Network.Chainspec != "" {
		abs, err := resolvePath(cfg.Network.Chainspec)
		if err != nil {
			return plan, err
		}
		plan.Chainspec = abs
	}
	for _, g := range cfg.Network.Groups {
		dir, err := resolvePath(g.Artifacts)
		if err != nil {
			return plan, err
		}
		group := topology.NodeGroup{
			Artifacts: topology.Artifacts{Dir: dir, BinaryName: cfg.Node.Binary},
			Count:     g.Count,
			Validator: g.Validator,
			Name:      g.Name,
		}
		if g.Config != "" {
			if group.Config, err = resolvePath(g.Config); err != nil {
				return plan, err
			}
		}
		plan.Groups = append(plan.Groups, group)
	}
	return plan, nil
}

// resolvePath expands a leading ~ and makes p absolute.
func resolvePath(p string) (string, error) {
	p, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	return filepath.Abs(p)
}

// nodeStderr returns where node processes write their standard error.
func (cfg *netharnessConfig) nodeStderr() io.Writer {
	if cfg.Node.Stderr == stderrDiscard {
		return io.Discard
	}
	return os.Stderr
}

func dashboardSettings(cfg dashboardConfig) *dashboard.Config {
	return &dashboard.Config{
		ListenAddr: cfg.ListenAddr,
		Cors:       cfg.Cors,
		Vhosts:     cfg.Vhosts,
	}
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = ctx.App.Writer.Write(out)
	return err
}

func splitAndTrim(input string) []string {
	var ret []string
	for _, r := range strings.Split(input, ",") {
		if r = strings.TrimSpace(r); r != "" {
			ret = append(ret, r)
		}
	}
	return ret
}
