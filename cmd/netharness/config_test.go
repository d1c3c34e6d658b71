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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/go-homedir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/netharness/netharness/topology"
)

const testConfig = `
[Network]
Chainspec = "/bundles/custom-chainspec.toml"

[[Network.Groups]]
Name = "genesis"
Artifacts = "/bundles/v1"
Count = 2
Validator = true

[[Network.Groups]]
Artifacts = "/bundles/v2"
Count = 1
Config = "/bundles/observer.toml"

[Ports]
Bind = 40000

[Node]
Stderr = "discard"
`

// configFrom runs the config builder against the given command line.
func configFrom(t *testing.T, args ...string) (netharnessConfig, error) {
	t.Helper()
	var (
		cfg netharnessConfig
		err error
	)
	app := &cli.App{
		Name:  "test",
		Flags: networkFlags,
		Action: func(ctx *cli.Context) error {
			cfg, err = makeConfig(ctx)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return cfg, err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "netharness.toml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := configFrom(t)
	require.NoError(t, err)

	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, topology.DefaultPortBase, cfg.Ports)
	assert.Equal(t, "127.0.0.1:6532", cfg.Dashboard.ListenAddr)
	assert.Equal(t, topology.DefaultBinary, cfg.Node.Binary)

	// nothing to run without groups
	assert.Error(t, validateConfig(&cfg))
}

func TestConfigFileMergesDefaults(t *testing.T) {
	cfg, err := configFrom(t, "--config", writeConfig(t, testConfig))
	require.NoError(t, err)
	require.NoError(t, validateConfig(&cfg))

	assert.Equal(t, "/bundles/custom-chainspec.toml", cfg.Network.Chainspec)
	assert.Equal(t, []groupConfig{
		{Name: "genesis", Artifacts: "/bundles/v1", Count: 2, Validator: true},
		{Artifacts: "/bundles/v2", Count: 1, Config: "/bundles/observer.toml"},
	}, cfg.Network.Groups)

	// unset port bases fall back to the defaults
	want := topology.DefaultPortBase
	want.Bind = 40000
	assert.Equal(t, want, cfg.Ports)

	assert.Equal(t, stderrDiscard, cfg.Node.Stderr)
	assert.Equal(t, topology.DefaultBinary, cfg.Node.Binary)
	assert.Equal(t, []string{"localhost"}, cfg.Dashboard.Vhosts)
}

func TestConfigFileErrors(t *testing.T) {
	_, err := configFrom(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := writeConfig(t, "[Network]\nUnknown = 1\n")
	_, err = configFrom(t, "--config", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), file)
	assert.Contains(t, err.Error(), "Unknown")
}

func TestConfigFlagsOverrideFile(t *testing.T) {
	cfg, err := configFrom(t,
		"--config", writeConfig(t, testConfig),
		"--artifacts", "/bundles/v3",
		"--validators", "4",
		"--observers", "2",
		"--binary", "node-bin",
		"--scratch", "/tmp/scratch",
		"--dashboard.addr", "127.0.0.1:0",
		"--dashboard.cors", "http://a.example, http://b.example,",
	)
	require.NoError(t, err)
	require.NoError(t, validateConfig(&cfg))

	assert.Equal(t, []groupConfig{
		{Artifacts: "/bundles/v3", Count: 4, Validator: true},
		{Artifacts: "/bundles/v3", Count: 2},
	}, cfg.Network.Groups)
	assert.Equal(t, "/bundles/custom-chainspec.toml", cfg.Network.Chainspec)
	assert.Equal(t, "node-bin", cfg.Node.Binary)
	assert.Equal(t, "/tmp/scratch", cfg.Network.Scratch)
	assert.Equal(t, "127.0.0.1:0", cfg.Dashboard.ListenAddr)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Dashboard.Cors)
}

func TestConfigDefaultValidators(t *testing.T) {
	cfg, err := configFrom(t, "--artifacts", "/bundles/v1")
	require.NoError(t, err)
	assert.Equal(t, []groupConfig{{Artifacts: "/bundles/v1", Count: 3, Validator: true}}, cfg.Network.Groups)
}

func TestConfigCountsNeedArtifacts(t *testing.T) {
	_, err := configFrom(t, "--validators", "5")
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	valid := func() netharnessConfig {
		cfg := defaultConfig()
		cfg.Network.Groups = []groupConfig{{Artifacts: "/bundles/v1", Count: 1, Validator: true}}
		return cfg
	}
	tests := []struct {
		name   string
		modify func(*netharnessConfig)
	}{
		{"no groups", func(c *netharnessConfig) { c.Network.Groups = nil }},
		{"no artifacts", func(c *netharnessConfig) { c.Network.Groups[0].Artifacts = "" }},
		{"negative count", func(c *netharnessConfig) { c.Network.Groups[0].Count = -1 }},
		{"port overflow", func(c *netharnessConfig) { c.Ports.RPC = 70000 }},
		{"stderr mode", func(c *netharnessConfig) { c.Node.Stderr = "file" }},
		{"dashboard address", func(c *netharnessConfig) { c.Dashboard.ListenAddr = "" }},
	}
	cfg := valid()
	require.NoError(t, validateConfig(&cfg))
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid()
			test.modify(&cfg)
			assert.Error(t, validateConfig(&cfg))
		})
	}

	cfg = valid()
	cfg.Dashboard.ListenAddr = ""
	cfg.Dashboard.Disabled = true
	assert.NoError(t, validateConfig(&cfg))
}

func TestNetworkPlan(t *testing.T) {
	cfg := defaultConfig()
	cfg.Node.Binary = "node-bin"
	cfg.Network.Groups = []groupConfig{
		{Artifacts: "bundles/v1", Count: 2, Validator: true},
		{Name: "late", Artifacts: "/bundles/v2", Count: 1, Config: "late.toml"},
	}
	plan, err := cfg.networkPlan()
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.Len(t, plan.Groups, 2)
	assert.Empty(t, plan.Chainspec)
	assert.Equal(t, topology.NodeGroup{
		Artifacts: topology.Artifacts{Dir: filepath.Join(wd, "bundles/v1"), BinaryName: "node-bin"},
		Count:     2,
		Validator: true,
	}, plan.Groups[0])
	assert.Equal(t, topology.NodeGroup{
		Artifacts: topology.Artifacts{Dir: "/bundles/v2", BinaryName: "node-bin"},
		Count:     1,
		Name:      "late",
		Config:    filepath.Join(wd, "late.toml"),
	}, plan.Groups[1])

	_, ds, err := topology.Plan(plan, cfg.Ports)
	require.NoError(t, err)
	require.Len(t, ds, 3)
	assert.Equal(t, "node-bin", ds[0].Binary)
	assert.Equal(t, "late", ds[2].Name)
}

func TestNetworkPlanExpandsHome(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	cfg := defaultConfig()
	cfg.Network.Chainspec = "~/chainspec.toml"
	cfg.Network.Groups = []groupConfig{{Artifacts: "~/bundles/v1", Count: 1, Validator: true}}
	plan, err := cfg.networkPlan()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "chainspec.toml"), plan.Chainspec)
	assert.Equal(t, filepath.Join(home, "bundles/v1"), plan.Groups[0].Artifacts.Dir)
}

func TestDumpConfigRoundTrip(t *testing.T) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	require.NoError(t, app.Run([]string{"netharness", "dumpconfig", "--config", writeConfig(t, testConfig), "--binary", "node-bin"}))

	want, err := configFrom(t, "--config", writeConfig(t, testConfig), "--binary", "node-bin")
	require.NoError(t, err)

	var got netharnessConfig
	require.NoError(t, loadConfig(writeConfig(t, out.String()), &got))
	assert.Equal(t, want, got)
}
