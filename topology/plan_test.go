// Copyright 2024 The netharness Authors
// This file is part of the netharness library.
//
// The netharness library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The netharness library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the netharness library. If not, see <http://www.gnu.org/licenses/>.

package topology

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var bundle = Artifacts{Dir: "/opt/nodes/v1"}

func names(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.Name
	}
	return out
}

func TestPlanThreeValidators(t *testing.T) {
	chainspec, ds, err := Plan(NetworkPlan{Groups: []NodeGroup{Validators(bundle, 3)}}, DefaultPortBase)
	require.NoError(t, err)

	assert.Equal(t, "/opt/nodes/v1/chainspec.toml", chainspec)
	assert.Equal(t, []string{"A/0", "A/1", "A/2"}, names(ds))
	for i, d := range ds {
		assert.Equal(t, i, d.Index)
		assert.Equal(t, Validator, d.Role)
		assert.Equal(t, filepath.Join("A", d.Name[2:]), d.Dir)
		assert.Equal(t, "/opt/nodes/v1/config.toml", d.ConfigSource)
		assert.Equal(t, "casper-node", d.Binary)
		assert.Equal(t, Ports{Bind: 34000 + i, RPC: 7777 + i, REST: 8888 + i, SpeculativeExec: 6666 + i, EventStream: 9999 + i}, d.Ports)
	}
}

func TestPlanGroupSizes(t *testing.T) {
	_, ds, err := Plan(NetworkPlan{Groups: []NodeGroup{
		Validators(bundle, 0),
		Validators(bundle, 1),
		Observers(bundle, 2),
	}}, DefaultPortBase)
	require.NoError(t, err)

	// an empty group still consumes its letter
	assert.Equal(t, []string{"B", "C/0", "C/1"}, names(ds))
	assert.Equal(t, Validator, ds[0].Role)
	assert.Equal(t, Observer, ds[1].Role)
	assert.Equal(t, []int{0, 1, 2}, []int{ds[0].Index, ds[1].Index, ds[2].Index})
}

func TestPlanNamedGroupsSkipLetters(t *testing.T) {
	_, ds, err := Plan(NetworkPlan{Groups: []NodeGroup{
		Validators(bundle, 1).Named("genesis"),
		Validators(bundle, 1),
		Observers(bundle, 1).Named("late"),
		Observers(bundle, 1),
	}}, DefaultPortBase)
	require.NoError(t, err)
	assert.Equal(t, []string{"genesis", "A", "late", "B"}, names(ds))
}

func TestPlanChainspecOverride(t *testing.T) {
	chainspec, ds, err := Plan(NetworkPlan{Chainspec: "/tmp/custom.toml"}, DefaultPortBase)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.toml", chainspec)
	assert.Empty(t, ds)

	_, _, err = Plan(NetworkPlan{}, DefaultPortBase)
	assert.ErrorIs(t, err, ErrNoChainspec)
}

func TestPlanConfigOverrideWins(t *testing.T) {
	other := Artifacts{Dir: "/opt/nodes/v2", BinaryName: "node"}
	_, ds, err := Plan(NetworkPlan{Groups: []NodeGroup{
		Validators(bundle, 1).WithConfig("/etc/special.toml"),
		Observers(other, 1),
	}}, DefaultPortBase)
	require.NoError(t, err)
	assert.Equal(t, "/etc/special.toml", ds[0].ConfigSource)
	assert.Equal(t, "/opt/nodes/v2/config.toml", ds[1].ConfigSource)
	assert.Equal(t, "node", ds[1].Binary)
	assert.Equal(t, "/opt/nodes/v2", ds[1].ArtifactDir)
}

func TestPlanPortsDisjoint(t *testing.T) {
	groups := []NodeGroup{
		Validators(bundle, 5),
		Observers(bundle, 1),
		Validators(bundle, 7).Named("extra"),
		Observers(bundle, 0),
		Observers(bundle, 12),
	}
	_, ds, err := Plan(NetworkPlan{Groups: groups}, DefaultPortBase)
	require.NoError(t, err)
	require.Len(t, ds, 25)

	seen := make(map[int]bool)
	for _, d := range ds {
		for _, p := range d.Ports.All() {
			require.False(t, seen[p], "port %d assigned twice", p)
			seen[p] = true
		}
	}
}

func TestPlanErrors(t *testing.T) {
	tests := []struct {
		name string
		plan NetworkPlan
		base PortBase
		err  error
	}{
		{
			name: "negative count",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, -1)}},
			base: DefaultPortBase,
			err:  ErrInvalidCount,
		},
		{
			name: "duplicate explicit name",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, 1).Named("x"), Observers(bundle, 1).Named("x")}},
			base: DefaultPortBase,
			err:  ErrDuplicateName,
		},
		{
			name: "explicit name shadows letter",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, 1).Named("A"), Observers(bundle, 1)}},
			base: DefaultPortBase,
			err:  ErrDuplicateName,
		},
		{
			name: "nested instance directory",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, 1).Named("x"), Observers(bundle, 2).Named("x/sub")}},
			base: DefaultPortBase,
			err:  ErrDuplicateName,
		},
		{
			name: "path traversal",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, 1).Named("../escape")}},
			base: DefaultPortBase,
			err:  ErrInvalidName,
		},
		{
			name: "backslash",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, 1).Named(`a\b`)}},
			base: DefaultPortBase,
			err:  ErrInvalidName,
		},
		{
			name: "port overflow",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, 3)}},
			base: PortBase{Bind: 65534, RPC: 1000, REST: 2000, SpeculativeExec: 3000, EventStream: 4000},
			err:  ErrPortOverflow,
		},
		{
			name: "overlapping bases",
			plan: NetworkPlan{Groups: []NodeGroup{Validators(bundle, 3)}},
			base: PortBase{Bind: 1000, RPC: 1002, REST: 2000, SpeculativeExec: 3000, EventStream: 4000},
			err:  ErrPortConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Plan(tt.plan, tt.base)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPlanProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		groups := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) NodeGroup {
			g := NodeGroup{
				Artifacts: bundle,
				Count:     rapid.IntRange(0, 4).Draw(t, "count"),
				Validator: rapid.Bool().Draw(t, "validator"),
			}
			return g.Named(rapid.SampledFrom([]string{"", "", "genesis", "late"}).Draw(t, "name"))
		}), 0, 6).Draw(t, "groups")

		_, ds, err := Plan(NetworkPlan{Groups: groups, Chainspec: "/chainspec.toml"}, DefaultPortBase)
		if err != nil {
			if !errors.Is(err, ErrDuplicateName) {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}
		total := 0
		for _, g := range groups {
			total += g.Count
		}
		if len(ds) != total {
			t.Fatalf("got %d descriptors, want %d", len(ds), total)
		}
		seen := make(map[string]bool)
		ports := make(map[int]bool)
		for i, d := range ds {
			if d.Index != i {
				t.Fatalf("descriptor %d has index %d", i, d.Index)
			}
			if seen[d.Name] {
				t.Fatalf("name %s assigned twice", d.Name)
			}
			seen[d.Name] = true
			for _, p := range d.Ports.All() {
				if ports[p] {
					t.Fatalf("port %d assigned twice", p)
				}
				ports[p] = true
			}
		}
	})
}

func TestLetters(t *testing.T) {
	var l Letters
	var got []string
	for i := 0; i < 28; i++ {
		got = append(got, l.Next())
	}
	assert.Equal(t, "A", got[0])
	assert.Equal(t, "Z", got[25])
	assert.Equal(t, "AA", got[26])
	assert.Equal(t, "AB", got[27])

	assert.Equal(t, "ZZ", letterName(26+26*26-1))
	assert.Equal(t, "AAA", letterName(26+26*26))

	// bijection over a larger prefix
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		name := letterName(i)
		require.False(t, seen[name], name)
		seen[name] = true
	}
}

func TestArtifactsValidate(t *testing.T) {
	dir := t.TempDir()
	a := NewArtifacts(dir)
	assert.Error(t, a.Validate())

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultBinary), []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ChainspecFile), nil, 0644))
	assert.Error(t, a.Validate())

	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), nil, 0644))
	assert.NoError(t, a.Validate())

	require.NoError(t, os.Chmod(filepath.Join(dir, DefaultBinary), 0644))
	assert.Error(t, a.Validate())
}
