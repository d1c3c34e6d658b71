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

package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[network]
bind_address = "0.0.0.0:34553"
known_addresses = ["127.0.0.1:34553"]
gossip_interval = 30

[network.estimator]
weight = 3

[storage]
path = "/var/lib/node"
max_size = 483183820800

[consensus]
enabled = true
`

func mustParse(t *testing.T, data string) Document {
	t.Helper()
	doc, err := Parse([]byte(data))
	require.NoError(t, err)
	return doc
}

func TestMergeEmptyOverrides(t *testing.T) {
	base := mustParse(t, sampleConfig)
	assert.Equal(t, base, Merge(base, Document{}))
	assert.Equal(t, base, Merge(base, nil))
}

func TestMergeIdempotent(t *testing.T) {
	base := mustParse(t, sampleConfig)
	overrides, err := FromPaths(map[string]interface{}{
		"network.bind_address":    "0.0.0.0:34000",
		"network.known_addresses": []interface{}{"127.0.0.1:34000", "127.0.0.1:34001"},
		"storage.path":            "./node-storage",
		"rpc_server.address":      "0.0.0.0:7777",
	})
	require.NoError(t, err)

	once := Merge(base, overrides)
	twice := Merge(once, overrides)
	assert.Equal(t, once, twice)

	v, ok := Get(once, "network", "bind_address")
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:34000", v)

	// keys only present in base survive
	v, ok = Get(once, "network", "gossip_interval")
	require.True(t, ok)
	assert.EqualValues(t, 30, v)
	v, ok = Get(once, "network", "estimator", "weight")
	require.True(t, ok)
	assert.EqualValues(t, 3, v)

	v, ok = Get(once, "rpc_server", "address")
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:7777", v)
}

func TestMergeDoesNotMutate(t *testing.T) {
	base := mustParse(t, sampleConfig)
	pristine := base.Clone()
	overrides := Document{"network": map[string]interface{}{"bind_address": "x"}}

	merged := Merge(base, overrides)
	require.NoError(t, Set(merged, "y", "storage", "path"))

	assert.Equal(t, pristine, base)
	assert.Equal(t, Document{"network": map[string]interface{}{"bind_address": "x"}}, overrides)
}

func TestMergeReplacesWholesale(t *testing.T) {
	tests := []struct {
		name      string
		base      Document
		overrides Document
		want      Document
	}{
		{
			name:      "table by scalar",
			base:      Document{"a": map[string]interface{}{"b": int64(1)}},
			overrides: Document{"a": "flat"},
			want:      Document{"a": "flat"},
		},
		{
			name:      "scalar by table",
			base:      Document{"a": "flat"},
			overrides: Document{"a": map[string]interface{}{"b": int64(1)}},
			want:      Document{"a": map[string]interface{}{"b": int64(1)}},
		},
		{
			name:      "array is a leaf",
			base:      Document{"a": []interface{}{int64(1), int64(2)}},
			overrides: Document{"a": []interface{}{int64(3)}},
			want:      Document{"a": []interface{}{int64(3)}},
		},
		{
			name:      "nested tables recurse",
			base:      Document{"a": map[string]interface{}{"b": int64(1), "c": int64(2)}},
			overrides: Document{"a": Document{"c": int64(3)}},
			want:      Document{"a": map[string]interface{}{"b": int64(1), "c": int64(3)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.base, tt.overrides))
		})
	}
}

func TestSet(t *testing.T) {
	doc := Document{"protocol": map[string]interface{}{"version": "0.9.0"}, "flat": int64(1)}

	require.NoError(t, Set(doc, "1.0.0", "protocol", "version"))
	require.NoError(t, Set(doc, int64(3), "core", "validator_slots"))

	v, ok := Get(doc, "core", "validator_slots")
	require.True(t, ok)
	assert.Equal(t, int64(3), v)
	v, _ = Get(doc, "protocol", "version")
	assert.Equal(t, "1.0.0", v)

	err := Set(doc, "x", "flat", "nested")
	assert.ErrorIs(t, err, ErrNotTable)
	assert.ErrorIs(t, Set(doc, "x"), ErrEmptyPath)
}

func TestFromPathsConflict(t *testing.T) {
	_, err := FromPaths(map[string]interface{}{
		"a":   int64(1),
		"a.b": int64(2),
	})
	assert.ErrorIs(t, err, ErrNotTable)
}

func TestWriteLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.toml")
	link := filepath.Join(dir, "link.toml")

	require.NoError(t, os.WriteFile(file, nil, 0644))
	require.NoError(t, os.Link(file, link))

	doc := Document{
		"accounts": []map[string]interface{}{
			{"public_key": "01ab", "balance": "1", "validator": map[string]interface{}{"bonded_amount": "2"}},
			{"public_key": "02cd", "balance": "1"},
		},
	}
	require.NoError(t, Write(file, doc))

	loaded, err := Load(link)
	require.NoError(t, err)
	accounts, ok := loaded["accounts"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, accounts, 2)
	assert.Equal(t, "01ab", accounts[0]["public_key"])
	assert.Equal(t, map[string]interface{}{"bonded_amount": "2"}, accounts[0]["validator"])
	assert.NotContains(t, accounts[1], "validator")
}

func TestLoadWrapsPath(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(file, []byte("[network\n"), 0644))
	_, err := Load(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), file)
}
