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

// Package document implements the TOML trees used for chainspecs, node
// configuration and genesis accounts, along with the recursive merge that
// derives per-instance documents from bundle templates.
package document

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Document is a decoded TOML table. Nested tables are map[string]interface{}
// values; arrays of tables are []map[string]interface{} or []interface{}.
type Document map[string]interface{}

var (
	ErrNotTable  = errors.New("path prefix is not a table")
	ErrEmptyPath = errors.New("empty document path")
)

// Merge returns a new document holding base updated with overrides. Where both
// sides hold a table under the same key the tables are merged recursively,
// otherwise the override value replaces the base value. Neither input is
// modified.
func Merge(base, overrides Document) Document {
	return Document(mergeTables(base, overrides))
}

func mergeTables(base, overrides map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		out[k] = clone(v)
	}
	for k, ov := range overrides {
		if bt, ok := asTable(out[k]); ok {
			if ot, ok := asTable(ov); ok {
				out[k] = mergeTables(bt, ot)
				continue
			}
		}
		out[k] = clone(ov)
	}
	return out
}

// Clone returns a deep copy of doc.
func (doc Document) Clone() Document {
	if doc == nil {
		return nil
	}
	return Document(clone(map[string]interface{}(doc)).(map[string]interface{}))
}

// Set stores value at path, creating intermediate tables as needed. It fails
// with ErrNotTable when a prefix of path already holds a non-table value.
func Set(doc Document, value interface{}, path ...string) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	table := map[string]interface{}(doc)
	for i, key := range path[:len(path)-1] {
		next, exists := table[key]
		if !exists {
			child := make(map[string]interface{})
			table[key] = child
			table = child
			continue
		}
		child, ok := asTable(next)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotTable, strings.Join(path[:i+1], "."))
		}
		table = child
	}
	table[path[len(path)-1]] = value
	return nil
}

// Get returns the value stored at path.
func Get(doc Document, path ...string) (interface{}, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(doc)
	for _, key := range path {
		table, ok := asTable(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = table[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// FromPaths builds a document from dotted keys such as
// "network.bind_address". Keys are applied in sorted order so conflicting
// entries fail deterministically.
func FromPaths(values map[string]interface{}) (Document, error) {
	keys := maps.Keys(values)
	slices.Sort(keys)

	doc := make(Document)
	for _, k := range keys {
		if err := Set(doc, values[k], strings.Split(k, ".")...); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func asTable(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Document:
		return t, true
	}
	return nil, false
}

func clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[k] = clone(v)
		}
		return out
	case Document:
		return clone(map[string]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = clone(v)
		}
		return out
	case []map[string]interface{}:
		out := make([]map[string]interface{}, len(t))
		for i, v := range t {
			out[i] = clone(v).(map[string]interface{})
		}
		return out
	default:
		return v
	}
}
