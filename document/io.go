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
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Parse decodes a TOML document.
func Parse(data []byte) (Document, error) {
	doc := make(Document)
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Load reads and decodes the TOML document stored in file.
func Load(file string) (Document, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return doc, nil
}

// Encode serializes doc as TOML.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(map[string]interface{}(doc)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustEncode is like Encode but panics if doc can not be serialized. It is
// meant for documents assembled in memory, where a failure is a bug.
func MustEncode(doc Document) []byte {
	data, err := Encode(doc)
	if err != nil {
		panic(fmt.Sprintf("document: encoding failed: %v", err))
	}
	return data
}

// Write serializes doc into file, truncating any existing content in place so
// that hard links to file observe the new content.
func Write(file string, doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(file, data, 0644)
}
