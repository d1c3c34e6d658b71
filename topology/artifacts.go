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
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultBinary is the node executable looked up in a bundle when no
	// other name is configured.
	DefaultBinary = "casper-node"

	ChainspecFile = "chainspec.toml"
	ConfigFile    = "config.toml"
)

// Artifacts is a directory holding a node binary together with the chainspec
// and config templates it was released with.
type Artifacts struct {
	Dir        string
	BinaryName string // empty means DefaultBinary
}

// NewArtifacts returns the bundle stored in dir.
func NewArtifacts(dir string) Artifacts {
	return Artifacts{Dir: dir}
}

// Binary returns the file name of the node executable.
func (a Artifacts) Binary() string {
	if a.BinaryName == "" {
		return DefaultBinary
	}
	return a.BinaryName
}

// BinaryPath returns the location of the node executable.
func (a Artifacts) BinaryPath() string {
	return filepath.Join(a.Dir, a.Binary())
}

// ChainspecPath returns the location of the bundled chainspec template.
func (a Artifacts) ChainspecPath() string {
	return filepath.Join(a.Dir, ChainspecFile)
}

// ConfigPath returns the location of the bundled node config template.
func (a Artifacts) ConfigPath() string {
	return filepath.Join(a.Dir, ConfigFile)
}

// Validate checks that the bundle contains an executable binary and both
// templates.
func (a Artifacts) Validate() error {
	info, err := os.Stat(a.BinaryPath())
	if err != nil {
		return fmt.Errorf("artifact bundle %s: %w", a.Dir, err)
	}
	if info.IsDir() || info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("artifact bundle %s: %s is not executable", a.Dir, a.Binary())
	}
	for _, file := range []string{a.ChainspecPath(), a.ConfigPath()} {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("artifact bundle %s: %w", a.Dir, err)
		}
	}
	return nil
}

func (a Artifacts) String() string {
	return a.BinaryPath()
}
