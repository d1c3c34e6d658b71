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

// Package topology turns a declarative description of node groups into the
// list of concrete instances that make up a test network.
package topology

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

var (
	ErrNoChainspec   = errors.New("no chainspec source: network has no groups and no override")
	ErrInvalidCount  = errors.New("invalid group instance count")
	ErrInvalidName   = errors.New("invalid instance name")
	ErrDuplicateName = errors.New("duplicate instance name")
	ErrPortOverflow  = errors.New("port out of range")
	ErrPortConflict  = errors.New("port assigned twice")
)

// Role is the part an instance plays in consensus.
type Role int

const (
	Observer Role = iota
	Validator
)

func (r Role) String() string {
	if r == Validator {
		return "validator"
	}
	return "observer"
}

// NodeGroup is a set of identical instances sharing one artifact bundle.
type NodeGroup struct {
	Artifacts Artifacts
	Count     int
	Validator bool

	// Name of the group. Unnamed groups are named from the letter sequence.
	Name string

	// Config replaces the bundle's config template for every instance of the
	// group.
	Config string
}

// Validators returns a group of n validator instances.
func Validators(a Artifacts, n int) NodeGroup {
	return NodeGroup{Artifacts: a, Count: n, Validator: true}
}

// Observers returns a group of n non-validating instances.
func Observers(a Artifacts, n int) NodeGroup {
	return NodeGroup{Artifacts: a, Count: n}
}

// Named returns a copy of g with the given group name.
func (g NodeGroup) Named(name string) NodeGroup {
	g.Name = name
	return g
}

// WithConfig returns a copy of g using the given config template.
func (g NodeGroup) WithConfig(file string) NodeGroup {
	g.Config = file
	return g
}

func (g NodeGroup) role() Role {
	if g.Validator {
		return Validator
	}
	return Observer
}

// NetworkPlan describes a whole network.
type NetworkPlan struct {
	Groups []NodeGroup

	// Chainspec overrides the chainspec template of the first group.
	Chainspec string
}

// Descriptor is a fully resolved instance, ready to be materialized.
type Descriptor struct {
	Index int    // global ordinal, also the port block index
	Name  string // "<group>" or "<group>/<i>"
	Dir   string // instance directory relative to the network root

	ArtifactDir  string
	Binary       string
	ConfigSource string

	Role  Role
	Ports Ports
}

// Plan resolves the chainspec source of the network and the descriptors of
// all its instances. Groups are walked in order and port blocks are handed
// out from a single counter, so no two instances share a port. Nothing is
// touched on disk.
func Plan(plan NetworkPlan, base PortBase) (string, []Descriptor, error) {
	chainspec := plan.Chainspec
	if chainspec == "" {
		if len(plan.Groups) == 0 {
			return "", nil, ErrNoChainspec
		}
		chainspec = plan.Groups[0].Artifacts.ChainspecPath()
	}
	if err := base.Validate(); err != nil {
		return "", nil, err
	}

	var (
		letters     Letters
		descriptors []Descriptor
		index       int
	)
	for gi, group := range plan.Groups {
		if group.Count < 0 {
			return "", nil, fmt.Errorf("%w: group %d has count %d", ErrInvalidCount, gi, group.Count)
		}
		name := group.Name
		if name == "" {
			name = letters.Next()
		} else if err := validateName(name); err != nil {
			return "", nil, err
		}
		config := group.Config
		if config == "" {
			config = group.Artifacts.ConfigPath()
		}
		for i := 0; i < group.Count; i++ {
			instance := name
			if group.Count > 1 {
				instance = name + "/" + strconv.Itoa(i)
			}
			descriptors = append(descriptors, Descriptor{
				Index:        index,
				Name:         instance,
				Dir:          filepath.FromSlash(instance),
				ArtifactDir:  group.Artifacts.Dir,
				Binary:       group.Artifacts.Binary(),
				ConfigSource: config,
				Role:         group.role(),
				Ports:        base.At(index),
			})
			index++
		}
	}
	if err := checkNames(descriptors); err != nil {
		return "", nil, err
	}
	if err := checkPorts(descriptors); err != nil {
		return "", nil, err
	}
	return chainspec, descriptors, nil
}

func validateName(name string) error {
	if strings.ContainsAny(name, "\\\x00") || path.IsAbs(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidName, name)
		}
	}
	return nil
}

// checkNames rejects equal names as well as names whose directory would be
// nested inside another instance's directory.
func checkNames(descriptors []Descriptor) error {
	seen := mapset.NewThreadUnsafeSet[string]()
	for _, d := range descriptors {
		if !seen.Add(d.Name) {
			return fmt.Errorf("%w: %s", ErrDuplicateName, d.Name)
		}
	}
	for _, d := range descriptors {
		for prefix := path.Dir(d.Name); prefix != "."; prefix = path.Dir(prefix) {
			if seen.Contains(prefix) {
				return fmt.Errorf("%w: %s is nested in instance %s", ErrDuplicateName, d.Name, prefix)
			}
		}
	}
	return nil
}

func checkPorts(descriptors []Descriptor) error {
	used := make(map[int]string)
	for _, d := range descriptors {
		for _, p := range d.Ports.All() {
			if p > maxPort {
				return fmt.Errorf("%w: %s would listen on %d", ErrPortOverflow, d.Name, p)
			}
			if other, ok := used[p]; ok {
				return fmt.Errorf("%w: %d used by %s and %s", ErrPortConflict, p, other, d.Name)
			}
			used[p] = d.Name
		}
	}
	return nil
}
