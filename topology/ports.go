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

import "fmt"

const maxPort = 65535

// Ports holds the listening ports assigned to a single instance.
type Ports struct {
	Bind            int
	RPC             int
	REST            int
	SpeculativeExec int
	EventStream     int
}

// All returns every port of the block.
func (p Ports) All() []int {
	return []int{p.Bind, p.RPC, p.REST, p.SpeculativeExec, p.EventStream}
}

// PortBase holds the first port of every purpose. Instance i receives base+i
// for each of them.
type PortBase struct {
	Bind            int
	RPC             int
	REST            int
	SpeculativeExec int
	EventStream     int
}

// DefaultPortBase is the port layout used unless configured otherwise.
var DefaultPortBase = PortBase{
	Bind:            34000,
	RPC:             7777,
	REST:            8888,
	SpeculativeExec: 6666,
	EventStream:     9999,
}

// At returns the port block of the instance with global index i.
func (b PortBase) At(i int) Ports {
	return Ports{
		Bind:            b.Bind + i,
		RPC:             b.RPC + i,
		REST:            b.REST + i,
		SpeculativeExec: b.SpeculativeExec + i,
		EventStream:     b.EventStream + i,
	}
}

// Validate reports bases outside of the usable port range.
func (b PortBase) Validate() error {
	for _, p := range (Ports)(b).All() {
		if p <= 0 || p > maxPort {
			return fmt.Errorf("%w: base port %d", ErrPortOverflow, p)
		}
	}
	return nil
}
