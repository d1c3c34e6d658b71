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

package network

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownInstance = errors.New("unknown instance")
	ErrIndexOutOfRange = errors.New("instance index out of range")
	ErrInstanceRunning = errors.New("instance already running")
	ErrNetworkClosed   = errors.New("network closed")
	ErrScratchLocked   = errors.New("scratch directory already in use")
)

// FileError is returned when materializing a network fails on disk.
type FileError struct {
	Op   string // human readable description of the operation
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

func fileError(op, path string, err error) error {
	return &FileError{Op: op, Path: path, Err: err}
}

// SpawnError is returned when a node process could not be started.
type SpawnError struct {
	Command string // the command line that was attempted
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
