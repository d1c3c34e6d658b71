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

// Package network materializes planned test networks on disk and supervises
// the node processes running them.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/process"

	"github.com/netharness/netharness/log"
)

// closeTimeout bounds how long Close waits for supervisors after the
// processes were killed.
const closeTimeout = 10 * time.Second

// Network owns a scratch directory and the instances materialized into it.
// A Network must be released with Close, which kills leftover processes and
// removes the directory.
type Network struct {
	id        string
	dir       string
	chainspec string
	log       log.Logger
	stderr    io.Writer
	flock     *flock.Flock

	instances []*Instance
	byName    map[string]*Instance

	tracker *tracker
	ctx     context.Context // cancelled on Close, observed by every supervisor
	cancel  context.CancelFunc

	shutdownOnce sync.Once
	shutdownReq  chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// ID returns the network identifier.
func (n *Network) ID() string { return n.id }

// Dir returns the scratch directory of the network.
func (n *Network) Dir() string { return n.dir }

// ChainspecPath returns the generated network-wide chainspec.
func (n *Network) ChainspecPath() string { return n.chainspec }

// Instances returns all instances in planning order.
func (n *Network) Instances() []*Instance {
	return append([]*Instance(nil), n.instances...)
}

// Len returns the number of instances.
func (n *Network) Len() int { return len(n.instances) }

// Instance returns the instance with the given name.
func (n *Network) Instance(name string) (*Instance, error) {
	inst, ok := n.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstance, name)
	}
	return inst, nil
}

// InstanceAt returns the instance with the given planning index.
func (n *Network) InstanceAt(index int) (*Instance, error) {
	if index < 0 || index >= len(n.instances) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(n.instances))
	}
	return n.instances[index], nil
}

// Start starts the named instance.
func (n *Network) Start(name string) error {
	inst, err := n.Instance(name)
	if err != nil {
		return err
	}
	return inst.Start()
}

// Stop stops the named instance.
func (n *Network) Stop(name string) error {
	inst, err := n.Instance(name)
	if err != nil {
		return err
	}
	return inst.Stop()
}

// Toggle starts the named instance if it is not running and stops it
// otherwise.
func (n *Network) Toggle(name string) error {
	inst, err := n.Instance(name)
	if err != nil {
		return err
	}
	return inst.Toggle()
}

// StartAll starts every instance in order. A failing instance does not keep
// the remaining ones from being started; the first error is returned.
func (n *Network) StartAll() error {
	var first error
	for _, inst := range n.instances {
		if err := inst.Start(); err != nil {
			n.log.Error("Failed to start node", "instance", inst.Name(), "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// StopAll stops every instance in order, returning the first error.
func (n *Network) StopAll() error {
	var first error
	for _, inst := range n.instances {
		if err := inst.Stop(); err != nil {
			n.log.Error("Failed to stop node", "instance", inst.Name(), "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Shutdown asks a pending Wait to return. It may be called any number of
// times.
func (n *Network) Shutdown() {
	n.shutdownOnce.Do(func() {
		n.log.Info("Network shutdown requested")
		close(n.shutdownReq)
	})
}

// Wait blocks until ctx is done, Shutdown is called or no node process is
// left running, then stops all instances.
func (n *Network) Wait(ctx context.Context) error {
	if n.ctx.Err() != nil {
		return ErrNetworkClosed
	}
	select {
	case <-ctx.Done():
		n.log.Info("Received interrupt, shutting down")
	case <-n.shutdownReq:
	case <-n.tracker.Idle():
		n.log.Info("All nodes exited")
	case <-n.ctx.Done():
		return ErrNetworkClosed
	}
	return n.StopAll()
}

// Close tears the network down. Every supervisor is cancelled, processes
// which are still recorded are killed, and the scratch directory is unlocked
// and removed. Close is idempotent.
func (n *Network) Close() error {
	n.closeOnce.Do(func() {
		n.cancel()
		n.killOrphans()

		select {
		case <-n.tracker.Idle():
		case <-time.After(closeTimeout):
			n.log.Warn("Node supervisors did not terminate", "count", n.tracker.Len())
		}
		var errs []error
		if err := n.flock.Unlock(); err != nil {
			errs = append(errs, err)
		}
		if err := os.RemoveAll(n.dir); err != nil {
			errs = append(errs, fileError("remove network directory", n.dir, err))
		}
		n.closeErr = errors.Join(errs...)
		n.log.Debug("Removed network directory", "dir", n.dir)
	})
	return n.closeErr
}

// killOrphans force-terminates every instance that still has a process id
// recorded.
func (n *Network) killOrphans() {
	for _, inst := range n.instances {
		pid := inst.Pid()
		if pid == 0 {
			continue
		}
		proc, err := process.NewProcess(int32(pid))
		if err != nil {
			continue
		}
		if err := proc.Kill(); err != nil {
			n.log.Warn("Failed to kill node process", "instance", inst.Name(), "pid", pid, "err", err)
			continue
		}
		n.log.Debug("Killed node process", "instance", inst.Name(), "pid", pid)
	}
}
