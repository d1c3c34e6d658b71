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
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/netharness/netharness/crypto"
	"github.com/netharness/netharness/log"
	"github.com/netharness/netharness/topology"
)

// State is the lifecycle state of a node process.
type State int

const (
	Stopped State = iota // never started, or stopped on request
	Starting
	Running
	Crashed // exited without being asked to
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Crashed:
		return "crashed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a snapshot of an instance's process state.
type Status struct {
	State State

	// Exit is the outcome of the last process, nil while it runs or if the
	// instance was never started.
	Exit *os.ProcessState
}

func (s Status) String() string {
	if s.Exit == nil {
		return s.State.String()
	}
	return fmt.Sprintf("%s (%s)", s.State, s.Exit)
}

// Instance is a single node of a network along with its process supervisor.
//
// Start must not be called concurrently on the same instance. All other
// methods are safe for concurrent use.
type Instance struct {
	desc   topology.Descriptor
	dir    string
	pubkey crypto.PublicKey

	log      log.Logger
	stderr   io.Writer
	tracker  *tracker
	shutdown context.Context

	pid atomic.Int64

	lock     sync.Mutex
	status   Status
	proc     *os.Process
	stopping bool
	stop     chan struct{}
	done     chan struct{}
}

func newInstance(n *Network, desc topology.Descriptor, pubkey crypto.PublicKey) *Instance {
	return &Instance{
		desc:     desc,
		dir:      filepath.Join(n.dir, desc.Dir),
		pubkey:   pubkey,
		log:      n.log.New("instance", desc.Name),
		stderr:   n.stderr,
		tracker:  n.tracker,
		shutdown: n.ctx,
	}
}

// Name returns the unique name of the instance within its network.
func (i *Instance) Name() string { return i.desc.Name }

// Dir returns the directory holding the instance's files.
func (i *Instance) Dir() string { return i.dir }

// Descriptor returns the planned layout of the instance.
func (i *Instance) Descriptor() topology.Descriptor { return i.desc }

// Validator reports whether the instance is bonded in genesis.
func (i *Instance) Validator() bool { return i.desc.Role == topology.Validator }

// Ports returns the listening ports assigned to the instance.
func (i *Instance) Ports() topology.Ports { return i.desc.Ports }

// PublicKey returns the identity of the instance.
func (i *Instance) PublicKey() crypto.PublicKey { return i.pubkey }

// ConfigPath returns the location of the generated node configuration.
func (i *Instance) ConfigPath() string { return filepath.Join(i.dir, topology.ConfigFile) }

// Pid returns the OS process id of the running node, or zero.
func (i *Instance) Pid() int { return int(i.pid.Load()) }

// Status returns the current process state.
func (i *Instance) Status() Status {
	i.lock.Lock()
	defer i.lock.Unlock()
	return i.status
}

// Running reports whether the node process is alive.
func (i *Instance) Running() bool {
	return i.Status().State == Running
}

func (i *Instance) command() *exec.Cmd {
	cmd := exec.Command(filepath.Join(i.desc.ArtifactDir, i.desc.Binary), "validator", i.ConfigPath())
	cmd.Dir = i.dir
	cmd.Stderr = i.stderr
	return cmd
}

// Start launches the node process and a goroutine supervising it.
func (i *Instance) Start() error {
	if i.shutdown.Err() != nil {
		return ErrNetworkClosed
	}
	i.lock.Lock()
	defer i.lock.Unlock()

	if i.status.State == Running || i.status.State == Starting {
		return fmt.Errorf("%w: %s", ErrInstanceRunning, i.desc.Name)
	}
	i.status = Status{State: Starting}

	cmd := i.command()
	if err := cmd.Start(); err != nil {
		i.status = Status{State: Stopped}
		return &SpawnError{Command: cmd.String(), Err: err}
	}
	i.pid.Store(int64(cmd.Process.Pid))
	i.proc = cmd.Process
	i.stopping = false
	i.stop = make(chan struct{})
	i.done = make(chan struct{})
	i.status = Status{State: Running}

	stop, done := i.stop, i.done
	i.tracker.Go(func() { i.supervise(cmd, stop, done) })

	i.log.Info("Started node", "pid", cmd.Process.Pid)
	return nil
}

// supervise waits until the process exits on its own or a stop is requested,
// and records the outcome. It is the only writer of the final status.
func (i *Instance) supervise(cmd *exec.Cmd, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	exited := make(chan struct{})
	go func() {
		cmd.Wait()
		close(exited)
	}()

	state := Crashed
	select {
	case <-exited:
	case <-stop:
		state = Stopped
	case <-i.shutdown.Done():
		state = Stopped
	}
	if state == Stopped {
		cmd.Process.Kill()
		<-exited
	}

	i.lock.Lock()
	// Stop kills the process before signalling, so the exit may win the race
	// even though it was requested.
	if state == Crashed && (i.stopping || i.shutdown.Err() != nil) {
		state = Stopped
	}
	i.status = Status{State: state, Exit: cmd.ProcessState}
	i.proc = nil
	i.pid.Store(0)
	i.lock.Unlock()

	if state == Crashed {
		i.log.Warn("Node exited unexpectedly", "status", cmd.ProcessState)
	} else {
		i.log.Info("Stopped node", "status", cmd.ProcessState)
	}
}

// Stop kills the node process and waits until its supervisor finished.
// Stopping an instance which is not running is not an error.
func (i *Instance) Stop() error {
	i.lock.Lock()
	if i.status.State != Running {
		state := i.status.State
		i.lock.Unlock()
		i.log.Warn("Node not running, nothing to stop", "state", state)
		return nil
	}
	done := i.done
	if !i.stopping {
		i.stopping = true
		if i.proc != nil {
			i.proc.Kill()
		}
		close(i.stop)
	}
	i.lock.Unlock()

	<-done
	return nil
}

// Toggle stops a running instance and starts any other.
func (i *Instance) Toggle() error {
	if i.Running() {
		return i.Stop()
	}
	return i.Start()
}
