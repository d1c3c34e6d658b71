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
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/netharness/netharness/crypto"
	"github.com/netharness/netharness/document"
	"github.com/netharness/netharness/log"
	"github.com/netharness/netharness/topology"
)

const (
	// ProtocolVersion is pinned in every generated chainspec.
	ProtocolVersion = "1.0.0"

	// activationDelay gives operators a moment between startup and the
	// activation of consensus.
	activationDelay = time.Second

	storagePath = "./node-storage"

	accountsFile  = "accounts.toml"
	secretKeyFile = "secret_key.pem"
	publicKeyFile = "public_key.pem"
	lockFile      = ".lock"
)

// Genesis amounts in motes.
var (
	accountBalance = uint256.MustFromDecimal("1000000000000000000000000000")
	bondedAmount   = uint256.MustFromDecimal("500000000000000")
)

// Options tweak how a network is materialized. The zero value is usable.
type Options struct {
	ID     string     // network identifier, random if empty
	Logger log.Logger // defaults to the root logger
	Stderr io.Writer  // receives node stderr, defaults to os.Stderr
	Rand   io.Reader  // entropy for node identities, defaults to crypto/rand
	Now    func() time.Time
}

func (o *Options) withDefaults() Options {
	var opts Options
	if o != nil {
		opts = *o
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = log.Root()
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts
}

// Materialize writes the chainspec, node configs, identities and genesis
// accounts of a network into scratch and returns the network ready to be
// started. It stops at the first error; the caller is expected to discard
// scratch in that case.
func Materialize(ctx context.Context, chainspec string, descriptors []topology.Descriptor, scratch string, opts *Options) (*Network, error) {
	o := opts.withDefaults()

	dir, err := filepath.Abs(scratch)
	if err != nil {
		return nil, fileError("resolve scratch directory", scratch, err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fileError("create scratch directory", dir, err)
	}
	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fileError("lock scratch directory", dir, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrScratchLocked, dir)
	}

	shutdown, cancel := context.WithCancel(context.Background())
	n := &Network{
		id:          o.ID,
		dir:         dir,
		chainspec:   filepath.Join(dir, topology.ChainspecFile),
		log:         o.Logger.New("network", o.ID),
		stderr:      o.Stderr,
		flock:       lock,
		byName:      make(map[string]*Instance, len(descriptors)),
		tracker:     newTracker(),
		ctx:         shutdown,
		cancel:      cancel,
		shutdownReq: make(chan struct{}),
	}
	if err := n.materialize(ctx, chainspec, descriptors, o); err != nil {
		cancel()
		lock.Unlock()
		return nil, err
	}
	return n, nil
}

func (n *Network) materialize(ctx context.Context, chainspec string, descriptors []topology.Descriptor, o Options) error {
	if err := n.writeChainspec(chainspec, len(descriptors), o.Now()); err != nil {
		return err
	}
	accounts := filepath.Join(n.dir, accountsFile)
	if err := os.WriteFile(accounts, nil, 0644); err != nil {
		return fileError("create accounts placeholder", accounts, err)
	}

	known := make([]interface{}, len(descriptors))
	for i, d := range descriptors {
		known[i] = fmt.Sprintf("127.0.0.1:%d", d.Ports.Bind)
	}
	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return err
		}
		inst, err := n.materializeInstance(d, known, o.Rand)
		if err != nil {
			return err
		}
		n.instances = append(n.instances, inst)
		n.byName[inst.Name()] = inst
	}
	return n.writeAccounts(accounts)
}

func (n *Network) writeChainspec(source string, instances int, now time.Time) error {
	base, err := document.Load(source)
	if err != nil {
		return fileError("read chainspec template", source, err)
	}
	activation := now.Add(activationDelay).UTC().Format("2006-01-02T15:04:05.000Z")
	overrides, err := document.FromPaths(map[string]interface{}{
		"core.validator_slots":      int64(instances),
		"protocol.activation_point": activation,
		"protocol.version":          ProtocolVersion,
	})
	if err != nil {
		return err
	}
	data := document.MustEncode(document.Merge(base, overrides))
	if err := os.WriteFile(n.chainspec, data, 0644); err != nil {
		return fileError("write chainspec", n.chainspec, err)
	}
	n.log.Debug("Wrote chainspec", "source", source, "activation", activation)
	return nil
}

func (n *Network) materializeInstance(d topology.Descriptor, known []interface{}, rand io.Reader) (*Instance, error) {
	pubkey, seckey, err := crypto.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity of %s: %w", d.Name, err)
	}
	inst := newInstance(n, d, pubkey)
	if err := os.MkdirAll(inst.Dir(), 0755); err != nil {
		return nil, fileError("create instance directory", inst.Dir(), err)
	}

	base, err := document.Load(d.ConfigSource)
	if err != nil {
		return nil, fileError("read config template", d.ConfigSource, err)
	}
	overrides, err := document.FromPaths(map[string]interface{}{
		"network.bind_address":            fmt.Sprintf("0.0.0.0:%d", d.Ports.Bind),
		"network.known_addresses":         known,
		"rpc_server.address":              fmt.Sprintf("0.0.0.0:%d", d.Ports.RPC),
		"rest_server.address":             fmt.Sprintf("0.0.0.0:%d", d.Ports.REST),
		"speculative_exec_server.address": fmt.Sprintf("0.0.0.0:%d", d.Ports.SpeculativeExec),
		"event_stream_server.address":     fmt.Sprintf("0.0.0.0:%d", d.Ports.EventStream),
		"storage.path":                    storagePath,
	})
	if err != nil {
		return nil, err
	}
	config := inst.ConfigPath()
	if err := os.WriteFile(config, document.MustEncode(document.Merge(base, overrides)), 0644); err != nil {
		return nil, fileError("write config", config, err)
	}

	secret := filepath.Join(inst.Dir(), secretKeyFile)
	if err := crypto.SaveSecretKey(secret, seckey); err != nil {
		return nil, fileError("write secret key", secret, err)
	}
	public := filepath.Join(inst.Dir(), publicKeyFile)
	if err := crypto.SavePublicKey(public, pubkey); err != nil {
		return nil, fileError("write public key", public, err)
	}

	for _, file := range []string{topology.ChainspecFile, accountsFile} {
		src, dst := filepath.Join(n.dir, file), filepath.Join(inst.Dir(), file)
		if err := os.Link(src, dst); err != nil {
			return nil, fileError("link "+file+" into", inst.Dir(), err)
		}
	}
	n.log.Debug("Materialized instance", "instance", d.Name, "role", d.Role, "key", pubkey, "bind", d.Ports.Bind)
	return inst, nil
}

// writeAccounts renders the genesis accounts once every identity is known.
// The file is truncated in place so the per-instance hard links see it.
func (n *Network) writeAccounts(file string) error {
	accounts := make([]map[string]interface{}, 0, len(n.instances))
	for _, inst := range n.instances {
		account := map[string]interface{}{
			"public_key": inst.PublicKey().Hex(),
			"balance":    accountBalance.Dec(),
		}
		if inst.Validator() {
			account["validator"] = map[string]interface{}{"bonded_amount": bondedAmount.Dec()}
		}
		accounts = append(accounts, account)
	}
	data := document.MustEncode(document.Document{"accounts": accounts})
	if err := os.WriteFile(file, data, 0644); err != nil {
		return fileError("write accounts", file, err)
	}
	n.log.Debug("Wrote genesis accounts", "count", len(accounts))
	return nil
}
