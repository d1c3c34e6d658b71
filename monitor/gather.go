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

// Package monitor polls the REST status endpoints of the nodes of a network.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netharness/netharness/network"
)

// DefaultClient is used by Gather when no client is given.
var DefaultClient = &http.Client{Timeout: 5 * time.Second}

// maxStatusSize caps the status payload read from a node.
const maxStatusSize = 1 << 20

// Target is a node to poll.
type Target struct {
	Name      string
	Validator bool
	URL       string // full URL of the status endpoint
}

// BlockInfo describes the last block a node added to its chain.
type BlockInfo struct {
	EraID  uint64 `json:"era_id"`
	Height uint64 `json:"height"`
}

// NodeStatus is the outcome of polling a single node.
type NodeStatus struct {
	Name      string     `json:"name"`
	Validator bool       `json:"validator"`
	Running   bool       `json:"running"`
	Block     *BlockInfo `json:"block,omitempty"`
}

// statusResponse is the subset of the node status payload we care about.
type statusResponse struct {
	LastAddedBlockInfo *BlockInfo `json:"last_added_block_info"`
}

// StatusURL returns the status endpoint of a node serving REST on port.
func StatusURL(port int) string {
	return fmt.Sprintf("http://127.0.0.1:%d/status", port)
}

// Targets returns the poll targets of the given instances.
func Targets(instances []*network.Instance) []Target {
	targets := make([]Target, len(instances))
	for i, inst := range instances {
		targets[i] = Target{
			Name:      inst.Name(),
			Validator: inst.Validator(),
			URL:       StatusURL(inst.Ports().REST),
		}
	}
	return targets
}

// Gather polls all targets concurrently and returns their statuses sorted by
// name. A node which can not be reached is reported as not running. A node
// answering with a payload that does not decode fails the whole call.
func Gather(ctx context.Context, client *http.Client, targets []Target) ([]NodeStatus, error) {
	if client == nil {
		client = DefaultClient
	}
	var (
		results  = make([]NodeStatus, len(targets))
		eg, ectx = errgroup.WithContext(ctx)
	)
	for i, target := range targets {
		i, target := i, target
		eg.Go(func() error {
			status, err := fetch(ectx, client, target)
			if err != nil {
				return err
			}
			results[i] = status
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func fetch(ctx context.Context, client *http.Client, target Target) (NodeStatus, error) {
	status := NodeStatus{Name: target.Name, Validator: target.Validator}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return status, fmt.Errorf("invalid status url of %s: %w", target.Name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return status, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusSize))
	if err != nil {
		return status, nil
	}
	var payload statusResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return status, fmt.Errorf("malformed status from %s: %w", target.Name, err)
	}
	status.Running = true
	status.Block = payload.LastAddedBlockInfo
	return status, nil
}
