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

package monitor

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusServer(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/status"
}

// closedURL returns a status url nothing listens on.
func closedURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return StatusURL(port)
}

func TestGatherOneNotStarted(t *testing.T) {
	targets := []Target{
		{Name: "C", URL: statusServer(t, `{"last_added_block_info":{"era_id":2,"height":17,"hash":"ab"},"api_version":"1.0.0"}`)},
		{Name: "A/1", Validator: true, URL: closedURL(t)},
		{Name: "A/0", Validator: true, URL: statusServer(t, `{"last_added_block_info":null}`)},
	}
	statuses, err := Gather(context.Background(), nil, targets)
	require.NoError(t, err)
	require.Len(t, statuses, 3)

	assert.Equal(t, []NodeStatus{
		{Name: "A/0", Validator: true, Running: true},
		{Name: "A/1", Validator: true, Running: false},
		{Name: "C", Running: true, Block: &BlockInfo{EraID: 2, Height: 17}},
	}, statuses)
}

func TestGatherMalformedPayload(t *testing.T) {
	targets := []Target{
		{Name: "A", URL: statusServer(t, `{}`)},
		{Name: "B", URL: statusServer(t, `<html>not json</html>`)},
	}
	_, err := Gather(context.Background(), nil, targets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "B")
}

func TestGatherWrongShape(t *testing.T) {
	targets := []Target{{Name: "A", URL: statusServer(t, `{"last_added_block_info":{"era_id":"three"}}`)}}
	_, err := Gather(context.Background(), nil, targets)
	assert.Error(t, err)
}

func TestGatherTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	client := &http.Client{Timeout: 100 * time.Millisecond}
	statuses, err := Gather(context.Background(), client, []Target{{Name: "slow", URL: srv.URL + "/status"}})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Running)
}

func TestGatherEmpty(t *testing.T) {
	statuses, err := Gather(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, statuses)
}
