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

// Package dashboard serves the operator web interface of a running network:
// a live status table, start/stop controls and read-only access to the
// generated files.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/netharness/netharness/log"
	"github.com/netharness/netharness/monitor"
	"github.com/netharness/netharness/network"
)

// Backend is the network controlled by the dashboard.
type Backend interface {
	Dir() string
	Instances() []*network.Instance
	Instance(name string) (*network.Instance, error)
	Shutdown()
}

// Config holds the settings of the dashboard server.
type Config struct {
	ListenAddr string
	Cors       []string
	Vhosts     []string

	Client *http.Client // used to poll node status, monitor.DefaultClient if nil
	Logger log.Logger
}

// DefaultConfig contains reasonable default settings.
var DefaultConfig = Config{
	ListenAddr: "127.0.0.1:6532",
	Vhosts:     []string{"localhost"},
}

// Server is the dashboard HTTP server.
type Server struct {
	config  Config
	backend Backend
	router  *httprouter.Router
	handler http.Handler
	log     log.Logger

	targets func() []monitor.Target

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewServer creates the dashboard of the given network.
func NewServer(backend Backend, config *Config) *Server {
	if config == nil {
		config = &DefaultConfig
	}
	s := &Server{
		config:  *config,
		backend: backend,
		router:  httprouter.New(),
		log:     config.Logger,
	}
	if s.log == nil {
		s.log = log.Root()
	}
	s.log = s.log.New("module", "dashboard")
	s.targets = func() []monitor.Target { return monitor.Targets(backend.Instances()) }

	s.GET("/", s.Index)
	s.GET("/index.css", s.CSS)
	s.GET("/node-status", s.NodeStatus)
	s.GET("/api/nodes", s.Nodes)
	s.POST("/shutdown", s.Shutdown)
	s.POST("/stop-start", s.StopStart)
	s.GET("/file/*path", s.File)

	s.handler = newHandlerStack(s.router, s.config.Cors, s.config.Vhosts)
	return s
}

// Start listens on the configured address and serves requests in the
// background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("dashboard already running on %s", s.listener.Addr())
	}
	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	go s.server.Serve(listener)

	s.log.Info("Dashboard started", "url", fmt.Sprintf("http://%v/", listener.Addr()))
	return nil
}

// Stop shuts the server down, waiting for pending requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	url := fmt.Sprintf("http://%v/", s.listener.Addr())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.server, s.listener = nil, nil
	s.log.Info("Dashboard closed", "url", url)
	return err
}

// Addr returns the listening address, or nil if the server is not running.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.handler.ServeHTTP(w, req)
}

func (s *Server) GET(path string, handle http.HandlerFunc) {
	s.router.GET(path, s.wrapHandler(handle))
}

func (s *Server) POST(path string, handle http.HandlerFunc) {
	s.router.POST(path, s.wrapHandler(handle))
}

func (s *Server) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) wrapHandler(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		s.log.Trace("Dashboard request", "method", req.Method, "path", req.URL.Path)
		ctx := context.WithValue(req.Context(), httprouter.ParamsKey, params)
		handler(w, req.WithContext(ctx))
	}
}
