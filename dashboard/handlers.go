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

package dashboard

import (
	_ "embed"
	"errors"
	"html"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/julienschmidt/httprouter"

	"github.com/netharness/netharness/monitor"
	"github.com/netharness/netharness/network"
)

var (
	//go:embed assets/index.html
	indexHTML []byte

	//go:embed assets/index.css
	indexCSS []byte
)

var statusTemplate = template.Must(template.New("node-status").Parse(`<table>
<tr><th>Name</th><th>Era ID</th><th>Height</th><th>Validator</th><th>Config File</th><th>Stop/Start</th></tr>
{{- range . }}
<tr>
<td>{{ .Name }}</td>
{{- if not .Running }}
<td colspan="2">Node not running</td>
{{- else if .Block }}
<td>{{ .Block.EraID }}</td><td>{{ .Block.Height }}</td>
{{- else }}
<td>--</td><td>--</td>
{{- end }}
<td>{{ if .Validator }}Yes{{ else }}No{{ end }}</td>
<td><a class="file" href="{{ .ConfigURL }}">config.toml</a></td>
<td>{{ if .Running }}<button class="red" hx-post="{{ .ToggleURL }}">Stop</button>{{ else }}<button class="green" hx-post="{{ .ToggleURL }}">Start</button>{{ end }}</td>
</tr>
{{- end }}
</table>
`))

var fileTemplate = template.Must(template.New("file").Parse(`<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Casper Utilities for Network Testing</title>
<style>
pre .strong {
    font-weight: bold;
    color: green;
}
</style>
</head>
<body>
<code><pre>{{ . }}</pre></code>
</body>
</html>
`))

// statusRow is a gathered node status along with its dashboard links.
type statusRow struct {
	monitor.NodeStatus
	ConfigURL string
	ToggleURL string
}

// nodeInfo is the JSON representation of a node served by /api/nodes.
type nodeInfo struct {
	monitor.NodeStatus
	State     string `json:"state"`
	Pid       int    `json:"pid,omitempty"`
	PublicKey string `json:"public_key"`
	Dir       string `json:"dir"`
}

func (s *Server) Index(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) CSS(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(indexCSS)
}

// NodeStatus renders the status table polled by the index page.
func (s *Server) NodeStatus(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	statuses, err := monitor.Gather(req.Context(), s.config.Client, s.targets())
	if err != nil {
		s.log.Debug("Could not gather node status", "err", err)
		w.Write([]byte("Error while reading the data"))
		return
	}
	rows := make([]statusRow, len(statuses))
	for i, status := range statuses {
		rows[i] = statusRow{
			NodeStatus: status,
			ConfigURL:  "/file/" + status.Name + "/config.toml",
			ToggleURL:  "/stop-start?name=" + url.QueryEscape(status.Name),
		}
	}
	if err := statusTemplate.Execute(w, rows); err != nil {
		s.log.Warn("Failed to render node status", "err", err)
	}
}

// Nodes serves the gathered status merged with the supervisor state as JSON.
func (s *Server) Nodes(w http.ResponseWriter, req *http.Request) {
	statuses, err := monitor.Gather(req.Context(), s.config.Client, s.targets())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	infos := make([]nodeInfo, 0, len(statuses))
	for _, status := range statuses {
		info := nodeInfo{NodeStatus: status}
		if inst, err := s.backend.Instance(status.Name); err == nil {
			info.State = inst.Status().State.String()
			info.Pid = inst.Pid()
			info.PublicKey = inst.PublicKey().Hex()
			info.Dir = inst.Dir()
		}
		infos = append(infos, info)
	}
	s.JSON(w, http.StatusOK, infos)
}

func (s *Server) Shutdown(w http.ResponseWriter, req *http.Request) {
	s.log.Debug("Network shutdown requested from dashboard")
	s.backend.Shutdown()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Network is shutting down"))
}

// StopStart stops the named node if it is running and starts it otherwise.
func (s *Server) StopStart(w http.ResponseWriter, req *http.Request) {
	name := req.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "Missing node name", http.StatusBadRequest)
		return
	}
	inst, err := s.backend.Instance(name)
	if errors.Is(err, network.ErrUnknownInstance) {
		s.log.Warn("Unknown node name", "name", name)
		http.Error(w, "Unknown node name", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if inst.Running() {
		s.log.Debug("Stopping node on request", "name", name)
		if err := inst.Stop(); err != nil {
			s.log.Warn("Cannot stop the node", "name", name, "err", err)
			http.Error(w, "Cannot stop the node", http.StatusInternalServerError)
			return
		}
	} else {
		s.log.Debug("Starting node on request", "name", name)
		if err := inst.Start(); err != nil {
			s.log.Warn("Cannot start the node", "name", name, "err", err)
			http.Error(w, "Cannot start the node", http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// File serves files below the network directory. TOML table headers are
// highlighted.
func (s *Server) File(w http.ResponseWriter, req *http.Request) {
	rel := httprouter.ParamsFromContext(req.Context()).ByName("path")
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			http.Error(w, "404: Not Found", http.StatusNotFound)
			return
		}
	}
	file := filepath.Join(s.backend.Dir(), filepath.FromSlash(path.Clean("/"+rel)))
	content, err := os.ReadFile(file)
	if err != nil {
		http.Error(w, "404: Not Found", http.StatusNotFound)
		return
	}
	body := html.EscapeString(string(content))
	if strings.EqualFold(filepath.Ext(file), ".toml") {
		body = highlightTOML(string(content))
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fileTemplate.Execute(w, template.HTML(body))
}

// highlightTOML escapes a TOML document for display and marks its table
// headers.
func highlightTOML(input string) string {
	var buf strings.Builder
	for _, line := range strings.Split(strings.TrimRight(input, "\n"), "\n") {
		if header := strings.TrimSpace(line); strings.HasPrefix(header, "[") && strings.HasSuffix(header, "]") {
			buf.WriteString(`<span class="strong">`)
			buf.WriteString(html.EscapeString(line))
			buf.WriteString("</span>")
		} else {
			buf.WriteString(html.EscapeString(line))
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}
