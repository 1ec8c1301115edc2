// Package monitor serves the HTTP debug surface of a running calculator:
// the current pattern, counters, a websocket stream of pattern changes and
// a chart of the tracked features.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/line-detector/internal/linepattern"
	"github.com/banshee-data/line-detector/internal/monitoring"
	"github.com/banshee-data/line-detector/internal/pipeline"
	"github.com/banshee-data/line-detector/internal/serialmux"
)

// StateSource provides the latest calculator state. *pipeline.Host
// implements it.
type StateSource interface {
	Snapshot() pipeline.Snapshot
}

// TransportSource reports serial link counters. The serialmux muxes
// implement it.
type TransportSource interface {
	Stats() serialmux.MuxStats
}

// WebServer is the monitor HTTP server.
type WebServer struct {
	address   string
	domain    linepattern.Domain
	source    StateSource
	transport TransportSource
	hub       *Hub
	mux       *http.ServeMux
	server    *http.Server
	started   time.Time
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address string
	Domain  linepattern.Domain
	Source  StateSource
	Hub     *Hub

	// Transport adds the serial counters to /api/stats when set.
	Transport TransportSource
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) *WebServer {
	hub := config.Hub
	if hub == nil {
		hub = NewHub()
	}
	ws := &WebServer{
		address:   config.Address,
		domain:    config.Domain,
		source:    config.Source,
		transport: config.Transport,
		hub:       hub,
		started:   time.Now(),
	}
	ws.mux = ws.setupRoutes()
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           ws.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

// Mux returns the server's route table so other packages can attach routes,
// such as the serial admin routes under /debug/.
func (ws *WebServer) Mux() *http.ServeMux { return ws.mux }

// Hub returns the change hub fed by the pattern consumer.
func (ws *WebServer) Hub() *Hub { return ws.hub }

// Start serves until the context is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("monitor server: %w", err)
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/pattern", ws.handlePattern)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/changes", ws.handleChanges)
	mux.HandleFunc("/api/stream", ws.handleStream)
	mux.HandleFunc("/debug/features", ws.handleFeatures)
	return mux
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("JSON encoding error: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	ws.writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"domain":  ws.domain.String(),
		"uptime":  time.Since(ws.started).Round(time.Second).String(),
		"clients": ws.hub.clientCount(),
	})
}

// patternResponse is the body of /api/pattern.
type patternResponse struct {
	Domain   string              `json:"domain"`
	Pattern  linepattern.Pattern `json:"pattern"`
	Label    string              `json:"label"`
	Distance float64             `json:"distance_mm"`
	Time     time.Time           `json:"time"`
}

func (ws *WebServer) handlePattern(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap := ws.source.Snapshot()
	ws.writeJSON(w, http.StatusOK, patternResponse{
		Domain:   ws.domain.String(),
		Pattern:  snap.Pattern,
		Label:    snap.Pattern.String(),
		Distance: snap.Distance,
		Time:     snap.Time,
	})
}

// statsResponse is the body of /api/stats.
type statsResponse struct {
	linepattern.Stats
	Features       int                 `json:"features"`
	StreamClients  int                 `json:"stream_clients"`
	StreamsDropped uint64              `json:"stream_dropped"`
	Serial         *serialmux.MuxStats `json:"serial,omitempty"`
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap := ws.source.Snapshot()
	resp := statsResponse{
		Stats:          snap.Stats,
		Features:       len(snap.Features),
		StreamClients:  ws.hub.clientCount(),
		StreamsDropped: ws.hub.Dropped(),
	}
	if ws.transport != nil {
		st := ws.transport.Stats()
		resp.Serial = &st
	}
	ws.writeJSON(w, http.StatusOK, resp)
}

func (ws *WebServer) handleChanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	changes := ws.hub.History()
	if changes == nil {
		changes = []pipeline.Change{}
	}
	ws.writeJSON(w, http.StatusOK, changes)
}
