// Package api provides the REST and WebSocket boundary over the database
// engine: connection lifecycle, schema introspection, table reads, query
// execution, change validation and apply, and schema comparison.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sqlitescope/sqlitescope/core/conn"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
	"github.com/sqlitescope/sqlitescope/internal/logging"
	"github.com/sqlitescope/sqlitescope/internal/server"
)

// Version is reported by the health endpoint and the CLI.
const Version = "0.1.0"

// Server owns the connection registry and the WebSocket hub, and exposes
// the HTTP API over them.
type Server struct {
	cfg     Config
	store   *conn.Store
	hub     *Hub
	started time.Time
}

// NewServer creates a server with an empty connection registry. The hub
// loop is started by Start; tests drive handlers without it.
func NewServer(cfg Config) *Server {
	return &Server{
		cfg:     cfg,
		store:   conn.NewStore(),
		hub:     NewHub(),
		started: time.Now(),
	}
}

// Routes configures all HTTP routes.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	mux.HandleFunc("POST /connections", s.handleOpenConnection)
	mux.HandleFunc("GET /connections", s.handleListConnections)
	mux.HandleFunc("DELETE /connections/{id}", s.handleCloseConnection)
	mux.HandleFunc("GET /connections/{id}/schema", s.handleGetSchema)
	mux.HandleFunc("POST /connections/{id}/table-data", s.handleTableData)
	mux.HandleFunc("POST /connections/{id}/query", s.handleQuery)
	mux.HandleFunc("POST /connections/{id}/changes/validate", s.handleValidateChanges)
	mux.HandleFunc("POST /connections/{id}/changes/apply", s.handleApplyChanges)

	mux.HandleFunc("POST /compare", s.handleCompare)
	mux.HandleFunc("POST /snapshots/encode", s.handleSnapshotEncode)
	mux.HandleFunc("POST /snapshots/decode", s.handleSnapshotDecode)

	return mux
}

// Handler wraps the routes in the middleware chain: security headers
// innermost, then CORS, then request logging outermost.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = server.SecurityHeadersMiddleware(s.Routes())
	handler = server.CORSMiddleware(server.CORSConfig{AllowedOrigins: s.cfg.AllowedOrigins}, handler)
	handler = server.TimingMiddleware(handler)
	return logging.CombinedMiddleware(handler)
}

// Start runs the API server until the listener fails. Connections left
// open when the listener dies are closed on the way out.
func Start(cfg Config) error {
	s := NewServer(cfg)
	go s.hub.Run()

	logging.ServerStartup("rest_api", "http", cfg.Port,
		"driver", sqlite.DriverName(),
		"websocket_protocol", "ws")
	if len(cfg.AllowedOrigins) == 0 {
		logging.Warn("CORS allows all origins, consider restricting for production")
	}

	defer s.store.CloseAll()
	return http.ListenAndServe(fmt.Sprintf(":%d", cfg.Port), s.Handler())
}
