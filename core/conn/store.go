// Package conn owns every live database file handle in the process.
//
// The Store is the connection registry: it performs encryption detection and
// cipher negotiation on open, hands out opaque identifiers instead of raw
// handles, and releases handles on close. No other package opens database
// files. The Store is constructed by the composition root and passed to
// every operation that needs a connection; there is no package-level state.
package conn

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	cerrors "github.com/sqlitescope/sqlitescope/core/errors"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
	"github.com/sqlitescope/sqlitescope/internal/logging"
)

// Connection is the metadata returned to callers in place of a raw handle.
type Connection struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	IsEncrypted bool   `json:"isEncrypted"`
	IsReadOnly  bool   `json:"isReadOnly"`
}

// OpenRequest carries the parameters of an open operation.
type OpenRequest struct {
	Path     string
	Password string
	ReadOnly bool
}

type handle struct {
	meta Connection
	db   *sql.DB
}

// Store is the registry of live connections. Identifiers are UUIDs, issued
// once and never reused: closing an identifier invalidates it permanently.
type Store struct {
	mu    sync.RWMutex
	conns map[string]*handle
	probe []ProbeEntry
}

// NewStore creates an empty connection registry using the default probe table.
func NewStore() *Store {
	return &Store{
		conns: make(map[string]*handle),
		probe: ProbeTable(),
	}
}

// Open turns a file path (and optional password) into a registered
// connection. Four outcomes: plaintext files open directly; encrypted files
// without a password fail with the needs-password error before any cipher is
// attempted; encrypted files with a password are probed against the cipher
// table in fixed order, keeping the first configuration whose verification
// read succeeds; exhaustion of the table reports the families attempted.
//
// A failed open registers nothing.
func (s *Store) Open(ctx context.Context, req OpenRequest) (Connection, error) {
	header, err := readHeader(req.Path)
	if err != nil {
		return Connection{}, fmt.Errorf("open %s: %w", req.Path, err)
	}

	var db *sql.DB
	encrypted := false

	if sqlite.IsPlaintextHeader(header) {
		// Plaintext: never enter the probe loop, even if a password was
		// supplied.
		db, err = s.openVerified(ctx, req, nil)
		if err != nil {
			return Connection{}, cerrors.NewExecution(err)
		}
	} else if req.Password == "" {
		return Connection{}, &cerrors.NeedsPasswordError{Path: req.Path}
	} else {
		encrypted = true
		db, err = s.probeOpen(ctx, req)
		if err != nil {
			return Connection{}, err
		}
	}

	meta := Connection{
		ID:          uuid.New().String(),
		Path:        req.Path,
		Filename:    filepath.Base(req.Path),
		IsEncrypted: encrypted,
		IsReadOnly:  req.ReadOnly,
	}

	s.mu.Lock()
	s.conns[meta.ID] = &handle{meta: meta, db: db}
	s.mu.Unlock()

	logging.ConnectionEvent("connection_opened", meta.ID,
		"filename", meta.Filename,
		"encrypted", meta.IsEncrypted,
		"read_only", meta.IsReadOnly)
	return meta, nil
}

// probeOpen iterates the probe table. Each candidate gets a fresh handle;
// failures close it and move on. The loop stops at the first success.
func (s *Store) probeOpen(ctx context.Context, req OpenRequest) (*sql.DB, error) {
	for i, entry := range s.probe {
		db, err := s.openVerified(ctx, req, &entry)
		if err == nil {
			logging.ConnectionEvent("cipher_negotiated", "",
				"family", entry.Cipher.Family(),
				"key_encoding", entry.Key.String(),
				"candidate", i)
			return db, nil
		}
		logging.Debug("cipher probe candidate failed",
			"family", entry.Cipher.Family(),
			"key_encoding", entry.Key.String(),
			"candidate", i)
	}
	return nil, &cerrors.CipherProbeError{
		Path:     req.Path,
		Families: probeFamilies(s.probe),
		Attempts: len(s.probe),
	}
}

// openVerified opens a fresh single-connection handle, applies the
// candidate's cipher configuration and key if one is given, and performs a
// trivial read against the internal catalog. Any failure closes the handle.
func (s *Store) openVerified(ctx context.Context, req OpenRequest, entry *ProbeEntry) (*sql.DB, error) {
	db, err := sqlite.Open(sqlite.FileDSN(req.Path, req.ReadOnly))
	if err != nil {
		return nil, err
	}
	// Key and cipher pragmas are per-connection state; a pool of one keeps
	// every statement on the keyed connection.
	db.SetMaxOpenConns(1)

	if entry != nil {
		for _, pragma := range entry.Cipher.pragmas() {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, err
			}
		}
		if _, err := db.ExecContext(ctx, entry.keyPragma(req.Password)); err != nil {
			db.Close()
			return nil, err
		}
	}

	var n int64
	if err := db.QueryRowContext(ctx, "SELECT count(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Get returns the metadata for a live connection.
func (s *Store) Get(id string) (Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.conns[id]
	if !ok {
		return Connection{}, &cerrors.ConnectionNotFoundError{ID: id}
	}
	return h.meta, nil
}

// Handle returns the live database handle and metadata for a connection.
// The handle remains owned by the Store; callers borrow it for the duration
// of one operation and must not close it.
func (s *Store) Handle(id string) (*sql.DB, Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.conns[id]
	if !ok {
		return nil, Connection{}, &cerrors.ConnectionNotFoundError{ID: id}
	}
	return h.db, h.meta, nil
}

// List returns metadata for every live connection, in no particular order.
func (s *Store) List() []Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Connection, 0, len(s.conns))
	for _, h := range s.conns {
		out = append(out, h.meta)
	}
	return out
}

// Close invalidates an identifier and releases its handle. The identifier
// can never be reused; closing it twice reports connection-not-found.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	h, ok := s.conns[id]
	if ok {
		delete(s.conns, id)
	}
	s.mu.Unlock()

	if !ok {
		return &cerrors.ConnectionNotFoundError{ID: id}
	}
	err := h.db.Close()
	logging.ConnectionEvent("connection_closed", id, "filename", h.meta.Filename)
	return err
}

// CloseAll is the best-effort shutdown sweep: every handle is released and
// individual close errors are logged, not returned.
func (s *Store) CloseAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[string]*handle)
	s.mu.Unlock()

	for id, h := range conns {
		if err := h.db.Close(); err != nil {
			logging.Warn("close connection failed", "connection_id", id, "error", err)
		}
	}
}

// readHeader reads the file-format header. Short files (including empty
// ones, which SQLite treats as fresh databases) return what they have.
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, sqlite.HeaderSize)
	n, err := io.ReadFull(f, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return buf[:n], nil
	}
	if err != nil {
		return nil, err
	}
	return buf, nil
}
