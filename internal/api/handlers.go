package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sqlitescope/sqlitescope/core/conn"
	"github.com/sqlitescope/sqlitescope/core/diff"
	cerrors "github.com/sqlitescope/sqlitescope/core/errors"
	"github.com/sqlitescope/sqlitescope/core/query"
	"github.com/sqlitescope/sqlitescope/core/schema"
	"github.com/sqlitescope/sqlitescope/core/snapshot"
	"github.com/sqlitescope/sqlitescope/core/sqlite"
	"github.com/sqlitescope/sqlitescope/core/staging"
	"github.com/sqlitescope/sqlitescope/internal/logging"
	"github.com/sqlitescope/sqlitescope/internal/validation"
)

// APIResponse is the standard API response wrapper.
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *APIMeta  `json:"meta,omitempty"`
}

// APIError represents an API error. NeedsPassword marks the one failure
// a client can repair by re-submitting with credentials.
type APIError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	NeedsPassword bool   `json:"needsPassword,omitempty"`
}

// APIMeta contains response metadata. DurationMs carries fractional
// milliseconds so sub-millisecond statements still report a nonzero time.
type APIMeta struct {
	Timestamp  string  `json:"timestamp"`
	DurationMs float64 `json:"durationMs,omitempty"`
}

func durationMillis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func respond(w http.ResponseWriter, status int, data any) {
	writeResponse(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta:    &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)},
	})
}

// respondTimed is respond with the execution duration in the meta block,
// for operations whose timing is part of the contract.
func respondTimed(w http.ResponseWriter, status int, data any, duration time.Duration) {
	writeResponse(w, status, APIResponse{
		Success: true,
		Data:    data,
		Meta: &APIMeta{
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			DurationMs: durationMillis(duration),
		},
	})
}

func respondError(w http.ResponseWriter, status int, apiErr APIError) {
	respondErrorMeta(w, status, apiErr, 0)
}

func respondErrorMeta(w http.ResponseWriter, status int, apiErr APIError, duration time.Duration) {
	meta := &APIMeta{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if duration > 0 {
		meta.DurationMs = durationMillis(duration)
	}
	writeResponse(w, status, APIResponse{Success: false, Error: &apiErr, Meta: meta})
}

func writeResponse(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// mapError translates engine errors to HTTP status and error code.
func mapError(err error) (int, APIError) {
	switch {
	case errors.Is(err, cerrors.ErrConnectionNotFound):
		return http.StatusNotFound, APIError{Code: "CONNECTION_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, cerrors.ErrNeedsPassword):
		return http.StatusUnauthorized, APIError{Code: "NEEDS_PASSWORD", Message: err.Error(), NeedsPassword: true}
	case errors.Is(err, cerrors.ErrUnsupportedCipher):
		return http.StatusUnauthorized, APIError{Code: "INVALID_PASSWORD_OR_CIPHER", Message: err.Error()}
	case errors.Is(err, cerrors.ErrReadOnly):
		return http.StatusForbidden, APIError{Code: "READ_ONLY", Message: err.Error()}
	case errors.Is(err, cerrors.ErrExecution):
		return http.StatusBadRequest, APIError{Code: "EXECUTION_ERROR", Message: err.Error()}
	case errors.Is(err, cerrors.ErrApply):
		return http.StatusConflict, APIError{Code: "APPLY_FAILED", Message: err.Error()}
	default:
		return http.StatusInternalServerError, APIError{Code: "INTERNAL", Message: err.Error()}
	}
}

func respondMapped(w http.ResponseWriter, err error) {
	status, apiErr := mapError(err)
	respondError(w, status, apiErr)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, APIError{Code: "INVALID_REQUEST", Message: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, HealthInfo{
		Status:      "healthy",
		Version:     Version,
		Driver:      sqlite.DriverName(),
		Uptime:      time.Since(s.started).String(),
		Connections: len(s.store.List()),
	})
}

func (s *Server) handleOpenConnection(w http.ResponseWriter, r *http.Request) {
	var req OpenConnectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.ValidateDatabasePath(req.Path); err != nil {
		respondError(w, http.StatusBadRequest, APIError{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	c, err := s.store.Open(r.Context(), conn.OpenRequest{
		Path:     req.Path,
		Password: req.Password,
		ReadOnly: req.ReadOnly,
	})
	if err != nil {
		respondMapped(w, err)
		return
	}

	s.hub.ConnectionOpened(c.ID, c.Filename)
	respond(w, http.StatusCreated, c)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.store.List())
}

func (s *Server) handleCloseConnection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.Close(id); err != nil {
		respondMapped(w, err)
		return
	}
	s.hub.ConnectionClosed(id)
	respond(w, http.StatusOK, map[string]any{"id": id, "closed": true})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	db, c, err := s.store.Handle(r.PathValue("id"))
	if err != nil {
		respondMapped(w, err)
		return
	}

	snap, err := schema.IntrospectAll(r.Context(), db, c.Filename)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respond(w, http.StatusOK, snap)
}

func (s *Server) handleTableData(w http.ResponseWriter, r *http.Request) {
	db, _, err := s.store.Handle(r.PathValue("id"))
	if err != nil {
		respondMapped(w, err)
		return
	}

	var req query.TableDataRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Table == "" {
		respondError(w, http.StatusBadRequest, APIError{Code: "INVALID_REQUEST", Message: "table is required"})
		return
	}

	result, err := query.TableData(r.Context(), db, req)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respond(w, http.StatusOK, result)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	db, c, err := s.store.Handle(r.PathValue("id"))
	if err != nil {
		respondMapped(w, err)
		return
	}

	var req QueryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.SQL == "" {
		respondError(w, http.StatusBadRequest, APIError{Code: "INVALID_REQUEST", Message: "sql is required"})
		return
	}

	if c.IsReadOnly && !query.IsRead(req.SQL) {
		respondMapped(w, &cerrors.ReadOnlyError{ID: c.ID, Operation: "execute write statement"})
		return
	}

	result, err := query.Execute(r.Context(), db, req.SQL)
	if err != nil {
		status, apiErr := mapError(err)
		respondErrorMeta(w, status, apiErr, result.Duration)
		return
	}
	kind := "write"
	if query.IsRead(req.SQL) {
		kind = "read"
	}
	logging.QueryEvent(c.ID, kind, result.Duration)
	respondTimed(w, http.StatusOK, result, result.Duration)
}

func (s *Server) handleValidateChanges(w http.ResponseWriter, r *http.Request) {
	db, _, err := s.store.Handle(r.PathValue("id"))
	if err != nil {
		respondMapped(w, err)
		return
	}

	var req ChangesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	results, err := staging.Validate(r.Context(), db, req.Changes)
	if err != nil {
		respondMapped(w, err)
		return
	}
	respond(w, http.StatusOK, results)
}

func (s *Server) handleApplyChanges(w http.ResponseWriter, r *http.Request) {
	db, c, err := s.store.Handle(r.PathValue("id"))
	if err != nil {
		respondMapped(w, err)
		return
	}

	var req ChangesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	s.hub.ApplyProgress(c.ID, len(req.Changes))
	applied, err := staging.Apply(r.Context(), db, c.ID, c.IsReadOnly, req.Changes)
	if err != nil {
		s.hub.ApplyError(c.ID, err.Error())
		respondMapped(w, err)
		return
	}
	s.hub.ApplyComplete(c.ID, applied)
	respond(w, http.StatusOK, ApplyResult{Applied: applied})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeBody(w, r, &req) {
		return
	}

	source, srcMeta, err := s.resolveEndpoint(r, req.Source)
	if err != nil {
		respondMapped(w, err)
		return
	}
	target, tgtMeta, err := s.resolveEndpoint(r, req.Target)
	if err != nil {
		respondMapped(w, err)
		return
	}

	respond(w, http.StatusOK, diff.Compare(source, target, srcMeta, tgtMeta))
}

// resolveEndpoint turns one comparison endpoint into a snapshot: a live
// connection is introspected on the spot, an uploaded snapshot is decoded
// and fingerprint-checked.
func (s *Server) resolveEndpoint(r *http.Request, ep CompareEndpoint) (schema.Snapshot, diff.EndpointMeta, error) {
	switch {
	case ep.ConnectionID != "":
		db, c, err := s.store.Handle(ep.ConnectionID)
		if err != nil {
			return schema.Snapshot{}, diff.EndpointMeta{}, err
		}
		snap, err := schema.IntrospectAll(r.Context(), db, c.Filename)
		if err != nil {
			return schema.Snapshot{}, diff.EndpointMeta{}, err
		}
		return *snap, diff.EndpointMeta{ID: c.ID, Name: c.Filename, Kind: "connection"}, nil

	case ep.Snapshot != "":
		data, err := base64.StdEncoding.DecodeString(ep.Snapshot)
		if err != nil {
			return schema.Snapshot{}, diff.EndpointMeta{}, cerrors.Wrap(err, "invalid snapshot encoding")
		}
		snap, _, err := snapshot.Decode(data)
		if err != nil {
			return schema.Snapshot{}, diff.EndpointMeta{}, err
		}
		name := ep.Name
		if name == "" {
			name = snap.Name
		}
		return snap, diff.EndpointMeta{Name: name, Kind: "snapshot"}, nil

	default:
		return schema.Snapshot{}, diff.EndpointMeta{}, errors.New("comparison endpoint needs connectionId or snapshot")
	}
}

func (s *Server) handleSnapshotEncode(w http.ResponseWriter, r *http.Request) {
	var req SnapshotEncodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	db, c, err := s.store.Handle(req.ConnectionID)
	if err != nil {
		respondMapped(w, err)
		return
	}

	snap, err := schema.IntrospectAll(r.Context(), db, c.Filename)
	if err != nil {
		respondMapped(w, err)
		return
	}
	if req.Name != "" {
		snap.Name = req.Name
	}

	data, err := snapshot.Encode(*snap)
	if err != nil {
		respondMapped(w, err)
		return
	}
	fp, err := snapshot.Fingerprint(*snap)
	if err != nil {
		respondMapped(w, err)
		return
	}

	respond(w, http.StatusOK, SnapshotEncodeResult{
		Data:        base64.StdEncoding.EncodeToString(data),
		Fingerprint: fp,
		Size:        len(data),
	})
}

func (s *Server) handleSnapshotDecode(w http.ResponseWriter, r *http.Request) {
	var req SnapshotDecodeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		respondError(w, http.StatusBadRequest, APIError{Code: "INVALID_REQUEST", Message: "invalid snapshot encoding"})
		return
	}

	snap, fp, err := snapshot.Decode(data)
	if err != nil {
		respondError(w, http.StatusBadRequest, APIError{Code: "INVALID_REQUEST", Message: err.Error()})
		return
	}

	respond(w, http.StatusOK, map[string]any{"snapshot": snap, "fingerprint": fp})
}
