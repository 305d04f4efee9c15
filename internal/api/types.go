package api

import (
	"github.com/sqlitescope/sqlitescope/core/staging"
)

// OpenConnectionRequest is the request body for opening a database.
type OpenConnectionRequest struct {
	Path     string `json:"path"`
	Password string `json:"password,omitempty"`
	ReadOnly bool   `json:"readOnly,omitempty"`
}

// QueryRequest is the request body for free-form statement execution.
type QueryRequest struct {
	SQL string `json:"sql"`
}

// ChangesRequest carries staged changes for validation or apply.
type ChangesRequest struct {
	Changes []staging.PendingChange `json:"changes"`
}

// ApplyResult reports how many changes a successful apply committed.
type ApplyResult struct {
	Applied int `json:"applied"`
}

// CompareEndpoint names one side of a comparison: either a live
// connection by identifier, or an encoded snapshot file, base64-encoded.
type CompareEndpoint struct {
	ConnectionID string `json:"connectionId,omitempty"`
	Snapshot     string `json:"snapshot,omitempty"`
	Name         string `json:"name,omitempty"`
}

// CompareRequest is the request body for schema comparison.
type CompareRequest struct {
	Source CompareEndpoint `json:"source"`
	Target CompareEndpoint `json:"target"`
}

// SnapshotEncodeRequest captures a connection's schema as a portable
// snapshot file.
type SnapshotEncodeRequest struct {
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name,omitempty"`
}

// SnapshotEncodeResult is the encoded snapshot, base64-encoded, plus its
// fingerprint.
type SnapshotEncodeResult struct {
	Data        string `json:"data"`
	Fingerprint string `json:"fingerprint"`
	Size        int    `json:"size"`
}

// SnapshotDecodeRequest decodes a snapshot file back to JSON.
type SnapshotDecodeRequest struct {
	Data string `json:"data"`
}

// HealthInfo is the health check response.
type HealthInfo struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Driver      string `json:"driver"`
	Uptime      string `json:"uptime"`
	Connections int    `json:"connections"`
}
