// Package snapshot serializes schema snapshots to a compact portable
// format: an XZ-compressed JSON envelope carrying a BLAKE3 fingerprint of
// the snapshot payload. The fingerprint lets two sides compare schemas by
// exchanging 32 bytes, and lets Decode reject files corrupted in transit.
package snapshot

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	"github.com/sqlitescope/sqlitescope/core/schema"
)

// FormatVersion is bumped on any incompatible envelope change.
const FormatVersion = 1

type envelope struct {
	Version     int             `json:"version"`
	Fingerprint string          `json:"fingerprint"`
	Snapshot    json.RawMessage `json:"snapshot"`
}

// Fingerprint returns the hex BLAKE3 digest of the snapshot's JSON form.
func Fingerprint(snap schema.Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Encode serializes a snapshot into the portable format.
func Encode(snap schema.Snapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	sum := blake3.Sum256(payload)

	env, err := json.Marshal(envelope{
		Version:     FormatVersion,
		Fingerprint: hex.EncodeToString(sum[:]),
		Snapshot:    payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	if _, err := w.Write(env); err != nil {
		return nil, fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads a snapshot back, verifying the embedded fingerprint
// against the payload bytes as stored.
func Decode(data []byte) (schema.Snapshot, string, error) {
	var snap schema.Snapshot

	r, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return snap, "", fmt.Errorf("not a snapshot file: %w", err)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return snap, "", fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return snap, "", fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Version != FormatVersion {
		return snap, "", fmt.Errorf("unsupported snapshot version %d", env.Version)
	}

	sum := blake3.Sum256(env.Snapshot)
	if got := hex.EncodeToString(sum[:]); got != env.Fingerprint {
		return snap, "", fmt.Errorf("snapshot fingerprint mismatch: file is corrupt")
	}

	if err := json.Unmarshal(env.Snapshot, &snap); err != nil {
		return snap, "", fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, env.Fingerprint, nil
}

// WriteFile encodes a snapshot to disk.
func WriteFile(path string, snap schema.Snapshot) error {
	data, err := Encode(snap)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadFile decodes a snapshot from disk.
func ReadFile(path string) (schema.Snapshot, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Snapshot{}, "", err
	}
	return Decode(data)
}
