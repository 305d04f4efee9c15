// Package sqlite provides a unified SQLite interface supporting both
// pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3) implementations.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3
//
// The CGO mode is required for encrypted databases: cipher negotiation is
// driven through PRAGMA statements that only take effect when the binary is
// linked against a cipher-capable SQLite library.
//
// The driver name is "sqlite" or "sqlite3" depending on the implementation.
// Use Open() instead of sql.Open() to ensure the correct driver is used.
//
// The package also owns the identifier and literal quoting rules shared by
// every statement builder in the engine, so insert, update, delete and
// select paths cannot diverge on escaping.
package sqlite

import (
	"bytes"
	"database/sql"
	"fmt"
	"strings"
)

// Header is the canonical 16-byte prefix of an unencrypted SQLite file.
var Header = []byte("SQLite format 3\x00")

// HeaderSize is the number of bytes needed to recognize a plaintext file.
const HeaderSize = 16

// IsPlaintextHeader reports whether b begins with the canonical unencrypted
// file-format header. Files shorter than the header (including empty files,
// which SQLite treats as fresh databases) are considered plaintext.
func IsPlaintextHeader(b []byte) bool {
	if len(b) < HeaderSize {
		return true
	}
	return bytes.Equal(b[:HeaderSize], Header)
}

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// FileDSN builds a data source name for a database file path.
func FileDSN(path string, readOnly bool) string {
	if readOnly {
		return "file:" + path + "?mode=ro"
	}
	return path
}

// Open opens a SQLite database using the appropriate driver.
// This is the preferred way to open SQLite databases.
func Open(dataSourceName string) (*sql.DB, error) {
	return sql.Open(driverName, dataSourceName)
}

// OpenReadOnly opens a SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	return Open(FileDSN(path, true))
}

// MustOpen opens a SQLite database and panics on error.
// This is intended for use in tests or initialization code where
// database access failure is unrecoverable.
func MustOpen(dataSourceName string) *sql.DB {
	db, err := Open(dataSourceName)
	if err != nil {
		panic(fmt.Sprintf("sqlite: failed to open %s: %v", dataSourceName, err))
	}
	return db
}

// Ident quotes a SQL identifier (table, column or schema name) for safe
// interpolation into statement text. Double quotes inside the name are
// doubled per the SQL standard.
func Ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedIdent quotes a schema-qualified identifier. An empty schema
// yields a bare quoted name.
func QualifiedIdent(schema, name string) string {
	if schema == "" {
		return Ident(name)
	}
	return Ident(schema) + "." + Ident(name)
}

// Literal quotes a string literal. Values should be bound as statement
// arguments wherever the driver allows it; this exists for the few places
// that cannot take bind parameters, such as PRAGMA key material.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
