//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
// This is used when the cgo_sqlite build tag is set.
//
// Build with: CGO_ENABLED=1 go build -tags cgo_sqlite
//
// Linking against a multi-cipher SQLite build (SQLCipher or compatible)
// enables the key and cipher PRAGMAs that the connection manager's probe
// loop issues; without it those PRAGMAs are accepted but have no effect.
package sqlite

import (
	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3"
)
