// Package validation provides input validation for user-supplied values
// that cross the request boundary, chiefly database file paths.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// MaxPathLength is the maximum allowed database path length.
const MaxPathLength = 4096

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrRelativePath     = errors.New("path must be absolute")
	ErrInvalidCharacter = errors.New("invalid character in path")
)

// ValidateDatabasePath checks a user-supplied database file path. Paths
// must be absolute: the server resolves nothing relative to its own
// working directory, so a relative path is almost always a client bug.
func ValidateDatabasePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	if !filepath.IsAbs(path) {
		return ErrRelativePath
	}
	return nil
}

// ValidateIdentifier checks a user-supplied connection identifier: the
// format is opaque to clients, but it must be non-empty and printable.
func ValidateIdentifier(id string) error {
	if id == "" {
		return errors.New("identifier cannot be empty")
	}
	if len(id) > 128 {
		return errors.New("identifier too long")
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return errors.New("identifier contains invalid characters")
		}
	}
	return nil
}
