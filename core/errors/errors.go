// Package errors provides standardized error types for the sqlitescope core.
//
// Every failure crossing a component boundary is one of the typed errors
// below, each unwrapping to a package-level sentinel so callers can match
// with errors.Is without depending on message text. Driver messages are
// carried verbatim and never summarized: the presentation layer displays
// them unmodified.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the core failure taxonomy.
var (
	// ErrConnectionNotFound indicates an unknown or already-closed connection identifier.
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrNeedsPassword indicates a file that appears encrypted was opened without a key.
	ErrNeedsPassword = errors.New("database requires a password")
	// ErrUnsupportedCipher indicates every cipher probe candidate failed.
	ErrUnsupportedCipher = errors.New("invalid password or unsupported cipher")
	// ErrReadOnly indicates a mutation was attempted on a read-only connection.
	ErrReadOnly = errors.New("connection is read-only")
	// ErrExecution indicates the driver rejected a SQL statement.
	ErrExecution = errors.New("execution error")
	// ErrValidation indicates a staged change failed a pre-apply check.
	ErrValidation = errors.New("validation failure")
	// ErrApply indicates the apply transaction aborted and was rolled back.
	ErrApply = errors.New("apply failure")
)

// ConnectionNotFoundError reports an operation against an identifier that
// refers to no live handle. Identifiers are never reused, so this covers
// both unknown and already-closed connections.
type ConnectionNotFoundError struct {
	ID string // Connection identifier supplied by the caller
}

func (e *ConnectionNotFoundError) Error() string {
	return fmt.Sprintf("connection not found: %s", e.ID)
}

func (e *ConnectionNotFoundError) Unwrap() error {
	return ErrConnectionNotFound
}

// NeedsPasswordError reports an encrypted file opened without a password.
// No cipher is attempted in this case.
type NeedsPasswordError struct {
	Path string // File that appears encrypted
}

func (e *NeedsPasswordError) Error() string {
	return fmt.Sprintf("database appears encrypted, password required: %s", e.Path)
}

func (e *NeedsPasswordError) Unwrap() error {
	return ErrNeedsPassword
}

// CipherProbeError reports that every candidate in the cipher probe table
// failed its verification read. Families lists the distinct cipher families
// attempted, in probe order.
type CipherProbeError struct {
	Path     string   // File being opened
	Families []string // Cipher families attempted
	Attempts int      // Total candidate configurations tried
}

func (e *CipherProbeError) Error() string {
	return fmt.Sprintf("invalid password or unsupported cipher for %s (tried %d configurations: %s)",
		e.Path, e.Attempts, strings.Join(e.Families, ", "))
}

func (e *CipherProbeError) Unwrap() error {
	return ErrUnsupportedCipher
}

// ReadOnlyError reports a mutation attempted on a read-only connection.
type ReadOnlyError struct {
	ID        string // Connection identifier
	Operation string // Operation that was refused
}

func (e *ReadOnlyError) Error() string {
	return fmt.Sprintf("cannot %s on read-only connection %s", e.Operation, e.ID)
}

func (e *ReadOnlyError) Unwrap() error {
	return ErrReadOnly
}

// ExecutionError reports a driver-level SQL failure. Message is the
// underlying driver message, verbatim.
type ExecutionError struct {
	Message string // Driver message, unmodified
	Err     error  // Underlying driver error
}

func (e *ExecutionError) Error() string {
	return e.Message
}

func (e *ExecutionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrExecution
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// ValidationError reports a staged change that failed a pre-apply check.
type ValidationError struct {
	Table  string // Target table of the change
	Reason string // Human-readable reason
}

func (e *ValidationError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("validation failed for table %s: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ApplyError reports the first failure inside an apply transaction. The
// whole transaction is rolled back; Index identifies the failing change in
// the caller's ordered list.
type ApplyError struct {
	Index int    // Zero-based position of the failing change
	Kind  string // Change kind: insert, update or delete
	Err   error  // Underlying driver error, verbatim
}

func (e *ApplyError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("apply failed at change %d (%s): %v", e.Index, e.Kind, e.Err)
	}
	return fmt.Sprintf("apply failed: %v", e.Err)
}

func (e *ApplyError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrApply
}

func (e *ApplyError) Is(target error) bool {
	return target == ErrApply
}

// NewExecution wraps a driver error, preserving its message verbatim.
// Returns nil if err is nil.
func NewExecution(err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{Message: err.Error(), Err: err}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
