package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrUnknownKind is returned for a kind the schema does not declare.
	ErrUnknownKind = errors.New("unknown kind")

	// ErrDuplicateKey is returned by saves under UpdateError when a record
	// with the same primary key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrMissingKey is returned when a keyed record lacks its primary key
	// or holds one that is neither a string nor an integer.
	ErrMissingKey = errors.New("missing primary key")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Error reports a failed store operation. Err is the underlying cause,
// usually a driver error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStoreError returns true if err is or wraps an *Error.
// Uses errors.As to handle wrapped errors.
func IsStoreError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint
// failure.
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint &&
			se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
