package store

import (
	"errors"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors returned by store functions.
var (
	// ErrNotFound means the record does not exist for the given owner. It is
	// also returned when the record exists under another owner.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken means an account with that email already exists.
	ErrEmailTaken = errors.New("email already registered")
)

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			serr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
