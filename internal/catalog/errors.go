package catalog

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors forming the catalog's contribution to the import
// error taxonomy. Callers match with errors.Is.
var (
	// ErrNotFound is returned when a photo or tag id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicatePath is returned when a photo's filepath is already
	// cataloged. Imports treat it as a skip, not a failure.
	ErrDuplicatePath = errors.New("filepath already cataloged")

	// ErrConstraint covers uniqueness or referential violations other
	// than a duplicate filepath.
	ErrConstraint = errors.New("constraint violation")

	// ErrStorageUnavailable means the database itself is unusable.
	// This is the only catalog error that aborts an import batch.
	ErrStorageUnavailable = errors.New("catalog storage unavailable")
)

// classify maps driver-level failures onto the sentinel taxonomy.
// Errors that are already classified, or that carry caller context
// (ctx cancellation), pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicatePath) ||
		errors.Is(err, ErrConstraint) || errors.Is(err, ErrStorageUnavailable) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrConstraint:
			if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique &&
				strings.Contains(err.Error(), "photos.filepath") {
				return fmt.Errorf("%w: %v", ErrDuplicatePath, err)
			}
			return fmt.Errorf("%w: %v", ErrConstraint, err)
		case sqlite3.ErrCantOpen, sqlite3.ErrIoErr, sqlite3.ErrNotADB,
			sqlite3.ErrFull, sqlite3.ErrReadonly, sqlite3.ErrCorrupt:
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return err
	}

	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return err
}
