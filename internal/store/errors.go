package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// ErrorKind categorizes why a mutation did not commit.
//
// Callers are expected to react differently to each kind:
//   - CONFLICT: reload the record and retry with fresh data
//   - ALREADY_ACTED: report to the user, do not retry
//   - TRANSIENT: retry the whole call unchanged
//   - VALIDATION: fix the input
//   - NOT_FOUND: the record does not exist
type ErrorKind string

const (
	KindConflict     ErrorKind = "CONFLICT"
	KindAlreadyActed ErrorKind = "ALREADY_ACTED"
	KindTransient    ErrorKind = "TRANSIENT"
	KindValidation   ErrorKind = "VALIDATION"
	KindNotFound     ErrorKind = "NOT_FOUND"
	KindInternal     ErrorKind = "INTERNAL"
)

// Sentinels for errors.Is. A *MutationError matches the sentinel of its kind.
var (
	ErrConflict     = errors.New("revision conflict")
	ErrAlreadyLiked = errors.New("already liked")
	ErrTransient    = errors.New("transient store failure")
	ErrValidation   = errors.New("validation failure")
	ErrNotFound     = errors.New("not found")
)

var kindSentinels = map[ErrorKind]error{
	KindConflict:     ErrConflict,
	KindAlreadyActed: ErrAlreadyLiked,
	KindTransient:    ErrTransient,
	KindValidation:   ErrValidation,
	KindNotFound:     ErrNotFound,
}

// MutationError is the only error type the protocols return. A failed
// transaction is always rolled back before a MutationError is returned, so
// no partially applied state is ever visible.
type MutationError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Op names the protocol that failed ("update", "like", ...).
	Op string

	// BuildingID identifies the affected record, when known.
	BuildingID int64

	// CurrentRevision is the stored revision at the time of a conflict,
	// 0 when the record does not exist.
	CurrentRevision int64

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *MutationError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.BuildingID != 0 {
		return fmt.Sprintf("%s: %s: %s (building=%d)", e.Op, e.Kind, msg, e.BuildingID)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

// Unwrap returns the underlying cause.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the kind.
func (e *MutationError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && target == sentinel
}

// KindOf returns the kind of err, or KindInternal if err is not a
// MutationError.
func KindOf(err error) ErrorKind {
	var me *MutationError
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindInternal
}

// IsConflict returns true if the caller's expected revision was stale.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsAlreadyActed returns true if the principal already liked the record.
func IsAlreadyActed(err error) bool { return KindOf(err) == KindAlreadyActed }

// IsTransient returns true if the call may be retried unchanged.
func IsTransient(err error) bool { return KindOf(err) == KindTransient }

// IsValidation returns true if the input was rejected before any transaction.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound returns true if the record does not exist.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// NewValidationError creates a MutationError for rejected input.
func NewValidationError(op string, buildingID int64, format string, args ...any) *MutationError {
	return &MutationError{
		Kind:       KindValidation,
		Op:         op,
		BuildingID: buildingID,
		Message:    fmt.Sprintf(format, args...),
	}
}

// NewNotFoundError creates a MutationError for a missing record.
func NewNotFoundError(op string, buildingID int64, what string) *MutationError {
	return &MutationError{
		Kind:       KindNotFound,
		Op:         op,
		BuildingID: buildingID,
		Message:    what + " not found",
	}
}

func newConflictError(op string, buildingID, expected, current int64) *MutationError {
	return &MutationError{
		Kind:            KindConflict,
		Op:              op,
		BuildingID:      buildingID,
		CurrentRevision: current,
		Message:         fmt.Sprintf("expected revision %d, stored revision %d", expected, current),
	}
}

// classify wraps a database failure into the taxonomy. Lock contention,
// serialization failures, I/O and connection failures are transient;
// anything else is internal.
func classify(op string, buildingID int64, step string, err error) error {
	var me *MutationError
	if errors.As(err, &me) {
		return err
	}

	kind := KindInternal
	var sqliteErr sqlite3.Error
	switch {
	case errors.As(err, &sqliteErr):
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrIoErr, sqlite3.ErrCantOpen, sqlite3.ErrFull:
			kind = KindTransient
		}
	case errors.Is(err, sql.ErrConnDone), errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	}

	return &MutationError{
		Kind:       kind,
		Op:         op,
		BuildingID: buildingID,
		Message:    step,
		Err:        err,
	}
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
