package sql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes this package classifies.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgDatatypeMismatch    = "42804"
)

// ErrorKind is the semantic class of a database execution error.
type ErrorKind uint8

const (
	// KindOther is the catch-all for unclassified database errors.
	KindOther ErrorKind = iota
	// KindUniqueViolation reports a duplicate value in a unique index or constraint.
	KindUniqueViolation
	// KindForeignKeyViolation reports a missing parent row or a restricted delete.
	KindForeignKeyViolation
	// KindCheckViolation reports a value rejected by a CHECK constraint.
	KindCheckViolation
	// KindInvalidInput reports malformed input syntax or a datatype mismatch.
	KindInvalidInput
)

// String returns a human-readable name for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindUniqueViolation:
		return "unique constraint violation"
	case KindForeignKeyViolation:
		return "foreign key constraint violation"
	case KindCheckViolation:
		return "check constraint violation"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "operation failed"
	}
}

// Error wraps a database error with its semantic kind. The original
// driver error is always preserved for diagnostics via Unwrap.
type Error struct {
	Kind       ErrorKind
	Constraint string // constraint name, when the server reports one
	err        error
}

// Error returns the error string.
func (e *Error) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("dialect/sql: %s (%s): %v", e.Kind, e.Constraint, e.err)
	}
	return fmt.Sprintf("dialect/sql: %s: %v", e.Kind, e.err)
}

// Unwrap returns the underlying driver error.
func (e *Error) Unwrap() error {
	return e.err
}

// WrapError classifies a database error into an *Error. A nil error
// returns nil; an already-wrapped error is returned unchanged.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	kind, constraint := classify(err)
	return &Error{Kind: kind, Constraint: constraint, err: err}
}

// KindOf returns the semantic kind of err, classifying on the fly when
// err has not been through WrapError.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindOther
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	kind, _ := classify(err)
	return kind
}

// IsUniqueViolation reports if the error resulted from a uniqueness violation.
func IsUniqueViolation(err error) bool {
	return err != nil && KindOf(err) == KindUniqueViolation
}

// IsForeignKeyViolation reports if the error resulted from a foreign-key violation.
func IsForeignKeyViolation(err error) bool {
	return err != nil && KindOf(err) == KindForeignKeyViolation
}

// IsCheckViolation reports if the error resulted from a check-constraint violation.
func IsCheckViolation(err error) bool {
	return err != nil && KindOf(err) == KindCheckViolation
}

// IsInvalidInput reports if the error resulted from malformed input syntax
// or a datatype mismatch.
func IsInvalidInput(err error) bool {
	return err != nil && KindOf(err) == KindInvalidInput
}

// IsExecutionError reports if the error originated from the database rather
// than from schema or condition definitions.
func IsExecutionError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// sqlStateError is implemented by driver errors that expose SQLSTATE codes
// (pgconn.PgError, pq.Error).
type sqlStateError interface {
	SQLState() string
}

// classify maps a driver error to its semantic kind. pgconn errors carry
// the code and constraint name directly; other drivers are probed for a
// SQLState method, then matched on message text.
func classify(err error) (ErrorKind, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return kindOfState(pgErr.Code), pgErr.ConstraintName
	}
	if e, ok := asError[sqlStateError](err); ok {
		if k := kindOfState(e.SQLState()); k != KindOther {
			return k, ""
		}
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "violates unique constraint"):
		return KindUniqueViolation, ""
	case strings.Contains(msg, "violates foreign key constraint"):
		return KindForeignKeyViolation, ""
	case strings.Contains(msg, "violates check constraint"):
		return KindCheckViolation, ""
	case strings.Contains(msg, "invalid input syntax"):
		return KindInvalidInput, ""
	default:
		return KindOther, ""
	}
}

// kindOfState maps a SQLSTATE code to a kind. Class 22 (data exception)
// covers the invalid-input family.
func kindOfState(code string) ErrorKind {
	switch code {
	case pgUniqueViolation:
		return KindUniqueViolation
	case pgForeignKeyViolation:
		return KindForeignKeyViolation
	case pgCheckViolation:
		return KindCheckViolation
	case pgDatatypeMismatch:
		return KindInvalidInput
	}
	if strings.HasPrefix(code, "22") {
		return KindInvalidInput
	}
	return KindOther
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}
