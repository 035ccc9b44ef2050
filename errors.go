package schemata

import (
	"errors"
	"fmt"

	"github.com/silverstone-i/pg-schemata-sub000/dialect/sql"
	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("schemata: row not found")

	// ErrEmptyConditions is returned when an operation that must be
	// filtered is handed an empty condition set. Exists, Update, Delete,
	// Deactivate, and Reactivate all refuse to run unfiltered.
	ErrEmptyConditions = errors.New("schemata: empty conditions")
)

// NotFoundError reports a lookup that matched no row.
type NotFoundError struct {
	table string
	id    any // Optional: the key that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("schemata: %s: row not found (id=%v)", e.table, e.id)
	}
	return fmt.Sprintf("schemata: %s: row not found", e.table)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Table returns the qualified table name that was queried.
func (e *NotFoundError) Table() string {
	return e.table
}

// ID returns the key that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given table.
func NewNotFoundError(table string) *NotFoundError {
	return &NotFoundError{table: table}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the key that
// was searched for.
func NewNotFoundErrorWithID(table string, id any) *NotFoundError {
	return &NotFoundError{table: table, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConstraintError represents a database constraint violation.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("schemata: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// QueryError wraps a read error with the table and operation it
// came from.
type QueryError struct {
	Table string // Qualified table being queried
	Op    string // Operation (e.g., "select", "count", "exists")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("schemata: querying %s (%s): %v", e.Table, e.Op, e.Err)
	}
	return fmt.Sprintf("schemata: querying %s: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(table, op string, err error) *QueryError {
	return &QueryError{Table: table, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a write error with the table and operation it
// came from.
type MutationError struct {
	Table string // Qualified table being mutated
	Op    string // Operation (e.g., "insert", "update", "delete")
	Err   error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("schemata: %s %s: %v", e.Op, e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(table, op string, err error) *MutationError {
	return &MutationError{Table: table, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// IsDefinitionError reports whether err stems from a caller or config
// mistake: malformed condition shape, unsupported operator, invalid
// table descriptor, broken migration unit. Definition errors are never
// worth retrying.
func IsDefinitionError(err error) bool {
	return schema.IsDefinition(err)
}

// IsExecutionError reports whether err originated from the database.
// Execution errors wrap the driver error and may be retry-worthy,
// depending on their kind.
func IsExecutionError(err error) bool {
	return sql.IsExecutionError(err)
}
