// Package sql implements the dialect.Driver contract for PostgreSQL on
// top of database/sql.
//
// # Opening a Driver
//
// Open takes the database/sql driver name and a DSN. With the pgx
// stdlib adapter registered:
//
//	import _ "github.com/jackc/pgx/v5/stdlib"
//
//	drv, err := sql.Open("pgx", "postgres://app@localhost/app")
//
// OpenDB wraps an existing *sql.DB instead, which is how tests hand a
// sqlmock connection to the rest of the module.
//
// # Result Containers
//
// Exec and Query follow the dialect convention of dispatching on the
// result container: Exec accepts nil or *sql.Result, Query requires
// *sql.Rows. Arguments are always an ordered []any bound to positional
// $n placeholders.
//
// # Error Classification
//
// Database errors leaving this package are wrapped in *Error with a
// semantic kind derived from the server's SQLSTATE: unique, foreign-key,
// and check violations, the invalid-input family, and a catch-all.
// IsUniqueViolation, IsForeignKeyViolation, IsCheckViolation, and
// IsInvalidInput answer the classification question without string
// matching; Unwrap always exposes the original driver error.
//
// # Session Variables
//
// WithVar attaches SET statements to a context, executed before each
// statement carried by that context and RESET before a pooled
// connection is released:
//
//	ctx := sql.WithSearchPath(ctx, "tenant1")
//	err := drv.Query(ctx, "SELECT ...", args, &rows)
//
// # Instrumentation
//
// NewDebugDriver logs every statement; NewStatsDriver counts
// statements, errors, and slow queries. Both wrap a dialect.Driver and
// satisfy the same interface, so they can be handed to the registry or
// the migration engine unchanged.
package sql
