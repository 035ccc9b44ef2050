package dialect

import (
	"context"
	"database/sql/driver"
)

// Postgres is the dialect name of the PostgreSQL driver.
const Postgres = "postgres"

// ExecQuerier wraps the two standard database operations.
//
// Exec executes a statement that does not return rows. v may be nil,
// or a *sql.Result to capture the driver result.
//
// Query executes a statement that returns rows, typically a SELECT,
// or an INSERT/UPDATE with a RETURNING clause. v must be a *sql.Rows
// container provided by the concrete implementation.
type ExecQuerier interface {
	// Exec executes a query that does not return records. For example, in SQL, INSERT or UPDATE.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a query that returns rows, typically a SELECT in SQL.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the interface that wraps all database operations.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	// The provided context is used until the transaction is committed or rolled back.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying connection.
	Close() error
	// Dialect returns the dialect name of the driver.
	Dialect() string
}

// Tx wraps transactional operations.
type Tx interface {
	ExecQuerier
	driver.Tx
}
