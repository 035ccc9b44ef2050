// Package dialect defines the thin session abstraction the schemata
// compilers execute against.
//
// Every component that touches the database (the model layer, the
// migration engine, the CLI) speaks to it through three interfaces:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
//	type Driver interface {
//	    ExecQuerier
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
//	type Tx interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	}
//
// Statements use positional Postgres placeholders ($1, $2, ...) and an
// ordered []any argument list. The dialect/sql sub-package implements
// these interfaces on top of database/sql and is the implementation used
// in practice; the interfaces exist so tests and callers can substitute
// their own session handling.
//
// PostgreSQL is the only supported dialect. The SQL this module emits
// relies on Postgres semantics throughout: ILIKE, advisory locks,
// CREATE SCHEMA, and SQLSTATE error codes.
package dialect
