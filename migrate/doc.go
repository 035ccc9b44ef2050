// Package migrate applies versioned migration units to one database
// schema inside a single transaction.
//
// A run takes a transaction-scoped advisory lock keyed by the schema
// name, provisions the ledger table if absent, reads the highest
// applied version, and executes every pending unit in ascending
// version order, recording one ledger row per unit. Either all pending
// units commit together or any failure rolls back the whole run,
// ledger rows and unit effects alike. Because the lock is
// transaction-scoped, it cannot outlive the run that took it.
//
// Units come from a Source. DirSource reads an atlas migration
// directory, where file names carry a numeric version prefix:
//
//	0001_create_users.sql
//	0002_add_orders.sql
//
// UnitsSource wraps units written in Go:
//
//	migrate.UnitsSource{{
//	    Version: 1,
//	    Label:   "0001_create_users",
//	    Apply: func(ctx context.Context, conn dialect.ExecQuerier, schemaName string) error {
//	        ddl, err := schema.CreateTable(usersTable(schemaName))
//	        if err != nil {
//	            return err
//	        }
//	        return conn.Exec(ctx, ddl, []any{}, nil)
//	    },
//	}}
//
// Re-running a fully applied source is a no-op: the ledger's MAX
// version filters every unit out.
package migrate
