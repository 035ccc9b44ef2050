package migrate_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverstone-i/pg-schemata-sub000/dialect"
	"github.com/silverstone-i/pg-schemata-sub000/dialect/sql"
	"github.com/silverstone-i/pg-schemata-sub000/migrate"
	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

func quiet() migrate.Option {
	return migrate.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func escape(q string) string {
	return regexp.QuoteMeta(q)
}

// noop is a unit body for tests that only exercise ledger bookkeeping.
func noop(context.Context, dialect.ExecQuerier, string) error { return nil }

// TestApplyPending tests that a run applies only units above the
// ledger's current version, recording one ledger row per applied unit.
func TestApplyPending(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mk.ExpectBegin()
	mk.ExpectExec(escape("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(migrate.LockKey("tenant1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(escape(`CREATE SCHEMA IF NOT EXISTS "tenant1";`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(`CREATE TABLE IF NOT EXISTS "tenant1"\."schema_migrations"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectQuery(escape(`SELECT COALESCE(MAX("version"), 0) FROM "tenant1"."schema_migrations" WHERE "schema_name" = $1`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mk.ExpectExec(escape(`CREATE TABLE "tenant1"."orders" ()`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(escape(`INSERT INTO "tenant1"."schema_migrations" ("schema_name", "version", "content_hash", "label", "applied_at") VALUES ($1, $2, $3, $4, now())`)).
		WithArgs("tenant1", int64(2), "h2", "0002_create_orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mk.ExpectCommit()

	var ranFirst bool
	src := migrate.UnitsSource{
		{
			Version: 1, Label: "0001_create_users", Hash: "h1",
			Apply: func(context.Context, dialect.ExecQuerier, string) error {
				ranFirst = true
				return nil
			},
		},
		{
			Version: 2, Label: "0002_create_orders", Hash: "h2",
			Apply: func(ctx context.Context, conn dialect.ExecQuerier, schemaName string) error {
				return conn.Exec(ctx, `CREATE TABLE "tenant1"."orders" ()`, []any{}, nil)
			},
		},
	}

	m := migrate.New(sql.OpenDB(db), quiet())
	res, err := m.Apply(context.Background(), "tenant1", src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []string{"0002_create_orders"}, res.Labels)
	assert.False(t, ranFirst)
	require.NoError(t, mk.ExpectationsWereMet())
}

// TestApplyNoop tests ledger-level idempotency: re-running a fully
// applied source applies nothing and leaves the ledger unchanged.
func TestApplyNoop(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mk.ExpectBegin()
	mk.ExpectExec(escape("SELECT pg_advisory_xact_lock($1)")).
		WithArgs(migrate.LockKey("tenant1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(escape(`CREATE SCHEMA IF NOT EXISTS "tenant1";`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(`CREATE TABLE IF NOT EXISTS "tenant1"\."schema_migrations"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectQuery(escape(`SELECT COALESCE(MAX("version"), 0)`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mk.ExpectCommit()

	src := migrate.UnitsSource{
		{Version: 1, Label: "0001_create_users", Apply: noop},
		{Version: 2, Label: "0002_create_orders", Apply: noop},
	}
	m := migrate.New(sql.OpenDB(db), quiet())
	res, err := m.Apply(context.Background(), "tenant1", src)
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	assert.Empty(t, res.Labels)
	require.NoError(t, mk.ExpectationsWereMet())
}

// TestApplyRollsBackOnFailure tests full-run atomicity: a failing unit
// rolls the transaction back and no ledger row survives.
func TestApplyRollsBackOnFailure(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mk.ExpectBegin()
	mk.ExpectExec(escape("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(escape(`CREATE SCHEMA IF NOT EXISTS "tenant1";`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(`CREATE TABLE IF NOT EXISTS "tenant1"\."schema_migrations"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectQuery(escape(`SELECT COALESCE(MAX("version"), 0)`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mk.ExpectRollback()

	src := migrate.UnitsSource{{
		Version: 1, Label: "0001_boom",
		Apply: func(context.Context, dialect.ExecQuerier, string) error {
			return errors.New("boom")
		},
	}}
	m := migrate.New(sql.OpenDB(db), quiet())
	_, err = m.Apply(context.Background(), "tenant1", src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unit 1")
	assert.Contains(t, err.Error(), "boom")
	require.NoError(t, mk.ExpectationsWereMet())
}

// TestApplyWithoutLock tests that the advisory lock can be opted out.
func TestApplyWithoutLock(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mk.ExpectBegin()
	mk.ExpectExec(escape(`CREATE SCHEMA IF NOT EXISTS "tenant1";`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(`CREATE TABLE IF NOT EXISTS "tenant1"\."schema_migrations"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectQuery(escape(`SELECT COALESCE(MAX("version"), 0)`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mk.ExpectCommit()

	m := migrate.New(sql.OpenDB(db), quiet(), migrate.WithoutLock())
	res, err := m.Apply(context.Background(), "tenant1", migrate.UnitsSource{})
	require.NoError(t, err)
	assert.Zero(t, res.Applied)
	require.NoError(t, mk.ExpectationsWereMet())
}

// TestApplyLedgerTableOption tests the ledger table override.
func TestApplyLedgerTableOption(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mk.ExpectBegin()
	mk.ExpectExec(escape("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(escape(`CREATE SCHEMA IF NOT EXISTS "tenant1";`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(`CREATE TABLE IF NOT EXISTS "tenant1"\."applied_units"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectQuery(escape(`SELECT COALESCE(MAX("version"), 0) FROM "tenant1"."applied_units"`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mk.ExpectCommit()

	m := migrate.New(sql.OpenDB(db), quiet(), migrate.WithLedgerTable("applied_units"))
	_, err = m.Apply(context.Background(), "tenant1", migrate.UnitsSource{})
	require.NoError(t, err)
	require.NoError(t, mk.ExpectationsWereMet())
}

// TestApplyRejectsBadUnits tests definition errors caught before the
// transaction opens.
func TestApplyRejectsBadUnits(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := migrate.New(sql.OpenDB(db), quiet())

	t.Run("NilApply", func(t *testing.T) {
		_, err := m.Apply(context.Background(), "tenant1", migrate.UnitsSource{
			{Version: 1, Label: "0001_broken"},
		})
		require.Error(t, err)
		assert.True(t, schema.IsDefinition(err))
		assert.Contains(t, err.Error(), "no apply function")
	})

	t.Run("DuplicateVersion", func(t *testing.T) {
		_, err := m.Apply(context.Background(), "tenant1", migrate.UnitsSource{
			{Version: 1, Label: "0001_a", Apply: noop},
			{Version: 1, Label: "0001_b", Apply: noop},
		})
		require.Error(t, err)
		assert.True(t, schema.IsDefinition(err))
		assert.Contains(t, err.Error(), "duplicate migration version 1")
	})

	t.Run("EmptySchemaName", func(t *testing.T) {
		_, err := m.Apply(context.Background(), "", migrate.UnitsSource{})
		require.Error(t, err)
		assert.True(t, schema.IsDefinition(err))
	})

	// None of the rejected runs may touch the database.
	require.NoError(t, mk.ExpectationsWereMet())
}

// TestApplyOrdersUnits tests that out-of-order sources apply ascending
// by version.
func TestApplyOrdersUnits(t *testing.T) {
	db, mk, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mk.ExpectBegin()
	mk.ExpectExec(escape("SELECT pg_advisory_xact_lock($1)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(escape(`CREATE SCHEMA IF NOT EXISTS "tenant1";`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectExec(`CREATE TABLE IF NOT EXISTS "tenant1"\."schema_migrations"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectQuery(escape(`SELECT COALESCE(MAX("version"), 0)`)).
		WithArgs("tenant1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mk.ExpectExec(escape(`INSERT INTO "tenant1"."schema_migrations"`)).
		WithArgs("tenant1", int64(1), "", "0001_first").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mk.ExpectExec(escape(`INSERT INTO "tenant1"."schema_migrations"`)).
		WithArgs("tenant1", int64(2), "", "0002_second").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mk.ExpectCommit()

	var order []int64
	unit := func(v int64, label string) migrate.Unit {
		return migrate.Unit{
			Version: v, Label: label,
			Apply: func(context.Context, dialect.ExecQuerier, string) error {
				order = append(order, v)
				return nil
			},
		}
	}
	src := migrate.UnitsSource{unit(2, "0002_second"), unit(1, "0001_first")}

	m := migrate.New(sql.OpenDB(db), quiet())
	res, err := m.Apply(context.Background(), "tenant1", src)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, order)
	assert.Equal(t, []string{"0001_first", "0002_second"}, res.Labels)
	require.NoError(t, mk.ExpectationsWereMet())
}

// TestLockKey tests key stability and per-schema separation.
func TestLockKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, migrate.LockKey("tenant1"), migrate.LockKey("tenant1"))
	assert.NotEqual(t, migrate.LockKey("tenant1"), migrate.LockKey("tenant2"))
}

// TestStatus tests the read-only state report.
func TestStatus(t *testing.T) {
	src := migrate.UnitsSource{
		{Version: 1, Label: "0001_a", Apply: noop},
		{Version: 2, Label: "0002_b", Apply: noop},
		{Version: 3, Label: "0003_c", Apply: noop},
	}

	t.Run("WithLedger", func(t *testing.T) {
		db, mk, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mk.ExpectQuery(escape("SELECT to_regclass($1)")).
			WithArgs("tenant1.schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow("tenant1.schema_migrations"))
		applied := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		mk.ExpectQuery(escape(`SELECT "schema_name", "version", "content_hash", "label", "applied_at" FROM "tenant1"."schema_migrations" WHERE "schema_name" = $1 ORDER BY "version"`)).
			WithArgs("tenant1").
			WillReturnRows(sqlmock.NewRows([]string{"schema_name", "version", "content_hash", "label", "applied_at"}).
				AddRow("tenant1", int64(1), "h1", "0001_a", applied).
				AddRow("tenant1", int64(2), "h2", "0002_b", applied))

		m := migrate.New(sql.OpenDB(db), quiet())
		st, err := m.Status(context.Background(), "tenant1", src)
		require.NoError(t, err)
		assert.Equal(t, int64(2), st.Current)
		require.Len(t, st.Applied, 2)
		assert.Equal(t, "0001_a", st.Applied[0].Label)
		assert.Equal(t, applied, st.Applied[0].AppliedAt)
		assert.Equal(t, []string{"0003_c"}, st.Pending)
		require.NoError(t, mk.ExpectationsWereMet())
	})

	t.Run("MissingLedger", func(t *testing.T) {
		db, mk, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mk.ExpectQuery(escape("SELECT to_regclass($1)")).
			WithArgs("tenant1.schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

		m := migrate.New(sql.OpenDB(db), quiet())
		st, err := m.Status(context.Background(), "tenant1", src)
		require.NoError(t, err)
		assert.Zero(t, st.Current)
		assert.Empty(t, st.Applied)
		assert.Equal(t, []string{"0001_a", "0002_b", "0003_c"}, st.Pending)
		require.NoError(t, mk.ExpectationsWereMet())
	})

	t.Run("NilSource", func(t *testing.T) {
		db, mk, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mk.ExpectQuery(escape("SELECT to_regclass($1)")).
			WithArgs("tenant1.schema_migrations").
			WillReturnRows(sqlmock.NewRows([]string{"to_regclass"}).AddRow(nil))

		m := migrate.New(sql.OpenDB(db), quiet())
		st, err := m.Status(context.Background(), "tenant1", nil)
		require.NoError(t, err)
		assert.Zero(t, st.Current)
		assert.Empty(t, st.Pending)
		require.NoError(t, mk.ExpectationsWereMet())
	})
}
