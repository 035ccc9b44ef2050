package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/silverstone-i/pg-schemata-sub000/dialect"
	"github.com/silverstone-i/pg-schemata-sub000/dialect/sql"
	"github.com/silverstone-i/pg-schemata-sub000/filter"
	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// DefaultLedgerTable is the table recording applied units, one per
// schema and version.
const DefaultLedgerTable = "schema_migrations"

// lockNamespace salts the advisory lock key so other advisory-lock
// users on the same database cannot collide with migration runs.
const lockNamespace = "schemata:migrate:"

// LockKey returns the advisory lock key serializing migration runs
// against one schema.
func LockKey(schemaName string) int64 {
	return int64(xxh3.HashString(lockNamespace + schemaName))
}

// Migrator applies migration units to database schemas.
type Migrator struct {
	drv    dialect.Driver
	ledger string
	log    *slog.Logger
	noLock bool
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLedgerTable overrides the ledger table name.
func WithLedgerTable(name string) Option {
	return func(m *Migrator) { m.ledger = name }
}

// WithLogger sets the logger receiving per-unit progress records.
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.log = l }
}

// WithoutLock skips advisory locking. Safe only when a single process
// can ever migrate the schema.
func WithoutLock() Option {
	return func(m *Migrator) { m.noLock = true }
}

// New returns a Migrator running over drv.
func New(drv dialect.Driver, opts ...Option) *Migrator {
	m := &Migrator{drv: drv, ledger: DefaultLedgerTable, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Result reports one migration run.
type Result struct {
	// Applied is the number of units this run applied.
	Applied int
	// Labels lists the applied units' labels in application order.
	Labels []string
}

// LedgerEntry is one applied-unit record.
type LedgerEntry struct {
	SchemaName  string
	Version     int64
	ContentHash string
	Label       string
	AppliedAt   time.Time
}

// Status is a read-only view of one schema's migration state.
type Status struct {
	// Current is the highest applied version, 0 when none.
	Current int64
	// Applied holds the schema's ledger rows in ascending version
	// order.
	Applied []LedgerEntry
	// Pending lists the labels of source units above Current,
	// ascending by version.
	Pending []string
}

// Apply runs every pending unit from src against schemaName. The lock,
// the ledger writes, and the units all share one transaction: either
// every pending unit commits together or any failure rolls the whole
// run back. A canceled context mid-run rolls back the same way.
func (m *Migrator) Apply(ctx context.Context, schemaName string, src Source) (*Result, error) {
	if schemaName == "" {
		return nil, schema.NewDefinitionError("", "", "migration requires a schema name")
	}
	units, err := src.Units(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateUnits(units); err != nil {
		return nil, err
	}
	units = sortedUnits(units)

	log := m.log.With("run_id", uuid.NewString(), "db_schema", schemaName)
	tx, err := m.drv.Tx(ctx)
	if err != nil {
		return nil, err
	}
	res, err := m.apply(ctx, tx, schemaName, units, log)
	if err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = fmt.Errorf("%w: rolling back: %v", err, rerr)
		}
		log.Error("migration failed", "error", err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("migrate: commit: %w", err)
	}
	log.Info("migration complete", "applied", res.Applied)
	return res, nil
}

func (m *Migrator) apply(ctx context.Context, tx dialect.Tx, schemaName string, units []Unit, log *slog.Logger) (*Result, error) {
	if !m.noLock {
		if err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", []any{LockKey(schemaName)}, nil); err != nil {
			return nil, fmt.Errorf("migrate: acquire lock: %w", err)
		}
	}
	if err := m.ensureLedger(ctx, tx, schemaName); err != nil {
		return nil, fmt.Errorf("migrate: ensure ledger: %w", err)
	}
	current, err := m.currentVersion(ctx, tx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("migrate: current version: %w", err)
	}

	res := &Result{}
	for _, u := range units {
		if u.Version <= current {
			continue
		}
		log.Info("applying migration", "version", u.Version, "label", u.Label)
		if err := u.Apply(ctx, tx, schemaName); err != nil {
			return nil, fmt.Errorf("migrate: unit %d (%s): %w", u.Version, u.Label, err)
		}
		if err := m.record(ctx, tx, schemaName, u); err != nil {
			return nil, fmt.Errorf("migrate: record unit %d: %w", u.Version, err)
		}
		res.Applied++
		res.Labels = append(res.Labels, u.Label)
	}
	return res, nil
}

// Status reports the migration state of schemaName without modifying
// anything. A nil src reports applied state only; a missing ledger
// table reads as version 0 with no applied rows.
func (m *Migrator) Status(ctx context.Context, schemaName string, src Source) (*Status, error) {
	if schemaName == "" {
		return nil, schema.NewDefinitionError("", "", "migration requires a schema name")
	}
	var units []Unit
	if src != nil {
		var err error
		if units, err = src.Units(ctx); err != nil {
			return nil, err
		}
		if err := validateUnits(units); err != nil {
			return nil, err
		}
		units = sortedUnits(units)
	}

	st := &Status{}
	ok, err := m.ledgerExists(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	if ok {
		if st.Applied, err = m.ledgerEntries(ctx, schemaName); err != nil {
			return nil, err
		}
		if n := len(st.Applied); n > 0 {
			st.Current = st.Applied[n-1].Version
		}
	}
	for _, u := range units {
		if u.Version > st.Current {
			st.Pending = append(st.Pending, u.Label)
		}
	}
	return st, nil
}

// ledgerTable describes the ledger in the same descriptor vocabulary
// the rest of the toolkit compiles.
func (m *Migrator) ledgerTable(schemaName string) *schema.Table {
	return &schema.Table{
		Schema: schemaName,
		Name:   m.ledger,
		Columns: []schema.Column{
			{Name: "schema_name", Type: "varchar(63)", NotNull: true},
			{Name: "version", Type: "bigint", NotNull: true},
			{Name: "content_hash", Type: "varchar(64)", NotNull: true},
			{Name: "label", Type: "text", NotNull: true},
			{Name: "applied_at", Type: "timestamptz", NotNull: true, Default: "now()"},
		},
		Constraints: schema.Constraints{
			PrimaryKey: []string{"schema_name", "version"},
		},
	}
}

func (m *Migrator) ensureLedger(ctx context.Context, tx dialect.ExecQuerier, schemaName string) error {
	stmt, err := schema.CreateSchema(schemaName)
	if err != nil {
		return err
	}
	if err := tx.Exec(ctx, stmt, []any{}, nil); err != nil {
		return err
	}
	ddl, err := schema.CreateTable(m.ledgerTable(schemaName))
	if err != nil {
		return err
	}
	return tx.Exec(ctx, ddl, []any{}, nil)
}

func (m *Migrator) currentVersion(ctx context.Context, tx dialect.ExecQuerier, schemaName string) (int64, error) {
	cond, err := filter.Compile(filter.EQ("schema_name", schemaName), filter.Options{})
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s WHERE %s",
		schema.QuoteIdent("version"), schema.QualifyTable(schemaName, m.ledger), cond.Clause)
	var rows sql.Rows
	if err := tx.Query(ctx, query, cond.Args, &rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var v int64
	if rows.Next() {
		if err := rows.Scan(&v); err != nil {
			return 0, err
		}
	}
	return v, rows.Err()
}

func (m *Migrator) record(ctx context.Context, tx dialect.ExecQuerier, schemaName string, u Unit) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, now())",
		schema.QualifyTable(schemaName, m.ledger),
		schema.QuoteIdents([]string{"schema_name", "version", "content_hash", "label", "applied_at"}))
	return tx.Exec(ctx, query, []any{schemaName, u.Version, u.Hash, u.Label}, nil)
}

// ledgerExists probes for the ledger table so Status can stay
// read-only.
func (m *Migrator) ledgerExists(ctx context.Context, schemaName string) (bool, error) {
	var rows sql.Rows
	if err := m.drv.Query(ctx, "SELECT to_regclass($1)", []any{schemaName + "." + m.ledger}, &rows); err != nil {
		return false, err
	}
	defer rows.Close()
	var name sql.NullString
	if rows.Next() {
		if err := rows.Scan(&name); err != nil {
			return false, err
		}
	}
	return name.Valid, rows.Err()
}

func (m *Migrator) ledgerEntries(ctx context.Context, schemaName string) ([]LedgerEntry, error) {
	cond, err := filter.Compile(filter.EQ("schema_name", schemaName), filter.Options{})
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		schema.QuoteIdents([]string{"schema_name", "version", "content_hash", "label", "applied_at"}),
		schema.QualifyTable(schemaName, m.ledger), cond.Clause, schema.QuoteIdent("version"))
	var rows sql.Rows
	if err := m.drv.Query(ctx, query, cond.Args, &rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.SchemaName, &e.Version, &e.ContentHash, &e.Label, &e.AppliedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// validateUnits rejects unit sets that must never start running: a nil
// apply function or a duplicate version would leave the ledger
// ambiguous.
func validateUnits(units []Unit) error {
	seen := make(map[int64]string, len(units))
	for _, u := range units {
		if u.Apply == nil {
			return schema.NewDefinitionError("", "", "migration unit %d (%s) has no apply function", u.Version, u.Label)
		}
		if prev, ok := seen[u.Version]; ok {
			return schema.NewDefinitionError("", "", "duplicate migration version %d (%q, %q)", u.Version, prev, u.Label)
		}
		seen[u.Version] = u.Label
	}
	return nil
}

func sortedUnits(units []Unit) []Unit {
	units = append([]Unit(nil), units...)
	sort.Slice(units, func(i, j int) bool { return units[i].Version < units[j].Version })
	return units
}
