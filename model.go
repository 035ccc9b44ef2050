package schemata

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/silverstone-i/pg-schemata-sub000/dialect"
	"github.com/silverstone-i/pg-schemata-sub000/dialect/sql"
	"github.com/silverstone-i/pg-schemata-sub000/filter"
	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// Row is one table row keyed by column name. Values are whatever the
// driver produced for reads, and whatever the caller supplies for
// writes.
type Row map[string]any

// Model runs statements against one table. It carries the normalized
// descriptor and the compiled column set, so every statement it builds
// is derived from declarative input rather than hand-written SQL.
// Models are stateless handles: cheap to create through the registry
// and safe for concurrent use.
type Model struct {
	drv   dialect.Driver
	table *schema.Table
	cs    *schema.ColumnSet
	log   *slog.Logger
}

// displayName is the unquoted table reference used in errors and logs.
func displayName(t *schema.Table) string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Table returns the normalized table descriptor the model was built
// from. Callers must treat it as read-only.
func (m *Model) Table() *schema.Table {
	return m.table
}

// ColumnSet returns the compiled column set.
func (m *Model) ColumnSet() *schema.ColumnSet {
	return m.cs
}

func (m *Model) name() string {
	return displayName(m.table)
}

func (m *Model) ident() string {
	return schema.QualifyTable(m.table.Schema, m.table.Name)
}

// where compiles the caller's conditions plus the table's soft-delete
// predicate. When required is set, an empty caller clause is refused
// before the soft-delete predicate could mask it.
func (m *Model) where(conds any, required, includeDeactivated bool, offset int) (*filter.Compiled, error) {
	if required {
		probe, err := filter.Compile(conds, filter.Options{Table: m.name()})
		if err != nil {
			return nil, err
		}
		if probe.Clause == "" {
			return nil, ErrEmptyConditions
		}
	}
	return filter.Compile(conds, filter.Options{
		Table:              m.name(),
		ArgOffset:          offset,
		SoftDelete:         m.table.SoftDelete,
		IncludeDeactivated: includeDeactivated,
	})
}

// queryErr and mutationErr attach table and operation context to
// driver errors. Constraint violations surface as ConstraintError so
// callers can branch on them without unwrapping kinds themselves.
func (m *Model) queryErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewQueryError(m.name(), op, err)
}

func (m *Model) mutationErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *sql.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case sql.KindUniqueViolation, sql.KindForeignKeyViolation, sql.KindCheckViolation:
			msg := m.name() + ": " + se.Kind.String()
			if se.Constraint != "" {
				msg += " (" + se.Constraint + ")"
			}
			return NewConstraintError(msg, err)
		}
	}
	return NewMutationError(m.name(), op, err)
}

// CreateTable provisions the table: CREATE SCHEMA, CREATE TABLE, and
// one CREATE INDEX per declared index. Missing indexes are not an
// error; the index step is simply omitted. Schema and table statements
// are IF NOT EXISTS guarded; index statements are only when the index
// declares it.
func (m *Model) CreateTable(ctx context.Context) error {
	if m.table.Schema != "" {
		stmt, err := schema.CreateSchema(m.table.Schema)
		if err != nil {
			return err
		}
		if err := m.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return m.mutationErr("create", err)
		}
	}
	ddl, err := schema.CreateTable(m.table)
	if err != nil {
		return err
	}
	if err := m.drv.Exec(ctx, ddl, []any{}, nil); err != nil {
		return m.mutationErr("create", err)
	}
	if len(m.table.Indexes) == 0 && len(m.table.Constraints.Indexes) == 0 {
		return nil
	}
	idxSQL, err := schema.CreateIndexes(m.table)
	if err != nil {
		return err
	}
	// One statement per line; executed separately because the pgx
	// extended protocol rejects multi-statement strings.
	for _, stmt := range strings.Split(idxSQL, "\n") {
		if stmt == "" {
			continue
		}
		if err := m.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return m.mutationErr("create", err)
		}
	}
	m.log.Info("table created")
	return nil
}

// placeholders numbers bound arguments left to right.
type placeholders struct {
	n    int
	args []any
}

func (p *placeholders) next(v any, mod string) string {
	p.args = append(p.args, v)
	p.n++
	return "$" + strconv.Itoa(p.n) + mod
}

// sortedKeys returns the row's column names in lexicographic order so
// validation reports the same offender for the same input every time.
func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// insertable reports whether name is one of the compiled insert
// columns.
func (m *Model) insertable(name string) bool {
	for _, c := range m.cs.Insert {
		if c.Name == name {
			return true
		}
	}
	return false
}

// checkInsertKeys rejects row keys the generated INSERT cannot carry,
// naming the first offender: undeclared columns, and declared columns
// the server owns (generated, auto keys, audit timestamps).
func (m *Model) checkInsertKeys(row Row) error {
	for _, k := range sortedKeys(row) {
		if m.insertable(k) {
			continue
		}
		if _, declared := m.table.Column(k); declared {
			return schema.NewDefinitionError(m.table.Name, k, "column is not insertable")
		}
		return schema.NewDefinitionError(m.table.Name, k, "unknown column")
	}
	return nil
}

// insertList resolves the column list for one row: columns the row
// provides, in compiled order, plus Init-backed columns the row omits.
func (m *Model) insertList(row Row) []schema.SetColumn {
	cols := make([]schema.SetColumn, 0, len(m.cs.Insert))
	for _, c := range m.cs.Insert {
		if _, ok := row[c.Name]; ok {
			cols = append(cols, c)
			continue
		}
		if c.Init != nil {
			cols = append(cols, c)
		}
	}
	return cols
}

// Insert writes one row and returns it as stored, server-generated
// columns included. Columns the row omits fall back to their Init
// value when the descriptor declares one, and to the database default
// otherwise.
func (m *Model) Insert(ctx context.Context, row Row) (Row, error) {
	if err := m.checkInsertKeys(row); err != nil {
		return nil, err
	}
	cols := m.insertList(row)
	if len(cols) == 0 {
		query := "INSERT INTO " + m.ident() + " DEFAULT VALUES RETURNING *"
		return m.queryOne(ctx, "insert", query, nil)
	}
	p := &placeholders{}
	names := make([]string, len(cols))
	values := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
		v, ok := row[c.Name]
		if !ok {
			v = c.Init()
		}
		values[i] = p.next(v, c.Mod)
	}
	query := "INSERT INTO " + m.ident() +
		" (" + schema.QuoteIdents(names) + ") VALUES (" + strings.Join(values, ", ") + ") RETURNING *"
	return m.queryOne(ctx, "insert", query, p.args)
}

// queryOne runs an INSERT/UPDATE with RETURNING and hands back the
// single returned row.
func (m *Model) queryOne(ctx context.Context, op, query string, args []any) (Row, error) {
	if args == nil {
		args = []any{}
	}
	var rows sql.Rows
	if err := m.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, m.mutationErr(op, err)
	}
	defer rows.Close()
	got, err := scanRows(&rows)
	if err != nil {
		return nil, m.mutationErr(op, err)
	}
	if len(got) == 0 {
		return nil, NewMutationError(m.name(), op, errors.New("no row returned"))
	}
	return got[0], nil
}

// BulkInsert writes rows in a single multi-row INSERT and returns the
// inserted count. Every row must carry the same columns as the first;
// the statement is one atomic INSERT, so either all rows land or none
// do.
func (m *Model) BulkInsert(ctx context.Context, rows []Row) (int64, error) {
	if len(rows) == 0 {
		return 0, schema.NewDefinitionError(m.table.Name, "", "bulk insert requires at least one row")
	}
	if err := m.checkInsertKeys(rows[0]); err != nil {
		return 0, err
	}
	cols := m.insertList(rows[0])
	if len(cols) == 0 {
		return 0, schema.NewDefinitionError(m.table.Name, "", "bulk insert requires at least one column")
	}
	template := make(map[string]struct{}, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		template[c.Name] = struct{}{}
		names[i] = c.Name
	}

	p := &placeholders{}
	groups := make([]string, len(rows))
	for i, row := range rows {
		for _, k := range sortedKeys(row) {
			if _, ok := template[k]; !ok {
				return 0, schema.NewDefinitionError(m.table.Name, k,
					"row %d does not match the first row's columns", i)
			}
		}
		values := make([]string, len(cols))
		for j, c := range cols {
			v, ok := row[c.Name]
			if !ok {
				if c.Init == nil {
					return 0, schema.NewDefinitionError(m.table.Name, c.Name, "row %d is missing a value", i)
				}
				v = c.Init()
			}
			values[j] = p.next(v, c.Mod)
		}
		groups[i] = "(" + strings.Join(values, ", ") + ")"
	}

	query := "INSERT INTO " + m.ident() +
		" (" + schema.QuoteIdents(names) + ") VALUES " + strings.Join(groups, ", ")
	var res sql.Result
	if err := m.drv.Exec(ctx, query, p.args, &res); err != nil {
		return 0, m.mutationErr("bulk insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, m.mutationErr("bulk insert", err)
	}
	return n, nil
}

// FindByID fetches one row by primary key. Soft-deleted rows read as
// absent. A miss is a NotFoundError carrying the key, matching
// ErrNotFound.
func (m *Model) FindByID(ctx context.Context, id any) (Row, error) {
	pk := m.table.Constraints.PrimaryKey
	if len(pk) != 1 {
		return nil, schema.NewDefinitionError(m.table.Name, "",
			"find by id requires a single-column primary key; use Select")
	}
	cond, err := m.where(filter.EQ(pk[0], id), false, false, 0)
	if err != nil {
		return nil, err
	}
	query := "SELECT * FROM " + m.ident() + " WHERE " + cond.Clause
	var rows sql.Rows
	if err := m.drv.Query(ctx, query, cond.Args, &rows); err != nil {
		return nil, m.queryErr("find", err)
	}
	defer rows.Close()
	got, err := scanRows(&rows)
	if err != nil {
		return nil, m.queryErr("find", err)
	}
	if len(got) == 0 {
		return nil, NewNotFoundErrorWithID(m.name(), id)
	}
	return got[0], nil
}

// selectSpec collects the optional parts of a SELECT.
type selectSpec struct {
	columns            []string
	orderBy            []string
	limit              int
	offset             int
	includeDeactivated bool
}

// SelectOption tunes a Select query.
type SelectOption func(*selectSpec)

// WithDeactivated includes soft-deleted rows in the result.
func WithDeactivated() SelectOption {
	return func(s *selectSpec) {
		s.includeDeactivated = true
	}
}

// WithColumns narrows the select list to the named columns.
func WithColumns(names ...string) SelectOption {
	return func(s *selectSpec) {
		s.columns = names
	}
}

// WithOrderBy sorts the result. Each entry is a column name with an
// optional direction, e.g. "email" or "created_at DESC".
func WithOrderBy(exprs ...string) SelectOption {
	return func(s *selectSpec) {
		s.orderBy = exprs
	}
}

// WithLimit caps the number of returned rows. Values below 1 leave the
// query uncapped.
func WithLimit(n int) SelectOption {
	return func(s *selectSpec) {
		s.limit = n
	}
}

// WithOffset skips the first n rows. Values below 1 are ignored.
func WithOffset(n int) SelectOption {
	return func(s *selectSpec) {
		s.offset = n
	}
}

// selectList validates and quotes the requested columns.
func (m *Model) selectList(names []string) (string, error) {
	if len(names) == 0 {
		return "*", nil
	}
	for _, n := range names {
		if _, ok := m.table.Column(n); !ok {
			return "", schema.NewDefinitionError(m.table.Name, n, "unknown column")
		}
	}
	return schema.QuoteIdents(names), nil
}

// orderBy validates each sort expression against the declared columns
// and renders the ORDER BY list. Column names are quoted; only ASC and
// DESC pass as directions, so caller input never reaches the statement
// unescaped.
func (m *Model) orderBy(exprs []string) (string, error) {
	if len(exprs) == 0 {
		return "", nil
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		fields := strings.Fields(e)
		if len(fields) == 0 || len(fields) > 2 {
			return "", schema.NewDefinitionError(m.table.Name, e, "malformed order by expression")
		}
		if _, ok := m.table.Column(fields[0]); !ok {
			return "", schema.NewDefinitionError(m.table.Name, fields[0], "unknown column")
		}
		part := schema.QuoteIdent(fields[0])
		if len(fields) == 2 {
			switch dir := strings.ToUpper(fields[1]); dir {
			case "ASC", "DESC":
				part += " " + dir
			default:
				return "", schema.NewDefinitionError(m.table.Name, fields[1], "sort direction must be ASC or DESC")
			}
		}
		parts[i] = part
	}
	return strings.Join(parts, ", "), nil
}

// Select returns the rows matching conds. A nil condition set selects
// every live row; soft-deleted rows are excluded unless
// WithDeactivated is given.
func (m *Model) Select(ctx context.Context, conds any, opts ...SelectOption) ([]Row, error) {
	var spec selectSpec
	for _, opt := range opts {
		opt(&spec)
	}
	list, err := m.selectList(spec.columns)
	if err != nil {
		return nil, err
	}
	order, err := m.orderBy(spec.orderBy)
	if err != nil {
		return nil, err
	}
	cond, err := m.where(conds, false, spec.includeDeactivated, 0)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(list)
	b.WriteString(" FROM ")
	b.WriteString(m.ident())
	if cond.Clause != "" {
		b.WriteString(" WHERE ")
		b.WriteString(cond.Clause)
	}
	if order != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(order)
	}
	if spec.limit > 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(spec.limit))
	}
	if spec.offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(spec.offset))
	}

	var rows sql.Rows
	if err := m.drv.Query(ctx, b.String(), cond.Args, &rows); err != nil {
		return nil, m.queryErr("select", err)
	}
	defer rows.Close()
	got, err := scanRows(&rows)
	if err != nil {
		return nil, m.queryErr("select", err)
	}
	return got, nil
}

// updatable reports whether callers may supply a value for name in an
// UPDATE. Expr-backed columns are server-owned and excluded.
func (m *Model) updatable(name string) bool {
	for _, c := range m.cs.Update {
		if c.Name == name {
			return c.Expr == ""
		}
	}
	return false
}

// checkUpdateKeys rejects data keys the generated UPDATE cannot carry:
// undeclared columns, and declared ones excluded from updates
// (immutable, key, generated, server-owned).
func (m *Model) checkUpdateKeys(data Row) error {
	for _, k := range sortedKeys(data) {
		if m.updatable(k) {
			continue
		}
		if _, declared := m.table.Column(k); declared {
			return schema.NewDefinitionError(m.table.Name, k, "column is not updatable")
		}
		return schema.NewDefinitionError(m.table.Name, k, "unknown column")
	}
	return nil
}

// setList builds the SET fragments for an UPDATE: caller data first
// (minus columns their Skip predicate rejects), then the audit
// columns. At least one caller column must survive, otherwise the
// statement would only touch audit fields.
func (m *Model) setList(data Row, p *placeholders) ([]string, error) {
	if err := m.checkUpdateKeys(data); err != nil {
		return nil, err
	}
	var set []string
	bound := 0
	for _, c := range m.cs.Update {
		if c.Expr != "" {
			set = append(set, schema.QuoteIdent(c.Name)+" = "+c.Expr)
			continue
		}
		v, ok := data[c.Name]
		if ok {
			if c.Skip != nil && c.Skip(v) {
				continue
			}
			set = append(set, schema.QuoteIdent(c.Name)+" = "+p.next(v, c.Mod))
			bound++
			continue
		}
		if c.Init != nil {
			set = append(set, schema.QuoteIdent(c.Name)+" = "+p.next(c.Init(), c.Mod))
		}
	}
	if bound == 0 {
		return nil, schema.NewDefinitionError(m.table.Name, "", "update requires at least one updatable column")
	}
	return set, nil
}

// Update modifies the live rows matching conds and returns how many
// changed. The condition set must be non-empty; unfiltered updates are
// refused. Audit columns are maintained automatically: updated_at
// takes the server clock, updated_by the descriptor's actor unless the
// data provides one.
func (m *Model) Update(ctx context.Context, data Row, conds any) (int64, error) {
	p := &placeholders{}
	set, err := m.setList(data, p)
	if err != nil {
		return 0, err
	}
	cond, err := m.where(conds, true, false, len(p.args))
	if err != nil {
		return 0, err
	}
	query := "UPDATE " + m.ident() + " SET " + strings.Join(set, ", ") + " WHERE " + cond.Clause
	return m.execAffected(ctx, "update", query, append(p.args, cond.Args...))
}

// Delete removes the live rows matching conds and returns how many
// went away. This is a hard delete; use Deactivate to soft delete.
// The condition set must be non-empty.
func (m *Model) Delete(ctx context.Context, conds any) (int64, error) {
	cond, err := m.where(conds, true, false, 0)
	if err != nil {
		return 0, err
	}
	query := "DELETE FROM " + m.ident() + " WHERE " + cond.Clause
	return m.execAffected(ctx, "delete", query, cond.Args)
}

// Deactivate soft-deletes the live rows matching conds: sets
// deactivated_at to the server clock and maintains the audit columns.
// Requires a soft-delete table and a non-empty condition set.
func (m *Model) Deactivate(ctx context.Context, conds any) (int64, error) {
	return m.flipDeactivated(ctx, "deactivate", conds)
}

// Reactivate restores soft-deleted rows matching conds by clearing
// deactivated_at. The rows being targeted are deactivated, so the
// usual soft-delete exclusion does not apply here.
func (m *Model) Reactivate(ctx context.Context, conds any) (int64, error) {
	return m.flipDeactivated(ctx, "reactivate", conds)
}

func (m *Model) flipDeactivated(ctx context.Context, op string, conds any) (int64, error) {
	if !m.table.SoftDelete {
		return 0, schema.NewDefinitionError(m.table.Name, schema.SoftDeleteColumn,
			"table does not declare soft delete")
	}
	p := &placeholders{}
	value := "now()"
	if op == "reactivate" {
		value = "NULL"
	}
	set := []string{schema.QuoteIdent(schema.SoftDeleteColumn) + " = " + value}
	for _, c := range m.cs.Update {
		switch {
		case c.Expr != "":
			set = append(set, schema.QuoteIdent(c.Name)+" = "+c.Expr)
		case c.Init != nil:
			set = append(set, schema.QuoteIdent(c.Name)+" = "+p.next(c.Init(), c.Mod))
		}
	}
	cond, err := m.where(conds, true, op == "reactivate", len(p.args))
	if err != nil {
		return 0, err
	}
	query := "UPDATE " + m.ident() + " SET " + strings.Join(set, ", ") + " WHERE " + cond.Clause
	return m.execAffected(ctx, op, query, append(p.args, cond.Args...))
}

func (m *Model) execAffected(ctx context.Context, op, query string, args []any) (int64, error) {
	if args == nil {
		args = []any{}
	}
	var res sql.Result
	if err := m.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, m.mutationErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, m.mutationErr(op, err)
	}
	return n, nil
}

// Count returns the number of live rows matching conds. A nil
// condition set counts every live row.
func (m *Model) Count(ctx context.Context, conds any) (int64, error) {
	cond, err := m.where(conds, false, false, 0)
	if err != nil {
		return 0, err
	}
	query := "SELECT COUNT(*) FROM " + m.ident()
	if cond.Clause != "" {
		query += " WHERE " + cond.Clause
	}
	var rows sql.Rows
	if err := m.drv.Query(ctx, query, cond.Args, &rows); err != nil {
		return 0, m.queryErr("count", err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, m.queryErr("count", err)
		}
	}
	return n, rows.Err()
}

// Exists reports whether any live row matches conds. Unlike Count and
// Select, an empty condition set is refused: existence of arbitrary
// rows is never a meaningful question, so an accidentally empty filter
// fails loudly instead of answering about the whole table.
func (m *Model) Exists(ctx context.Context, conds any) (bool, error) {
	cond, err := m.where(conds, true, false, 0)
	if err != nil {
		return false, err
	}
	query := "SELECT EXISTS (SELECT 1 FROM " + m.ident() + " WHERE " + cond.Clause + ")"
	var rows sql.Rows
	if err := m.drv.Query(ctx, query, cond.Args, &rows); err != nil {
		return false, m.queryErr("exists", err)
	}
	defer rows.Close()
	var ok bool
	if rows.Next() {
		if err := rows.Scan(&ok); err != nil {
			return false, m.queryErr("exists", err)
		}
	}
	return ok, rows.Err()
}

// TruncateOption tunes a Truncate statement.
type TruncateOption func(*truncateSpec)

type truncateSpec struct {
	restartIdentity bool
	cascade         bool
}

// WithRestartIdentity resets owned sequences along with the data.
func WithRestartIdentity() TruncateOption {
	return func(s *truncateSpec) {
		s.restartIdentity = true
	}
}

// WithCascade truncates tables with foreign keys onto this one too.
func WithCascade() TruncateOption {
	return func(s *truncateSpec) {
		s.cascade = true
	}
}

// Truncate removes every row, soft-deleted ones included.
func (m *Model) Truncate(ctx context.Context, opts ...TruncateOption) error {
	var spec truncateSpec
	for _, opt := range opts {
		opt(&spec)
	}
	query := "TRUNCATE TABLE " + m.ident()
	if spec.restartIdentity {
		query += " RESTART IDENTITY"
	}
	if spec.cascade {
		query += " CASCADE"
	}
	if err := m.drv.Exec(ctx, query, []any{}, nil); err != nil {
		return m.mutationErr("truncate", err)
	}
	return nil
}

// scanRows drains rows into maps keyed by the result's column names.
func scanRows(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []Row
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
