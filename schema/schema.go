package schema

import (
	"fmt"
	"strings"
)

// Column describes a single table column.
type Column struct {
	// Name is the column name, unquoted.
	Name string
	// Type is the raw SQL type, e.g. "varchar(255)" or "timestamptz".
	Type string
	// NotNull adds a NOT NULL constraint.
	NotNull bool
	// Default is the column default: a literal value or a SQL expression
	// string. See formatDefault for the quoting heuristic. Nil means no
	// default.
	Default any
	// Immutable excludes the column from generated UPDATE statements.
	Immutable bool
	// Generated declares the column as computed. Generated columns take
	// no NOT NULL, DEFAULT, or caller-supplied values.
	Generated *Generated
	// Props tunes how the column participates in generated
	// INSERT/UPDATE statements.
	Props *ColumnProps
}

// Generated declares a generated (computed) column expression.
type Generated struct {
	// Expr is the SQL expression the column is computed from.
	Expr string
	// Stored materializes the column on write.
	Stored bool
	// ByDefault emits GENERATED BY DEFAULT instead of GENERATED ALWAYS.
	ByDefault bool
}

// ColumnProps carries per-column behavior for generated statements.
// All fields are optional.
type ColumnProps struct {
	// Mod is a cast modifier appended to the column's placeholder,
	// e.g. "::jsonb".
	Mod string
	// Skip excludes the column from an UPDATE when it returns true for
	// the value the caller supplied.
	Skip func(v any) bool
	// Cond marks the column as a key column: used in WHERE clauses,
	// never updated.
	Cond bool
	// Init supplies a value when the caller omitted one.
	Init func() any
}

// Ref is the structured target of a foreign key.
type Ref struct {
	// Schema is the referenced schema. Empty means the owning table's
	// schema; a dotted Table overrides it.
	Schema string
	// Table is the referenced table. A dotted name ("other.users")
	// carries its own schema.
	Table string
	// Columns are the referenced column names.
	Columns []string
}

// ForeignKey declares a foreign-key constraint.
type ForeignKey struct {
	// Columns are the local column names.
	Columns []string
	// Ref is the referenced schema/table/columns. It must be the
	// structured form; the YAML front end rejects plain-string
	// references before they reach the compiler.
	Ref Ref
	// OnDelete and OnUpdate are referential actions, e.g. "CASCADE".
	OnDelete string
	OnUpdate string
}

// Check declares a CHECK constraint.
type Check struct {
	// Name is optional; unnamed checks are emitted without CONSTRAINT.
	Name string
	// Expr is the boolean SQL expression.
	Expr string
}

// IndexColumn is one indexed column with optional operator class and
// sort order.
type IndexColumn struct {
	Name    string
	OpClass string
	Order   string // "ASC" or "DESC"; empty keeps the server default
}

// Cols is shorthand for a plain list of index columns.
func Cols(names ...string) []IndexColumn {
	cols := make([]IndexColumn, len(names))
	for i, n := range names {
		cols[i] = IndexColumn{Name: n}
	}
	return cols
}

// Index declares a secondary index.
type Index struct {
	// Name is optional; generated names derive from the table and
	// column names.
	Name    string
	Columns []IndexColumn
	// Using selects the index method (btree, gin, gist, ...).
	Using string
	// Where makes the index partial.
	Where string
	// Unique creates a UNIQUE index.
	Unique bool
	// With holds storage parameters, e.g. "fillfactor = 70".
	With string
	// Tablespace places the index in a named tablespace.
	Tablespace string
	// IfNotExists guards the CREATE INDEX statement.
	IfNotExists bool
}

// Constraints groups the table-level constraints.
type Constraints struct {
	// PrimaryKey is the ordered list of primary-key column names.
	// Every table must declare at least one before DDL or column-set
	// compilation.
	PrimaryKey []string
	// Unique holds column-name groups, one UNIQUE constraint each.
	Unique [][]string
	// ForeignKeys holds the foreign-key constraints.
	ForeignKeys []ForeignKey
	// Checks holds the CHECK constraints.
	Checks []Check
	// Indexes may also be declared here; CreateIndexes merges them
	// with Table.Indexes.
	Indexes []Index
}

// AuditConfig configures the injected audit columns. The zero value is
// the boolean-true shorthand: varchar(50) actor columns, NOT NULL,
// defaulting to the "system" actor.
type AuditConfig struct {
	// ActorType overrides the created_by/updated_by column type.
	ActorType string
	// ActorNullable drops NOT NULL from the actor columns.
	ActorNullable bool
	// ActorDefault overrides the actor columns' default value.
	ActorDefault string
}

// Table is the full declarative description of one relational table.
type Table struct {
	// Schema is the database schema (namespace) the table lives in.
	Schema string
	// Name is the table name.
	Name string
	// Columns are the declared columns, in order.
	Columns []Column
	// Constraints are the table-level constraints.
	Constraints Constraints
	// Indexes may be declared here or in Constraints.Indexes.
	Indexes []Index
	// AuditFields, when non-nil, injects created_at/created_by/
	// updated_at/updated_by columns (see Normalize).
	AuditFields *AuditConfig
	// SoftDelete guarantees a nullable deactivated_at column and makes
	// every filtered read/update/delete exclude deactivated rows unless
	// the caller opts in.
	SoftDelete bool
}

// Validate checks the structural invariants every compiler entry point
// relies on: a table name, at least one primary-key column, unique
// column names, and constraint/index references that resolve to
// declared columns.
func (t *Table) Validate() error {
	if t.Name == "" {
		return NewDefinitionError("", "", "table name is required")
	}
	if strings.Contains(t.Name, ".") {
		return NewDefinitionError(t.Name, "", "table name must not be schema-qualified; set Schema instead")
	}
	if len(t.Columns) == 0 {
		return NewDefinitionError(t.Name, "", "at least one column is required")
	}
	names := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return NewDefinitionError(t.Name, "", "column name is required")
		}
		if c.Type == "" {
			return NewDefinitionError(t.Name, c.Name, "column type is required")
		}
		if _, dup := names[c.Name]; dup {
			return NewDefinitionError(t.Name, c.Name, "duplicate column")
		}
		names[c.Name] = struct{}{}
		if c.Generated != nil && c.Generated.Expr == "" {
			return NewDefinitionError(t.Name, c.Name, "generated column requires an expression")
		}
	}
	if len(t.Constraints.PrimaryKey) == 0 {
		return NewDefinitionError(t.Name, "", "at least one primary key column is required")
	}
	for _, pk := range t.Constraints.PrimaryKey {
		if _, ok := names[pk]; !ok {
			return NewDefinitionError(t.Name, pk, "primary key references an undeclared column")
		}
	}
	for _, group := range t.Constraints.Unique {
		if len(group) == 0 {
			return NewDefinitionError(t.Name, "", "unique constraint requires at least one column")
		}
		for _, col := range group {
			if _, ok := names[col]; !ok {
				return NewDefinitionError(t.Name, col, "unique constraint references an undeclared column")
			}
		}
	}
	for _, fk := range t.Constraints.ForeignKeys {
		if err := validateForeignKey(t.Name, fk, names); err != nil {
			return err
		}
	}
	for _, ck := range t.Constraints.Checks {
		if strings.TrimSpace(ck.Expr) == "" {
			return NewDefinitionError(t.Name, ck.Name, "check constraint requires an expression")
		}
	}
	for _, idx := range t.mergedIndexes() {
		if len(idx.Columns) == 0 {
			return NewDefinitionError(t.Name, idx.Name, "index requires at least one column")
		}
		for _, col := range idx.Columns {
			if _, ok := names[col.Name]; !ok {
				return NewDefinitionError(t.Name, col.Name, "index references an undeclared column")
			}
		}
	}
	return nil
}

func validateForeignKey(table string, fk ForeignKey, names map[string]struct{}) error {
	if len(fk.Columns) == 0 {
		return NewDefinitionError(table, "", "foreign key requires at least one column")
	}
	for _, col := range fk.Columns {
		if _, ok := names[col]; !ok {
			return NewDefinitionError(table, col, "foreign key references an undeclared column")
		}
	}
	if fk.Ref.Table == "" {
		return NewDefinitionError(table, strings.Join(fk.Columns, ","),
			"foreign key requires a structured reference {schema, table, columns}")
	}
	if len(fk.Ref.Columns) == 0 {
		return NewDefinitionError(table, fk.Ref.Table, "foreign key reference requires column names")
	}
	if len(fk.Ref.Columns) != len(fk.Columns) {
		return NewDefinitionError(table, fk.Ref.Table,
			"foreign key column count (%d) does not match referenced column count (%d)",
			len(fk.Columns), len(fk.Ref.Columns))
	}
	return nil
}

// ValidateColumnProps rejects column-prop declarations that cannot work:
// skip or init behavior on generated columns, and init values on
// auto-generated primary keys. Nil Skip/Init functions simply mean the
// behavior is absent.
func (t *Table) ValidateColumnProps() error {
	pk := make(map[string]struct{}, len(t.Constraints.PrimaryKey))
	for _, name := range t.Constraints.PrimaryKey {
		pk[name] = struct{}{}
	}
	for _, c := range t.Columns {
		if c.Props == nil {
			continue
		}
		if c.Generated != nil && (c.Props.Skip != nil || c.Props.Init != nil) {
			return NewDefinitionError(t.Name, c.Name, "generated column cannot declare skip or init props")
		}
		if _, isPK := pk[c.Name]; isPK && isAutoKeyColumn(c) && c.Props.Init != nil {
			return NewDefinitionError(t.Name, c.Name, "auto-generated key column cannot declare an init prop")
		}
	}
	return nil
}

// Column returns the declared column with the given name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// mergedIndexes returns the index definitions from both legal
// declaration sites, top-level first.
func (t *Table) mergedIndexes() []Index {
	if len(t.Indexes) == 0 {
		return t.Constraints.Indexes
	}
	if len(t.Constraints.Indexes) == 0 {
		return t.Indexes
	}
	merged := make([]Index, 0, len(t.Indexes)+len(t.Constraints.Indexes))
	merged = append(merged, t.Indexes...)
	merged = append(merged, t.Constraints.Indexes...)
	return merged
}

// isAutoKeyColumn reports whether the column's value is produced by the
// server: serial-family types, or uuid with a default expression. Such
// columns never appear in generated INSERT/UPDATE lists.
func isAutoKeyColumn(c Column) bool {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "serial", "bigserial", "smallserial":
		return true
	case "uuid":
		return c.Default != nil
	default:
		return false
	}
}

// String implements fmt.Stringer for debugging.
func (t *Table) String() string {
	return fmt.Sprintf("schema.Table(%s)", QualifyTable(t.Schema, t.Name))
}
