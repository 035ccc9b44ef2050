package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CreateSchema returns the CREATE SCHEMA statement for the given schema name.
func CreateSchema(name string) (string, error) {
	if name == "" {
		return "", NewDefinitionError("", "", "schema name is required")
	}
	return "CREATE SCHEMA IF NOT EXISTS " + QuoteIdent(name) + ";", nil
}

// CreateTable compiles the table descriptor into a CREATE TABLE
// statement. Audit and soft-delete columns are injected first (on a
// copy), then columns, the primary key, and named UNIQUE / FOREIGN KEY /
// CHECK constraints are emitted in declaration order. Output is
// deterministic: the same descriptor always yields byte-identical SQL,
// constraint names included. Index definitions are not part of the
// statement; see CreateIndexes.
func CreateTable(t *Table) (string, error) {
	n := t.Normalize()
	if err := n.Validate(); err != nil {
		return "", err
	}
	used := make(map[string]int)
	lines := make([]string, 0, len(n.Columns)+4)
	for _, c := range n.Columns {
		lines = append(lines, columnLine(n.Schema, c))
	}
	lines = append(lines, "PRIMARY KEY ("+QuoteIdents(n.Constraints.PrimaryKey)+")")
	for _, group := range n.Constraints.Unique {
		name := dedupe(used, UniqueConstraintName(n.Name, group), func(i int) string {
			return ConstraintName("uidx_", n.Name, group, strconv.Itoa(i))
		})
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", QuoteIdent(name), QuoteIdents(group)))
	}
	for _, fk := range n.Constraints.ForeignKeys {
		lines = append(lines, foreignKeyLine(n, fk, used))
	}
	for _, ck := range n.Constraints.Checks {
		if ck.Name != "" {
			lines = append(lines, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", QuoteIdent(ck.Name), ck.Expr))
		} else {
			lines = append(lines, fmt.Sprintf("CHECK (%s)", ck.Expr))
		}
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		QualifyTable(n.Schema, n.Name), strings.Join(lines, ",\n  ")), nil
}

// CreateIndexes compiles every index declared on the table (top-level
// and inside Constraints) into CREATE INDEX statements, one per line.
// Requesting index SQL from a table that declares none is a definition
// error; CreateTable itself never requires indexes.
func CreateIndexes(t *Table) (string, error) {
	n := t.Normalize()
	if err := n.Validate(); err != nil {
		return "", err
	}
	indexes := n.mergedIndexes()
	if len(indexes) == 0 {
		return "", NewDefinitionError(n.Name, "", "no indexes defined")
	}
	used := make(map[string]int)
	stmts := make([]string, len(indexes))
	for i, idx := range indexes {
		stmts[i] = indexStatement(n, idx, used)
	}
	return strings.Join(stmts, "\n"), nil
}

// columnLine emits one column definition. Generated columns take the
// GENERATED clause and nothing else; ordinary columns take NOT NULL and
// DEFAULT as declared.
func columnLine(schemaName string, c Column) string {
	var b strings.Builder
	b.WriteString(QuoteIdent(c.Name))
	b.WriteByte(' ')
	b.WriteString(c.Type)
	if c.Generated != nil {
		mode := "ALWAYS"
		if c.Generated.ByDefault {
			mode = "BY DEFAULT"
		}
		fmt.Fprintf(&b, " GENERATED %s AS (%s)", mode, c.Generated.Expr)
		if c.Generated.Stored {
			b.WriteString(" STORED")
		}
		return b.String()
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		b.WriteString(" DEFAULT ")
		b.WriteString(formatDefault(schemaName, c.Default))
	}
	return b.String()
}

// foreignKeyLine emits one FOREIGN KEY constraint. A dotted Ref.Table
// carries its own schema and overrides Ref.Schema; an empty reference
// schema inherits the owning table's.
func foreignKeyLine(t *Table, fk ForeignKey, used map[string]int) string {
	refSchema, refTable := fk.Ref.Schema, fk.Ref.Table
	if s, tbl, ok := strings.Cut(refTable, "."); ok {
		refSchema, refTable = s, tbl
	}
	if refSchema == "" {
		refSchema = t.Schema
	}
	name := dedupe(used, ForeignKeyConstraintName(t.Name, fk.Columns, refTable), func(i int) string {
		return ConstraintName("fk_", t.Name, fk.Columns, refTable, strconv.Itoa(i))
	})
	var b strings.Builder
	fmt.Fprintf(&b, "CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		QuoteIdent(name), QuoteIdents(fk.Columns),
		QualifyTable(refSchema, refTable), QuoteIdents(fk.Ref.Columns))
	if fk.OnDelete != "" {
		b.WriteString(" ON DELETE " + strings.ToUpper(fk.OnDelete))
	}
	if fk.OnUpdate != "" {
		b.WriteString(" ON UPDATE " + strings.ToUpper(fk.OnUpdate))
	}
	return b.String()
}

// indexStatement emits one CREATE INDEX statement.
func indexStatement(t *Table, idx Index, used map[string]int) string {
	name := idx.Name
	if name == "" {
		name = indexName(t.Name, idx.Columns)
	}
	name = dedupe(used, name, func(i int) string {
		return fmt.Sprintf("%s_%d", name, i+1)
	})
	var b strings.Builder
	b.WriteString("CREATE ")
	if idx.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	if idx.IfNotExists {
		b.WriteString("IF NOT EXISTS ")
	}
	b.WriteString(QuoteIdent(name))
	b.WriteString(" ON ")
	b.WriteString(QualifyTable(t.Schema, t.Name))
	if idx.Using != "" {
		b.WriteString(" USING " + idx.Using)
	}
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		col := QuoteIdent(c.Name)
		if c.OpClass != "" {
			col += " " + c.OpClass
		}
		if c.Order != "" {
			col += " " + strings.ToUpper(c.Order)
		}
		cols[i] = col
	}
	b.WriteString(" (" + strings.Join(cols, ", ") + ")")
	if idx.With != "" {
		b.WriteString(" WITH (" + idx.With + ")")
	}
	if idx.Tablespace != "" {
		b.WriteString(" TABLESPACE " + idx.Tablespace)
	}
	if idx.Where != "" {
		b.WriteString(" WHERE " + idx.Where)
	}
	b.WriteString(";")
	return b.String()
}

// dedupe hands back the name unless it was already used in this
// compilation, in which case regen produces a discriminated variant.
// Declaration order makes the result deterministic.
func dedupe(used map[string]int, name string, regen func(i int) string) string {
	n := used[name]
	used[name] = n + 1
	if n == 0 {
		return name
	}
	return regen(n)
}

var (
	zeroArgCallRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\(\s*\)$`)
	numericRe     = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
)

// builtinDefaults are server-provided functions and keywords that stay
// unqualified and unquoted. Lookup is case-insensitive with whitespace
// stripped.
var builtinDefaults = map[string]struct{}{
	"now()":              {},
	"current_timestamp":  {},
	"current_date":       {},
	"current_time":       {},
	"localtime":          {},
	"localtimestamp":     {},
	"gen_random_uuid()":  {},
	"uuid_generate_v4()": {},
	"null":               {},
	"true":               {},
	"false":              {},
}

// formatDefault renders a column default for DDL. Strings go through a
// best-effort heuristic (see formatStringDefault); other Go values are
// rendered literally.
func formatDefault(schemaName string, v any) string {
	switch x := v.(type) {
	case string:
		return formatStringDefault(schemaName, x)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return "NULL"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", x)
	default:
		return QuoteLiteral(fmt.Sprintf("%v", x))
	}
}

// formatStringDefault classifies a string default. The rules, in order:
// an already-quoted value passes through; recognized builtins pass
// through; numerics pass through; a zero-argument unqualified call is
// namespaced to the target schema; anything containing parentheses is
// treated as an expression and passed through; everything else is
// auto-quoted as a literal.
//
// This is a heuristic, not a SQL expression parser. Composite
// expressions without parentheses (interval literals, ARRAY syntax,
// casts on quoted strings) are not recognized and should be declared
// pre-quoted by the caller.
func formatStringDefault(schemaName, s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return "''"
	}
	if strings.HasPrefix(v, "'") {
		return v
	}
	folded := strings.ToLower(strings.Join(strings.Fields(v), ""))
	if _, ok := builtinDefaults[folded]; ok {
		return v
	}
	if numericRe.MatchString(v) {
		return v
	}
	if zeroArgCallRe.MatchString(v) {
		if schemaName == "" {
			return v
		}
		return QuoteIdent(schemaName) + "." + v
	}
	if strings.Contains(v, "(") {
		return v
	}
	return QuoteLiteral(v)
}
