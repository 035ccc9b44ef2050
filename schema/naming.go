package schema

import (
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"
)

// maxHumanPart caps the readable portion of generated constraint names
// so the trailing hash survives the Postgres 63-byte identifier limit.
const maxHumanPart = 40

// QuoteIdent wraps an identifier in double quotes, doubling any embedded
// quote characters.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteIdents quotes each identifier and joins them with ", ".
func QuoteIdents(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// QualifyTable returns the quoted, schema-qualified table reference.
// A dotted table name carries its own schema and overrides schemaName.
// An empty schema yields the bare quoted table name.
func QualifyTable(schemaName, table string) string {
	if s, t, ok := strings.Cut(table, "."); ok {
		schemaName, table = s, t
	}
	if schemaName == "" {
		return QuoteIdent(table)
	}
	return QuoteIdent(schemaName) + "." + QuoteIdent(table)
}

// QuoteLiteral returns the string as a single-quoted SQL literal with
// embedded quotes doubled.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ConstraintName builds a deterministic constraint name: a readable
// prefix and table/column part followed by a short content hash. The
// hash folds in table, columns, and any extra discriminators (the
// referenced table for foreign keys), so repeated compilation yields
// byte-identical names and distinct constraints on the same columns do
// not collide.
func ConstraintName(prefix, table string, cols []string, extra ...string) string {
	parts := append([]string{table}, cols...)
	human := strings.Join(parts, "_")
	if len(human) > maxHumanPart {
		human = human[:maxHumanPart]
	}
	sum := strings.Join(append(parts, extra...), "|")
	return fmt.Sprintf("%s%s_%08x", prefix, human, uint32(xxh3.HashString(sum)))
}

// UniqueConstraintName names a UNIQUE constraint on the given columns.
func UniqueConstraintName(table string, cols []string) string {
	return ConstraintName("uidx_", table, cols)
}

// ForeignKeyConstraintName names a FOREIGN KEY constraint. The
// referenced table participates in the hash so two keys on the same
// local columns pointing at different tables get distinct names.
func ForeignKeyConstraintName(table string, cols []string, refTable string) string {
	return ConstraintName("fk_", table, cols, refTable)
}

// indexName builds the generated name for an unnamed index.
func indexName(table string, cols []IndexColumn) string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	human := strings.Join(append([]string{table}, names...), "_")
	if len(human) > maxHumanPart+8 {
		human = human[:maxHumanPart+8]
	}
	return "idx_" + human
}
