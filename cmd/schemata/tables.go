package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// yamlFile is the top-level shape of a table definitions file.
type yamlFile struct {
	Tables []yamlTable `yaml:"tables"`
}

// yamlTable mirrors schema.Table with YAML field names. The schema
// package stays serialization-free; this file owns the mapping.
type yamlTable struct {
	Schema      string          `yaml:"schema"`
	Name        string          `yaml:"name"`
	Columns     []yamlColumn    `yaml:"columns"`
	Constraints yamlConstraints `yaml:"constraints"`
	Indexes     []yamlIndex     `yaml:"indexes"`
	AuditFields auditSpec       `yaml:"audit_fields"`
	SoftDelete  bool            `yaml:"soft_delete"`
}

type yamlColumn struct {
	Name      string         `yaml:"name"`
	Type      string         `yaml:"type"`
	NotNull   bool           `yaml:"not_null"`
	Default   any            `yaml:"default"`
	Immutable bool           `yaml:"immutable"`
	Generated *yamlGenerated `yaml:"generated"`
}

type yamlGenerated struct {
	Expr      string `yaml:"expr"`
	Stored    bool   `yaml:"stored"`
	ByDefault bool   `yaml:"by_default"`
}

type yamlConstraints struct {
	PrimaryKey  []string         `yaml:"primary_key"`
	Unique      [][]string       `yaml:"unique"`
	ForeignKeys []yamlForeignKey `yaml:"foreign_keys"`
	Checks      []yamlCheck      `yaml:"checks"`
	Indexes     []yamlIndex      `yaml:"indexes"`
}

type yamlForeignKey struct {
	Columns []string `yaml:"columns"`
	// References must be a mapping {schema, table, columns}; a plain
	// string is rejected with a definition error.
	References yaml.Node `yaml:"references"`
	OnDelete   string    `yaml:"on_delete"`
	OnUpdate   string    `yaml:"on_update"`
}

type yamlCheck struct {
	Name string `yaml:"name"`
	Expr string `yaml:"expr"`
}

type yamlIndex struct {
	Name        string            `yaml:"name"`
	Columns     []yamlIndexColumn `yaml:"columns"`
	Using       string            `yaml:"using"`
	Where       string            `yaml:"where"`
	Unique      bool              `yaml:"unique"`
	With        string            `yaml:"with"`
	Tablespace  string            `yaml:"tablespace"`
	IfNotExists bool              `yaml:"if_not_exists"`
}

// yamlIndexColumn accepts either the string shorthand ("email") or the
// full form ({name: email, order: DESC, opclass: text_pattern_ops}).
type yamlIndexColumn struct {
	col schema.IndexColumn
}

func (c *yamlIndexColumn) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&c.col.Name)
	case yaml.MappingNode:
		var obj struct {
			Name    string `yaml:"name"`
			OpClass string `yaml:"opclass"`
			Order   string `yaml:"order"`
		}
		if err := value.Decode(&obj); err != nil {
			return err
		}
		c.col = schema.IndexColumn{Name: obj.Name, OpClass: obj.OpClass, Order: obj.Order}
		return nil
	default:
		return fmt.Errorf("index column: expected string or mapping, got %s", nodeKind(value))
	}
}

// auditSpec accepts the boolean shorthand (audit_fields: true) or the
// full config mapping ({actor_type, actor_nullable, actor_default}).
type auditSpec struct {
	enabled bool
	cfg     schema.AuditConfig
}

func (a *auditSpec) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&a.enabled)
	case yaml.MappingNode:
		var obj struct {
			ActorType     string `yaml:"actor_type"`
			ActorNullable bool   `yaml:"actor_nullable"`
			ActorDefault  string `yaml:"actor_default"`
		}
		if err := value.Decode(&obj); err != nil {
			return err
		}
		a.enabled = true
		a.cfg = schema.AuditConfig{
			ActorType:     obj.ActorType,
			ActorNullable: obj.ActorNullable,
			ActorDefault:  obj.ActorDefault,
		}
		return nil
	default:
		return fmt.Errorf("audit_fields: expected bool or mapping, got %s", nodeKind(value))
	}
}

// LoadTables reads declarative table definitions from a YAML file.
func LoadTables(path string) ([]*schema.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read table definitions: %w", err)
	}
	tables, err := ParseTables(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// ParseTables decodes YAML table definitions into table descriptors.
// Unknown keys are rejected so typos surface as errors instead of
// silently dropped settings.
func ParseTables(data []byte) ([]*schema.Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc yamlFile
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse table definitions: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, errors.New("no tables defined")
	}
	tables := make([]*schema.Table, 0, len(doc.Tables))
	for _, yt := range doc.Tables {
		t, err := yt.toTable()
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (yt yamlTable) toTable() (*schema.Table, error) {
	t := &schema.Table{
		Schema:     yt.Schema,
		Name:       yt.Name,
		SoftDelete: yt.SoftDelete,
	}
	if yt.AuditFields.enabled {
		cfg := yt.AuditFields.cfg
		t.AuditFields = &cfg
	}
	for _, yc := range yt.Columns {
		t.Columns = append(t.Columns, yc.toColumn())
	}
	t.Constraints = schema.Constraints{
		PrimaryKey: yt.Constraints.PrimaryKey,
		Unique:     yt.Constraints.Unique,
	}
	for _, fk := range yt.Constraints.ForeignKeys {
		out, err := fk.toForeignKey(yt.Name)
		if err != nil {
			return nil, err
		}
		t.Constraints.ForeignKeys = append(t.Constraints.ForeignKeys, out)
	}
	for _, ck := range yt.Constraints.Checks {
		t.Constraints.Checks = append(t.Constraints.Checks, schema.Check{Name: ck.Name, Expr: ck.Expr})
	}
	for _, idx := range yt.Constraints.Indexes {
		t.Constraints.Indexes = append(t.Constraints.Indexes, idx.toIndex())
	}
	for _, idx := range yt.Indexes {
		t.Indexes = append(t.Indexes, idx.toIndex())
	}
	return t, nil
}

func (yc yamlColumn) toColumn() schema.Column {
	c := schema.Column{
		Name:      yc.Name,
		Type:      yc.Type,
		NotNull:   yc.NotNull,
		Default:   yc.Default,
		Immutable: yc.Immutable,
	}
	if yc.Generated != nil {
		c.Generated = &schema.Generated{
			Expr:      yc.Generated.Expr,
			Stored:    yc.Generated.Stored,
			ByDefault: yc.Generated.ByDefault,
		}
	}
	return c
}

func (fk yamlForeignKey) toForeignKey(table string) (schema.ForeignKey, error) {
	out := schema.ForeignKey{
		Columns:  fk.Columns,
		OnDelete: fk.OnDelete,
		OnUpdate: fk.OnUpdate,
	}
	switch fk.References.Kind {
	case yaml.MappingNode:
		var ref struct {
			Schema  string   `yaml:"schema"`
			Table   string   `yaml:"table"`
			Columns []string `yaml:"columns"`
		}
		if err := fk.References.Decode(&ref); err != nil {
			return out, err
		}
		out.Ref = schema.Ref{Schema: ref.Schema, Table: ref.Table, Columns: ref.Columns}
		return out, nil
	case 0:
		return out, schema.NewDefinitionError(table, strings.Join(fk.Columns, ","),
			"foreign key requires a references mapping {schema, table, columns}")
	default:
		return out, schema.NewDefinitionError(table, strings.Join(fk.Columns, ","),
			"foreign key references must be a mapping {schema, table, columns}, got %s", nodeKind(&fk.References))
	}
}

func (yi yamlIndex) toIndex() schema.Index {
	cols := make([]schema.IndexColumn, len(yi.Columns))
	for i, c := range yi.Columns {
		cols[i] = c.col
	}
	return schema.Index{
		Name:        yi.Name,
		Columns:     cols,
		Using:       yi.Using,
		Where:       yi.Where,
		Unique:      yi.Unique,
		With:        yi.With,
		Tablespace:  yi.Tablespace,
		IfNotExists: yi.IfNotExists,
	}
}

func nodeKind(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar (" + n.Value + ")"
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "empty node"
	}
}
