package schema

// SetColumn is one column of a compiled column set, carrying everything
// a statement builder needs to bind it.
type SetColumn struct {
	// Name is the column name.
	Name string
	// Mod is the cast modifier appended to the bound placeholder.
	Mod string
	// Expr, when non-empty, replaces the placeholder with a verbatim
	// server-side expression; the column binds no parameter.
	Expr string
	// Cond marks a key column used in WHERE clauses.
	Cond bool
	// Skip excludes the column from an UPDATE for values it rejects.
	Skip func(v any) bool
	// Init supplies a value when the caller omitted one.
	Init func() any
}

// ColumnSet is the derived description of which columns participate in
// generated INSERT and UPDATE statements for one table. It is computed
// from an immutable Table snapshot and safe to cache.
type ColumnSet struct {
	Schema string
	Table  string
	// Base holds the caller-owned data columns: declared columns minus
	// audit columns, the soft-delete column, generated columns, and
	// auto-generated key columns.
	Base []SetColumn
	// Insert extends Base with the created_by actor column.
	Insert []SetColumn
	// Update reduces Base by immutable and key (Cond) columns and adds
	// updated_at (always the server clock, never a bound parameter)
	// and updated_by.
	Update []SetColumn
}

// ColumnSetKey is the cache key for a table's column set.
func ColumnSetKey(schemaName, table string) string {
	return schemaName + "." + table
}

// CompileColumnSet derives the column set from a table descriptor.
//
// The table is expected in its normalized form (see Normalize): when
// AuditFields is declared the four audit columns must be present, and a
// table carrying audit columns must declare AuditFields. A mismatch in
// either direction is a definition error rather than something this
// function papers over, because the generated INSERT/UPDATE lists would
// silently change meaning.
func CompileColumnSet(t *Table) (*ColumnSet, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := t.ValidateColumnProps(); err != nil {
		return nil, err
	}
	audited := t.AuditFields != nil
	switch {
	case audited && !hasAuditColumns(t):
		return nil, NewDefinitionError(t.Name, "",
			"audit fields are declared but the audit columns are missing; compile from the normalized table")
	case !audited && hasAnyAuditColumn(t):
		return nil, NewDefinitionError(t.Name, "",
			"audit columns are present but audit fields are not declared")
	}

	pk := make(map[string]struct{}, len(t.Constraints.PrimaryKey))
	for _, name := range t.Constraints.PrimaryKey {
		pk[name] = struct{}{}
	}

	cs := &ColumnSet{Schema: t.Schema, Table: t.Name}
	for _, c := range t.Columns {
		if isAuditColumn(c.Name) || c.Name == SoftDeleteColumn || c.Generated != nil {
			continue
		}
		if _, isPK := pk[c.Name]; isPK && isAutoKeyColumn(c) {
			// Server-generated keys never appear in value lists.
			continue
		}
		sc := SetColumn{Name: c.Name}
		if c.Props != nil {
			sc.Mod = c.Props.Mod
			sc.Cond = c.Props.Cond
			sc.Skip = c.Props.Skip
			sc.Init = c.Props.Init
		}
		cs.Base = append(cs.Base, sc)
	}

	cs.Insert = append(cs.Insert, cs.Base...)
	for _, c := range cs.Base {
		if c.Cond {
			continue
		}
		col, _ := t.Column(c.Name)
		if col.Immutable {
			continue
		}
		cs.Update = append(cs.Update, c)
	}
	if audited {
		actor := t.AuditFields.ActorDefault
		if actor == "" {
			actor = DefaultActor
		}
		initActor := func() any { return actor }
		cs.Insert = append(cs.Insert, SetColumn{Name: ColCreatedBy, Init: initActor})
		cs.Update = append(cs.Update,
			SetColumn{Name: ColUpdatedAt, Expr: "now()"},
			SetColumn{Name: ColUpdatedBy, Init: initActor},
		)
	}
	return cs, nil
}
