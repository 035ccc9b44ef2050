package schema

// Injected column names. The audit quartet records row provenance; the
// soft-delete column marks rows inactive instead of removing them.
const (
	ColCreatedAt = "created_at"
	ColCreatedBy = "created_by"
	ColUpdatedAt = "updated_at"
	ColUpdatedBy = "updated_by"

	// SoftDeleteColumn is the nullable timestamp column soft-delete
	// tables carry; a non-null value marks the row deactivated.
	SoftDeleteColumn = "deactivated_at"
)

// DefaultActor is the actor recorded when the caller supplies none.
const DefaultActor = "system"

// defaultActorType is the actor column type of the boolean shorthand.
const defaultActorType = "varchar(50)"

// auditColumns returns the four audit columns for the given config.
func auditColumns(cfg *AuditConfig) []Column {
	actorType := cfg.ActorType
	if actorType == "" {
		actorType = defaultActorType
	}
	var actorDefault any
	switch {
	case cfg.ActorDefault != "":
		actorDefault = cfg.ActorDefault
	case !cfg.ActorNullable:
		actorDefault = DefaultActor
	}
	actor := Column{
		Type:    actorType,
		NotNull: !cfg.ActorNullable,
		Default: actorDefault,
	}
	createdBy, updatedBy := actor, actor
	createdBy.Name = ColCreatedBy
	updatedBy.Name = ColUpdatedBy
	return []Column{
		{Name: ColCreatedAt, Type: "timestamptz", NotNull: true, Default: "now()"},
		createdBy,
		{Name: ColUpdatedAt, Type: "timestamptz", NotNull: true, Default: "now()"},
		updatedBy,
	}
}

// AddAuditFields returns a copy of the table with the audit columns
// appended. Columns already declared by name are left alone, so the
// injection is idempotent and never overrides a caller's definition.
// The input table is not modified. Tables without an AuditFields config
// are returned unchanged.
func AddAuditFields(t *Table) *Table {
	if t.AuditFields == nil {
		return t
	}
	return appendMissing(t, auditColumns(t.AuditFields))
}

// AddSoftDeleteColumn returns a copy of the table with the nullable
// deactivated_at column appended when SoftDelete is set. Idempotent,
// input untouched.
func AddSoftDeleteColumn(t *Table) *Table {
	if !t.SoftDelete {
		return t
	}
	return appendMissing(t, []Column{{Name: SoftDeleteColumn, Type: "timestamptz"}})
}

// Normalize returns the table as the compilers consume it: audit
// columns injected when AuditFields is set, the soft-delete column
// injected when SoftDelete is set. The caller's table is never
// modified.
func (t *Table) Normalize() *Table {
	return AddSoftDeleteColumn(AddAuditFields(t))
}

// appendMissing copies t and appends the subset of cols not already
// declared by name. When nothing is missing, t is returned as-is.
func appendMissing(t *Table, cols []Column) *Table {
	present := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		present[c.Name] = struct{}{}
	}
	missing := make([]Column, 0, len(cols))
	for _, c := range cols {
		if _, ok := present[c.Name]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		return t
	}
	out := *t
	out.Columns = make([]Column, 0, len(t.Columns)+len(missing))
	out.Columns = append(out.Columns, t.Columns...)
	out.Columns = append(out.Columns, missing...)
	return &out
}

// hasAuditColumns reports whether all four audit columns are declared.
func hasAuditColumns(t *Table) bool {
	found := 0
	for _, c := range t.Columns {
		switch c.Name {
		case ColCreatedAt, ColCreatedBy, ColUpdatedAt, ColUpdatedBy:
			found++
		}
	}
	return found == 4
}

// hasAnyAuditColumn reports whether at least one audit column is declared.
func hasAnyAuditColumn(t *Table) bool {
	for _, c := range t.Columns {
		switch c.Name {
		case ColCreatedAt, ColCreatedBy, ColUpdatedAt, ColUpdatedBy:
			return true
		}
	}
	return false
}

// isAuditColumn reports whether the name is one of the injected audit columns.
func isAuditColumn(name string) bool {
	switch name {
	case ColCreatedAt, ColCreatedBy, ColUpdatedAt, ColUpdatedBy:
		return true
	default:
		return false
	}
}
