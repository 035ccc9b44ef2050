package filter_test

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverstone-i/pg-schemata-sub000/filter"
	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// TestCompileExample tests the canonical mixed tree in both input
// forms: a nested OR group followed by an ILIKE leaf.
func TestCompileExample(t *testing.T) {
	t.Parallel()

	const want = `("status" = $1 OR "status" = $2) AND "email" ILIKE $3`

	t.Run("Untyped", func(t *testing.T) {
		t.Parallel()
		input := []any{
			map[string]any{"$or": []any{
				map[string]any{"status": "A"},
				map[string]any{"status": "B"},
			}},
			map[string]any{"email": map[string]any{"$ilike": "%@x.com"}},
		}
		c, err := filter.Compile(input, filter.Options{})
		require.NoError(t, err)
		assert.Equal(t, want, c.Clause)
		assert.Equal(t, []any{"A", "B", "%@x.com"}, c.Args)
	})

	t.Run("Typed", func(t *testing.T) {
		t.Parallel()
		input := filter.And(
			filter.Or(filter.EQ("status", "A"), filter.EQ("status", "B")),
			filter.ILike("email", "%@x.com"),
		)
		c, err := filter.Compile(input, filter.Options{})
		require.NoError(t, err)
		assert.Equal(t, want, c.Clause)
		assert.Equal(t, []any{"A", "B", "%@x.com"}, c.Args)
	})

	t.Run("Mixed", func(t *testing.T) {
		t.Parallel()
		input := []any{
			filter.Or(filter.EQ("status", "A"), filter.EQ("status", "B")),
			map[string]any{"email": map[string]any{"$ilike": "%@x.com"}},
		}
		c, err := filter.Compile(input, filter.Options{})
		require.NoError(t, err)
		assert.Equal(t, want, c.Clause)
	})
}

// TestCompileOperators tests each operator's emission from untyped
// modifier input.
func TestCompileOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      any
		wantClause string
		wantArgs   []any
	}{
		{
			name:       "ScalarEQ",
			input:      map[string]any{"age": 30},
			wantClause: `"age" = $1`,
			wantArgs:   []any{30},
		},
		{
			name:       "ScalarNil",
			input:      map[string]any{"ended_at": nil},
			wantClause: `"ended_at" IS NULL`,
		},
		{
			name:       "NE",
			input:      map[string]any{"status": map[string]any{"ne": "X"}},
			wantClause: `"status" <> $1`,
			wantArgs:   []any{"X"},
		},
		{
			name:       "NENil",
			input:      map[string]any{"status": map[string]any{"$ne": nil}},
			wantClause: `"status" IS NOT NULL`,
		},
		{
			name:       "EQNilModifier",
			input:      map[string]any{"status": map[string]any{"eq": nil}},
			wantClause: `"status" IS NULL`,
		},
		{
			name:       "Like",
			input:      map[string]any{"name": map[string]any{"like": "Jo%"}},
			wantClause: `"name" LIKE $1`,
			wantArgs:   []any{"Jo%"},
		},
		{
			name:       "ILike",
			input:      map[string]any{"email": map[string]any{"$ilike": "%@x.com"}},
			wantClause: `"email" ILIKE $1`,
			wantArgs:   []any{"%@x.com"},
		},
		{
			name:       "In",
			input:      map[string]any{"status": map[string]any{"in": []any{"A", "B", "C"}}},
			wantClause: `"status" IN ($1, $2, $3)`,
			wantArgs:   []any{"A", "B", "C"},
		},
		{
			name:       "RangeBothBounds",
			input:      map[string]any{"salary": map[string]any{"from": 1000, "to": 2000}},
			wantClause: `"salary" >= $1 AND "salary" <= $2`,
			wantArgs:   []any{1000, 2000},
		},
		{
			name:       "RangeFromOnly",
			input:      map[string]any{"salary": map[string]any{"from": 1000}},
			wantClause: `"salary" >= $1`,
			wantArgs:   []any{1000},
		},
		{
			name:       "RangeToOnly",
			input:      map[string]any{"salary": map[string]any{"$to": 2000}},
			wantClause: `"salary" <= $1`,
			wantArgs:   []any{2000},
		},
		{
			name:       "IsNull",
			input:      map[string]any{"ended_at": map[string]any{"is": nil}},
			wantClause: `"ended_at" IS NULL`,
		},
		{
			name:       "NotNull",
			input:      map[string]any{"ended_at": map[string]any{"not": nil}},
			wantClause: `"ended_at" IS NOT NULL`,
		},
		{
			name:       "MultipleModifiersOneLeaf",
			input:      map[string]any{"email": map[string]any{"ilike": "%@x.com", "ne": "admin@x.com"}},
			wantClause: `"email" ILIKE $1 AND "email" <> $2`,
			wantArgs:   []any{"%@x.com", "admin@x.com"},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := filter.Compile(tt.input, filter.Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantClause, c.Clause)
			if tt.wantArgs == nil {
				assert.Empty(t, c.Args)
			} else {
				assert.Equal(t, tt.wantArgs, c.Args)
			}
		})
	}
}

// TestCompileAggregates tests self-aggregate comparisons, which bind no
// parameters and read the queried table from the options.
func TestCompileAggregates(t *testing.T) {
	t.Parallel()

	t.Run("MaxQualifiedTable", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(
			map[string]any{"net_pay": map[string]any{"$max": true}},
			filter.Options{Table: "tenant1.payroll"},
		)
		require.NoError(t, err)
		assert.Equal(t, `"net_pay" = (SELECT MAX("net_pay") FROM "tenant1"."payroll")`, c.Clause)
		assert.Empty(t, c.Args)
	})

	t.Run("MinBareTable", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(filter.Min("version"), filter.Options{Table: "ledger"})
		require.NoError(t, err)
		assert.Equal(t, `"version" = (SELECT MIN("version") FROM "ledger")`, c.Clause)
	})

	t.Run("Sum", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(filter.Sum("amount"), filter.Options{Table: "entries"})
		require.NoError(t, err)
		assert.Equal(t, `"amount" = (SELECT SUM("amount") FROM "entries")`, c.Clause)
	})

	t.Run("RequiresTable", func(t *testing.T) {
		t.Parallel()
		_, err := filter.Compile(filter.Max("net_pay"), filter.Options{})
		require.Error(t, err)
		assert.True(t, schema.IsDefinition(err))
		assert.Contains(t, err.Error(), "requires the queried table")
	})
}

// TestCompileArgOffset tests that numbering starts after the caller's
// already-bound placeholders.
func TestCompileArgOffset(t *testing.T) {
	t.Parallel()

	input := []any{
		map[string]any{"a": 1},
		map[string]any{"b": map[string]any{"in": []any{2, 3}}},
	}
	c, err := filter.Compile(input, filter.Options{ArgOffset: 4})
	require.NoError(t, err)
	assert.Equal(t, `"a" = $5 AND "b" IN ($6, $7)`, c.Clause)
	assert.Equal(t, []any{1, 2, 3}, c.Args)
}

// TestCompileJoiner tests the top-level joiner and that nested groups
// keep their own.
func TestCompileJoiner(t *testing.T) {
	t.Parallel()

	t.Run("TopLevelOr", func(t *testing.T) {
		t.Parallel()
		input := []any{map[string]any{"a": 1}, map[string]any{"b": 2}}
		c, err := filter.Compile(input, filter.Options{Joiner: filter.JoinOr})
		require.NoError(t, err)
		assert.Equal(t, `"a" = $1 OR "b" = $2`, c.Clause)
	})

	t.Run("NestedKeepsOwn", func(t *testing.T) {
		t.Parallel()
		input := []any{
			map[string]any{"a": 1},
			map[string]any{"$and": []any{
				map[string]any{"b": 2},
				map[string]any{"c": 3},
			}},
		}
		c, err := filter.Compile(input, filter.Options{Joiner: filter.JoinOr})
		require.NoError(t, err)
		assert.Equal(t, `"a" = $1 OR ("b" = $2 AND "c" = $3)`, c.Clause)
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Parallel()
		_, err := filter.Compile(map[string]any{"a": 1}, filter.Options{Joiner: "NAND"})
		require.Error(t, err)
		assert.True(t, schema.IsDefinition(err))
		assert.Contains(t, err.Error(), "NAND")
	})
}

// TestCompileEmpty tests that empty input and empty groups vanish
// without stray joiner tokens.
func TestCompileEmpty(t *testing.T) {
	t.Parallel()

	t.Run("NilInput", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(nil, filter.Options{})
		require.NoError(t, err)
		assert.Empty(t, c.Clause)
		assert.Empty(t, c.Args)
	})

	t.Run("EmptyMap", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(map[string]any{}, filter.Options{})
		require.NoError(t, err)
		assert.Empty(t, c.Clause)
	})

	t.Run("EmptyList", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile([]any{}, filter.Options{})
		require.NoError(t, err)
		assert.Empty(t, c.Clause)
	})

	t.Run("EmptyGroupAmongSiblings", func(t *testing.T) {
		t.Parallel()
		input := []any{
			map[string]any{"$or": []any{}},
			map[string]any{"a": 1},
		}
		c, err := filter.Compile(input, filter.Options{})
		require.NoError(t, err)
		assert.Equal(t, `"a" = $1`, c.Clause)
	})

	t.Run("EmptyModifierMapAmongSiblings", func(t *testing.T) {
		t.Parallel()
		input := []any{
			map[string]any{"email": map[string]any{}},
			map[string]any{"a": 1},
		}
		c, err := filter.Compile(input, filter.Options{})
		require.NoError(t, err)
		assert.Equal(t, `"a" = $1`, c.Clause)
	})
}

// TestCompileSoftDelete tests the live-row predicate appended for
// soft-deleting tables.
func TestCompileSoftDelete(t *testing.T) {
	t.Parallel()

	t.Run("AppendedToClause", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(map[string]any{"status": "A"}, filter.Options{SoftDelete: true})
		require.NoError(t, err)
		assert.Equal(t, `"status" = $1 AND "deactivated_at" IS NULL`, c.Clause)
	})

	t.Run("BareOnEmptyClause", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(nil, filter.Options{SoftDelete: true})
		require.NoError(t, err)
		assert.Equal(t, `"deactivated_at" IS NULL`, c.Clause)
		assert.Empty(t, c.Args)
	})

	t.Run("IncludeDeactivated", func(t *testing.T) {
		t.Parallel()
		c, err := filter.Compile(map[string]any{"status": "A"}, filter.Options{
			SoftDelete:         true,
			IncludeDeactivated: true,
		})
		require.NoError(t, err)
		assert.Equal(t, `"status" = $1`, c.Clause)
	})
}

// TestCompileDeterministic tests that map input compiles identically
// across runs despite Go's randomized map iteration.
func TestCompileDeterministic(t *testing.T) {
	t.Parallel()

	input := map[string]any{
		"email":  map[string]any{"ilike": "%@x.com", "ne": "admin@x.com"},
		"status": "A",
		"salary": map[string]any{"from": 1000, "to": 2000},
		"$or": map[string]any{
			"role": "admin",
			"team": "core",
		},
	}
	first, err := filter.Compile(input, filter.Options{})
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		c, err := filter.Compile(input, filter.Options{})
		require.NoError(t, err)
		assert.Equal(t, first.Clause, c.Clause)
		assert.Equal(t, first.Args, c.Args)
	}
}

// TestCompilePlaceholders tests that placeholder numbers are contiguous
// from the offset and one argument is bound per placeholder.
func TestCompilePlaceholders(t *testing.T) {
	t.Parallel()

	input := []any{
		map[string]any{"$or": []any{
			map[string]any{"a": 1},
			map[string]any{"b": map[string]any{"in": []any{2, 3, 4}}},
		}},
		map[string]any{"c": map[string]any{"from": 5, "to": 6}},
		map[string]any{"d": map[string]any{"not": nil}},
	}
	c, err := filter.Compile(input, filter.Options{ArgOffset: 3})
	require.NoError(t, err)

	matches := regexp.MustCompile(`\$(\d+)`).FindAllStringSubmatch(c.Clause, -1)
	require.Len(t, matches, len(c.Args))
	for i, m := range matches {
		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		assert.Equal(t, 3+i+1, n)
	}
}

// TestCompileNesting tests parenthesization over deeper trees.
func TestCompileNesting(t *testing.T) {
	t.Parallel()

	input := filter.Or(
		filter.And(
			filter.EQ("a", 1),
			filter.Or(filter.EQ("b", 2), filter.EQ("c", 3)),
		),
		filter.EQ("d", 4),
	)
	c, err := filter.Compile(input, filter.Options{})
	require.NoError(t, err)
	assert.Equal(t, `("a" = $1 AND ("b" = $2 OR "c" = $3)) OR "d" = $4`, c.Clause)
	assert.Equal(t, []any{1, 2, 3, 4}, c.Args)
}

// TestCompileErrors tests definition errors for malformed input, each
// naming the offending key or shape.
func TestCompileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   any
		wantErr string
	}{
		{
			name:    "UnsupportedInputType",
			input:   42,
			wantErr: "unsupported condition input int",
		},
		{
			name:    "UnsupportedElementType",
			input:   []any{42},
			wantErr: "unsupported condition element int",
		},
		{
			name:    "UnknownModifier",
			input:   map[string]any{"status": map[string]any{"$regex": "x"}},
			wantErr: `unsupported operator "$regex"`,
		},
		{
			name:    "UnknownGroupKey",
			input:   map[string]any{"$nor": []any{}},
			wantErr: `unsupported operator "$nor"`,
		},
		{
			name:    "EmptyInList",
			input:   map[string]any{"status": map[string]any{"in": []any{}}},
			wantErr: "non-empty list",
		},
		{
			name:    "InWithoutList",
			input:   map[string]any{"status": map[string]any{"in": "A"}},
			wantErr: "requires a list",
		},
		{
			name:    "IsWithValue",
			input:   map[string]any{"flag": map[string]any{"is": true}},
			wantErr: "supports only null",
		},
		{
			name:    "ListOperand",
			input:   map[string]any{"tags": []any{"a", "b"}},
			wantErr: `use the "in" operator`,
		},
		{
			name:    "GroupWithScalar",
			input:   map[string]any{"$or": "bogus"},
			wantErr: `group "$or" requires a list or map`,
		},
		{
			name:    "LeafWithoutColumn",
			input:   []any{filter.Leaf{}},
			wantErr: "requires a column name",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := filter.Compile(tt.input, filter.Options{})
			require.Error(t, err)
			assert.True(t, schema.IsDefinition(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// TestCompileEmptyInFromBuilder tests that the typed In builder is
// validated at compile time like its untyped counterpart.
func TestCompileEmptyInFromBuilder(t *testing.T) {
	t.Parallel()

	_, err := filter.Compile(filter.In("status"), filter.Options{})
	require.Error(t, err)
	assert.True(t, schema.IsDefinition(err))
	assert.Contains(t, err.Error(), "non-empty list")
}

// BenchmarkCompile benchmarks condition compilation over the input
// shapes models produce.
func BenchmarkCompile(b *testing.B) {
	b.Run("ScalarLeaf", func(b *testing.B) {
		input := map[string]any{"status": "A"}
		for i := 0; i < b.N; i++ {
			_, _ = filter.Compile(input, filter.Options{})
		}
	})

	b.Run("TypedTree", func(b *testing.B) {
		input := filter.And(
			filter.Or(filter.EQ("status", "A"), filter.EQ("status", "B")),
			filter.ILike("email", "%@x.com"),
			filter.Range("salary", 1000, 2000),
		)
		for i := 0; i < b.N; i++ {
			_, _ = filter.Compile(input, filter.Options{})
		}
	})

	b.Run("UntypedTree", func(b *testing.B) {
		input := []any{
			map[string]any{"$or": []any{
				map[string]any{"status": "A"},
				map[string]any{"status": "B"},
			}},
			map[string]any{"email": map[string]any{"ilike": "%@x.com"}},
			map[string]any{"salary": map[string]any{"from": 1000, "to": 2000}},
		}
		for i := 0; i < b.N; i++ {
			_, _ = filter.Compile(input, filter.Options{})
		}
	})

	b.Run("SoftDelete", func(b *testing.B) {
		input := map[string]any{"status": "A"}
		opts := filter.Options{SoftDelete: true}
		for i := 0; i < b.N; i++ {
			_, _ = filter.Compile(input, opts)
		}
	})
}
