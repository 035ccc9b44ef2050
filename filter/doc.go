// Package filter compiles condition trees into parameterized Postgres
// WHERE clauses.
//
// A condition is either a typed Node built with the package's
// constructors:
//
//	filter.And(
//	    filter.Or(filter.EQ("status", "A"), filter.EQ("status", "B")),
//	    filter.ILike("email", "%@x.com"),
//	)
//
// or untyped data of the same shape, as decoded from JSON or YAML:
//
//	[]any{
//	    map[string]any{"$or": []any{
//	        map[string]any{"status": "A"},
//	        map[string]any{"status": "B"},
//	    }},
//	    map[string]any{"email": map[string]any{"$ilike": "%@x.com"}},
//	}
//
// Both compile to
//
//	("status" = $1 OR "status" = $2) AND "email" ILIKE $3
//
// with arguments ["A", "B", "%@x.com"].
//
// # Untyped Input
//
// A single map is an implicit AND over its pairs; a list holds leaves
// and groups in order. The keys "$and" and "$or" open a nested group
// with that connective. A column's operand is either a scalar (equality,
// with nil meaning IS NULL) or a map of operator modifiers: eq, ne, is,
// not, like, ilike, in, from, to, max, min, sum, each with an optional
// "$" prefix. Any other key is a definition error naming the key.
//
// Because Go maps are unordered, pairs of one map compile in sorted key
// order; identical input therefore always yields an identical clause
// and argument list. Lists preserve their own order.
//
// # Placeholders
//
// Placeholders are numbered strictly left to right starting at
// Options.ArgOffset+1, so a compiled clause can be appended to a
// statement that has already bound arguments of its own.
package filter
