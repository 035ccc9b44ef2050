package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// Options control one compilation.
type Options struct {
	// Table is the queried table, bare or schema-qualified with a dot.
	// Required only when the tree holds a self-aggregate comparison.
	Table string
	// Joiner connects top-level siblings. Defaults to JoinAnd. Nested
	// groups keep their own joiner.
	Joiner Joiner
	// ArgOffset is the number of placeholders the caller has already
	// bound; the first placeholder emitted is $ArgOffset+1.
	ArgOffset int
	// SoftDelete appends the live-row predicate to the clause.
	SoftDelete bool
	// IncludeDeactivated suppresses the live-row predicate so
	// deactivated rows match too.
	IncludeDeactivated bool
}

// Compiled is a WHERE clause body with the arguments it binds.
// Placeholder $<ArgOffset+i> binds Args[i-1].
type Compiled struct {
	Clause string
	Args   []any
}

// Compile turns a condition tree into a parameterized clause. The input
// forms it accepts are described in the package documentation; anything
// else is a definition error. An input with no effective conditions
// compiles to an empty clause, or to the bare live-row predicate when
// soft delete applies.
func Compile(input any, opts Options) (*Compiled, error) {
	root, err := decode(input)
	if err != nil {
		return nil, err
	}
	switch opts.Joiner {
	case "":
	case JoinAnd, JoinOr:
		root.Joiner = opts.Joiner
	default:
		return nil, schema.NewDefinitionError("", "", "joiner must be AND or OR, got %q", string(opts.Joiner))
	}

	c := &compiler{table: opts.Table, n: opts.ArgOffset}
	clause, err := c.group(root, true)
	if err != nil {
		return nil, err
	}
	if opts.SoftDelete && !opts.IncludeDeactivated {
		pred := schema.QuoteIdent(schema.SoftDeleteColumn) + " IS NULL"
		if clause == "" {
			clause = pred
		} else {
			clause += " AND " + pred
		}
	}
	return &Compiled{Clause: clause, Args: c.args}, nil
}

type compiler struct {
	table string
	n     int
	args  []any
}

// next binds v and returns its placeholder.
func (c *compiler) next(v any) string {
	c.n++
	c.args = append(c.args, v)
	return "$" + strconv.Itoa(c.n)
}

func (c *compiler) group(g Group, top bool) (string, error) {
	parts := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		frag, err := c.node(n)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		parts = append(parts, frag)
	}
	if len(parts) == 0 {
		return "", nil
	}
	joiner := g.Joiner
	if joiner == "" {
		joiner = JoinAnd
	}
	if joiner != JoinAnd && joiner != JoinOr {
		return "", schema.NewDefinitionError("", "", "joiner must be AND or OR, got %q", string(joiner))
	}
	clause := strings.Join(parts, " "+string(joiner)+" ")
	if !top && len(parts) > 1 {
		clause = "(" + clause + ")"
	}
	return clause, nil
}

func (c *compiler) node(n Node) (string, error) {
	switch n := n.(type) {
	case Group:
		return c.group(n, false)
	case Leaf:
		return c.leaf(n)
	default:
		return "", schema.NewDefinitionError("", "", "unsupported condition node %T", n)
	}
}

func (c *compiler) leaf(l Leaf) (string, error) {
	if l.Column == "" {
		return "", schema.NewDefinitionError("", "", "condition leaf requires a column name")
	}
	col := schema.QuoteIdent(l.Column)
	frags := make([]string, 0, len(l.Ops))
	for _, op := range l.Ops {
		frag, err := c.op(col, l.Column, op)
		if err != nil {
			return "", err
		}
		if frag == "" {
			continue
		}
		frags = append(frags, frag)
	}
	return strings.Join(frags, " AND "), nil
}

func (c *compiler) op(col, column string, op Op) (string, error) {
	switch op.Kind {
	case KindEQ:
		if op.Value == nil {
			return col + " IS NULL", nil
		}
		return col + " = " + c.next(op.Value), nil
	case KindNE:
		if op.Value == nil {
			return col + " IS NOT NULL", nil
		}
		return col + " <> " + c.next(op.Value), nil
	case KindLike:
		return col + " LIKE " + c.next(op.Value), nil
	case KindILike:
		return col + " ILIKE " + c.next(op.Value), nil
	case KindIn:
		if len(op.Values) == 0 {
			return "", schema.NewDefinitionError("", column, "operator \"in\" requires a non-empty list")
		}
		ph := make([]string, len(op.Values))
		for i, v := range op.Values {
			ph[i] = c.next(v)
		}
		return col + " IN (" + strings.Join(ph, ", ") + ")", nil
	case KindRange:
		var parts []string
		if op.From != nil {
			parts = append(parts, col+" >= "+c.next(op.From))
		}
		if op.To != nil {
			parts = append(parts, col+" <= "+c.next(op.To))
		}
		return strings.Join(parts, " AND "), nil
	case KindMax, KindMin, KindSum:
		if c.table == "" {
			return "", schema.NewDefinitionError("", column,
				"self-aggregate comparison requires the queried table name")
		}
		fn := "MAX"
		switch op.Kind {
		case KindMin:
			fn = "MIN"
		case KindSum:
			fn = "SUM"
		}
		return fmt.Sprintf("%s = (SELECT %s(%s) FROM %s)", col, fn, col, schema.QualifyTable("", c.table)), nil
	case KindNull:
		return col + " IS NULL", nil
	case KindNotNull:
		return col + " IS NOT NULL", nil
	default:
		return "", schema.NewDefinitionError("", column, "unsupported operator %q", op.Kind.String())
	}
}
