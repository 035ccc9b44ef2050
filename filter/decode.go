package filter

import (
	"sort"
	"strings"

	"github.com/silverstone-i/pg-schemata-sub000/schema"
)

// decode normalizes compiler input into a single root group. Typed
// nodes pass through untouched; maps and lists are parsed.
func decode(input any) (Group, error) {
	switch in := input.(type) {
	case nil:
		return Group{Joiner: JoinAnd}, nil
	case Group:
		return in, nil
	case Leaf:
		return Group{Joiner: JoinAnd, Nodes: []Node{in}}, nil
	case []Node:
		return Group{Joiner: JoinAnd, Nodes: in}, nil
	case []any:
		nodes, err := decodeList(in)
		if err != nil {
			return Group{}, err
		}
		return Group{Joiner: JoinAnd, Nodes: nodes}, nil
	case map[string]any:
		nodes, err := decodePairs(in)
		if err != nil {
			return Group{}, err
		}
		return Group{Joiner: JoinAnd, Nodes: nodes}, nil
	default:
		return Group{}, schema.NewDefinitionError("", "",
			"unsupported condition input %T; want a map, a list of maps, or filter nodes", input)
	}
}

func decodeList(items []any) ([]Node, error) {
	nodes := make([]Node, 0, len(items))
	for _, item := range items {
		n, err := decodeNode(item)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(v any) (Node, error) {
	switch v := v.(type) {
	case Group:
		return v, nil
	case Leaf:
		return v, nil
	case map[string]any:
		nodes, err := decodePairs(v)
		if err != nil {
			return nil, err
		}
		return Group{Joiner: JoinAnd, Nodes: nodes}, nil
	case []any:
		nodes, err := decodeList(v)
		if err != nil {
			return nil, err
		}
		return Group{Joiner: JoinAnd, Nodes: nodes}, nil
	default:
		return nil, schema.NewDefinitionError("", "",
			"unsupported condition element %T; want a map or a filter node", v)
	}
}

// decodePairs turns one map into nodes, one per pair. Go maps are
// unordered, so pairs decode in sorted key order to keep compilation
// deterministic.
func decodePairs(m map[string]any) ([]Node, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]Node, 0, len(keys))
	for _, k := range keys {
		n, err := decodePair(k, m[k])
		if err != nil {
			return nil, err
		}
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func decodePair(key string, v any) (Node, error) {
	if key == "$and" || key == "$or" {
		joiner := JoinAnd
		if key == "$or" {
			joiner = JoinOr
		}
		switch v := v.(type) {
		case []any:
			nodes, err := decodeList(v)
			if err != nil {
				return nil, err
			}
			return Group{Joiner: joiner, Nodes: nodes}, nil
		case map[string]any:
			nodes, err := decodePairs(v)
			if err != nil {
				return nil, err
			}
			return Group{Joiner: joiner, Nodes: nodes}, nil
		default:
			return nil, schema.NewDefinitionError("", "",
				"group %q requires a list or map of conditions, got %T", key, v)
		}
	}
	if strings.HasPrefix(key, "$") {
		return nil, schema.NewDefinitionError("", "", "unsupported operator %q", key)
	}
	return decodeLeaf(key, v)
}

func decodeLeaf(column string, v any) (Node, error) {
	mods, ok := v.(map[string]any)
	if !ok {
		switch v.(type) {
		case nil:
			return Null(column), nil
		case []any, []Node, Group, Leaf:
			return nil, schema.NewDefinitionError("", column,
				"unsupported operand %T; use the \"in\" operator for lists", v)
		}
		return Leaf{Column: column, Ops: []Op{{Kind: KindEQ, Value: v}}}, nil
	}
	ops, err := decodeOps(column, mods)
	if err != nil {
		return nil, err
	}
	return Leaf{Column: column, Ops: ops}, nil
}

// decodeOps parses a modifier map into ops, again in sorted key order.
// The "$" prefix on modifier names is optional. The from and to bounds
// fold into a single range op positioned at whichever of the two keys
// sorts first.
func decodeOps(column string, mods map[string]any) ([]Op, error) {
	keys := make([]string, 0, len(mods))
	for k := range mods {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ops := make([]Op, 0, len(keys))
	rangeDone := false
	for _, k := range keys {
		v := mods[k]
		switch strings.ToLower(strings.TrimPrefix(k, "$")) {
		case "eq":
			if v == nil {
				ops = append(ops, Op{Kind: KindNull})
			} else {
				ops = append(ops, Op{Kind: KindEQ, Value: v})
			}
		case "ne":
			if v == nil {
				ops = append(ops, Op{Kind: KindNotNull})
			} else {
				ops = append(ops, Op{Kind: KindNE, Value: v})
			}
		case "is":
			if v != nil {
				return nil, schema.NewDefinitionError("", column, "operator %q supports only null", k)
			}
			ops = append(ops, Op{Kind: KindNull})
		case "not":
			if v != nil {
				return nil, schema.NewDefinitionError("", column, "operator %q supports only null", k)
			}
			ops = append(ops, Op{Kind: KindNotNull})
		case "like":
			ops = append(ops, Op{Kind: KindLike, Value: v})
		case "ilike":
			ops = append(ops, Op{Kind: KindILike, Value: v})
		case "in":
			vs, ok := v.([]any)
			if !ok {
				return nil, schema.NewDefinitionError("", column, "operator %q requires a list, got %T", k, v)
			}
			ops = append(ops, Op{Kind: KindIn, Values: vs})
		case "from", "to":
			if rangeDone {
				continue
			}
			rangeDone = true
			ops = append(ops, Op{Kind: KindRange, From: modValue(mods, "from"), To: modValue(mods, "to")})
		case "max":
			ops = append(ops, Op{Kind: KindMax})
		case "min":
			ops = append(ops, Op{Kind: KindMin})
		case "sum":
			ops = append(ops, Op{Kind: KindSum})
		default:
			return nil, schema.NewDefinitionError("", column, "unsupported operator %q", k)
		}
	}
	return ops, nil
}

func modValue(mods map[string]any, name string) any {
	if v, ok := mods[name]; ok {
		return v
	}
	return mods["$"+name]
}
