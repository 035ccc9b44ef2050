package filter

import "strconv"

// Joiner is the connective placed between sibling conditions of a group.
type Joiner string

const (
	JoinAnd Joiner = "AND"
	JoinOr  Joiner = "OR"
)

// Kind tags the operator an Op applies to its column.
type Kind uint8

const (
	KindEQ Kind = iota
	KindNE
	KindLike
	KindILike
	KindIn
	KindRange
	KindMax
	KindMin
	KindSum
	KindNull
	KindNotNull
)

var kindNames = [...]string{"eq", "ne", "like", "ilike", "in", "range", "max", "min", "sum", "null", "not null"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Op is one operator application inside a leaf. Kind decides which of
// the operand fields are read; the rest stay zero.
type Op struct {
	Kind Kind
	// Value is the operand of EQ, NE, Like, and ILike.
	Value any
	// From and To are the inclusive Range bounds; a nil bound leaves
	// that side open.
	From any
	To   any
	// Values is the IN list. Compile rejects an empty list.
	Values []any
}

// Node is one parsed condition, either a Group or a Leaf.
type Node interface {
	isNode()
}

// Group joins child nodes with a single connective. An empty group
// compiles to nothing and contributes no connective between its
// siblings.
type Group struct {
	Joiner Joiner
	Nodes  []Node
}

// Leaf applies one or more operators to a single column. Multiple ops
// AND-join over the same column.
type Leaf struct {
	Column string
	Ops    []Op
}

func (Group) isNode() {}
func (Leaf) isNode()  {}

// And groups nodes under an AND connective.
func And(nodes ...Node) Node {
	return Group{Joiner: JoinAnd, Nodes: nodes}
}

// Or groups nodes under an OR connective.
func Or(nodes ...Node) Node {
	return Group{Joiner: JoinOr, Nodes: nodes}
}

// EQ matches rows whose column equals v. A nil v compiles to IS NULL.
func EQ(column string, v any) Node {
	if v == nil {
		return Null(column)
	}
	return Leaf{Column: column, Ops: []Op{{Kind: KindEQ, Value: v}}}
}

// NE matches rows whose column does not equal v. A nil v compiles to
// IS NOT NULL.
func NE(column string, v any) Node {
	if v == nil {
		return NotNull(column)
	}
	return Leaf{Column: column, Ops: []Op{{Kind: KindNE, Value: v}}}
}

// Like applies a case-sensitive pattern match.
func Like(column, pattern string) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindLike, Value: pattern}}}
}

// ILike applies a case-insensitive pattern match.
func ILike(column, pattern string) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindILike, Value: pattern}}}
}

// In matches rows whose column equals any of vs. Compile rejects an
// empty list.
func In(column string, vs ...any) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindIn, Values: vs}}}
}

// Range bounds the column inclusively on both sides. A nil bound leaves
// that side open.
func Range(column string, from, to any) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindRange, From: from, To: to}}}
}

// Max compares the column against its own maximum over the queried
// table. Compiling it requires Options.Table.
func Max(column string) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindMax}}}
}

// Min compares the column against its own minimum over the queried
// table. Compiling it requires Options.Table.
func Min(column string) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindMin}}}
}

// Sum compares the column against its own sum over the queried table.
// Compiling it requires Options.Table.
func Sum(column string) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindSum}}}
}

// Null matches rows whose column is NULL.
func Null(column string) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindNull}}}
}

// NotNull matches rows whose column is not NULL.
func NotNull(column string) Node {
	return Leaf{Column: column, Ops: []Op{{Kind: KindNotNull}}}
}
