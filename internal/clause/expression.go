package clause

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
)

// ErrEmptyList is returned when an IN list has no items.
var ErrEmptyList = errors.New("clause: empty value list")

// Expression is a node of a filter clause tree. Every expression can be
// handed to squirrel as a WHERE condition or a selected column.
type Expression interface {
	sq.Sqlizer

	compile(c *compiler)
	precedence() int
}

// Operator precedence, loosest first. A child expression is wrapped in
// parentheses only when it binds looser than its parent.
const (
	precOr = iota + 1
	precAnd
	precNot
	precCompare
	precConcat
	precAtom
)

// Operator is a comparison operator.
type Operator string

const (
	OpEq    Operator = "="
	OpNotEq Operator = "!="
	OpLt    Operator = "<"
	OpLe    Operator = "<="
	OpGt    Operator = ">"
	OpGe    Operator = ">="
	OpIs    Operator = "IS"
	OpIsNot Operator = "IS NOT"
	OpIn    Operator = "IN"
	OpNotIn Operator = "NOT IN"
)

// Reflect returns the operator to use when both operands swap sides.
func (op Operator) Reflect() Operator {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

var inverse = map[Operator]Operator{
	OpEq:    OpNotEq,
	OpNotEq: OpEq,
	OpIs:    OpIsNot,
	OpIsNot: OpIs,
	OpIn:    OpNotIn,
	OpNotIn: OpIn,
}

// BoolOp joins clauses of a BooleanList.
type BoolOp string

const (
	OpAnd BoolOp = "AND"
	OpOr  BoolOp = "OR"
)

// Column references a table column.
type Column struct {
	Table string
	Name  string
}

func (col *Column) compile(c *compiler) {
	if col.Table != "" {
		c.write(QuoteIdent(col.Table))
		c.write(".")
	}
	c.write(QuoteIdent(col.Name))
}

func (col *Column) precedence() int { return precAtom }

// ToSql implements squirrel.Sqlizer.
func (col *Column) ToSql() (string, []interface{}, error) { return toSql(col) }

func (col *Column) String() string { return stringify(col) }

// Literal is a constant operand. Value is what gets rendered inline; Bind is
// what gets sent to the driver, which may differ after type coercion.
type Literal struct {
	Value any
	Bind  any
}

func (l *Literal) compile(c *compiler) { c.bind(l.Value, l.Bind) }

func (l *Literal) precedence() int { return precAtom }

// ToSql implements squirrel.Sqlizer.
func (l *Literal) ToSql() (string, []interface{}, error) { return toSql(l) }

func (l *Literal) String() string { return stringify(l) }

type null struct{}

func (null) compile(c *compiler) { c.write("NULL") }

func (null) precedence() int { return precAtom }

func (n null) ToSql() (string, []interface{}, error) { return toSql(n) }

func (null) String() string { return "NULL" }

// Concat is the string concatenation of its parts.
type Concat struct {
	Parts []Expression
}

func (cc *Concat) compile(c *compiler) {
	for i, part := range cc.Parts {
		if i > 0 {
			c.write(" || ")
		}
		c.child(precConcat, part)
	}
}

func (cc *Concat) precedence() int { return precConcat }

// ToSql implements squirrel.Sqlizer.
func (cc *Concat) ToSql() (string, []interface{}, error) { return toSql(cc) }

func (cc *Concat) String() string { return stringify(cc) }

// Tuple is a parenthesised value list, the right side of IN.
type Tuple struct {
	Items []Expression
}

func (t *Tuple) compile(c *compiler) {
	if len(t.Items) == 0 {
		c.fail(ErrEmptyList)
		return
	}
	c.write("(")
	for i, item := range t.Items {
		if i > 0 {
			c.write(", ")
		}
		item.compile(c)
	}
	c.write(")")
}

func (t *Tuple) precedence() int { return precAtom }

// ToSql implements squirrel.Sqlizer.
func (t *Tuple) ToSql() (string, []interface{}, error) { return toSql(t) }

func (t *Tuple) String() string { return stringify(t) }

// Binary is a comparison between two operands.
type Binary struct {
	Left  Expression
	Op    Operator
	Right Expression
}

func (b *Binary) compile(c *compiler) {
	c.child(precCompare+1, b.Left)
	c.write(" ")
	c.write(string(b.Op))
	c.write(" ")
	c.child(precCompare+1, b.Right)
}

func (b *Binary) precedence() int { return precCompare }

// ToSql implements squirrel.Sqlizer.
func (b *Binary) ToSql() (string, []interface{}, error) { return toSql(b) }

func (b *Binary) String() string { return stringify(b) }

// BooleanList joins clauses with AND or OR.
type BooleanList struct {
	Op      BoolOp
	Clauses []Expression
}

func (bl *BooleanList) compile(c *compiler) {
	if len(bl.Clauses) == 0 {
		if bl.Op == OpOr {
			c.write("false")
		} else {
			c.write("true")
		}
		return
	}
	own := bl.precedence()
	for i, clause := range bl.Clauses {
		if i > 0 {
			c.write(" ")
			c.write(string(bl.Op))
			c.write(" ")
		}
		c.child(own, clause)
	}
}

func (bl *BooleanList) precedence() int {
	switch {
	case len(bl.Clauses) == 0:
		return precAtom
	case len(bl.Clauses) == 1:
		return bl.Clauses[0].precedence()
	case bl.Op == OpOr:
		return precOr
	default:
		return precAnd
	}
}

// ToSql implements squirrel.Sqlizer.
func (bl *BooleanList) ToSql() (string, []interface{}, error) { return toSql(bl) }

func (bl *BooleanList) String() string { return stringify(bl) }

// Not negates a clause.
type Not struct {
	Expr Expression
}

func (n *Not) compile(c *compiler) {
	c.write("NOT ")
	c.child(precNot, n.Expr)
}

func (n *Not) precedence() int { return precNot }

// ToSql implements squirrel.Sqlizer.
func (n *Not) ToSql() (string, []interface{}, error) { return toSql(n) }

func (n *Not) String() string { return stringify(n) }
