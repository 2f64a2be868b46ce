package parser

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/domain"
)

// operand is a translated sub-expression.
type operand struct {
	pos  lexer.Position
	expr clause.Expression

	// attribute is set for table columns and computed properties.
	attribute bool
	typ       domain.ColumnType

	literal bool
	value   any // nil for None

	sequence bool
	items    []operand

	predicate bool
}

type translator struct {
	table *domain.Table
	src   string
}

func (t *translator) statement(node *orExpr) (clause.Expression, error) {
	op, err := t.or(node)
	if err != nil {
		return nil, err
	}
	return t.condition(op)
}

// condition returns op as a filter clause. Comparisons and boolean
// combinations qualify, as do boolean columns and boolean literals.
func (t *translator) condition(op operand) (clause.Expression, error) {
	switch {
	case op.predicate:
		return op.expr, nil
	case op.attribute && op.typ == domain.ColumnTypeBoolean:
		return op.expr, nil
	case op.literal:
		if _, ok := op.value.(bool); ok {
			return op.expr, nil
		}
	}
	return nil, unsupported(t.src, op.pos, NodeStatement, "expression does not produce a filter condition")
}

func (t *translator) or(node *orExpr) (operand, error) {
	if len(node.Terms) == 1 {
		return t.and(node.Terms[0])
	}
	clauses := make([]clause.Expression, 0, len(node.Terms))
	for _, term := range node.Terms {
		op, err := t.and(term)
		if err != nil {
			return operand{}, err
		}
		c, err := t.condition(op)
		if err != nil {
			return operand{}, err
		}
		clauses = append(clauses, c)
	}
	return operand{pos: node.Pos, expr: clause.Or(clauses...), predicate: true}, nil
}

func (t *translator) and(node *andExpr) (operand, error) {
	if len(node.Terms) == 1 {
		return t.not(node.Terms[0])
	}
	clauses := make([]clause.Expression, 0, len(node.Terms))
	for _, term := range node.Terms {
		op, err := t.not(term)
		if err != nil {
			return operand{}, err
		}
		c, err := t.condition(op)
		if err != nil {
			return operand{}, err
		}
		clauses = append(clauses, c)
	}
	return operand{pos: node.Pos, expr: clause.And(clauses...), predicate: true}, nil
}

func (t *translator) not(node *notExpr) (operand, error) {
	if node.Negated == nil {
		return t.compare(node.Compare)
	}
	op, err := t.not(node.Negated)
	if err != nil {
		return operand{}, err
	}
	c, err := t.condition(op)
	if err != nil {
		return operand{}, err
	}
	return operand{pos: node.Pos, expr: clause.Negate(c), predicate: true}, nil
}

// compare translates a (possibly chained) comparison. a < b < c means
// a < b AND b < c.
func (t *translator) compare(node *compare) (operand, error) {
	left, err := t.binary(node.Left)
	if err != nil {
		return operand{}, err
	}
	if len(node.Ops) == 0 {
		return left, nil
	}

	clauses := make([]clause.Expression, 0, len(node.Ops))
	for _, op := range node.Ops {
		right, err := t.binary(op.Right)
		if err != nil {
			return operand{}, err
		}
		c, err := t.comparison(op, left, right)
		if err != nil {
			return operand{}, err
		}
		clauses = append(clauses, c)
		left = right
	}
	return operand{pos: node.Pos, expr: clause.And(clauses...), predicate: true}, nil
}

var comparisonOperators = map[string]clause.Operator{
	"==": clause.OpEq,
	"!=": clause.OpNotEq,
	"<":  clause.OpLt,
	"<=": clause.OpLe,
	">":  clause.OpGt,
	">=": clause.OpGe,
}

func (t *translator) comparison(node *compareOp, left, right operand) (clause.Expression, error) {
	cmp := node.Op
	switch {
	case cmp.Symbol == "in":
		return t.membership(node, left, right, clause.OpIn)
	case cmp.NotIn:
		return t.membership(node, left, right, clause.OpNotIn)
	case cmp.Is, cmp.IsNot:
		return t.identity(node, left, right, cmp.IsNot)
	}

	op := comparisonOperators[cmp.Symbol]
	if left.sequence || right.sequence {
		return nil, unsupported(t.src, node.Pos, NodeSequence, "sequences can only be used with 'in'")
	}
	if left.literal && !right.literal {
		left, right = right, left
		op = op.Reflect()
	}
	if left.literal {
		return nil, unsupported(t.src, node.Pos, NodeComparison, "comparison between two literals")
	}
	if left.predicate || right.predicate {
		return nil, unsupported(t.src, node.Pos, NodeComparison, "conditions cannot be compared")
	}

	if right.literal && right.value == nil {
		switch op {
		case clause.OpEq:
			return clause.IsNull(left.expr), nil
		case clause.OpNotEq:
			return clause.IsNotNull(left.expr), nil
		}
		return nil, unsupported(t.src, node.Pos, NodeComparison, "None only supports equality")
	}
	if right.literal {
		lit, err := t.bindLiteral(left.typ, right)
		if err != nil {
			return nil, err
		}
		return clause.Compare(left.expr, op, lit), nil
	}
	return clause.Compare(left.expr, op, right.expr), nil
}

func (t *translator) membership(node *compareOp, left, right operand, op clause.Operator) (clause.Expression, error) {
	if !left.attribute {
		return nil, unsupported(t.src, node.Pos, NodeComparison, "the left side of 'in' must be an attribute")
	}
	if !right.sequence {
		return nil, unsupported(t.src, node.Pos, NodeComparison, "the right side of 'in' must be a list or tuple")
	}
	if len(right.items) == 0 {
		return nil, unsupported(t.src, node.Pos, NodeSequence, "empty sequence")
	}
	items := make([]clause.Expression, 0, len(right.items))
	for _, item := range right.items {
		if !item.literal || item.value == nil {
			return nil, unsupported(t.src, item.pos, NodeSequence, "sequence items must be non-null literals")
		}
		lit, err := t.bindLiteral(left.typ, item)
		if err != nil {
			return nil, err
		}
		items = append(items, lit)
	}
	return clause.Compare(left.expr, op, &clause.Tuple{Items: items}), nil
}

func (t *translator) identity(node *compareOp, left, right operand, negated bool) (clause.Expression, error) {
	if left.literal && left.value == nil && right.attribute {
		left, right = right, left
	}
	if !right.literal || right.value != nil {
		return nil, unsupported(t.src, node.Pos, NodeComparison, "identity comparison only supports None")
	}
	if !left.attribute {
		return nil, unsupported(t.src, node.Pos, NodeComparison, "the left side of 'is' must be an attribute")
	}
	if negated {
		return clause.IsNotNull(left.expr), nil
	}
	return clause.IsNull(left.expr), nil
}

// bindLiteral keeps the literal as written for rendering and coerces the
// bound value to the attribute's column type. Integral floats that do not
// fit an integer column are rejected.
func (t *translator) bindLiteral(typ domain.ColumnType, lit operand) (*clause.Literal, error) {
	if f, ok := lit.value.(float64); ok && typ == domain.ColumnTypeInteger && f == math.Trunc(f) {
		if _, fits := domain.FloatToInt(f); !fits {
			return nil, unsupported(t.src, lit.pos, NodeLiteral, "integer %s is out of range", strconv.FormatFloat(f, 'g', -1, 64))
		}
	}
	return &clause.Literal{Value: lit.value, Bind: domain.Coerce(typ, lit.value)}, nil
}

func (t *translator) binary(node *binary) (operand, error) {
	if len(node.Rest) > 0 {
		tail := node.Rest[0]
		return operand{}, unsupported(t.src, tail.Pos, NodeOperator, "%s (%q)", operatorNames[tail.Op], tail.Op)
	}
	return t.unary(node.Left)
}

func (t *translator) unary(node *unary) (operand, error) {
	if node.Primary != nil {
		return t.primary(node.Primary)
	}
	op, err := t.unary(node.Operand)
	if err != nil {
		return operand{}, err
	}
	if op.literal && (node.Op == "-" || node.Op == "+") {
		switch v := op.value.(type) {
		case int64:
			if node.Op == "-" {
				v = -v
			}
			return literalOperand(node.Pos, v), nil
		case float64:
			if node.Op == "-" {
				v = -v
			}
			return literalOperand(node.Pos, v), nil
		}
	}
	name := operatorNames[node.Op]
	if node.Op == "-" {
		name = "negation"
	} else if node.Op == "+" {
		name = "unary plus"
	}
	return operand{}, unsupported(t.src, node.Pos, NodeUnary, "%s (%q)", name, node.Op)
}

func (t *translator) primary(node *primary) (operand, error) {
	a := node.Atom
	if len(node.Trailers) == 0 {
		if a.Name != nil {
			return t.attribute(a.Pos, *a.Name)
		}
		return t.atom(a)
	}

	first := node.Trailers[0]
	if len(node.Trailers) > 1 {
		next := node.Trailers[1]
		return operand{}, unsupported(t.src, next.Pos, trailerKind(next), "chained access is not supported")
	}
	if a.Name == nil {
		return operand{}, unsupported(t.src, first.Pos, trailerKind(first), "only names can be followed by '.' or '('")
	}

	switch {
	case first.Attribute != nil:
		if !t.table.Matches(*a.Name) {
			return operand{}, unsupported(t.src, a.Pos, NodeName, "unknown name %q", *a.Name)
		}
		return t.attribute(first.Pos, *first.Attribute)
	case first.Call != nil:
		return t.call(a.Pos, *a.Name, first.Call)
	default:
		return operand{}, unsupported(t.src, first.Pos, NodeSubscript, "subscripts are not supported")
	}
}

func trailerKind(tr *trailer) string {
	switch {
	case tr.Attribute != nil:
		return NodeAttribute
	case tr.Call != nil:
		return NodeCall
	default:
		return NodeSubscript
	}
}

func (t *translator) attribute(pos lexer.Position, name string) (operand, error) {
	expr, typ, ok := t.table.Lookup(name)
	if !ok {
		model := t.table.Model
		if model == "" {
			model = t.table.Name
		}
		return operand{}, unsupported(t.src, pos, NodeAttribute, "%s has no attribute %q", model, name)
	}
	return operand{pos: pos, expr: expr, attribute: true, typ: typ}, nil
}

func (t *translator) atom(a *atom) (operand, error) {
	switch {
	case a.Float != nil:
		return literalOperand(a.Pos, *a.Float), nil
	case a.Int != nil:
		n, err := strconv.ParseInt(*a.Int, 10, 64)
		if err != nil {
			return operand{}, unsupported(t.src, a.Pos, NodeLiteral, "integer %s is out of range", *a.Int)
		}
		return literalOperand(a.Pos, n), nil
	case len(a.Str) > 0:
		var b strings.Builder
		for _, s := range a.Str {
			b.WriteString(unquote(s))
		}
		if strings.ContainsRune(b.String(), 0) {
			return operand{}, unsupported(t.src, a.Pos, NodeLiteral, "strings cannot contain NUL characters")
		}
		return literalOperand(a.Pos, b.String()), nil
	case a.Const != nil:
		switch *a.Const {
		case "True":
			return literalOperand(a.Pos, true), nil
		case "False":
			return literalOperand(a.Pos, false), nil
		}
		return operand{pos: a.Pos, expr: clause.Null, literal: true}, nil
	case a.List != nil:
		return t.sequence(a.Pos, a.List.Items)
	case a.Paren != nil:
		if len(a.Paren.Items) == 1 && !a.Paren.Comma {
			return t.or(a.Paren.Items[0])
		}
		return t.sequence(a.Pos, a.Paren.Items)
	}
	return operand{}, unsupported(t.src, a.Pos, NodeLiteral, "unrecognised literal")
}

func (t *translator) sequence(pos lexer.Position, nodes []*orExpr) (operand, error) {
	items := make([]operand, 0, len(nodes))
	for _, node := range nodes {
		item, err := t.or(node)
		if err != nil {
			return operand{}, err
		}
		items = append(items, item)
	}
	return operand{pos: pos, sequence: true, items: items}, nil
}

func literalOperand(pos lexer.Position, v any) operand {
	return operand{pos: pos, expr: clause.Lit(v), literal: true, value: v}
}

type constructor struct {
	minArgs, maxArgs int
}

var constructors = map[string]constructor{
	"datetime": {minArgs: 3, maxArgs: 7},
	"date":     {minArgs: 3, maxArgs: 3},
}

// call translates the timestamp constructors datetime(y, m, d[, H, M, S[, µs]])
// and date(y, m, d) into literals. Other calls are rejected.
func (t *translator) call(pos lexer.Position, name string, call *callArgs) (operand, error) {
	ctor, ok := constructors[name]
	if !ok {
		return operand{}, unsupported(t.src, pos, NodeCall, "function %q is not supported", name)
	}
	if len(call.Args) < ctor.minArgs || len(call.Args) > ctor.maxArgs {
		return operand{}, unsupported(t.src, pos, NodeCall, "%s() takes %d to %d arguments, got %d", name, ctor.minArgs, ctor.maxArgs, len(call.Args))
	}

	parts := make([]int, 7)
	for i, arg := range call.Args {
		op, err := t.or(arg)
		if err != nil {
			return operand{}, err
		}
		n, ok := op.value.(int64)
		if !op.literal || !ok {
			return operand{}, unsupported(t.src, op.pos, NodeCall, "%s() arguments must be integers", name)
		}
		parts[i] = int(n)
	}

	year, month, day := parts[0], parts[1], parts[2]
	if year < 1 || year > 9999 {
		return operand{}, unsupported(t.src, pos, NodeCall, "%s() year %d is out of range", name, year)
	}
	ts := time.Date(year, time.Month(month), day, parts[3], parts[4], parts[5], parts[6]*1000, time.UTC)
	if ts.Year() != year || int(ts.Month()) != month || ts.Day() != day ||
		ts.Hour() != parts[3] || ts.Minute() != parts[4] || ts.Second() != parts[5] ||
		parts[6] < 0 || parts[6] > 999999 {
		return operand{}, unsupported(t.src, pos, NodeCall, "%s() arguments are out of range", name)
	}
	return literalOperand(pos, ts), nil
}

// unquote strips the quotes of a string token and resolves its escapes.
// Unknown escapes are kept as written.
func unquote(tok string) string {
	body := tok[1 : len(tok)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		ch := body[i]
		if ch != '\\' || i+1 == len(body) {
			b.WriteByte(ch)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case '\\', '\'', '"':
			b.WriteByte(body[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
