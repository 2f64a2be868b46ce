package clause

// Null is the SQL NULL literal.
var Null Expression = null{}

// Col references column name of table.
func Col(table, name string) *Column {
	return &Column{Table: table, Name: name}
}

// Lit wraps a constant operand.
func Lit(v any) *Literal {
	return &Literal{Value: v, Bind: v}
}

// Concatenate joins parts with the || operator.
func Concatenate(parts ...Expression) *Concat {
	return &Concat{Parts: parts}
}

// Compare builds left op right.
func Compare(left Expression, op Operator, right Expression) *Binary {
	return &Binary{Left: left, Op: op, Right: right}
}

func Eq(left, right Expression) *Binary    { return Compare(left, OpEq, right) }
func NotEq(left, right Expression) *Binary { return Compare(left, OpNotEq, right) }
func Lt(left, right Expression) *Binary    { return Compare(left, OpLt, right) }
func Le(left, right Expression) *Binary    { return Compare(left, OpLe, right) }
func Gt(left, right Expression) *Binary    { return Compare(left, OpGt, right) }
func Ge(left, right Expression) *Binary    { return Compare(left, OpGe, right) }

// IsNull builds "e IS NULL".
func IsNull(e Expression) *Binary { return Compare(e, OpIs, Null) }

// IsNotNull builds "e IS NOT NULL".
func IsNotNull(e Expression) *Binary { return Compare(e, OpIsNot, Null) }

// In builds "e IN (items...)".
func In(e Expression, items ...Expression) *Binary {
	return Compare(e, OpIn, &Tuple{Items: items})
}

// NotIn builds "e NOT IN (items...)".
func NotIn(e Expression, items ...Expression) *Binary {
	return Compare(e, OpNotIn, &Tuple{Items: items})
}

// And joins clauses with AND. Nested AND lists are flattened and a single
// clause is returned as is. It returns nil when no clause is given.
func And(clauses ...Expression) Expression {
	return join(OpAnd, clauses)
}

// Or joins clauses with OR, following the same rules as And.
func Or(clauses ...Expression) Expression {
	return join(OpOr, clauses)
}

func join(op BoolOp, clauses []Expression) Expression {
	flat := make([]Expression, 0, len(clauses))
	for _, c := range clauses {
		if c == nil {
			continue
		}
		if bl, ok := c.(*BooleanList); ok && bl.Op == op {
			flat = append(flat, bl.Clauses...)
			continue
		}
		flat = append(flat, c)
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	}
	return &BooleanList{Op: op, Clauses: flat}
}

// Negate returns the logical negation of e. Equality, identity and
// membership comparisons flip their operator; NOT NOT e collapses to e.
func Negate(e Expression) Expression {
	switch v := e.(type) {
	case *Binary:
		if op, ok := inverse[v.Op]; ok {
			return Compare(v.Left, op, v.Right)
		}
	case *Not:
		return v.Expr
	}
	return &Not{Expr: e}
}
