// Package parser translates filter expressions written in a small
// Python-like syntax into filter clauses against a mapped table.
//
//	firstname == "Barack" and (born < datetime(1970, 1, 1) or lastname != None)
//
// Supported constructs are comparisons (== != < <= > >= in, not in, is,
// is not), the boolean operators and, or, not, attribute names, literals
// (numbers, strings, True, False, None, lists and tuples) and the
// datetime/date constructors. Anything else is reported as a *ParseError.
package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/rpattn/eveql/internal/clause"
	"github.com/rpattn/eveql/internal/domain"
)

// Parse translates expr into one filter clause per statement. Statements
// are separated by ";" or newlines. A blank expression yields no clauses.
func Parse(expr string, table *domain.Table) ([]clause.Expression, error) {
	if strings.TrimSpace(expr) == "" {
		return []clause.Expression{}, nil
	}

	tree, err := grammar.ParseString("", expr)
	if err != nil {
		return nil, syntaxError(expr, err)
	}

	t := &translator{table: table, src: expr}
	clauses := make([]clause.Expression, 0, len(tree.Statements))
	for _, stmt := range tree.Statements {
		c, err := t.statement(stmt)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, c)
	}
	return clauses, nil
}

// ParseSort parses a sort expression. Two forms are accepted: a list of
// (field, direction) tuples such as [("lastname", -1), ("born", 1)], and a
// comma separated list of field names where a leading "-" means descending.
func ParseSort(expr string, table *domain.Table) ([]domain.Sort, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		return parseSortList(expr, table)
	}

	var sorts []domain.Sort
	column := 1
	for _, part := range strings.Split(expr, ",") {
		pos := lexer.Position{Line: 1, Column: column}
		column += len(part) + 1

		field := strings.TrimSpace(part)
		direction := domain.SortDirectionAsc
		switch {
		case strings.HasPrefix(field, "-"):
			direction = domain.SortDirectionDesc
			field = field[1:]
		case strings.HasPrefix(field, "+"):
			field = field[1:]
		}
		if err := checkSortField(expr, pos, field, table); err != nil {
			return nil, err
		}
		sorts = append(sorts, domain.Sort{Field: field, Direction: direction})
	}
	return sorts, nil
}

func parseSortList(expr string, table *domain.Table) ([]domain.Sort, error) {
	tree, err := grammar.ParseString("", expr)
	if err != nil {
		return nil, syntaxError(expr, err)
	}
	if len(tree.Statements) != 1 {
		return nil, &ParseError{Expr: expr, Pos: lexer.Position{Line: 1, Column: 1}, Node: NodeStatement, Msg: "sort must be a single list"}
	}

	list := soleAtom(tree.Statements[0])
	if list == nil || list.List == nil {
		return nil, unsupported(expr, tree.Statements[0].Pos, NodeSequence, "sort must be a list of (field, direction) tuples")
	}

	t := &translator{table: table, src: expr}
	sorts := make([]domain.Sort, 0, len(list.List.Items))
	for _, item := range list.List.Items {
		pair := soleAtom(item)
		if pair == nil || pair.Paren == nil || len(pair.Paren.Items) != 2 {
			return nil, unsupported(expr, item.Pos, NodeSequence, "sort items must be (field, direction) tuples")
		}

		name := soleAtom(pair.Paren.Items[0])
		if name == nil || len(name.Str) == 0 {
			return nil, unsupported(expr, pair.Paren.Items[0].Pos, NodeLiteral, "sort field must be a string")
		}
		field, err := t.atom(name)
		if err != nil {
			return nil, err
		}
		fieldName := field.value.(string)
		if err := checkSortField(expr, name.Pos, fieldName, table); err != nil {
			return nil, err
		}

		dir, err := t.or(pair.Paren.Items[1])
		if err != nil {
			return nil, err
		}
		n, ok := dir.value.(int64)
		if !dir.literal || !ok || (n != 1 && n != -1) {
			return nil, unsupported(expr, pair.Paren.Items[1].Pos, NodeLiteral, "sort direction must be 1 or -1")
		}
		direction := domain.SortDirectionAsc
		if n < 0 {
			direction = domain.SortDirectionDesc
		}
		sorts = append(sorts, domain.Sort{Field: fieldName, Direction: direction})
	}
	return sorts, nil
}

func checkSortField(expr string, pos lexer.Position, field string, table *domain.Table) error {
	if field == "" {
		return &ParseError{Expr: expr, Pos: pos, Msg: "empty sort field"}
	}
	if _, _, ok := table.Lookup(field); !ok {
		return unsupported(expr, pos, NodeAttribute, "cannot sort by unknown attribute %q", field)
	}
	return nil
}

// soleAtom returns the atom of an expression made of nothing but that atom.
func soleAtom(node *orExpr) *atom {
	if len(node.Terms) != 1 || len(node.Terms[0].Terms) != 1 {
		return nil
	}
	n := node.Terms[0].Terms[0]
	if n.Compare == nil || len(n.Compare.Ops) != 0 {
		return nil
	}
	b := n.Compare.Left
	if len(b.Rest) != 0 || b.Left.Primary == nil || len(b.Left.Primary.Trailers) != 0 {
		return nil
	}
	return b.Left.Primary.Atom
}
