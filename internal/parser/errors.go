package parser

import (
	"errors"
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Kinds of expression nodes the translator rejects.
const (
	NodeOperator   = "operator"
	NodeUnary      = "unary operator"
	NodeCall       = "function call"
	NodeSubscript  = "subscript"
	NodeAttribute  = "attribute"
	NodeName       = "name"
	NodeComparison = "comparison"
	NodeLiteral    = "literal"
	NodeSequence   = "sequence"
	NodeStatement  = "statement"
)

// ParseError is returned for expressions that are not well formed or that
// use a construct with no filter equivalent.
type ParseError struct {
	Expr string
	Pos  lexer.Position
	// Node is the kind of the rejected node. It is empty for syntax errors.
	Node string
	Msg  string
}

// Error returns the string representation of the error.
func (e *ParseError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
	}
	return fmt.Sprintf("parse error at %d:%d: unsupported %s: %s", e.Pos.Line, e.Pos.Column, e.Node, e.Msg)
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func syntaxError(expr string, err error) *ParseError {
	var perr participle.Error
	if errors.As(err, &perr) {
		return &ParseError{Expr: expr, Pos: perr.Position(), Msg: perr.Message()}
	}
	return &ParseError{Expr: expr, Pos: lexer.Position{Line: 1, Column: 1}, Msg: err.Error()}
}

func unsupported(expr string, pos lexer.Position, node, format string, args ...any) *ParseError {
	return &ParseError{Expr: expr, Pos: pos, Node: node, Msg: fmt.Sprintf(format, args...)}
}

var operatorNames = map[string]string{
	"|":  "bitwise or",
	"^":  "bitwise xor",
	"&":  "bitwise and",
	"<<": "left shift",
	">>": "right shift",
	"+":  "addition",
	"-":  "subtraction",
	"*":  "multiplication",
	"/":  "division",
	"//": "floor division",
	"%":  "modulo",
	"**": "power",
	"@":  "matrix multiplication",
	"~":  "bitwise inversion",
}
