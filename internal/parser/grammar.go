package parser

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Newlines separate statements at the top level and are ignored inside
// brackets, so a parenthesised condition may span lines.
var exprLexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{Name: "Sep", Pattern: `[;\n]`},
		{Name: "Open", Pattern: `[(\[]`, Action: lexer.Push("Nested")},
		{Name: "Close", Pattern: `[)\]]`},
		lexer.Include("Common"),
	},
	"Nested": {
		{Name: "Newline", Pattern: `\n`},
		{Name: "Sep", Pattern: `;`},
		{Name: "Open", Pattern: `[(\[]`, Action: lexer.Push("Nested")},
		{Name: "Close", Pattern: `[)\]]`, Action: lexer.Pop()},
		lexer.Include("Common"),
	},
	"Common": {
		{Name: "Comment", Pattern: `#[^\n]*`},
		{Name: "Whitespace", Pattern: `[ \t\r]+|\\\n`},
		{Name: "Float", Pattern: `\d+\.\d*(?:[eE][+-]?\d+)?|\.\d+(?:[eE][+-]?\d+)?|\d+[eE][+-]?\d+`},
		{Name: "Int", Pattern: `\d+`},
		{Name: "String", Pattern: `"(?:\\.|[^"\\\n])*"|'(?:\\.|[^'\\\n])*'`},
		{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
		{Name: "Operator", Pattern: `==|!=|>=|<=|<<|>>|\*\*|//|[-+*/%@&|^~<>,.:=]`},
	},
})

var grammar = participle.MustBuild[module](
	participle.Lexer(exprLexer),
	participle.Elide("Whitespace", "Comment", "Newline"),
	participle.UseLookahead(4),
)

// module is a sequence of statements separated by ";" or newlines.
type module struct {
	Statements []*orExpr `Sep* ( @@ ( Sep+ @@? )* )?`
}

type orExpr struct {
	Pos   lexer.Position
	Terms []*andExpr `@@ ( "or" @@ )*`
}

type andExpr struct {
	Pos   lexer.Position
	Terms []*notExpr `@@ ( "and" @@ )*`
}

type notExpr struct {
	Pos     lexer.Position
	Negated *notExpr `  "not" @@`
	Compare *compare `| @@`
}

type compare struct {
	Pos  lexer.Position
	Left *binary      `@@`
	Ops  []*compareOp `@@*`
}

type compareOp struct {
	Pos   lexer.Position
	Op    *comparator `@@`
	Right *binary     `@@`
}

type comparator struct {
	Symbol string `  @( "==" | "!=" | "<=" | ">=" | "<" | ">" | "in" )`
	NotIn  bool   `| @( "not" "in" )`
	IsNot  bool   `| @( "is" "not" )`
	Is     bool   `| @"is"`
}

// binary holds every arithmetic, shift and bitwise operator at a single
// level. None of them translate to a filter, so their relative precedence
// never matters.
type binary struct {
	Pos  lexer.Position
	Left *unary        `@@`
	Rest []*binaryTail `@@*`
}

type binaryTail struct {
	Pos   lexer.Position
	Op    string `@( "|" | "^" | "&" | "<<" | ">>" | "+" | "-" | "*" | "//" | "/" | "%" | "**" | "@" )`
	Right *unary `@@`
}

type unary struct {
	Pos     lexer.Position
	Op      string   `(  @( "-" | "+" | "~" )`
	Operand *unary   `   @@ )`
	Primary *primary `| @@`
}

type primary struct {
	Pos      lexer.Position
	Atom     *atom      `@@`
	Trailers []*trailer `@@*`
}

type trailer struct {
	Pos       lexer.Position
	Attribute *string    `  "." @Ident`
	Call      *callArgs  `| @@`
	Subscript *subscript `| @@`
}

type callArgs struct {
	Open string    `@"("`
	Args []*orExpr `( @@ ( "," @@ )* ","? )? ")"`
}

type subscript struct {
	Open  string  `@"["`
	Index *orExpr `@@ "]"`
}

type atom struct {
	Pos   lexer.Position
	Float *float64  `  @Float`
	Int   *string   `| @Int`
	Str   []string  `| @String+`
	Const *string   `| @( "True" | "False" | "None" )`
	Name  *string   `| @Ident`
	List  *listLit  `| @@`
	Paren *parenLit `| @@`
}

type listLit struct {
	Open  string    `@"["`
	Items []*orExpr `( @@ ( "," @@ )* ","? )? "]"`
}

type parenLit struct {
	Open  string    `@"("`
	Items []*orExpr `( @@ ( "," @@ )* )?`
	Comma bool      `@","? ")"`
}
