package clause

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type compiler struct {
	buf     strings.Builder
	args    []any
	literal bool
	err     error
}

func (c *compiler) write(s string) {
	c.buf.WriteString(s)
}

func (c *compiler) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// child compiles e, adding parentheses when it binds looser than parent.
func (c *compiler) child(parent int, e Expression) {
	if e.precedence() < parent {
		c.write("(")
		e.compile(c)
		c.write(")")
		return
	}
	e.compile(c)
}

func (c *compiler) bind(display, value any) {
	if c.literal {
		c.write(FormatLiteral(display))
		return
	}
	c.write("?")
	c.args = append(c.args, value)
}

func toSql(e Expression) (string, []interface{}, error) {
	c := &compiler{}
	e.compile(c)
	if c.err != nil {
		return "", nil, c.err
	}
	return c.buf.String(), c.args, nil
}

// Render returns the SQL text of e with every literal inlined.
func Render(e Expression) (string, error) {
	c := &compiler{literal: true}
	e.compile(c)
	if c.err != nil {
		return "", c.err
	}
	return c.buf.String(), nil
}

func stringify(e Expression) string {
	s, err := Render(e)
	if err != nil {
		return fmt.Sprintf("<invalid clause: %v>", err)
	}
	return s
}

var plainIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var reservedWords = map[string]struct{}{
	"all": {}, "and": {}, "as": {}, "by": {}, "default": {}, "false": {},
	"from": {}, "group": {}, "in": {}, "is": {}, "limit": {}, "not": {},
	"null": {}, "offset": {}, "or": {}, "order": {}, "select": {}, "table": {},
	"true": {}, "user": {}, "where": {},
}

// QuoteIdent double-quotes name unless it is a plain lower-case identifier.
func QuoteIdent(name string) string {
	if plainIdent.MatchString(name) {
		if _, reserved := reservedWords[name]; !reserved {
			return name
		}
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatLiteral renders a Go value as a PostgreSQL literal.
func FormatLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return QuoteString(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return QuoteString(FormatTimestamp(val))
	case fmt.Stringer:
		return QuoteString(val.String())
	default:
		return QuoteString(fmt.Sprint(val))
	}
}

// FormatTimestamp formats t the way PostgreSQL prints a timestamp.
func FormatTimestamp(t time.Time) string {
	if t.Nanosecond() == 0 {
		return t.Format("2006-01-02 15:04:05")
	}
	return t.Format("2006-01-02 15:04:05.000000")
}
