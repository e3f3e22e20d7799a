// Package query compiles caller-supplied filter expressions into
// parameterized SQL WHERE clauses.
//
// The grammar is a conjunction/disjunction of field comparisons:
//
//	expr   := and { "or" and }
//	and    := term { "and" term }
//	term   := "(" expr ")" | field op value
//	op     := "=" | "!=" | "<" | "<=" | ">" | ">=" | "~"
//	value  := number | 'string' | "string" | bareword
//
// "~" is a substring match. Keywords are case-insensitive. An empty
// expression compiles to an empty clause matching every row.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"budget-service/internal/models"
)

// Kind is the value type a column accepts.
type Kind int

const (
	KindInt Kind = iota
	KindString
	KindTime
)

// Column maps an exposed field name onto a SQL column.
type Column struct {
	Name string
	Kind Kind
}

// Columns is the whitelist of fields an entity exposes to filtering.
type Columns map[string]Column

// Compile turns expr into a WHERE clause body and its bound arguments.
// Placeholders are numbered $1..$n in order of appearance. Malformed
// expressions and unknown fields fail with models.ErrInvalidArgument.
func Compile(expr string, cols Columns) (string, []any, error) {
	if strings.TrimSpace(expr) == "" {
		return "", nil, nil
	}

	toks, err := lex(expr)
	if err != nil {
		return "", nil, err
	}

	c := &compiler{toks: toks, cols: cols}
	clause, err := c.parseOr()
	if err != nil {
		return "", nil, err
	}
	if c.peek().kind != tokEOF {
		return "", nil, fmt.Errorf("%w: unexpected %q in query", models.ErrInvalidArgument, c.peek().text)
	}
	return clause, c.args, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(input string) ([]token, error) {
	var toks []token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '\'' || r == '"':
			quote := r
			i++
			start := i
			for i < len(runes) && runes[i] != quote {
				i++
			}
			if i >= len(runes) {
				return nil, fmt.Errorf("%w: unterminated string in query", models.ErrInvalidArgument)
			}
			toks = append(toks, token{tokString, string(runes[start:i])})
			i++
		case r == '=' || r == '~':
			toks = append(toks, token{tokOp, string(r)})
			i++
		case r == '!' || r == '<' || r == '>':
			op := string(r)
			i++
			if i < len(runes) && runes[i] == '=' {
				op += "="
				i++
			}
			if op == "!" {
				return nil, fmt.Errorf("%w: unexpected %q in query", models.ErrInvalidArgument, op)
			}
			toks = append(toks, token{tokOp, op})
		case r == '-' || unicode.IsDigit(r):
			start := i
			i++
			for i < len(runes) && unicode.IsDigit(runes[i]) {
				i++
			}
			toks = append(toks, token{tokNumber, string(runes[start:i])})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			toks = append(toks, token{tokIdent, string(runes[start:i])})
		default:
			return nil, fmt.Errorf("%w: unexpected %q in query", models.ErrInvalidArgument, string(r))
		}
	}
	return append(toks, token{tokEOF, ""}), nil
}

type compiler struct {
	toks []token
	pos  int
	cols Columns
	args []any
}

func (c *compiler) peek() token {
	return c.toks[c.pos]
}

func (c *compiler) next() token {
	t := c.toks[c.pos]
	if t.kind != tokEOF {
		c.pos++
	}
	return t
}

func (c *compiler) keyword(word string) bool {
	t := c.peek()
	if t.kind == tokIdent && strings.EqualFold(t.text, word) {
		c.next()
		return true
	}
	return false
}

func (c *compiler) parseOr() (string, error) {
	left, err := c.parseAnd()
	if err != nil {
		return "", err
	}
	for c.keyword("or") {
		right, err := c.parseAnd()
		if err != nil {
			return "", err
		}
		left = "(" + left + " OR " + right + ")"
	}
	return left, nil
}

func (c *compiler) parseAnd() (string, error) {
	left, err := c.parseTerm()
	if err != nil {
		return "", err
	}
	for c.keyword("and") {
		right, err := c.parseTerm()
		if err != nil {
			return "", err
		}
		left = "(" + left + " AND " + right + ")"
	}
	return left, nil
}

func (c *compiler) parseTerm() (string, error) {
	if c.peek().kind == tokLParen {
		c.next()
		inner, err := c.parseOr()
		if err != nil {
			return "", err
		}
		if c.peek().kind != tokRParen {
			return "", fmt.Errorf("%w: missing closing parenthesis in query", models.ErrInvalidArgument)
		}
		c.next()
		return "(" + inner + ")", nil
	}
	return c.parseComparison()
}

func (c *compiler) parseComparison() (string, error) {
	field := c.next()
	if field.kind != tokIdent {
		return "", fmt.Errorf("%w: expected field name, got %q", models.ErrInvalidArgument, field.text)
	}
	col, ok := c.cols[strings.ToLower(field.text)]
	if !ok {
		return "", fmt.Errorf("%w: unknown field %q", models.ErrInvalidArgument, field.text)
	}

	op := c.next()
	if op.kind != tokOp {
		return "", fmt.Errorf("%w: expected operator after %q", models.ErrInvalidArgument, field.text)
	}

	val := c.next()
	if val.kind != tokNumber && val.kind != tokString && val.kind != tokIdent {
		return "", fmt.Errorf("%w: expected value after %q", models.ErrInvalidArgument, op.text)
	}

	if op.text == "~" {
		if col.Kind != KindString {
			return "", fmt.Errorf("%w: %q only applies to text fields", models.ErrInvalidArgument, op.text)
		}
		c.args = append(c.args, "%"+val.text+"%")
		return fmt.Sprintf("%s LIKE $%d", col.Name, len(c.args)), nil
	}

	arg, err := coerce(col, val)
	if err != nil {
		return "", err
	}
	c.args = append(c.args, arg)

	sqlOp := op.text
	if sqlOp == "!=" {
		sqlOp = "<>"
	}
	return fmt.Sprintf("%s %s $%d", col.Name, sqlOp, len(c.args)), nil
}

func coerce(col Column, val token) (any, error) {
	switch col.Kind {
	case KindInt:
		n, err := strconv.ParseInt(val.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", models.ErrInvalidArgument, val.text)
		}
		return n, nil
	case KindTime:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, val.text); err == nil {
				return t.UTC(), nil
			}
		}
		return nil, fmt.Errorf("%w: %q is not a timestamp", models.ErrInvalidArgument, val.text)
	default:
		return val.text, nil
	}
}
