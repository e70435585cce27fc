// Package filter parses --where expressions such as
//
//	category = "news" AND title LIKE "%go%"
//
// into predicates. One expression uses a single conjunction throughout.
package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// ErrMixedConjunction is returned when AND and OR are combined.
var ErrMixedConjunction = errors.New("cannot mix AND and OR in one filter")

// FilterLexer tokenizes filter expressions.
var FilterLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `(?i)\b(AND|OR|NOT|IS|NULL|IN|LIKE|BETWEEN|TRUE|FALSE)\b`},
	{Name: "Ident", Pattern: `[A-Za-z_]\w*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"|'(?:''|[^'])*'`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Operator", Pattern: `<=|>=|<>|!=|=|<|>`},
	{Name: "Punct", Pattern: `[(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// Expression is a chain of conditions.
type Expression struct {
	First *Condition `@@`
	Rest  []*Chained `@@*`
}

// Chained is a condition preceded by its conjunction.
type Chained struct {
	Conjunction string     `@("AND" | "OR")`
	Condition   *Condition `@@`
}

// Condition compares one column.
type Condition struct {
	Column  string   `@Ident`
	IsNull  *IsNull  `( @@`
	In      []*Value `| "IN" "(" @@ ( "," @@ )* ")"`
	Between *Range   `| "BETWEEN" @@`
	Op      string   `| @( Operator | "LIKE" )`
	Value   *Value   `  @@ )`
}

// IsNull is an IS [NOT] NULL test.
type IsNull struct {
	Not bool `"IS" @"NOT"? "NULL"`
}

// Range holds the bounds of BETWEEN.
type Range struct {
	Low  *Value `@@ "AND"`
	High *Value `@@`
}

// Value is a literal.
type Value struct {
	String *string `  @String`
	Number *string `| @Number`
	Bool   *string `| @( "TRUE" | "FALSE" )`
	Null   bool    `| @"NULL"`
}

var parser = participle.MustBuild[Expression](
	participle.Lexer(FilterLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Keyword"),
	participle.UseLookahead(2),
)

// Parse turns a filter expression into predicates and their conjunction. An
// empty expression yields no predicates.
func Parse(input string) (sqlgen.Where, string, error) {
	if strings.TrimSpace(input) == "" {
		return nil, "AND", nil
	}
	expr, err := parser.ParseString("where", input)
	if err != nil {
		return nil, "", fmt.Errorf("invalid filter: %w", err)
	}

	conjunction := "AND"
	conds := []*Condition{expr.First}
	for i, c := range expr.Rest {
		conj := strings.ToUpper(c.Conjunction)
		if i == 0 {
			conjunction = conj
		} else if conj != conjunction {
			return nil, "", ErrMixedConjunction
		}
		conds = append(conds, c.Condition)
	}

	where := make(sqlgen.Where, 0, len(conds))
	for _, c := range conds {
		p, err := c.predicate()
		if err != nil {
			return nil, "", err
		}
		where = append(where, p)
	}
	return where, conjunction, nil
}

func (c *Condition) predicate() (sqlgen.Predicate, error) {
	p := sqlgen.Predicate{Column: c.Column}
	switch {
	case c.IsNull != nil:
		p.Operator = sqlgen.OpEq
		if c.IsNull.Not {
			p.Operator = sqlgen.OpNe
		}
	case c.In != nil:
		values := make([]interface{}, len(c.In))
		for i, v := range c.In {
			val, err := v.value()
			if err != nil {
				return p, err
			}
			values[i] = val
		}
		p.Operator = sqlgen.OpIn
		p.Value = values
	case c.Between != nil:
		low, err := c.Between.Low.value()
		if err != nil {
			return p, err
		}
		high, err := c.Between.High.value()
		if err != nil {
			return p, err
		}
		p.Operator = sqlgen.OpBetween
		p.Value = []interface{}{low, high}
	default:
		val, err := c.Value.value()
		if err != nil {
			return p, err
		}
		p.Operator = strings.ToUpper(c.Op)
		p.Value = val
	}
	return p, nil
}

func (v *Value) value() (interface{}, error) {
	switch {
	case v.String != nil:
		return unquote(*v.String)
	case v.Number != nil:
		if n, err := strconv.ParseInt(*v.Number, 10, 64); err == nil {
			return n, nil
		}
		return strconv.ParseFloat(*v.Number, 64)
	case v.Bool != nil:
		return strings.EqualFold(*v.Bool, "TRUE"), nil
	default:
		return nil, nil
	}
}

// unquote accepts Go-style double-quoted strings and SQL-style single-quoted
// strings, where a doubled quote stands for one.
func unquote(s string) (string, error) {
	if strings.HasPrefix(s, "'") {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), nil
	}
	return strconv.Unquote(s)
}
