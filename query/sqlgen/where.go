// Package sqlgen provides WHERE clause structures.
package sqlgen

import (
	"regexp"
	"sort"
	"strings"

	"github.com/supergnaw/nestbox/errdefs"
)

// Comparison operators accepted in a predicate.
const (
	OpEq      = "="
	OpGt      = ">"
	OpLt      = "<"
	OpGte     = ">="
	OpLte     = "<="
	OpNe      = "<>"
	OpNotEq   = "!="
	OpLike    = "LIKE"
	OpBetween = "BETWEEN"
	OpIn      = "IN"
)

var validOperators = map[string]bool{
	OpEq: true, OpGt: true, OpLt: true, OpGte: true, OpLte: true,
	OpNe: true, OpNotEq: true, OpLike: true, OpBetween: true, OpIn: true,
}

// whereKeyPattern splits "column OP" keys such as "content LIKE" or "age>=".
var whereKeyPattern = regexp.MustCompile(`(?i)^\s*(\w+)\s*(<=|>=|<>|!=|<|>|=|LIKE|BETWEEN|IN)?\s*$`)

var conjunctionPattern = regexp.MustCompile(`(?i)^(and|or)$`)

// Predicate is a single column comparison.
type Predicate struct {
	Column   string
	Operator string
	Value    interface{}
}

// Where is an ordered list of predicates joined by one conjunction.
type Where []Predicate

// Cond builds a predicate from a key that may carry an operator suffix, as in
// Cond("title LIKE", "%go%").
func Cond(key string, value interface{}) (Predicate, error) {
	column, op, err := ParseWhereKey(key)
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Column: column, Operator: op, Value: value}, nil
}

// WhereMap converts a column => value map into predicates. Keys are sorted so
// the compiled SQL is stable.
func WhereMap(m map[string]interface{}) (Where, error) {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	where := make(Where, 0, len(keys))
	for _, key := range keys {
		p, err := Cond(key, m[key])
		if err != nil {
			return nil, err
		}
		where = append(where, p)
	}
	return where, nil
}

// Columns returns the columns referenced by the predicates.
func (w Where) Columns() []string {
	cols := make([]string, len(w))
	for i, p := range w {
		cols[i] = p.Column
	}
	return cols
}

// ParseWhereKey splits a where key into column and operator. The operator
// defaults to "=".
func ParseWhereKey(key string) (string, string, error) {
	m := whereKeyPattern.FindStringSubmatch(key)
	if m == nil {
		// a bare word followed by something that is not an operator
		fields := strings.Fields(key)
		if len(fields) > 1 {
			if _, err := ValidIdentifier(fields[0]); err == nil {
				return "", "", &operatorError{op: strings.Join(fields[1:], " ")}
			}
		}
		return "", "", errdefs.NewSyntaxError(key)
	}
	op := strings.ToUpper(m[2])
	if op == "" {
		op = OpEq
	}
	return m[1], op, nil
}

// NormalizeOperator upper-cases op and checks it is supported.
func NormalizeOperator(op string) (string, error) {
	op = strings.ToUpper(strings.TrimSpace(op))
	if op == "" {
		return OpEq, nil
	}
	if !validOperators[op] {
		return "", &operatorError{op: op}
	}
	return op, nil
}

// SanitizeConjunction returns "AND" or "OR". Anything else becomes "AND".
func SanitizeConjunction(conjunction string) string {
	c := strings.TrimSpace(conjunction)
	if conjunctionPattern.MatchString(c) {
		return strings.ToUpper(c)
	}
	return "AND"
}

type operatorError struct {
	op string
}

func (e *operatorError) Error() string {
	return errdefs.ErrInvalidWhereOperator.Error() + ": " + e.op
}

func (e *operatorError) Is(target error) bool {
	return target == errdefs.ErrInvalidWhereOperator
}
