// Package sqlgen provides WHERE clause building logic.
package sqlgen

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/supergnaw/nestbox/errdefs"
)

// buildWhere renders predicates joined by conjunction, allocating placeholder
// names from namer and recording values in params.
func buildWhere(where Where, conjunction string, namer *paramNamer, params Params, quoter func(string) string) (string, error) {
	if len(where) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(where))
	for _, p := range where {
		part, err := buildCondition(p, namer, params, quoter)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	return strings.Join(parts, " "+SanitizeConjunction(conjunction)+" "), nil
}

// buildCondition renders a single predicate.
func buildCondition(p Predicate, namer *paramNamer, params Params, quoter func(string) string) (string, error) {
	column, err := ValidIdentifier(p.Column)
	if err != nil {
		return "", err
	}
	op, err := NormalizeOperator(p.Operator)
	if err != nil {
		return "", err
	}
	col := quoter(column)

	switch op {
	case OpIn:
		values, ok := listValues(p.Value)
		if !ok {
			values = []interface{}{p.Value}
		}
		if len(values) == 0 {
			return "", fmt.Errorf("%w: empty IN list for %s", errdefs.ErrEmptyParams, column)
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			name := namer.next(column)
			params[name] = v
			placeholders[i] = ":" + name
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(placeholders, ", ")), nil

	case OpBetween:
		values, ok := listValues(p.Value)
		if !ok || len(values) != 2 {
			return "", fmt.Errorf("%w: BETWEEN on %s needs exactly two values", errdefs.ErrInvalidWhereOperator, column)
		}
		low, high := namer.next(column), namer.next(column)
		params[low] = values[0]
		params[high] = values[1]
		return fmt.Sprintf("%s BETWEEN :%s AND :%s", col, low, high), nil

	case OpEq, OpNe, OpNotEq:
		// NULL never compares equal, so nil values become IS [NOT] NULL
		if p.Value == nil {
			if op == OpEq {
				return col + " IS NULL", nil
			}
			return col + " IS NOT NULL", nil
		}
	}

	name := namer.next(column)
	params[name] = p.Value
	return fmt.Sprintf("%s %s :%s", col, op, name), nil
}

// listValues flattens a slice or array value. Byte slices are scalars.
func listValues(v interface{}) ([]interface{}, bool) {
	if v == nil {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
