package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		where       sqlgen.Where
		conjunction string
	}{
		{
			name:        "empty",
			input:       "  ",
			conjunction: "AND",
		},
		{
			name:  "strings",
			input: `category = "news" AND title LIKE '%go%'`,
			where: sqlgen.Where{
				{Column: "category", Operator: "=", Value: "news"},
				{Column: "title", Operator: "LIKE", Value: "%go%"},
			},
			conjunction: "AND",
		},
		{
			name:  "numbers with or",
			input: "views >= 10 or score < 2.5 OR delta != -3",
			where: sqlgen.Where{
				{Column: "views", Operator: ">=", Value: int64(10)},
				{Column: "score", Operator: "<", Value: 2.5},
				{Column: "delta", Operator: "!=", Value: int64(-3)},
			},
			conjunction: "OR",
		},
		{
			name:  "null tests",
			input: "published IS NULL and edited is not null",
			where: sqlgen.Where{
				{Column: "published", Operator: sqlgen.OpEq},
				{Column: "edited", Operator: sqlgen.OpNe},
			},
			conjunction: "AND",
		},
		{
			name:  "in list",
			input: `entry_id IN (1, 2, 3) AND category in ("news")`,
			where: sqlgen.Where{
				{Column: "entry_id", Operator: sqlgen.OpIn, Value: []interface{}{int64(1), int64(2), int64(3)}},
				{Column: "category", Operator: sqlgen.OpIn, Value: []interface{}{"news"}},
			},
			conjunction: "AND",
		},
		{
			name:  "between then and",
			input: "created BETWEEN '2024-01-01' AND '2024-12-31' AND is_draft = false",
			where: sqlgen.Where{
				{Column: "created", Operator: sqlgen.OpBetween, Value: []interface{}{"2024-01-01", "2024-12-31"}},
				{Column: "is_draft", Operator: "=", Value: false},
			},
			conjunction: "AND",
		},
		{
			name:  "escaped quotes",
			input: `title = 'it''s' OR title = "say \"hi\""`,
			where: sqlgen.Where{
				{Column: "title", Operator: "=", Value: "it's"},
				{Column: "title", Operator: "=", Value: `say "hi"`},
			},
			conjunction: "OR",
		},
		{
			name:  "compared to null",
			input: "hidden = TRUE AND note = NULL",
			where: sqlgen.Where{
				{Column: "hidden", Operator: "=", Value: true},
				{Column: "note", Operator: "="},
			},
			conjunction: "AND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, conjunction, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.where, where)
			assert.Equal(t, tt.conjunction, conjunction)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, _, err := Parse("a = 1 AND b = 2 OR c = 3")
	assert.ErrorIs(t, err, ErrMixedConjunction)

	for _, input := range []string{"a =", "= 1", "a = 1 AND", "a IN ()", "a BETWEEN 1", "a = 1 b = 2"} {
		t.Run(input, func(t *testing.T) {
			_, _, err := Parse(input)
			assert.Error(t, err)
		})
	}
}
