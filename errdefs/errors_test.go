package errdefs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{
			name:     "syntax",
			err:      NewSyntaxError("a b"),
			sentinel: ErrInvalidSchemaSyntax,
			message:  `nestbox: invalid schema syntax: "a b"`,
		},
		{
			name:     "table",
			err:      NewTableError("babbler_entries"),
			sentinel: ErrInvalidTable,
			message:  "nestbox: invalid table: babbler_entries",
		},
		{
			name:     "column",
			err:      NewColumnError("babbler_entries", "nope"),
			sentinel: ErrInvalidColumn,
			message:  "nestbox: invalid column: babbler_entries.nope",
		},
		{
			name:     "bind",
			err:      &BindError{Param: "tags", Type: "[]string", Cause: ErrCannotBindArray},
			sentinel: ErrCannotBindArray,
			message:  "nestbox: cannot bind array: tags ([]string)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), tt.sentinel)
			assert.Equal(t, tt.message, tt.err.Error())
			assert.True(t, IsMalformed(tt.err))
			assert.False(t, IsDatabase(tt.err))
		})
	}
}

func TestQueryError(t *testing.T) {
	cause := errors.New("driver said no")

	tests := []struct {
		name string
		err  *QueryError
		want string
	}{
		{"code and state", &QueryError{Code: 1064, SQLState: "42000", Message: "syntax"}, "query error 1064 (42000): syntax"},
		{"code", &QueryError{Code: 1, Message: "syntax"}, "query error 1: syntax"},
		{"state", &QueryError{SQLState: "42601", Message: "syntax"}, "query error (42601): syntax"},
		{"message", &QueryError{Message: "syntax"}, "query error: syntax"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.err.Cause = cause
			assert.Equal(t, tt.want, tt.err.Error())
			assert.ErrorIs(t, tt.err, ErrQuery)
			assert.ErrorIs(t, tt.err, cause)
			assert.True(t, IsDatabase(tt.err))
			assert.False(t, IsMalformed(tt.err))
		})
	}
}

func TestTableOf(t *testing.T) {
	table, ok := TableOf(fmt.Errorf("%w: no such table", NewTableError("session_data")))
	assert.True(t, ok)
	assert.Equal(t, "session_data", table)

	_, ok = TableOf(ErrInvalidTable)
	assert.False(t, ok)

	assert.True(t, IsInvalidTable(ErrInvalidTable))
	assert.False(t, IsInvalidTable(nil))
}

func TestTransactionError(t *testing.T) {
	commitErr := fmt.Errorf("%w: disk full", ErrTransactionCommitFailed)

	plain := &TransactionError{Op: "commit", Cause: commitErr}
	assert.ErrorIs(t, plain, ErrTransactionCommitFailed)
	assert.False(t, IsUncertain(plain))
	assert.Equal(t, "transaction commit: nestbox: failed to commit transaction: disk full", plain.Error())

	rollbackErr := errors.New("connection reset")
	uncertain := &TransactionError{Op: "commit", Cause: commitErr, RollbackErr: rollbackErr}
	assert.ErrorIs(t, uncertain, ErrTransactionCommitFailed)
	assert.ErrorIs(t, uncertain, rollbackErr)
	assert.True(t, IsUncertain(uncertain))
	assert.Contains(t, uncertain.Error(), "rollback failed: connection reset")
}

func TestIsMalformedSentinels(t *testing.T) {
	for _, err := range []error{ErrEmptyParams, ErrMissingParams, ErrRowShape, ErrUnconditionalDelete, ErrMalformedJSON} {
		assert.True(t, IsMalformed(fmt.Errorf("op: %w", err)), err.Error())
	}
	assert.False(t, IsMalformed(ErrNoTransaction))
	assert.False(t, IsMalformed(nil))
}
