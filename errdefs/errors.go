// Package errdefs defines the error taxonomy shared by the compiler, the
// executor and the client façade.
package errdefs

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	// ErrInvalidSchemaSyntax is returned when an identifier is not a bare word.
	ErrInvalidSchemaSyntax = errors.New("nestbox: invalid schema syntax")

	// ErrInvalidTable is returned when a table is not present in the schema.
	ErrInvalidTable = errors.New("nestbox: invalid table")

	// ErrInvalidColumn is returned when a column is not present in a table.
	ErrInvalidColumn = errors.New("nestbox: invalid column")

	// ErrInvalidWhereOperator is returned for an unsupported comparison operator.
	ErrInvalidWhereOperator = errors.New("nestbox: invalid where operator")

	// ErrEmptyParams is returned when no data was supplied where data is required.
	ErrEmptyParams = errors.New("nestbox: empty parameters")

	// ErrEmptyQuery is returned for an empty statement.
	ErrEmptyQuery = errors.New("nestbox: empty query")

	// ErrMissingParams is returned when a placeholder has no bound value.
	ErrMissingParams = errors.New("nestbox: missing parameters")

	// ErrRowShape is returned when rows of a multi-row insert differ in columns.
	ErrRowShape = errors.New("nestbox: rows have mismatched columns")

	// ErrCannotBindArray is returned when a slice or map is bound as a scalar.
	ErrCannotBindArray = errors.New("nestbox: cannot bind array")

	// ErrFailedToBindValue is returned when a value has no scalar representation.
	ErrFailedToBindValue = errors.New("nestbox: failed to bind value")

	// ErrQuery is returned when the database rejects a statement.
	ErrQuery = errors.New("nestbox: query error")

	// ErrUnconditionalDelete is returned for a delete without predicates that
	// was not explicitly confirmed.
	ErrUnconditionalDelete = errors.New("nestbox: unconditional delete not confirmed")

	// ErrDuplicateTable is returned when renaming onto an existing table.
	ErrDuplicateTable = errors.New("nestbox: duplicate table")

	// ErrMalformedJSON is returned when an import payload is not valid JSON.
	ErrMalformedJSON = errors.New("nestbox: malformed json")

	// ErrTransactionInProgress is returned when beginning a nested transaction.
	ErrTransactionInProgress = errors.New("nestbox: transaction already in progress")

	// ErrNoTransaction is returned when committing without an open transaction.
	ErrNoTransaction = errors.New("nestbox: no transaction in progress")

	// ErrTransactionBeginFailed is returned when a transaction cannot start.
	ErrTransactionBeginFailed = errors.New("nestbox: failed to begin transaction")

	// ErrTransactionCommitFailed is returned when a commit fails.
	ErrTransactionCommitFailed = errors.New("nestbox: failed to commit transaction")

	// ErrTransactionRollbackFailed is returned when a rollback fails. The
	// transaction's final state is unknown.
	ErrTransactionRollbackFailed = errors.New("nestbox: failed to roll back transaction")
)

// SyntaxError reports an identifier that failed bare-word validation.
type SyntaxError struct {
	Identifier string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v: %q", ErrInvalidSchemaSyntax, e.Identifier)
}

// Is reports whether target is ErrInvalidSchemaSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrInvalidSchemaSyntax
}

// TableError reports a table missing from the schema.
type TableError struct {
	Table string
}

func (e *TableError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidTable, e.Table)
}

// Is reports whether target is ErrInvalidTable.
func (e *TableError) Is(target error) bool {
	return target == ErrInvalidTable
}

// ColumnError reports a column missing from a table.
type ColumnError struct {
	Table  string
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%v: %s.%s", ErrInvalidColumn, e.Table, e.Column)
}

// Is reports whether target is ErrInvalidColumn.
func (e *ColumnError) Is(target error) bool {
	return target == ErrInvalidColumn
}

// BindError reports a parameter that could not be bound.
type BindError struct {
	Param string
	Type  string
	Cause error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("%v: %s (%s)", e.Cause, e.Param, e.Type)
}

// Unwrap returns the sentinel describing the failure.
func (e *BindError) Unwrap() error {
	return e.Cause
}

// QueryError carries the driver's diagnostics for a rejected statement.
type QueryError struct {
	// Code is the driver's native error number, when it has one.
	Code int
	// SQLState is the five character SQLSTATE, when the driver reports one.
	SQLState string
	Message  string
	SQL      string
	Cause    error
}

func (e *QueryError) Error() string {
	switch {
	case e.Code != 0 && e.SQLState != "":
		return fmt.Sprintf("query error %d (%s): %s", e.Code, e.SQLState, e.Message)
	case e.Code != 0:
		return fmt.Sprintf("query error %d: %s", e.Code, e.Message)
	case e.SQLState != "":
		return fmt.Sprintf("query error (%s): %s", e.SQLState, e.Message)
	}
	return fmt.Sprintf("query error: %s", e.Message)
}

// Unwrap returns the driver error.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is ErrQuery.
func (e *QueryError) Is(target error) bool {
	return target == ErrQuery
}

// TransactionError reports a failed transaction step. When RollbackErr is set
// the rollback attempted after Cause also failed.
type TransactionError struct {
	Op          string
	Cause       error
	RollbackErr error
}

func (e *TransactionError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("transaction %s: %v -- and rollback failed: %v", e.Op, e.Cause, e.RollbackErr)
	}
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Cause)
}

// Unwrap returns the original failure and, if present, the rollback failure.
func (e *TransactionError) Unwrap() []error {
	if e.RollbackErr != nil {
		return []error{e.Cause, ErrTransactionRollbackFailed, e.RollbackErr}
	}
	return []error{e.Cause}
}

// NewSyntaxError creates a SyntaxError.
func NewSyntaxError(identifier string) error {
	return &SyntaxError{Identifier: identifier}
}

// NewTableError creates a TableError.
func NewTableError(table string) error {
	return &TableError{Table: table}
}

// NewColumnError creates a ColumnError.
func NewColumnError(table, column string) error {
	return &ColumnError{Table: table, Column: column}
}

// TableOf returns the table named by an ErrInvalidTable error.
func TableOf(err error) (string, bool) {
	var te *TableError
	if errors.As(err, &te) {
		return te.Table, true
	}
	return "", false
}

// IsInvalidTable checks if an error reports a missing table.
func IsInvalidTable(err error) bool {
	return errors.Is(err, ErrInvalidTable)
}

// IsMalformed checks if an error means the request itself was malformed and
// the caller has to change it.
func IsMalformed(err error) bool {
	for _, target := range []error{
		ErrInvalidSchemaSyntax,
		ErrInvalidTable,
		ErrInvalidColumn,
		ErrInvalidWhereOperator,
		ErrEmptyParams,
		ErrEmptyQuery,
		ErrMissingParams,
		ErrRowShape,
		ErrCannotBindArray,
		ErrFailedToBindValue,
		ErrUnconditionalDelete,
		ErrMalformedJSON,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsDatabase checks if an error was raised by the database for a well-formed
// statement.
func IsDatabase(err error) bool {
	return errors.Is(err, ErrQuery)
}

// IsUncertain checks if an error leaves a transaction in an unknown state.
func IsUncertain(err error) bool {
	return errors.Is(err, ErrTransactionRollbackFailed)
}
