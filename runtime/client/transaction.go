package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/query/executor"
)

// Statement is a hand-written statement for TransactionExecute.
type Statement struct {
	SQL    string
	Params Params
}

// Begin starts a transaction. Every operation on the client runs inside it
// until Commit or Rollback. Missing tables are not provisioned while it is
// open.
func (c *Client) Begin(ctx context.Context) error {
	return c.session.Begin(ctx)
}

// Commit commits the open transaction.
func (c *Client) Commit() error {
	return c.session.Commit()
}

// Rollback rolls back the open transaction.
func (c *Client) Rollback() error {
	return c.session.Rollback()
}

// InTransaction reports whether a transaction is open.
func (c *Client) InTransaction() bool {
	return c.session.InTransaction()
}

// TransactionFunc is a function that runs within a transaction
type TransactionFunc func(ctx context.Context) error

// Transaction executes a function within a database transaction
// If the function returns an error, the transaction is rolled back
// Otherwise, the transaction is committed
func (c *Client) Transaction(ctx context.Context, fn TransactionFunc) (err error) {
	if err := c.Begin(ctx); err != nil {
		return err
	}

	// Defer rollback in case of panic
	defer func() {
		if p := recover(); p != nil {
			_ = c.Rollback()
			panic(p) // re-throw panic after rollback
		}
	}()

	// Execute the function
	if err := fn(ctx); err != nil {
		return c.abort("execute", err)
	}

	return c.Commit()
}

// TransactionExecute runs statements in one transaction and returns their
// results. The first failure rolls the transaction back.
func (c *Client) TransactionExecute(ctx context.Context, statements []Statement) ([]*executor.Result, error) {
	if len(statements) == 0 {
		return nil, errdefs.ErrEmptyQuery
	}

	results := make([]*executor.Result, 0, len(statements))
	err := c.Transaction(ctx, func(ctx context.Context) error {
		for i, stmt := range statements {
			res, err := c.exec.Exec(ctx, stmt.SQL, stmt.Params)
			if err != nil {
				return fmt.Errorf("statement %d: %w", i+1, err)
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// abort rolls back after cause. A failed rollback is reported together with
// cause since the transaction's final state is then unknown. A transaction
// that fn already ended needs no rollback.
func (c *Client) abort(op string, cause error) error {
	rbErr := c.Rollback()
	if rbErr == nil || errors.Is(rbErr, errdefs.ErrNoTransaction) {
		return cause
	}

	var txErr *errdefs.TransactionError
	if errors.As(rbErr, &txErr) {
		rbErr = txErr.Cause
	}
	c.logger.Error("rollback failed", "op", op, "cause", cause, "error", rbErr)
	return &errdefs.TransactionError{Op: op, Cause: cause, RollbackErr: rbErr}
}
