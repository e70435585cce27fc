// Package executor binds and executes compiled statements, classifies driver
// errors and retries once after provisioning a missing table.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/supergnaw/nestbox/database"
	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// Session is the connection capability the executor runs on.
type Session interface {
	Runner(ctx context.Context) (database.Runner, error)
	InTransaction() bool
	Provider() string
	DriverName() string
	Close() error
}

// Provisioner creates the tables a module owns.
type Provisioner interface {
	// Owns reports whether table belongs to a registered module.
	Owns(table string) bool
	// Provision runs every registered table's DDL through exec.
	Provision(ctx context.Context, provider string, exec func(ctx context.Context, statement string) error) error
}

// SchemaInvalidator is notified after DDL changes the schema.
type SchemaInvalidator interface {
	Invalidate()
}

// Result holds the outcome of one statement.
type Result struct {
	Rows         []sqlgen.Row
	RowsAffected int64
	LastInsertID int64
}

type options struct {
	autoClose bool
	noRetry   bool
}

// Option changes how a single statement is executed.
type Option func(*options)

// AutoClose closes the session after the statement, whether it failed or not.
// With an empty statement the session is just closed.
func AutoClose() Option {
	return func(o *options) { o.autoClose = true }
}

// NoRetry disables auto-provisioning for the statement.
func NoRetry() Option {
	return func(o *options) { o.noRetry = true }
}

// Executor executes statements on a session
type Executor struct {
	session     Session
	schema      SchemaInvalidator
	provisioner Provisioner
	logger      *slog.Logger

	mu           sync.Mutex
	middlewares  []Middleware
	rowCount     int64
	lastInsertID int64
}

// NewExecutor creates a new statement executor. schema and provisioner may be
// nil, in which case a missing table is never retried.
func NewExecutor(session Session, schema SchemaInvalidator, provisioner Provisioner) *Executor {
	logger := debug.With("component", "executor")
	return &Executor{
		session:     session,
		schema:      schema,
		provisioner: provisioner,
		logger:      logger,
		middlewares: []Middleware{LoggingMiddleware(logger)},
	}
}

// Exec runs a statement that returns no rows.
func (e *Executor) Exec(ctx context.Context, query string, params sqlgen.Params, opts ...Option) (*Result, error) {
	return e.execute(ctx, query, params, false, opts)
}

// Query runs a statement and returns its rows.
func (e *Executor) Query(ctx context.Context, query string, params sqlgen.Params, opts ...Option) (*Result, error) {
	return e.execute(ctx, query, params, true, opts)
}

// Run executes a compiled query. Selects return rows.
func (e *Executor) Run(ctx context.Context, q *sqlgen.Query, opts ...Option) (*Result, error) {
	wantRows := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(q.SQL)), "SELECT")
	return e.execute(ctx, q.SQL, q.Params, wantRows, opts)
}

func (e *Executor) execute(ctx context.Context, query string, params sqlgen.Params, wantRows bool, opts []Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.autoClose {
		defer func() {
			// a fresh connection may see a different schema
			if e.schema != nil {
				e.schema.Invalidate()
			}
			if err := e.session.Close(); err != nil {
				e.logger.Warn("failed to close session", "error", err)
			}
		}()
		if strings.TrimSpace(query) == "" {
			return &Result{}, nil
		}
	}
	if o.noRetry {
		ctx = withRetryState(ctx, retryDisabled)
	}

	var result *Result
	err := e.WithRetry(ctx, func(ctx context.Context) error {
		var err error
		result, err = e.run(ctx, query, params, wantRows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type retryKey struct{}

type retryState int

const (
	retryArmed retryState = iota
	retryDisabled
	retryAttempt
)

func withRetryState(ctx context.Context, state retryState) context.Context {
	return context.WithValue(ctx, retryKey{}, state)
}

func retryStateOf(ctx context.Context) (retryState, bool) {
	state, ok := ctx.Value(retryKey{}).(retryState)
	return state, ok
}

// WithRetry runs fn and, when it fails because a table owned by a registered
// module is missing, provisions the module tables and runs fn exactly once
// more. Calls nested inside fn never provision on their own. No retry happens
// while a transaction is open.
func (e *Executor) WithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, nested := retryStateOf(ctx); nested {
		return fn(ctx)
	}

	err := fn(withRetryState(ctx, retryArmed))
	table, ok := errdefs.TableOf(err)
	if !ok || e.provisioner == nil || !e.provisioner.Owns(table) || e.session.InTransaction() {
		return err
	}

	e.logger.Info("provisioning missing table", "table", table)
	provErr := e.provisioner.Provision(ctx, e.session.Provider(), e.execDDL)
	if provErr != nil {
		e.logger.Warn("provisioning incomplete", "table", table, "error", provErr)
	}
	if e.schema != nil {
		e.schema.Invalidate()
	}

	if err := fn(withRetryState(ctx, retryAttempt)); err != nil {
		if provErr != nil {
			return errors.Join(err, provErr)
		}
		return err
	}
	return nil
}

// execDDL runs a provisioning statement without triggering another retry.
func (e *Executor) execDDL(ctx context.Context, statement string) error {
	_, err := e.run(withRetryState(ctx, retryDisabled), statement, nil, false)
	return err
}

func (e *Executor) run(ctx context.Context, query string, params sqlgen.Params, wantRows bool) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errdefs.ErrEmptyQuery
	}

	params = sqlgen.RemoveUnusedParameters(query, params)
	if missing := sqlgen.MissingParameters(query, params); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", errdefs.ErrMissingParams, strings.Join(missing, ", "))
	}
	if err := checkBindable(params); err != nil {
		return nil, err
	}

	runner, err := e.session.Runner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	bound, args, err := bindNamed(e.session.DriverName(), query, params)
	if err != nil {
		return nil, err
	}

	state, _ := retryStateOf(ctx)
	event := &QueryEvent{Query: query, Params: params, Retry: state == retryAttempt}
	result := &Result{}

	err = e.executeWithMiddleware(ctx, event, func() error {
		if wantRows {
			rows, err := runner.QueryContext(ctx, bound, args...)
			if err != nil {
				return classifyError(err, query)
			}
			if result.Rows, err = scanRows(rows); err != nil {
				return classifyError(err, query)
			}
			result.RowsAffected = int64(len(result.Rows))
		} else {
			res, err := runner.ExecContext(ctx, bound, args...)
			if err != nil {
				return classifyError(err, query)
			}
			result.RowsAffected, _ = res.RowsAffected()
			// not every driver reports insert ids
			result.LastInsertID, _ = res.LastInsertId()
		}
		event.RowsAffected = result.RowsAffected
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.rowCount = result.RowsAffected
	if result.LastInsertID != 0 {
		e.lastInsertID = result.LastInsertID
	}
	e.mu.Unlock()

	return result, nil
}

// RowCount returns the number of rows affected or returned by the last
// successful statement.
func (e *Executor) RowCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rowCount
}

// LastInsertID returns the most recent auto-increment id reported by the
// driver.
func (e *Executor) LastInsertID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastInsertID
}
