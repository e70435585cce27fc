package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/supergnaw/nestbox/errdefs"
)

// OperationKind tells reads from writes.
type OperationKind string

const (
	KindQuery    OperationKind = "query"
	KindMutation OperationKind = "mutation"
)

// Operation is one façade call as seen by extensions. Err, Duration, Rows and
// Affected are filled in once the call returns.
type Operation struct {
	Context  context.Context
	Kind     OperationKind
	Table    string
	Name     string // select, selectKeyPair, insert, insertRows, update, delete
	Args     interface{}
	Rows     int
	Affected int64
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Hook wraps an operation. Returning without calling next aborts it.
type Hook func(op *Operation, next func() error) error

// Extension hooks façade operations. Nil hooks are skipped.
type Extension struct {
	Name     string
	Query    Hook
	Mutation Hook
}

func (e Extension) hook(kind OperationKind) Hook {
	if kind == KindMutation {
		return e.Mutation
	}
	return e.Query
}

// ExtensionChain runs operations through extensions. The first extension
// added is the outermost.
type ExtensionChain struct {
	extensions []Extension
}

// NewExtensionChain creates an empty chain.
func NewExtensionChain() *ExtensionChain {
	return &ExtensionChain{}
}

// Add appends ext to the chain.
func (ec *ExtensionChain) Add(ext Extension) {
	ec.extensions = append(ec.extensions, ext)
}

// Names lists the installed extensions in order.
func (ec *ExtensionChain) Names() []string {
	names := make([]string, len(ec.extensions))
	for i, ext := range ec.extensions {
		names[i] = ext.Name
	}
	return names
}

func (ec *ExtensionChain) run(op *Operation, fn func(op *Operation) error) error {
	call := func() error {
		op.Started = time.Now()
		op.Err = fn(op)
		op.Duration = time.Since(op.Started)
		return op.Err
	}
	for i := len(ec.extensions) - 1; i >= 0; i-- {
		hook := ec.extensions[i].hook(op.Kind)
		if hook == nil {
			continue
		}
		next := call
		call = func() error { return hook(op, next) }
	}
	return call()
}

// after builds a hook that runs fn once the operation has finished. An error
// from an inner extension that aborted the call is reported as op.Err.
func after(fn func(op *Operation)) Hook {
	return func(op *Operation, next func() error) error {
		err := next()
		if op.Err == nil {
			op.Err = err
		}
		fn(op)
		return err
	}
}

// LoggingExtension logs every operation at debug level.
func LoggingExtension(logger *slog.Logger) Extension {
	hook := after(func(op *Operation) {
		attrs := []any{"table", op.Table, "operation", op.Name, "duration", op.Duration}
		if op.Err != nil {
			logger.Debug(string(op.Kind)+" failed", append(attrs, "error", op.Err)...)
			return
		}
		if op.Kind == KindMutation {
			attrs = append(attrs, "affected", op.Affected)
		} else {
			attrs = append(attrs, "rows", op.Rows)
		}
		logger.Debug(string(op.Kind)+" succeeded", attrs...)
	})
	return Extension{Name: "logging", Query: hook, Mutation: hook}
}

// TimingExtension reports every finished operation to onTiming.
func TimingExtension(onTiming func(op *Operation)) Extension {
	hook := after(onTiming)
	return Extension{Name: "timing", Query: hook, Mutation: hook}
}

// ErrorHandlingExtension reports failed operations to onError.
func ErrorHandlingExtension(onError func(op *Operation)) Extension {
	hook := after(func(op *Operation) {
		if op.Err != nil {
			onError(op)
		}
	})
	return Extension{Name: "error-handling", Query: hook, Mutation: hook}
}

// ErrorLogExtension records operations the database rejected in the
// nestbox_errors table. Malformed requests are caller bugs and are not
// recorded.
func ErrorLogExtension(c *Client) Extension {
	ext := ErrorHandlingExtension(func(op *Operation) {
		if op.Table == ErrorsTable || !errdefs.IsDatabase(op.Err) {
			return
		}
		query := ""
		var qe *errdefs.QueryError
		if errors.As(op.Err, &qe) {
			query = qe.SQL
		}
		if err := c.LogError(op.Context, op.Err.Error(), query); err != nil {
			c.logger.Warn("failed to record error", "error", err)
		}
	})
	ext.Name = "error-log"
	return ext
}

// OperationStats summarises the calls of one façade operation.
type OperationStats struct {
	Count    int64
	Failures int64
	Total    time.Duration
}

// Average returns the mean duration of a call.
func (s OperationStats) Average() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type statsRecorder struct {
	mu    sync.Mutex
	stats map[string]OperationStats
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{stats: make(map[string]OperationStats)}
}

func (r *statsRecorder) record(op *Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats[op.Name]
	s.Count++
	s.Total += op.Duration
	if op.Err != nil {
		s.Failures++
	}
	r.stats[op.Name] = s
}

func (r *statsRecorder) snapshot() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OperationStats, len(r.stats))
	for k, v := range r.stats {
		out[k] = v
	}
	return out
}

func (r *statsRecorder) reset() {
	r.mu.Lock()
	r.stats = make(map[string]OperationStats)
	r.mu.Unlock()
}

// Stats returns per-operation call counts and durations since the client was
// created or ResetStats was called.
func (c *Client) Stats() map[string]OperationStats {
	return c.stats.snapshot()
}

// ResetStats clears the recorded stats.
func (c *Client) ResetStats() {
	c.stats.reset()
}

// Extensions lists the installed extensions in order.
func (c *Client) Extensions() []string {
	return c.extensions.Names()
}
