package executor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// QueryEvent represents a statement execution event
type QueryEvent struct {
	Query        string
	Params       sqlgen.Params
	Duration     time.Duration
	Error        error
	Start        time.Time
	End          time.Time
	RowsAffected int64
	// Retry is set on the second attempt after auto-provisioning.
	Retry bool
}

// ParamNames returns the bound parameter names, sorted.
func (e *QueryEvent) ParamNames() []string {
	names := make([]string, 0, len(e.Params))
	for name := range e.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Middleware is a function that intercepts statements
type Middleware func(ctx context.Context, event *QueryEvent, next func() error) error

// Use adds a middleware to the chain
func (e *Executor) Use(middleware Middleware) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.middlewares = append(e.middlewares, middleware)
}

// executeWithMiddleware executes a statement with the middleware chain
func (e *Executor) executeWithMiddleware(ctx context.Context, event *QueryEvent, exec func() error) error {
	e.mu.Lock()
	middlewares := append([]Middleware(nil), e.middlewares...)
	e.mu.Unlock()

	event.Start = time.Now()

	var next func() error
	index := 0

	next = func() error {
		if index >= len(middlewares) {
			// Last middleware, execute the actual statement
			err := exec()
			event.End = time.Now()
			event.Duration = event.End.Sub(event.Start)
			event.Error = err
			return err
		}

		middleware := middlewares[index]
		index++
		return middleware(ctx, event, next)
	}

	return next()
}

// LoggingMiddleware creates a middleware that logs statements
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		logger.DebugContext(ctx, "executing statement", "sql", event.Query, "params", event.ParamNames(), "retry", event.Retry)
		err := next()
		if err != nil {
			logger.DebugContext(ctx, "statement failed", "sql", event.Query, "error", err, "duration", event.Duration)
		} else {
			logger.DebugContext(ctx, "statement completed", "rows", event.RowsAffected, "duration", event.Duration)
		}
		return err
	}
}

// TimingMiddleware creates a middleware that measures statement execution time
func TimingMiddleware(onTiming func(query string, duration time.Duration)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if onTiming != nil {
			onTiming(event.Query, event.Duration)
		}
		return err
	}
}

// ErrorMiddleware creates a middleware that handles errors
func ErrorMiddleware(onError func(query string, err error)) Middleware {
	return func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		if err != nil && onError != nil {
			onError(event.Query, err)
		}
		return err
	}
}
