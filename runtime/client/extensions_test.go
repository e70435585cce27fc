package client

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/errdefs"
)

func newExtendedClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c := newTestClient(t, opts...)
	_, err := c.Exec(context.Background(), entriesDDL, nil)
	require.NoError(t, err)
	return c
}

func TestExtensionOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	c := newExtendedClient(t, WithLogger(logger), WithErrorHandler(func(*Operation) {}))
	c.Extend(ErrorLogExtension(c))

	assert.Equal(t, []string{"timing", "logging", "error-handling", "error-log"}, c.Extensions())
	assert.Equal(t, []string{"timing"}, newTestClient(t).Extensions())
}

func TestLoggingExtension(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newExtendedClient(t, WithLogger(logger))

	_, err := c.Insert(ctx, "entries", Row{"category": "news", "title": "hello"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="mutation succeeded"`)
	assert.Contains(t, buf.String(), "table=entries operation=insert")
	assert.Contains(t, buf.String(), "affected=1")

	buf.Reset()
	_, err = c.Select(ctx, "entries", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `msg="query succeeded"`)
	assert.Contains(t, buf.String(), "rows=1")

	buf.Reset()
	_, err = c.Select(ctx, "users", nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), `msg="query failed"`)
	assert.Contains(t, buf.String(), "table=users")
}

func TestErrorHandlingExtension(t *testing.T) {
	ctx := context.Background()
	var failed []*Operation
	c := newExtendedClient(t, WithErrorHandler(func(op *Operation) {
		failed = append(failed, op)
	}))

	_, err := c.Insert(ctx, "entries", Row{"category": "news", "title": "hello"})
	require.NoError(t, err)
	assert.Empty(t, failed, "successful operations are not reported")

	_, err = c.Select(ctx, "users", nil)
	require.Error(t, err)
	_, err = c.Update(ctx, "entries", Row{"nope": 1}, map[string]interface{}{"category": "news"})
	require.Error(t, err)

	require.Len(t, failed, 2)
	assert.Equal(t, "users", failed[0].Table)
	assert.Equal(t, "select", failed[0].Name)
	assert.Equal(t, KindQuery, failed[0].Kind)
	assert.ErrorIs(t, failed[0].Err, errdefs.ErrInvalidTable)

	assert.Equal(t, "entries", failed[1].Table)
	assert.Equal(t, "update", failed[1].Name)
	assert.Equal(t, KindMutation, failed[1].Kind)
	assert.ErrorIs(t, failed[1].Err, errdefs.ErrInvalidColumn)
}

func TestTimingExtension(t *testing.T) {
	ctx := context.Background()
	c := newExtendedClient(t)

	var timed []string
	c.Extend(TimingExtension(func(op *Operation) {
		assert.False(t, op.Started.IsZero())
		assert.GreaterOrEqual(t, op.Duration, time.Duration(0))
		timed = append(timed, op.Name)
	}))

	_, err := c.InsertRows(ctx, "entries", []Row{
		{"category": "a", "title": "one"},
		{"category": "b", "title": "two"},
	})
	require.NoError(t, err)
	_, err = c.SelectKeyPair(ctx, "entries", "category", "title", nil)
	require.NoError(t, err)
	_, err = c.Delete(ctx, "entries", map[string]interface{}{"category": "a"})
	require.NoError(t, err)

	assert.Equal(t, []string{"insertRows", "selectKeyPair", "delete"}, timed)
}

func TestExtensionCanAbortOperation(t *testing.T) {
	ctx := context.Background()
	c := newExtendedClient(t)

	errReadOnly := errors.New("read only")
	c.Extend(Extension{
		Name: "read-only",
		Mutation: func(op *Operation, next func() error) error {
			return errReadOnly
		},
	})

	_, err := c.Insert(ctx, "entries", Row{"category": "news", "title": "hello"})
	assert.ErrorIs(t, err, errReadOnly)

	rows, err := c.Select(ctx, "entries", nil)
	require.NoError(t, err)
	assert.Empty(t, rows, "queries still run")

	stats := c.Stats()
	assert.Equal(t, OperationStats{Count: 1, Failures: 1}, stats["insert"], "aborted calls never reach the database")
	assert.Equal(t, int64(1), stats["select"].Count)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c := newExtendedClient(t)

	for _, title := range []string{"one", "two"} {
		_, err := c.Insert(ctx, "entries", Row{"category": "news", "title": title})
		require.NoError(t, err)
	}
	_, err := c.Select(ctx, "entries", nil)
	require.NoError(t, err)
	_, err = c.Select(ctx, "entries", map[string]interface{}{"nope": 1})
	require.Error(t, err)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats["insert"].Count)
	assert.Zero(t, stats["insert"].Failures)
	assert.Equal(t, int64(2), stats["select"].Count)
	assert.Equal(t, int64(1), stats["select"].Failures)
	assert.Equal(t, stats["insert"].Total/2, stats["insert"].Average())

	c.ResetStats()
	assert.Empty(t, c.Stats())
	assert.Zero(t, OperationStats{}.Average())
}

func TestSelectKeyPair(t *testing.T) {
	ctx := context.Background()
	c := newEntriesClient(t)

	_, err := c.InsertRows(ctx, "entries", []Row{
		{"category": "news", "title": "first"},
		{"category": "news", "title": "second"},
		{"category": "blog", "title": "third"},
	})
	require.NoError(t, err)

	pairs, err := c.SelectKeyPair(ctx, "entries", "category", "title", nil, OrderBy("entry_id", "ASC"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"news": "second", "blog": "third"}, pairs, "the last duplicate key wins")

	pairs, err = c.SelectKeyPair(ctx, "entries", "category", "title", nil, OrderBy("entry_id", "DESC"))
	require.NoError(t, err)
	assert.Equal(t, "first", pairs["news"])

	pairs, err = c.SelectKeyPair(ctx, "entries", "entry_id", "title", map[string]interface{}{"category": "news"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"1": "first", "2": "second"}, pairs)

	pairs, err = c.SelectKeyPair(ctx, "entries", "title", "category", map[string]interface{}{"category": "none"})
	require.NoError(t, err)
	assert.Empty(t, pairs)

	_, err = c.SelectKeyPair(ctx, "entries", "nope", "title", nil)
	assert.ErrorIs(t, err, errdefs.ErrInvalidColumn)
}
