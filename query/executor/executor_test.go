package executor

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/database"
	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

type stubProvisioner struct {
	prefix string
	ddl    []string
	calls  int
}

func (p *stubProvisioner) Owns(table string) bool {
	return strings.HasPrefix(table, p.prefix)
}

func (p *stubProvisioner) Provision(ctx context.Context, _ string, exec func(ctx context.Context, statement string) error) error {
	p.calls++
	for _, stmt := range p.ddl {
		if err := exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type stubSchema struct {
	invalidated atomic.Int32
}

func (s *stubSchema) Invalidate() {
	s.invalidated.Add(1)
}

func openSession(t *testing.T) *database.Session {
	t.Helper()
	debug.Discard()

	s, err := database.Open(context.Background(), database.Config{Provider: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestExecutorExecAndQuery(t *testing.T) {
	ctx := context.Background()
	e := NewExecutor(openSession(t), nil, nil)

	_, err := e.Exec(ctx, `CREATE TABLE notes (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, body BLOB)`, nil)
	require.NoError(t, err)

	res, err := e.Exec(ctx, `INSERT INTO notes (title, body) VALUES (:title, :body)`,
		sqlgen.Params{"title": "first", "body": []byte{0x01}, "unused": 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, int64(1), res.LastInsertID)
	assert.Equal(t, int64(1), e.LastInsertID())

	res, err = e.Query(ctx, `SELECT id, title, body FROM notes WHERE title = :title`, sqlgen.Params{"title": "first"})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, sqlgen.Row{"id": int64(1), "title": "first", "body": []byte{0x01}}, res.Rows[0])
	assert.Equal(t, int64(1), e.RowCount())

	res, err = e.Run(ctx, &sqlgen.Query{SQL: `  select count(*) AS n FROM notes`})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows[0]["n"])
}

func TestExecutorRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	e := NewExecutor(openSession(t), nil, nil)

	tests := []struct {
		name   string
		query  string
		params sqlgen.Params
		want   error
	}{
		{"empty", "   ", nil, errdefs.ErrEmptyQuery},
		{"missing", "SELECT :a, :b", sqlgen.Params{"a": 1}, errdefs.ErrMissingParams},
		{"array", "SELECT :a", sqlgen.Params{"a": []int{1, 2}}, errdefs.ErrCannotBindArray},
		{"struct", "SELECT :a", sqlgen.Params{"a": struct{}{}}, errdefs.ErrFailedToBindValue},
		{"database", "SELEKT 1", nil, errdefs.ErrQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Exec(ctx, tt.query, tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExecutorProvisionsMissingTable(t *testing.T) {
	ctx := context.Background()
	prov := &stubProvisioner{prefix: "prov_", ddl: []string{`CREATE TABLE IF NOT EXISTS prov_items (id INTEGER)`}}
	schema := &stubSchema{}
	e := NewExecutor(openSession(t), schema, prov)

	var events []QueryEvent
	e.Use(func(ctx context.Context, event *QueryEvent, next func() error) error {
		err := next()
		events = append(events, *event)
		return err
	})

	res, err := e.Exec(ctx, `INSERT INTO prov_items (id) VALUES (:id)`, sqlgen.Params{"id": 7})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)
	assert.Equal(t, 1, prov.calls)
	assert.Equal(t, int32(1), schema.invalidated.Load())

	require.Len(t, events, 3)
	assert.Error(t, events[0].Error)
	assert.False(t, events[0].Retry)
	assert.Contains(t, events[1].Query, "CREATE TABLE")
	assert.True(t, events[2].Retry)
	assert.NoError(t, events[2].Error)

	// the table exists now, nothing else is provisioned
	_, err = e.Query(ctx, `SELECT * FROM prov_items`, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, prov.calls)
}

func TestExecutorRetryScope(t *testing.T) {
	ctx := context.Background()

	t.Run("unowned table", func(t *testing.T) {
		prov := &stubProvisioner{prefix: "prov_"}
		e := NewExecutor(openSession(t), nil, prov)

		_, err := e.Query(ctx, `SELECT * FROM users`, nil)
		assert.ErrorIs(t, err, errdefs.ErrInvalidTable)
		assert.Zero(t, prov.calls)
	})

	t.Run("no retry option", func(t *testing.T) {
		prov := &stubProvisioner{prefix: "prov_"}
		e := NewExecutor(openSession(t), nil, prov)

		_, err := e.Query(ctx, `SELECT * FROM prov_items`, nil, NoRetry())
		assert.ErrorIs(t, err, errdefs.ErrInvalidTable)
		assert.Zero(t, prov.calls)
	})

	t.Run("inside a transaction", func(t *testing.T) {
		prov := &stubProvisioner{prefix: "prov_"}
		session := openSession(t)
		e := NewExecutor(session, nil, prov)

		require.NoError(t, session.Begin(ctx))
		_, err := e.Query(ctx, `SELECT * FROM prov_items`, nil)
		assert.ErrorIs(t, err, errdefs.ErrInvalidTable)
		assert.Zero(t, prov.calls)
		require.NoError(t, session.Rollback())
	})

	t.Run("retried at most once", func(t *testing.T) {
		// provisioning creates the wrong table, so the retry fails again
		prov := &stubProvisioner{prefix: "prov_", ddl: []string{`CREATE TABLE IF NOT EXISTS prov_other (id INTEGER)`}}
		e := NewExecutor(openSession(t), nil, prov)

		_, err := e.Query(ctx, `SELECT * FROM prov_items`, nil)
		assert.ErrorIs(t, err, errdefs.ErrInvalidTable)
		assert.Equal(t, 1, prov.calls)
	})

	t.Run("nested calls share one retry", func(t *testing.T) {
		prov := &stubProvisioner{prefix: "prov_", ddl: []string{`CREATE TABLE IF NOT EXISTS prov_items (id INTEGER)`}}
		e := NewExecutor(openSession(t), nil, prov)

		attempts := 0
		err := e.WithRetry(ctx, func(ctx context.Context) error {
			attempts++
			_, err := e.Query(ctx, `SELECT * FROM prov_items`, nil)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 1, prov.calls)
	})
}

func TestExecutorAutoClose(t *testing.T) {
	ctx := context.Background()
	session := openSession(t)
	e := NewExecutor(session, nil, nil)

	res, err := e.Exec(ctx, "", nil, AutoClose())
	require.NoError(t, err)
	assert.Equal(t, &Result{}, res)
	assert.Nil(t, session.DB())
}

func TestExecutorAutoCloseInvalidatesSchema(t *testing.T) {
	ctx := context.Background()
	schema := &stubSchema{}
	session := openSession(t)
	e := NewExecutor(session, schema, nil)

	_, err := e.Query(ctx, "SELECT 1", nil, AutoClose())
	require.NoError(t, err)
	assert.Equal(t, int32(1), schema.invalidated.Load())

	_, err = e.Exec(ctx, "", nil, AutoClose())
	require.NoError(t, err)
	assert.Equal(t, int32(2), schema.invalidated.Load())
}

func TestTimingAndErrorMiddleware(t *testing.T) {
	ctx := context.Background()
	e := NewExecutor(openSession(t), nil, nil)

	var timed, failed []string
	e.Use(TimingMiddleware(func(query string, _ time.Duration) { timed = append(timed, query) }))
	e.Use(ErrorMiddleware(func(query string, _ error) { failed = append(failed, query) }))

	_, err := e.Query(ctx, "SELECT 1", nil)
	require.NoError(t, err)
	_, err = e.Query(ctx, "SELECT * FROM nowhere", nil)
	require.Error(t, err)

	assert.Equal(t, []string{"SELECT 1", "SELECT * FROM nowhere"}, timed)
	assert.Equal(t, []string{"SELECT * FROM nowhere"}, failed)
}
