package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

type stubSchema struct {
	tables map[string][]string
	pks    map[string]string
}

func (s *stubSchema) ValidTable(_ context.Context, table string) bool {
	_, ok := s.tables[table]
	return ok
}

func (s *stubSchema) ValidColumn(_ context.Context, table, column string) bool {
	for _, c := range s.tables[table] {
		if c == column {
			return true
		}
	}
	return false
}

func (s *stubSchema) PrimaryKey(_ context.Context, table string) (string, error) {
	return s.pks[table], nil
}

func newTestCompiler() *Compiler {
	schema := &stubSchema{
		tables: map[string][]string{
			"entries": {"entry_id", "category", "title", "created"},
		},
		pks: map[string]string{"entries": "entry_id"},
	}
	return NewCompiler(schema, sqlgen.NewSQLiteGenerator())
}

func TestCompileInsert(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	q, err := c.CompileInsert(ctx, "entries", sqlgen.Row{"entry_id": 1, "title": "hi"}, true)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "entries" ("entry_id", "title") VALUES (:entry_id, :title) ON CONFLICT ("entry_id") DO UPDATE SET "title" = :title`, q.SQL)

	q, err = c.CompileInsertRows(ctx, "entries", []sqlgen.Row{{"title": "a"}, {"title": "b"}}, false)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "entries" ("title") VALUES (:title_0), (:title_1)`, q.SQL)
}

func TestCompileValidation(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	tests := []struct {
		name    string
		compile func() error
		want    error
	}{
		{"unknown table", func() error {
			_, err := c.CompileInsert(ctx, "users", sqlgen.Row{"a": 1}, false)
			return err
		}, errdefs.ErrInvalidTable},
		{"unknown column", func() error {
			_, err := c.CompileInsert(ctx, "entries", sqlgen.Row{"nope": 1}, false)
			return err
		}, errdefs.ErrInvalidColumn},
		{"empty insert", func() error {
			_, err := c.CompileInsert(ctx, "entries", sqlgen.Row{}, false)
			return err
		}, errdefs.ErrEmptyParams},
		{"empty rows", func() error {
			_, err := c.CompileInsertRows(ctx, "entries", nil, false)
			return err
		}, errdefs.ErrEmptyParams},
		{"bad table syntax", func() error {
			_, err := c.CompileSelect(ctx, "entries e", nil, "AND", sqlgen.SelectOptions{})
			return err
		}, errdefs.ErrInvalidSchemaSyntax},
		{"unknown where column", func() error {
			_, err := c.CompileSelect(ctx, "entries", sqlgen.Where{{Column: "nope", Value: 1}}, "AND", sqlgen.SelectOptions{})
			return err
		}, errdefs.ErrInvalidColumn},
		{"unknown order column", func() error {
			_, err := c.CompileSelect(ctx, "entries", nil, "AND", sqlgen.SelectOptions{OrderBy: []sqlgen.OrderBy{{Field: "nope"}}})
			return err
		}, errdefs.ErrInvalidColumn},
		{"unconditional update", func() error {
			_, err := c.CompileUpdate(ctx, "entries", sqlgen.Row{"title": "x"}, nil, "AND", false)
			return err
		}, errdefs.ErrUnconditionalDelete},
		{"unconditional delete", func() error {
			_, err := c.CompileDelete(ctx, "entries", nil, "AND", false)
			return err
		}, errdefs.ErrUnconditionalDelete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.compile(), tt.want)
		})
	}
}

func TestCompileUpdateAndDelete(t *testing.T) {
	c := newTestCompiler()
	ctx := context.Background()

	q, err := c.CompileUpdate(ctx, "entries", sqlgen.Row{"title": "x"}, nil, "AND", true)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "entries" SET "title" = :title`, q.SQL)

	q, err = c.CompileDelete(ctx, "entries", sqlgen.Where{{Column: "category", Operator: "LIKE", Value: "n%"}}, "AND", false)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "entries" WHERE "category" LIKE :category`, q.SQL)
	assert.Equal(t, sqlgen.Params{"category": "n%"}, q.Params)

	q, err = c.CompileDelete(ctx, "entries", nil, "AND", true)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "entries"`, q.SQL)
}
