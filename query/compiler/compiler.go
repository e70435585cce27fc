// Package compiler validates dynamic queries against the schema cache and
// compiles them into parameterized SQL.
package compiler

import (
	"context"
	"fmt"

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// Schema is the part of the schema cache the compiler validates against.
type Schema interface {
	ValidTable(ctx context.Context, table string) bool
	ValidColumn(ctx context.Context, table, column string) bool
	PrimaryKey(ctx context.Context, table string) (string, error)
}

// Compiler compiles validated queries into SQL
type Compiler struct {
	schema    Schema
	generator sqlgen.Generator
}

// NewCompiler creates a new query compiler
func NewCompiler(schema Schema, generator sqlgen.Generator) *Compiler {
	return &Compiler{
		schema:    schema,
		generator: generator,
	}
}

// Generator returns the dialect generator.
func (c *Compiler) Generator() sqlgen.Generator {
	return c.generator
}

// CompileInsert compiles a single-row insert. With upsert, a duplicate key
// updates every non-key column.
func (c *Compiler) CompileInsert(ctx context.Context, table string, row sqlgen.Row, upsert bool) (*sqlgen.Query, error) {
	if len(row) == 0 {
		return nil, fmt.Errorf("%w: nothing to insert into %s", errdefs.ErrEmptyParams, table)
	}
	return c.compileInsert(ctx, table, []sqlgen.Row{row}, upsert, false)
}

// CompileInsertRows compiles a multi-row insert. Every row must have the same
// columns.
func (c *Compiler) CompileInsertRows(ctx context.Context, table string, rows []sqlgen.Row, upsert bool) (*sqlgen.Query, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: nothing to insert into %s", errdefs.ErrEmptyParams, table)
	}
	return c.compileInsert(ctx, table, rows, upsert, true)
}

func (c *Compiler) compileInsert(ctx context.Context, table string, rows []sqlgen.Row, upsert, multi bool) (*sqlgen.Query, error) {
	tbl, err := c.validTable(ctx, table)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := c.validColumns(ctx, tbl, rowColumns(row)); err != nil {
			return nil, err
		}
	}

	opts := sqlgen.InsertOptions{Multi: multi, Upsert: upsert}
	if upsert {
		if opts.PrimaryKey, err = c.schema.PrimaryKey(ctx, tbl); err != nil {
			return nil, fmt.Errorf("failed to look up primary key of %s: %w", tbl, err)
		}
	}
	return c.generator.GenerateInsert(tbl, rows, opts)
}

// CompileUpdate compiles an update of set on the rows matching where. An
// empty where updates every row only when allRows is set.
func (c *Compiler) CompileUpdate(ctx context.Context, table string, set sqlgen.Row, where sqlgen.Where, conjunction string, allRows bool) (*sqlgen.Query, error) {
	tbl, err := c.validTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: nothing to update in %s", errdefs.ErrEmptyParams, tbl)
	}
	if len(where) == 0 && !allRows {
		return nil, fmt.Errorf("%w: update of %s", errdefs.ErrUnconditionalDelete, tbl)
	}
	if err := c.validColumns(ctx, tbl, rowColumns(set)); err != nil {
		return nil, err
	}
	if err := c.validColumns(ctx, tbl, where.Columns()); err != nil {
		return nil, err
	}
	return c.generator.GenerateUpdate(tbl, set, where, conjunction)
}

// CompileDelete compiles a delete of the rows matching where. An empty where
// deletes every row only when allRows is set.
func (c *Compiler) CompileDelete(ctx context.Context, table string, where sqlgen.Where, conjunction string, allRows bool) (*sqlgen.Query, error) {
	tbl, err := c.validTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(where) == 0 && !allRows {
		return nil, fmt.Errorf("%w: delete from %s", errdefs.ErrUnconditionalDelete, tbl)
	}
	if err := c.validColumns(ctx, tbl, where.Columns()); err != nil {
		return nil, err
	}
	return c.generator.GenerateDelete(tbl, where, conjunction)
}

// CompileSelect compiles a select of the rows matching where. An empty where
// selects every row.
func (c *Compiler) CompileSelect(ctx context.Context, table string, where sqlgen.Where, conjunction string, opts sqlgen.SelectOptions) (*sqlgen.Query, error) {
	tbl, err := c.validTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if err := c.validColumns(ctx, tbl, where.Columns()); err != nil {
		return nil, err
	}
	if err := c.validColumns(ctx, tbl, opts.Columns); err != nil {
		return nil, err
	}
	order := make([]string, len(opts.OrderBy))
	for i, ob := range opts.OrderBy {
		order[i] = ob.Field
	}
	if err := c.validColumns(ctx, tbl, order); err != nil {
		return nil, err
	}
	return c.generator.GenerateSelect(tbl, where, conjunction, opts)
}

func (c *Compiler) validTable(ctx context.Context, table string) (string, error) {
	tbl, err := sqlgen.ValidIdentifier(table)
	if err != nil {
		return "", err
	}
	if !c.schema.ValidTable(ctx, tbl) {
		return "", errdefs.NewTableError(tbl)
	}
	return tbl, nil
}

func (c *Compiler) validColumns(ctx context.Context, table string, columns []string) error {
	for _, column := range columns {
		col, err := sqlgen.ValidIdentifier(column)
		if err != nil {
			return err
		}
		if !c.schema.ValidColumn(ctx, table, col) {
			return errdefs.NewColumnError(table, col)
		}
	}
	return nil
}

func rowColumns(row sqlgen.Row) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	return cols
}
