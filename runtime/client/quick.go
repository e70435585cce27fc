package client

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// QueryOption adjusts a quick query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	conjunction string
	allRows     bool
	noUpsert    bool
	selectOpts  sqlgen.SelectOptions
}

func collectOptions(opts []QueryOption) queryOptions {
	o := queryOptions{conjunction: "AND"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Conjunction joins where predicates with AND or OR. Anything else means AND.
func Conjunction(conjunction string) QueryOption {
	return func(o *queryOptions) { o.conjunction = sqlgen.SanitizeConjunction(conjunction) }
}

// Or joins where predicates with OR.
func Or() QueryOption {
	return Conjunction("OR")
}

// AllRows confirms that an update or delete without predicates should touch
// every row.
func AllRows() QueryOption {
	return func(o *queryOptions) { o.allRows = true }
}

// NoUpsert makes an insert fail on a duplicate key instead of updating.
func NoUpsert() QueryOption {
	return func(o *queryOptions) { o.noUpsert = true }
}

// OrderBy sorts selected rows. direction is ASC or DESC.
func OrderBy(column, direction string) QueryOption {
	return func(o *queryOptions) {
		o.selectOpts.OrderBy = append(o.selectOpts.OrderBy, sqlgen.OrderBy{Field: column, Direction: direction})
	}
}

// Limit caps the number of selected rows, skipping offset rows first.
func Limit(limit, offset int) QueryOption {
	return func(o *queryOptions) {
		o.selectOpts.Limit = limit
		o.selectOpts.Offset = offset
	}
}

// Insert inserts one row and returns the number of rows affected. By default a
// duplicate primary key updates the other columns.
func (c *Client) Insert(ctx context.Context, table string, row Row, opts ...QueryOption) (int64, error) {
	o := collectOptions(opts)
	return c.mutate(ctx, table, "insert", row, func(ctx context.Context) (*sqlgen.Query, error) {
		return c.compiler.CompileInsert(ctx, table, row, !o.noUpsert)
	})
}

// InsertRows inserts several rows with one statement. Every row must have the
// same columns.
func (c *Client) InsertRows(ctx context.Context, table string, rows []Row, opts ...QueryOption) (int64, error) {
	o := collectOptions(opts)
	return c.mutate(ctx, table, "insertRows", rows, func(ctx context.Context) (*sqlgen.Query, error) {
		return c.compiler.CompileInsertRows(ctx, table, rows, !o.noUpsert)
	})
}

// Update sets columns on the rows matching where. Where keys may carry an
// operator suffix such as "views >=".
func (c *Client) Update(ctx context.Context, table string, set Row, where map[string]interface{}, opts ...QueryOption) (int64, error) {
	w, err := sqlgen.WhereMap(where)
	if err != nil {
		return 0, err
	}
	return c.UpdateWhere(ctx, table, set, w, opts...)
}

// UpdateWhere is Update with an ordered predicate list.
func (c *Client) UpdateWhere(ctx context.Context, table string, set Row, where sqlgen.Where, opts ...QueryOption) (int64, error) {
	o := collectOptions(opts)
	return c.mutate(ctx, table, "update", set, func(ctx context.Context) (*sqlgen.Query, error) {
		return c.compiler.CompileUpdate(ctx, table, set, where, o.conjunction, o.allRows)
	})
}

// Delete removes the rows matching where. An empty where requires AllRows.
func (c *Client) Delete(ctx context.Context, table string, where map[string]interface{}, opts ...QueryOption) (int64, error) {
	w, err := sqlgen.WhereMap(where)
	if err != nil {
		return 0, err
	}
	return c.DeleteWhere(ctx, table, w, opts...)
}

// DeleteWhere is Delete with an ordered predicate list.
func (c *Client) DeleteWhere(ctx context.Context, table string, where sqlgen.Where, opts ...QueryOption) (int64, error) {
	o := collectOptions(opts)
	return c.mutate(ctx, table, "delete", where, func(ctx context.Context) (*sqlgen.Query, error) {
		return c.compiler.CompileDelete(ctx, table, where, o.conjunction, o.allRows)
	})
}

// Select returns the rows matching where. An empty where selects every row.
func (c *Client) Select(ctx context.Context, table string, where map[string]interface{}, opts ...QueryOption) ([]Row, error) {
	w, err := sqlgen.WhereMap(where)
	if err != nil {
		return nil, err
	}
	return c.SelectWhere(ctx, table, w, opts...)
}

// SelectWhere is Select with an ordered predicate list.
func (c *Client) SelectWhere(ctx context.Context, table string, where sqlgen.Where, opts ...QueryOption) ([]Row, error) {
	return c.selectRows(ctx, table, "select", where, collectOptions(opts))
}

func (c *Client) selectRows(ctx context.Context, table, operation string, where sqlgen.Where, o queryOptions) ([]Row, error) {
	var rows []Row
	op := &Operation{Context: ctx, Kind: KindQuery, Table: table, Name: operation, Args: where}
	err := c.extensions.run(op, func(op *Operation) error {
		return c.exec.WithRetry(ctx, func(ctx context.Context) error {
			q, err := c.compiler.CompileSelect(ctx, table, where, o.conjunction, o.selectOpts)
			if err != nil {
				return err
			}
			res, err := c.exec.Run(ctx, q)
			if err != nil {
				return err
			}
			rows = res.Rows
			op.Rows = len(rows)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectKeyPair maps keyColumn to valueColumn for the rows matching where.
// When several rows share a key the last one wins. Keys are converted to
// strings.
func (c *Client) SelectKeyPair(ctx context.Context, table, keyColumn, valueColumn string, where map[string]interface{}, opts ...QueryOption) (map[string]interface{}, error) {
	w, err := sqlgen.WhereMap(where)
	if err != nil {
		return nil, err
	}
	o := collectOptions(opts)
	o.selectOpts.Columns = []string{keyColumn, valueColumn}

	rows, err := c.selectRows(ctx, table, "selectKeyPair", w, o)
	if err != nil {
		return nil, err
	}
	pairs := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		key, err := cast.ToStringE(row[keyColumn])
		if err != nil {
			return nil, fmt.Errorf("key column %s: %w", keyColumn, err)
		}
		pairs[key] = row[valueColumn]
	}
	return pairs, nil
}

// SelectOne returns the first matching row, or nil when none matches.
func (c *Client) SelectOne(ctx context.Context, table string, where map[string]interface{}, opts ...QueryOption) (Row, error) {
	o := collectOptions(opts)
	opts = append(opts, Limit(1, o.selectOpts.Offset))
	rows, err := c.Select(ctx, table, where, opts...)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// mutate compiles and runs a write inside the retry scope, so a missing
// owned table is provisioned before the compile is repeated.
func (c *Client) mutate(ctx context.Context, table, operation string, args interface{}, compile func(ctx context.Context) (*sqlgen.Query, error)) (int64, error) {
	op := &Operation{Context: ctx, Kind: KindMutation, Table: table, Name: operation, Args: args}
	err := c.extensions.run(op, func(op *Operation) error {
		return c.exec.WithRetry(ctx, func(ctx context.Context) error {
			q, err := compile(ctx)
			if err != nil {
				return err
			}
			res, err := c.exec.Run(ctx, q)
			if err != nil {
				return err
			}
			op.Affected = res.RowsAffected
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return op.Affected, nil
}
