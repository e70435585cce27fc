package client

import (
	"context"
	"fmt"

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/query/executor"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// RenameTable renames table to name. It fails when name already exists.
func (c *Client) RenameTable(ctx context.Context, table, name string) error {
	from, err := c.existingTable(ctx, table)
	if err != nil {
		return err
	}
	to, err := sqlgen.ValidIdentifier(name)
	if err != nil {
		return err
	}
	if c.schema.ValidTable(ctx, to) {
		return fmt.Errorf("%w: %s", errdefs.ErrDuplicateTable, to)
	}

	quote := c.compiler.Generator().QuoteIdentifier
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", quote(from), quote(to))
	if c.Provider() == sqlgen.MySQL {
		stmt = fmt.Sprintf("RENAME TABLE %s TO %s", quote(from), quote(to))
	}
	return c.ddl(ctx, stmt)
}

// TruncateTable removes every row of table.
func (c *Client) TruncateTable(ctx context.Context, table string) error {
	tbl, err := c.existingTable(ctx, table)
	if err != nil {
		return err
	}

	quote := c.compiler.Generator().QuoteIdentifier
	stmt := "TRUNCATE TABLE " + quote(tbl)
	if c.Provider() == sqlgen.SQLite {
		stmt = "DELETE FROM " + quote(tbl)
	}
	return c.ddl(ctx, stmt)
}

// DropTable drops table.
func (c *Client) DropTable(ctx context.Context, table string) error {
	tbl, err := c.existingTable(ctx, table)
	if err != nil {
		return err
	}
	return c.ddl(ctx, "DROP TABLE "+c.compiler.Generator().QuoteIdentifier(tbl))
}

func (c *Client) existingTable(ctx context.Context, table string) (string, error) {
	tbl, err := sqlgen.ValidIdentifier(table)
	if err != nil {
		return "", err
	}
	if !c.schema.ValidTable(ctx, tbl) {
		return "", errdefs.NewTableError(tbl)
	}
	return tbl, nil
}

func (c *Client) ddl(ctx context.Context, stmt string) error {
	_, err := c.exec.Exec(ctx, stmt, nil, executor.NoRetry())
	c.schema.Invalidate()
	return err
}
