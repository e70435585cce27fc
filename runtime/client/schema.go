package client

import (
	"context"
	"fmt"

	"github.com/supergnaw/nestbox/migrate/introspect"
	"github.com/supergnaw/nestbox/query/executor"
)

// ValidSchema reports whether table exists and, when column is not empty,
// whether it has that column.
func (c *Client) ValidSchema(ctx context.Context, table, column string) bool {
	return c.schema.ValidSchema(ctx, table, column)
}

// ValidTable reports whether table exists.
func (c *Client) ValidTable(ctx context.Context, table string) bool {
	return c.schema.ValidTable(ctx, table)
}

// ValidColumn reports whether table has column.
func (c *Client) ValidColumn(ctx context.Context, table, column string) bool {
	return c.schema.ValidColumn(ctx, table, column)
}

// ValidTrigger reports whether trigger fires on table.
func (c *Client) ValidTrigger(ctx context.Context, table, trigger string) bool {
	return c.schema.ValidTrigger(ctx, table, trigger)
}

// TablePrimaryKey returns the primary key column of table.
func (c *Client) TablePrimaryKey(ctx context.Context, table string) (string, error) {
	return c.schema.PrimaryKey(ctx, table)
}

// TableSchema returns a copy of the cached table to column to type map.
func (c *Client) TableSchema() introspect.Columns {
	return c.schema.TableSchema()
}

// Tables returns the names of every table in the database.
func (c *Client) Tables(ctx context.Context) []string {
	return c.schema.Tables(ctx)
}

// LoadTableSchema reloads the table cache, reporting false on failure.
func (c *Client) LoadTableSchema(ctx context.Context) bool {
	return c.schema.LoadTableSchema(ctx)
}

// LoadTriggerSchema reloads the trigger cache, reporting false on failure.
func (c *Client) LoadTriggerSchema(ctx context.Context) bool {
	return c.schema.LoadTriggerSchema(ctx)
}

// InvalidateSchema drops the cached schema. The next lookup reloads it.
func (c *Client) InvalidateSchema() {
	c.schema.Invalidate()
}

// Provision creates every registered table. It is idempotent.
func (c *Client) Provision(ctx context.Context) error {
	err := c.registry.Provision(ctx, c.Provider(), func(ctx context.Context, statement string) error {
		_, err := c.exec.Exec(ctx, statement, nil, executor.NoRetry())
		return err
	})
	c.schema.Invalidate()
	return err
}

// CheckClassTables provisions the registered tables when any is missing and
// returns the tables that were missing.
func (c *Client) CheckClassTables(ctx context.Context) ([]string, error) {
	missing := c.registry.Missing(func(table string) bool {
		return c.schema.ValidTable(ctx, table)
	})
	if len(missing) == 0 {
		return nil, nil
	}
	c.logger.Info("creating missing class tables", "tables", missing)
	if err := c.Provision(ctx); err != nil {
		return missing, fmt.Errorf("failed to create class tables: %w", err)
	}
	return missing, nil
}

// ServerVersion returns the version string the database server reports.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	runner, err := c.session.Runner(ctx)
	if err != nil {
		return "", err
	}
	return c.catalog.ServerVersion(ctx, runner)
}
