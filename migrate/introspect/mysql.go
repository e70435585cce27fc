package introspect

import "context"

// MySQLCatalog reads INFORMATION_SCHEMA for one database.
type MySQLCatalog struct {
	// Database is the schema to read. Empty means DATABASE().
	Database string
}

// schemaFilter falls back to the connection's current database.
const mysqlSchemaFilter = "COALESCE(NULLIF(?, ''), DATABASE())"

func (c *MySQLCatalog) Provider() string { return "mysql" }

func (c *MySQLCatalog) Columns(ctx context.Context, q Queryer) (Columns, error) {
	query := `
		SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ` + mysqlSchemaFilter + `
		ORDER BY TABLE_NAME, ORDINAL_POSITION
	`
	rows, err := q.QueryContext(ctx, query, c.Database)
	if err != nil {
		return nil, failed("query columns", err)
	}
	return scanColumns(rows)
}

func (c *MySQLCatalog) Triggers(ctx context.Context, q Queryer) (Triggers, error) {
	query := `
		SELECT EVENT_OBJECT_TABLE, TRIGGER_NAME
		FROM INFORMATION_SCHEMA.TRIGGERS
		WHERE TRIGGER_SCHEMA = ` + mysqlSchemaFilter + `
		ORDER BY EVENT_OBJECT_TABLE, TRIGGER_NAME
	`
	rows, err := q.QueryContext(ctx, query, c.Database)
	if err != nil {
		return nil, failed("query triggers", err)
	}
	return scanTriggers(rows)
}

func (c *MySQLCatalog) PrimaryKey(ctx context.Context, q Queryer, table string) (string, error) {
	query := `
		SELECT COLUMN_NAME
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = ` + mysqlSchemaFilter + `
		  AND TABLE_NAME = ?
		  AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION
		LIMIT 1
	`
	return scanPrimaryKey(q.QueryRowContext(ctx, query, c.Database, table))
}

func (c *MySQLCatalog) ServerVersion(ctx context.Context, q Queryer) (string, error) {
	var v string
	if err := q.QueryRowContext(ctx, "SELECT VERSION()").Scan(&v); err != nil {
		return "", failed("get server version", err)
	}
	return v, nil
}
