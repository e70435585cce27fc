package introspect

import "context"

// SQLiteCatalog reads sqlite_master and the table_info pragma.
type SQLiteCatalog struct{}

func (c *SQLiteCatalog) Provider() string { return "sqlite" }

func (c *SQLiteCatalog) Columns(ctx context.Context, q Queryer) (Columns, error) {
	query := `
		SELECT m.name, p.name, p.type
		FROM sqlite_master AS m
		JOIN pragma_table_info(m.name) AS p
		WHERE m.type = 'table'
		  AND m.name NOT LIKE 'sqlite_%'
		ORDER BY m.name, p.cid
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, failed("query columns", err)
	}
	return scanColumns(rows)
}

func (c *SQLiteCatalog) Triggers(ctx context.Context, q Queryer) (Triggers, error) {
	query := `
		SELECT tbl_name, name
		FROM sqlite_master
		WHERE type = 'trigger'
		ORDER BY tbl_name, name
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, failed("query triggers", err)
	}
	return scanTriggers(rows)
}

func (c *SQLiteCatalog) PrimaryKey(ctx context.Context, q Queryer, table string) (string, error) {
	return scanPrimaryKey(q.QueryRowContext(ctx, "SELECT name FROM pragma_table_info(?) WHERE pk = 1", table))
}

func (c *SQLiteCatalog) ServerVersion(ctx context.Context, q Queryer) (string, error) {
	var v string
	if err := q.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v); err != nil {
		return "", failed("get server version", err)
	}
	return v, nil
}
