package introspect

import "context"

// PostgresCatalog reads information_schema for the current schema.
type PostgresCatalog struct{}

func (c *PostgresCatalog) Provider() string { return "postgres" }

func (c *PostgresCatalog) Columns(ctx context.Context, q Queryer) (Columns, error) {
	query := `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		ORDER BY table_name, ordinal_position
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, failed("query columns", err)
	}
	return scanColumns(rows)
}

func (c *PostgresCatalog) Triggers(ctx context.Context, q Queryer) (Triggers, error) {
	query := `
		SELECT event_object_table, trigger_name
		FROM information_schema.triggers
		WHERE trigger_schema = current_schema()
		ORDER BY event_object_table, trigger_name
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, failed("query triggers", err)
	}
	return scanTriggers(rows)
}

func (c *PostgresCatalog) PrimaryKey(ctx context.Context, q Queryer, table string) (string, error) {
	query := `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_class t ON t.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(i.indkey)
		WHERE i.indisprimary
		  AND n.nspname = current_schema()
		  AND t.relname = $1
		ORDER BY array_position(i.indkey, a.attnum)
		LIMIT 1
	`
	return scanPrimaryKey(q.QueryRowContext(ctx, query, table))
}

func (c *PostgresCatalog) ServerVersion(ctx context.Context, q Queryer) (string, error) {
	var v string
	if err := q.QueryRowContext(ctx, "SHOW server_version").Scan(&v); err != nil {
		return "", failed("get server version", err)
	}
	return v, nil
}
