// Package introspect reads table, column and trigger metadata from the
// database catalog.
package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// Queryer is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Columns maps table name to column name to data type.
type Columns map[string]map[string]string

// Triggers maps table name to the names of the triggers firing on it.
type Triggers map[string][]string

// Tables returns the table names, sorted.
func (c Columns) Tables() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog reads schema metadata for one provider
type Catalog interface {
	Provider() string
	Columns(ctx context.Context, q Queryer) (Columns, error)
	Triggers(ctx context.Context, q Queryer) (Triggers, error)
	// PrimaryKey returns the first primary key column of table, or "" when the
	// table has none.
	PrimaryKey(ctx context.Context, q Queryer, table string) (string, error)
	ServerVersion(ctx context.Context, q Queryer) (string, error)
}

// NewCatalog creates a catalog reader for the given provider. database scopes
// MySQL lookups; when empty the connection's current database is used.
func NewCatalog(provider, database string) (Catalog, error) {
	p, ok := sqlgen.NormalizeProvider(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
	switch p {
	case sqlgen.Postgres:
		return &PostgresCatalog{}, nil
	case sqlgen.SQLite:
		return &SQLiteCatalog{}, nil
	default:
		return &MySQLCatalog{Database: database}, nil
	}
}

// scanColumns reads (table, column, type) rows.
func scanColumns(rows *sql.Rows) (Columns, error) {
	defer rows.Close()

	cols := make(Columns)
	for rows.Next() {
		var table, column string
		var dataType sql.NullString
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, failed("scan column", err)
		}
		if cols[table] == nil {
			cols[table] = make(map[string]string)
		}
		cols[table][column] = dataType.String
	}
	if err := rows.Err(); err != nil {
		return nil, failed("read columns", err)
	}
	return cols, nil
}

// scanTriggers reads (table, trigger) rows. A trigger listed once per event
// is recorded once.
func scanTriggers(rows *sql.Rows) (Triggers, error) {
	defer rows.Close()

	triggers := make(Triggers)
	seen := make(map[string]bool)
	for rows.Next() {
		var table, trigger string
		if err := rows.Scan(&table, &trigger); err != nil {
			return nil, failed("scan trigger", err)
		}
		if seen[table+"."+trigger] {
			continue
		}
		seen[table+"."+trigger] = true
		triggers[table] = append(triggers[table], trigger)
	}
	if err := rows.Err(); err != nil {
		return nil, failed("read triggers", err)
	}
	return triggers, nil
}

func scanPrimaryKey(row *sql.Row) (string, error) {
	var name string
	err := row.Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", failed("query primary key", err)
	}
	return name, nil
}
