package executor

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// scanRows reads every row into a column map. Text the driver hands back as
// bytes is converted to string; binary columns stay []byte.
func scanRows(rows *sql.Rows) ([]sqlgen.Row, error) {
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}
	binary := make(map[string]bool, len(types))
	for _, ct := range types {
		binary[ct.Name()] = isBinaryType(ct.DatabaseTypeName())
	}

	result := []sqlgen.Row{}
	for rows.Next() {
		m := make(map[string]interface{}, len(types))
		if err := sqlx.MapScan(rows, m); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for col, v := range m {
			if b, ok := v.([]byte); ok && !binary[col] {
				m[col] = string(b)
			}
		}
		result = append(result, sqlgen.Row(m))
	}
	return result, rows.Err()
}

func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	return strings.Contains(name, "BLOB") || strings.Contains(name, "BINARY") || name == "BYTEA"
}
