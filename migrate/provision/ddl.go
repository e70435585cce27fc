package provision

import (
	"fmt"
	"strings"

	"github.com/supergnaw/nestbox/query/sqlgen"
)

// ColumnType is a portable column type rendered per provider.
type ColumnType int

const (
	// AutoID is an auto-incrementing integer primary key.
	AutoID ColumnType = iota
	Int
	BigInt
	Bool
	// String is a VARCHAR of Column.Size characters.
	String
	Text
	Timestamp
)

// Column describes one column of a class table.
type Column struct {
	Name string
	Type ColumnType
	Size int
	// NotNull adds a NOT NULL constraint.
	NotNull bool
	// Default is a raw SQL default expression such as 'news' or CURRENT_TIMESTAMP.
	Default    string
	PrimaryKey bool
}

// TableDef describes a table a module owns.
type TableDef struct {
	Name    string
	Columns []Column
	// Extra returns statements run after the table is created, such as
	// triggers. Each must be idempotent.
	Extra func(provider string) []string
}

// CreateTableSQL renders an idempotent CREATE TABLE statement.
func CreateTableSQL(provider string, t TableDef) (string, error) {
	name, err := sqlgen.ValidIdentifier(t.Name)
	if err != nil {
		return "", err
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("table %s has no columns", name)
	}
	p, ok := sqlgen.NormalizeProvider(provider)
	if !ok {
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}
	quote := sqlgen.NewGenerator(p).QuoteIdentifier

	var defs, keys []string
	inlineKey := false
	for _, col := range t.Columns {
		colName, err := sqlgen.ValidIdentifier(col.Name)
		if err != nil {
			return "", err
		}
		def := quote(colName) + " " + columnType(p, col)
		if col.Type == AutoID && p == sqlgen.SQLite {
			// sqlite only auto-increments an inline INTEGER PRIMARY KEY
			inlineKey = true
		} else {
			if col.NotNull || col.PrimaryKey || col.Type == AutoID {
				def += " NOT NULL"
			}
			if col.Default != "" {
				def += " DEFAULT " + col.Default
			}
		}
		defs = append(defs, def)
		if col.PrimaryKey || col.Type == AutoID {
			keys = append(keys, quote(colName))
		}
	}
	if len(keys) > 0 && !inlineKey {
		defs = append(defs, "PRIMARY KEY ("+strings.Join(keys, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(name), strings.Join(defs, ",\n\t")), nil
}

func columnType(provider string, col Column) string {
	switch col.Type {
	case AutoID:
		switch provider {
		case sqlgen.Postgres:
			return "SERIAL"
		case sqlgen.SQLite:
			return "INTEGER PRIMARY KEY AUTOINCREMENT"
		default:
			return "INT AUTO_INCREMENT"
		}
	case Int:
		if provider == sqlgen.MySQL {
			return "INT"
		}
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Bool:
		switch provider {
		case sqlgen.Postgres:
			return "BOOLEAN"
		case sqlgen.SQLite:
			return "INTEGER"
		default:
			return "TINYINT(1)"
		}
	case String:
		size := col.Size
		if size <= 0 {
			size = 255
		}
		return fmt.Sprintf("VARCHAR(%d)", size)
	case Text:
		if provider == sqlgen.MySQL {
			return "MEDIUMTEXT"
		}
		return "TEXT"
	case Timestamp:
		if provider == sqlgen.Postgres {
			return "TIMESTAMP"
		}
		return "DATETIME"
	default:
		return "TEXT"
	}
}
