package executor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/supergnaw/nestbox/errdefs"
)

const (
	mysqlNoSuchTable       = 1146
	postgresUndefinedTable = "42P01"
)

var (
	mysqlTablePattern    = regexp.MustCompile("Table '([^']+)' doesn't exist")
	postgresTablePattern = regexp.MustCompile(`relation "([^"]+)" does not exist`)
	sqliteTablePattern   = regexp.MustCompile(`no such table: (\S+)`)
)

// classifyError turns a driver error into the error taxonomy. A missing table
// becomes a TableError so the caller can provision and retry. Everything else
// is a QueryError carrying the driver's diagnostics.
func classifyError(err error, query string) error {
	if err == nil {
		return nil
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if myErr.Number == mysqlNoSuchTable {
			if table, ok := matchTable(mysqlTablePattern, myErr.Message); ok {
				return fmt.Errorf("%w: %s", errdefs.NewTableError(table), myErr.Message)
			}
		}
		qe := &errdefs.QueryError{Code: int(myErr.Number), Message: myErr.Message, SQL: query, Cause: err}
		if myErr.SQLState != [5]byte{} {
			qe.SQLState = string(myErr.SQLState[:])
		}
		return qe
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) == postgresUndefinedTable {
			if table, ok := matchTable(postgresTablePattern, pqErr.Message); ok {
				return fmt.Errorf("%w: %s", errdefs.NewTableError(table), pqErr.Message)
			}
		}
		return &errdefs.QueryError{SQLState: string(pqErr.Code), Message: pqErr.Message, SQL: query, Cause: err}
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if table, ok := matchTable(sqliteTablePattern, liteErr.Error()); ok {
			return fmt.Errorf("%w: %s", errdefs.NewTableError(table), liteErr.Error())
		}
		return &errdefs.QueryError{Code: int(liteErr.ExtendedCode), Message: liteErr.Error(), SQL: query, Cause: err}
	}

	// go-sqlite3 reports prepare failures as plain errors
	if table, ok := matchTable(sqliteTablePattern, err.Error()); ok {
		return fmt.Errorf("%w: %s", errdefs.NewTableError(table), err.Error())
	}

	return &errdefs.QueryError{Message: err.Error(), SQL: query, Cause: err}
}

// matchTable extracts a table name, dropping any schema qualifier.
func matchTable(pattern *regexp.Regexp, message string) (string, bool) {
	m := pattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	name := m[1]
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name, name != ""
}
