// Package sqlgen generates parameterized SQL for different database providers.
package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/supergnaw/nestbox/errdefs"
)

// Provider names.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Query is compiled SQL with named placeholders and their values. Every
// placeholder in SQL has exactly one entry in Params and vice versa.
type Query struct {
	SQL    string
	Params Params
}

// OrderBy represents an ORDER BY clause
type OrderBy struct {
	Field     string
	Direction string // "ASC" or "DESC"
}

// SelectOptions holds ordering and paging for a SELECT.
type SelectOptions struct {
	// Columns restricts the selected columns. Empty selects every column.
	Columns []string
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// InsertOptions controls INSERT compilation.
type InsertOptions struct {
	// Multi compiles rows as one multi-row VALUES list with row-indexed
	// placeholders. When false exactly one row is expected.
	Multi bool
	// Upsert updates every non-key column when the key already exists.
	Upsert bool
	// PrimaryKey is excluded from the upsert update list.
	PrimaryKey string
}

// Generator generates SQL for a specific provider
type Generator interface {
	Provider() string
	QuoteIdentifier(name string) string
	GenerateInsert(table string, rows []Row, opts InsertOptions) (*Query, error)
	GenerateUpdate(table string, set Row, where Where, conjunction string) (*Query, error)
	GenerateDelete(table string, where Where, conjunction string) (*Query, error)
	GenerateSelect(table string, where Where, conjunction string, opts SelectOptions) (*Query, error)
}

// NormalizeProvider maps driver and provider aliases to a provider name.
func NormalizeProvider(provider string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "mysql", "mariadb":
		return MySQL, true
	case "postgresql", "postgres", "pgx":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	default:
		return "", false
	}
}

// NewGenerator creates a new SQL generator for the given provider. Unknown
// providers get the MySQL generator.
func NewGenerator(provider string) Generator {
	p, _ := NormalizeProvider(provider)
	switch p {
	case Postgres:
		return NewPostgresGenerator()
	case SQLite:
		return NewSQLiteGenerator()
	default:
		return NewMySQLGenerator("")
	}
}

// dialect supplies the provider-specific pieces of a statement.
type dialect interface {
	quote(name string) string
	upsertClause(table string, columns, updates []string, primaryKey string, multi bool) string
}

type baseGenerator struct {
	provider string
	d        dialect
}

func (g *baseGenerator) Provider() string {
	return g.provider
}

func (g *baseGenerator) QuoteIdentifier(name string) string {
	return g.d.quote(name)
}

func (g *baseGenerator) GenerateInsert(table string, rows []Row, opts InsertOptions) (*Query, error) {
	tbl, err := ValidIdentifier(table)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: nothing to insert into %s", errdefs.ErrEmptyParams, tbl)
	}
	if !opts.Multi && len(rows) != 1 {
		return nil, fmt.Errorf("%w: single-row insert given %d rows", errdefs.ErrRowShape, len(rows))
	}

	columns := sortedColumns(rows[0])
	for i, col := range columns {
		if columns[i], err = ValidIdentifier(col); err != nil {
			return nil, err
		}
	}

	params := make(Params)
	namer := newParamNamer()
	valueLists := make([]string, len(rows))
	for r, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", errdefs.ErrRowShape, r, len(row), len(columns))
		}
		placeholders := make([]string, len(columns))
		for c, col := range columns {
			value, ok := row[col]
			if !ok {
				return nil, fmt.Errorf("%w: row %d is missing column %s", errdefs.ErrRowShape, r, col)
			}
			var name string
			if opts.Multi {
				name = fmt.Sprintf("%s_%d", col, r)
				namer.reserve(name)
			} else {
				name = namer.next(col)
			}
			params[name] = value
			placeholders[c] = ":" + name
		}
		valueLists[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = g.d.quote(col)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES %s", g.d.quote(tbl), strings.Join(quoted, ", "), strings.Join(valueLists, ", "))

	if opts.Upsert {
		pk := strings.TrimSpace(opts.PrimaryKey)
		updates := make([]string, 0, len(columns))
		for _, col := range columns {
			if col != pk {
				updates = append(updates, col)
			}
		}
		sb.WriteString(g.d.upsertClause(tbl, columns, updates, pk, opts.Multi))
	}

	return &Query{SQL: sb.String(), Params: params}, nil
}

func (g *baseGenerator) GenerateUpdate(table string, set Row, where Where, conjunction string) (*Query, error) {
	tbl, err := ValidIdentifier(table)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: nothing to update in %s", errdefs.ErrEmptyParams, tbl)
	}

	params := make(Params)
	namer := newParamNamer()

	setParts := make([]string, 0, len(set))
	for _, key := range sortedColumns(set) {
		col, err := ValidIdentifier(key)
		if err != nil {
			return nil, err
		}
		name := namer.next(col)
		params[name] = set[key]
		setParts = append(setParts, fmt.Sprintf("%s = :%s", g.d.quote(col), name))
	}

	sql := fmt.Sprintf("UPDATE %s SET %s", g.d.quote(tbl), strings.Join(setParts, ", "))

	whereSQL, err := buildWhere(where, conjunction, namer, params, g.d.quote)
	if err != nil {
		return nil, err
	}
	if whereSQL != "" {
		sql += " WHERE " + whereSQL
	}

	return &Query{SQL: sql, Params: params}, nil
}

func (g *baseGenerator) GenerateDelete(table string, where Where, conjunction string) (*Query, error) {
	tbl, err := ValidIdentifier(table)
	if err != nil {
		return nil, err
	}

	params := make(Params)
	sql := "DELETE FROM " + g.d.quote(tbl)

	whereSQL, err := buildWhere(where, conjunction, newParamNamer(), params, g.d.quote)
	if err != nil {
		return nil, err
	}
	if whereSQL != "" {
		sql += " WHERE " + whereSQL
	}

	return &Query{SQL: sql, Params: params}, nil
}

func (g *baseGenerator) GenerateSelect(table string, where Where, conjunction string, opts SelectOptions) (*Query, error) {
	tbl, err := ValidIdentifier(table)
	if err != nil {
		return nil, err
	}

	columns := "*"
	if len(opts.Columns) > 0 {
		quoted := make([]string, len(opts.Columns))
		for i, col := range opts.Columns {
			c, err := ValidIdentifier(col)
			if err != nil {
				return nil, err
			}
			quoted[i] = g.d.quote(c)
		}
		columns = strings.Join(quoted, ", ")
	}

	params := make(Params)
	parts := []string{"SELECT " + columns + " FROM " + g.d.quote(tbl)}

	whereSQL, err := buildWhere(where, conjunction, newParamNamer(), params, g.d.quote)
	if err != nil {
		return nil, err
	}
	if whereSQL != "" {
		parts = append(parts, "WHERE "+whereSQL)
	}

	if len(opts.OrderBy) > 0 {
		orderParts := make([]string, len(opts.OrderBy))
		for i, ob := range opts.OrderBy {
			field, err := ValidIdentifier(ob.Field)
			if err != nil {
				return nil, err
			}
			direction := "ASC"
			if strings.EqualFold(strings.TrimSpace(ob.Direction), "DESC") {
				direction = "DESC"
			}
			orderParts[i] = g.d.quote(field) + " " + direction
		}
		parts = append(parts, "ORDER BY "+strings.Join(orderParts, ", "))
	}

	if opts.Limit > 0 {
		parts = append(parts, "LIMIT "+strconv.Itoa(opts.Limit))
		if opts.Offset > 0 {
			parts = append(parts, "OFFSET "+strconv.Itoa(opts.Offset))
		}
	}

	return &Query{SQL: strings.Join(parts, " "), Params: params}, nil
}

// PostgresGenerator generates PostgreSQL SQL
type PostgresGenerator struct {
	baseGenerator
}

// NewPostgresGenerator creates a PostgreSQL generator.
func NewPostgresGenerator() *PostgresGenerator {
	g := &PostgresGenerator{}
	g.baseGenerator = baseGenerator{provider: Postgres, d: g}
	return g
}

func (g *PostgresGenerator) quote(name string) string {
	return quoteIdentifier(name)
}

func (g *PostgresGenerator) upsertClause(table string, columns, updates []string, primaryKey string, multi bool) string {
	return onConflictClause(quoteIdentifier, columns, updates, primaryKey, multi)
}

// quoteIdentifier quotes an identifier for PostgreSQL and SQLite
func quoteIdentifier(name string) string {
	return fmt.Sprintf(`"%s"`, name)
}

// SQLiteGenerator generates SQLite SQL
type SQLiteGenerator struct {
	baseGenerator
}

// NewSQLiteGenerator creates a SQLite generator.
func NewSQLiteGenerator() *SQLiteGenerator {
	g := &SQLiteGenerator{}
	g.baseGenerator = baseGenerator{provider: SQLite, d: g}
	return g
}

func (g *SQLiteGenerator) quote(name string) string {
	return quoteIdentifier(name)
}

func (g *SQLiteGenerator) upsertClause(table string, columns, updates []string, primaryKey string, multi bool) string {
	return onConflictClause(quoteIdentifier, columns, updates, primaryKey, multi)
}

// onConflictClause renders the ON CONFLICT upsert shared by PostgreSQL and
// SQLite. Without a known key there is no conflict target, so the statement
// stays a plain insert.
func onConflictClause(quote func(string) string, columns, updates []string, primaryKey string, multi bool) string {
	if primaryKey == "" {
		return ""
	}
	target := fmt.Sprintf(" ON CONFLICT (%s)", quote(primaryKey))
	if len(updates) == 0 {
		return target + " DO NOTHING"
	}
	sets := make([]string, len(updates))
	for i, col := range updates {
		if multi {
			sets[i] = fmt.Sprintf("%s = excluded.%s", quote(col), quote(col))
		} else {
			sets[i] = fmt.Sprintf("%s = :%s", quote(col), col)
		}
	}
	return target + " DO UPDATE SET " + strings.Join(sets, ", ")
}

// MySQLGenerator generates MySQL SQL
type MySQLGenerator struct {
	baseGenerator
	rowAlias bool
}

// rowAliasVersion is the first MySQL release accepting "VALUES (...) AS new".
var rowAliasVersion = version.Must(version.NewVersion("8.0.19"))

// NewMySQLGenerator creates a MySQL generator for the given server version.
// An empty version assumes a current server.
func NewMySQLGenerator(serverVersion string) *MySQLGenerator {
	g := &MySQLGenerator{rowAlias: SupportsRowAlias(serverVersion)}
	g.baseGenerator = baseGenerator{provider: MySQL, d: g}
	return g
}

// SupportsRowAlias reports whether a MySQL server accepts a row alias on the
// VALUES list of an upsert. MariaDB never does.
func SupportsRowAlias(serverVersion string) bool {
	if serverVersion == "" {
		return true
	}
	if strings.Contains(strings.ToLower(serverVersion), "mariadb") {
		return false
	}
	v, err := version.NewVersion(serverVersion)
	if err != nil {
		return true
	}
	return v.Core().GreaterThanOrEqual(rowAliasVersion)
}

func (g *MySQLGenerator) quote(name string) string {
	return quoteIdentifierMySQL(name)
}

func (g *MySQLGenerator) upsertClause(table string, columns, updates []string, primaryKey string, multi bool) string {
	if len(updates) == 0 {
		// every column is the key, turn the conflict into a no-op
		col := quoteIdentifierMySQL(columns[0])
		return fmt.Sprintf(" ON DUPLICATE KEY UPDATE %s = %s", col, col)
	}

	sets := make([]string, len(updates))
	prefix := ""
	for i, col := range updates {
		quoted := quoteIdentifierMySQL(col)
		switch {
		case !multi:
			sets[i] = fmt.Sprintf("%s = :%s", quoted, col)
		case g.rowAlias:
			sets[i] = fmt.Sprintf("%s = `new`.%s", quoted, quoted)
		default:
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", quoted, quoted)
		}
	}
	if multi && g.rowAlias {
		prefix = " AS `new`"
	}
	return prefix + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// quoteIdentifierMySQL quotes an identifier for MySQL
func quoteIdentifierMySQL(name string) string {
	return fmt.Sprintf("`%s`", name)
}
