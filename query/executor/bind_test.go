package executor

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

func TestBindNamed(t *testing.T) {
	query := `SELECT ':skip', "col:x", :a, :b::text, :a`
	params := sqlgen.Params{"a": 1, "b": "two"}

	tests := []struct {
		driver string
		want   string
	}{
		{"postgres", `SELECT ':skip', "col:x", $1, $2::text, $3`},
		{"mysql", `SELECT ':skip', "col:x", ?, ?::text, ?`},
		{"sqlite3", `SELECT ':skip', "col:x", ?, ?::text, ?`},
		{"sqlserver", `SELECT ':skip', "col:x", @p1, @p2::text, @p3`},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			bound, args, err := bindNamed(tt.driver, query, params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, bound)
			assert.Equal(t, []interface{}{1, "two", 1}, args)
		})
	}

	t.Run("named", func(t *testing.T) {
		bound, args, err := bindNamed("oci8", "SELECT :a", sqlgen.Params{"a": 1})
		require.NoError(t, err)
		assert.Equal(t, "SELECT :a", bound)
		assert.Equal(t, []interface{}{sql.Named("a", 1)}, args)
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := bindNamed("sqlite3", "SELECT :a, :b", sqlgen.Params{"a": 1})
		assert.ErrorIs(t, err, errdefs.ErrMissingParams)
	})

	t.Run("escapes and comments", func(t *testing.T) {
		query := "SELECT 'it\\'s :x', :a -- :b\n/* :c */ FROM t"
		bound, args, err := bindNamed("postgres", query, sqlgen.Params{"a": 1})
		require.NoError(t, err)
		assert.Equal(t, "SELECT 'it\\'s :x', $1 -- :b\n/* :c */ FROM t", bound)
		assert.Equal(t, []interface{}{1}, args)
	})

	t.Run("no params", func(t *testing.T) {
		bound, args, err := bindNamed("postgres", "SELECT 1", nil)
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1", bound)
		assert.Nil(t, args)
	})
}

func TestCheckBindable(t *testing.T) {
	var nilPtr *int
	n := 3

	ok := sqlgen.Params{
		"nil":     nil,
		"bytes":   []byte("x"),
		"time":    time.Now(),
		"valuer":  sql.NullString{String: "x", Valid: true},
		"int":     1,
		"uint8":   uint8(1),
		"float":   1.5,
		"bool":    true,
		"string":  "s",
		"ptr":     &n,
		"nil ptr": nilPtr,
	}
	assert.NoError(t, checkBindable(ok))

	var bindErr *errdefs.BindError
	err := checkBindable(sqlgen.Params{"tags": []string{"a"}})
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "tags", bindErr.Param)
	assert.Equal(t, "[]string", bindErr.Type)
	assert.ErrorIs(t, err, errdefs.ErrCannotBindArray)

	assert.ErrorIs(t, checkBindable(sqlgen.Params{"m": map[string]int{}}), errdefs.ErrCannotBindArray)
	assert.ErrorIs(t, checkBindable(sqlgen.Params{"f": func() {}}), errdefs.ErrFailedToBindValue)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		table string
	}{
		{
			name:  "mysql missing table",
			err:   &mysql.MySQLError{Number: 1146, Message: "Table 'app.babbler_entries' doesn't exist"},
			table: "babbler_entries",
		},
		{
			name:  "postgres missing relation",
			err:   &pq.Error{Code: "42P01", Message: `relation "public.session_data" does not exist`},
			table: "session_data",
		},
		{
			name:  "sqlite prepare failure",
			err:   errors.New("no such table: main.nestbox_settings"),
			table: "nestbox_settings",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyError(tt.err, "SELECT 1")
			table, ok := errdefs.TableOf(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.table, table)
		})
	}
}

func TestClassifyErrorDiagnostics(t *testing.T) {
	var qe *errdefs.QueryError

	err := classifyError(&mysql.MySQLError{Number: 1064, SQLState: [5]byte{'4', '2', '0', '0', '0'}, Message: "syntax"}, "SELEKT")
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, 1064, qe.Code)
	assert.Equal(t, "42000", qe.SQLState)
	assert.Equal(t, "SELEKT", qe.SQL)

	err = classifyError(&pq.Error{Code: "23505", Message: "duplicate key"}, "INSERT")
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "23505", qe.SQLState)
	assert.True(t, errdefs.IsDatabase(err))

	cause := errors.New("disk I/O error")
	err = classifyError(cause, "INSERT")
	assert.ErrorIs(t, err, errdefs.ErrQuery)
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, classifyError(nil, ""))
}
