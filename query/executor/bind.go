package executor

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// checkBindable rejects values without a scalar representation. Slices and
// maps report ErrCannotBindArray, anything else unknown ErrFailedToBindValue.
func checkBindable(params sqlgen.Params) error {
	for name, value := range params {
		if err := bindable(name, value); err != nil {
			return err
		}
	}
	return nil
}

func bindable(name string, value interface{}) error {
	switch value.(type) {
	case nil, []byte, time.Time, driver.Valuer:
		return nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Slice, reflect.Array, reflect.Map:
		return &errdefs.BindError{Param: name, Type: rv.Type().String(), Cause: errdefs.ErrCannotBindArray}
	default:
		return &errdefs.BindError{Param: name, Type: rv.Type().String(), Cause: errdefs.ErrFailedToBindValue}
	}
}

// bindNamed rewrites :name placeholders into the driver's bindvar style and
// returns the positional arguments. Quoted literals, comments and "::" casts
// are left untouched.
func bindNamed(driverName, query string, params sqlgen.Params) (string, []interface{}, error) {
	if len(params) == 0 {
		return query, nil, nil
	}

	bindType := sqlx.BindType(driverName)
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.Grow(len(query))

	for i := 0; i < len(query); i++ {
		if end, ok := sqlgen.SkipLiteral(query, i); ok {
			sb.WriteString(query[i : end+1])
			i = end
			continue
		}

		c := query[i]
		switch {
		case c == ':' && i+1 < len(query) && query[i+1] == ':':
			sb.WriteString("::")
			i++
		case c == ':' && i+1 < len(query) && isWordByte(query[i+1]):
			j := i + 1
			for j < len(query) && isWordByte(query[j]) {
				j++
			}
			name := query[i+1 : j]
			value, ok := params[name]
			if !ok {
				return "", nil, fmt.Errorf("%w: %s", errdefs.ErrMissingParams, name)
			}
			args = append(args, value)
			switch bindType {
			case sqlx.DOLLAR:
				sb.WriteString("$" + strconv.Itoa(len(args)))
			case sqlx.AT:
				sb.WriteString("@p" + strconv.Itoa(len(args)))
			case sqlx.NAMED:
				sb.WriteString(":" + name)
				args[len(args)-1] = sql.Named(name, value)
			default:
				sb.WriteByte('?')
			}
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}

	return sb.String(), args, nil
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
