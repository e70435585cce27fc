package client

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are the text forms drivers return for date and time columns.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Decode maps rows onto structs of type T. Columns match a field by db tag,
// then by name, case-insensitively. Unmatched columns are ignored.
func Decode[T any](rows []Row) ([]T, error) {
	results := make([]T, 0, len(rows))
	for i, row := range rows {
		var result T
		if err := decodeRow(row, reflect.ValueOf(&result).Elem()); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		results = append(results, result)
	}
	return results, nil
}

// DecodeOne maps a single row onto a T. A nil row gives a nil result.
func DecodeOne[T any](row Row) (*T, error) {
	if row == nil {
		return nil, nil
	}
	var result T
	if err := decodeRow(row, reflect.ValueOf(&result).Elem()); err != nil {
		return nil, err
	}
	return &result, nil
}

// Encode turns a struct into a row keyed by column name. Fields tagged
// db:"-" are skipped, and fields tagged omitempty are skipped when zero.
func Encode(v interface{}) (Row, error) {
	val := reflect.ValueOf(v)
	for val.Kind() == reflect.Pointer {
		if val.IsNil() {
			return nil, fmt.Errorf("cannot encode nil %T", v)
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot encode %T: not a struct", v)
	}

	typ := val.Type()
	row := make(Row)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := columnName(field)
		if skip {
			continue
		}
		fv := val.Field(i)
		if omitEmpty && fv.IsZero() {
			continue
		}
		row[name] = fv.Interface()
	}
	return row, nil
}

func decodeRow(row Row, val reflect.Value) error {
	if val.Kind() != reflect.Struct {
		return fmt.Errorf("destination must be a struct, got %v", val.Kind())
	}
	typ := val.Type()
	for col, value := range row {
		field := findFieldByName(typ, col)
		if field.Name == "" {
			continue
		}
		if err := setFieldValue(val.FieldByIndex(field.Index), value); err != nil {
			return fmt.Errorf("column %s: %w", col, err)
		}
	}
	return nil
}

// findFieldByName finds a struct field by database column name (db tag or field name)
func findFieldByName(typ reflect.Type, colName string) reflect.StructField {
	var fallback reflect.StructField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		name, _, skip := columnName(field)
		if skip {
			continue
		}
		if name == colName {
			return field
		}
		// Case-insensitive match
		if fallback.Name == "" && strings.EqualFold(field.Name, colName) {
			fallback = field
		}
	}
	return fallback
}

// columnName reads the db tag of a field.
func columnName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("db")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func setFieldValue(field reflect.Value, value interface{}) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(field.Type()) {
		field.Set(v)
		return nil
	}

	if b, ok := value.([]byte); ok {
		value = string(b)
		v = reflect.ValueOf(value)
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(fmt.Sprint(value))
		return nil
	case reflect.Bool:
		switch x := value.(type) {
		case bool:
			field.SetBool(x)
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return err
			}
			field.SetBool(b)
		default:
			if !v.CanInt() {
				return fmt.Errorf("cannot convert %T to bool", value)
			}
			field.SetBool(v.Int() != 0)
		}
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if s, ok := value.(string); ok {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(n)
			return nil
		}
		if v.CanConvert(field.Type()) {
			field.Set(v.Convert(field.Type()))
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if s, ok := value.(string); ok {
			n, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				return err
			}
			field.SetUint(n)
			return nil
		}
		if v.CanConvert(field.Type()) {
			field.Set(v.Convert(field.Type()))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		if s, ok := value.(string); ok {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return err
			}
			field.SetFloat(f)
			return nil
		}
		if v.CanConvert(field.Type()) {
			field.Set(v.Convert(field.Type()))
			return nil
		}
	case reflect.Struct:
		if field.Type() == reflect.TypeOf(time.Time{}) {
			if s, ok := value.(string); ok {
				for _, layout := range timeLayouts {
					if t, err := time.Parse(layout, s); err == nil {
						field.Set(reflect.ValueOf(t))
						return nil
					}
				}
				return fmt.Errorf("cannot parse %q as time", s)
			}
		}
	}

	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}
