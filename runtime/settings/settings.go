// Package settings persists typed, declaratively listed settings in the
// nestbox_settings table.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/query/sqlgen"
	"github.com/supergnaw/nestbox/runtime/client"
)

// ErrUnknownSetting is returned for a name that was never declared.
var ErrUnknownSetting = errors.New("unknown setting")

// Type is the value type of a setting.
type Type string

const (
	String   Type = "string"
	Int      Type = "int"
	Bool     Type = "bool"
	Float    Type = "float"
	Duration Type = "duration"
)

// Definition declares one setting.
type Definition struct {
	Name    string
	Type    Type
	Default interface{}
}

// Store is the part of the client settings are persisted through.
type Store interface {
	Select(ctx context.Context, table string, where map[string]interface{}, opts ...client.QueryOption) ([]client.Row, error)
	InsertRows(ctx context.Context, table string, rows []client.Row, opts ...client.QueryOption) (int64, error)
}

// Settings holds the current values of one package's settings.
type Settings struct {
	mu     sync.RWMutex
	pkg    string
	defs   map[string]Definition
	order  []string
	values map[string]interface{}
}

// New declares the settings of package pkg. Every default is converted to its
// declared type.
func New(pkg string, defs ...Definition) (*Settings, error) {
	s := &Settings{
		pkg:    pkg,
		defs:   make(map[string]Definition, len(defs)),
		values: make(map[string]interface{}, len(defs)),
	}
	for _, def := range defs {
		name, err := sqlgen.ValidIdentifier(def.Name)
		if err != nil {
			return nil, err
		}
		if _, dup := s.defs[name]; dup {
			return nil, fmt.Errorf("setting %s declared twice", name)
		}
		value, err := convert(def.Type, def.Default)
		if err != nil {
			return nil, fmt.Errorf("setting %s: invalid default: %w", name, err)
		}
		def.Name = name
		s.defs[name] = def
		s.order = append(s.order, name)
		s.values[name] = value
	}
	sort.Strings(s.order)
	return s, nil
}

// Load reads stored values. Rows for undeclared names are ignored, and a
// stored value that no longer converts keeps the default.
func (s *Settings) Load(ctx context.Context, store Store) error {
	rows, err := store.Select(ctx, client.SettingsTable, map[string]interface{}{"package_name": s.pkg})
	if err != nil {
		return fmt.Errorf("failed to load settings of %s: %w", s.pkg, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		name := cast.ToString(row["setting_name"])
		def, ok := s.defs[name]
		if !ok {
			continue
		}
		value, err := convert(def.Type, row["setting_value"])
		if err != nil {
			debug.Warn("ignoring stored setting", "package", s.pkg, "setting", name, "error", err)
			continue
		}
		s.values[name] = value
	}
	return nil
}

// Save upserts every setting.
func (s *Settings) Save(ctx context.Context, store Store) error {
	s.mu.RLock()
	rows := make([]client.Row, 0, len(s.order))
	for _, name := range s.order {
		rows = append(rows, client.Row{
			"setting_name":  name,
			"package_name":  s.pkg,
			"setting_type":  string(s.defs[name].Type),
			"setting_value": format(s.values[name]),
		})
	}
	s.mu.RUnlock()

	if len(rows) == 0 {
		return nil
	}
	if _, err := store.InsertRows(ctx, client.SettingsTable, rows); err != nil {
		return fmt.Errorf("failed to save settings of %s: %w", s.pkg, err)
	}
	return nil
}

// Set changes a value after converting it to the declared type.
func (s *Settings) Set(name string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.defs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, name)
	}
	v, err := convert(def.Type, value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}
	s.values[name] = v
	return nil
}

// Reset restores every default.
func (s *Settings) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, def := range s.defs {
		s.values[name], _ = convert(def.Type, def.Default)
	}
}

// Get returns the current value of name.
func (s *Settings) Get(name string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Names returns the declared names, sorted.
func (s *Settings) Names() []string {
	return append([]string(nil), s.order...)
}

func (s *Settings) String(name string) string {
	v, _ := s.Get(name)
	return cast.ToString(v)
}

func (s *Settings) Int(name string) int {
	v, _ := s.Get(name)
	return cast.ToInt(v)
}

func (s *Settings) Bool(name string) bool {
	v, _ := s.Get(name)
	return cast.ToBool(v)
}

func (s *Settings) Float(name string) float64 {
	v, _ := s.Get(name)
	return cast.ToFloat64(v)
}

func (s *Settings) Duration(name string) time.Duration {
	v, _ := s.Get(name)
	return cast.ToDuration(v)
}

func format(value interface{}) string {
	if d, ok := value.(time.Duration); ok {
		return d.String()
	}
	return cast.ToString(value)
}

func convert(t Type, value interface{}) (interface{}, error) {
	switch t {
	case String:
		return cast.ToStringE(value)
	case Int:
		return cast.ToIntE(value)
	case Bool:
		return cast.ToBoolE(value)
	case Float:
		return cast.ToFloat64E(value)
	case Duration:
		return cast.ToDurationE(value)
	default:
		return nil, fmt.Errorf("unsupported setting type %q", t)
	}
}
