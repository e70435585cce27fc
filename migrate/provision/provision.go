// Package provision registers the tables each module owns and creates them on
// demand.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// ErrDuplicateModule is returned when a module prefix is registered twice.
var ErrDuplicateModule = errors.New("module already registered")

// Module is a set of class tables sharing a name prefix.
type Module struct {
	Name   string
	Prefix string
	Tables []TableDef
}

// Registry holds the registered modules
type Registry struct {
	mu      sync.RWMutex
	modules []Module
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: debug.With("component", "provision"),
	}
}

// Register adds a module. Every table must carry the module prefix.
func (r *Registry) Register(m Module) error {
	prefix, err := sqlgen.ValidIdentifier(m.Prefix)
	if err != nil {
		return fmt.Errorf("module %s: %w", m.Name, err)
	}
	for _, t := range m.Tables {
		if !strings.HasPrefix(t.Name, prefix) {
			return fmt.Errorf("module %s: table %s does not start with %s", m.Name, t.Name, prefix)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.modules {
		if existing.Prefix == prefix {
			return fmt.Errorf("%w: %s", ErrDuplicateModule, prefix)
		}
	}
	m.Prefix = prefix
	r.modules = append(r.modules, m)
	return nil
}

// Owns reports whether table follows the naming convention of a registered
// module.
func (r *Registry) Owns(table string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.modules {
		if strings.HasPrefix(table, m.Prefix) {
			return true
		}
	}
	return false
}

// Tables returns the names of every registered table, sorted.
func (r *Registry) Tables() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for _, m := range r.modules {
		for _, t := range m.Tables {
			names = append(names, t.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Statements renders the DDL of every registered table in registration order.
func (r *Registry) Statements(provider string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stmts []string
	for _, m := range r.modules {
		for _, t := range m.Tables {
			create, err := CreateTableSQL(provider, t)
			if err != nil {
				return nil, fmt.Errorf("module %s: %w", m.Name, err)
			}
			stmts = append(stmts, create)
			if t.Extra != nil {
				stmts = append(stmts, t.Extra(provider)...)
			}
		}
	}
	return stmts, nil
}

// Provision runs every registered table's DDL. It is best-effort: a failing
// statement is logged and the rest still run. All failures are returned
// joined.
func (r *Registry) Provision(ctx context.Context, provider string, exec func(ctx context.Context, statement string) error) error {
	r.mu.RLock()
	modules := append([]Module(nil), r.modules...)
	r.mu.RUnlock()

	var errs []error
	for _, m := range modules {
		for _, t := range m.Tables {
			if err := r.provisionTable(ctx, provider, t, exec); err != nil {
				r.logger.Warn("failed to provision table", "module", m.Name, "table", t.Name, "error", err)
				errs = append(errs, fmt.Errorf("provision %s: %w", t.Name, err))
				continue
			}
			r.logger.Info("provisioned table", "module", m.Name, "table", t.Name)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) provisionTable(ctx context.Context, provider string, t TableDef, exec func(ctx context.Context, statement string) error) error {
	create, err := CreateTableSQL(provider, t)
	if err != nil {
		return err
	}
	if err := exec(ctx, create); err != nil {
		return err
	}
	if t.Extra == nil {
		return nil
	}
	var errs []error
	for i, stmt := range t.Extra(provider) {
		if err := exec(ctx, stmt); err != nil {
			errs = append(errs, fmt.Errorf("statement %d: %w", i+1, err))
		}
	}
	return errors.Join(errs...)
}

// Missing returns the registered tables for which exists reports false.
func (r *Registry) Missing(exists func(table string) bool) []string {
	var missing []string
	for _, name := range r.Tables() {
		if !exists(name) {
			missing = append(missing, name)
		}
	}
	return missing
}
