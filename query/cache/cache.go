// Package cache provides the schema cache used to validate dynamic queries.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/migrate/introspect"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// QueryerFunc returns the handle catalog queries run on. Inside a transaction
// it must return the transaction.
type QueryerFunc func(ctx context.Context) (introspect.Queryer, error)

// Stats represents cache statistics
type Stats struct {
	Hits           int64
	Misses         int64
	TableReloads   int64
	TriggerReloads int64
	LoadFailures   int64
}

// SchemaCache mirrors the live table, column and trigger catalog. An empty
// table map is treated as not loaded, and any miss forces one reload before
// a table, column or trigger is reported invalid.
type SchemaCache struct {
	mu          sync.RWMutex
	catalog     introspect.Catalog
	queryer     QueryerFunc
	tables      introspect.Columns
	triggers    introspect.Triggers
	primaryKeys map[string]string
	stats       Stats
	logger      *slog.Logger
}

// NewSchemaCache creates an empty cache. Nothing is read until the first
// lookup.
func NewSchemaCache(catalog introspect.Catalog, queryer QueryerFunc) *SchemaCache {
	return &SchemaCache{
		catalog:     catalog,
		queryer:     queryer,
		tables:      make(introspect.Columns),
		triggers:    make(introspect.Triggers),
		primaryKeys: make(map[string]string),
		logger:      debug.With("component", "schema-cache"),
	}
}

// RefreshTables replaces the table map with a fresh catalog read.
func (c *SchemaCache) RefreshTables(ctx context.Context) error {
	q, err := c.queryer(ctx)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("schema cache: %w", err)
	}
	tables, err := c.catalog.Columns(ctx, q)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("schema cache: %w", err)
	}

	c.mu.Lock()
	c.tables = tables
	c.primaryKeys = make(map[string]string)
	c.stats.TableReloads++
	c.mu.Unlock()

	c.logger.Debug("table schema loaded", "tables", len(tables))
	return nil
}

// RefreshTriggers replaces the trigger map with a fresh catalog read.
func (c *SchemaCache) RefreshTriggers(ctx context.Context) error {
	q, err := c.queryer(ctx)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("schema cache: %w", err)
	}
	triggers, err := c.catalog.Triggers(ctx, q)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("schema cache: %w", err)
	}

	c.mu.Lock()
	c.triggers = triggers
	c.stats.TriggerReloads++
	c.mu.Unlock()

	c.logger.Debug("trigger schema loaded", "tables", len(triggers))
	return nil
}

// LoadTableSchema reloads the table map. A failed catalog query is logged and
// reported as false.
func (c *SchemaCache) LoadTableSchema(ctx context.Context) bool {
	if err := c.RefreshTables(ctx); err != nil {
		c.logger.Warn("failed to load table schema", "error", err)
		return false
	}
	return true
}

// LoadTriggerSchema reloads the trigger map. A failed catalog query is logged
// and reported as false.
func (c *SchemaCache) LoadTriggerSchema(ctx context.Context) bool {
	if err := c.RefreshTriggers(ctx); err != nil {
		c.logger.Warn("failed to load trigger schema", "error", err)
		return false
	}
	return true
}

// ValidSchema reports whether table exists and, when column is not empty,
// whether it has that column.
func (c *SchemaCache) ValidSchema(ctx context.Context, table, column string) bool {
	table, err := sqlgen.ValidIdentifier(table)
	if err != nil {
		return false
	}
	if column != "" {
		if column, err = sqlgen.ValidIdentifier(column); err != nil {
			return false
		}
	}

	fresh := c.empty()
	if fresh {
		c.LoadTableSchema(ctx)
	}
	if c.lookup(table, column) {
		return true
	}
	if fresh {
		return false
	}

	// the catalog may have changed since the last read
	if !c.LoadTableSchema(ctx) {
		return false
	}
	return c.lookup(table, column)
}

// ValidTable reports whether table exists.
func (c *SchemaCache) ValidTable(ctx context.Context, table string) bool {
	return c.ValidSchema(ctx, table, "")
}

// ValidColumn reports whether table has column.
func (c *SchemaCache) ValidColumn(ctx context.Context, table, column string) bool {
	if column == "" {
		return false
	}
	return c.ValidSchema(ctx, table, column)
}

// ValidTrigger reports whether trigger fires on table. The trigger map is
// reloaded once on a miss.
func (c *SchemaCache) ValidTrigger(ctx context.Context, table, trigger string) bool {
	if !c.ValidTable(ctx, table) {
		return false
	}
	trigger, err := sqlgen.ValidIdentifier(trigger)
	if err != nil {
		return false
	}
	table, _ = sqlgen.ValidIdentifier(table)

	if c.hasTrigger(table, trigger) {
		return true
	}
	if !c.LoadTriggerSchema(ctx) {
		return false
	}
	return c.hasTrigger(table, trigger)
}

// PrimaryKey returns the first primary key column of table, or "" when it has
// none. An unknown table is an InvalidTable error.
func (c *SchemaCache) PrimaryKey(ctx context.Context, table string) (string, error) {
	name, err := sqlgen.ValidIdentifier(table)
	if err != nil {
		return "", err
	}
	if !c.ValidTable(ctx, name) {
		return "", errdefs.NewTableError(name)
	}

	c.mu.RLock()
	pk, ok := c.primaryKeys[name]
	c.mu.RUnlock()
	if ok {
		return pk, nil
	}

	q, err := c.queryer(ctx)
	if err != nil {
		return "", fmt.Errorf("schema cache: %w", err)
	}
	pk, err = c.catalog.PrimaryKey(ctx, q, name)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.primaryKeys[name] = pk
	c.mu.Unlock()
	return pk, nil
}

// Columns returns a copy of the column map of table.
func (c *SchemaCache) Columns(ctx context.Context, table string) (map[string]string, bool) {
	if !c.ValidTable(ctx, table) {
		return nil, false
	}
	table, _ = sqlgen.ValidIdentifier(table)

	c.mu.RLock()
	defer c.mu.RUnlock()
	cols := make(map[string]string, len(c.tables[table]))
	for k, v := range c.tables[table] {
		cols[k] = v
	}
	return cols, true
}

// TableSchema returns a copy of the cached table map.
func (c *SchemaCache) TableSchema() introspect.Columns {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(introspect.Columns, len(c.tables))
	for table, cols := range c.tables {
		m := make(map[string]string, len(cols))
		for k, v := range cols {
			m[k] = v
		}
		out[table] = m
	}
	return out
}

// Tables returns the cached table names, loading them if the cache is empty.
func (c *SchemaCache) Tables(ctx context.Context) []string {
	if c.empty() {
		c.LoadTableSchema(ctx)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tables.Tables()
}

// Invalidate clears the cache. The next lookup reloads it.
func (c *SchemaCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tables = make(introspect.Columns)
	c.triggers = make(introspect.Triggers)
	c.primaryKeys = make(map[string]string)
}

// GetStats returns cache statistics
func (c *SchemaCache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *SchemaCache) empty() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables) == 0
}

func (c *SchemaCache) lookup(table, column string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cols, ok := c.tables[table]
	if ok && column != "" {
		_, ok = cols[column]
	}
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return ok
}

func (c *SchemaCache) hasTrigger(table, trigger string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, name := range c.triggers[table] {
		if name == trigger {
			return true
		}
	}
	return false
}

func (c *SchemaCache) recordFailure() {
	c.mu.Lock()
	c.stats.LoadFailures++
	c.mu.Unlock()
}
