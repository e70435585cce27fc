// Package client provides the quick-query façade over the schema cache, the
// compiler and the executor.
package client

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/supergnaw/nestbox/database"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/migrate/introspect"
	"github.com/supergnaw/nestbox/migrate/provision"
	"github.com/supergnaw/nestbox/query/cache"
	"github.com/supergnaw/nestbox/query/compiler"
	"github.com/supergnaw/nestbox/query/executor"
	"github.com/supergnaw/nestbox/query/sqlgen"
)

// Row is a flat mapping of column name to scalar value.
type Row = sqlgen.Row

// Params maps placeholder names to values.
type Params = sqlgen.Params

// Client is the main database client. One client wraps one session and is
// not safe for concurrent use; give each worker its own.
type Client struct {
	session    *database.Session
	catalog    introspect.Catalog
	schema     *cache.SchemaCache
	compiler   *compiler.Compiler
	exec       *executor.Executor
	registry   *provision.Registry
	extensions *ExtensionChain
	stats      *statsRecorder
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	modules     []provision.Module
	middlewares []executor.Middleware
	extensions  []Extension
	logger      *slog.Logger
}

// WithModules registers modules whose tables are provisioned on first use.
func WithModules(modules ...provision.Module) Option {
	return func(c *clientConfig) {
		c.modules = append(c.modules, modules...)
	}
}

// WithMiddleware adds statement middleware to the executor.
func WithMiddleware(middlewares ...executor.Middleware) Option {
	return func(c *clientConfig) {
		c.middlewares = append(c.middlewares, middlewares...)
	}
}

// WithExtension adds operation hooks to the façade.
func WithExtension(extensions ...Extension) Option {
	return func(c *clientConfig) {
		c.extensions = append(c.extensions, extensions...)
	}
}

// WithLogger sets the client logger and logs every façade operation to it
// at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithErrorHandler reports every failed façade operation to onError.
func WithErrorHandler(onError func(op *Operation)) Option {
	return func(c *clientConfig) {
		c.extensions = append(c.extensions, ErrorHandlingExtension(onError))
	}
}

// Open connects to the configured database and creates a client on it.
func Open(ctx context.Context, cfg database.Config, opts ...Option) (*Client, error) {
	session, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := New(ctx, session, opts...)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return c, nil
}

// New creates a client on an existing session.
func New(ctx context.Context, session *database.Session, opts ...Option) (*Client, error) {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	catalog, err := introspect.NewCatalog(session.Provider(), session.Config().Database)
	if err != nil {
		return nil, err
	}

	queryer := func(ctx context.Context) (introspect.Queryer, error) {
		return session.Runner(ctx)
	}
	schema := cache.NewSchemaCache(catalog, queryer)

	registry := provision.NewRegistry()
	if err := registry.Register(CoreModule()); err != nil {
		return nil, err
	}
	for _, m := range cfg.modules {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register module: %w", err)
		}
	}

	c := &Client{
		session:    session,
		catalog:    catalog,
		schema:     schema,
		compiler:   compiler.NewCompiler(schema, newGenerator(ctx, session, catalog)),
		exec:       executor.NewExecutor(session, schema, registry),
		registry:   registry,
		extensions: NewExtensionChain(),
		stats:      newStatsRecorder(),
		logger:     debug.With("component", "client", "provider", session.Provider()),
	}
	for _, mw := range cfg.middlewares {
		c.exec.Use(mw)
	}
	c.extensions.Add(TimingExtension(c.stats.record))
	if cfg.logger != nil {
		c.logger = cfg.logger
		c.extensions.Add(LoggingExtension(cfg.logger))
	}
	for _, ext := range cfg.extensions {
		c.extensions.Add(ext)
	}
	return c, nil
}

// newGenerator picks the dialect generator. MySQL needs the server version to
// choose its upsert syntax.
func newGenerator(ctx context.Context, session *database.Session, catalog introspect.Catalog) sqlgen.Generator {
	if session.Provider() != sqlgen.MySQL {
		return sqlgen.NewGenerator(session.Provider())
	}
	var serverVersion string
	if runner, err := session.Runner(ctx); err == nil {
		if serverVersion, err = catalog.ServerVersion(ctx, runner); err != nil {
			debug.Warn("failed to read server version", "error", err)
		}
	}
	return sqlgen.NewMySQLGenerator(serverVersion)
}

// QuoteIdentifier quotes a validated identifier for the session dialect, for
// use in hand-written statements.
func (c *Client) QuoteIdentifier(name string) string {
	return c.compiler.Generator().QuoteIdentifier(name)
}

// Close closes the session.
func (c *Client) Close() error {
	c.schema.Invalidate()
	return c.session.Close()
}

// Provider returns the normalized provider name.
func (c *Client) Provider() string {
	return c.session.Provider()
}

// Session returns the underlying session.
func (c *Client) Session() *database.Session {
	return c.session
}

// Registry returns the module registry.
func (c *Client) Registry() *provision.Registry {
	return c.registry
}

// Use adds a statement middleware.
func (c *Client) Use(middleware executor.Middleware) {
	c.exec.Use(middleware)
}

// Extend adds an operation extension.
func (c *Client) Extend(ext Extension) {
	c.extensions.Add(ext)
}

// IsAlive pings the database.
func (c *Client) IsAlive(ctx context.Context) bool {
	return c.session.IsAlive(ctx)
}

// Exec runs a hand-written statement with named placeholders.
func (c *Client) Exec(ctx context.Context, query string, params Params, opts ...executor.Option) (*executor.Result, error) {
	return c.exec.Exec(ctx, query, params, opts...)
}

// Query runs a hand-written statement and returns its rows.
func (c *Client) Query(ctx context.Context, query string, params Params, opts ...executor.Option) ([]Row, error) {
	res, err := c.exec.Query(ctx, query, params, opts...)
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// RowCount returns the rows affected or returned by the last statement.
func (c *Client) RowCount() int64 {
	return c.exec.RowCount()
}

// LastInsertID returns the most recent auto-increment id.
func (c *Client) LastInsertID() int64 {
	return c.exec.LastInsertID()
}
