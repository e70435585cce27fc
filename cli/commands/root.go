// Package commands implements the nestbox command tree.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/supergnaw/nestbox/babbler"
	"github.com/supergnaw/nestbox/cli/internal/config"
	"github.com/supergnaw/nestbox/cli/internal/ui"
	"github.com/supergnaw/nestbox/internal/debug"
	"github.com/supergnaw/nestbox/migrate/provision"
	"github.com/supergnaw/nestbox/runtime/client"
	"github.com/supergnaw/nestbox/runtime/session"
)

var rootCmd = &cobra.Command{
	Use:   "nestbox",
	Short: "Schema-aware quick queries from the command line",
	Long: `nestbox runs validated insert, update, delete and select statements
against MySQL, PostgreSQL or SQLite without declaring a schema first.

Connection settings come from flags, NESTBOX_DB_* environment variables,
.env and .env.local files, or .nestbox.yaml.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

var (
	v   *viper.Viper
	cfg *config.Config

	jsonLogs  bool
	showStats bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("provider", "", "Database provider: mysql, postgres or sqlite")
	flags.String("dsn", "", "Driver connection string; overrides the other connection flags")
	flags.String("host", "", "Database host")
	flags.Int("port", 0, "Database port")
	flags.String("user", "", "Database user")
	flags.String("database", "", "Database name, or file path for sqlite")
	flags.BoolP("verbose", "v", false, "Log every statement")
	flags.BoolVar(&jsonLogs, "log-json", false, "Write logs as JSON")
	flags.BoolVar(&showStats, "stats", false, "Print per-operation timings when the command ends")
}

// Execute is the main entry point for the CLI
func Execute() error {
	return rootCmd.Execute()
}

func loadSettings(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var err error
	if v, err = config.New(); err != nil {
		return err
	}
	flags := cmd.Flags()
	for key, flag := range map[string]string{
		"provider": "provider",
		"dsn":      "dsn",
		"host":     "host",
		"port":     "port",
		"user":     "user",
		"name":     "database",
		"verbose":  "verbose",
	} {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}

	if cfg, err = config.Load(v); err != nil {
		return err
	}

	level := "warn"
	if cfg.Verbose {
		level = "debug"
	}
	debug.Configure(debug.Options{Level: level, JSON: jsonLogs, Writer: cmd.ErrOrStderr()})
	return nil
}

// bundledModules are the modules shipped with nestbox besides the core one.
func bundledModules() []provision.Module {
	return []provision.Module{babbler.Module(), session.Module()}
}

// openClient connects with the loaded settings. Every bundled module is
// registered so its tables can be provisioned.
func openClient(ctx context.Context) (*client.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	opts := []client.Option{client.WithModules(bundledModules()...)}
	if cfg.Verbose {
		opts = append(opts, client.WithLogger(debug.With("component", "cli")))
	}
	return client.Open(ctx, cfg.Database(), opts...)
}

// withClient opens a client, runs fn and closes the client.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *client.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := fn(ctx, c); err != nil {
		return err
	}
	if showStats {
		return printStats(c.Stats())
	}
	return nil
}

func printStats(stats map[string]client.OperationStats) error {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, len(names))
	for i, name := range names {
		s := stats[name]
		rows[i] = []string{name, strconv.FormatInt(s.Count, 10), strconv.FormatInt(s.Failures, 10), s.Total.String(), s.Average().String()}
	}
	return ui.PrintTable([]string{"operation", "calls", "failures", "total", "average"}, rows)
}
