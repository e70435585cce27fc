package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supergnaw/nestbox/cli/internal/compat"
	"github.com/supergnaw/nestbox/cli/internal/ui"
	"github.com/supergnaw/nestbox/migrate/provision"
	"github.com/supergnaw/nestbox/query/sqlgen"
	"github.com/supergnaw/nestbox/runtime/client"
)

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create the class tables of every bundled module",
	Long: `Create any missing class table of the core, babbler and session
modules. Existing tables are left alone.

With --check nothing is created; missing tables are listed instead.
With --dry-run the CREATE statements for the configured provider are printed
without connecting.`,
	Args: cobra.NoArgs,
	RunE: runProvision,
}

var (
	provisionCheck  bool
	provisionDryRun bool
)

func init() {
	provisionCmd.Flags().BoolVar(&provisionCheck, "check", false, "Only report missing tables")
	provisionCmd.Flags().BoolVar(&provisionDryRun, "dry-run", false, "Print the DDL instead of running it")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	if provisionDryRun {
		script, err := provisionScript(cfg.Provider)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), script)
		return err
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if serverVersion, err := c.ServerVersion(ctx); err == nil {
			warnings, err := compat.Check(c.Provider(), serverVersion)
			if err != nil {
				ui.PrintWarning("%v", err)
			}
			for _, w := range warnings {
				ui.PrintWarning("%s", w)
			}
		}

		if provisionCheck {
			missing := c.Registry().Missing(func(table string) bool {
				return c.ValidTable(ctx, table)
			})
			if len(missing) == 0 {
				ui.PrintSuccess("all class tables exist")
				return nil
			}
			ui.PrintWarning("%d missing table(s):", len(missing))
			ui.PrintList(missing)
			return nil
		}

		spinner, _ := ui.PrintSpinner("provisioning class tables")
		missing, err := c.CheckClassTables(ctx)
		if spinner != nil {
			_ = spinner.Stop()
		}
		if err != nil {
			return err
		}
		if len(missing) == 0 {
			ui.PrintSuccess("all class tables exist")
			return nil
		}
		ui.PrintSuccess("created %d table(s)", len(missing))
		ui.PrintList(missing)
		return nil
	})
}

// provisionScript renders the DDL of the core and bundled modules.
func provisionScript(provider string) (string, error) {
	p, ok := sqlgen.NormalizeProvider(provider)
	if !ok {
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}
	registry := provision.NewRegistry()
	for _, m := range append([]provision.Module{client.CoreModule()}, bundledModules()...) {
		if err := registry.Register(m); err != nil {
			return "", err
		}
	}
	stmts, err := registry.Statements(p)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, stmt := range stmts {
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	return b.String(), nil
}
