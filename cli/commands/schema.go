package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supergnaw/nestbox/cli/internal/ui"
	"github.com/supergnaw/nestbox/errdefs"
	"github.com/supergnaw/nestbox/runtime/client"
)

var schemaCmd = &cobra.Command{
	Use:     "schema [table...]",
	Aliases: []string{"describe"},
	Short:   "Describe tables, columns and triggers",
	Args:    cobra.ArbitraryArgs,
	RunE:    runSchema,
}

var schemaMarkdown bool

func init() {
	schemaCmd.Flags().BoolVar(&schemaMarkdown, "markdown", false, "Render the description as markdown")
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		tables := args
		if len(tables) == 0 {
			tables = c.Tables(ctx)
		}
		if len(tables) == 0 {
			ui.PrintInfo("no tables")
			return nil
		}

		schema := c.TableSchema()
		var md strings.Builder
		for _, table := range tables {
			columns, ok := schema[table]
			if !ok {
				return errdefs.NewTableError(table)
			}
			pk, _ := c.TablePrimaryKey(ctx, table)

			names := make([]string, 0, len(columns))
			for name := range columns {
				names = append(names, name)
			}
			sort.Strings(names)

			rows := make([][]string, 0, len(names))
			fmt.Fprintf(&md, "## %s\n\n| column | type | key |\n|---|---|---|\n", table)
			for _, name := range names {
				key := ""
				if name == pk {
					key = "PRI"
				}
				rows = append(rows, []string{name, columns[name], key})
				fmt.Fprintf(&md, "| %s | %s | %s |\n", name, columns[name], key)
			}
			md.WriteString("\n")

			if schemaMarkdown {
				continue
			}
			ui.PrintHeader(table, fmt.Sprintf("%d columns", len(names)))
			if err := ui.PrintTable([]string{"column", "type", "key"}, rows); err != nil {
				return err
			}
		}

		if schemaMarkdown {
			return ui.PrintMarkdown(md.String())
		}
		return nil
	})
}
