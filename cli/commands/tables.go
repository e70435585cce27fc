package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/supergnaw/nestbox/cli/internal/ui"
	"github.com/supergnaw/nestbox/runtime/client"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Rename, truncate or drop tables",
}

var (
	tableRenameCmd = &cobra.Command{
		Use:   "rename <table> <new-name>",
		Short: "Rename a table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if err := c.RenameTable(ctx, args[0], args[1]); err != nil {
					return err
				}
				ui.PrintSuccess("renamed %s to %s", args[0], args[1])
				return nil
			})
		},
	}

	tableTruncateCmd = &cobra.Command{
		Use:   "truncate <table>",
		Short: "Remove every row of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return destructive(cmd, "Remove every row of "+args[0]+"?", func(ctx context.Context, c *client.Client) error {
				return c.TruncateTable(ctx, args[0])
			}, "truncated "+args[0])
		},
	}

	tableDropCmd = &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return destructive(cmd, "Drop "+args[0]+" and all its rows?", func(ctx context.Context, c *client.Client) error {
				return c.DropTable(ctx, args[0])
			}, "dropped "+args[0])
		},
	}
)

var tableYes bool

func init() {
	tableCmd.PersistentFlags().BoolVarP(&tableYes, "yes", "y", false, "Do not ask for confirmation")
	tableCmd.AddCommand(tableRenameCmd, tableTruncateCmd, tableDropCmd)
	rootCmd.AddCommand(tableCmd)
}

func destructive(cmd *cobra.Command, question string, fn func(ctx context.Context, c *client.Client) error, done string) error {
	ok, err := ui.Confirm(question, tableYes)
	if err != nil {
		return err
	}
	if !ok {
		ui.PrintWarning("aborted")
		return nil
	}
	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		if err := fn(ctx, c); err != nil {
			return err
		}
		ui.PrintSuccess("%s", done)
		return nil
	})
}
