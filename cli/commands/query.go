package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/supergnaw/nestbox/cli/internal/ui"
	"github.com/supergnaw/nestbox/runtime/client"
)

var selectCmd = &cobra.Command{
	Use:   "select <table>",
	Short: "Select rows from a table",
	Example: `  nestbox select babbler_entries --where 'category = "news"' --order created:desc --limit 10
  nestbox select nestbox_settings --json`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

var insertCmd = &cobra.Command{
	Use:   "insert <table>",
	Short: "Insert rows into a table",
	Long: `Insert one row from --set pairs, or every row of a JSON file.

A row whose primary key already exists is updated unless --no-upsert is given.`,
	Example: `  nestbox insert babbler_entries --set category=news --set title=Hello
  nestbox insert babbler_entries --file entries.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInsert,
}

var updateCmd = &cobra.Command{
	Use:     "update <table>",
	Short:   "Update rows of a table",
	Example: `  nestbox update babbler_entries --set is_hidden=1 --where 'entry_id IN (3, 4)'`,
	Args:    cobra.ExactArgs(1),
	RunE:    runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <table>",
	Short:   "Delete rows from a table",
	Example: `  nestbox delete babbler_entries --where 'published IS NULL AND created < "2020-01-01"'`,
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

var (
	queryWhere    string
	queryAll      bool
	queryYes      bool
	querySet      []string
	queryFile     string
	queryNoUpsert bool
	queryOrder    []string
	queryLimit    int
	queryOffset   int
	queryJSON     bool
)

// errNeedsWhere is returned when a write has no --where and no --all.
var errNeedsWhere = errors.New("refusing to touch every row without --all")

func init() {
	selectCmd.Flags().StringVarP(&queryWhere, "where", "w", "", "Filter expression")
	selectCmd.Flags().StringSliceVar(&queryOrder, "order", nil, "Sort column, optionally column:desc")
	selectCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum number of rows")
	selectCmd.Flags().IntVar(&queryOffset, "offset", 0, "Rows to skip")
	selectCmd.Flags().BoolVar(&queryJSON, "json", false, "Print rows as JSON")

	insertCmd.Flags().StringArrayVarP(&querySet, "set", "s", nil, "column=value pair")
	insertCmd.Flags().StringVarP(&queryFile, "file", "f", "", "JSON file with a row or an array of rows")
	insertCmd.Flags().BoolVar(&queryNoUpsert, "no-upsert", false, "Fail on duplicate keys instead of updating")

	updateCmd.Flags().StringArrayVarP(&querySet, "set", "s", nil, "column=value pair")
	updateCmd.Flags().StringVarP(&queryWhere, "where", "w", "", "Filter expression")
	updateCmd.Flags().BoolVar(&queryAll, "all", false, "Update every row when no filter is given")
	updateCmd.Flags().BoolVarP(&queryYes, "yes", "y", false, "Do not ask for confirmation")
	_ = updateCmd.MarkFlagRequired("set")

	deleteCmd.Flags().StringVarP(&queryWhere, "where", "w", "", "Filter expression")
	deleteCmd.Flags().BoolVar(&queryAll, "all", false, "Delete every row when no filter is given")
	deleteCmd.Flags().BoolVarP(&queryYes, "yes", "y", false, "Do not ask for confirmation")

	rootCmd.AddCommand(selectCmd, insertCmd, updateCmd, deleteCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	where, opts, err := whereOptions(queryWhere)
	if err != nil {
		return err
	}
	for _, spec := range queryOrder {
		opts = append(opts, client.OrderBy(parseOrder(spec)))
	}
	if queryLimit > 0 {
		opts = append(opts, client.Limit(queryLimit, queryOffset))
	}

	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		rows, err := c.SelectWhere(ctx, args[0], where, opts...)
		if err != nil {
			return err
		}
		if queryJSON {
			return ui.WriteJSON(cmd.OutOrStdout(), rows)
		}
		return ui.PrintRows(plainRows(rows))
	})
}

func runInsert(cmd *cobra.Command, args []string) error {
	var rows []client.Row
	switch {
	case queryFile != "":
		var err error
		if rows, err = readRows(queryFile); err != nil {
			return err
		}
	case len(querySet) > 0:
		row, err := parseAssignments(querySet)
		if err != nil {
			return err
		}
		rows = []client.Row{row}
	default:
		return errors.New("nothing to insert: use --set or --file")
	}

	var opts []client.QueryOption
	if queryNoUpsert {
		opts = append(opts, client.NoUpsert())
	}

	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		var affected int64
		var err error
		if len(rows) == 1 {
			affected, err = c.Insert(ctx, args[0], rows[0], opts...)
		} else {
			affected, err = c.InsertRows(ctx, args[0], rows, opts...)
		}
		if err != nil {
			return err
		}
		ui.PrintSuccess("%d row(s) affected", affected)
		if id := c.LastInsertID(); id != 0 && len(rows) == 1 {
			ui.PrintInfo("last insert id: %d", id)
		}
		return nil
	})
}

func runUpdate(cmd *cobra.Command, args []string) error {
	set, err := parseAssignments(querySet)
	if err != nil {
		return err
	}
	where, opts, err := whereOptions(queryWhere)
	if err != nil {
		return err
	}
	if ok, err := confirmAll(len(where) == 0, "Update every row of "+args[0]+"?"); err != nil || !ok {
		return err
	}
	if len(where) == 0 {
		opts = append(opts, client.AllRows())
	}

	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		affected, err := c.UpdateWhere(ctx, args[0], set, where, opts...)
		if err != nil {
			return err
		}
		ui.PrintSuccess("%d row(s) updated", affected)
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	where, opts, err := whereOptions(queryWhere)
	if err != nil {
		return err
	}
	if ok, err := confirmAll(len(where) == 0, "Delete every row of "+args[0]+"?"); err != nil || !ok {
		return err
	}
	if len(where) == 0 {
		opts = append(opts, client.AllRows())
	}

	return withClient(cmd, func(ctx context.Context, c *client.Client) error {
		affected, err := c.DeleteWhere(ctx, args[0], where, opts...)
		if err != nil {
			return err
		}
		ui.PrintSuccess("%d row(s) deleted", affected)
		return nil
	})
}

// confirmAll guards writes without a filter. It requires --all and then asks
// unless --yes was given. A declined prompt returns false and no error.
func confirmAll(unfiltered bool, question string) (bool, error) {
	if !unfiltered {
		return true, nil
	}
	if !queryAll {
		return false, errNeedsWhere
	}
	ok, err := ui.Confirm(question, queryYes)
	if err != nil {
		return false, err
	}
	if !ok {
		ui.PrintWarning("aborted")
	}
	return ok, nil
}
