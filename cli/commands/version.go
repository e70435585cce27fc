package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/supergnaw/nestbox/cli/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	// no connection settings needed
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		if versionFull {
			fmt.Fprintln(cmd.OutOrStdout(), info.FullString())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), info.String())
		return nil
	},
}

var versionFull bool

func init() {
	versionCmd.Flags().BoolVar(&versionFull, "full", false, "Include build details")
	rootCmd.AddCommand(versionCmd)
}
