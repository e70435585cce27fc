package main

import (
	"os"

	"github.com/supergnaw/nestbox/cli/commands"
	"github.com/supergnaw/nestbox/cli/internal/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.PrintError("%v", err)
		os.Exit(1)
	}
}
