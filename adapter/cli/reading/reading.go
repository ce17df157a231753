package reading

import (
	"github.com/spf13/cobra"
)

// Cmd is the reading command group
var Cmd = &cobra.Command{
	Use:   "reading",
	Short: "Ask for readings and inspect modules",
	Long:  `Ask a module for a reading through the full retry and entitlement path, or list the configured modules.`,
}

func init() {
	Cmd.AddCommand(askCmd)
	Cmd.AddCommand(modulesCmd)
}
