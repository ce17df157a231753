package ledger

import (
	"github.com/spf13/cobra"
)

// Cmd is the ledger command group
var Cmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect and adjust session entitlements",
	Long:  `Show the entitlement ledger of a module session or grant premium access, bonus consultations and spins.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(grantCmd)
}
