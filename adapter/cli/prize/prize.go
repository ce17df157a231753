package prize

import (
	"github.com/spf13/cobra"
)

// Cmd is the prize wheel command group
var Cmd = &cobra.Command{
	Use:   "prize",
	Short: "Spin the prize wheel",
	Long:  `Check spin availability and spin a module's prize wheel for a session.`,
}

func init() {
	Cmd.AddCommand(statusCmd)
	Cmd.AddCommand(spinCmd)
}
