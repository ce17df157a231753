package prize

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/augur/adapter/cli"
)

var statusCmd = &cobra.Command{
	Use:   "status <module> <session>",
	Short: "Show whether the session can spin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		scope, err := app.Scope(args[0], args[1])
		if err != nil {
			return err
		}

		status, err := app.Prizes.Status(cmd.Context(), scope)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "can spin:       %t\n", status.CanSpin)
		fmt.Fprintf(out, "daily free:     %t\n", status.DailyFreeAvailable)
		fmt.Fprintf(out, "spin balance:   %d\n", status.SpinBalance)
		return nil
	},
}
