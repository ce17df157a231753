package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/augur/adapter/cli"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show <module> <session>",
	Short: "Show a session's entitlement state",
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
		module, err := app.Readings.Catalog().Get(scope.Module)
		if err != nil {
			return err
		}

		state, err := app.Entitlements.Snapshot(cmd.Context(), scope)
		if err != nil {
			return fmt.Errorf("failed to read ledger: %w", err)
		}

		out := cmd.OutOrStdout()
		if showJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(state)
		}

		fmt.Fprintf(out, "Scope:            %s\n", scope.Key())
		fmt.Fprintf(out, "Messages used:    %d of %d free\n", state.MessageCount, module.FreeLimit)
		fmt.Fprintf(out, "Free remaining:   %d\n", state.FreeMessagesRemaining(module.FreeLimit))
		fmt.Fprintf(out, "Premium:          %t\n", state.IsPremium)
		fmt.Fprintf(out, "Bonus readings:   %d\n", state.BonusConsultations)
		fmt.Fprintf(out, "Spin balance:     %d\n", state.SpinBalance)
		if state.LastFreeSpinDate != "" {
			fmt.Fprintf(out, "Last free spin:   %s\n", state.LastFreeSpinDate)
		}
		if state.Blocked() {
			fmt.Fprintf(out, "Blocked teaser:   %s\n", state.BlockedMessageID)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the state as JSON")
}
