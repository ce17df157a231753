package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/augur/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the ledger, lock and broker connections",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := RequireApp()
		if err != nil {
			return err
		}

		result := app.Health.Check(cmd.Context())
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, result.Status)
		for _, name := range slices.Sorted(maps.Keys(result.Checks)) {
			check := result.Checks[name]
			line := fmt.Sprintf("  %-8s %s", name, check.Status)
			if check.Message != "" {
				line += " (" + check.Message + ")"
			}
			fmt.Fprintln(out, line)
		}
		if result.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
