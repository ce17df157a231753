package prize

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/augur/adapter/cli"
	"github.com/felixgeelhaar/augur/internal/prize/domain"
	reading "github.com/felixgeelhaar/augur/internal/reading/domain"
)

var spinCmd = &cobra.Command{
	Use:   "spin <module> <session>",
	Short: "Spin the wheel and apply the prize",
	Long: `Spin the module's prize wheel. The daily free spin is used first, then
the spin balance. The prize is applied to the ledger before it is shown.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		scope, err := app.Scope(args[0], args[1])
		if err != nil {
			return err
		}

		result, err := app.Prizes.Spin(cmd.Context(), scope)
		if err != nil {
			return fmt.Errorf("%s: %w", reading.Classify(err), err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s spin)\n", result.Prize.Label, result.Source)
		switch result.Prize.Kind {
		case domain.KindPremium:
			fmt.Fprintln(out, "premium access unlocked")
		case domain.KindBonus:
			fmt.Fprintf(out, "bonus readings: %d\n", result.State.BonusConsultations)
		}
		return nil
	},
}
