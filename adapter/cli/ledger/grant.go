package ledger

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/augur/adapter/cli"
	"github.com/felixgeelhaar/augur/internal/entitlement/domain"
)

var (
	grantPremium bool
	grantBonus   int
	grantSpins   int
)

var grantCmd = &cobra.Command{
	Use:   "grant <module> <session>",
	Short: "Grant premium access, bonus readings or spins",
	Long: `Grant entitlements to a module session. Premium and bonus grants
clear a pending teaser block, the same way a payment or prize does.

Examples:
  augur ledger grant dreams s1 --premium
  augur ledger grant love s2 --bonus 2
  augur ledger grant zodiac s3 --spins 1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !grantPremium && grantBonus == 0 && grantSpins == 0 {
			return errors.New("nothing to grant: use --premium, --bonus or --spins")
		}
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}
		scope, err := app.Scope(args[0], args[1])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()
		if grantPremium {
			changed, err := app.Entitlements.GrantPremium(ctx, scope, domain.SourceManual)
			if err != nil {
				return fmt.Errorf("failed to grant premium: %w", err)
			}
			if changed {
				fmt.Fprintln(out, "premium granted")
			} else {
				fmt.Fprintln(out, "already premium")
			}
		}
		if grantBonus != 0 {
			if err := app.Entitlements.GrantBonus(ctx, scope, grantBonus, domain.SourceManual); err != nil {
				return fmt.Errorf("failed to grant bonus: %w", err)
			}
			fmt.Fprintf(out, "granted %d bonus readings\n", grantBonus)
		}
		if grantSpins != 0 {
			if err := app.Entitlements.GrantSpins(ctx, scope, grantSpins, domain.SourceManual); err != nil {
				return fmt.Errorf("failed to grant spins: %w", err)
			}
			fmt.Fprintf(out, "granted %d spins\n", grantSpins)
		}
		return nil
	},
}

func init() {
	grantCmd.Flags().BoolVar(&grantPremium, "premium", false, "grant premium access")
	grantCmd.Flags().IntVar(&grantBonus, "bonus", 0, "bonus readings to add")
	grantCmd.Flags().IntVar(&grantSpins, "spins", 0, "spins to add")
}
