package reading

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/augur/adapter/cli"
)

var modulesCmd = &cobra.Command{
	Use:     "modules",
	Short:   "List reading modules",
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := cli.RequireApp()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MODULE\tTITLE\tFREE\tPOLICY\tBACKENDS")
		for _, m := range app.Readings.Catalog().All() {
			models := make([]string, len(m.Backends))
			for i, b := range m.Backends {
				models[i] = b.Model
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", m.Name, m.Title, m.FreeLimit, m.Policy, strings.Join(models, ","))
		}
		return w.Flush()
	},
}
