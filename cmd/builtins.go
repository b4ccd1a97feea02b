package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/josephlewis42/rush/core"
	"github.com/spf13/cobra"
)

var builtinsCmd = &cobra.Command{
	Use:   "builtins",
	Short: "Show the builtin commands of the shell.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		var builtins []string
		for name := range core.AllBuiltins {
			builtins = append(builtins, name)
		}
		sort.Strings(builtins)

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		for _, name := range builtins {
			use, short, _ := core.BuiltinHelp(name)
			fmt.Fprintf(tw, "%s\t%s\n", use, short)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(builtinsCmd)
}
