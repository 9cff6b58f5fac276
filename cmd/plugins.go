package cmd

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/dayuer/cacophony-go/internal/plugins/all"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the plugins this build knows about",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, name := range all.Catalog().Names() {
			mark := " "
			if slices.Contains(cfg.Plugins, name) {
				mark = "*"
			}
			fmt.Fprintf(out, "%s %s\n", mark, name)
		}
		fmt.Fprintln(out, "\n* enabled in config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
