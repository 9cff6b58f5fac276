package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dayuer/cacophony-go/internal/settings"
	"github.com/dayuer/cacophony-go/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change per-server settings stored in the database",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <server> [key]",
	Short: "Print stored settings of a server",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(cmd, func(st *settings.Store) error {
			all, err := st.All(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				v, ok := all[args[1]]
				if !ok {
					return fmt.Errorf("%s has no setting %q", args[0], args[1])
				}
				fmt.Fprintln(out, v)
				return nil
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s = %s\n", k, all[k])
			}
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <server> <key> <value>",
	Short: "Store a setting for a server",
	Long:  "Store a setting for a server. Known keys: muted, nickname, chattiness,\nchatty_channels, brain, welcome_message_file.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSettings(cmd, func(st *settings.Store) error {
			return st.Set(cmd.Context(), args[0], args[1], args[2])
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func withSettings(cmd *cobra.Command, fn func(*settings.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path is not set: settings would not persist")
	}
	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := settings.New(cmd.Context(), db)
	if err != nil {
		return err
	}
	return fn(st)
}
