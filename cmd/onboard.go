package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dayuer/cacophony-go/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default configuration file",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Config already exists at %s\n", path)
		return nil
	}

	cfg := config.DefaultConfig()
	cfg.WebSocket.Enabled = true
	if err := config.Save(cfg, path); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}
	fmt.Fprintf(out, "Created config at %s\n", path)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Set token (or %sTOKEN) to connect to Discord\n", config.EnvPrefix)
	fmt.Fprintln(out, "  2. Start the bot: cacophony run")
	return nil
}
