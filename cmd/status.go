package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show cacophony status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := resolvedConfigPath()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "cacophony status")
	fmt.Fprintln(out)
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintf(out, "Config: %s (missing, using defaults)\n", path)
	} else {
		fmt.Fprintf(out, "Config: %s\n", path)
	}
	if cfg.Database.Path == "" {
		fmt.Fprintln(out, "Database: in memory")
	} else {
		fmt.Fprintf(out, "Database: %s\n", cfg.Database.Path)
	}
	fmt.Fprintf(out, "Command prefix: %s\n", cfg.CommandPrefix)
	fmt.Fprintf(out, "Plugins: %s\n", strings.Join(cfg.Plugins, ", "))

	fmt.Fprintln(out, "\nTransports:")
	if cfg.Token != "" {
		fmt.Fprintln(out, "  discord: configured")
	}
	if cfg.WebSocket.Enabled {
		fmt.Fprintf(out, "  websocket: %s\n", cfg.WebSocket.Listen)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "  %v\n", err)
	}

	if pid, ok := runningPID(); ok {
		fmt.Fprintf(out, "\nRunning: PID %d\n", pid)
	} else {
		fmt.Fprintln(out, "\nRunning: no")
	}
	return nil
}
