package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dayuer/cacophony-go/internal/config"
)

const pidFileName = "cacophony.pid"

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, ok := runningPID()
		if !ok {
			fmt.Println("cacophony is not running")
			return nil
		}
		fmt.Printf("Stopping cacophony (PID %d)...\n", pid)
		if err := stopProcess(pid, 10*time.Second); err != nil {
			return err
		}
		fmt.Println("Stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
}

// --- PID file helpers ---

func pidFilePath() string {
	return filepath.Join(config.ProfileDir(""), pidFileName)
}

func writePID() error {
	path := pidFilePath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0644)
}

func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePID() {
	os.Remove(pidFilePath())
}

// isRunning checks if a process with the given PID is alive.
func isRunning(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// runningPID returns the PID of a live bot. A stale PID file is removed.
func runningPID() (int, bool) {
	pid, err := readPID()
	if err != nil {
		return 0, false
	}
	if pid == os.Getpid() || !isRunning(pid) {
		removePID()
		return 0, false
	}
	return pid, true
}

// stopProcess sends SIGTERM and waits, then kills the process if it is still
// alive after timeout.
func stopProcess(pid int, timeout time.Duration) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal %d: %w", pid, err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !isRunning(pid) {
			removePID()
			return nil
		}
		time.Sleep(250 * time.Millisecond)
	}

	proc.Signal(syscall.SIGKILL)
	time.Sleep(250 * time.Millisecond)
	removePID()
	return nil
}
