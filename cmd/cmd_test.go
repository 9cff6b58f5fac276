package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayuer/cacophony-go/internal/config"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		configPath, verbose = "", false
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestOnboardWritesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")

	out := execute(t, "onboard", "--config", path)
	assert.Contains(t, out, "Created config at "+path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.WebSocket.Enabled)
	assert.NoError(t, cfg.Validate())

	out = execute(t, "onboard", "--config", path)
	assert.Contains(t, out, "Config already exists")
}

func TestPluginsMarksEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := config.DefaultConfig()
	cfg.Plugins = []string{"roulette"}
	require.NoError(t, config.Save(cfg, path))

	out := execute(t, "plugins", "--config", path)
	assert.Contains(t, out, "* roulette\n")
	assert.Contains(t, out, "  reminder\n")
}

func TestSettingsSetThenGet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "bot.db")
	require.NoError(t, config.Save(cfg, path))

	execute(t, "settings", "set", "S", "chattiness", "0.3", "--config", path)
	execute(t, "settings", "set", "S", "muted", "true", "--config", path)

	assert.Equal(t, "chattiness = 0.3\nmuted = true\n", execute(t, "settings", "get", "S", "--config", path))
	assert.Equal(t, "true\n", execute(t, "settings", "get", "S", "muted", "--config", path))
}
