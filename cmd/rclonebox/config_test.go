package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openmined/rclonebox/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RCLONEBOX_CONFIG_PATH",
		"RCLONEBOX_URL",
		"RCLONEBOX_DATA_DIR",
		"RCLONEBOX_RCLONE_PATH",
		"RCLONEBOX_CONTROL_PLANE_ADDR",
		"RCLONEBOX_CONTROL_PLANE_TOKEN",
		"RCLONEBOX_AUTO_MOUNT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

// configCmd mimics a subcommand that carries the root --config flag plus
// the daemon overrides.
func configCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", config.DefaultConfigPath, "")
	cmd.Flags().String("http-addr", "", "")
	cmd.Flags().Bool("auto-mount", false, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "missing.json")

	cfg, err := loadConfig(configCmd(t, "--config", path))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, config.DefaultControlPlaneAddr, cfg.ControlPlane.Addr)
	assert.Equal(t, config.DefaultRclonePath, cfg.RclonePath)
	assert.False(t, cfg.AutoMount)
}

func TestLoadConfigFileEnvAndFlags(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	dataDir := filepath.Join(dir, "data")

	require.NoError(t, os.WriteFile(path, []byte(`{
		"data_dir": "`+filepath.ToSlash(dataDir)+`",
		"auto_mount": true,
		"control_plane": {"addr": "localhost:9000", "token": "from-file"}
	}`), 0o644))

	t.Run("file", func(t *testing.T) {
		cfg, err := loadConfig(configCmd(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, dataDir, cfg.DataDir)
		assert.True(t, cfg.AutoMount)
		assert.Equal(t, "localhost:9000", cfg.ControlPlane.Addr)
		assert.Equal(t, "from-file", cfg.ControlPlane.Token)
	})

	t.Run("env beats file", func(t *testing.T) {
		t.Setenv("RCLONEBOX_CONTROL_PLANE_ADDR", "localhost:9100")
		cfg, err := loadConfig(configCmd(t, "--config", path))
		require.NoError(t, err)
		assert.Equal(t, "localhost:9100", cfg.ControlPlane.Addr)
		assert.Equal(t, "from-file", cfg.ControlPlane.Token)
	})

	t.Run("flag beats env", func(t *testing.T) {
		t.Setenv("RCLONEBOX_CONTROL_PLANE_ADDR", "localhost:9100")
		cfg, err := loadConfig(configCmd(t, "--config", path, "--http-addr", "127.0.0.1:9200"))
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9200", cfg.ControlPlane.Addr)
	})

	t.Run("config path from env", func(t *testing.T) {
		t.Setenv("RCLONEBOX_CONFIG_PATH", path)
		cfg, err := loadConfig(configCmd(t))
		require.NoError(t, err)
		assert.Equal(t, path, cfg.Path)
		assert.Equal(t, "from-file", cfg.ControlPlane.Token)
	})
}

func TestLoadConfigInvalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cache_dir_mode": "elsewhere"}`), 0o644))

	_, err := loadConfig(configCmd(t, "--config", path))
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := loadConfig(configCmd(t, "--config", path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config read")
}
