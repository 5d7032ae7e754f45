package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/openmined/rclonebox/internal/config"
	"github.com/openmined/rclonebox/internal/cpsdk"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "RCLONEBOX"

// flag name -> config key, bound when the command defines the flag
var flagBindings = map[string]string{
	"data-dir":   "data_dir",
	"rclone":     "rclone_path",
	"rclone-cfg": "rclone_config_path",
	"http-addr":  "control_plane.addr",
	"http-token": "control_plane.token",
	"auto-mount": "auto_mount",
}

// loadConfig merges, in increasing priority: defaults, the config file,
// RCLONEBOX_* environment (a .env in the working dir included) and flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring .env", "error", err)
	}

	configPath := config.DefaultConfigPath
	if f := cmd.Flag("config"); f != nil && f.Changed {
		configPath = f.Value.String()
	} else if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	defaults := config.Default()
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("rclone_path", defaults.RclonePath)
	v.SetDefault("rclone_config_path", defaults.RcloneConfigPath)
	v.SetDefault("cache_dir_mode", string(defaults.CacheDirMode))
	v.SetDefault("cache_dir", defaults.CacheDirPath)
	v.SetDefault("auto_mount", defaults.AutoMount)
	v.SetDefault("unmount_on_exit", defaults.UnmountOnExit)
	v.SetDefault("reconcile_seconds", defaults.ReconcileSeconds)
	v.SetDefault("control_plane.addr", defaults.ControlPlane.Addr)
	v.SetDefault("control_plane.token", defaults.ControlPlane.Token)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	// Bind flags to viper
	for flag, key := range flagBindings {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	// Set up environment variables
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := config.Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	cfg.Path = configPath

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newClient builds a control plane client. --url and --token win over the
// RCLONEBOX_URL env and the config file.
func newClient(cmd *cobra.Command) (*cpsdk.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	url, _ := cmd.Flags().GetString("url")
	if url == "" {
		url = os.Getenv(envPrefix + "_URL")
	}
	if url == "" {
		url = "http://" + cfg.ControlPlane.Addr
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = cfg.ControlPlane.Token
	}

	return cpsdk.New(url, token)
}
