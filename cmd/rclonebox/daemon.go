package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openmined/rclonebox/internal/config"
	"github.com/openmined/rclonebox/internal/daemon"
	"github.com/openmined/rclonebox/internal/version"
	"github.com/spf13/cobra"
)

func newDaemonCmd() *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Start the RcloneBox daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			slog.Info("rclonebox", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)
			slog.Info("daemon using config", "path", cfg.Path, "data_dir", cfg.DataDir)

			d, err := daemon.New(cfg)
			if err != nil {
				return err
			}

			defer slog.Info("Bye!")
			if err := d.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon start", "error", err)
				return err
			}
			return nil
		},
	}

	daemonCmd.Flags().SortFlags = false
	daemonCmd.Flags().StringP("data-dir", "d", config.DefaultDataDir, "RcloneBox data directory")
	daemonCmd.Flags().String("rclone", config.DefaultRclonePath, "Path to the rclone binary")
	daemonCmd.Flags().String("rclone-cfg", "", "Path to rclone.conf (default: rclone's own)")
	daemonCmd.Flags().StringP("http-addr", "a", config.DefaultControlPlaneAddr, "Address to bind the control plane")
	daemonCmd.Flags().StringP("http-token", "t", "", "Access token for the control plane")
	daemonCmd.Flags().Bool("auto-mount", false, "Start auto-mount mounts on startup")

	return daemonCmd
}
