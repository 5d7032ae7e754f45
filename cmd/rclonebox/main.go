package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/rclonebox/internal/config"
	"github.com/openmined/rclonebox/internal/utils"
	"github.com/openmined/rclonebox/internal/version"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "rclonebox",
		Short:         "Manage rclone mounts and scheduled syncs",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "RcloneBox config file")
	rootCmd.PersistentFlags().String("url", "", "Control plane URL (default: from config)")
	rootCmd.PersistentFlags().String("token", "", "Control plane token (default: from config)")

	rootCmd.AddCommand(
		newDaemonCmd(),
		newVersionCmd(),
		newStatusCmd(),
		newMountCmd(),
		newTaskCmd(),
		newRemoteCmd(),
		newWatchCmd(),
	)
	return rootCmd
}

func main() {
	logFile := config.DefaultLogFilePath

	// Create log directory
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	// client commands share the file with a running daemon, so append
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	// Setup handlers for both outputs
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel(),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// Do not include time as it is added by the log interceptor.
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler))
	slog.SetDefault(logger)

	// Setup root context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", red.Render("ERROR"), err)
		stop()
		file.Close()
		os.Exit(1)
	}
}

// logLevel reads RCLONEBOX_LOG_LEVEL for the console handler; the log file
// always records debug
func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("RCLONEBOX_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}
