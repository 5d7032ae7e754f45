package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openmined/rclonebox/internal/config"
	"github.com/openmined/rclonebox/internal/daemon/handlers"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/mount"
	"github.com/openmined/rclonebox/internal/rclone"
	"github.com/openmined/rclonebox/internal/remotes"
	"github.com/openmined/rclonebox/internal/scheduler"
	"github.com/openmined/rclonebox/internal/syncjob"
	"github.com/openmined/rclonebox/internal/workspace"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	historyKeep     = 100 // runs kept per task
	probeTimeout    = 15 * time.Second
)

// Daemon owns every long-lived component: the mount and task registries,
// the scheduler, the rclone.conf watcher and the control plane
type Daemon struct {
	config    *config.Config
	workspace *workspace.Workspace
	bus       *events.Bus
	runner    *rclone.Runner
	mounts    *mount.Manager
	tasks     *syncjob.Manager
	history   *syncjob.History
	remotes   *remotes.ConfigManager
	cps       *ControlPlaneServer
	services  *handlers.Services

	stopOnce sync.Once
	stopErr  error
}

// New takes the workspace lock and builds every component. Nothing runs
// until Start.
func New(cfg *config.Config) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ws, err := workspace.NewWorkspace(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, err
	}

	history, err := syncjob.OpenHistory(ws.HistoryFile())
	if err != nil {
		_ = ws.Unlock()
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}

	logger := slog.Default()
	bus := events.NewBus()
	runner := rclone.New(cfg.RclonePath, cfg.RcloneConfigPath, logger)

	probeCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	rcloneVersion := runner.Version(probeCtx)
	rcloneConf := runner.ConfigFile(probeCtx)
	slog.Info("rclone", "path", cfg.RclonePath, "version", rcloneVersion, "config", rcloneConf)

	mounts := mount.NewManager(mount.ManagerOptions{
		RclonePath:       cfg.RclonePath,
		RcloneConfigPath: cfg.RcloneConfigPath,
		CacheDir:         cfg.CacheDir(),
		StorePath:        ws.MountsFile(),
		UnmountOnExit:    cfg.UnmountOnExit,
		Bus:              bus,
		Logger:           logger,
	})

	sched := scheduler.New(scheduler.WithLogger(logger), scheduler.WithBus(bus))
	tasks := syncjob.NewManager(syncjob.ManagerOptions{
		RclonePath:       cfg.RclonePath,
		RcloneConfigPath: cfg.RcloneConfigPath,
		StorePath:        ws.TasksFile(),
		Scheduler:        sched,
		History:          history,
		Bus:              bus,
		Logger:           logger,
	})

	remoteCfg := remotes.NewConfigManager(runner, remotes.Options{
		ConfigPath: rcloneConf,
		Bus:        bus,
		Logger:     logger,
	})

	svc := &handlers.Services{
		Mounts:        mounts,
		Tasks:         tasks,
		Remotes:       remoteCfg,
		Bus:           bus,
		RcloneVersion: rcloneVersion,
		StartedAt:     time.Now(),
	}

	return &Daemon{
		config:    cfg,
		workspace: ws,
		bus:       bus,
		runner:    runner,
		mounts:    mounts,
		tasks:     tasks,
		history:   history,
		remotes:   remoteCfg,
		cps:       NewControlPlaneServer(&cfg.ControlPlane, svc),
		services:  svc,
	}, nil
}

func (d *Daemon) Services() *handlers.Services {
	return d.services
}

// Start loads the registries, starts the background workers and serves the
// control plane until ctx is cancelled
func (d *Daemon) Start(ctx context.Context) error {
	slog.Info("daemon start", "data_dir", d.config.DataDir)

	if err := d.load(ctx); err != nil {
		_ = d.Stop(context.Background())
		return err
	}

	eg, egCtx := errgroup.WithContext(ctx)

	d.tasks.Scheduler().Start(egCtx)
	d.mounts.StartReconciler(egCtx, d.config.ReconcileInterval())

	eg.Go(func() error {
		// a missing rclone.conf dir is not fatal, remotes are still reloaded on our own edits
		if err := d.remotes.Watch(egCtx); err != nil {
			slog.Warn("rclone config watcher stopped", "error", err)
		}
		return nil
	})

	eg.Go(func() error {
		if err := d.cps.Start(egCtx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		return nil
	})

	// Launch goroutine to handle shutdown on context cancellation
	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("received interrupt signal, stopping daemon")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return d.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon failure", "error", err)
		return err
	}

	slog.Info("daemon stopped")
	return nil
}

func (d *Daemon) load(ctx context.Context) error {
	if err := d.mounts.Load(ctx); err != nil {
		return fmt.Errorf("failed to load mounts: %w", err)
	}
	if err := d.tasks.Load(); err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	if err := d.remotes.Refresh(ctx); err != nil {
		// rclone may be missing or misconfigured; the plane still serves mounts and tasks
		slog.Warn("failed to load remotes", "error", err)
	}

	if pruned, err := d.history.Prune(ctx, historyKeep); err != nil {
		slog.Warn("failed to prune run history", "error", err)
	} else if pruned > 0 {
		slog.Info("pruned run history", "runs", humanize.Comma(pruned))
	}

	if d.config.AutoMount {
		res := d.mounts.AutoMountAll()
		slog.Info("auto mount", "started", res.Succeeded, "failed", res.Failed)
	}
	return nil
}

// Stop is idempotent. Running syncs are cancelled; mounts are left running
// unless unmount_on_exit is set.
func (d *Daemon) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		var errs []error
		if err := d.cps.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop control plane: %w", err))
		}

		d.tasks.Shutdown(ctx)
		d.mounts.Shutdown(ctx)

		if err := d.history.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close run history: %w", err))
		}
		d.bus.Close()

		if err := d.workspace.Unlock(); err != nil {
			errs = append(errs, err)
		}
		d.stopErr = errors.Join(errs...)
	})
	return d.stopErr
}
