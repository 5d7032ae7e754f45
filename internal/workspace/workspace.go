package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/rclonebox/internal/utils"
)

const (
	configDir = "config"
	logsDir   = "logs"
	cacheDir  = "cache"
	stateDir  = "state"
	lockFile  = "rclonebox.lock"

	mountsFile  = "mounts.json"
	tasksFile   = "sync_tasks.json"
	historyFile = "history.db"
)

var (
	ErrWorkspaceLocked = errors.New("workspace locked by another process")
)

// Workspace is the on-disk layout owned by a single daemon instance.
// Only one daemon may hold the lock, since two instances reconciling the
// same mount registry would fight over the same rclone processes.
type Workspace struct {
	Root      string
	ConfigDir string
	LogsDir   string
	CacheDir  string
	StateDir  string

	flock *flock.Flock
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	return &Workspace{
		Root:      root,
		ConfigDir: filepath.Join(root, configDir),
		LogsDir:   filepath.Join(root, logsDir),
		CacheDir:  filepath.Join(root, cacheDir),
		StateDir:  filepath.Join(root, stateDir),
		flock:     flock.New(filepath.Join(root, stateDir, lockFile)),
	}, nil
}

func (w *Workspace) MountsFile() string  { return filepath.Join(w.ConfigDir, mountsFile) }
func (w *Workspace) TasksFile() string   { return filepath.Join(w.ConfigDir, tasksFile) }
func (w *Workspace) HistoryFile() string { return filepath.Join(w.StateDir, historyFile) }

func (w *Workspace) Lock() error {
	if err := utils.EnsureDir(w.StateDir); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", w.StateDir, err)
	}

	locked, err := w.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to lock workspace: %w", err)
	}
	if !locked {
		return ErrWorkspaceLocked
	}

	return nil
}

func (w *Workspace) Unlock() error {
	// never remove a lock file held by another process
	if !w.flock.Locked() {
		return nil
	}

	if err := w.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock workspace: %w", err)
	}

	return os.Remove(w.flock.Path())
}

// Setup takes the instance lock and creates the directory layout
func (w *Workspace) Setup() error {
	if err := w.Lock(); err != nil {
		return err
	}

	for _, dir := range []string{w.ConfigDir, w.LogsDir, w.CacheDir, w.StateDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	slog.Info("workspace", "root", w.Root)
	return nil
}
