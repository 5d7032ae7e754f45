package remotes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/openmined/rclonebox/internal/events"
	"github.com/openmined/rclonebox/internal/rclone"
	"github.com/openmined/rclonebox/internal/utils"
)

var (
	ErrRemoteNotFound = errors.New("remote not found")
	ErrRemoteExists   = errors.New("remote already exists")
)

const (
	DefaultAboutTTL = 60 * time.Second
	aboutCacheSize  = 128
)

// Commander is the subset of rclone.Runner the config manager drives
type Commander interface {
	ConfigDump(ctx context.Context) (map[string]map[string]string, error)
	ConfigCreate(ctx context.Context, name, remoteType string, opts map[string]string) (*rclone.Result, error)
	ConfigUpdate(ctx context.Context, name string, opts map[string]string) (*rclone.Result, error)
	ConfigDelete(ctx context.Context, name string) (*rclone.Result, error)
	Check(ctx context.Context, remote string) *rclone.Result
	About(ctx context.Context, remote string) (*rclone.AboutInfo, error)
}

type Options struct {
	// ConfigPath is the rclone.conf to watch; empty disables Watch
	ConfigPath string
	AboutTTL   time.Duration
	Bus        *events.Bus
	Logger     *slog.Logger
}

// ConfigManager caches the remotes of rclone.conf and applies edits through rclone
type ConfigManager struct {
	cmd     Commander
	opts    Options
	logger  *slog.Logger
	remotes map[string]*Remote
	loaded  bool
	about   *expirable.LRU[string, *rclone.AboutInfo]
	mu      sync.RWMutex

	// own edits rewrite rclone.conf; the watcher skips events until this time
	quietUntil time.Time
	quietMu    sync.Mutex
}

func NewConfigManager(cmd Commander, opts Options) *ConfigManager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.AboutTTL <= 0 {
		opts.AboutTTL = DefaultAboutTTL
	}
	return &ConfigManager{
		cmd:     cmd,
		opts:    opts,
		logger:  opts.Logger.With("component", "remotes"),
		remotes: make(map[string]*Remote),
		about:   expirable.NewLRU[string, *rclone.AboutInfo](aboutCacheSize, nil, opts.AboutTTL),
	}
}

// Refresh reloads the cache from `rclone config dump`. Sections that fail
// validation are skipped.
func (c *ConfigManager) Refresh(ctx context.Context) error {
	dump, err := c.cmd.ConfigDump(ctx)
	if err != nil {
		c.logger.Error("config dump", "error", err)
		return fmt.Errorf("load remotes: %w", err)
	}

	loaded := make(map[string]*Remote, len(dump))
	for name, section := range dump {
		r, err := fromDump(name, section)
		if err != nil {
			c.logger.Warn("skipping remote", "name", name, "error", err)
			continue
		}
		loaded[name] = r
	}

	c.mu.Lock()
	c.remotes = loaded
	c.loaded = true
	c.mu.Unlock()

	c.logger.Debug("remotes loaded", "count", len(loaded))
	return nil
}

func (c *ConfigManager) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.Refresh(ctx)
}

// List returns copies sorted by name
func (c *ConfigManager) List(ctx context.Context) ([]*Remote, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Remote, 0, len(c.remotes))
	for _, r := range c.remotes {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b *Remote) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out, nil
}

func (c *ConfigManager) Names(ctx context.Context) []string {
	list, err := c.List(ctx)
	if err != nil {
		return []string{}
	}
	names := make([]string, 0, len(list))
	for _, r := range list {
		names = append(names, r.Name)
	}
	return names
}

func (c *ConfigManager) Get(ctx context.Context, name string) (*Remote, error) {
	if err := c.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.remotes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRemoteNotFound, name)
	}
	return r.Clone(), nil
}

// Add creates a remote with `rclone config create`
func (c *ConfigManager) Add(ctx context.Context, name, remoteType string, opts map[string]string) (*Remote, error) {
	r, err := NewRemote(name, remoteType, opts)
	if err != nil {
		return nil, err
	}
	if _, err := c.Get(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRemoteExists, name)
	}

	c.logger.Info("add remote", "name", name, "type", r.Type, "options", utils.MaskOptions(r.Config))
	c.quiet()
	res, err := c.cmd.ConfigCreate(ctx, r.Name, r.Type, r.Config)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	return c.changed(ctx, name)
}

// Update sets options on an existing remote with `rclone config update`
func (c *ConfigManager) Update(ctx context.Context, name string, opts map[string]string) (*Remote, error) {
	if _, err := c.Get(ctx, name); err != nil {
		return nil, err
	}

	c.logger.Info("update remote", "name", name, "options", utils.MaskOptions(opts))
	c.quiet()
	res, err := c.cmd.ConfigUpdate(ctx, name, opts)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}

	return c.changed(ctx, name)
}

func (c *ConfigManager) Delete(ctx context.Context, name string) error {
	if _, err := c.Get(ctx, name); err != nil {
		return err
	}

	c.logger.Info("delete remote", "name", name)
	c.quiet()
	res, err := c.cmd.ConfigDelete(ctx, name)
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return err
	}

	_, err = c.changed(ctx, "")
	return err
}

func (c *ConfigManager) changed(ctx context.Context, name string) (*Remote, error) {
	c.about.Purge()
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	c.opts.Bus.Emit(events.RemotesChanged, name, nil)
	if name == "" {
		return nil, nil
	}
	return c.Get(ctx, name)
}

// Test lists the top level of the remote and reports whether it answered
func (c *ConfigManager) Test(ctx context.Context, name string) (bool, string) {
	if err := rclone.ValidateRemoteName(name); err != nil {
		return false, err.Error()
	}

	res := c.cmd.Check(ctx, name)
	if res.Success {
		return true, "connection successful"
	}
	msg := strings.TrimSpace(res.Stderr)
	if msg == "" {
		msg = fmt.Sprintf("rclone exited with code %d", res.Code)
	}
	return false, msg
}

// Info returns `rclone about` for the remote, cached for AboutTTL
func (c *ConfigManager) Info(ctx context.Context, name string) (*rclone.AboutInfo, error) {
	if err := rclone.ValidateRemoteName(name); err != nil {
		return nil, err
	}
	if info, ok := c.about.Get(name); ok {
		return info, nil
	}

	info, err := c.cmd.About(ctx, name)
	if err != nil {
		return nil, err
	}
	c.about.Add(name, info)
	return info, nil
}

// Invalidate drops cached remotes and about info
func (c *ConfigManager) Invalidate() {
	c.about.Purge()
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
}

func (c *ConfigManager) quiet() {
	c.quietMu.Lock()
	c.quietUntil = time.Now().Add(ownWriteQuietPeriod)
	c.quietMu.Unlock()
}

func (c *ConfigManager) isQuiet() bool {
	c.quietMu.Lock()
	defer c.quietMu.Unlock()
	return time.Now().Before(c.quietUntil)
}
