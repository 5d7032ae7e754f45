package remotes

import (
	"context"
	"path/filepath"
	"time"

	"github.com/openmined/rclonebox/internal/events"
	"github.com/rjeczalik/notify"
)

const (
	watchEventBuffer    = 16
	watchDebounce       = 200 * time.Millisecond
	ownWriteQuietPeriod = time.Second
)

// Watch follows external edits of rclone.conf until ctx is done. Each burst
// of writes invalidates the cache, reloads it and publishes remotes.changed.
// The parent directory is watched since rclone replaces the file on save.
func (c *ConfigManager) Watch(ctx context.Context) error {
	path := c.opts.ConfigPath
	if path == "" {
		c.logger.Info("rclone config path unknown, not watching")
		<-ctx.Done()
		return nil
	}

	dir := filepath.Dir(path)
	raw := make(chan notify.EventInfo, watchEventBuffer)
	if err := notify.Watch(dir, raw, notify.Write, notify.Create, notify.Rename, notify.Remove); err != nil {
		return err
	}
	defer notify.Stop(raw)

	c.logger.Info("watching rclone config", "path", path)

	target := filepath.Base(path)
	var debounce *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case ev := <-raw:
			if filepath.Base(ev.Path()) != target {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			if c.isQuiet() {
				c.logger.Debug("rclone config changed by us, skipping")
				continue
			}
			c.logger.Info("rclone config changed externally")
			c.Invalidate()
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("reload remotes", "error", err)
			}
			c.opts.Bus.Emit(events.RemotesChanged, "", nil)
		}
	}
}
