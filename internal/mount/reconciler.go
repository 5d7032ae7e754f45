package mount

import (
	"context"
	"time"
)

const DefaultReconcileInterval = 10 * time.Second

// StartReconciler refreshes mount state every interval until ctx is done
func (m *Manager) StartReconciler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.logger.Debug("reconciler started", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				m.logger.Debug("reconciler stopped")
				return
			case <-ticker.C:
				m.Refresh(ctx)
			}
		}
	}()
}
