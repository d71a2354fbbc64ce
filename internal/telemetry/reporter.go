package telemetry

import (
	"context"
	"time"

	srcmanager "github.com/tphakala/go-audio-srcmanager"
)

// StatsSource is anything that can snapshot manager statistics.
type StatsSource interface {
	Stats() srcmanager.Stats
}

// Report publishes a stats snapshot from src every interval until ctx is
// done, and once more on the way out.
func (h *Hub) Report(ctx context.Context, src StatsSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	publish := func() {
		if err := h.Publish(KindStats, src.Stats()); err != nil {
			h.log.WithError(err).Warn("failed to publish stats")
		}
	}

	for {
		select {
		case <-ctx.Done():
			publish()
			return
		case <-h.done:
			return
		case <-ticker.C:
			publish()
		}
	}
}
