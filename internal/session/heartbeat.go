package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/metrics"
)

// Heartbeat periodically re-checkpoints connected sessions so persisted
// uptime stays current between inbound events, and refreshes the active
// session gauge.
type Heartbeat struct {
	registry  *Registry
	collector *metrics.Collector
	logger    *zap.Logger
	interval  time.Duration
}

func NewHeartbeat(registry *Registry, collector *metrics.Collector, logger *zap.Logger, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		registry:  registry,
		collector: collector,
		logger:    logger,
		interval:  interval,
	}
}

func (h *Heartbeat) Run(ctx context.Context) {
	h.logger.Info("Starting heartbeat", zap.Duration("interval", h.interval))

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Stopping heartbeat")
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

func (h *Heartbeat) tick(ctx context.Context) {
	h.registry.ForEach(func(c *Controller) {
		c.Checkpoint(ctx)
	})
	h.collector.SetActiveSessions(h.registry.Len())
}
