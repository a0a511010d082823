// Package monitor periodically reports drive load and namespace size
// through the structured logger.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/stripefs/stripefs/internal/balancer"
	"github.com/stripefs/stripefs/pkg/logging"
)

// Source is the accelerator surface the monitor reads from.
type Source interface {
	LoadSnapshots() []balancer.Snapshot
	EntryCount() int
}

type Monitor struct {
	source   Source
	interval time.Duration
	logger   *slog.Logger
}

func New(source Source, interval time.Duration, logger *slog.Logger) *Monitor {
	return &Monitor{
		source:   source,
		interval: interval,
		logger:   logging.ComponentLogger(logger, "monitor"),
	}
}

// Run reports on every tick until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Monitor started", slog.Duration("interval", m.interval))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor stopped")
			return
		case <-ticker.C:
			m.report()
		}
	}
}

func (m *Monitor) report() {
	m.logger.Info("Namespace status", slog.Int("entries", m.source.EntryCount()))
	for _, snap := range m.source.LoadSnapshots() {
		m.logger.Info("Drive load",
			slog.Int(logging.LogDriveID, snap.Drive),
			slog.Int64("pending_ops", snap.PendingOps),
			slog.Int64("total_bytes", snap.TotalBytes),
			slog.Float64("ema_latency_ms", snap.EMALatencyMs))
	}
}
