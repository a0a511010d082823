// Package balancer tracks per-drive load counters and picks the
// effective drive for a routed request. Selection is advisory: it can
// steer a write away from a hot primary, and nothing records where
// the bytes actually landed.
package balancer

import (
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/stripefs/stripefs/pkg/logging"
)

const highLatencyThreshold = 100 * time.Millisecond

type driveStats struct {
	pendingOps atomic.Int64
	totalBytes atomic.Int64
	emaLatency atomic.Uint64 // float64 bits, milliseconds
}

// Snapshot is a point-in-time view of one drive's counters, consumed
// by the monitor.
type Snapshot struct {
	Drive        int
	PendingOps   int64
	TotalBytes   int64
	EMALatencyMs float64
}

// LoadBalancer holds one set of lock-free counters per drive.
type LoadBalancer struct {
	stats         []driveStats
	maxPendingOps int64
	logger        *slog.Logger
}

func New(numDrives int, maxPendingOps int64, logger *slog.Logger) *LoadBalancer {
	return &LoadBalancer{
		stats:         make([]driveStats, numDrives),
		maxPendingOps: maxPendingOps,
		logger:        logging.ComponentLogger(logger, "balancer"),
	}
}

func (lb *LoadBalancer) NumDrives() int {
	return len(lb.stats)
}

// StartOperation marks one more op in flight on the drive.
func (lb *LoadBalancer) StartOperation(drive int) {
	lb.stats[drive].pendingOps.Add(1)
}

// RecordOperation folds a finished op into the counters: bytes served,
// latency into the running average, and one fewer op in flight.
func (lb *LoadBalancer) RecordOperation(drive int, bytes int64, elapsed time.Duration) {
	stats := &lb.stats[drive]
	stats.totalBytes.Add(bytes)

	elapsedMs := float64(elapsed.Nanoseconds()) / 1e6
	// Plain load/store, not CAS: a lost update only skews an advisory
	// average.
	old := math.Float64frombits(stats.emaLatency.Load())
	stats.emaLatency.Store(math.Float64bits((old + elapsedMs) / 2))

	if stats.pendingOps.Add(-1) < 0 {
		lb.logger.Error("Pending ops underflow", slog.Int(logging.LogDriveID, drive))
	}

	if elapsed > highLatencyThreshold {
		lb.logger.Info("High latency operation",
			slog.Int(logging.LogDriveID, drive),
			slog.Float64("latency_ms", elapsedMs))
	}
}

// SelectDrive returns the primary unless it is hot, in which case the
// drive with the fewest pending ops wins (ties go to the lowest
// index).
func (lb *LoadBalancer) SelectDrive(primary int, size int64) int {
	if lb.stats[primary].pendingOps.Load() < lb.maxPendingOps {
		return primary
	}

	selected := primary
	minOps := int64(math.MaxInt64)
	for i := range lb.stats {
		if ops := lb.stats[i].pendingOps.Load(); ops < minOps {
			minOps = ops
			selected = i
		}
	}

	if selected != primary {
		lb.logger.Debug("Load balanced",
			slog.Int("primary", primary),
			slog.Int("selected", selected),
			slog.Int64("size", size))
	}
	return selected
}

// Snapshots returns a copy of every drive's counters.
func (lb *LoadBalancer) Snapshots() []Snapshot {
	out := make([]Snapshot, len(lb.stats))
	for i := range lb.stats {
		out[i] = Snapshot{
			Drive:        i,
			PendingOps:   lb.stats[i].pendingOps.Load(),
			TotalBytes:   lb.stats[i].totalBytes.Load(),
			EMALatencyMs: math.Float64frombits(lb.stats[i].emaLatency.Load()),
		}
	}
	return out
}
