// Package drive implements the simulated SSD: a bounded FIFO request
// queue, one worker goroutine, an in-memory byte map, and an
// artificial per-op latency profile.
package drive

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/stripefs/stripefs/internal/apperr"
	"github.com/stripefs/stripefs/internal/config"
	"github.com/stripefs/stripefs/pkg/logging"
)

// Drive owns its queue, worker, and storage map. Requests on the same
// drive are processed in FIFO order; a full queue rejects the
// submission immediately with a busy error instead of blocking.
type Drive struct {
	id     int
	cfg    config.DriveConfig
	logger *slog.Logger

	queue chan Request

	// submitMu lets concurrent Submit calls proceed while Stop takes
	// the write side, so the queue channel is never closed mid-send.
	submitMu sync.RWMutex
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}

	storageMu sync.RWMutex
	storage   map[string][]byte
}

// New constructs a drive and starts its worker.
func New(id int, cfg config.DriveConfig, logger *slog.Logger) *Drive {
	d := &Drive{
		id:      id,
		cfg:     cfg,
		logger:  logging.ComponentLogger(logger, "drive", slog.Int(logging.LogDriveID, id)),
		queue:   make(chan Request, cfg.QueueDepth),
		done:    make(chan struct{}),
		storage: make(map[string][]byte),
	}
	d.logger.Info("Drive starting", slog.Int("queue_depth", cfg.QueueDepth))
	go d.worker()
	return d
}

func (d *Drive) ID() int { return d.id }

// Submit enqueues a request. It never blocks: a full queue completes
// the request's handle with busy, a stopped drive with canceled.
func (d *Drive) Submit(req Request) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	d.submitMu.RLock()
	defer d.submitMu.RUnlock()

	if d.stopped.Load() {
		req.complete(0, apperr.Canceled(fmt.Sprintf("drive %d is shutting down", d.id)))
		return
	}

	select {
	case d.queue <- req:
	default:
		d.logger.Warn("Queue full, rejecting request",
			slog.String("request_id", req.ID),
			slog.String(logging.LogOperation, req.Type.String()),
			slog.String("path", req.Path))
		req.complete(0, apperr.Busy(d.id))
	}
}

// Stop marks the drive stopped and waits for the worker to exit.
// Requests still queued at that point are completed with a canceled
// error rather than executed; handles are never silently dropped.
func (d *Drive) Stop() {
	d.stopOnce.Do(func() {
		d.submitMu.Lock()
		d.stopped.Store(true)
		close(d.queue)
		d.submitMu.Unlock()
		<-d.done
		d.logger.Info("Drive stopped")
	})
}

// Snapshot returns a copy of the stored bytes for path.
func (d *Drive) Snapshot(path string) ([]byte, bool) {
	d.storageMu.RLock()
	defer d.storageMu.RUnlock()

	data, ok := d.storage[path]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

func (d *Drive) worker() {
	defer close(d.done)

	for req := range d.queue {
		if d.stopped.Load() {
			req.complete(0, apperr.Canceled(fmt.Sprintf("drive %d is shutting down", d.id)))
			continue
		}
		d.process(req)
	}
}

// process applies the op's latency and executes it. A panic inside an
// op is converted to an i/o error on the handle so the worker keeps
// running.
func (d *Drive) process(req Request) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Request panicked",
				slog.String("request_id", req.ID),
				slog.String(logging.LogOperation, req.Type.String()),
				slog.String("path", req.Path),
				slog.Any("panic", r))
			req.complete(0, apperr.IO(fmt.Sprintf("drive %d %s failed", d.id, req.Type), fmt.Errorf("panic: %v", r)))
		}
	}()

	if lat := d.latencyFor(req.Type); lat > 0 {
		time.Sleep(lat)
	}

	switch req.Type {
	case OpRead:
		d.executeRead(req)
	case OpWrite:
		d.executeWrite(req)
	case OpTruncate:
		d.executeTruncate(req)
	case OpDelete:
		d.executeDelete(req)
	case OpRename:
		d.executeRename(req)
	default:
		// Metadata ops are advisory at the drive; the namespace is
		// authoritative for them.
		d.logger.Debug("Advisory request",
			slog.String("request_id", req.ID),
			slog.String(logging.LogOperation, req.Type.String()),
			slog.String("path", req.Path))
		req.complete(0, nil)
	}
}

func (d *Drive) executeRead(req Request) {
	d.storageMu.RLock()
	defer d.storageMu.RUnlock()

	data, ok := d.storage[req.Path]
	if !ok {
		d.logger.Debug("Read failed, path not stored", slog.String("path", req.Path))
		req.complete(0, apperr.NotFound(req.Path))
		return
	}

	avail := int64(len(data)) - req.Offset
	if avail < 0 {
		avail = 0
	}
	n := int64(len(req.Buf))
	if n > avail {
		n = avail
	}
	if n > 0 {
		copy(req.Buf, data[req.Offset:req.Offset+n])
	}

	d.logger.Debug("Read complete",
		slog.String("request_id", req.ID),
		slog.String("path", req.Path),
		slog.Int64("offset", req.Offset),
		slog.Int64("bytes", n))
	req.complete(int(n), nil)
}

func (d *Drive) executeWrite(req Request) {
	d.storageMu.Lock()
	defer d.storageMu.Unlock()

	data := d.storage[req.Path]
	end := req.Offset + int64(len(req.Data))
	if end > int64(len(data)) {
		// Grow with zero fill; a gap between the old end and the
		// write offset reads back as zeros.
		grown := make([]byte, end)
		copy(grown, data)
		data = grown
	}
	copy(data[req.Offset:], req.Data)
	d.storage[req.Path] = data

	d.logger.Debug("Write complete",
		slog.String("request_id", req.ID),
		slog.String("path", req.Path),
		slog.Int64("offset", req.Offset),
		slog.Int("bytes", len(req.Data)))
	req.complete(len(req.Data), nil)
}

func (d *Drive) executeTruncate(req Request) {
	d.storageMu.Lock()
	defer d.storageMu.Unlock()

	data, ok := d.storage[req.Path]
	if !ok {
		d.logger.Debug("Truncate failed, path not stored", slog.String("path", req.Path))
		req.complete(0, apperr.NotFound(req.Path))
		return
	}

	if req.Size <= int64(len(data)) {
		d.storage[req.Path] = data[:req.Size]
	} else {
		grown := make([]byte, req.Size)
		copy(grown, data)
		d.storage[req.Path] = grown
	}

	d.logger.Debug("Truncate complete",
		slog.String("request_id", req.ID),
		slog.String("path", req.Path),
		slog.Int64("size", req.Size))
	req.complete(0, nil)
}

func (d *Drive) executeDelete(req Request) {
	d.storageMu.Lock()
	defer d.storageMu.Unlock()

	delete(d.storage, req.Path)

	d.logger.Debug("Delete complete",
		slog.String("request_id", req.ID),
		slog.String("path", req.Path))
	req.complete(0, nil)
}

// executeRename re-keys the stored bytes under the new path so later
// reads of the renamed file find them. A path with no stored bytes
// (never written) has nothing to move and still succeeds.
func (d *Drive) executeRename(req Request) {
	d.storageMu.Lock()
	defer d.storageMu.Unlock()

	if data, ok := d.storage[req.Path]; ok {
		d.storage[req.NewPath] = data
		delete(d.storage, req.Path)
	}

	d.logger.Debug("Rename complete",
		slog.String("request_id", req.ID),
		slog.String("path", req.Path),
		slog.String("new_path", req.NewPath))
	req.complete(0, nil)
}

func (d *Drive) latencyFor(t OpType) time.Duration {
	switch t {
	case OpRead:
		return d.cfg.Latency.Read
	case OpWrite:
		return d.cfg.Latency.Write
	case OpTruncate:
		return d.cfg.Latency.Truncate
	case OpRename:
		return d.cfg.Latency.Rename
	default:
		return d.cfg.Latency.Default
	}
}
