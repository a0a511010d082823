// Package accelerator ties the pieces together: it owns the hasher,
// the namespace, the load balancer, and the bank of drives, and
// exposes the filesystem API the bridge calls into.
package accelerator

import (
	"log/slog"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stripefs/stripefs/internal/apperr"
	"github.com/stripefs/stripefs/internal/balancer"
	"github.com/stripefs/stripefs/internal/config"
	"github.com/stripefs/stripefs/internal/drive"
	"github.com/stripefs/stripefs/internal/namespace"
	"github.com/stripefs/stripefs/pkg/hashing"
	"github.com/stripefs/stripefs/pkg/logging"
)

// Accelerator routes block-level work across drives and owns all
// metadata. Operations that both read and write metadata hold the
// namespace lock for the entire call, including any drive I/O they
// perform, so concurrent callers observe whole operations only.
type Accelerator struct {
	cfg    config.Config
	hasher *hashing.Hasher
	ns     *namespace.Namespace
	lb     *balancer.LoadBalancer
	drives []*drive.Drive
	logger *slog.Logger
}

func New(cfg config.Config, logger *slog.Logger) *Accelerator {
	accLogger := logging.ComponentLogger(logger, "accelerator")
	accLogger.Info("Initializing storage accelerator",
		slog.Int("num_drives", cfg.Accelerator.NumDrives),
		slog.Int("block_size", cfg.Accelerator.BlockSize))

	drives := make([]*drive.Drive, cfg.Accelerator.NumDrives)
	for i := range drives {
		drives[i] = drive.New(i, cfg.Drive, logger)
	}

	return &Accelerator{
		cfg:    cfg,
		hasher: hashing.New(cfg.Accelerator.HashSeed),
		ns:     namespace.New(),
		lb:     balancer.New(cfg.Accelerator.NumDrives, cfg.Balancer.MaxPendingOps, logger),
		drives: drives,
		logger: accLogger,
	}
}

// Close stops every drive and waits for their workers to exit.
func (a *Accelerator) Close() error {
	a.logger.Info("Shutting down storage accelerator")
	g := new(errgroup.Group)
	for _, d := range a.drives {
		g.Go(func() error {
			d.Stop()
			return nil
		})
	}
	return g.Wait()
}

func (a *Accelerator) NumDrives() int { return len(a.drives) }

// LoadSnapshots exposes the balancer counters to the monitor.
func (a *Accelerator) LoadSnapshots() []balancer.Snapshot {
	return a.lb.Snapshots()
}

// EntryCount reports the number of namespace records.
func (a *Accelerator) EntryCount() int {
	a.ns.Lock()
	defer a.ns.Unlock()
	return a.ns.Len()
}

// CreateFile registers a new regular file. Storage on the drives is
// allocated lazily on first write.
func (a *Accelerator) CreateFile(path string, mode uint32) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	if a.ns.Exists(path) {
		return apperr.AlreadyExists(path)
	}

	a.ns.Add(path, namespace.NewFileMetadata(mode))
	a.logger.Info("File created", slog.String("path", path))
	return nil
}

func (a *Accelerator) CreateDirectory(path string, mode uint32) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	if a.ns.Exists(path) {
		return apperr.AlreadyExists(path)
	}

	a.ns.Add(path, namespace.NewDirMetadata(mode))
	a.logger.Info("Directory created", slog.String("path", path))
	return nil
}

// DeleteFile removes a regular file: the whole-path primary drive is
// told to drop its bytes, then the metadata record goes away.
func (a *Accelerator) DeleteFile(path string) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return apperr.NotFound(path)
	}
	if !meta.IsRegular() {
		return apperr.IsDirectory(path)
	}

	done := drive.NewCompletion()
	a.primaryDrive(path).Submit(drive.Request{Type: drive.OpDelete, Path: path, Done: done})
	if _, err := done.Wait(drive.OpDelete, path, a.cfg.Accelerator.WaitTimeout); err != nil {
		return err
	}

	a.ns.Remove(path)
	a.logger.Info("File deleted", slog.String("path", path))
	return nil
}

func (a *Accelerator) RemoveDirectory(path string) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return apperr.NotFound(path)
	}
	if !meta.IsDir() {
		return apperr.NotADirectory(path)
	}
	if len(a.ns.List(path)) > 0 {
		return apperr.NotEmpty(path)
	}

	a.ns.Remove(path)
	a.logger.Info("Directory removed", slog.String("path", path))
	return nil
}

func (a *Accelerator) Chmod(path string, mode uint32) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return apperr.NotFound(path)
	}

	meta.Mode = (meta.Mode & syscall.S_IFMT) | (mode & namespace.PermMask)
	meta.Ctime = time.Now().Unix()
	a.ns.Add(path, meta)
	return nil
}

func (a *Accelerator) Chown(path string, uid, gid uint32) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return apperr.NotFound(path)
	}

	meta.UID = uid
	meta.GID = gid
	meta.Ctime = time.Now().Unix()
	a.ns.Add(path, meta)
	return nil
}

// Truncate resizes a regular file on its whole-path primary drive and
// mirrors the new size into the metadata.
func (a *Accelerator) Truncate(path string, size int64) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return apperr.NotFound(path)
	}
	if !meta.IsRegular() {
		return apperr.IsDirectory(path)
	}

	done := drive.NewCompletion()
	a.primaryDrive(path).Submit(drive.Request{Type: drive.OpTruncate, Path: path, Size: size, Done: done})
	if _, err := done.Wait(drive.OpTruncate, path, a.cfg.Accelerator.WaitTimeout); err != nil {
		return err
	}

	now := time.Now().Unix()
	meta.Size = size
	meta.Mtime = now
	meta.Ctime = now
	a.ns.Add(path, meta)
	return nil
}

func (a *Accelerator) Utimens(path string, atime, mtime int64) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return apperr.NotFound(path)
	}

	meta.Atime = atime
	meta.Mtime = mtime
	a.ns.Add(path, meta)
	return nil
}

// Read fills buf from path starting at offset and returns the byte
// count. Reads past the logical size return 0.
func (a *Accelerator) Read(path string, buf []byte, offset int64) (int, error) {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return 0, apperr.NotFound(path)
	}
	if offset >= meta.Size {
		return 0, nil
	}

	size := int64(len(buf))
	if size > meta.Size-offset {
		size = meta.Size - offset
	}

	n, err := a.readBlocks(path, buf[:size], offset)
	if err != nil {
		return 0, err
	}

	meta.Atime = time.Now().Unix()
	a.ns.Add(path, meta)
	return n, nil
}

// Write stores buf at offset and returns the byte count, extending
// the logical size when the write goes past the current end.
func (a *Accelerator) Write(path string, data []byte, offset int64) (int, error) {
	a.ns.Lock()
	defer a.ns.Unlock()

	meta, ok := a.ns.Get(path)
	if !ok {
		return 0, apperr.NotFound(path)
	}

	n, err := a.writeBlocks(path, data, offset)
	if err != nil {
		return 0, err
	}

	meta.Mtime = time.Now().Unix()
	if offset+int64(n) > meta.Size {
		meta.Size = offset + int64(n)
	}
	a.ns.Add(path, meta)
	return n, nil
}

// GetMetadata returns a snapshot of the record for path.
func (a *Accelerator) GetMetadata(path string) (namespace.FileMetadata, bool) {
	a.ns.Lock()
	defer a.ns.Unlock()
	return a.ns.Get(path)
}

// ListDirectory returns the immediate children of path.
func (a *Accelerator) ListDirectory(path string) []string {
	a.ns.Lock()
	defer a.ns.Unlock()
	return a.ns.List(path)
}
