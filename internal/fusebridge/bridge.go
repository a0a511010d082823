// Package fusebridge exposes the accelerator as a kernel filesystem
// through go-fuse. The bridge holds no filesystem state of its own:
// every operation forwards to the accelerator and maps its typed
// errors onto errnos.
package fusebridge

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/stripefs/stripefs/internal/namespace"
	"github.com/stripefs/stripefs/pkg/logging"
)

// Accelerator is the surface the bridge drives. Implemented by
// *accelerator.Accelerator.
type Accelerator interface {
	CreateFile(path string, mode uint32) error
	CreateDirectory(path string, mode uint32) error
	DeleteFile(path string) error
	RemoveDirectory(path string) error
	Rename(from, to string, flags uint32) error
	Chmod(path string, mode uint32) error
	Chown(path string, uid, gid uint32) error
	Truncate(path string, size int64) error
	Utimens(path string, atime, mtime int64) error
	Read(path string, buf []byte, offset int64) (int, error)
	Write(path string, data []byte, offset int64) (int, error)
	GetMetadata(path string) (namespace.FileMetadata, bool)
	ListDirectory(path string) []string
}

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// It is created if it does not exist.
	Mountpoint string

	// Accelerator serves every filesystem operation.
	Accelerator Accelerator

	// FsName is the filesystem name shown in mount tables.
	FsName string

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Debug enables go-fuse request tracing.
	Debug bool

	// Logger receives diagnostic messages. If nil, errors go to
	// stderr only.
	Logger *slog.Logger
}

// Mount mounts the filesystem at the configured mountpoint. The
// caller must call Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Accelerator == nil {
		return nil, fmt.Errorf("accelerator is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	b := &bridge{accel: options.Accelerator, logger: logging.ComponentLogger(options.Logger, "fusebridge")}
	root := &node{bridge: b}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     options.FsName,
			Name:       "stripefs",
			Debug:      options.Debug,
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("Filesystem mounted", slog.String("mountpoint", options.Mountpoint))
	return server, nil
}

type bridge struct {
	accel  Accelerator
	logger *slog.Logger
}
