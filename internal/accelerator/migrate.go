package accelerator

import (
	"fmt"
	"log/slog"

	"github.com/stripefs/stripefs/internal/apperr"
	"github.com/stripefs/stripefs/internal/drive"
)

// Rename moves the metadata record from one path to another. When the
// two paths hash to different whole-path primary drives and the
// source is a regular file, its bytes are migrated between the drives
// first. The namespace lock covers the whole operation, migration
// included, so no partial state is ever visible to other callers.
func (a *Accelerator) Rename(from, to string, flags uint32) error {
	a.ns.Lock()
	defer a.ns.Unlock()

	src, ok := a.ns.Get(from)
	if !ok {
		return apperr.NotFound(from)
	}
	if a.ns.Exists(to) {
		return apperr.AlreadyExists(to)
	}
	if src.IsDir() && len(a.ns.List(from)) > 0 {
		return apperr.InvalidArgument(fmt.Sprintf("cannot rename non-empty directory '%s'", from))
	}

	srcIdx := a.primaryFor(from)
	dstIdx := a.primaryFor(to)
	if src.IsRegular() {
		if srcIdx != dstIdx {
			if err := a.migrate(from, to, src.Size, srcIdx, dstIdx); err != nil {
				// Residual bytes may linger on the destination
				// drive; they are unobservable while the namespace
				// still maps the old path only.
				return err
			}
		} else {
			// Same primary: the drive re-keys its stored bytes so
			// reads of the new path find them.
			done := drive.NewCompletion()
			a.drives[srcIdx].Submit(drive.Request{Type: drive.OpRename, Path: from, NewPath: to, Done: done})
			if _, err := done.Wait(drive.OpRename, from, a.cfg.Accelerator.WaitTimeout); err != nil {
				return err
			}
		}
	}

	a.ns.Add(to, src)
	a.ns.Remove(from)
	a.logger.Info("Renamed",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("src_drive", srcIdx),
		slog.Int("dst_drive", dstIdx))
	return nil
}

// migrate stream-copies a file's bytes from the source primary drive
// to the destination primary drive in block-sized pieces, then drops
// the source copy.
func (a *Accelerator) migrate(from, to string, size int64, srcIdx, dstIdx int) error {
	srcDrive, dstDrive := a.drives[srcIdx], a.drives[dstIdx]
	timeout := a.cfg.Accelerator.WaitTimeout
	buf := make([]byte, a.cfg.Accelerator.BlockSize)

	var moved int64
	for moved < size {
		n := int64(len(buf))
		if n > size-moved {
			n = size - moved
		}

		rd := drive.NewCompletion()
		srcDrive.Submit(drive.Request{Type: drive.OpRead, Path: from, Buf: buf[:n], Offset: moved, Done: rd})
		read, err := rd.Wait(drive.OpRead, from, timeout)
		if err != nil {
			return apperr.IO(fmt.Sprintf("rename '%s': read from drive %d failed", from, srcIdx), err)
		}
		if read == 0 {
			// The source drive holds less than the logical size;
			// nothing further to copy.
			break
		}

		wr := drive.NewCompletion()
		dstDrive.Submit(drive.Request{Type: drive.OpWrite, Path: to, Data: buf[:read], Offset: moved, Done: wr})
		written, err := wr.Wait(drive.OpWrite, to, timeout)
		if err != nil {
			return apperr.IO(fmt.Sprintf("rename '%s': write to drive %d failed", to, dstIdx), err)
		}

		moved += int64(written)
	}

	del := drive.NewCompletion()
	srcDrive.Submit(drive.Request{Type: drive.OpDelete, Path: from, Done: del})
	if _, err := del.Wait(drive.OpDelete, from, timeout); err != nil {
		return apperr.IO(fmt.Sprintf("rename '%s': source cleanup on drive %d failed", from, srcIdx), err)
	}

	a.logger.Debug("Migrated file between drives",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int64("bytes", moved))
	return nil
}
