package accelerator

import (
	"strconv"
	"time"

	"github.com/stripefs/stripefs/internal/drive"
)

// chunkKey is the routing key for the block starting at offset:
// "<path>:<offset>". Offsets are aligned to the block grid before
// keying so a read derives the same keys as the write that produced
// the data, whatever offsets the callers used.
func (a *Accelerator) chunkKey(path string, offset int64) string {
	return path + ":" + strconv.FormatInt(offset, 10)
}

// primaryFor maps a routing key to its primary drive index.
func (a *Accelerator) primaryFor(key string) int {
	return int(a.hasher.Sum64(key) % uint64(len(a.drives)))
}

func (a *Accelerator) primaryDrive(path string) *drive.Drive {
	return a.drives[a.primaryFor(path)]
}

// readBlocks runs the synchronous block loop for a read: split into
// grid-aligned chunks, route each through the balancer, submit with a
// completion handle, wait, account. A failing chunk surfaces its
// error unless earlier chunks already transferred bytes, in which
// case the partial count is returned.
func (a *Accelerator) readBlocks(path string, buf []byte, offset int64) (int, error) {
	block := int64(a.cfg.Accelerator.BlockSize)
	total := 0
	for total < len(buf) {
		pos := offset + int64(total)
		base := pos - pos%block
		n := base + block - pos
		if rem := int64(len(buf) - total); n > rem {
			n = rem
		}

		idx := a.lb.SelectDrive(a.primaryFor(a.chunkKey(path, base)), n)
		a.lb.StartOperation(idx)
		start := time.Now()

		done := drive.NewCompletion()
		a.drives[idx].Submit(drive.Request{
			Type:   drive.OpRead,
			Path:   path,
			Buf:    buf[total : total+int(n)],
			Offset: pos,
			Done:   done,
		})
		read, err := done.Wait(drive.OpRead, path, a.cfg.Accelerator.WaitTimeout)

		a.lb.RecordOperation(idx, int64(read), time.Since(start))

		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		total += read
		if read < int(n) {
			// EOF on this chunk.
			break
		}
	}
	return total, nil
}

// writeBlocks is the write side of the block loop. Chunks route
// independently, so one logical write may land on several drives.
func (a *Accelerator) writeBlocks(path string, data []byte, offset int64) (int, error) {
	block := int64(a.cfg.Accelerator.BlockSize)
	total := 0
	for total < len(data) {
		pos := offset + int64(total)
		base := pos - pos%block
		n := base + block - pos
		if rem := int64(len(data) - total); n > rem {
			n = rem
		}

		idx := a.lb.SelectDrive(a.primaryFor(a.chunkKey(path, base)), n)
		a.lb.StartOperation(idx)
		start := time.Now()

		done := drive.NewCompletion()
		a.drives[idx].Submit(drive.Request{
			Type:   drive.OpWrite,
			Path:   path,
			Data:   data[total : total+int(n)],
			Offset: pos,
			Done:   done,
		})
		written, err := done.Wait(drive.OpWrite, path, a.cfg.Accelerator.WaitTimeout)

		a.lb.RecordOperation(idx, int64(written), time.Since(start))

		if err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}
		if written == 0 {
			break
		}
		total += written
	}
	return total, nil
}
