package accelerator

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripefs/stripefs/internal/apperr"
	"github.com/stripefs/stripefs/internal/config"
	"github.com/stripefs/stripefs/internal/namespace"
	"github.com/stripefs/stripefs/pkg/logging"
)

func newTestAccelerator(t *testing.T, numDrives int) *Accelerator {
	t.Helper()
	cfg := config.Default()
	cfg.Accelerator.NumDrives = numDrives
	cfg.Accelerator.WaitTimeout = 2 * time.Second
	cfg.Drive.QueueDepth = 256
	cfg.Drive.Latency = config.LatencyConfig{} // no artificial latency in tests
	a := New(cfg, logging.NewTestLogger(slog.LevelDebug, true))
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestCreateFile(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))

	meta, ok := a.GetMetadata("/a")
	require.True(t, ok)
	assert.True(t, meta.IsRegular())
	assert.Equal(t, uint32(0o644), meta.Mode&namespace.PermMask)
	assert.Equal(t, int64(0), meta.Size)
	assert.Equal(t, uint32(1), meta.Nlink)
	assert.NotZero(t, meta.Atime)
	assert.Equal(t, meta.Atime, meta.Mtime)
	assert.Equal(t, meta.Atime, meta.Ctime)

	err := a.CreateFile("/a", 0o644)
	assert.Equal(t, syscall.EEXIST, apperr.Errno(err))
}

func TestCreateDirectory(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateDirectory("/d", 0o755))

	meta, ok := a.GetMetadata("/d")
	require.True(t, ok)
	assert.True(t, meta.IsDir())
	assert.Equal(t, uint32(0o755), meta.Mode&namespace.PermMask)
	assert.Equal(t, uint32(2), meta.Nlink)

	err := a.CreateDirectory("/d", 0o755)
	assert.Equal(t, syscall.EEXIST, apperr.Errno(err))
}

func TestRootMetadata(t *testing.T) {
	a := newTestAccelerator(t, 4)

	root, ok := a.GetMetadata("/")
	require.True(t, ok)
	assert.True(t, root.IsDir())
	assert.GreaterOrEqual(t, root.Nlink, uint32(2))
}

func TestWriteRead(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))

	n, err := a.Write("/a", []byte("hello"), 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	meta, _ := a.GetMetadata("/a")
	assert.Equal(t, int64(5), meta.Size)

	buf := make([]byte, 5)
	n, err = a.Read("/a", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)
}

func TestReadWriteMissing(t *testing.T) {
	a := newTestAccelerator(t, 4)

	buf := make([]byte, 4)
	_, err := a.Read("/missing", buf, 0)
	assert.Equal(t, syscall.ENOENT, apperr.Errno(err))

	_, err = a.Write("/missing", []byte("x"), 0)
	assert.Equal(t, syscall.ENOENT, apperr.Errno(err))
}

func TestReadAtEOF(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))
	_, err := a.Write("/a", []byte("abc"), 0)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := a.Read("/a", buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = a.Read("/a", buf, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestReadCappedToSize(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))
	_, err := a.Write("/a", []byte("abcdef"), 0)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := a.Read("/a", buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("cdef"), buf[:n])
}

func TestWriteGapZeroFills(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/gap", 0o644))
	_, err := a.Write("/gap", []byte("ab"), 0)
	require.NoError(t, err)
	_, err = a.Write("/gap", []byte("z"), 10)
	require.NoError(t, err)

	meta, _ := a.GetMetadata("/gap")
	assert.Equal(t, int64(11), meta.Size)

	buf := make([]byte, 11)
	n, err := a.Read("/gap", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0, 0, 0, 'z'}, buf)
}

func TestLargeWriteSpreadsAcrossDrives(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/big", 0o644))

	payload := make([]byte, 64*1024)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	n, err := a.Write("/big", payload, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	buf := make([]byte, len(payload))
	n, err = a.Read("/big", buf, 0)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	assert.True(t, bytes.Equal(payload, buf))

	// 16 chunks over 4 drives: block routing must have spread them.
	populated := 0
	for _, d := range a.drives {
		if _, ok := d.Snapshot("/big"); ok {
			populated++
		}
	}
	assert.GreaterOrEqual(t, populated, 2)
}

func TestUnalignedOffsets(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/u", 0o644))

	payload := make([]byte, 10000)
	for i := range payload {
		payload[i] = byte(i % 127)
	}
	_, err := a.Write("/u", payload, 0)
	require.NoError(t, err)

	// A read straddling two block boundaries at odd offsets must hit
	// the same chunks the write populated.
	buf := make([]byte, 5000)
	n, err := a.Read("/u", buf, 3000)
	require.NoError(t, err)
	require.Equal(t, 5000, n)
	assert.True(t, bytes.Equal(payload[3000:8000], buf))

	// Overwrite at an unaligned offset, then read it back.
	_, err = a.Write("/u", []byte("patch"), 4094)
	require.NoError(t, err)
	small := make([]byte, 5)
	n, err = a.Read("/u", small, 4094)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	assert.Equal(t, []byte("patch"), small)
}

func TestListDirectoryFlow(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateDirectory("/d", 0o755))
	require.NoError(t, a.CreateFile("/d/x", 0o644))

	assert.Equal(t, []string{"x"}, a.ListDirectory("/d"))

	err := a.RemoveDirectory("/d")
	assert.Equal(t, syscall.ENOTEMPTY, apperr.Errno(err))

	require.NoError(t, a.DeleteFile("/d/x"))
	require.NoError(t, a.RemoveDirectory("/d"))

	_, ok := a.GetMetadata("/d")
	assert.False(t, ok)
}

func TestDeleteErrors(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateDirectory("/d", 0o755))
	require.NoError(t, a.CreateFile("/f", 0o644))

	assert.Equal(t, syscall.EISDIR, apperr.Errno(a.DeleteFile("/d")))
	assert.Equal(t, syscall.ENOTDIR, apperr.Errno(a.RemoveDirectory("/f")))
	assert.Equal(t, syscall.ENOENT, apperr.Errno(a.DeleteFile("/missing")))
	assert.Equal(t, syscall.ENOENT, apperr.Errno(a.RemoveDirectory("/missing")))
}

func TestDeleteRemovesDriveBytes(t *testing.T) {
	a := newTestAccelerator(t, 1)

	require.NoError(t, a.CreateFile("/a", 0o644))
	_, err := a.Write("/a", []byte("payload"), 0)
	require.NoError(t, err)

	_, stored := a.drives[0].Snapshot("/a")
	require.True(t, stored)

	require.NoError(t, a.DeleteFile("/a"))

	_, stored = a.drives[0].Snapshot("/a")
	assert.False(t, stored)
	_, ok := a.GetMetadata("/a")
	assert.False(t, ok)

	// Creating the path again starts from scratch.
	require.NoError(t, a.CreateFile("/a", 0o644))
	meta, _ := a.GetMetadata("/a")
	assert.Equal(t, int64(0), meta.Size)
}

func TestChmod(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))

	require.NoError(t, a.Chmod("/a", 0o600))
	meta, _ := a.GetMetadata("/a")
	assert.True(t, meta.IsRegular(), "type bits must survive chmod")
	assert.Equal(t, uint32(0o600), meta.Mode&namespace.PermMask)

	// Idempotent on mode.
	require.NoError(t, a.Chmod("/a", 0o600))
	again, _ := a.GetMetadata("/a")
	assert.Equal(t, meta.Mode, again.Mode)

	assert.Equal(t, syscall.ENOENT, apperr.Errno(a.Chmod("/missing", 0o600)))
}

func TestChown(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))
	require.NoError(t, a.Chown("/a", 1234, 5678))

	meta, _ := a.GetMetadata("/a")
	assert.Equal(t, uint32(1234), meta.UID)
	assert.Equal(t, uint32(5678), meta.GID)

	assert.Equal(t, syscall.ENOENT, apperr.Errno(a.Chown("/missing", 1, 1)))
}

func TestTruncate(t *testing.T) {
	a := newTestAccelerator(t, 1)

	require.NoError(t, a.CreateFile("/t", 0o644))
	_, err := a.Write("/t", []byte("abcdef"), 0)
	require.NoError(t, err)

	require.NoError(t, a.Truncate("/t", 3))
	meta, _ := a.GetMetadata("/t")
	assert.Equal(t, int64(3), meta.Size)

	buf := make([]byte, 16)
	n, err := a.Read("/t", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), buf[:n])

	// Idempotent on size.
	require.NoError(t, a.Truncate("/t", 3))
	meta, _ = a.GetMetadata("/t")
	assert.Equal(t, int64(3), meta.Size)

	// Growing zero-fills.
	require.NoError(t, a.Truncate("/t", 6))
	n, err = a.Read("/t", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0}, buf[:n])
}

func TestTruncateErrors(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateDirectory("/d", 0o755))
	assert.Equal(t, syscall.EISDIR, apperr.Errno(a.Truncate("/d", 0)))
	assert.Equal(t, syscall.ENOENT, apperr.Errno(a.Truncate("/missing", 0)))

	// A file that was never written has no bytes on its primary
	// drive, and the drive-level truncate reports that.
	require.NoError(t, a.CreateFile("/empty", 0o644))
	assert.Equal(t, syscall.ENOENT, apperr.Errno(a.Truncate("/empty", 10)))
}

func TestUtimens(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))
	require.NoError(t, a.Utimens("/a", 1000, 2000))

	meta, _ := a.GetMetadata("/a")
	assert.Equal(t, int64(1000), meta.Atime)
	assert.Equal(t, int64(2000), meta.Mtime)

	assert.Equal(t, syscall.ENOENT, apperr.Errno(a.Utimens("/missing", 1, 2)))
}

func TestReadUpdatesAtime(t *testing.T) {
	a := newTestAccelerator(t, 4)

	require.NoError(t, a.CreateFile("/a", 0o644))
	_, err := a.Write("/a", []byte("data"), 0)
	require.NoError(t, err)
	require.NoError(t, a.Utimens("/a", 1000, 2000))

	buf := make([]byte, 4)
	_, err = a.Read("/a", buf, 0)
	require.NoError(t, err)

	meta, _ := a.GetMetadata("/a")
	assert.Greater(t, meta.Atime, int64(1000))
	assert.Equal(t, int64(2000), meta.Mtime)
}

func TestShortReadWhenDriveHoldsLess(t *testing.T) {
	a := newTestAccelerator(t, 1)

	require.NoError(t, a.CreateFile("/short", 0o644))
	_, err := a.Write("/short", []byte("0123456789"), 0)
	require.NoError(t, err)

	// Inflate the logical size past what the drive holds; the block
	// loop must stop at the short chunk and report the partial count.
	a.ns.Lock()
	meta, _ := a.ns.Get("/short")
	meta.Size = 8192
	a.ns.Add("/short", meta)
	a.ns.Unlock()

	buf := make([]byte, 8192)
	n, err := a.Read("/short", buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestConcurrentWritersDistinctPaths(t *testing.T) {
	a := newTestAccelerator(t, 4)

	const writers = 4
	const writesPerWriter = 100

	for i := 0; i < writers; i++ {
		require.NoError(t, a.CreateFile(fmt.Sprintf("/test_%d", i), 0o644))
	}

	var wg sync.WaitGroup
	successes := make([]int, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := fmt.Sprintf("/test_%d", i)
			for j := 0; j < writesPerWriter; j++ {
				payload := []byte(fmt.Sprintf("payload-%d-%03d", i, j))
				if n, err := a.Write(path, payload, 0); err == nil && n == len(payload) {
					successes[i]++
				}
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for i := 0; i < writers; i++ {
		total += successes[i]

		expected := []byte(fmt.Sprintf("payload-%d-%03d", i, writesPerWriter-1))
		buf := make([]byte, len(expected))
		n, err := a.Read(fmt.Sprintf("/test_%d", i), buf, 0)
		require.NoError(t, err)
		assert.Equal(t, expected, buf[:n], "writer %d", i)
	}
	assert.Equal(t, writers*writesPerWriter, total)
}

func TestCloseIsIdempotent(t *testing.T) {
	a := newTestAccelerator(t, 2)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}
