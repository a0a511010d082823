package drive

import (
	"sync/atomic"
	"time"

	"github.com/stripefs/stripefs/internal/apperr"
)

// OpType identifies the kind of work a request asks a drive to do.
type OpType int

const (
	OpCreate OpType = iota
	OpRead
	OpWrite
	OpDelete
	OpTruncate
	OpMkdir
	OpRmdir
	OpRename
	OpChmod
	OpChown
	OpUtimens
)

func (t OpType) String() string {
	switch t {
	case OpCreate:
		return "create"
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	case OpTruncate:
		return "truncate"
	case OpMkdir:
		return "mkdir"
	case OpRmdir:
		return "rmdir"
	case OpRename:
		return "rename"
	case OpChmod:
		return "chmod"
	case OpChown:
		return "chown"
	case OpUtimens:
		return "utimens"
	default:
		return "unknown"
	}
}

// Request is one unit of work on a drive queue.
//
// READ copies into Buf starting at Offset; len(Buf) is the requested
// size. WRITE copies Data into storage at Offset. TRUNCATE resizes to
// Size. DELETE drops the stored bytes for Path. RENAME re-keys the
// stored bytes under NewPath. The remaining
// op types are advisory at the drive level: the worker applies
// latency and completes with 0, the authoritative state for them
// lives in the namespace.
type Request struct {
	ID      string // filled by Submit when empty
	Type    OpType
	Path    string
	Buf     []byte // READ destination
	Data    []byte // WRITE source
	Size    int64  // TRUNCATE target size
	Offset  int64
	NewPath string // RENAME target path
	Done    *Completion
}

func (r Request) complete(n int, err error) {
	if r.Done != nil {
		r.Done.complete(n, err)
	}
}

// Result is what a drive worker reports back through a completion
// handle: bytes transferred on success, the failure otherwise.
type Result struct {
	N   int
	Err error
}

// Completion is a one-shot handle fulfilled by the drive worker when
// a request finishes. The submitter waits on it with a deadline; a
// fulfillment after the submitter gave up is silently discarded.
type Completion struct {
	fulfilled atomic.Bool
	done      chan Result
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan Result, 1)}
}

// complete fulfills the handle. Only the first call wins; the
// buffered channel means fulfilling an abandoned handle never blocks
// the worker.
func (c *Completion) complete(n int, err error) {
	if !c.fulfilled.CompareAndSwap(false, true) {
		return
	}
	c.done <- Result{N: n, Err: err}
}

// Wait blocks until the handle is fulfilled or the deadline elapses.
func (c *Completion) Wait(op OpType, path string, timeout time.Duration) (int, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-c.done:
		return res.N, res.Err
	case <-timer.C:
		return 0, apperr.TimedOut(op.String(), path)
	}
}
