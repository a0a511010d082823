package monitor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stripefs/stripefs/internal/balancer"
	"github.com/stripefs/stripefs/pkg/logging"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) LoadSnapshots() []balancer.Snapshot {
	args := m.Called()
	return args.Get(0).([]balancer.Snapshot)
}

func (m *MockSource) EntryCount() int {
	args := m.Called()
	return args.Int(0)
}

func TestMonitorReportsUntilCanceled(t *testing.T) {
	source := new(MockSource)
	source.On("LoadSnapshots").Return([]balancer.Snapshot{{Drive: 0, PendingOps: 1, TotalBytes: 4096}})
	source.On("EntryCount").Return(3)

	m := New(source, 10*time.Millisecond, logging.NewTestLogger(slog.LevelDebug, true))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop after cancel")
	}

	source.AssertCalled(t, "LoadSnapshots")
	source.AssertCalled(t, "EntryCount")
	assert.GreaterOrEqual(t, len(source.Calls), 2)
}
