package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) GetRunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("test-worker", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())

	// Immediate run plus at least one tick
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_RunsImmediatelyOnStart(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("immediate-worker", time.Hour, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Equal(t, 1, worker.GetRunCount())
}

func TestScheduler_DisabledWorker(t *testing.T) {
	scheduler := NewScheduler()

	enabledWorker := newMockWorker("enabled-worker", 100*time.Millisecond, true)
	disabledWorker := newMockWorker("disabled-worker", 100*time.Millisecond, false)

	scheduler.RegisterWorker(enabledWorker)
	scheduler.RegisterWorker(disabledWorker)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Greater(t, enabledWorker.GetRunCount(), 0)
	assert.Equal(t, 0, disabledWorker.GetRunCount())
}

func TestScheduler_WorkerPanicDoesNotKillLoop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("panicky-worker", 50*time.Millisecond, true)
	worker.runFunc = func(ctx context.Context) error {
		panic("boom")
	}
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(180 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	// The loop survived the first panic and kept ticking
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_WorkerErrorKeepsTicking(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("failing-worker", 50*time.Millisecond, true)
	worker.runFunc = func(ctx context.Context) error {
		return assert.AnError
	}
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(180 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_CannotStartTwice(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("test-worker", 100*time.Millisecond, true))

	ctx := context.Background()
	require.NoError(t, scheduler.Start(ctx))
	assert.Error(t, scheduler.Start(ctx))

	scheduler.Stop()
}

func TestScheduler_ContextCancellation(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("test-worker", 100*time.Millisecond, true))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	cancel()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
}

func TestScheduler_GetWorkers(t *testing.T) {
	scheduler := NewScheduler()

	scheduler.RegisterWorker(newMockWorker("worker-1", 100*time.Millisecond, true))
	scheduler.RegisterWorker(newMockWorker("worker-2", 200*time.Millisecond, false))

	ws := scheduler.GetWorkers()
	require.Len(t, ws, 2)
	assert.Equal(t, "worker-1", ws[0].Name())
	assert.Equal(t, "worker-2", ws[1].Name())
}

func TestBaseWorker_Health(t *testing.T) {
	w := NewBaseWorker("health-worker", time.Minute, true)

	w.RecordRun(100 * time.Millisecond)
	w.RecordError(assert.AnError, 300*time.Millisecond)

	health := w.Health()
	assert.Equal(t, int64(2), health.RunCount)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Equal(t, assert.AnError, health.LastError)
	assert.Equal(t, 200*time.Millisecond, health.AvgDuration)
	assert.True(t, health.Enabled)
}
