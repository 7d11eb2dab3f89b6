package async

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/contract-intelligence/internal/common"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type countingMetrics struct {
	mu       sync.Mutex
	rejected int
	skipped  int
	busy     int
	maxBusy  int
}

func (m *countingMetrics) SetQueueDepth(int) {}
func (m *countingMetrics) WorkerBusy(b bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b {
		m.busy++
		if m.busy > m.maxBusy {
			m.maxBusy = m.busy
		}
		return
	}
	m.busy--
}
func (m *countingMetrics) JobRejected() {
	m.mu.Lock()
	m.rejected++
	m.mu.Unlock()
}
func (m *countingMetrics) JobSkipped() {
	m.mu.Lock()
	m.skipped++
	m.mu.Unlock()
}

func (m *countingMetrics) skips() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skipped
}

// gateProcessor blocks every run until open is closed and records how many
// runs overlap.
type gateProcessor struct {
	open    chan struct{}
	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
}

func newGateProcessor() *gateProcessor { return &gateProcessor{open: make(chan struct{})} }

func (g *gateProcessor) ProcessContract(ctx context.Context, _ uuid.UUID) error {
	g.calls.Add(1)
	n := g.running.Add(1)
	defer g.running.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-g.open:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestProcessorQueue_ProcessesEveryJob(t *testing.T) {
	var mu sync.Mutex
	seen := map[uuid.UUID]bool{}
	proc := ProcessorFunc(func(_ context.Context, id uuid.UUID) error {
		mu.Lock()
		seen[id] = true
		mu.Unlock()
		return nil
	})

	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(3), WithQueueSize(16))
	ids := make([]uuid.UUID, 10)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, q.Enqueue(context.Background(), NewJob(ids[i], "")))
	}
	q.Shutdown(context.Background())

	mu.Lock()
	defer mu.Unlock()
	for _, id := range ids {
		assert.True(t, seen[id], "job %s not processed", id)
	}
}

func TestProcessorQueue_BackpressureWhenFull(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, _ uuid.UUID) error {
		started <- struct{}{}
		<-release
		return nil
	})
	m := &countingMetrics{}
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithQueueSize(1), WithMetrics(m))

	require.NoError(t, q.Enqueue(context.Background(), NewJob(uuid.New(), "")))
	<-started // the only worker is now busy
	require.NoError(t, q.Enqueue(context.Background(), NewJob(uuid.New(), "")))

	err := q.Enqueue(context.Background(), NewJob(uuid.New(), ""))
	assert.ErrorIs(t, err, common.ErrBackpressure)
	assert.Equal(t, 1, m.rejected)
	assert.Equal(t, 1, q.Len())

	close(release)
	q.Shutdown(context.Background())
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(ProcessorFunc(func(context.Context, uuid.UUID) error { return nil }), quietLogger())
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), NewJob(uuid.New(), ""))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_RecoversPanics(t *testing.T) {
	var done atomic.Int32
	boom := uuid.New()
	proc := ProcessorFunc(func(_ context.Context, id uuid.UUID) error {
		if id == boom {
			panic("corrupt state")
		}
		done.Add(1)
		return nil
	})
	m := &countingMetrics{}
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithMetrics(m))

	require.NoError(t, q.Enqueue(context.Background(), NewJob(boom, "")))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(uuid.New(), "")))
	q.Shutdown(context.Background())

	assert.Equal(t, int32(1), done.Load())
	assert.Equal(t, 0, m.busy)
}

func TestProcessorQueue_PropagatesJobContext(t *testing.T) {
	got := make(chan [2]string, 1)
	id := uuid.New()
	proc := ProcessorFunc(func(ctx context.Context, _ uuid.UUID) error {
		got <- [2]string{common.RequestIDFromContext(ctx), common.ContractIDFromContext(ctx)}
		return nil
	})
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(id, "req-42")))
	q.Shutdown(context.Background())

	assert.Equal(t, [2]string{"req-42", id.String()}, <-got)
}

func TestProcessorQueue_ShutdownDeadlineCancelsRunningJobs(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, _ uuid.UUID) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(uuid.New(), "")))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	q.Shutdown(ctx)

	select {
	case <-cancelled:
	default:
		t.Fatal("running job was not cancelled")
	}
}

func TestProcessorQueue_ProcessTimeout(t *testing.T) {
	errs := make(chan error, 1)
	proc := ProcessorFunc(func(ctx context.Context, _ uuid.UUID) error {
		<-ctx.Done()
		errs <- ctx.Err()
		return ctx.Err()
	})
	q := NewProcessorQueue(proc, quietLogger(), WithWorkers(1), WithProcessTimeout(10*time.Millisecond))
	require.NoError(t, q.Enqueue(context.Background(), NewJob(uuid.New(), "")))
	q.Shutdown(context.Background())

	assert.ErrorIs(t, <-errs, context.DeadlineExceeded)
}

func TestProcessorQueue_SameContractNeverRunsTwiceAtOnce(t *testing.T) {
	gate := newGateProcessor()
	m := &countingMetrics{}
	q := NewProcessorQueue(gate, quietLogger(), WithWorkers(4), WithMetrics(m))
	ctx := context.Background()

	id := uuid.New()
	require.NoError(t, q.Enqueue(ctx, NewJob(id, "upload")))
	require.Eventually(t, func() bool { return gate.running.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	tracked, err := q.Tracked(ctx)
	require.NoError(t, err)
	assert.Contains(t, tracked, id)

	require.NoError(t, q.Enqueue(ctx, NewJob(id, "recovery")))
	require.Eventually(t, func() bool { return m.skips() == 1 }, 2*time.Second, 5*time.Millisecond)

	close(gate.open)
	q.Shutdown(ctx)

	assert.Equal(t, int32(1), gate.calls.Load())
	assert.Equal(t, int32(1), gate.peak.Load())

	tracked, err = q.Tracked(ctx)
	require.NoError(t, err)
	assert.Empty(t, tracked)
}
