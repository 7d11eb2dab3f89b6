package async

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/internal/common"
)

// ProcessorQueue dispatches jobs to a fixed pool of in-process workers over a
// bounded channel.
type ProcessorQueue struct {
	proc   Processor
	logger *slog.Logger
	opts   options

	ch     chan Job
	claims *localClaims
	wg     sync.WaitGroup
	once   sync.Once
	base   context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	waiting map[uuid.UUID]int
}

var (
	_ Queue   = (*ProcessorQueue)(nil)
	_ Tracker = (*ProcessorQueue)(nil)
)

// NewProcessorQueue starts the workers immediately.
func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	base, cancel := context.WithCancel(context.Background())
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		opts:    o,
		ch:      make(chan Job, o.size),
		claims:  newLocalClaims(),
		base:    base,
		cancel:  cancel,
		waiting: make(map[uuid.UUID]int),
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.opts.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("dispatcher.worker.start", "worker_id", workerID)

				for job := range q.ch {
					q.opts.metrics.SetQueueDepth(len(q.ch))
					q.dequeued(job.ContractID)
					_ = runJob(q.base, q.proc, q.claims.claim, job, q.opts, q.logger, workerID)
				}

				q.logger.Debug("dispatcher.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue never blocks: a full channel yields common.ErrBackpressure.
func (q *ProcessorQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("dispatcher.enqueue.closed", "contract_id", job.ContractID)
		return ErrQueueClosed
	}
	select {
	case q.ch <- job:
		q.waiting[job.ContractID]++
		q.opts.metrics.SetQueueDepth(len(q.ch))
		q.logger.Info("dispatcher.enqueue.ok", "contract_id", job.ContractID, "depth", len(q.ch))
		return nil
	default:
		q.opts.metrics.JobRejected()
		q.logger.Warn("dispatcher.enqueue.backpressure", "contract_id", job.ContractID, "capacity", cap(q.ch))
		return common.ErrBackpressure
	}
}

func (q *ProcessorQueue) dequeued(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.waiting[id] <= 1 {
		delete(q.waiting, id)
		return
	}
	q.waiting[id]--
}

// Tracked lists contracts waiting in the channel or running on a worker.
func (q *ProcessorQueue) Tracked(context.Context) (map[uuid.UUID]struct{}, error) {
	q.mu.Lock()
	ids := make(map[uuid.UUID]struct{}, len(q.waiting))
	for id := range q.waiting {
		ids[id] = struct{}{}
	}
	q.mu.Unlock()
	q.claims.addTo(ids)
	return ids, nil
}

// Len reports how many jobs are waiting.
func (q *ProcessorQueue) Len() int { return len(q.ch) }

// Shutdown stops intake and waits for queued and running jobs. When ctx ends
// first, running jobs see their context cancelled.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.cancel()
		q.logger.Warn("dispatcher.shutdown.interrupted", "error", ctx.Err())
		<-done
	case <-done:
		q.cancel()
		q.logger.Info("dispatcher.shutdown.drained")
	}
}
