package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is the unit of dispatch: one contract, run to completion by one worker.
type Job struct {
	ContractID  uuid.UUID `json:"contract_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	TraceID     string    `json:"trace_id,omitempty"`
}

// NewJob stamps a job for id.
func NewJob(id uuid.UUID, traceID string) Job {
	return Job{ContractID: id, SubmittedAt: time.Now().UTC(), TraceID: traceID}
}

// Queue accepts jobs without blocking; a full queue answers with
// common.ErrBackpressure.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Tracker is implemented by queues that can report the contracts they
// already hold, either waiting or claimed by a worker.
type Tracker interface {
	Tracked(ctx context.Context) (map[uuid.UUID]struct{}, error)
}

// Processor runs one contract through the pipeline.
type Processor interface {
	ProcessContract(ctx context.Context, id uuid.UUID) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, id uuid.UUID) error

func (f ProcessorFunc) ProcessContract(ctx context.Context, id uuid.UUID) error { return f(ctx, id) }

// Metrics observes the dispatcher.
type Metrics interface {
	SetQueueDepth(n int)
	WorkerBusy(busy bool)
	JobRejected()
	JobSkipped()
}

type noopMetrics struct{}

func (noopMetrics) SetQueueDepth(int) {}
func (noopMetrics) WorkerBusy(bool)   {}
func (noopMetrics) JobRejected()      {}
func (noopMetrics) JobSkipped()       {}
