// Package pipeline drives one contract through text extraction, structured
// extraction and scoring, persisting every transition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/contract-intelligence/constants"
	"github.com/joseph-ayodele/contract-intelligence/internal/common"
	"github.com/joseph-ayodele/contract-intelligence/internal/entity"
	"github.com/joseph-ayodele/contract-intelligence/internal/retry"
)

// Store is the slice of the contract repository the orchestrator writes through.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Contract, error)
	Update(ctx context.Context, c *entity.Contract) error
}

// Stage is one step of the pipeline. Run returns a function that writes the
// stage output onto the record; it is only applied on success.
type Stage interface {
	Name() constants.Stage
	Enter() float64
	Done(c *entity.Contract) bool
	Run(ctx context.Context, c *entity.Contract) (func(*entity.Contract), error)
}

// Recorder observes stage attempts and terminal outcomes.
type Recorder interface {
	StageObserved(stage constants.Stage, outcome string, d time.Duration)
	RetryScheduled(stage constants.Stage)
	ContractFinished(status constants.Status)
}

type noopRecorder struct{}

func (noopRecorder) StageObserved(constants.Stage, string, time.Duration) {}
func (noopRecorder) RetryScheduled(constants.Stage)                       {}
func (noopRecorder) ContractFinished(constants.Status)                    {}

// Config holds the retry and timeout knobs.
type Config struct {
	Retry retry.Policy
	// StageTimeout bounds one adapter call; 0 means none.
	StageTimeout time.Duration
	// PersistRetries is the retry budget of every store write.
	PersistRetries int
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		Retry:          retry.DefaultPolicy(),
		StageTimeout:   2 * time.Minute,
		PersistRetries: 3,
	}
}

// Orchestrator runs the stage sequence for one contract at a time. It is the
// only writer of a contract once the contract has been enqueued.
type Orchestrator struct {
	store    Store
	stages   []Stage
	cfg      Config
	persist  retry.Policy
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithClock replaces the source of record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator wires the three stages in order.
func NewOrchestrator(store Store, text, data, scoring Stage, cfg Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retry.IsRetryable == nil {
		cfg.Retry.IsRetryable = common.IsRetryable
	}
	o := &Orchestrator{
		store:    store,
		stages:   []Stage{text, data, scoring},
		cfg:      cfg,
		recorder: noopRecorder{},
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	o.persist = retry.Policy{
		MaxRetries:  cfg.PersistRetries,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
		IsRetryable: func(error) bool { return true },
		Sleep:       cfg.Retry.Sleep,
	}
	for _, fn := range opts {
		fn(o)
	}
	return o
}

// ProcessContract lets the orchestrator serve as a dispatcher processor.
func (o *Orchestrator) ProcessContract(ctx context.Context, id uuid.UUID) error {
	return o.Run(ctx, id)
}

// Run takes the contract from its current position to completed or failed.
// Terminal records are left untouched. A record that already carries a
// stage output resumes at the next stage.
//
// When ctx ends mid-run the record keeps its last persisted state so that
// recovery can pick it up again.
func (o *Orchestrator) Run(ctx context.Context, id uuid.UUID) error {
	ctx = common.WithContractID(ctx, id.String())

	c, err := o.load(ctx, id)
	if err != nil {
		return err
	}
	if c.Status.Terminal() {
		o.logger.Info("pipeline.skip.terminal", "contract_id", id, "status", c.Status)
		return nil
	}

	start := time.Now()
	o.logger.Info("pipeline.start", "contract_id", id, "status", c.Status, "stage", c.Stage)

	for _, s := range o.stages {
		if s.Done(c) {
			o.logger.Debug("pipeline.stage.skip", "contract_id", id, "stage", s.Name())
			continue
		}
		if err := o.runStage(ctx, c, s); err != nil {
			return err
		}
	}

	if err := o.complete(ctx, c); err != nil {
		return err
	}
	o.logger.Info("pipeline.completed",
		"contract_id", id,
		"overall_score", c.ScoreReport.OverallScore,
		"gaps", len(c.ScoreReport.Gaps),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (o *Orchestrator) load(ctx context.Context, id uuid.UUID) (*entity.Contract, error) {
	var c *entity.Contract
	policy := o.persist
	policy.IsRetryable = func(err error) bool { return !errors.Is(err, common.ErrNotFound) }
	err := policy.Do(ctx, func(ctx context.Context) error {
		var err error
		c, err = o.store.GetByID(ctx, id)
		return err
	}, nil)
	switch {
	case err == nil:
		return c, nil
	case errors.Is(err, common.ErrNotFound):
		return nil, err
	default:
		return nil, &common.PersistenceError{Op: "load", Err: err}
	}
}

func (o *Orchestrator) runStage(ctx context.Context, c *entity.Contract, s Stage) error {
	name := s.Name()
	c.Status = constants.StatusProcessing
	c.Stage = name
	c.ProgressPercentage = max(c.ProgressPercentage, s.Enter())
	if err := o.write(ctx, c, "enter "+string(name)); err != nil {
		return err
	}
	o.logger.Info("pipeline.stage.start", "contract_id", c.ID, "stage", name, "progress", c.ProgressPercentage)

	var apply func(*entity.Contract)
	err := o.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		apply, err = o.attempt(ctx, c, s)
		return err
	}, func(a retry.Attempt) error {
		c.RetryCount = a.RetryCount
		if !a.WillRetry {
			return nil
		}
		o.recorder.RetryScheduled(name)
		o.logger.Warn("pipeline.stage.retry",
			"contract_id", c.ID,
			"stage", name,
			"retry_count", a.RetryCount,
			"delay_ms", a.Delay.Milliseconds(),
			"kind", common.KindOf(a.Err),
			"error", a.Err,
		)
		return o.write(ctx, c, "retry "+string(name))
	})

	if err != nil {
		var pe *common.PersistenceError
		switch {
		case errors.As(err, &pe):
			return err
		case ctx.Err() != nil:
			o.logger.Warn("pipeline.stage.interrupted", "contract_id", c.ID, "stage", name, "error", ctx.Err())
			return fmt.Errorf("stage %s interrupted: %w", name, ctx.Err())
		}
		return o.fail(ctx, c, name, err)
	}

	apply(c)
	c.RetryCount = 0
	if err := o.write(ctx, c, "finish "+string(name)); err != nil {
		return err
	}
	o.logger.Info("pipeline.stage.ok", "contract_id", c.ID, "stage", name, "progress", c.ProgressPercentage)
	return nil
}

// attempt runs one stage invocation under the stage timeout. Panics come
// back as unclassified errors.
func (o *Orchestrator) attempt(ctx context.Context, c *entity.Contract, s Stage) (apply func(*entity.Contract), err error) {
	sctx, cancel := common.WithOptionalTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			apply, err = nil, &panicError{value: r}
			o.logger.Error("pipeline.stage.panic", "contract_id", c.ID, "stage", s.Name(), "panic", r)
		}
		outcome := "ok"
		if err != nil {
			outcome = common.KindOf(err)
		}
		o.recorder.StageObserved(s.Name(), outcome, time.Since(start))
	}()

	return s.Run(sctx, c)
}

// fail records a terminal failure. The stage error is returned classified.
func (o *Orchestrator) fail(ctx context.Context, c *entity.Contract, stage constants.Stage, err error) error {
	cause := err
	var exhausted *retry.ExhaustedError
	isExhausted := errors.As(err, &exhausted)
	if isExhausted {
		cause = exhausted.Err
	}

	c.Status = constants.StatusFailed
	c.Stage = constants.StageFailed
	c.ErrorDetails = &entity.ErrorDetails{
		Stage:            stage,
		Cause:            cause.Error(),
		Kind:             common.KindOf(cause),
		Retryable:        isExhausted,
		RetryCount:       c.RetryCount,
		RetriesExhausted: isExhausted,
		FailedAt:         o.now(),
	}

	o.logger.Error("pipeline.failed",
		"contract_id", c.ID,
		"stage", stage,
		"kind", c.ErrorDetails.Kind,
		"retry_count", c.RetryCount,
		"retries_exhausted", isExhausted,
		"error", cause,
	)

	var stageErr error
	if isExhausted {
		stageErr = &common.RetryableStageError{Stage: string(stage), Attempts: c.RetryCount, Err: cause}
	} else {
		stageErr = &common.NonRetryableStageError{Stage: string(stage), Err: cause}
	}

	if werr := o.write(ctx, c, "fail"); werr != nil {
		return errors.Join(stageErr, werr)
	}
	o.recorder.ContractFinished(constants.StatusFailed)
	return stageErr
}

func (o *Orchestrator) complete(ctx context.Context, c *entity.Contract) error {
	now := o.now()
	c.Status = constants.StatusCompleted
	c.Stage = constants.StageCompleted
	c.ProgressPercentage = constants.ProgressCompleted
	c.RetryCount = 0
	c.ErrorDetails = nil
	c.ProcessedAt = &now
	if err := o.write(ctx, c, "complete"); err != nil {
		return err
	}
	o.recorder.ContractFinished(constants.StatusCompleted)
	return nil
}

// write persists the whole record, retrying the store itself. The in-memory
// record is logged in full when the write is lost.
func (o *Orchestrator) write(ctx context.Context, c *entity.Contract, op string) error {
	c.UpdatedAt = o.now()
	err := o.persist.Do(ctx, func(ctx context.Context) error {
		return o.store.Update(ctx, c)
	}, func(a retry.Attempt) error {
		o.logger.Warn("pipeline.persist.retry", "contract_id", c.ID, "op", op, "retry_count", a.RetryCount, "error", a.Err)
		return nil
	})
	if err == nil {
		return nil
	}
	o.logger.Error("pipeline.persist.failed", "contract_id", c.ID, "op", op, "error", err, "record", c)
	return &common.PersistenceError{Op: op, Err: err}
}
