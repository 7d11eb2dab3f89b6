package async

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/joseph-ayodele/contract-intelligence/internal/common"
)

// runJob processes one job and never panics. A job whose contract is already
// claimed elsewhere is dropped; the holder finishes it.
func runJob(base context.Context, proc Processor, claim claimFunc, job Job, o options, logger *slog.Logger, workerID int) (err error) {
	ctx, cancel := common.WithOptionalTimeout(base, o.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	ctx = common.WithContractID(ctx, job.ContractID.String())

	release, ok, err := claim(ctx, job.ContractID)
	if err != nil {
		logger.Error("dispatcher.job.claim",
			"worker_id", workerID,
			"contract_id", job.ContractID,
			"error", err)
		return err
	}
	if !ok {
		o.metrics.JobSkipped()
		logger.Info("dispatcher.job.skipped",
			"worker_id", workerID,
			"contract_id", job.ContractID,
			"reason", "claimed")
		return nil
	}
	defer release()

	o.metrics.WorkerBusy(true)
	defer o.metrics.WorkerBusy(false)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
			logger.Error("dispatcher.job.panic",
				"worker_id", workerID,
				"contract_id", job.ContractID,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()

	err = proc.ProcessContract(ctx, job.ContractID)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.Error("dispatcher.job.failed",
			"worker_id", workerID,
			"contract_id", job.ContractID,
			"elapsed_ms", elapsed,
			"error", err)
		return err
	}
	var queued int64
	if !job.SubmittedAt.IsZero() {
		queued = start.Sub(job.SubmittedAt).Milliseconds()
	}
	logger.Info("dispatcher.job.done",
		"worker_id", workerID,
		"contract_id", job.ContractID,
		"queued_ms", queued,
		"elapsed_ms", elapsed)
	return nil
}
