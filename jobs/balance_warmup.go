package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/msa-suite/msa-suite/internal/jobs"
	"github.com/msa-suite/msa-suite/internal/purchasing"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	// TaskBalanceWarmup precomputes supplier balances into the cache.
	TaskBalanceWarmup = "purchasing:balance_warmup"
)

// NewBalanceWarmupTask constructs an Asynq task warming every supplier balance.
func NewBalanceWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskBalanceWarmup, nil, asynq.Queue(QueueDefault)), nil
}

// BalanceWarmupJob walks the supplier directory and primes the balance cache
// so the first dashboard hit after a quiet period stays cheap.
type BalanceWarmupJob struct {
	directory purchasing.SupplierDirectory
	balances  *purchasing.BalanceCalculator
	logger    *slog.Logger
	metrics   *jobmetrics.Metrics
}

// NewBalanceWarmupJob constructs the job.
func NewBalanceWarmupJob(directory purchasing.SupplierDirectory, balances *purchasing.BalanceCalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceWarmupJob {
	return &BalanceWarmupJob{directory: directory, balances: balances, logger: logger, metrics: metrics}
}

// Handle processes TaskBalanceWarmup tasks.
func (j *BalanceWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.jobMetrics().Track(TaskBalanceWarmup)
	refs, err := j.directory.ListSupplierRefs(ctx)
	if err != nil {
		return tracker.End(err)
	}
	warmed := 0
	for _, ref := range refs {
		if _, err := j.balances.Balance(ctx, ref.ID); err != nil {
			j.logger.Warn("balance warmup skipped supplier",
				slog.Int64("supplier_id", ref.ID), slog.Any("error", err))
			continue
		}
		warmed++
	}
	j.logger.Info("balance warmup finished", slog.Int("warmed", warmed), slog.Int("total", len(refs)))
	return tracker.End(nil)
}

func (j *BalanceWarmupJob) jobMetrics() *jobmetrics.Metrics {
	if j.metrics != nil {
		return j.metrics
	}
	return defaultJobMetrics
}
