package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/stockledger/internal/jobs"
)

// ReportWarmer builds every report window into the cache.
type ReportWarmer interface {
	Warm(ctx context.Context) (int, error)
}

// ReportsWarmupJob keeps the report cache populated between ledger changes.
type ReportsWarmupJob struct {
	Reports ReportWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(reports ReportWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: reports, Logger: logger, Metrics: metrics}
}

// Handle processes reports:warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskReportsWarmup)
	defer func() { err = tracker.End(err) }()

	n, err := j.Reports.Warm(ctx)
	if err != nil {
		loggerOrDefault(j.Logger).Error("reports warmup failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddWarmedReports(n)
	loggerOrDefault(j.Logger).Info("reports warmed", slog.Int("windows", n))
	return nil
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
