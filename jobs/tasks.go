package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReportsWarmup precomputes every report window into the cache.
	TaskReportsWarmup = "reports:warmup"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"

	// DefaultIdempotencyRetention is how long processed request keys are kept.
	DefaultIdempotencyRetention = 72 * time.Hour
)

// IdempotencyCleanupPayload configures a cleanup run.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

func (p IdempotencyCleanupPayload) retention() time.Duration {
	if p.RetentionHours <= 0 {
		return DefaultIdempotencyRetention
	}
	return time.Duration(p.RetentionHours) * time.Hour
}

// NewReportsWarmupTask constructs the warmup task.
func NewReportsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskReportsWarmup, nil)
}

// NewIdempotencyCleanupTask constructs a cleanup task for the retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: int(retention / time.Hour)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// Schedule returns the cron registrations the worker installs.
func Schedule() ([]CronRegistration, error) {
	cleanup, err := NewIdempotencyCleanupTask(DefaultIdempotencyRetention)
	if err != nil {
		return nil, err
	}
	return []CronRegistration{
		{Spec: "*/15 * * * *", Task: NewReportsWarmupTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		{Spec: "30 2 * * *", Task: cleanup, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}, nil
}
