package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/cadencehr/cadence/internal/jobs"
	"github.com/cadencehr/cadence/internal/permissions"
)

// TenantProvisionJob writes the built-in role default rows for a freshly
// created tenant. Re-running is safe: seeding never overwrites rows a
// tenant has already customised.
type TenantProvisionJob struct {
	Permissions *permissions.Service
	Logger      *slog.Logger
	Metrics     *jobmetrics.Metrics
}

// NewTenantProvisionJob wires dependencies for the provision handler.
func NewTenantProvisionJob(svc *permissions.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *TenantProvisionJob {
	return &TenantProvisionJob{Permissions: svc, Logger: logger, Metrics: metrics}
}

// Handle processes tenant provisioning tasks.
func (j *TenantProvisionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Permissions == nil {
		return errors.New("tenant provision: handler not configured")
	}
	var payload TenantProvisionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.TenantID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskTenantProvision)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int64("tenant_id", payload.TenantID))
	if err := j.Permissions.Provision(ctx, payload.TenantID); err != nil {
		resultErr = err
		logger.Error("seed role defaults", slog.Any("error", err))
		return resultErr
	}
	logger.Info("tenant role defaults seeded")
	return resultErr
}

func (j *TenantProvisionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTenantProvision))
	}
	return slog.Default().With(slog.String("job", TaskTenantProvision))
}

func (j *TenantProvisionJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
