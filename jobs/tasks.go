package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTenantProvision seeds the built-in role defaults for a new tenant.
	TaskTenantProvision = "tenant:provision"
	// TaskMatrixWarmup pre-populates permission snapshots for active tenants.
	TaskMatrixWarmup = "authz:matrix_warmup"
)

// TenantProvisionPayload identifies the tenant to seed.
type TenantProvisionPayload struct {
	TenantID int64 `json:"tenant_id"`
}

// MatrixWarmupPayload optionally restricts warmup to specific tenants.
// Empty means every active tenant.
type MatrixWarmupPayload struct {
	TenantIDs []int64 `json:"tenant_ids,omitempty"`
}

// NewTenantProvisionTask constructs an Asynq task.
func NewTenantProvisionTask(payload TenantProvisionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTenantProvision, data), nil
}

// NewMatrixWarmupTask constructs an Asynq task.
func NewMatrixWarmupTask(payload MatrixWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMatrixWarmup, data), nil
}
