// Package jobs hosts the asynq background tasks: the nightly ledger
// integrity scan, idempotency key cleanup and station view warmup.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrityScan re-checks that every journal balances.
	TaskLedgerIntegrityScan = "ledger:integrity_scan"
	// TaskIdempotencyCleanup prunes processed idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"
	// TaskViewWarmup prebuilds station dashboard snapshots.
	TaskViewWarmup = "view:warmup"
)

// IntegrityScanPayload bounds the scan window in days back from now. Zero
// scans everything.
type IntegrityScanPayload struct {
	DaysBack int `json:"daysBack"`
}

// NewIntegrityScanTask constructs the ledger integrity scan task.
func NewIntegrityScanTask(daysBack int) (*asynq.Task, error) {
	data, err := json.Marshal(IntegrityScanPayload{DaysBack: daysBack})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrityScan, data), nil
}

// IdempotencyCleanupPayload sets the retention in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewViewWarmupTask constructs the dashboard warmup task.
func NewViewWarmupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskViewWarmup, nil), nil
}
