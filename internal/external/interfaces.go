package external

import "context"

// JobScheduler is the contract of the external job scheduler that dispatches
// campaign messages. JobSchedulerClient is the HTTP implementation.
type JobScheduler interface {
	// Configured reports whether the endpoint and key are both set. An
	// unconfigured scheduler must not be called.
	Configured() bool

	// CancelBatch asks the scheduler to cancel the given job ids.
	CancelBatch(ctx context.Context, ids []string) (*BulkCancelResult, error)

	// GetJobStatus returns the per-status summary and the job rows of one
	// campaign.
	GetJobStatus(ctx context.Context, companyID, scheduleID string) (*JobStatusReport, error)
}
