package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wacrm/internal/types"
)

// DefaultSchedulerTimeout bounds each scheduler request.
const DefaultSchedulerTimeout = 15 * time.Second

// maxErrorBody caps how much of a failed response body is logged.
const maxErrorBody = 4096

// SchedulerClientConfig configures a JobSchedulerClient. BaseURL and APIKey
// are both optional; a client missing either reports Configured() == false.
type SchedulerClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// BulkCancelResult is the scheduler's answer to a bulk cancel.
type BulkCancelResult struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

type bulkCancelEnvelope struct {
	Data BulkCancelResult `json:"data"`
}

// StatusCount is one bucket of the per-status job summary.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// JobSummary groups a campaign's jobs by status.
type JobSummary struct {
	ByStatus []StatusCount `json:"by_status"`
}

// JobRow is one scheduled job. ErrorDetails is passed through untouched
// because the scheduler sends either a string or an object.
type JobRow struct {
	ID           string          `json:"id"`
	Status       string          `json:"status"`
	ErrorDetails json.RawMessage `json:"error_details,omitempty"`
}

// ErrorText renders ErrorDetails for storage. JSON strings are unquoted,
// other values are kept as JSON text and null yields "".
func (r JobRow) ErrorText() string {
	raw := bytes.TrimSpace(r.ErrorDetails)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// JobStatusReport is the scheduler's view of one campaign.
type JobStatusReport struct {
	Summary JobSummary `json:"summary"`
	Rows    []JobRow   `json:"rows"`
}

// CountFor returns the number of jobs in status, 0 when no bucket exists.
func (r *JobStatusReport) CountFor(status string) int {
	total := 0
	for _, bucket := range r.Summary.ByStatus {
		if strings.EqualFold(bucket.Status, status) {
			total += bucket.Count
		}
	}
	return total
}

// PendingCount returns the size of the pending bucket.
func (r *JobStatusReport) PendingCount() int {
	return r.CountFor("pending")
}

type jobStatusEnvelope struct {
	Success bool            `json:"success"`
	Data    JobStatusReport `json:"data"`
}

// JobSchedulerClient talks to the external job scheduler over HTTP with
// bearer authentication.
type JobSchedulerClient struct {
	base    *BaseClient
	baseURL string
	apiKey  string
	logger  *slog.Logger
}

// NewJobSchedulerClient creates a client with its own BaseClient. A nil
// httpClient gets one with cfg.Timeout (DefaultSchedulerTimeout if unset).
func NewJobSchedulerClient(httpClient *http.Client, cfg SchedulerClientConfig) *JobSchedulerClient {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultSchedulerTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	base := NewBaseClient(
		httpClient,
		"job-scheduler",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    250 * time.Millisecond,
			MaxWait:    2 * time.Second,
		},
		"WACRM/1.0",
	)
	return NewJobSchedulerClientWithBase(base, cfg)
}

// NewJobSchedulerClientWithBase creates a client around a caller-built
// BaseClient, typically one with retries disabled in tests.
func NewJobSchedulerClientWithBase(base *BaseClient, cfg SchedulerClientConfig) *JobSchedulerClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobSchedulerClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		logger:  logger,
	}
}

// Configured reports whether both the base URL and the API key are set.
func (c *JobSchedulerClient) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

// CancelBatch POSTs ids as a JSON array to /jobs/cancel/batch.
func (c *JobSchedulerClient) CancelBatch(ctx context.Context, ids []string) (*BulkCancelResult, error) {
	if !c.Configured() {
		return nil, errNotConfigured()
	}
	if len(ids) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "at least one job id is required", nil)
	}

	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode job ids", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs/cancel/batch", bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create cancel request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.InfoContext(ctx, "cancelling scheduler jobs", "job_count", len(ids))

	var env bulkCancelEnvelope
	if err := c.do(req, "CancelBatch", &env); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "scheduler jobs cancelled",
		"accepted", env.Data.Accepted,
		"job_count", len(ids),
	)
	return &env.Data, nil
}

// GetJobStatus GETs /jobs/company_id={c}/schedule_id={s}.
func (c *JobSchedulerClient) GetJobStatus(ctx context.Context, companyID, scheduleID string) (*JobStatusReport, error) {
	if !c.Configured() {
		return nil, errNotConfigured()
	}
	if companyID == "" || scheduleID == "" {
		return nil, types.NewAppError(types.ErrCodeValidationMissingField, "company_id and schedule_id are required", nil)
	}

	endpoint := fmt.Sprintf("%s/jobs/company_id=%s/schedule_id=%s",
		c.baseURL, url.PathEscape(companyID), url.PathEscape(scheduleID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create status request", err)
	}

	var env jobStatusEnvelope
	if err := c.do(req, "GetJobStatus", &env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, types.NewAppError(types.ErrCodeUpstreamScheduler, "scheduler reported an unsuccessful status query", nil)
	}

	c.logger.DebugContext(ctx, "scheduler job status retrieved",
		"schedule_id", scheduleID,
		"rows", len(env.Data.Rows),
		"pending", env.Data.PendingCount(),
	)
	return &env.Data, nil
}

// do authenticates and sends req, then decodes a 2xx body into out.
func (c *JobSchedulerClient) do(req *http.Request, operation string, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return c.wrapError(operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.handleErrorResponse(resp, operation)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamScheduler, fmt.Sprintf("failed to decode scheduler %s response", operation), err)
	}
	return nil
}

func (c *JobSchedulerClient) handleErrorResponse(resp *http.Response, operation string) *types.AppError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	c.logger.Error("job scheduler API error",
		"operation", operation,
		"status_code", resp.StatusCode,
		"response_body", string(body),
	)

	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamScheduler,
		fmt.Sprintf("scheduler %s returned %d", operation, resp.StatusCode),
		fmt.Errorf("scheduler %s returned %d: %s", operation, resp.StatusCode, body),
		map[string]any{"status_code": resp.StatusCode},
	)
}

// wrapError recodes BaseClient failures as scheduler failures while keeping
// the original message and cause.
func (c *JobSchedulerClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if isAppError(err, &appErr) {
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamScheduler,
			fmt.Sprintf("scheduler %s: %s", operation, appErr.Message),
			appErr.Err,
			map[string]any{"cause": string(appErr.Code)},
		)
	}
	return types.NewAppError(types.ErrCodeUpstreamScheduler, fmt.Sprintf("scheduler %s failed", operation), err)
}

func errNotConfigured() *types.AppError {
	return types.NewAppError(types.ErrCodeUpstreamSchedulerNotConfig, "job scheduler is not configured (SCHEDULE_URL and JOBS_API_KEY)", nil)
}

func isAppError(err error, target **types.AppError) bool {
	return errors.As(err, target)
}

var _ JobScheduler = (*JobSchedulerClient)(nil)
