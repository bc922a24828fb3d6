package core

import (
	"context"
	"strings"
	"time"
)

// JobExecutionMessage is the runtime-neutral payload handed to background
// workers. The queue adapter maps it to the concrete job runtime.
type JobExecutionMessage struct {
	JobID          string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

const (
	// RefreshJobID names the scheduled sweep that renews tokens nearing
	// expiry across every tenant.
	RefreshJobID = "square.credentials.refresh"
	// RefreshTenantJobID names a single-tenant refresh, enqueued when a
	// caller wants one credential renewed out of band.
	RefreshTenantJobID = "square.credentials.refresh.tenant"

	refreshJobTenantParam = "tenant_id"
)

// NewRefreshSweepMessage builds the execution message for a full expiring
// credential sweep. The idempotency key buckets duplicate enqueues within
// the same hour.
func NewRefreshSweepMessage(now time.Time) *JobExecutionMessage {
	return &JobExecutionMessage{
		JobID:          RefreshJobID,
		Parameters:     map[string]any{},
		IdempotencyKey: RefreshJobID + ":" + now.UTC().Format("2006-01-02T15"),
	}
}

// NewRefreshTenantMessage builds the execution message for a single tenant
// refresh.
func NewRefreshTenantMessage(tenantID string) *JobExecutionMessage {
	tenantID = strings.TrimSpace(tenantID)
	return &JobExecutionMessage{
		JobID:          RefreshTenantJobID,
		Parameters:     map[string]any{refreshJobTenantParam: tenantID},
		IdempotencyKey: RefreshTenantJobID + ":" + tenantID,
	}
}

// RefreshTenantFromMessage extracts the tenant identifier from a refresh
// execution message.
func RefreshTenantFromMessage(msg *JobExecutionMessage) string {
	if msg == nil || msg.Parameters == nil {
		return ""
	}
	tenantID, _ := msg.Parameters[refreshJobTenantParam].(string)
	return strings.TrimSpace(tenantID)
}
