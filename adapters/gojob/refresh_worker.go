package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-square/core"

	glog "github.com/goliatone/go-logger/glog"
)

// RefreshService is the slice of the integration service the worker drives.
type RefreshService interface {
	Refresh(ctx context.Context, tenantID string) (core.Credential, error)
	RefreshExpiring(ctx context.Context) (core.RefreshExpiringResult, error)
}

// RefreshWorker drains refresh deliveries from a queue and executes them
// against the integration service. A sweep message renews every expiring
// credential; a tenant message renews one.
type RefreshWorker struct {
	service  RefreshService
	dequeuer core.JobDequeuer
	logger   glog.Logger
	policy   RetryPolicy
}

type RefreshWorkerOption func(*RefreshWorker)

func WithRefreshWorkerLogger(logger glog.Logger) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		w.logger = logger
	}
}

func WithRefreshWorkerPolicy(policy RetryPolicy) RefreshWorkerOption {
	return func(w *RefreshWorker) {
		w.policy = policy
	}
}

func NewRefreshWorker(service RefreshService, dequeuer core.JobDequeuer, opts ...RefreshWorkerOption) (*RefreshWorker, error) {
	if service == nil {
		return nil, fmt.Errorf("gojob: refresh service is required")
	}
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	worker := &RefreshWorker{
		service:  service,
		dequeuer: dequeuer,
		policy:   RetryPolicy{MaxAttempts: 3, MaxDelay: time.Minute, DeadLetterOnMax: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(worker)
		}
	}
	_, worker.logger = glog.Resolve("square-refresh-worker", nil, worker.logger)
	return worker, nil
}

// Run consumes deliveries until the context is canceled.
func (w *RefreshWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivery, err := w.dequeuer.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger.Error("refresh worker dequeue failed", "error", err)
			continue
		}
		w.ProcessDelivery(ctx, delivery)
	}
}

// ProcessDelivery executes a single delivery and acks or nacks it.
func (w *RefreshWorker) ProcessDelivery(ctx context.Context, delivery core.JobDelivery) {
	if delivery == nil {
		return
	}
	msg := delivery.Message()
	if err := w.execute(ctx, msg); err != nil {
		w.logger.Error("refresh job failed",
			"job_id", jobID(msg),
			"error", err,
		)
		nack := w.policy.NormalizeAttempt(core.JobNackOptions{
			Requeue: true,
			Delay:   w.policy.MaxDelay,
			Reason:  err.Error(),
		}, attemptOf(msg))
		if nackErr := delivery.Nack(ctx, nack); nackErr != nil {
			w.logger.Error("refresh job nack failed", "job_id", jobID(msg), "error", nackErr)
		}
		return
	}
	if ackErr := delivery.Ack(ctx); ackErr != nil {
		w.logger.Error("refresh job ack failed", "job_id", jobID(msg), "error", ackErr)
	}
}

func (w *RefreshWorker) execute(ctx context.Context, msg *core.JobExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("gojob: delivery carries no message")
	}
	switch msg.JobID {
	case core.RefreshJobID:
		result, err := w.service.RefreshExpiring(ctx)
		if err != nil {
			return err
		}
		w.logger.Info("refresh sweep finished",
			"scanned", result.Scanned,
			"refreshed", result.Refreshed,
			"failed", len(result.Failed),
		)
		return nil
	case core.RefreshTenantJobID:
		tenantID := core.RefreshTenantFromMessage(msg)
		if tenantID == "" {
			return fmt.Errorf("gojob: refresh message is missing tenant id")
		}
		_, err := w.service.Refresh(ctx, tenantID)
		return err
	default:
		return fmt.Errorf("gojob: unknown refresh job id %q", msg.JobID)
	}
}

func jobID(msg *core.JobExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return msg.JobID
}

func attemptOf(msg *core.JobExecutionMessage) int {
	if msg == nil || msg.Parameters == nil {
		return 0
	}
	attempt, _ := msg.Parameters["attempt"].(int)
	return attempt
}
