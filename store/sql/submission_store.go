package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-square/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SubmissionStore keeps the per-order submission ledger. Begin is
// idempotent on (tenant, order) so a retried submission reuses the
// existing row instead of forking the ledger.
type SubmissionStore struct {
	db   *bun.DB
	repo repository.Repository[*submissionRecord]
}

func (s *SubmissionStore) Begin(ctx context.Context, in core.BeginSubmissionInput) (core.Submission, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Submission{}, fmt.Errorf("sqlstore: submission store is not configured")
	}
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.OrderID = strings.TrimSpace(in.OrderID)
	if in.TenantID == "" || in.OrderID == "" {
		return core.Submission{}, fmt.Errorf("sqlstore: tenant id and order id are required")
	}

	now := time.Now().UTC()
	var begun core.Submission
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &submissionRecord{}
		findErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.tenant_id = ?", in.TenantID).
			Where("?TableAlias.order_id = ?", in.OrderID).
			Limit(1).
			Scan(ctx)
		if findErr == nil {
			begun = existing.toDomain()
			return nil
		}
		if !errors.Is(findErr, sql.ErrNoRows) {
			return findErr
		}

		record := newSubmissionRecord(in, uuid.New().String(), now)
		inserted, createErr := s.repo.CreateTx(ctx, tx, record)
		if createErr != nil {
			return createErr
		}
		begun = inserted.toDomain()
		return nil
	})
	if err != nil {
		return core.Submission{}, err
	}
	return begun, nil
}

func (s *SubmissionStore) Transition(ctx context.Context, id string, update core.SubmissionUpdate) (core.Submission, error) {
	if s == nil || s.db == nil {
		return core.Submission{}, fmt.Errorf("sqlstore: submission store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Submission{}, fmt.Errorf("sqlstore: submission id is required")
	}

	now := time.Now().UTC()
	var transitioned core.Submission
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &submissionRecord{}
		findErr := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", id).
			Limit(1).
			Scan(ctx)
		if findErr != nil {
			if errors.Is(findErr, sql.ErrNoRows) {
				return fmt.Errorf("%w: id %q", core.ErrSubmissionNotFound, id)
			}
			return findErr
		}

		submission := record.toDomain()
		if transitionErr := submission.TransitionTo(update.Status, update.Detail, now); transitionErr != nil {
			return transitionErr
		}
		if externalOrderID := strings.TrimSpace(update.ExternalOrderID); externalOrderID != "" {
			submission.ExternalOrderID = externalOrderID
		}
		if paymentID := strings.TrimSpace(update.PaymentID); paymentID != "" {
			submission.PaymentID = paymentID
		}

		record.ExternalOrderID = submission.ExternalOrderID
		record.PaymentID = submission.PaymentID
		record.Status = string(submission.Status)
		record.LastError = submission.LastError
		record.UpdatedAt = submission.UpdatedAt

		if _, updateErr := tx.NewUpdate().
			Model(record).
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		transitioned = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Submission{}, err
	}
	return transitioned, nil
}

func (s *SubmissionStore) GetByOrder(ctx context.Context, tenantID string, orderID string) (core.Submission, bool, error) {
	if s == nil || s.repo == nil {
		return core.Submission{}, false, fmt.Errorf("sqlstore: submission store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	orderID = strings.TrimSpace(orderID)
	if tenantID == "" || orderID == "" {
		return core.Submission{}, false, fmt.Errorf("sqlstore: tenant id and order id are required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", tenantID),
		repository.SelectBy("order_id", "=", orderID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Submission{}, false, err
	}
	if len(records) == 0 {
		return core.Submission{}, false, nil
	}
	return records[0].toDomain(), true, nil
}
