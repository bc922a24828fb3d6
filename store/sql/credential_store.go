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

// CredentialStore keeps one credential row per tenant. Upserts run in a
// transaction keyed on the tenant row so an authorization racing its
// callback cannot interleave partial writes.
type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*credentialRecord]
}

func (s *CredentialStore) Get(ctx context.Context, tenantID string) (core.Credential, bool, error) {
	if s == nil || s.repo == nil {
		return core.Credential{}, false, fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return core.Credential{}, false, fmt.Errorf("sqlstore: tenant id is required")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("tenant_id", "=", tenantID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credential{}, false, err
	}
	if len(records) == 0 {
		return core.Credential{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *CredentialStore) Upsert(ctx context.Context, in core.UpsertCredentialInput) (core.Credential, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	in.TenantID = strings.TrimSpace(in.TenantID)
	in.ApplicationID = strings.TrimSpace(in.ApplicationID)
	in.ApplicationSecret = strings.TrimSpace(in.ApplicationSecret)
	in.LocationID = strings.TrimSpace(in.LocationID)
	if in.TenantID == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	if in.ApplicationID == "" || in.ApplicationSecret == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: application id and secret are required")
	}

	now := time.Now().UTC()
	var saved core.Credential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &credentialRecord{}
		findErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.tenant_id = ?", in.TenantID).
			Limit(1).
			Scan(ctx)
		if findErr != nil {
			if !errors.Is(findErr, sql.ErrNoRows) {
				return findErr
			}
			record := newCredentialRecord(in, uuid.New().String(), now)
			inserted, createErr := s.repo.CreateTx(ctx, tx, record)
			if createErr != nil {
				return createErr
			}
			saved = inserted.toDomain()
			return nil
		}

		existing.ApplicationID = in.ApplicationID
		existing.ApplicationSecret = in.ApplicationSecret
		existing.EncryptedTokens = append([]byte(nil), in.EncryptedTokens...)
		existing.HasTokens = in.HasTokens
		existing.TokenExpiresAt = cloneTimePointer(in.TokenExpiresAt)
		existing.UseSandbox = in.UseSandbox
		existing.LocationID = in.LocationID
		existing.UpdatedAt = now

		if _, updateErr := tx.NewUpdate().
			Model(existing).
			WherePK().
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		saved = existing.toDomain()
		return nil
	})
	if err != nil {
		return core.Credential{}, err
	}
	return saved, nil
}

func (s *CredentialStore) Delete(ctx context.Context, tenantID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return fmt.Errorf("sqlstore: tenant id is required")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("tenant_id = ?", tenantID).
		Exec(ctx)
	return err
}

func (s *CredentialStore) ListExpiring(ctx context.Context, before time.Time) ([]core.Credential, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.has_tokens = ?", true)
		}),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.token_expires_at < ?", before.UTC())
		}),
		repository.OrderBy("token_expires_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	credentials := make([]core.Credential, 0, len(records))
	for _, record := range records {
		credentials = append(credentials, record.toDomain())
	}
	return credentials, nil
}
