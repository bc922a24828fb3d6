package sqlstore

import (
	"time"

	"github.com/goliatone/go-square/core"
)

func newCredentialRecord(in core.UpsertCredentialInput, id string, now time.Time) *credentialRecord {
	record := &credentialRecord{
		ID:                id,
		TenantID:          in.TenantID,
		ApplicationID:     in.ApplicationID,
		ApplicationSecret: in.ApplicationSecret,
		EncryptedTokens:   append([]byte(nil), in.EncryptedTokens...),
		HasTokens:         in.HasTokens,
		TokenExpiresAt:    cloneTimePointer(in.TokenExpiresAt),
		UseSandbox:        in.UseSandbox,
		LocationID:        in.LocationID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return record
}

func (r *credentialRecord) toDomain() core.Credential {
	if r == nil {
		return core.Credential{}
	}
	return core.Credential{
		ID:                r.ID,
		TenantID:          r.TenantID,
		ApplicationID:     r.ApplicationID,
		ApplicationSecret: r.ApplicationSecret,
		EncryptedTokens:   append([]byte(nil), r.EncryptedTokens...),
		HasTokens:         r.HasTokens,
		TokenExpiresAt:    cloneTimePointer(r.TokenExpiresAt),
		UseSandbox:        r.UseSandbox,
		LocationID:        r.LocationID,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func newSubmissionRecord(in core.BeginSubmissionInput, id string, now time.Time) *submissionRecord {
	return &submissionRecord{
		ID:        id,
		TenantID:  in.TenantID,
		OrderID:   in.OrderID,
		Status:    string(core.SubmissionStatusNotSubmitted),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (r *submissionRecord) toDomain() core.Submission {
	if r == nil {
		return core.Submission{}
	}
	return core.Submission{
		ID:              r.ID,
		TenantID:        r.TenantID,
		OrderID:         r.OrderID,
		ExternalOrderID: r.ExternalOrderID,
		PaymentID:       r.PaymentID,
		Status:          core.SubmissionStatus(r.Status),
		LastError:       r.LastError,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func cloneTimePointer(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := value.UTC()
	return &clone
}
