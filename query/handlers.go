package query

import (
	"context"
	"time"

	"github.com/goliatone/go-square/core"
)

type CredentialReader interface {
	GetCredential(ctx context.Context, tenantID string) (core.Credential, bool, error)
}

type SubmissionReader interface {
	GetSubmission(ctx context.Context, tenantID string, orderID string) (core.Submission, bool, error)
}

type LocationReader interface {
	ListActiveLocations(ctx context.Context, tenantID string) ([]core.Location, error)
}

// CredentialView is the read projection of a stored credential. Secret
// material never leaves the service through queries; the view only says
// whether tokens exist and when they expire.
type CredentialView struct {
	TenantID       string
	ApplicationID  string
	Environment    core.Environment
	Connected      bool
	TokenExpiresAt *time.Time
	LocationID     string
	UpdatedAt      time.Time
}

func newCredentialView(credential core.Credential) CredentialView {
	return CredentialView{
		TenantID:       credential.TenantID,
		ApplicationID:  credential.ApplicationID,
		Environment:    credential.Environment(),
		Connected:      credential.HasTokens,
		TokenExpiresAt: credential.TokenExpiresAt,
		LocationID:     credential.LocationID,
		UpdatedAt:      credential.UpdatedAt,
	}
}

type GetCredentialQuery struct {
	reader CredentialReader
}

func NewGetCredentialQuery(reader CredentialReader) *GetCredentialQuery {
	return &GetCredentialQuery{reader: reader}
}

func (q *GetCredentialQuery) Query(ctx context.Context, msg GetCredentialMessage) (CredentialView, error) {
	if q == nil || q.reader == nil {
		return CredentialView{}, queryDependencyError("query: credential reader is required")
	}
	credential, found, err := q.reader.GetCredential(ctx, msg.TenantID)
	if err != nil {
		return CredentialView{}, err
	}
	if !found {
		return CredentialView{}, queryNotFoundError("query: credential not found for tenant " + msg.TenantID)
	}
	return newCredentialView(credential), nil
}

type GetSubmissionQuery struct {
	reader SubmissionReader
}

func NewGetSubmissionQuery(reader SubmissionReader) *GetSubmissionQuery {
	return &GetSubmissionQuery{reader: reader}
}

func (q *GetSubmissionQuery) Query(ctx context.Context, msg GetSubmissionMessage) (core.Submission, error) {
	if q == nil || q.reader == nil {
		return core.Submission{}, queryDependencyError("query: submission reader is required")
	}
	submission, found, err := q.reader.GetSubmission(ctx, msg.TenantID, msg.OrderID)
	if err != nil {
		return core.Submission{}, err
	}
	if !found {
		return core.Submission{}, queryNotFoundError("query: submission not found for order " + msg.OrderID)
	}
	return submission, nil
}

type ListLocationsQuery struct {
	reader LocationReader
}

func NewListLocationsQuery(reader LocationReader) *ListLocationsQuery {
	return &ListLocationsQuery{reader: reader}
}

func (q *ListLocationsQuery) Query(ctx context.Context, msg ListLocationsMessage) ([]core.Location, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: location reader is required")
	}
	return q.reader.ListActiveLocations(ctx, msg.TenantID)
}
