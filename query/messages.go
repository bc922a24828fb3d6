package query

import (
	"fmt"
	"strings"
)

const (
	TypeGetCredential = "square.query.credential.get"
	TypeGetSubmission = "square.query.submission.get"
	TypeListLocations = "square.query.locations.list"
)

type GetCredentialMessage struct {
	TenantID string
}

func (GetCredentialMessage) Type() string { return TypeGetCredential }

func (m GetCredentialMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("query: tenant id is required")
	}
	return nil
}

type GetSubmissionMessage struct {
	TenantID string
	OrderID  string
}

func (GetSubmissionMessage) Type() string { return TypeGetSubmission }

func (m GetSubmissionMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("query: tenant id is required")
	}
	if strings.TrimSpace(m.OrderID) == "" {
		return fmt.Errorf("query: order id is required")
	}
	return nil
}

type ListLocationsMessage struct {
	TenantID string
}

func (ListLocationsMessage) Type() string { return TypeListLocations }

func (m ListLocationsMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return fmt.Errorf("query: tenant id is required")
	}
	return nil
}
