package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidEnvironment          = errors.New("core: invalid environment")
	ErrInvalidSubmissionTransition = errors.New("core: invalid submission status transition")
	ErrCredentialNotFound          = errors.New("core: credential not found")
	ErrSubmissionNotFound          = errors.New("core: submission not found")
)

// Error kinds wrapped by gateway implementations so failures classify by
// identity instead of message text.
var (
	ErrTransport    = errors.New("core: request failed in transit")
	ErrAuthExchange = errors.New("core: authorization exchange rejected")
	ErrProviderAPI  = errors.New("core: provider api rejected the request")
	ErrEmptyReply   = errors.New("core: no service response")
)

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

func (e Environment) Validate() error {
	switch e {
	case EnvironmentSandbox, EnvironmentProduction:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidEnvironment, string(e))
}

// EnvironmentFor maps the per-tenant sandbox flag onto a gateway environment.
func EnvironmentFor(useSandbox bool) Environment {
	if useSandbox {
		return EnvironmentSandbox
	}
	return EnvironmentProduction
}

// Credential holds one tenant's Square application and token material.
// Token values are stored encrypted; the plaintext payload only exists in
// memory after a SecretProvider round trip.
type Credential struct {
	ID                string
	TenantID          string
	ApplicationID     string
	ApplicationSecret string
	EncryptedTokens   []byte
	HasTokens         bool
	TokenExpiresAt    *time.Time
	UseSandbox        bool
	LocationID        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (c Credential) Environment() Environment {
	return EnvironmentFor(c.UseSandbox)
}

// TokenPair is the result of a successful code exchange or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

func (t TokenPair) Complete() bool {
	return strings.TrimSpace(t.AccessToken) != "" && strings.TrimSpace(t.RefreshToken) != ""
}

// Order is the internal order projection handed to the submission flow. The
// host platform owns the order; this type carries only what Square needs.
type Order struct {
	ID            string
	ReferenceID   string
	CustomerEmail string
	CurrencyCode  string
	Lines         []OrderLine
}

type OrderLine struct {
	Name      string
	Quantity  int
	Note      string
	UnitPrice float64
}

// ExternalOrder is a read-only projection of an order owned by Square.
type ExternalOrder struct {
	ID          string
	ReferenceID string
	LocationID  string
	TotalMoney  Money
	LineItems   []ExternalLineItem
}

type ExternalLineItem struct {
	Name     string
	Quantity int
	Note     string
	Amount   Money
}

// Money is an amount in minor currency units, matching the provider's
// integer convention.
type Money struct {
	Amount   int64
	Currency string
}

// ExternalPayment is a read-only projection of a payment owned by Square.
type ExternalPayment struct {
	ID       string
	OrderID  string
	Amount   Money
	SourceID string
	Status   string
}

// Location is one Square location able to take orders.
type Location struct {
	ID           string
	Name         string
	Status       string
	Capabilities []string
}

type SubmissionStatus string

const (
	SubmissionStatusNotSubmitted   SubmissionStatus = "not_submitted"
	SubmissionStatusOrderCreated   SubmissionStatus = "order_created"
	SubmissionStatusPaymentCreated SubmissionStatus = "payment_created"
	SubmissionStatusPaymentFailed  SubmissionStatus = "payment_failed"
)

// Submission tracks one internal order's journey to Square. The payment
// request is derived from the created external order, so the two calls are
// strictly sequential; payment_failed is terminal and leaves the external
// order in place.
type Submission struct {
	ID              string
	TenantID        string
	OrderID         string
	ExternalOrderID string
	PaymentID       string
	Status          SubmissionStatus
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Terminal reports whether the status admits no further transitions.
func (s SubmissionStatus) Terminal() bool {
	return s == SubmissionStatusPaymentCreated || s == SubmissionStatusPaymentFailed
}

func (s *Submission) TransitionTo(status SubmissionStatus, detail string, now time.Time) error {
	if s == nil {
		return nil
	}
	if s.Status == status {
		s.UpdatedAt = now
		if strings.TrimSpace(detail) != "" {
			s.LastError = strings.TrimSpace(detail)
		}
		return nil
	}
	if !submissionTransitionAllowed(s.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSubmissionTransition, s.Status, status)
	}
	s.Status = status
	s.UpdatedAt = now
	if strings.TrimSpace(detail) != "" {
		s.LastError = strings.TrimSpace(detail)
	}
	if status == SubmissionStatusPaymentCreated {
		s.LastError = ""
	}
	return nil
}

func submissionTransitionAllowed(current, next SubmissionStatus) bool {
	allowed := map[SubmissionStatus]map[SubmissionStatus]struct{}{
		SubmissionStatusNotSubmitted: {
			SubmissionStatusOrderCreated: {},
		},
		SubmissionStatusOrderCreated: {
			SubmissionStatusPaymentCreated: {},
			SubmissionStatusPaymentFailed:  {},
		},
		SubmissionStatusPaymentCreated: {},
		SubmissionStatusPaymentFailed:  {},
	}
	_, ok := allowed[current][next]
	return ok
}
