package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type UpsertCredentialInput struct {
	TenantID          string
	ApplicationID     string
	ApplicationSecret string
	EncryptedTokens   []byte
	HasTokens         bool
	TokenExpiresAt    *time.Time
	UseSandbox        bool
	LocationID        string
}

// CredentialStore persists one credential row per tenant. Upsert and Delete
// for the same tenant must be serialized by the implementation so an
// authorization racing its callback cannot produce a lost update.
type CredentialStore interface {
	Get(ctx context.Context, tenantID string) (Credential, bool, error)
	Upsert(ctx context.Context, in UpsertCredentialInput) (Credential, error)
	Delete(ctx context.Context, tenantID string) error
	ListExpiring(ctx context.Context, before time.Time) ([]Credential, error)
}

type BeginSubmissionInput struct {
	TenantID string
	OrderID  string
}

type SubmissionUpdate struct {
	Status          SubmissionStatus
	ExternalOrderID string
	PaymentID       string
	Detail          string
}

// SubmissionStore keeps the per-order submission ledger.
type SubmissionStore interface {
	Begin(ctx context.Context, in BeginSubmissionInput) (Submission, error)
	Transition(ctx context.Context, id string, update SubmissionUpdate) (Submission, error)
	GetByOrder(ctx context.Context, tenantID string, orderID string) (Submission, bool, error)
}

type StoreProvider interface {
	CredentialStore() CredentialStore
	SubmissionStore() SubmissionStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// Gateway is an immutable, fully-resolved view of one tenant's connection to
// Square: credentials, plaintext tokens, environment. A fresh value is built
// per call so a settings change between requests is always observed.
type Gateway struct {
	TenantID    string
	Environment Environment
	Credential  Credential
	Tokens      TokenPair
	LocationID  string
}

// TokenExchanger performs the OAuth leg against Square's connect endpoints.
type TokenExchanger interface {
	BuildAuthorizationURL(env Environment, applicationID string, scopes []string, state string) (string, error)
	ExchangeCode(ctx context.Context, gw Gateway, authorizationCode string) (TokenPair, error)
	Refresh(ctx context.Context, gw Gateway) (TokenPair, error)
	Revoke(ctx context.Context, gw Gateway) (bool, error)
}

type ExternalOrderRequest struct {
	IdempotencyKey string
	LocationID     string
	ReferenceID    string
	LineItems      []ExternalLineItem
	Pickup         PickupFulfillment
}

type PickupFulfillment struct {
	RecipientDisplayName string
	PickupAt             string
	State                string
}

type ExternalPaymentRequest struct {
	IdempotencyKey string
	LocationID     string
	OrderID        string
	Amount         Money
	SourceID       string
	ExternalSource string
}

// OrderGateway creates orders on the provider side.
type OrderGateway interface {
	CreateOrder(ctx context.Context, gw Gateway, req ExternalOrderRequest) (ExternalOrder, error)
}

// PaymentGateway creates payments on the provider side.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, gw Gateway, req ExternalPaymentRequest) (ExternalPayment, error)
}

// LocationLister lists the tenant's locations that can process payments.
type LocationLister interface {
	ListActive(ctx context.Context, gw Gateway) ([]Location, error)
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type AuthorizeRequest struct {
	TenantID          string
	ApplicationID     string
	ApplicationSecret string
	UseSandbox        bool
	LocationID        string
}

type AuthorizeResponse struct {
	URL   string
	State string
}

type CallbackRequest struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

type SubmitOrderRequest struct {
	TenantID string
	Order    Order
}

type SubmissionResult struct {
	Status       SubmissionStatus
	Order        ExternalOrder
	Payment      *ExternalPayment
	PaymentError string
}

type ConfigureLocationRequest struct {
	TenantID   string
	LocationID string
}

// IntegrationService is the full operation surface the root package
// re-exports.
type IntegrationService interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (AuthorizeResponse, error)
	CompleteCallback(ctx context.Context, req CallbackRequest) (Credential, error)
	Refresh(ctx context.Context, tenantID string) (Credential, error)
	RunRefreshWithRetry(ctx context.Context, tenantID string, opts RefreshRunOptions) (RefreshRunResult, error)
	RefreshExpiring(ctx context.Context) (RefreshExpiringResult, error)
	Revoke(ctx context.Context, tenantID string) (bool, error)
	DeleteCredential(ctx context.Context, tenantID string) error
	GetCredential(ctx context.Context, tenantID string) (Credential, bool, error)
	ConfigureLocation(ctx context.Context, req ConfigureLocationRequest) (Credential, error)
	ResolveGateway(ctx context.Context, tenantID string) (Gateway, error)
	ListActiveLocations(ctx context.Context, tenantID string) ([]Location, error)
	SubmitOrder(ctx context.Context, req SubmitOrderRequest) (SubmissionResult, error)
	GetSubmission(ctx context.Context, tenantID string, orderID string) (Submission, bool, error)
}
