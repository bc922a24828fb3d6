package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type memCredentialStore struct {
	mu       sync.Mutex
	byTenant map[string]Credential
	upserts  int
	deletes  int

	failGet    error
	failUpsert error
	failDelete error
}

func newMemCredentialStore() *memCredentialStore {
	return &memCredentialStore{byTenant: map[string]Credential{}}
}

func (s *memCredentialStore) Get(_ context.Context, tenantID string) (Credential, bool, error) {
	if s.failGet != nil {
		return Credential{}, false, s.failGet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.byTenant[strings.TrimSpace(tenantID)]
	return credential, ok, nil
}

func (s *memCredentialStore) Upsert(_ context.Context, in UpsertCredentialInput) (Credential, error) {
	if s.failUpsert != nil {
		return Credential{}, s.failUpsert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++

	now := time.Now().UTC()
	credential, ok := s.byTenant[in.TenantID]
	if !ok {
		credential = Credential{
			ID:        fmt.Sprintf("cred-%d", len(s.byTenant)+1),
			TenantID:  in.TenantID,
			CreatedAt: now,
		}
	}
	credential.ApplicationID = in.ApplicationID
	credential.ApplicationSecret = in.ApplicationSecret
	credential.EncryptedTokens = in.EncryptedTokens
	credential.HasTokens = in.HasTokens
	credential.TokenExpiresAt = in.TokenExpiresAt
	credential.UseSandbox = in.UseSandbox
	credential.LocationID = in.LocationID
	credential.UpdatedAt = now
	s.byTenant[in.TenantID] = credential
	return credential, nil
}

func (s *memCredentialStore) Delete(_ context.Context, tenantID string) error {
	if s.failDelete != nil {
		return s.failDelete
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.byTenant, strings.TrimSpace(tenantID))
	return nil
}

func (s *memCredentialStore) ListExpiring(_ context.Context, before time.Time) ([]Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Credential
	for _, credential := range s.byTenant {
		if !credential.HasTokens || credential.TokenExpiresAt == nil {
			continue
		}
		if credential.TokenExpiresAt.Before(before) {
			out = append(out, credential)
		}
	}
	return out, nil
}

type memSubmissionStore struct {
	mu     sync.Mutex
	byID   map[string]*Submission
	nextID int
}

func newMemSubmissionStore() *memSubmissionStore {
	return &memSubmissionStore{byID: map[string]*Submission{}}
}

func (s *memSubmissionStore) Begin(_ context.Context, in BeginSubmissionInput) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, submission := range s.byID {
		if submission.TenantID == in.TenantID && submission.OrderID == in.OrderID {
			return *submission, nil
		}
	}
	s.nextID++
	submission := &Submission{
		ID:        fmt.Sprintf("sub-%d", s.nextID),
		TenantID:  in.TenantID,
		OrderID:   in.OrderID,
		Status:    SubmissionStatusNotSubmitted,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	s.byID[submission.ID] = submission
	return *submission, nil
}

func (s *memSubmissionStore) Transition(_ context.Context, id string, update SubmissionUpdate) (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	submission, ok := s.byID[id]
	if !ok {
		return Submission{}, fmt.Errorf("%w: %q", ErrSubmissionNotFound, id)
	}
	if err := submission.TransitionTo(update.Status, update.Detail, time.Now().UTC()); err != nil {
		return Submission{}, err
	}
	if strings.TrimSpace(update.ExternalOrderID) != "" {
		submission.ExternalOrderID = update.ExternalOrderID
	}
	if strings.TrimSpace(update.PaymentID) != "" {
		submission.PaymentID = update.PaymentID
	}
	return *submission, nil
}

func (s *memSubmissionStore) GetByOrder(_ context.Context, tenantID, orderID string) (Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, submission := range s.byID {
		if submission.TenantID == tenantID && submission.OrderID == orderID {
			return *submission, true, nil
		}
	}
	return Submission{}, false, nil
}

type stubExchanger struct {
	mu sync.Mutex

	exchangeTokens TokenPair
	exchangeErr    error
	refreshTokens  TokenPair
	refreshErr     error
	// When positive, Refresh fails refreshFailures times with
	// refreshFailureErr before the configured tokens are returned.
	refreshFailures   int
	refreshFailureErr error
	revokeResult      bool
	revokeErr         error

	buildCalls    int
	exchangeCalls int
	refreshCalls  int
	revokeCalls   int
	lastState     string
	lastCode      string
}

func (e *stubExchanger) BuildAuthorizationURL(env Environment, applicationID string, scopes []string, state string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buildCalls++
	e.lastState = state
	return fmt.Sprintf("https://connect.example.test/oauth2/authorize?client_id=%s&state=%s&env=%s&scopes=%d",
		applicationID, state, env, len(scopes)), nil
}

func (e *stubExchanger) ExchangeCode(_ context.Context, _ Gateway, code string) (TokenPair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.exchangeCalls++
	e.lastCode = code
	if e.exchangeErr != nil {
		return TokenPair{}, e.exchangeErr
	}
	return e.exchangeTokens, nil
}

func (e *stubExchanger) Refresh(_ context.Context, _ Gateway) (TokenPair, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshCalls++
	if e.refreshFailures > 0 {
		e.refreshFailures--
		return TokenPair{}, e.refreshFailureErr
	}
	if e.refreshErr != nil {
		return TokenPair{}, e.refreshErr
	}
	return e.refreshTokens, nil
}

func (e *stubExchanger) Revoke(_ context.Context, _ Gateway) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.revokeCalls++
	if e.revokeErr != nil {
		return false, e.revokeErr
	}
	return e.revokeResult, nil
}

type stubOrderGateway struct {
	result  ExternalOrder
	err     error
	calls   int
	lastReq ExternalOrderRequest
	lastGW  Gateway
}

func (g *stubOrderGateway) CreateOrder(_ context.Context, gw Gateway, req ExternalOrderRequest) (ExternalOrder, error) {
	g.calls++
	g.lastReq = req
	g.lastGW = gw
	if g.err != nil {
		return ExternalOrder{}, g.err
	}
	return g.result, nil
}

type stubPaymentGateway struct {
	result  ExternalPayment
	err     error
	calls   int
	lastReq ExternalPaymentRequest
}

func (g *stubPaymentGateway) CreatePayment(_ context.Context, _ Gateway, req ExternalPaymentRequest) (ExternalPayment, error) {
	g.calls++
	g.lastReq = req
	if g.err != nil {
		return ExternalPayment{}, g.err
	}
	return g.result, nil
}

type stubLocationLister struct {
	result []Location
	err    error
	calls  int
}

func (l *stubLocationLister) ListActive(_ context.Context, _ Gateway) ([]Location, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	return l.result, nil
}

type recordingSecretProvider struct {
	encrypts int
	decrypts int
}

func (p *recordingSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	p.encrypts++
	return append([]byte("enc:"), plaintext...), nil
}

func (p *recordingSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	p.decrypts++
	return []byte(strings.TrimPrefix(string(ciphertext), "enc:")), nil
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	service, err := NewService(DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func timePointer(value time.Time) *time.Time {
	return &value
}

func connectTestTenant(t *testing.T, service *Service, exchanger *stubExchanger, tenantID string) Credential {
	t.Helper()
	exchanger.exchangeTokens = TokenPair{
		AccessToken:  "access-" + tenantID,
		RefreshToken: "refresh-" + tenantID,
		ExpiresAt:    timePointer(time.Now().UTC().Add(30 * 24 * time.Hour)),
	}

	response, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID:          tenantID,
		ApplicationID:     "app-" + tenantID,
		ApplicationSecret: "secret-" + tenantID,
		UseSandbox:        true,
	})
	if err != nil {
		t.Fatalf("authorize tenant %s: %v", tenantID, err)
	}
	credential, err := service.CompleteCallback(context.Background(), CallbackRequest{
		State: response.State,
		Code:  "auth-code-" + tenantID,
	})
	if err != nil {
		t.Fatalf("complete callback tenant %s: %v", tenantID, err)
	}
	return credential
}
