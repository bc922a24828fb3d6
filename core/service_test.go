package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func TestAuthorize_StoresCredentialBeforeRedirect(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)

	response, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID:          "tenant-7",
		ApplicationID:     "app-id",
		ApplicationSecret: "app-secret",
		UseSandbox:        true,
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if response.URL == "" || response.State == "" {
		t.Fatalf("expected consent url and state, got %+v", response)
	}
	if !strings.Contains(response.URL, response.State) {
		t.Fatalf("expected state %q in url %q", response.State, response.URL)
	}

	credential, found, err := store.Get(context.Background(), "tenant-7")
	if err != nil || !found {
		t.Fatalf("expected stored credential, found=%v err=%v", found, err)
	}
	if credential.ApplicationID != "app-id" || credential.ApplicationSecret != "app-secret" {
		t.Fatalf("credential not persisted before redirect: %+v", credential)
	}
	if credential.HasTokens {
		t.Fatalf("tokens must not exist before callback")
	}
	if !credential.UseSandbox {
		t.Fatalf("sandbox flag not persisted")
	}
}

func TestAuthorize_StateIsOpaqueAndSingleFlow(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)

	first, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a", ApplicationSecret: "s",
	})
	if err != nil {
		t.Fatalf("first authorize: %v", err)
	}
	second, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a", ApplicationSecret: "s",
	})
	if err != nil {
		t.Fatalf("second authorize: %v", err)
	}

	if first.State == second.State {
		t.Fatalf("states must be unique per authorization attempt")
	}
	if strings.Contains(first.State, "tenant-7") {
		t.Fatalf("state %q leaks the tenant id", first.State)
	}
}

func TestAuthorize_ValidatesInput(t *testing.T) {
	service := newTestService(t,
		WithCredentialStore(newMemCredentialStore()),
		WithTokenExchanger(&stubExchanger{}),
	)

	if _, err := service.Authorize(context.Background(), AuthorizeRequest{
		ApplicationID: "a", ApplicationSecret: "s",
	}); err == nil {
		t.Fatalf("expected missing tenant id to fail")
	}
	if _, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a",
	}); err == nil {
		t.Fatalf("expected missing secret to fail")
	}
}

func TestCompleteCallback_StoresEncryptedTokens(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	secrets := &recordingSecretProvider{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithSecretProvider(secrets),
	)

	credential := connectTestTenant(t, service, exchanger, "tenant-7")

	if !credential.HasTokens {
		t.Fatalf("expected tokens after callback")
	}
	if credential.TokenExpiresAt == nil {
		t.Fatalf("expected expiry to be recorded")
	}
	if secrets.encrypts != 1 {
		t.Fatalf("expected one encrypt call, got %d", secrets.encrypts)
	}
	payload := string(credential.EncryptedTokens)
	if !strings.HasPrefix(payload, "enc:") {
		t.Fatalf("token payload stored without encryption: %q", payload)
	}
	if exchanger.lastCode != "auth-code-tenant-7" {
		t.Fatalf("exchanged wrong code %q", exchanger.lastCode)
	}
}

func TestCompleteCallback_UnknownStateLeavesCredentialAlone(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)

	if _, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a", ApplicationSecret: "s",
	}); err != nil {
		t.Fatalf("authorize: %v", err)
	}

	_, err := service.CompleteCallback(context.Background(), CallbackRequest{
		State: "forged-state",
		Code:  "code",
	})
	if err == nil {
		t.Fatalf("expected forged state to be rejected")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != SquareErrorOAuthStateInvalid {
		t.Fatalf("expected oauth state error, got %v", err)
	}

	if _, found, _ := store.Get(context.Background(), "tenant-7"); !found {
		t.Fatalf("credential must survive a forged callback")
	}
	if exchanger.exchangeCalls != 0 {
		t.Fatalf("no exchange may happen for an unresolved state")
	}
}

func TestCompleteCallback_ProviderErrorDeletesCredential(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)

	response, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a", ApplicationSecret: "s",
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	_, err = service.CompleteCallback(context.Background(), CallbackRequest{
		State:            response.State,
		Error:            "access_denied",
		ErrorDescription: "merchant declined",
	})
	if err == nil {
		t.Fatalf("expected declined callback to fail")
	}

	if _, found, _ := store.Get(context.Background(), "tenant-7"); found {
		t.Fatalf("credential must be torn down after a declined callback")
	}
}

func TestCompleteCallback_ExchangeFailureDeletesCredential(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{exchangeErr: errors.New("gateway: authorization exchange rejected")}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)

	response, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a", ApplicationSecret: "s",
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if _, err = service.CompleteCallback(context.Background(), CallbackRequest{
		State: response.State,
		Code:  "bad-code",
	}); err == nil {
		t.Fatalf("expected exchange failure to surface")
	}
	if _, found, _ := store.Get(context.Background(), "tenant-7"); found {
		t.Fatalf("credential must be torn down after a failed exchange")
	}
}

func TestCompleteCallback_MissingCodeDeletesCredential(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)

	response, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a", ApplicationSecret: "s",
	})
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}

	if _, err = service.CompleteCallback(context.Background(), CallbackRequest{
		State: response.State,
	}); err == nil {
		t.Fatalf("expected missing code to fail")
	}
	if _, found, _ := store.Get(context.Background(), "tenant-7"); found {
		t.Fatalf("credential must be torn down when the code is missing")
	}
	if exchanger.exchangeCalls != 0 {
		t.Fatalf("exchange must not run without a code")
	}
}

func TestRefresh_RotatesStoredTokens(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	nextExpiry := time.Now().UTC().Add(45 * 24 * time.Hour)
	exchanger.refreshTokens = TokenPair{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    timePointer(nextExpiry),
	}

	credential, err := service.Refresh(context.Background(), "tenant-7")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !credential.HasTokens {
		t.Fatalf("expected tokens after refresh")
	}
	if credential.TokenExpiresAt == nil || !credential.TokenExpiresAt.Equal(nextExpiry) {
		t.Fatalf("expiry not rotated: %v", credential.TokenExpiresAt)
	}

	gw, err := service.ResolveGateway(context.Background(), "tenant-7")
	if err != nil {
		t.Fatalf("resolve after refresh: %v", err)
	}
	if gw.Tokens.AccessToken != "rotated-access" {
		t.Fatalf("gateway still carries the old access token %q", gw.Tokens.AccessToken)
	}
}

func TestRevoke_ClearsTokensKeepsApplication(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{revokeResult: true}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	revoked, err := service.Revoke(context.Background(), "tenant-7")
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if !revoked {
		t.Fatalf("expected provider revocation to be reported")
	}

	credential, found, _ := store.Get(context.Background(), "tenant-7")
	if !found {
		t.Fatalf("credential row must survive revocation")
	}
	if credential.HasTokens || credential.EncryptedTokens != nil || credential.TokenExpiresAt != nil {
		t.Fatalf("token material must be cleared: %+v", credential)
	}
	if credential.ApplicationID != "app-tenant-7" || credential.ApplicationSecret != "secret-tenant-7" {
		t.Fatalf("application credentials must be kept for reauthorization")
	}
}

func TestDeleteCredential_RemovesRow(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	if err := service.DeleteCredential(context.Background(), "tenant-7"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, _ := store.Get(context.Background(), "tenant-7"); found {
		t.Fatalf("expected row to be removed")
	}
}

func TestConfigureLocation_UpdatesOnlyLocation(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	credential, err := service.ConfigureLocation(context.Background(), ConfigureLocationRequest{
		TenantID:   "tenant-7",
		LocationID: "loc-9",
	})
	if err != nil {
		t.Fatalf("configure location: %v", err)
	}
	if credential.LocationID != "loc-9" {
		t.Fatalf("location = %q", credential.LocationID)
	}
	if !credential.HasTokens {
		t.Fatalf("token material must be untouched by a location change")
	}

	if _, err := service.ConfigureLocation(context.Background(), ConfigureLocationRequest{
		TenantID:   "tenant-unknown",
		LocationID: "loc-9",
	}); err == nil {
		t.Fatalf("expected unknown tenant to fail")
	}
}

func TestResolveGateway_WithoutCredentialFailsBeforeAnyNetworkCall(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	orders := &stubOrderGateway{}
	payments := &stubPaymentGateway{}
	locations := &stubLocationLister{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithSubmissionStore(newMemSubmissionStore()),
		WithTokenExchanger(exchanger),
		WithOrderGateway(orders),
		WithPaymentGateway(payments),
		WithLocationLister(locations),
	)

	_, err := service.ResolveGateway(context.Background(), "tenant-missing")
	if err == nil {
		t.Fatalf("expected resolve to fail without a credential")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != SquareErrorConfigMissing {
		t.Fatalf("expected config missing classification, got %v", err)
	}

	if _, err := service.ListActiveLocations(context.Background(), "tenant-missing"); err == nil {
		t.Fatalf("expected location listing to fail without a credential")
	}
	if _, err := service.SubmitOrder(context.Background(), SubmitOrderRequest{
		TenantID: "tenant-missing",
		Order:    Order{ID: "o-1", CurrencyCode: "USD", Lines: []OrderLine{{Name: "x", Quantity: 1, UnitPrice: 1}}},
	}); err == nil {
		t.Fatalf("expected submission to fail without a credential")
	}

	if exchanger.exchangeCalls+exchanger.refreshCalls+exchanger.revokeCalls != 0 {
		t.Fatalf("exchanger must not be called")
	}
	if orders.calls != 0 || payments.calls != 0 || locations.calls != 0 {
		t.Fatalf("no provider call may happen without a resolved credential")
	}
}

func TestResolveGateway_ObservesSettingsChangeBetweenCalls(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	before, err := service.ResolveGateway(context.Background(), "tenant-7")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if before.LocationID != "" {
		t.Fatalf("unexpected initial location %q", before.LocationID)
	}

	if _, err := service.ConfigureLocation(context.Background(), ConfigureLocationRequest{
		TenantID: "tenant-7", LocationID: "loc-2",
	}); err != nil {
		t.Fatalf("configure: %v", err)
	}

	after, err := service.ResolveGateway(context.Background(), "tenant-7")
	if err != nil {
		t.Fatalf("resolve after change: %v", err)
	}
	if after.LocationID != "loc-2" {
		t.Fatalf("expected fresh gateway to observe the new location, got %q", after.LocationID)
	}
}

func TestListActiveLocations_RequiresCompletedAuthorization(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	lister := &stubLocationLister{result: []Location{{ID: "loc-1", Status: "ACTIVE"}}}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithLocationLister(lister),
	)

	// Authorized but never completed the callback.
	if _, err := service.Authorize(context.Background(), AuthorizeRequest{
		TenantID: "tenant-7", ApplicationID: "a", ApplicationSecret: "s",
	}); err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if _, err := service.ListActiveLocations(context.Background(), "tenant-7"); err == nil {
		t.Fatalf("expected listing to fail before tokens exist")
	}
	if lister.calls != 0 {
		t.Fatalf("lister must not run for a tokenless tenant")
	}

	connectTestTenant(t, service, exchanger, "tenant-7")
	locations, err := service.ListActiveLocations(context.Background(), "tenant-7")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(locations) != 1 || locations[0].ID != "loc-1" {
		t.Fatalf("locations = %+v", locations)
	}
}
