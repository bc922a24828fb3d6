package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type immediateScheduler struct{}

func (immediateScheduler) NextDelay(int) time.Duration { return 0 }

func TestExponentialBackoffScheduler(t *testing.T) {
	scheduler := ExponentialBackoffScheduler{Initial: 500 * time.Millisecond, Max: 10 * time.Second}

	if got := scheduler.NextDelay(1); got != 500*time.Millisecond {
		t.Fatalf("attempt 1 delay = %v", got)
	}
	if got := scheduler.NextDelay(2); got != time.Second {
		t.Fatalf("attempt 2 delay = %v", got)
	}
	if got := scheduler.NextDelay(3); got != 2*time.Second {
		t.Fatalf("attempt 3 delay = %v", got)
	}
	if got := scheduler.NextDelay(20); got != 10*time.Second {
		t.Fatalf("delay must cap at max, got %v", got)
	}
	if got := scheduler.NextDelay(0); got != 500*time.Millisecond {
		t.Fatalf("attempt below 1 clamps to initial, got %v", got)
	}
}

func TestRunRefreshWithRetry_RetriesTransientFailures(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithRefreshBackoffScheduler(immediateScheduler{}),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	exchanger.refreshFailureErr = errors.New("request failed in transit")
	exchanger.refreshFailures = 2
	exchanger.refreshTokens = TokenPair{AccessToken: "a2", RefreshToken: "r2"}

	result, err := service.RunRefreshWithRetry(context.Background(), "tenant-7", RefreshRunOptions{MaxAttempts: 5})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if result.Attempts != 3 {
		t.Fatalf("expected success on the third attempt, got %d", result.Attempts)
	}
	if result.NeedsReauth {
		t.Fatalf("successful refresh must not flag reauth")
	}
}

func TestRunRefreshWithRetry_AuthFailureShortCircuits(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithRefreshBackoffScheduler(immediateScheduler{}),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	exchanger.refreshErr = errors.New("invalid_grant: refresh token revoked")

	result, err := service.RunRefreshWithRetry(context.Background(), "tenant-7", RefreshRunOptions{MaxAttempts: 5})
	if err == nil {
		t.Fatalf("expected auth failure to surface")
	}
	if result.Attempts != 1 {
		t.Fatalf("auth failures must not be retried, got %d attempts", result.Attempts)
	}
	if !result.NeedsReauth {
		t.Fatalf("expected the reauth flag")
	}
}

func TestRunRefreshWithRetry_ExhaustionFlagsReauth(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithRefreshBackoffScheduler(immediateScheduler{}),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	exchanger.refreshErr = errors.New("request failed in transit")

	result, err := service.RunRefreshWithRetry(context.Background(), "tenant-7", RefreshRunOptions{MaxAttempts: 3})
	if err == nil {
		t.Fatalf("expected exhaustion to fail")
	}
	if result.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", result.Attempts)
	}
	if !result.NeedsReauth {
		t.Fatalf("expected the reauth flag after exhaustion")
	}
}

func TestRunRefreshWithRetry_LockPreventsConcurrentRefresh(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	locker := NewMemoryTenantLocker()
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithTenantLocker(locker),
		WithRefreshBackoffScheduler(immediateScheduler{}),
	)
	connectTestTenant(t, service, exchanger, "tenant-7")

	held, err := locker.Acquire(context.Background(), "tenant-7", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := service.RunRefreshWithRetry(context.Background(), "tenant-7", RefreshRunOptions{}); err == nil {
		t.Fatalf("expected a held lock to reject the run")
	}
	var richErr *goerrors.Error
	_, err = service.RunRefreshWithRetry(context.Background(), "tenant-7", RefreshRunOptions{})
	if !goerrors.As(err, &richErr) || richErr.TextCode != SquareErrorRefreshLocked {
		t.Fatalf("expected refresh locked classification, got %v", err)
	}

	if err := held.Unlock(context.Background()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	exchanger.refreshTokens = TokenPair{AccessToken: "a2", RefreshToken: "r2"}
	if _, err := service.RunRefreshWithRetry(context.Background(), "tenant-7", RefreshRunOptions{}); err != nil {
		t.Fatalf("run after unlock: %v", err)
	}
}

func TestRefreshExpiring_SweepsOnlyExpiringTenants(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithRefreshBackoffScheduler(immediateScheduler{}),
	)

	now := time.Now().UTC()
	connectTestTenant(t, service, exchanger, "tenant-soon")
	connectTestTenant(t, service, exchanger, "tenant-later")

	// tenant-soon expires inside the freshness window, tenant-later far outside.
	soon, _, _ := store.Get(context.Background(), "tenant-soon")
	soon.TokenExpiresAt = timePointer(now.Add(24 * time.Hour))
	store.byTenant["tenant-soon"] = soon
	later, _, _ := store.Get(context.Background(), "tenant-later")
	later.TokenExpiresAt = timePointer(now.Add(90 * 24 * time.Hour))
	store.byTenant["tenant-later"] = later

	exchanger.refreshCalls = 0
	exchanger.refreshTokens = TokenPair{
		AccessToken:  "swept-access",
		RefreshToken: "swept-refresh",
		ExpiresAt:    timePointer(now.Add(30 * 24 * time.Hour)),
	}

	result, err := service.RefreshExpiring(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Scanned != 1 {
		t.Fatalf("scanned = %d, want 1", result.Scanned)
	}
	if result.Refreshed != 1 || len(result.Failed) != 0 {
		t.Fatalf("result = %+v", result)
	}
	if exchanger.refreshCalls != 1 {
		t.Fatalf("refresh calls = %d, want 1", exchanger.refreshCalls)
	}
}

func TestRefreshExpiring_CollectsPerTenantFailures(t *testing.T) {
	store := newMemCredentialStore()
	exchanger := &stubExchanger{}
	service := newTestService(t,
		WithCredentialStore(store),
		WithTokenExchanger(exchanger),
		WithRefreshBackoffScheduler(immediateScheduler{}),
	)

	now := time.Now().UTC()
	connectTestTenant(t, service, exchanger, "tenant-bad")
	bad, _, _ := store.Get(context.Background(), "tenant-bad")
	bad.TokenExpiresAt = timePointer(now.Add(time.Hour))
	store.byTenant["tenant-bad"] = bad

	exchanger.refreshErr = errors.New("invalid_grant")

	result, err := service.RefreshExpiring(context.Background())
	if err != nil {
		t.Fatalf("sweep must not fail because one tenant failed: %v", err)
	}
	if result.Scanned != 1 || result.Refreshed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(result.Failed) != 1 || result.Failed[0] != "tenant-bad" {
		t.Fatalf("failed = %v", result.Failed)
	}
}

func TestMemoryTenantLocker_UnlockIsIdempotent(t *testing.T) {
	locker := NewMemoryTenantLocker()
	handle, err := locker.Acquire(context.Background(), "tenant-7", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := handle.Unlock(context.Background()); err != nil {
		t.Fatalf("first unlock: %v", err)
	}
	if err := handle.Unlock(context.Background()); err != nil {
		t.Fatalf("second unlock: %v", err)
	}
	if _, err := locker.Acquire(context.Background(), "tenant-7", time.Minute); err != nil {
		t.Fatalf("reacquire after unlock: %v", err)
	}
}
