package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultRefreshMaxAttempts    = 3
	defaultRefreshInitialBackoff = 500 * time.Millisecond
	defaultRefreshMaxBackoff     = 10 * time.Second
	defaultRefreshLockTTL        = 30 * time.Second
)

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// TenantLocker serializes refreshes for a tenant so a scheduled run and an
// on-demand refresh cannot both rotate the same refresh token.
type TenantLocker interface {
	Acquire(ctx context.Context, tenantID string, ttl time.Duration) (LockHandle, error)
}

type RefreshBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultRefreshInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultRefreshMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type RefreshRunResult struct {
	Attempts     int
	NeedsReauth  bool
	TokenExpires *time.Time
}

type RefreshRunOptions struct {
	MaxAttempts int
	LockTTL     time.Duration
}

// RunRefreshWithRetry wraps Refresh with per-tenant locking and bounded
// exponential backoff. Auth-category failures are not retried since the
// refresh token itself is bad and the tenant has to reauthorize.
func (s *Service) RunRefreshWithRetry(ctx context.Context, tenantID string, opts RefreshRunOptions) (RefreshRunResult, error) {
	if s == nil {
		return RefreshRunResult{}, fmt.Errorf("core: service is nil")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return RefreshRunResult{}, s.mapError(fmt.Errorf("core: tenant id is required"))
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = s.config.Refresh.MaxAttempts
	}
	if maxAttempts < 1 {
		maxAttempts = defaultRefreshMaxAttempts
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultRefreshLockTTL
	}

	unlock := func() {}
	if s.tenantLocker != nil {
		lockHandle, lockErr := s.tenantLocker.Acquire(ctx, tenantID, lockTTL)
		if lockErr != nil {
			return RefreshRunResult{}, s.mapError(lockErr)
		}
		unlock = func() {
			_ = lockHandle.Unlock(ctx)
		}
	}
	defer unlock()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		credential, err := s.Refresh(ctx, tenantID)
		if err == nil {
			return RefreshRunResult{Attempts: attempt, TokenExpires: credential.TokenExpiresAt}, nil
		}
		lastErr = err

		if isUnrecoverableRefreshError(err) {
			return RefreshRunResult{Attempts: attempt, NeedsReauth: true}, s.mapError(err)
		}
		if attempt == maxAttempts {
			return RefreshRunResult{Attempts: attempt, NeedsReauth: true}, s.mapError(err)
		}

		delay := defaultRefreshInitialBackoff
		if s.refreshScheduler != nil {
			delay = s.refreshScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			return RefreshRunResult{Attempts: attempt}, s.mapError(waitErr)
		}
	}

	return RefreshRunResult{Attempts: maxAttempts}, s.mapError(lastErr)
}

type RefreshExpiringResult struct {
	Scanned   int
	Refreshed int
	Failed    []string
}

// RefreshExpiring refreshes every credential whose access token expires
// inside the configured freshness window. Failures are collected per tenant
// so one bad credential does not stop the sweep.
func (s *Service) RefreshExpiring(ctx context.Context) (RefreshExpiringResult, error) {
	if s == nil {
		return RefreshExpiringResult{}, fmt.Errorf("core: service is nil")
	}
	startedAt := s.now()

	window := s.config.Refresh.FreshnessWindow
	if window <= 0 {
		window = DefaultConfig().Refresh.FreshnessWindow
	}
	cutoff := s.now().Add(window)

	credentials, err := s.credentialStore.ListExpiring(ctx, cutoff)
	if err != nil {
		mapped := s.mapError(err)
		s.observeOperation(ctx, startedAt, "refresh_expiring", mapped, map[string]any{})
		return RefreshExpiringResult{}, mapped
	}

	result := RefreshExpiringResult{Scanned: len(credentials)}
	for _, credential := range credentials {
		if _, runErr := s.RunRefreshWithRetry(ctx, credential.TenantID, RefreshRunOptions{}); runErr != nil {
			result.Failed = append(result.Failed, credential.TenantID)
			continue
		}
		result.Refreshed++
	}

	s.observeOperation(ctx, startedAt, "refresh_expiring", nil, map[string]any{
		"scanned":   result.Scanned,
		"refreshed": result.Refreshed,
		"failed":    len(result.Failed),
	})
	return result, nil
}

func isUnrecoverableRefreshError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
		switch strings.TrimSpace(strings.ToUpper(richErr.TextCode)) {
		case SquareErrorAuthExchange, SquareErrorConfigMissing:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid_grant") ||
		strings.Contains(msg, "invalid refresh token") ||
		strings.Contains(msg, "missing refresh token")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type MemoryTenantLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryTenantLocker() *MemoryTenantLocker {
	return &MemoryTenantLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryTenantLocker) Acquire(_ context.Context, tenantID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: tenant locker is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("core: tenant id is required for lock acquisition")
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[tenantID]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: refresh lock already held for tenant %q", tenantID)
	}
	l.locks[tenantID] = now.Add(ttl)
	return &memoryLockHandle{locker: l, tenantID: tenantID}, nil
}

type memoryLockHandle struct {
	locker   *MemoryTenantLocker
	tenantID string
	once     sync.Once
}

func (h *memoryLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.tenantID)
		h.locker.mu.Unlock()
	})
	return nil
}
