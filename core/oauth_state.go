package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultOAuthStateTTL = 15 * time.Minute
const defaultOAuthStateMaxEntries = 4096

// OAuthStateRecord binds an opaque callback state to the tenant that
// initiated the authorization flow. The state is the only value that
// round-trips through the provider, so the record carries everything
// needed to resume the flow.
type OAuthStateRecord struct {
	State       string
	TenantID    string
	Environment Environment
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type OAuthStateStore interface {
	Save(ctx context.Context, record OAuthStateRecord) error
	Consume(ctx context.Context, state string) (OAuthStateRecord, error)
}

type MemoryOAuthStateStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]OAuthStateRecord
}

func NewMemoryOAuthStateStore(ttl time.Duration) *MemoryOAuthStateStore {
	return NewMemoryOAuthStateStoreWithLimits(ttl, defaultOAuthStateMaxEntries)
}

func NewMemoryOAuthStateStoreWithLimits(ttl time.Duration, maxEntries int) *MemoryOAuthStateStore {
	if ttl <= 0 {
		ttl = defaultOAuthStateTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultOAuthStateMaxEntries
	}
	return &MemoryOAuthStateStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    map[string]OAuthStateRecord{},
	}
}

func (s *MemoryOAuthStateStore) Save(_ context.Context, record OAuthStateRecord) error {
	if s == nil {
		return fmt.Errorf("core: oauth state store is not configured")
	}
	state := strings.TrimSpace(record.State)
	if state == "" {
		return fmt.Errorf("core: oauth state is required")
	}
	if strings.TrimSpace(record.TenantID) == "" {
		return fmt.Errorf("core: oauth state tenant id is required")
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	s.pruneExpiredLocked(now)
	s.enforceCapacityLocked(1)
	s.entries[state] = record
	s.mu.Unlock()

	return nil
}

func (s *MemoryOAuthStateStore) pruneExpiredLocked(now time.Time) {
	for state, record := range s.entries {
		if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
			delete(s.entries, state)
		}
	}
}

func (s *MemoryOAuthStateStore) enforceCapacityLocked(incoming int) {
	if s.maxEntries <= 0 {
		return
	}
	target := s.maxEntries - incoming
	if target < 0 {
		target = 0
	}
	for len(s.entries) > target {
		s.evictOldestLocked()
	}
}

func (s *MemoryOAuthStateStore) evictOldestLocked() {
	var oldestState string
	var oldestCreated time.Time
	for state, record := range s.entries {
		if oldestState == "" || record.CreatedAt.Before(oldestCreated) {
			oldestState = state
			oldestCreated = record.CreatedAt
		}
	}
	if oldestState != "" {
		delete(s.entries, oldestState)
		return
	}
	for state := range s.entries {
		delete(s.entries, state)
		break
	}
}

func (s *MemoryOAuthStateStore) Consume(_ context.Context, state string) (OAuthStateRecord, error) {
	if s == nil {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state store is not configured")
	}
	state = strings.TrimSpace(state)
	if state == "" {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state is required")
	}

	s.mu.Lock()
	record, ok := s.entries[state]
	if ok {
		delete(s.entries, state)
	}
	s.mu.Unlock()

	if !ok {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state not found")
	}
	if !record.ExpiresAt.IsZero() && time.Now().UTC().After(record.ExpiresAt) {
		return OAuthStateRecord{}, fmt.Errorf("core: oauth state expired")
	}

	return record, nil
}

func generateOAuthState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
