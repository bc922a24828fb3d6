package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-square/core"
)

const locationCacheKeyPrefix = "go-square::locations::v1"

// CachedLocationLister memoizes location lookups per tenant and
// environment. Location metadata changes rarely but the storefront asks
// for it on every settings render, so reads go through the cache and
// Invalidate is called after a tenant reauthorizes.
type CachedLocationLister struct {
	base  core.LocationLister
	cache repositorycache.CacheService
}

func NewCachedLocationLister(
	base core.LocationLister,
	cacheService repositorycache.CacheService,
) (*CachedLocationLister, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base location lister is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: location cache service is required")
	}
	return &CachedLocationLister{base: base, cache: cacheService}, nil
}

// LocationCacheKey is the deterministic cache key contract for location
// reads: go-square::locations::v1::<tenant>::<environment> with each
// segment URL-path escaped.
func LocationCacheKey(tenantID string, env core.Environment) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", fmt.Errorf("sqlstore: tenant id is required")
	}
	if err := env.Validate(); err != nil {
		return "", err
	}
	segments := []string{
		url.PathEscape(tenantID),
		url.PathEscape(string(env)),
	}
	return strings.Join(append([]string{locationCacheKeyPrefix}, segments...), "::"), nil
}

func (l *CachedLocationLister) ListActive(ctx context.Context, gw core.Gateway) ([]core.Location, error) {
	if l == nil || l.base == nil || l.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached location lister is not configured")
	}
	cacheKey, err := LocationCacheKey(gw.TenantID, gw.Environment)
	if err != nil {
		return nil, err
	}

	locations, err := repositorycache.GetOrFetch(ctx, l.cache, cacheKey, func(ctx context.Context) ([]core.Location, error) {
		fetched, fetchErr := l.base.ListActive(ctx, gw)
		if fetchErr != nil {
			return nil, fetchErr
		}
		return cloneLocations(fetched), nil
	})
	if err != nil {
		return nil, err
	}
	return cloneLocations(locations), nil
}

func (l *CachedLocationLister) Invalidate(ctx context.Context, tenantID string, env core.Environment) error {
	if l == nil || l.cache == nil {
		return fmt.Errorf("sqlstore: cached location lister is not configured")
	}
	cacheKey, err := LocationCacheKey(tenantID, env)
	if err != nil {
		return err
	}
	return l.cache.Delete(ctx, cacheKey)
}

func cloneLocations(locations []core.Location) []core.Location {
	if len(locations) == 0 {
		return []core.Location{}
	}
	cloned := make([]core.Location, len(locations))
	for i, location := range locations {
		cloned[i] = location
		cloned[i].Capabilities = append([]string(nil), location.Capabilities...)
	}
	return cloned
}
