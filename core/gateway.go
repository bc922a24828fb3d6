package core

import (
	"context"
	"fmt"
	"strings"
)

// ResolveGateway builds a fresh, fully-resolved gateway view for one
// tenant. Nothing is cached between calls, so a settings change made by
// one request is observed by the next one.
func (s *Service) ResolveGateway(ctx context.Context, tenantID string) (Gateway, error) {
	if s == nil {
		return Gateway{}, fmt.Errorf("core: service is nil")
	}
	return s.resolveGateway(ctx, tenantID)
}

func (s *Service) resolveGateway(ctx context.Context, tenantID string) (Gateway, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Gateway{}, s.mapError(fmt.Errorf("core: tenant id is required"))
	}
	if s.credentialStore == nil {
		return Gateway{}, s.mapError(fmt.Errorf("core: credential store is not configured"))
	}

	credential, found, err := s.credentialStore.Get(ctx, tenantID)
	if err != nil {
		return Gateway{}, s.mapError(err)
	}
	if !found {
		return Gateway{}, s.mapError(fmt.Errorf("%w: tenant %q", ErrCredentialNotFound, tenantID))
	}

	gw := Gateway{
		TenantID:    tenantID,
		Environment: credential.Environment(),
		Credential:  credential,
		LocationID:  credential.LocationID,
	}
	if !credential.HasTokens {
		return gw, nil
	}

	payload, decryptErr := s.decryptTokenPayload(ctx, credential.EncryptedTokens)
	if decryptErr != nil {
		return Gateway{}, s.mapError(decryptErr)
	}
	tokens, decodeErr := s.credentialCodec.Decode(payload)
	if decodeErr != nil {
		return Gateway{}, s.mapError(decodeErr)
	}
	gw.Tokens = tokens
	return gw, nil
}

// resolveConnectedGateway is resolveGateway plus the requirement that the
// tenant already holds a usable token pair.
func (s *Service) resolveConnectedGateway(ctx context.Context, tenantID string) (Gateway, error) {
	gw, err := s.resolveGateway(ctx, tenantID)
	if err != nil {
		return Gateway{}, err
	}
	if !gw.Credential.HasTokens || !gw.Tokens.Complete() {
		return Gateway{}, s.mapError(fmt.Errorf(
			"core: credential not found with tokens, tenant %q has not completed authorization", tenantID,
		))
	}
	return gw, nil
}

// ListActiveLocations returns the tenant's locations that are active and
// able to process card payments.
func (s *Service) ListActiveLocations(ctx context.Context, tenantID string) (locations []Location, err error) {
	startedAt := s.now()
	fields := map[string]any{"tenant_id": tenantID}
	defer func() {
		s.observeOperation(ctx, startedAt, "list_active_locations", err, fields)
	}()

	gw, resolveErr := s.resolveConnectedGateway(ctx, tenantID)
	if resolveErr != nil {
		err = resolveErr
		return nil, err
	}
	if s.locationLister == nil {
		err = s.mapError(fmt.Errorf("core: location lister is not configured"))
		return nil, err
	}

	locations, listErr := s.locationLister.ListActive(ctx, gw)
	if listErr != nil {
		err = s.mapError(listErr)
		return nil, err
	}
	fields["count"] = len(locations)
	return locations, nil
}
