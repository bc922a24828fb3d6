package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// DefaultOAuthScopes is the full permission set requested during
// authorization. Order placement only needs a subset but the provider
// grants are requested up front so later capabilities do not force a
// re-consent round trip.
var DefaultOAuthScopes = []string{
	"MERCHANT_PROFILE_READ",
	"PAYMENTS_READ",
	"PAYMENTS_WRITE",
	"CUSTOMERS_READ",
	"CUSTOMERS_WRITE",
	"SETTLEMENTS_READ",
	"BANK_ACCOUNTS_READ",
	"ITEMS_READ",
	"ITEMS_WRITE",
	"ORDERS_READ",
	"ORDERS_WRITE",
	"EMPLOYEES_READ",
	"EMPLOYEES_WRITE",
	"TIMECARDS_READ",
	"TIMECARDS_WRITE",
}

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	secretProvider    SecretProvider
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	oauthStateStore   OAuthStateStore
	tenantLocker      TenantLocker
	refreshScheduler  RefreshBackoffScheduler
	tokenExchanger    TokenExchanger
	orderGateway      OrderGateway
	paymentGateway    PaymentGateway
	locationLister    LocationLister
	credentialStore   CredentialStore
	submissionStore   SubmissionStore
	credentialCodec   CredentialCodec
	clock             func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	SecretProvider    SecretProvider
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	OAuthStateStore   OAuthStateStore
	TenantLocker      TenantLocker
	RefreshScheduler  RefreshBackoffScheduler
	TokenExchanger    TokenExchanger
	OrderGateway      OrderGateway
	PaymentGateway    PaymentGateway
	LocationLister    LocationLister
	CredentialStore   CredentialStore
	SubmissionStore   SubmissionStore
	CredentialCodec   CredentialCodec
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("square", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("square"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.credentialCodec == nil {
		builder.credentialCodec = JSONCredentialCodec{}
	}
	if builder.tenantLocker == nil {
		builder.tenantLocker = NewMemoryTenantLocker()
	}
	if builder.refreshScheduler == nil {
		builder.refreshScheduler = ExponentialBackoffScheduler{
			Initial: defaultRefreshInitialBackoff,
			Max:     defaultRefreshMaxBackoff,
		}
	}
	if builder.clock == nil {
		builder.clock = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.oauthStateStore == nil {
		builder.oauthStateStore = NewMemoryOAuthStateStore(finalConfig.OAuth.StateTTL)
	}

	if (builder.credentialStore == nil || builder.submissionStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.credentialStore == nil {
					builder.credentialStore = storeProvider.CredentialStore()
				}
				if builder.submissionStore == nil {
					builder.submissionStore = storeProvider.SubmissionStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.credentialStore == nil {
				builder.credentialStore = storeProvider.CredentialStore()
			}
			if builder.submissionStore == nil {
				builder.submissionStore = storeProvider.SubmissionStore()
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		secretProvider:    builder.secretProvider,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		oauthStateStore:   builder.oauthStateStore,
		tenantLocker:      builder.tenantLocker,
		refreshScheduler:  builder.refreshScheduler,
		tokenExchanger:    builder.tokenExchanger,
		orderGateway:      builder.orderGateway,
		paymentGateway:    builder.paymentGateway,
		locationLister:    builder.locationLister,
		credentialStore:   builder.credentialStore,
		submissionStore:   builder.submissionStore,
		credentialCodec:   builder.credentialCodec,
		clock:             builder.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		SecretProvider:    s.secretProvider,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		OAuthStateStore:   s.oauthStateStore,
		TenantLocker:      s.tenantLocker,
		RefreshScheduler:  s.refreshScheduler,
		TokenExchanger:    s.tokenExchanger,
		OrderGateway:      s.orderGateway,
		PaymentGateway:    s.paymentGateway,
		LocationLister:    s.locationLister,
		CredentialStore:   s.credentialStore,
		SubmissionStore:   s.submissionStore,
		CredentialCodec:   s.credentialCodec,
	}
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock()
}

// Authorize stores the tenant's application credentials and returns the
// provider consent URL. The opaque state round-trips through the provider
// and is the only link back to the tenant on callback.
func (s *Service) Authorize(ctx context.Context, req AuthorizeRequest) (response AuthorizeResponse, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"tenant_id":   req.TenantID,
		"environment": string(EnvironmentFor(req.UseSandbox)),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "authorize", err, fields)
	}()

	tenantID := strings.TrimSpace(req.TenantID)
	applicationID := strings.TrimSpace(req.ApplicationID)
	applicationSecret := strings.TrimSpace(req.ApplicationSecret)
	if tenantID == "" {
		err = s.mapError(fmt.Errorf("core: tenant id is required"))
		return AuthorizeResponse{}, err
	}
	if applicationID == "" || applicationSecret == "" {
		err = s.mapError(fmt.Errorf("core: application id and secret are required"))
		return AuthorizeResponse{}, err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is not configured"))
		return AuthorizeResponse{}, err
	}
	if s.tokenExchanger == nil {
		err = s.mapError(fmt.Errorf("core: token exchanger is not configured"))
		return AuthorizeResponse{}, err
	}

	env := EnvironmentFor(req.UseSandbox)

	if _, err = s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		TenantID:          tenantID,
		ApplicationID:     applicationID,
		ApplicationSecret: applicationSecret,
		UseSandbox:        req.UseSandbox,
		LocationID:        strings.TrimSpace(req.LocationID),
	}); err != nil {
		err = s.mapError(err)
		return AuthorizeResponse{}, err
	}

	state, generateErr := generateOAuthState()
	if generateErr != nil {
		err = s.mapError(generateErr)
		return AuthorizeResponse{}, err
	}

	authorizeURL, buildErr := s.tokenExchanger.BuildAuthorizationURL(env, applicationID, DefaultOAuthScopes, state)
	if buildErr != nil {
		err = s.mapError(buildErr)
		return AuthorizeResponse{}, err
	}

	if s.oauthStateStore != nil {
		if saveErr := s.oauthStateStore.Save(ctx, OAuthStateRecord{
			State:       state,
			TenantID:    tenantID,
			Environment: env,
			CreatedAt:   s.now(),
		}); saveErr != nil {
			err = s.mapError(saveErr)
			return AuthorizeResponse{}, err
		}
	}

	return AuthorizeResponse{URL: authorizeURL, State: state}, nil
}

// CompleteCallback finishes the authorization flow. An unknown or expired
// state fails before any credential is touched. Once the state resolves a
// tenant, any later failure tears the credential row down so a half
// connected tenant cannot linger.
func (s *Service) CompleteCallback(ctx context.Context, req CallbackRequest) (credential Credential, err error) {
	startedAt := s.now()
	fields := map[string]any{}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	if s.oauthStateStore == nil {
		err = s.mapError(fmt.Errorf("core: oauth state store is not configured"))
		return Credential{}, err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is not configured"))
		return Credential{}, err
	}

	record, consumeErr := s.oauthStateStore.Consume(ctx, req.State)
	if consumeErr != nil {
		err = s.mapError(fmt.Errorf("core: callback state rejected: %w", consumeErr))
		return Credential{}, err
	}
	tenantID := record.TenantID
	fields["tenant_id"] = tenantID
	fields["environment"] = string(record.Environment)

	stored, found, getErr := s.credentialStore.Get(ctx, tenantID)
	if getErr != nil {
		err = s.mapError(getErr)
		return Credential{}, err
	}
	if !found {
		err = s.mapError(fmt.Errorf("%w: tenant %q", ErrCredentialNotFound, tenantID))
		return Credential{}, err
	}

	if providerErr := strings.TrimSpace(req.Error); providerErr != "" {
		err = s.failCallback(ctx, tenantID, fmt.Errorf(
			"core: provider rejected authorization: %s %s",
			providerErr, strings.TrimSpace(req.ErrorDescription),
		))
		return Credential{}, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		err = s.failCallback(ctx, tenantID, fmt.Errorf("core: callback is missing the authorization code"))
		return Credential{}, err
	}
	if s.tokenExchanger == nil {
		err = s.mapError(fmt.Errorf("core: token exchanger is not configured"))
		return Credential{}, err
	}

	gw := Gateway{
		TenantID:    tenantID,
		Environment: stored.Environment(),
		Credential:  stored,
		LocationID:  stored.LocationID,
	}
	tokens, exchangeErr := s.tokenExchanger.ExchangeCode(ctx, gw, code)
	if exchangeErr != nil {
		err = s.failCallback(ctx, tenantID, exchangeErr)
		return Credential{}, err
	}
	if !tokens.Complete() {
		err = s.failCallback(ctx, tenantID, fmt.Errorf("core: token response missing access or refresh token"))
		return Credential{}, err
	}

	credential, err = s.storeTokens(ctx, stored, tokens)
	if err != nil {
		err = s.failCallback(ctx, tenantID, err)
		return Credential{}, err
	}
	return credential, nil
}

// Refresh rotates the tenant's access token using the stored refresh token.
func (s *Service) Refresh(ctx context.Context, tenantID string) (credential Credential, err error) {
	startedAt := s.now()
	fields := map[string]any{"tenant_id": tenantID}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	gw, resolveErr := s.resolveGateway(ctx, tenantID)
	if resolveErr != nil {
		err = resolveErr
		return Credential{}, err
	}
	if s.tokenExchanger == nil {
		err = s.mapError(fmt.Errorf("core: token exchanger is not configured"))
		return Credential{}, err
	}

	tokens, refreshErr := s.tokenExchanger.Refresh(ctx, gw)
	if refreshErr != nil {
		err = s.mapError(refreshErr)
		return Credential{}, err
	}
	if !tokens.Complete() {
		err = s.mapError(fmt.Errorf("core: token response missing access or refresh token"))
		return Credential{}, err
	}

	credential, err = s.storeTokens(ctx, gw.Credential, tokens)
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	return credential, nil
}

// Revoke invalidates the tenant's access token at the provider and clears
// the stored token material. The application id and secret stay so the
// tenant can authorize again without re-entering them.
func (s *Service) Revoke(ctx context.Context, tenantID string) (revoked bool, err error) {
	startedAt := s.now()
	fields := map[string]any{"tenant_id": tenantID}
	defer func() {
		s.observeOperation(ctx, startedAt, "revoke", err, fields)
	}()

	gw, resolveErr := s.resolveGateway(ctx, tenantID)
	if resolveErr != nil {
		err = resolveErr
		return false, err
	}
	if s.tokenExchanger == nil {
		err = s.mapError(fmt.Errorf("core: token exchanger is not configured"))
		return false, err
	}

	revoked, revokeErr := s.tokenExchanger.Revoke(ctx, gw)
	if revokeErr != nil {
		err = s.mapError(revokeErr)
		return false, err
	}

	credential := gw.Credential
	if _, upsertErr := s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		TenantID:          credential.TenantID,
		ApplicationID:     credential.ApplicationID,
		ApplicationSecret: credential.ApplicationSecret,
		EncryptedTokens:   nil,
		HasTokens:         false,
		TokenExpiresAt:    nil,
		UseSandbox:        credential.UseSandbox,
		LocationID:        credential.LocationID,
	}); upsertErr != nil {
		err = s.mapError(upsertErr)
		return revoked, err
	}
	return revoked, nil
}

// DeleteCredential removes the tenant's credential row entirely.
func (s *Service) DeleteCredential(ctx context.Context, tenantID string) (err error) {
	startedAt := s.now()
	fields := map[string]any{"tenant_id": tenantID}
	defer func() {
		s.observeOperation(ctx, startedAt, "delete_credential", err, fields)
	}()

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		err = s.mapError(fmt.Errorf("core: tenant id is required"))
		return err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is not configured"))
		return err
	}
	if deleteErr := s.credentialStore.Delete(ctx, tenantID); deleteErr != nil {
		err = s.mapError(deleteErr)
		return err
	}
	return nil
}

// GetCredential returns the stored credential for a tenant.
func (s *Service) GetCredential(ctx context.Context, tenantID string) (Credential, bool, error) {
	if s == nil || s.credentialStore == nil {
		return Credential{}, false, fmt.Errorf("core: credential store is not configured")
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Credential{}, false, s.mapError(fmt.Errorf("core: tenant id is required"))
	}
	credential, found, err := s.credentialStore.Get(ctx, tenantID)
	if err != nil {
		return Credential{}, false, s.mapError(err)
	}
	return credential, found, nil
}

// ConfigureLocation records the location new orders are submitted to.
func (s *Service) ConfigureLocation(ctx context.Context, req ConfigureLocationRequest) (credential Credential, err error) {
	startedAt := s.now()
	fields := map[string]any{
		"tenant_id":   req.TenantID,
		"location_id": req.LocationID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "configure_location", err, fields)
	}()

	tenantID := strings.TrimSpace(req.TenantID)
	locationID := strings.TrimSpace(req.LocationID)
	if tenantID == "" {
		err = s.mapError(fmt.Errorf("core: tenant id is required"))
		return Credential{}, err
	}
	if locationID == "" {
		err = s.mapError(fmt.Errorf("core: location id is required"))
		return Credential{}, err
	}
	if s.credentialStore == nil {
		err = s.mapError(fmt.Errorf("core: credential store is not configured"))
		return Credential{}, err
	}

	stored, found, getErr := s.credentialStore.Get(ctx, tenantID)
	if getErr != nil {
		err = s.mapError(getErr)
		return Credential{}, err
	}
	if !found {
		err = s.mapError(fmt.Errorf("%w: tenant %q", ErrCredentialNotFound, tenantID))
		return Credential{}, err
	}

	credential, err = s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		TenantID:          stored.TenantID,
		ApplicationID:     stored.ApplicationID,
		ApplicationSecret: stored.ApplicationSecret,
		EncryptedTokens:   stored.EncryptedTokens,
		HasTokens:         stored.HasTokens,
		TokenExpiresAt:    stored.TokenExpiresAt,
		UseSandbox:        stored.UseSandbox,
		LocationID:        locationID,
	})
	if err != nil {
		err = s.mapError(err)
		return Credential{}, err
	}
	return credential, nil
}

func (s *Service) failCallback(ctx context.Context, tenantID string, source error) error {
	if deleteErr := s.credentialStore.Delete(ctx, tenantID); deleteErr != nil {
		return s.mapError(fmt.Errorf("core: callback cleanup failed: %w (source: %v)", deleteErr, source))
	}
	return s.mapError(source)
}

func (s *Service) storeTokens(ctx context.Context, stored Credential, tokens TokenPair) (Credential, error) {
	payload, encodeErr := s.credentialCodec.Encode(tokens)
	if encodeErr != nil {
		return Credential{}, encodeErr
	}
	encrypted, encryptErr := s.encryptTokenPayload(ctx, payload)
	if encryptErr != nil {
		return Credential{}, encryptErr
	}
	return s.credentialStore.Upsert(ctx, UpsertCredentialInput{
		TenantID:          stored.TenantID,
		ApplicationID:     stored.ApplicationID,
		ApplicationSecret: stored.ApplicationSecret,
		EncryptedTokens:   encrypted,
		HasTokens:         true,
		TokenExpiresAt:    cloneTimePointer(tokens.ExpiresAt),
		UseSandbox:        stored.UseSandbox,
		LocationID:        stored.LocationID,
	})
}

func (s *Service) encryptTokenPayload(ctx context.Context, payload []byte) ([]byte, error) {
	if s.secretProvider == nil {
		return payload, nil
	}
	return s.secretProvider.Encrypt(ctx, payload)
}

func (s *Service) decryptTokenPayload(ctx context.Context, payload []byte) ([]byte, error) {
	if s.secretProvider == nil {
		return payload, nil
	}
	return s.secretProvider.Decrypt(ctx, payload)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
