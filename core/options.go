package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
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

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithSecretProvider(provider SecretProvider) Option {
	return func(b *serviceBuilder) {
		b.secretProvider = provider
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithOAuthStateStore(store OAuthStateStore) Option {
	return func(b *serviceBuilder) {
		b.oauthStateStore = store
	}
}

func WithTenantLocker(locker TenantLocker) Option {
	return func(b *serviceBuilder) {
		b.tenantLocker = locker
	}
}

func WithRefreshBackoffScheduler(scheduler RefreshBackoffScheduler) Option {
	return func(b *serviceBuilder) {
		b.refreshScheduler = scheduler
	}
}

func WithTokenExchanger(exchanger TokenExchanger) Option {
	return func(b *serviceBuilder) {
		b.tokenExchanger = exchanger
	}
}

func WithOrderGateway(gateway OrderGateway) Option {
	return func(b *serviceBuilder) {
		b.orderGateway = gateway
	}
}

func WithPaymentGateway(gateway PaymentGateway) Option {
	return func(b *serviceBuilder) {
		b.paymentGateway = gateway
	}
}

func WithLocationLister(lister LocationLister) Option {
	return func(b *serviceBuilder) {
		b.locationLister = lister
	}
}

func WithCredentialStore(store CredentialStore) Option {
	return func(b *serviceBuilder) {
		b.credentialStore = store
	}
}

func WithSubmissionStore(store SubmissionStore) Option {
	return func(b *serviceBuilder) {
		b.submissionStore = store
	}
}

func WithCredentialCodec(codec CredentialCodec) Option {
	return func(b *serviceBuilder) {
		b.credentialCodec = codec
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("square", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		credentialCodec: JSONCredentialCodec{},
		clock:           func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return squareErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.RequestTimeout > 0 {
		layer["request_timeout"] = cfg.RequestTimeout
	}

	oauth := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.OAuth.RedirectURL) != "" {
		oauth["redirect_url"] = cfg.OAuth.RedirectURL
	}
	if includeZero || cfg.OAuth.StateTTL > 0 {
		oauth["state_ttl"] = cfg.OAuth.StateTTL
	}
	if len(oauth) > 0 {
		layer["oauth"] = oauth
	}

	refresh := map[string]any{}
	if includeZero || cfg.Refresh.FreshnessWindow > 0 {
		refresh["freshness_window"] = cfg.Refresh.FreshnessWindow
	}
	if includeZero || cfg.Refresh.MaxAttempts > 0 {
		refresh["max_attempts"] = cfg.Refresh.MaxAttempts
	}
	if len(refresh) > 0 {
		layer["refresh"] = refresh
	}
	return layer
}
