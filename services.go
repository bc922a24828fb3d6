package square

import "github.com/goliatone/go-square/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type OAuthStateStore = core.OAuthStateStore
type TenantLocker = core.TenantLocker
type RefreshBackoffScheduler = core.RefreshBackoffScheduler
type RefreshRunOptions = core.RefreshRunOptions
type RefreshRunResult = core.RefreshRunResult
type RefreshExpiringResult = core.RefreshExpiringResult
type CredentialStore = core.CredentialStore
type SubmissionStore = core.SubmissionStore
type CredentialCodec = core.CredentialCodec
type SecretProvider = core.SecretProvider

type Environment = core.Environment
type Credential = core.Credential
type TokenPair = core.TokenPair
type Order = core.Order
type OrderLine = core.OrderLine
type Location = core.Location
type Submission = core.Submission
type SubmissionResult = core.SubmissionResult

type AuthorizeRequest = core.AuthorizeRequest
type AuthorizeResponse = core.AuthorizeResponse
type CallbackRequest = core.CallbackRequest
type ConfigureLocationRequest = core.ConfigureLocationRequest
type SubmitOrderRequest = core.SubmitOrderRequest

var (
	WithLogger                  = core.WithLogger
	WithLoggerProvider          = core.WithLoggerProvider
	WithMetricsRecorder         = core.WithMetricsRecorder
	WithErrorFactory            = core.WithErrorFactory
	WithErrorMapper             = core.WithErrorMapper
	WithSecretProvider          = core.WithSecretProvider
	WithPersistenceClient       = core.WithPersistenceClient
	WithRepositoryFactory       = core.WithRepositoryFactory
	WithConfigProvider          = core.WithConfigProvider
	WithOptionsResolver         = core.WithOptionsResolver
	WithOAuthStateStore         = core.WithOAuthStateStore
	WithTenantLocker            = core.WithTenantLocker
	WithRefreshBackoffScheduler = core.WithRefreshBackoffScheduler
	WithTokenExchanger          = core.WithTokenExchanger
	WithOrderGateway            = core.WithOrderGateway
	WithPaymentGateway          = core.WithPaymentGateway
	WithLocationLister          = core.WithLocationLister
	WithCredentialStore         = core.WithCredentialStore
	WithSubmissionStore         = core.WithSubmissionStore
	WithCredentialCodec         = core.WithCredentialCodec
	WithClock                   = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
