package square

import (
	"fmt"

	squarecommand "github.com/goliatone/go-square/command"
	squarequery "github.com/goliatone/go-square/query"
)

// CommandQueryService is the surface the facade needs: every mutating
// operation plus the read projections.
type CommandQueryService interface {
	squarecommand.MutatingService
	squarequery.CredentialReader
	squarequery.SubmissionReader
	squarequery.LocationReader
}

type Commands struct {
	Authorize         *squarecommand.AuthorizeCommand
	CompleteCallback  *squarecommand.CompleteCallbackCommand
	Refresh           *squarecommand.RefreshCommand
	Revoke            *squarecommand.RevokeCommand
	DeleteCredential  *squarecommand.DeleteCredentialCommand
	ConfigureLocation *squarecommand.ConfigureLocationCommand
	SubmitOrder       *squarecommand.SubmitOrderCommand
}

type Queries struct {
	GetCredential *squarequery.GetCredentialQuery
	GetSubmission *squarequery.GetSubmissionQuery
	ListLocations *squarequery.ListLocationsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	locationReader squarequery.LocationReader
}

// WithLocationReader overrides the location read path, normally to route
// list calls through a caching lister instead of the provider API.
func WithLocationReader(reader squarequery.LocationReader) FacadeOption {
	return func(options *facadeOptions) {
		options.locationReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("square: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	locations := cfg.locationReader
	if locations == nil {
		locations = service
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Authorize:         squarecommand.NewAuthorizeCommand(service),
		CompleteCallback:  squarecommand.NewCompleteCallbackCommand(service),
		Refresh:           squarecommand.NewRefreshCommand(service),
		Revoke:            squarecommand.NewRevokeCommand(service),
		DeleteCredential:  squarecommand.NewDeleteCredentialCommand(service),
		ConfigureLocation: squarecommand.NewConfigureLocationCommand(service),
		SubmitOrder:       squarecommand.NewSubmitOrderCommand(service),
	}
	facade.queries = Queries{
		GetCredential: squarequery.NewGetCredentialQuery(service),
		GetSubmission: squarequery.NewGetSubmissionQuery(service),
		ListLocations: squarequery.NewListLocationsQuery(locations),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
