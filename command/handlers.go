package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-square/core"
)

type MutatingService interface {
	Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResponse, error)
	CompleteCallback(ctx context.Context, req core.CallbackRequest) (core.Credential, error)
	Refresh(ctx context.Context, tenantID string) (core.Credential, error)
	Revoke(ctx context.Context, tenantID string) (bool, error)
	DeleteCredential(ctx context.Context, tenantID string) error
	ConfigureLocation(ctx context.Context, req core.ConfigureLocationRequest) (core.Credential, error)
	SubmitOrder(ctx context.Context, req core.SubmitOrderRequest) (core.SubmissionResult, error)
}

type AuthorizeCommand struct {
	service MutatingService
}

func NewAuthorizeCommand(service MutatingService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorize service is required")
	}
	out, err := c.service.Authorize(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RefreshCommand struct {
	service MutatingService
}

func NewRefreshCommand(service MutatingService) *RefreshCommand {
	return &RefreshCommand{service: service}
}

func (c *RefreshCommand) Execute(ctx context.Context, msg RefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: refresh service is required")
	}
	out, err := c.service.Refresh(ctx, msg.TenantID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RevokeCommand struct {
	service MutatingService
}

func NewRevokeCommand(service MutatingService) *RevokeCommand {
	return &RevokeCommand{service: service}
}

func (c *RevokeCommand) Execute(ctx context.Context, msg RevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	out, err := c.service.Revoke(ctx, msg.TenantID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DeleteCredentialCommand struct {
	service MutatingService
}

func NewDeleteCredentialCommand(service MutatingService) *DeleteCredentialCommand {
	return &DeleteCredentialCommand{service: service}
}

func (c *DeleteCredentialCommand) Execute(ctx context.Context, msg DeleteCredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	return c.service.DeleteCredential(ctx, msg.TenantID)
}

type ConfigureLocationCommand struct {
	service MutatingService
}

func NewConfigureLocationCommand(service MutatingService) *ConfigureLocationCommand {
	return &ConfigureLocationCommand{service: service}
}

func (c *ConfigureLocationCommand) Execute(ctx context.Context, msg ConfigureLocationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: location service is required")
	}
	out, err := c.service.ConfigureLocation(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SubmitOrderCommand struct {
	service MutatingService
}

func NewSubmitOrderCommand(service MutatingService) *SubmitOrderCommand {
	return &SubmitOrderCommand{service: service}
}

func (c *SubmitOrderCommand) Execute(ctx context.Context, msg SubmitOrderMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: submission service is required")
	}
	out, err := c.service.SubmitOrder(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
