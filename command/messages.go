package command

import (
	"strings"

	"github.com/goliatone/go-square/core"
)

const (
	TypeAuthorize         = "square.command.authorize"
	TypeCompleteCallback  = "square.command.callback.complete"
	TypeRefresh           = "square.command.refresh"
	TypeRevoke            = "square.command.revoke"
	TypeDeleteCredential  = "square.command.credential.delete"
	TypeConfigureLocation = "square.command.location.configure"
	TypeSubmitOrder       = "square.command.order.submit"
)

type AuthorizeMessage struct {
	Request core.AuthorizeRequest
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.ApplicationID) == "" {
		return commandValidationError("application_id", "application id is required")
	}
	if strings.TrimSpace(m.Request.ApplicationSecret) == "" {
		return commandValidationError("application_secret", "application secret is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CallbackRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.State) == "" {
		return commandValidationError("state", "callback state is required")
	}
	return nil
}

type RefreshMessage struct {
	TenantID string
}

func (RefreshMessage) Type() string { return TypeRefresh }

func (m RefreshMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

type RevokeMessage struct {
	TenantID string
}

func (RevokeMessage) Type() string { return TypeRevoke }

func (m RevokeMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

type DeleteCredentialMessage struct {
	TenantID string
}

func (DeleteCredentialMessage) Type() string { return TypeDeleteCredential }

func (m DeleteCredentialMessage) Validate() error {
	if strings.TrimSpace(m.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	return nil
}

type ConfigureLocationMessage struct {
	Request core.ConfigureLocationRequest
}

func (ConfigureLocationMessage) Type() string { return TypeConfigureLocation }

func (m ConfigureLocationMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.LocationID) == "" {
		return commandValidationError("location_id", "location id is required")
	}
	return nil
}

type SubmitOrderMessage struct {
	Request core.SubmitOrderRequest
}

func (SubmitOrderMessage) Type() string { return TypeSubmitOrder }

func (m SubmitOrderMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return commandValidationError("tenant_id", "tenant id is required")
	}
	if strings.TrimSpace(m.Request.Order.ID) == "" {
		return commandValidationError("order_id", "order id is required")
	}
	if len(m.Request.Order.Lines) == 0 {
		return commandValidationError("order_lines", "order has no line items")
	}
	return nil
}
