package gateway

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-square/core"
)

// ErrorDetail is one entry of the provider's errors array.
type ErrorDetail struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field"`
}

func (d ErrorDetail) String() string {
	parts := make([]string, 0, 3)
	if strings.TrimSpace(d.Code) != "" {
		parts = append(parts, d.Code)
	}
	if strings.TrimSpace(d.Detail) != "" {
		parts = append(parts, d.Detail)
	}
	if strings.TrimSpace(d.Field) != "" {
		parts = append(parts, "field="+d.Field)
	}
	if len(parts) == 0 {
		return d.Category
	}
	return strings.Join(parts, " ")
}

// APIError carries the provider's structured error response.
type APIError struct {
	Operation  string
	StatusCode int
	Details    []ErrorDetail
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Details) == 0 {
		return fmt.Sprintf("gateway: %s returned status %d: %s", e.Operation, e.StatusCode, core.ErrProviderAPI.Error())
	}
	details := make([]string, 0, len(e.Details))
	for _, detail := range e.Details {
		details = append(details, detail.String())
	}
	return fmt.Sprintf("gateway: %s returned status %d: %s", e.Operation, e.StatusCode, strings.Join(details, "; "))
}

func (e *APIError) Unwrap() error {
	return core.ErrProviderAPI
}

func transportError(operation string, cause error) error {
	return fmt.Errorf("gateway: %s request failed: %w: %w", operation, cause, core.ErrTransport)
}

func exchangeError(operation string, statusCode int, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "no error detail"
	}
	return fmt.Errorf("gateway: %s returned status %d: %s: %w", operation, statusCode, message, core.ErrAuthExchange)
}
