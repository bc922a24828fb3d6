package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	SquareErrorBadInput          = "SQUARE_BAD_INPUT"
	SquareErrorConfigMissing     = "SQUARE_CONFIG_MISSING"
	SquareErrorOAuthStateInvalid = "SQUARE_OAUTH_STATE_INVALID"
	SquareErrorAuthExchange      = "SQUARE_AUTH_EXCHANGE"
	SquareErrorTransport         = "SQUARE_TRANSPORT"
	SquareErrorGatewayEmpty      = "SQUARE_GATEWAY_EMPTY"
	SquareErrorProviderAPI       = "SQUARE_PROVIDER_API"
	SquareErrorRefreshLocked     = "SQUARE_REFRESH_LOCKED"
	SquareErrorInternal          = "SQUARE_INTERNAL_ERROR"
)

func squareErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureSquareErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrCredentialNotFound):
		return newSquareError(err.Error(), goerrors.CategoryNotFound, SquareErrorConfigMissing)
	case errors.Is(err, ErrAuthExchange):
		return newSquareError(err.Error(), goerrors.CategoryAuth, SquareErrorAuthExchange)
	case errors.Is(err, ErrTransport):
		return newSquareError(err.Error(), goerrors.CategoryExternal, SquareErrorTransport)
	case errors.Is(err, ErrEmptyReply):
		return newSquareError(err.Error(), goerrors.CategoryOperation, SquareErrorGatewayEmpty)
	case errors.Is(err, ErrProviderAPI):
		return newSquareError(err.Error(), goerrors.CategoryExternal, SquareErrorProviderAPI)
	case errors.Is(err, ErrInvalidEnvironment), errors.Is(err, ErrInvalidSubmissionTransition):
		return newSquareError(err.Error(), goerrors.CategoryBadInput, SquareErrorBadInput)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "credential not found"), strings.Contains(msg, "not configured for tenant"):
		return newSquareError(err.Error(), goerrors.CategoryNotFound, SquareErrorConfigMissing)
	case strings.Contains(msg, "oauth state"), strings.Contains(msg, "callback state"):
		return newSquareError(err.Error(), goerrors.CategoryAuth, SquareErrorOAuthStateInvalid)
	case strings.Contains(msg, "missing access token"), strings.Contains(msg, "missing refresh token"),
		strings.Contains(msg, "token response missing"):
		return newSquareError(err.Error(), goerrors.CategoryAuth, SquareErrorAuthExchange)
	case strings.Contains(msg, "request failed"), strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection refused"):
		return newSquareError(err.Error(), goerrors.CategoryExternal, SquareErrorTransport)
	case strings.Contains(msg, "no service response"), strings.Contains(msg, "empty provider response"):
		return newSquareError(err.Error(), goerrors.CategoryOperation, SquareErrorGatewayEmpty)
	case strings.Contains(msg, "lock already held"), strings.Contains(msg, "refresh lock"):
		return newSquareError(err.Error(), goerrors.CategoryConflict, SquareErrorRefreshLocked)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newSquareError(err.Error(), goerrors.CategoryBadInput, SquareErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureSquareErrorEnvelope(mapped)
}

func newSquareError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureSquareErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureSquareErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = squareHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultSquareTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultSquareTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return SquareErrorBadInput
	case goerrors.CategoryNotFound:
		return SquareErrorConfigMissing
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return SquareErrorAuthExchange
	case goerrors.CategoryConflict:
		return SquareErrorRefreshLocked
	case goerrors.CategoryExternal:
		return SquareErrorTransport
	case goerrors.CategoryOperation:
		return SquareErrorGatewayEmpty
	default:
		return SquareErrorInternal
	}
}

func squareHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal, goerrors.CategoryOperation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
