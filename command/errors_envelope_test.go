package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-square/core"
)

func TestAuthorizeMessage_ValidateReturnsRichError(t *testing.T) {
	err := (AuthorizeMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.SquareErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.SquareErrorBadInput, rich.TextCode)
	}
}

func TestAuthorizeCommand_NilServiceReturnsRichError(t *testing.T) {
	var cmd *AuthorizeCommand
	err := cmd.Execute(context.Background(), AuthorizeMessage{})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
}
