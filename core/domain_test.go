package core

import (
	"errors"
	"testing"
	"time"
)

func TestEnvironmentValidate(t *testing.T) {
	if err := EnvironmentSandbox.Validate(); err != nil {
		t.Fatalf("sandbox should validate: %v", err)
	}
	if err := EnvironmentProduction.Validate(); err != nil {
		t.Fatalf("production should validate: %v", err)
	}
	err := Environment("staging").Validate()
	if err == nil {
		t.Fatalf("expected unknown environment to fail validation")
	}
	if !errors.Is(err, ErrInvalidEnvironment) {
		t.Fatalf("expected ErrInvalidEnvironment, got %v", err)
	}
}

func TestEnvironmentFor(t *testing.T) {
	if got := EnvironmentFor(true); got != EnvironmentSandbox {
		t.Fatalf("expected sandbox, got %q", got)
	}
	if got := EnvironmentFor(false); got != EnvironmentProduction {
		t.Fatalf("expected production, got %q", got)
	}
}

func TestTokenPairComplete(t *testing.T) {
	if (TokenPair{AccessToken: "a"}).Complete() {
		t.Fatalf("pair without refresh token must not be complete")
	}
	if (TokenPair{RefreshToken: "r"}).Complete() {
		t.Fatalf("pair without access token must not be complete")
	}
	if !(TokenPair{AccessToken: "a", RefreshToken: "r"}).Complete() {
		t.Fatalf("pair with both tokens must be complete")
	}
	if (TokenPair{AccessToken: "  ", RefreshToken: "r"}).Complete() {
		t.Fatalf("whitespace access token must not count as present")
	}
}

func TestSubmissionTransitionTo_AllowedPath(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	submission := Submission{Status: SubmissionStatusNotSubmitted}

	if err := submission.TransitionTo(SubmissionStatusOrderCreated, "", now); err != nil {
		t.Fatalf("not_submitted -> order_created: %v", err)
	}
	if err := submission.TransitionTo(SubmissionStatusPaymentCreated, "", now.Add(time.Second)); err != nil {
		t.Fatalf("order_created -> payment_created: %v", err)
	}
	if submission.UpdatedAt != now.Add(time.Second) {
		t.Fatalf("expected updated timestamp to advance")
	}
}

func TestSubmissionTransitionTo_RejectsSkippedStates(t *testing.T) {
	now := time.Now().UTC()
	submission := Submission{Status: SubmissionStatusNotSubmitted}

	err := submission.TransitionTo(SubmissionStatusPaymentCreated, "", now)
	if err == nil {
		t.Fatalf("expected not_submitted -> payment_created to be rejected")
	}
	if !errors.Is(err, ErrInvalidSubmissionTransition) {
		t.Fatalf("expected ErrInvalidSubmissionTransition, got %v", err)
	}
	if submission.Status != SubmissionStatusNotSubmitted {
		t.Fatalf("status must not change on rejected transition, got %q", submission.Status)
	}
}

func TestSubmissionTransitionTo_TerminalStates(t *testing.T) {
	now := time.Now().UTC()

	failed := Submission{Status: SubmissionStatusPaymentFailed}
	if err := failed.TransitionTo(SubmissionStatusPaymentCreated, "", now); err == nil {
		t.Fatalf("payment_failed is terminal, transition must be rejected")
	}

	created := Submission{Status: SubmissionStatusPaymentCreated}
	if err := created.TransitionTo(SubmissionStatusOrderCreated, "", now); err == nil {
		t.Fatalf("payment_created is terminal, transition must be rejected")
	}
}

func TestSubmissionStatusTerminal(t *testing.T) {
	cases := []struct {
		status   SubmissionStatus
		terminal bool
	}{
		{SubmissionStatusNotSubmitted, false},
		{SubmissionStatusOrderCreated, false},
		{SubmissionStatusPaymentCreated, true},
		{SubmissionStatusPaymentFailed, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Fatalf("%s terminal = %v, want %v", tc.status, got, tc.terminal)
		}
	}
}

func TestSubmissionTransitionTo_SameStatusRecordsDetail(t *testing.T) {
	now := time.Now().UTC()
	submission := Submission{Status: SubmissionStatusNotSubmitted}

	if err := submission.TransitionTo(SubmissionStatusNotSubmitted, "order create rejected", now); err != nil {
		t.Fatalf("same status transition should be a no-op update: %v", err)
	}
	if submission.LastError != "order create rejected" {
		t.Fatalf("expected detail to be recorded, got %q", submission.LastError)
	}
}

func TestSubmissionTransitionTo_PaymentCreatedClearsLastError(t *testing.T) {
	now := time.Now().UTC()
	submission := Submission{Status: SubmissionStatusOrderCreated, LastError: "earlier failure"}

	if err := submission.TransitionTo(SubmissionStatusPaymentCreated, "", now); err != nil {
		t.Fatalf("order_created -> payment_created: %v", err)
	}
	if submission.LastError != "" {
		t.Fatalf("expected last error to clear on success, got %q", submission.LastError)
	}
}
