package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := ErrInternalServer.WithInternal(internal)

	if err.Error() != "Internal server error: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}
	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}
	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestDerivedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel *AppError
		status   int
	}{
		{Conflict("invite already responded"), ErrConflict, http.StatusConflict},
		{NotFound("invite"), ErrNotFound, http.StatusNotFound},
		{Forbidden("not the organizer"), ErrForbidden, http.StatusForbidden},
		{Invalid("score out of range"), ErrInvalid, http.StatusUnprocessableEntity},
		{ErrPolicyViolation.WithDetails(map[string]any{"remaining_seconds": 10}), ErrPolicyViolation, http.StatusLocked},
	}

	for _, tc := range cases {
		if !stdErrors.Is(tc.err, tc.sentinel) {
			t.Fatalf("expected %v to match %s", tc.err, tc.sentinel.Code)
		}
		wrapped := fmt.Errorf("service: op: %w", tc.err)
		if !stdErrors.Is(wrapped, tc.sentinel) {
			t.Fatalf("expected wrapped %v to match %s", tc.err, tc.sentinel.Code)
		}
		if got := FromError(wrapped).StatusCode; got != tc.status {
			t.Fatalf("status = %d, want %d", got, tc.status)
		}
	}

	if stdErrors.Is(Conflict("x"), ErrNotFound) {
		t.Fatal("conflict must not match not found")
	}
}

func TestWithDetailsDoesNotAlias(t *testing.T) {
	details := map[string]any{"suspended_until": "tomorrow"}
	err := ErrPolicyViolation.WithDetails(details)
	details["suspended_until"] = "changed"

	if err.Details["suspended_until"] != "tomorrow" {
		t.Fatalf("details should be copied, got %v", err.Details["suspended_until"])
	}
	if ErrPolicyViolation.Details != nil {
		t.Fatal("sentinel must remain without details")
	}
}

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}
