package model

import "testing"

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Code: ErrNotFound, Message: "Session 'ses_123' not found"}
	want := "NOT_FOUND: Session 'ses_123' not found"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("Session", "ses_abc")
	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Message != "Session 'ses_abc' not found" {
		t.Errorf("Message = %q, want %q", err.Message, "Session 'ses_abc' not found")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("Invalid request",
		FieldError{Field: "replicates", Message: "must be >= 1"},
		FieldError{Field: "max_parallel", Message: "must be >= 1"},
	)
	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{
		Entity: "Run",
		ID:     "run_123",
		From:   "COMPLETED",
		To:     "QUEUED",
	}
	want := "invalid Run state transition: COMPLETED → QUEUED (entity run_123)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
