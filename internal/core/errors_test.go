package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Is(t *testing.T) {
	err := ErrConflict("status changed underneath us")
	wrapped := fmt.Errorf("updating task: %w", err)

	if !IsConflict(wrapped) {
		t.Fatalf("expected IsConflict through wrapping")
	}
	if IsNoEligibleAgent(wrapped) {
		t.Fatalf("conflict must not match NoEligibleAgent")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrPersistence("inserting task", cause)

	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable via errors.Is")
	}
	if !err.Retryable {
		t.Fatalf("persistence failures should be marked retryable")
	}
}

func TestDomainError_Details(t *testing.T) {
	err := ErrIndexing("src/a.go", errors.New("boom"))
	if err.Details["path"] != "src/a.go" {
		t.Fatalf("expected path detail, got %v", err.Details)
	}
}
