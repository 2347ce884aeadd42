package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"not found", NewNotFound("order", "o-1"), ErrorKindNotFound},
		{"invalid state", NewInvalidState("order", "o-1", "already voided"), ErrorKindInvalidState},
		{"validation", NewValidationFailed("qty must be greater than zero"), ErrorKindValidationFailed},
		{"precondition", NewPreconditionMissing("tenant_id is required"), ErrorKindPreconditionMissing},
		{"internal", NewInternal(errors.New("connection reset")), ErrorKindInternal},
		{"foreign error", errors.New("plain"), ErrorKindInternal},
		{"wrapped domain error", fmt.Errorf("command: %w", NewNotFound("order", "o-1")), ErrorKindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestKindPredicates(t *testing.T) {
	if !IsNotFound(NewNotFound("order", "o-1")) {
		t.Fatal("IsNotFound must match a not_found error")
	}
	if !IsInvalidState(NewInvalidState("order", "o-1", "placed")) {
		t.Fatal("IsInvalidState must match an invalid_state error")
	}
	if !IsValidationFailed(NewValidationFailed("bad input")) {
		t.Fatal("IsValidationFailed must match a validation error")
	}
	if !IsPreconditionMissing(NewPreconditionMissing("tenant")) {
		t.Fatal("IsPreconditionMissing must match a precondition error")
	}
	if IsNotFound(NewInvalidState("order", "o-1", "placed")) {
		t.Fatal("predicates must not match across kinds")
	}
	if IsNotFound(errors.New("plain")) {
		t.Fatal("predicates must not match foreign errors")
	}
}

func TestErrorMessage(t *testing.T) {
	err := NewNotFound("order", "o-1")
	if err.Error() != "order o-1: not found" {
		t.Fatalf("message = %q", err.Error())
	}

	err = NewValidationFailed("qty must be greater than zero")
	if err.Error() != "qty must be greater than zero" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(fmt.Errorf("query orders: %w", cause))

	if !errors.Is(err, cause) {
		t.Fatal("internal error must unwrap to its cause")
	}
}
