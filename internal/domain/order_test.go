package domain

import "testing"

func TestOrderStatusValid(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusOpen, OrderStatusPlaced, OrderStatusClosed, OrderStatusVoided} {
		if !status.Valid() {
			t.Fatalf("status %q must be valid", status)
		}
	}
	if OrderStatus("draft").Valid() {
		t.Fatal("unknown status must be invalid")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if !OrderStatusVoided.Terminal() {
		t.Fatal("voided must be terminal")
	}
	if !OrderStatusClosed.Terminal() {
		t.Fatal("closed must be terminal")
	}
	if OrderStatusOpen.Terminal() || OrderStatusPlaced.Terminal() {
		t.Fatal("open and placed must not be terminal")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusOpen, OrderStatusPlaced, true},
		{OrderStatusOpen, OrderStatusVoided, true},
		{OrderStatusOpen, OrderStatusClosed, false},
		{OrderStatusPlaced, OrderStatusClosed, true},
		{OrderStatusPlaced, OrderStatusVoided, true},
		{OrderStatusPlaced, OrderStatusOpen, false},
		{OrderStatusVoided, OrderStatusOpen, false},
		{OrderStatusVoided, OrderStatusPlaced, false},
		{OrderStatusClosed, OrderStatusVoided, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.allowed {
			t.Fatalf("%s → %s: CanTransition = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestRequestContextPreconditions(t *testing.T) {
	rc := RequestContext{TenantID: "t-1", LocationID: "l-1"}
	if err := rc.RequireTenant(); err != nil {
		t.Fatalf("RequireTenant: %v", err)
	}
	if err := rc.RequireLocation(); err != nil {
		t.Fatalf("RequireLocation: %v", err)
	}

	rc = RequestContext{LocationID: "l-1"}
	if err := rc.RequireTenant(); !IsPreconditionMissing(err) {
		t.Fatalf("expected precondition_missing for empty tenant, got %v", err)
	}

	rc = RequestContext{TenantID: "  "}
	if err := rc.RequireTenant(); !IsPreconditionMissing(err) {
		t.Fatalf("whitespace tenant must fail, got %v", err)
	}

	rc = RequestContext{TenantID: "t-1"}
	if err := rc.RequireLocation(); !IsPreconditionMissing(err) {
		t.Fatalf("expected precondition_missing for empty location, got %v", err)
	}
}
