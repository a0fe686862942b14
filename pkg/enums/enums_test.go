package enums

import (
	"testing"
	"time"
)

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCanceled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCanceled, false},
		{OrderStatusCanceled, OrderStatusProcessing, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Fatalf("%s -> %s: expected %v got %v", tt.from, tt.to, tt.want, got)
		}
	}
	if !OrderStatusCanceled.IsTerminal() || OrderStatusShipped.IsTerminal() {
		t.Fatalf("unexpected terminal classification")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, err := ParseOrderStatus("processing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseOrderStatus("refunded"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestOrderWindowSince(t *testing.T) {
	now := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	w, err := ParseOrderWindow("3months")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := w.Since(now); !got.Equal(now.AddDate(0, 0, -90)) {
		t.Fatalf("unexpected lower bound %s", got)
	}
	if _, err := ParseOrderWindow("decade"); err == nil {
		t.Fatalf("expected error for unknown window")
	}
}

func TestProductStatusParse(t *testing.T) {
	if s, err := ParseProductStatus("flash_sale"); err != nil || s != ProductStatusFlashSale {
		t.Fatalf("unexpected parse result %q %v", s, err)
	}
	if ProductStatus("clearance").IsValid() {
		t.Fatalf("unexpected valid status")
	}
}

func TestOutboxEventTypes(t *testing.T) {
	for _, raw := range []string{"order.created", "order.status_changed", "user.registered", "user.password_changed", "newsletter.subscribed"} {
		if _, err := ParseOutboxEventType(raw); err != nil {
			t.Fatalf("expected %q to parse: %v", raw, err)
		}
	}
	if EventOrderCreated.IsValid() != true || OutboxEventType("ad.created").IsValid() {
		t.Fatalf("unexpected validity")
	}
}

func TestPaymentOutcome(t *testing.T) {
	if !PaymentOutcomeAccepted.IsFinal() || !PaymentOutcomeRejected.IsFinal() {
		t.Fatal("accepted and rejected must be final")
	}
	if PaymentOutcomePending.IsFinal() {
		t.Fatal("pending must not be final")
	}
	if _, err := ParsePaymentOutcome("maybe"); err == nil {
		t.Fatal("expected parse error")
	}
	got, err := ParsePaymentOutcome("rejected")
	if err != nil || got != PaymentOutcomeRejected {
		t.Fatalf("unexpected parse result %v %v", got, err)
	}
}
