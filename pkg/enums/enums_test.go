package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	cases := map[string]OrderStatus{
		"PENDING":   OrderStatusPending,
		"confirmed": OrderStatusConfirmed,
		" Shipped ": OrderStatusShipped,
		"DELIVERED": OrderStatusDelivered,
		"cancelled": OrderStatusCancelled,
	}
	for raw, want := range cases {
		got, err := ParseOrderStatus(raw)
		if err != nil {
			t.Fatalf("ParseOrderStatus(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseOrderStatus(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseOrderStatus("REFUNDED"); err == nil {
		t.Fatal("expected error for unknown status")
	}
	if OrderStatus("REFUNDED").IsValid() {
		t.Fatal("unknown status should not be valid")
	}
}

func TestOrderStatusesReturnsCopy(t *testing.T) {
	statuses := OrderStatuses()
	statuses[0] = "MUTATED"
	if OrderStatuses()[0] != OrderStatusPending {
		t.Fatal("OrderStatuses must not expose the backing slice")
	}
}

func TestMovementKindDefaults(t *testing.T) {
	if MovementIn.DefaultReason() != "Stock inbound" {
		t.Fatalf("unexpected IN reason %q", MovementIn.DefaultReason())
	}
	if MovementOut.DefaultReason() != "Stock outbound" {
		t.Fatalf("unexpected OUT reason %q", MovementOut.DefaultReason())
	}
	if _, err := ParseMovementKind("SIDEWAYS"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestParsePaymentStatus(t *testing.T) {
	got, err := ParsePaymentStatus("PAID")
	if err != nil || got != PaymentStatusPaid {
		t.Fatalf("ParsePaymentStatus(PAID) = %s, %v", got, err)
	}
	if _, err := ParsePaymentStatus("settled"); err == nil {
		t.Fatal("expected error for unknown payment status")
	}
}

func TestOutboxTypes(t *testing.T) {
	if !EventStockAdjusted.IsValid() || !AggregateStockUnit.IsValid() {
		t.Fatal("expected stock event types to be valid")
	}
	if _, err := ParseOutboxEventType("order_paid"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}
