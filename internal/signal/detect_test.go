package signal

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDetect(t *testing.T) {
	customerID := uuid.New()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	amount := 150.0

	tests := []struct {
		name       string
		eventType  string
		wantType   Type
		wantDetect bool
	}{
		{"stripe charge failed", "charge.failed", TypePaymentFailure, true},
		{"stripe invoice failed", "invoice.payment_failed", TypePaymentFailure, true},
		{"overdue invoice", "invoice.overdue", TypeOverdueInvoice, true},
		{"deal lost", "deal.lost", TypeDealLost, true},
		{"usage drop", "usage.drop", TypeUsageDrop, true},
		{"inactivity", "activity.none_7d", TypeInactivity7d, true},
		{"unknown event", "subscription.created", "", false},
		{"empty event", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := Detect(RawEvent{
				CustomerID: customerID,
				EventType:  tt.eventType,
				Amount:     &amount,
				Metadata:   map[string]string{"source": "stripe", "eventId": "evt_1"},
			}, now)

			if ok != tt.wantDetect {
				t.Fatalf("Detect(%q) detected=%v, want %v", tt.eventType, ok, tt.wantDetect)
			}
			if !ok {
				return
			}
			if sig.Type != tt.wantType {
				t.Errorf("Detect(%q) type=%s, want %s", tt.eventType, sig.Type, tt.wantType)
			}
			if sig.CustomerID != customerID {
				t.Errorf("customer id not carried over")
			}
			if sig.Confidence == nil || *sig.Confidence <= 0 {
				t.Errorf("expected baseline confidence, got %v", sig.Confidence)
			}
			if sig.Amount == nil || *sig.Amount != amount {
				t.Errorf("amount not carried over")
			}
			if sig.Provenance.Source != "stripe" || sig.Provenance.EventID != "evt_1" {
				t.Errorf("provenance not carried over: %+v", sig.Provenance)
			}
			if err := sig.Validate(); err != nil {
				t.Errorf("detected signal should validate: %v", err)
			}
		})
	}
}

func TestSignalValidate(t *testing.T) {
	now := time.Now()
	valid := New(TypePaymentFailure, uuid.New(), now).WithConfidence(0.8)
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid signal rejected: %v", err)
	}

	bad := []Signal{
		{ID: uuid.New(), Type: "bogus", CustomerID: uuid.New(), OccurredAt: now},
		{ID: uuid.New(), Type: TypeDealLost, OccurredAt: now},
		{ID: uuid.New(), Type: TypeDealLost, CustomerID: uuid.New()},
		New(TypeDealLost, uuid.New(), now).WithConfidence(1.5),
		New(TypeDealLost, uuid.New(), now).WithAmount(-5),
	}
	for i, s := range bad {
		if err := s.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}
