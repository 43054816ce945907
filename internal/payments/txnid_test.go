package payments

import (
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		txnID string
		want  Kind
	}{
		{"DON_17_1725012345678901234", KindDonation},
		{"SUB_3_1725012345678901234", KindSubscription},
		{"DON_1725012345_9f1c2d3e", KindDonation},
		{"SUB_1725012345_9f1c2d3e", KindSubscription},
		{"DONATION-123", KindUnknown},
		{"SUBSCRIBE_1", KindUnknown},
		{"REF_1_2", KindUnknown},
		{"", KindUnknown},
		{"DON", KindUnknown},
	}

	for _, tt := range tests {
		if got := KindOf(tt.txnID); got != tt.want {
			t.Errorf("KindOf(%q) = %q, want %q", tt.txnID, got, tt.want)
		}
	}
}

func TestNewTxnIDRoutesBack(t *testing.T) {
	id := NewTxnID(KindDonation, 42)
	if !strings.HasPrefix(id, "DON_42_") {
		t.Fatalf("id = %q, want DON_42_ prefix", id)
	}
	if KindOf(id) != KindDonation {
		t.Fatalf("generated id %q does not route back to its kind", id)
	}
}

func TestNewSimulatedTxnIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewSimulatedTxnID(KindSubscription)
		if KindOf(id) != KindSubscription {
			t.Fatalf("id %q does not route to subscription", id)
		}
		if seen[id] {
			t.Fatalf("duplicate simulated id %q", id)
		}
		seen[id] = true
	}
}
