package models

import (
	"testing"
	"time"
)

func TestSubscriptionAcceptingAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 23, 50, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  *Subscription
		want bool
	}{
		{name: "nil subscription", sub: nil, want: false},
		{
			name: "active and paid ahead",
			sub:  &Subscription{IsActive: true, PaidUntil: now.AddDate(0, 1, 0)},
			want: true,
		},
		{
			name: "expired even though active flag holds",
			sub:  &Subscription{IsActive: true, PaidUntil: now.AddDate(0, 0, -1)},
			want: false,
		},
		{
			name: "paid ahead but deactivated",
			sub:  &Subscription{IsActive: false, PaidUntil: now.AddDate(0, 1, 0)},
			want: false,
		},
		{
			name: "paid through exactly today",
			sub:  &Subscription{IsActive: true, PaidUntil: time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)},
			want: true,
		},
		{
			name: "paid through yesterday midnight",
			sub:  &Subscription{IsActive: true, PaidUntil: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.AcceptingAt(now); got != tt.want {
				t.Fatalf("AcceptingAt = %t, want %t", got, tt.want)
			}
		})
	}
}
