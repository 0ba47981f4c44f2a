package subscription

import "testing"

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		ok   bool
	}{
		{"ActiveToPendingUser", StatusActive, StatusPendingUserCancel, true},
		{"ActiveToPendingProvider", StatusActive, StatusPendingProviderCancel, true},
		{"ActiveToInsufficient", StatusActive, StatusCancelledInsufficient, true},
		{"ActiveToCancelledByUser", StatusActive, StatusCancelledByUser, false},
		{"PendingUserToCancelledByUser", StatusPendingUserCancel, StatusCancelledByUser, true},
		{"PendingUserToCancelledByProvider", StatusPendingUserCancel, StatusCancelledByProvider, false},
		{"PendingProviderToCancelledByProvider", StatusPendingProviderCancel, StatusCancelledByProvider, true},
		{"PendingUserToActive", StatusPendingUserCancel, StatusActive, false},
		{"InsufficientToActive", StatusCancelledInsufficient, StatusActive, true},
		{"CancelledByUserIsDead", StatusCancelledByUser, StatusActive, false},
		{"CancelledByProviderIsDead", StatusCancelledByProvider, StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
				t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.ok)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	terminal := []Status{StatusCancelledByUser, StatusCancelledByProvider, StatusCancelledInsufficient}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	pending := []Status{StatusPendingUserCancel, StatusPendingProviderCancel}
	for _, s := range pending {
		if !s.IsPendingCancel() {
			t.Errorf("%s should be pending cancel", s)
		}
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}

	if StatusActive.IsTerminal() || StatusActive.IsPendingCancel() {
		t.Error("active is neither terminal nor pending")
	}
}

func TestSubscriptionHelpers(t *testing.T) {
	sub := &Subscription{
		Token:             "EGLD",
		AmountPerCycle:    10,
		FrequencyInBlocks: 30,
		RemainingBalance:  25,
		NextPaymentBlock:  60,
		Status:            StatusActive,
	}

	if !sub.CoversCycle() {
		t.Error("25 covers a 10 cycle")
	}
	if sub.DueAt(59) {
		t.Error("not due before next payment block")
	}
	if !sub.DueAt(60) {
		t.Error("due at next payment block")
	}

	sub.Status = StatusPendingUserCancel
	if sub.DueAt(60) {
		t.Error("pending cancel never due")
	}

	sub.RemainingBalance = 9
	if sub.CoversCycle() {
		t.Error("9 does not cover a 10 cycle")
	}
}
