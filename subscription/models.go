// Package subscription holds the escrow ledger entry: deposited balance,
// cycle clock, and the lifecycle status machine.
package subscription

import (
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Status is the single source of truth for a subscription's state.
type Status string

const (
	StatusActive                Status = "active"
	StatusPendingUserCancel     Status = "pending_user_cancel"
	StatusPendingProviderCancel Status = "pending_provider_cancel"
	StatusCancelledByUser       Status = "cancelled_by_user"
	StatusCancelledByProvider   Status = "cancelled_by_provider"
	StatusCancelledInsufficient Status = "cancelled_insufficient_funds"
)

// transitions is the closed transition table. A status absent from the map
// (or an empty target list) accepts no transition. Reactivation from
// insufficient-funds cancellation is the one edge out of a cancelled state.
var transitions = map[Status][]Status{
	StatusActive: {
		StatusPendingUserCancel,
		StatusPendingProviderCancel,
		StatusCancelledInsufficient,
	},
	StatusPendingUserCancel:     {StatusCancelledByUser},
	StatusPendingProviderCancel: {StatusCancelledByProvider},
	StatusCancelledInsufficient: {StatusActive},
}

// CanTransitionTo reports whether the transition s → next is legal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is one of the cancelled statuses. Terminal
// subscriptions accept no further balance changes, with the single exception
// of a top-up reactivating StatusCancelledInsufficient.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCancelledByUser, StatusCancelledByProvider, StatusCancelledInsufficient:
		return true
	}
	return false
}

// IsPendingCancel reports whether a cancellation notice period is running.
func (s Status) IsPendingCancel() bool {
	return s == StatusPendingUserCancel || s == StatusPendingProviderCancel
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPendingUserCancel, StatusPendingProviderCancel,
		StatusCancelledByUser, StatusCancelledByProvider, StatusCancelledInsufficient:
		return true
	}
	return false
}

// CancelRequest marks who asked for cancellation. It is only meaningful
// while the status is one of the PENDING_* values and is cleared on every
// terminal transition.
type CancelRequest struct {
	RequestedBy types.Address `json:"requested_by"`
	Present     bool          `json:"present"`
}

// Subscription is the core ledger entity. Token, AmountPerCycle and
// FrequencyInBlocks are copied from the service at subscribe time and stay
// fixed for the subscription's lifetime; the service is not a live foreign
// key for pricing.
type Subscription struct {
	types.Entity
	ID                id.SubscriptionID `json:"id"`
	ServiceID         id.ServiceID      `json:"service_id"`
	Client            types.Address     `json:"client"`
	Vendor            types.Address     `json:"vendor"`
	Token             string            `json:"token"`
	AmountPerCycle    int64             `json:"amount_per_cycle"`
	FrequencyInBlocks uint64            `json:"frequency_in_blocks"`

	// RemainingBalance is the escrowed amount, never negative. It is drawn
	// down only in exact AmountPerCycle steps, and only when it covers one.
	RemainingBalance int64 `json:"remaining_balance"`

	LastPaymentBlock uint64 `json:"last_payment_block"`
	NextPaymentBlock uint64 `json:"next_payment_block"`

	Status Status `json:"status"`

	// CancelEffectiveBlock is the block at which a pending cancellation may
	// be finalized; for the insufficient-funds path it records when the
	// subscription terminated.
	CancelEffectiveBlock uint64        `json:"cancel_effective_block"`
	CancelRequest        CancelRequest `json:"cancel_request"`
}

// CyclePrice returns the cost of one cycle as a Coin.
func (s *Subscription) CyclePrice() types.Coin {
	return types.NewCoin(s.Token, s.AmountPerCycle)
}

// Escrow returns the remaining escrowed balance as a Coin.
func (s *Subscription) Escrow() types.Coin {
	return types.NewCoin(s.Token, s.RemainingBalance)
}

// CoversCycle reports whether the escrow covers one cycle's cost.
func (s *Subscription) CoversCycle() bool {
	return s.RemainingBalance >= s.AmountPerCycle
}

// DueAt reports whether a payment may be triggered at the given block.
func (s *Subscription) DueAt(block uint64) bool {
	return s.Status == StatusActive && block >= s.NextPaymentBlock
}

// PaymentInfo is the projection the off-chain scheduler polls to decide
// whether to submit a trigger.
type PaymentInfo struct {
	Status           Status `json:"status"`
	NextPaymentBlock uint64 `json:"next_payment_block"`
	RemainingBalance int64  `json:"remaining_balance"`
	AmountPerCycle   int64  `json:"amount_per_cycle"`
}

// State is the projection the scheduler polls for cancellation progress.
type State struct {
	Status               Status `json:"status"`
	NextPaymentBlock     uint64 `json:"next_payment_block"`
	CancelEffectiveBlock uint64 `json:"cancel_effective_block"`
}
