// Package payment is the append-only journal of value movements: every
// transfer the engine performs out of escrow is recorded here.
package payment

import (
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Kind classifies a journal record by the operation that produced it.
type Kind string

const (
	// KindCharge is a recurring cycle payment to a vendor.
	KindCharge Kind = "charge"

	// KindRefund is a return of escrowed funds to a client.
	KindRefund Kind = "refund"

	// KindDeposit is escrow funding at subscribe or top-up time.
	KindDeposit Kind = "deposit"

	// KindClaim is a vested stream payout to a recipient.
	KindClaim Kind = "claim"
)

// Valid reports whether k is a known journal kind.
func (k Kind) Valid() bool {
	switch k {
	case KindCharge, KindRefund, KindDeposit, KindClaim:
		return true
	}
	return false
}

// Record is one journal entry. Records are written once and never updated.
type Record struct {
	types.Entity
	ID id.PaymentID `json:"id"`

	// Exactly one of SubscriptionID and StreamID is set, matching the
	// ledger object the movement belongs to.
	SubscriptionID id.SubscriptionID `json:"subscription_id,omitempty"`
	StreamID       id.StreamID       `json:"stream_id,omitempty"`

	Kind  Kind          `json:"kind"`
	From  types.Address `json:"from"`
	To    types.Address `json:"to"`
	Coin  types.Coin    `json:"coin"`
	Block uint64        `json:"block"`
}
