// Package service holds the provider-authored catalog model.
package service

import (
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Service is a provider's offer: a price per billing cycle, a cycle length
// in blocks, and the token payments are denominated in. Subscriptions copy
// these fields at creation time and are not affected by later edits.
type Service struct {
	types.Entity
	ID                id.ServiceID  `json:"id"`
	Provider          types.Address `json:"provider"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Token             string        `json:"token"`
	AmountPerCycle    int64         `json:"amount_per_cycle"`
	FrequencyInBlocks uint64        `json:"frequency_in_blocks"`
	// Active is one-way: once false it never flips back. New subscriptions
	// are rejected; existing ones keep billing.
	Active bool `json:"active"`
}

// CyclePrice returns the cost of one cycle as a Coin.
func (s *Service) CyclePrice() types.Coin {
	return types.NewCoin(s.Token, s.AmountPerCycle)
}
