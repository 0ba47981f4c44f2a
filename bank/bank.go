// Package bank abstracts the token transfer layer the engine pays out
// through. Incoming deposits travel with the call itself; only outgoing
// movements (cycle charges, refunds, stream claims) go through a
// Transferrer.
package bank

import (
	"context"

	"github.com/xraph/escrow/types"
)

// Transferrer sends tokens from the engine's escrow to a recipient.
// Implementations must be atomic per call: a returned error means no value
// moved.
type Transferrer interface {
	Transfer(ctx context.Context, to types.Address, c types.Coin) error
}
