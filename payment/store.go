package payment

import (
	"context"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Store describes the persistence operations used by the payment journal.
// The journal is append-only: there is no update or delete.
type Store interface {
	// Append persists a new journal record.
	Append(ctx context.Context, r *Record) error

	// List retrieves journal records matching the given filter, oldest
	// first.
	List(ctx context.Context, opts ListOpts) ([]*Record, error)
}

// ListOpts filters journal listings.
type ListOpts struct {
	SubscriptionID id.SubscriptionID
	StreamID       id.StreamID
	Kind           Kind
	Address        types.Address // matches either side of the movement
	Limit          int
	Offset         int
}
