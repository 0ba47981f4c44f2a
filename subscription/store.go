package subscription

import (
	"context"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Store is the per-domain storage interface for subscriptions.
type Store interface {
	// Create persists a new subscription, assigning the next dense id and
	// appending it to the by-client, by-vendor and by-service indexes.
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	List(ctx context.Context, opts ListOpts) ([]*Subscription, error)
}

// ListOpts filters subscription listings. The reverse indexes are
// append-only and never pruned, so unfiltered listings include terminated
// subscriptions; set Status to filter.
type ListOpts struct {
	Client  types.Address
	Vendor  types.Address
	Service id.ServiceID
	Status  Status
	Limit   int
	Offset  int
}
