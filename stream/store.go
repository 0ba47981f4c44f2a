package stream

import (
	"context"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Store describes the persistence operations used by the stream module.
type Store interface {
	// Create persists a new stream and assigns the next stream id.
	// Assigned ids are dense, 1-based, and never reused.
	Create(ctx context.Context, s *Stream) error

	// Get retrieves a stream by id.
	Get(ctx context.Context, streamID id.StreamID) (*Stream, error)

	// Update persists changes to an existing stream.
	Update(ctx context.Context, s *Stream) error

	// List retrieves streams matching the given filter.
	List(ctx context.Context, opts ListOpts) ([]*Stream, error)
}

// ListOpts filters stream listings.
type ListOpts struct {
	Sender    types.Address
	Recipient types.Address
	Limit     int
	Offset    int
}
