package service

import (
	"context"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Store is the per-domain storage interface for catalog services.
type Store interface {
	// Create persists a new service, assigning the next dense id.
	Create(ctx context.Context, s *Service) error
	Get(ctx context.Context, serviceID id.ServiceID) (*Service, error)
	Update(ctx context.Context, s *Service) error
	List(ctx context.Context, opts ListOpts) ([]*Service, error)
}

// ListOpts filters service listings. The per-provider index is append-only;
// deactivated services stay listed unless ActiveOnly is set.
type ListOpts struct {
	Provider   types.Address
	ActiveOnly bool
	Limit      int
	Offset     int
}
