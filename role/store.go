package role

import (
	"context"

	"github.com/xraph/escrow/types"
)

// Store is the per-domain storage interface for role assignments.
type Store interface {
	// Get returns the role of an address, None if it never registered.
	Get(ctx context.Context, addr types.Address) (Role, error)
	// Set assigns a role. Fails if the address already holds any role.
	Set(ctx context.Context, addr types.Address, r Role) error
}
