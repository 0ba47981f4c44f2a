// Package role holds the immutable role registry model: each address is
// assigned a role at most once, and no endpoint ever changes it afterwards.
package role

import (
	"github.com/xraph/escrow/types"
)

// Role is the registered role of an address.
type Role string

const (
	// None is the role of an address that never registered. Reads of an
	// unknown address return None, not an error.
	None Role = "none"
	// User may subscribe to services.
	User Role = "user"
	// Provider may create services.
	Provider Role = "provider"
)

// IsRegistered reports whether the role was explicitly assigned.
func (r Role) IsRegistered() bool { return r == User || r == Provider }

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == None || r == User || r == Provider }

// Assignment records a role grant to an address.
type Assignment struct {
	types.Entity
	Address types.Address `json:"address"`
	Role    Role          `json:"role"`
}
