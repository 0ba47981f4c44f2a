package escrow

import "github.com/xraph/escrow/types"

// Re-export common types for convenience so users don't have to import types package.

// Coin is re-exported from types package.
type Coin = types.Coin

// Call is re-exported from types package.
type Call = types.Call

// Address is re-exported from types package.
type Address = types.Address

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Coin constructors
var (
	NewCoin = types.NewCoin
	Native  = types.Native
	Zero    = types.Zero
	Sum     = types.Sum
)

// Re-export Call and Entity constructors
var (
	NewCall   = types.NewCall
	NewEntity = types.NewEntity
)

// NativeToken is the default token identifier.
const NativeToken = types.NativeToken
