// Package types provides common types used across the escrow engine.
package types

import (
	"fmt"
)

// NativeToken is the identifier of the chain's native asset, used when a
// service omits an explicit token.
const NativeToken = "EGLD"

// Coin represents a token-denominated value in the smallest unit of the
// token. All arithmetic is integer-only — no floating point.
//
// Examples:
//   - Native(1_000_000) = 1000000 atomic units of the native asset
//   - Token("USDC-123456", 60) = 60 atomic units of USDC
type Coin struct {
	Token  string `json:"token"`  // Token identifier, e.g. "EGLD", "USDC-123456"
	Amount int64  `json:"amount"` // Smallest unit (atomic)
}

// Native creates a Coin denominated in the chain's native asset.
func Native(amount int64) Coin { return Coin{Token: NativeToken, Amount: amount} }

// NewCoin creates a Coin denominated in the given token.
func NewCoin(token string, amount int64) Coin { return Coin{Token: token, Amount: amount} }

// Zero returns a zero Coin in the given token.
func Zero(token string) Coin { return Coin{Token: token, Amount: 0} }

// Arithmetic operations

// Add adds two Coin values. Panics if tokens don't match.
func (c Coin) Add(other Coin) Coin {
	c.assertSameToken(other)
	return Coin{Token: c.Token, Amount: c.Amount + other.Amount}
}

// Subtract subtracts another Coin value. Panics if tokens don't match.
func (c Coin) Subtract(other Coin) Coin {
	c.assertSameToken(other)
	return Coin{Token: c.Token, Amount: c.Amount - other.Amount}
}

// Multiply multiplies the Coin by a quantity.
func (c Coin) Multiply(qty int64) Coin {
	return Coin{Token: c.Token, Amount: c.Amount * qty}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (c Coin) IsZero() bool { return c.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (c Coin) IsPositive() bool { return c.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (c Coin) IsNegative() bool { return c.Amount < 0 }

// Equal returns true if both Coin values are equal (same amount and token).
func (c Coin) Equal(other Coin) bool {
	return c.Amount == other.Amount && c.Token == other.Token
}

// LessThan returns true if this Coin is less than other. Panics if tokens don't match.
func (c Coin) LessThan(other Coin) bool {
	c.assertSameToken(other)
	return c.Amount < other.Amount
}

// GreaterThan returns true if this Coin is greater than other. Panics if tokens don't match.
func (c Coin) GreaterThan(other Coin) bool {
	c.assertSameToken(other)
	return c.Amount > other.Amount
}

// SameToken returns true if both coins are denominated in the same token.
func (c Coin) SameToken(other Coin) bool { return c.Token == other.Token }

// Sum adds up a slice of Coin values. Panics if tokens don't match.
// Returns the zero Coin for an empty slice.
func Sum(coins ...Coin) Coin {
	if len(coins) == 0 {
		return Coin{}
	}
	total := coins[0]
	for _, c := range coins[1:] {
		total = total.Add(c)
	}
	return total
}

// String returns a human-readable "amount token" string, e.g. "60 USDC-123456".
func (c Coin) String() string {
	return fmt.Sprintf("%d %s", c.Amount, c.Token)
}

// assertSameToken panics if tokens don't match.
func (c Coin) assertSameToken(other Coin) {
	if c.Token != other.Token {
		panic(fmt.Sprintf("coin: token mismatch: %s != %s", c.Token, other.Token))
	}
}
