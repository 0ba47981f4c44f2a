package bank

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/escrow/types"
)

// Memory is an in-process Transferrer backed by a balance map. It is the
// default bank for tests and single-process deployments; production embeds
// the engine behind a chain-native transfer instead.
type Memory struct {
	mu       sync.Mutex
	escrow   map[string]int64                   // token -> escrow balance
	balances map[types.Address]map[string]int64 // holder -> token -> balance
}

// NewMemory returns an empty in-memory bank.
func NewMemory() *Memory {
	return &Memory{
		escrow:   make(map[string]int64),
		balances: make(map[types.Address]map[string]int64),
	}
}

// Fund credits the escrow pool directly. Callers use it to model deposits
// that arrive attached to an incoming call.
func (m *Memory) Fund(c types.Coin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escrow[c.Token] += c.Amount
}

// Transfer moves c from the escrow pool to the recipient's balance.
func (m *Memory) Transfer(_ context.Context, to types.Address, c types.Coin) error {
	if to.IsZero() {
		return fmt.Errorf("transfer to zero address")
	}
	if c.Amount < 0 {
		return fmt.Errorf("transfer of negative amount %d", c.Amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.escrow[c.Token] < c.Amount {
		return fmt.Errorf("escrow pool holds %d %s, cannot transfer %d", m.escrow[c.Token], c.Token, c.Amount)
	}

	m.escrow[c.Token] -= c.Amount
	if m.balances[to] == nil {
		m.balances[to] = make(map[string]int64)
	}
	m.balances[to][c.Token] += c.Amount
	return nil
}

// Balance returns the holder's balance in the given token.
func (m *Memory) Balance(holder types.Address, token string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[holder][token]
}

// EscrowBalance returns the escrow pool balance in the given token.
func (m *Memory) EscrowBalance(token string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.escrow[token]
}

var _ Transferrer = (*Memory)(nil)
