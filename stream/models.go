// Package stream holds the linear-vesting payment stream model: a deposit
// that vests block by block from sender to recipient between a start and an
// end block.
package stream

import (
	"math/big"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/types"
)

// Stream is a continuous payment: TotalDeposit vests linearly over
// [StartBlock, EndBlock] and the recipient claims the vested share in
// arbitrary increments. Vesting math is integer-only.
type Stream struct {
	types.Entity
	ID        id.StreamID   `json:"id"`
	Sender    types.Address `json:"sender"`
	Recipient types.Address `json:"recipient"`
	Token     string        `json:"token"`

	TotalDeposit  int64 `json:"total_deposit"`
	ClaimedAmount int64 `json:"claimed_amount"`

	StartBlock uint64 `json:"start_block"`
	EndBlock   uint64 `json:"end_block"`

	// Closed is set by cancellation. A closed stream has already paid out
	// its full deposit (vested share to the recipient, rest refunded) and
	// accepts no further claims.
	Closed bool `json:"closed"`
}

// VestedAt returns the total amount vested at the given block, clamped to
// the stream window. The deposit·elapsed product can exceed int64 for large
// deposits over long windows, so the intermediate runs through math/big;
// the result always fits.
func (s *Stream) VestedAt(block uint64) int64 {
	if block < s.StartBlock {
		return 0
	}
	if block >= s.EndBlock {
		return s.TotalDeposit
	}

	duration := s.EndBlock - s.StartBlock
	elapsed := block - s.StartBlock

	v := new(big.Int).SetInt64(s.TotalDeposit)
	v.Mul(v, new(big.Int).SetUint64(elapsed))
	v.Div(v, new(big.Int).SetUint64(duration))
	return v.Int64()
}

// ClaimableAt returns the vested-minus-claimed amount at the given block.
// Never negative.
func (s *Stream) ClaimableAt(block uint64) int64 {
	vested := s.VestedAt(block)
	if vested <= s.ClaimedAmount {
		return 0
	}
	return vested - s.ClaimedAmount
}

// Remaining returns the unclaimed part of the deposit.
func (s *Stream) Remaining() int64 {
	return s.TotalDeposit - s.ClaimedAmount
}
