package escrow

import (
	"context"
	"fmt"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/stream"
	"github.com/xraph/escrow/types"
)

// ──────────────────────────────────────────────────
// Payment Streams
// ──────────────────────────────────────────────────

// CreateStreamParams carries the stream definition. StartBlock zero means
// the stream starts at the creating call's block.
type CreateStreamParams struct {
	Recipient  types.Address
	StartBlock uint64
	EndBlock   uint64
}

// CreateStream opens a payment stream: the attached deposit vests linearly
// from the caller to the recipient between the start and end blocks. Unlike
// subscriptions, streams need no role registration.
func (e *Engine) CreateStream(ctx context.Context, call types.Call, params CreateStreamParams, deposit types.Coin) (*stream.Stream, error) {
	if params.Recipient.IsZero() {
		return nil, ValidationError{Field: "recipient", Message: "must not be empty"}
	}
	if params.Recipient == call.Caller {
		return nil, ValidationError{Field: "recipient", Message: "cannot stream to self"}
	}
	if !deposit.IsPositive() {
		return nil, ValidationError{Field: "deposit", Message: "must be strictly positive"}
	}

	if params.StartBlock == 0 {
		params.StartBlock = call.Block
	}
	if params.EndBlock <= params.StartBlock {
		return nil, ValidationError{Field: "end_block", Message: "must be after start block"}
	}

	st := &stream.Stream{
		Entity:       types.NewEntity(),
		Sender:       call.Caller,
		Recipient:    params.Recipient,
		Token:        deposit.Token,
		TotalDeposit: deposit.Amount,
		StartBlock:   params.StartBlock,
		EndBlock:     params.EndBlock,
	}

	if err := e.store.CreateStream(ctx, st); err != nil {
		return nil, err
	}

	e.journal(ctx, &payment.Record{
		StreamID: st.ID,
		Kind:     payment.KindDeposit,
		From:     call.Caller,
		To:       EscrowAccount,
		Coin:     deposit,
		Block:    call.Block,
	})

	e.logger.Info("stream created",
		"stream_id", st.ID,
		"sender", st.Sender,
		"recipient", st.Recipient,
		"deposit", st.TotalDeposit,
		"start_block", st.StartBlock,
		"end_block", st.EndBlock,
	)

	e.plugins.EmitStreamCreated(ctx, st)
	return st, nil
}

// Claim pays the recipient everything vested and not yet claimed. Either
// party may call it; the payout always goes to the recipient. Claiming
// while nothing has vested is a successful no-op returning a zero coin.
func (e *Engine) Claim(ctx context.Context, call types.Call, streamID id.StreamID) (types.Coin, error) {
	st, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return types.Coin{}, err
	}

	if call.Caller != st.Recipient && call.Caller != st.Sender {
		return types.Coin{}, ErrUnauthorized
	}
	if st.Closed {
		return types.Coin{}, ErrStreamClosed
	}

	claimable := st.ClaimableAt(call.Block)
	if claimable == 0 {
		return types.Zero(st.Token), nil
	}

	payout := types.NewCoin(st.Token, claimable)
	if err := e.bank.Transfer(ctx, st.Recipient, payout); err != nil {
		return types.Coin{}, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	st.ClaimedAmount += claimable
	st.Touch()

	if err := e.store.UpdateStream(ctx, st); err != nil {
		return types.Coin{}, err
	}

	e.journal(ctx, &payment.Record{
		StreamID: st.ID,
		Kind:     payment.KindClaim,
		From:     EscrowAccount,
		To:       st.Recipient,
		Coin:     payout,
		Block:    call.Block,
	})

	e.logger.Info("stream claimed",
		"stream_id", st.ID,
		"recipient", st.Recipient,
		"amount", claimable,
		"claimed_total", st.ClaimedAmount,
	)

	e.plugins.EmitStreamClaimed(ctx, st, claimable)
	return payout, nil
}

// CancelStream settles a stream early. Only the sender may call it: the
// vested unclaimed share is paid to the recipient, the unvested rest is
// refunded to the sender, and the stream closes permanently.
func (e *Engine) CancelStream(ctx context.Context, call types.Call, streamID id.StreamID) error {
	st, err := e.store.GetStream(ctx, streamID)
	if err != nil {
		return err
	}

	if call.Caller != st.Sender {
		return ErrUnauthorized
	}
	if st.Closed {
		return ErrStreamClosed
	}

	// Two transfers settle the stream, so the recipient payout is
	// persisted and journaled on its own before the refund is attempted.
	// A refund failure then leaves a consistent stream: the claim is on
	// record, and a retried cancel pays out only what is still owed.
	vestedShare := st.ClaimableAt(call.Block)
	if vestedShare > 0 {
		if err := e.bank.Transfer(ctx, st.Recipient, types.NewCoin(st.Token, vestedShare)); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}

		st.ClaimedAmount += vestedShare
		st.Touch()
		if err := e.store.UpdateStream(ctx, st); err != nil {
			return err
		}

		e.journal(ctx, &payment.Record{
			StreamID: st.ID,
			Kind:     payment.KindClaim,
			From:     EscrowAccount,
			To:       st.Recipient,
			Coin:     types.NewCoin(st.Token, vestedShare),
			Block:    call.Block,
		})
	}

	refund := st.Remaining()
	if refund > 0 {
		if err := e.bank.Transfer(ctx, st.Sender, types.NewCoin(st.Token, refund)); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	st.ClaimedAmount = st.TotalDeposit
	st.Closed = true
	st.Touch()

	if err := e.store.UpdateStream(ctx, st); err != nil {
		return err
	}

	if refund > 0 {
		e.journal(ctx, &payment.Record{
			StreamID: st.ID,
			Kind:     payment.KindRefund,
			From:     EscrowAccount,
			To:       st.Sender,
			Coin:     types.NewCoin(st.Token, refund),
			Block:    call.Block,
		})
	}

	e.logger.Info("stream cancelled",
		"stream_id", st.ID,
		"paid_to_recipient", vestedShare,
		"refunded_to_sender", refund,
	)

	e.plugins.EmitStreamCanceled(ctx, st)
	return nil
}

// Stream retrieves a stream by id.
func (e *Engine) Stream(ctx context.Context, streamID id.StreamID) (*stream.Stream, error) {
	return e.store.GetStream(ctx, streamID)
}

// Streams lists streams matching the given filter.
func (e *Engine) Streams(ctx context.Context, opts stream.ListOpts) ([]*stream.Stream, error) {
	return e.store.ListStreams(ctx, opts)
}
