package escrow_test

import (
	"context"
	"errors"
	"testing"

	escrow "github.com/xraph/escrow"
	"github.com/xraph/escrow/bank"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/stream"
	"github.com/xraph/escrow/types"
)

const (
	sender    = types.Address("erd1sender")
	recipient = types.Address("erd1recipient")
)

func newStreamEngine(t *testing.T) (*escrow.Engine, *bank.Memory) {
	t.Helper()
	b := bank.NewMemory()
	e := escrow.New(memory.New(), b)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e, b
}

// openStream funds the bank and opens a 100-token stream vesting over
// blocks 100 to 200.
func openStream(t *testing.T, e *escrow.Engine, b *bank.Memory) *stream.Stream {
	t.Helper()
	b.Fund(types.NewCoin(token, 100))
	st, err := e.CreateStream(context.Background(), types.NewCall(sender, 100), escrow.CreateStreamParams{
		Recipient:  recipient,
		StartBlock: 100,
		EndBlock:   200,
	}, types.NewCoin(token, 100))
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	return st
}

func TestCreateStreamValidation(t *testing.T) {
	ctx := context.Background()
	e, b := newStreamEngine(t)
	b.Fund(types.NewCoin(token, 100))

	cases := []struct {
		name    string
		params  escrow.CreateStreamParams
		deposit types.Coin
	}{
		{"empty recipient", escrow.CreateStreamParams{EndBlock: 200}, types.NewCoin(token, 100)},
		{"self stream", escrow.CreateStreamParams{Recipient: sender, EndBlock: 200}, types.NewCoin(token, 100)},
		{"zero deposit", escrow.CreateStreamParams{Recipient: recipient, EndBlock: 200}, types.NewCoin(token, 0)},
		{"end before start", escrow.CreateStreamParams{Recipient: recipient, StartBlock: 200, EndBlock: 150}, types.NewCoin(token, 100)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreateStream(ctx, types.NewCall(sender, 100), tc.params, tc.deposit)
			if !errors.Is(err, escrow.ErrInvalidParameter) {
				t.Errorf("got %v, want ErrInvalidParameter", err)
			}
		})
	}

	// Zero start defaults to the call's block.
	st, err := e.CreateStream(ctx, types.NewCall(sender, 120), escrow.CreateStreamParams{
		Recipient: recipient,
		EndBlock:  220,
	}, types.NewCoin(token, 100))
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if st.StartBlock != 120 {
		t.Errorf("start block = %d, want 120 (call block)", st.StartBlock)
	}
}

func TestStreamClaim(t *testing.T) {
	ctx := context.Background()
	e, b := newStreamEngine(t)
	st := openStream(t, e, b)

	// Outsiders cannot claim.
	if _, err := e.Claim(ctx, types.NewCall(stranger, 150), st.ID); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger claiming: got %v, want ErrUnauthorized", err)
	}

	// Nothing vested at the start block: a successful no-op.
	payout, err := e.Claim(ctx, types.NewCall(recipient, 100), st.ID)
	if err != nil {
		t.Fatalf("claim at start: %v", err)
	}
	if payout.Amount != 0 {
		t.Errorf("payout at start = %d, want 0", payout.Amount)
	}

	// Halfway through, half the deposit has vested. The sender may submit
	// the claim; the payout still lands with the recipient.
	payout, err = e.Claim(ctx, types.NewCall(sender, 150), st.ID)
	if err != nil {
		t.Fatalf("claim at 150: %v", err)
	}
	if payout.Amount != 50 {
		t.Errorf("payout = %d, want 50", payout.Amount)
	}
	if b.Balance(recipient, token) != 50 {
		t.Errorf("recipient balance = %d, want 50", b.Balance(recipient, token))
	}
	if b.Balance(sender, token) != 0 {
		t.Errorf("sender balance = %d, want 0", b.Balance(sender, token))
	}

	// Claiming again at the same block yields nothing new.
	payout, err = e.Claim(ctx, types.NewCall(recipient, 150), st.ID)
	if err != nil || payout.Amount != 0 {
		t.Fatalf("repeat claim: got %d, %v; want 0, nil", payout.Amount, err)
	}

	// Past the end, the rest is claimable.
	payout, err = e.Claim(ctx, types.NewCall(recipient, 300), st.ID)
	if err != nil {
		t.Fatalf("claim past end: %v", err)
	}
	if payout.Amount != 50 {
		t.Errorf("final payout = %d, want 50", payout.Amount)
	}
	if b.Balance(recipient, token) != 100 {
		t.Errorf("recipient total = %d, want 100", b.Balance(recipient, token))
	}
}

func TestStreamCancelSettles(t *testing.T) {
	ctx := context.Background()
	e, b := newStreamEngine(t)
	st := openStream(t, e, b)

	// Recipient claims the first 50 at the midpoint.
	if _, err := e.Claim(ctx, types.NewCall(recipient, 150), st.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Only the sender cancels.
	if err := e.CancelStream(ctx, types.NewCall(stranger, 175), st.ID); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger cancel: got %v, want ErrUnauthorized", err)
	}
	if err := e.CancelStream(ctx, types.NewCall(recipient, 175), st.ID); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("recipient cancel: got %v, want ErrUnauthorized", err)
	}

	// Sender cancels at 175: 75 vested in total, 50 already claimed, so
	// 25 goes to the recipient and the unvested 25 refunds to the sender.
	if err := e.CancelStream(ctx, types.NewCall(sender, 175), st.ID); err != nil {
		t.Fatalf("CancelStream: %v", err)
	}
	if b.Balance(recipient, token) != 75 {
		t.Errorf("recipient total = %d, want 75", b.Balance(recipient, token))
	}
	if b.Balance(sender, token) != 25 {
		t.Errorf("sender refund = %d, want 25", b.Balance(sender, token))
	}
	if b.EscrowBalance(token) != 0 {
		t.Errorf("escrow pool = %d, want 0", b.EscrowBalance(token))
	}

	got, err := e.Stream(ctx, st.ID)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !got.Closed {
		t.Error("stream not closed after cancel")
	}

	// A closed stream rejects every further movement.
	if _, err := e.Claim(ctx, types.NewCall(recipient, 300), st.ID); !errors.Is(err, escrow.ErrStreamClosed) {
		t.Fatalf("claim on closed: got %v, want ErrStreamClosed", err)
	}
	if err := e.CancelStream(ctx, types.NewCall(sender, 300), st.ID); !errors.Is(err, escrow.ErrStreamClosed) {
		t.Fatalf("cancel on closed: got %v, want ErrStreamClosed", err)
	}
}

func TestStreamCancelRefundFailureIsRetrySafe(t *testing.T) {
	ctx := context.Background()
	fb := &failingBank{Memory: bank.NewMemory()}
	e := escrow.New(memory.New(), fb)
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	fb.Fund(types.NewCoin(token, 100))
	st, err := e.CreateStream(ctx, types.NewCall(sender, 100), escrow.CreateStreamParams{
		Recipient:  recipient,
		StartBlock: 100,
		EndBlock:   200,
	}, types.NewCoin(token, 100))
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}

	// Cancel at the midpoint with the sender refund failing: the recipient
	// payout has already happened, so it must be on record.
	fb.reject = sender
	if err := e.CancelStream(ctx, types.NewCall(sender, 150), st.ID); !errors.Is(err, escrow.ErrTransferFailed) {
		t.Fatalf("cancel with failing refund: got %v, want ErrTransferFailed", err)
	}

	got, err := e.Stream(ctx, st.ID)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got.ClaimedAmount != 50 {
		t.Errorf("claimed = %d, want 50 (recipient payout recorded)", got.ClaimedAmount)
	}
	if got.Closed {
		t.Error("stream closed despite failed refund")
	}
	if fb.Balance(recipient, token) != 50 {
		t.Errorf("recipient balance = %d, want 50", fb.Balance(recipient, token))
	}
	records, err := e.Payments(ctx, payment.ListOpts{StreamID: st.ID, Kind: payment.KindClaim})
	if err != nil {
		t.Fatalf("Payments: %v", err)
	}
	if len(records) != 1 || records[0].Coin.Amount != 50 {
		t.Fatalf("claim journal = %+v, want one 50-token record", records)
	}

	// The recorded claim blocks double payment in the meantime.
	payout, err := e.Claim(ctx, types.NewCall(recipient, 150), st.ID)
	if err != nil || payout.Amount != 0 {
		t.Fatalf("claim after failed cancel: got %d, %v; want 0, nil", payout.Amount, err)
	}

	// Once the bank recovers, the retried cancel settles the remainder.
	fb.reject = ""
	if err := e.CancelStream(ctx, types.NewCall(sender, 150), st.ID); err != nil {
		t.Fatalf("retried cancel: %v", err)
	}
	if fb.Balance(recipient, token)+fb.Balance(sender, token) != 100 {
		t.Errorf("paid out %d of a 100 deposit",
			fb.Balance(recipient, token)+fb.Balance(sender, token))
	}
	if fb.Balance(sender, token) != 50 {
		t.Errorf("sender refund = %d, want 50", fb.Balance(sender, token))
	}
	if fb.EscrowBalance(token) != 0 {
		t.Errorf("escrow pool = %d, want 0", fb.EscrowBalance(token))
	}
	got, _ = e.Stream(ctx, st.ID)
	if !got.Closed {
		t.Error("stream not closed after retried cancel")
	}
}
