package cranker_test

import (
	"context"
	"testing"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/bank"
	"github.com/xraph/escrow/cranker"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

type fakeChain struct {
	block uint64
}

func (f *fakeChain) CurrentBlock(context.Context) (uint64, error) {
	return f.block, nil
}

func setup(t *testing.T) (*escrow.Engine, *bank.Memory) {
	t.Helper()

	b := bank.NewMemory()
	e := escrow.New(memory.New(), b)
	ctx := context.Background()

	if err := e.RegisterProvider(ctx, types.NewCall("erd1prov", 1)); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := e.RegisterUser(ctx, types.NewCall("erd1alice", 1)); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if _, err := e.CreateService(ctx, types.NewCall("erd1prov", 1), escrow.CreateServiceParams{
		Name:              "vpn",
		Token:             "USDC",
		AmountPerCycle:    10,
		FrequencyInBlocks: 30,
	}); err != nil {
		t.Fatalf("CreateService: %v", err)
	}

	b.Fund(types.NewCoin("USDC", 60))
	if _, err := e.Subscribe(ctx, types.NewCall("erd1alice", 10), 1, types.NewCoin("USDC", 60)); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	return e, b
}

func TestSweepTriggersDuePayments(t *testing.T) {
	e, b := setup(t)
	ctx := context.Background()
	chain := &fakeChain{block: 15}
	c := cranker.New(e, chain)

	// Not yet due: the sweep must not charge anything.
	if err := c.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if got := b.Balance("erd1prov", "USDC"); got != 10 {
		t.Fatalf("provider balance = %d after early sweep, want 10 (subscribe charge only)", got)
	}

	chain.block = 40
	if err := c.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if got := b.Balance("erd1prov", "USDC"); got != 20 {
		t.Fatalf("provider balance = %d after due sweep, want 20", got)
	}

	// Same block again: one cycle per frequency window.
	if err := c.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if got := b.Balance("erd1prov", "USDC"); got != 20 {
		t.Fatalf("provider balance = %d after repeat sweep, want 20", got)
	}
}

func TestSweepFinalizesRipeCancellations(t *testing.T) {
	e, b := setup(t)
	ctx := context.Background()

	if err := e.CancelSubscriptionByUser(ctx, types.NewCall("erd1alice", 20), 1); err != nil {
		t.Fatalf("CancelSubscriptionByUser: %v", err)
	}

	chain := &fakeChain{block: 25}
	c := cranker.New(e, chain)

	// Notice period still running.
	if err := c.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	sub, _ := e.Subscription(ctx, 1)
	if sub.Status != subscription.StatusPendingUserCancel {
		t.Fatalf("status = %s before effective block, want pending_user_cancel", sub.Status)
	}

	chain.block = 40
	if err := c.Sweep(ctx); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	sub, _ = e.Subscription(ctx, 1)
	if sub.Status != subscription.StatusCancelledByUser {
		t.Fatalf("status = %s after effective block, want cancelled_by_user", sub.Status)
	}
	if got := b.Balance("erd1alice", "USDC"); got != 50 {
		t.Fatalf("client refund = %d, want 50", got)
	}
}
