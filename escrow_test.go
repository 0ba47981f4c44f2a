package escrow_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	escrow "github.com/xraph/escrow"
	"github.com/xraph/escrow/bank"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/role"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

const (
	provider = types.Address("erd1provider")
	client   = types.Address("erd1client")
	stranger = types.Address("erd1stranger")

	token     = "USDC"
	cycleCost = int64(10)
	frequency = uint64(30)
)

// failingBank wraps the in-memory bank and rejects transfers to one
// address, for exercising the transfer-before-persist discipline.
type failingBank struct {
	*bank.Memory
	reject types.Address
}

func (f *failingBank) Transfer(ctx context.Context, to types.Address, c types.Coin) error {
	if !f.reject.IsZero() && to == f.reject {
		return fmt.Errorf("transfer to %s rejected", to)
	}
	return f.Memory.Transfer(ctx, to, c)
}

// newTestEngine wires an engine over the in-memory store and bank, with
// provider and client roles registered and one active service published.
func newTestEngine(t *testing.T) (*escrow.Engine, *bank.Memory, escrow.ServiceID) {
	t.Helper()
	ctx := context.Background()

	b := bank.NewMemory()
	e := escrow.New(memory.New(), b)

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	if err := e.RegisterProvider(ctx, types.NewCall(provider, 1)); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := e.RegisterUser(ctx, types.NewCall(client, 1)); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	svc, err := e.CreateService(ctx, types.NewCall(provider, 1), escrow.CreateServiceParams{
		Name:              "premium-feed",
		Token:             token,
		AmountPerCycle:    cycleCost,
		FrequencyInBlocks: frequency,
	})
	if err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	return e, b, svc.ID
}

// subscribe funds the bank with the deposit and opens a subscription at the
// given block.
func subscribe(t *testing.T, e *escrow.Engine, b *bank.Memory, svcID escrow.ServiceID, deposit int64, block uint64) *subscription.Subscription {
	t.Helper()
	b.Fund(types.NewCoin(token, deposit))
	sub, err := e.Subscribe(context.Background(), types.NewCall(client, block), svcID, types.NewCoin(token, deposit))
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return sub
}

func TestRoleRegistryImmutable(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	r, err := e.UserRole(ctx, stranger)
	if err != nil {
		t.Fatalf("UserRole: %v", err)
	}
	if r != role.None {
		t.Fatalf("unregistered address has role %q", r)
	}

	// Re-registering under any role must fail: roles are write-once.
	if err := e.RegisterUser(ctx, types.NewCall(client, 2)); !errors.Is(err, escrow.ErrAlreadyRegistered) {
		t.Fatalf("re-register user: got %v, want ErrAlreadyRegistered", err)
	}
	if err := e.RegisterProvider(ctx, types.NewCall(client, 2)); !errors.Is(err, escrow.ErrAlreadyRegistered) {
		t.Fatalf("user registering as provider: got %v, want ErrAlreadyRegistered", err)
	}
}

func TestCreateServiceAuthorization(t *testing.T) {
	ctx := context.Background()
	e, _, _ := newTestEngine(t)

	params := escrow.CreateServiceParams{
		Name:              "another-feed",
		Token:             token,
		AmountPerCycle:    5,
		FrequencyInBlocks: 10,
	}

	if _, err := e.CreateService(ctx, types.NewCall(client, 2), params); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("client creating service: got %v, want ErrUnauthorized", err)
	}
	if _, err := e.CreateService(ctx, types.NewCall(stranger, 2), params); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger creating service: got %v, want ErrUnauthorized", err)
	}

	bad := params
	bad.AmountPerCycle = 0
	if _, err := e.CreateService(ctx, types.NewCall(provider, 2), bad); !errors.Is(err, escrow.ErrInvalidParameter) {
		t.Fatalf("zero cycle amount: got %v, want ErrInvalidParameter", err)
	}

	bad = params
	bad.FrequencyInBlocks = 0
	if _, err := e.CreateService(ctx, types.NewCall(provider, 2), bad); !errors.Is(err, escrow.ErrInvalidParameter) {
		t.Fatalf("zero frequency: got %v, want ErrInvalidParameter", err)
	}
}

func TestSubscribeChargesFirstCycle(t *testing.T) {
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)

	if sub.RemainingBalance != 50 {
		t.Errorf("escrow after subscribe = %d, want 50", sub.RemainingBalance)
	}
	if sub.NextPaymentBlock != 130 {
		t.Errorf("next payment block = %d, want 130", sub.NextPaymentBlock)
	}
	if sub.Status != subscription.StatusActive {
		t.Errorf("status = %s, want active", sub.Status)
	}
	if got := b.Balance(provider, token); got != cycleCost {
		t.Errorf("provider balance = %d, want %d", got, cycleCost)
	}
	if got := b.EscrowBalance(token); got != 50 {
		t.Errorf("escrow pool = %d, want 50", got)
	}
}

func TestSubscribeValidation(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	b.Fund(types.NewCoin(token, 100))

	// Providers and unregistered addresses cannot subscribe.
	if _, err := e.Subscribe(ctx, types.NewCall(provider, 10), svcID, types.NewCoin(token, 60)); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("provider subscribing: got %v, want ErrUnauthorized", err)
	}
	if _, err := e.Subscribe(ctx, types.NewCall(stranger, 10), svcID, types.NewCoin(token, 60)); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger subscribing: got %v, want ErrUnauthorized", err)
	}

	// Wrong token and short deposits are rejected before any transfer.
	if _, err := e.Subscribe(ctx, types.NewCall(client, 10), svcID, types.Native(60)); !errors.Is(err, escrow.ErrTokenMismatch) {
		t.Fatalf("wrong token: got %v, want ErrTokenMismatch", err)
	}
	if _, err := e.Subscribe(ctx, types.NewCall(client, 10), svcID, types.NewCoin(token, cycleCost-1)); !errors.Is(err, escrow.ErrInsufficientDeposit) {
		t.Fatalf("short deposit: got %v, want ErrInsufficientDeposit", err)
	}

	// A deposit of exactly one cycle is accepted and leaves zero escrow.
	sub, err := e.Subscribe(ctx, types.NewCall(client, 10), svcID, types.NewCoin(token, cycleCost))
	if err != nil {
		t.Fatalf("exact-cycle deposit: %v", err)
	}
	if sub.RemainingBalance != 0 {
		t.Errorf("escrow = %d, want 0", sub.RemainingBalance)
	}

	// Deactivated services accept no new subscriptions.
	if err := e.DeactivateService(ctx, types.NewCall(provider, 11), svcID); err != nil {
		t.Fatalf("DeactivateService: %v", err)
	}
	if _, err := e.Subscribe(ctx, types.NewCall(client, 12), svcID, types.NewCoin(token, 60)); !errors.Is(err, escrow.ErrServiceInactive) {
		t.Fatalf("inactive service: got %v, want ErrServiceInactive", err)
	}
}

func TestTriggerPaymentCycle(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)

	// Not due yet: one block short of the boundary.
	err := e.TriggerPayment(ctx, types.NewCall(stranger, 129), sub.ID)
	if !errors.Is(err, escrow.ErrNotDue) {
		t.Fatalf("early trigger: got %v, want ErrNotDue", err)
	}

	// Due, and permissionless: a stranger cranks it.
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 131), sub.ID); err != nil {
		t.Fatalf("trigger at 131: %v", err)
	}
	got, err := e.Subscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Subscription: %v", err)
	}
	if got.RemainingBalance != 40 {
		t.Errorf("escrow = %d, want 40", got.RemainingBalance)
	}
	// Cadence preserved: next is 130+30, not 131+30.
	if got.NextPaymentBlock != 160 {
		t.Errorf("next payment block = %d, want 160", got.NextPaymentBlock)
	}
	if got.LastPaymentBlock != 131 {
		t.Errorf("last payment block = %d, want 131", got.LastPaymentBlock)
	}
	if b.Balance(provider, token) != 2*cycleCost {
		t.Errorf("provider balance = %d, want %d", b.Balance(provider, token), 2*cycleCost)
	}

	// Same block again: the cycle is already paid.
	err = e.TriggerPayment(ctx, types.NewCall(stranger, 131), sub.ID)
	if !errors.Is(err, escrow.ErrNotDue) {
		t.Fatalf("double trigger: got %v, want ErrNotDue", err)
	}
	if b.Balance(provider, token) != 2*cycleCost {
		t.Errorf("provider balance moved on failed trigger: %d", b.Balance(provider, token))
	}
}

func TestTriggerPaymentLateChargesOneCycle(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)

	// Several cycles late: exactly one cycle is charged per call and the
	// clock still advances by a single frequency.
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 250), sub.ID); err != nil {
		t.Fatalf("late trigger: %v", err)
	}
	got, _ := e.Subscription(ctx, sub.ID)
	if got.RemainingBalance != 40 {
		t.Errorf("escrow = %d, want 40 (one cycle charged)", got.RemainingBalance)
	}
	if got.NextPaymentBlock != 160 {
		t.Errorf("next payment block = %d, want 160", got.NextPaymentBlock)
	}

	// The backlog drains one call at a time.
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 250), sub.ID); err != nil {
		t.Fatalf("second late trigger: %v", err)
	}
	got, _ = e.Subscription(ctx, sub.ID)
	if got.RemainingBalance != 30 || got.NextPaymentBlock != 190 {
		t.Errorf("after second trigger: escrow %d next %d, want 30/190", got.RemainingBalance, got.NextPaymentBlock)
	}
}

func TestInsufficientFundsTerminatesAndRefunds(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	// Deposit 15: first cycle takes 10, leaving 5 in escrow, which cannot
	// cover the next cycle.
	sub := subscribe(t, e, b, svcID, 15, 100)
	if sub.RemainingBalance != 5 {
		t.Fatalf("escrow = %d, want 5", sub.RemainingBalance)
	}

	// The trigger succeeds even though no cycle can be charged.
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 130), sub.ID); err != nil {
		t.Fatalf("trigger on starved subscription: %v", err)
	}

	got, _ := e.Subscription(ctx, sub.ID)
	if got.Status != subscription.StatusCancelledInsufficient {
		t.Errorf("status = %s, want cancelled_insufficient_funds", got.Status)
	}
	if got.RemainingBalance != 0 {
		t.Errorf("escrow = %d, want 0", got.RemainingBalance)
	}
	if b.Balance(client, token) != 5 {
		t.Errorf("client refund = %d, want 5", b.Balance(client, token))
	}
	if b.EscrowBalance(token) != 0 {
		t.Errorf("escrow pool = %d, want 0", b.EscrowBalance(token))
	}

	// Terminated: repeat triggers fail until a top-up revives it.
	err := e.TriggerPayment(ctx, types.NewCall(stranger, 131), sub.ID)
	if !errors.Is(err, escrow.ErrSubscriptionNotActive) {
		t.Fatalf("trigger after termination: got %v, want ErrSubscriptionNotActive", err)
	}
}

func TestTopUpReactivation(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 15, 100)
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 130), sub.ID); err != nil {
		t.Fatalf("starving trigger: %v", err)
	}

	// Only the client may top up.
	b.Fund(types.NewCoin(token, 25))
	if err := e.TopUp(ctx, types.NewCall(stranger, 200), sub.ID, types.NewCoin(token, 25)); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger top-up: got %v, want ErrUnauthorized", err)
	}
	if err := e.TopUp(ctx, types.NewCall(client, 200), sub.ID, types.Native(25)); !errors.Is(err, escrow.ErrTokenMismatch) {
		t.Fatalf("wrong-token top-up: got %v, want ErrTokenMismatch", err)
	}

	// Reactivation restarts the billing clock from the top-up block.
	if err := e.TopUp(ctx, types.NewCall(client, 200), sub.ID, types.NewCoin(token, 25)); err != nil {
		t.Fatalf("reactivating top-up: %v", err)
	}
	got, _ := e.Subscription(ctx, sub.ID)
	if got.Status != subscription.StatusActive {
		t.Errorf("status = %s, want active", got.Status)
	}
	if got.RemainingBalance != 25 {
		t.Errorf("escrow = %d, want 25", got.RemainingBalance)
	}
	if got.NextPaymentBlock != 200+frequency {
		t.Errorf("next payment block = %d, want %d", got.NextPaymentBlock, 200+frequency)
	}

	// The revived subscription bills normally again.
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 230), sub.ID); err != nil {
		t.Fatalf("trigger after revival: %v", err)
	}
}

func TestTopUpWhileActiveKeepsClock(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)

	b.Fund(types.NewCoin(token, 40))
	if err := e.TopUp(ctx, types.NewCall(client, 115), sub.ID, types.NewCoin(token, 40)); err != nil {
		t.Fatalf("TopUp: %v", err)
	}

	got, _ := e.Subscription(ctx, sub.ID)
	if got.RemainingBalance != 90 {
		t.Errorf("escrow = %d, want 90", got.RemainingBalance)
	}
	if got.NextPaymentBlock != 130 {
		t.Errorf("next payment block moved on active top-up: %d", got.NextPaymentBlock)
	}
}

func TestCancellationNoticePeriod(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)

	// Only the client may request the user-side cancellation.
	if err := e.CancelSubscriptionByUser(ctx, types.NewCall(stranger, 110), sub.ID); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("stranger cancel: got %v, want ErrUnauthorized", err)
	}

	if err := e.CancelSubscriptionByUser(ctx, types.NewCall(client, 110), sub.ID); err != nil {
		t.Fatalf("CancelSubscriptionByUser: %v", err)
	}

	got, _ := e.Subscription(ctx, sub.ID)
	if got.Status != subscription.StatusPendingUserCancel {
		t.Fatalf("status = %s, want pending_user_cancel", got.Status)
	}
	if got.CancelEffectiveBlock != 130 {
		t.Errorf("effective block = %d, want 130 (next payment block)", got.CancelEffectiveBlock)
	}

	// Billing is frozen during the notice period, even past the boundary.
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 135), sub.ID); !errors.Is(err, escrow.ErrSubscriptionNotActive) {
		t.Fatalf("trigger while pending: got %v, want ErrSubscriptionNotActive", err)
	}

	// A second cancellation request is invalid in the pending state.
	if err := e.CancelSubscriptionByUser(ctx, types.NewCall(client, 115), sub.ID); !errors.Is(err, escrow.ErrInvalidState) {
		t.Fatalf("double cancel: got %v, want ErrInvalidState", err)
	}

	// Finalization is blocked until the notice period has run.
	if err := e.FinalizeCancellation(ctx, types.NewCall(stranger, 129), sub.ID); !errors.Is(err, escrow.ErrNotDue) {
		t.Fatalf("early finalize: got %v, want ErrNotDue", err)
	}

	// At the boundary any caller may finalize; the full escrow refunds.
	if err := e.FinalizeCancellation(ctx, types.NewCall(stranger, 130), sub.ID); err != nil {
		t.Fatalf("FinalizeCancellation: %v", err)
	}
	got, _ = e.Subscription(ctx, sub.ID)
	if got.Status != subscription.StatusCancelledByUser {
		t.Errorf("status = %s, want cancelled_by_user", got.Status)
	}
	if b.Balance(client, token) != 50 {
		t.Errorf("client refund = %d, want 50", b.Balance(client, token))
	}

	// Terminal means terminal.
	if err := e.FinalizeCancellation(ctx, types.NewCall(stranger, 131), sub.ID); !errors.Is(err, escrow.ErrNotPendingCancel) {
		t.Fatalf("finalize after terminal: got %v, want ErrNotPendingCancel", err)
	}
	if err := e.CancelSubscriptionByUser(ctx, types.NewCall(client, 131), sub.ID); !errors.Is(err, escrow.ErrInvalidState) {
		t.Fatalf("cancel after terminal: got %v, want ErrInvalidState", err)
	}
}

func TestProviderCancellation(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)

	if err := e.CancelSubscriptionByProvider(ctx, types.NewCall(client, 110), sub.ID); !errors.Is(err, escrow.ErrUnauthorized) {
		t.Fatalf("client on provider-side cancel: got %v, want ErrUnauthorized", err)
	}
	if err := e.CancelSubscriptionByProvider(ctx, types.NewCall(provider, 110), sub.ID); err != nil {
		t.Fatalf("CancelSubscriptionByProvider: %v", err)
	}

	if err := e.FinalizeCancellation(ctx, types.NewCall(provider, 130), sub.ID); err != nil {
		t.Fatalf("FinalizeCancellation: %v", err)
	}
	got, _ := e.Subscription(ctx, sub.ID)
	if got.Status != subscription.StatusCancelledByProvider {
		t.Errorf("status = %s, want cancelled_by_provider", got.Status)
	}
	// Refund still goes to the client, whoever requested.
	if b.Balance(client, token) != 50 {
		t.Errorf("client refund = %d, want 50", b.Balance(client, token))
	}
}

func TestConservationOfFunds(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	// A full lifecycle: subscribe, two cycles, cancel, finalize.
	sub := subscribe(t, e, b, svcID, 60, 100)
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 130), sub.ID); err != nil {
		t.Fatalf("trigger 1: %v", err)
	}
	if err := e.TriggerPayment(ctx, types.NewCall(stranger, 160), sub.ID); err != nil {
		t.Fatalf("trigger 2: %v", err)
	}
	if err := e.CancelSubscriptionByUser(ctx, types.NewCall(client, 170), sub.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := e.FinalizeCancellation(ctx, types.NewCall(stranger, 190), sub.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Every deposited unit ended up with the provider or back with the
	// client; the pool is empty.
	deposited := int64(60)
	charged := b.Balance(provider, token)
	refunded := b.Balance(client, token)
	if charged+refunded != deposited {
		t.Errorf("charged %d + refunded %d != deposited %d", charged, refunded, deposited)
	}
	if charged != 3*cycleCost {
		t.Errorf("provider received %d, want %d", charged, 3*cycleCost)
	}
	if b.EscrowBalance(token) != 0 {
		t.Errorf("escrow pool = %d, want 0", b.EscrowBalance(token))
	}

	// The journal tells the same story.
	records, err := e.Payments(ctx, payment.ListOpts{SubscriptionID: sub.ID})
	if err != nil {
		t.Fatalf("Payments: %v", err)
	}
	var journalIn, journalOut int64
	for _, r := range records {
		switch r.Kind {
		case payment.KindDeposit:
			journalIn += r.Coin.Amount
		case payment.KindCharge, payment.KindRefund:
			journalOut += r.Coin.Amount
		}
	}
	if journalIn != deposited || journalOut != deposited {
		t.Errorf("journal in %d / out %d, want %d / %d", journalIn, journalOut, deposited, deposited)
	}
}

func TestSubscriptionIndexesIncludeTerminated(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)
	if err := e.CancelSubscriptionByUser(ctx, types.NewCall(client, 110), sub.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := e.FinalizeCancellation(ctx, types.NewCall(stranger, 130), sub.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// History is never pruned.
	byClient, err := e.SubscriptionsByClient(ctx, client)
	if err != nil {
		t.Fatalf("SubscriptionsByClient: %v", err)
	}
	if len(byClient) != 1 {
		t.Fatalf("client listing dropped a terminated subscription: %d entries", len(byClient))
	}
	byService, err := e.SubscriptionsByService(ctx, svcID)
	if err != nil {
		t.Fatalf("SubscriptionsByService: %v", err)
	}
	if len(byService) != 1 {
		t.Fatalf("service listing dropped a terminated subscription: %d entries", len(byService))
	}
}

func TestTransferFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()

	// Like newTestEngine, but over a bank whose transfers can be made to
	// fail mid-test.
	newEngine := func(t *testing.T) (*escrow.Engine, *failingBank, escrow.ServiceID) {
		t.Helper()
		fb := &failingBank{Memory: bank.NewMemory()}
		e := escrow.New(memory.New(), fb)
		if err := e.Start(ctx); err != nil {
			t.Fatalf("Start: %v", err)
		}
		t.Cleanup(func() { _ = e.Stop() })

		if err := e.RegisterProvider(ctx, types.NewCall(provider, 1)); err != nil {
			t.Fatalf("RegisterProvider: %v", err)
		}
		if err := e.RegisterUser(ctx, types.NewCall(client, 1)); err != nil {
			t.Fatalf("RegisterUser: %v", err)
		}
		svc, err := e.CreateService(ctx, types.NewCall(provider, 1), escrow.CreateServiceParams{
			Name:              "premium-feed",
			Token:             token,
			AmountPerCycle:    cycleCost,
			FrequencyInBlocks: frequency,
		})
		if err != nil {
			t.Fatalf("CreateService: %v", err)
		}
		return e, fb, svc.ID
	}

	t.Run("subscribe", func(t *testing.T) {
		e, fb, svcID := newEngine(t)
		fb.Fund(types.NewCoin(token, 60))
		fb.reject = provider

		_, err := e.Subscribe(ctx, types.NewCall(client, 100), svcID, types.NewCoin(token, 60))
		if !errors.Is(err, escrow.ErrTransferFailed) {
			t.Fatalf("Subscribe with failing bank: got %v, want ErrTransferFailed", err)
		}

		// Nothing was written: no subscription, no journal, pool intact.
		subs, err := e.SubscriptionsByClient(ctx, client)
		if err != nil {
			t.Fatalf("SubscriptionsByClient: %v", err)
		}
		if len(subs) != 0 {
			t.Fatalf("subscription persisted after failed transfer")
		}
		records, _ := e.Payments(ctx, payment.ListOpts{})
		if len(records) != 0 {
			t.Fatalf("journal has %d records after failed subscribe", len(records))
		}
		if fb.EscrowBalance(token) != 60 {
			t.Errorf("escrow pool = %d, want 60", fb.EscrowBalance(token))
		}
	})

	t.Run("trigger payment", func(t *testing.T) {
		e, fb, svcID := newEngine(t)
		fb.Fund(types.NewCoin(token, 60))
		sub, err := e.Subscribe(ctx, types.NewCall(client, 100), svcID, types.NewCoin(token, 60))
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}

		fb.reject = provider
		if err := e.TriggerPayment(ctx, types.NewCall(stranger, 130), sub.ID); !errors.Is(err, escrow.ErrTransferFailed) {
			t.Fatalf("trigger with failing bank: got %v, want ErrTransferFailed", err)
		}

		// Balance, clock and status are exactly as before the call.
		got, _ := e.Subscription(ctx, sub.ID)
		if got.RemainingBalance != 50 {
			t.Errorf("escrow = %d, want 50", got.RemainingBalance)
		}
		if got.NextPaymentBlock != 130 || got.LastPaymentBlock != 100 {
			t.Errorf("clock moved: last %d next %d, want 100/130", got.LastPaymentBlock, got.NextPaymentBlock)
		}
		if got.Status != subscription.StatusActive {
			t.Errorf("status = %s, want active", got.Status)
		}

		// The same trigger succeeds once the bank recovers.
		fb.reject = ""
		if err := e.TriggerPayment(ctx, types.NewCall(stranger, 130), sub.ID); err != nil {
			t.Fatalf("retried trigger: %v", err)
		}
	})

	t.Run("finalize cancellation", func(t *testing.T) {
		e, fb, svcID := newEngine(t)
		fb.Fund(types.NewCoin(token, 60))
		sub, err := e.Subscribe(ctx, types.NewCall(client, 100), svcID, types.NewCoin(token, 60))
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
		if err := e.CancelSubscriptionByUser(ctx, types.NewCall(client, 110), sub.ID); err != nil {
			t.Fatalf("cancel: %v", err)
		}

		fb.reject = client
		if err := e.FinalizeCancellation(ctx, types.NewCall(stranger, 130), sub.ID); !errors.Is(err, escrow.ErrTransferFailed) {
			t.Fatalf("finalize with failing bank: got %v, want ErrTransferFailed", err)
		}

		// Still pending with the escrow untouched; a retry completes.
		got, _ := e.Subscription(ctx, sub.ID)
		if got.Status != subscription.StatusPendingUserCancel {
			t.Errorf("status = %s, want pending_user_cancel", got.Status)
		}
		if got.RemainingBalance != 50 {
			t.Errorf("escrow = %d, want 50", got.RemainingBalance)
		}

		fb.reject = ""
		if err := e.FinalizeCancellation(ctx, types.NewCall(stranger, 131), sub.ID); err != nil {
			t.Fatalf("retried finalize: %v", err)
		}
		if fb.Balance(client, token) != 50 {
			t.Errorf("client refund = %d, want 50", fb.Balance(client, token))
		}
	})
}

func TestPaymentInfoAndState(t *testing.T) {
	ctx := context.Background()
	e, b, svcID := newTestEngine(t)

	sub := subscribe(t, e, b, svcID, 60, 100)

	info, err := e.SubscriptionPaymentInfo(ctx, sub.ID)
	if err != nil {
		t.Fatalf("SubscriptionPaymentInfo: %v", err)
	}
	if info.NextPaymentBlock != 130 || info.RemainingBalance != 50 || info.AmountPerCycle != cycleCost {
		t.Errorf("payment info = %+v", info)
	}

	due, err := e.IsPaymentDue(ctx, sub.ID, 129)
	if err != nil || due {
		t.Errorf("IsPaymentDue(129) = %v, %v; want false", due, err)
	}
	due, _ = e.IsPaymentDue(ctx, sub.ID, 130)
	if !due {
		t.Error("IsPaymentDue(130) = false, want true")
	}

	remaining, err := e.TimeUntilNextPayment(ctx, sub.ID, 120)
	if err != nil || remaining != 10 {
		t.Errorf("TimeUntilNextPayment(120) = %d, %v; want 10", remaining, err)
	}
	remaining, _ = e.TimeUntilNextPayment(ctx, sub.ID, 140)
	if remaining != 0 {
		t.Errorf("TimeUntilNextPayment(140) = %d, want 0", remaining)
	}
}
