package escrow

import (
	"context"
	"fmt"

	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/role"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

// ──────────────────────────────────────────────────
// Subscription Ledger — creation & top-up
// ──────────────────────────────────────────────────

// Subscribe opens a subscription to a service, with deposit attached as the
// call's payment. The caller must hold the User role, the service must be
// active, and the deposit must cover at least one cycle in the service's
// token. The first cycle is charged immediately: one cycle's cost goes to
// the provider and the remainder is escrowed.
func (e *Engine) Subscribe(ctx context.Context, call types.Call, serviceID id.ServiceID, deposit types.Coin) (*subscription.Subscription, error) {
	r, err := e.store.GetRole(ctx, call.Caller)
	if err != nil {
		return nil, err
	}
	if r != role.User {
		return nil, ErrUnauthorized
	}

	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, ErrServiceInactive
	}

	if deposit.Token != svc.Token {
		return nil, ErrTokenMismatch
	}
	if deposit.Amount < svc.AmountPerCycle {
		return nil, ErrInsufficientDeposit
	}

	// First cycle payment, before any state is persisted. A failed
	// transfer aborts the whole call with nothing written.
	if err := e.bank.Transfer(ctx, svc.Provider, svc.CyclePrice()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	sub := &subscription.Subscription{
		Entity:            types.NewEntity(),
		ServiceID:         svc.ID,
		Client:            call.Caller,
		Vendor:            svc.Provider,
		Token:             svc.Token,
		AmountPerCycle:    svc.AmountPerCycle,
		FrequencyInBlocks: svc.FrequencyInBlocks,
		RemainingBalance:  deposit.Amount - svc.AmountPerCycle,
		LastPaymentBlock:  call.Block,
		NextPaymentBlock:  call.Block + svc.FrequencyInBlocks,
		Status:            subscription.StatusActive,
	}

	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	e.journal(ctx, &payment.Record{
		SubscriptionID: sub.ID,
		Kind:           payment.KindDeposit,
		From:           call.Caller,
		To:             EscrowAccount,
		Coin:           deposit,
		Block:          call.Block,
	})
	e.journal(ctx, &payment.Record{
		SubscriptionID: sub.ID,
		Kind:           payment.KindCharge,
		From:           EscrowAccount,
		To:             sub.Vendor,
		Coin:           sub.CyclePrice(),
		Block:          call.Block,
	})

	e.logger.Info("subscription created",
		"subscription_id", sub.ID,
		"service_id", sub.ServiceID,
		"client", sub.Client,
		"escrow", sub.RemainingBalance,
		"next_payment_block", sub.NextPaymentBlock,
	)

	e.plugins.EmitSubscriptionCreated(ctx, sub)
	return sub, nil
}

// TopUp adds the attached amount to a subscription's escrow. Only the
// subscription's client may call it. Topping up a subscription terminated
// for insufficient funds reactivates it and restarts the billing clock from
// the current block; topping up while active or pending-cancel changes
// neither status nor clock.
func (e *Engine) TopUp(ctx context.Context, call types.Call, subID id.SubscriptionID, amount types.Coin) error {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}

	if sub.Client != call.Caller {
		return ErrUnauthorized
	}
	if amount.Token != sub.Token {
		return ErrTokenMismatch
	}
	if amount.Amount <= 0 {
		return ValidationError{Field: "amount", Message: "top-up must be strictly positive"}
	}

	reactivated := false
	if sub.Status.IsTerminal() {
		if !sub.Status.CanTransitionTo(subscription.StatusActive) {
			return fmt.Errorf("%w: cannot top up a subscription in status %s", ErrInvalidState, sub.Status)
		}
		// Insufficient-funds termination is the one revivable terminal
		// state. The missed cycle is not resumed; the clock restarts.
		sub.Status = subscription.StatusActive
		sub.LastPaymentBlock = call.Block
		sub.NextPaymentBlock = call.Block + sub.FrequencyInBlocks
		sub.CancelEffectiveBlock = 0
		sub.CancelRequest = subscription.CancelRequest{}
		reactivated = true
	}

	sub.RemainingBalance += amount.Amount
	sub.Touch()

	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	e.journal(ctx, &payment.Record{
		SubscriptionID: sub.ID,
		Kind:           payment.KindDeposit,
		From:           call.Caller,
		To:             EscrowAccount,
		Coin:           amount,
		Block:          call.Block,
	})

	e.logger.Info("subscription topped up",
		"subscription_id", sub.ID,
		"amount", amount.Amount,
		"escrow", sub.RemainingBalance,
		"reactivated", reactivated,
	)

	e.plugins.EmitTopUp(ctx, sub, amount.Amount)
	return nil
}

// ──────────────────────────────────────────────────
// Payment Trigger
// ──────────────────────────────────────────────────

// TriggerPayment executes one due billing cycle. It is permissionless: any
// caller may crank any subscription. Exactly one cycle is charged per call
// no matter how late the call arrives, and the clock advances by the fixed
// frequency so the original cadence is preserved.
//
// A due subscription whose escrow no longer covers a cycle is not an error:
// the remainder is refunded to the client and the subscription terminates
// with StatusCancelledInsufficient.
func (e *Engine) TriggerPayment(ctx context.Context, call types.Call, subID id.SubscriptionID) error {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}

	if sub.Status != subscription.StatusActive {
		return fmt.Errorf("%w (status %s)", ErrSubscriptionNotActive, sub.Status)
	}
	if call.Block < sub.NextPaymentBlock {
		return fmt.Errorf("%w: due at block %d, current %d", ErrNotDue, sub.NextPaymentBlock, call.Block)
	}

	if !sub.CoversCycle() {
		return e.terminateInsufficient(ctx, call, sub)
	}

	if err := e.bank.Transfer(ctx, sub.Vendor, sub.CyclePrice()); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	sub.RemainingBalance -= sub.AmountPerCycle
	sub.LastPaymentBlock = call.Block
	sub.NextPaymentBlock += sub.FrequencyInBlocks
	sub.Touch()

	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	e.journal(ctx, &payment.Record{
		SubscriptionID: sub.ID,
		Kind:           payment.KindCharge,
		From:           EscrowAccount,
		To:             sub.Vendor,
		Coin:           sub.CyclePrice(),
		Block:          call.Block,
	})

	e.logger.Info("cycle charged",
		"subscription_id", sub.ID,
		"vendor", sub.Vendor,
		"amount", sub.AmountPerCycle,
		"escrow", sub.RemainingBalance,
		"next_payment_block", sub.NextPaymentBlock,
	)

	return nil
}

// terminateInsufficient handles the auto-termination path of a due payment
// that the escrow cannot cover: refund whatever is left and close out.
func (e *Engine) terminateInsufficient(ctx context.Context, call types.Call, sub *subscription.Subscription) error {
	refund := sub.Escrow()
	if refund.IsPositive() {
		if err := e.bank.Transfer(ctx, sub.Client, refund); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	sub.RemainingBalance = 0
	sub.Status = subscription.StatusCancelledInsufficient
	sub.CancelEffectiveBlock = call.Block
	sub.CancelRequest = subscription.CancelRequest{}
	sub.Touch()

	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	if refund.IsPositive() {
		e.journal(ctx, &payment.Record{
			SubscriptionID: sub.ID,
			Kind:           payment.KindRefund,
			From:           EscrowAccount,
			To:             sub.Client,
			Coin:           refund,
			Block:          call.Block,
		})
	}

	e.logger.Info("subscription terminated on insufficient funds",
		"subscription_id", sub.ID,
		"refunded", refund.Amount,
	)

	e.plugins.EmitInsufficientFunds(ctx, sub, refund.Amount)
	e.plugins.EmitSubscriptionCanceled(ctx, sub)
	return nil
}

// ──────────────────────────────────────────────────
// Cancellation Workflow
// ──────────────────────────────────────────────────

// CancelSubscriptionByUser starts the notice period on behalf of the
// client. The cancellation takes effect at the next scheduled cycle
// boundary, and no further charges occur while it is pending.
func (e *Engine) CancelSubscriptionByUser(ctx context.Context, call types.Call, subID id.SubscriptionID) error {
	return e.requestCancel(ctx, call, subID, subscription.StatusPendingUserCancel)
}

// CancelSubscriptionByProvider starts the notice period on behalf of the
// vendor. Same timing rules as the user-side cancellation.
func (e *Engine) CancelSubscriptionByProvider(ctx context.Context, call types.Call, subID id.SubscriptionID) error {
	return e.requestCancel(ctx, call, subID, subscription.StatusPendingProviderCancel)
}

func (e *Engine) requestCancel(ctx context.Context, call types.Call, subID id.SubscriptionID, pending subscription.Status) error {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}

	switch pending {
	case subscription.StatusPendingUserCancel:
		if sub.Client != call.Caller {
			return ErrUnauthorized
		}
	case subscription.StatusPendingProviderCancel:
		if sub.Vendor != call.Caller {
			return ErrUnauthorized
		}
	}

	if !sub.Status.CanTransitionTo(pending) {
		return fmt.Errorf("%w: cannot cancel a subscription in status %s", ErrInvalidState, sub.Status)
	}

	sub.Status = pending
	sub.CancelEffectiveBlock = sub.NextPaymentBlock
	sub.CancelRequest = subscription.CancelRequest{RequestedBy: call.Caller, Present: true}
	sub.Touch()

	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	e.logger.Info("cancellation requested",
		"subscription_id", sub.ID,
		"requested_by", call.Caller,
		"status", sub.Status,
		"effective_block", sub.CancelEffectiveBlock,
	)

	e.plugins.EmitCancelRequested(ctx, sub)
	return nil
}

// FinalizeCancellation completes a pending cancellation once the effective
// block is reached. It is permissionless, refunds the full remaining escrow
// to the client, and moves the subscription to the terminal status matching
// the original requester.
func (e *Engine) FinalizeCancellation(ctx context.Context, call types.Call, subID id.SubscriptionID) error {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return err
	}

	if !sub.Status.IsPendingCancel() {
		return fmt.Errorf("%w (status %s)", ErrNotPendingCancel, sub.Status)
	}
	if call.Block < sub.CancelEffectiveBlock {
		return fmt.Errorf("%w: effective at block %d, current %d", ErrNotDue, sub.CancelEffectiveBlock, call.Block)
	}

	terminal := subscription.StatusCancelledByUser
	if sub.Status == subscription.StatusPendingProviderCancel {
		terminal = subscription.StatusCancelledByProvider
	}

	refund := sub.Escrow()
	if refund.IsPositive() {
		if err := e.bank.Transfer(ctx, sub.Client, refund); err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}
	}

	sub.RemainingBalance = 0
	sub.Status = terminal
	sub.CancelRequest = subscription.CancelRequest{}
	sub.Touch()

	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}

	if refund.IsPositive() {
		e.journal(ctx, &payment.Record{
			SubscriptionID: sub.ID,
			Kind:           payment.KindRefund,
			From:           EscrowAccount,
			To:             sub.Client,
			Coin:           refund,
			Block:          call.Block,
		})
	}

	e.logger.Info("cancellation finalized",
		"subscription_id", sub.ID,
		"status", sub.Status,
		"refunded", refund.Amount,
	)

	e.plugins.EmitSubscriptionCanceled(ctx, sub)
	return nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// Subscription retrieves a subscription by id.
func (e *Engine) Subscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subID)
}

// Subscriptions lists subscriptions matching the given filter. The reverse
// indexes are append-only, so listings include terminated subscriptions
// unless the caller filters by status.
func (e *Engine) Subscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, opts)
}

// SubscriptionsByClient lists every subscription a client ever opened.
func (e *Engine) SubscriptionsByClient(ctx context.Context, client types.Address) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, subscription.ListOpts{Client: client})
}

// SubscriptionsByProvider lists every subscription sold by a provider.
func (e *Engine) SubscriptionsByProvider(ctx context.Context, provider types.Address) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, subscription.ListOpts{Vendor: provider})
}

// SubscriptionsByService lists every subscription ever opened to a service.
func (e *Engine) SubscriptionsByService(ctx context.Context, serviceID id.ServiceID) ([]*subscription.Subscription, error) {
	return e.store.ListSubscriptions(ctx, subscription.ListOpts{Service: serviceID})
}

// SubscriptionPaymentInfo returns the billing snapshot a scheduler polls to
// decide whether to submit a trigger.
func (e *Engine) SubscriptionPaymentInfo(ctx context.Context, subID id.SubscriptionID) (*subscription.PaymentInfo, error) {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	return &subscription.PaymentInfo{
		Status:           sub.Status,
		NextPaymentBlock: sub.NextPaymentBlock,
		RemainingBalance: sub.RemainingBalance,
		AmountPerCycle:   sub.AmountPerCycle,
	}, nil
}

// SubscriptionState returns the lifecycle snapshot a scheduler polls for
// cancellation progress.
func (e *Engine) SubscriptionState(ctx context.Context, subID id.SubscriptionID) (*subscription.State, error) {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	return &subscription.State{
		Status:               sub.Status,
		NextPaymentBlock:     sub.NextPaymentBlock,
		CancelEffectiveBlock: sub.CancelEffectiveBlock,
	}, nil
}

// IsPaymentDue reports whether a trigger submitted at the given block would
// charge a cycle (or run the insufficient-funds path).
func (e *Engine) IsPaymentDue(ctx context.Context, subID id.SubscriptionID, block uint64) (bool, error) {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return false, err
	}
	return sub.DueAt(block), nil
}

// TimeUntilNextPayment returns how many blocks remain until the next cycle
// is due, or zero if it is already due.
func (e *Engine) TimeUntilNextPayment(ctx context.Context, subID id.SubscriptionID, block uint64) (uint64, error) {
	sub, err := e.store.GetSubscription(ctx, subID)
	if err != nil {
		return 0, err
	}
	if block >= sub.NextPaymentBlock {
		return 0, nil
	}
	return sub.NextPaymentBlock - block, nil
}
