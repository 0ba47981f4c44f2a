// Package escrow provides an escrow-backed recurring payment engine for Go
// applications.
//
// Escrow is designed as a library, not a service. Import it directly into
// your Go application and drive it from whatever transport or scheduler you
// already run. It provides:
//
//   - A role registry separating paying users from service providers
//   - A service catalog of recurring offers priced per billing cycle
//   - Escrowed subscriptions with a deterministic block-based cycle clock
//   - Permissionless payment triggering, so anyone can advance due cycles
//   - Two-phase cancellation with a full notice period before funds move
//   - Linear payment streams that vest block by block
//   - An append-only payment journal recording every movement of funds
//
// # Quick Start
//
// Create an engine with your preferred store and a fund transferrer:
//
//	import (
//	    "github.com/xraph/escrow"
//	    "github.com/xraph/escrow/bank"
//	    "github.com/xraph/escrow/store/memory"
//	)
//
//	e := escrow.New(memory.New(), bank.NewMemory())
//
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Every mutating operation takes a Call naming the caller and the current
// block height. The engine never consults a wall clock for billing; block
// height is the only notion of time, which keeps every decision replayable.
//
// Providers publish services; users subscribe by escrowing a deposit that
// must cover at least one cycle. The first cycle is charged immediately and
// the next one falls due a full frequency later:
//
//	sub, err := e.Subscribe(ctx, types.NewCall(client, block), serviceID, deposit)
//
// When a payment is due, anyone may trigger it:
//
//	if err := e.TriggerPayment(ctx, types.NewCall(anyone, block), sub.ID); err != nil {
//	    ...
//	}
//
// If the escrow cannot cover the cycle, the subscription terminates and the
// remainder is refunded to the client; the trigger still succeeds. Funds are
// conserved at all times: every unit deposited is eventually either charged
// to the provider or refunded to the client, never both.
//
// Cancellation is two-phase. Either party requests it, billing freezes, and
// the remaining escrow is only released once the already-paid cycle has run
// its course:
//
//	e.CancelSubscriptionByUser(ctx, call, sub.ID)
//	// ... wait until the next payment block ...
//	e.FinalizeCancellation(ctx, laterCall, sub.ID)
//
// All monetary amounts use integer arithmetic in the token's smallest unit.
// The Coin type pairs an amount with its token identifier.
//
// # Integration
//
// The cranker package runs the permissionless trigger as a background
// worker against any block source, and the extension package packages the
// engine as a Forge extension with dependency-injected wiring.
//
// # Identifiers
//
// Services, subscriptions and streams use dense numeric identifiers
// assigned in creation order, starting at 1 and never reused. Journal
// entries use TypeID:
//
//	pay_01h2xcejqtf2nbrexx3vqjhp41  // Payment record ID
//
// TypeIDs are K-sortable, giving journal entries natural time-ordering.
package escrow
