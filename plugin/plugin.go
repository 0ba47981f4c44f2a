// Package plugin provides an extensible plugin system for the escrow engine.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Service catalog hooks
// ──────────────────────────────────────────────────

// OnServiceCreated is called when a provider registers a new service.
type OnServiceCreated interface {
	Plugin
	OnServiceCreated(ctx context.Context, svc interface{}) error
}

// OnServiceDeactivated is called when a service is deactivated.
type OnServiceDeactivated interface {
	Plugin
	OnServiceDeactivated(ctx context.Context, svc interface{}) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a new subscription is created.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub interface{}) error
}

// OnPaymentExecuted is called after any value movement: cycle charges,
// refunds, deposits, and stream claims.
type OnPaymentExecuted interface {
	Plugin
	OnPaymentExecuted(ctx context.Context, record interface{}) error
}

// OnTopUp is called when a client adds funds to a subscription's escrow.
type OnTopUp interface {
	Plugin
	OnTopUp(ctx context.Context, sub interface{}, amount int64) error
}

// OnCancelRequested is called when either party requests cancellation and
// the subscription enters its notice period.
type OnCancelRequested interface {
	Plugin
	OnCancelRequested(ctx context.Context, sub interface{}) error
}

// OnSubscriptionCanceled is called when a subscription reaches a terminal
// status, whichever path led there.
type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub interface{}) error
}

// OnInsufficientFunds is called when a due payment finds the escrow short
// and the subscription is force-terminated.
type OnInsufficientFunds interface {
	Plugin
	OnInsufficientFunds(ctx context.Context, sub interface{}, refunded int64) error
}

// ──────────────────────────────────────────────────
// Payment stream hooks
// ──────────────────────────────────────────────────

// OnStreamCreated is called when a new payment stream is opened.
type OnStreamCreated interface {
	Plugin
	OnStreamCreated(ctx context.Context, st interface{}) error
}

// OnStreamClaimed is called when a recipient claims vested stream funds.
type OnStreamClaimed interface {
	Plugin
	OnStreamClaimed(ctx context.Context, st interface{}, amount int64) error
}

// OnStreamCanceled is called when a stream is cancelled and settled.
type OnStreamCanceled interface {
	Plugin
	OnStreamCanceled(ctx context.Context, st interface{}) error
}
