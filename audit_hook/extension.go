// Package audithook bridges escrow engine lifecycle events to an audit
// trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/escrow/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnServiceCreated       = (*Extension)(nil)
	_ plugin.OnServiceDeactivated   = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated  = (*Extension)(nil)
	_ plugin.OnTopUp                = (*Extension)(nil)
	_ plugin.OnCancelRequested      = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled = (*Extension)(nil)
	_ plugin.OnInsufficientFunds    = (*Extension)(nil)
	_ plugin.OnPaymentExecuted      = (*Extension)(nil)
	_ plugin.OnStreamCreated        = (*Extension)(nil)
	_ plugin.OnStreamClaimed        = (*Extension)(nil)
	_ plugin.OnStreamCanceled       = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges escrow engine lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Service lifecycle hooks
// ──────────────────────────────────────────────────

// OnServiceCreated implements plugin.OnServiceCreated.
func (e *Extension) OnServiceCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionServiceCreated, SeverityInfo, OutcomeSuccess,
		ResourceService, "", CategoryCatalog, nil,
		"event", "service_created",
	)
}

// OnServiceDeactivated implements plugin.OnServiceDeactivated.
func (e *Extension) OnServiceDeactivated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionServiceDeactivated, SeverityWarning, OutcomeSuccess,
		ResourceService, "", CategoryCatalog, nil,
		"event", "service_deactivated",
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_created",
	)
}

// OnTopUp implements plugin.OnTopUp.
func (e *Extension) OnTopUp(ctx context.Context, _ interface{}, amount int64) error {
	return e.record(ctx, ActionSubscriptionToppedUp, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_topped_up",
		"amount", amount,
	)
}

// OnCancelRequested implements plugin.OnCancelRequested.
func (e *Extension) OnCancelRequested(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionCancelRequested, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "cancel_requested",
	)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "subscription_canceled",
	)
}

// OnInsufficientFunds implements plugin.OnInsufficientFunds.
func (e *Extension) OnInsufficientFunds(ctx context.Context, _ interface{}, refunded int64) error {
	return e.record(ctx, ActionInsufficientFunds, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, "", CategorySubscription, nil,
		"event", "insufficient_funds",
		"refunded", refunded,
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentExecuted implements plugin.OnPaymentExecuted.
func (e *Extension) OnPaymentExecuted(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionPaymentExecuted, SeverityInfo, OutcomeSuccess,
		ResourcePayment, "", CategoryPayment, nil,
		"event", "payment_executed",
	)
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (e *Extension) OnStreamCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionStreamCreated, SeverityInfo, OutcomeSuccess,
		ResourceStream, "", CategoryStream, nil,
		"event", "stream_created",
	)
}

// OnStreamClaimed implements plugin.OnStreamClaimed.
func (e *Extension) OnStreamClaimed(ctx context.Context, _ interface{}, amount int64) error {
	return e.record(ctx, ActionStreamClaimed, SeverityInfo, OutcomeSuccess,
		ResourceStream, "", CategoryStream, nil,
		"event", "stream_claimed",
		"amount", amount,
	)
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (e *Extension) OnStreamCanceled(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionStreamCanceled, SeverityWarning, OutcomeSuccess,
		ResourceStream, "", CategoryStream, nil,
		"event", "stream_canceled",
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
