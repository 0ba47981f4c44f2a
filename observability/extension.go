// Package observability provides a metrics extension for the escrow engine
// that records lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/escrow/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnInit                 = (*MetricsExtension)(nil)
	_ plugin.OnServiceCreated       = (*MetricsExtension)(nil)
	_ plugin.OnServiceDeactivated   = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated  = (*MetricsExtension)(nil)
	_ plugin.OnPaymentExecuted      = (*MetricsExtension)(nil)
	_ plugin.OnTopUp                = (*MetricsExtension)(nil)
	_ plugin.OnCancelRequested      = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled = (*MetricsExtension)(nil)
	_ plugin.OnInsufficientFunds    = (*MetricsExtension)(nil)
	_ plugin.OnStreamCreated        = (*MetricsExtension)(nil)
	_ plugin.OnStreamClaimed        = (*MetricsExtension)(nil)
	_ plugin.OnStreamCanceled       = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an engine plugin to automatically track payment metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Service metrics
	ServiceCreated     Counter
	ServiceDeactivated Counter

	// Subscription metrics
	SubscriptionCreated   Counter
	SubscriptionCanceled  Counter
	SubscriptionStarved   Counter
	CancelRequested       Counter
	TopUps                Counter
	TopUpAmount           Histogram

	// Payment metrics
	PaymentsExecuted Counter
	PaymentAmount    Histogram

	// Stream metrics
	StreamCreated  Counter
	StreamClaimed  Counter
	StreamCanceled Counter
	ClaimAmount    Histogram

	// Error metrics
	StoreErrors  Counter
	PluginErrors Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Service metrics
		ServiceCreated:     factory.Counter("escrow.service.created"),
		ServiceDeactivated: factory.Counter("escrow.service.deactivated"),

		// Subscription metrics
		SubscriptionCreated:  factory.Counter("escrow.subscription.created"),
		SubscriptionCanceled: factory.Counter("escrow.subscription.canceled"),
		SubscriptionStarved:  factory.Counter("escrow.subscription.insufficient_funds"),
		CancelRequested:      factory.Counter("escrow.subscription.cancel_requested"),
		TopUps:               factory.Counter("escrow.subscription.topups"),
		TopUpAmount:          factory.Histogram("escrow.subscription.topup_amount"),

		// Payment metrics
		PaymentsExecuted: factory.Counter("escrow.payment.executed"),
		PaymentAmount:    factory.Histogram("escrow.payment.amount"),

		// Stream metrics
		StreamCreated:  factory.Counter("escrow.stream.created"),
		StreamClaimed:  factory.Counter("escrow.stream.claimed"),
		StreamCanceled: factory.Counter("escrow.stream.canceled"),
		ClaimAmount:    factory.Histogram("escrow.stream.claim_amount"),

		// Error metrics
		StoreErrors:  factory.Counter("escrow.store.errors"),
		PluginErrors: factory.Counter("escrow.plugin.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Service lifecycle hooks
// ──────────────────────────────────────────────────

// OnServiceCreated implements plugin.OnServiceCreated.
func (m *MetricsExtension) OnServiceCreated(_ context.Context, _ interface{}) error {
	m.ServiceCreated.Inc()
	return nil
}

// OnServiceDeactivated implements plugin.OnServiceDeactivated.
func (m *MetricsExtension) OnServiceDeactivated(_ context.Context, _ interface{}) error {
	m.ServiceDeactivated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ interface{}) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnPaymentExecuted implements plugin.OnPaymentExecuted.
func (m *MetricsExtension) OnPaymentExecuted(_ context.Context, _ interface{}) error {
	m.PaymentsExecuted.Inc()
	return nil
}

// OnTopUp implements plugin.OnTopUp.
func (m *MetricsExtension) OnTopUp(_ context.Context, _ interface{}, amount int64) error {
	m.TopUps.Inc()
	m.TopUpAmount.Observe(float64(amount))
	return nil
}

// OnCancelRequested implements plugin.OnCancelRequested.
func (m *MetricsExtension) OnCancelRequested(_ context.Context, _ interface{}) error {
	m.CancelRequested.Inc()
	return nil
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ interface{}) error {
	m.SubscriptionCanceled.Inc()
	return nil
}

// OnInsufficientFunds implements plugin.OnInsufficientFunds.
func (m *MetricsExtension) OnInsufficientFunds(_ context.Context, _ interface{}, _ int64) error {
	m.SubscriptionStarved.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Stream lifecycle hooks
// ──────────────────────────────────────────────────

// OnStreamCreated implements plugin.OnStreamCreated.
func (m *MetricsExtension) OnStreamCreated(_ context.Context, _ interface{}) error {
	m.StreamCreated.Inc()
	return nil
}

// OnStreamClaimed implements plugin.OnStreamClaimed.
func (m *MetricsExtension) OnStreamClaimed(_ context.Context, _ interface{}, amount int64) error {
	m.StreamClaimed.Inc()
	m.ClaimAmount.Observe(float64(amount))
	return nil
}

// OnStreamCanceled implements plugin.OnStreamCanceled.
func (m *MetricsExtension) OnStreamCanceled(_ context.Context, _ interface{}) error {
	m.StreamCanceled.Inc()
	return nil
}
