package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onServiceCreated       []OnServiceCreated
	onServiceDeactivated   []OnServiceDeactivated
	onSubscriptionCreated  []OnSubscriptionCreated
	onPaymentExecuted      []OnPaymentExecuted
	onTopUp                []OnTopUp
	onCancelRequested      []OnCancelRequested
	onSubscriptionCanceled []OnSubscriptionCanceled
	onInsufficientFunds    []OnInsufficientFunds
	onStreamCreated        []OnStreamCreated
	onStreamClaimed        []OnStreamClaimed
	onStreamCanceled       []OnStreamCanceled
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnServiceCreated); ok {
		r.onServiceCreated = append(r.onServiceCreated, v)
	}
	if v, ok := p.(OnServiceDeactivated); ok {
		r.onServiceDeactivated = append(r.onServiceDeactivated, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnPaymentExecuted); ok {
		r.onPaymentExecuted = append(r.onPaymentExecuted, v)
	}
	if v, ok := p.(OnTopUp); ok {
		r.onTopUp = append(r.onTopUp, v)
	}
	if v, ok := p.(OnCancelRequested); ok {
		r.onCancelRequested = append(r.onCancelRequested, v)
	}
	if v, ok := p.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := p.(OnInsufficientFunds); ok {
		r.onInsufficientFunds = append(r.onInsufficientFunds, v)
	}
	if v, ok := p.(OnStreamCreated); ok {
		r.onStreamCreated = append(r.onStreamCreated, v)
	}
	if v, ok := p.(OnStreamClaimed); ok {
		r.onStreamClaimed = append(r.onStreamClaimed, v)
	}
	if v, ok := p.(OnStreamCanceled); ok {
		r.onStreamCanceled = append(r.onStreamCanceled, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnServiceCreated)(nil)).Elem(), "OnServiceCreated")
	checkInterface(reflect.TypeOf((*OnSubscriptionCreated)(nil)).Elem(), "OnSubscriptionCreated")
	checkInterface(reflect.TypeOf((*OnPaymentExecuted)(nil)).Elem(), "OnPaymentExecuted")
	checkInterface(reflect.TypeOf((*OnCancelRequested)(nil)).Elem(), "OnCancelRequested")
	checkInterface(reflect.TypeOf((*OnSubscriptionCanceled)(nil)).Elem(), "OnSubscriptionCanceled")
	checkInterface(reflect.TypeOf((*OnInsufficientFunds)(nil)).Elem(), "OnInsufficientFunds")
	checkInterface(reflect.TypeOf((*OnStreamCreated)(nil)).Elem(), "OnStreamCreated")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitServiceCreated emits a service created event.
func (r *Registry) EmitServiceCreated(ctx context.Context, svc interface{}) {
	r.mu.RLock()
	plugins := r.onServiceCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnServiceCreated(ctx, svc)
		}); err != nil {
			r.logger.Warn("plugin OnServiceCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitServiceDeactivated emits a service deactivated event.
func (r *Registry) EmitServiceDeactivated(ctx context.Context, svc interface{}) {
	r.mu.RLock()
	plugins := r.onServiceDeactivated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnServiceDeactivated(ctx, svc)
		}); err != nil {
			r.logger.Warn("plugin OnServiceDeactivated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCreated(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPaymentExecuted emits a payment executed event.
func (r *Registry) EmitPaymentExecuted(ctx context.Context, record interface{}) {
	r.mu.RLock()
	plugins := r.onPaymentExecuted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnPaymentExecuted(ctx, record)
		}); err != nil {
			r.logger.Warn("plugin OnPaymentExecuted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTopUp emits a top-up event.
func (r *Registry) EmitTopUp(ctx context.Context, sub interface{}, amount int64) {
	r.mu.RLock()
	plugins := r.onTopUp
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTopUp(ctx, sub, amount)
		}); err != nil {
			r.logger.Warn("plugin OnTopUp failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCancelRequested emits a cancel requested event.
func (r *Registry) EmitCancelRequested(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onCancelRequested
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCancelRequested(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnCancelRequested failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionCanceled emits a subscription canceled event.
func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, sub interface{}) {
	r.mu.RLock()
	plugins := r.onSubscriptionCanceled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionCanceled(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionCanceled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInsufficientFunds emits an insufficient funds event.
func (r *Registry) EmitInsufficientFunds(ctx context.Context, sub interface{}, refunded int64) {
	r.mu.RLock()
	plugins := r.onInsufficientFunds
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInsufficientFunds(ctx, sub, refunded)
		}); err != nil {
			r.logger.Warn("plugin OnInsufficientFunds failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStreamCreated emits a stream created event.
func (r *Registry) EmitStreamCreated(ctx context.Context, st interface{}) {
	r.mu.RLock()
	plugins := r.onStreamCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamCreated(ctx, st)
		}); err != nil {
			r.logger.Warn("plugin OnStreamCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStreamClaimed emits a stream claimed event.
func (r *Registry) EmitStreamClaimed(ctx context.Context, st interface{}, amount int64) {
	r.mu.RLock()
	plugins := r.onStreamClaimed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamClaimed(ctx, st, amount)
		}); err != nil {
			r.logger.Warn("plugin OnStreamClaimed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitStreamCanceled emits a stream canceled event.
func (r *Registry) EmitStreamCanceled(ctx context.Context, st interface{}) {
	r.mu.RLock()
	plugins := r.onStreamCanceled
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnStreamCanceled(ctx, st)
		}); err != nil {
			r.logger.Warn("plugin OnStreamCanceled failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
