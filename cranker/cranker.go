// Package cranker is the off-chain scheduler: the engine never pushes
// payments itself, so somebody has to poll for due cycles and ripe
// cancellations and submit the permissionless calls. The cranker is that
// somebody for single-process deployments.
package cranker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/escrow"
	"github.com/xraph/escrow/subscription"
	"github.com/xraph/escrow/types"
)

// BlockSource supplies the current block height of the host chain.
type BlockSource interface {
	CurrentBlock(ctx context.Context) (uint64, error)
}

// Cranker polls the subscription ledger and submits TriggerPayment for due
// cycles and FinalizeCancellation for ripe notice periods. Both calls are
// permissionless, so the cranker needs no role, only an identity to sign
// calls with.
type Cranker struct {
	engine   *escrow.Engine
	blocks   BlockSource
	identity types.Address
	interval time.Duration
	logger   *slog.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a Cranker polling the given engine.
func New(engine *escrow.Engine, blocks BlockSource, opts ...Option) *Cranker {
	c := &Cranker{
		engine:   engine,
		blocks:   blocks,
		identity: "cranker",
		interval: 10 * time.Second,
		logger:   slog.Default(),
		stopChan: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Option configures a Cranker instance.
type Option func(*Cranker)

// WithInterval sets the polling interval.
func WithInterval(d time.Duration) Option {
	return func(c *Cranker) {
		c.interval = d
	}
}

// WithIdentity sets the address the cranker submits calls as.
func WithIdentity(addr types.Address) Option {
	return func(c *Cranker) {
		c.identity = addr
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cranker) {
		c.logger = logger
	}
}

// Start begins the polling loop.
func (c *Cranker) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)

	c.logger.Info("cranker started", "interval", c.interval, "identity", c.identity)
}

// Stop shuts down the polling loop and waits for the in-flight sweep.
func (c *Cranker) Stop() {
	close(c.stopChan)
	c.wg.Wait()
}

func (c *Cranker) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sweep(ctx); err != nil {
				c.logger.Error("sweep failed", "error", err)
			}
		}
	}
}

// Sweep runs one polling pass: fetch the current block, walk the ledger,
// and submit whatever is actionable. Per-subscription failures are logged
// and do not stop the pass.
func (c *Cranker) Sweep(ctx context.Context) error {
	block, err := c.blocks.CurrentBlock(ctx)
	if err != nil {
		return err
	}
	call := types.NewCall(c.identity, block)

	subs, err := c.engine.Subscriptions(ctx, subscription.ListOpts{})
	if err != nil {
		return err
	}

	var triggered, finalized int
	for _, sub := range subs {
		switch {
		case sub.DueAt(block):
			if err := c.engine.TriggerPayment(ctx, call, sub.ID); err != nil {
				// Losing the race with another cranker shows up as
				// NotDue or InvalidState; both are fine to skip.
				if !errors.Is(err, escrow.ErrNotDue) && !escrow.IsInvalidState(err) {
					c.logger.Warn("trigger failed", "subscription_id", sub.ID, "error", err)
				}
				continue
			}
			triggered++

		case sub.Status.IsPendingCancel() && block >= sub.CancelEffectiveBlock:
			if err := c.engine.FinalizeCancellation(ctx, call, sub.ID); err != nil {
				if !errors.Is(err, escrow.ErrNotDue) && !escrow.IsInvalidState(err) {
					c.logger.Warn("finalize failed", "subscription_id", sub.ID, "error", err)
				}
				continue
			}
			finalized++
		}
	}

	if triggered > 0 || finalized > 0 {
		c.logger.Info("sweep completed",
			"block", block,
			"triggered", triggered,
			"finalized", finalized,
		)
	}

	return nil
}
