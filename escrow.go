package escrow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/escrow/bank"
	"github.com/xraph/escrow/id"
	"github.com/xraph/escrow/payment"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/role"
	"github.com/xraph/escrow/service"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/types"
)

// EscrowAccount is the ledger-internal address representing the pooled
// escrow funds in journal records. It is a bookkeeping label, not a real
// account on the host chain.
const EscrowAccount types.Address = "escrow"

// Engine is the escrow payment engine. It holds no ambient state: storage
// and value transfer are injected, and every mutating operation takes an
// explicit Call carrying the caller identity and current block height.
type Engine struct {
	store   store.Store
	bank    bank.Transferrer
	plugins *plugin.Registry
	logger  *slog.Logger
}

// New creates a new Engine instance.
func New(s store.Store, b bank.Transferrer, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		bank:    b,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// Start prepares the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("escrow engine started", "plugins", e.plugins.Count())
	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Plugins exposes the plugin registry.
func (e *Engine) Plugins() *plugin.Registry {
	return e.plugins
}

// ──────────────────────────────────────────────────
// Role Registry
// ──────────────────────────────────────────────────

// RegisterUser assigns the User role to the caller. Roles are assigned
// exactly once: a caller already holding any role fails with
// ErrAlreadyRegistered, even when asking for the same role again.
func (e *Engine) RegisterUser(ctx context.Context, call types.Call) error {
	return e.register(ctx, call, role.User)
}

// RegisterProvider assigns the Provider role to the caller. Same write-once
// rule as RegisterUser.
func (e *Engine) RegisterProvider(ctx context.Context, call types.Call) error {
	return e.register(ctx, call, role.Provider)
}

func (e *Engine) register(ctx context.Context, call types.Call, r role.Role) error {
	if call.Caller.IsZero() {
		return ValidationError{Field: "caller", Message: "must not be empty"}
	}

	if err := e.store.SetRole(ctx, call.Caller, r); err != nil {
		return err
	}

	e.logger.Info("role registered", "address", call.Caller, "role", r)
	return nil
}

// UserRole returns the role held by an address. Unregistered addresses get
// role.None, not an error.
func (e *Engine) UserRole(ctx context.Context, addr types.Address) (role.Role, error) {
	return e.store.GetRole(ctx, addr)
}

// ──────────────────────────────────────────────────
// Service Catalog
// ──────────────────────────────────────────────────

// CreateServiceParams carries the provider's offer definition.
type CreateServiceParams struct {
	Name              string
	Description       string
	Token             string // defaults to the chain's native token
	AmountPerCycle    int64
	FrequencyInBlocks uint64
}

// CreateService registers a new offer in the catalog. The caller must hold
// the Provider role. The assigned service id is dense, 1-based, and never
// reused even after the service is deactivated.
func (e *Engine) CreateService(ctx context.Context, call types.Call, params CreateServiceParams) (*service.Service, error) {
	r, err := e.store.GetRole(ctx, call.Caller)
	if err != nil {
		return nil, err
	}
	if r != role.Provider {
		return nil, ErrUnauthorized
	}

	if params.AmountPerCycle <= 0 {
		return nil, ValidationError{Field: "amount_per_cycle", Message: "must be strictly positive"}
	}
	if params.FrequencyInBlocks == 0 {
		return nil, ValidationError{Field: "frequency_in_blocks", Message: "must be strictly positive"}
	}
	if params.Token == "" {
		params.Token = types.NativeToken
	}

	svc := &service.Service{
		Entity:            types.NewEntity(),
		Provider:          call.Caller,
		Name:              params.Name,
		Description:       params.Description,
		Token:             params.Token,
		AmountPerCycle:    params.AmountPerCycle,
		FrequencyInBlocks: params.FrequencyInBlocks,
		Active:            true,
	}

	if err := e.store.CreateService(ctx, svc); err != nil {
		return nil, err
	}

	e.logger.Info("service created",
		"service_id", svc.ID,
		"provider", svc.Provider,
		"token", svc.Token,
		"amount_per_cycle", svc.AmountPerCycle,
		"frequency", svc.FrequencyInBlocks,
	)

	e.plugins.EmitServiceCreated(ctx, svc)
	return svc, nil
}

// DeactivateService flips a service inactive. Only the owning provider may
// call it. Deactivation is one-way and blocks new subscriptions only;
// existing subscriptions keep billing. Deactivating an already inactive
// service is a no-op, not an error.
func (e *Engine) DeactivateService(ctx context.Context, call types.Call, serviceID id.ServiceID) error {
	svc, err := e.store.GetService(ctx, serviceID)
	if err != nil {
		return err
	}

	if svc.Provider != call.Caller {
		return ErrUnauthorized
	}

	if !svc.Active {
		return nil
	}

	svc.Active = false
	svc.Touch()
	if err := e.store.UpdateService(ctx, svc); err != nil {
		return err
	}

	e.logger.Info("service deactivated", "service_id", svc.ID, "provider", svc.Provider)

	e.plugins.EmitServiceDeactivated(ctx, svc)
	return nil
}

// Service retrieves a service by id.
func (e *Engine) Service(ctx context.Context, serviceID id.ServiceID) (*service.Service, error) {
	return e.store.GetService(ctx, serviceID)
}

// Services lists catalog entries matching the given filter.
func (e *Engine) Services(ctx context.Context, opts service.ListOpts) ([]*service.Service, error) {
	return e.store.ListServices(ctx, opts)
}

// ──────────────────────────────────────────────────
// Payment journal
// ──────────────────────────────────────────────────

// Payments lists journal records matching the given filter, oldest first.
func (e *Engine) Payments(ctx context.Context, opts payment.ListOpts) ([]*payment.Record, error) {
	return e.store.ListPayments(ctx, opts)
}

// journal appends a record of a value movement that already happened. A
// journal failure must not abort the movement, so it is logged and
// swallowed.
func (e *Engine) journal(ctx context.Context, r *payment.Record) {
	r.Entity = types.NewEntity()
	r.ID = id.NewPaymentID()

	if err := e.store.AppendPayment(ctx, r); err != nil {
		e.logger.Warn("payment journal append failed",
			"kind", r.Kind,
			"from", r.From,
			"to", r.To,
			"coin", r.Coin,
			"error", err,
		)
		return
	}

	e.plugins.EmitPaymentExecuted(ctx, r)
}
