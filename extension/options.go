package extension

import (
	"time"

	escrow "github.com/xraph/escrow"
	"github.com/xraph/escrow/bank"
	"github.com/xraph/escrow/cranker"
	"github.com/xraph/escrow/plugin"
	"github.com/xraph/escrow/store"
)

// Option configures the escrow Forge extension.
type Option func(*Extension)

// WithStore sets the store for the escrow engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithBank sets the value transfer backend for the escrow engine.
func WithBank(b bank.Transferrer) Option {
	return func(e *Extension) {
		e.bank = b
	}
}

// WithBlockSource wires in a block height source and enables the embedded
// cranker.
func WithBlockSource(bs cranker.BlockSource) Option {
	return func(e *Extension) {
		e.blocks = bs
	}
}

// WithEngineOption passes an escrow.Option through to the underlying engine.
func WithEngineOption(opt escrow.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an engine plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, escrow.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for escrow routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithCrankInterval sets how frequently the embedded cranker polls.
func WithCrankInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.CrankInterval = d }
}

// WithCrankIdentity sets the address the cranker submits calls as.
func WithCrankIdentity(addr string) Option {
	return func(e *Extension) { e.config.CrankIdentity = addr }
}
