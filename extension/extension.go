// Package extension provides the Forge extension adapter for the escrow
// engine.
//
// It implements the forge.Extension interface to integrate the engine
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.escrow" or "escrow" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	escrow "github.com/xraph/escrow"
	"github.com/xraph/escrow/bank"
	"github.com/xraph/escrow/cranker"
	"github.com/xraph/escrow/store"
	"github.com/xraph/escrow/store/memory"
	"github.com/xraph/escrow/types"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "escrow"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Escrow-backed recurring payment engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the escrow engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *escrow.Engine
	store      store.Store
	bank       bank.Transferrer
	blocks     cranker.BlockSource
	crank      *cranker.Cranker
	engineOpts []escrow.Option
}

// New creates a new escrow Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying escrow engine.
// This is nil until Register is called.
func (e *Extension) Engine() *escrow.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the escrow engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Fall back to in-process backends when nothing was wired in.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.bank == nil {
		e.bank = bank.NewMemory()
	}

	eng := escrow.New(e.store, e.bank, e.engineOpts...)
	e.engine = eng

	if e.blocks != nil {
		e.crank = cranker.New(eng, e.blocks,
			cranker.WithInterval(e.config.CrankInterval),
			cranker.WithIdentity(types.Address(e.config.CrankIdentity)),
		)
	}

	return vessel.Provide(fapp.Container(), func() (*escrow.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("escrow: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	if e.crank != nil {
		e.crank.Start(ctx)
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.crank != nil {
		e.crank.Stop()
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("escrow: store not initialized")
	}
	return e.store.Ping(ctx)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("escrow: configuration is required but not found in config files; " +
				"ensure 'extensions.escrow' or 'escrow' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("escrow: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("crank_interval", e.config.CrankInterval),
		forge.F("crank_identity", e.config.CrankIdentity),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.escrow" first (namespaced pattern).
	if cm.IsSet("extensions.escrow") {
		if err := cm.Bind("extensions.escrow", &cfg); err == nil {
			e.Logger().Debug("escrow: loaded config from file",
				forge.F("key", "extensions.escrow"),
			)
			return cfg, true
		}
		e.Logger().Warn("escrow: failed to bind extensions.escrow config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "escrow" key.
	if cm.IsSet("escrow") {
		if err := cm.Bind("escrow", &cfg); err == nil {
			e.Logger().Debug("escrow: loaded config from file",
				forge.F("key", "escrow"),
			)
			return cfg, true
		}
		e.Logger().Warn("escrow: failed to bind escrow config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.CrankInterval == 0 {
		cfg.CrankInterval = defaults.CrankInterval
	}
	if cfg.CrankIdentity == "" {
		cfg.CrankIdentity = defaults.CrankIdentity
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.CrankIdentity == "" && programmaticConfig.CrankIdentity != "" {
		yamlConfig.CrankIdentity = programmaticConfig.CrankIdentity
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.CrankInterval == 0 && programmaticConfig.CrankInterval != 0 {
		yamlConfig.CrankInterval = programmaticConfig.CrankInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
