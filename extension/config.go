package extension

import "time"

// Config holds the escrow extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.escrow" or "escrow" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for escrow routes (default: "/escrow").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// CrankInterval is how frequently the embedded cranker polls for due
	// payments and ripe cancellations (default: 10s). The cranker only
	// runs when a block source is wired in via WithBlockSource.
	CrankInterval time.Duration `json:"crank_interval" mapstructure:"crank_interval" yaml:"crank_interval"`

	// CrankIdentity is the address the cranker submits calls as
	// (default: "cranker").
	CrankIdentity string `json:"crank_identity" mapstructure:"crank_identity" yaml:"crank_identity"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		CrankInterval: 10 * time.Second,
		CrankIdentity: "cranker",
	}
}
