package sqlite

// migrations holds the DDL applied by Migrate, in order. Statements are
// idempotent so re-running a migration is safe.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS escrow_roles (
    address    TEXT PRIMARY KEY,
    role       TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_counters (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL DEFAULT 0
);
`,
	`
INSERT OR IGNORE INTO escrow_counters (name, value) VALUES ('service', 0);
`,
	`
INSERT OR IGNORE INTO escrow_counters (name, value) VALUES ('subscription', 0);
`,
	`
INSERT OR IGNORE INTO escrow_counters (name, value) VALUES ('stream', 0);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_services (
    id                  INTEGER PRIMARY KEY,
    provider            TEXT NOT NULL DEFAULT '',
    name                TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    token               TEXT NOT NULL DEFAULT '',
    amount_per_cycle    INTEGER NOT NULL DEFAULT 0,
    frequency_in_blocks INTEGER NOT NULL DEFAULT 0,
    active              INTEGER NOT NULL DEFAULT 1,
    created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_services_provider ON escrow_services (provider);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_subscriptions (
    id                     INTEGER PRIMARY KEY,
    service_id             INTEGER NOT NULL DEFAULT 0,
    client                 TEXT NOT NULL DEFAULT '',
    vendor                 TEXT NOT NULL DEFAULT '',
    token                  TEXT NOT NULL DEFAULT '',
    amount_per_cycle       INTEGER NOT NULL DEFAULT 0,
    frequency_in_blocks    INTEGER NOT NULL DEFAULT 0,
    remaining_balance      INTEGER NOT NULL DEFAULT 0,
    last_payment_block     INTEGER NOT NULL DEFAULT 0,
    next_payment_block     INTEGER NOT NULL DEFAULT 0,
    status                 TEXT NOT NULL DEFAULT 'active',
    cancel_effective_block INTEGER NOT NULL DEFAULT 0,
    cancel_requested_by    TEXT NOT NULL DEFAULT '',
    cancel_present         INTEGER NOT NULL DEFAULT 0,
    created_at             TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at             TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_subs_client ON escrow_subscriptions (client);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_subs_vendor ON escrow_subscriptions (vendor);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_subs_service ON escrow_subscriptions (service_id);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_streams (
    id             INTEGER PRIMARY KEY,
    sender         TEXT NOT NULL DEFAULT '',
    recipient      TEXT NOT NULL DEFAULT '',
    token          TEXT NOT NULL DEFAULT '',
    total_deposit  INTEGER NOT NULL DEFAULT 0,
    claimed_amount INTEGER NOT NULL DEFAULT 0,
    start_block    INTEGER NOT NULL DEFAULT 0,
    end_block      INTEGER NOT NULL DEFAULT 0,
    closed         INTEGER NOT NULL DEFAULT 0,
    created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_streams_sender ON escrow_streams (sender);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_streams_recipient ON escrow_streams (recipient);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_payments (
    id              TEXT PRIMARY KEY,
    subscription_id INTEGER NOT NULL DEFAULT 0,
    stream_id       INTEGER NOT NULL DEFAULT 0,
    kind            TEXT NOT NULL DEFAULT '',
    from_address    TEXT NOT NULL DEFAULT '',
    to_address      TEXT NOT NULL DEFAULT '',
    token           TEXT NOT NULL DEFAULT '',
    amount          INTEGER NOT NULL DEFAULT 0,
    block           INTEGER NOT NULL DEFAULT 0,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_payments_sub ON escrow_payments (subscription_id);
`,
	`
CREATE INDEX IF NOT EXISTS idx_escrow_payments_stream ON escrow_payments (stream_id);
`,
}
