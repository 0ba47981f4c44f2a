package postgres

// migrations holds the DDL applied by Migrate, in order. Statements are
// idempotent so re-running a migration is safe.
var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS escrow_roles (
    address    TEXT PRIMARY KEY,
    role       TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_counters (
    name  TEXT PRIMARY KEY,
    value BIGINT NOT NULL DEFAULT 0
);

INSERT INTO escrow_counters (name, value) VALUES
    ('service', 0),
    ('subscription', 0),
    ('stream', 0)
ON CONFLICT (name) DO NOTHING;
`,
	`
CREATE TABLE IF NOT EXISTS escrow_services (
    id                  BIGINT PRIMARY KEY,
    provider            TEXT NOT NULL DEFAULT '',
    name                TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    token               TEXT NOT NULL DEFAULT '',
    amount_per_cycle    BIGINT NOT NULL DEFAULT 0,
    frequency_in_blocks BIGINT NOT NULL DEFAULT 0,
    active              BOOLEAN NOT NULL DEFAULT TRUE,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_escrow_services_provider ON escrow_services (provider);
CREATE INDEX IF NOT EXISTS idx_escrow_services_active ON escrow_services (active);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_subscriptions (
    id                     BIGINT PRIMARY KEY,
    service_id             BIGINT NOT NULL DEFAULT 0,
    client                 TEXT NOT NULL DEFAULT '',
    vendor                 TEXT NOT NULL DEFAULT '',
    token                  TEXT NOT NULL DEFAULT '',
    amount_per_cycle       BIGINT NOT NULL DEFAULT 0,
    frequency_in_blocks    BIGINT NOT NULL DEFAULT 0,
    remaining_balance      BIGINT NOT NULL DEFAULT 0,
    last_payment_block     BIGINT NOT NULL DEFAULT 0,
    next_payment_block     BIGINT NOT NULL DEFAULT 0,
    status                 TEXT NOT NULL DEFAULT 'active',
    cancel_effective_block BIGINT NOT NULL DEFAULT 0,
    cancel_requested_by    TEXT NOT NULL DEFAULT '',
    cancel_present         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_escrow_subs_client ON escrow_subscriptions (client);
CREATE INDEX IF NOT EXISTS idx_escrow_subs_vendor ON escrow_subscriptions (vendor);
CREATE INDEX IF NOT EXISTS idx_escrow_subs_service ON escrow_subscriptions (service_id);
CREATE INDEX IF NOT EXISTS idx_escrow_subs_status ON escrow_subscriptions (status);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_streams (
    id             BIGINT PRIMARY KEY,
    sender         TEXT NOT NULL DEFAULT '',
    recipient      TEXT NOT NULL DEFAULT '',
    token          TEXT NOT NULL DEFAULT '',
    total_deposit  BIGINT NOT NULL DEFAULT 0,
    claimed_amount BIGINT NOT NULL DEFAULT 0,
    start_block    BIGINT NOT NULL DEFAULT 0,
    end_block      BIGINT NOT NULL DEFAULT 0,
    closed         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_escrow_streams_sender ON escrow_streams (sender);
CREATE INDEX IF NOT EXISTS idx_escrow_streams_recipient ON escrow_streams (recipient);
`,
	`
CREATE TABLE IF NOT EXISTS escrow_payments (
    id              TEXT PRIMARY KEY,
    subscription_id BIGINT NOT NULL DEFAULT 0,
    stream_id       BIGINT NOT NULL DEFAULT 0,
    kind            TEXT NOT NULL DEFAULT '',
    from_address    TEXT NOT NULL DEFAULT '',
    to_address      TEXT NOT NULL DEFAULT '',
    token           TEXT NOT NULL DEFAULT '',
    amount          BIGINT NOT NULL DEFAULT 0,
    block           BIGINT NOT NULL DEFAULT 0,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_escrow_payments_sub ON escrow_payments (subscription_id);
CREATE INDEX IF NOT EXISTS idx_escrow_payments_stream ON escrow_payments (stream_id);
CREATE INDEX IF NOT EXISTS idx_escrow_payments_kind ON escrow_payments (kind);
CREATE INDEX IF NOT EXISTS idx_escrow_payments_from ON escrow_payments (from_address);
CREATE INDEX IF NOT EXISTS idx_escrow_payments_to ON escrow_payments (to_address);
`,
}
