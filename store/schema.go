package store

import "context"

// ─── Schema DDL ──────────────────────────────────────────────
//
// Bootstrapped once at process start via EnsureSchema. Statements are
// idempotent (IF NOT EXISTS) so repeated boot on an already-migrated
// database is a no-op, mirroring the pool's embedded-DDL pattern
// rather than a separate migration runner.

const credentialsSchema = `
CREATE TABLE IF NOT EXISTS credentials (
    id          UUID PRIMARY KEY,
    label       TEXT NOT NULL,
    tail_hash   TEXT NOT NULL,
    secret_blob TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const syncStateSchema = `
CREATE TABLE IF NOT EXISTS sync_state (
    credential_id  UUID PRIMARY KEY REFERENCES credentials(id) ON DELETE CASCADE,
    highwatermark  BIGINT NOT NULL DEFAULT 0,
    last_sync_at   TIMESTAMPTZ
);
`

const changedDatesQueriesSchema = `
CREATE TABLE IF NOT EXISTS changed_dates_queries (
    id                BIGSERIAL PRIMARY KEY,
    credential_id     UUID NOT NULL REFERENCES credentials(id) ON DELETE CASCADE,
    highwatermark_in  BIGINT NOT NULL,
    highwatermark_out BIGINT NOT NULL,
    dates_found       INTEGER NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_changed_dates_queries_credential ON changed_dates_queries(credential_id);
`

const syncTasksSchema = `
CREATE TABLE IF NOT EXISTS sync_tasks (
    id           BIGSERIAL PRIMARY KEY,
    credential_id UUID NOT NULL REFERENCES credentials(id) ON DELETE CASCADE,
    date         DATE NOT NULL,
    status       TEXT NOT NULL CHECK (status IN ('pending','in_progress','completed','failed')) DEFAULT 'pending',
    error        TEXT,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at   TIMESTAMPTZ,
    completed_at TIMESTAMPTZ,
    UNIQUE (credential_id, date)
);
CREATE INDEX IF NOT EXISTS idx_sync_tasks_credential_status ON sync_tasks(credential_id, status);
`

const lookupsSchema = `
CREATE TABLE IF NOT EXISTS apps (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS packages (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS bundles (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS partners (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS game_items (
    id   BIGINT PRIMARY KEY,
    name TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS countries (
    code   TEXT PRIMARY KEY,
    name   TEXT NOT NULL,
    region TEXT
);
CREATE TABLE IF NOT EXISTS discounts (
    id         BIGINT PRIMARY KEY,
    name       TEXT NOT NULL,
    percentage INTEGER
);
`

const salesRecordsSchema = `
CREATE TABLE IF NOT EXISTS sales_records (
    id                    BIGSERIAL PRIMARY KEY,
    credential_id         UUID NOT NULL REFERENCES credentials(id) ON DELETE CASCADE,
    date                  DATE NOT NULL,
    line_item_type        TEXT NOT NULL,
    app_id                BIGINT,
    package_id            BIGINT,
    bundle_id             BIGINT,
    partner_id            BIGINT,
    game_item_id          BIGINT,
    country_code          TEXT,
    platform              TEXT,
    currency              TEXT,
    base_price_cents      BIGINT,
    sale_price_cents      BIGINT,
    avg_sale_price_usd_cents BIGINT NOT NULL DEFAULT 0,
    gross_sales_usd_cents BIGINT NOT NULL DEFAULT 0,
    gross_returns_usd_cents BIGINT NOT NULL DEFAULT 0,
    net_sales_usd_cents   BIGINT NOT NULL DEFAULT 0,
    net_tax_usd_cents     BIGINT NOT NULL DEFAULT 0,
    gross_units_sold      INTEGER NOT NULL DEFAULT 0,
    gross_units_returned  INTEGER NOT NULL DEFAULT 0,
    gross_units_activated INTEGER NOT NULL DEFAULT 0,
    net_units_sold        INTEGER NOT NULL DEFAULT 0,
    discount_id           BIGINT,
    discount_percentage   INTEGER,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_sales_records_date ON sales_records(date);
CREATE INDEX IF NOT EXISTS idx_sales_records_credential_date ON sales_records(credential_id, date);
CREATE INDEX IF NOT EXISTS idx_sales_records_app ON sales_records(app_id);
CREATE INDEX IF NOT EXISTS idx_sales_records_country ON sales_records(country_code);
-- Covering index for the common (date, gross_sales_usd, net_units_sold) aggregation.
CREATE INDEX IF NOT EXISTS idx_sales_records_date_agg ON sales_records(date) INCLUDE (gross_sales_usd_cents, net_units_sold);
`

var schemaStatements = []string{
	credentialsSchema,
	syncStateSchema,
	changedDatesQueriesSchema,
	syncTasksSchema,
	lookupsSchema,
	salesRecordsSchema,
}

// EnsureSchema runs all DDL statements. Safe to call on every process
// start; each statement is idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if err := s.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
