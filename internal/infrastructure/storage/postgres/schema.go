package postgres

import (
	"context"
	"fmt"
)

// Table names.
const (
	TableIngredients   = "ingredients"
	TableLedgerEntries = "ledger_entries"
	TableRecipes       = "recipes"
	TableRecipeLines   = "recipe_lines"
	TableLedgerAudit   = "ledger_audit"
)

// schema is applied idempotently at startup.
// Ledger dates are calendar days; balances are cached copies of the fold.
const schema = `
CREATE TABLE IF NOT EXISTS ingredients (
	id               UUID PRIMARY KEY,
	name             TEXT NOT NULL,
	type             TEXT NOT NULL,
	unit             TEXT NOT NULL,
	initial_quantity NUMERIC NOT NULL DEFAULT 0 CHECK (initial_quantity >= 0),
	version          INT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id             UUID PRIMARY KEY,
	ingredient_id  UUID NOT NULL REFERENCES ingredients (id) ON DELETE CASCADE,
	kind           TEXT NOT NULL,
	delta          NUMERIC NOT NULL CHECK (delta <> 0),
	unit           TEXT NOT NULL,
	occurred_at    DATE NOT NULL,
	seq            BIGINT NOT NULL,
	balance_before NUMERIC NOT NULL,
	balance_after  NUMERIC NOT NULL,
	unit_price     NUMERIC NOT NULL DEFAULT 0,
	supplier_ref   TEXT NOT NULL DEFAULT '',
	note           TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL,
	UNIQUE (ingredient_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_ledger_entries_order
	ON ledger_entries (ingredient_id, occurred_at, seq);

CREATE TABLE IF NOT EXISTS recipes (
	id              UUID PRIMARY KEY,
	name            TEXT NOT NULL,
	tier            TEXT NOT NULL,
	base_recipe_id  UUID REFERENCES recipes (id),
	output_quantity NUMERIC NOT NULL DEFAULT 0,
	waste_rate      NUMERIC NOT NULL DEFAULT 0 CHECK (waste_rate >= 0 AND waste_rate <= 100),
	version         INT NOT NULL DEFAULT 1,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recipe_lines (
	recipe_id     UUID NOT NULL REFERENCES recipes (id) ON DELETE CASCADE,
	line_no       INT NOT NULL,
	ingredient_id UUID NOT NULL,
	quantity      NUMERIC NOT NULL CHECK (quantity > 0),
	unit          TEXT NOT NULL,
	PRIMARY KEY (recipe_id, line_no),
	UNIQUE (recipe_id, ingredient_id)
);

CREATE TABLE IF NOT EXISTS ledger_audit (
	id                 UUID PRIMARY KEY,
	ingredient_id      UUID NOT NULL,
	operation          TEXT NOT NULL,
	entry_id           UUID NOT NULL,
	balance_before     TEXT NOT NULL,
	balance_after      TEXT NOT NULL,
	changes            JSONB,
	changes_compressed BYTEA,
	compression_algo   TEXT NOT NULL DEFAULT 'none',
	request_id         TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ledger_audit_ingredient
	ON ledger_audit (ingredient_id, created_at DESC);

CREATE TABLE IF NOT EXISTS idempotency_keys (
	idempotency_key       TEXT PRIMARY KEY,
	operation             TEXT NOT NULL,
	status                TEXT NOT NULL,
	request_hash          TEXT NOT NULL,
	response              BYTEA,
	response_status       INT NOT NULL DEFAULT 0,
	response_content_type TEXT NOT NULL DEFAULT '',
	created_at            TIMESTAMPTZ NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL,
	expires_at            TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_idempotency_keys_expires
	ON idempotency_keys (expires_at);
`

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
