package postgres

const (
	constraintOrderNumber   = "orders_order_number_key"
	constraintOrderDraft    = "orders_source_draft_id_key"
	constraintDraftOrder    = "drafts_converted_order_id_key"
	constraintCompletedPaid = "payments_completed_order_idx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            login TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'customer',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	`CREATE TABLE IF NOT EXISTS catalog_items (
            kind TEXT NOT NULL,
            id BIGINT NOT NULL,
            name TEXT NOT NULL,
            price_cents BIGINT NOT NULL,
            stock INTEGER NOT NULL CHECK (stock >= 0),
            active BOOLEAN NOT NULL DEFAULT TRUE,
            PRIMARY KEY (kind, id)
        )`,
	`CREATE TABLE IF NOT EXISTS delivery_districts (
            slug TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            shipping_cents BIGINT NOT NULL,
            zone TEXT NOT NULL DEFAULT '',
            active BOOLEAN NOT NULL DEFAULT TRUE
        )`,
	`CREATE TABLE IF NOT EXISTS drafts (
            id BIGSERIAL PRIMARY KEY,
            reservation_number TEXT UNIQUE NOT NULL,
            customer JSONB NOT NULL,
            shipping JSONB NOT NULL,
            cart JSONB NOT NULL,
            subtotal_cents BIGINT NOT NULL,
            shipping_cents BIGINT NOT NULL,
            tax_cents BIGINT NOT NULL,
            total_cents BIGINT NOT NULL,
            currency TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            expires_at TIMESTAMPTZ NOT NULL,
            converted_order_id BIGINT,
            CONSTRAINT drafts_converted_order_id_key UNIQUE (converted_order_id)
        )`,
	`CREATE TABLE IF NOT EXISTS orders (
            id BIGSERIAL PRIMARY KEY,
            order_number TEXT NOT NULL,
            user_id BIGINT REFERENCES users(id),
            source_draft_id BIGINT NOT NULL REFERENCES drafts(id),
            status TEXT NOT NULL,
            subtotal_cents BIGINT NOT NULL,
            shipping_cents BIGINT NOT NULL,
            tax_cents BIGINT NOT NULL,
            total_cents BIGINT NOT NULL,
            currency TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT orders_order_number_key UNIQUE (order_number),
            CONSTRAINT orders_source_draft_id_key UNIQUE (source_draft_id)
        )`,
	`CREATE TABLE IF NOT EXISTS order_lines (
            id BIGSERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES orders(id),
            item_kind TEXT NOT NULL,
            item_id BIGINT NOT NULL,
            name TEXT NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity > 0),
            unit_price_cents BIGINT NOT NULL,
            line_total_cents BIGINT NOT NULL
        )`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
            id BIGSERIAL PRIMARY KEY,
            order_id BIGINT NOT NULL REFERENCES orders(id),
            status TEXT NOT NULL,
            note TEXT NOT NULL DEFAULT '',
            changed_by TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	`CREATE TABLE IF NOT EXISTS payments (
            id BIGSERIAL PRIMARY KEY,
            draft_id BIGINT NOT NULL REFERENCES drafts(id),
            order_id BIGINT REFERENCES orders(id),
            method TEXT NOT NULL,
            channel TEXT NOT NULL,
            external_transaction_id TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            amount_cents BIGINT NOT NULL,
            currency TEXT NOT NULL,
            raw_payload TEXT NOT NULL DEFAULT '',
            failure_reason TEXT NOT NULL DEFAULT '',
            confirmed_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        )`,
	`CREATE TABLE IF NOT EXISTS payment_sessions (
            reservation_number TEXT PRIMARY KEY,
            draft_id BIGINT NOT NULL REFERENCES drafts(id),
            token TEXT NOT NULL,
            public_key TEXT NOT NULL DEFAULT '',
            transaction_id TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            expires_at TIMESTAMPTZ NOT NULL
        )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payments_completed_order_idx ON payments(order_id) WHERE status = 'completed'`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_draft ON payments(draft_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_pending ON payment_sessions(created_at)`,
}
