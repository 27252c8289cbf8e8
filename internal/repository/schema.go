package repository

// Schema definitions for the Harrier database.
// Compatible with both SQLite and PostgreSQL.

// Transaction columns are nullable and loosely typed: rows are stored as
// delivered and validated by the normalizer when loaded.
const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    transaction_id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    account_number TEXT NOT NULL,
    transaction_date_time TEXT,
    transaction_amount TEXT,
    merchant_name TEXT,
    merchant_country_code TEXT,
    merchant_category_code TEXT,
    acq_country TEXT,
    card_cvv TEXT,
    entered_cvv TEXT,
    expiration_date_key_in_match INTEGER,
    card_present INTEGER,
    is_fraud INTEGER,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_created ON transactions(created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_country ON transactions(merchant_country_code);
`

const schemaRiskRules = `
CREATE TABLE IF NOT EXISTS risk_rules (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    weight INTEGER NOT NULL DEFAULT 0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_risk_rules_enabled ON risk_rules(enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaRiskRules,
	}
}
