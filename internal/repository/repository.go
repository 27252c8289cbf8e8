// Package repository provides transaction sources and rule persistence.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 && cfg.Driver != "sqlite" {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// LoadTransactions returns up to limit transactions in insertion order.
func (r *SQLRepository) LoadTransactions(ctx context.Context, limit int) ([]domain.RawTransaction, error) {
	if limit <= 0 {
		limit = domain.DefaultSourceLimit
	}

	query := `
		SELECT transaction_id, customer_id, account_number, transaction_date_time,
			transaction_amount, merchant_name, merchant_country_code, merchant_category_code,
			acq_country, card_cvv, entered_cvv, expiration_date_key_in_match, card_present, is_fraud
		FROM transactions
		ORDER BY created_at, transaction_id
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.RawTransaction
	for rows.Next() {
		var (
			tx                                 domain.RawTransaction
			dateTime, amount, merchantName     sql.NullString
			country, category, acq, cvv, entry sql.NullString
			expMatch, cardPresent, fraud       sql.NullInt64
		)

		if err := rows.Scan(
			&tx.TransactionID, &tx.CustomerID, &tx.AccountNumber, &dateTime,
			&amount, &merchantName, &country, &category,
			&acq, &cvv, &entry, &expMatch, &cardPresent, &fraud,
		); err != nil {
			return nil, err
		}

		tx.TransactionDateTime = nullString(dateTime)
		tx.TransactionAmount = nullString(amount)
		tx.MerchantName = merchantName.String
		tx.MerchantCountryCode = nullString(country)
		tx.MerchantCategoryCode = category.String
		tx.AcqCountry = nullString(acq)
		tx.CardCVV = nullString(cvv)
		tx.EnteredCVV = nullString(entry)
		tx.ExpirationDateKeyInMatch = nullFlag(expMatch)
		tx.CardPresent = nullFlag(cardPresent)
		tx.IsFraud = nullInt(fraud)

		txs = append(txs, tx)
	}

	return txs, rows.Err()
}

// SaveTransactions upserts raw transactions in a single database transaction.
func (r *SQLRepository) SaveTransactions(ctx context.Context, txs []domain.RawTransaction) error {
	if len(txs) == 0 {
		return nil
	}

	query := `
		INSERT INTO transactions (
			transaction_id, customer_id, account_number, transaction_date_time,
			transaction_amount, merchant_name, merchant_country_code, merchant_category_code,
			acq_country, card_cvv, entered_cvv, expiration_date_key_in_match, card_present,
			is_fraud, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(transaction_id) DO UPDATE SET
			customer_id = excluded.customer_id,
			account_number = excluded.account_number,
			transaction_date_time = excluded.transaction_date_time,
			transaction_amount = excluded.transaction_amount,
			merchant_name = excluded.merchant_name,
			merchant_country_code = excluded.merchant_country_code,
			merchant_category_code = excluded.merchant_category_code,
			acq_country = excluded.acq_country,
			card_cvv = excluded.card_cvv,
			entered_cvv = excluded.entered_cvv,
			expiration_date_key_in_match = excluded.expiration_date_key_in_match,
			card_present = excluded.card_present,
			is_fraud = excluded.is_fraud
	`

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	// Rows keep their batch order through created_at
	base := time.Now().UTC()
	for i, tx := range txs {
		if tx.TransactionID == "" {
			return fmt.Errorf("%w: row %d: transactionId is required", ErrInvalidInput, i)
		}

		expMatch, err := flagValue(tx.ExpirationDateKeyInMatch)
		if err != nil {
			return fmt.Errorf("%w: transaction %s: expirationDateKeyInMatch: %v", ErrInvalidInput, tx.TransactionID, err)
		}
		cardPresent, err := flagValue(tx.CardPresent)
		if err != nil {
			return fmt.Errorf("%w: transaction %s: cardPresent: %v", ErrInvalidInput, tx.TransactionID, err)
		}
		fraud, err := flagValue(tx.IsFraud)
		if err != nil {
			return fmt.Errorf("%w: transaction %s: isFraud: %v", ErrInvalidInput, tx.TransactionID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			tx.TransactionID, tx.CustomerID, tx.AccountNumber, textValue(tx.TransactionDateTime),
			textValue(tx.TransactionAmount), tx.MerchantName, textValue(tx.MerchantCountryCode), tx.MerchantCategoryCode,
			textValue(tx.AcqCountry), textValue(tx.CardCVV), textValue(tx.EnteredCVV), expMatch, cardPresent,
			fraud, base.Add(time.Duration(i)*time.Microsecond),
		); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", tx.TransactionID, err)
		}
	}

	return dbTx.Commit()
}

// CountTransactions returns the number of stored transactions.
func (r *SQLRepository) CountTransactions(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n)
	return n, err
}

// SaveRiskRule stores a risk rule, replacing any rule with the same ID.
func (r *SQLRepository) SaveRiskRule(ctx context.Context, rule *domain.RiskRule) error {
	if rule == nil || rule.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	version := rule.Version
	if version == "" {
		version = "1.0.0"
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO risk_rules (
			id, name, description, version, expression, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			version = excluded.version,
			expression = excluded.expression,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, rule.Name, rule.Description, version,
		rule.Expression, rule.Weight, enabled, now, now,
	)
	return err
}

// GetRiskRule retrieves a risk rule by ID.
func (r *SQLRepository) GetRiskRule(ctx context.Context, id string) (*domain.RiskRule, error) {
	query := `
		SELECT id, name, description, version, expression, weight, enabled, created_at, updated_at
		FROM risk_rules
		WHERE id = ?
	`

	rule, err := scanRiskRule(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rule, err
}

// ListRiskRules returns every stored risk rule, enabled or not, by ID.
func (r *SQLRepository) ListRiskRules(ctx context.Context) ([]*domain.RiskRule, error) {
	query := `
		SELECT id, name, description, version, expression, weight, enabled, created_at, updated_at
		FROM risk_rules
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RiskRule
	for rows.Next() {
		rule, err := scanRiskRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRiskRule(s scanner) (*domain.RiskRule, error) {
	var (
		rule        domain.RiskRule
		description sql.NullString
		enabled     int
	)

	if err := s.Scan(
		&rule.ID, &rule.Name, &description, &rule.Version,
		&rule.Expression, &rule.Weight, &enabled, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1
	return &rule, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func nullString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func nullInt(n sql.NullInt64) any {
	if !n.Valid {
		return nil
	}
	return n.Int64
}

func nullFlag(n sql.NullInt64) any {
	if !n.Valid {
		return nil
	}
	return n.Int64 == 1
}

// textValue renders a loosely typed field for a TEXT column.
func textValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case decimal.Decimal:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// flagValue renders a loosely typed boolean for an INTEGER column.
func flagValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if t {
			return int64(1), nil
		}
		return int64(0), nil
	case int:
		return flagInt(int64(t))
	case int32:
		return flagInt(int64(t))
	case int64:
		return flagInt(t)
	case float64:
		if t == 0 || t == 1 {
			return int64(t), nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "":
			return nil, nil
		case "true", "1", "yes", "t":
			return int64(1), nil
		case "false", "0", "no", "f":
			return int64(0), nil
		}
	}
	return nil, fmt.Errorf("not a boolean: %v", v)
}

func flagInt(i int64) (any, error) {
	if i == 0 || i == 1 {
		return i, nil
	}
	return nil, fmt.Errorf("not a boolean: %d", i)
}
