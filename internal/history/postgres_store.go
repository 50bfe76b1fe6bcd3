package history

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists history records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed history store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Append(ctx context.Context, r *Record) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO payment_history (
			id, user_id, payment_id, payee, amount, currency,
			tx_hash, outcome, reason, created_at
		) VALUES ($1, $2, $3, $4, $5::NUMERIC(20,6), $6, $7, $8, $9, $10)`,
		r.ID, r.UserID, nullString(r.PaymentID), r.Payee, r.Amount, r.Currency,
		nullString(r.TxHash), r.Outcome, nullString(r.Reason), r.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListRecent(ctx context.Context, userID string, limit int) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, payment_id, payee, amount, currency,
		       tx_hash, outcome, reason, created_at
		FROM payment_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func (p *PostgresStore) ListBefore(ctx context.Context, userID string, before time.Time, beforeID string, limit int) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, payment_id, payee, amount, currency,
		       tx_hash, outcome, reason, created_at
		FROM payment_history
		WHERE user_id = $1 AND (created_at, id) < ($2, $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4`, userID, before, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func (p *PostgresStore) ListSince(ctx context.Context, userID string, since time.Time) ([]*Record, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, payment_id, payee, amount, currency,
		       tx_hash, outcome, reason, created_at
		FROM payment_history
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanRecords(rows)
}

func (p *PostgresStore) CountSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payment_history
		WHERE user_id = $1 AND created_at >= $2`, userID, since).Scan(&count)
	return count, err
}

func scanRecords(rows *sql.Rows) ([]*Record, error) {
	var result []*Record
	for rows.Next() {
		var r Record
		var paymentID, txHash, reason sql.NullString
		if err := rows.Scan(
			&r.ID, &r.UserID, &paymentID, &r.Payee, &r.Amount, &r.Currency,
			&txHash, &r.Outcome, &reason, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		r.PaymentID = paymentID.String
		r.TxHash = txHash.String
		r.Reason = reason.String
		result = append(result, &r)
	}
	return result, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
