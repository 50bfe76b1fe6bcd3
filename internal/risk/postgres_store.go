package risk

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists risk checks, alerts, and limit overrides in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed risk store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) RecordCheck(ctx context.Context, r *CheckResult) error {
	flags, err := json.Marshal(r.Flags)
	if err != nil {
		return fmt.Errorf("marshal flags: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO security_checks (
			id, user_id, transaction_id, risk_score, flags,
			recommendation, passed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.ID, r.UserID, nullString(r.TransactionID), r.RiskScore, flags,
		string(r.Recommendation), r.Passed, r.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListChecks(ctx context.Context, userID string, limit int) ([]*CheckResult, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, transaction_id, risk_score, flags,
		       recommendation, passed, created_at
		FROM security_checks
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*CheckResult
	for rows.Next() {
		var r CheckResult
		var txID sql.NullString
		var flags []byte
		var rec string
		if err := rows.Scan(&r.ID, &r.UserID, &txID, &r.RiskScore, &flags,
			&rec, &r.Passed, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.TransactionID = txID.String
		r.Recommendation = Recommendation(rec)
		if err := json.Unmarshal(flags, &r.Flags); err != nil {
			return nil, fmt.Errorf("unmarshal flags for %s: %w", r.ID, err)
		}
		result = append(result, &r)
	}
	return result, rows.Err()
}

func (p *PostgresStore) RecordAlert(ctx context.Context, a *Alert) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO security_alerts (
			id, user_id, check_id, risk_score, recommendation, summary, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.UserID, a.CheckID, a.RiskScore, string(a.Recommendation), a.Summary, a.CreatedAt,
	)
	return err
}

func (p *PostgresStore) ListAlerts(ctx context.Context, userID string, limit int) ([]*Alert, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, check_id, risk_score, recommendation, summary, created_at
		FROM security_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Alert
	for rows.Next() {
		var a Alert
		var rec string
		if err := rows.Scan(&a.ID, &a.UserID, &a.CheckID, &a.RiskScore, &rec, &a.Summary, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Recommendation = Recommendation(rec)
		result = append(result, &a)
	}
	return result, rows.Err()
}

func (p *PostgresStore) GetLimits(ctx context.Context, userID string) (*Limits, error) {
	var raw []byte
	err := p.db.QueryRowContext(ctx, `
		SELECT limits FROM risk_limit_overrides WHERE user_id = $1`, userID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var l Limits
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("unmarshal limits for %s: %w", userID, err)
	}
	return &l, nil
}

func (p *PostgresStore) PutLimits(ctx context.Context, userID string, limits *Limits) error {
	raw, err := json.Marshal(limits)
	if err != nil {
		return fmt.Errorf("marshal limits: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO risk_limit_overrides (user_id, limits, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET limits = $2, updated_at = NOW()`,
		userID, raw)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
