package payments

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists scheduled payments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed payment store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const paymentColumns = `id, user_id, payee, amount, currency, description, tags,
       scheduled_date, recurring_enabled, frequency, recur_interval, end_date,
       parent_id, status, executed_at, tx_hash, explorer_url, failure_reason,
       created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, sp *ScheduledPayment) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO scheduled_payments (
			id, user_id, payee, amount, currency, description, tags,
			scheduled_date, recurring_enabled, frequency, recur_interval, end_date,
			parent_id, status, executed_at, tx_hash, explorer_url, failure_reason,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4::NUMERIC(20,6), $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18,
			$19, $20
		)`,
		sp.ID, sp.UserID, sp.Payee, sp.Amount, sp.Currency, nullString(sp.Description), pq.Array(sp.Tags),
		sp.ScheduledDate, sp.Recurring.Enabled, nullString(string(sp.Recurring.Frequency)), sp.Recurring.Interval, nullTime(sp.Recurring.EndDate),
		nullString(sp.ParentID), string(sp.Status), nullTime(sp.ExecutedAt), nullString(sp.TxHash), nullString(sp.ExplorerURL), nullString(sp.FailureReason),
		sp.CreatedAt, sp.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*ScheduledPayment, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM scheduled_payments WHERE id = $1`, id)

	sp, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return sp, err
}

func (p *PostgresStore) Update(ctx context.Context, sp *ScheduledPayment) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE scheduled_payments SET
			status = $1, executed_at = $2, tx_hash = $3,
			explorer_url = $4, failure_reason = $5, updated_at = $6
		WHERE id = $7`,
		string(sp.Status), nullTime(sp.ExecutedAt), nullString(sp.TxHash),
		nullString(sp.ExplorerURL), nullString(sp.FailureReason), sp.UpdatedAt,
		sp.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Claim transitions scheduled→processing with a conditional update. The
// WHERE clause on status makes the database the arbiter between concurrent
// claimers: only one UPDATE matches the row.
func (p *PostgresStore) Claim(ctx context.Context, id string) (*ScheduledPayment, error) {
	return p.transition(ctx, id, StatusProcessing)
}

func (p *PostgresStore) CancelScheduled(ctx context.Context, id string) (*ScheduledPayment, error) {
	return p.transition(ctx, id, StatusCancelled)
}

func (p *PostgresStore) transition(ctx context.Context, id string, to Status) (*ScheduledPayment, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE scheduled_payments
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'scheduled'
		RETURNING `+paymentColumns, string(to), id)

	sp, err := scanPayment(row)
	if err == sql.ErrNoRows {
		// Distinguish a missing row from a lost race.
		var exists bool
		if checkErr := p.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM scheduled_payments WHERE id = $1)`, id).Scan(&exists); checkErr != nil {
			return nil, checkErr
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrConflict
	}
	return sp, err
}

func (p *PostgresStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*ScheduledPayment, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM scheduled_payments
		WHERE status = 'scheduled' AND scheduled_date <= $1
		ORDER BY scheduled_date ASC
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanPayments(rows)
}

func (p *PostgresStore) ListDueWithin(ctx context.Context, from, until time.Time, limit int) ([]*ScheduledPayment, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM scheduled_payments
		WHERE status = 'scheduled' AND scheduled_date > $1 AND scheduled_date <= $2
		ORDER BY scheduled_date ASC
		LIMIT $3`, from, until, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanPayments(rows)
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string, status Status, limit int) ([]*ScheduledPayment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM scheduled_payments
		WHERE user_id = $1`
	args := []interface{}{userID}

	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit)

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanPayments(rows)
}

// --- scanners ---

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPayment(sc scanner) (*ScheduledPayment, error) {
	sp := &ScheduledPayment{}
	var (
		description   sql.NullString
		tags          pq.StringArray
		frequency     sql.NullString
		endDate       sql.NullTime
		parentID      sql.NullString
		status        string
		executedAt    sql.NullTime
		txHash        sql.NullString
		explorerURL   sql.NullString
		failureReason sql.NullString
	)

	err := sc.Scan(
		&sp.ID, &sp.UserID, &sp.Payee, &sp.Amount, &sp.Currency, &description, &tags,
		&sp.ScheduledDate, &sp.Recurring.Enabled, &frequency, &sp.Recurring.Interval, &endDate,
		&parentID, &status, &executedAt, &txHash, &explorerURL, &failureReason,
		&sp.CreatedAt, &sp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sp.Status = Status(status)
	sp.Description = description.String
	sp.Tags = []string(tags)
	sp.Recurring.Frequency = Frequency(frequency.String)
	sp.ParentID = parentID.String
	sp.TxHash = txHash.String
	sp.ExplorerURL = explorerURL.String
	sp.FailureReason = failureReason.String
	if endDate.Valid {
		sp.Recurring.EndDate = &endDate.Time
	}
	if executedAt.Valid {
		sp.ExecutedAt = &executedAt.Time
	}

	return sp, nil
}

func scanPayments(rows *sql.Rows) ([]*ScheduledPayment, error) {
	var result []*ScheduledPayment
	for rows.Next() {
		sp, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sp)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullTime converts a *time.Time to sql.NullTime.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
