package postgres

import (
	"context"
	"time"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

const sessionColumns = `reservation_number, draft_id, token, public_key, transaction_id, created_at, expires_at`

type sessionRepository struct {
	storage *Storage
}

func (r *sessionRepository) Get(ctx context.Context, reservationNumber string) (*model.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE reservation_number=$1 AND expires_at > NOW()`
	return scanSession(r.storage.pool.QueryRow(ctx, query, reservationNumber))
}

// Save inserts session or replaces an expired row. A live row is never
// overwritten; in that case the stored session is returned instead.
func (r *sessionRepository) Save(ctx context.Context, session *model.PaymentSession) (*model.PaymentSession, error) {
	const query = `INSERT INTO payment_sessions (reservation_number, draft_id, token, public_key, transaction_id, created_at, expires_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7)
                   ON CONFLICT (reservation_number) DO UPDATE
                   SET draft_id = EXCLUDED.draft_id,
                       token = EXCLUDED.token,
                       public_key = EXCLUDED.public_key,
                       transaction_id = EXCLUDED.transaction_id,
                       created_at = EXCLUDED.created_at,
                       expires_at = EXCLUDED.expires_at
                   WHERE payment_sessions.expires_at <= NOW()
                   RETURNING ` + sessionColumns
	stored, err := scanSession(r.storage.pool.QueryRow(ctx, query,
		session.ReservationNumber, session.DraftID, session.Token, session.PublicKey,
		session.TransactionID, session.CreatedAt, session.ExpiresAt))
	if err == nil {
		return stored, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return r.Get(ctx, session.ReservationNumber)
}

func (r *sessionRepository) Delete(ctx context.Context, reservationNumber string) error {
	const query = `DELETE FROM payment_sessions WHERE reservation_number=$1`
	_, err := r.storage.pool.Exec(ctx, query, reservationNumber)
	return err
}

func (r *sessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM payment_sessions WHERE expires_at <= $1`
	tag, err := r.storage.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *sessionRepository) ListPending(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentSession, error) {
	const query = `SELECT s.reservation_number, s.draft_id, s.token, s.public_key, s.transaction_id, s.created_at, s.expires_at
                   FROM payment_sessions s
                   JOIN drafts d ON d.id = s.draft_id
                   WHERE d.converted_order_id IS NULL
                     AND s.expires_at > NOW()
                     AND s.created_at <= $1
                     AND NOT EXISTS (
                         SELECT 1 FROM payments p
                         WHERE p.draft_id = s.draft_id AND p.status = 'failed' AND p.failure_reason LIKE $3)
                   ORDER BY s.created_at
                   LIMIT $2`
	rows, err := r.storage.pool.Query(ctx, query, olderThan, limit, model.StockConflictReason+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.PaymentSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanSession(row rowScanner) (*model.PaymentSession, error) {
	var s model.PaymentSession
	err := row.Scan(&s.ReservationNumber, &s.DraftID, &s.Token, &s.PublicKey, &s.TransactionID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}
