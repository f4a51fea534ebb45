package postgres

import (
	"context"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
)

type paymentRepository struct {
	storage *Storage
}

func (r *paymentRepository) Record(ctx context.Context, payment *model.Payment) error {
	return recordPayment(ctx, r.storage.pool, payment)
}

func (r *paymentRepository) ListByDraft(ctx context.Context, draftID int64) ([]model.Payment, error) {
	const query = `SELECT id, draft_id, order_id, method, channel, external_transaction_id, status,
                          amount_cents, currency, raw_payload, failure_reason, confirmed_at, created_at
                   FROM payments WHERE draft_id=$1 ORDER BY created_at, id`
	rows, err := r.storage.pool.Query(ctx, query, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Payment
	for rows.Next() {
		var (
			p               model.Payment
			channel, status string
			amount          int64
		)
		if err := rows.Scan(&p.ID, &p.DraftID, &p.OrderID, &p.Method, &channel, &p.ExternalTransactionID, &status,
			&amount, &p.Currency, &p.RawPayload, &p.FailureReason, &p.ConfirmedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Channel = model.Channel(channel)
		p.Status = model.PaymentStatus(status)
		p.Amount = model.FromCents(amount)
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *paymentRepository) HasStockConflict(ctx context.Context, draftID int64) (bool, error) {
	return hasStockConflict(ctx, r.storage.pool, draftID)
}

const stockConflictFilter = `status = 'failed' AND failure_reason LIKE $2`

func hasStockConflict(ctx context.Context, q queryer, draftID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payments WHERE draft_id=$1 AND ` + stockConflictFilter + `)`
	var exists bool
	if err := q.QueryRow(ctx, query, draftID, model.StockConflictReason+"%").Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func recordPayment(ctx context.Context, q queryer, p *model.Payment) error {
	const query = `INSERT INTO payments (draft_id, order_id, method, channel, external_transaction_id, status,
                       amount_cents, currency, raw_payload, failure_reason, confirmed_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
                   RETURNING id, created_at`
	err := q.QueryRow(ctx, query,
		p.DraftID, p.OrderID, p.Method, string(p.Channel), p.ExternalTransactionID, string(p.Status),
		model.ToCents(p.Amount), p.Currency, p.RawPayload, p.FailureReason, p.ConfirmedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if name, ok := uniqueConstraint(err); ok && name == constraintCompletedPaid {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}
