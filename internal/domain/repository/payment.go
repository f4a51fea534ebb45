package repository

import (
	"context"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// PaymentRepository keeps the payment attempt audit trail.
type PaymentRepository interface {
	Record(ctx context.Context, payment *model.Payment) error
	ListByDraft(ctx context.Context, draftID int64) ([]model.Payment, error)
	// HasStockConflict reports whether a payment for draftID already lost its stock.
	HasStockConflict(ctx context.Context, draftID int64) (bool, error)
}
