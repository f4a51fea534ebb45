package repository

import (
	"context"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// DraftRepository stores reserved-but-uncommitted carts.
// Conversion is only reachable through Tx.MarkDraftConverted.
type DraftRepository interface {
	Create(ctx context.Context, draft *model.Draft) error
	GetByReservationNumber(ctx context.Context, number string) (*model.Draft, error)
}
