package repository

import (
	"context"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// OrderRepository describes read access to committed orders.
type OrderRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Order, error)
	GetByNumber(ctx context.Context, number string) (*model.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Order, error)
}
