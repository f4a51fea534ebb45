package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
)

type unitOfWork struct {
	storage *Storage
}

// WithinTransaction hands fn a repository.Tx bound to one pgx transaction.
func (u *unitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	return u.storage.WithinTransaction(ctx, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) DecrementStock(ctx context.Context, ref model.ItemRef, qty int) error {
	return decrementStock(ctx, t.tx, ref, qty)
}

func (t *txRepository) IncrementStock(ctx context.Context, ref model.ItemRef, qty int) error {
	return incrementStock(ctx, t.tx, ref, qty)
}

func (t *txRepository) LockDraft(ctx context.Context, draftID int64) (*model.Draft, error) {
	return lockDraft(ctx, t.tx, draftID)
}

func (t *txRepository) MarkDraftConverted(ctx context.Context, draftID, orderID int64) error {
	return markDraftConverted(ctx, t.tx, draftID, orderID)
}

func (t *txRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	return createOrder(ctx, t.tx, order)
}

func (t *txRepository) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return loadOrderByID(ctx, t.tx, orderID)
}

func (t *txRepository) LockOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return lockOrderByNumber(ctx, t.tx, number)
}

func (t *txRepository) UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	return updateOrderStatus(ctx, t.tx, orderID, status)
}

func (t *txRepository) AppendStatus(ctx context.Context, orderID int64, entry model.StatusEntry) error {
	return appendStatus(ctx, t.tx, orderID, entry)
}

func (t *txRepository) RecordPayment(ctx context.Context, payment *model.Payment) error {
	return recordPayment(ctx, t.tx, payment)
}

func (t *txRepository) HasStockConflict(ctx context.Context, draftID int64) (bool, error) {
	return hasStockConflict(ctx, t.tx, draftID)
}
