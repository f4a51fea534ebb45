package repository

import (
	"context"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// Tx is the set of writes that must commit or roll back together.
type Tx interface {
	StockLedger

	// LockDraft reads the draft and holds it until the transaction ends.
	LockDraft(ctx context.Context, draftID int64) (*model.Draft, error)
	// MarkDraftConverted sets the conversion marker once; a second attempt
	// returns ErrAlreadyConverted.
	MarkDraftConverted(ctx context.Context, draftID, orderID int64) error

	CreateOrder(ctx context.Context, order *model.Order) error
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	LockOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status model.OrderStatus) error
	AppendStatus(ctx context.Context, orderID int64, entry model.StatusEntry) error

	RecordPayment(ctx context.Context, payment *model.Payment) error
	HasStockConflict(ctx context.Context, draftID int64) (bool, error)
}

// UnitOfWork runs fn inside one atomic transaction.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
