package repository

import (
	"context"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// Catalog answers advisory item lookups made while reserving a cart.
type Catalog interface {
	GetItem(ctx context.Context, ref model.ItemRef) (*model.CatalogItem, error)
}

// StockLedger applies stock deltas under the ledger's own row locks.
type StockLedger interface {
	// DecrementStock returns ErrInsufficientStock when fewer than qty units remain.
	DecrementStock(ctx context.Context, ref model.ItemRef, qty int) error
	IncrementStock(ctx context.Context, ref model.ItemRef, qty int) error
}

// DistrictRepository resolves delivery districts.
type DistrictRepository interface {
	Find(ctx context.Context, district string) (*model.District, error)
}
