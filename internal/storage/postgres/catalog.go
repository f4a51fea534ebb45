package postgres

import (
	"context"
	"strings"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
)

type catalogRepository struct {
	storage *Storage
}

type districtRepository struct {
	storage *Storage
}

func (r *catalogRepository) GetItem(ctx context.Context, ref model.ItemRef) (*model.CatalogItem, error) {
	const query = `SELECT name, price_cents, stock, active FROM catalog_items WHERE kind=$1 AND id=$2`
	item := model.CatalogItem{Ref: ref}
	var price int64
	err := r.storage.pool.QueryRow(ctx, query, string(ref.Kind), ref.ID).Scan(&item.Name, &price, &item.Stock, &item.Active)
	if err != nil {
		return nil, notFound(err)
	}
	item.Price = model.FromCents(price)
	return &item, nil
}

// decrementStock applies a conditional delta; the row lock taken by the
// UPDATE serializes concurrent commits touching the same item.
func decrementStock(ctx context.Context, q queryer, ref model.ItemRef, qty int) error {
	const query = `UPDATE catalog_items SET stock = stock - $3 WHERE kind=$1 AND id=$2 AND stock >= $3`
	tag, err := q.Exec(ctx, query, string(ref.Kind), ref.ID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM catalog_items WHERE kind=$1 AND id=$2)`
	if err := q.QueryRow(ctx, existsQuery, string(ref.Kind), ref.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domainErrors.ErrNotFound
	}
	return domainErrors.ErrInsufficientStock
}

func incrementStock(ctx context.Context, q queryer, ref model.ItemRef, qty int) error {
	const query = `UPDATE catalog_items SET stock = stock + $3 WHERE kind=$1 AND id=$2`
	tag, err := q.Exec(ctx, query, string(ref.Kind), ref.ID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

// Find matches a district by slug or, case-insensitively, by display name.
func (r *districtRepository) Find(ctx context.Context, district string) (*model.District, error) {
	const query = `SELECT slug, name, shipping_cents, zone, active FROM delivery_districts
                   WHERE slug=$1 OR LOWER(name)=$2 LIMIT 1`
	var (
		d    model.District
		cost int64
	)
	key := strings.TrimSpace(district)
	err := r.storage.pool.QueryRow(ctx, query, key, strings.ToLower(key)).Scan(&d.Slug, &d.Name, &cost, &d.Zone, &d.Active)
	if err != nil {
		return nil, notFound(err)
	}
	d.ShippingCost = model.FromCents(cost)
	return &d, nil
}
