package usecase

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
)

// ShippingQuoter prices delivery for a cart.
type ShippingQuoter struct {
	districts     repository.DistrictRepository
	flatCost      decimal.Decimal
	freeThreshold decimal.Decimal
}

// NewShippingQuoter constructs ShippingQuoter. A nil district repository
// makes every delivery fall back to the flat rule.
func NewShippingQuoter(districts repository.DistrictRepository, flatCost, freeThreshold decimal.Decimal) *ShippingQuoter {
	return &ShippingQuoter{districts: districts, flatCost: flatCost, freeThreshold: freeThreshold}
}

// Quote returns the shipping cost for shipping and the cart subtotal.
// Pickup is free; an active district charges its own rate; otherwise
// the flat cost applies below the free-shipping threshold.
func (q *ShippingQuoter) Quote(ctx context.Context, shipping model.ShippingInfo, subtotal decimal.Decimal) (decimal.Decimal, error) {
	if shipping.Type == model.ShippingPickup {
		return decimal.Zero, nil
	}

	if q.districts != nil && shipping.Address.District != "" {
		district, err := q.districts.Find(ctx, shipping.Address.District)
		switch {
		case err == nil && district.Active:
			return district.ShippingCost, nil
		case err != nil && !errors.Is(err, domainErrors.ErrNotFound):
			return decimal.Zero, err
		}
	}

	if subtotal.LessThan(q.freeThreshold) {
		return q.flatCost, nil
	}
	return decimal.Zero, nil
}
