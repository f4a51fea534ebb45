package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItemKind distinguishes catalog item families sharing one stock ledger.
type ItemKind string

const (
	ItemKindProduct ItemKind = "product"
	ItemKindAddon   ItemKind = "addon"
)

// Valid reports whether kind is a known item family.
func (k ItemKind) Valid() bool {
	switch k {
	case ItemKindProduct, ItemKindAddon:
		return true
	}
	return false
}

// ItemRef identifies a stocked catalog entry.
type ItemRef struct {
	Kind ItemKind
	ID   int64
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// CatalogItem is the catalog's view of an item at lookup time.
type CatalogItem struct {
	Ref    ItemRef
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

// District carries the delivery cost for a shipping district.
type District struct {
	Slug         string
	Name         string
	ShippingCost decimal.Decimal
	Zone         string
	Active       bool
}
