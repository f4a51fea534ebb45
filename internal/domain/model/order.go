package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus describes fulfilment lifecycle of a committed order.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusInTransit OrderStatus = "in_transit"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderProgress = map[OrderStatus]int{
	OrderStatusConfirmed: 1,
	OrderStatusPreparing: 2,
	OrderStatusReady:     3,
	OrderStatusInTransit: 4,
	OrderStatusDelivered: 5,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderProgress[s]
	return ok || s == OrderStatusCancelled
}

// Cancellable reports whether the order has not yet left the shop.
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady:
		return true
	}
	return false
}

// CanAdvanceTo reports whether next is strictly further along the fulfilment path.
// Cancellation is not an advance.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	from, ok := orderProgress[s]
	if !ok {
		return false
	}
	to, ok := orderProgress[next]
	if !ok {
		return false
	}
	return to > from
}

// Actors recorded in status history.
const (
	ChangedBySystem   = "system"
	ChangedByCustomer = "customer"
	ChangedByAdmin    = "admin"
)

// LineItem is an order line copied from the draft snapshot.
type LineItem struct {
	Item      ItemRef
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// StatusEntry is one audit record of an order status change.
type StatusEntry struct {
	Status    OrderStatus
	Note      string
	ChangedBy string
	At        time.Time
}

// Order describes a committed, stock-backed purchase.
type Order struct {
	ID            int64
	Number        string
	Status        OrderStatus
	UserID        *int64
	Lines         []LineItem
	Totals        Totals
	Currency      string
	History       []StatusEntry
	SourceDraftID int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
