package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ShippingType selects home delivery or in-store pickup.
type ShippingType string

const (
	ShippingDelivery ShippingType = "delivery"
	ShippingPickup   ShippingType = "pickup"
)

// Address is a postal destination.
type Address struct {
	Recipient  string
	Phone      string
	Line       string
	District   string
	City       string
	PostalCode string
}

// ShippingInfo describes how the order reaches the customer.
type ShippingInfo struct {
	Type         ShippingType
	Address      Address
	DeliveryDate string
	TimeSlot     string
	Notes        string
}

// CartLine is one frozen line of a draft.
type CartLine struct {
	Item      ItemRef
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal returns quantity times the frozen unit price.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Draft is a price-frozen cart reservation awaiting payment.
type Draft struct {
	ID                int64
	ReservationNumber string
	Customer          Customer
	Shipping          ShippingInfo
	Cart              []CartLine
	Totals            Totals
	Currency          string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	ConvertedOrderID  *int64
}

// Converted reports whether the draft already produced an order.
func (d *Draft) Converted() bool {
	return d.ConvertedOrderID != nil
}

// Expired reports whether the reservation window has closed at now.
func (d *Draft) Expired(now time.Time) bool {
	return !now.Before(d.ExpiresAt)
}

// DraftState is the externally visible lifecycle state of a draft.
type DraftState string

const (
	DraftStateOpen          DraftState = "open"
	DraftStateSessionIssued DraftState = "session_issued"
	DraftStateConverted     DraftState = "converted"
	DraftStateExpired       DraftState = "expired"
)
