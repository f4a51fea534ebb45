package dto

import "time"

// ContactRequest carries the buyer's contact details.
type ContactRequest struct {
	FirstName      string `json:"first_name" binding:"required"`
	LastName       string `json:"last_name"`
	Email          string `json:"email" binding:"required,email"`
	Phone          string `json:"phone"`
	DocumentType   string `json:"document_type"`
	DocumentNumber string `json:"document_number"`
}

// LineRequest is one requested cart line.
type LineRequest struct {
	Kind     string `json:"kind" binding:"required,oneof=product addon"`
	ID       int64  `json:"id" binding:"required,gt=0"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

// AddressRequest is a delivery destination.
type AddressRequest struct {
	Recipient  string `json:"recipient"`
	Phone      string `json:"phone"`
	Line       string `json:"line"`
	District   string `json:"district"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// ShippingRequest selects delivery or pickup.
type ShippingRequest struct {
	Type         string         `json:"type" binding:"required,oneof=delivery pickup"`
	Address      AddressRequest `json:"address"`
	DeliveryDate string         `json:"delivery_date"`
	TimeSlot     string         `json:"time_slot"`
	Notes        string         `json:"notes"`
}

// CreateDraftRequest reserves a cart.
type CreateDraftRequest struct {
	Customer ContactRequest  `json:"customer"`
	Lines    []LineRequest   `json:"lines" binding:"required,min=1,dive"`
	Shipping ShippingRequest `json:"shipping"`
}

// LineResponse is a frozen cart or order line.
type LineResponse struct {
	Kind      string `json:"kind"`
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

// TotalsResponse renders money figures with two decimals.
type TotalsResponse struct {
	Subtotal     string `json:"subtotal"`
	ShippingCost string `json:"shipping_cost"`
	Tax          string `json:"tax"`
	Total        string `json:"total"`
}

// DraftResponse describes a reservation.
type DraftResponse struct {
	ReservationNumber string         `json:"reservation_number"`
	Lines             []LineResponse `json:"lines"`
	Totals            TotalsResponse `json:"totals"`
	Currency          string         `json:"currency"`
	ShippingType      string         `json:"shipping_type"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
	Converted         bool           `json:"converted"`
}

// LineErrorResponse explains why a cart line was rejected.
type LineErrorResponse struct {
	Index  int    `json:"index"`
	Kind   string `json:"kind"`
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

// ErrorResponse is the JSON body of rejected requests.
type ErrorResponse struct {
	Error string              `json:"error"`
	Lines []LineErrorResponse `json:"lines,omitempty"`
}
