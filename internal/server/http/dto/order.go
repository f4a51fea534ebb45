package dto

import "time"

// StatusEntryResponse is one status history record.
type StatusEntryResponse struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	ChangedBy string    `json:"changed_by"`
	At        time.Time `json:"at"`
}

// OrderResponse describes a committed order.
type OrderResponse struct {
	Number    string                `json:"number"`
	Status    string                `json:"status"`
	Lines     []LineResponse        `json:"lines"`
	Totals    TotalsResponse        `json:"totals"`
	Currency  string                `json:"currency"`
	History   []StatusEntryResponse `json:"history,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

// StatusResponse is the read-only projection for a draft or order number.
type StatusResponse struct {
	Kind       string            `json:"kind"`
	Reference  string            `json:"reference"`
	DraftState string            `json:"draft_state,omitempty"`
	Draft      *DraftResponse    `json:"draft,omitempty"`
	Order      *OrderResponse    `json:"order,omitempty"`
	Payments   []PaymentResponse `json:"payments,omitempty"`
}

// CancelRequest carries the optional cancellation reason.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// AdvanceRequest moves an order along fulfilment.
type AdvanceRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}
