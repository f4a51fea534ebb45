package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the recorded outcome of a payment attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// PaymentMethodCard marks payments taken through the card gateway.
const PaymentMethodCard = "card_gateway"

// StockConflictReason prefixes the failure reason of a payment captured for
// stock that was gone at commit time. Such a draft never commits afterwards.
const StockConflictReason = "stock conflict"

// Payment is one audited commit attempt outcome.
type Payment struct {
	ID                    int64
	DraftID               int64
	OrderID               *int64
	Method                string
	Channel               Channel
	ExternalTransactionID string
	Status                PaymentStatus
	Amount                decimal.Decimal
	Currency              string
	RawPayload            string
	FailureReason         string
	ConfirmedAt           *time.Time
	CreatedAt             time.Time
}

// StockConflict reports whether p was captured against stock that was gone.
func (p Payment) StockConflict() bool {
	return p.Status == PaymentStatusFailed && strings.HasPrefix(p.FailureReason, StockConflictReason)
}
