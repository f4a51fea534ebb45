package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Channel is a path by which a payment result reaches the service.
type Channel string

const (
	ChannelBrowser Channel = "browser"
	ChannelWebhook Channel = "webhook"
	ChannelPoll    Channel = "poll"
)

// Signed reports whether payloads on the channel carry a gateway signature.
// Poll results come from an authenticated outbound call instead.
func (c Channel) Signed() bool {
	return c == ChannelBrowser || c == ChannelWebhook
}

// GatewayStatus is a status value reported by the payment gateway.
type GatewayStatus string

const (
	GatewayStatusPaid       GatewayStatus = "PAID"
	GatewayStatusAuthorised GatewayStatus = "AUTHORISED"
	GatewayStatusCaptured   GatewayStatus = "CAPTURED"
	GatewayStatusRunning    GatewayStatus = "RUNNING"
	GatewayStatusUnpaid     GatewayStatus = "UNPAID"
	GatewayStatusRefused    GatewayStatus = "REFUSED"
	GatewayStatusError      GatewayStatus = "ERROR"
	GatewayStatusCancelled  GatewayStatus = "CANCELLED"
	GatewayStatusAbandoned  GatewayStatus = "ABANDONED"
)

// Successful reports membership in the success set. Anything else, including
// values this service has never seen, is not a success.
func (s GatewayStatus) Successful() bool {
	switch GatewayStatus(strings.ToUpper(string(s))) {
	case GatewayStatusPaid, GatewayStatusAuthorised, GatewayStatusCaptured:
		return true
	}
	return false
}

// PaymentStatus maps the gateway status onto the payment record status.
func (s GatewayStatus) PaymentStatus() PaymentStatus {
	switch GatewayStatus(strings.ToUpper(string(s))) {
	case GatewayStatusPaid, GatewayStatusAuthorised, GatewayStatusCaptured:
		return PaymentStatusCompleted
	case GatewayStatusCancelled, GatewayStatusAbandoned:
		return PaymentStatusCancelled
	case GatewayStatusRefused, GatewayStatusError:
		return PaymentStatusFailed
	default:
		return PaymentStatusPending
	}
}

// Transaction is a gateway transaction attached to a payment answer.
type Transaction struct {
	UUID   string
	Status GatewayStatus
}

// PaymentAnswer is the parsed gateway result payload.
type PaymentAnswer struct {
	OrderStatus       GatewayStatus
	ReservationNumber string
	AmountCents       int64
	Currency          string
	Transactions      []Transaction
}

// Successful requires both the order status and the first transaction status
// to be in the success set.
func (a *PaymentAnswer) Successful() bool {
	if a == nil || !a.OrderStatus.Successful() {
		return false
	}
	if len(a.Transactions) == 0 {
		return true
	}
	return a.Transactions[0].Status.Successful()
}

// Status is the effective status of the answer: a successful order status is
// overridden by a first transaction that did not succeed.
func (a *PaymentAnswer) Status() GatewayStatus {
	if a == nil {
		return ""
	}
	if a.OrderStatus.Successful() && len(a.Transactions) > 0 && !a.Transactions[0].Status.Successful() {
		return a.Transactions[0].Status
	}
	return a.OrderStatus
}

// TransactionID returns the first transaction identifier, if any.
func (a *PaymentAnswer) TransactionID() string {
	if a == nil || len(a.Transactions) == 0 {
		return ""
	}
	return a.Transactions[0].UUID
}

type answerPayload struct {
	OrderStatus  string `json:"orderStatus"`
	OrderID      string `json:"orderId"`
	OrderDetails struct {
		OrderID          string `json:"orderId"`
		OrderTotalAmount int64  `json:"orderTotalAmount"`
		OrderCurrency    string `json:"orderCurrency"`
	} `json:"orderDetails"`
	Transactions []struct {
		UUID   string `json:"uuid"`
		Status string `json:"status"`
	} `json:"transactions"`
}

// ParsePaymentAnswer decodes a gateway answer document.
func ParsePaymentAnswer(raw []byte) (*PaymentAnswer, error) {
	var p answerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payment answer: %w", err)
	}

	answer := &PaymentAnswer{
		OrderStatus:       GatewayStatus(strings.ToUpper(strings.TrimSpace(p.OrderStatus))),
		ReservationNumber: p.OrderDetails.OrderID,
		AmountCents:       p.OrderDetails.OrderTotalAmount,
		Currency:          p.OrderDetails.OrderCurrency,
	}
	if answer.ReservationNumber == "" {
		answer.ReservationNumber = p.OrderID
	}
	for _, tx := range p.Transactions {
		answer.Transactions = append(answer.Transactions, Transaction{
			UUID:   tx.UUID,
			Status: GatewayStatus(strings.ToUpper(strings.TrimSpace(tx.Status))),
		})
	}
	if answer.OrderStatus == "" && len(answer.Transactions) > 0 {
		answer.OrderStatus = answer.Transactions[0].Status
	}
	if answer.ReservationNumber == "" {
		return nil, fmt.Errorf("payment answer has no order reference")
	}
	return answer, nil
}

// ChargeRequest is what the gateway needs to open a payment session.
type ChargeRequest struct {
	AmountCents int64
	Currency    string
	OrderRef    string
	Contact     ContactInfo
	Billing     Address
}

// ChargeSession is the gateway's reply to a charge request.
type ChargeSession struct {
	Token     string
	PublicKey string
}
