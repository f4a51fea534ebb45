package dto

import "time"

// SessionResponse hands the payment form token to the browser.
type SessionResponse struct {
	ReservationNumber string    `json:"reservation_number"`
	FormToken         string    `json:"form_token"`
	PublicKey         string    `json:"public_key"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// ConfirmRequest is the browser's report of a finished payment form.
type ConfirmRequest struct {
	ReservationNumber string `json:"reservation_number" binding:"required"`
	TransactionID     string `json:"transaction_id"`
	Payload           string `json:"payload" binding:"required"`
	Signature         string `json:"signature" binding:"required"`
}

// WebhookRequest is the JSON variant of a gateway notification.
type WebhookRequest struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// PaymentResponse is the public projection of one audited payment attempt.
// Gateway transaction ids and failure details stay server side.
type PaymentResponse struct {
	Channel     string     `json:"channel"`
	Status      string     `json:"status"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
