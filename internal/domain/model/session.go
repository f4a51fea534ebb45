package model

import "time"

// PaymentSession is the gateway session issued for a reservation.
type PaymentSession struct {
	ReservationNumber string
	DraftID           int64
	Token             string
	PublicKey         string
	TransactionID     string
	CreatedAt         time.Time
	ExpiresAt         time.Time
}

// Live reports whether the session can still be handed out at now.
func (s *PaymentSession) Live(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
