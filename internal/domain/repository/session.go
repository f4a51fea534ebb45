package repository

import (
	"context"
	"time"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// SessionRepository caches gateway sessions keyed by reservation number.
type SessionRepository interface {
	// Get returns the live session or ErrNotFound.
	Get(ctx context.Context, reservationNumber string) (*model.PaymentSession, error)
	// Save stores session unless a live one exists, and returns whichever is stored.
	Save(ctx context.Context, session *model.PaymentSession) (*model.PaymentSession, error)
	Delete(ctx context.Context, reservationNumber string) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	// ListPending returns live sessions created before olderThan whose draft
	// is unconverted and has no stock-conflicted payment.
	ListPending(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentSession, error)
}
