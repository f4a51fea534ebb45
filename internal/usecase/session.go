package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
	"github.com/polkiloo/draftpay/internal/metrics"
)

// ChargeGateway opens payment sessions at the gateway.
type ChargeGateway interface {
	CreateChargeSession(ctx context.Context, req model.ChargeRequest) (*model.ChargeSession, error)
}

// SessionManager hands out one gateway session per reservation.
type SessionManager struct {
	drafts   repository.DraftRepository
	sessions repository.SessionRepository
	payments repository.PaymentRepository
	gateway  ChargeGateway
	metrics  *metrics.Recorder
	logger   *slog.Logger
	group    singleflight.Group
	now      func() time.Time
}

// NewSessionManager constructs SessionManager.
func NewSessionManager(drafts repository.DraftRepository, sessions repository.SessionRepository, payments repository.PaymentRepository, gateway ChargeGateway, recorder *metrics.Recorder, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		drafts:   drafts,
		sessions: sessions,
		payments: payments,
		gateway:  gateway,
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// GetOrCreateSession returns the live session for reservationNumber, asking
// the gateway for a new one only when none is cached. Page reloads and
// concurrent requests therefore share one gateway session.
func (m *SessionManager) GetOrCreateSession(ctx context.Context, reservationNumber string) (*model.PaymentSession, error) {
	if reservationNumber == "" {
		return nil, domainErrors.Validation("reservation number is required")
	}

	cached, err := m.Lookup(ctx, reservationNumber)
	if err == nil {
		m.metrics.Session("cached")
		return cached, nil
	}
	if !errors.Is(err, domainErrors.ErrNotFound) {
		return nil, err
	}

	v, err, shared := m.group.Do(reservationNumber, func() (any, error) {
		return m.create(ctx, reservationNumber)
	})
	if err != nil {
		m.metrics.Session("failed")
		return nil, err
	}
	if shared {
		m.metrics.Session("coalesced")
	}
	session := *v.(*model.PaymentSession)
	return &session, nil
}

// Lookup returns the live cached session or ErrNotFound.
func (m *SessionManager) Lookup(ctx context.Context, reservationNumber string) (*model.PaymentSession, error) {
	session, err := m.sessions.Get(ctx, reservationNumber)
	if err != nil {
		return nil, err
	}
	if !session.Live(m.now()) {
		return nil, domainErrors.ErrNotFound
	}
	return session, nil
}

// Invalidate drops the cached session once its reservation is settled.
func (m *SessionManager) Invalidate(ctx context.Context, reservationNumber string) error {
	return m.sessions.Delete(ctx, reservationNumber)
}

// PurgeExpired removes sessions whose reservation window has closed.
func (m *SessionManager) PurgeExpired(ctx context.Context) (int64, error) {
	return m.sessions.PurgeExpired(ctx, m.now())
}

func (m *SessionManager) create(ctx context.Context, reservationNumber string) (*model.PaymentSession, error) {
	draft, err := m.drafts.GetByReservationNumber(ctx, reservationNumber)
	if err != nil {
		return nil, err
	}
	now := m.now()
	if draft.Converted() {
		return nil, domainErrors.ErrAlreadyConverted
	}
	if draft.Expired(now) {
		return nil, domainErrors.ErrReservationExpired
	}
	conflicted, err := m.payments.HasStockConflict(ctx, draft.ID)
	if err != nil {
		return nil, err
	}
	if conflicted {
		return nil, domainErrors.ErrStockConflict
	}

	charge, err := m.gateway.CreateChargeSession(ctx, model.ChargeRequest{
		AmountCents: model.ToCents(draft.Totals.Total),
		Currency:    draft.Currency,
		OrderRef:    draft.ReservationNumber,
		Contact:     draft.Customer.Contact(),
		Billing:     draft.Shipping.Address,
	})
	if err != nil {
		if !errors.Is(err, domainErrors.ErrPaymentGateway) {
			err = fmt.Errorf("%w: %w", domainErrors.ErrPaymentGateway, err)
		}
		m.logger.Warn("payment session creation failed",
			slog.String("reservation", reservationNumber),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	stored, err := m.sessions.Save(ctx, &model.PaymentSession{
		ReservationNumber: draft.ReservationNumber,
		DraftID:           draft.ID,
		Token:             charge.Token,
		PublicKey:         charge.PublicKey,
		TransactionID:     uuid.NewString(),
		CreatedAt:         now,
		ExpiresAt:         draft.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("store payment session: %w", err)
	}

	if stored.Token == charge.Token {
		m.metrics.Session("created")
		m.logger.Info("payment session issued",
			slog.String("reservation", reservationNumber),
			slog.String("transaction_id", stored.TransactionID),
			slog.Time("expires_at", stored.ExpiresAt),
		)
	} else {
		m.metrics.Session("lost_race")
	}
	return stored, nil
}
