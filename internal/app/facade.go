package app

import (
	"context"
	"time"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
	pkgAuth "github.com/polkiloo/draftpay/internal/pkg/auth"
	"github.com/polkiloo/draftpay/internal/usecase"
)

// StatusFetcher reads the gateway's view of a reservation.
type StatusFetcher interface {
	FetchPaymentStatus(ctx context.Context, reservationNumber string) ([]byte, error)
}

// HealthChecker reports whether storage is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ShopFacade is the single entry point used by HTTP handlers and the verifier worker.
type ShopFacade struct {
	auth     *usecase.AuthUseCase
	drafts   *usecase.DraftUseCase
	sessions *usecase.SessionManager
	engine   *usecase.ReconciliationEngine
	orders   repository.OrderRepository
	pending  repository.SessionRepository
	gateway  StatusFetcher
	health   HealthChecker
}

// FacadeDeps lists the collaborators of ShopFacade.
type FacadeDeps struct {
	Auth     *usecase.AuthUseCase
	Drafts   *usecase.DraftUseCase
	Sessions *usecase.SessionManager
	Engine   *usecase.ReconciliationEngine
	Orders   repository.OrderRepository
	Pending  repository.SessionRepository
	Gateway  StatusFetcher
	Health   HealthChecker
}

func NewShopFacade(d FacadeDeps) *ShopFacade {
	return &ShopFacade{
		auth:     d.Auth,
		drafts:   d.Drafts,
		sessions: d.Sessions,
		engine:   d.Engine,
		orders:   d.Orders,
		pending:  d.Pending,
		gateway:  d.Gateway,
		health:   d.Health,
	}
}

func (f *ShopFacade) Register(ctx context.Context, login, password string) (string, error) {
	_, token, err := f.auth.Register(ctx, login, password)
	return token, err
}

func (f *ShopFacade) Authenticate(ctx context.Context, login, password string) (string, error) {
	_, token, err := f.auth.Authenticate(ctx, login, password)
	return token, err
}

func (f *ShopFacade) ParseToken(token string) (pkgAuth.Claims, error) {
	return f.auth.ParseToken(token)
}

// EnsureAdmin creates the bootstrap admin account when it is missing.
func (f *ShopFacade) EnsureAdmin(ctx context.Context, login, password string) (bool, error) {
	return f.auth.EnsureAdmin(ctx, login, password)
}

func (f *ShopFacade) CreateDraft(ctx context.Context, in usecase.CreateDraftInput) (*model.Draft, error) {
	return f.drafts.CreateDraft(ctx, in)
}

func (f *ShopFacade) Draft(ctx context.Context, reservationNumber string) (*model.Draft, error) {
	return f.drafts.GetByReservationNumber(ctx, reservationNumber)
}

func (f *ShopFacade) PaymentSession(ctx context.Context, reservationNumber string) (*model.PaymentSession, error) {
	return f.sessions.GetOrCreateSession(ctx, reservationNumber)
}

// ConfirmBrowserPayment handles the signed result posted back by the shopper's browser.
func (f *ShopFacade) ConfirmBrowserPayment(ctx context.Context, reservationNumber, transactionID, payload, signature string) (*model.Order, error) {
	return f.engine.ConfirmPayment(ctx, usecase.ConfirmInput{
		ReservationNumber: reservationNumber,
		TransactionID:     transactionID,
		Payload:           payload,
		Signature:         signature,
		Channel:           model.ChannelBrowser,
	})
}

// ConfirmWebhookPayment handles the gateway's server-to-server notification.
func (f *ShopFacade) ConfirmWebhookPayment(ctx context.Context, payload, signature string) (*model.Order, error) {
	return f.engine.ConfirmPayment(ctx, usecase.ConfirmInput{
		Payload:   payload,
		Signature: signature,
		Channel:   model.ChannelWebhook,
	})
}

// ConfirmPolledPayment handles a status answer fetched over the authenticated gateway API.
func (f *ShopFacade) ConfirmPolledPayment(ctx context.Context, reservationNumber, payload string) (*model.Order, error) {
	return f.engine.ConfirmPayment(ctx, usecase.ConfirmInput{
		ReservationNumber: reservationNumber,
		Payload:           payload,
		Channel:           model.ChannelPoll,
	})
}

func (f *ShopFacade) PendingSessions(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentSession, error) {
	return f.pending.ListPending(ctx, olderThan, limit)
}

func (f *ShopFacade) FetchPaymentStatus(ctx context.Context, reservationNumber string) ([]byte, error) {
	return f.gateway.FetchPaymentStatus(ctx, reservationNumber)
}

func (f *ShopFacade) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return f.sessions.PurgeExpired(ctx)
}

func (f *ShopFacade) Status(ctx context.Context, reference string) (*model.StatusView, error) {
	return f.engine.Status(ctx, reference)
}

func (f *ShopFacade) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	return f.orders.ListByUser(ctx, userID)
}

// CancelOrder cancels on behalf of the order's owner or an admin.
func (f *ShopFacade) CancelOrder(ctx context.Context, claims pkgAuth.Claims, number, reason string) (*model.Order, error) {
	order, err := f.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}

	changedBy := model.ChangedByCustomer
	switch {
	case claims.Role == model.RoleAdmin:
		changedBy = model.ChangedByAdmin
	case order.UserID == nil || *order.UserID != claims.UserID:
		return nil, domainErrors.ErrForbidden
	}
	return f.engine.Cancel(ctx, number, reason, changedBy)
}

func (f *ShopFacade) AdvanceOrder(ctx context.Context, number string, status model.OrderStatus, note string) (*model.Order, error) {
	return f.engine.AdvanceStatus(ctx, number, status, note, model.ChangedByAdmin)
}

func (f *ShopFacade) Health(ctx context.Context) error {
	return f.health.HealthCheck(ctx)
}
