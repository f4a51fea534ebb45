// Package facadestub holds the shop facade stub shared by HTTP tests. It
// lives apart from package test because it depends on usecase.
package facadestub

import (
	"context"
	"time"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	pkgAuth "github.com/polkiloo/draftpay/internal/pkg/auth"
	"github.com/polkiloo/draftpay/internal/usecase"
)

// ShopFacadeStub provides controllable behaviour for HTTP handlers.
type ShopFacadeStub struct {
	RegisterFn     func(context.Context, string, string) (string, error)
	AuthenticateFn func(context.Context, string, string) (string, error)
	ParseFn        func(string) (pkgAuth.Claims, error)
	CreateDraftFn  func(context.Context, usecase.CreateDraftInput) (*model.Draft, error)
	DraftFn        func(context.Context, string) (*model.Draft, error)
	SessionFn      func(context.Context, string) (*model.PaymentSession, error)
	BrowserFn      func(ctx context.Context, reservation, transactionID, payload, signature string) (*model.Order, error)
	WebhookFn      func(ctx context.Context, payload, signature string) (*model.Order, error)
	StatusFn       func(context.Context, string) (*model.StatusView, error)
	OrdersFn       func(context.Context, int64) ([]model.Order, error)
	CancelFn       func(context.Context, pkgAuth.Claims, string, string) (*model.Order, error)
	AdvanceFn      func(context.Context, string, model.OrderStatus, string) (*model.Order, error)
	HealthFn       func(context.Context) error
}

// Register delegates to RegisterFn or returns a fixed token.
func (s ShopFacadeStub) Register(ctx context.Context, login, password string) (string, error) {
	if s.RegisterFn != nil {
		return s.RegisterFn(ctx, login, password)
	}
	return "token", nil
}

// Authenticate delegates to AuthenticateFn or returns a fixed token.
func (s ShopFacadeStub) Authenticate(ctx context.Context, login, password string) (string, error) {
	if s.AuthenticateFn != nil {
		return s.AuthenticateFn(ctx, login, password)
	}
	return "token", nil
}

// ParseToken delegates to ParseFn or rejects every token.
func (s ShopFacadeStub) ParseToken(token string) (pkgAuth.Claims, error) {
	if s.ParseFn != nil {
		return s.ParseFn(token)
	}
	return pkgAuth.Claims{}, pkgAuth.ErrInvalidToken
}

func (s ShopFacadeStub) CreateDraft(ctx context.Context, in usecase.CreateDraftInput) (*model.Draft, error) {
	if s.CreateDraftFn != nil {
		return s.CreateDraftFn(ctx, in)
	}
	return &model.Draft{ID: 1, ReservationNumber: "DRAFT-2026-TEST0001", Customer: in.Customer, Shipping: in.Shipping, Currency: "PEN"}, nil
}

func (s ShopFacadeStub) Draft(ctx context.Context, reservation string) (*model.Draft, error) {
	if s.DraftFn != nil {
		return s.DraftFn(ctx, reservation)
	}
	return nil, domainErrors.ErrNotFound
}

func (s ShopFacadeStub) PaymentSession(ctx context.Context, reservation string) (*model.PaymentSession, error) {
	if s.SessionFn != nil {
		return s.SessionFn(ctx, reservation)
	}
	return &model.PaymentSession{ReservationNumber: reservation, Token: "form-token", PublicKey: "public-key", ExpiresAt: time.Unix(0, 0).UTC()}, nil
}

func (s ShopFacadeStub) ConfirmBrowserPayment(ctx context.Context, reservation, transactionID, payload, signature string) (*model.Order, error) {
	if s.BrowserFn != nil {
		return s.BrowserFn(ctx, reservation, transactionID, payload, signature)
	}
	return &model.Order{ID: 1, Number: "ORD-2026-TEST0001", Status: model.OrderStatusConfirmed}, nil
}

func (s ShopFacadeStub) ConfirmWebhookPayment(ctx context.Context, payload, signature string) (*model.Order, error) {
	if s.WebhookFn != nil {
		return s.WebhookFn(ctx, payload, signature)
	}
	return &model.Order{ID: 1, Number: "ORD-2026-TEST0001", Status: model.OrderStatusConfirmed}, nil
}

func (s ShopFacadeStub) Status(ctx context.Context, reference string) (*model.StatusView, error) {
	if s.StatusFn != nil {
		return s.StatusFn(ctx, reference)
	}
	return nil, domainErrors.ErrNotFound
}

func (s ShopFacadeStub) Orders(ctx context.Context, userID int64) ([]model.Order, error) {
	if s.OrdersFn != nil {
		return s.OrdersFn(ctx, userID)
	}
	return nil, nil
}

func (s ShopFacadeStub) CancelOrder(ctx context.Context, claims pkgAuth.Claims, number, reason string) (*model.Order, error) {
	if s.CancelFn != nil {
		return s.CancelFn(ctx, claims, number, reason)
	}
	return &model.Order{Number: number, Status: model.OrderStatusCancelled}, nil
}

func (s ShopFacadeStub) AdvanceOrder(ctx context.Context, number string, status model.OrderStatus, note string) (*model.Order, error) {
	if s.AdvanceFn != nil {
		return s.AdvanceFn(ctx, number, status, note)
	}
	return &model.Order{Number: number, Status: status}, nil
}

func (s ShopFacadeStub) Health(ctx context.Context) error {
	if s.HealthFn != nil {
		return s.HealthFn(ctx)
	}
	return nil
}
