package handlers

import (
	"context"

	"github.com/polkiloo/draftpay/internal/domain/model"
	pkgAuth "github.com/polkiloo/draftpay/internal/pkg/auth"
	"github.com/polkiloo/draftpay/internal/usecase"
)

// AuthFacade describes authentication capabilities required by handlers.
type AuthFacade interface {
	Register(ctx context.Context, login, password string) (string, error)
	Authenticate(ctx context.Context, login, password string) (string, error)
	ParseToken(token string) (pkgAuth.Claims, error)
}

// CheckoutFacade reserves carts.
type CheckoutFacade interface {
	CreateDraft(ctx context.Context, in usecase.CreateDraftInput) (*model.Draft, error)
	Draft(ctx context.Context, reservationNumber string) (*model.Draft, error)
}

// PaymentFacade issues payment sessions and takes confirmations.
type PaymentFacade interface {
	PaymentSession(ctx context.Context, reservationNumber string) (*model.PaymentSession, error)
	ConfirmBrowserPayment(ctx context.Context, reservationNumber, transactionID, payload, signature string) (*model.Order, error)
	ConfirmWebhookPayment(ctx context.Context, payload, signature string) (*model.Order, error)
}

// OrderFacade encapsulates order operations exposed via HTTP.
type OrderFacade interface {
	Status(ctx context.Context, reference string) (*model.StatusView, error)
	Orders(ctx context.Context, userID int64) ([]model.Order, error)
	CancelOrder(ctx context.Context, claims pkgAuth.Claims, number, reason string) (*model.Order, error)
	AdvanceOrder(ctx context.Context, number string, status model.OrderStatus, note string) (*model.Order, error)
}

// HealthFacade reports storage reachability.
type HealthFacade interface {
	Health(ctx context.Context) error
}

// ShopFacade aggregates the full set of operations used across handlers.
type ShopFacade interface {
	AuthFacade
	CheckoutFacade
	PaymentFacade
	OrderFacade
	HealthFacade
}
