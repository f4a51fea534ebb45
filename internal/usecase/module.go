package usecase

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/draftpay/internal/adapter/gateway"
	"github.com/polkiloo/draftpay/internal/config"
	"github.com/polkiloo/draftpay/internal/domain/repository"
	"github.com/polkiloo/draftpay/internal/metrics"
	"github.com/polkiloo/draftpay/internal/pkg/numbering"
	"github.com/polkiloo/draftpay/internal/pkg/signature"
)

// Module provides core business use cases to the fx container.
var Module = fx.Provide(
	NewAuthUseCase,
	newShippingQuoter,
	newDraftUseCase,
	newSessionManager,
	newReconciliationEngine,
)

type quoterParams struct {
	fx.In

	Config    *config.Config
	Districts repository.DistrictRepository
}

func newShippingQuoter(p quoterParams) *ShippingQuoter {
	return NewShippingQuoter(p.Districts, p.Config.FlatShippingCost, p.Config.FreeShippingThreshold)
}

type draftParams struct {
	fx.In

	Config  *config.Config
	Catalog repository.Catalog
	Drafts  repository.DraftRepository
	Quoter  *ShippingQuoter
	Numbers numbering.Generator
	Logger  *slog.Logger
}

func newDraftUseCase(p draftParams) *DraftUseCase {
	return NewDraftUseCase(p.Catalog, p.Drafts, p.Quoter, p.Numbers, DraftOptions{
		TTL:      p.Config.DraftTTL,
		Currency: p.Config.Currency,
	}, p.Logger)
}

type sessionParams struct {
	fx.In

	Drafts   repository.DraftRepository
	Sessions repository.SessionRepository
	Payments repository.PaymentRepository
	Gateway  gateway.Client
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

func newSessionManager(p sessionParams) *SessionManager {
	return NewSessionManager(p.Drafts, p.Sessions, p.Payments, p.Gateway, p.Metrics, p.Logger)
}

type engineParams struct {
	fx.In

	Verifier *signature.Verifier
	Drafts   repository.DraftRepository
	Orders   repository.OrderRepository
	Payments repository.PaymentRepository
	Unit     repository.UnitOfWork
	Sessions *SessionManager
	Numbers  numbering.Generator
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

func newReconciliationEngine(p engineParams) *ReconciliationEngine {
	return NewReconciliationEngine(EngineDeps{
		Verifier: p.Verifier,
		Drafts:   p.Drafts,
		Orders:   p.Orders,
		Payments: p.Payments,
		Unit:     p.Unit,
		Sessions: p.Sessions,
		Numbers:  p.Numbers,
		Metrics:  p.Metrics,
		Logger:   p.Logger,
	})
}
