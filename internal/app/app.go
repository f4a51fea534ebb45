package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/draftpay/internal/adapter/gateway"
	"github.com/polkiloo/draftpay/internal/config"
	"github.com/polkiloo/draftpay/internal/domain/repository"
	"github.com/polkiloo/draftpay/internal/metrics"
	"github.com/polkiloo/draftpay/internal/server/http/handlers"
	"github.com/polkiloo/draftpay/internal/usecase"
	"github.com/polkiloo/draftpay/internal/worker"
)

// Module wires application services, runtime components, and lifecycle hooks.
var Module = fx.Options(
	fx.Provide(
		newShopFacade,
		newHTTPServer,
		newPaymentVerifier,
		func(f *ShopFacade) AdminBootstrapper { return f },
		func(f *ShopFacade) handlers.ShopFacade { return f },
	),
	fx.Invoke(registerLifecycle),
)

type facadeParams struct {
	fx.In

	Auth     *usecase.AuthUseCase
	Drafts   *usecase.DraftUseCase
	Sessions *usecase.SessionManager
	Engine   *usecase.ReconciliationEngine
	Orders   repository.OrderRepository
	Pending  repository.SessionRepository
	Gateway  gateway.Client
	Health   HealthChecker
}

func newShopFacade(p facadeParams) *ShopFacade {
	return NewShopFacade(FacadeDeps{
		Auth:     p.Auth,
		Drafts:   p.Drafts,
		Sessions: p.Sessions,
		Engine:   p.Engine,
		Orders:   p.Orders,
		Pending:  p.Pending,
		Gateway:  p.Gateway,
		Health:   p.Health,
	})
}

type serverParams struct {
	fx.In

	Config *config.Config
	Router *gin.Engine
}

func newHTTPServer(p serverParams) *http.Server {
	return &http.Server{
		Addr:    p.Config.RunAddress,
		Handler: p.Router,
	}
}

type workerParams struct {
	fx.In

	Facade  *ShopFacade
	Config  *config.Config
	Metrics *metrics.Recorder
	Logger  *slog.Logger
}

func newPaymentVerifier(p workerParams) *worker.PaymentVerifier {
	return worker.NewPaymentVerifier(p.Facade, worker.Options{
		Interval:  p.Config.VerifyInterval,
		MinAge:    p.Config.VerifyMinAge,
		BatchSize: p.Config.MaxVerifyBatch,
		Workers:   p.Config.WorkerPoolSize,
		Rate:      p.Config.VerifyRate,
	}, p.Metrics, p.Logger)
}

// AdminBootstrapper creates the configured admin account.
type AdminBootstrapper interface {
	EnsureAdmin(ctx context.Context, login, password string) (bool, error)
}

type lifecycleParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *slog.Logger
	Server     *http.Server
	Worker     *worker.PaymentVerifier
	Admin      AdminBootstrapper
	Config     *config.Config
}

func registerLifecycle(p lifecycleParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := bootstrapAdmin(ctx, p.Admin, p.Config, p.Logger); err != nil {
				return err
			}
			p.Logger.Info("starting draftpay", slog.String("addr", p.Server.Addr))
			p.Worker.Start(context.WithoutCancel(ctx))
			go func() {
				if err := p.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					p.Logger.Error("http server terminated", slog.String("error", err.Error()))
					_ = p.Shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Worker.Stop()

			shutdownCtx := ctx
			cancel := func() {}
			if _, ok := ctx.Deadline(); !ok {
				shutdownCtx, cancel = context.WithTimeout(ctx, p.Config.ShutdownTimeout)
			}
			defer cancel()

			if err := p.Server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			p.Logger.Info("draftpay stopped")
			return nil
		},
	})
}

func bootstrapAdmin(ctx context.Context, admin AdminBootstrapper, cfg *config.Config, logger *slog.Logger) error {
	if admin == nil || cfg.AdminLogin == "" || cfg.AdminPassword == "" {
		return nil
	}
	created, err := admin.EnsureAdmin(ctx, cfg.AdminLogin, cfg.AdminPassword)
	if err != nil {
		return err
	}
	if created {
		logger.Info("admin account created", slog.String("login", cfg.AdminLogin))
	}
	return nil
}
