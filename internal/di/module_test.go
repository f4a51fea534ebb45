package di

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/draftpay/internal/adapter/gateway"
	"github.com/polkiloo/draftpay/internal/app"
	"github.com/polkiloo/draftpay/internal/config"
	"github.com/polkiloo/draftpay/internal/domain/repository"
	"github.com/polkiloo/draftpay/internal/storage/postgres"
	"github.com/polkiloo/draftpay/internal/test"
	"github.com/polkiloo/draftpay/internal/usecase"
	"github.com/polkiloo/draftpay/internal/worker"
)

func TestModuleComposesGraphWithReplacements(t *testing.T) {
	cfg := &config.Config{
		RunAddress:      ":0",
		DatabaseURI:     "postgres://stub",
		GatewayAddress:  "http://localhost",
		GatewayUsername: "shop",
		GatewayPassword: "webhook-secret",
		GatewayHMACKey:  "browser-secret",
		Currency:        "PEN",
		DraftTTL:        time.Hour,
		AuthSecret:      "secret",
		VerifyInterval:  time.Millisecond,
		WorkerPoolSize:  1,
		MaxVerifyBatch:  1,
		VerifyRate:      1,
		ShutdownTimeout: time.Millisecond,
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	store := test.NewMemoryStore()

	var (
		facade   *app.ShopFacade
		engine   *usecase.ReconciliationEngine
		verifier *worker.PaymentVerifier
		router   *gin.Engine
	)
	fxApp := fx.New(
		fx.NopLogger,
		fx.Provide(func() context.Context { return context.Background() }),
		Module(
			fx.Replace(cfg),
			fx.Replace(logger),
			fx.Replace(&postgres.Storage{}),
			fx.Replace(repository.UserRepository(store.Users())),
			fx.Replace(repository.DraftRepository(store.Drafts())),
			fx.Replace(repository.OrderRepository(store.Orders())),
			fx.Replace(repository.PaymentRepository(store.Payments())),
			fx.Replace(repository.SessionRepository(store.Sessions())),
			fx.Replace(repository.Catalog(store.Catalog())),
			fx.Replace(repository.DistrictRepository(store.Districts())),
			fx.Replace(repository.UnitOfWork(store.Unit())),
			fx.Replace(gateway.Client(&test.GatewayStub{})),
		),
		fx.Populate(&facade, &engine, &verifier, &router),
	)

	if err := fxApp.Err(); err != nil {
		t.Fatalf("fx app returned error: %v", err)
	}
	t.Cleanup(func() { _ = fxApp.Stop(context.Background()) })
	if facade == nil || engine == nil || verifier == nil || router == nil {
		t.Fatal("expected the full graph to be constructed")
	}
}
