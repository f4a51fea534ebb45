package di

import (
	"go.uber.org/fx"

	"github.com/polkiloo/draftpay/internal/adapter/gateway"
	"github.com/polkiloo/draftpay/internal/app"
	"github.com/polkiloo/draftpay/internal/config"
	"github.com/polkiloo/draftpay/internal/logger"
	"github.com/polkiloo/draftpay/internal/metrics"
	"github.com/polkiloo/draftpay/internal/pkg/auth"
	"github.com/polkiloo/draftpay/internal/pkg/numbering"
	"github.com/polkiloo/draftpay/internal/pkg/signature"
	"github.com/polkiloo/draftpay/internal/server/http/router"
	"github.com/polkiloo/draftpay/internal/storage/postgres"
	"github.com/polkiloo/draftpay/internal/usecase"
)

func Module(opts ...fx.Option) fx.Option {
	modules := []fx.Option{
		config.Module,
		logger.Module,
		metrics.Module,
		auth.Module,
		signature.Module,
		numbering.Module,
		postgres.Module,
		gateway.Module,
		usecase.Module,
		fx.Provide(func(s *postgres.Storage) app.HealthChecker { return s }),
		router.Module,
		app.Module,
	}
	modules = append(modules, opts...)
	return fx.Options(modules...)
}
