package gateway

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/draftpay/internal/config"
	"github.com/polkiloo/draftpay/internal/metrics"
)

// Module exposes gateway client implementation to fx graph.
var Module = fx.Provide(newClient)

type clientParams struct {
	fx.In

	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Recorder
}

func newClient(p clientParams) (Client, error) {
	return NewHTTPClient(p.Config.GatewayAddress, Options{
		Username:   p.Config.GatewayUsername,
		Password:   p.Config.GatewayPassword,
		PublicKey:  p.Config.GatewayPublicKey,
		Timeout:    p.Config.GatewayTimeout,
		RetryDelay: p.Config.GatewayRetryDelay,
		Attempts:   p.Config.GatewayAttempts,
	}, p.Logger, p.Metrics)
}
