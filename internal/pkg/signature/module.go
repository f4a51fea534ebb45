package signature

import (
	"go.uber.org/fx"

	"github.com/polkiloo/draftpay/internal/config"
)

var Module = fx.Provide(newVerifier)

type verifierParams struct {
	fx.In

	Config *config.Config
}

func newVerifier(p verifierParams) *Verifier {
	return NewVerifier(Secrets{
		Browser: p.Config.GatewayHMACKey,
		Webhook: p.Config.GatewayPassword,
	})
}
