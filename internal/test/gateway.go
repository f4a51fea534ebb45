package test

import (
	"context"
	"fmt"
	"sync"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
)

// GatewayStub counts gateway calls and answers with configured data.
type GatewayStub struct {
	CreateFn func(context.Context, model.ChargeRequest) (*model.ChargeSession, error)
	FetchFn  func(context.Context, string) ([]byte, error)

	mu       sync.Mutex
	creates  []model.ChargeRequest
	fetches  []string
	sequence int
}

// CreateChargeSession records the request and returns a numbered token by default.
func (g *GatewayStub) CreateChargeSession(ctx context.Context, req model.ChargeRequest) (*model.ChargeSession, error) {
	g.mu.Lock()
	g.creates = append(g.creates, req)
	g.sequence++
	seq := g.sequence
	g.mu.Unlock()

	if g.CreateFn != nil {
		return g.CreateFn(ctx, req)
	}
	return &model.ChargeSession{Token: fmt.Sprintf("form-token-%d", seq), PublicKey: "public-key"}, nil
}

// FetchPaymentStatus records the lookup and delegates to FetchFn.
func (g *GatewayStub) FetchPaymentStatus(ctx context.Context, reservationNumber string) ([]byte, error) {
	g.mu.Lock()
	g.fetches = append(g.fetches, reservationNumber)
	g.mu.Unlock()

	if g.FetchFn != nil {
		return g.FetchFn(ctx, reservationNumber)
	}
	return nil, fmt.Errorf("%w: no status configured", domainErrors.ErrPaymentGateway)
}

// Creates returns the charge requests received so far.
func (g *GatewayStub) Creates() []model.ChargeRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.ChargeRequest(nil), g.creates...)
}

// Fetches returns the reservation numbers polled so far.
func (g *GatewayStub) Fetches() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.fetches...)
}
