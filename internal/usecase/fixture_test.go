package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/metrics"
	"github.com/polkiloo/draftpay/internal/pkg/numbering"
	"github.com/polkiloo/draftpay/internal/pkg/signature"
	testhelpers "github.com/polkiloo/draftpay/internal/test"
)

var (
	roses = model.ItemRef{Kind: model.ItemKindProduct, ID: 1}
	card  = model.ItemRef{Kind: model.ItemKindAddon, ID: 4}
	vase  = model.ItemRef{Kind: model.ItemKindProduct, ID: 9}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sequenceNumbers hands out scripted order numbers before falling back to
// a counter, so collisions can be staged.
type sequenceNumbers struct {
	mu           sync.Mutex
	reservations []string
	orders       []string
	counter      int
}

func (s *sequenceNumbers) Reservation(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reservations) > 0 {
		next := s.reservations[0]
		s.reservations = s.reservations[1:]
		return next
	}
	s.counter++
	return fmt.Sprintf("%s-%d-R%07d", numbering.DraftPrefix, now.Year(), s.counter)
}

func (s *sequenceNumbers) Order(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.orders) > 0 {
		next := s.orders[0]
		s.orders = s.orders[1:]
		return next
	}
	s.counter++
	return fmt.Sprintf("%s-%d-O%07d", numbering.OrderPrefix, now.Year(), s.counter)
}

type fixture struct {
	store    *testhelpers.MemoryStore
	gateway  *testhelpers.GatewayStub
	verifier *signature.Verifier
	numbers  *sequenceNumbers
	clock    *testClock
	registry *prometheus.Registry
	drafts   *DraftUseCase
	sessions *SessionManager
	engine   *ReconciliationEngine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	store := testhelpers.NewMemoryStore()
	store.SetClock(clock.Now)
	store.PutItem(model.CatalogItem{Ref: roses, Name: "Red roses bouquet", Price: decimal.RequireFromString("10.00"), Stock: 5, Active: true})
	store.PutItem(model.CatalogItem{Ref: card, Name: "Greeting card", Price: decimal.RequireFromString("2.50"), Stock: 3, Active: true})
	store.PutItem(model.CatalogItem{Ref: vase, Name: "Glass vase", Price: decimal.RequireFromString("40.00"), Stock: 1, Active: false})
	store.PutDistrict(model.District{Slug: "miraflores", Name: "Miraflores", ShippingCost: decimal.RequireFromString("8.00"), Active: true})
	store.PutDistrict(model.District{Slug: "ancon", Name: "Ancon", ShippingCost: decimal.RequireFromString("30.00"), Active: false})

	registry := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	gateway := &testhelpers.GatewayStub{}
	verifier := signature.NewVerifier(signature.Secrets{Browser: "browser-secret", Webhook: "webhook-secret"})
	numbers := &sequenceNumbers{}

	quoter := NewShippingQuoter(store.Districts(), decimal.RequireFromString("15"), decimal.RequireFromString("100"))
	drafts := NewDraftUseCase(store.Catalog(), store.Drafts(), quoter, numbers, DraftOptions{TTL: 2 * time.Hour, Currency: "PEN"}, logger)
	drafts.now = clock.Now

	sessions := NewSessionManager(store.Drafts(), store.Sessions(), store.Payments(), gateway, recorder, logger)
	sessions.now = clock.Now

	engine := NewReconciliationEngine(EngineDeps{
		Verifier: verifier,
		Drafts:   store.Drafts(),
		Orders:   store.Orders(),
		Payments: store.Payments(),
		Unit:     store.Unit(),
		Sessions: sessions,
		Numbers:  numbers,
		Metrics:  recorder,
		Logger:   logger,
	})
	engine.now = clock.Now

	return &fixture{
		store:    store,
		gateway:  gateway,
		verifier: verifier,
		numbers:  numbers,
		clock:    clock,
		registry: registry,
		drafts:   drafts,
		sessions: sessions,
		engine:   engine,
	}
}

func guest() model.Customer {
	return model.GuestCustomer{Info: model.ContactInfo{FirstName: "Ana", LastName: "Quispe", Email: "ana@example.pe", Phone: "+51999111222"}}
}

func pickup() model.ShippingInfo {
	return model.ShippingInfo{Type: model.ShippingPickup}
}

// reserve stores a pickup draft for 2 roses and 1 card, 22.50 PEN in total.
func (f *fixture) reserve(t *testing.T) *model.Draft {
	t.Helper()
	draft, err := f.drafts.CreateDraft(context.Background(), CreateDraftInput{
		Customer: guest(),
		Lines:    []DraftLine{{Item: roses, Quantity: 2}, {Item: card, Quantity: 1}},
		Shipping: pickup(),
	})
	if err != nil {
		t.Fatalf("failed to reserve draft: %v", err)
	}
	return draft
}

func (f *fixture) paid(t *testing.T, draft *model.Draft, channel model.Channel, transactionID string) ConfirmInput {
	t.Helper()
	payload := testhelpers.PaymentAnswer(draft.ReservationNumber, "PAID", model.ToCents(draft.Totals.Total), draft.Currency, transactionID)
	return f.signed(t, draft.ReservationNumber, payload, channel)
}

func (f *fixture) signed(t *testing.T, reservation, payload string, channel model.Channel) ConfirmInput {
	t.Helper()
	in := ConfirmInput{ReservationNumber: reservation, Payload: payload, Channel: channel}
	if channel.Signed() {
		sig, err := f.verifier.Sign(payload, channel)
		if err != nil {
			t.Fatalf("failed to sign payload: %v", err)
		}
		in.Signature = sig
	}
	return in
}
