package test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polkiloo/draftpay/internal/domain/model"
)

// ConfirmCall stores information about ConfirmPolledPayment invocations.
type ConfirmCall struct {
	ReservationNumber string
	Payload           string
}

// VerifierFacadeStub mimics the verifier's interactions with the shop facade.
type VerifierFacadeStub struct {
	Batches   [][]model.PaymentSession
	PendingFn func(context.Context, time.Time, int) ([]model.PaymentSession, error)
	FetchFn   func(context.Context, string) ([]byte, error)
	ConfirmFn func(context.Context, string, string) (*model.Order, error)
	PurgeFn   func(context.Context) (int64, error)
	Confirms  []ConfirmCall
	Purges    int

	mu           sync.Mutex
	pendingCalls int32
}

// Lock exposes internal mutex for external synchronization.
func (s *VerifierFacadeStub) Lock() { s.mu.Lock() }

// Unlock releases previously acquired lock.
func (s *VerifierFacadeStub) Unlock() { s.mu.Unlock() }

// PendingSessions returns batches from the configured queue.
func (s *VerifierFacadeStub) PendingSessions(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentSession, error) {
	if s.PendingFn != nil {
		return s.PendingFn(ctx, olderThan, limit)
	}
	call := atomic.AddInt32(&s.pendingCalls, 1)
	if int(call) <= len(s.Batches) {
		return s.Batches[call-1], nil
	}
	return nil, nil
}

// FetchPaymentStatus returns FetchFn's answer or a paid answer for reservation.
func (s *VerifierFacadeStub) FetchPaymentStatus(ctx context.Context, reservation string) ([]byte, error) {
	if s.FetchFn != nil {
		return s.FetchFn(ctx, reservation)
	}
	return []byte(PaymentAnswer(reservation, "PAID", 1000, "PEN", "tx-"+reservation)), nil
}

// ConfirmPolledPayment records the call and delegates to ConfirmFn.
func (s *VerifierFacadeStub) ConfirmPolledPayment(ctx context.Context, reservation, payload string) (*model.Order, error) {
	s.mu.Lock()
	s.Confirms = append(s.Confirms, ConfirmCall{ReservationNumber: reservation, Payload: payload})
	s.mu.Unlock()
	if s.ConfirmFn != nil {
		return s.ConfirmFn(ctx, reservation, payload)
	}
	return &model.Order{Number: "ORD-" + reservation, Status: model.OrderStatusConfirmed}, nil
}

// PurgeExpiredSessions counts purge requests.
func (s *VerifierFacadeStub) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	s.mu.Lock()
	s.Purges++
	s.mu.Unlock()
	if s.PurgeFn != nil {
		return s.PurgeFn(ctx)
	}
	return 0, nil
}
