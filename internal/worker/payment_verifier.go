package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/metrics"
)

// PaymentFacade exposes the subset of application functionality required by the verifier.
type PaymentFacade interface {
	PendingSessions(ctx context.Context, olderThan time.Time, limit int) ([]model.PaymentSession, error)
	FetchPaymentStatus(ctx context.Context, reservationNumber string) ([]byte, error)
	ConfirmPolledPayment(ctx context.Context, reservationNumber, payload string) (*model.Order, error)
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// Options tunes the verifier loop.
type Options struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
	Workers   int
	// Rate caps gateway status lookups per second across all workers.
	Rate float64
}

// PaymentVerifier polls the gateway for reservations whose browser and
// webhook confirmations never arrived, and confirms them on the poll channel.
type PaymentVerifier struct {
	facade  PaymentFacade
	opts    Options
	limiter *rate.Limiter
	metrics *metrics.Recorder
	logger  *slog.Logger
	now     func() time.Time

	jobs     chan model.PaymentSession
	inflight map[string]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// NewPaymentVerifier constructs the verifier worker pool.
func NewPaymentVerifier(facade PaymentFacade, opts Options, recorder *metrics.Recorder, logger *slog.Logger) *PaymentVerifier {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	return &PaymentVerifier{
		facade:   facade,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		metrics:  recorder,
		logger:   logger,
		now:      time.Now,
		jobs:     make(chan model.PaymentSession, opts.BatchSize*opts.Workers),
		inflight: make(map[string]struct{}),
	}
}

// Start launches background verification.
func (v *PaymentVerifier) Start(ctx context.Context) {
	v.mu.Lock()
	defer v.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel

	for i := 0; i < v.opts.Workers; i++ {
		v.wg.Add(1)
		go v.worker(runCtx)
	}

	v.wg.Add(1)
	go v.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (v *PaymentVerifier) Stop() {
	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.mu.Unlock()

	v.wg.Wait()
}

func (v *PaymentVerifier) dispatch(ctx context.Context) {
	defer v.wg.Done()
	defer close(v.jobs)
	ticker := time.NewTicker(v.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.purge(ctx)
			v.fetchAndDispatch(ctx)
		}
	}
}

func (v *PaymentVerifier) purge(ctx context.Context) {
	purged, err := v.facade.PurgeExpiredSessions(ctx)
	if err != nil {
		v.logger.Error("purge expired sessions failed", slog.String("error", err.Error()))
		return
	}
	if purged > 0 {
		v.logger.Info("expired payment sessions purged", slog.Int64("count", purged))
	}
}

func (v *PaymentVerifier) fetchAndDispatch(ctx context.Context) {
	sessions, err := v.facade.PendingSessions(ctx, v.now().Add(-v.opts.MinAge), v.opts.BatchSize)
	if err != nil {
		v.logger.Error("fetch pending sessions failed", slog.String("error", err.Error()))
		return
	}
	for _, session := range sessions {
		if !v.claim(session.ReservationNumber) {
			continue
		}
		select {
		case <-ctx.Done():
			v.release(session.ReservationNumber)
			return
		case v.jobs <- session:
		}
	}
}

// claim marks a reservation as queued so a slow batch is not enqueued twice.
func (v *PaymentVerifier) claim(reservation string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, busy := v.inflight[reservation]; busy {
		return false
	}
	v.inflight[reservation] = struct{}{}
	return true
}

func (v *PaymentVerifier) release(reservation string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.inflight, reservation)
}

func (v *PaymentVerifier) worker(ctx context.Context) {
	defer v.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case session, ok := <-v.jobs:
			if !ok {
				return
			}
			v.handleSession(ctx, session)
			v.release(session.ReservationNumber)
		}
	}
}

func (v *PaymentVerifier) handleSession(ctx context.Context, session model.PaymentSession) {
	if err := v.limiter.Wait(ctx); err != nil {
		return
	}

	payload, err := v.facade.FetchPaymentStatus(ctx, session.ReservationNumber)
	if err != nil {
		v.metrics.VerifierCheck("gateway_error")
		v.logger.Warn("payment status lookup failed",
			slog.String("reservation", session.ReservationNumber),
			slog.String("error", err.Error()),
		)
		return
	}

	order, err := v.facade.ConfirmPolledPayment(ctx, session.ReservationNumber, string(payload))
	outcome := checkOutcome(err)
	v.metrics.VerifierCheck(outcome)

	switch outcome {
	case "committed":
		v.logger.Info("payment confirmed by poll",
			slog.String("reservation", session.ReservationNumber),
			slog.String("order", order.Number),
		)
	case "pending", "expired", "stock_conflict":
	default:
		v.logger.Error("poll confirmation failed",
			slog.String("reservation", session.ReservationNumber),
			slog.String("error", err.Error()),
		)
	}
}

func checkOutcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, domainErrors.ErrPaymentNotSuccessful):
		return "pending"
	case errors.Is(err, domainErrors.ErrReservationExpired):
		return "expired"
	case errors.Is(err, domainErrors.ErrStockConflict):
		return "stock_conflict"
	default:
		return "error"
	}
}
