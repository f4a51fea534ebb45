package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
	"github.com/polkiloo/draftpay/internal/metrics"
	"github.com/polkiloo/draftpay/internal/pkg/numbering"
)

const (
	confirmedNote       = "payment verified"
	defaultCancelReason = "Cancelled by customer"
)

// SignatureVerifier authenticates a raw gateway payload for a channel.
type SignatureVerifier interface {
	Verify(payload, signature string, channel model.Channel) bool
}

// SessionCache is the engine's view of the payment session cache.
type SessionCache interface {
	Lookup(ctx context.Context, reservationNumber string) (*model.PaymentSession, error)
	Invalidate(ctx context.Context, reservationNumber string) error
}

// ConfirmInput is one payment result delivered on some channel.
type ConfirmInput struct {
	ReservationNumber string
	TransactionID     string
	Payload           string
	Signature         string
	Channel           model.Channel
}

// EngineDeps lists the collaborators of ReconciliationEngine.
type EngineDeps struct {
	Verifier SignatureVerifier
	Drafts   repository.DraftRepository
	Orders   repository.OrderRepository
	Payments repository.PaymentRepository
	Unit     repository.UnitOfWork
	Sessions SessionCache
	Numbers  numbering.Generator
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// ReconciliationEngine owns the draft to order transition. Every channel
// calls the same idempotent ConfirmPayment; the storage layer's conversion
// guard decides the winner when channels race.
type ReconciliationEngine struct {
	verifier SignatureVerifier
	drafts   repository.DraftRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	unit     repository.UnitOfWork
	sessions SessionCache
	numbers  numbering.Generator
	metrics  *metrics.Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewReconciliationEngine constructs ReconciliationEngine.
func NewReconciliationEngine(d EngineDeps) *ReconciliationEngine {
	return &ReconciliationEngine{
		verifier: d.Verifier,
		drafts:   d.Drafts,
		orders:   d.Orders,
		payments: d.Payments,
		unit:     d.Unit,
		sessions: d.Sessions,
		numbers:  d.Numbers,
		metrics:  d.Metrics,
		logger:   d.Logger,
		tracer:   otel.Tracer("github.com/polkiloo/draftpay/internal/usecase"),
		now:      time.Now,
	}
}

// ConfirmPayment verifies a payment result and commits its draft exactly once.
// Repeated or racing deliveries of a successful result return the order
// created by the first commit.
func (e *ReconciliationEngine) ConfirmPayment(ctx context.Context, in ConfirmInput) (order *model.Order, err error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "reconcile.ConfirmPayment", trace.WithAttributes(
		attribute.String("payment.channel", string(in.Channel)),
		attribute.String("draft.reservation", in.ReservationNumber),
	))
	defer func() {
		outcome := confirmOutcome(err)
		e.metrics.ObserveConfirmation(string(in.Channel), outcome, time.Since(started))
		span.SetAttributes(attribute.String("payment.outcome", outcome))
		if err != nil && outcome != "not_successful" {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	switch in.Channel {
	case model.ChannelBrowser, model.ChannelWebhook, model.ChannelPoll:
	default:
		return nil, domainErrors.Validation("unknown channel %q", in.Channel)
	}
	if strings.TrimSpace(in.Payload) == "" {
		return nil, domainErrors.Validation("payment payload is required")
	}

	if in.Channel.Signed() && !e.verifier.Verify(in.Payload, in.Signature, in.Channel) {
		e.logger.Warn("payment signature rejected",
			slog.String("channel", string(in.Channel)),
			slog.String("reservation", in.ReservationNumber),
		)
		return nil, domainErrors.ErrInvalidSignature
	}

	answer, err := model.ParsePaymentAnswer([]byte(in.Payload))
	if err != nil {
		return nil, domainErrors.Validation("%v", err)
	}
	reservation := strings.TrimSpace(in.ReservationNumber)
	switch {
	case reservation == "":
		reservation = answer.ReservationNumber
	case reservation != answer.ReservationNumber:
		return nil, domainErrors.Validation("reservation %s does not match payload reference", reservation)
	}
	span.SetAttributes(attribute.String("draft.reservation", reservation))

	draft, err := e.drafts.GetByReservationNumber(ctx, reservation)
	if errors.Is(err, domainErrors.ErrNotFound) && numbering.IsOrderNumber(reservation) {
		return e.orders.GetByNumber(ctx, reservation)
	}
	if err != nil {
		return nil, err
	}
	if draft.Converted() {
		return e.orders.GetByID(ctx, *draft.ConvertedOrderID)
	}

	now := e.now()
	if draft.Expired(now) {
		return nil, domainErrors.ErrReservationExpired
	}
	if !answer.Successful() {
		e.logger.Info("payment not successful",
			slog.String("channel", string(in.Channel)),
			slog.String("reservation", reservation),
			slog.String("status", string(answer.Status())),
		)
		if in.Channel.Signed() {
			e.recordUnsuccessful(ctx, draft, in, answer)
		}
		return nil, fmt.Errorf("%w: status %s", domainErrors.ErrPaymentNotSuccessful, answer.Status())
	}
	amountOff := answer.AmountCents != 0 && answer.AmountCents != model.ToCents(draft.Totals.Total)
	currencyOff := answer.Currency != "" && !strings.EqualFold(answer.Currency, draft.Currency)
	if amountOff || currencyOff {
		e.logger.Error("payment amount does not match reservation",
			slog.String("reservation", reservation),
			slog.Int64("paid_cents", answer.AmountCents),
			slog.Int64("expected_cents", model.ToCents(draft.Totals.Total)),
		)
		return nil, domainErrors.ErrAmountMismatch
	}

	transactionID := in.TransactionID
	if transactionID == "" {
		transactionID = answer.TransactionID()
	}
	return e.commit(ctx, draft, in, transactionID, now)
}

func (e *ReconciliationEngine) commit(ctx context.Context, draft *model.Draft, in ConfirmInput, transactionID string, now time.Time) (*model.Order, error) {
	var (
		order    *model.Order
		conflict *domainErrors.LineError
	)
	err := e.unit.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := tx.LockDraft(ctx, draft.ID)
		if err != nil {
			return err
		}
		if locked.Converted() {
			order, err = tx.GetOrder(ctx, *locked.ConvertedOrderID)
			return err
		}
		conflicted, err := tx.HasStockConflict(ctx, locked.ID)
		if err != nil {
			return err
		}
		if conflicted {
			return domainErrors.ErrStockConflict
		}

		for i, line := range locked.Cart {
			if err := tx.DecrementStock(ctx, line.Item, line.Quantity); err != nil {
				if !errors.Is(err, domainErrors.ErrInsufficientStock) && !errors.Is(err, domainErrors.ErrNotFound) {
					return err
				}
				// Put back the lines already taken; the audit row commits under the draft lock.
				conflict = lineError(i, line.Item, err)
				for _, taken := range locked.Cart[:i] {
					if err := tx.IncrementStock(ctx, taken.Item, taken.Quantity); err != nil {
						return err
					}
				}
				return tx.RecordPayment(ctx, conflictPayment(locked, in, transactionID, conflict))
			}
		}

		created, err := e.createOrder(ctx, tx, locked, now)
		if err != nil {
			return err
		}

		if err := tx.RecordPayment(ctx, &model.Payment{
			DraftID:               locked.ID,
			OrderID:               &created.ID,
			Method:                model.PaymentMethodCard,
			Channel:               in.Channel,
			ExternalTransactionID: transactionID,
			Status:                model.PaymentStatusCompleted,
			Amount:                locked.Totals.Total,
			Currency:              locked.Currency,
			RawPayload:            in.Payload,
			ConfirmedAt:           &now,
		}); err != nil {
			return fmt.Errorf("record payment: %w", err)
		}

		if err := tx.MarkDraftConverted(ctx, locked.ID, created.ID); err != nil {
			return err
		}

		entry := model.StatusEntry{
			Status:    model.OrderStatusConfirmed,
			Note:      confirmedNote,
			ChangedBy: model.ChangedBySystem,
			At:        now,
		}
		if err := tx.AppendStatus(ctx, created.ID, entry); err != nil {
			return err
		}
		created.History = append(created.History, entry)
		order = created
		return nil
	})

	switch {
	case err == nil && conflict != nil:
		e.reportStockConflict(ctx, draft, in, transactionID, conflict)
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrStockConflict, conflict)
	case err == nil:
	case errors.Is(err, domainErrors.ErrAlreadyConverted):
		return e.existingOrder(ctx, draft.ReservationNumber)
	case errors.Is(err, domainErrors.ErrStockConflict):
		e.logger.Warn("delivery for stock-conflicted reservation ignored",
			slog.String("reservation", draft.ReservationNumber),
			slog.String("channel", string(in.Channel)),
			slog.String("transaction_id", transactionID),
		)
		return nil, err
	default:
		return nil, fmt.Errorf("commit %s: %w", draft.ReservationNumber, err)
	}

	e.invalidateSession(ctx, draft.ReservationNumber)

	e.logger.Info("order committed",
		slog.String("reservation", draft.ReservationNumber),
		slog.String("order", order.Number),
		slog.String("channel", string(in.Channel)),
		slog.String("transaction_id", transactionID),
	)
	return order, nil
}

// createOrder inserts the order copied from the frozen cart, drawing a new
// number whenever the previous one collides.
func (e *ReconciliationEngine) createOrder(ctx context.Context, tx repository.Tx, draft *model.Draft, now time.Time) (*model.Order, error) {
	lines := make([]model.LineItem, 0, len(draft.Cart))
	for _, l := range draft.Cart {
		lines = append(lines, model.LineItem{
			Item:      l.Item,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal(),
		})
	}
	var userID *int64
	if id, ok := draft.Customer.UserID(); ok {
		userID = &id
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		order := &model.Order{
			Number:        e.numbers.Order(now),
			Status:        model.OrderStatusConfirmed,
			UserID:        userID,
			Lines:         lines,
			Totals:        draft.Totals,
			Currency:      draft.Currency,
			SourceDraftID: draft.ID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		err := tx.CreateOrder(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domainErrors.ErrAlreadyExists) {
			return nil, err
		}
		e.logger.Warn("order number collision", slog.String("order", order.Number))
	}
	return nil, fmt.Errorf("allocate order number: %w", domainErrors.ErrAlreadyExists)
}

func (e *ReconciliationEngine) existingOrder(ctx context.Context, reservation string) (*model.Order, error) {
	draft, err := e.drafts.GetByReservationNumber(ctx, reservation)
	if err != nil {
		return nil, err
	}
	if !draft.Converted() {
		return nil, fmt.Errorf("draft %s reported converted without an order: %w", reservation, domainErrors.ErrAlreadyConverted)
	}
	return e.orders.GetByID(ctx, *draft.ConvertedOrderID)
}

func (e *ReconciliationEngine) invalidateSession(ctx context.Context, reservation string) {
	if e.sessions == nil {
		return
	}
	if err := e.sessions.Invalidate(ctx, reservation); err != nil {
		e.logger.Warn("invalidate payment session failed",
			slog.String("reservation", reservation),
			slog.String("error", err.Error()),
		)
	}
}

// conflictPayment is the audit row for money taken against stock that is
// gone, kept so the payment can be refunded by hand.
func conflictPayment(draft *model.Draft, in ConfirmInput, transactionID string, conflict *domainErrors.LineError) *model.Payment {
	return &model.Payment{
		DraftID:               draft.ID,
		Method:                model.PaymentMethodCard,
		Channel:               in.Channel,
		ExternalTransactionID: transactionID,
		Status:                model.PaymentStatusFailed,
		Amount:                draft.Totals.Total,
		Currency:              draft.Currency,
		RawPayload:            in.Payload,
		FailureReason:         model.StockConflictReason + ": " + conflict.Error(),
	}
}

// reportStockConflict surfaces a recorded conflict to operations and closes
// the reservation's session so no channel keeps retrying it.
func (e *ReconciliationEngine) reportStockConflict(ctx context.Context, draft *model.Draft, in ConfirmInput, transactionID string, conflict *domainErrors.LineError) {
	e.metrics.StockConflict(string(in.Channel))
	e.logger.Error("stock conflict on paid reservation, manual refund required",
		slog.String("reservation", draft.ReservationNumber),
		slog.String("channel", string(in.Channel)),
		slog.String("transaction_id", transactionID),
		slog.String("amount", draft.Totals.Total.StringFixed(2)),
		slog.String("line", conflict.Error()),
	)
	e.invalidateSession(ctx, draft.ReservationNumber)
}

// recordUnsuccessful keeps a signed non-success result in the audit trail.
// Only completed rows are unique per order, so a later success still commits.
func (e *ReconciliationEngine) recordUnsuccessful(ctx context.Context, draft *model.Draft, in ConfirmInput, answer *model.PaymentAnswer) {
	transactionID := in.TransactionID
	if transactionID == "" {
		transactionID = answer.TransactionID()
	}
	amount := draft.Totals.Total
	if answer.AmountCents != 0 {
		amount = model.FromCents(answer.AmountCents)
	}
	status := answer.Status()
	err := e.payments.Record(ctx, &model.Payment{
		DraftID:               draft.ID,
		Method:                model.PaymentMethodCard,
		Channel:               in.Channel,
		ExternalTransactionID: transactionID,
		Status:                status.PaymentStatus(),
		Amount:                amount,
		Currency:              draft.Currency,
		RawPayload:            in.Payload,
		FailureReason:         "gateway status " + string(status),
	})
	if err != nil {
		e.logger.Error("record unsuccessful payment",
			slog.String("reservation", draft.ReservationNumber),
			slog.String("error", err.Error()),
		)
	}
}

// Cancel moves a not-yet-shipped order to cancelled and puts its stock
// back. Cancelling a cancelled order returns it unchanged.
func (e *ReconciliationEngine) Cancel(ctx context.Context, orderNumber, reason, changedBy string) (order *model.Order, err error) {
	ctx, span := e.tracer.Start(ctx, "reconcile.Cancel", trace.WithAttributes(
		attribute.String("order.number", orderNumber),
		attribute.String("order.changed_by", changedBy),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if strings.TrimSpace(reason) == "" {
		reason = defaultCancelReason
	}
	if changedBy == "" {
		changedBy = model.ChangedByCustomer
	}

	changed := false
	err = e.unit.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LockOrderByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		if current.Status == model.OrderStatusCancelled {
			order = current
			return nil
		}
		if !current.Status.Cancellable() {
			return fmt.Errorf("%w: order is %s", domainErrors.ErrNotCancellable, current.Status)
		}

		for _, l := range current.Lines {
			if err := tx.IncrementStock(ctx, l.Item, l.Quantity); err != nil {
				return fmt.Errorf("restore stock for %s: %w", l.Item, err)
			}
		}
		if err := tx.UpdateOrderStatus(ctx, current.ID, model.OrderStatusCancelled); err != nil {
			return err
		}
		now := e.now()
		entry := model.StatusEntry{Status: model.OrderStatusCancelled, Note: reason, ChangedBy: changedBy, At: now}
		if err := tx.AppendStatus(ctx, current.ID, entry); err != nil {
			return err
		}

		current.Status = model.OrderStatusCancelled
		current.UpdatedAt = now
		current.History = append(current.History, entry)
		order = current
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.metrics.Cancellation(changedBy)
		e.logger.Info("order cancelled",
			slog.String("order", order.Number),
			slog.String("changed_by", changedBy),
			slog.String("reason", reason),
		)
	}
	return order, nil
}

// AdvanceStatus moves an order forward along the fulfilment path.
// A cancelled target is handled by Cancel.
func (e *ReconciliationEngine) AdvanceStatus(ctx context.Context, orderNumber string, next model.OrderStatus, note, changedBy string) (*model.Order, error) {
	if !next.Valid() {
		return nil, domainErrors.Validation("unknown order status %q", next)
	}
	if next == model.OrderStatusCancelled {
		return e.Cancel(ctx, orderNumber, note, changedBy)
	}
	if changedBy == "" {
		changedBy = model.ChangedByAdmin
	}

	ctx, span := e.tracer.Start(ctx, "reconcile.AdvanceStatus", trace.WithAttributes(
		attribute.String("order.number", orderNumber),
		attribute.String("order.next_status", string(next)),
	))
	defer span.End()

	var order *model.Order
	err := e.unit.WithinTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		current, err := tx.LockOrderByNumber(ctx, orderNumber)
		if err != nil {
			return err
		}
		if !current.Status.CanAdvanceTo(next) {
			return fmt.Errorf("%w: %s to %s", domainErrors.ErrInvalidTransition, current.Status, next)
		}
		if err := tx.UpdateOrderStatus(ctx, current.ID, next); err != nil {
			return err
		}
		now := e.now()
		entry := model.StatusEntry{Status: next, Note: note, ChangedBy: changedBy, At: now}
		if err := tx.AppendStatus(ctx, current.ID, entry); err != nil {
			return err
		}
		current.Status = next
		current.UpdatedAt = now
		current.History = append(current.History, entry)
		order = current
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return order, nil
}

// Status projects a reservation or order number without changing anything.
func (e *ReconciliationEngine) Status(ctx context.Context, reference string) (*model.StatusView, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, domainErrors.Validation("reference is required")
	}

	if numbering.IsOrderNumber(reference) {
		order, err := e.orders.GetByNumber(ctx, reference)
		if err != nil {
			return nil, err
		}
		return &model.StatusView{Kind: model.ReferenceOrder, Reference: reference, Order: order}, nil
	}

	draft, err := e.drafts.GetByReservationNumber(ctx, reference)
	if err != nil {
		return nil, err
	}
	view := &model.StatusView{Kind: model.ReferenceDraft, Reference: reference, Draft: draft}
	if view.Payments, err = e.payments.ListByDraft(ctx, draft.ID); err != nil {
		return nil, err
	}
	switch {
	case draft.Converted():
		view.DraftState = model.DraftStateConverted
		if view.Order, err = e.orders.GetByID(ctx, *draft.ConvertedOrderID); err != nil {
			return nil, err
		}
	case draft.Expired(e.now()):
		view.DraftState = model.DraftStateExpired
	default:
		view.DraftState = model.DraftStateOpen
		if e.sessions != nil {
			if _, err := e.sessions.Lookup(ctx, reference); err == nil {
				view.DraftState = model.DraftStateSessionIssued
			}
		}
	}
	return view, nil
}

func confirmOutcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, domainErrors.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, domainErrors.ErrValidation):
		return "invalid"
	case errors.Is(err, domainErrors.ErrReservationExpired):
		return "expired"
	case errors.Is(err, domainErrors.ErrPaymentNotSuccessful):
		return "not_successful"
	case errors.Is(err, domainErrors.ErrAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, domainErrors.ErrStockConflict):
		return "stock_conflict"
	case errors.Is(err, domainErrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
