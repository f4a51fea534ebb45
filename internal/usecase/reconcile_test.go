package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	testhelpers "github.com/polkiloo/draftpay/internal/test"
)

func TestConfirmPaymentCommitsOnceAcrossChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)

	order, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelBrowser, "tx-1"))
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}
	if !strings.HasPrefix(order.Number, "ORD-") || order.Status != model.OrderStatusConfirmed {
		t.Fatalf("unexpected order %+v", order)
	}
	if order.SourceDraftID != draft.ID || len(order.Lines) != 2 || !order.Totals.Total.Equal(decimal.RequireFromString("22.50")) {
		t.Fatalf("order does not mirror the draft: %+v", order)
	}
	if order.UserID != nil {
		t.Fatalf("guest order must not carry a user, got %d", *order.UserID)
	}
	if len(order.History) != 1 || order.History[0].ChangedBy != model.ChangedBySystem {
		t.Fatalf("unexpected history %+v", order.History)
	}
	if f.store.Stock(roses) != 3 || f.store.Stock(card) != 2 {
		t.Fatalf("unexpected stock after commit: roses=%d card=%d", f.store.Stock(roses), f.store.Stock(card))
	}

	for _, channel := range []model.Channel{model.ChannelWebhook, model.ChannelPoll, model.ChannelBrowser} {
		again, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, channel, "tx-1"))
		if err != nil {
			t.Fatalf("%s redelivery returned error: %v", channel, err)
		}
		if again.ID != order.ID || again.Number != order.Number {
			t.Fatalf("%s redelivery produced a different order: %s vs %s", channel, again.Number, order.Number)
		}
	}

	if f.store.OrderCount() != 1 {
		t.Fatalf("expected exactly one order, got %d", f.store.OrderCount())
	}
	if f.store.Stock(roses) != 3 || f.store.Stock(card) != 2 {
		t.Fatalf("redeliveries must not touch stock: roses=%d card=%d", f.store.Stock(roses), f.store.Stock(card))
	}
	payments := f.store.AllPayments()
	if len(payments) != 1 {
		t.Fatalf("expected one payment row, got %d", len(payments))
	}
	p := payments[0]
	if p.Status != model.PaymentStatusCompleted || p.OrderID == nil || *p.OrderID != order.ID || p.ExternalTransactionID != "tx-1" || p.Channel != model.ChannelBrowser {
		t.Fatalf("unexpected payment %+v", p)
	}
	if p.ConfirmedAt == nil || !p.ConfirmedAt.Equal(f.clock.Now()) {
		t.Fatalf("expected confirmation time to be recorded, got %v", p.ConfirmedAt)
	}

	stored, err := f.store.Drafts().GetByReservationNumber(ctx, draft.ReservationNumber)
	if err != nil {
		t.Fatalf("failed to reload draft: %v", err)
	}
	if !stored.Converted() || *stored.ConvertedOrderID != order.ID {
		t.Fatalf("draft not linked to its order: %+v", stored)
	}
}

func TestConfirmPaymentConcurrentDeliveries(t *testing.T) {
	f := newFixture(t)
	draft := f.reserve(t)

	channels := []model.Channel{model.ChannelBrowser, model.ChannelWebhook, model.ChannelPoll}
	inputs := make([]ConfirmInput, 0, len(channels)*6)
	for i := 0; i < 6; i++ {
		for _, channel := range channels {
			inputs = append(inputs, f.paid(t, draft, channel, "tx-race"))
		}
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[string]int)
		errs    []error
	)
	start := make(chan struct{})
	for _, in := range inputs {
		wg.Add(1)
		go func(in ConfirmInput) {
			defer wg.Done()
			<-start
			order, err := f.engine.ConfirmPayment(context.Background(), in)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[order.Number]++
		}(in)
	}
	close(start)
	wg.Wait()

	if len(errs) > 0 {
		t.Fatalf("expected every delivery to succeed, got %v", errs)
	}
	if len(numbers) != 1 {
		t.Fatalf("expected all deliveries to observe one order, got %v", numbers)
	}
	if f.store.OrderCount() != 1 {
		t.Fatalf("expected one order, got %d", f.store.OrderCount())
	}
	if f.store.Stock(roses) != 3 || f.store.Stock(card) != 2 {
		t.Fatalf("stock decremented more than once: roses=%d card=%d", f.store.Stock(roses), f.store.Stock(card))
	}
	if got := len(f.store.AllPayments()); got != 1 {
		t.Fatalf("expected one completed payment, got %d", got)
	}
}

func TestConfirmPaymentRejectsBadSignatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)
	payload := testhelpers.PaymentAnswer(draft.ReservationNumber, "PAID", 2250, "PEN", "tx-1")

	webhookSig, err := f.verifier.Sign(payload, model.ChannelWebhook)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	cases := []struct {
		name string
		in   ConfirmInput
	}{
		{"missing", ConfirmInput{ReservationNumber: draft.ReservationNumber, Payload: payload, Channel: model.ChannelBrowser}},
		{"garbage", ConfirmInput{ReservationNumber: draft.ReservationNumber, Payload: payload, Signature: "deadbeef", Channel: model.ChannelWebhook}},
		{"cross channel", ConfirmInput{ReservationNumber: draft.ReservationNumber, Payload: payload, Signature: webhookSig, Channel: model.ChannelBrowser}},
		{"tampered", ConfirmInput{ReservationNumber: draft.ReservationNumber, Payload: strings.Replace(payload, "2250", "1", 1), Signature: webhookSig, Channel: model.ChannelWebhook}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.engine.ConfirmPayment(ctx, tc.in); !errors.Is(err, domainErrors.ErrInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
		})
	}

	if f.store.OrderCount() != 0 || f.store.Stock(roses) != 5 || len(f.store.AllPayments()) != 0 {
		t.Fatalf("rejected deliveries must not change state")
	}
}

func TestConfirmPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)
	other := testhelpers.PaymentAnswer("DRAFT-2026-OTHER", "PAID", 2250, "PEN", "tx")

	cases := []struct {
		name string
		in   ConfirmInput
	}{
		{"empty payload", ConfirmInput{ReservationNumber: draft.ReservationNumber, Channel: model.ChannelPoll}},
		{"unknown channel", ConfirmInput{ReservationNumber: draft.ReservationNumber, Payload: other, Channel: "email"}},
		{"not json", ConfirmInput{ReservationNumber: draft.ReservationNumber, Payload: "kr-answer", Channel: model.ChannelPoll}},
		{"reference mismatch", ConfirmInput{ReservationNumber: draft.ReservationNumber, Payload: other, Channel: model.ChannelPoll}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.engine.ConfirmPayment(ctx, tc.in); !errors.Is(err, domainErrors.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	if _, err := f.engine.ConfirmPayment(ctx, f.signed(t, "", other, model.ChannelPoll)); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected unknown reservation to be not found, got %v", err)
	}
}

func TestConfirmPaymentTakesReservationFromPayload(t *testing.T) {
	f := newFixture(t)
	draft := f.reserve(t)
	in := f.paid(t, draft, model.ChannelWebhook, "tx-9")
	in.ReservationNumber = ""

	order, err := f.engine.ConfirmPayment(context.Background(), in)
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}
	if order.SourceDraftID != draft.ID {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestConfirmPaymentExpiredReservation(t *testing.T) {
	f := newFixture(t)
	draft := f.reserve(t)
	f.clock.Advance(2 * time.Hour)

	_, err := f.engine.ConfirmPayment(context.Background(), f.paid(t, draft, model.ChannelBrowser, "tx-late"))
	if !errors.Is(err, domainErrors.ErrReservationExpired) {
		t.Fatalf("expected reservation expired, got %v", err)
	}
	if f.store.OrderCount() != 0 || f.store.Stock(roses) != 5 {
		t.Fatalf("expired reservation must not commit")
	}
}

func TestConfirmPaymentUnsuccessfulStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)

	cases := []struct {
		status string
		want   model.PaymentStatus
	}{
		{"REFUSED", model.PaymentStatusFailed},
		{"RUNNING", model.PaymentStatusPending},
		{"CANCELLED", model.PaymentStatusCancelled},
		{"ABANDONED", model.PaymentStatusCancelled},
		{"SOMETHING_NEW", model.PaymentStatusPending},
	}
	for _, tc := range cases {
		payload := testhelpers.PaymentAnswer(draft.ReservationNumber, tc.status, 2250, "PEN", "tx-"+tc.status)
		_, err := f.engine.ConfirmPayment(ctx, f.signed(t, draft.ReservationNumber, payload, model.ChannelWebhook))
		if !errors.Is(err, domainErrors.ErrPaymentNotSuccessful) {
			t.Fatalf("status %s: expected not successful, got %v", tc.status, err)
		}
	}

	polled := testhelpers.PaymentAnswer(draft.ReservationNumber, "RUNNING", 2250, "PEN", "tx-poll")
	if _, err := f.engine.ConfirmPayment(ctx, f.signed(t, draft.ReservationNumber, polled, model.ChannelPoll)); !errors.Is(err, domainErrors.ErrPaymentNotSuccessful) {
		t.Fatalf("expected polled status to be unsuccessful, got %v", err)
	}

	stored, err := f.store.Drafts().GetByReservationNumber(ctx, draft.ReservationNumber)
	if err != nil {
		t.Fatalf("failed to reload draft: %v", err)
	}
	if stored.Converted() || f.store.Stock(roses) != 5 {
		t.Fatalf("failed payments must leave the draft open")
	}

	payments := f.store.AllPayments()
	if len(payments) != len(cases) {
		t.Fatalf("expected one audit row per signed delivery, got %d", len(payments))
	}
	for i, tc := range cases {
		p := payments[i]
		if p.Status != tc.want || p.OrderID != nil || p.ExternalTransactionID != "tx-"+tc.status || p.Channel != model.ChannelWebhook {
			t.Fatalf("status %s: unexpected audit row %+v", tc.status, p)
		}
		if p.FailureReason != "gateway status "+tc.status {
			t.Fatalf("status %s: unexpected reason %q", tc.status, p.FailureReason)
		}
	}

	order, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelWebhook, "tx-retry"))
	if err != nil {
		t.Fatalf("retry after refusal should commit, got %v", err)
	}
	last := f.store.AllPayments()[len(cases)]
	if last.Status != model.PaymentStatusCompleted || last.OrderID == nil || *last.OrderID != order.ID {
		t.Fatalf("expected the completed payment after the refusals, got %+v", last)
	}
}

func TestConfirmPaymentRecordsRefusedTransaction(t *testing.T) {
	f := newFixture(t)
	draft := f.reserve(t)

	payload := `{"orderStatus":"PAID","orderDetails":{"orderId":"` + draft.ReservationNumber + `","orderTotalAmount":2250,"orderCurrency":"PEN"},"transactions":[{"uuid":"tx-9","status":"REFUSED"}]}`
	_, err := f.engine.ConfirmPayment(context.Background(), f.signed(t, draft.ReservationNumber, payload, model.ChannelBrowser))
	if !errors.Is(err, domainErrors.ErrPaymentNotSuccessful) {
		t.Fatalf("expected not successful, got %v", err)
	}
	payments := f.store.AllPayments()
	if len(payments) != 1 || payments[0].Status != model.PaymentStatusFailed || payments[0].ExternalTransactionID != "tx-9" {
		t.Fatalf("expected a failed row for the refused transaction, got %+v", payments)
	}
}

func TestConfirmPaymentAmountMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)

	underpaid := testhelpers.PaymentAnswer(draft.ReservationNumber, "PAID", 100, "PEN", "tx")
	if _, err := f.engine.ConfirmPayment(ctx, f.signed(t, draft.ReservationNumber, underpaid, model.ChannelPoll)); !errors.Is(err, domainErrors.ErrAmountMismatch) {
		t.Fatalf("expected amount mismatch, got %v", err)
	}

	dollars := testhelpers.PaymentAnswer(draft.ReservationNumber, "PAID", 2250, "USD", "tx")
	if _, err := f.engine.ConfirmPayment(ctx, f.signed(t, draft.ReservationNumber, dollars, model.ChannelPoll)); !errors.Is(err, domainErrors.ErrAmountMismatch) {
		t.Fatalf("expected currency mismatch, got %v", err)
	}

	if f.store.OrderCount() != 0 {
		t.Fatalf("mismatched payments must not commit")
	}
}

func TestConfirmPaymentStockConflictIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)

	// Another shopper took the last cards between reservation and payment.
	f.store.PutItem(model.CatalogItem{Ref: card, Name: "Greeting card", Price: decimal.RequireFromString("2.50"), Stock: 0, Active: true})

	_, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelWebhook, "tx-conflict"))
	if !errors.Is(err, domainErrors.ErrStockConflict) || !errors.Is(err, domainErrors.ErrInsufficientStock) {
		t.Fatalf("expected stock conflict, got %v", err)
	}
	var lineErr *domainErrors.LineError
	if !errors.As(err, &lineErr) || lineErr.ItemID != card.ID || lineErr.Index != 1 {
		t.Fatalf("expected conflict on the card line, got %+v", lineErr)
	}

	if f.store.Stock(roses) != 5 {
		t.Fatalf("roses must be untouched after rollback, got %d", f.store.Stock(roses))
	}
	if f.store.OrderCount() != 0 {
		t.Fatalf("no order may exist after a conflict")
	}
	stored, _ := f.store.Drafts().GetByReservationNumber(ctx, draft.ReservationNumber)
	if stored.Converted() {
		t.Fatalf("draft must stay unconverted")
	}

	payments := f.store.AllPayments()
	if len(payments) != 1 {
		t.Fatalf("expected a failed payment audit row, got %d", len(payments))
	}
	if p := payments[0]; !p.StockConflict() || p.OrderID != nil || p.ExternalTransactionID != "tx-conflict" {
		t.Fatalf("unexpected audit row %+v", p)
	}
	if _, err := f.sessions.Lookup(ctx, draft.ReservationNumber); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected the session to be closed after a conflict, got %v", err)
	}

	if n, err := testutil.GatherAndCount(f.registry, "draftpay_stock_conflicts_total"); err != nil || n != 1 {
		t.Fatalf("expected stock conflict to be counted, got %d %v", n, err)
	}
}

func TestConfirmPaymentStockConflictIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)
	if _, err := f.sessions.GetOrCreateSession(ctx, draft.ReservationNumber); err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	f.clock.Advance(2 * time.Minute)

	f.store.PutItem(model.CatalogItem{Ref: roses, Name: "Red roses bouquet", Price: decimal.RequireFromString("10.00"), Stock: 1, Active: true})
	if _, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelWebhook, "tx-1")); !errors.Is(err, domainErrors.ErrStockConflict) {
		t.Fatalf("expected stock conflict, got %v", err)
	}

	pending, err := f.store.Sessions().ListPending(ctx, f.clock.Now(), 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("conflicted reservation must not be polled again, got %+v err=%v", pending, err)
	}

	// Stock comes back, e.g. after another order is cancelled.
	f.store.PutItem(model.CatalogItem{Ref: roses, Name: "Red roses bouquet", Price: decimal.RequireFromString("10.00"), Stock: 5, Active: true})

	for _, channel := range []model.Channel{model.ChannelPoll, model.ChannelWebhook, model.ChannelBrowser} {
		if _, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, channel, "tx-1")); !errors.Is(err, domainErrors.ErrStockConflict) {
			t.Fatalf("%s redelivery: expected stock conflict, got %v", channel, err)
		}
	}

	if f.store.OrderCount() != 0 || f.store.Stock(roses) != 5 || f.store.Stock(card) != 3 {
		t.Fatalf("redeliveries must not commit or touch stock: orders=%d roses=%d card=%d",
			f.store.OrderCount(), f.store.Stock(roses), f.store.Stock(card))
	}
	payments := f.store.AllPayments()
	if len(payments) != 1 || !payments[0].StockConflict() {
		t.Fatalf("expected exactly one failed row, got %+v", payments)
	}
	expected := `
# HELP draftpay_stock_conflicts_total Payments captured for carts whose stock could not be committed.
# TYPE draftpay_stock_conflicts_total counter
draftpay_stock_conflicts_total{channel="webhook"} 1
`
	if err := testutil.GatherAndCompare(f.registry, strings.NewReader(expected), "draftpay_stock_conflicts_total"); err != nil {
		t.Fatalf("expected one counted conflict: %v", err)
	}
	if _, err := f.sessions.GetOrCreateSession(ctx, draft.ReservationNumber); !errors.Is(err, domainErrors.ErrStockConflict) {
		t.Fatalf("expected no new session for a conflicted reservation, got %v", err)
	}
	if len(f.gateway.Creates()) != 1 {
		t.Fatalf("expected a single gateway session, got %d", len(f.gateway.Creates()))
	}
}

func TestConfirmPaymentUsesFrozenPrices(t *testing.T) {
	f := newFixture(t)
	draft := f.reserve(t)

	f.store.PutItem(model.CatalogItem{Ref: roses, Name: "Red roses bouquet", Price: decimal.RequireFromString("99.00"), Stock: 5, Active: true})

	order, err := f.engine.ConfirmPayment(context.Background(), f.paid(t, draft, model.ChannelBrowser, "tx"))
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}
	if !order.Lines[0].UnitPrice.Equal(decimal.RequireFromString("10")) || !order.Lines[0].LineTotal.Equal(decimal.RequireFromString("20")) {
		t.Fatalf("order must keep the reserved price, got %+v", order.Lines[0])
	}
	if !order.Totals.Total.Equal(draft.Totals.Total) {
		t.Fatalf("expected total %s, got %s", draft.Totals.Total, order.Totals.Total)
	}
}

func TestConfirmPaymentRetriesOrderNumberCollision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.reserve(t)
	second := f.reserve(t)
	f.numbers.orders = []string{"ORD-2026-AAAAAAAA", "ORD-2026-AAAAAAAA", "ORD-2026-BBBBBBBB"}

	a, err := f.engine.ConfirmPayment(ctx, f.paid(t, first, model.ChannelBrowser, "tx-a"))
	if err != nil {
		t.Fatalf("first confirm returned error: %v", err)
	}
	b, err := f.engine.ConfirmPayment(ctx, f.paid(t, second, model.ChannelBrowser, "tx-b"))
	if err != nil {
		t.Fatalf("second confirm returned error: %v", err)
	}
	if a.Number != "ORD-2026-AAAAAAAA" || b.Number != "ORD-2026-BBBBBBBB" {
		t.Fatalf("unexpected numbers %s %s", a.Number, b.Number)
	}
	if f.store.Stock(roses) != 1 {
		t.Fatalf("expected both carts to be committed, roses=%d", f.store.Stock(roses))
	}
}

func TestConfirmPaymentWithOrderNumberReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)

	order, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelBrowser, "tx"))
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}

	payload := testhelpers.PaymentAnswer(order.Number, "PAID", 2250, "PEN", "tx")
	again, err := f.engine.ConfirmPayment(ctx, f.signed(t, order.Number, payload, model.ChannelWebhook))
	if err != nil {
		t.Fatalf("confirm by order number returned error: %v", err)
	}
	if again.ID != order.ID {
		t.Fatalf("expected existing order, got %+v", again)
	}
}

func TestConfirmPaymentInvalidatesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)

	if _, err := f.sessions.GetOrCreateSession(ctx, draft.ReservationNumber); err != nil {
		t.Fatalf("session returned error: %v", err)
	}
	if _, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelBrowser, "tx")); err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}
	if _, err := f.sessions.Lookup(ctx, draft.ReservationNumber); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected session to be dropped after commit, got %v", err)
	}
	if _, err := f.sessions.GetOrCreateSession(ctx, draft.ReservationNumber); !errors.Is(err, domainErrors.ErrAlreadyConverted) {
		t.Fatalf("expected converted draft to refuse new sessions, got %v", err)
	}
}

func TestCancelRestoresStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)
	order, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelBrowser, "tx"))
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}

	cancelled, err := f.engine.Cancel(ctx, order.Number, "", model.ChangedByCustomer)
	if err != nil {
		t.Fatalf("cancel returned error: %v", err)
	}
	if cancelled.Status != model.OrderStatusCancelled || len(cancelled.History) != 2 {
		t.Fatalf("unexpected cancelled order %+v", cancelled)
	}
	if last := cancelled.History[1]; last.Note != "Cancelled by customer" || last.ChangedBy != model.ChangedByCustomer {
		t.Fatalf("unexpected history entry %+v", last)
	}
	if f.store.Stock(roses) != 5 || f.store.Stock(card) != 3 {
		t.Fatalf("stock not restored: roses=%d card=%d", f.store.Stock(roses), f.store.Stock(card))
	}

	again, err := f.engine.Cancel(ctx, order.Number, "twice", model.ChangedByAdmin)
	if err != nil {
		t.Fatalf("second cancel returned error: %v", err)
	}
	if len(again.History) != 2 || f.store.Stock(roses) != 5 {
		t.Fatalf("second cancel must be a no-op, history=%d roses=%d", len(again.History), f.store.Stock(roses))
	}

	if _, err := f.engine.Cancel(ctx, "ORD-2026-MISSING0", "", ""); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancelRejectsShippedOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)
	order, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelBrowser, "tx"))
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}
	if _, err := f.engine.AdvanceStatus(ctx, order.Number, model.OrderStatusInTransit, "courier picked up", ""); err != nil {
		t.Fatalf("advance returned error: %v", err)
	}

	if _, err := f.engine.Cancel(ctx, order.Number, "", model.ChangedByCustomer); !errors.Is(err, domainErrors.ErrNotCancellable) {
		t.Fatalf("expected not cancellable, got %v", err)
	}
	if f.store.Stock(roses) != 3 {
		t.Fatalf("rejected cancel must not restore stock, roses=%d", f.store.Stock(roses))
	}
}

func TestAdvanceStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.reserve(t)
	order, err := f.engine.ConfirmPayment(ctx, f.paid(t, draft, model.ChannelBrowser, "tx"))
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}

	preparing, err := f.engine.AdvanceStatus(ctx, order.Number, model.OrderStatusPreparing, "arranging", "")
	if err != nil {
		t.Fatalf("advance returned error: %v", err)
	}
	if preparing.Status != model.OrderStatusPreparing || preparing.History[1].ChangedBy != model.ChangedByAdmin {
		t.Fatalf("unexpected order %+v", preparing)
	}

	if _, err := f.engine.AdvanceStatus(ctx, order.Number, model.OrderStatusConfirmed, "", ""); !errors.Is(err, domainErrors.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := f.engine.AdvanceStatus(ctx, order.Number, "shipped", "", ""); !errors.Is(err, domainErrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	cancelled, err := f.engine.AdvanceStatus(ctx, order.Number, model.OrderStatusCancelled, "out of roses", model.ChangedByAdmin)
	if err != nil {
		t.Fatalf("cancel via advance returned error: %v", err)
	}
	if cancelled.Status != model.OrderStatusCancelled || f.store.Stock(roses) != 5 {
		t.Fatalf("expected cancellation with stock restored, status=%s roses=%d", cancelled.Status, f.store.Stock(roses))
	}
}

func TestStatusView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open := f.reserve(t)
	view, err := f.engine.Status(ctx, open.ReservationNumber)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	if view.Kind != model.ReferenceDraft || view.DraftState != model.DraftStateOpen {
		t.Fatalf("unexpected view %+v", view)
	}

	if _, err := f.sessions.GetOrCreateSession(ctx, open.ReservationNumber); err != nil {
		t.Fatalf("session returned error: %v", err)
	}
	if view, _ = f.engine.Status(ctx, open.ReservationNumber); view.DraftState != model.DraftStateSessionIssued {
		t.Fatalf("expected session_issued, got %s", view.DraftState)
	}

	order, err := f.engine.ConfirmPayment(ctx, f.paid(t, open, model.ChannelBrowser, "tx"))
	if err != nil {
		t.Fatalf("confirm returned error: %v", err)
	}
	view, err = f.engine.Status(ctx, open.ReservationNumber)
	if err != nil {
		t.Fatalf("status returned error: %v", err)
	}
	if view.DraftState != model.DraftStateConverted || view.Order == nil || view.Order.Number != order.Number {
		t.Fatalf("expected converted view with order, got %+v", view)
	}
	if len(view.Payments) != 1 || view.Payments[0].Status != model.PaymentStatusCompleted {
		t.Fatalf("expected the completed payment in the audit trail, got %+v", view.Payments)
	}

	view, err = f.engine.Status(ctx, order.Number)
	if err != nil {
		t.Fatalf("status by order number returned error: %v", err)
	}
	if view.Kind != model.ReferenceOrder || view.Order.ID != order.ID {
		t.Fatalf("unexpected order view %+v", view)
	}

	stale := f.reserve(t)
	f.clock.Advance(3 * time.Hour)
	if view, _ = f.engine.Status(ctx, stale.ReservationNumber); view.DraftState != model.DraftStateExpired {
		t.Fatalf("expected expired, got %s", view.DraftState)
	}

	if _, err := f.engine.Status(ctx, "DRAFT-2026-NOPE0000"); !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.engine.Status(ctx, "  "); !errors.Is(err, domainErrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
