package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmockv3 "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
)

var (
	decrementPattern = regexp.QuoteMeta("UPDATE catalog_items SET stock = stock - $3")
	incrementPattern = regexp.QuoteMeta("UPDATE catalog_items SET stock = stock + $3")
	orderHeaderCols  = []string{"id", "created_at", "updated_at"}
)

func orderFixture() *model.Order {
	userID := int64(7)
	return &model.Order{
		Number:        "ORD-2026-00000001",
		Status:        model.OrderStatusConfirmed,
		UserID:        &userID,
		SourceDraftID: 42,
		Currency:      "PEN",
		Totals: model.Totals{
			Subtotal:     decimal.NewFromInt(20),
			ShippingCost: decimal.Zero,
			Tax:          decimal.Zero,
			Total:        decimal.NewFromInt(20),
		},
		Lines: []model.LineItem{{
			Item:      model.ItemRef{Kind: model.ItemKindProduct, ID: 1},
			Name:      "Roses",
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(10),
			LineTotal: decimal.NewFromInt(20),
		}},
	}
}

func expectOrderInsert(mock pgxmockv3.PgxPoolIface, o *model.Order) *pgxmockv3.ExpectedQuery {
	return mock.ExpectQuery("INSERT INTO orders").WithArgs(
		o.Number, o.UserID, o.SourceDraftID, string(o.Status),
		int64(2000), int64(0), int64(0), int64(2000), "PEN",
	)
}

func TestUnitOfWorkCommitFlow(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()

	now := time.Now().UTC()
	draft := draftFixture(now)
	draft.ID = 42
	order := orderFixture()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM drafts WHERE id=.+ FOR UPDATE").WithArgs(int64(42)).WillReturnRows(draftRow(t, draft, nil))
	mock.ExpectExec(decrementPattern).WithArgs("product", int64(1), 2).WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectBegin()
	expectOrderInsert(mock, order).WillReturnRows(pgxmockv3.NewRows(orderHeaderCols).AddRow(int64(5), now, now))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO order_lines").WithArgs(int64(5), "product", int64(1), "Roses", 2, int64(1000), int64(2000)).
		WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO payments").WithArgs(
		int64(42), pgxmockv3.AnyArg(), model.PaymentMethodCard, "browser", "tx-1", "completed",
		int64(2000), "PEN", "{}", "", pgxmockv3.AnyArg(),
	).WillReturnRows(pgxmockv3.NewRows([]string{"id", "created_at"}).AddRow(int64(11), now))
	mock.ExpectExec("UPDATE drafts SET converted_order_id").WithArgs(int64(42), int64(5)).WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO order_status_history").WithArgs(int64(5), "confirmed", "payment verified", model.ChangedBySystem, now).
		WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
	mock.ExpectCommit()

	uow := storage.Unit()
	err := uow.WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		locked, err := tx.LockDraft(ctx, 42)
		if err != nil {
			return err
		}
		if locked.Converted() {
			t.Fatalf("expected unconverted draft")
		}
		if err := tx.DecrementStock(ctx, model.ItemRef{Kind: model.ItemKindProduct, ID: 1}, 2); err != nil {
			return err
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		confirmedAt := now
		if err := tx.RecordPayment(ctx, &model.Payment{
			DraftID:               42,
			OrderID:               &order.ID,
			Method:                model.PaymentMethodCard,
			Channel:               model.ChannelBrowser,
			ExternalTransactionID: "tx-1",
			Status:                model.PaymentStatusCompleted,
			Amount:                decimal.NewFromInt(20),
			Currency:              "PEN",
			RawPayload:            "{}",
			ConfirmedAt:           &confirmedAt,
		}); err != nil {
			return err
		}
		if err := tx.MarkDraftConverted(ctx, 42, order.ID); err != nil {
			return err
		}
		return tx.AppendStatus(ctx, order.ID, model.StatusEntry{
			Status: model.OrderStatusConfirmed, Note: "payment verified", ChangedBy: model.ChangedBySystem, At: now,
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID != 5 {
		t.Fatalf("expected order id from insert, got %d", order.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestDecrementStockFailures(t *testing.T) {
	ref := model.ItemRef{Kind: model.ItemKindAddon, ID: 3}
	cases := []struct {
		name   string
		exists bool
		want   error
	}{
		{name: "insufficient", exists: true, want: domainErrors.ErrInsufficientStock},
		{name: "missing item", exists: false, want: domainErrors.ErrNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			storage, mock := newMockStorage(t)
			defer mock.Close()

			mock.ExpectBegin()
			mock.ExpectExec(decrementPattern).WithArgs("addon", int64(3), 5).WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
			mock.ExpectQuery("SELECT EXISTS").WithArgs("addon", int64(3)).WillReturnRows(
				pgxmockv3.NewRows([]string{"exists"}).AddRow(tc.exists))
			mock.ExpectRollback()

			err := storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
				return tx.DecrementStock(ctx, ref, 5)
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("expectations not met: %v", err)
			}
		})
	}
}

func TestCreateOrderNumberCollisionKeepsTransactionUsable(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()

	now := time.Now()
	order := orderFixture()
	order.Lines = nil

	mock.ExpectBegin()
	mock.ExpectBegin()
	expectOrderInsert(mock, order).WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintOrderNumber})
	mock.ExpectRollback()
	mock.ExpectBegin()
	expectOrderInsert(mock, order).WillReturnRows(pgxmockv3.NewRows(orderHeaderCols).AddRow(int64(6), now, now))
	mock.ExpectCommit()
	mock.ExpectCommit()

	attempts := 0
	err := storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		for {
			attempts++
			err := tx.CreateOrder(ctx, order)
			if errors.Is(err, domainErrors.ErrAlreadyExists) {
				continue
			}
			return err
		}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 || order.ID != 6 {
		t.Fatalf("expected retry to succeed, attempts=%d id=%d", attempts, order.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestCreateOrderDraftConstraint(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()

	order := orderFixture()

	mock.ExpectBegin()
	mock.ExpectBegin()
	expectOrderInsert(mock, order).WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintOrderDraft})
	mock.ExpectRollback()
	mock.ExpectRollback()

	err := storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.CreateOrder(ctx, order)
	})
	if !errors.Is(err, domainErrors.ErrAlreadyConverted) {
		t.Fatalf("expected already converted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestMarkDraftConvertedTwice(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE drafts SET converted_order_id").WithArgs(int64(42), int64(5)).WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.MarkDraftConverted(ctx, 42, 5)
	})
	if !errors.Is(err, domainErrors.ErrAlreadyConverted) {
		t.Fatalf("expected already converted, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE drafts SET converted_order_id").WithArgs(int64(43), int64(5)).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintDraftOrder})
	mock.ExpectRollback()

	err = storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.MarkDraftConverted(ctx, 43, 5)
	})
	if !errors.Is(err, domainErrors.ErrAlreadyConverted) {
		t.Fatalf("expected already converted, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestUnitOfWorkCancelFlow(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()

	now := time.Now()
	userID := int64(7)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE order_number=.+ FOR UPDATE").WithArgs("ORD-1").WillReturnRows(
		pgxmockv3.NewRows(orderCols).AddRow(int64(5), "ORD-1", &userID, int64(42), "preparing", int64(2000), int64(0), int64(0), int64(2000), "PEN", now, now))
	mock.ExpectQuery("SELECT item_kind, item_id").WithArgs(int64(5)).WillReturnRows(
		pgxmockv3.NewRows(lineCols).AddRow("product", int64(1), "Roses", 2, int64(1000), int64(2000)))
	mock.ExpectQuery("SELECT status, note, changed_by, created_at").WithArgs(int64(5)).WillReturnRows(
		pgxmockv3.NewRows(historyCols).AddRow("confirmed", "payment verified", "system", now))
	mock.ExpectExec(incrementPattern).WithArgs("product", int64(1), 2).WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE orders SET status").WithArgs(int64(5), "cancelled").WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO order_status_history").WithArgs(int64(5), "cancelled", "Cancelled by customer", model.ChangedByCustomer, now).
		WillReturnResult(pgxmockv3.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.LockOrderByNumber(ctx, "ORD-1")
		if err != nil {
			return err
		}
		for _, l := range order.Lines {
			if err := tx.IncrementStock(ctx, l.Item, l.Quantity); err != nil {
				return err
			}
		}
		if err := tx.UpdateOrderStatus(ctx, order.ID, model.OrderStatusCancelled); err != nil {
			return err
		}
		return tx.AppendStatus(ctx, order.ID, model.StatusEntry{
			Status: model.OrderStatusCancelled, Note: "Cancelled by customer", ChangedBy: model.ChangedByCustomer, At: now,
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestTxRepositoryMissingRows(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(incrementPattern).WithArgs("product", int64(9), 1).WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectRollback()
	err := storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.IncrementStock(ctx, model.ItemRef{Kind: model.ItemKindProduct, ID: 9}, 1)
	})
	if !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE orders SET status").WithArgs(int64(99), "ready").WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectRollback()
	err = storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.UpdateOrderStatus(ctx, 99, model.OrderStatusReady)
	})
	if !errors.Is(err, domainErrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders WHERE id=").WithArgs(int64(99)).WillReturnError(errors.New("read"))
	mock.ExpectRollback()
	err = storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.GetOrder(ctx, 99)
		return err
	})
	if err == nil || err.Error() != "read" {
		t.Fatalf("expected read error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}

func TestStockConflictRecordedInsideTransaction(t *testing.T) {
	storage, mock := newMockStorage(t)
	defer mock.Close()

	roses := model.ItemRef{Kind: model.ItemKindProduct, ID: 1}
	card := model.ItemRef{Kind: model.ItemKindAddon, ID: 4}
	payment := &model.Payment{
		DraftID:               42,
		Method:                model.PaymentMethodCard,
		Channel:               model.ChannelPoll,
		ExternalTransactionID: "tx-1",
		Status:                model.PaymentStatusFailed,
		Amount:                decimal.NewFromInt(20),
		Currency:              "PEN",
		FailureReason:         model.StockConflictReason + ": line 1 (addon #4): insufficient stock",
	}

	mock.ExpectBegin()
	mock.ExpectQuery("FROM payments WHERE draft_id").WithArgs(int64(42), "stock conflict%").WillReturnRows(
		pgxmockv3.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(decrementPattern).WithArgs("product", int64(1), 2).WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectExec(decrementPattern).WithArgs("addon", int64(4), 1).WillReturnResult(pgxmockv3.NewResult("UPDATE", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM catalog_items")).WithArgs("addon", int64(4)).WillReturnRows(
		pgxmockv3.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(incrementPattern).WithArgs("product", int64(1), 2).WillReturnResult(pgxmockv3.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO payments").WithArgs(
		int64(42), (*int64)(nil), model.PaymentMethodCard, "poll", "tx-1", "failed",
		int64(2000), "PEN", "", payment.FailureReason, (*time.Time)(nil),
	).WillReturnRows(pgxmockv3.NewRows([]string{"id", "created_at"}).AddRow(int64(8), time.Now()))
	mock.ExpectCommit()

	err := storage.Unit().WithinTransaction(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		conflicted, err := tx.HasStockConflict(ctx, 42)
		if err != nil || conflicted {
			t.Fatalf("expected clean draft, got %v err=%v", conflicted, err)
		}
		if err := tx.DecrementStock(ctx, roses, 2); err != nil {
			return err
		}
		if err := tx.DecrementStock(ctx, card, 1); !errors.Is(err, domainErrors.ErrInsufficientStock) {
			t.Fatalf("expected insufficient stock, got %v", err)
		}
		if err := tx.IncrementStock(ctx, roses, 2); err != nil {
			return err
		}
		return tx.RecordPayment(ctx, payment)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.ID != 8 {
		t.Fatalf("expected payment id assigned, got %d", payment.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations not met: %v", err)
	}
}
