package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
)

const orderColumns = `id, order_number, user_id, source_draft_id, status,
                      subtotal_cents, shipping_cents, tax_cents, total_cents,
                      currency, created_at, updated_at`

type orderRepository struct {
	storage *Storage
}

func (r *orderRepository) GetByID(ctx context.Context, id int64) (*model.Order, error) {
	return loadOrderByID(ctx, r.storage.pool, id)
}

func (r *orderRepository) GetByNumber(ctx context.Context, number string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number=$1`
	return loadOrder(ctx, r.storage.pool, query, number)
}

// ListByUser returns order headers, newest first. Lines and history are not loaded.
func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.storage.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.Order
	for rows.Next() {
		o, err := scanOrderHeader(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanOrderHeader(row rowScanner) (*model.Order, error) {
	var (
		o                                  model.Order
		status                             string
		subtotal, shippingCost, tax, total int64
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &o.SourceDraftID, &status,
		&subtotal, &shippingCost, &tax, &total,
		&o.Currency, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	o.Status = model.OrderStatus(status)
	o.Totals = model.Totals{
		Subtotal:     model.FromCents(subtotal),
		ShippingCost: model.FromCents(shippingCost),
		Tax:          model.FromCents(tax),
		Total:        model.FromCents(total),
	}
	return &o, nil
}

func loadOrderByID(ctx context.Context, q queryer, id int64) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	return loadOrder(ctx, q, query, id)
}

// loadOrder reads the header selected by query, then its lines and history.
func loadOrder(ctx context.Context, q queryer, query string, arg any) (*model.Order, error) {
	order, err := scanOrderHeader(q.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if order.Lines, err = loadOrderLines(ctx, q, order.ID); err != nil {
		return nil, err
	}
	if order.History, err = loadOrderHistory(ctx, q, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func loadOrderLines(ctx context.Context, q queryer, orderID int64) ([]model.LineItem, error) {
	const query = `SELECT item_kind, item_id, name, quantity, unit_price_cents, line_total_cents
                   FROM order_lines WHERE order_id=$1 ORDER BY id`
	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []model.LineItem
	for rows.Next() {
		var (
			kind, name      string
			itemID          int64
			quantity        int
			unit, lineTotal int64
		)
		if err := rows.Scan(&kind, &itemID, &name, &quantity, &unit, &lineTotal); err != nil {
			return nil, err
		}
		lines = append(lines, model.LineItem{
			Item:      model.ItemRef{Kind: model.ItemKind(kind), ID: itemID},
			Name:      name,
			Quantity:  quantity,
			UnitPrice: model.FromCents(unit),
			LineTotal: model.FromCents(lineTotal),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func loadOrderHistory(ctx context.Context, q queryer, orderID int64) ([]model.StatusEntry, error) {
	const query = `SELECT status, note, changed_by, created_at
                   FROM order_status_history WHERE order_id=$1 ORDER BY id`
	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []model.StatusEntry
	for rows.Next() {
		var (
			e      model.StatusEntry
			status string
		)
		if err := rows.Scan(&status, &e.Note, &e.ChangedBy, &e.At); err != nil {
			return nil, err
		}
		e.Status = model.OrderStatus(status)
		history = append(history, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return history, nil
}

// createOrder inserts the header under a savepoint so that a number
// collision leaves the enclosing transaction usable for a retry.
func createOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	const insertHeader = `INSERT INTO orders (order_number, user_id, source_draft_id, status,
                              subtotal_cents, shipping_cents, tax_cents, total_cents, currency)
                          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
                          RETURNING id, created_at, updated_at`

	sp, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	err = sp.QueryRow(ctx, insertHeader,
		order.Number, order.UserID, order.SourceDraftID, string(order.Status),
		model.ToCents(order.Totals.Subtotal), model.ToCents(order.Totals.ShippingCost),
		model.ToCents(order.Totals.Tax), model.ToCents(order.Totals.Total),
		order.Currency,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		_ = sp.Rollback(ctx)
		if name, ok := uniqueConstraint(err); ok {
			if name == constraintOrderDraft {
				return domainErrors.ErrAlreadyConverted
			}
			return domainErrors.ErrAlreadyExists
		}
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return err
	}

	const insertLine = `INSERT INTO order_lines (order_id, item_kind, item_id, name, quantity, unit_price_cents, line_total_cents)
                        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, l := range order.Lines {
		if _, err := tx.Exec(ctx, insertLine,
			order.ID, string(l.Item.Kind), l.Item.ID, l.Name, l.Quantity,
			model.ToCents(l.UnitPrice), model.ToCents(l.LineTotal),
		); err != nil {
			return err
		}
	}
	return nil
}

func lockOrderByNumber(ctx context.Context, q queryer, number string) (*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number=$1 FOR UPDATE`
	return loadOrder(ctx, q, query, number)
}

func updateOrderStatus(ctx context.Context, q queryer, orderID int64, status model.OrderStatus) error {
	const query = `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`
	tag, err := q.Exec(ctx, query, orderID, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrNotFound
	}
	return nil
}

func appendStatus(ctx context.Context, q queryer, orderID int64, entry model.StatusEntry) error {
	const query = `INSERT INTO order_status_history (order_id, status, note, changed_by, created_at)
                   VALUES ($1, $2, $3, $4, $5)`
	_, err := q.Exec(ctx, query, orderID, string(entry.Status), entry.Note, entry.ChangedBy, entry.At)
	return err
}
