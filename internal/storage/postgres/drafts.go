package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
)

const draftColumns = `id, reservation_number, customer, shipping, cart,
                      subtotal_cents, shipping_cents, tax_cents, total_cents,
                      currency, created_at, expires_at, converted_order_id`

type draftRepository struct {
	storage *Storage
}

type contactRecord struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	DocumentType   string `json:"document_type,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
}

type customerRecord struct {
	Kind    string        `json:"kind"`
	UserID  int64         `json:"user_id,omitempty"`
	Contact contactRecord `json:"contact"`
}

type addressRecord struct {
	Recipient  string `json:"recipient,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Line       string `json:"line,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type shippingRecord struct {
	Type         string        `json:"type"`
	Address      addressRecord `json:"address"`
	DeliveryDate string        `json:"delivery_date,omitempty"`
	TimeSlot     string        `json:"time_slot,omitempty"`
	Notes        string        `json:"notes,omitempty"`
}

type cartLineRecord struct {
	Kind           string `json:"kind"`
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

const (
	customerAuthenticated = "authenticated"
	customerGuest         = "guest"
)

func (r *draftRepository) Create(ctx context.Context, draft *model.Draft) error {
	customer, shipping, cart, err := encodeDraft(draft)
	if err != nil {
		return err
	}

	const query = `INSERT INTO drafts (reservation_number, customer, shipping, cart,
                       subtotal_cents, shipping_cents, tax_cents, total_cents,
                       currency, created_at, expires_at)
                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
                   RETURNING id`
	err = r.storage.pool.QueryRow(ctx, query,
		draft.ReservationNumber, customer, shipping, cart,
		model.ToCents(draft.Totals.Subtotal), model.ToCents(draft.Totals.ShippingCost),
		model.ToCents(draft.Totals.Tax), model.ToCents(draft.Totals.Total),
		draft.Currency, draft.CreatedAt, draft.ExpiresAt,
	).Scan(&draft.ID)
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return domainErrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *draftRepository) GetByReservationNumber(ctx context.Context, number string) (*model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE reservation_number=$1`
	return scanDraft(r.storage.pool.QueryRow(ctx, query, number))
}

func lockDraft(ctx context.Context, q queryer, draftID int64) (*model.Draft, error) {
	query := `SELECT ` + draftColumns + ` FROM drafts WHERE id=$1 FOR UPDATE`
	return scanDraft(q.QueryRow(ctx, query, draftID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*model.Draft, error) {
	var (
		d                                  model.Draft
		customer, shipping, cart           []byte
		subtotal, shippingCost, tax, total int64
	)
	err := row.Scan(&d.ID, &d.ReservationNumber, &customer, &shipping, &cart,
		&subtotal, &shippingCost, &tax, &total,
		&d.Currency, &d.CreatedAt, &d.ExpiresAt, &d.ConvertedOrderID)
	if err != nil {
		return nil, notFound(err)
	}

	d.Totals = model.Totals{
		Subtotal:     model.FromCents(subtotal),
		ShippingCost: model.FromCents(shippingCost),
		Tax:          model.FromCents(tax),
		Total:        model.FromCents(total),
	}
	if err := decodeDraft(&d, customer, shipping, cart); err != nil {
		return nil, err
	}
	return &d, nil
}

func encodeDraft(d *model.Draft) (customer, shipping, cart string, err error) {
	rec := customerRecord{Kind: customerGuest}
	if d.Customer != nil {
		c := d.Customer.Contact()
		rec.Contact = contactRecord{
			FirstName:      c.FirstName,
			LastName:       c.LastName,
			Email:          c.Email,
			Phone:          c.Phone,
			DocumentType:   c.DocumentType,
			DocumentNumber: c.DocumentNumber,
		}
		if id, ok := d.Customer.UserID(); ok {
			rec.Kind = customerAuthenticated
			rec.UserID = id
		}
	}

	a := d.Shipping.Address
	ship := shippingRecord{
		Type: string(d.Shipping.Type),
		Address: addressRecord{
			Recipient:  a.Recipient,
			Phone:      a.Phone,
			Line:       a.Line,
			District:   a.District,
			City:       a.City,
			PostalCode: a.PostalCode,
		},
		DeliveryDate: d.Shipping.DeliveryDate,
		TimeSlot:     d.Shipping.TimeSlot,
		Notes:        d.Shipping.Notes,
	}

	lines := make([]cartLineRecord, 0, len(d.Cart))
	for _, l := range d.Cart {
		lines = append(lines, cartLineRecord{
			Kind:           string(l.Item.Kind),
			ID:             l.Item.ID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			UnitPriceCents: model.ToCents(l.UnitPrice),
		})
	}

	parts := []any{rec, ship, lines}
	out := make([]string, len(parts))
	for i, p := range parts {
		raw, err := json.Marshal(p)
		if err != nil {
			return "", "", "", fmt.Errorf("encode draft: %w", err)
		}
		out[i] = string(raw)
	}
	return out[0], out[1], out[2], nil
}

func decodeDraft(d *model.Draft, customer, shipping, cart []byte) error {
	var rec customerRecord
	if err := json.Unmarshal(customer, &rec); err != nil {
		return fmt.Errorf("decode draft customer: %w", err)
	}
	info := model.ContactInfo{
		FirstName:      rec.Contact.FirstName,
		LastName:       rec.Contact.LastName,
		Email:          rec.Contact.Email,
		Phone:          rec.Contact.Phone,
		DocumentType:   rec.Contact.DocumentType,
		DocumentNumber: rec.Contact.DocumentNumber,
	}
	if rec.Kind == customerAuthenticated {
		d.Customer = model.AuthenticatedCustomer{ID: rec.UserID, Info: info}
	} else {
		d.Customer = model.GuestCustomer{Info: info}
	}

	var ship shippingRecord
	if err := json.Unmarshal(shipping, &ship); err != nil {
		return fmt.Errorf("decode draft shipping: %w", err)
	}
	d.Shipping = model.ShippingInfo{
		Type: model.ShippingType(ship.Type),
		Address: model.Address{
			Recipient:  ship.Address.Recipient,
			Phone:      ship.Address.Phone,
			Line:       ship.Address.Line,
			District:   ship.Address.District,
			City:       ship.Address.City,
			PostalCode: ship.Address.PostalCode,
		},
		DeliveryDate: ship.DeliveryDate,
		TimeSlot:     ship.TimeSlot,
		Notes:        ship.Notes,
	}

	var lines []cartLineRecord
	if err := json.Unmarshal(cart, &lines); err != nil {
		return fmt.Errorf("decode draft cart: %w", err)
	}
	d.Cart = make([]model.CartLine, 0, len(lines))
	for _, l := range lines {
		d.Cart = append(d.Cart, model.CartLine{
			Item:      model.ItemRef{Kind: model.ItemKind(l.Kind), ID: l.ID},
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: model.FromCents(l.UnitPriceCents),
		})
	}
	return nil
}

func markDraftConverted(ctx context.Context, q queryer, draftID, orderID int64) error {
	const query = `UPDATE drafts SET converted_order_id=$2 WHERE id=$1 AND converted_order_id IS NULL`
	tag, err := q.Exec(ctx, query, draftID, orderID)
	if err != nil {
		if name, ok := uniqueConstraint(err); ok && name == constraintDraftOrder {
			return domainErrors.ErrAlreadyConverted
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrAlreadyConverted
	}
	return nil
}
