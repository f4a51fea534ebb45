package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/domain/repository"
	"github.com/polkiloo/draftpay/internal/pkg/numbering"
)

const maxNumberAttempts = 5

// DraftLine is one requested cart line.
type DraftLine struct {
	Item     model.ItemRef
	Quantity int
}

// CreateDraftInput is what checkout submits to reserve a cart.
type CreateDraftInput struct {
	Customer model.Customer
	Lines    []DraftLine
	Shipping model.ShippingInfo
}

// DraftOptions configures the reservation window and currency.
type DraftOptions struct {
	TTL      time.Duration
	Currency string
}

// DraftUseCase reserves carts as price-frozen drafts.
type DraftUseCase struct {
	catalog repository.Catalog
	drafts  repository.DraftRepository
	quoter  *ShippingQuoter
	numbers numbering.Generator
	opts    DraftOptions
	logger  *slog.Logger
	now     func() time.Time
}

// NewDraftUseCase constructs DraftUseCase.
func NewDraftUseCase(catalog repository.Catalog, drafts repository.DraftRepository, quoter *ShippingQuoter, numbers numbering.Generator, opts DraftOptions, logger *slog.Logger) *DraftUseCase {
	return &DraftUseCase{
		catalog: catalog,
		drafts:  drafts,
		quoter:  quoter,
		numbers: numbers,
		opts:    opts,
		logger:  logger,
		now:     time.Now,
	}
}

// CreateDraft validates the cart against the catalog and stores a draft.
// Every failing line is reported at once; nothing is reserved on failure.
// No stock is touched here.
func (u *DraftUseCase) CreateDraft(ctx context.Context, in CreateDraftInput) (*model.Draft, error) {
	if err := validateDraftInput(in); err != nil {
		return nil, err
	}

	lines := mergeLines(in.Lines)
	cart := make([]model.CartLine, 0, len(lines))
	var failures []*domainErrors.LineError
	for i, l := range lines {
		item, err := u.catalog.GetItem(ctx, l.Item)
		switch {
		case errors.Is(err, domainErrors.ErrNotFound):
			failures = append(failures, lineError(i, l.Item, domainErrors.ErrItemUnavailable))
			continue
		case err != nil:
			return nil, fmt.Errorf("lookup %s: %w", l.Item, err)
		case !item.Active:
			failures = append(failures, lineError(i, l.Item, domainErrors.ErrItemUnavailable))
			continue
		case item.Stock < l.Quantity:
			failures = append(failures, lineError(i, l.Item, domainErrors.ErrInsufficientStock))
			continue
		}
		cart = append(cart, model.CartLine{
			Item:      l.Item,
			Name:      item.Name,
			Quantity:  l.Quantity,
			UnitPrice: item.Price,
		})
	}
	if len(failures) > 0 {
		return nil, &domainErrors.CartError{Lines: failures}
	}

	subtotal := decimal.Zero
	for _, l := range cart {
		subtotal = subtotal.Add(l.LineTotal())
	}
	shippingCost, err := u.quoter.Quote(ctx, in.Shipping, subtotal)
	if err != nil {
		return nil, fmt.Errorf("quote shipping: %w", err)
	}

	now := u.now()
	draft := &model.Draft{
		Customer: in.Customer,
		Shipping: in.Shipping,
		Cart:     cart,
		Totals: model.Totals{
			Subtotal:     subtotal,
			ShippingCost: shippingCost,
			Tax:          decimal.Zero,
			Total:        subtotal.Add(shippingCost),
		},
		Currency:  u.opts.Currency,
		CreatedAt: now,
		ExpiresAt: now.Add(u.opts.TTL),
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		draft.ReservationNumber = u.numbers.Reservation(now)
		err = u.drafts.Create(ctx, draft)
		if !errors.Is(err, domainErrors.ErrAlreadyExists) {
			break
		}
		u.logger.Warn("reservation number collision", slog.String("reservation", draft.ReservationNumber))
	}
	if err != nil {
		return nil, fmt.Errorf("store draft: %w", err)
	}

	u.logger.Info("draft reserved",
		slog.String("reservation", draft.ReservationNumber),
		slog.String("total", draft.Totals.Total.StringFixed(2)),
		slog.Int("lines", len(draft.Cart)),
	)
	return draft, nil
}

// GetByReservationNumber returns the stored draft.
func (u *DraftUseCase) GetByReservationNumber(ctx context.Context, number string) (*model.Draft, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domainErrors.Validation("reservation number is required")
	}
	return u.drafts.GetByReservationNumber(ctx, number)
}

func validateDraftInput(in CreateDraftInput) error {
	if in.Customer == nil {
		return domainErrors.Validation("customer is required")
	}
	if len(in.Lines) == 0 {
		return domainErrors.Validation("cart is empty")
	}
	for i, l := range in.Lines {
		if !l.Item.Kind.Valid() || l.Item.ID <= 0 {
			return domainErrors.Validation("line %d: unknown item", i)
		}
		if l.Quantity <= 0 {
			return domainErrors.Validation("line %d: quantity must be positive", i)
		}
	}

	contact := in.Customer.Contact()
	if _, err := mail.ParseAddress(contact.Email); err != nil {
		return domainErrors.Validation("contact email is invalid")
	}

	switch in.Shipping.Type {
	case model.ShippingPickup:
	case model.ShippingDelivery:
		a := in.Shipping.Address
		if strings.TrimSpace(a.Line) == "" || strings.TrimSpace(a.District) == "" {
			return domainErrors.Validation("delivery address requires a street line and district")
		}
	default:
		return domainErrors.Validation("shipping type must be delivery or pickup")
	}
	return nil
}

// mergeLines folds repeated items into one line, keeping first-seen order.
func mergeLines(lines []DraftLine) []DraftLine {
	index := make(map[model.ItemRef]int, len(lines))
	merged := make([]DraftLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.Item]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.Item] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

func lineError(index int, ref model.ItemRef, err error) *domainErrors.LineError {
	return &domainErrors.LineError{Index: index, ItemID: ref.ID, Kind: string(ref.Kind), Err: err}
}
