package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAlreadyExists        = errors.New("already exists")
	ErrNotFound             = errors.New("not found")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrForbidden            = errors.New("forbidden")
	ErrValidation           = errors.New("validation failed")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrReservationExpired   = errors.New("reservation expired")
	ErrPaymentNotSuccessful = errors.New("payment not successful")
	ErrStockConflict        = errors.New("stock conflict")
	ErrPaymentGateway       = errors.New("payment gateway error")
	ErrAlreadyConverted     = errors.New("draft already converted")
	ErrItemUnavailable      = errors.New("item unavailable")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrNotCancellable       = errors.New("order cannot be cancelled")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrAmountMismatch       = errors.New("amount mismatch")
)

// LineError ties a cart failure to the offending line.
type LineError struct {
	Index  int
	ItemID int64
	Kind   string
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (%s #%d): %v", e.Index, e.Kind, e.ItemID, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// CartError collects every failing line of a cart.
type CartError struct {
	Lines []*LineError
}

func (e *CartError) Error() string {
	parts := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		parts = append(parts, l.Error())
	}
	return "cart rejected: " + strings.Join(parts, "; ")
}

func (e *CartError) Unwrap() []error {
	errs := make([]error, 0, len(e.Lines))
	for _, l := range e.Lines {
		errs = append(errs, l)
	}
	return errs
}

// Validation wraps a message into ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
