package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/server/http/dto"
)

// errorReply is the status and fixed client message for a class of domain errors.
type errorReply struct {
	target  error
	status  int
	message string
}

// errorReplies is matched in order; the first hit wins.
var errorReplies = []errorReply{
	{domainErrors.ErrValidation, http.StatusBadRequest, "invalid request"},
	{domainErrors.ErrInvalidCredentials, http.StatusUnauthorized, "invalid login or password"},
	{domainErrors.ErrPaymentNotSuccessful, http.StatusPaymentRequired, "payment was not completed"},
	{domainErrors.ErrInvalidSignature, http.StatusForbidden, "payment confirmation rejected"},
	{domainErrors.ErrForbidden, http.StatusForbidden, "access denied"},
	{domainErrors.ErrNotFound, http.StatusNotFound, "not found"},
	{domainErrors.ErrStockConflict, http.StatusConflict, "items are no longer available, the payment will be refunded"},
	{domainErrors.ErrAlreadyConverted, http.StatusConflict, "reservation already completed"},
	{domainErrors.ErrAlreadyExists, http.StatusConflict, "already exists"},
	{domainErrors.ErrNotCancellable, http.StatusConflict, "order can no longer be cancelled"},
	{domainErrors.ErrInvalidTransition, http.StatusConflict, "status change not allowed"},
	{domainErrors.ErrReservationExpired, http.StatusGone, "reservation expired"},
	{domainErrors.ErrAmountMismatch, http.StatusUnprocessableEntity, "payment amount does not match the reservation"},
	{domainErrors.ErrPaymentGateway, http.StatusBadGateway, "payment service unavailable, try again later"},
}

const cartRejectedMessage = "some items cannot be reserved"

// describeError maps domain errors onto an HTTP status and a message safe
// to show clients. The error text itself never reaches the response.
func describeError(err error) (int, string) {
	var cartErr *domainErrors.CartError
	if errors.As(err, &cartErr) {
		return http.StatusBadRequest, cartRejectedMessage
	}
	for _, r := range errorReplies {
		if errors.Is(err, r.target) {
			return r.status, r.message
		}
	}
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}

func errorStatus(err error) int {
	status, _ := describeError(err)
	return status
}

// abortWithError writes the mapped status and a fixed explanation.
// The full error is kept on the gin context for the logging middleware.
func abortWithError(c *gin.Context, err error) {
	status, message := describeError(err)
	resp := dto.ErrorResponse{Error: message}
	var cartErr *domainErrors.CartError
	if errors.As(err, &cartErr) {
		for _, l := range cartErr.Lines {
			resp.Lines = append(resp.Lines, dto.LineErrorResponse{
				Index:  l.Index,
				Kind:   l.Kind,
				ID:     l.ItemID,
				Reason: l.Err.Error(),
			})
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request"})
}

func toLineResponse(ref model.ItemRef, name string, qty int, unit, total string) dto.LineResponse {
	return dto.LineResponse{
		Kind:      string(ref.Kind),
		ID:        ref.ID,
		Name:      name,
		Quantity:  qty,
		UnitPrice: unit,
		LineTotal: total,
	}
}

func toTotalsResponse(t model.Totals) dto.TotalsResponse {
	return dto.TotalsResponse{
		Subtotal:     t.Subtotal.StringFixed(2),
		ShippingCost: t.ShippingCost.StringFixed(2),
		Tax:          t.Tax.StringFixed(2),
		Total:        t.Total.StringFixed(2),
	}
}

func toDraftResponse(d *model.Draft) dto.DraftResponse {
	lines := make([]dto.LineResponse, 0, len(d.Cart))
	for _, l := range d.Cart {
		lines = append(lines, toLineResponse(l.Item, l.Name, l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal().StringFixed(2)))
	}
	return dto.DraftResponse{
		ReservationNumber: d.ReservationNumber,
		Lines:             lines,
		Totals:            toTotalsResponse(d.Totals),
		Currency:          d.Currency,
		ShippingType:      string(d.Shipping.Type),
		CreatedAt:         d.CreatedAt,
		ExpiresAt:         d.ExpiresAt,
		Converted:         d.Converted(),
	}
}

func toOrderResponse(o *model.Order) dto.OrderResponse {
	lines := make([]dto.LineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, toLineResponse(l.Item, l.Name, l.Quantity, l.UnitPrice.StringFixed(2), l.LineTotal.StringFixed(2)))
	}
	history := make([]dto.StatusEntryResponse, 0, len(o.History))
	for _, h := range o.History {
		history = append(history, dto.StatusEntryResponse{
			Status:    string(h.Status),
			Note:      h.Note,
			ChangedBy: h.ChangedBy,
			At:        h.At,
		})
	}
	return dto.OrderResponse{
		Number:    o.Number,
		Status:    string(o.Status),
		Lines:     lines,
		Totals:    toTotalsResponse(o.Totals),
		Currency:  o.Currency,
		History:   history,
		CreatedAt: o.CreatedAt,
	}
}

func toPaymentResponse(p model.Payment) dto.PaymentResponse {
	return dto.PaymentResponse{
		Channel:     string(p.Channel),
		Status:      string(p.Status),
		Amount:      p.Amount.StringFixed(2),
		Currency:    p.Currency,
		ConfirmedAt: p.ConfirmedAt,
		CreatedAt:   p.CreatedAt,
	}
}

func toStatusResponse(v *model.StatusView) dto.StatusResponse {
	resp := dto.StatusResponse{
		Kind:       string(v.Kind),
		Reference:  v.Reference,
		DraftState: string(v.DraftState),
	}
	if v.Draft != nil {
		d := toDraftResponse(v.Draft)
		resp.Draft = &d
	}
	if v.Order != nil {
		o := toOrderResponse(v.Order)
		resp.Order = &o
	}
	for _, p := range v.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(p))
	}
	return resp
}
