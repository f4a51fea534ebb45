package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	domainErrors "github.com/polkiloo/draftpay/internal/domain/errors"
	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/server/http/dto"
)

const (
	webhookAnswerField = "kr-answer"
	webhookHashField   = "kr-hash"
	unknownAckStatus   = "UNKNOWN"
)

// PaymentHandler serves payment sessions, browser confirmations and gateway webhooks.
type PaymentHandler struct {
	facade PaymentFacade
}

// NewPaymentHandler constructs PaymentHandler.
func NewPaymentHandler(facade PaymentFacade) *PaymentHandler {
	return &PaymentHandler{facade: facade}
}

// Session handles POST /api/payments/session/:reservation.
func (h *PaymentHandler) Session(c *gin.Context) {
	session, err := h.facade.PaymentSession(c.Request.Context(), c.Param("reservation"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SessionResponse{
		ReservationNumber: session.ReservationNumber,
		FormToken:         session.Token,
		PublicKey:         session.PublicKey,
		ExpiresAt:         session.ExpiresAt,
	})
}

// Confirm handles POST /api/payments/confirm from the browser.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.facade.ConfirmBrowserPayment(c.Request.Context(), req.ReservationNumber, req.TransactionID, req.Payload, req.Signature)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Webhook handles POST /api/payments/webhook. Outcomes a redelivery cannot
// change are acknowledged with 200 so the gateway stops retrying.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, signature, err := webhookFields(c)
	if err != nil || payload == "" || signature == "" {
		c.String(http.StatusBadRequest, "missing payment data")
		return
	}

	_, err = h.facade.ConfirmWebhookPayment(c.Request.Context(), payload, signature)
	switch {
	case err == nil,
		errors.Is(err, domainErrors.ErrPaymentNotSuccessful),
		errors.Is(err, domainErrors.ErrReservationExpired),
		errors.Is(err, domainErrors.ErrStockConflict),
		errors.Is(err, domainErrors.ErrAmountMismatch),
		errors.Is(err, domainErrors.ErrAlreadyConverted):
		if err != nil {
			_ = c.Error(err)
		}
		c.String(http.StatusOK, fmt.Sprintf("OK! OrderStatus is %s", ackStatus(payload)))
	case errors.Is(err, domainErrors.ErrValidation):
		_ = c.Error(err)
		c.String(http.StatusBadRequest, "invalid payment data")
	case errors.Is(err, domainErrors.ErrInvalidSignature):
		_ = c.Error(err)
		c.String(http.StatusForbidden, "invalid signature")
	case errors.Is(err, domainErrors.ErrNotFound):
		_ = c.Error(err)
		c.String(http.StatusNotFound, "unknown reservation")
	default:
		_ = c.Error(err)
		c.String(http.StatusInternalServerError, "retry later")
	}
}

// webhookFields reads either the form-encoded gateway notification or its JSON variant.
func webhookFields(c *gin.Context) (string, string, error) {
	if strings.HasPrefix(c.ContentType(), binding.MIMEJSON) {
		var req dto.WebhookRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return "", "", err
		}
		return req.Payload, req.Signature, nil
	}
	return c.PostForm(webhookAnswerField), c.PostForm(webhookHashField), nil
}

func ackStatus(payload string) string {
	answer, err := model.ParsePaymentAnswer([]byte(payload))
	if err != nil || answer.OrderStatus == "" {
		return unknownAckStatus
	}
	return string(answer.OrderStatus)
}
