package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/server/http/dto"
	"github.com/polkiloo/draftpay/internal/server/http/middleware"
)

// OrderHandler manages order-related endpoints.
type OrderHandler struct {
	facade OrderFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Status handles GET /api/orders/status/:number for both draft and order numbers.
func (h *OrderHandler) Status(c *gin.Context) {
	view, err := h.facade.Status(c.Request.Context(), c.Param("number"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(view))
}

// List handles GET /api/user/orders.
func (h *OrderHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	orders, err := h.facade.Orders(c.Request.Context(), claims.UserID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if len(orders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	response := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		response = append(response, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, response)
}

// Cancel handles POST /api/user/orders/:number/cancel.
func (h *OrderHandler) Cancel(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}
	var req dto.CancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	order, err := h.facade.CancelOrder(c.Request.Context(), claims, c.Param("number"), req.Reason)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Advance handles PATCH /api/admin/orders/:number/status.
func (h *OrderHandler) Advance(c *gin.Context) {
	var req dto.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	order, err := h.facade.AdvanceOrder(c.Request.Context(), c.Param("number"), model.OrderStatus(req.Status), req.Note)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}
