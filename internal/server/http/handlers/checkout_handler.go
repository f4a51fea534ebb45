package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/draftpay/internal/domain/model"
	"github.com/polkiloo/draftpay/internal/server/http/dto"
	"github.com/polkiloo/draftpay/internal/server/http/middleware"
	"github.com/polkiloo/draftpay/internal/usecase"
)

// CheckoutHandler reserves carts as drafts.
type CheckoutHandler struct {
	facade CheckoutFacade
}

// NewCheckoutHandler constructs CheckoutHandler.
func NewCheckoutHandler(facade CheckoutFacade) *CheckoutHandler {
	return &CheckoutHandler{facade: facade}
}

// CreateDraft handles POST /api/checkout/drafts.
// Authenticated callers own the draft; everyone else checks out as a guest.
func (h *CheckoutHandler) CreateDraft(c *gin.Context) {
	var req dto.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	draft, err := h.facade.CreateDraft(c.Request.Context(), draftInput(c, req))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toDraftResponse(draft))
}

// Get handles GET /api/checkout/drafts/:reservation.
func (h *CheckoutHandler) Get(c *gin.Context) {
	draft, err := h.facade.Draft(c.Request.Context(), c.Param("reservation"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(draft))
}

func draftInput(c *gin.Context, req dto.CreateDraftRequest) usecase.CreateDraftInput {
	info := model.ContactInfo{
		FirstName:      strings.TrimSpace(req.Customer.FirstName),
		LastName:       strings.TrimSpace(req.Customer.LastName),
		Email:          strings.TrimSpace(req.Customer.Email),
		Phone:          strings.TrimSpace(req.Customer.Phone),
		DocumentType:   req.Customer.DocumentType,
		DocumentNumber: req.Customer.DocumentNumber,
	}

	var customer model.Customer = model.GuestCustomer{Info: info}
	if claims, ok := middleware.CurrentClaims(c); ok {
		customer = model.AuthenticatedCustomer{ID: claims.UserID, Info: info}
	}

	lines := make([]usecase.DraftLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, usecase.DraftLine{
			Item:     model.ItemRef{Kind: model.ItemKind(l.Kind), ID: l.ID},
			Quantity: l.Quantity,
		})
	}

	addr := req.Shipping.Address
	return usecase.CreateDraftInput{
		Customer: customer,
		Lines:    lines,
		Shipping: model.ShippingInfo{
			Type: model.ShippingType(req.Shipping.Type),
			Address: model.Address{
				Recipient:  addr.Recipient,
				Phone:      addr.Phone,
				Line:       addr.Line,
				District:   addr.District,
				City:       addr.City,
				PostalCode: addr.PostalCode,
			},
			DeliveryDate: req.Shipping.DeliveryDate,
			TimeSlot:     req.Shipping.TimeSlot,
			Notes:        req.Shipping.Notes,
		},
	}
}
