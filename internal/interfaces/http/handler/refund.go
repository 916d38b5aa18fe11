package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/interfaces/http/dto"
)

// RefundHandler serves refunds
type RefundHandler struct {
	BaseHandler
	refunds         *appfinance.RefundService
	defaultCurrency valueobject.Currency
}

// NewRefundHandler creates a new RefundHandler
func NewRefundHandler(refunds *appfinance.RefundService, defaultCurrency valueobject.Currency) *RefundHandler {
	if defaultCurrency == "" {
		defaultCurrency = valueobject.DefaultCurrency
	}
	return &RefundHandler{refunds: refunds, defaultCurrency: defaultCurrency}
}

// Create godoc
// @ID           createRefund
// @Summary      Open a refund
// @Description  Opens a pending refund
// @Tags         refunds
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateRefundRequest true "Refund request"
// @Success      201 {object} APIResponse[dto.RefundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /refunds [post]
func (h *RefundHandler) Create(c *gin.Context) {
	var req dto.CreateRefundRequest
	if !h.bindJSON(c, &req) {
		return
	}
	in := appfinance.CreateRefundInput{
		TransactionID: uuid.MustParse(req.TransactionID),
		Reason:        req.Reason,
	}
	var err error
	if req.Amount != "" {
		if in.Amount, err = dto.ParseMoney(req.Amount, req.Currency, h.defaultCurrency); err != nil {
			h.HandleError(c, err)
			return
		}
	}
	if req.Charge != "" {
		if in.Charge, err = dto.ParseMoney(req.Charge, req.Currency, h.defaultCurrency); err != nil {
			h.HandleError(c, err)
			return
		}
	}

	refund, err := h.refunds.CreateRefund(c.Request.Context(), in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToRefundResponse(refund))
}

// Get godoc
// @ID           getRefund
// @Summary      Get a refund
// @Description  Returns one refund
// @Tags         refunds
// @Produce      json
// @Param        id path string true "Refund ID" format(uuid)
// @Success      200 {object} APIResponse[dto.RefundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /refunds/{id} [get]
func (h *RefundHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	refund, err := h.refunds.GetRefund(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToRefundResponse(refund))
}

// List godoc
// @ID           listRefunds
// @Summary      List refunds
// @Description  Pages through refunds in a status, pending by default
// @Tags         refunds
// @Produce      json
// @Param        status query string false "Refund status" Enums(pending, approved, completed, rejected) default(pending)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]dto.RefundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /refunds [get]
func (h *RefundHandler) List(c *gin.Context) {
	status := finance.RefundStatusPending
	if raw := c.Query("status"); raw != "" {
		status = finance.RefundStatus(raw)
		if !status.IsValid() {
			h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, "Unknown refund status: "+raw)
			return
		}
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	page, err := h.refunds.ListRefunds(c.Request.Context(), status, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, dto.ToRefundResponses(page.Items), page)
}

// Approve godoc
// @ID           approveRefund
// @Summary      Approve a refund
// @Description  Posts the compensating entry and completes the refund
// @Tags         refunds
// @Produce      json
// @Param        id path string true "Refund ID" format(uuid)
// @Success      200 {object} APIResponse[dto.RefundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /refunds/{id}/approve [post]
func (h *RefundHandler) Approve(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	refund, err := h.refunds.Approve(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToRefundResponse(refund))
}

// Reject godoc
// @ID           rejectRefund
// @Summary      Reject a refund
// @Description  Closes a pending refund without moving money
// @Tags         refunds
// @Accept       json
// @Produce      json
// @Param        id path string true "Refund ID" format(uuid)
// @Param        request body dto.RejectRefundRequest false "Rejection reason"
// @Success      200 {object} APIResponse[dto.RefundResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /refunds/{id}/reject [post]
func (h *RefundHandler) Reject(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RejectRefundRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}
	refund, err := h.refunds.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToRefundResponse(refund))
}
