package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/interfaces/http/dto"
)

// AuditHandler serves the transaction audit trail
type AuditHandler struct {
	BaseHandler
	audits *appfinance.AuditService
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(audits *appfinance.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// ListByReference godoc
// @ID           listAudits
// @Summary      List audit rows for a reference
// @Description  Returns every audit row written for a reference
// @Tags         audits
// @Produce      json
// @Param        reference query string true "Payment or posting reference"
// @Success      200 {object} APIResponse[[]dto.AuditResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /audits [get]
func (h *AuditHandler) ListByReference(c *gin.Context) {
	reference := strings.TrimSpace(c.Query("reference"))
	if reference == "" {
		h.BadRequest(c, "reference is required")
		return
	}
	audits, err := h.audits.ListByReference(c.Request.Context(), reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToAuditResponses(audits))
}
