package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/interfaces/http/dto"
)

// FeeHandler serves channel fee configs, fee quotes and late fee rules
type FeeHandler struct {
	BaseHandler
	fees            *appfinance.FeeService
	lateFees        *appfinance.LateFeeService
	defaultCurrency valueobject.Currency
}

// NewFeeHandler creates a new FeeHandler
func NewFeeHandler(fees *appfinance.FeeService, lateFees *appfinance.LateFeeService, defaultCurrency valueobject.Currency) *FeeHandler {
	if defaultCurrency == "" {
		defaultCurrency = valueobject.DefaultCurrency
	}
	return &FeeHandler{fees: fees, lateFees: lateFees, defaultCurrency: defaultCurrency}
}

// UpsertConfig godoc
// @ID           upsertFeeConfig
// @Summary      Set a channel fee rule
// @Description  Replaces a channel's active fee rule
// @Tags         fees
// @Accept       json
// @Produce      json
// @Param        request body dto.UpsertFeeConfigRequest true "Fee rule"
// @Success      200 {object} APIResponse[dto.FeeConfigResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /fees/configs [put]
func (h *FeeHandler) UpsertConfig(c *gin.Context) {
	var req dto.UpsertFeeConfigRequest
	if !h.bindJSON(c, &req) {
		return
	}
	percentage, err := dto.ParseDecimal("percentage", req.Percentage)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	fixed, err := dto.ParseDecimal("fixed_amount", req.FixedAmount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	cfg, err := h.fees.UpsertFeeConfig(c.Request.Context(), appfinance.UpsertFeeConfigInput{
		Channel:     strings.TrimSpace(req.Channel),
		Percentage:  percentage,
		FixedAmount: fixed,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToFeeConfigResponse(cfg))
}

// Quote godoc
// @ID           quoteFee
// @Summary      Quote a channel fee
// @Description  Returns the fee split a channel would apply to an amount
// @Tags         fees
// @Produce      json
// @Param        channel query string true "Payment channel"
// @Param        amount query string true "Gross amount"
// @Param        currency query string false "Currency code"
// @Success      200 {object} APIResponse[dto.FeeQuoteResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /fees/quote [get]
func (h *FeeHandler) Quote(c *gin.Context) {
	var req dto.FeeQuoteRequest
	if !h.bindQuery(c, &req) {
		return
	}
	gross, err := dto.ParseMoney(req.Amount, req.Currency, h.defaultCurrency)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	split, err := h.fees.ComputeFee(c.Request.Context(), req.Channel, gross)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToFeeQuoteResponse(req.Channel, split))
}

// GetLateFeeRule godoc
// @ID           getLateFeeRule
// @Summary      Get a property late fee rule
// @Description  Returns a property's late fee policy
// @Tags         fees
// @Produce      json
// @Param        id path string true "Property ID" format(uuid)
// @Success      200 {object} APIResponse[dto.LateFeeRuleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /properties/{id}/late-fee-rule [get]
func (h *FeeHandler) GetLateFeeRule(c *gin.Context) {
	propertyID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	rule, err := h.lateFees.GetLateFeeRule(c.Request.Context(), propertyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToLateFeeRuleResponse(rule))
}

// UpsertLateFeeRule godoc
// @ID           upsertLateFeeRule
// @Summary      Set a property late fee rule
// @Description  Replaces a property's late fee policy
// @Tags         fees
// @Accept       json
// @Produce      json
// @Param        id path string true "Property ID" format(uuid)
// @Param        request body dto.UpsertLateFeeRuleRequest true "Late fee rule"
// @Success      200 {object} APIResponse[dto.LateFeeRuleResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /properties/{id}/late-fee-rule [put]
func (h *FeeHandler) UpsertLateFeeRule(c *gin.Context) {
	propertyID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpsertLateFeeRuleRequest
	if !h.bindJSON(c, &req) {
		return
	}
	percentage, err := dto.ParseDecimal("percentage", req.Percentage)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	fixed, err := dto.ParseDecimal("fixed_amount", req.FixedAmount)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	rule, err := h.lateFees.UpsertLateFeeRule(c.Request.Context(), appfinance.UpsertLateFeeRuleInput{
		PropertyID:  propertyID,
		Enabled:     req.Enabled,
		GraceDays:   req.GraceDays,
		Percentage:  percentage,
		FixedAmount: fixed,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToLateFeeRuleResponse(rule))
}
