package handler_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeHandler_ConfigAndQuote(t *testing.T) {
	api := newTestAPI(t)

	// no config means no fee
	w, resp := api.do(http.MethodGet, "/api/v1/fees/quote?channel=paystack&amount=5000", nil)
	require.Equal(t, http.StatusOK, w.Code)
	quote := decode[dto.FeeQuoteResponse](t, resp)
	assert.Equal(t, "0.00", quote.Fee)
	assert.Equal(t, "5000.00", quote.Net)

	w, resp = api.do(http.MethodPut, "/api/v1/fees/configs", dto.UpsertFeeConfigRequest{
		Channel: " Paystack ", Percentage: "1.5", FixedAmount: "100",
	})
	require.Equal(t, http.StatusOK, w.Code)
	cfg := decode[dto.FeeConfigResponse](t, resp)
	assert.Equal(t, "paystack", cfg.Channel)
	assert.Equal(t, "100.00", cfg.FixedAmount)
	assert.True(t, cfg.Active)

	_, resp = api.do(http.MethodGet, "/api/v1/fees/quote?channel=PAYSTACK&amount=5000", nil)
	quote = decode[dto.FeeQuoteResponse](t, resp)
	assert.Equal(t, "paystack", quote.Channel)
	assert.Equal(t, "NGN", quote.Currency)
	assert.Equal(t, "5000.00", quote.Gross)
	assert.Equal(t, "175.00", quote.Fee)
	assert.Equal(t, "4825.00", quote.Net)

	// replacing the rule leaves a single active config
	api.do(http.MethodPut, "/api/v1/fees/configs", dto.UpsertFeeConfigRequest{Channel: "paystack", Percentage: "2"})
	_, resp = api.do(http.MethodGet, "/api/v1/fees/quote?channel=paystack&amount=5000", nil)
	assert.Equal(t, "100.00", decode[dto.FeeQuoteResponse](t, resp).Fee)
}

func TestFeeHandler_ConfigValidation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		req  dto.UpsertFeeConfigRequest
	}{
		{"percentage above 100", dto.UpsertFeeConfigRequest{Channel: "paystack", Percentage: "101"}},
		{"negative fixed", dto.UpsertFeeConfigRequest{Channel: "paystack", Percentage: "1", FixedAmount: "-1"}},
		{"not a number", dto.UpsertFeeConfigRequest{Channel: "paystack", Percentage: "abc"}},
		{"missing channel", dto.UpsertFeeConfigRequest{Percentage: "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := api.do(http.MethodPut, "/api/v1/fees/configs", tt.req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.False(t, resp.Success)
		})
	}

	w, _ := api.do(http.MethodGet, "/api/v1/fees/quote?channel=paystack", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeeHandler_LateFeeRule(t *testing.T) {
	api := newTestAPI(t)
	property := uuid.New()
	path := "/api/v1/properties/" + property.String() + "/late-fee-rule"

	w, resp := api.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)

	w, resp = api.do(http.MethodPut, path, dto.UpsertLateFeeRuleRequest{
		Enabled: true, GraceDays: 5, Percentage: "5", FixedAmount: "250",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, property, decode[dto.LateFeeRuleResponse](t, resp).PropertyID)

	w, resp = api.do(http.MethodPut, path, dto.UpsertLateFeeRuleRequest{Enabled: false, GraceDays: 3})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = api.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rule := decode[dto.LateFeeRuleResponse](t, resp)
	assert.False(t, rule.Enabled)
	assert.Equal(t, 3, rule.GraceDays)
	assert.Equal(t, "0.00", rule.FixedAmount)

	w, _ = api.do(http.MethodPut, path, dto.UpsertLateFeeRuleRequest{Enabled: true, Percentage: "-2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
