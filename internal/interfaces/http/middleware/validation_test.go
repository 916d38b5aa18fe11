package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rentals/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationRequest struct {
	WalletID string `json:"wallet_id" binding:"required,uuid"`
	Method   string `json:"method" binding:"required,oneof=gateway cash"`
	Note     string `json:"note" binding:"max=5"`
	Ref      string `json:"reference" binding:"omitempty,ledger_ref"`
}

func validationRouter() *gin.Engine {
	SetupValidator()
	router := gin.New()
	router.Use(RequestID())
	router.POST("/test", func(c *gin.Context) {
		var req validationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})
	return router
}

func postValidation(t *testing.T, body string) (int, dto.Response) {
	t.Helper()
	w := httptest.NewRecorder()
	validationRouter().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body)))
	var resp dto.Response
	if w.Code != http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func TestHandleValidationError_FieldDetails(t *testing.T) {
	code, resp := postValidation(t, `{"wallet_id":"nope","method":"card","note":"too long"}`)

	require.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)

	byField := map[string]string{}
	for _, d := range resp.Error.Details {
		byField[d.Field] = d.Message
	}
	assert.Equal(t, "Invalid UUID format", byField["wallet_id"])
	assert.Equal(t, "Must be one of: gateway cash", byField["method"])
	assert.Equal(t, "Must be at most 5 characters", byField["note"])
}

func TestHandleValidationError_Required(t *testing.T) {
	code, resp := postValidation(t, `{}`)

	require.Equal(t, http.StatusBadRequest, code)
	require.Len(t, resp.Error.Details, 2)
	for _, d := range resp.Error.Details {
		assert.Equal(t, "This field is required", d.Message)
	}
}

func TestHandleValidationError_MalformedJSON(t *testing.T) {
	code, resp := postValidation(t, `{"wallet_id":`)

	require.Equal(t, http.StatusBadRequest, code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "body", resp.Error.Details[0].Field)
}

func TestHandleValidationError_Valid(t *testing.T) {
	code, _ := postValidation(t, `{"wallet_id":"3f1c1d2e-8a55-4d8c-9f34-6f0a4b7c2e11","method":"cash"}`)
	assert.Equal(t, http.StatusOK, code)
}

func TestHandleValidationError_LedgerRef(t *testing.T) {
	const wallet = `"wallet_id":"3f1c1d2e-8a55-4d8c-9f34-6f0a4b7c2e11","method":"cash"`
	for _, ref := range []string{"PSK_1", "deposit-42", "late_fee:abc", "T.9=x"} {
		code, _ := postValidation(t, `{`+wallet+`,"reference":"`+ref+`"}`)
		assert.Equal(t, http.StatusOK, code, ref)
	}

	for _, ref := range []string{"dep 1", "-leading", "tab\t"} {
		code, resp := postValidation(t, `{`+wallet+`,"reference":"`+ref+`"}`)
		require.Equal(t, http.StatusBadRequest, code, ref)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "reference", resp.Error.Details[0].Field)
	}
}
