package handler_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/rentals/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletHandler_CreateAndGet(t *testing.T) {
	api := newTestAPI(t)
	owner := uuid.New()

	w, resp := api.do(http.MethodPost, "/api/v1/wallets", map[string]string{"owner_id": owner.String(), "currency": "ngn"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[dto.WalletResponse](t, resp)
	assert.Equal(t, owner, created.OwnerID)
	assert.Equal(t, "NGN", created.Currency)
	assert.Equal(t, "0.00", created.Balance)

	// the same owner and currency converge on one wallet
	_, resp = api.do(http.MethodPost, "/api/v1/wallets", map[string]string{"owner_id": owner.String()})
	assert.Equal(t, created.ID, decode[dto.WalletResponse](t, resp).ID)

	w, resp = api.do(http.MethodGet, "/api/v1/wallets/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[dto.WalletResponse](t, resp).ID)
}

func TestWalletHandler_Errors(t *testing.T) {
	api := newTestAPI(t)

	t.Run("invalid id", func(t *testing.T) {
		w, resp := api.do(http.MethodGet, "/api/v1/wallets/not-a-uuid", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
		assert.NotEmpty(t, resp.Error.RequestID)
	})

	t.Run("unknown wallet", func(t *testing.T) {
		w, resp := api.do(http.MethodGet, "/api/v1/wallets/"+uuid.NewString(), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("validation", func(t *testing.T) {
		w, resp := api.do(http.MethodPost, "/api/v1/wallets", map[string]string{"owner_id": "nope"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	})
}

func TestWalletHandler_Postings(t *testing.T) {
	api := newTestAPI(t)
	wallet := api.wallet(uuid.New())
	base := "/api/v1/wallets/" + wallet.ID.String()

	w, resp := api.do(http.MethodPost, base+"/credit", dto.PostingRequest{Amount: "1500.50", Reference: "dep-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	posting := decode[dto.PostingResponse](t, resp)
	assert.True(t, posting.Created)
	assert.Equal(t, "1500.50", posting.Transaction.Amount)
	assert.Equal(t, "1500.50", posting.Transaction.BalanceAfter)

	t.Run("replayed reference returns the original posting", func(t *testing.T) {
		w, resp := api.do(http.MethodPost, base+"/credit", dto.PostingRequest{Amount: "1500.50", Reference: "dep-1"})
		require.Equal(t, http.StatusOK, w.Code)
		replay := decode[dto.PostingResponse](t, resp)
		assert.False(t, replay.Created)
		assert.Equal(t, posting.Transaction.ID, replay.Transaction.ID)
	})

	t.Run("debit", func(t *testing.T) {
		w, resp := api.do(http.MethodPost, base+"/debit", dto.PostingRequest{Amount: "500.50", Reference: "wd-1"})
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "1000.00", decode[dto.PostingResponse](t, resp).Transaction.BalanceAfter)
	})

	t.Run("overdraft is refused", func(t *testing.T) {
		w, resp := api.do(http.MethodPost, base+"/debit", dto.PostingRequest{Amount: "1000.01", Reference: "wd-2"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInsufficientFunds, resp.Error.Code)
	})

	t.Run("foreign currency is refused", func(t *testing.T) {
		w, resp := api.do(http.MethodPost, base+"/credit", dto.PostingRequest{Amount: "10", Currency: "USD", Reference: "fx-1"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeCurrencyMismatch, resp.Error.Code)
	})

	t.Run("bad amount", func(t *testing.T) {
		w, resp := api.do(http.MethodPost, base+"/credit", dto.PostingRequest{Amount: "ten", Reference: "bad-1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
	})

	t.Run("balance and history", func(t *testing.T) {
		w, resp := api.do(http.MethodGet, base+"/balance", nil)
		require.Equal(t, http.StatusOK, w.Code)
		balance := decode[map[string]string](t, resp)
		assert.Equal(t, "1000.00", balance["amount"])
		assert.Equal(t, "NGN", balance["currency"])

		w, resp = api.do(http.MethodGet, base+"/transactions?page=1&page_size=1", nil)
		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(2), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.TotalPages)
		assert.Len(t, decode[[]dto.TransactionResponse](t, resp), 1)
	})
}

func TestWalletHandler_HoldLifecycle(t *testing.T) {
	api := newTestAPI(t)
	wallet := api.wallet(uuid.New())
	api.fund(wallet.ID, "1000", "seed-1")
	base := "/api/v1/wallets/" + wallet.ID.String()

	w, resp := api.do(http.MethodPost, base+"/holds", dto.PostingRequest{Amount: "400", Reference: "payout-1"})
	require.Equal(t, http.StatusCreated, w.Code)
	hold := decode[dto.PostingResponse](t, resp).Transaction
	assert.Equal(t, "pending", hold.Status)

	w, resp = api.do(http.MethodPost, "/api/v1/transactions/"+hold.ID.String()+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", decode[dto.TransactionResponse](t, resp).Status)

	// a settled transaction cannot be failed afterwards
	w, resp = api.do(http.MethodPost, "/api/v1/transactions/"+hold.ID.String()+"/fail", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, resp.Error.Code)
}
