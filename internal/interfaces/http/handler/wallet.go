package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/interfaces/http/dto"
)

// WalletHandler serves wallets and their postings
type WalletHandler struct {
	BaseHandler
	wallets         *appfinance.WalletService
	defaultCurrency valueobject.Currency
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(wallets *appfinance.WalletService, defaultCurrency valueobject.Currency) *WalletHandler {
	if defaultCurrency == "" {
		defaultCurrency = valueobject.DefaultCurrency
	}
	return &WalletHandler{wallets: wallets, defaultCurrency: defaultCurrency}
}

// Create godoc
// @ID           createWallet
// @Summary      Open a wallet
// @Description  Returns the owner's wallet in a currency, opening it if needed
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateWalletRequest true "Wallet request"
// @Success      201 {object} APIResponse[dto.WalletResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /wallets [post]
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if !h.bindJSON(c, &req) {
		return
	}
	currency := h.defaultCurrency
	if req.Currency != "" {
		currency = valueobject.Currency(strings.ToUpper(req.Currency))
	}
	wallet, err := h.wallets.GetOrCreateWallet(c.Request.Context(), uuid.MustParse(req.OwnerID), currency)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToWalletResponse(wallet))
}

// Get godoc
// @ID           getWallet
// @Summary      Get a wallet
// @Description  Returns a wallet with its balance
// @Tags         wallets
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Success      200 {object} APIResponse[dto.WalletResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /wallets/{id} [get]
func (h *WalletHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	wallet, err := h.wallets.GetWallet(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToWalletResponse(wallet))
}

// Balance godoc
// @ID           getWalletBalance
// @Summary      Get a wallet balance
// @Description  Returns only the balance
// @Tags         wallets
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Success      200 {object} APIResponse[BalanceData]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /wallets/{id}/balance [get]
func (h *WalletHandler) Balance(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	balance, err := h.wallets.GetBalance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, balance)
}

// ListTransactions godoc
// @ID           listWalletTransactions
// @Summary      List wallet transactions
// @Description  Pages through a wallet's history, newest first
// @Tags         wallets
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]dto.TransactionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /wallets/{id}/transactions [get]
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	page, err := h.wallets.ListTransactions(c.Request.Context(), id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, dto.ToTransactionResponses(page.Items), page)
}

type postingFunc func(ctx context.Context, walletID uuid.UUID, amount valueobject.Money, reference, description string) (*appfinance.PostingResult, error)

// Credit godoc
// @ID           creditWallet
// @Summary      Credit a wallet
// @Description  Adds money to a wallet
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Param        request body dto.PostingRequest true "Posting request"
// @Success      201 {object} APIResponse[dto.PostingResponse]
// @Success      200 {object} APIResponse[dto.PostingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /wallets/{id}/credit [post]
func (h *WalletHandler) Credit(c *gin.Context) {
	h.post(c, h.wallets.Credit)
}

// Debit godoc
// @ID           debitWallet
// @Summary      Debit a wallet
// @Description  Takes money from a wallet
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Param        request body dto.PostingRequest true "Posting request"
// @Success      201 {object} APIResponse[dto.PostingResponse]
// @Success      200 {object} APIResponse[dto.PostingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /wallets/{id}/debit [post]
func (h *WalletHandler) Debit(c *gin.Context) {
	h.post(c, h.wallets.Debit)
}

// Hold godoc
// @ID           holdWallet
// @Summary      Place a pending debit
// @Description  Debits a wallet with a pending transaction that is later confirmed or failed
// @Tags         wallets
// @Accept       json
// @Produce      json
// @Param        id path string true "Wallet ID" format(uuid)
// @Param        request body dto.PostingRequest true "Posting request"
// @Success      201 {object} APIResponse[dto.PostingResponse]
// @Success      200 {object} APIResponse[dto.PostingResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /wallets/{id}/holds [post]
func (h *WalletHandler) Hold(c *gin.Context) {
	h.post(c, h.wallets.DebitPending)
}

// post runs a posting and answers 201 for a new transaction or 200 for a
// replayed reference
func (h *WalletHandler) post(c *gin.Context, apply postingFunc) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.PostingRequest
	if !h.bindJSON(c, &req) {
		return
	}
	wallet, err := h.wallets.GetWallet(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	amount, err := dto.ParseMoney(req.Amount, req.Currency, wallet.Currency)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	result, err := apply(c.Request.Context(), id, amount, req.Reference, req.Description)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	resp := dto.PostingResponse{
		Transaction: dto.ToTransactionResponse(result.Transaction),
		Created:     result.Created,
	}
	if result.Created {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}

// ConfirmTransaction godoc
// @ID           confirmTransaction
// @Summary      Confirm a pending debit
// @Description  Settles a pending debit
// @Tags         wallets
// @Produce      json
// @Param        id path string true "Transaction ID" format(uuid)
// @Success      200 {object} APIResponse[dto.TransactionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /transactions/{id}/confirm [post]
func (h *WalletHandler) ConfirmTransaction(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	tx, err := h.wallets.ConfirmTransaction(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToTransactionResponse(tx))
}

// FailTransaction godoc
// @ID           failTransaction
// @Summary      Fail a pending debit
// @Description  Fails a pending debit. The auto-refund sweep returns the money after the hold window
// @Tags         wallets
// @Produce      json
// @Param        id path string true "Transaction ID" format(uuid)
// @Success      200 {object} APIResponse[dto.TransactionResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /transactions/{id}/fail [post]
func (h *WalletHandler) FailTransaction(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	tx, err := h.wallets.FailTransaction(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToTransactionResponse(tx))
}
