package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appfinance "github.com/rentals/backend/internal/application/finance"
	"github.com/rentals/backend/internal/domain/finance"
	"github.com/rentals/backend/internal/domain/shared/valueobject"
	"github.com/rentals/backend/internal/interfaces/http/dto"
)

// InvoiceHandler serves invoices, their payments and tenant prepayments
type InvoiceHandler struct {
	BaseHandler
	settlement      *appfinance.SettlementService
	allocator       *appfinance.PrepaymentAllocator
	defaultCurrency valueobject.Currency
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(settlement *appfinance.SettlementService, allocator *appfinance.PrepaymentAllocator, defaultCurrency valueobject.Currency) *InvoiceHandler {
	if defaultCurrency == "" {
		defaultCurrency = valueobject.DefaultCurrency
	}
	return &InvoiceHandler{settlement: settlement, allocator: allocator, defaultCurrency: defaultCurrency}
}

// Create godoc
// @ID           createInvoice
// @Summary      Create an invoice
// @Description  Bills a tenant and applies any prepaid credit
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateInvoiceRequest true "Invoice request"
// @Success      201 {object} APIResponse[dto.CreateInvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}
	amount, err := dto.ParseMoney(req.Amount, req.Currency, h.defaultCurrency)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	due, err := dto.ParseDueDate(req.DueDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	kind := finance.InvoiceKindRent
	if req.Kind != "" {
		kind = finance.InvoiceKind(req.Kind)
	}

	result, err := h.settlement.CreateInvoice(c.Request.Context(), appfinance.CreateInvoiceInput{
		TenantID:    uuid.MustParse(req.TenantID),
		ApartmentID: dto.ParseOptionalUUID(req.ApartmentID),
		PropertyID:  dto.ParseOptionalUUID(req.PropertyID),
		Kind:        kind,
		Amount:      amount,
		DueDate:     due,
		Description: req.Description,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.CreateInvoiceResponse{
		Invoice:   dto.ToInvoiceResponse(result.Invoice),
		Allocated: result.Allocated.Amount().StringFixed(2),
	})
}

// Get godoc
// @ID           getInvoice
// @Summary      Get an invoice
// @Description  Returns one invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[dto.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.settlement.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToInvoiceResponse(invoice))
}

// List godoc
// @ID           listInvoices
// @Summary      List tenant invoices
// @Description  Pages through a tenant's invoices
// @Tags         invoices
// @Produce      json
// @Param        tenant_id query string true "Tenant ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} APIResponse[[]dto.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	tenantID, ok := h.queryID(c, "tenant_id")
	if !ok {
		return
	}
	filter, ok := h.listFilter(c)
	if !ok {
		return
	}
	page, err := h.settlement.ListInvoices(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	Page(c, dto.ToInvoiceResponses(page.Items), page)
}

// Cancel godoc
// @ID           cancelInvoice
// @Summary      Cancel an invoice
// @Description  Voids an unpaid invoice
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[dto.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id}/cancel [post]
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	invoice, err := h.settlement.CancelInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToInvoiceResponse(invoice))
}

// RecordPayment godoc
// @ID           recordInvoicePayment
// @Summary      Record an external payment
// @Description  Applies money received by gateway, transfer or cash. Replaying a reference answers 200 with the original payment
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body dto.RecordPaymentRequest true "Payment request"
// @Success      201 {object} APIResponse[dto.SettlementResponse]
// @Success      200 {object} APIResponse[dto.SettlementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id}/payments [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.RecordPaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	amount, err := dto.ParseMoney(req.Amount, req.Currency, h.defaultCurrency)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.settlement.ApplyPayment(c.Request.Context(), appfinance.ApplyPaymentInput{
		InvoiceID:    id,
		PayerID:      dto.ParseOptionalUUID(req.PayerID),
		Amount:       amount,
		Method:       finance.PaymentMethod(req.Method),
		Reference:    req.Reference,
		Channel:      req.Channel,
		Confirmation: req.Confirmation,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	payment := dto.ToPaymentResponse(result.Payment)
	resp := dto.SettlementResponse{
		Payment:   &payment,
		Invoice:   dto.ToInvoiceResponse(result.Invoice),
		Applied:   result.Applied.Amount().StringFixed(2),
		Remaining: result.Remaining.Amount().StringFixed(2),
		Duplicate: result.Duplicate,
	}
	if result.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// PayFromWallet godoc
// @ID           payInvoiceFromWallet
// @Summary      Pay an invoice from a wallet
// @Description  Settles an invoice from a wallet. Replaying a reference answers 200 with the original outcome
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body dto.PayFromWalletRequest true "Wallet payment request"
// @Success      201 {object} APIResponse[dto.SettlementResponse]
// @Success      200 {object} APIResponse[dto.SettlementResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id}/pay-from-wallet [post]
func (h *InvoiceHandler) PayFromWallet(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.PayFromWalletRequest
	if !h.bindJSON(c, &req) {
		return
	}
	amount, err := dto.ParseMoney(req.Amount, req.Currency, h.defaultCurrency)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.settlement.PayFromWallet(c.Request.Context(), appfinance.PayFromWalletInput{
		InvoiceID: id,
		WalletID:  uuid.MustParse(req.WalletID),
		Amount:    amount,
		Reference: req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.SettlementResponse{
		Invoice:   dto.ToInvoiceResponse(result.Invoice),
		Duplicate: result.Duplicate,
	}
	if result.Transaction != nil {
		tx := dto.ToTransactionResponse(result.Transaction)
		resp.Transaction = &tx
	}
	if result.Payment != nil {
		p := dto.ToPaymentResponse(result.Payment)
		resp.Payment = &p
	}
	if result.Duplicate {
		h.Success(c, resp)
		return
	}
	h.Created(c, resp)
}

// ListPayments godoc
// @ID           listInvoicePayments
// @Summary      List invoice payments
// @Description  Returns an invoice's payments, oldest first
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[[]dto.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id}/payments [get]
func (h *InvoiceHandler) ListPayments(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	payments, err := h.settlement.ListPayments(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToPaymentResponses(payments))
}

// FundPrepayment godoc
// @ID           fundPrepayment
// @Summary      Fund a tenant prepayment
// @Description  Adds prepaid credit for a tenant
// @Tags         prepayments
// @Accept       json
// @Produce      json
// @Param        request body dto.FundPrepaymentRequest true "Prepayment request"
// @Success      201 {object} APIResponse[dto.PrepaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /prepayments [post]
func (h *InvoiceHandler) FundPrepayment(c *gin.Context) {
	var req dto.FundPrepaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}
	amount, err := dto.ParseMoney(req.Amount, req.Currency, h.defaultCurrency)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	prepayment, err := h.settlement.FundPrepayment(c.Request.Context(), appfinance.FundPrepaymentInput{
		TenantID:  uuid.MustParse(req.TenantID),
		Amount:    amount,
		Reference: req.Reference,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, dto.ToPrepaymentResponse(prepayment))
}

// AllocatePrepayments godoc
// @ID           allocateInvoicePrepayments
// @Summary      Allocate prepaid credit to an invoice
// @Description  Applies prepaid credit funded after the invoice was created, oldest prepayment first
// @Tags         prepayments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body dto.AllocatePrepaymentsRequest true "Allocation request"
// @Success      200 {object} APIResponse[dto.CreateInvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id}/allocate-prepayments [post]
func (h *InvoiceHandler) AllocatePrepayments(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	var req dto.AllocatePrepaymentsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	result, err := h.allocator.Allocate(c.Request.Context(), uuid.MustParse(req.TenantID), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.CreateInvoiceResponse{
		Invoice:   dto.ToInvoiceResponse(result.Invoice),
		Allocated: result.Allocated.Amount().StringFixed(2),
	})
}

// ListPrepayments godoc
// @ID           listPrepayments
// @Summary      List tenant prepayments
// @Description  Returns a tenant's prepayments
// @Tags         prepayments
// @Produce      json
// @Param        tenant_id query string true "Tenant ID" format(uuid)
// @Success      200 {object} APIResponse[[]dto.PrepaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /prepayments [get]
func (h *InvoiceHandler) ListPrepayments(c *gin.Context) {
	tenantID, ok := h.queryID(c, "tenant_id")
	if !ok {
		return
	}
	prepayments, err := h.settlement.ListPrepayments(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.ToPrepaymentResponses(prepayments))
}
