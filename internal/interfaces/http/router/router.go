// Package router wires the ledger handlers onto a gin engine.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	_ "github.com/rentals/backend/docs"
	"github.com/rentals/backend/internal/interfaces/http/handler"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouteRegistrar mounts its routes on the versioned API group
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts registrars under /api/<version>
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

type RouterOption func(*Router)

func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Register(registrars ...RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrars...)
	return r
}

// Setup mounts everything registered so far
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, reg := range r.registrars {
		reg.RegisterRoutes(api)
	}
}

// RegisterSwagger serves the API documentation UI and doc.json under
// /swagger. It sits outside the versioned group and is not throttled.
func RegisterSwagger(engine *gin.Engine) {
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Resource is the routes of one ledger resource under a common prefix,
// with middleware that applies to those routes only.
type Resource struct {
	prefix     string
	middleware []gin.HandlerFunc
	routes     []route
}

type route struct {
	method, path string
	handler      gin.HandlerFunc
}

func NewResource(prefix string) *Resource {
	return &Resource{prefix: prefix}
}

// Use adds middleware; nil entries are ignored
func (res *Resource) Use(middleware ...gin.HandlerFunc) *Resource {
	for _, m := range middleware {
		if m != nil {
			res.middleware = append(res.middleware, m)
		}
	}
	return res
}

func (res *Resource) add(method, path string, h gin.HandlerFunc) *Resource {
	res.routes = append(res.routes, route{method: method, path: path, handler: h})
	return res
}

func (res *Resource) GET(path string, h gin.HandlerFunc) *Resource {
	return res.add(http.MethodGet, path, h)
}

func (res *Resource) POST(path string, h gin.HandlerFunc) *Resource {
	return res.add(http.MethodPost, path, h)
}

func (res *Resource) PUT(path string, h gin.HandlerFunc) *Resource {
	return res.add(http.MethodPut, path, h)
}

func (res *Resource) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(res.prefix, res.middleware...)
	for _, r := range res.routes {
		group.Handle(r.method, r.path, r.handler)
	}
}

// Handlers are the ledger API handlers. A nil handler leaves its routes
// unregistered.
type Handlers struct {
	Webhook *handler.WebhookHandler
	Wallet  *handler.WalletHandler
	Invoice *handler.InvoiceHandler
	Refund  *handler.RefundHandler
	Fee     *handler.FeeHandler
	Audit   *handler.AuditHandler
	Job     *handler.JobHandler
	System  *handler.SystemHandler

	// Throttle, when set, guards every resource except the gateway
	// webhook. A throttled delivery would only be retried later and
	// delay settlement.
	Throttle gin.HandlerFunc
}

// LedgerGroups builds the resources of the ledger API
func LedgerGroups(h Handlers) []RouteRegistrar {
	var groups []RouteRegistrar
	add := func(resources ...*Resource) {
		for _, res := range resources {
			groups = append(groups, res.Use(h.Throttle))
		}
	}

	if h.Webhook != nil {
		groups = append(groups, NewResource("/webhooks").
			POST("/paystack", h.Webhook.HandlePaystack))
	}
	if h.Wallet != nil {
		add(
			NewResource("/wallets").
				POST("", h.Wallet.Create).
				GET("/:id", h.Wallet.Get).
				GET("/:id/balance", h.Wallet.Balance).
				GET("/:id/transactions", h.Wallet.ListTransactions).
				POST("/:id/credit", h.Wallet.Credit).
				POST("/:id/debit", h.Wallet.Debit).
				POST("/:id/holds", h.Wallet.Hold),
			NewResource("/transactions").
				POST("/:id/confirm", h.Wallet.ConfirmTransaction).
				POST("/:id/fail", h.Wallet.FailTransaction),
		)
	}
	if h.Invoice != nil {
		add(
			NewResource("/invoices").
				POST("", h.Invoice.Create).
				GET("", h.Invoice.List).
				GET("/:id", h.Invoice.Get).
				POST("/:id/cancel", h.Invoice.Cancel).
				GET("/:id/payments", h.Invoice.ListPayments).
				POST("/:id/payments", h.Invoice.RecordPayment).
				POST("/:id/pay-from-wallet", h.Invoice.PayFromWallet).
				POST("/:id/allocate-prepayments", h.Invoice.AllocatePrepayments),
			NewResource("/prepayments").
				POST("", h.Invoice.FundPrepayment).
				GET("", h.Invoice.ListPrepayments),
		)
	}
	if h.Refund != nil {
		add(NewResource("/refunds").
			POST("", h.Refund.Create).
			GET("", h.Refund.List).
			GET("/:id", h.Refund.Get).
			POST("/:id/approve", h.Refund.Approve).
			POST("/:id/reject", h.Refund.Reject))
	}
	if h.Fee != nil {
		add(
			NewResource("/fees").
				PUT("/configs", h.Fee.UpsertConfig).
				GET("/quote", h.Fee.Quote),
			NewResource("/properties").
				GET("/:id/late-fee-rule", h.Fee.GetLateFeeRule).
				PUT("/:id/late-fee-rule", h.Fee.UpsertLateFeeRule),
		)
	}
	if h.Audit != nil {
		add(NewResource("/audits").GET("", h.Audit.ListByReference))
	}
	if h.Job != nil {
		add(NewResource("/jobs").
			GET("", h.Job.List).
			POST("/:name/run", h.Job.Run))
	}
	if h.System != nil {
		add(NewResource("/system").
			GET("/ping", h.System.Ping).
			GET("/info", h.System.GetSystemInfo))
	}
	return groups
}
