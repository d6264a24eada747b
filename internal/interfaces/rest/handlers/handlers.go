// Package handlers serves the buyer checkout flow, the payment callback and
// the operator endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/DanielPopoola/razorpay-reconciler/internal/metrics"
)

const sessionCookie = "checkout_session"

// TransactionReader is the part of the ledger the operator endpoints need.
type TransactionReader interface {
	OpenTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	LoadTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handlers struct {
	checkout  *services.CheckoutService
	reconcile *services.ReconciliationService
	ledger    TransactionReader
	sessions  application.SessionProvider
	pingers   map[string]Pinger
	gatewayID int64
	publicURL string
	logger    *slog.Logger
}

func NewHandlers(
	checkout *services.CheckoutService,
	reconcile *services.ReconciliationService,
	ledger TransactionReader,
	sessions application.SessionProvider,
	pingers map[string]Pinger,
	gatewayID int64,
	publicURL string,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		checkout:  checkout,
		reconcile: reconcile,
		ledger:    ledger,
		sessions:  sessions,
		pingers:   pingers,
		gatewayID: gatewayID,
		publicURL: publicURL,
		logger:    logger,
	}
}

// Register mounts every route on mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /invoices/{invoiceID}/checkout", h.Checkout)
	mux.HandleFunc("POST /ipn", h.IPN)
	mux.HandleFunc("GET /transactions/{transactionID}", h.GetTransaction)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /openapi.yaml", OpenAPIDocument)
	mux.Handle("GET /metrics", metrics.Handler())
}
