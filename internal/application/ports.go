package application

import (
	"context"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// GatewayClient is the port for the remote payment gateway. Implementations
// return *GatewayError for every failure and never retry.
type GatewayClient interface {
	CreateOrder(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*domain.Order, error)
	FetchCharge(ctx context.Context, paymentID string) (*domain.Charge, error)
}

// Ledger is the port for the host billing system's invoice, transaction and
// client funds records.
type Ledger interface {
	LoadInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	LoadTransaction(ctx context.Context, id int64) (*domain.Transaction, error)
	// OpenTransaction finds or creates the transaction for one
	// (gateway, order, payment) notification.
	OpenTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error)
	StoreTransaction(ctx context.Context, tx *domain.Transaction) error

	// CreditBuyerAccount adds funds to the client balance. A second credit with
	// the same meta is a no-op.
	CreditBuyerAccount(ctx context.Context, clientID int64, amount decimal.Decimal, description string, meta domain.CreditMeta) error
	ApplyCreditsToInvoice(ctx context.Context, invoice *domain.Invoice) error
	ApplyBatchedCredits(ctx context.Context, clientID int64) error
}

// SessionStore caches gateway order ids for one checkout session.
type SessionStore interface {
	// Scope identifies the checkout session the store is bound to.
	Scope() string
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, orderID string) error
	Clear(ctx context.Context, key string) error
}

// SessionProvider hands out a SessionStore scoped to one checkout session.
type SessionProvider interface {
	Scoped(sessionID string) SessionStore
}

// TransactionLocker serializes work on a single transaction. The returned
// func releases the lock.
type TransactionLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// EventPublisher announces terminal reconciliation outcomes.
type EventPublisher interface {
	PublishOutcome(ctx context.Context, outcome *domain.Outcome) error
}
