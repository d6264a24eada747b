package testhelpers

import (
	"context"
	"sync"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	TestSecret    = "test_secret_key"
	TestGatewayID = int64(1)
)

// DefaultInvoice is the INR 250.00 single-item invoice used across tests.
func DefaultInvoice() *domain.Invoice {
	return &domain.Invoice{
		ClientID:   1,
		Serie:      "INV",
		Number:     42,
		BuyerEmail: "buyer@example.com",
		Currency:   "INR",
		Total:      decimal.RequireFromString("250.00"),
		Hash:       "5f2b1c0e9d",
		Status:     domain.InvoiceUnpaid,
		ItemTitles: []string{"Hosting plan"},
	}
}

func CapturedCharge(paymentID, orderID string, amount int64) *domain.Charge {
	return &domain.Charge{
		ID:       paymentID,
		OrderID:  orderID,
		Status:   domain.ChargeStatusCaptured,
		Method:   "card",
		Amount:   amount,
		Currency: "INR",
	}
}

// RecordingPublisher keeps every published outcome.
type RecordingPublisher struct {
	mu       sync.Mutex
	Outcomes []*domain.Outcome
}

func (p *RecordingPublisher) PublishOutcome(_ context.Context, o *domain.Outcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Outcomes = append(p.Outcomes, o)
	return nil
}

func (p *RecordingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Outcomes)
}
