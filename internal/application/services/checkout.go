package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
)

// CheckoutSettings are the merchant details shown on the checkout form.
type CheckoutSettings struct {
	KeyID          string
	GatewayID      int64
	PublicURL      string
	CompanyName    string
	CompanyLogoURL string
}

// CheckoutOptions is passed verbatim to the gateway's checkout script.
type CheckoutOptions struct {
	Key         string          `json:"key"`
	Amount      int64           `json:"amount"`
	Currency    string          `json:"currency"`
	Name        string          `json:"name"`
	Image       string          `json:"image,omitempty"`
	OrderID     string          `json:"order_id"`
	Description string          `json:"description"`
	Prefill     CheckoutPrefill `json:"prefill"`
}

type CheckoutPrefill struct {
	Email string `json:"email,omitempty"`
}

type CheckoutPage struct {
	Invoice     *domain.Invoice
	Order       *domain.Order
	Options     CheckoutOptions
	CallbackURL string
}

// OptionsJSON renders the checkout script options.
func (p *CheckoutPage) OptionsJSON() (string, error) {
	b, err := json.Marshal(p.Options)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type CheckoutService struct {
	ledger   application.Ledger
	orders   *OrderStore
	settings CheckoutSettings
}

func NewCheckoutService(ledger application.Ledger, orders *OrderStore, settings CheckoutSettings) *CheckoutService {
	return &CheckoutService{
		ledger:   ledger,
		orders:   orders,
		settings: settings,
	}
}

// Checkout prepares the payment form for an unpaid invoice, reusing the
// order already created for it in this session.
func (s *CheckoutService) Checkout(ctx context.Context, sessions application.SessionStore, invoiceID int64) (*CheckoutPage, error) {
	invoice, err := s.ledger.LoadInvoice(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, application.NewInternalError(err)
	}
	if invoice.Status == domain.InvoicePaid {
		return nil, application.NewInvalidStateError(errors.New("invoice is already paid"))
	}

	spec, err := invoice.OrderSpec()
	if err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	order, err := s.orders.GetOrCreate(ctx, sessions, invoice.IdempotencyKey(), spec)
	if err != nil {
		return nil, err
	}

	return &CheckoutPage{
		Invoice:     invoice,
		Order:       order,
		CallbackURL: s.CallbackURL(invoice, order.ID),
		Options: CheckoutOptions{
			Key:         s.settings.KeyID,
			Amount:      order.Amount,
			Currency:    order.Currency,
			Name:        s.settings.CompanyName,
			Image:       s.settings.CompanyLogoURL,
			OrderID:     order.ID,
			Description: invoice.Title(),
			Prefill:     CheckoutPrefill{Email: invoice.BuyerEmail},
		},
	}, nil
}

// CallbackURL is where the checkout form posts the payment confirmation.
func (s *CheckoutService) CallbackURL(invoice *domain.Invoice, orderID string) string {
	q := url.Values{}
	q.Set("bb_gateway_id", strconv.FormatInt(s.settings.GatewayID, 10))
	q.Set("rzp_order_id", orderID)
	q.Set("bb_invoice_id", strconv.FormatInt(invoice.ID, 10))
	q.Set("bb_invoice_hash", invoice.Hash)
	q.Set("bb_redirect", "1")
	return strings.TrimRight(s.settings.PublicURL, "/") + "/ipn?" + q.Encode()
}
