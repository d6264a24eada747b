package services_test

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services/testhelpers"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var checkoutSettings = services.CheckoutSettings{
	KeyID:          "rzp_test_key",
	GatewayID:      testhelpers.TestGatewayID,
	PublicURL:      "https://billing.example.com/",
	CompanyName:    "Example Hosting",
	CompanyLogoURL: "https://billing.example.com/logo.png",
}

func newCheckout(t *testing.T) (*services.CheckoutService, *testhelpers.MemoryLedger, *testhelpers.MockGatewayClient) {
	ledger := testhelpers.NewMemoryLedger()
	gw := testhelpers.NewMockGatewayClient(t)
	orders := services.NewOrderStore(gw, discardLogger())
	return services.NewCheckoutService(ledger, orders, checkoutSettings), ledger, gw
}

func TestCheckout_BuildsPaymentForm(t *testing.T) {
	svc, ledger, gw := newCheckout(t)
	inv := testhelpers.DefaultInvoice()
	inv.ID = 7
	ledger.AddInvoice(inv)
	spec, _ := inv.OrderSpec()

	gw.On("CreateOrder", mock.Anything, spec).Return(orderFor("order_1", spec), nil).Once()

	page, err := svc.Checkout(context.Background(), session.NewMemoryStore(time.Hour).Scoped("s1"), inv.ID)
	require.NoError(t, err)

	assert.Equal(t, "INV00042", spec.Receipt)
	assert.Equal(t, int64(25000), spec.Amount)
	assert.Equal(t, "Payment for invoice INV00042 [Hosting plan]", spec.Notes["title"])

	opts := page.Options
	assert.Equal(t, "rzp_test_key", opts.Key)
	assert.Equal(t, int64(25000), opts.Amount)
	assert.Equal(t, "INR", opts.Currency)
	assert.Equal(t, "order_1", opts.OrderID)
	assert.Equal(t, "Example Hosting", opts.Name)
	assert.Equal(t, "buyer@example.com", opts.Prefill.Email)
	assert.Equal(t, inv.Title(), opts.Description)

	raw, err := page.OptionsJSON()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, "order_1", decoded["order_id"])
	assert.Equal(t, map[string]any{"email": "buyer@example.com"}, decoded["prefill"])
}

func TestCheckout_CallbackURL(t *testing.T) {
	svc, _, _ := newCheckout(t)
	inv := testhelpers.DefaultInvoice()
	inv.ID = 7

	raw := svc.CallbackURL(inv, "order_1")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "billing.example.com", u.Host)
	assert.Equal(t, "/ipn", u.Path)

	q := u.Query()
	assert.Equal(t, "1", q.Get("bb_gateway_id"))
	assert.Equal(t, "order_1", q.Get("rzp_order_id"))
	assert.Equal(t, "7", q.Get("bb_invoice_id"))
	assert.Equal(t, "5f2b1c0e9d", q.Get("bb_invoice_hash"))
	assert.Equal(t, "1", q.Get("bb_redirect"))
}

func TestCheckout_ReusesOrderAcrossRenders(t *testing.T) {
	svc, ledger, gw := newCheckout(t)
	inv := testhelpers.DefaultInvoice()
	inv.ID = 7
	ledger.AddInvoice(inv)
	spec, _ := inv.OrderSpec()
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")

	gw.On("CreateOrder", mock.Anything, spec).Return(orderFor("order_1", spec), nil).Once()
	gw.On("FetchOrder", mock.Anything, "order_1").Return(orderFor("order_1", spec), nil).Once()

	first, err := svc.Checkout(context.Background(), sessions, inv.ID)
	require.NoError(t, err)
	second, err := svc.Checkout(context.Background(), sessions, inv.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.CallbackURL, second.CallbackURL)
}

func TestCheckout_RejectsPaidInvoice(t *testing.T) {
	svc, ledger, _ := newCheckout(t)
	inv := testhelpers.DefaultInvoice()
	inv.ID = 7
	inv.Status = domain.InvoicePaid
	ledger.AddInvoice(inv)

	_, err := svc.Checkout(context.Background(), session.NewMemoryStore(time.Hour).Scoped("s1"), inv.ID)

	svcErr, ok := application.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, application.ErrCodeInvalidState, svcErr.Code)
}

func TestCheckout_UnknownInvoice(t *testing.T) {
	svc, _, _ := newCheckout(t)

	_, err := svc.Checkout(context.Background(), session.NewMemoryStore(time.Hour).Scoped("s1"), 404)

	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}
