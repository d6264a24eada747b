// Package domain encodes invoices, gateway orders and charges, and the
// reconciliation state of a payment transaction.
package domain

import "time"

// OrderSpec is what we ask the gateway to create before any payment can happen.
type OrderSpec struct {
	Receipt  string
	Amount   int64
	Currency string
	Notes    map[string]string
}

// Order is a reference to a gateway-side order. The gateway owns it.
type Order struct {
	ID        string
	Amount    int64
	Currency  string
	Receipt   string
	Status    string
	CreatedAt time.Time
}

// Matches reports whether the order still describes the same payment as spec.
func (o *Order) Matches(spec OrderSpec) bool {
	return o.Amount == spec.Amount && o.Currency == spec.Currency
}

// PaymentConfirmation is posted back by the checkout form. Nothing in it is
// trusted until the signature has been verified.
type PaymentConfirmation struct {
	PaymentID string
	Signature string
	// OrderID is the order the payload claims to confirm. May be empty.
	OrderID string
}

const ChargeStatusCaptured = "captured"

// Charge is the gateway's authoritative record of a payment attempt.
type Charge struct {
	ID       string
	OrderID  string
	Status   string
	Method   string
	Amount   int64
	Currency string
}

func (c *Charge) IsCaptured() bool {
	return c.Status == ChargeStatusCaptured
}
