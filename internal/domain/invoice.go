package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoicePaid   InvoiceStatus = "paid"
)

// Invoice is the host billing system's invoice. It is read-only to this service
// except for the paid status, which the ledger owns.
type Invoice struct {
	ID         int64
	ClientID   int64
	Serie      string
	Number     int64
	BuyerEmail string
	Currency   string
	// Total is the amount due including tax, in major units.
	Total      decimal.Decimal
	Hash       string
	Status     InvoiceStatus
	ItemTitles []string
}

// Reference is the receipt identifier sent to the gateway, e.g. "INV00042".
func (i *Invoice) Reference() string {
	return fmt.Sprintf("%s%05d", i.Serie, i.Number)
}

// Title describes the payment on the checkout form and in the order notes.
func (i *Invoice) Title() string {
	if len(i.ItemTitles) == 1 {
		return fmt.Sprintf("Payment for invoice %s [%s]", i.Reference(), i.ItemTitles[0])
	}
	return fmt.Sprintf("Payment for invoice %s", i.Reference())
}

func (i *Invoice) AmountInMinorUnits() int64 {
	return ToMinorUnits(i.Total)
}

func (i *Invoice) IdempotencyKey() IdempotencyKey {
	return NewIdempotencyKey(i.BuyerEmail, i.Serie, i.Number)
}

// OrderSpec builds the gateway order request for this invoice.
func (i *Invoice) OrderSpec() (OrderSpec, error) {
	amount := i.AmountInMinorUnits()
	if amount <= 0 {
		return OrderSpec{}, NewInvalidAmountError(i.Total.StringFixed(2))
	}
	if i.Currency == "" {
		return OrderSpec{}, NewMissingRequiredFieldError("currency")
	}
	return OrderSpec{
		Receipt:  i.Reference(),
		Amount:   amount,
		Currency: i.Currency,
		Notes:    map[string]string{"title": i.Title()},
	}, nil
}
