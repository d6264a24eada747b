package postgres

import (
	"time"
)

// Numeric columns travel as text so no precision is lost through float64.

type InvoiceModel struct {
	ID         int64
	ClientID   int64
	Serie      string
	Number     int64
	BuyerEmail string
	Currency   string
	Total      string
	Hash       string
	Status     string
}

type TransactionModel struct {
	ID            int64
	InvoiceID     *int64
	GatewayID     int64
	OrderID       string
	PaymentID     string
	State         string
	Status        string
	TxnStatus     string
	TxnID         string
	Type          string
	Amount        string
	Currency      string
	Error         string
	ErrorCategory string
	NeedsReview   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
