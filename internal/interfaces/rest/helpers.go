package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
)

type APIResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteData(w http.ResponseWriter, statusCode int, data any) {
	WriteJSON(w, statusCode, APIResponse{Success: true, Data: data})
}

// Transaction is the operator view of a ledger transaction.
type Transaction struct {
	ID            int64     `json:"id"`
	InvoiceID     int64     `json:"invoice_id"`
	GatewayID     int64     `json:"gateway_id"`
	OrderID       string    `json:"order_id"`
	PaymentID     string    `json:"payment_id"`
	State         string    `json:"state"`
	Status        string    `json:"status"`
	TxnStatus     string    `json:"txn_status,omitempty"`
	TxnID         string    `json:"txn_id,omitempty"`
	Type          string    `json:"type,omitempty"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency,omitempty"`
	Error         string    `json:"error,omitempty"`
	ErrorCategory string    `json:"error_category,omitempty"`
	NeedsReview   bool      `json:"needs_review"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ToAPITransaction(t *domain.Transaction) Transaction {
	return Transaction{
		ID:            t.ID,
		InvoiceID:     t.InvoiceID,
		GatewayID:     t.GatewayID,
		OrderID:       t.OrderID,
		PaymentID:     t.PaymentID,
		State:         string(t.State),
		Status:        string(t.Status),
		TxnStatus:     t.TxnStatus,
		TxnID:         t.TxnID,
		Type:          t.Type,
		Amount:        t.Amount.StringFixed(2),
		Currency:      t.Currency,
		Error:         t.Error,
		ErrorCategory: t.ErrorCategory,
		NeedsReview:   t.NeedsReview,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func ToAPITransactions(txs []*domain.Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		out = append(out, ToAPITransaction(t))
	}
	return out
}
