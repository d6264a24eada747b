package postgres

import (
	"fmt"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// toDomainInvoice: maps db model to domain entity
func toDomainInvoice(m InvoiceModel, items []string) (*domain.Invoice, error) {
	total, err := decimal.NewFromString(m.Total)
	if err != nil {
		return nil, fmt.Errorf("parse invoice %d total %q: %w", m.ID, m.Total, err)
	}
	return &domain.Invoice{
		ID:         m.ID,
		ClientID:   m.ClientID,
		Serie:      m.Serie,
		Number:     m.Number,
		BuyerEmail: m.BuyerEmail,
		Currency:   m.Currency,
		Total:      total,
		Hash:       m.Hash,
		Status:     domain.InvoiceStatus(m.Status),
		ItemTitles: items,
	}, nil
}

// toDomainTransaction: maps db model to domain entity
func toDomainTransaction(m TransactionModel) (*domain.Transaction, error) {
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return nil, fmt.Errorf("parse transaction %d amount %q: %w", m.ID, m.Amount, err)
	}
	var invoiceID int64
	if m.InvoiceID != nil {
		invoiceID = *m.InvoiceID
	}
	return &domain.Transaction{
		ID:            m.ID,
		InvoiceID:     invoiceID,
		GatewayID:     m.GatewayID,
		OrderID:       m.OrderID,
		PaymentID:     m.PaymentID,
		State:         domain.ReconcileState(m.State),
		Status:        domain.TransactionStatus(m.Status),
		TxnStatus:     m.TxnStatus,
		TxnID:         m.TxnID,
		Type:          m.Type,
		Amount:        amount,
		Currency:      m.Currency,
		Error:         m.Error,
		ErrorCategory: m.ErrorCategory,
		NeedsReview:   m.NeedsReview,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

// toTransactionModel: maps domain entity to db model
func toTransactionModel(t *domain.Transaction) *TransactionModel {
	var invoiceID *int64
	if t.InvoiceID != 0 {
		id := t.InvoiceID
		invoiceID = &id
	}
	return &TransactionModel{
		ID:            t.ID,
		InvoiceID:     invoiceID,
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
