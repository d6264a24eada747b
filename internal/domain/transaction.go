package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// ReconcileState is where a transaction is in the reconciliation workflow.
type ReconcileState string

const (
	StateReceived      ReconcileState = "received"
	StateVerified      ReconcileState = "verified"
	StateChargeFetched ReconcileState = "charge_fetched"
	StateLedgerUpdated ReconcileState = "ledger_updated"
	StateProcessed     ReconcileState = "processed"
	StateRejected      ReconcileState = "rejected"
	StateFailed        ReconcileState = "failed"
)

type TransactionStatus string

const (
	TxStatusReceived  TransactionStatus = "received"
	TxStatusProcessed TransactionStatus = "processed"
)

// CreditMeta links a client funds entry back to what produced it.
type CreditMeta struct {
	Type  string
	RelID int64
}

// Transaction is the ledger's record of one payment notification.
type Transaction struct {
	ID        int64
	InvoiceID int64
	GatewayID int64
	OrderID   string
	PaymentID string

	State  ReconcileState
	Status TransactionStatus

	// Charge attributes, copied from the gateway once verified.
	TxnStatus string
	TxnID     string
	Type      string
	Amount    decimal.Decimal
	Currency  string

	Error         string
	ErrorCategory string
	NeedsReview   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTransaction(invoiceID, gatewayID int64, orderID, paymentID string) *Transaction {
	now := time.Now()
	return &Transaction{
		InvoiceID: invoiceID,
		GatewayID: gatewayID,
		OrderID:   orderID,
		PaymentID: paymentID,
		State:     StateReceived,
		Status:    TxStatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkVerified records a valid signature. It clears any error left by an
// earlier unverified notification for the same payment.
func (t *Transaction) MarkVerified() error {
	if err := t.transition(StateVerified); err != nil {
		return err
	}
	t.Error = ""
	t.ErrorCategory = ""
	return nil
}

// RecordCharge copies the authoritative charge attributes onto the transaction.
func (t *Transaction) RecordCharge(c *Charge) error {
	if err := t.transition(StateChargeFetched); err != nil {
		return err
	}
	t.TxnStatus = c.Status
	t.TxnID = c.ID
	t.Type = c.Method
	t.Amount = FromMinorUnits(c.Amount)
	t.Currency = c.Currency
	return nil
}

func (t *Transaction) MarkLedgerUpdated() error {
	return t.transition(StateLedgerUpdated)
}

func (t *Transaction) MarkProcessed() error {
	if err := t.transition(StateProcessed); err != nil {
		return err
	}
	t.Status = TxStatusProcessed
	return nil
}

// Reject ends processing for a notification that is never going to be credited.
func (t *Transaction) Reject(category, reason string) error {
	if err := t.transition(StateRejected); err != nil {
		return err
	}
	t.recordError(category, reason)
	return nil
}

// RejectUnverified records a notification that failed before its signature
// was checked. The transaction stays open so a genuine confirmation for the
// same payment can still be reconciled.
func (t *Transaction) RejectUnverified(category, reason string) error {
	if err := t.transition(StateRejected); err != nil {
		return err
	}
	t.Error = reason
	t.ErrorCategory = category
	return nil
}

// Fail ends processing after a gateway or ledger failure.
func (t *Transaction) Fail(category, reason string, needsReview bool) error {
	if err := t.transition(StateFailed); err != nil {
		return err
	}
	t.recordError(category, reason)
	t.NeedsReview = needsReview
	return nil
}

func (t *Transaction) recordError(category, reason string) {
	t.Error = reason
	t.ErrorCategory = category
	t.Status = TxStatusProcessed
}

// IsTerminal reports whether the transaction must never be reconciled again.
func (t *Transaction) IsTerminal() bool {
	switch t.State {
	case StateProcessed, StateFailed:
		return true
	default:
		return t.Status == TxStatusProcessed
	}
}

func (t *Transaction) transition(target ReconcileState) error {
	if err := t.canTransitionTo(target); err != nil {
		return err
	}
	t.State = target
	t.UpdatedAt = time.Now()
	return nil
}

func (t *Transaction) canTransitionTo(target ReconcileState) error {
	switch t.State {
	case StateReceived:
		return t.allow(target, StateVerified, StateRejected, StateFailed)
	case StateVerified:
		return t.allow(target, StateChargeFetched, StateRejected, StateFailed)
	case StateChargeFetched:
		// a resumed run re-fetches the charge
		return t.allow(target, StateChargeFetched, StateLedgerUpdated, StateRejected, StateFailed)
	case StateLedgerUpdated:
		return t.allow(target, StateProcessed, StateFailed)
	case StateRejected:
		if t.Status != TxStatusProcessed {
			return t.allow(target, StateVerified, StateRejected)
		}
	}
	return NewInvalidTransitionError(t.State, target)
}

func (t *Transaction) allow(target ReconcileState, allowed ...ReconcileState) error {
	if slices.Contains(allowed, target) {
		return nil
	}
	return NewInvalidTransitionError(t.State, target)
}

// Outcome is the result of running reconciliation for a transaction.
type Outcome struct {
	TransactionID int64           `json:"transaction_id"`
	InvoiceID     int64           `json:"invoice_id"`
	State         ReconcileState  `json:"state"`
	ChargeID      string          `json:"charge_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Error         string          `json:"error,omitempty"`
	NeedsReview   bool            `json:"needs_review,omitempty"`
	// Replayed is set when the transaction was already terminal and nothing ran.
	Replayed bool `json:"replayed,omitempty"`
}

func (o *Outcome) Succeeded() bool {
	return o.State == StateProcessed
}

func OutcomeOf(t *Transaction, replayed bool) *Outcome {
	return &Outcome{
		TransactionID: t.ID,
		InvoiceID:     t.InvoiceID,
		State:         t.State,
		ChargeID:      t.TxnID,
		Amount:        t.Amount,
		Currency:      t.Currency,
		Error:         t.Error,
		NeedsReview:   t.NeedsReview,
		Replayed:      replayed,
	}
}
