package testhelpers

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/shopspring/decimal"
)

// MemoryLedger is an in-memory Ledger with the same dedupe and payment rules
// as the Postgres one. The Fn hooks override individual operations.
type MemoryLedger struct {
	mu           sync.Mutex
	invoices     map[int64]*domain.Invoice
	transactions map[int64]*domain.Transaction
	balances     map[int64]decimal.Decimal
	funds        map[domain.CreditMeta]decimal.Decimal
	nextTxID     int64

	CreditCalls int

	LoadInvoiceFn           func(ctx context.Context, id int64) (*domain.Invoice, error)
	StoreTransactionFn      func(ctx context.Context, tx *domain.Transaction) error
	CreditBuyerAccountFn    func(ctx context.Context, clientID int64, amount decimal.Decimal, description string, meta domain.CreditMeta) error
	ApplyCreditsToInvoiceFn func(ctx context.Context, invoice *domain.Invoice) error
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		invoices:     make(map[int64]*domain.Invoice),
		transactions: make(map[int64]*domain.Transaction),
		balances:     make(map[int64]decimal.Decimal),
		funds:        make(map[domain.CreditMeta]decimal.Decimal),
	}
}

func (m *MemoryLedger) AddInvoice(inv *domain.Invoice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *inv
	m.invoices[inv.ID] = &cp
}

func (m *MemoryLedger) Invoice(id int64) *domain.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.invoices[id]
	return &cp
}

func (m *MemoryLedger) Transaction(id int64) *domain.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.transactions[id]
	return &cp
}

func (m *MemoryLedger) Balance(clientID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[clientID]
}

// Credited returns the total of all buyer credits, ignoring invoice payments.
func (m *MemoryLedger) Credited() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for meta, amount := range m.funds {
		if meta.Type != "invoice" {
			total = total.Add(amount)
		}
	}
	return total
}

func (m *MemoryLedger) LoadInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	if m.LoadInvoiceFn != nil {
		return m.LoadInvoiceFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, domain.NewInvoiceNotFoundError(id)
	}
	cp := *inv
	return &cp, nil
}

func (m *MemoryLedger) LoadTransaction(_ context.Context, id int64) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, domain.NewTransactionNotFoundError(id)
	}
	cp := *tx
	return &cp, nil
}

func (m *MemoryLedger) OpenTransaction(_ context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tx.PaymentID != "" {
		for _, existing := range m.transactions {
			if existing.GatewayID == tx.GatewayID && existing.OrderID == tx.OrderID && existing.PaymentID == tx.PaymentID {
				cp := *existing
				return &cp, nil
			}
		}
	}

	m.nextTxID++
	stored := *tx
	stored.ID = m.nextTxID
	m.transactions[stored.ID] = &stored
	cp := stored
	return &cp, nil
}

func (m *MemoryLedger) StoreTransaction(ctx context.Context, tx *domain.Transaction) error {
	if m.StoreTransactionFn != nil {
		if err := m.StoreTransactionFn(ctx, tx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.transactions[tx.ID]
	if !ok {
		return domain.NewTransactionNotFoundError(tx.ID)
	}
	if existing.Status == domain.TxStatusProcessed {
		return domain.NewAlreadyProcessedError(tx.ID)
	}
	cp := *tx
	m.transactions[tx.ID] = &cp
	return nil
}

func (m *MemoryLedger) CreditBuyerAccount(ctx context.Context, clientID int64, amount decimal.Decimal, description string, meta domain.CreditMeta) error {
	if m.CreditBuyerAccountFn != nil {
		if err := m.CreditBuyerAccountFn(ctx, clientID, amount, description, meta); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreditCalls++
	if _, ok := m.funds[meta]; ok {
		return nil
	}
	m.funds[meta] = amount
	m.balances[clientID] = m.balances[clientID].Add(amount)
	return nil
}

func (m *MemoryLedger) ApplyCreditsToInvoice(ctx context.Context, invoice *domain.Invoice) error {
	if m.ApplyCreditsToInvoiceFn != nil {
		if err := m.ApplyCreditsToInvoiceFn(ctx, invoice); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payWithCredits(invoice.ID) {
		invoice.Status = domain.InvoicePaid
	}
	return nil
}

func (m *MemoryLedger) ApplyBatchedCredits(ctx context.Context, clientID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range slices.Sorted(maps.Keys(m.invoices)) {
		if m.invoices[id].ClientID == clientID {
			m.payWithCredits(id)
		}
	}
	return nil
}

func (m *MemoryLedger) payWithCredits(invoiceID int64) bool {
	inv, ok := m.invoices[invoiceID]
	if !ok || inv.Status == domain.InvoicePaid {
		return false
	}
	balance := m.balances[inv.ClientID]
	if balance.LessThan(inv.Total) {
		return false
	}
	m.balances[inv.ClientID] = balance.Sub(inv.Total)
	m.funds[domain.CreditMeta{Type: "invoice", RelID: inv.ID}] = inv.Total.Neg()
	inv.Status = domain.InvoicePaid
	return true
}
