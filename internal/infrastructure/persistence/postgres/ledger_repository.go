package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var ErrClientNotFound = errors.New("client not found")

const transactionColumns = `
	id, invoice_id, gateway_id, order_id, payment_id, state, status,
	txn_status, txn_id, type, amount::text, currency, error, error_category,
	needs_review, created_at, updated_at`

// LedgerRepository is the billing system's invoice, transaction and client
// funds store.
type LedgerRepository struct {
	db *DB
}

func NewLedgerRepository(db *DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) LoadInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	return r.loadInvoice(ctx, r.db.Pool, id, false)
}

func (r *LedgerRepository) loadInvoice(ctx context.Context, q Executor, id int64, forUpdate bool) (*domain.Invoice, error) {
	query := `
		SELECT id, client_id, serie, nr, buyer_email, currency, total::text, hash, status
		FROM invoices WHERE id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var m InvoiceModel
	err := q.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.ClientID, &m.Serie, &m.Number, &m.BuyerEmail,
		&m.Currency, &m.Total, &m.Hash, &m.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewInvoiceNotFoundError(id)
		}
		return nil, fmt.Errorf("load invoice %d: %w", id, err)
	}

	rows, err := q.Query(ctx, `SELECT title FROM invoice_items WHERE invoice_id = $1 ORDER BY position, id`, id)
	if err != nil {
		return nil, fmt.Errorf("query invoice items: %w", err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan invoice items: %w", err)
	}

	return toDomainInvoice(m, items)
}

func (r *LedgerRepository) LoadTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewTransactionNotFoundError(id)
		}
		return nil, fmt.Errorf("load transaction %d: %w", id, err)
	}
	return tx, nil
}

// OpenTransaction returns the transaction already recorded for the same
// (gateway, order, payment) notification, or inserts a new one. Notifications
// without a payment id always get a fresh row.
func (r *LedgerRepository) OpenTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (invoice_id, gateway_id, order_id, payment_id, state, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (gateway_id, order_id, payment_id) WHERE payment_id <> ''
		DO UPDATE SET updated_at = transactions.updated_at
		RETURNING ` + transactionColumns

	m := toTransactionModel(tx)
	opened, err := scanTransaction(r.db.Pool.QueryRow(ctx, query,
		m.InvoiceID, m.GatewayID, m.OrderID, m.PaymentID, m.State, m.Status, time.Now(),
	))
	if err != nil {
		if IsForeignKeyViolation(err) {
			return nil, domain.NewInvoiceNotFoundError(tx.InvoiceID)
		}
		return nil, fmt.Errorf("open transaction: %w", err)
	}
	return opened, nil
}

// StoreTransaction writes tx unless the stored row is already processed.
func (r *LedgerRepository) StoreTransaction(ctx context.Context, tx *domain.Transaction) error {
	query := `
		UPDATE transactions
		SET invoice_id = $2, state = $3, status = $4,
			txn_status = $5, txn_id = $6, type = $7, amount = $8::numeric, currency = $9,
			error = $10, error_category = $11, needs_review = $12, updated_at = $13
		WHERE id = $1 AND status <> 'processed'
	`

	tx.UpdatedAt = time.Now()
	m := toTransactionModel(tx)
	tag, err := r.db.Pool.Exec(ctx, query,
		m.ID, m.InvoiceID, m.State, m.Status,
		m.TxnStatus, m.TxnID, m.Type, m.Amount, m.Currency,
		m.Error, m.ErrorCategory, m.NeedsReview, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store transaction %d: %w", tx.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, tx.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check transaction %d: %w", tx.ID, err)
	}
	if !exists {
		return domain.NewTransactionNotFoundError(tx.ID)
	}
	return domain.NewAlreadyProcessedError(tx.ID)
}

// ListNeedsReview returns failed transactions an operator must look at, oldest first.
func (r *LedgerRepository) ListNeedsReview(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE needs_review ORDER BY id LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions needing review: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan transactions needing review: %w", err)
	}
	return results, nil
}

// CreditBuyerAccount adds amount to the client balance. The funds entry is
// unique per meta, so repeating a credit changes nothing.
func (r *LedgerRepository) CreditBuyerAccount(
	ctx context.Context,
	clientID int64,
	amount decimal.Decimal,
	description string,
	meta domain.CreditMeta,
) error {
	if !amount.IsPositive() {
		return domain.NewInvalidAmountError(amount.StringFixed(2))
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO client_funds (client_id, amount, description, rel_type, rel_id)
			VALUES ($1, $2::numeric, $3, $4, $5)
			ON CONFLICT (rel_type, rel_id) DO NOTHING
		`, clientID, amount.StringFixed(2), description, meta.Type, meta.RelID)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: %d", ErrClientNotFound, clientID)
			}
			return fmt.Errorf("insert client funds: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		tag, err = tx.Exec(ctx, `UPDATE clients SET balance = balance + $2::numeric WHERE id = $1`,
			clientID, amount.StringFixed(2))
		if err != nil {
			return fmt.Errorf("update client balance: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %d", ErrClientNotFound, clientID)
		}
		return nil
	})
}

// ApplyCreditsToInvoice pays the invoice from the client balance if the
// balance covers the full total.
func (r *LedgerRepository) ApplyCreditsToInvoice(ctx context.Context, invoice *domain.Invoice) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		paid, err := r.payWithCredits(ctx, tx, invoice.ID)
		if err != nil {
			return err
		}
		if paid {
			invoice.Status = domain.InvoicePaid
		}
		return nil
	})
}

// ApplyBatchedCredits pays the client's unpaid invoices, oldest first, for as
// long as the balance covers them.
func (r *LedgerRepository) ApplyBatchedCredits(ctx context.Context, clientID int64) error {
	return r.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id FROM invoices WHERE client_id = $1 AND status = 'unpaid' ORDER BY id`, clientID)
		if err != nil {
			return fmt.Errorf("query unpaid invoices: %w", err)
		}
		ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
		if err != nil {
			return fmt.Errorf("scan unpaid invoices: %w", err)
		}

		for _, id := range ids {
			if _, err := r.payWithCredits(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *LedgerRepository) payWithCredits(ctx context.Context, tx pgx.Tx, invoiceID int64) (bool, error) {
	invoice, err := r.loadInvoice(ctx, tx, invoiceID, true)
	if err != nil {
		return false, err
	}
	if invoice.Status == domain.InvoicePaid {
		return false, nil
	}

	var balanceText string
	err = tx.QueryRow(ctx, `SELECT balance::text FROM clients WHERE id = $1 FOR UPDATE`, invoice.ClientID).Scan(&balanceText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%w: %d", ErrClientNotFound, invoice.ClientID)
		}
		return false, fmt.Errorf("load client balance: %w", err)
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return false, fmt.Errorf("parse client balance %q: %w", balanceText, err)
	}
	if balance.LessThan(invoice.Total) {
		return false, nil
	}

	total := invoice.Total.StringFixed(2)
	if _, err := tx.Exec(ctx, `
		INSERT INTO client_funds (client_id, amount, description, rel_type, rel_id)
		VALUES ($1, -$2::numeric, $3, 'invoice', $4)
	`, invoice.ClientID, total, "Payment for invoice "+invoice.Reference(), invoice.ID); err != nil {
		return false, fmt.Errorf("insert invoice payment: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE clients SET balance = balance - $2::numeric WHERE id = $1`,
		invoice.ClientID, total); err != nil {
		return false, fmt.Errorf("debit client balance: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE invoices SET status = 'paid', paid_at = now() WHERE id = $1`, invoice.ID); err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	return true, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var m TransactionModel
	err := row.Scan(
		&m.ID, &m.InvoiceID, &m.GatewayID, &m.OrderID, &m.PaymentID, &m.State, &m.Status,
		&m.TxnStatus, &m.TxnID, &m.Type, &m.Amount, &m.Currency, &m.Error, &m.ErrorCategory,
		&m.NeedsReview, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return toDomainTransaction(m)
}
