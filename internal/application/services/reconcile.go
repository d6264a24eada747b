package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/DanielPopoola/razorpay-reconciler/internal/logging"
	"github.com/VictoriaMetrics/metrics"
)

const (
	defaultPersistTimeout = 5 * time.Second
	creditRelType         = "transaction"
)

var (
	reconcileProcessedCounter = metrics.GetOrCreateCounter(`reconcile_total{result="processed"}`)
	reconcileRejectedCounter  = metrics.GetOrCreateCounter(`reconcile_total{result="rejected"}`)
	reconcileFailedCounter    = metrics.GetOrCreateCounter(`reconcile_total{result="failed"}`)
	reconcileReplayedCounter  = metrics.GetOrCreateCounter(`reconcile_total{result="replayed"}`)
	reconcileSuspendedCounter = metrics.GetOrCreateCounter(`reconcile_total{result="suspended"}`)

	reconcileDurationHistogram = metrics.GetOrCreateHistogram(`reconcile_duration_seconds`)
)

// ReconcileRequest is one payment confirmation together with the callback
// context it arrived on.
type ReconcileRequest struct {
	TransactionID int64
	InvoiceID     int64
	InvoiceHash   string
	GatewayID     int64
	// BoundOrderID is the order id from the callback URL we generated, not
	// the one claimed in the posted payload.
	BoundOrderID string
	Confirmation domain.PaymentConfirmation
	// Sessions is the buyer's checkout session. Nil for server-side retries.
	Sessions application.SessionStore
}

type ReconciliationService struct {
	ledger   application.Ledger
	gateway  application.GatewayClient
	verifier *SignatureVerifier
	orders   *OrderStore
	locker   application.TransactionLocker
	events   application.EventPublisher
	logger   *slog.Logger

	debug          bool
	persistTimeout time.Duration
}

func NewReconciliationService(
	ledger application.Ledger,
	gateway application.GatewayClient,
	verifier *SignatureVerifier,
	orders *OrderStore,
	locker application.TransactionLocker,
	events application.EventPublisher,
	logger *slog.Logger,
	debug bool,
) *ReconciliationService {
	return &ReconciliationService{
		ledger:         ledger,
		gateway:        gateway,
		verifier:       verifier,
		orders:         orders,
		locker:         locker,
		events:         events,
		logger:         logger,
		debug:          debug,
		persistTimeout: defaultPersistTimeout,
	}
}

// Reconcile drives a transaction from its persisted state to a terminal one.
//
// Terminal outcomes, successful or not, are returned with a nil error. An
// error means the transaction was left in a resumable state: the lock could
// not be taken, the ledger could not be read or written, or ctx ended before
// the workflow finished. Calling Reconcile again with the same request picks
// up where the last run stopped and never credits the buyer twice.
func (s *ReconciliationService) Reconcile(ctx context.Context, req ReconcileRequest) (*domain.Outcome, error) {
	start := time.Now()
	defer reconcileDurationHistogram.UpdateDuration(start)

	ctx = logging.WithAttrs(ctx,
		slog.Int64("transaction_id", req.TransactionID),
		slog.Int64("invoice_id", req.InvoiceID),
		slog.String("order_id", req.BoundOrderID),
		slog.String("payment_id", req.Confirmation.PaymentID),
	)

	unlock, err := s.locker.Lock(ctx, "reconcile:tx:"+strconv.FormatInt(req.TransactionID, 10))
	if err != nil {
		return nil, application.NewBusyError(err)
	}
	defer unlock()

	tx, err := s.ledger.LoadTransaction(ctx, req.TransactionID)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, err
		}
		return nil, application.NewLedgerError("load transaction", err)
	}

	if tx.IsTerminal() {
		reconcileReplayedCounter.Inc()
		s.logger.InfoContext(ctx, "transaction already processed", "state", tx.State)
		return domain.OutcomeOf(tx, true), nil
	}

	return s.run(ctx, req, tx)
}

func (s *ReconciliationService) run(ctx context.Context, req ReconcileRequest, tx *domain.Transaction) (*domain.Outcome, error) {
	conf := req.Confirmation

	if conf.PaymentID == "" {
		if tx.PaymentID != "" {
			return s.rejectUnverified(ctx, tx, application.CategoryClientError, "payment id missing from confirmation")
		}
		return s.reject(ctx, tx, application.CategoryClientError, "payment id missing from confirmation")
	}
	if tx.PaymentID != "" && tx.PaymentID != conf.PaymentID {
		return s.rejectUnverified(ctx, tx, application.CategoryClientError, "confirmation payment id does not match transaction")
	}

	invoice, err := s.ledger.LoadInvoice(ctx, req.InvoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			return s.rejectUnverified(ctx, tx, application.CategoryClientError, err.Error())
		}
		return s.interrupted(ctx, tx, application.NewLedgerError("load invoice", err))
	}
	if subtle.ConstantTimeCompare([]byte(invoice.Hash), []byte(req.InvoiceHash)) != 1 {
		return s.rejectUnverified(ctx, tx, application.CategoryClientError, "invoice hash mismatch")
	}
	if tx.InvoiceID != 0 && tx.InvoiceID != invoice.ID {
		return s.rejectUnverified(ctx, tx, application.CategoryClientError, "transaction belongs to another invoice")
	}
	tx.InvoiceID = invoice.ID

	if err := s.checkOrderBinding(ctx, req, tx, invoice); err != nil {
		if errors.Is(err, errOrderSubstituted) {
			return s.rejectUnverified(ctx, tx, application.CategorySignature, err.Error())
		}
		return s.interrupted(ctx, tx, err)
	}

	if err := s.verifier.Verify(req.BoundOrderID, conf.PaymentID, conf.Signature); err != nil {
		s.logger.WarnContext(ctx, "payment signature rejected", "error", err)
		return s.rejectUnverified(ctx, tx, application.CategorizeError(err), "Razorpay Error : "+err.Error())
	}

	if tx.State == domain.StateReceived || tx.State == domain.StateRejected {
		if err := tx.MarkVerified(); err != nil {
			return nil, application.NewInvalidStateError(err)
		}
		if err := s.store(ctx, tx); err != nil {
			return nil, err
		}
	}

	if tx.State == domain.StateVerified || tx.State == domain.StateChargeFetched {
		charge, err := s.gateway.FetchCharge(ctx, conf.PaymentID)
		if err != nil {
			return s.gatewayFailure(ctx, tx, err)
		}
		if charge.ID != "" && charge.ID != conf.PaymentID {
			return s.reject(ctx, tx, application.CategorySignature, "charge id does not match confirmation")
		}
		if charge.OrderID != "" && charge.OrderID != req.BoundOrderID {
			return s.reject(ctx, tx, application.CategorySignature,
				fmt.Sprintf("charge belongs to order %s", charge.OrderID))
		}

		if err := tx.RecordCharge(charge); err != nil {
			return nil, application.NewInvalidStateError(err)
		}
		if !charge.IsCaptured() {
			return s.fail(ctx, tx, application.CategoryPermanent,
				fmt.Sprintf("charge status %s, not captured", charge.Status),
				charge.Status == "authorized")
		}
		if charge.Currency != invoice.Currency {
			return s.fail(ctx, tx, application.CategoryPermanent,
				fmt.Sprintf("charge currency %s does not match invoice currency %s", charge.Currency, invoice.Currency),
				true)
		}
		if err := s.store(ctx, tx); err != nil {
			return nil, err
		}

		if err := s.applyFunds(ctx, tx, invoice); err != nil {
			if isInterrupt(err) {
				return s.interrupted(ctx, tx, err)
			}
			s.logger.ErrorContext(ctx, "ledger update failed after charge was captured",
				"manual_reconciliation_required", true,
				"charge_id", tx.TxnID,
				"amount", tx.Amount.StringFixed(2),
				"currency", tx.Currency,
				"error", err,
			)
			return s.fail(ctx, tx, application.CategoryLedger, err.Error(), true)
		}

		if err := tx.MarkLedgerUpdated(); err != nil {
			return nil, application.NewInvalidStateError(err)
		}
		if err := s.store(ctx, tx); err != nil {
			return nil, err
		}
	}

	if req.Sessions != nil {
		if err := s.orders.Forget(ctx, req.Sessions, invoice.IdempotencyKey()); err != nil {
			s.logger.WarnContext(ctx, "could not clear cached order", "error", err)
		}
	}

	if err := tx.MarkProcessed(); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.store(ctx, tx); err != nil {
		return nil, err
	}

	reconcileProcessedCounter.Inc()
	s.logger.InfoContext(ctx, "payment reconciled",
		"charge_id", tx.TxnID,
		"amount", tx.Amount.StringFixed(2),
		"currency", tx.Currency,
	)
	return s.finish(ctx, tx), nil
}

var errOrderSubstituted = errors.New("order does not match checkout session")

func (s *ReconciliationService) checkOrderBinding(
	ctx context.Context,
	req ReconcileRequest,
	tx *domain.Transaction,
	invoice *domain.Invoice,
) error {
	if req.BoundOrderID == "" {
		return fmt.Errorf("%w: no order bound to callback", errOrderSubstituted)
	}
	if tx.OrderID != "" && tx.OrderID != req.BoundOrderID {
		return fmt.Errorf("%w: transaction order %s", errOrderSubstituted, tx.OrderID)
	}
	if claimed := req.Confirmation.OrderID; claimed != "" && claimed != req.BoundOrderID {
		return fmt.Errorf("%w: payload claims order %s", errOrderSubstituted, claimed)
	}
	if req.Sessions == nil {
		return nil
	}

	cached, ok, err := s.orders.Lookup(ctx, req.Sessions, invoice.IdempotencyKey())
	if err != nil {
		return fmt.Errorf("read checkout session: %w", err)
	}
	if ok && cached != req.BoundOrderID {
		return fmt.Errorf("%w: session order %s", errOrderSubstituted, cached)
	}
	return nil
}

func (s *ReconciliationService) applyFunds(ctx context.Context, tx *domain.Transaction, invoice *domain.Invoice) error {
	meta := domain.CreditMeta{Type: creditRelType, RelID: tx.ID}
	description := "Razorpay transaction " + tx.TxnID

	if err := s.ledger.CreditBuyerAccount(ctx, invoice.ClientID, tx.Amount, description, meta); err != nil {
		return application.NewLedgerError("credit buyer account", err)
	}
	if err := s.ledger.ApplyCreditsToInvoice(ctx, invoice); err != nil {
		return application.NewLedgerError("apply credits to invoice", err)
	}
	if err := s.ledger.ApplyBatchedCredits(ctx, invoice.ClientID); err != nil {
		return application.NewLedgerError("apply batched credits", err)
	}
	return nil
}

func (s *ReconciliationService) gatewayFailure(ctx context.Context, tx *domain.Transaction, err error) (*domain.Outcome, error) {
	if isInterrupt(err) {
		return s.interrupted(ctx, tx, err)
	}

	// The signature verified, so funds may be owed unless the gateway rejected
	// the lookup itself.
	category := application.CategorizeError(err)
	needsReview := category == application.CategoryTransient || category == application.CategoryFatal

	attrs := []any{"error", err, "category", category, "manual_reconciliation_required", needsReview}
	if gwErr, ok := application.IsGatewayError(err); ok {
		attrs = append(attrs, "kind", gwErr.Kind, "status_code", gwErr.StatusCode)
		if s.debug {
			attrs = append(attrs, "body", gwErr.Body)
		}
	}
	s.logger.ErrorContext(ctx, "charge fetch failed", attrs...)

	return s.fail(ctx, tx, category, err.Error(), needsReview)
}

func (s *ReconciliationService) reject(
	ctx context.Context,
	tx *domain.Transaction,
	category application.ErrorCategory,
	reason string,
) (*domain.Outcome, error) {
	if err := tx.Reject(string(category), reason); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.store(ctx, tx); err != nil {
		return nil, err
	}
	reconcileRejectedCounter.Inc()
	s.logger.WarnContext(ctx, "payment rejected", "reason", reason, "category", category)
	return s.finish(ctx, tx), nil
}

// rejectUnverified handles a notification that failed before its signature
// was verified. Nothing in it can be trusted, so it never closes the
// transaction and never touches one that a genuine confirmation has already
// advanced.
func (s *ReconciliationService) rejectUnverified(
	ctx context.Context,
	tx *domain.Transaction,
	category application.ErrorCategory,
	reason string,
) (*domain.Outcome, error) {
	reconcileRejectedCounter.Inc()
	s.logger.WarnContext(ctx, "unverified notification rejected", "reason", reason, "category", category, "state", tx.State)

	if tx.State != domain.StateReceived && tx.State != domain.StateRejected {
		outcome := domain.OutcomeOf(tx, false)
		outcome.State = domain.StateRejected
		outcome.Error = reason
		return outcome, nil
	}

	if err := tx.RejectUnverified(string(category), reason); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.store(ctx, tx); err != nil {
		return nil, err
	}
	return s.finish(ctx, tx), nil
}

func (s *ReconciliationService) fail(
	ctx context.Context,
	tx *domain.Transaction,
	category application.ErrorCategory,
	reason string,
	needsReview bool,
) (*domain.Outcome, error) {
	if err := tx.Fail(string(category), reason, needsReview); err != nil {
		return nil, application.NewInvalidStateError(err)
	}
	if err := s.store(ctx, tx); err != nil {
		return nil, err
	}
	reconcileFailedCounter.Inc()
	s.logger.ErrorContext(ctx, "payment failed",
		"reason", reason,
		"category", category,
		"needs_review", needsReview,
		"state", tx.State,
	)
	return s.finish(ctx, tx), nil
}

// interrupted leaves tx in the last persisted intermediate state so a later
// call can resume it.
func (s *ReconciliationService) interrupted(ctx context.Context, tx *domain.Transaction, err error) (*domain.Outcome, error) {
	reconcileSuspendedCounter.Inc()
	s.logger.WarnContext(ctx, "reconciliation suspended", "state", tx.State, "error", err)
	if isInterrupt(err) {
		return nil, application.NewTimeoutError(err)
	}
	return nil, err
}

func (s *ReconciliationService) finish(ctx context.Context, tx *domain.Transaction) *domain.Outcome {
	outcome := domain.OutcomeOf(tx, false)

	pubCtx, cancel := s.detached(ctx)
	defer cancel()
	if err := s.events.PublishOutcome(pubCtx, outcome); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish reconcile outcome", "error", err)
	}
	return outcome
}

// store persists tx even if ctx has already ended, so a cancelled request
// never loses the state it reached.
func (s *ReconciliationService) store(ctx context.Context, tx *domain.Transaction) error {
	storeCtx, cancel := s.detached(ctx)
	defer cancel()
	if err := s.ledger.StoreTransaction(storeCtx, tx); err != nil {
		return application.NewLedgerError("store transaction", err)
	}
	return nil
}

func (s *ReconciliationService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
}

func isInterrupt(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
