package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest"
)

const maxFormBytes = 16 << 10

// IPN receives the payment confirmation the checkout form posts back and
// reconciles it against the gateway and the ledger.
func (h *Handlers) IPN(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := bindCallbackParams(r)
	if err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}
	if params.GatewayID != h.gatewayID {
		rest.WriteError(w, application.NewInvalidInputError(
			errors.New("callback is for another gateway configuration")), h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}
	confirmation := domain.PaymentConfirmation{
		PaymentID: strings.TrimSpace(r.PostForm.Get("razorpay_payment_id")),
		Signature: strings.TrimSpace(r.PostForm.Get("razorpay_signature")),
		OrderID:   strings.TrimSpace(r.PostForm.Get("razorpay_order_id")),
	}

	tx, err := h.ledger.OpenTransaction(ctx,
		domain.NewTransaction(params.InvoiceID, params.GatewayID, params.OrderID, confirmation.PaymentID))
	if err != nil {
		h.respondFailure(w, r, params, err)
		return
	}

	outcome, err := h.reconcile.Reconcile(ctx, services.ReconcileRequest{
		TransactionID: tx.ID,
		InvoiceID:     params.InvoiceID,
		InvoiceHash:   params.InvoiceHash,
		GatewayID:     params.GatewayID,
		BoundOrderID:  params.OrderID,
		Confirmation:  confirmation,
		Sessions:      h.existingSession(r),
	})
	if err != nil {
		h.respondFailure(w, r, params, err)
		return
	}
	if !outcome.Succeeded() {
		h.respondFailure(w, r, params, application.NewPaymentFailedError())
		return
	}

	if params.wantsRedirect() {
		http.Redirect(w, r, h.invoiceURL(params.InvoiceID, "paid"), http.StatusSeeOther)
		return
	}
	rest.WriteData(w, http.StatusOK, outcome)
}

// respondFailure never tells the buyer why a payment failed. Busy and
// timeout errors keep their codes so the caller knows a retry can succeed.
func (h *Handlers) respondFailure(w http.ResponseWriter, r *http.Request, params CallbackParams, err error) {
	h.logger.WarnContext(r.Context(), "payment callback failed",
		"invoice_id", params.InvoiceID,
		"order_id", params.OrderID,
		"error", err,
	)

	buyerErr := application.NewPaymentFailedError()
	if svcErr, ok := application.IsServiceError(err); ok {
		switch svcErr.Code {
		case application.ErrCodeBusy, application.ErrCodeTimeout:
			buyerErr = svcErr
		}
	}

	if params.wantsRedirect() {
		http.Redirect(w, r, h.invoiceURL(params.InvoiceID, "failed"), http.StatusSeeOther)
		return
	}
	rest.WriteError(w, buyerErr, h.logger)
}

func (h *Handlers) invoiceURL(invoiceID int64, result string) string {
	q := url.Values{}
	q.Set("payment", result)
	return strings.TrimRight(h.publicURL, "/") + "/invoices/" + strconv.FormatInt(invoiceID, 10) + "?" + q.Encode()
}
