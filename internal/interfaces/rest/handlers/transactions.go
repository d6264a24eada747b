package handlers

import (
	"net/http"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest"
)

func (h *Handlers) GetTransaction(w http.ResponseWriter, r *http.Request) {
	var id int64
	if err := bindPathParam("transactionID", r, &id); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	tx, err := h.ledger.LoadTransaction(r.Context(), id)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}
	rest.WriteData(w, http.StatusOK, rest.ToAPITransaction(tx))
}
