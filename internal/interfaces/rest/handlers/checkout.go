package handlers

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/interfaces/rest"
)

//go:embed templates/*.html
var templateFS embed.FS

var checkoutTemplate = template.Must(template.ParseFS(templateFS, "templates/checkout.html"))

type checkoutView struct {
	Title       string
	Reference   string
	Amount      string
	Currency    string
	CallbackURL string
	Options     template.JS
}

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var invoiceID int64
	if err := bindPathParam("invoiceID", r, &invoiceID); err != nil {
		rest.WriteError(w, application.NewInvalidInputError(err), h.logger)
		return
	}

	page, err := h.checkout.Checkout(r.Context(), h.checkoutSession(w, r), invoiceID)
	if err != nil {
		rest.WriteError(w, err, h.logger)
		return
	}

	options, err := page.OptionsJSON()
	if err != nil {
		rest.WriteError(w, application.NewInternalError(err), h.logger)
		return
	}

	view := checkoutView{
		Title:       page.Invoice.Title(),
		Reference:   page.Invoice.Reference(),
		Amount:      page.Invoice.Total.StringFixed(2),
		Currency:    page.Invoice.Currency,
		CallbackURL: page.CallbackURL,
		// json.Marshal escapes <, > and &, so the options are safe inside <script>.
		Options: template.JS(options),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := checkoutTemplate.Execute(w, view); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render checkout page", "error", err)
	}
}
