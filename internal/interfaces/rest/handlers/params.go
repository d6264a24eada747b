package handlers

import (
	"net/http"

	"github.com/oapi-codegen/runtime"
)

func bindPathParam(name string, r *http.Request, dest any) error {
	return runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, r.PathValue(name), dest)
}

// CallbackParams are the query parameters of the callback URL issued at checkout.
type CallbackParams struct {
	GatewayID   int64
	OrderID     string
	InvoiceID   int64
	InvoiceHash string
	Redirect    *int
}

func bindCallbackParams(r *http.Request) (CallbackParams, error) {
	var p CallbackParams
	q := r.URL.Query()

	if err := runtime.BindQueryParameter("form", true, true, "bb_gateway_id", q, &p.GatewayID); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, true, "rzp_order_id", q, &p.OrderID); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, true, "bb_invoice_id", q, &p.InvoiceID); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, true, "bb_invoice_hash", q, &p.InvoiceHash); err != nil {
		return p, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "bb_redirect", q, &p.Redirect); err != nil {
		return p, err
	}
	return p, nil
}

func (p CallbackParams) wantsRedirect() bool {
	return p.Redirect != nil && *p.Redirect == 1
}
