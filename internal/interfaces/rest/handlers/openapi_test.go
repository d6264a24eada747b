package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services/testhelpers"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/mock"
)

func (s *HandlersTestSuite) loadDocument() *openapi3.T {
	w := s.serve(httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	s.Require().Equal(http.StatusOK, w.Code)

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(w.Body.Bytes())
	s.Require().NoError(err)
	s.Require().NoError(doc.Validate(loader.Context))
	return doc
}

func (s *HandlersTestSuite) validateAgainst(doc *openapi3.T, schema string, w *httptest.ResponseRecorder) {
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))

	ref, ok := doc.Components.Schemas[schema]
	s.Require().True(ok, "schema %s missing", schema)
	s.NoError(ref.Value.VisitJSON(body["data"]))
}

func (s *HandlersTestSuite) TestOpenAPIDocumentIsValid() {
	doc := s.loadDocument()

	for _, path := range []string{"/invoices/{invoiceID}/checkout", "/ipn", "/transactions/{transactionID}", "/healthz"} {
		s.NotNil(doc.Paths.Find(path), path)
	}
}

func (s *HandlersTestSuite) TestResponsesMatchDocument() {
	doc := s.loadDocument()

	cookie := s.renderCheckout()
	s.gateway.On("FetchCharge", mock.Anything, "pay_1").
		Return(testhelpers.CapturedCharge("pay_1", "order_1", 25000), nil).
		Once()
	w := s.serve(s.callback("order_1", "", cookie, signedForm("order_1", "pay_1")))
	s.Require().Equal(http.StatusOK, w.Code)
	s.validateAgainst(doc, "Outcome", w)

	var outcome domain.Outcome
	s.Require().NoError(json.Unmarshal(mustData(s, w), &outcome))

	w = s.serve(httptest.NewRequest(http.MethodGet, "/transactions/1", nil))
	s.Require().Equal(http.StatusOK, w.Code)
	s.validateAgainst(doc, "Transaction", w)

	w = s.serve(httptest.NewRequest(http.MethodGet, "/transactions/99", nil))
	var errBody map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &errBody))
	s.NoError(doc.Components.Schemas["ErrorResponse"].Value.VisitJSON(errBody))

	s.Equal(domain.StateProcessed, outcome.State)
}

func mustData(s *HandlersTestSuite, w *httptest.ResponseRecorder) []byte {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}
