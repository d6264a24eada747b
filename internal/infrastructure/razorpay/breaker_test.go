package razorpay_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services/testhelpers"
	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/razorpay"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var breakerConfig = config.BreakerConfig{
	MaxRequests:         1,
	Timeout:             time.Minute,
	ConsecutiveFailures: 2,
}

func newBreaker(t *testing.T) (*razorpay.BreakerClient, *testhelpers.MockGatewayClient) {
	inner := testhelpers.NewMockGatewayClient(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return razorpay.NewBreakerClient(inner, breakerConfig, logger), inner
}

func TestBreakerClient_OpensOnServerErrors(t *testing.T) {
	b, inner := newBreaker(t)
	inner.On("FetchCharge", mock.Anything, "pay_1").
		Return(nil, &application.GatewayError{Kind: application.KindServer, StatusCode: 500}).
		Twice()

	for range 2 {
		_, err := b.FetchCharge(context.Background(), "pay_1")
		assert.True(t, application.IsGatewayErrorKind(err, application.KindServer))
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.ErrorIs(t, b.Ping(context.Background()), gobreaker.ErrOpenState)

	_, err := b.FetchCharge(context.Background(), "pay_1")
	gwErr, ok := application.IsGatewayError(err)
	assert.True(t, ok)
	assert.Equal(t, "CIRCUIT_OPEN", gwErr.Code)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerClient_ClientErrorsDoNotTrip(t *testing.T) {
	b, inner := newBreaker(t)
	inner.On("FetchOrder", mock.Anything, "order_1").
		Return(nil, &application.GatewayError{Kind: application.KindBadRequest, StatusCode: 400}).
		Times(3)

	for range 3 {
		_, err := b.FetchOrder(context.Background(), "order_1")
		assert.True(t, application.IsGatewayErrorKind(err, application.KindBadRequest))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.NoError(t, b.Ping(context.Background()))
}

func TestBreakerClient_CancellationDoesNotTrip(t *testing.T) {
	b, inner := newBreaker(t)
	inner.On("FetchCharge", mock.Anything, "pay_1").Return(nil, context.Canceled).Times(3)

	for range 3 {
		_, err := b.FetchCharge(context.Background(), "pay_1")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
