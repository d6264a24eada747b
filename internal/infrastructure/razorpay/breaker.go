package razorpay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/sony/gobreaker"
)

// BreakerClient stops calling the gateway after repeated server-side
// failures. Client errors never trip it.
type BreakerClient struct {
	inner application.GatewayClient
	cb    *gobreaker.CircuitBreaker
}

func NewBreakerClient(inner application.GatewayClient, cfg config.BreakerConfig, logger *slog.Logger) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "razorpay",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerClient{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerClient) CreateOrder(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error) {
	return execute(b, func() (*domain.Order, error) {
		return b.inner.CreateOrder(ctx, spec)
	})
}

func (b *BreakerClient) FetchOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return execute(b, func() (*domain.Order, error) {
		return b.inner.FetchOrder(ctx, orderID)
	})
}

func (b *BreakerClient) FetchCharge(ctx context.Context, paymentID string) (*domain.Charge, error) {
	return execute(b, func() (*domain.Charge, error) {
		return b.inner.FetchCharge(ctx, paymentID)
	})
}

func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

// Ping reports the gateway as unavailable while the breaker is open. It
// never calls the gateway.
func (b *BreakerClient) Ping(context.Context) error {
	if state := b.cb.State(); state == gobreaker.StateOpen {
		return fmt.Errorf("razorpay circuit breaker %s: %w", state, gobreaker.ErrOpenState)
	}
	return nil
}

func execute[T any](b *BreakerClient, fn func() (*T, error)) (*T, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &application.GatewayError{
				Kind:        application.KindServer,
				Code:        "CIRCUIT_OPEN",
				Description: "gateway temporarily unavailable",
				Err:         err,
			}
		}
		return nil, err
	}
	return res.(*T), nil
}

func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	gwErr, ok := application.IsGatewayError(err)
	return !ok || !gwErr.Transient()
}
