package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/config"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/cenkalti/backoff/v4"
)

// RetryingOrders retries order creation and lookup on transient gateway
// failures. Charges are passed through untouched; reconciliation never retries.
type RetryingOrders struct {
	inner      application.GatewayClient
	baseDelay  time.Duration
	maxRetries int
	logger     *slog.Logger
}

func NewRetryingOrders(inner application.GatewayClient, cfg config.RetryConfig, logger *slog.Logger) *RetryingOrders {
	return &RetryingOrders{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: int(cfg.MaxRetries),
		logger:     logger,
	}
}

func (r *RetryingOrders) CreateOrder(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error) {
	return retry(ctx, r, "create_order", func(ctx context.Context) (*domain.Order, error) {
		return r.inner.CreateOrder(ctx, spec)
	})
}

func (r *RetryingOrders) FetchOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return retry(ctx, r, "fetch_order", func(ctx context.Context) (*domain.Order, error) {
		return r.inner.FetchOrder(ctx, orderID)
	})
}

func (r *RetryingOrders) FetchCharge(ctx context.Context, paymentID string) (*domain.Charge, error) {
	return r.inner.FetchCharge(ctx, paymentID)
}

func (r *RetryingOrders) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.baseDelay
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries)), ctx)
}

// Generic retry helper
func retry[T any](ctx context.Context, r *RetryingOrders, op string, operation func(ctx context.Context) (*T, error)) (*T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(
		func() (*T, error) {
			attempt++
			resp, err := operation(ctx)
			if err != nil && !isRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return resp, err
		},
		r.backoff(ctx),
		func(err error, next time.Duration) {
			r.logger.WarnContext(ctx, "gateway call failed, retrying",
				"op", op,
				"attempt", attempt,
				"next_in", next,
				"error", err,
			)
		},
	)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	gwErr, ok := application.IsGatewayError(err)
	return ok && gwErr.Transient()
}
