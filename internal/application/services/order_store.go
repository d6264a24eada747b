package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/VictoriaMetrics/metrics"
	"golang.org/x/sync/singleflight"
)

const defaultResolveTimeout = 15 * time.Second

var (
	ordersCreatedCounter  = metrics.GetOrCreateCounter(`checkout_orders_total{result="created"}`)
	ordersReusedCounter   = metrics.GetOrCreateCounter(`checkout_orders_total{result="reused"}`)
	ordersReplacedCounter = metrics.GetOrCreateCounter(`checkout_orders_total{result="replaced"}`)
)

// OrderStore maps an invoice's idempotency key to the gateway order created
// for it, so repeated checkout renders reuse one order.
type OrderStore struct {
	gateway application.GatewayClient
	flights singleflight.Group
	logger  *slog.Logger

	resolveTimeout time.Duration
}

func NewOrderStore(gateway application.GatewayClient, logger *slog.Logger) *OrderStore {
	return &OrderStore{
		gateway:        gateway,
		logger:         logger,
		resolveTimeout: defaultResolveTimeout,
	}
}

// GetOrCreate returns the cached order for key if the gateway still has it
// with the same amount and currency, otherwise creates a new one. Creation is
// shared between concurrent callers of the same session and key, and keeps
// running when the caller that started it goes away.
func (s *OrderStore) GetOrCreate(
	ctx context.Context,
	sessions application.SessionStore,
	key domain.IdempotencyKey,
	spec domain.OrderSpec,
) (*domain.Order, error) {
	flightKey := sessions.Scope() + "|" + key.String()
	ch := s.flights.DoChan(flightKey, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.resolveTimeout)
		defer cancel()
		return s.resolve(flightCtx, sessions, key, spec)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		order := res.Val.(*domain.Order)
		if err := sessions.Set(ctx, key.String(), order.ID); err != nil {
			return nil, fmt.Errorf("cache order %s: %w", order.ID, err)
		}
		return order, nil
	}
}

func (s *OrderStore) resolve(
	ctx context.Context,
	sessions application.SessionStore,
	key domain.IdempotencyKey,
	spec domain.OrderSpec,
) (*domain.Order, error) {
	cachedID, ok, err := sessions.Get(ctx, key.String())
	if err != nil {
		return nil, fmt.Errorf("read cached order: %w", err)
	}

	if ok {
		order, err := s.gateway.FetchOrder(ctx, cachedID)
		switch {
		case err == nil && order.Matches(spec):
			ordersReusedCounter.Inc()
			return order, nil
		case err == nil:
			s.logger.WarnContext(ctx, "cached order no longer matches invoice",
				"order_id", cachedID,
				"order_amount", order.Amount,
				"invoice_amount", spec.Amount,
				"order_currency", order.Currency,
				"invoice_currency", spec.Currency,
			)
		case application.IsGatewayErrorKind(err, application.KindBadRequest):
			s.logger.InfoContext(ctx, "cached order gone, creating new one", "order_id", cachedID, "error", err)
		default:
			return nil, err
		}

		if err := sessions.Clear(ctx, key.String()); err != nil {
			return nil, fmt.Errorf("clear cached order: %w", err)
		}
		ordersReplacedCounter.Inc()
	}

	order, err := s.gateway.CreateOrder(ctx, spec)
	if err != nil {
		return nil, err
	}
	if !order.Matches(spec) {
		return nil, &application.GatewayError{
			Kind:        application.KindGateway,
			Code:        "ORDER_MISMATCH",
			Description: fmt.Sprintf("created order %s does not match request", order.ID),
		}
	}
	ordersCreatedCounter.Inc()
	s.logger.InfoContext(ctx, "gateway order created", "order_id", order.ID, "receipt", spec.Receipt)
	return order, nil
}

// Lookup returns the order id cached for key in this session.
func (s *OrderStore) Lookup(ctx context.Context, sessions application.SessionStore, key domain.IdempotencyKey) (string, bool, error) {
	return sessions.Get(ctx, key.String())
}

// Forget drops the cached order once its payment has been reconciled.
func (s *OrderStore) Forget(ctx context.Context, sessions application.SessionStore, key domain.IdempotencyKey) error {
	return sessions.Clear(ctx, key.String())
}
