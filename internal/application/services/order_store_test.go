package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DanielPopoola/razorpay-reconciler/internal/application"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services"
	"github.com/DanielPopoola/razorpay-reconciler/internal/application/services/testhelpers"
	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/DanielPopoola/razorpay-reconciler/internal/infrastructure/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func orderFor(id string, spec domain.OrderSpec) *domain.Order {
	return &domain.Order{ID: id, Amount: spec.Amount, Currency: spec.Currency, Receipt: spec.Receipt, Status: "created"}
}

func defaultSpec(t *testing.T) (domain.IdempotencyKey, domain.OrderSpec) {
	inv := testhelpers.DefaultInvoice()
	spec, err := inv.OrderSpec()
	require.NoError(t, err)
	return inv.IdempotencyKey(), spec
}

func TestOrderStore_ReusesCachedOrder(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, spec := defaultSpec(t)

	gw.On("CreateOrder", mock.Anything, spec).Return(orderFor("order_1", spec), nil).Once()
	gw.On("FetchOrder", mock.Anything, "order_1").Return(orderFor("order_1", spec), nil).Once()

	first, err := store.GetOrCreate(ctx, sessions, key, spec)
	require.NoError(t, err)
	second, err := store.GetOrCreate(ctx, sessions, key, spec)
	require.NoError(t, err)

	assert.Equal(t, "order_1", first.ID)
	assert.Equal(t, first.ID, second.ID)

	cached, ok, err := store.Lookup(ctx, sessions, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order_1", cached)
}

func TestOrderStore_RecreatesWhenOrderGone(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, spec := defaultSpec(t)
	require.NoError(t, sessions.Set(ctx, key.String(), "order_old"))

	gw.On("FetchOrder", mock.Anything, "order_old").
		Return(nil, &application.GatewayError{Kind: application.KindBadRequest, Code: "BAD_REQUEST_ERROR", StatusCode: 400}).
		Once()
	gw.On("CreateOrder", mock.Anything, spec).Return(orderFor("order_new", spec), nil).Once()

	order, err := store.GetOrCreate(ctx, sessions, key, spec)

	require.NoError(t, err)
	assert.Equal(t, "order_new", order.ID)
	cached, _, _ := sessions.Get(ctx, key.String())
	assert.Equal(t, "order_new", cached)
}

func TestOrderStore_RecreatesWhenAmountChanged(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, spec := defaultSpec(t)
	require.NoError(t, sessions.Set(ctx, key.String(), "order_old"))

	stale := orderFor("order_old", spec)
	stale.Amount = 10000
	gw.On("FetchOrder", mock.Anything, "order_old").Return(stale, nil).Once()
	gw.On("CreateOrder", mock.Anything, spec).Return(orderFor("order_new", spec), nil).Once()

	order, err := store.GetOrCreate(ctx, sessions, key, spec)

	require.NoError(t, err)
	assert.Equal(t, "order_new", order.ID)
}

func TestOrderStore_TransientFetchErrorDoesNotCreate(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, spec := defaultSpec(t)
	require.NoError(t, sessions.Set(ctx, key.String(), "order_1"))

	gw.On("FetchOrder", mock.Anything, "order_1").
		Return(nil, &application.GatewayError{Kind: application.KindServer, StatusCode: 502}).
		Once()

	_, err := store.GetOrCreate(ctx, sessions, key, spec)

	assert.True(t, application.IsGatewayErrorKind(err, application.KindServer))
	gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
	cached, ok, _ := sessions.Get(ctx, key.String())
	assert.True(t, ok)
	assert.Equal(t, "order_1", cached)
}

func TestOrderStore_ConcurrentRequestsCreateOnce(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, spec := defaultSpec(t)

	var creates int32
	gw.On("CreateOrder", mock.Anything, spec).
		Run(func(mock.Arguments) {
			atomic.AddInt32(&creates, 1)
			time.Sleep(50 * time.Millisecond)
		}).
		Return(orderFor("order_1", spec), nil)
	gw.On("FetchOrder", mock.Anything, "order_1").Return(orderFor("order_1", spec), nil).Maybe()

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order, err := store.GetOrCreate(ctx, sessions, key, spec)
			if assert.NoError(t, err) {
				ids[i] = order.ID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&creates))
	for _, id := range ids {
		assert.Equal(t, "order_1", id)
	}
}

func TestOrderStore_DifferentInvoicesGetDifferentOrders(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")

	a := testhelpers.DefaultInvoice()
	b := testhelpers.DefaultInvoice()
	b.Number = 43
	specA, _ := a.OrderSpec()
	specB, _ := b.OrderSpec()

	gw.On("CreateOrder", mock.Anything, specA).Return(orderFor("order_a", specA), nil).Once()
	gw.On("CreateOrder", mock.Anything, specB).Return(orderFor("order_b", specB), nil).Once()

	orderA, err := store.GetOrCreate(ctx, sessions, a.IdempotencyKey(), specA)
	require.NoError(t, err)
	orderB, err := store.GetOrCreate(ctx, sessions, b.IdempotencyKey(), specB)
	require.NoError(t, err)

	assert.NotEqual(t, orderA.ID, orderB.ID)
}

func TestOrderStore_Forget(t *testing.T) {
	ctx := context.Background()
	store := services.NewOrderStore(testhelpers.NewMockGatewayClient(t), discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, _ := defaultSpec(t)
	require.NoError(t, sessions.Set(ctx, key.String(), "order_1"))

	require.NoError(t, store.Forget(ctx, sessions, key))

	_, ok, err := store.Lookup(ctx, sessions, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOrderStore_CreateErrorLeavesCacheEmpty(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, spec := defaultSpec(t)

	authErr := &application.GatewayError{Kind: application.KindAuthentication, StatusCode: 401}
	gw.On("CreateOrder", mock.Anything, spec).Return(nil, authErr).Once()

	_, err := store.GetOrCreate(ctx, sessions, key, spec)

	assert.True(t, errors.Is(err, authErr))
	_, ok, _ := sessions.Get(ctx, key.String())
	assert.False(t, ok)
}

func TestOrderStore_FlightOutlivesCancelledCaller(t *testing.T) {
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	sessions := session.NewMemoryStore(time.Hour).Scoped("s1")
	key, spec := defaultSpec(t)

	started := make(chan struct{})
	release := make(chan struct{})
	gw.On("CreateOrder", mock.Anything, spec).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
			assert.NoError(t, args.Get(0).(context.Context).Err())
		}).
		Return(orderFor("order_1", spec), nil).
		Once()

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := store.GetOrCreate(firstCtx, sessions, key, spec)
		firstErr <- err
	}()
	<-started

	joined := make(chan *domain.Order, 1)
	go func() {
		order, err := store.GetOrCreate(context.Background(), sessions, key, spec)
		assert.NoError(t, err)
		joined <- order
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	order := <-joined
	require.NotNil(t, order)
	assert.Equal(t, "order_1", order.ID)

	cached, ok, err := sessions.Get(context.Background(), key.String())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order_1", cached)
}

func TestOrderStore_SessionsDoNotShareFlights(t *testing.T) {
	ctx := context.Background()
	gw := testhelpers.NewMockGatewayClient(t)
	store := services.NewOrderStore(gw, discardLogger())
	mem := session.NewMemoryStore(time.Hour)
	key, spec := defaultSpec(t)

	var creates int32
	slow := func(mock.Arguments) {
		atomic.AddInt32(&creates, 1)
		time.Sleep(50 * time.Millisecond)
	}
	gw.On("CreateOrder", mock.Anything, spec).Run(slow).Return(orderFor("order_a", spec), nil).Once()
	gw.On("CreateOrder", mock.Anything, spec).Run(slow).Return(orderFor("order_b", spec), nil).Once()

	scopes := []application.SessionStore{mem.Scoped("s1"), mem.Scoped("s2")}
	ids := make([]string, len(scopes))
	var wg sync.WaitGroup
	for i, sessions := range scopes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := store.GetOrCreate(ctx, sessions, key, spec)
			if assert.NoError(t, err) {
				ids[i] = order.ID
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&creates))
	assert.ElementsMatch(t, []string{"order_a", "order_b"}, ids)
	for i, sessions := range scopes {
		cached, ok, err := sessions.Get(ctx, key.String())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, ids[i], cached)
	}
}
