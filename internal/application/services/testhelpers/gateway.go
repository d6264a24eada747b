package testhelpers

import (
	"context"

	"github.com/DanielPopoola/razorpay-reconciler/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockGatewayClient is a testify mock of application.GatewayClient.
type MockGatewayClient struct {
	mock.Mock
}

func NewMockGatewayClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockGatewayClient {
	m := &MockGatewayClient{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockGatewayClient) CreateOrder(ctx context.Context, spec domain.OrderSpec) (*domain.Order, error) {
	args := m.Called(ctx, spec)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *MockGatewayClient) FetchOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *MockGatewayClient) FetchCharge(ctx context.Context, paymentID string) (*domain.Charge, error) {
	args := m.Called(ctx, paymentID)
	charge, _ := args.Get(0).(*domain.Charge)
	return charge, args.Error(1)
}
