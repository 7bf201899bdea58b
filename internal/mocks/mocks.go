package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/wenwu/saas-platform/hosting-shop/internal/client"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
)

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) Create(ctx context.Context, o *models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderStore) GetByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Order), args.Error(1)
}

func (m *MockOrderStore) Update(ctx context.Context, o *models.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderStore) SetPaymentIntent(ctx context.Context, id, intentID, gatewayState string) error {
	args := m.Called(ctx, id, intentID, gatewayState)
	return args.Error(0)
}

func (m *MockOrderStore) UpdatePaymentOutcome(ctx context.Context, id, status, paymentStatus, gatewayState string) error {
	args := m.Called(ctx, id, status, paymentStatus, gatewayState)
	return args.Error(0)
}

type MockHostingServiceStore struct {
	mock.Mock
}

func (m *MockHostingServiceStore) Create(ctx context.Context, hs *models.HostingService) error {
	args := m.Called(ctx, hs)
	return args.Error(0)
}

func (m *MockHostingServiceStore) GetByID(ctx context.Context, id string) (*models.HostingService, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HostingService), args.Error(1)
}

func (m *MockHostingServiceStore) GetByOrderID(ctx context.Context, orderID string) (*models.HostingService, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.HostingService), args.Error(1)
}

func (m *MockHostingServiceStore) Update(ctx context.Context, hs *models.HostingService) error {
	args := m.Called(ctx, hs)
	return args.Error(0)
}

func (m *MockHostingServiceStore) CasSagaState(ctx context.Context, id, from, to string) (bool, error) {
	args := m.Called(ctx, id, from, to)
	return args.Bool(0), args.Error(1)
}

func (m *MockHostingServiceStore) ListFailed(ctx context.Context, limit int) ([]*models.HostingService, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.HostingService), args.Error(1)
}

type MockPlanStore struct {
	mock.Mock
}

func (m *MockPlanStore) GetAvailable(ctx context.Context) ([]*models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Plan), args.Error(1)
}

func (m *MockPlanStore) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *MockPlanStore) Upsert(ctx context.Context, p *models.Plan) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockRefreshTokenStore struct {
	mock.Mock
}

func (m *MockRefreshTokenStore) Create(ctx context.Context, t *models.RefreshToken) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockRefreshTokenStore) Consume(ctx context.Context, token string) (*models.RefreshToken, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}

func (m *MockRefreshTokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockEventLog struct {
	mock.Mock
}

func (m *MockEventLog) LogAction(ctx context.Context, orderID, action, status, message string) error {
	args := m.Called(ctx, orderID, action, status, message)
	return args.Error(0)
}

func (m *MockEventLog) GetByOrderID(ctx context.Context, orderID string, limit int) ([]*models.OrderEvent, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.OrderEvent), args.Error(1)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePayment(ctx context.Context, req *client.CreatePaymentRequest) (*client.CreatePaymentResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.CreatePaymentResponse), args.Error(1)
}

func (m *MockPaymentGateway) GetStatus(ctx context.Context, intentID string) (string, error) {
	args := m.Called(ctx, intentID)
	return args.String(0), args.Error(1)
}

type MockControlPanel struct {
	mock.Mock
}

func (m *MockControlPanel) UserExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockControlPanel) DomainExists(ctx context.Context, username, domain string) (bool, error) {
	args := m.Called(ctx, username, domain)
	return args.Bool(0), args.Error(1)
}

func (m *MockControlPanel) CreateUser(ctx context.Context, params *client.CreateUserParams) (*client.CreateUserResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.CreateUserResult), args.Error(1)
}

func (m *MockControlPanel) CreateWebDomain(ctx context.Context, username, domain string) error {
	args := m.Called(ctx, username, domain)
	return args.Error(0)
}

func (m *MockControlPanel) SetupSSL(ctx context.Context, username, domain string) error {
	args := m.Called(ctx, username, domain)
	return args.Error(0)
}

func (m *MockControlPanel) DeleteUser(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockControlPanel) SuspendUser(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockControlPanel) UnsuspendUser(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

type MockSealer struct {
	mock.Mock
}

func (m *MockSealer) Seal(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockSealer) Open(sealed string) (string, error) {
	args := m.Called(sealed)
	return args.String(0), args.Error(1)
}
