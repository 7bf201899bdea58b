package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wenwu/saas-platform/hosting-shop/internal/client"
	"github.com/wenwu/saas-platform/hosting-shop/internal/config"
	"github.com/wenwu/saas-platform/hosting-shop/internal/mocks"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
	"github.com/wenwu/saas-platform/hosting-shop/internal/repository"
)

func testCheckoutConfig() *config.Config {
	return &config.Config{
		GoPay: config.GoPayConfig{
			ReturnURL: "https://shop.example.cz/payments/return",
			NotifyURL: "https://shop.example.cz/payments/notify",
		},
	}
}

func basicPlan() *models.Plan {
	return &models.Plan{
		ID:            "plan-basic",
		Name:          "Basic",
		Price:         decimal.NewFromInt(500),
		Currency:      "CZK",
		HestiaPackage: "default",
		Available:     true,
	}
}

func TestCheckout_CreatesOrderAndPaymentIntent(t *testing.T) {
	orders := new(mocks.MockOrderStore)
	plans := new(mocks.MockPlanStore)
	events := new(mocks.MockEventLog)
	gateway := new(mocks.MockPaymentGateway)

	plans.On("GetByID", mock.Anything, "plan-basic").Return(basicPlan(), nil)
	events.On("LogAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var created *models.Order
	orders.On("Create", mock.Anything, mock.AnythingOfType("*models.Order")).
		Run(func(args mock.Arguments) { created = args.Get(1).(*models.Order) }).
		Return(nil)

	gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req *client.CreatePaymentRequest) bool {
		return req.Currency == "CZK" && req.Amount.Equal(decimal.NewFromInt(500)) &&
			req.ReturnURL == "https://shop.example.cz/payments/return"
	})).Return(&client.CreatePaymentResponse{
		IntentID:    "3100000001",
		State:       models.GatewayStateCreated,
		RedirectURL: "https://gate.gopay.cz/gw/v3/3100000001",
	}, nil)

	orders.On("SetPaymentIntent", mock.Anything, mock.Anything, "3100000001", models.GatewayStateCreated).Return(nil)

	svc := NewCheckoutService(testCheckoutConfig(), orders, new(mocks.MockHostingServiceStore), plans, events, gateway)
	resp, err := svc.Checkout(context.Background(), &models.CheckoutRequest{
		PlanID:   "plan-basic",
		Email:    "  Pepa.Novak@Example.CZ ",
		FullName: "Pepa Novak",
		Domain:   "  Example.CZ ",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, created.ID, resp.OrderID)
	assert.NotEmpty(t, resp.AccessRef)
	assert.Equal(t, "https://gate.gopay.cz/gw/v3/3100000001", resp.RedirectURL)

	require.NotNil(t, created)
	assert.Nil(t, created.UserID, "guest checkout")
	assert.Equal(t, "pepa.novak@example.cz", created.Email)
	require.NotNil(t, created.Domain)
	assert.Equal(t, "example.cz", *created.Domain, "domain normalized")
	assert.Equal(t, models.OrderStatusPending, created.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, created.PaymentStatus)

	orders.AssertExpectations(t)
	gateway.AssertExpectations(t)
}

func TestCheckout_PlanNotOffered(t *testing.T) {
	tests := []struct {
		name string
		plan *models.Plan
		err  error
	}{
		{"unknown plan", nil, repository.ErrNotFound},
		{"plan withdrawn", &models.Plan{ID: "plan-old", Available: false}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans := new(mocks.MockPlanStore)
			plans.On("GetByID", mock.Anything, mock.Anything).Return(tt.plan, tt.err)

			svc := NewCheckoutService(testCheckoutConfig(), new(mocks.MockOrderStore), new(mocks.MockHostingServiceStore), plans, new(mocks.MockEventLog), new(mocks.MockPaymentGateway))
			_, err := svc.Checkout(context.Background(), &models.CheckoutRequest{PlanID: "plan-old", Email: "a@b.cz"}, nil)
			assert.ErrorIs(t, err, ErrPlanUnavailable)
		})
	}
}

func TestCheckout_InvalidDomain(t *testing.T) {
	plans := new(mocks.MockPlanStore)
	plans.On("GetByID", mock.Anything, "plan-basic").Return(basicPlan(), nil)

	svc := NewCheckoutService(testCheckoutConfig(), new(mocks.MockOrderStore), new(mocks.MockHostingServiceStore), plans, new(mocks.MockEventLog), new(mocks.MockPaymentGateway))

	for _, domain := range []string{"nodot", "-leading.cz", "spa ce.cz", "example."} {
		_, err := svc.Checkout(context.Background(), &models.CheckoutRequest{
			PlanID: "plan-basic",
			Email:  "a@b.cz",
			Domain: domain,
		}, nil)
		assert.ErrorIs(t, err, ErrInvalidDomain, "domain %q", domain)
	}
}

func TestCheckout_GatewayFailure(t *testing.T) {
	orders := new(mocks.MockOrderStore)
	plans := new(mocks.MockPlanStore)
	events := new(mocks.MockEventLog)
	gateway := new(mocks.MockPaymentGateway)

	plans.On("GetByID", mock.Anything, "plan-basic").Return(basicPlan(), nil)
	events.On("LogAction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	orders.On("Create", mock.Anything, mock.Anything).Return(nil)
	gateway.On("CreatePayment", mock.Anything, mock.Anything).Return(nil, client.ErrGatewayUnavailable)

	svc := NewCheckoutService(testCheckoutConfig(), orders, new(mocks.MockHostingServiceStore), plans, events, gateway)
	_, err := svc.Checkout(context.Background(), &models.CheckoutRequest{PlanID: "plan-basic", Email: "a@b.cz"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrGatewayUnavailable)

	orders.AssertNotCalled(t, "SetPaymentIntent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	events.AssertCalled(t, "LogAction", mock.Anything, mock.Anything, "payment_intent_failed", mock.Anything, mock.Anything)
}

func TestGetOrder_Authorization(t *testing.T) {
	ownerID := "user-7"
	order := &models.Order{
		ID:        "order-1",
		UserID:    &ownerID,
		AccessRef: "ref-secret",
		PlanName:  "Basic",
		Price:     decimal.NewFromInt(500),
		Currency:  "CZK",
		Status:    models.OrderStatusPending,
	}

	tests := []struct {
		name      string
		accessRef string
		userID    *string
		wantErr   bool
	}{
		{"guest with access ref", "ref-secret", nil, false},
		{"guest with wrong ref", "wrong", nil, true},
		{"guest with no ref", "", nil, true},
		{"owning user", "", &ownerID, false},
		{"other user", "", ptr("user-9"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(mocks.MockOrderStore)
			orders.On("GetByID", mock.Anything, "order-1").Return(order, nil)

			svc := NewCheckoutService(testCheckoutConfig(), orders, new(mocks.MockHostingServiceStore), new(mocks.MockPlanStore), new(mocks.MockEventLog), new(mocks.MockPaymentGateway))
			resp, err := svc.GetOrder(context.Background(), "order-1", tt.accessRef, tt.userID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "order-1", resp.OrderID)
			assert.Equal(t, "500", resp.Price)
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	orders := new(mocks.MockOrderStore)
	orders.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound)

	svc := NewCheckoutService(testCheckoutConfig(), orders, new(mocks.MockHostingServiceStore), new(mocks.MockPlanStore), new(mocks.MockEventLog), new(mocks.MockPaymentGateway))
	_, err := svc.GetOrder(context.Background(), "missing", "any", nil)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestGetOrderService(t *testing.T) {
	order := &models.Order{ID: "order-1", AccessRef: "ref-secret"}
	domain := "example.cz"
	panelURL := "https://panel.example.com:8083"

	tests := []struct {
		name         string
		hs           *models.HostingService
		wantPanelURL bool
	}{
		{
			name: "provisioned service exposes panel url",
			hs: &models.HostingService{
				ID: "svc-1", OrderID: "order-1", Status: models.ServiceStatusActive,
				HestiaCreated: true, HestiaDomain: &domain, PanelURL: &panelURL,
			},
			wantPanelURL: true,
		},
		{
			name: "pending service hides panel url",
			hs: &models.HostingService{
				ID: "svc-1", OrderID: "order-1", Status: models.ServiceStatusPending,
				HestiaDomain: &domain, PanelURL: &panelURL,
			},
			wantPanelURL: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := new(mocks.MockOrderStore)
			orders.On("GetByID", mock.Anything, "order-1").Return(order, nil)
			services := new(mocks.MockHostingServiceStore)
			services.On("GetByOrderID", mock.Anything, "order-1").Return(tt.hs, nil)

			svc := NewCheckoutService(testCheckoutConfig(), orders, services, new(mocks.MockPlanStore), new(mocks.MockEventLog), new(mocks.MockPaymentGateway))
			info, err := svc.GetOrderService(context.Background(), "order-1", "ref-secret", nil)
			require.NoError(t, err)

			assert.Equal(t, "svc-1", info.ServiceID)
			assert.Equal(t, tt.hs.Status, info.Status)
			if tt.wantPanelURL {
				require.NotNil(t, info.PanelURL)
				assert.Equal(t, panelURL, *info.PanelURL)
			} else {
				assert.Nil(t, info.PanelURL)
			}
		})
	}
}

func TestGetOrderService_Unauthorized(t *testing.T) {
	orders := new(mocks.MockOrderStore)
	orders.On("GetByID", mock.Anything, "order-1").Return(&models.Order{ID: "order-1", AccessRef: "ref-secret"}, nil)
	services := new(mocks.MockHostingServiceStore)

	svc := NewCheckoutService(testCheckoutConfig(), orders, services, new(mocks.MockPlanStore), new(mocks.MockEventLog), new(mocks.MockPaymentGateway))
	_, err := svc.GetOrderService(context.Background(), "order-1", "wrong", nil)
	assert.Error(t, err)
	services.AssertNotCalled(t, "GetByOrderID", mock.Anything, mock.Anything)
}

func TestGetPlans(t *testing.T) {
	plans := new(mocks.MockPlanStore)
	plans.On("GetAvailable", mock.Anything).Return([]*models.Plan{basicPlan()}, nil)

	svc := NewCheckoutService(testCheckoutConfig(), new(mocks.MockOrderStore), new(mocks.MockHostingServiceStore), plans, new(mocks.MockEventLog), new(mocks.MockPaymentGateway))
	infos, err := svc.GetPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "Basic", infos[0].Name)
	assert.Equal(t, "500", infos[0].Price)
}

func TestUpsertPlan(t *testing.T) {
	plans := new(mocks.MockPlanStore)

	var saved *models.Plan
	plans.On("Upsert", mock.Anything, mock.AnythingOfType("*models.Plan")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*models.Plan) }).
		Return(nil)

	cfg := testCheckoutConfig()
	cfg.Shop.DefaultCurrency = "CZK"

	svc := NewCheckoutService(cfg, new(mocks.MockOrderStore), new(mocks.MockHostingServiceStore), plans, new(mocks.MockEventLog), new(mocks.MockPaymentGateway))
	plan, err := svc.UpsertPlan(context.Background(), "plan-pro", &models.UpsertPlanRequest{
		Name:          "Pro",
		Price:         "129.99",
		HestiaPackage: "pro",
		Available:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "plan-pro", plan.ID)
	assert.Equal(t, "CZK", plan.Currency, "default currency applied")
	assert.True(t, plan.Price.Equal(decimal.RequireFromString("129.99")))
	require.NotNil(t, saved)
	assert.Equal(t, "pro", saved.HestiaPackage)
}

func TestUpsertPlan_InvalidPrice(t *testing.T) {
	svc := NewCheckoutService(testCheckoutConfig(), new(mocks.MockOrderStore), new(mocks.MockHostingServiceStore), new(mocks.MockPlanStore), new(mocks.MockEventLog), new(mocks.MockPaymentGateway))

	for _, price := range []string{"abc", "-5", ""} {
		_, err := svc.UpsertPlan(context.Background(), "plan-x", &models.UpsertPlanRequest{
			Name: "X", Price: price, HestiaPackage: "default",
		})
		assert.Error(t, err, "price %q", price)
	}
}

func ptr(s string) *string { return &s }
