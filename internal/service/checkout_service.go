package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wenwu/saas-platform/hosting-shop/internal/client"
	"github.com/wenwu/saas-platform/hosting-shop/internal/config"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
)

var (
	// ErrPlanUnavailable means the selected plan does not exist or is
	// not offered
	ErrPlanUnavailable = errors.New("plan unavailable")
	// ErrInvalidDomain means the chosen domain failed syntax validation
	ErrInvalidDomain = errors.New("invalid domain name")
)

var domainPattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

// CheckoutService turns a storefront submission into a pending order
// with a gateway payment intent
type CheckoutService struct {
	cfg      *config.Config
	orders   OrderStore
	services HostingServiceStore
	plans    PlanStore
	events   EventLog
	gateway  PaymentGateway
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(cfg *config.Config, orders OrderStore, services HostingServiceStore, plans PlanStore, events EventLog, gateway PaymentGateway) *CheckoutService {
	return &CheckoutService{
		cfg:      cfg,
		orders:   orders,
		services: services,
		plans:    plans,
		events:   events,
		gateway:  gateway,
	}
}

// Checkout creates the order and its payment intent. userID is nil for
// guest checkout. Each submission creates a fresh order; abandoned ones
// simply expire.
func (s *CheckoutService) Checkout(ctx context.Context, req *models.CheckoutRequest, userID *string) (*models.CheckoutResponse, error) {
	plan, err := s.plans.GetByID(ctx, req.PlanID)
	if err != nil || !plan.Available {
		return nil, ErrPlanUnavailable
	}

	domain := strings.ToLower(strings.TrimSpace(req.Domain))
	if domain != "" && !domainPattern.MatchString(domain) {
		return nil, ErrInvalidDomain
	}

	order := &models.Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		AccessRef:     uuid.New().String(),
		PlanID:        plan.ID,
		PlanName:      plan.Name,
		Price:         plan.Price,
		Currency:      plan.Currency,
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:      req.FullName,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	if req.Phone != "" {
		order.Phone = &req.Phone
	}
	if req.BillingLine != "" {
		order.BillingLine = &req.BillingLine
	}
	if req.City != "" {
		order.City = &req.City
	}
	if req.Zip != "" {
		order.Zip = &req.Zip
	}
	if req.Country != "" {
		order.Country = &req.Country
	}
	if domain != "" {
		order.Domain = &domain
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logEvent(ctx, order.ID, "checkout", order.Status,
		fmt.Sprintf("Order placed: plan %s, %s %s", plan.Name, plan.Price, plan.Currency))

	intent, err := s.gateway.CreatePayment(ctx, &client.CreatePaymentRequest{
		OrderID:     order.ID,
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Description: fmt.Sprintf("Hosting plan %s", plan.Name),
		ReturnURL:   s.cfg.GoPay.ReturnURL,
		NotifyURL:   s.cfg.GoPay.NotifyURL,
	})
	if err != nil {
		s.logEvent(ctx, order.ID, "payment_intent_failed", order.Status, err.Error())
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	if err := s.orders.SetPaymentIntent(ctx, order.ID, intent.IntentID, intent.State); err != nil {
		return nil, err
	}

	log.Printf("[Checkout] Order %s created with payment intent %s", order.ID, intent.IntentID)

	return &models.CheckoutResponse{
		OrderID:     order.ID,
		AccessRef:   order.AccessRef,
		RedirectURL: intent.RedirectURL,
	}, nil
}

// GetPlans returns the public plan catalog
func (s *CheckoutService) GetPlans(ctx context.Context) ([]models.PlanInfo, error) {
	plans, err := s.plans.GetAvailable(ctx)
	if err != nil {
		return nil, err
	}

	var infos []models.PlanInfo
	for _, p := range plans {
		infos = append(infos, models.PlanInfo{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price.String(),
			Currency: p.Currency,
		})
	}
	return infos, nil
}

// GetOrder returns the customer-facing order view. Guests must present
// the access ref handed out at checkout; logged-in users must own the
// order.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID, accessRef string, userID *string) (*models.OrderStatusResponse, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !authorizedFor(order, accessRef, userID) {
		return nil, errors.New("not authorized for this order")
	}

	return toOrderStatus(order), nil
}

// authorizedFor admits the owning user or a guest holding the access
// ref handed out at checkout
func authorizedFor(order *models.Order, accessRef string, userID *string) bool {
	if userID != nil && order.UserID != nil && *userID == *order.UserID {
		return true
	}
	return accessRef != "" && accessRef == order.AccessRef
}

// UpsertPlan creates or updates a catalog entry. Operator-only; price
// is validated as a decimal and must not be negative.
func (s *CheckoutService) UpsertPlan(ctx context.Context, planID string, req *models.UpsertPlanRequest) (*models.Plan, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return nil, fmt.Errorf("invalid price %q", req.Price)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Shop.DefaultCurrency
	}

	plan := &models.Plan{
		ID:            planID,
		Name:          req.Name,
		Price:         price,
		Currency:      currency,
		HestiaPackage: req.HestiaPackage,
		Available:     req.Available,
	}
	if err := s.plans.Upsert(ctx, plan); err != nil {
		return nil, fmt.Errorf("upsert plan: %w", err)
	}

	log.Printf("[Checkout] Plan %s upserted (%s %s, available=%t)", plan.ID, plan.Price, plan.Currency, plan.Available)
	return plan, nil
}

// GetOrderService returns the customer view of the hosting service
// behind an order, under the same authorization rules as GetOrder. The
// panel URL appears only once provisioning finished.
func (s *CheckoutService) GetOrderService(ctx context.Context, orderID, accessRef string, userID *string) (*models.ServiceInfo, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !authorizedFor(order, accessRef, userID) {
		return nil, errors.New("not authorized for this order")
	}

	hs, err := s.services.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	info := &models.ServiceInfo{
		ServiceID: hs.ID,
		OrderID:   hs.OrderID,
		Status:    hs.Status,
		Domain:    hs.HestiaDomain,
	}
	if hs.HestiaCreated {
		info.PanelURL = hs.PanelURL
	}
	return info, nil
}

// ListOrders returns a user's orders
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]*models.OrderStatusResponse, error) {
	orders, err := s.orders.GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var out []*models.OrderStatusResponse
	for _, o := range orders {
		out = append(out, toOrderStatus(o))
	}
	return out, nil
}

// toOrderStatus maps an order to its customer view. Saga state and
// hestia_error never appear here.
func toOrderStatus(o *models.Order) *models.OrderStatusResponse {
	return &models.OrderStatusResponse{
		OrderID:       o.ID,
		PlanName:      o.PlanName,
		Price:         o.Price.String(),
		Currency:      o.Currency,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Domain:        o.Domain,
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}

func (s *CheckoutService) logEvent(ctx context.Context, orderID, action, status, message string) {
	if err := s.events.LogAction(ctx, orderID, action, status, message); err != nil {
		log.Printf("[Checkout] Failed to log event %s for order %s: %v", action, orderID, err)
	}
}
