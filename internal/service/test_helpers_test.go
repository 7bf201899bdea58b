package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wenwu/saas-platform/hosting-shop/internal/client"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
	"github.com/wenwu/saas-platform/hosting-shop/internal/repository"
)

// In-memory fakes for the service-layer ports. The hosting-service fake
// implements a real compare-and-set under a mutex so concurrency tests
// exercise the same race the database row would.

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[string]*models.Order)}
}

func (f *fakeOrderStore) Create(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderStore) GetByID(_ context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) GetByPaymentIntentID(_ context.Context, intentID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.PaymentIntentID != nil && *o.PaymentIntentID == intentID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeOrderStore) GetByUser(_ context.Context, userID string) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Order
	for _, o := range f.orders {
		if o.UserID != nil && *o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) Update(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderStore) SetPaymentIntent(_ context.Context, id, intentID, gatewayState string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.PaymentIntentID = &intentID
	o.GatewayState = &gatewayState
	return nil
}

func (f *fakeOrderStore) UpdatePaymentOutcome(_ context.Context, id, status, paymentStatus, gatewayState string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	o.GatewayState = &gatewayState
	return nil
}

type fakeServiceStore struct {
	mu       sync.Mutex
	services map[string]*models.HostingService

	// missHook runs after a GetByOrderID miss, outside the lock; tests
	// use it to line up concurrent first triggers
	missHook func()
}

func newFakeServiceStore() *fakeServiceStore {
	return &fakeServiceStore{services: make(map[string]*models.HostingService)}
}

// Create mirrors the production insert: one row per order, conflicting
// inserts are a no-op
func (f *fakeServiceStore) Create(_ context.Context, hs *models.HostingService) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.services {
		if existing.OrderID == hs.OrderID {
			return nil
		}
	}
	cp := *hs
	f.services[hs.ID] = &cp
	return nil
}

func (f *fakeServiceStore) GetByID(_ context.Context, id string) (*models.HostingService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hs, ok := f.services[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *hs
	return &cp, nil
}

func (f *fakeServiceStore) GetByOrderID(_ context.Context, orderID string) (*models.HostingService, error) {
	f.mu.Lock()
	for _, hs := range f.services {
		if hs.OrderID == orderID {
			cp := *hs
			f.mu.Unlock()
			return &cp, nil
		}
	}
	f.mu.Unlock()
	if f.missHook != nil {
		f.missHook()
	}
	return nil, repository.ErrNotFound
}

func (f *fakeServiceStore) Update(_ context.Context, hs *models.HostingService) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *hs
	cp.UpdatedAt = time.Now()
	f.services[hs.ID] = &cp
	return nil
}

func (f *fakeServiceStore) CasSagaState(_ context.Context, id, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	hs, ok := f.services[id]
	if !ok || hs.SagaState != from {
		return false, nil
	}
	hs.SagaState = to
	hs.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeServiceStore) ListFailed(_ context.Context, _ int) ([]*models.HostingService, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.HostingService
	for _, hs := range f.services {
		if hs.SagaState == models.SagaUserCreateFailed || hs.SagaState == models.SagaRolledBack || hs.HestiaError != nil {
			cp := *hs
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakePlanStore struct {
	plans map[string]*models.Plan
}

func newFakePlanStore() *fakePlanStore {
	return &fakePlanStore{plans: map[string]*models.Plan{
		"plan-basic": {
			ID:            "plan-basic",
			Name:          "Basic",
			Price:         decimal.NewFromInt(500),
			Currency:      "CZK",
			HestiaPackage: "default",
			Available:     true,
		},
	}}
}

func (f *fakePlanStore) GetAvailable(_ context.Context) ([]*models.Plan, error) {
	var out []*models.Plan
	for _, p := range f.plans {
		if p.Available {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlanStore) GetByID(_ context.Context, id string) (*models.Plan, error) {
	p, ok := f.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (f *fakePlanStore) Upsert(_ context.Context, p *models.Plan) error {
	f.plans[p.ID] = p
	return nil
}

type fakeEventLog struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeEventLog) LogAction(_ context.Context, _, action, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeEventLog) GetByOrderID(_ context.Context, _ string, _ int) ([]*models.OrderEvent, error) {
	return nil, nil
}

// fakeGateway serves a fixed state per intent id; CreatePayment is not
// used by the saga tests
type fakeGateway struct {
	mu     sync.Mutex
	states map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{states: make(map[string]string)}
}

func (f *fakeGateway) setState(intentID, state string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[intentID] = state
}

func (f *fakeGateway) CreatePayment(_ context.Context, req *client.CreatePaymentRequest) (*client.CreatePaymentResponse, error) {
	return &client.CreatePaymentResponse{
		IntentID:    "intent-" + req.OrderID,
		State:       models.GatewayStateCreated,
		RedirectURL: "https://gw.example.com/pay",
	}, nil
}

func (f *fakeGateway) GetStatus(_ context.Context, intentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[intentID]
	if !ok {
		return "", errors.New("unknown payment")
	}
	return state, nil
}

// fakePanel tracks side effects so tests can count panel mutations.
// blockCreate, when set, makes CreateUser wait until release is closed.
type fakePanel struct {
	mu      sync.Mutex
	users   map[string]bool
	domains map[string]bool

	createUserCalls int
	createDomCalls  int
	deleteUserCalls int

	failDomain bool
	failSSL    bool
	failDelete bool
	failCreate bool

	blockCreate chan struct{} // closed to release a blocked CreateUser
	started     chan struct{} // signalled once CreateUser is entered
}

func newFakePanel() *fakePanel {
	return &fakePanel{
		users:   make(map[string]bool),
		domains: make(map[string]bool),
	}
}

func (f *fakePanel) UserExists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[username], nil
}

func (f *fakePanel) DomainExists(_ context.Context, username, domain string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.domains[username+"/"+domain], nil
}

func (f *fakePanel) CreateUser(_ context.Context, params *client.CreateUserParams) (*client.CreateUserResult, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.blockCreate != nil {
		<-f.blockCreate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.createUserCalls++

	if f.failCreate {
		return nil, client.ErrPanelUnavailable
	}

	username := params.Username
	if username == "" {
		username = client.DeriveUsername(params.Email)
	}
	if f.users[username] {
		return &client.CreateUserResult{Username: username, Package: params.Package}, client.ErrAlreadyExists
	}
	f.users[username] = true
	return &client.CreateUserResult{Username: username, Password: "generated-pass", Package: params.Package}, nil
}

func (f *fakePanel) CreateWebDomain(_ context.Context, username, domain string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.domains[username+"/"+domain] {
		return nil
	}
	f.createDomCalls++
	if f.failDomain {
		return errors.New("v-add-web-domain returned code 1: invalid domain")
	}
	f.domains[username+"/"+domain] = true
	return nil
}

func (f *fakePanel) SetupSSL(_ context.Context, _, _ string) error {
	if f.failSSL {
		return errors.New("v-add-letsencrypt-domain returned code 1: dns not pointing here")
	}
	return nil
}

func (f *fakePanel) DeleteUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteUserCalls++
	if f.failDelete {
		return client.ErrPanelUnavailable
	}
	delete(f.users, username)
	return nil
}

func (f *fakePanel) SuspendUser(_ context.Context, _ string) error   { return nil }
func (f *fakePanel) UnsuspendUser(_ context.Context, _ string) error { return nil }

type fakeSealer struct{}

func (fakeSealer) Seal(plaintext string) (string, error) { return "sealed:" + plaintext, nil }
func (fakeSealer) Open(sealed string) (string, error)    { return sealed[len("sealed:"):], nil }

// testEnv wires a full coordinator over the fakes
type testEnv struct {
	orders   *fakeOrderStore
	services *fakeServiceStore
	plans    *fakePlanStore
	events   *fakeEventLog
	gateway  *fakeGateway
	panel    *fakePanel

	provisioner *ProvisionService
	payments    *PaymentService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		orders:   newFakeOrderStore(),
		services: newFakeServiceStore(),
		plans:    newFakePlanStore(),
		events:   &fakeEventLog{},
		gateway:  newFakeGateway(),
		panel:    newFakePanel(),
	}

	env.provisioner = NewProvisionService(
		env.orders, env.services, env.plans, env.events,
		env.gateway, env.panel, fakeSealer{}, "https://panel.example.com:8083",
	)
	env.payments = NewPaymentService(env.orders, env.events, env.gateway, env.provisioner)
	return env
}

// seedPaidOrder creates an order whose gateway state is PAID
func (env *testEnv) seedPaidOrder(id, domain string) *models.Order {
	intentID := "intent-" + id
	order := &models.Order{
		ID:            id,
		AccessRef:     "ref-" + id,
		PlanID:        "plan-basic",
		PlanName:      "Basic",
		Price:         decimal.NewFromInt(500),
		Currency:      "CZK",
		Email:         "pepa.novak@example.cz",
		FullName:      "Pepa Novak",
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	order.PaymentIntentID = &intentID
	if domain != "" {
		order.Domain = &domain
	}
	_ = env.orders.Create(context.Background(), order)
	env.gateway.setState(intentID, models.GatewayStatePaid)
	return order
}
