package service

import (
	"context"

	"github.com/wenwu/saas-platform/hosting-shop/internal/client"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
)

// Interfaces consumed by the service layer. The repository and client
// packages provide the production implementations; internal/mocks
// provides the test doubles.

type OrderStore interface {
	Create(ctx context.Context, o *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error)
	GetByUser(ctx context.Context, userID string) ([]*models.Order, error)
	Update(ctx context.Context, o *models.Order) error
	SetPaymentIntent(ctx context.Context, id, intentID, gatewayState string) error
	UpdatePaymentOutcome(ctx context.Context, id, status, paymentStatus, gatewayState string) error
}

type HostingServiceStore interface {
	Create(ctx context.Context, hs *models.HostingService) error
	GetByID(ctx context.Context, id string) (*models.HostingService, error)
	GetByOrderID(ctx context.Context, orderID string) (*models.HostingService, error)
	Update(ctx context.Context, hs *models.HostingService) error
	CasSagaState(ctx context.Context, id, from, to string) (bool, error)
	ListFailed(ctx context.Context, limit int) ([]*models.HostingService, error)
}

type PlanStore interface {
	GetAvailable(ctx context.Context) ([]*models.Plan, error)
	GetByID(ctx context.Context, id string) (*models.Plan, error)
	Upsert(ctx context.Context, p *models.Plan) error
}

type RefreshTokenStore interface {
	Create(ctx context.Context, t *models.RefreshToken) error
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type EventLog interface {
	LogAction(ctx context.Context, orderID, action, status, message string) error
	GetByOrderID(ctx context.Context, orderID string, limit int) ([]*models.OrderEvent, error)
}

// PaymentGateway is the external payment collaborator. GetStatus is the
// only authoritative paid/not-paid source.
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req *client.CreatePaymentRequest) (*client.CreatePaymentResponse, error)
	GetStatus(ctx context.Context, intentID string) (string, error)
}

// ControlPanel is the external hosting control panel. All operations
// are idempotent under retry.
type ControlPanel interface {
	UserExists(ctx context.Context, username string) (bool, error)
	DomainExists(ctx context.Context, username, domain string) (bool, error)
	CreateUser(ctx context.Context, params *client.CreateUserParams) (*client.CreateUserResult, error)
	CreateWebDomain(ctx context.Context, username, domain string) error
	SetupSSL(ctx context.Context, username, domain string) error
	DeleteUser(ctx context.Context, username string) error
	SuspendUser(ctx context.Context, username string) error
	UnsuspendUser(ctx context.Context, username string) error
}

// CredentialSealer hides panel passwords before persistence
type CredentialSealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}
