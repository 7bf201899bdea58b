package models

import "time"

// Saga states for the provisioning state machine. Persisted per
// HostingService; every coordinator run re-derives its starting point
// from this field, never from the call stack.
const (
	SagaNotStarted         = "NOT_STARTED"
	SagaUserCreating       = "USER_CREATING"
	SagaUserCreated        = "USER_CREATED"
	SagaDomainCreating     = "DOMAIN_CREATING"
	SagaDomainCreated      = "DOMAIN_CREATED"
	SagaSSLAttempting      = "SSL_ATTEMPTING"
	SagaProvisioned        = "PROVISIONED"
	SagaUserCreateFailed   = "USER_CREATE_FAILED"
	SagaDomainCreateFailed = "DOMAIN_CREATE_FAILED"
	SagaCompensating       = "COMPENSATING"
	SagaRolledBack         = "ROLLED_BACK"
)

// Service statuses (mirrors provisioning outcome)
const (
	ServiceStatusPending   = "pending"
	ServiceStatusActive    = "active"
	ServiceStatusSuspended = "suspended"
	ServiceStatusCancelled = "cancelled"
)

// HostingService represents the control-panel account backing an order.
// Its existence plus HestiaCreated is the single source of truth for
// whether an external panel account exists.
type HostingService struct {
	ID      string
	OrderID string

	HestiaUsername *string
	HestiaDomain   *string
	PackageName    string

	HestiaCreated bool
	HestiaError   *string
	// SSL setup failure is non-fatal and only recorded here
	SSLWarning *string

	SagaState string
	Status    string

	PanelURL *string
	// AES-GCM sealed panel password, base64. Never stored in cleartext.
	CredentialsEnc *string

	ActivatedAt *time.Time
	ExpiresAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InFlight reports whether another coordinator currently owns the saga
func (s *HostingService) InFlight() bool {
	switch s.SagaState {
	case SagaUserCreating, SagaDomainCreating, SagaSSLAttempting, SagaCompensating:
		return true
	}
	return false
}

// Retryable reports whether a manual retry may restart the saga
func (s *HostingService) Retryable() bool {
	switch s.SagaState {
	case SagaNotStarted, SagaUserCreateFailed, SagaDomainCreateFailed, SagaRolledBack, SagaUserCreated, SagaDomainCreated:
		return true
	}
	return false
}
