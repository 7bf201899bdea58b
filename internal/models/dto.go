package models

// ==================== Public API DTOs ====================

// CheckoutRequest is submitted by the storefront to place an order
type CheckoutRequest struct {
	PlanID   string `json:"plan_id" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	FullName string `json:"full_name" binding:"required"`
	Phone    string `json:"phone,omitempty"`

	// Optional: empty means hosting-without-domain, provisioning waits
	Domain string `json:"domain,omitempty"`

	BillingLine string `json:"billing_line,omitempty"`
	City        string `json:"city,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Country     string `json:"country,omitempty"`
}

// CheckoutResponse points the customer at the gateway
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	AccessRef   string `json:"access_ref"`
	RedirectURL string `json:"redirect_url"`
}

// OrderStatusResponse is the customer-facing order view. Provisioning
// detail (saga state, hestia_error) is deliberately absent.
type OrderStatusResponse struct {
	OrderID       string  `json:"order_id"`
	PlanName      string  `json:"plan_name"`
	Price         string  `json:"price"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
	PaymentStatus string  `json:"payment_status"`
	Domain        *string `json:"domain,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// PlanInfo is one entry of the public plan catalog
type PlanInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Currency string `json:"currency"`
}

// ServiceInfo is the customer-facing hosting service view
type ServiceInfo struct {
	ServiceID string  `json:"service_id"`
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	Domain    *string `json:"domain,omitempty"`
	PanelURL  *string `json:"panel_url,omitempty"`
}

// ==================== Internal API DTOs ====================

// ProvisionDetail is the operator view of one hosting service,
// including saga state and the last provisioning error
type ProvisionDetail struct {
	ServiceID     string  `json:"service_id"`
	OrderID       string  `json:"order_id"`
	SagaState     string  `json:"saga_state"`
	Status        string  `json:"status"`
	HestiaCreated bool    `json:"hestia_created"`
	Username      *string `json:"hestia_username,omitempty"`
	Domain        *string `json:"hestia_domain,omitempty"`
	HestiaError   *string `json:"hestia_error,omitempty"`
	SSLWarning    *string `json:"ssl_warning,omitempty"`
	UpdatedAt     string  `json:"updated_at"`
}

// RetryProvisionRequest optionally supplies a domain that was missing
// at checkout time
type RetryProvisionRequest struct {
	Domain string `json:"domain,omitempty"`
}

// UpsertPlanRequest creates or updates a catalog entry
type UpsertPlanRequest struct {
	Name          string `json:"name" binding:"required"`
	Price         string `json:"price" binding:"required"`
	Currency      string `json:"currency,omitempty"`
	HestiaPackage string `json:"hestia_package" binding:"required"`
	Available     bool   `json:"available"`
}

// ==================== Auth DTOs ====================

// RefreshRequest carries the rotating refresh credential
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// TokenPairResponse is returned after a successful rotation
type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}
