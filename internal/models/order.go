package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses (customer-facing)
const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusActive     = "active"
	OrderStatusCancelled  = "cancelled"
	OrderStatusExpired    = "expired"
)

// Payment statuses
const (
	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Gateway payment states as returned by the payment gateway status API.
// Only this set is ever persisted in Order.GatewayState.
const (
	GatewayStateCreated               = "CREATED"
	GatewayStateMethodChosen          = "PAYMENT_METHOD_CHOSEN"
	GatewayStateAuthorized            = "AUTHORIZED"
	GatewayStatePaid                  = "PAID"
	GatewayStateCanceled              = "CANCELED"
	GatewayStateTimeouted             = "TIMEOUTED"
	GatewayStateRefunded              = "REFUNDED"
	GatewayStatePartiallyRefunded     = "PARTIALLY_REFUNDED"
	GatewayStateMethodDisabled        = "PAYMENT_METHOD_DISABLED"
	GatewayStateAuthorizationDeclined = "AUTHORIZATION_DECLINED"
)

// Order represents one hosting plan purchase
type Order struct {
	ID     string
	UserID *string // nullable, guest checkout allowed
	// AccessRef lets a guest query their own order without an account
	AccessRef string

	PlanID   string
	PlanName string
	Price    decimal.Decimal
	Currency string

	// Customer contact / billing
	Email       string
	FullName    string
	Phone       *string
	BillingLine *string
	City        *string
	Zip         *string
	Country     *string

	Status        string
	PaymentStatus string

	// Payment gateway reference
	PaymentIntentID *string
	GatewayState    *string

	// Chosen domain, empty means hosting-without-domain
	Domain *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Paid reports whether the order has a confirmed payment
func (o *Order) Paid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// DomainName returns the chosen domain or empty
func (o *Order) DomainName() string {
	if o.Domain == nil {
		return ""
	}
	return *o.Domain
}
