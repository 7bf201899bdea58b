package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
	"github.com/wenwu/saas-platform/hosting-shop/internal/repository"
)

// ErrUnknownIntent means the notification referenced a payment intent
// this shop never created
var ErrUnknownIntent = errors.New("unknown payment intent")

// Return-flow polling: gateway status is not guaranteed available the
// instant the customer is redirected back
var (
	returnPollAttempts = 5
	returnPollInterval = 2 * time.Second
)

// PaymentService owns the two reconciliation entry points: the
// customer's return flow and the gateway webhook. Both converge on
// ReconcilePayment, which pulls authoritative status from the gateway
// and never trusts pushed payloads.
type PaymentService struct {
	orders      OrderStore
	events      EventLog
	gateway     PaymentGateway
	provisioner *ProvisionService
}

// NewPaymentService creates a new reconciliation service
func NewPaymentService(orders OrderStore, events EventLog, gateway PaymentGateway, provisioner *ProvisionService) *PaymentService {
	return &PaymentService{
		orders:      orders,
		events:      events,
		gateway:     gateway,
		provisioner: provisioner,
	}
}

// ReconcilePayment is the idempotency boundary: calling it N times for
// the same paid order is a no-op beyond the first successful
// provisioning run. The intent id is the only input taken from the
// caller; everything else is re-read from the gateway.
func (s *PaymentService) ReconcilePayment(ctx context.Context, intentID string) (*models.Order, error) {
	order, err := s.orders.GetByPaymentIntentID(ctx, intentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnknownIntent
		}
		return nil, fmt.Errorf("get order by intent: %w", err)
	}

	state, err := s.gateway.GetStatus(ctx, intentID)
	if err != nil {
		return nil, fmt.Errorf("get payment status: %w", err)
	}

	paymentStatus, orderStatus := mapGatewayState(state, order)

	if order.PaymentStatus != paymentStatus || order.Status != orderStatus || derefOr(order.GatewayState, "") != state {
		if err := s.orders.UpdatePaymentOutcome(ctx, order.ID, orderStatus, paymentStatus, state); err != nil {
			return nil, err
		}
		s.logEvent(ctx, order.ID, "payment_reconciled", paymentStatus,
			fmt.Sprintf("Gateway state %s (was %s)", state, derefOr(order.GatewayState, "none")))
		order.PaymentStatus = paymentStatus
		order.Status = orderStatus
		order.GatewayState = &state
	}

	if state == models.GatewayStatePaid {
		if err := s.provisioner.Run(ctx, order.ID); err != nil {
			switch {
			case errors.Is(err, ErrSagaBusy):
				// another trigger is already driving the saga
				log.Printf("[Reconcile] Saga busy for order %s, skipping", order.ID)
			default:
				// provisioning failures are recorded on the service
				// record and retried by a later trigger; payment state
				// is already consistent
				log.Printf("[Reconcile] Provisioning failed for order %s: %v", order.ID, err)
			}
		}
		// re-read so the caller sees the provisioning outcome
		if refreshed, err := s.orders.GetByID(ctx, order.ID); err == nil {
			order = refreshed
		}
	}

	return order, nil
}

// HandleReturn serves the customer redirected back from the gateway.
// The query parameter is only an intent id; status is polled because
// the gateway may not have settled yet.
func (s *PaymentService) HandleReturn(ctx context.Context, intentID string) (*models.Order, error) {
	var order *models.Order
	var err error

	for attempt := 1; attempt <= returnPollAttempts; attempt++ {
		order, err = s.ReconcilePayment(ctx, intentID)
		if err != nil {
			return nil, err
		}

		if order.PaymentStatus != models.PaymentStatusUnpaid || isTerminalGatewayState(derefOr(order.GatewayState, "")) {
			return order, nil
		}

		if attempt < returnPollAttempts {
			select {
			case <-ctx.Done():
				return order, ctx.Err()
			case <-time.After(returnPollInterval):
			}
		}
	}

	// still pending; the webhook remains the catch-up path
	return order, nil
}

// HandleNotification serves the gateway webhook. Delivery is
// at-least-once and unordered, so the payload is nothing more than a
// wake-up signal carrying an intent id.
func (s *PaymentService) HandleNotification(ctx context.Context, intentID string) error {
	_, err := s.ReconcilePayment(ctx, intentID)
	if errors.Is(err, ErrUnknownIntent) {
		// do not reveal which intents exist; log and acknowledge
		log.Printf("[Reconcile] Notification for unknown intent %s ignored", intentID)
		return nil
	}
	return err
}

// mapGatewayState translates an authoritative gateway state into local
// payment and order statuses. PAID is the only state that ever yields
// payment_status=paid.
func mapGatewayState(state string, order *models.Order) (paymentStatus, orderStatus string) {
	switch state {
	case models.GatewayStatePaid:
		// order status moves to active only once provisioning finishes
		status := order.Status
		if status == models.OrderStatusPending {
			status = models.OrderStatusProcessing
		}
		return models.PaymentStatusPaid, status

	case models.GatewayStateCanceled, models.GatewayStateAuthorizationDeclined, models.GatewayStateMethodDisabled:
		return models.PaymentStatusFailed, models.OrderStatusCancelled

	case models.GatewayStateTimeouted:
		return models.PaymentStatusFailed, models.OrderStatusExpired

	case models.GatewayStateRefunded:
		return models.PaymentStatusRefunded, models.OrderStatusCancelled

	case models.GatewayStatePartiallyRefunded:
		// service keeps running after a partial refund
		return models.PaymentStatusPaid, order.Status

	default:
		// CREATED, PAYMENT_METHOD_CHOSEN, AUTHORIZED: nothing settled yet
		return order.PaymentStatus, order.Status
	}
}

func isTerminalGatewayState(state string) bool {
	switch state {
	case models.GatewayStatePaid, models.GatewayStateCanceled, models.GatewayStateTimeouted,
		models.GatewayStateRefunded, models.GatewayStateAuthorizationDeclined, models.GatewayStateMethodDisabled:
		return true
	}
	return false
}

func (s *PaymentService) logEvent(ctx context.Context, orderID, action, status, message string) {
	if err := s.events.LogAction(ctx, orderID, action, status, message); err != nil {
		log.Printf("[Reconcile] Failed to log event %s for order %s: %v", action, orderID, err)
	}
}
