package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/wenwu/saas-platform/hosting-shop/internal/client"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
	"github.com/wenwu/saas-platform/hosting-shop/internal/repository"
)

var (
	// ErrSagaBusy means another coordinator currently owns the saga for
	// this order. The loser performs no side effects.
	ErrSagaBusy = errors.New("provisioning already in flight")
	// ErrNotPaid means the gateway did not confirm payment; provisioning
	// never starts on unverified orders.
	ErrNotPaid = errors.New("order not paid")
	// ErrNoDomain means the order has no domain; the service stays at
	// NOT_STARTED until one is supplied.
	ErrNoDomain = errors.New("order has no domain")
)

// ProvisionService drives the provisioning saga: panel user → web
// domain → SSL, with compensation when domain creation fails. It is
// state-driven: every run re-derives its position from the persisted
// HostingService record, and each step is entered through a
// compare-and-set on the saga state so at most one run per order makes
// panel calls at a time.
type ProvisionService struct {
	orders   OrderStore
	services HostingServiceStore
	plans    PlanStore
	events   EventLog
	gateway  PaymentGateway
	panel    ControlPanel
	sealer   CredentialSealer
	panelURL string
}

// NewProvisionService creates a new provisioning coordinator
func NewProvisionService(
	orders OrderStore,
	services HostingServiceStore,
	plans PlanStore,
	events EventLog,
	gateway PaymentGateway,
	panel ControlPanel,
	sealer CredentialSealer,
	panelURL string,
) *ProvisionService {
	return &ProvisionService{
		orders:   orders,
		services: services,
		plans:    plans,
		events:   events,
		gateway:  gateway,
		panel:    panel,
		sealer:   sealer,
		panelURL: panelURL,
	}
}

// Run executes the saga for an order. Payment is re-verified against
// the gateway first; a caller claiming the order is paid is never
// trusted. Safe to call any number of times: a provisioned service is a
// no-op, a concurrent run returns ErrSagaBusy without side effects, and
// a previously failed run resumes from its persisted state.
func (s *ProvisionService) Run(ctx context.Context, orderID string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	if order.PaymentIntentID == nil {
		return fmt.Errorf("%w: order %s has no payment intent", ErrNotPaid, orderID)
	}

	state, err := s.gateway.GetStatus(ctx, *order.PaymentIntentID)
	if err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	if state != models.GatewayStatePaid {
		return fmt.Errorf("%w: gateway state is %s", ErrNotPaid, state)
	}

	hs, err := s.services.GetByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		hs, err = s.createService(ctx, order)
	}
	if err != nil {
		return fmt.Errorf("get hosting service: %w", err)
	}

	if order.DomainName() == "" {
		// hosting-without-domain is a valid end state, completed later
		// through the operator retry path
		log.Printf("[Provision] Order %s paid but has no domain, leaving saga at %s", orderID, hs.SagaState)
		return nil
	}

	return s.advance(ctx, order, hs)
}

// createService lazily creates the HostingService record on the first
// provisioning attempt. Two concurrent first triggers may both get here;
// the insert is conflict-free per order, so the re-read hands both runs
// the one surviving row and the CAS guard takes over from there.
func (s *ProvisionService) createService(ctx context.Context, order *models.Order) (*models.HostingService, error) {
	plan, err := s.plans.GetByID(ctx, order.PlanID)
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	hs := &models.HostingService{
		ID:           uuid.New().String(),
		OrderID:      order.ID,
		PackageName:  plan.HestiaPackage,
		HestiaDomain: order.Domain,
		SagaState:    models.SagaNotStarted,
		Status:       models.ServiceStatusPending,
	}
	if err := s.services.Create(ctx, hs); err != nil {
		return nil, fmt.Errorf("create hosting service: %w", err)
	}
	return s.services.GetByOrderID(ctx, order.ID)
}

// advance walks the state machine until the saga is provisioned, parked
// on a failure state, or lost to a concurrent run
func (s *ProvisionService) advance(ctx context.Context, order *models.Order, hs *models.HostingService) error {
	for {
		switch hs.SagaState {
		case models.SagaProvisioned:
			return nil

		case models.SagaUserCreating, models.SagaDomainCreating, models.SagaSSLAttempting, models.SagaCompensating:
			recovered, err := s.recoverStale(ctx, hs)
			if err != nil {
				return err
			}
			if !recovered {
				return ErrSagaBusy
			}

		case models.SagaNotStarted, models.SagaUserCreateFailed, models.SagaRolledBack:
			if err := s.stepCreateUser(ctx, order, hs); err != nil {
				return err
			}

		case models.SagaUserCreated:
			if err := s.stepCreateDomain(ctx, order, hs); err != nil {
				return err
			}

		case models.SagaDomainCreateFailed:
			if err := s.stepCompensate(ctx, order, hs); err != nil {
				return err
			}
			// rolled back is terminal for this attempt
			return nil

		case models.SagaDomainCreated:
			return s.stepSSLAndFinish(ctx, order, hs)

		default:
			return fmt.Errorf("unknown saga state %q for service %s", hs.SagaState, hs.ID)
		}
	}
}

// In-flight states this old belong to a run that died between its CAS
// and the following update
var staleInFlightAfter = 10 * time.Minute

// recoverStale rolls an abandoned in-flight state back to the stable
// state it was entered from. Every step tolerates re-execution (creates
// re-check existence, deletes tolerate absence), so resuming from the
// preceding state is safe; the rollback itself goes through the CAS so
// two recovering runs cannot both take ownership.
func (s *ProvisionService) recoverStale(ctx context.Context, hs *models.HostingService) (bool, error) {
	if time.Since(hs.UpdatedAt) < staleInFlightAfter {
		return false, nil
	}

	var prev string
	switch hs.SagaState {
	case models.SagaUserCreating:
		prev = models.SagaNotStarted
	case models.SagaDomainCreating:
		prev = models.SagaUserCreated
	case models.SagaSSLAttempting:
		prev = models.SagaDomainCreated
	case models.SagaCompensating:
		prev = models.SagaDomainCreateFailed
	default:
		return false, nil
	}

	won, err := s.services.CasSagaState(ctx, hs.ID, hs.SagaState, prev)
	if err != nil {
		return false, err
	}
	if !won {
		// another run recovered it first
		return false, nil
	}

	log.Printf("[Provision] Service %s abandoned in %s since %s, resuming from %s",
		hs.ID, hs.SagaState, hs.UpdatedAt.Format(time.RFC3339), prev)
	s.logEvent(ctx, hs.OrderID, "saga_recovered", prev,
		fmt.Sprintf("In-flight state %s abandoned, resumed from %s", hs.SagaState, prev))
	hs.SagaState = prev
	hs.UpdatedAt = time.Now()
	return true, nil
}

// stepCreateUser transitions NOT_STARTED (or a failed state) through
// USER_CREATING to USER_CREATED. The username and package are persisted
// before the domain step so a crash after this point resumes instead of
// re-creating the user.
func (s *ProvisionService) stepCreateUser(ctx context.Context, order *models.Order, hs *models.HostingService) error {
	won, err := s.services.CasSagaState(ctx, hs.ID, hs.SagaState, models.SagaUserCreating)
	if err != nil {
		return err
	}
	if !won {
		return ErrSagaBusy
	}
	hs.SagaState = models.SagaUserCreating

	// Resumability: a stored username that already exists on the panel
	// means a previous run got this far
	if hs.HestiaUsername != nil {
		exists, err := s.panel.UserExists(ctx, *hs.HestiaUsername)
		if err != nil {
			return s.failUser(ctx, order, hs, err)
		}
		if exists {
			log.Printf("[Provision] Panel user %s already exists for order %s, resuming", *hs.HestiaUsername, order.ID)
			hs.SagaState = models.SagaUserCreated
			if err := s.services.Update(ctx, hs); err != nil {
				return err
			}
			return nil
		}
	}

	params := &client.CreateUserParams{
		Email:   order.Email,
		Package: hs.PackageName,
	}
	if hs.HestiaUsername != nil {
		params.Username = *hs.HestiaUsername
	}

	result, err := s.panel.CreateUser(ctx, params)
	if err != nil && !errors.Is(err, client.ErrAlreadyExists) {
		return s.failUser(ctx, order, hs, err)
	}

	hs.HestiaUsername = &result.Username
	if result.Password != "" {
		sealed, sealErr := s.sealer.Seal(result.Password)
		if sealErr != nil {
			return s.failUser(ctx, order, hs, sealErr)
		}
		hs.CredentialsEnc = &sealed
	}
	hs.SagaState = models.SagaUserCreated
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}

	s.logEvent(ctx, order.ID, "user_created", hs.SagaState,
		fmt.Sprintf("Panel user %s created (package %s)", result.Username, hs.PackageName))
	return nil
}

// stepCreateDomain transitions USER_CREATED through DOMAIN_CREATING to
// DOMAIN_CREATED, or to DOMAIN_CREATE_FAILED when the panel rejects the
// domain
func (s *ProvisionService) stepCreateDomain(ctx context.Context, order *models.Order, hs *models.HostingService) error {
	won, err := s.services.CasSagaState(ctx, hs.ID, models.SagaUserCreated, models.SagaDomainCreating)
	if err != nil {
		return err
	}
	if !won {
		return ErrSagaBusy
	}
	hs.SagaState = models.SagaDomainCreating

	domain := order.DomainName()
	if err := s.panel.CreateWebDomain(ctx, *hs.HestiaUsername, domain); err != nil {
		msg := err.Error()
		hs.SagaState = models.SagaDomainCreateFailed
		hs.HestiaError = &msg
		if updErr := s.services.Update(ctx, hs); updErr != nil {
			return updErr
		}
		s.logEvent(ctx, order.ID, "domain_create_failed", hs.SagaState, msg)
		// fall through to compensation on the next loop iteration
		return nil
	}

	hs.HestiaDomain = &domain
	hs.SagaState = models.SagaDomainCreated
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}

	s.logEvent(ctx, order.ID, "domain_created", hs.SagaState,
		fmt.Sprintf("Web domain %s created for %s", domain, *hs.HestiaUsername))
	return nil
}

// stepCompensate deletes the user created earlier in this saga so a
// failed domain step never leaves an orphaned panel account
func (s *ProvisionService) stepCompensate(ctx context.Context, order *models.Order, hs *models.HostingService) error {
	won, err := s.services.CasSagaState(ctx, hs.ID, models.SagaDomainCreateFailed, models.SagaCompensating)
	if err != nil {
		return err
	}
	if !won {
		return ErrSagaBusy
	}
	hs.SagaState = models.SagaCompensating

	if err := s.panel.DeleteUser(ctx, *hs.HestiaUsername); err != nil {
		// compensation itself failed; park back on DOMAIN_CREATE_FAILED
		// so a later retry re-attempts the rollback
		msg := fmt.Sprintf("compensation failed: %v", err)
		hs.SagaState = models.SagaDomainCreateFailed
		hs.HestiaError = &msg
		if updErr := s.services.Update(ctx, hs); updErr != nil {
			return updErr
		}
		s.logEvent(ctx, order.ID, "compensation_failed", hs.SagaState, msg)
		return fmt.Errorf("compensate order %s: %w", order.ID, err)
	}

	hs.SagaState = models.SagaRolledBack
	hs.HestiaCreated = false
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}

	s.logEvent(ctx, order.ID, "rolled_back", hs.SagaState,
		fmt.Sprintf("Panel user %s deleted after domain creation failure", *hs.HestiaUsername))
	log.Printf("[Provision] Order %s rolled back: %s", order.ID, derefOr(hs.HestiaError, ""))
	return nil
}

// stepSSLAndFinish attempts SSL setup and completes the saga. SSL
// failure only populates a warning; the service still activates.
func (s *ProvisionService) stepSSLAndFinish(ctx context.Context, order *models.Order, hs *models.HostingService) error {
	won, err := s.services.CasSagaState(ctx, hs.ID, models.SagaDomainCreated, models.SagaSSLAttempting)
	if err != nil {
		return err
	}
	if !won {
		return ErrSagaBusy
	}
	hs.SagaState = models.SagaSSLAttempting

	if err := s.panel.SetupSSL(ctx, *hs.HestiaUsername, *hs.HestiaDomain); err != nil {
		warning := fmt.Sprintf("ssl setup failed: %v", err)
		hs.SSLWarning = &warning
		s.logEvent(ctx, order.ID, "ssl_failed", hs.SagaState, warning)
		log.Printf("[Provision] SSL setup failed for order %s (non-fatal): %v", order.ID, err)
	}

	now := time.Now()
	hs.SagaState = models.SagaProvisioned
	hs.HestiaCreated = true
	hs.HestiaError = nil
	hs.Status = models.ServiceStatusActive
	hs.ActivatedAt = &now
	hs.PanelURL = &s.panelURL
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}

	order.Status = models.OrderStatusActive
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}

	s.logEvent(ctx, order.ID, "provisioned", hs.SagaState,
		fmt.Sprintf("Hosting active: user %s, domain %s", *hs.HestiaUsername, *hs.HestiaDomain))
	log.Printf("[Provision] Order %s provisioned (user %s, domain %s)", order.ID, *hs.HestiaUsername, *hs.HestiaDomain)
	return nil
}

func (s *ProvisionService) failUser(ctx context.Context, order *models.Order, hs *models.HostingService, cause error) error {
	msg := cause.Error()
	hs.SagaState = models.SagaUserCreateFailed
	hs.HestiaError = &msg
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}
	s.logEvent(ctx, order.ID, "user_create_failed", hs.SagaState, msg)
	log.Printf("[Provision] User creation failed for order %s: %v", order.ID, cause)
	return fmt.Errorf("create panel user for order %s: %w", order.ID, cause)
}

// Retry re-runs the saga for an operator, optionally supplying a domain
// that was missing at checkout
func (s *ProvisionService) Retry(ctx context.Context, orderID, domain string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}

	if domain != "" && order.DomainName() == "" {
		order.Domain = &domain
		if err := s.orders.Update(ctx, order); err != nil {
			return err
		}
	}
	if order.DomainName() == "" {
		return ErrNoDomain
	}

	s.logEvent(ctx, orderID, "retry_provision", "manual", "Operator requested provisioning retry")
	return s.Run(ctx, orderID)
}

// Suspend suspends the panel account for billing enforcement.
// Idempotent: suspending an already-suspended service succeeds.
func (s *ProvisionService) Suspend(ctx context.Context, serviceID string) error {
	hs, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return err
	}
	if hs.HestiaUsername == nil || !hs.HestiaCreated {
		return fmt.Errorf("service %s has no panel account", serviceID)
	}

	if err := s.panel.SuspendUser(ctx, *hs.HestiaUsername); err != nil {
		return fmt.Errorf("suspend panel user: %w", err)
	}

	hs.Status = models.ServiceStatusSuspended
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}
	s.logEvent(ctx, hs.OrderID, "suspended", hs.Status, fmt.Sprintf("Panel user %s suspended", *hs.HestiaUsername))
	return nil
}

// Unsuspend reactivates a suspended service
func (s *ProvisionService) Unsuspend(ctx context.Context, serviceID string) error {
	hs, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return err
	}
	if hs.HestiaUsername == nil || !hs.HestiaCreated {
		return fmt.Errorf("service %s has no panel account", serviceID)
	}

	if err := s.panel.UnsuspendUser(ctx, *hs.HestiaUsername); err != nil {
		return fmt.Errorf("unsuspend panel user: %w", err)
	}

	hs.Status = models.ServiceStatusActive
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}
	s.logEvent(ctx, hs.OrderID, "unsuspended", hs.Status, fmt.Sprintf("Panel user %s unsuspended", *hs.HestiaUsername))
	return nil
}

// Cancel marks the service cancelled. The record is kept and the panel
// account is only suspended, never silently deleted, so rollback and
// audit remain possible.
func (s *ProvisionService) Cancel(ctx context.Context, serviceID string) error {
	hs, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return err
	}

	if hs.HestiaUsername != nil && hs.HestiaCreated {
		if err := s.panel.SuspendUser(ctx, *hs.HestiaUsername); err != nil {
			return fmt.Errorf("suspend panel user: %w", err)
		}
	}

	hs.Status = models.ServiceStatusCancelled
	if err := s.services.Update(ctx, hs); err != nil {
		return err
	}
	s.logEvent(ctx, hs.OrderID, "cancelled", hs.Status, "Service cancelled")
	return nil
}

// ListFailed returns services needing operator follow-up
func (s *ProvisionService) ListFailed(ctx context.Context, limit int) ([]*models.ProvisionDetail, error) {
	failed, err := s.services.ListFailed(ctx, limit)
	if err != nil {
		return nil, err
	}

	var details []*models.ProvisionDetail
	for _, hs := range failed {
		details = append(details, toProvisionDetail(hs))
	}
	return details, nil
}

// GetDetail returns the operator view of one service
func (s *ProvisionService) GetDetail(ctx context.Context, serviceID string) (*models.ProvisionDetail, error) {
	hs, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return toProvisionDetail(hs), nil
}

func toProvisionDetail(hs *models.HostingService) *models.ProvisionDetail {
	return &models.ProvisionDetail{
		ServiceID:     hs.ID,
		OrderID:       hs.OrderID,
		SagaState:     hs.SagaState,
		Status:        hs.Status,
		HestiaCreated: hs.HestiaCreated,
		Username:      hs.HestiaUsername,
		Domain:        hs.HestiaDomain,
		HestiaError:   hs.HestiaError,
		SSLWarning:    hs.SSLWarning,
		UpdatedAt:     hs.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *ProvisionService) logEvent(ctx context.Context, orderID, action, status, message string) {
	if err := s.events.LogAction(ctx, orderID, action, status, message); err != nil {
		log.Printf("[Provision] Failed to log event %s for order %s: %v", action, orderID, err)
	}
}

func derefOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
