package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/hosting-shop/internal/models"
	"github.com/wenwu/saas-platform/hosting-shop/internal/repository"
	"github.com/wenwu/saas-platform/hosting-shop/internal/service"
)

type Handler struct {
	checkoutService  *service.CheckoutService
	paymentService   *service.PaymentService
	provisionService *service.ProvisionService
	tokenService     *service.TokenService
	events           service.EventLog
}

func NewHandler(
	checkoutService *service.CheckoutService,
	paymentService *service.PaymentService,
	provisionService *service.ProvisionService,
	tokenService *service.TokenService,
	events service.EventLog,
) *Handler {
	return &Handler{
		checkoutService:  checkoutService,
		paymentService:   paymentService,
		provisionService: provisionService,
		tokenService:     tokenService,
		events:           events,
	}
}

// ==================== Public Handlers ====================

// GetPlans returns the storefront plan catalog
func (h *Handler) GetPlans(c *gin.Context) {
	plans, err := h.checkoutService.GetPlans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// Checkout places an order and returns the gateway redirect
func (h *Handler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID *string
	if uid := c.GetString("userID"); uid != "" {
		userID = &uid
	}

	resp, err := h.checkoutService.Checkout(c.Request.Context(), &req, userID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanUnavailable), errors.Is(err, service.ErrInvalidDomain):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed, please try again"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetOrder returns the customer-facing order view. Guests authenticate
// with the access ref from checkout.
func (h *Handler) GetOrder(c *gin.Context) {
	orderID := c.Param("id")
	accessRef := c.Query("ref")

	var userID *string
	if uid := c.GetString("userID"); uid != "" {
		userID = &uid
	}

	resp, err := h.checkoutService.GetOrder(c.Request.Context(), orderID, accessRef, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for this order"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetOrderService returns the hosting service behind an order, guarded
// the same way as GetOrder
func (h *Handler) GetOrderService(c *gin.Context) {
	orderID := c.Param("id")
	accessRef := c.Query("ref")

	var userID *string
	if uid := c.GetString("userID"); uid != "" {
		userID = &uid
	}

	info, err := h.checkoutService.GetOrderService(c.Request.Context(), orderID, accessRef, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
			return
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for this order"})
		return
	}

	c.JSON(http.StatusOK, info)
}

// ==================== Payment Callback Handlers ====================

// PaymentReturn serves the customer's browser redirected back from the
// gateway. Only the intent id is taken from the query; status is polled
// from the gateway.
func (h *Handler) PaymentReturn(c *gin.Context) {
	intentID := c.Query("id")
	if intentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment id required"})
		return
	}

	order, err := h.paymentService.HandleReturn(c.Request.Context(), intentID)
	if err != nil {
		if errors.Is(err, service.ErrUnknownIntent) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment check failed, please refresh"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":       order.ID,
		"status":         order.Status,
		"payment_status": order.PaymentStatus,
	})
}

// PaymentNotify serves the gateway webhook. The body is untrusted; only
// the intent id is extracted and the authoritative status re-queried.
func (h *Handler) PaymentNotify(c *gin.Context) {
	intentID := c.Query("id")
	if intentID == "" {
		var body struct {
			ID int64 `json:"id"`
		}
		if err := c.ShouldBindJSON(&body); err == nil && body.ID != 0 {
			intentID = strconv.FormatInt(body.ID, 10)
		}
	}
	if intentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment id required"})
		return
	}

	if err := h.paymentService.HandleNotification(c.Request.Context(), intentID); err != nil {
		// non-2xx makes the gateway redeliver, which is what we want on
		// transient failures
		c.JSON(http.StatusInternalServerError, gin.H{"error": "notification processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ==================== User Handlers ====================

// ListMyOrders returns the authenticated user's orders
func (h *Handler) ListMyOrders(c *gin.Context) {
	userID := c.GetString("userID")

	orders, err := h.checkoutService.ListOrders(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// RefreshToken rotates the refresh credential
func (h *Handler) RefreshToken(c *gin.Context) {
	var req models.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := h.tokenService.Rotate(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// ==================== Internal Handlers ====================

// ListFailedProvisions returns services needing operator follow-up
func (h *Handler) ListFailedProvisions(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}

	details, err := h.provisionService.ListFailed(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"provisions": details})
}

// RetryProvision re-runs the saga for an order, optionally supplying
// the missing domain
func (h *Handler) RetryProvision(c *gin.Context) {
	orderID := c.Param("id")

	var req models.RetryProvisionRequest
	_ = c.ShouldBindJSON(&req)

	err := h.provisionService.Retry(c.Request.Context(), orderID, req.Domain)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrSagaBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "provisioning already in flight"})
	case errors.Is(err, service.ErrNoDomain):
		c.JSON(http.StatusBadRequest, gin.H{"error": "order has no domain"})
	case errors.Is(err, service.ErrNotPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "order not paid"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetProvisionDetail returns the operator view of a service
func (h *Handler) GetProvisionDetail(c *gin.Context) {
	detail, err := h.provisionService.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "service not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SuspendService suspends a service's panel account
func (h *Handler) SuspendService(c *gin.Context) {
	if err := h.provisionService.Suspend(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UnsuspendService reactivates a service's panel account
func (h *Handler) UnsuspendService(c *gin.Context) {
	if err := h.provisionService.Unsuspend(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CancelService marks a service cancelled
func (h *Handler) CancelService(c *gin.Context) {
	if err := h.provisionService.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// UpsertPlan creates or updates a catalog entry
func (h *Handler) UpsertPlan(c *gin.Context) {
	var req models.UpsertPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	plan, err := h.checkoutService.UpsertPlan(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": models.PlanInfo{
		ID:       plan.ID,
		Name:     plan.Name,
		Price:    plan.Price.String(),
		Currency: plan.Currency,
	}})
}

// GetOrderEvents returns the audit log for an order
func (h *Handler) GetOrderEvents(c *gin.Context) {
	events, err := h.events.GetByOrderID(c.Request.Context(), c.Param("id"), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
