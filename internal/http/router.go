package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wenwu/saas-platform/hosting-shop/internal/config"
	"github.com/wenwu/saas-platform/hosting-shop/internal/service"
)

// RateLimiter is a simple in-memory sliding-window limiter
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks whether a request under key may proceed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// RateLimitMiddleware limits by user id, falling back to client IP
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetString("userID")
		if key == "" {
			key = c.ClientIP()
		}

		if !rl.Allow(key) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, please try again later",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

type Server struct {
	router  *gin.Engine
	handler *Handler
	cfg     *config.Config
}

// Per-user API limit
var userRateLimiter = NewRateLimiter(30, time.Minute)

// Checkout limit per IP: enough for retries, tight enough to stop
// order-spam against the payment gateway
var checkoutRateLimiter = NewRateLimiter(10, time.Hour)

func NewServer(
	cfg *config.Config,
	checkoutService *service.CheckoutService,
	paymentService *service.PaymentService,
	provisionService *service.ProvisionService,
	tokenService *service.TokenService,
	events service.EventLog,
) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	handler := NewHandler(checkoutService, paymentService, provisionService, tokenService, events)

	s := &Server{
		router:  router,
		handler: handler,
		cfg:     cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "hosting-shop",
		})
	})

	// Public storefront API - guest checkout allowed
	public := s.router.Group("/api/v1/public")
	public.Use(OptionalJWTMiddleware(s.cfg.JWT.SecretKey))
	{
		public.GET("/plans", s.handler.GetPlans)
		public.POST("/checkout", RateLimitMiddleware(checkoutRateLimiter), s.handler.Checkout)
		public.GET("/orders/:id", s.handler.GetOrder)
		public.GET("/orders/:id/service", s.handler.GetOrderService)
	}

	// Payment gateway callbacks - the webhook body is untrusted, both
	// handlers re-query the gateway for authoritative status
	payments := s.router.Group("/api/v1/payments")
	{
		payments.GET("/return", s.handler.PaymentReturn)
		payments.POST("/notify", s.handler.PaymentNotify)
		payments.GET("/notify", s.handler.PaymentNotify)
	}

	// Auth
	s.router.POST("/api/v1/auth/refresh", s.handler.RefreshToken)

	// User API - requires JWT
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(userRateLimiter))
	{
		user.GET("/my/orders", s.handler.ListMyOrders)
		user.GET("/my/orders/:id", s.handler.GetOrder)
		user.GET("/my/orders/:id/service", s.handler.GetOrderService)
	}

	// Internal operator API - manual retry and lifecycle enforcement
	internal := s.router.Group("/api/internal")
	internal.Use(InternalAuthMiddleware(s.cfg.InternalSecret))
	{
		internal.GET("/provisions/failed", s.handler.ListFailedProvisions)
		internal.GET("/services/:id", s.handler.GetProvisionDetail)
		internal.POST("/orders/:id/retry-provision", s.handler.RetryProvision)
		internal.POST("/services/:id/suspend", s.handler.SuspendService)
		internal.POST("/services/:id/unsuspend", s.handler.UnsuspendService)
		internal.POST("/services/:id/cancel", s.handler.CancelService)
		internal.GET("/orders/:id/events", s.handler.GetOrderEvents)
		internal.PUT("/plans/:id", s.handler.UpsertPlan)
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
