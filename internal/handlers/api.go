package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/appstate"
	"github.com/yishak-cs/restaurant_orders/internal/metrics"
	"github.com/yishak-cs/restaurant_orders/internal/services"
	"github.com/yishak-cs/restaurant_orders/pkg/helper"
)

// Options holds the collaborators of the API handler
type Options struct {
	Registry *appstate.Registry
	Catalog  *services.CatalogService
	Orders   *services.OrderService
	Admin    *services.AdminService
	Metrics  *metrics.Metrics
	// AuthLimiter bounds auth requests per client IP; nil disables the limit
	AuthLimiter *helper.RateLimiter
	// SessionWait is how long a guarded request waits for a session being restored
	// before answering pending
	SessionWait   time.Duration
	SecureCookies bool
	// Health reports whether the document store is reachable; nil means always healthy
	Health func(ctx context.Context) error
	Logger logrus.FieldLogger
}

// APIHandler handles all API requests
type APIHandler struct {
	registry      *appstate.Registry
	catalog       *services.CatalogService
	orders        *services.OrderService
	admin         *services.AdminService
	metrics       *metrics.Metrics
	authLimiter   *helper.RateLimiter
	sessionWait   time.Duration
	secureCookies bool
	health        func(ctx context.Context) error
	logger        logrus.FieldLogger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(opts Options) *APIHandler {
	return &APIHandler{
		registry:      opts.Registry,
		catalog:       opts.Catalog,
		orders:        opts.Orders,
		admin:         opts.Admin,
		metrics:       opts.Metrics,
		authLimiter:   opts.AuthLimiter,
		sessionWait:   opts.SessionWait,
		secureCookies: opts.SecureCookies,
		health:        opts.Health,
		logger:        opts.Logger,
	}
}

// SetupRoutes configures all routes
func (h *APIHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.Health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	client := router.Group("/", h.clientInstance())

	// Public
	authAPI := client.Group("/api/auth")
	if h.authLimiter != nil {
		authAPI.Use(rateLimit(h.authLimiter))
	}
	{
		authAPI.POST("/signup", h.Signup)
		authAPI.POST("/login", h.Login)
		authAPI.POST("/logout", h.Logout)
		authAPI.POST("/reset-password", h.ResetPassword)
		authAPI.POST("/confirm-reset", h.ConfirmReset)
		authAPI.GET("/me", h.Me)
	}
	client.GET("/login", h.view("login"))
	client.GET("/signup", h.view("signup"))
	client.GET("/forgot-password", h.view("forgot-password"))
	client.GET("/reset-password", h.view("reset-password"))
	client.GET("/admin/login", h.view("admin-login"))

	// Customer area
	customer := client.Group("/", h.requireSession("/login"))
	{
		customer.GET("/", h.ListCategories)
		customer.GET("/home", h.ListCategories)
		customer.GET("/category/:id", h.GetCategory)
		customer.GET("/cart", h.GetCart)
		customer.GET("/checkout", h.CheckoutView)
		customer.GET("/orders", h.ListOrders)
		customer.GET("/order-confirmation/:id", h.GetOrder)

		api := customer.Group("/api")
		api.GET("/categories", h.ListCategories)
		api.GET("/categories/:id", h.GetCategory)
		api.GET("/recipes/:id", h.GetRecipe)
		api.GET("/cart", h.GetCart)
		api.POST("/cart", h.AddToCart)
		api.DELETE("/cart", h.ClearCart)
		api.PUT("/cart/:id", h.UpdateCartItem)
		api.DELETE("/cart/:id", h.RemoveCartItem)
		api.POST("/checkout", h.PlaceOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)
	}

	// Admin area
	admin := client.Group("/admin", h.requireSession("/admin/login"), h.requireAdmin())
	{
		admin.GET("", h.Dashboard)
		admin.GET("/dashboard", h.Dashboard)

		api := admin.Group("/api")
		api.GET("/categories", h.AdminListCategories)
		api.POST("/categories", h.CreateCategory)
		api.PUT("/categories/:id", h.UpdateCategory)
		api.DELETE("/categories/:id", h.DeleteCategory)
		api.GET("/recipes", h.AdminListRecipes)
		api.POST("/recipes", h.CreateRecipe)
		api.PUT("/recipes/:id", h.UpdateRecipe)
		api.DELETE("/recipes/:id", h.DeleteRecipe)
		api.GET("/orders", h.AdminListOrders)
		api.GET("/orders/:id", h.AdminGetOrder)
		api.PATCH("/orders/:id/status", h.UpdateOrderStatus)
		api.GET("/statuses", h.ListStatuses)
	}
}

// Health reports whether the server and its document store are up
func (h *APIHandler) Health(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": h.registry.Len()})
}

// view answers the public views, which carry no data of their own
func (h *APIHandler) view(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		inst := instance(c)
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.sessionWait)
		_ = inst.Session.WaitReady(ctx)
		cancel()

		resp := gin.H{"view": name}
		if user, ok := inst.Session.CurrentUser(); ok {
			resp["user"] = user
		}
		if token := c.Query("token"); token != "" {
			resp["token"] = token
		}
		c.JSON(http.StatusOK, resp)
	}
}
