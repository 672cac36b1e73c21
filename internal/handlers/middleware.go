package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yishak-cs/restaurant_orders/internal/appstate"
	"github.com/yishak-cs/restaurant_orders/internal/auth"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/services"
	"github.com/yishak-cs/restaurant_orders/pkg/helper"
)

const (
	// ClientCookie identifies the browser client across requests
	ClientCookie = "client_id"

	clientCookieMaxAge = 365 * 24 * 60 * 60
	instanceKey        = "instance"
	userKey            = "user"
	requestTimeout     = 10 * time.Second
)

// CORS allows the storefront to be served from another origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// clientInstance attaches the app instance of the calling browser, issuing a
// client cookie on first contact
func (h *APIHandler) clientInstance() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(ClientCookie)
		if err != nil || uuid.Validate(clientID) != nil {
			clientID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookie, clientID, clientCookieMaxAge, "/", "", h.secureCookies, true)
		}

		inst, err := h.registry.Get(clientID)
		if err != nil {
			h.logger.WithError(err).Error("Failed to open client state")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}
		c.Set(instanceKey, inst)
		c.Next()
	}
}

// requireSession lets signed-in users through. While the session is still being
// restored it answers 202 pending; without a user it redirects to loginPath.
func (h *APIHandler) requireSession(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		inst := instance(c)
		if inst.Session.Loading() && h.sessionWait > 0 {
			ctx, cancel := context.WithTimeout(c.Request.Context(), h.sessionWait)
			_ = inst.Session.WaitReady(ctx)
			cancel()
		}
		if inst.Session.Loading() {
			c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"state": "pending"})
			return
		}

		user, ok := inst.Session.CurrentUser()
		if !ok {
			c.Redirect(http.StatusFound, loginPath)
			c.Abort()
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// requireAdmin must run after requireSession
func (h *APIHandler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentUser(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// rateLimit bounds requests per client IP
func rateLimit(limiter *helper.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests, try again later",
				"code":  auth.CodeTooManyRequests,
			})
			return
		}
		c.Next()
	}
}

func instance(c *gin.Context) *appstate.Instance {
	return c.MustGet(instanceKey).(*appstate.Instance)
}

func currentUser(c *gin.Context) models.User {
	user, _ := c.Get(userKey)
	u, _ := user.(models.User)
	return u
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError writes the JSON error of err; message is used for unexpected failures
func (h *APIHandler) respondError(c *gin.Context, err error, message string) {
	var validationErr *services.ValidationError
	var authErr *auth.Error
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message, "fields": validationErr.Fields})
	case errors.As(err, &authErr):
		c.JSON(authStatus(authErr.Code), gin.H{"error": authErr.Message, "code": authErr.Code})
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.WithError(err).Warn(message)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": message})
	default:
		h.logger.WithError(err).Error(message)
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}

func authStatus(code string) int {
	switch code {
	case auth.CodeInvalidCredential, auth.CodeInvalidToken:
		return http.StatusUnauthorized
	case auth.CodeEmailAlreadyInUse:
		return http.StatusConflict
	case auth.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case auth.CodeUserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}
