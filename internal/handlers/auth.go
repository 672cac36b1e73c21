package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

type confirmResetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signup creates an account and signs it in
func (h *APIHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, password and display name are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	user, err := instance(c).Session.Signup(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.respondError(c, err, "Failed to create account")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user, "redirect": "/"})
}

// Login signs in with email and password
func (h *APIHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	user, err := instance(c).Session.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err, "Failed to sign in")
		return
	}

	redirect := "/"
	if user.IsAdmin() {
		redirect = "/admin"
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "redirect": redirect})
}

// Logout ends the session of the client
func (h *APIHandler) Logout(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := instance(c).Session.Logout(ctx); err != nil {
		h.respondError(c, err, "Failed to sign out")
		return
	}
	c.JSON(http.StatusOK, gin.H{"redirect": "/login"})
}

// ResetPassword mails a password reset link
func (h *APIHandler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := instance(c).Session.ResetPassword(ctx, req.Email); err != nil {
		h.respondError(c, err, "Failed to send reset email")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Check your inbox for further instructions"})
}

// ConfirmReset sets a new password from a reset link
func (h *APIHandler) ConfirmReset(c *gin.Context) {
	var req confirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token and password are required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := instance(c).Auth.ConfirmPasswordReset(ctx, req.Token, req.Password); err != nil {
		h.respondError(c, err, "Failed to reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated", "redirect": "/login"})
}

// Me reports the session state of the client
func (h *APIHandler) Me(c *gin.Context) {
	session := instance(c).Session
	if session.Loading() {
		c.JSON(http.StatusOK, gin.H{"state": "pending"})
		return
	}
	user, ok := session.CurrentUser()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"state": "signed_out"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": "signed_in", "user": user})
}
