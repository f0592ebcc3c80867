package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/services"
)

type AuthService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, phone, password string) (*services.Session, error)
	ResetPassword(ctx context.Context, phone, newPassword string) error
	Profile(ctx context.Context, userID uint) (*models.User, error)
}

type LoginRequest struct {
	MobileNumber string `form:"mobile_number" json:"mobile_number"`
	Password     string `form:"password" json:"password"`
}

type ResetPasswordRequest struct {
	MobileNumber string `form:"mobile_number" json:"mobile_number"`
	NewPassword  string `form:"new_password" json:"new_password"`
}

type AuthController struct {
	auth   AuthService
	cookie CookieConfig
}

func NewAuthController(auth AuthService, cookie CookieConfig) *AuthController {
	return &AuthController{auth: auth, cookie: cookie}
}

// Register handles POST /register
func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterInput
	if !bind(c, &req) {
		return
	}
	user, err := ac.auth.Register(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "User registered successfully",
		"user_id":     user.ID,
		"customer_id": user.CustomerID,
	})
}

// Login handles POST /login
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}
	session, err := ac.auth.Authenticate(c.Request.Context(), req.MobileNumber, req.Password)
	if err != nil {
		c.Error(err)
		return
	}
	ac.cookie.set(c, session.Token, session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       session.User,
	})
}

// Logout handles POST /logout
func (ac *AuthController) Logout(c *gin.Context) {
	ac.cookie.clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// ResetPassword handles POST /reset-password
func (ac *AuthController) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := ac.auth.ResetPassword(c.Request.Context(), req.MobileNumber, req.NewPassword); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// Me handles GET /api/me
func (ac *AuthController) Me(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	user, err := ac.auth.Profile(c.Request.Context(), p.ID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}
