package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/orderms/internal/services"
)

type AdminService interface {
	Login(ctx context.Context, email, password string) (*services.AdminSession, error)
	ChangePassword(ctx context.Context, adminID uint, current, next string) error
}

type AdminOrderService interface {
	ListAll(ctx context.Context, page, limit int) (*services.OrderPage, error)
	UpdateStatus(ctx context.Context, orderID uint, status string) (*services.OrderView, error)
}

type Fulfillment interface {
	ShipPending(ctx context.Context) (*services.BatchResult, error)
}

type AdminLoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `form:"current_password" json:"current_password"`
	NewPassword     string `form:"new_password" json:"new_password"`
}

type UpdateStatusRequest struct {
	OrderStatus string `form:"order_status" json:"order_status"`
}

type AdminController struct {
	admins      AdminService
	orders      AdminOrderService
	fulfillment Fulfillment
	cookie      CookieConfig
}

func NewAdminController(admins AdminService, orders AdminOrderService, fulfillment Fulfillment, cookie CookieConfig) *AdminController {
	return &AdminController{admins: admins, orders: orders, fulfillment: fulfillment, cookie: cookie}
}

// Login handles POST /api/admins_ops/login
func (ac *AdminController) Login(c *gin.Context) {
	var req AdminLoginRequest
	if !bind(c, &req) {
		return
	}
	session, err := ac.admins.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.Error(err)
		return
	}
	ac.cookie.set(c, session.Token, session.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{"token": session.Token, "email": session.Email})
}

// ChangePassword handles POST /api/admins_ops/change-password
func (ac *AdminController) ChangePassword(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var req ChangePasswordRequest
	if !bind(c, &req) {
		return
	}
	if err := ac.admins.ChangePassword(c.Request.Context(), p.ID, req.CurrentPassword, req.NewPassword); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

// ListOrders handles GET /api/admin/orders
func (ac *AdminController) ListOrders(c *gin.Context) {
	page, limit := paginationParams(c)
	out, err := ac.orders.ListAll(c.Request.Context(), page, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// UpdateOrderStatus handles PATCH /api/admin/orders/:id
func (ac *AdminController) UpdateOrderStatus(c *gin.Context) {
	id, ok := uintParam(c, "id", "order id")
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if !bind(c, &req) {
		return
	}
	order, err := ac.orders.UpdateStatus(c.Request.Context(), id, req.OrderStatus)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order": order})
}

// ShipOrders handles POST /api/admin/orders/ship. The batch keeps running
// if the client disconnects.
func (ac *AdminController) ShipOrders(c *gin.Context) {
	result, err := ac.fulfillment.ShipPending(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
