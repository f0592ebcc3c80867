package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/services"
)

type CartService interface {
	Sync(ctx context.Context, userID uint, cart services.CartPayload) (*services.CartSyncResult, error)
}

type PaymentService interface {
	CreateIntent(ctx context.Context, amount *decimal.Decimal) (*services.IntentResponse, error)
	VerifyCompletion(ctx context.Context, in services.VerifyInput) error
}

type OrderService interface {
	PlaceOrder(ctx context.Context, userID uint, in services.PlaceOrderInput) (*models.Order, bool, error)
	ListForUser(ctx context.Context, userID uint) ([]services.OrderView, error)
}

type CreateIntentRequest struct {
	Amount *decimal.Decimal `form:"amount" json:"amount"`
}

// CheckoutController serves the customer purchase flow: cart, payment and orders.
type CheckoutController struct {
	cart     CartService
	payments PaymentService
	orders   OrderService
}

func NewCheckoutController(cart CartService, payments PaymentService, orders OrderService) *CheckoutController {
	return &CheckoutController{cart: cart, payments: payments, orders: orders}
}

// SyncCart handles POST /api/cart/sync
func (cc *CheckoutController) SyncCart(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var cart services.CartPayload
	if !bind(c, &cart) {
		return
	}
	res, err := cc.cart.Sync(c.Request.Context(), p.ID, cart)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreatePaymentOrder handles POST /create-order/
func (cc *CheckoutController) CreatePaymentOrder(c *gin.Context) {
	var req CreateIntentRequest
	if !bind(c, &req) {
		return
	}
	out, err := cc.payments.CreateIntent(c.Request.Context(), req.Amount)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// VerifyPayment handles POST /verify-payment/
func (cc *CheckoutController) VerifyPayment(c *gin.Context) {
	var in services.VerifyInput
	if !bind(c, &in) {
		return
	}
	if err := cc.payments.VerifyCompletion(c.Request.Context(), in); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Payment verified"})
}

// PlaceOrder handles POST /api/orders. A replayed payment returns the
// existing order with 200 instead of 201.
func (cc *CheckoutController) PlaceOrder(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var in services.PlaceOrderInput
	if !bind(c, &in) {
		return
	}
	order, created, err := cc.orders.PlaceOrder(c.Request.Context(), p.ID, in)
	if err != nil {
		c.Error(err)
		return
	}
	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"message": "Order placed", "order_id": order.ID, "created": created})
}

// ListOrders handles GET /api/orders
func (cc *CheckoutController) ListOrders(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	orders, err := cc.orders.ListForUser(c.Request.Context(), p.ID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
