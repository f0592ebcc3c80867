package routes

import (
	"github.com/gin-gonic/gin"
	commonmw "github.com/yashrajoria/orderms/common/middleware"
	"github.com/yashrajoria/orderms/internal/controllers"
	"github.com/yashrajoria/orderms/internal/middleware"
	"github.com/yashrajoria/orderms/internal/models"
)

// Controllers groups every handler set mounted on the router.
type Controllers struct {
	Auth     *controllers.AuthController
	Address  *controllers.AddressController
	Product  *controllers.ProductController
	Checkout *controllers.CheckoutController
	Admin    *controllers.AdminController
	Health   *controllers.HealthController
}

func RegisterRoutes(r *gin.Engine, h Controllers, tokens middleware.TokenValidator) {
	credLimit := commonmw.CredentialRateLimit()
	authed := middleware.Authenticate(tokens)
	adminOnly := middleware.RequireRole(models.RoleAdmin)
	userOnly := middleware.RequireRole(models.RoleUser)

	r.GET("/health", h.Health.Health)

	r.POST("/register", credLimit, h.Auth.Register)
	r.POST("/login", credLimit, h.Auth.Login)
	r.POST("/reset-password", credLimit, h.Auth.ResetPassword)
	r.POST("/logout", h.Auth.Logout)

	// Payment endpoints keep their trailing slash for existing clients.
	r.POST("/create-order/", authed, userOnly, h.Checkout.CreatePaymentOrder)
	r.POST("/verify-payment/", authed, userOnly, h.Checkout.VerifyPayment)

	api := r.Group("/api")
	{
		api.GET("/products", h.Product.ListActive)
		api.GET("/products/:id", h.Product.Get)
		api.POST("/admins_ops/login", credLimit, h.Admin.Login)
	}

	// Admin and user ids come from separate tables, so customer routes
	// reject admin tokens.
	user := api.Group("", authed, userOnly)
	{
		user.GET("/me", h.Auth.Me)
		user.GET("/addresses", h.Address.List)
		user.POST("/addresses", h.Address.Add)
		user.PUT("/addresses/:address_id", h.Address.Update)
		user.DELETE("/addresses/:address_id", h.Address.Remove)
		user.POST("/cart/sync", h.Checkout.SyncCart)
		user.POST("/orders", h.Checkout.PlaceOrder)
		user.GET("/orders", h.Checkout.ListOrders)
	}

	admin := api.Group("", authed, adminOnly)
	{
		admin.GET("/products-state", h.Product.ListAll)
		admin.POST("/products/add", h.Product.Create)
		admin.POST("/products/upload-url", h.Product.UploadURL)
		admin.PUT("/products/:id", h.Product.Update)
		admin.DELETE("/products/:id", h.Product.Delete)
		admin.PATCH("/products/:id/toggle", h.Product.Toggle)

		admin.POST("/admins_ops/change-password", h.Admin.ChangePassword)
		admin.GET("/admin/orders", h.Admin.ListOrders)
		admin.PATCH("/admin/orders/:id", h.Admin.UpdateOrderStatus)
		admin.POST("/admin/orders/ship", h.Admin.ShipOrders)
	}
}
