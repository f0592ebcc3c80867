package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/controllers"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/services"
	"go.uber.org/zap"
)

func newTestEngine(tokens *services.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(apperrors.ErrorMiddleware(zap.NewNop()))
	RegisterRoutes(r, Controllers{
		Auth:     controllers.NewAuthController(nil, controllers.CookieConfig{}),
		Address:  controllers.NewAddressController(nil),
		Product:  controllers.NewProductController(nil),
		Checkout: controllers.NewCheckoutController(services.NewCartService(), nil, nil),
		Admin:    controllers.NewAdminController(nil, nil, nil, controllers.CookieConfig{}),
		Health:   controllers.NewHealthController(nil),
	}, tokens)
	return r
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes_Health(t *testing.T) {
	r := newTestEngine(services.NewTokenService("secret", time.Hour))
	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoutes_AuthBoundaries(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	r := newTestEngine(tokens)
	userToken, _, err := tokens.GenerateAccessToken(3, models.RoleUser, "c0ffee01", "")
	require.NoError(t, err)

	protected := []struct{ method, path string }{
		{http.MethodGet, "/api/me"},
		{http.MethodGet, "/api/orders"},
		{http.MethodPost, "/api/cart/sync"},
		{http.MethodPost, "/create-order/"},
		{http.MethodPost, "/verify-payment/"},
		{http.MethodGet, "/api/admin/orders"},
		{http.MethodPost, "/api/admin/orders/ship"},
		{http.MethodPost, "/api/products/add"},
	}
	for _, tc := range protected {
		w := serve(r, tc.method, tc.path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}

	adminOnly := []struct{ method, path string }{
		{http.MethodGet, "/api/products-state"},
		{http.MethodPatch, "/api/admin/orders/1"},
		{http.MethodPost, "/api/admin/orders/ship"},
		{http.MethodDelete, "/api/products/1"},
		{http.MethodPatch, "/api/products/1/toggle"},
		{http.MethodPost, "/api/admins_ops/change-password"},
	}
	for _, tc := range adminOnly {
		w := serve(r, tc.method, tc.path, userToken)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRoutes_AdminTokenRejectedOnCustomerRoutes(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	r := newTestEngine(tokens)
	adminToken, _, err := tokens.GenerateAccessToken(1, models.RoleAdmin, "", "ops@example.com")
	require.NoError(t, err)

	customerOnly := []struct{ method, path string }{
		{http.MethodGet, "/api/orders"},
		{http.MethodPost, "/api/orders"},
		{http.MethodGet, "/api/addresses"},
		{http.MethodDelete, "/api/addresses/1"},
		{http.MethodPost, "/api/cart/sync"},
		{http.MethodGet, "/api/me"},
		{http.MethodPost, "/create-order/"},
		{http.MethodPost, "/verify-payment/"},
	}
	for _, tc := range customerOnly {
		w := serve(r, tc.method, tc.path, adminToken)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRoutes_CartSyncForUser(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	r := newTestEngine(tokens)
	token, _, err := tokens.GenerateAccessToken(3, models.RoleUser, "c0ffee01", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/cart/sync", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	// An empty body fails binding.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
