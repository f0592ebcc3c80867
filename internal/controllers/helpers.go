package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/middleware"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Secure bool
	Domain string
}

func (cc CookieConfig) set(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, token, maxAge, "/", cc.Domain, cc.Secure, true)
}

func (cc CookieConfig) clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessTokenCookie, "", -1, "/", cc.Domain, cc.Secure, true)
}

// bind accepts JSON or form bodies.
func bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBind(dst); err != nil {
		c.Error(apperrors.Validation("Invalid request body"))
		return false
	}
	return true
}

func principal(c *gin.Context) (*middleware.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Error(apperrors.Authentication("Not authenticated"))
		return nil, false
	}
	return p, true
}

func uintParam(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.Error(apperrors.Validation("Invalid " + label))
		return 0, false
	}
	return uint(id), true
}

// paginationParams reads page and limit. Bounds are enforced by the service.
func paginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil {
		limit = 20
	}
	return page, limit
}
