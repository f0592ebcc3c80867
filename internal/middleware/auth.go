package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/services"
)

const (
	AccessTokenCookie   = "access_token"
	principalContextKey = "principal"
)

// Principal is the authenticated caller.
type Principal struct {
	ID         uint
	Role       string
	CustomerID string
	Email      string
}

type TokenValidator interface {
	ValidateToken(tokenStr string) (*services.SessionClaims, error)
}

// Authenticate decodes the session from the access_token cookie or a Bearer
// header. Requests without a valid session stop here with 401.
func Authenticate(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFromRequest(c)
		if raw == "" {
			c.Error(apperrors.Authentication("Not authenticated"))
			c.Abort()
			return
		}
		claims, err := tokens.ValidateToken(raw)
		if err != nil {
			c.Error(apperrors.Authentication("Invalid or expired token"))
			c.Abort()
			return
		}
		SetPrincipal(c, &Principal{
			ID:         claims.UserID,
			Role:       claims.Role,
			CustomerID: claims.CustomerID,
			Email:      claims.Email,
		})
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.Error(apperrors.Authentication("Not authenticated"))
			c.Abort()
			return
		}
		if p.Role != role {
			c.Error(apperrors.Authorization("Insufficient permissions"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (*Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*Principal)
	return p, ok && p != nil
}

// SetPrincipal attaches the caller to the request context.
func SetPrincipal(c *gin.Context, p *Principal) {
	c.Set(principalContextKey, p)
}

func tokenFromRequest(c *gin.Context) string {
	if v, err := c.Cookie(AccessTokenCookie); err == nil && v != "" {
		return v
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
