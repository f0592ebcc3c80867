package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const tokenTypeAccess = "access"

// SessionClaims is the decoded content of a session token.
type SessionClaims struct {
	UserID     uint
	Role       string
	CustomerID string
	Email      string
	ExpiresAt  time.Time
}

// TokenService is responsible for creating and validating JWTs.
type TokenService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenService creates a TokenService signing HS256 tokens valid for ttl.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &TokenService{secretKey: []byte(secret), ttl: ttl, now: time.Now}
}


// GenerateAccessToken issues a session token for the subject.
func (s *TokenService) GenerateAccessToken(userID uint, role, customerID, email string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(userID), 10),
		"role": role,
		"typ":  tokenTypeAccess,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	if customerID != "" {
		claims["cid"] = customerID
	}
	if email != "" {
		claims["email"] = email
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses and validates a session token.
func (s *TokenService) ValidateToken(tokenStr string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}
	if typ, _ := claims["typ"].(string); typ != tokenTypeAccess {
		return nil, errors.New("invalid token type")
	}

	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || id == 0 {
		return nil, errors.New("invalid token subject")
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return nil, errors.New("invalid token role")
	}

	out := &SessionClaims{UserID: uint(id), Role: role}
	out.CustomerID, _ = claims["cid"].(string)
	out.Email, _ = claims["email"].(string)
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return out, nil
}
