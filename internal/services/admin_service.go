package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AdminSession struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AdminService struct {
	admins repository.AdminRepository
	tokens TokenIssuer
	logger *zap.Logger
}

func NewAdminService(admins repository.AdminRepository, tokens TokenIssuer, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{admins: admins, tokens: tokens, logger: logger}
}

func (s *AdminService) Login(ctx context.Context, email, password string) (*AdminSession, error) {
	invalid := apperrors.Authentication("Invalid email or password")
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalid
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return nil, invalid
		}
		return nil, apperrors.Persistence("failed to look up admin", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}

	token, exp, err := s.tokens.GenerateAccessToken(admin.ID, models.RoleAdmin, "", admin.Email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info("admin logged in", zap.Uint("admin_id", admin.ID))
	return &AdminSession{Token: token, Email: admin.Email, ExpiresAt: exp}, nil
}

func (s *AdminService) ChangePassword(ctx context.Context, adminID uint, current, next string) error {
	if len(next) < minPasswordLength {
		return apperrors.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("Admin not found")
		}
		return apperrors.Persistence("failed to look up admin", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(current)); err != nil {
		return apperrors.Authentication("Current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.admins.UpdatePassword(ctx, adminID, string(hash)); err != nil {
		return apperrors.Persistence("failed to update password", err)
	}
	s.logger.Info("admin password changed", zap.Uint("admin_id", adminID))
	return nil
}

// EnsureDefaultAdmin creates the seed account unless it already exists.
func (s *AdminService) EnsureDefaultAdmin(ctx context.Context, email, password string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return false, apperrors.Validation("default admin email and password are required")
	}
	if _, err := s.admins.FindByEmail(ctx, email); err == nil {
		return false, nil
	} else if !isNotFound(err) {
		return false, apperrors.Persistence("failed to look up admin", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	if err := s.admins.Create(ctx, &models.Admin{Email: email, PasswordHash: string(hash)}); err != nil {
		if isDuplicate(err) {
			return false, nil
		}
		return false, apperrors.Persistence("failed to create admin", err)
	}
	s.logger.Info("default admin created", zap.String("email", email))
	return true, nil
}
