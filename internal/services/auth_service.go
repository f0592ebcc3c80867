package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	minPasswordLength  = 6
	customerIDAttempts = 3
)

var (
	errInvalidCredentials = apperrors.Authentication("Invalid credentials")
	errPhoneTaken         = apperrors.Conflict("Mobile number already registered")
	errEmailTaken         = apperrors.Conflict("Email already registered")

	errUserDuplicate   = errors.New("user unique constraint violated")
	errCustomerIDTaken = errors.New("customer id already in use")
)

// RegisterInput is the registration form.
type RegisterInput struct {
	FirstName       string `form:"firstName" json:"firstName"`
	LastName        string `form:"lastName" json:"lastName"`
	Phone           string `form:"phone" json:"phone"`
	Email           string `form:"email" json:"email"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
}

// Session is an issued login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user,omitempty"`
}

type TokenIssuer interface {
	GenerateAccessToken(userID uint, role, customerID, email string) (string, time.Time, error)
}

type AuthService struct {
	db     *gorm.DB
	users  repository.UserRepository
	tokens TokenIssuer
	logger *zap.Logger
}

func NewAuthService(db *gorm.DB, users repository.UserRepository, tokens TokenIssuer, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{db: db, users: users, tokens: tokens, logger: logger}
}

// Register creates a user. Phone and email lookups share a transaction with
// the insert and the unique indexes back them. A clashing customer id is
// regenerated.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	if in.FirstName == "" || in.Phone == "" || in.Password == "" {
		return nil, apperrors.Validation("First name, phone and password are required")
	}
	if in.Password != in.ConfirmPassword {
		return nil, apperrors.Validation("Passwords do not match")
	}
	if len(in.Password) < minPasswordLength {
		return nil, apperrors.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		MobileNumber: in.Phone,
		PasswordHash: string(hash),
		InternalID:   uuid.NewString(),
		Role:         models.RoleUser,
		Addresses:    []models.Address{},
	}
	if in.Email != "" {
		user.Email = &in.Email
	}

	for attempt := 1; ; attempt++ {
		user.CustomerID = shortID()
		err = s.createUser(ctx, user)
		if errors.Is(err, errUserDuplicate) {
			err = s.duplicateCause(ctx, user)
		}
		if !errors.Is(err, errCustomerIDTaken) || attempt == customerIDAttempts {
			break
		}
		s.logger.Warn("customer id collision, regenerating", zap.String("customer_id", user.CustomerID))
	}
	if errors.Is(err, errCustomerIDTaken) {
		return nil, apperrors.Persistence("failed to allocate customer id", err)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("customer_id", user.CustomerID))
	return user, nil
}

// createUser checks phone and email and inserts the user in one transaction.
// A unique index violation is reported as errUserDuplicate.
func (s *AuthService) createUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)

		if _, err := users.FindByPhone(ctx, user.MobileNumber); err == nil {
			return errPhoneTaken
		} else if !isNotFound(err) {
			return apperrors.Persistence("failed to look up user", err)
		}
		if user.Email != nil {
			if _, err := users.FindByEmail(ctx, *user.Email); err == nil {
				return errEmailTaken
			} else if !isNotFound(err) {
				return apperrors.Persistence("failed to look up user", err)
			}
		}

		if err := users.Create(ctx, user); err != nil {
			if isDuplicate(err) {
				return errUserDuplicate
			}
			return apperrors.Persistence("failed to create user", err)
		}
		return nil
	})
}

// duplicateCause finds which unique column a concurrent insert won. When
// neither phone nor email is taken the generated customer id clashed.
func (s *AuthService) duplicateCause(ctx context.Context, user *models.User) error {
	if _, err := s.users.FindByPhone(ctx, user.MobileNumber); err == nil {
		return errPhoneTaken
	} else if !isNotFound(err) {
		return apperrors.Persistence("failed to look up user", err)
	}
	if user.Email != nil {
		if _, err := s.users.FindByEmail(ctx, *user.Email); err == nil {
			return errEmailTaken
		} else if !isNotFound(err) {
			return apperrors.Persistence("failed to look up user", err)
		}
	}
	return errCustomerIDTaken
}

// Authenticate checks the credentials and issues a session token. Unknown
// phones and wrong passwords fail identically.
func (s *AuthService) Authenticate(ctx context.Context, phone, password string) (*Session, error) {
	user, err := s.users.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if isNotFound(err) {
			return nil, errInvalidCredentials
		}
		return nil, apperrors.Persistence("failed to look up user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, errInvalidCredentials
	}

	email := ""
	if user.Email != nil {
		email = *user.Email
	}
	token, exp, err := s.tokens.GenerateAccessToken(user.ID, user.Role, user.CustomerID, email)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// ResetPassword overwrites the stored hash. It does not ask for the old password.
func (s *AuthService) ResetPassword(ctx context.Context, phone, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	user, err := s.users.FindByPhone(ctx, strings.TrimSpace(phone))
	if err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("User not found")
		}
		return apperrors.Persistence("failed to look up user", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return apperrors.Persistence("failed to update password", err)
	}
	s.logger.Info("password reset", zap.Uint("user_id", user.ID))
	return nil
}

func (s *AuthService) Profile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, apperrors.Persistence("failed to load user", err)
	}
	if user.Addresses == nil {
		user.Addresses = []models.Address{}
	}
	return user, nil
}
