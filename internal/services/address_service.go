package services

import (
	"context"
	"strings"

	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/repository"
	"gorm.io/gorm"
)

// AddressService manages the address collection embedded on a user. Every
// mutation locks the user row for the read-modify-write.
type AddressService struct {
	db    *gorm.DB
	users repository.UserRepository
}

func NewAddressService(db *gorm.DB, users repository.UserRepository) *AddressService {
	return &AddressService{db: db, users: users}
}

func (s *AddressService) List(ctx context.Context, userID uint) ([]models.Address, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, userLookupError(err)
	}
	return nonNilAddresses(user.Addresses), nil
}

// Add appends addr. An address at an already saved location is not added
// again: the collection is returned unchanged with created=false.
func (s *AddressService) Add(ctx context.Context, userID uint, addr models.Address) ([]models.Address, bool, error) {
	addr = trimAddress(addr)
	if err := validateStruct(addr); err != nil {
		return nil, false, err
	}

	var (
		result  []models.Address
		created bool
	)
	err := s.mutate(ctx, userID, func(addresses []models.Address) ([]models.Address, bool, error) {
		for _, existing := range addresses {
			if existing.SameLocation(addr) {
				return addresses, false, nil
			}
		}
		if addr.ID == "" {
			addr.ID = shortID()
		} else if indexOfAddress(addresses, addr.ID) >= 0 {
			return nil, false, apperrors.Conflict("Address id already exists")
		}
		created = true
		return append(addresses, addr), true, nil
	}, &result)
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (s *AddressService) Update(ctx context.Context, userID uint, addressID string, addr models.Address) ([]models.Address, error) {
	addr = trimAddress(addr)
	addr.ID = addressID
	if err := validateStruct(addr); err != nil {
		return nil, err
	}

	var result []models.Address
	err := s.mutate(ctx, userID, func(addresses []models.Address) ([]models.Address, bool, error) {
		idx := indexOfAddress(addresses, addressID)
		if idx < 0 {
			return nil, false, apperrors.NotFound("Address not found")
		}
		for i, existing := range addresses {
			if i != idx && existing.SameLocation(addr) {
				return nil, false, apperrors.Conflict("Another saved address has the same line and postal code")
			}
		}
		addresses[idx] = addr
		return addresses, true, nil
	}, &result)
	return result, err
}

func (s *AddressService) Remove(ctx context.Context, userID uint, addressID string) ([]models.Address, error) {
	var result []models.Address
	err := s.mutate(ctx, userID, func(addresses []models.Address) ([]models.Address, bool, error) {
		idx := indexOfAddress(addresses, addressID)
		if idx < 0 {
			return nil, false, apperrors.NotFound("Address not found")
		}
		return append(addresses[:idx], addresses[idx+1:]...), true, nil
	}, &result)
	return result, err
}

// mutate runs fn on the locked collection and saves the result when fn
// reports a change.
func (s *AddressService) mutate(ctx context.Context, userID uint, fn func([]models.Address) ([]models.Address, bool, error), out *[]models.Address) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		user, err := users.FindByIDForUpdate(ctx, userID)
		if err != nil {
			return userLookupError(err)
		}

		current := append([]models.Address(nil), user.Addresses...)
		next, changed, err := fn(current)
		if err != nil {
			return err
		}
		next = nonNilAddresses(next)
		if changed {
			if err := users.UpdateAddresses(ctx, userID, next); err != nil {
				return apperrors.Persistence("failed to save addresses", err)
			}
		}
		*out = next
		return nil
	})
}

func userLookupError(err error) error {
	if isNotFound(err) {
		return apperrors.NotFound("User not found")
	}
	return apperrors.Persistence("failed to load user", err)
}

func indexOfAddress(addresses []models.Address, id string) int {
	for i, a := range addresses {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func nonNilAddresses(a []models.Address) []models.Address {
	if a == nil {
		return []models.Address{}
	}
	return a
}

func trimAddress(a models.Address) models.Address {
	a.ID = strings.TrimSpace(a.ID)
	a.Name = strings.TrimSpace(a.Name)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Phone = strings.TrimSpace(a.Phone)
	return a
}
