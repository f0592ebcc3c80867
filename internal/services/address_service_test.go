package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/models"
	"gorm.io/gorm"
)

func homeAddress() models.Address {
	return models.Address{ID: "home", Line1: "12 MG Road", City: "Pune", State: "MH", PostalCode: "411001"}
}

func TestAddressAdd_DuplicateLocationIsNoop(t *testing.T) {
	db, sqlMock := newTxDB(t)
	repo := new(MockUserRepository)
	svc := NewAddressService(db, repo)

	existing := []models.Address{homeAddress()}
	sqlMock.ExpectBegin()
	sqlMock.ExpectCommit()
	repo.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(&models.User{ID: 5, Addresses: existing}, nil)

	dup := models.Address{Line1: " 12 mg road ", City: "Pune", PostalCode: "411001"}
	got, created, err := svc.Add(context.Background(), 5, dup)

	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing, got)
	repo.AssertNotCalled(t, "UpdateAddresses", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}

func TestAddressAdd_AssignsID(t *testing.T) {
	db, sqlMock := newTxDB(t)
	repo := new(MockUserRepository)
	svc := NewAddressService(db, repo)

	sqlMock.ExpectBegin()
	sqlMock.ExpectCommit()
	repo.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(&models.User{ID: 5, Addresses: []models.Address{homeAddress()}}, nil)
	repo.On("UpdateAddresses", mock.Anything, uint(5), mock.MatchedBy(func(a []models.Address) bool { return len(a) == 2 })).Return(nil)

	got, created, err := svc.Add(context.Background(), 5, models.Address{Line1: "4 Park St", City: "Kolkata", PostalCode: "700016"})
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, got, 2)
	assert.Len(t, got[1].ID, 8)
	repo.AssertExpectations(t)
}

func TestAddressAdd_Validation(t *testing.T) {
	svc := NewAddressService(nil, new(MockUserRepository))

	_, _, err := svc.Add(context.Background(), 5, models.Address{City: "Pune", PostalCode: "411001"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Contains(t, err.Error(), "line1 is required")
}

func TestAddressAdd_ClashingID(t *testing.T) {
	db, sqlMock := newTxDB(t)
	repo := new(MockUserRepository)
	svc := NewAddressService(db, repo)

	sqlMock.ExpectBegin()
	sqlMock.ExpectRollback()
	repo.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(&models.User{ID: 5, Addresses: []models.Address{homeAddress()}}, nil)

	_, _, err := svc.Add(context.Background(), 5, models.Address{ID: "home", Line1: "4 Park St", City: "Kolkata", PostalCode: "700016"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestAddressUpdate(t *testing.T) {
	t.Run("replaces entry", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockUserRepository)
		svc := NewAddressService(db, repo)

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		repo.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(&models.User{ID: 5, Addresses: []models.Address{homeAddress()}}, nil)
		repo.On("UpdateAddresses", mock.Anything, uint(5), mock.Anything).Return(nil)

		got, err := svc.Update(context.Background(), 5, "home", models.Address{Line1: "14 MG Road", City: "Pune", PostalCode: "411001"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "home", got[0].ID)
		assert.Equal(t, "14 MG Road", got[0].Line1)
	})

	t.Run("unknown id", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockUserRepository)
		svc := NewAddressService(db, repo)

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(&models.User{ID: 5}, nil)

		_, err := svc.Update(context.Background(), 5, "work", homeAddress())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Contains(t, err.Error(), "Address not found")
	})
}

func TestAddressRemove(t *testing.T) {
	db, sqlMock := newTxDB(t)
	repo := new(MockUserRepository)
	svc := NewAddressService(db, repo)

	work := models.Address{ID: "work", Line1: "4 Park St", City: "Kolkata", PostalCode: "700016"}
	sqlMock.ExpectBegin()
	sqlMock.ExpectCommit()
	repo.On("FindByIDForUpdate", mock.Anything, uint(5)).Return(&models.User{ID: 5, Addresses: []models.Address{homeAddress(), work}}, nil)
	repo.On("UpdateAddresses", mock.Anything, uint(5), []models.Address{work}).Return(nil)

	got, err := svc.Remove(context.Background(), 5, "home")
	require.NoError(t, err)
	assert.Equal(t, []models.Address{work}, got)
	repo.AssertExpectations(t)
}

func TestAddressList_UnknownUser(t *testing.T) {
	repo := new(MockUserRepository)
	svc := NewAddressService(nil, repo)
	repo.On("FindByID", mock.Anything, uint(9)).Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.List(context.Background(), 9)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
