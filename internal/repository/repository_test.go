package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

var orderColumns = []string{"id", "user_id", "name", "phone", "address", "items", "total_amount", "order_status", "payment_intent_id", "created_at", "updated_at"}

func TestUserFindByPhone_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "first_name", "mobile_number", "customer_id", "addresses", "created_at", "updated_at"}).
		AddRow(7, "Asha", "9876543210", "a1b2c3d4", `[{"id":"home","line1":"12 MG Road","city":"Pune","postal_code":"411001"}]`, now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE mobile_number = $1 AND "users"."deleted_at" IS NULL`)).
		WillReturnRows(rows)

	u, err := repo.FindByPhone(context.Background(), "9876543210")
	require.NoError(t, err)
	assert.Equal(t, uint(7), u.ID)
	require.Len(t, u.Addresses, 1)
	assert.Equal(t, "home", u.Addresses[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByPhone_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := repo.FindByPhone(context.Background(), "0000000000")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, u)
}

func TestUserFindByIDForUpdate_LocksRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "users" .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "mobile_number"}).AddRow(3, "9000000000"))

	u, err := repo.FindByIDForUpdate(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	u := &models.User{MobileNumber: "9876543210", PasswordHash: "hash", CustomerID: "a1b2c3d4", InternalID: "x", Role: models.RoleUser}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, uint(1), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserUpdatePassword_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "password_hash"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdatePassword(context.Background(), 99, "new-hash")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserUpdateAddresses_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "users" SET "addresses"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateAddresses(context.Background(), 3, []models.Address{{ID: "home", Line1: "1 Main St", City: "Pune", PostalCode: "411001"}})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductList_EnabledOnly(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	rows := sqlmock.NewRows([]string{"id", "item_name", "price_01", "price_03", "is_enabled"}).
		AddRow(1, "Turmeric", 100.0, 250.0, true)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products" WHERE is_enabled = $1 ORDER BY id ASC`)).
		WithArgs(true).
		WillReturnRows(rows)

	products, err := repo.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Nil(t, products[0].Price02)
	assert.Equal(t, 250.0, *products[0].Price03)
}

func TestProductList_All(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products" ORDER BY id ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_enabled"}).AddRow(1, true).AddRow(2, false))

	products, err := repo.List(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestProductUpdates_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.Updates(context.Background(), 42, map[string]interface{}{"item_name": "Saffron"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProductDelete_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "products" WHERE "products"."id" = $1`)).
		WithArgs(5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, repo.Delete(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductToggle_FlipsAndReloads(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "is_enabled"=NOT is_enabled`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "products"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_enabled"}).AddRow(5, false))
	mock.ExpectCommit()

	p, err := repo.Toggle(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, p.IsEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductToggle_NotFoundRollsBack(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormProductRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Toggle(context.Background(), 5)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	intent := "order_abc"
	o := &models.Order{UserID: 1, OrderStatus: models.StatusPlaced, PaymentIntentID: &intent}
	require.NoError(t, repo.Create(context.Background(), o))
	assert.Equal(t, uint(11), o.ID)
}

func TestOrderFindByPaymentIntentID_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	now := time.Now()
	rows := sqlmock.NewRows(orderColumns).
		AddRow(11, 1, "Asha", "98", `{"line1":"12 MG Road","city":"Pune","state":"MH","pincode":"411001"}`,
			`[{"id":"p1","name":"Turmeric","sku":"SKU-p1","quantity":2,"price":100}]`, "200.00", "placed", "order_abc", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE payment_intent_id = $1`)).
		WillReturnRows(rows)

	o, err := repo.FindByPaymentIntentID(context.Background(), "order_abc")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPlaced, o.OrderStatus)
	assert.Equal(t, "411001", o.Address.Pincode)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "200", o.Total().String())
}

func TestOrderFindByStatus_OldestFirst(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE order_status = $1 ORDER BY created_at ASC`)).
		WithArgs(models.StatusInProcess).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_status"}).AddRow(1, "inprocess").AddRow(2, "inprocess"))

	orders, err := repo.FindByStatus(context.Background(), models.StatusInProcess)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestOrderFindAll_Paginated(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" ORDER BY created_at DESC`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	orders, total, err := repo.FindAll(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, orders, 1)
}

func TestOrderCompareAndSetStatus(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.CompareAndSetStatus(context.Background(), 1, models.StatusInProcess, models.StatusShipping, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ok, err = repo.CompareAndSetStatus(context.Background(), 1, models.StatusInProcess, models.StatusShipping, nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderResetStale(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "orders" SET "order_status"=.* WHERE \(order_status = .* AND updated_at < .*\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := repo.ResetStale(context.Background(), models.StatusShipping, models.StatusInProcess, time.Now().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserFindByEmail_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormUserRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	u, err := repo.FindByEmail(context.Background(), "asha@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, u)
}

func TestAdminFindByEmail_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormAdminRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "admins_ops" WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).AddRow(1, "ops@example.com", "hash"))

	a, err := repo.FindByEmail(context.Background(), "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash", a.PasswordHash)
}
