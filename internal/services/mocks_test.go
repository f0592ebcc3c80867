package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/providers"
	"github.com/yashrajoria/orderms/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// --- transaction DB ---

// newTxDB returns a gorm handle whose only job in these tests is to run
// Begin/Commit/Rollback around mocked repositories.
func newTxDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, sqlMock
}

// --- repositories ---

type MockUserRepository struct{ mock.Mock }

func (m *MockUserRepository) WithTx(*gorm.DB) repository.UserRepository { return m }

func (m *MockUserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

func (m *MockUserRepository) UpdateAddresses(ctx context.Context, id uint, addresses []models.Address) error {
	return m.Called(ctx, id, addresses).Error(0)
}

type MockProductRepository struct{ mock.Mock }

func (m *MockProductRepository) List(ctx context.Context, enabledOnly bool) ([]models.Product, error) {
	args := m.Called(ctx, enabledOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockProductRepository) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) Create(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductRepository) Updates(ctx context.Context, id uint, fields map[string]interface{}) error {
	return m.Called(ctx, id, fields).Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductRepository) Toggle(ctx context.Context, id uint) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type MockOrderRepository struct{ mock.Mock }

func (m *MockOrderRepository) WithTx(*gorm.DB) repository.OrderRepository { return m }

func (m *MockOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return m.Called(ctx, order).Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByPaymentIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByUserID(ctx context.Context, userID uint) ([]models.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	args := m.Called(ctx, page, limit)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Order), args.Get(1).(int64), args.Error(2)
}

func (m *MockOrderRepository) FindByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockOrderRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to models.OrderStatus, fields map[string]interface{}) (bool, error) {
	args := m.Called(ctx, id, from, to, fields)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	return m.Called(ctx, id, fields).Error(0)
}

func (m *MockOrderRepository) ResetStale(ctx context.Context, from, to models.OrderStatus, before time.Time) (int64, error) {
	args := m.Called(ctx, from, to, before)
	return args.Get(0).(int64), args.Error(1)
}

type MockAdminRepository struct{ mock.Mock }

func (m *MockAdminRepository) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Admin), args.Error(1)
}

func (m *MockAdminRepository) FindByID(ctx context.Context, id uint) (*models.Admin, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Admin), args.Error(1)
}

func (m *MockAdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	return m.Called(ctx, admin).Error(0)
}

func (m *MockAdminRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return m.Called(ctx, id, hash).Error(0)
}

// --- collaborators ---

type MockTokenIssuer struct{ mock.Mock }

func (m *MockTokenIssuer) GenerateAccessToken(userID uint, role, customerID, email string) (string, time.Time, error) {
	args := m.Called(userID, role, customerID, email)
	return args.String(0), args.Get(1).(time.Time), args.Error(2)
}

type fakeGateway struct {
	name      string
	intent    *providers.Intent
	createErr error
	verifyErr error
	fetchErr  error
	amount    int64

	gotAmount   int64
	gotCurrency string
}

func (g *fakeGateway) Name() string {
	if g.name == "" {
		return providers.GatewayRazorpay
	}
	return g.name
}

func (g *fakeGateway) PublicKey() string { return "rzp_test_key" }

func (g *fakeGateway) CreateIntent(_ context.Context, amountMinor int64, currency, _ string) (*providers.Intent, error) {
	g.gotAmount, g.gotCurrency = amountMinor, currency
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.intent, nil
}

func (g *fakeGateway) FetchIntent(_ context.Context, intentID string) (*providers.Intent, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return &providers.Intent{ID: intentID, Amount: g.amount}, nil
}

func (g *fakeGateway) VerifyCompletion(context.Context, string, string, string) error {
	return g.verifyErr
}

// fakeShipper fails the configured step for the configured shipment.
type fakeShipper struct {
	mu sync.Mutex

	authErr   error
	createErr map[string]error
	awbErr    map[string]error
	pickupErr map[string]error
	panicOn   string

	created []string
	awbs    []string
	pickups []string
}

func (f *fakeShipper) Authenticate(context.Context) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return "tok", nil
}

func (f *fakeShipper) CreateShipment(_ context.Context, _ string, req providers.ShipmentRequest) (*providers.CreatedShipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.OrderID == f.panicOn {
		panic("courier client exploded")
	}
	if err := f.createErr[req.OrderID]; err != nil {
		return nil, err
	}
	f.created = append(f.created, req.OrderID)
	return &providers.CreatedShipment{VendorOrderID: "sr-" + req.OrderID, ShipmentID: "shp-" + req.OrderID}, nil
}

func (f *fakeShipper) AssignAWB(_ context.Context, _ string, shipmentID string) (*providers.AWBAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.awbErr[shipmentID]; err != nil {
		return nil, err
	}
	f.awbs = append(f.awbs, shipmentID)
	return &providers.AWBAssignment{AWBCode: "AWB-" + shipmentID, CourierName: "Delhivery"}, nil
}

func (f *fakeShipper) GeneratePickup(_ context.Context, _ string, shipmentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.pickupErr[shipmentID]; err != nil {
		return err
	}
	f.pickups = append(f.pickups, shipmentID)
	return nil
}

type fakeLocker struct {
	err      error
	released bool
}

func (l *fakeLocker) Acquire(context.Context, string) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error {
		l.released = true
		return nil
	}, nil
}

type mockSNS struct {
	mu       sync.Mutex
	types    []string
	messages [][]byte
}

func (m *mockSNS) Publish(_ context.Context, _, eventType string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types = append(m.types, eventType)
	m.messages = append(m.messages, append([]byte(nil), message...))
	return nil
}

func ptr[T any](v T) *T { return &v }
