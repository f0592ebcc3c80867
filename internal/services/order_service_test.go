package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/providers"
	"gorm.io/gorm"
)

func orderInput(intentID string) CreateOrderInput {
	total := decimal.RequireFromString("500.00")
	return CreateOrderInput{
		Name:    "Asha Rao",
		Phone:   "9876543210",
		Address: &models.OrderAddress{Line1: "12 MG Road", City: "Pune", State: "MH", Pincode: "411001"},
		Items: []models.OrderItem{
			{ID: "1", Name: "Turmeric", Variant: "100g", Quantity: 3, Price: 100},
			{ID: "2", Name: "Chilli", Quantity: 1, Price: 200},
		},
		TotalAmount:     &total,
		PaymentIntentID: intentID,
		PaymentID:       "pay_1",
	}
}

func TestCreateOrder_Success(t *testing.T) {
	repo := new(MockOrderRepository)
	sns := &mockSNS{}
	events := NewEventPublisher(sns, "arn:aws:sns:ap-south-1:000000000000:orders", nil)
	svc := NewOrderService(nil, repo, NewPaymentService(&fakeGateway{}, "INR", nil, nil), events, nil, nil)

	repo.On("FindByPaymentIntentID", mock.Anything, "order_1").Return(nil, gorm.ErrRecordNotFound)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.Order")).
		Run(func(args mock.Arguments) { args.Get(1).(*models.Order).ID = 21 }).
		Return(nil)

	order, created, err := svc.CreateOrder(context.Background(), 5, orderInput("order_1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint(21), order.ID)
	assert.Equal(t, models.StatusPlaced, order.OrderStatus)
	assert.Equal(t, "SKU-1", order.Items[0].SKU)
	assert.Equal(t, "500", order.Total().String())
	assert.Equal(t, providers.GatewayRazorpay, order.PaymentGateway)
	require.NotNil(t, order.PaymentIntentID)
	assert.Equal(t, "order_1", *order.PaymentIntentID)

	require.Len(t, sns.messages, 1)
	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(sns.messages[0], &event))
	assert.Equal(t, EventOrderPlaced, event["event_type"])
	assert.Equal(t, []string{EventOrderPlaced}, sns.types)
	assert.Equal(t, "500.00", event["total_amount"])
}

func TestCreateOrder_ReplayReturnsExisting(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(nil, repo, nil, nil, nil, nil)

	intent := "order_1"
	stored := &models.Order{ID: 21, UserID: 5, PaymentIntentID: &intent, OrderStatus: models.StatusPlaced}
	repo.On("FindByPaymentIntentID", mock.Anything, "order_1").Return(stored, nil)

	order, created, err := svc.CreateOrder(context.Background(), 5, orderInput("order_1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, stored, order)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_ReplayByAnotherUserIsConflict(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(nil, repo, nil, nil, nil, nil)

	intent := "order_1"
	repo.On("FindByPaymentIntentID", mock.Anything, "order_1").Return(&models.Order{ID: 21, UserID: 9, PaymentIntentID: &intent}, nil)

	order, created, err := svc.CreateOrder(context.Background(), 5, orderInput("order_1"))
	assert.Nil(t, order)
	assert.False(t, created)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_DuplicateKeyRaceResolvesToExisting(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(nil, repo, nil, nil, nil, nil)

	stored := &models.Order{ID: 21, UserID: 5}
	repo.On("FindByPaymentIntentID", mock.Anything, "order_1").Return(nil, gorm.ErrRecordNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(gorm.ErrDuplicatedKey)
	repo.On("FindByPaymentIntentID", mock.Anything, "order_1").Return(stored, nil).Once()

	order, created, err := svc.CreateOrder(context.Background(), 5, orderInput("order_1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, uint(21), order.ID)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc := NewOrderService(nil, new(MockOrderRepository), nil, nil, nil, nil)
	ctx := context.Background()

	cases := map[string]func(in *CreateOrderInput){
		"no address":     func(in *CreateOrderInput) { in.Address = nil },
		"no items":       func(in *CreateOrderInput) { in.Items = nil },
		"no total":       func(in *CreateOrderInput) { in.TotalAmount = nil },
		"zero quantity":  func(in *CreateOrderInput) { in.Items[0].Quantity = 0 },
		"negative price": func(in *CreateOrderInput) { in.Items[1].Price = -1 },
		"total mismatch": func(in *CreateOrderInput) {
			wrong := decimal.RequireFromString("499.99")
			in.TotalAmount = &wrong
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := orderInput("")
			mutate(&in)
			_, _, err := svc.CreateOrder(ctx, 5, in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}

	_, _, err := svc.CreateOrder(ctx, 0, orderInput(""))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPlaceOrder_VerifiesBeforeCreating(t *testing.T) {
	repo := new(MockOrderRepository)
	payments := NewPaymentService(&fakeGateway{verifyErr: providers.ErrVerificationFailed}, "INR", nil, nil)
	svc := NewOrderService(nil, repo, payments, nil, nil, nil)

	_, _, err := svc.PlaceOrder(context.Background(), 5, PlaceOrderInput{CreateOrderInput: orderInput("order_1"), Signature: "bad"})
	assert.ErrorIs(t, err, apperrors.ErrPaymentVerification)
	repo.AssertNotCalled(t, "FindByPaymentIntentID", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_WithValidSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/orders/order_1", r.URL.Path)
		w.Write([]byte(`{"id":"order_1","amount":50000,"currency":"INR","status":"paid"}`))
	}))
	defer srv.Close()

	repo := new(MockOrderRepository)
	gw := providers.NewRazorpayGateway(srv.URL, "key_id", "secret", nil)
	svc := NewOrderService(nil, repo, NewPaymentService(gw, "INR", nil, nil), nil, nil, nil)

	repo.On("FindByPaymentIntentID", mock.Anything, "order_1").Return(nil, gorm.ErrRecordNotFound)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	in := PlaceOrderInput{CreateOrderInput: orderInput("order_1"), Signature: providers.RazorpaySignature("order_1", "pay_1", "secret")}
	_, created, err := svc.PlaceOrder(context.Background(), 5, in)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestPlaceOrder_PaidAmountMustMatchTotal(t *testing.T) {
	repo := new(MockOrderRepository)
	payments := NewPaymentService(&fakeGateway{amount: 100}, "INR", nil, nil)
	svc := NewOrderService(nil, repo, payments, nil, nil, nil)

	_, _, err := svc.PlaceOrder(context.Background(), 5, PlaceOrderInput{CreateOrderInput: orderInput("order_1"), Signature: "sig"})
	assert.ErrorIs(t, err, apperrors.ErrPaymentVerification)
	assert.Contains(t, err.Error(), "does not match order total")
	repo.AssertNotCalled(t, "FindByPaymentIntentID", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPlaceOrder_MissingTotal(t *testing.T) {
	svc := NewOrderService(nil, new(MockOrderRepository), NewPaymentService(&fakeGateway{}, "INR", nil, nil), nil, nil, nil)

	in := PlaceOrderInput{CreateOrderInput: orderInput("order_1"), Signature: "sig"}
	in.TotalAmount = nil
	_, _, err := svc.PlaceOrder(context.Background(), 5, in)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestListForUser_View(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(nil, repo, nil, nil, nil, nil)

	created := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	repo.On("FindByUserID", mock.Anything, uint(5)).Return([]models.Order{
		{ID: 2, Name: "Asha", Phone: "98", OrderStatus: models.StatusPlaced, CreatedAt: created,
			TotalAmount: decimal.NewNullDecimal(decimal.RequireFromString("350.50"))},
		{ID: 1, OrderStatus: models.StatusShipped},
	}, nil)

	views, err := svc.ListForUser(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "2026-03-01T10:30:00Z", views[0].CreatedAt)
	assert.Equal(t, 350.5, views[0].TotalAmount)
	assert.Equal(t, 0.0, views[1].TotalAmount)
	assert.NotNil(t, views[1].Items)
}

func TestListAll_ClampsPaging(t *testing.T) {
	repo := new(MockOrderRepository)
	svc := NewOrderService(nil, repo, nil, nil, nil, nil)
	repo.On("FindAll", mock.Anything, 1, maxPageSize).Return([]models.Order{{ID: 1}}, int64(150), nil)

	page, err := svc.ListAll(context.Background(), 0, 500)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)
	assert.Equal(t, MetaData{Page: 1, Limit: 100, Total: 150, TotalPages: 2, HasMore: true}, page.Meta)
}

func TestUpdateStatus(t *testing.T) {
	t.Run("allowed transition", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockOrderRepository)
		sns := &mockSNS{}
		svc := NewOrderService(db, repo, nil, NewEventPublisher(sns, "arn:topic", nil), nil, nil)

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		repo.On("FindByID", mock.Anything, uint(7)).Return(&models.Order{ID: 7, OrderStatus: models.StatusPlaced}, nil)
		repo.On("CompareAndSetStatus", mock.Anything, uint(7), models.StatusPlaced, models.StatusInProcess, map[string]interface{}(nil)).Return(true, nil)

		view, err := svc.UpdateStatus(context.Background(), 7, "inprocess")
		require.NoError(t, err)
		assert.Equal(t, models.StatusInProcess, view.OrderStatus)
		assert.Len(t, sns.messages, 1)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("dispatch from inprocess", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockOrderRepository)
		svc := NewOrderService(db, repo, nil, nil, nil, nil)

		sqlMock.ExpectBegin()
		sqlMock.ExpectCommit()
		repo.On("FindByID", mock.Anything, uint(7)).Return(&models.Order{ID: 7, OrderStatus: models.StatusInProcess}, nil)
		repo.On("CompareAndSetStatus", mock.Anything, uint(7), models.StatusInProcess, models.StatusDispatched, map[string]interface{}(nil)).Return(true, nil)

		view, err := svc.UpdateStatus(context.Background(), 7, "dispatched")
		require.NoError(t, err)
		assert.Equal(t, models.StatusDispatched, view.OrderStatus)
	})

	t.Run("unknown status", func(t *testing.T) {
		svc := NewOrderService(nil, new(MockOrderRepository), nil, nil, nil, nil)
		_, err := svc.UpdateStatus(context.Background(), 7, "lost")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("forbidden transition", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockOrderRepository)
		svc := NewOrderService(db, repo, nil, nil, nil, nil)

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("FindByID", mock.Anything, uint(7)).Return(&models.Order{ID: 7, OrderStatus: models.StatusCompleted}, nil)

		_, err := svc.UpdateStatus(context.Background(), 7, "placed")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
		assert.Contains(t, err.Error(), "Order is already completed")
		repo.AssertNotCalled(t, "CompareAndSetStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("system-only edge", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockOrderRepository)
		svc := NewOrderService(db, repo, nil, nil, nil, nil)

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("FindByID", mock.Anything, uint(7)).Return(&models.Order{ID: 7, OrderStatus: models.StatusInProcess}, nil)

		_, err := svc.UpdateStatus(context.Background(), 7, "shipping")
		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("concurrent change", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockOrderRepository)
		svc := NewOrderService(db, repo, nil, nil, nil, nil)

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("FindByID", mock.Anything, uint(7)).Return(&models.Order{ID: 7, OrderStatus: models.StatusPlaced}, nil)
		repo.On("CompareAndSetStatus", mock.Anything, uint(7), models.StatusPlaced, models.StatusRejected, map[string]interface{}(nil)).Return(false, nil)

		_, err := svc.UpdateStatus(context.Background(), 7, "rejected")
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("missing order", func(t *testing.T) {
		db, sqlMock := newTxDB(t)
		repo := new(MockOrderRepository)
		svc := NewOrderService(db, repo, nil, nil, nil, nil)

		sqlMock.ExpectBegin()
		sqlMock.ExpectRollback()
		repo.On("FindByID", mock.Anything, uint(7)).Return(nil, gorm.ErrRecordNotFound)

		_, err := svc.UpdateStatus(context.Background(), 7, "rejected")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.Contains(t, err.Error(), "Order not found")
	})
}
