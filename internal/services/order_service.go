package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/repository"
	aws_pkg "github.com/yashrajoria/orderms/pkg/aws"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	EventOrderPlaced        = "order_placed"
	EventOrderStatusChanged = "order_status_changed"
	EventOrderShipped       = "order_shipped"
)

// CreateOrderInput is an order as submitted after checkout.
type CreateOrderInput struct {
	Name            string               `json:"name"`
	Phone           string               `json:"phone"`
	Address         *models.OrderAddress `json:"address"`
	Items           []models.OrderItem   `json:"items"`
	TotalAmount     *decimal.Decimal     `json:"total_amount"`
	PaymentIntentID string               `json:"payment_intent_id"`
	PaymentID       string               `json:"payment_id"`
}

// PlaceOrderInput carries the order plus the checkout signature that
// proves payment for it.
type PlaceOrderInput struct {
	CreateOrderInput
	Signature string `json:"signature"`
}

// PaymentVerifier checks a checkout completion before an order is stored.
type PaymentVerifier interface {
	VerifyCompletion(ctx context.Context, in VerifyInput) error
	VerifyAmount(ctx context.Context, intentID string, total decimal.Decimal) error
	GatewayName() string
}

// OrderView is the order as shown to customers and the admin panel.
type OrderView struct {
	ID              uint                `json:"id"`
	PaymentIntentID string              `json:"razorpay_order_id"`
	CustomerName    string              `json:"customer_name"`
	PhoneNumber     string              `json:"phone_number"`
	CreatedAt       string              `json:"created_at"`
	TotalAmount     float64             `json:"total_amount"`
	OrderStatus     models.OrderStatus  `json:"order_status"`
	Items           []models.OrderItem  `json:"items"`
	Address         models.OrderAddress `json:"address"`
	ShipmentID      string              `json:"shipment_id,omitempty"`
	AWBCode         string              `json:"awb_code,omitempty"`
	CourierName     string              `json:"courier_name,omitempty"`
	ShippedAt       string              `json:"shipped_at,omitempty"`
}

type OrderPage struct {
	Orders []OrderView `json:"orders"`
	Meta   MetaData    `json:"meta"`
}

type OrderService struct {
	db       *gorm.DB
	orders   repository.OrderRepository
	payments PaymentVerifier
	events   *EventPublisher
	metrics  aws_pkg.MetricsRecorder
	logger   *zap.Logger
}

func NewOrderService(db *gorm.DB, orders repository.OrderRepository, payments PaymentVerifier, events *EventPublisher, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		db:       db,
		orders:   orders,
		payments: payments,
		events:   events,
		metrics:  metrics,
		logger:   logger,
	}
}

// PlaceOrder verifies the payment, including that it covers the order total,
// and then stores the order.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, in PlaceOrderInput) (*models.Order, bool, error) {
	intentID := strings.TrimSpace(in.PaymentIntentID)
	if intentID == "" {
		return nil, false, apperrors.Validation("payment_intent_id is required")
	}
	if in.TotalAmount == nil {
		return nil, false, apperrors.Validation("total_amount is required")
	}
	err := s.payments.VerifyCompletion(ctx, VerifyInput{
		OrderID:   intentID,
		PaymentID: in.PaymentID,
		Signature: in.Signature,
	})
	if err != nil {
		return nil, false, err
	}
	if err := s.payments.VerifyAmount(ctx, intentID, *in.TotalAmount); err != nil {
		return nil, false, err
	}
	return s.CreateOrder(ctx, userID, in.CreateOrderInput)
}

// CreateOrder stores a placed order. Replaying the same payment intent
// returns the stored order with created=false.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, in CreateOrderInput) (*models.Order, bool, error) {
	if err := validateOrderInput(userID, &in); err != nil {
		return nil, false, err
	}

	intentID := strings.TrimSpace(in.PaymentIntentID)
	if intentID != "" {
		existing, err := s.orders.FindByPaymentIntentID(ctx, intentID)
		if err == nil {
			return s.replay(existing, userID, intentID)
		}
		if !isNotFound(err) {
			return nil, false, apperrors.Persistence("failed to look up order", err)
		}
	}

	order := &models.Order{
		UserID:      userID,
		Name:        strings.TrimSpace(in.Name),
		Phone:       strings.TrimSpace(in.Phone),
		Address:     in.Address,
		Items:       in.Items,
		TotalAmount: decimal.NewNullDecimal(in.TotalAmount.Round(2)),
		OrderStatus: models.StatusPlaced,
		PaymentID:   strings.TrimSpace(in.PaymentID),
	}
	if intentID != "" {
		order.PaymentIntentID = &intentID
		if s.payments != nil {
			order.PaymentGateway = s.payments.GatewayName()
		}
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if isDuplicate(err) && intentID != "" {
			existing, lookupErr := s.orders.FindByPaymentIntentID(ctx, intentID)
			if lookupErr == nil {
				return s.replay(existing, userID, intentID)
			}
		}
		return nil, false, apperrors.Persistence("failed to create order", err)
	}

	s.logger.Info("order placed",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", userID),
		zap.String("total", order.Total().StringFixed(2)),
	)
	countMetric(ctx, s.metrics, aws_pkg.MetricOrdersCreated, nil)
	s.events.Publish(ctx, EventOrderPlaced, map[string]interface{}{
		"order_id":     order.ID,
		"user_id":      userID,
		"total_amount": order.Total().StringFixed(2),
		"items":        len(order.Items),
	})
	return order, true, nil
}

// replay returns the order already stored for a payment intent. An intent
// belongs to the user who first placed it.
func (s *OrderService) replay(existing *models.Order, userID uint, intentID string) (*models.Order, bool, error) {
	if existing.UserID != userID {
		s.logger.Warn("payment intent reused by another user",
			zap.Uint("order_id", existing.ID),
			zap.Uint("user_id", userID),
			zap.String("intent_id", intentID),
		)
		return nil, false, apperrors.Conflict("Payment already used for another order")
	}
	s.logger.Info("order replay", zap.Uint("order_id", existing.ID), zap.String("intent_id", intentID))
	return existing, false, nil
}

func validateOrderInput(userID uint, in *CreateOrderInput) error {
	if userID == 0 {
		return apperrors.Validation("user is required")
	}
	if in.Address == nil || strings.TrimSpace(in.Address.Line1) == "" || strings.TrimSpace(in.Address.Pincode) == "" {
		return apperrors.Validation("address with line1 and pincode is required")
	}
	if len(in.Items) == 0 {
		return apperrors.Validation("items are required")
	}
	if in.TotalAmount == nil {
		return apperrors.Validation("total_amount is required")
	}

	sum := decimal.Zero
	for i := range in.Items {
		item := &in.Items[i]
		item.ID = models.FlexString(strings.TrimSpace(string(item.ID)))
		if item.Quantity <= 0 {
			return validationf("items[%d].quantity must be positive", i)
		}
		if item.Price < 0 {
			return validationf("items[%d].price must not be negative", i)
		}
		if item.SKU == "" {
			if item.ID == "" {
				return validationf("items[%d].id is required", i)
			}
			item.SKU = "SKU-" + string(item.ID)
		}
		sum = sum.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !sum.Round(2).Equal(in.TotalAmount.Round(2)) {
		return apperrors.Validation(fmt.Sprintf("total_amount %s does not match items total %s",
			in.TotalAmount.StringFixed(2), sum.StringFixed(2)))
	}
	return nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID uint) ([]OrderView, error) {
	orders, err := s.orders.FindByUserID(ctx, userID)
	if err != nil {
		return nil, apperrors.Persistence("failed to list orders", err)
	}
	return toOrderViews(orders), nil
}

func (s *OrderService) ListAll(ctx context.Context, page, limit int) (*OrderPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	orders, total, err := s.orders.FindAll(ctx, page, limit)
	if err != nil {
		return nil, apperrors.Persistence("failed to list orders", err)
	}
	return &OrderPage{Orders: toOrderViews(orders), Meta: newMetaData(page, limit, total)}, nil
}

// UpdateStatus applies an administrator's status change. The write only
// lands if the order still has the status that was validated.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uint, status string) (*OrderView, error) {
	next, err := models.ParseOrderStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, apperrors.Validation("Invalid order status")
	}

	var (
		order   *models.Order
		changed bool
		from    models.OrderStatus
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		o, err := orders.FindByID(ctx, orderID)
		if err != nil {
			if isNotFound(err) {
				return apperrors.NotFound("Order not found")
			}
			return apperrors.Persistence("failed to load order", err)
		}
		order, from = o, o.OrderStatus
		if from == next {
			return nil
		}
		if from.IsTerminal() {
			return apperrors.Validation(fmt.Sprintf("Order is already %s", from))
		}
		if !from.CanTransition(next) {
			return apperrors.Validation(fmt.Sprintf("Cannot change order status from %s to %s", from, next))
		}

		ok, err := orders.CompareAndSetStatus(ctx, orderID, from, next, nil)
		if err != nil {
			return apperrors.Persistence("failed to update order", err)
		}
		if !ok {
			return apperrors.Conflict("Order status changed concurrently")
		}
		order.OrderStatus = next
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("order status changed",
			zap.Uint("order_id", orderID),
			zap.String("from", string(from)),
			zap.String("to", string(next)),
		)
		s.events.Publish(ctx, EventOrderStatusChanged, map[string]interface{}{
			"order_id": orderID,
			"from":     from,
			"to":       next,
		})
	}
	view := toOrderView(order)
	return &view, nil
}

func toOrderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, toOrderView(&orders[i]))
	}
	return views
}

func toOrderView(o *models.Order) OrderView {
	v := OrderView{
		ID:           o.ID,
		CustomerName: o.Name,
		PhoneNumber:  o.Phone,
		TotalAmount:  o.Total().InexactFloat64(),
		OrderStatus:  o.OrderStatus,
		Items:        o.Items,
		ShipmentID:   o.ShipmentID,
		AWBCode:      o.AWBCode,
		CourierName:  o.CourierName,
	}
	if o.PaymentIntentID != nil {
		v.PaymentIntentID = *o.PaymentIntentID
	}
	if !o.CreatedAt.IsZero() {
		v.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	if o.ShippedAt != nil {
		v.ShippedAt = o.ShippedAt.Format(time.RFC3339)
	}
	if o.Address != nil {
		v.Address = *o.Address
	}
	if v.Items == nil {
		v.Items = []models.OrderItem{}
	}
	return v
}
