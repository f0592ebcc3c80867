package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/cache"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/providers"
	"github.com/yashrajoria/orderms/internal/repository"
	aws_pkg "github.com/yashrajoria/orderms/pkg/aws"
	"go.uber.org/zap"
)

const (
	fulfillmentLockName = "fulfillment-batch"
	defaultClaimTimeout = 15 * time.Minute

	StepCreate = "create"
	StepAWB    = "awb"
	StepPickup = "pickup"
	StepClaim  = "claim"
	StepPanic  = "panic"
)

// Fallbacks for snapshot fields the courier requires but the order lacks.
const (
	defaultFirstName = "Customer"
	defaultLine      = "NA"
	defaultCity      = "NA"
	defaultState     = "NA"
	defaultPincode   = "000000"
	defaultPhone     = "9999999999"
	defaultEmail     = "orders@orderms.local"
	defaultCountry   = "India"
	paymentPrepaid   = "Prepaid"
)

// StepError describes where and why one order failed to ship.
type StepError struct {
	Step       string      `json:"step"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	ShipmentID string      `json:"shipment_id,omitempty"`
	Retryable  bool        `json:"retryable,omitempty"`
}

type ShippedOrder struct {
	ID          uint   `json:"id"`
	ShipmentID  string `json:"shipment_id"`
	AWBCode     string `json:"awb_code"`
	CourierName string `json:"courier_name"`
}

type FailedOrder struct {
	ID    uint      `json:"id"`
	Error StepError `json:"error"`
}

// BatchResult is the outcome of one fulfillment run.
type BatchResult struct {
	Shipped []ShippedOrder `json:"shipped"`
	Failed  []FailedOrder  `json:"failed"`
	Skipped []uint         `json:"skipped"`
}

// FulfillmentService pushes in-process orders through the courier workflow.
type FulfillmentService struct {
	orders       repository.OrderRepository
	shipper      providers.ShipmentProvider
	locker       cache.BatchLocker
	parcel       providers.Parcel
	events       *EventPublisher
	metrics      aws_pkg.MetricsRecorder
	logger       *zap.Logger
	claimTimeout time.Duration
	now          func() time.Time
}

func NewFulfillmentService(orders repository.OrderRepository, shipper providers.ShipmentProvider, locker cache.BatchLocker, parcel providers.Parcel, events *EventPublisher, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *FulfillmentService {
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FulfillmentService{
		orders:       orders,
		shipper:      shipper,
		locker:       locker,
		parcel:       parcel,
		events:       events,
		metrics:      metrics,
		logger:       logger,
		claimTimeout: defaultClaimTimeout,
		now:          time.Now,
	}
}

// WithClaimTimeout sets how long an order may sit in shipping without a write
// before a later batch takes it back.
func (s *FulfillmentService) WithClaimTimeout(d time.Duration) *FulfillmentService {
	if d > 0 {
		s.claimTimeout = d
	}
	return s
}

// ShipPending runs one batch over every order currently in process. The
// batch runs to completion even if the caller goes away.
func (s *FulfillmentService) ShipPending(ctx context.Context) (*BatchResult, error) {
	ctx = context.WithoutCancel(ctx)
	start := s.now()

	release, err := s.locker.Acquire(ctx, fulfillmentLockName)
	if err != nil {
		if errors.Is(err, cache.ErrLockHeld) {
			return nil, apperrors.Conflict("fulfillment batch already running")
		}
		return nil, apperrors.New(apperrors.KindUnavailable, "fulfillment lock unavailable", err)
	}
	defer func() {
		if err := release(ctx); err != nil {
			s.logger.Warn("failed to release fulfillment lock", zap.Error(err))
		}
	}()

	token, err := s.shipper.Authenticate(ctx)
	if err != nil {
		s.logger.Error("courier authentication failed", zap.Error(err))
		return nil, apperrors.Network("Courier authentication failed", err)
	}

	s.reclaimStale(ctx)

	orders, err := s.orders.FindByStatus(ctx, models.StatusInProcess)
	if err != nil {
		return nil, apperrors.Persistence("failed to load orders", err)
	}

	result := &BatchResult{
		Shipped: []ShippedOrder{},
		Failed:  []FailedOrder{},
		Skipped: []uint{},
	}
	for i := range orders {
		order := &orders[i]
		shipped, stepErr, claimed := s.shipOne(ctx, token, order)
		switch {
		case !claimed:
			result.Skipped = append(result.Skipped, order.ID)
		case stepErr != nil:
			result.Failed = append(result.Failed, FailedOrder{ID: order.ID, Error: *stepErr})
			countMetric(ctx, s.metrics, aws_pkg.MetricShipmentsFailed, map[string]string{"Step": stepErr.Step})
		default:
			result.Shipped = append(result.Shipped, *shipped)
			countMetric(ctx, s.metrics, aws_pkg.MetricOrdersShipped, nil)
		}
	}

	latencyMetric(ctx, s.metrics, aws_pkg.MetricFulfillmentBatch, s.now().Sub(start))
	s.logger.Info("fulfillment batch finished",
		zap.Int("candidates", len(orders)),
		zap.Int("shipped", len(result.Shipped)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

// shipOne claims the order and runs the remaining courier steps. Steps that
// already completed in an earlier batch are not repeated.
func (s *FulfillmentService) shipOne(ctx context.Context, token string, order *models.Order) (shipped *ShippedOrder, stepErr *StepError, claimed bool) {
	log := s.logger.With(zap.Uint("order_id", order.ID))
	owned := false

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while shipping order", zap.Any("panic", r))
			shipped, claimed = nil, true
			stepErr = &StepError{Step: StepPanic, Message: fmt.Sprint(r), ShipmentID: order.ShipmentID}
		}
		if stepErr != nil && owned {
			s.releaseClaim(ctx, order.ID, log)
		}
	}()

	ok, err := s.advance(ctx, order.ID, models.StatusInProcess, models.StatusShipping, nil)
	if err != nil {
		return nil, &StepError{Step: StepClaim, Message: "failed to claim order", Details: err.Error()}, true
	}
	if !ok {
		log.Info("order claimed elsewhere, skipping")
		return nil, nil, false
	}
	owned = true

	if order.ShipmentID == "" {
		created, err := s.shipper.CreateShipment(ctx, token, BuildShipmentRequest(order, s.parcel))
		if err != nil {
			log.Warn("shipment creation failed", zap.Error(err))
			return nil, stepFailure(StepCreate, "Failed to create shipment", "", err), true
		}
		order.ShipmentID = created.ShipmentID
		order.ShiprocketOrderID = created.VendorOrderID
		if err := s.orders.UpdateFields(ctx, order.ID, map[string]interface{}{
			"shipment_id":         created.ShipmentID,
			"shiprocket_order_id": created.VendorOrderID,
		}); err != nil {
			return nil, &StepError{Step: StepCreate, Message: "failed to save shipment id", Details: err.Error(), ShipmentID: created.ShipmentID}, true
		}
	}

	if order.AWBCode == "" {
		awb, err := s.shipper.AssignAWB(ctx, token, order.ShipmentID)
		if err != nil {
			log.Warn("awb assignment failed", zap.String("shipment_id", order.ShipmentID), zap.Error(err))
			return nil, stepFailure(StepAWB, "Failed to assign AWB", order.ShipmentID, err), true
		}
		order.AWBCode = awb.AWBCode
		order.CourierName = awb.CourierName
		if err := s.orders.UpdateFields(ctx, order.ID, map[string]interface{}{
			"awb_code":     awb.AWBCode,
			"courier_name": awb.CourierName,
		}); err != nil {
			return nil, &StepError{Step: StepAWB, Message: "failed to save awb", Details: err.Error(), ShipmentID: order.ShipmentID}, true
		}
	}

	if err := s.shipper.GeneratePickup(ctx, token, order.ShipmentID); err != nil {
		log.Warn("pickup request failed", zap.String("shipment_id", order.ShipmentID), zap.Error(err))
		return nil, stepFailure(StepPickup, "Failed to generate pickup", order.ShipmentID, err), true
	}

	shippedAt := s.now().UTC()
	ok, err = s.advance(ctx, order.ID, models.StatusShipping, models.StatusShipped, map[string]interface{}{
		"shipped_at": shippedAt,
	})
	if err != nil || !ok {
		msg := "order left shipping state"
		if err != nil {
			msg = err.Error()
		}
		return nil, &StepError{Step: StepPickup, Message: "failed to mark order shipped", Details: msg, ShipmentID: order.ShipmentID}, true
	}

	log.Info("order shipped", zap.String("shipment_id", order.ShipmentID), zap.String("awb_code", order.AWBCode))
	s.events.Publish(ctx, EventOrderShipped, map[string]interface{}{
		"order_id":     order.ID,
		"shipment_id":  order.ShipmentID,
		"awb_code":     order.AWBCode,
		"courier_name": order.CourierName,
	})
	return &ShippedOrder{
		ID:          order.ID,
		ShipmentID:  order.ShipmentID,
		AWBCode:     order.AWBCode,
		CourierName: order.CourierName,
	}, nil, true
}

// releaseClaim hands a failed order back to inprocess. If this fails the
// order stays in shipping until reclaimStale picks it up.
func (s *FulfillmentService) releaseClaim(ctx context.Context, orderID uint, log *zap.Logger) {
	ok, err := s.advance(ctx, orderID, models.StatusShipping, models.StatusInProcess, nil)
	if err != nil || !ok {
		log.Error("failed to release shipping claim", zap.Bool("updated", ok), zap.Error(err))
	}
}

// reclaimStale returns claims abandoned by a crashed or interrupted batch to
// inprocess so this batch retries them.
func (s *FulfillmentService) reclaimStale(ctx context.Context) {
	n, err := s.orders.ResetStale(ctx, models.StatusShipping, models.StatusInProcess, s.now().Add(-s.claimTimeout))
	if err != nil {
		s.logger.Warn("failed to reclaim stale shipping orders", zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Warn("reclaimed stale shipping orders", zap.Int64("orders", n), zap.Duration("claim_timeout", s.claimTimeout))
	}
}

// advance moves an order along a coordinator edge of the status machine.
func (s *FulfillmentService) advance(ctx context.Context, orderID uint, from, to models.OrderStatus, fields map[string]interface{}) (bool, error) {
	if !from.CanSystemTransition(to) {
		return false, fmt.Errorf("status %s cannot move to %s", from, to)
	}
	return s.orders.CompareAndSetStatus(ctx, orderID, from, to, fields)
}

// stepFailure keeps the vendor payload when there is one. Transport
// failures are marked retryable.
func stepFailure(step, message, shipmentID string, err error) *StepError {
	se := &StepError{Step: step, Message: message, ShipmentID: shipmentID}
	var apiErr *providers.APIError
	if errors.As(err, &apiErr) {
		var parsed interface{}
		if json.Unmarshal([]byte(apiErr.Body), &parsed) == nil {
			se.Details = parsed
		} else {
			se.Details = apiErr.Body
		}
		return se
	}
	se.Details = err.Error()
	se.Retryable = true
	return se
}

// BuildShipmentRequest maps an order snapshot to a courier request.
func BuildShipmentRequest(order *models.Order, parcel providers.Parcel) providers.ShipmentRequest {
	addr := models.OrderAddress{}
	if order.Address != nil {
		addr = *order.Address
	}

	name := strings.TrimSpace(order.Name)
	if name == "" {
		name = strings.TrimSpace(addr.Name)
	}
	first, last := splitName(name)

	phone := firstNonEmpty(order.Phone, addr.Phone, defaultPhone)

	items := make([]providers.ShipmentItem, 0, len(order.Items))
	for _, it := range order.Items {
		label := it.Name
		if it.Variant != "" {
			label = it.Name + " (" + it.Variant + ")"
		}
		sku := it.SKU
		if sku == "" {
			sku = "SKU-" + string(it.ID)
		}
		items = append(items, providers.ShipmentItem{
			Name:         label,
			SKU:          sku,
			Units:        it.Quantity,
			SellingPrice: it.Price,
		})
	}

	return providers.ShipmentRequest{
		OrderID:   strconv.FormatUint(uint64(order.ID), 10),
		OrderDate: order.CreatedAt,
		Customer: providers.ShipmentContact{
			FirstName: first,
			LastName:  last,
			Address:   firstNonEmpty(addr.Line1, defaultLine),
			Address2:  addr.Line2,
			City:      firstNonEmpty(addr.City, defaultCity),
			State:     firstNonEmpty(addr.State, defaultState),
			Pincode:   firstNonEmpty(addr.Pincode, defaultPincode),
			Country:   defaultCountry,
			Email:     defaultEmail,
			Phone:     phone,
		},
		Items:         items,
		PaymentMethod: paymentPrepaid,
		SubTotal:      order.Total().InexactFloat64(),
		Parcel:        parcel,
	}
}

// splitName splits on the first space.
func splitName(name string) (string, string) {
	if name == "" {
		return defaultFirstName, ""
	}
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
