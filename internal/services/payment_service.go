package services

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/providers"
	aws_pkg "github.com/yashrajoria/orderms/pkg/aws"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// IntentResponse is what the browser checkout needs to open the gateway.
type IntentResponse struct {
	OrderID      string `json:"order_id"`
	Key          string `json:"key"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Gateway      string `json:"gateway"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type VerifyInput struct {
	OrderID   string `form:"order_id" json:"order_id"`
	PaymentID string `form:"payment_id" json:"payment_id"`
	Signature string `form:"signature" json:"signature"`
}

// PaymentService bridges the checkout to the configured gateway.
type PaymentService struct {
	gateway  providers.PaymentGateway
	currency string
	metrics  aws_pkg.MetricsRecorder
	logger   *zap.Logger
}

func NewPaymentService(gateway providers.PaymentGateway, currency string, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *PaymentService {
	if currency == "" {
		currency = "INR"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{gateway: gateway, currency: currency, metrics: metrics, logger: logger}
}

// ToMinorUnits converts a major-unit amount to the gateway's minor unit,
// rounding half away from zero at the cent.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func (s *PaymentService) CreateIntent(ctx context.Context, amount *decimal.Decimal) (*IntentResponse, error) {
	if amount == nil {
		return nil, apperrors.Validation("Amount is required")
	}
	if !amount.IsPositive() {
		return nil, apperrors.Validation("Amount must be greater than zero")
	}
	minor := ToMinorUnits(*amount)
	if minor <= 0 {
		return nil, apperrors.Validation("Amount must be greater than zero")
	}

	intent, err := s.gateway.CreateIntent(ctx, minor, s.currency, "rcpt_"+shortID())
	if err != nil {
		s.logger.Error("create payment intent failed", zap.String("gateway", s.gateway.Name()), zap.Error(err))
		return nil, apperrors.Network("Failed to create payment order", err)
	}

	s.logger.Info("payment intent created",
		zap.String("gateway", s.gateway.Name()),
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", minor),
	)
	return &IntentResponse{
		OrderID:      intent.ID,
		Key:          s.gateway.PublicKey(),
		Amount:       minor,
		Currency:     s.currency,
		Gateway:      s.gateway.Name(),
		ClientSecret: intent.ClientSecret,
	}, nil
}

// VerifyCompletion checks the completion proof returned by the checkout.
func (s *PaymentService) VerifyCompletion(ctx context.Context, in VerifyInput) error {
	in.OrderID = strings.TrimSpace(in.OrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.Signature = strings.TrimSpace(in.Signature)
	if in.OrderID == "" || in.PaymentID == "" {
		return apperrors.Validation("order_id and payment_id are required")
	}
	if in.Signature == "" && s.gateway.Name() == providers.GatewayRazorpay {
		return apperrors.Validation("signature is required")
	}

	dims := map[string]string{"Gateway": s.gateway.Name()}
	err := s.gateway.VerifyCompletion(ctx, in.OrderID, in.PaymentID, in.Signature)
	if err != nil {
		countMetric(ctx, s.metrics, aws_pkg.MetricPaymentFailed, dims)
		if errors.Is(err, providers.ErrVerificationFailed) {
			s.logger.Warn("payment verification failed", zap.String("intent_id", in.OrderID))
			return apperrors.PaymentVerification("Payment verification failed")
		}
		return apperrors.Network("Failed to verify payment", err)
	}

	countMetric(ctx, s.metrics, aws_pkg.MetricPaymentSucceeded, dims)
	return nil
}

// VerifyAmount checks that the gateway intent was opened for total, so a
// small payment cannot settle a larger order.
func (s *PaymentService) VerifyAmount(ctx context.Context, intentID string, total decimal.Decimal) error {
	intent, err := s.gateway.FetchIntent(ctx, strings.TrimSpace(intentID))
	if err != nil {
		if errors.Is(err, providers.ErrVerificationFailed) {
			s.logger.Warn("payment intent not found", zap.String("intent_id", intentID))
			return apperrors.PaymentVerification("Payment verification failed")
		}
		return apperrors.Network("Failed to fetch payment order", err)
	}

	want := ToMinorUnits(total)
	if intent.Amount != want {
		countMetric(ctx, s.metrics, aws_pkg.MetricPaymentFailed, map[string]string{"Gateway": s.gateway.Name()})
		s.logger.Warn("payment amount mismatch",
			zap.String("intent_id", intent.ID),
			zap.Int64("paid", intent.Amount),
			zap.Int64("order_total", want),
		)
		return apperrors.PaymentVerification("Payment amount does not match order total")
	}
	return nil
}

func (s *PaymentService) GatewayName() string { return s.gateway.Name() }
