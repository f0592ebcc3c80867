package providers

import (
	"context"
	"errors"
)

const (
	GatewayRazorpay = "razorpay"
	GatewayStripe   = "stripe"
)

// ErrVerificationFailed means the gateway did not vouch for the payment.
var ErrVerificationFailed = errors.New("payment verification failed")

// Intent is a gateway-side pending payment.
type Intent struct {
	ID           string
	Amount       int64
	Currency     string
	Status       string
	ClientSecret string
}

// PaymentGateway defines the interface all payment integrations must implement.
type PaymentGateway interface {
	Name() string

	// PublicKey is the key the browser checkout needs.
	PublicKey() string

	// CreateIntent requests a pending payment of amountMinor in the currency's minor unit.
	CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*Intent, error)

	// FetchIntent reads a pending payment back from the gateway. An id the
	// gateway does not know is ErrVerificationFailed.
	FetchIntent(ctx context.Context, intentID string) (*Intent, error)

	// VerifyCompletion returns ErrVerificationFailed (possibly wrapped) when the
	// completion proof does not check out. Other errors are transport failures.
	VerifyCompletion(ctx context.Context, intentID, paymentID, signature string) error
}
