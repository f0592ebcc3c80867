package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
)

// StripeGateway implements PaymentGateway using Stripe PaymentIntents.
type StripeGateway struct {
	api            *client.API
	publishableKey string
}

// NewStripeGateway builds a client-scoped Stripe API. A nil backends uses the
// live Stripe endpoints.
func NewStripeGateway(secretKey, publishableKey string, backends *stripe.Backends) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, backends)
	return &StripeGateway{api: api, publishableKey: publishableKey}
}

func (g *StripeGateway) Name() string      { return GatewayStripe }
func (g *StripeGateway) PublicKey() string { return g.publishableKey }

func (g *StripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	if receipt != "" {
		params.AddMetadata("receipt", receipt)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return &Intent{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (g *StripeGateway) FetchIntent(ctx context.Context, intentID string) (*Intent, error) {
	pi, err := g.getIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return &Intent{ID: pi.ID, Amount: pi.Amount, Currency: string(pi.Currency), Status: string(pi.Status)}, nil
}

// VerifyCompletion asks Stripe for the intent. Stripe has no client-side
// signature, so signature is ignored and the intent must have succeeded.
// When paymentID is set it must name the intent or its latest charge.
func (g *StripeGateway) VerifyCompletion(ctx context.Context, intentID, paymentID, _ string) error {
	pi, err := g.getIntent(ctx, intentID)
	if err != nil {
		return err
	}

	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: intent status %s", ErrVerificationFailed, pi.Status)
	}
	if paymentID != "" && paymentID != pi.ID && (pi.LatestCharge == nil || pi.LatestCharge.ID != paymentID) {
		return fmt.Errorf("%w: payment %s does not belong to intent", ErrVerificationFailed, paymentID)
	}
	return nil
}

// getIntent maps Stripe's 4xx answers to ErrVerificationFailed.
func (g *StripeGateway) getIntent(ctx context.Context, intentID string) (*stripe.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode >= http.StatusBadRequest && stripeErr.HTTPStatusCode < http.StatusInternalServerError {
			return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, stripeErr.Msg)
		}
		return nil, fmt.Errorf("stripe get payment intent: %w", err)
	}
	return pi, nil
}
