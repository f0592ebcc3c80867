package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const razorpayBaseURL = "https://api.razorpay.com"

// RazorpayGateway implements PaymentGateway using the Razorpay Orders API.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	client    *restClient
}

// NewRazorpayGateway creates a RazorpayGateway. An empty baseURL uses the live API.
func NewRazorpayGateway(baseURL, keyID, keySecret string, httpClient *http.Client) *RazorpayGateway {
	if baseURL == "" {
		baseURL = razorpayBaseURL
	}
	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		client:    newRestClient("razorpay", baseURL, httpClient),
	}
}

type razorpayOrderRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	PaymentCapture int    `json:"payment_capture"`
	Receipt        string `json:"receipt,omitempty"`
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (g *RazorpayGateway) Name() string      { return GatewayRazorpay }
func (g *RazorpayGateway) PublicKey() string { return g.keyID }

func (g *RazorpayGateway) CreateIntent(ctx context.Context, amountMinor int64, currency, receipt string) (*Intent, error) {
	reqBody := razorpayOrderRequest{
		Amount:         amountMinor,
		Currency:       currency,
		PaymentCapture: 1,
		Receipt:        receipt,
	}

	var resp razorpayOrderResponse
	body, err := g.client.do(ctx, http.MethodPost, "/v1/orders", reqBody, &resp, g.basicAuth())
	if err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, &APIError{Vendor: "razorpay", StatusCode: http.StatusOK, Body: string(body)}
	}
	return &Intent{ID: resp.ID, Amount: resp.Amount, Currency: resp.Currency, Status: resp.Status}, nil
}

func (g *RazorpayGateway) FetchIntent(ctx context.Context, intentID string) (*Intent, error) {
	var resp razorpayOrderResponse
	body, err := g.client.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(intentID), nil, &resp, g.basicAuth())
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusBadRequest || apiErr.StatusCode == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: unknown order %s", ErrVerificationFailed, intentID)
		}
		return nil, err
	}
	if resp.ID == "" {
		return nil, &APIError{Vendor: "razorpay", StatusCode: http.StatusOK, Body: string(body)}
	}
	return &Intent{ID: resp.ID, Amount: resp.Amount, Currency: resp.Currency, Status: resp.Status}, nil
}

func (g *RazorpayGateway) basicAuth() http.Header {
	header := http.Header{}
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(g.keyID+":"+g.keySecret)))
	return header
}

// VerifyCompletion checks the checkout signature locally; no call is made.
func (g *RazorpayGateway) VerifyCompletion(_ context.Context, intentID, paymentID, signature string) error {
	expected := RazorpaySignature(intentID, paymentID, g.keySecret)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrVerificationFailed
	}
	return nil
}

// RazorpaySignature is hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func RazorpaySignature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
