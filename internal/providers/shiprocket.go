package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const shiprocketBaseURL = "https://apiv2.shiprocket.in"

// ShiprocketConfig holds account and pickup settings.
type ShiprocketConfig struct {
	BaseURL        string
	Email          string
	Password       string
	PickupLocation string
	// CourierID pins a courier for AWB assignment; 0 lets Shiprocket choose.
	CourierID int
}

// ShiprocketProvider implements ShipmentProvider using the Shiprocket external API.
type ShiprocketProvider struct {
	cfg    ShiprocketConfig
	client *restClient
}

func NewShiprocketProvider(cfg ShiprocketConfig, httpClient *http.Client) *ShiprocketProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = shiprocketBaseURL
	}
	return &ShiprocketProvider{cfg: cfg, client: newRestClient("shiprocket", cfg.BaseURL, httpClient)}
}

// ---- Shiprocket API request/response structs ----

type shiprocketLogin struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type shiprocketOrderItem struct {
	Name         string  `json:"name"`
	SKU          string  `json:"sku"`
	Units        int     `json:"units"`
	SellingPrice float64 `json:"selling_price"`
}

type shiprocketAdhocOrder struct {
	OrderID             string                `json:"order_id"`
	OrderDate           string                `json:"order_date"`
	PickupLocation      string                `json:"pickup_location"`
	BillingCustomerName string                `json:"billing_customer_name"`
	BillingLastName     string                `json:"billing_last_name"`
	BillingAddress      string                `json:"billing_address"`
	BillingAddress2     string                `json:"billing_address_2,omitempty"`
	BillingCity         string                `json:"billing_city"`
	BillingPincode      string                `json:"billing_pincode"`
	BillingState        string                `json:"billing_state"`
	BillingCountry      string                `json:"billing_country"`
	BillingEmail        string                `json:"billing_email"`
	BillingPhone        string                `json:"billing_phone"`
	ShippingIsBilling   bool                  `json:"shipping_is_billing"`
	OrderItems          []shiprocketOrderItem `json:"order_items"`
	PaymentMethod       string                `json:"payment_method"`
	SubTotal            float64               `json:"sub_total"`
	Length              float64               `json:"length"`
	Breadth             float64               `json:"breadth"`
	Height              float64               `json:"height"`
	Weight              float64               `json:"weight"`
}

type shiprocketAdhocResponse struct {
	OrderID    json.Number `json:"order_id"`
	ShipmentID json.Number `json:"shipment_id"`
	Status     string      `json:"status"`
}

type shiprocketAWBRequest struct {
	ShipmentID string `json:"shipment_id"`
	CourierID  int    `json:"courier_id,omitempty"`
}

type shiprocketAWBResponse struct {
	AWBAssignStatus int `json:"awb_assign_status"`
	Response        struct {
		Data struct {
			AWBCode          string `json:"awb_code"`
			CourierName      string `json:"courier_name"`
			CourierCompanyID int    `json:"courier_company_id"`
		} `json:"data"`
	} `json:"response"`
}

type shiprocketPickupRequest struct {
	ShipmentID []string `json:"shipment_id"`
}

type shiprocketPickupResponse struct {
	PickupStatus int `json:"pickup_status"`
}

// ---- ShipmentProvider implementation ----

func (p *ShiprocketProvider) Authenticate(ctx context.Context) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body, err := p.client.do(ctx, http.MethodPost, "/v1/external/auth/login",
		shiprocketLogin{Email: p.cfg.Email, Password: p.cfg.Password}, &resp, nil)
	if err != nil {
		return "", fmt.Errorf("shiprocket login: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("shiprocket login: %w", &APIError{Vendor: "shiprocket", StatusCode: http.StatusOK, Body: string(body)})
	}
	return resp.Token, nil
}

func (p *ShiprocketProvider) CreateShipment(ctx context.Context, token string, req ShipmentRequest) (*CreatedShipment, error) {
	items := make([]shiprocketOrderItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, shiprocketOrderItem(it))
	}
	reqBody := shiprocketAdhocOrder{
		OrderID:             req.OrderID,
		OrderDate:           req.OrderDate.Format("2006-01-02 15:04"),
		PickupLocation:      p.cfg.PickupLocation,
		BillingCustomerName: req.Customer.FirstName,
		BillingLastName:     req.Customer.LastName,
		BillingAddress:      req.Customer.Address,
		BillingAddress2:     req.Customer.Address2,
		BillingCity:         req.Customer.City,
		BillingPincode:      req.Customer.Pincode,
		BillingState:        req.Customer.State,
		BillingCountry:      req.Customer.Country,
		BillingEmail:        req.Customer.Email,
		BillingPhone:        req.Customer.Phone,
		ShippingIsBilling:   true,
		OrderItems:          items,
		PaymentMethod:       req.PaymentMethod,
		SubTotal:            req.SubTotal,
		Length:              req.Parcel.Length,
		Breadth:             req.Parcel.Breadth,
		Height:              req.Parcel.Height,
		Weight:              req.Parcel.Weight,
	}

	var resp shiprocketAdhocResponse
	body, err := p.client.do(ctx, http.MethodPost, "/v1/external/orders/create/adhoc", reqBody, &resp, bearer(token))
	if err != nil {
		return nil, fmt.Errorf("shiprocket create order: %w", err)
	}
	if resp.ShipmentID == "" || resp.ShipmentID == "0" {
		return nil, fmt.Errorf("shiprocket create order: %w", &APIError{Vendor: "shiprocket", StatusCode: http.StatusOK, Body: string(body)})
	}
	return &CreatedShipment{VendorOrderID: resp.OrderID.String(), ShipmentID: resp.ShipmentID.String()}, nil
}

func (p *ShiprocketProvider) AssignAWB(ctx context.Context, token, shipmentID string) (*AWBAssignment, error) {
	var resp shiprocketAWBResponse
	body, err := p.client.do(ctx, http.MethodPost, "/v1/external/courier/assign/awb",
		shiprocketAWBRequest{ShipmentID: shipmentID, CourierID: p.cfg.CourierID}, &resp, bearer(token))
	if err != nil {
		return nil, fmt.Errorf("shiprocket assign awb: %w", err)
	}
	if resp.AWBAssignStatus != 1 || resp.Response.Data.AWBCode == "" {
		return nil, fmt.Errorf("shiprocket assign awb: %w", &APIError{Vendor: "shiprocket", StatusCode: http.StatusOK, Body: string(body)})
	}
	return &AWBAssignment{
		AWBCode:     resp.Response.Data.AWBCode,
		CourierName: resp.Response.Data.CourierName,
		CourierID:   resp.Response.Data.CourierCompanyID,
	}, nil
}

func (p *ShiprocketProvider) GeneratePickup(ctx context.Context, token, shipmentID string) error {
	var resp shiprocketPickupResponse
	body, err := p.client.do(ctx, http.MethodPost, "/v1/external/courier/generate/pickup",
		shiprocketPickupRequest{ShipmentID: []string{shipmentID}}, &resp, bearer(token))
	if err != nil {
		return fmt.Errorf("shiprocket generate pickup: %w", err)
	}
	if resp.PickupStatus != 1 {
		return fmt.Errorf("shiprocket generate pickup: %w", &APIError{Vendor: "shiprocket", StatusCode: http.StatusOK, Body: string(body)})
	}
	return nil
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
