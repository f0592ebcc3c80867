package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is one checkout. Address and Items are snapshots copied at creation
// and never follow later edits to the user or catalog.
type Order struct {
	ID                uint                `gorm:"primaryKey" json:"id"`
	UserID            uint                `gorm:"not null;index" json:"user_id"`
	Name              string              `gorm:"size:100" json:"name"`
	Phone             string              `gorm:"size:20" json:"phone"`
	Address           *OrderAddress       `gorm:"serializer:json;type:json" json:"address"`
	Items             []OrderItem         `gorm:"serializer:json;type:json" json:"items"`
	TotalAmount       decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"total_amount"`
	OrderStatus       OrderStatus         `gorm:"size:20;not null;default:'placed';index" json:"order_status"`
	PaymentGateway    string              `gorm:"size:20" json:"payment_gateway,omitempty"`
	PaymentIntentID   *string             `gorm:"size:64;uniqueIndex" json:"payment_intent_id,omitempty"`
	PaymentID         string              `gorm:"size:64" json:"payment_id,omitempty"`
	ShiprocketOrderID string              `gorm:"size:32" json:"shiprocket_order_id,omitempty"`
	ShipmentID        string              `gorm:"size:32" json:"shipment_id,omitempty"`
	AWBCode           string              `gorm:"size:64" json:"awb_code,omitempty"`
	CourierName       string              `gorm:"size:100" json:"courier_name,omitempty"`
	ShippedAt         *time.Time          `json:"shipped_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// OrderAddress is the delivery address snapshot.
type OrderAddress struct {
	Name    string `json:"name,omitempty"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone,omitempty"`
}

// OrderItem is one purchased line.
type OrderItem struct {
	ID            FlexString `json:"id"`
	Name          string     `json:"name"`
	Variant       string     `json:"variant,omitempty"`
	SKU           string     `json:"sku"`
	Quantity      int        `json:"quantity"`
	Price         float64    `json:"price"`
	OriginalPrice *float64   `json:"originalPrice,omitempty"`
	Weight        FlexString `json:"weight,omitempty"`
}

// FlexString is a string field that also accepts a JSON number, as
// storefront clients send product ids and weights either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}

// Total returns the stored total, 0 when unset.
func (o *Order) Total() decimal.Decimal {
	if !o.TotalAmount.Valid {
		return decimal.Zero
	}
	return o.TotalAmount.Decimal
}
