package providers

import (
	"context"
	"time"
)

// ShipmentRequest is a vendor-neutral shipment creation request.
type ShipmentRequest struct {
	OrderID       string
	OrderDate     time.Time
	Customer      ShipmentContact
	Items         []ShipmentItem
	PaymentMethod string
	SubTotal      float64
	Parcel        Parcel
}

type ShipmentContact struct {
	FirstName string
	LastName  string
	Address   string
	Address2  string
	City      string
	State     string
	Pincode   string
	Country   string
	Email     string
	Phone     string
}

type ShipmentItem struct {
	Name         string
	SKU          string
	Units        int
	SellingPrice float64
}

// Parcel dimensions are in cm, weight in kg.
type Parcel struct {
	Length  float64
	Breadth float64
	Height  float64
	Weight  float64
}

type CreatedShipment struct {
	VendorOrderID string
	ShipmentID    string
}

type AWBAssignment struct {
	AWBCode     string
	CourierName string
	CourierID   int
}

// ShipmentProvider defines the three-step courier workflow.
type ShipmentProvider interface {
	// Authenticate returns a bearer token valid for a whole batch.
	Authenticate(ctx context.Context) (string, error)

	CreateShipment(ctx context.Context, token string, req ShipmentRequest) (*CreatedShipment, error)

	AssignAWB(ctx context.Context, token, shipmentID string) (*AWBAssignment, error)

	// GeneratePickup marks the shipment ready to ship.
	GeneratePickup(ctx context.Context, token, shipmentID string) error
}
