package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a registered customer. Saved addresses live on the row as a JSON
// collection owned by the user.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	FirstName    string         `gorm:"size:100" json:"first_name"`
	LastName     string         `gorm:"size:100" json:"last_name"`
	MobileNumber string         `gorm:"size:15;uniqueIndex;not null" json:"mobile_number"`
	Email        *string        `gorm:"size:100;uniqueIndex" json:"email,omitempty"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	CustomerID   string         `gorm:"size:20;uniqueIndex;not null" json:"customer_id"`
	InternalID   string         `gorm:"size:36;uniqueIndex;not null" json:"-"`
	Role         string         `gorm:"size:20;not null;default:'user'" json:"role"`
	Addresses    []Address      `gorm:"serializer:json;type:json" json:"addresses"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Address is one saved delivery address. ID is unique within its user.
type Address struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty" validate:"max=100"`
	Line1      string `json:"line1" validate:"required,max=255"`
	Line2      string `json:"line2,omitempty" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state,omitempty" validate:"max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=12"`
	Phone      string `json:"phone,omitempty" validate:"max=15"`
}

// SameLocation reports whether a and b share line1 and postal code.
func (a Address) SameLocation(b Address) bool {
	return normalize(a.Line1) == normalize(b.Line1) && normalize(a.PostalCode) == normalize(b.PostalCode)
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
