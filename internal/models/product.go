package models

import (
	"fmt"
	"time"
)

// VariantSlots is the fixed number of (packing, price) slots on a product.
const VariantSlots = 4

// Product is a catalog entry with up to four priced packing variants.
type Product struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ItemName      string    `gorm:"size:255;not null" json:"item_name"`
	Category      string    `gorm:"size:100;index" json:"category"`
	Description   string    `gorm:"type:text" json:"description"`
	ImageSrc      string    `gorm:"column:imagesrc;size:1024" json:"imagesrc"`
	ShelfLifeDays *int      `json:"shelf_life_days"`
	LeadTimeDays  *int      `json:"lead_time_days"`
	Packing01     *string   `gorm:"column:packing_01;size:100" json:"packing_01"`
	Price01       *float64  `gorm:"column:price_01" json:"price_01"`
	Packing02     *string   `gorm:"column:packing_02;size:100" json:"packing_02"`
	Price02       *float64  `gorm:"column:price_02" json:"price_02"`
	Packing03     *string   `gorm:"column:packing_03;size:100" json:"packing_03"`
	Price03       *float64  `gorm:"column:price_03" json:"price_03"`
	Packing04     *string   `gorm:"column:packing_04;size:100" json:"packing_04"`
	Price04       *float64  `gorm:"column:price_04" json:"price_04"`
	IsEnabled     bool      `gorm:"not null;default:true;index" json:"is_enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Variant is one present (packing, price) slot.
type Variant struct {
	Packing string  `json:"packing"`
	Price   float64 `json:"price"`
}

// Slot returns the packing label and price of slot n (1-based).
func (p *Product) Slot(n int) (*string, *float64) {
	switch n {
	case 1:
		return p.Packing01, p.Price01
	case 2:
		return p.Packing02, p.Price02
	case 3:
		return p.Packing03, p.Price03
	case 4:
		return p.Packing04, p.Price04
	}
	return nil, nil
}

// Variants lists present slots in slot order. A slot is present when its
// price is set; a missing label falls back to "Var N".
func (p *Product) Variants() []Variant {
	variants := make([]Variant, 0, VariantSlots)
	for n := 1; n <= VariantSlots; n++ {
		packing, price := p.Slot(n)
		if price == nil {
			continue
		}
		label := fmt.Sprintf("Var %d", n)
		if packing != nil && *packing != "" {
			label = *packing
		}
		variants = append(variants, Variant{Packing: label, Price: *price})
	}
	return variants
}

// MaxPrice is the highest variant price, 0 when no variant is present.
func (p *Product) MaxPrice() float64 {
	highest := 0.0
	for i, v := range p.Variants() {
		if i == 0 || v.Price > highest {
			highest = v.Price
		}
	}
	return highest
}
