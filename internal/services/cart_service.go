package services

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/models"
)

type CartItem struct {
	ID       models.FlexString `json:"id"`
	Name     string            `json:"name"`
	Variant  string            `json:"variant,omitempty"`
	Quantity int               `json:"quantity"`
	Price    float64           `json:"price"`
	Weight   models.FlexString `json:"weight,omitempty"`
}

type CartPayload struct {
	Items []CartItem `json:"items"`
}

type CartSyncResult struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	UserID  uint        `json:"user_id"`
	Data    CartPayload `json:"data"`
}

// CartService acknowledges a client-side cart. Nothing is stored.
type CartService struct{}

func NewCartService() *CartService { return &CartService{} }

func (s *CartService) Sync(_ context.Context, userID uint, cart CartPayload) (*CartSyncResult, error) {
	for i, item := range cart.Items {
		if strings.TrimSpace(string(item.ID)) == "" {
			return nil, validationf("items[%d].id is required", i)
		}
		if item.Quantity <= 0 {
			return nil, validationf("items[%d].quantity must be positive", i)
		}
		if item.Price < 0 {
			return nil, validationf("items[%d].price must not be negative", i)
		}
	}
	if cart.Items == nil {
		cart.Items = []CartItem{}
	}
	return &CartSyncResult{
		Status:  "success",
		Message: "Cart synced successfully",
		UserID:  userID,
		Data:    cart,
	}, nil
}

func validationf(format string, args ...interface{}) error {
	return apperrors.Validation(fmt.Sprintf(format, args...))
}
