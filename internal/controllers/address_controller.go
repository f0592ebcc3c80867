package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/orderms/internal/models"
)

type AddressService interface {
	List(ctx context.Context, userID uint) ([]models.Address, error)
	Add(ctx context.Context, userID uint, addr models.Address) ([]models.Address, bool, error)
	Update(ctx context.Context, userID uint, addressID string, addr models.Address) ([]models.Address, error)
	Remove(ctx context.Context, userID uint, addressID string) ([]models.Address, error)
}

type AddressController struct {
	addresses AddressService
}

func NewAddressController(addresses AddressService) *AddressController {
	return &AddressController{addresses: addresses}
}

func (ac *AddressController) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := ac.addresses.List(c.Request.Context(), p.ID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"addresses": list})
}

// Add returns 201 for a new address and 200 when the location was already saved.
func (ac *AddressController) Add(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var addr models.Address
	if !bind(c, &addr) {
		return
	}
	list, created, err := ac.addresses.Add(c.Request.Context(), p.ID, addr)
	if err != nil {
		c.Error(err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"message": "Address already saved", "addresses": list})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Address added", "addresses": list})
}

func (ac *AddressController) Update(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	var addr models.Address
	if !bind(c, &addr) {
		return
	}
	list, err := ac.addresses.Update(c.Request.Context(), p.ID, c.Param("address_id"), addr)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Address updated", "addresses": list})
}

func (ac *AddressController) Remove(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	list, err := ac.addresses.Remove(c.Request.Context(), p.ID, c.Param("address_id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Address removed", "addresses": list})
}
