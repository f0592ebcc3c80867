package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/orderms/internal/services"
)

type ProductService interface {
	ListActive(ctx context.Context) ([]services.ProductView, error)
	ListAllWithStatus(ctx context.Context) ([]services.AdminProductView, error)
	Get(ctx context.Context, id uint) (*services.AdminProductView, error)
	Create(ctx context.Context, in services.ProductInput) (*services.AdminProductView, error)
	Update(ctx context.Context, id uint, patch services.ProductPatch) (*services.AdminProductView, error)
	Delete(ctx context.Context, id uint) error
	Toggle(ctx context.Context, id uint) (*services.ToggleResult, error)
	ImageUploadURL(ctx context.Context, filename, contentType string) (*services.UploadURL, error)
}

type UploadURLRequest struct {
	Filename    string `form:"filename" json:"filename"`
	ContentType string `form:"content_type" json:"content_type"`
}

type ProductController struct {
	products ProductService
}

func NewProductController(products ProductService) *ProductController {
	return &ProductController{products: products}
}

// ListActive handles GET /api/products
func (pc *ProductController) ListActive(c *gin.Context) {
	list, err := pc.products.ListActive(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListAll handles GET /api/products-state
func (pc *ProductController) ListAll(c *gin.Context) {
	list, err := pc.products.ListAllWithStatus(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (pc *ProductController) Get(c *gin.Context) {
	id, ok := uintParam(c, "id", "product id")
	if !ok {
		return
	}
	p, err := pc.products.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (pc *ProductController) Create(c *gin.Context) {
	var in services.ProductInput
	if !bind(c, &in) {
		return
	}
	p, err := pc.products.Create(c.Request.Context(), in)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Product added", "product_id": p.ID, "product": p})
}

func (pc *ProductController) Update(c *gin.Context) {
	id, ok := uintParam(c, "id", "product id")
	if !ok {
		return
	}
	var patch services.ProductPatch
	if !bind(c, &patch) {
		return
	}
	p, err := pc.products.Update(c.Request.Context(), id, patch)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated", "product": p})
}

func (pc *ProductController) Delete(c *gin.Context) {
	id, ok := uintParam(c, "id", "product id")
	if !ok {
		return
	}
	if err := pc.products.Delete(c.Request.Context(), id); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted", "product_id": id})
}

func (pc *ProductController) Toggle(c *gin.Context) {
	id, ok := uintParam(c, "id", "product id")
	if !ok {
		return
	}
	res, err := pc.products.Toggle(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UploadURL handles POST /api/products/upload-url
func (pc *ProductController) UploadURL(c *gin.Context) {
	var req UploadURLRequest
	if !bind(c, &req) {
		return
	}
	out, err := pc.products.ImageUploadURL(c.Request.Context(), req.Filename, req.ContentType)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, out)
}
