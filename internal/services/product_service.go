package services

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/yashrajoria/orderms/common/errors"
	"github.com/yashrajoria/orderms/internal/cache"
	"github.com/yashrajoria/orderms/internal/models"
	"github.com/yashrajoria/orderms/internal/repository"
	aws_pkg "github.com/yashrajoria/orderms/pkg/aws"
	"go.uber.org/zap"
)

const (
	activeCatalogKey  = "active"
	uploadURLValidity = 15 * time.Minute
)

// ProductView is the customer-facing projection.
type ProductView struct {
	ID          uint             `json:"id"`
	ItemName    string           `json:"item_name"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
	ImageURL    string           `json:"image_url"`
	Variants    []models.Variant `json:"variants"`
	MaxPrice    float64          `json:"max_price"`
}

// AdminProductView adds the enabled flag and the raw slots for editing.
type AdminProductView struct {
	ProductView
	ShelfLifeDays *int     `json:"shelf_life_days"`
	LeadTimeDays  *int     `json:"lead_time_days"`
	Packing01     *string  `json:"packing_01"`
	Price01       *float64 `json:"price_01"`
	Packing02     *string  `json:"packing_02"`
	Price02       *float64 `json:"price_02"`
	Packing03     *string  `json:"packing_03"`
	Price03       *float64 `json:"price_03"`
	Packing04     *string  `json:"packing_04"`
	Price04       *float64 `json:"price_04"`
	IsEnabled     bool     `json:"is_enabled"`
}

// ProductInput creates a product.
type ProductInput struct {
	ItemName      string   `json:"item_name" validate:"required,max=255"`
	Category      string   `json:"category" validate:"max=100"`
	Description   string   `json:"description"`
	ImageSrc      string   `json:"imagesrc" validate:"max=1024"`
	ShelfLifeDays *int     `json:"shelf_life_days" validate:"omitempty,gte=0"`
	LeadTimeDays  *int     `json:"lead_time_days" validate:"omitempty,gte=0"`
	Packing01     *string  `json:"packing_01" validate:"omitempty,max=100"`
	Price01       *float64 `json:"price_01" validate:"omitempty,gte=0"`
	Packing02     *string  `json:"packing_02" validate:"omitempty,max=100"`
	Price02       *float64 `json:"price_02" validate:"omitempty,gte=0"`
	Packing03     *string  `json:"packing_03" validate:"omitempty,max=100"`
	Price03       *float64 `json:"price_03" validate:"omitempty,gte=0"`
	Packing04     *string  `json:"packing_04" validate:"omitempty,max=100"`
	Price04       *float64 `json:"price_04" validate:"omitempty,gte=0"`
}

// ProductPatch is a partial update. Only non-nil fields are written and
// only these fields can be written.
type ProductPatch struct {
	ItemName      *string  `json:"item_name" validate:"omitempty,min=1,max=255"`
	Category      *string  `json:"category" validate:"omitempty,max=100"`
	Description   *string  `json:"description"`
	ImageSrc      *string  `json:"imagesrc" validate:"omitempty,max=1024"`
	ShelfLifeDays *int     `json:"shelf_life_days" validate:"omitempty,gte=0"`
	LeadTimeDays  *int     `json:"lead_time_days" validate:"omitempty,gte=0"`
	Packing01     *string  `json:"packing_01" validate:"omitempty,max=100"`
	Price01       *float64 `json:"price_01" validate:"omitempty,gte=0"`
	Packing02     *string  `json:"packing_02" validate:"omitempty,max=100"`
	Price02       *float64 `json:"price_02" validate:"omitempty,gte=0"`
	Packing03     *string  `json:"packing_03" validate:"omitempty,max=100"`
	Price03       *float64 `json:"price_03" validate:"omitempty,gte=0"`
	Packing04     *string  `json:"packing_04" validate:"omitempty,max=100"`
	Price04       *float64 `json:"price_04" validate:"omitempty,gte=0"`
	IsEnabled     *bool    `json:"is_enabled"`
}

// Columns maps the set fields to their database columns.
func (p ProductPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	set := func(col string, ok bool, v interface{}) {
		if ok {
			cols[col] = v
		}
	}
	set("item_name", p.ItemName != nil, p.ItemName)
	set("category", p.Category != nil, p.Category)
	set("description", p.Description != nil, p.Description)
	set("imagesrc", p.ImageSrc != nil, p.ImageSrc)
	set("shelf_life_days", p.ShelfLifeDays != nil, p.ShelfLifeDays)
	set("lead_time_days", p.LeadTimeDays != nil, p.LeadTimeDays)
	set("packing_01", p.Packing01 != nil, p.Packing01)
	set("price_01", p.Price01 != nil, p.Price01)
	set("packing_02", p.Packing02 != nil, p.Packing02)
	set("price_02", p.Price02 != nil, p.Price02)
	set("packing_03", p.Packing03 != nil, p.Packing03)
	set("price_03", p.Price03 != nil, p.Price03)
	set("packing_04", p.Packing04 != nil, p.Packing04)
	set("price_04", p.Price04 != nil, p.Price04)
	set("is_enabled", p.IsEnabled != nil, p.IsEnabled)
	for k, v := range cols {
		switch ptr := v.(type) {
		case *string:
			cols[k] = *ptr
		case *int:
			cols[k] = *ptr
		case *float64:
			cols[k] = *ptr
		case *bool:
			cols[k] = *ptr
		}
	}
	return cols
}

type ToggleResult struct {
	Message   string `json:"message"`
	ProductID uint   `json:"product_id"`
	NewStatus bool   `json:"new_status"`
}

type UploadURL struct {
	UploadURL string            `json:"upload_url"`
	Key       string            `json:"key"`
	Headers   map[string]string `json:"headers"`
	ExpiresIn int64             `json:"expires_in"`
}

// ProductService is the catalog. The active listing is cached when a cache
// is configured; every mutation invalidates it.
type ProductService struct {
	products  repository.ProductRepository
	cache     *cache.CatalogCache
	presigner aws_pkg.UploadPresigner
	bucket    string
	metrics   aws_pkg.MetricsRecorder
	logger    *zap.Logger
}

func NewProductService(products repository.ProductRepository, catalogCache *cache.CatalogCache, presigner aws_pkg.UploadPresigner, bucket string, metrics aws_pkg.MetricsRecorder, logger *zap.Logger) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductService{
		products:  products,
		cache:     catalogCache,
		presigner: presigner,
		bucket:    bucket,
		metrics:   metrics,
		logger:    logger,
	}
}

func (s *ProductService) ListActive(ctx context.Context) ([]ProductView, error) {
	var cached []ProductView
	if s.cache.Get(ctx, activeCatalogKey, &cached) {
		countMetric(ctx, s.metrics, aws_pkg.MetricCacheHits, map[string]string{"Cache": "catalog"})
		return cached, nil
	}
	if s.cache != nil {
		countMetric(ctx, s.metrics, aws_pkg.MetricCacheMisses, map[string]string{"Cache": "catalog"})
	}

	products, err := s.products.List(ctx, true)
	if err != nil {
		return nil, apperrors.Persistence("failed to list products", err)
	}
	views := make([]ProductView, 0, len(products))
	for i := range products {
		views = append(views, toProductView(&products[i]))
	}
	s.cache.Set(ctx, activeCatalogKey, views)
	return views, nil
}

func (s *ProductService) ListAllWithStatus(ctx context.Context) ([]AdminProductView, error) {
	products, err := s.products.List(ctx, false)
	if err != nil {
		return nil, apperrors.Persistence("failed to list products", err)
	}
	views := make([]AdminProductView, 0, len(products))
	for i := range products {
		views = append(views, toAdminProductView(&products[i]))
	}
	return views, nil
}

func (s *ProductService) Get(ctx context.Context, id uint) (*AdminProductView, error) {
	p, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := toAdminProductView(p)
	return &view, nil
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (*AdminProductView, error) {
	in.ItemName = strings.TrimSpace(in.ItemName)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	p := &models.Product{
		ItemName:      in.ItemName,
		Category:      strings.TrimSpace(in.Category),
		Description:   in.Description,
		ImageSrc:      in.ImageSrc,
		ShelfLifeDays: in.ShelfLifeDays,
		LeadTimeDays:  in.LeadTimeDays,
		Packing01:     in.Packing01,
		Price01:       in.Price01,
		Packing02:     in.Packing02,
		Price02:       in.Price02,
		Packing03:     in.Packing03,
		Price03:       in.Price03,
		Packing04:     in.Packing04,
		Price04:       in.Price04,
		IsEnabled:     true,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, apperrors.Persistence("failed to create product", err)
	}
	s.invalidate(ctx)
	countMetric(ctx, s.metrics, aws_pkg.MetricProductsCreated, nil)
	s.logger.Info("product created", zap.Uint("product_id", p.ID))

	view := toAdminProductView(p)
	return &view, nil
}

func (s *ProductService) Update(ctx context.Context, id uint, patch ProductPatch) (*AdminProductView, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	cols := patch.Columns()
	if len(cols) == 0 {
		return nil, apperrors.Validation("No updatable fields provided")
	}
	if err := s.products.Updates(ctx, id, cols); err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("Product not found")
		}
		return nil, apperrors.Persistence("failed to update product", err)
	}
	s.invalidate(ctx)
	return s.Get(ctx, id)
}

func (s *ProductService) Delete(ctx context.Context, id uint) error {
	if err := s.products.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return apperrors.NotFound("Product not found")
		}
		return apperrors.Persistence("failed to delete product", err)
	}
	s.invalidate(ctx)
	s.logger.Info("product deleted", zap.Uint("product_id", id))
	return nil
}

func (s *ProductService) Toggle(ctx context.Context, id uint) (*ToggleResult, error) {
	p, err := s.products.Toggle(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("Product not found")
		}
		return nil, apperrors.Persistence("failed to toggle product", err)
	}
	s.invalidate(ctx)

	state := "disabled"
	if p.IsEnabled {
		state = "enabled"
	}
	return &ToggleResult{Message: "Product " + state, ProductID: p.ID, NewStatus: p.IsEnabled}, nil
}

// ImageUploadURL presigns a direct PUT of a product image to S3.
func (s *ProductService) ImageUploadURL(ctx context.Context, filename, contentType string) (*UploadURL, error) {
	if s.presigner == nil || s.bucket == "" {
		return nil, apperrors.Unavailable("Image uploads are not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperrors.Validation("content_type must be an image type")
	}

	key := "products/" + uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	url, headers, err := s.presigner.PresignPut(ctx, s.bucket, key, contentType, uploadURLValidity)
	if err != nil {
		return nil, apperrors.New(apperrors.KindUnavailable, "Failed to generate upload URL", err)
	}
	return &UploadURL{
		UploadURL: url,
		Key:       key,
		Headers:   headers,
		ExpiresIn: int64(uploadURLValidity.Seconds()),
	}, nil
}

func (s *ProductService) find(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperrors.NotFound("Product not found")
		}
		return nil, apperrors.Persistence("failed to load product", err)
	}
	return p, nil
}

func (s *ProductService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Error("catalog cache invalidation failed", zap.Error(err))
	}
}

func toProductView(p *models.Product) ProductView {
	return ProductView{
		ID:          p.ID,
		ItemName:    p.ItemName,
		Category:    p.Category,
		Description: p.Description,
		ImageURL:    p.ImageSrc,
		Variants:    p.Variants(),
		MaxPrice:    p.MaxPrice(),
	}
}

func toAdminProductView(p *models.Product) AdminProductView {
	return AdminProductView{
		ProductView:   toProductView(p),
		ShelfLifeDays: p.ShelfLifeDays,
		LeadTimeDays:  p.LeadTimeDays,
		Packing01:     p.Packing01,
		Price01:       p.Price01,
		Packing02:     p.Packing02,
		Price02:       p.Price02,
		Packing03:     p.Packing03,
		Price03:       p.Price03,
		Packing04:     p.Packing04,
		Price04:       p.Price04,
		IsEnabled:     p.IsEnabled,
	}
}
