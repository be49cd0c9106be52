package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

// maxPrice is the largest value a NUMERIC(12,2) price column holds.
var maxPrice = decimal.RequireFromString("9999999999.99")

// Service provides catalog reads for shoppers and mutations for the admin
// façade. Mutations invalidate the product cache.
type Service struct {
	repo     Repository
	cache    *Cache
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs the catalog service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		validate: shared.NewValidator(),
		logger:   logger,
	}
}

// AllProducts returns the full product list, served from cache when warm.
func (s *Service) AllProducts(ctx context.Context) ([]Product, error) {
	products, err := s.cache.Products(ctx, s.repo.ListProducts)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return products, nil
}

// Products returns the products matching opts.
func (s *Service) Products(ctx context.Context, opts FilterOptions) ([]Product, error) {
	products, err := s.AllProducts(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(products, opts), nil
}

// Product fetches a single product.
func (s *Service) Product(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	return s.repo.GetProduct(ctx, id)
}

// Categories lists every category.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// LowStock lists products with stock below threshold, lowest first.
func (s *Service) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.repo.LowStock(ctx, threshold)
}

// CreateProduct validates and inserts a product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in = normalizeProduct(in)
	if err := s.validateProduct(ctx, in); err != nil {
		return Product{}, err
	}
	p, err := s.repo.CreateProduct(ctx, in)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return p, nil
}

// UpdateProduct validates and replaces a product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	if id <= 0 {
		return Product{}, ErrProductNotFound
	}
	in = normalizeProduct(in)
	if err := s.validateProduct(ctx, in); err != nil {
		return Product{}, err
	}
	p, err := s.repo.UpdateProduct(ctx, id, in)
	if err != nil {
		return Product{}, err
	}
	s.invalidate(ctx)
	return p, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrProductNotFound
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// CreateCategory inserts a category after the case-insensitive duplicate check.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Category{}, err
	}
	if err := s.checkDuplicateCategory(ctx, in.Name, 0); err != nil {
		return Category{}, err
	}
	return s.repo.CreateCategory(ctx, in.Name)
}

// UpdateCategory renames a category; the name must stay unique among the others.
func (s *Service) UpdateCategory(ctx context.Context, id int64, in CategoryInput) (Category, error) {
	if id <= 0 {
		return Category{}, ErrCategoryNotFound
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		return Category{}, err
	}
	if err := s.checkDuplicateCategory(ctx, in.Name, id); err != nil {
		return Category{}, err
	}
	c, err := s.repo.UpdateCategory(ctx, id, in.Name)
	if err != nil {
		return Category{}, err
	}
	s.invalidate(ctx)
	return c, nil
}

// DeleteCategory removes a category. It fails with ErrCategoryInUse, without
// issuing the delete, while any product references the category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrCategoryNotFound
	}
	n, err := s.repo.CountProductsInCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w (%d products)", ErrCategoryInUse, n)
	}
	return s.repo.DeleteCategory(ctx, id)
}

// Invalidate drops cached product data, e.g. after stock changes.
func (s *Service) Invalidate(ctx context.Context) {
	s.invalidate(ctx)
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidate failed", slog.Any("error", err))
	}
}

func (s *Service) checkDuplicateCategory(ctx context.Context, name string, self int64) error {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		if c.ID != self && SameName(c.Name, name) {
			return ErrDuplicateCategory
		}
	}
	return nil
}

func (s *Service) validateProduct(ctx context.Context, in ProductInput) error {
	fields := httpx.FieldErrors{}
	if err := shared.ValidateStruct(s.validate, in); err != nil {
		var fe httpx.FieldErrors
		if !errors.As(err, &fe) {
			return err
		}
		for k, v := range fe {
			fields[k] = v
		}
	}
	switch {
	case !in.Price.IsPositive():
		fields["price"] = "must be greater than 0"
	case !in.Price.Equal(in.Price.Round(2)):
		fields["price"] = "must have at most 2 decimal places"
	case in.Price.GreaterThan(maxPrice):
		fields["price"] = "must be at most " + maxPrice.StringFixed(2)
	}
	if in.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *in.CategoryID); err != nil {
			if !errors.Is(err, ErrCategoryNotFound) {
				return err
			}
			fields["category_id"] = "does not exist"
		}
	}
	if len(fields) > 0 {
		return fields
	}
	return nil
}

func normalizeProduct(in ProductInput) ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	return in
}
