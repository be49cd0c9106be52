package catalog

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront/storefront/internal/platform/httpx"
)

var (
	ErrProductNotFound   = fmt.Errorf("product %w", httpx.ErrNotFound)
	ErrCategoryNotFound  = fmt.Errorf("category %w", httpx.ErrNotFound)
	ErrCategoryInUse     = fmt.Errorf("%w: category has products assigned and cannot be deleted", httpx.ErrConflict)
	ErrDuplicateCategory = fmt.Errorf("%w: a category with that name already exists", httpx.ErrDuplicate)
)

// DefaultLowStockThreshold marks products with fewer units as low stock.
const DefaultLowStockThreshold = 5

// Product is a catalog item.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	CategoryID  *int64          `json:"category_id,omitempty"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InCategory reports whether the product references id.
func (p Product) InCategory(id int64) bool {
	return p.CategoryID != nil && *p.CategoryID == id
}

// Category groups products.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductInput is the admin payload for creating or replacing a product.
type ProductInput struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url" validate:"required,max=2048"`
	CategoryID  *int64          `json:"category_id"`
	Stock       int             `json:"stock" validate:"gte=0,lte=2147483647"`
}

// CategoryInput is the admin payload for a category.
type CategoryInput struct {
	Name string `json:"name" validate:"required,max=100"`
}
