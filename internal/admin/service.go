// Package admin is the back-office façade: catalog maintenance, order
// management and dashboard counters, all behind the admin claim.
package admin

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/storefront/storefront/internal/catalog"
	"github.com/storefront/storefront/internal/orders"
	"github.com/storefront/storefront/internal/shared"
)

// Catalog is the subset of catalog.Service the back office drives.
type Catalog interface {
	AllProducts(ctx context.Context) ([]catalog.Product, error)
	Categories(ctx context.Context) ([]catalog.Category, error)
	LowStock(ctx context.Context, threshold int) ([]catalog.Product, error)
	CreateProduct(ctx context.Context, in catalog.ProductInput) (catalog.Product, error)
	UpdateProduct(ctx context.Context, id int64, in catalog.ProductInput) (catalog.Product, error)
	DeleteProduct(ctx context.Context, id int64) error
	CreateCategory(ctx context.Context, in catalog.CategoryInput) (catalog.Category, error)
	UpdateCategory(ctx context.Context, id int64, in catalog.CategoryInput) (catalog.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// Orders is the subset of orders.Service the back office drives.
type Orders interface {
	List(ctx context.Context, f orders.ListFilter) ([]orders.Order, shared.Pagination, error)
	Report(ctx context.Context, f orders.ListFilter) (string, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status orders.Status) (orders.Order, error)
	Now() time.Time
}

// DashboardStats are the back-office counters.
type DashboardStats struct {
	TotalProducts       int             `json:"total_products"`
	TotalCategories     int             `json:"total_categories"`
	LowStockCount       int             `json:"low_stock_count"`
	TotalInventoryValue decimal.Decimal `json:"total_inventory_value"`
}

// ComputeStats scans products once.
func ComputeStats(products []catalog.Product, categories int, threshold int) DashboardStats {
	stats := DashboardStats{
		TotalProducts:       len(products),
		TotalCategories:     categories,
		TotalInventoryValue: decimal.Zero,
	}
	for _, p := range products {
		if p.Stock < threshold {
			stats.LowStockCount++
		}
		stats.TotalInventoryValue = stats.TotalInventoryValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Stock))))
	}
	return stats
}

// Service implements the back-office operations.
type Service struct {
	catalog   Catalog
	orders    Orders
	audit     shared.AuditStore
	threshold int
	logger    *slog.Logger
}

// NewService constructs the admin service. audit may be nil.
func NewService(cat Catalog, ord Orders, audit shared.AuditStore, lowStockThreshold int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = catalog.DefaultLowStockThreshold
	}
	return &Service{catalog: cat, orders: ord, audit: audit, threshold: lowStockThreshold, logger: logger}
}

// Dashboard loads products and categories concurrently and aggregates them.
func (s *Service) Dashboard(ctx context.Context) (DashboardStats, error) {
	var (
		products   []catalog.Product
		categories []catalog.Category
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.catalog.AllProducts(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.catalog.Categories(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardStats{}, err
	}
	return ComputeStats(products, len(categories), s.threshold), nil
}

// LowStock lists products under the configured threshold.
func (s *Service) LowStock(ctx context.Context) ([]catalog.Product, error) {
	return s.catalog.LowStock(ctx, s.threshold)
}

// Products lists every product.
func (s *Service) Products(ctx context.Context) ([]catalog.Product, error) {
	return s.catalog.AllProducts(ctx)
}

// CreateProduct adds a product.
func (s *Service) CreateProduct(ctx context.Context, actor shared.Principal, in catalog.ProductInput) (catalog.Product, error) {
	p, err := s.catalog.CreateProduct(ctx, in)
	if err != nil {
		return catalog.Product{}, err
	}
	s.record(ctx, actor, "product:create", "product", strconv.FormatInt(p.ID, 10), map[string]any{
		"name":  p.Name,
		"price": p.Price.String(),
		"stock": p.Stock,
	})
	return p, nil
}

// UpdateProduct replaces a product.
func (s *Service) UpdateProduct(ctx context.Context, actor shared.Principal, id int64, in catalog.ProductInput) (catalog.Product, error) {
	p, err := s.catalog.UpdateProduct(ctx, id, in)
	if err != nil {
		return catalog.Product{}, err
	}
	s.record(ctx, actor, "product:update", "product", strconv.FormatInt(id, 10), map[string]any{
		"name":  p.Name,
		"price": p.Price.String(),
		"stock": p.Stock,
	})
	return p, nil
}

// DeleteProduct removes a product.
func (s *Service) DeleteProduct(ctx context.Context, actor shared.Principal, id int64) error {
	if err := s.catalog.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "product:delete", "product", strconv.FormatInt(id, 10), nil)
	return nil
}

// Categories lists every category.
func (s *Service) Categories(ctx context.Context) ([]catalog.Category, error) {
	return s.catalog.Categories(ctx)
}

// CreateCategory adds a category.
func (s *Service) CreateCategory(ctx context.Context, actor shared.Principal, in catalog.CategoryInput) (catalog.Category, error) {
	c, err := s.catalog.CreateCategory(ctx, in)
	if err != nil {
		return catalog.Category{}, err
	}
	s.record(ctx, actor, "category:create", "category", strconv.FormatInt(c.ID, 10), map[string]any{"name": c.Name})
	return c, nil
}

// UpdateCategory renames a category.
func (s *Service) UpdateCategory(ctx context.Context, actor shared.Principal, id int64, in catalog.CategoryInput) (catalog.Category, error) {
	c, err := s.catalog.UpdateCategory(ctx, id, in)
	if err != nil {
		return catalog.Category{}, err
	}
	s.record(ctx, actor, "category:update", "category", strconv.FormatInt(id, 10), map[string]any{"name": c.Name})
	return c, nil
}

// DeleteCategory removes a category that no product references.
func (s *Service) DeleteCategory(ctx context.Context, actor shared.Principal, id int64) error {
	if err := s.catalog.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor, "category:delete", "category", strconv.FormatInt(id, 10), nil)
	return nil
}

// Orders returns one page of orders matching f.
func (s *Service) Orders(ctx context.Context, f orders.ListFilter) ([]orders.Order, shared.Pagination, error) {
	return s.orders.List(ctx, f)
}

// Report renders the orders report and its download name.
func (s *Service) Report(ctx context.Context, f orders.ListFilter) (string, string, error) {
	body, err := s.orders.Report(ctx, f)
	if err != nil {
		return "", "", err
	}
	return orders.ReportFilename(s.orders.Now()), body, nil
}

// UpdateOrderStatus sets the status of an order.
func (s *Service) UpdateOrderStatus(ctx context.Context, actor shared.Principal, id uuid.UUID, status orders.Status) (orders.Order, error) {
	o, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return orders.Order{}, err
	}
	s.record(ctx, actor, "order:status", "order", id.String(), map[string]any{
		"order_number": o.Number,
		"status":       string(o.Status),
	})
	return o, nil
}

// AuditTrail lists recorded back-office mutations, newest first.
func (s *Service) AuditTrail(ctx context.Context, q shared.AuditQuery) ([]shared.AuditLog, error) {
	if s.audit == nil {
		return []shared.AuditLog{}, nil
	}
	logs, err := s.audit.Recent(ctx, q.Normalize())
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []shared.AuditLog{}
	}
	return logs, nil
}

func (s *Service) record(ctx context.Context, actor shared.Principal, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.UserID,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
