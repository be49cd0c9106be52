package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/storefront/internal/platform/db"
	"github.com/storefront/storefront/internal/shared"
)

const (
	maxPlaceAttempts        = 3
	orderNumberConstraint   = "orders_order_number_key"
	StagePersistHeader      = "header"
	StagePersistItems       = "items"
	StagePersistStock       = "stock"
	StagePersistTransaction = "transaction"
)

// Metrics receives placement counters.
type Metrics interface {
	OrderPlaced(country string)
	OrderFailed(stage string)
	StockClamped()
}

// CatalogInvalidator drops cached product data after stock changes.
type CatalogInvalidator interface {
	Invalidate(ctx context.Context)
}

// Notifier is told about committed orders, e.g. to send a confirmation.
type Notifier interface {
	OrderPlaced(ctx context.Context, o Order) error
}

// Service places and queries orders.
type Service struct {
	repo     Repository
	numbers  *NumberGenerator
	logger   *slog.Logger
	metrics  Metrics
	catalog  CatalogInvalidator
	notifier Notifier
	now      func() time.Time
}

// Option customises the Service.
type Option func(*Service)

// WithMetrics records placement counters.
func WithMetrics(m Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithCatalog invalidates the catalog cache after placement.
func WithCatalog(c CatalogInvalidator) Option { return func(s *Service) { s.catalog = c } }

// WithNotifier announces placed orders.
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithNumberGenerator overrides order number generation.
func WithNumberGenerator(g *NumberGenerator) Option { return func(s *Service) { s.numbers = g } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService constructs the order service.
func NewService(repo Repository, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:    repo,
		numbers: NewNumberGenerator(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextNumber returns a fresh order number.
func (s *Service) NextNumber() string {
	return s.numbers.Next()
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// PlaceError reports the stage at which placement failed.
type PlaceError struct {
	Stage string
	Err   error
}

func (e *PlaceError) Error() string { return fmt.Sprintf("place order (%s): %v", e.Stage, e.Err) }

func (e *PlaceError) Unwrap() error { return e.Err }

// Place persists the order header, its items and the stock decrements in
// one transaction. A collision on the order number retries with a fresh
// number; a serialization failure or deadlock retries as is. The returned order carries the number actually stored.
func (s *Service) Place(ctx context.Context, o Order) (Order, error) {
	if len(o.Items) == 0 {
		return Order{}, ErrEmptyCart
	}
	var err error
	for attempt := 1; attempt <= maxPlaceAttempts; attempt++ {
		err = s.place(ctx, o)
		if err == nil || attempt == maxPlaceAttempts {
			break
		}
		if db.IsRetryable(err) {
			s.logger.Warn("order transaction conflict, retrying", slog.String("order_number", o.Number), slog.Int("attempt", attempt))
			continue
		}
		if !isNumberCollision(err) {
			break
		}
		s.logger.Warn("order number collision, retrying", slog.String("order_number", o.Number))
		o.Number = s.numbers.Next()
		o.ID = uuid.New()
	}
	if err != nil {
		var perr *PlaceError
		stage := StagePersistTransaction
		if errors.As(err, &perr) {
			stage = perr.Stage
		}
		if s.metrics != nil {
			s.metrics.OrderFailed(stage)
		}
		s.logger.Error("order placement failed",
			slog.String("order_number", o.Number),
			slog.String("stage", stage),
			slog.Any("error", err))
		return Order{}, err
	}

	if s.metrics != nil {
		s.metrics.OrderPlaced(o.ShippingAddress.Country)
	}
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	if s.notifier != nil {
		if nerr := s.notifier.OrderPlaced(ctx, o); nerr != nil {
			s.logger.Warn("order confirmation not queued", slog.String("order_number", o.Number), slog.Any("error", nerr))
		}
	}
	s.logger.Info("order placed",
		slog.String("order_number", o.Number),
		slog.String("total", o.Total.StringFixed(2)),
		slog.Int("items", o.ItemCount()))
	return o, nil
}

func (s *Service) place(ctx context.Context, o Order) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertOrder(ctx, o); err != nil {
			return &PlaceError{Stage: StagePersistHeader, Err: err}
		}
		if err := tx.InsertItems(ctx, o.ID, o.Items); err != nil {
			return &PlaceError{Stage: StagePersistItems, Err: err}
		}
		for _, it := range o.Items {
			change, err := tx.DecrementStock(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return &PlaceError{Stage: StagePersistStock, Err: err}
			}
			switch {
			case !change.Found:
				s.logger.Warn("stock not decremented, product missing",
					slog.Int64("product_id", it.ProductID), slog.String("order_number", o.Number))
			case change.Clamped(it.Quantity):
				if s.metrics != nil {
					s.metrics.StockClamped()
				}
				s.logger.Warn("stock clamped at zero",
					slog.Int64("product_id", it.ProductID),
					slog.Int("requested", it.Quantity),
					slog.Int("available", change.Previous))
			}
		}
		return nil
	})
	if err != nil {
		var perr *PlaceError
		if errors.As(err, &perr) {
			return err
		}
		return &PlaceError{Stage: StagePersistTransaction, Err: err}
	}
	return nil
}

func isNumberCollision(err error) bool {
	var perr *PlaceError
	if !errors.As(err, &perr) || perr.Stage != StagePersistHeader {
		return false
	}
	return db.IsUniqueViolation(err) && db.ConstraintName(err) == orderNumberConstraint
}

// ListForUser returns the principal's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, p shared.Principal) ([]Order, error) {
	if p.Anonymous() {
		return nil, shared.ErrSignInRequired
	}
	id, err := uuid.Parse(p.UserID)
	if err != nil {
		return nil, shared.ErrSignInRequired
	}
	return s.repo.ListByUser(ctx, id)
}

// GetByNumber fetches an order.
func (s *Service) GetByNumber(ctx context.Context, number string) (Order, error) {
	if number == "" {
		return Order{}, ErrOrderNotFound
	}
	return s.repo.GetByNumber(ctx, number)
}

// List returns a page of orders for the admin back-office.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, shared.Pagination, error) {
	orders, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return orders, shared.NewPagination(max(f.Page, 1), f.Limit, total), nil
}

// ListAll returns every order, newest first.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.repo.ListAll(ctx)
}

// Report renders the orders report for f.
func (s *Service) Report(ctx context.Context, f ListFilter) (string, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return "", err
	}
	return RenderReport(all, f, s.now()), nil
}

// UpdateStatus sets any of the five statuses; transitions are not restricted.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (Order, error) {
	if !status.Valid() {
		return Order{}, ErrInvalidStatus
	}
	o, err := s.repo.UpdateStatus(ctx, id, status, s.now().UTC())
	if err != nil {
		return Order{}, err
	}
	s.logger.Info("order status updated", slog.String("order_number", o.Number), slog.String("status", string(status)))
	return o, nil
}
