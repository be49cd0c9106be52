// Package checkout drives the multi-step checkout: customer details, then
// the shipping address, then review and placement.
package checkout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/storefront/internal/cart"
	"github.com/storefront/storefront/internal/orders"
	"github.com/storefront/storefront/internal/pricing"
)

// IdempotencyModule scopes checkout keys in the idempotency store.
const IdempotencyModule = "checkout"

// Placer persists assembled orders.
type Placer interface {
	Place(ctx context.Context, o orders.Order) (orders.Order, error)
	NextNumber() string
	Now() time.Time
}

// Idempotency guards against double submission.
type Idempotency interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// View is the checkout as presented to the shopper.
type View struct {
	Step      Step                   `json:"step"`
	StepIndex int                    `json:"step_index"`
	Customer  orders.Customer        `json:"customer"`
	Address   orders.ShippingAddress `json:"shipping_address"`
	Cart      cart.View              `json:"cart"`
	Quote     pricing.Totals         `json:"quote"`
}

// Service coordinates checkout state, the cart and order placement.
type Service struct {
	states StateStore
	carts  cart.Storage
	placer Placer
	idem   Idempotency
	logger *slog.Logger
}

// NewService constructs the checkout service. idem may be nil.
func NewService(states StateStore, carts cart.Storage, placer Placer, idem Idempotency, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{states: states, carts: carts, placer: placer, idem: idem, logger: logger}
}

// View returns the current step, cart and quote.
func (s *Service) View(ctx context.Context, slot string) (View, error) {
	st, err := s.states.Load(ctx, slot)
	if err != nil {
		return View{}, fmt.Errorf("load checkout: %w", err)
	}
	store, err := cart.Open(ctx, s.carts, slot)
	if err != nil {
		return View{}, err
	}
	return s.view(st, store), nil
}

func (s *Service) view(st State, store *cart.Store) View {
	q := NewQuoter(store, st.Address.Country)
	defer q.Close()
	return View{
		Step:      st.Step,
		StepIndex: st.Step.Index(),
		Customer:  st.Customer,
		Address:   st.Address,
		Cart:      cart.NewView(store),
		Quote:     q.Current(),
	}
}

// SetCustomer validates and stores the contact details, advancing to the
// address step.
func (s *Service) SetCustomer(ctx context.Context, slot string, c orders.Customer) (View, error) {
	if err := orders.ValidateCustomer(c); err != nil {
		return View{}, err
	}
	st, store, err := s.load(ctx, slot)
	if err != nil {
		return View{}, err
	}
	st.Customer = orders.NormalizeCustomer(c)
	st.Step = StepAddress
	if err := s.states.Save(ctx, slot, st); err != nil {
		return View{}, fmt.Errorf("save checkout: %w", err)
	}
	return s.view(st, store), nil
}

// SetAddress validates and stores the destination, advancing to review.
// The quote follows the new country.
func (s *Service) SetAddress(ctx context.Context, slot string, a orders.ShippingAddress) (View, error) {
	st, store, err := s.load(ctx, slot)
	if err != nil {
		return View{}, err
	}
	if st.Step.Index() < StepAddress.Index() {
		return View{}, ErrWrongStep
	}
	if err := orders.ValidateAddress(a); err != nil {
		return View{}, err
	}
	st.Address = orders.NormalizeAddress(a)
	st.Step = StepReview
	if err := s.states.Save(ctx, slot, st); err != nil {
		return View{}, fmt.Errorf("save checkout: %w", err)
	}
	return s.view(st, store), nil
}

// Back returns to the previous step.
func (s *Service) Back(ctx context.Context, slot string) (View, error) {
	st, store, err := s.load(ctx, slot)
	if err != nil {
		return View{}, err
	}
	st.Step = st.Step.Previous()
	if err := s.states.Save(ctx, slot, st); err != nil {
		return View{}, fmt.Errorf("save checkout: %w", err)
	}
	return s.view(st, store), nil
}

// Complete assembles the cart into an order and places it. The cart is
// cleared only after the order is stored. A non-empty idempotency key that
// was already used yields shared.ErrIdempotencyConflict.
func (s *Service) Complete(ctx context.Context, slot string, userID *uuid.UUID, idemKey string) (orders.Order, error) {
	st, store, err := s.load(ctx, slot)
	if err != nil {
		return orders.Order{}, err
	}
	if st.Step != StepReview {
		return orders.Order{}, ErrWrongStep
	}
	if store.Empty() {
		return orders.Order{}, orders.ErrEmptyCart
	}

	order, err := orders.Assemble(store.Items(), st.Customer, st.Address, s.placer.Now(), s.placer.NextNumber())
	if err != nil {
		return orders.Order{}, err
	}
	order.UserID = userID

	if s.idem != nil && idemKey != "" {
		if err := s.idem.CheckAndInsert(ctx, idemKey, IdempotencyModule); err != nil {
			return orders.Order{}, err
		}
	}

	placed, err := s.placer.Place(ctx, order)
	if err != nil {
		if s.idem != nil && idemKey != "" {
			if derr := s.idem.Delete(ctx, idemKey, IdempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		return orders.Order{}, err
	}

	if err := store.Clear(ctx); err != nil {
		s.logger.Error("clear cart after order", slog.String("order_number", placed.Number), slog.Any("error", err))
	}
	if err := s.states.Delete(ctx, slot); err != nil {
		s.logger.Warn("drop checkout state", slog.Any("error", err))
	}
	return placed, nil
}

func (s *Service) load(ctx context.Context, slot string) (State, *cart.Store, error) {
	st, err := s.states.Load(ctx, slot)
	if err != nil {
		return State{}, nil, fmt.Errorf("load checkout: %w", err)
	}
	store, err := cart.Open(ctx, s.carts, slot)
	if err != nil {
		return State{}, nil, err
	}
	return st, store, nil
}
