package orders

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/storefront/internal/cart"
	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/pricing"
	"github.com/storefront/storefront/internal/shared"
)

// NumberGenerator produces order numbers of the form ORD-<unix-ms>-<0..999>.
type NumberGenerator struct {
	mu   sync.Mutex
	now  func() time.Time
	rand func(n int) int
}

// NewNumberGenerator returns a generator using the wall clock.
func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{now: time.Now, rand: rand.Intn}
}

// Next returns a fresh order number.
func (g *NumberGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("ORD-%d-%d", g.now().UnixMilli(), g.rand(1000))
}

var validate = shared.NewValidator()

// NormalizeCustomer trims every field.
func NormalizeCustomer(c Customer) Customer {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	return c
}

// NormalizeAddress trims every field and upper-cases the country code.
func NormalizeAddress(a ShippingAddress) ShippingAddress {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	return a
}

// ValidateCustomer returns field errors for c.
func ValidateCustomer(c Customer) error {
	return shared.ValidateStruct(validate, NormalizeCustomer(c))
}

// ValidateAddress returns field errors for a.
func ValidateAddress(a ShippingAddress) error {
	return shared.ValidateStruct(validate, NormalizeAddress(a))
}

// Assemble turns cart lines into a pending order. Totals are computed from
// the lines and the destination country.
func Assemble(items []cart.Item, customer Customer, address ShippingAddress, now time.Time, number string) (Order, error) {
	if len(items) == 0 {
		return Order{}, ErrEmptyCart
	}
	customer = NormalizeCustomer(customer)
	address = NormalizeAddress(address)

	fields := httpx.FieldErrors{}
	mergeFields(fields, "customer.", ValidateCustomer(customer))
	mergeFields(fields, "shipping_address.", ValidateAddress(address))
	if len(fields) > 0 {
		return Order{}, fields
	}

	lines := make([]Item, 0, len(items))
	for _, it := range items {
		lines = append(lines, Item{
			ProductID:   it.Product.ID,
			ProductName: it.Product.Name,
			Price:       it.Product.Price,
			Quantity:    it.Quantity,
			ImageURL:    it.Product.ImageURL,
		})
	}

	return Order{
		ID:              uuid.New(),
		Number:          number,
		Customer:        customer,
		ShippingAddress: address,
		Items:           lines,
		Totals:          pricing.Compute(cart.Subtotal(items), address.Country),
		Status:          StatusPending,
		CreatedAt:       now.UTC(),
	}, nil
}

func mergeFields(dst httpx.FieldErrors, prefix string, err error) {
	if err == nil {
		return
	}
	var fe httpx.FieldErrors
	if !errors.As(err, &fe) {
		dst[strings.TrimSuffix(prefix, ".")] = err.Error()
		return
	}
	for k, v := range fe {
		dst[prefix+k] = v
	}
}
