package catalog

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey selects the ordering applied by Filter.
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByPriceAsc  SortKey = "price-asc"
	SortByPriceDesc SortKey = "price-desc"
)

// Valid reports whether k is a known sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortByName, SortByPriceAsc, SortByPriceDesc:
		return true
	}
	return false
}

// FilterOptions describes a catalog query.
type FilterOptions struct {
	Search     string           `json:"search"`
	CategoryID *int64           `json:"category_id"`
	MinPrice   *decimal.Decimal `json:"min_price"`
	MaxPrice   *decimal.Decimal `json:"max_price"`
	Sort       SortKey          `json:"sort"`
}

// DefaultFilters returns the empty query sorted by name.
func DefaultFilters() FilterOptions {
	return FilterOptions{Sort: SortByName}
}

// Collation used for name ordering and search folding.
var Collation = language.Und

// Filter returns a new slice holding the products that match opts, in the
// order opts.Sort selects. The input slice is never modified.
//
// Steps run in order: search over name or description, category, minimum
// price, maximum price, then a stable sort.
func Filter(products []Product, opts FilterOptions) []Product {
	out := make([]Product, 0, len(products))
	fold := cases.Fold()
	term := ""
	if opts.Search != "" {
		term = fold.String(opts.Search)
	}
	for _, p := range products {
		if term != "" &&
			!strings.Contains(fold.String(p.Name), term) &&
			!strings.Contains(fold.String(p.Description), term) {
			continue
		}
		if opts.CategoryID != nil && !p.InCategory(*opts.CategoryID) {
			continue
		}
		if opts.MinPrice != nil && p.Price.LessThan(*opts.MinPrice) {
			continue
		}
		if opts.MaxPrice != nil && p.Price.GreaterThan(*opts.MaxPrice) {
			continue
		}
		out = append(out, p)
	}

	switch opts.Sort {
	case SortByName:
		col := collate.New(Collation)
		slices.SortStableFunc(out, func(a, b Product) int {
			return col.CompareString(a.Name, b.Name)
		})
	case SortByPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int {
			return a.Price.Cmp(b.Price)
		})
	case SortByPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int {
			return b.Price.Cmp(a.Price)
		})
	}
	return out
}

// SameName reports whether two names are equal ignoring case and surrounding space.
func SameName(a, b string) bool {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}
