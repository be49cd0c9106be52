package catalog

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefront/storefront/internal/platform/cell"
	"github.com/storefront/storefront/internal/platform/httpx"
)

// FilterPatch is a partial update of FilterOptions. Nil fields keep the
// current value; the Clear flags reset an optional field to "unset".
type FilterPatch struct {
	Search        *string
	CategoryID    *int64
	ClearCategory bool
	MinPrice      *decimal.Decimal
	ClearMinPrice bool
	MaxPrice      *decimal.Decimal
	ClearMaxPrice bool
	Sort          *SortKey
}

// Apply merges the patch over cur.
func (p FilterPatch) Apply(cur FilterOptions) FilterOptions {
	next := cur
	if p.Search != nil {
		next.Search = *p.Search
	}
	switch {
	case p.ClearCategory:
		next.CategoryID = nil
	case p.CategoryID != nil:
		id := *p.CategoryID
		next.CategoryID = &id
	}
	switch {
	case p.ClearMinPrice:
		next.MinPrice = nil
	case p.MinPrice != nil:
		v := *p.MinPrice
		next.MinPrice = &v
	}
	switch {
	case p.ClearMaxPrice:
		next.MaxPrice = nil
	case p.MaxPrice != nil:
		v := *p.MaxPrice
		next.MaxPrice = &v
	}
	if p.Sort != nil {
		next.Sort = *p.Sort
	}
	return next
}

// Empty reports whether the patch changes nothing.
func (p FilterPatch) Empty() bool {
	return p.Search == nil && p.CategoryID == nil && !p.ClearCategory &&
		p.MinPrice == nil && !p.ClearMinPrice &&
		p.MaxPrice == nil && !p.ClearMaxPrice && p.Sort == nil
}

// ParseFilterPatch builds a patch from query parameters. Only keys present in
// q take part; an empty value clears optional fields.
func ParseFilterPatch(q url.Values) (FilterPatch, error) {
	var patch FilterPatch
	fields := httpx.FieldErrors{}

	if q.Has("search") {
		s := q.Get("search")
		patch.Search = &s
	}
	if q.Has("category_id") {
		raw := strings.TrimSpace(q.Get("category_id"))
		if raw == "" {
			patch.ClearCategory = true
		} else if id, err := strconv.ParseInt(raw, 10, 64); err != nil {
			fields["category_id"] = "must be a number"
		} else {
			patch.CategoryID = &id
		}
	}
	parsePrice := func(key string, set **decimal.Decimal, clear *bool) {
		if !q.Has(key) {
			return
		}
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			*clear = true
			return
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			fields[key] = "must be a number"
			return
		}
		*set = &v
	}
	parsePrice("min_price", &patch.MinPrice, &patch.ClearMinPrice)
	parsePrice("max_price", &patch.MaxPrice, &patch.ClearMaxPrice)
	if q.Has("sort") {
		key := SortKey(q.Get("sort"))
		if !key.Valid() {
			fields["sort"] = "must be one of: name price-asc price-desc"
		} else {
			patch.Sort = &key
		}
	}

	if len(fields) > 0 {
		return FilterPatch{}, fields
	}
	return patch, nil
}

// FilterStore holds the shopper's current catalog filters.
type FilterStore struct {
	cell *cell.Cell[FilterOptions]
}

// NewFilterStore returns a store seeded with initial.
func NewFilterStore(initial FilterOptions) *FilterStore {
	if !initial.Sort.Valid() {
		initial.Sort = SortByName
	}
	return &FilterStore{cell: cell.New(initial)}
}

// Current returns the active filters.
func (s *FilterStore) Current() FilterOptions {
	return s.cell.Get()
}

// Update merges patch into the current filters and publishes the result.
func (s *FilterStore) Update(patch FilterPatch) FilterOptions {
	return s.cell.Update(patch.Apply)
}

// Reset restores DefaultFilters.
func (s *FilterStore) Reset() {
	s.cell.Set(DefaultFilters())
}

// Subscribe registers fn for filter changes; fn sees the current value first.
func (s *FilterStore) Subscribe(fn func(FilterOptions)) func() {
	return s.cell.Subscribe(fn)
}
