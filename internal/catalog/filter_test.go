package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixtureProducts() []Product {
	return []Product{
		{ID: 1, Name: "Zapato", Description: "Cuero negro", Price: dec("80"), CategoryID: ptr[int64](2), Stock: 4},
		{ID: 2, Name: "Mesa", Description: "Mesa de roble", Price: dec("250"), CategoryID: ptr[int64](1), Stock: 2},
		{ID: 3, Name: "árbol", Description: "Bonsai decorativo", Price: dec("45.50"), CategoryID: ptr[int64](3), Stock: 10},
		{ID: 4, Name: "Lámpara", Description: "Luz cálida para MESA", Price: dec("45.50"), CategoryID: ptr[int64](1), Stock: 0},
		{ID: 5, Name: "Mesa", Description: "Plegable", Price: dec("120"), Stock: 7},
	}
}

func ids(products []Product) []int64 {
	out := make([]int64, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func TestFilterSortsByCollatedName(t *testing.T) {
	got := Filter(fixtureProducts(), DefaultFilters())
	names := make([]string, len(got))
	for i, p := range got {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"árbol", "Lámpara", "Mesa", "Mesa", "Zapato"}, names)
	// equal names keep input order
	assert.Equal(t, []int64{3, 4, 2, 5, 1}, ids(got))
}

func TestFilterSearchMatchesNameOrDescriptionIgnoringCase(t *testing.T) {
	got := Filter(fixtureProducts(), FilterOptions{Search: "mesa", Sort: SortByName})
	assert.ElementsMatch(t, []int64{2, 4, 5}, ids(got))

	got = Filter(fixtureProducts(), FilterOptions{Search: "ROBLE", Sort: SortByName})
	assert.Equal(t, []int64{2}, ids(got))

	got = Filter(fixtureProducts(), FilterOptions{Search: "nothing-like-this"})
	assert.Empty(t, got)
}

func TestFilterByCategory(t *testing.T) {
	got := Filter(fixtureProducts(), FilterOptions{CategoryID: ptr[int64](1), Sort: SortByPriceAsc})
	assert.Equal(t, []int64{4, 2}, ids(got))
}

func TestFilterPriceBoundsAreInclusive(t *testing.T) {
	min := dec("45.50")
	max := dec("120")
	got := Filter(fixtureProducts(), FilterOptions{MinPrice: &min, MaxPrice: &max, Sort: SortByPriceAsc})
	assert.Equal(t, []int64{3, 4, 1, 5}, ids(got))
}

func TestFilterPriceSorts(t *testing.T) {
	asc := Filter(fixtureProducts(), FilterOptions{Sort: SortByPriceAsc})
	assert.Equal(t, []int64{3, 4, 1, 5, 2}, ids(asc))

	desc := Filter(fixtureProducts(), FilterOptions{Sort: SortByPriceDesc})
	assert.Equal(t, []int64{2, 5, 1, 3, 4}, ids(desc))
}

func TestFilterUnknownSortKeepsInputOrder(t *testing.T) {
	got := Filter(fixtureProducts(), FilterOptions{Sort: "popularity"})
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(got))
}

func TestFilterIsIdempotentAndLeavesInputAlone(t *testing.T) {
	input := fixtureProducts()
	opts := FilterOptions{Search: "a", MinPrice: ptr(dec("50")), Sort: SortByPriceDesc}

	once := Filter(input, opts)
	twice := Filter(once, opts)
	require.Equal(t, ids(once), ids(twice))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids(input))
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Electronics", "  electronics "))
	assert.True(t, SameName("ÁRBOL", "árbol"))
	assert.False(t, SameName("Garden", "Gardens"))
}
