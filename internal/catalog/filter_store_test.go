package catalog

import (
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront/internal/platform/httpx"
	"github.com/storefront/storefront/internal/shared"
)

func TestFilterStoreUpdateMergesPatch(t *testing.T) {
	store := NewFilterStore(DefaultFilters())

	search := "mesa"
	got := store.Update(FilterPatch{Search: &search, CategoryID: ptr[int64](3)})
	assert.Equal(t, "mesa", got.Search)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, int64(3), *got.CategoryID)
	assert.Equal(t, SortByName, got.Sort)

	sort := SortByPriceDesc
	got = store.Update(FilterPatch{Sort: &sort})
	assert.Equal(t, "mesa", got.Search, "untouched fields are kept")
	assert.Equal(t, SortByPriceDesc, got.Sort)
	assert.Equal(t, got, store.Current())
}

func TestFilterStoreResetRestoresDefaults(t *testing.T) {
	store := NewFilterStore(FilterOptions{Search: "x", MinPrice: ptr(dec("10")), Sort: SortByPriceAsc})
	store.Reset()
	assert.Equal(t, DefaultFilters(), store.Current())
}

func TestFilterStoreNotifiesSubscribers(t *testing.T) {
	store := NewFilterStore(DefaultFilters())
	var seen []FilterOptions
	unsubscribe := store.Subscribe(func(o FilterOptions) { seen = append(seen, o) })

	search := "lamp"
	store.Update(FilterPatch{Search: &search})
	unsubscribe()
	store.Reset()

	require.Len(t, seen, 2)
	assert.Equal(t, "", seen[0].Search)
	assert.Equal(t, "lamp", seen[1].Search)
}

func TestParseFilterPatchEmptyCategoryClears(t *testing.T) {
	store := NewFilterStore(FilterOptions{CategoryID: ptr[int64](9), Sort: SortByName})

	patch, err := ParseFilterPatch(url.Values{"category_id": {""}})
	require.NoError(t, err)
	assert.True(t, patch.ClearCategory)

	got := store.Update(patch)
	assert.Nil(t, got.CategoryID)
}

func TestParseFilterPatchOnlyTouchesPresentKeys(t *testing.T) {
	patch, err := ParseFilterPatch(url.Values{"min_price": {"10.5"}})
	require.NoError(t, err)
	require.NotNil(t, patch.MinPrice)
	assert.True(t, patch.MinPrice.Equal(dec("10.5")))
	assert.Nil(t, patch.Search)
	assert.Nil(t, patch.Sort)

	empty, err := ParseFilterPatch(url.Values{})
	require.NoError(t, err)
	assert.True(t, empty.Empty())
}

func TestParseFilterPatchRejectsBadValues(t *testing.T) {
	_, err := ParseFilterPatch(url.Values{
		"category_id": {"abc"},
		"max_price":   {"cheap"},
		"sort":        {"random"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, httpx.ErrValidation))

	var fields httpx.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Contains(t, fields, "category_id")
	assert.Contains(t, fields, "max_price")
	assert.Contains(t, fields, "sort")
}

func TestSessionFilterStorePersistsChanges(t *testing.T) {
	sess := &shared.Session{ID: "s1"}
	store := SessionFilterStore(sess)
	assert.Empty(t, sess.Get(FiltersSessionKey), "seeding does not write")

	search := "roble"
	store.Update(FilterPatch{Search: &search})

	var stored FilterOptions
	require.NoError(t, json.Unmarshal([]byte(sess.Get(FiltersSessionKey)), &stored))
	assert.Equal(t, "roble", stored.Search)

	reloaded := SessionFilterStore(sess)
	assert.Equal(t, "roble", reloaded.Current().Search)
}
