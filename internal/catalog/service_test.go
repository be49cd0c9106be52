package catalog

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront/internal/platform/httpx"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	products       map[int64]Product
	categories     map[int64]Category
	nextProductID  int64
	nextCategoryID int64

	listProductsCalls   int
	deleteCategoryCalls int

	// Error injection
	listError         error
	countError        error
	deleteCategoryErr error
	createError       error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		products:       make(map[int64]Product),
		categories:     make(map[int64]Category),
		nextProductID:  1,
		nextCategoryID: 1,
	}
}

func (m *mockRepository) seedCategory(name string) Category {
	c := Category{ID: m.nextCategoryID, Name: name, CreatedAt: time.Now()}
	m.categories[c.ID] = c
	m.nextCategoryID++
	return c
}

func (m *mockRepository) seedProduct(p Product) Product {
	p.ID = m.nextProductID
	m.products[p.ID] = p
	m.nextProductID++
	return p
}

func (m *mockRepository) ListProducts(ctx context.Context) ([]Product, error) {
	m.listProductsCalls++
	if m.listError != nil {
		return nil, m.listError
	}
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *mockRepository) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	if m.createError != nil {
		return Product{}, m.createError
	}
	return m.seedProduct(Product{
		Name: in.Name, Description: in.Description, Price: in.Price,
		ImageURL: in.ImageURL, CategoryID: in.CategoryID, Stock: in.Stock,
	}), nil
}

func (m *mockRepository) UpdateProduct(ctx context.Context, id int64, in ProductInput) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	p.Name, p.Description, p.Price = in.Name, in.Description, in.Price
	p.ImageURL, p.CategoryID, p.Stock = in.ImageURL, in.CategoryID, in.Stock
	m.products[id] = p
	return p, nil
}

func (m *mockRepository) DeleteProduct(ctx context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockRepository) LowStock(ctx context.Context, threshold int) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if p.Stock < threshold {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, nil
}

func (m *mockRepository) ListCategories(ctx context.Context) ([]Category, error) {
	out := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockRepository) GetCategory(ctx context.Context, id int64) (Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return Category{}, ErrCategoryNotFound
	}
	return c, nil
}

func (m *mockRepository) CreateCategory(ctx context.Context, name string) (Category, error) {
	if m.createError != nil {
		return Category{}, m.createError
	}
	return m.seedCategory(name), nil
}

func (m *mockRepository) UpdateCategory(ctx context.Context, id int64, name string) (Category, error) {
	c, ok := m.categories[id]
	if !ok {
		return Category{}, ErrCategoryNotFound
	}
	c.Name = name
	m.categories[id] = c
	return c, nil
}

func (m *mockRepository) DeleteCategory(ctx context.Context, id int64) error {
	m.deleteCategoryCalls++
	if m.deleteCategoryErr != nil {
		return m.deleteCategoryErr
	}
	if _, ok := m.categories[id]; !ok {
		return ErrCategoryNotFound
	}
	delete(m.categories, id)
	return nil
}

func (m *mockRepository) CountProductsInCategory(ctx context.Context, id int64) (int, error) {
	if m.countError != nil {
		return 0, m.countError
	}
	n := 0
	for _, p := range m.products {
		if p.InCategory(id) {
			n++
		}
	}
	return n, nil
}

func validProductInput() ProductInput {
	return ProductInput{
		Name:        "Desk lamp",
		Description: "Adjustable arm",
		Price:       dec("39.90"),
		ImageURL:    "https://img.example/lamp.png",
		Stock:       12,
	}
}

// ============================================================================
// CATEGORY TESTS
// ============================================================================

func TestDeleteCategoryRejectedWhileReferenced(t *testing.T) {
	repo := newMockRepository()
	c := repo.seedCategory("Lighting")
	repo.seedProduct(Product{Name: "Lamp", Price: dec("10"), CategoryID: ptr(c.ID)})
	svc := NewService(repo, nil, nil)

	err := svc.DeleteCategory(context.Background(), c.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCategoryInUse))
	assert.True(t, errors.Is(err, httpx.ErrConflict))
	assert.Equal(t, 0, repo.deleteCategoryCalls, "no delete may be issued")
	assert.Contains(t, repo.categories, c.ID)
}

func TestDeleteCategorySucceedsWhenUnreferenced(t *testing.T) {
	repo := newMockRepository()
	c := repo.seedCategory("Garden")
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.DeleteCategory(context.Background(), c.ID))
	assert.Equal(t, 1, repo.deleteCategoryCalls)
	assert.NotContains(t, repo.categories, c.ID)
}

func TestDeleteCategoryKeepsInUseErrorFromStore(t *testing.T) {
	repo := newMockRepository()
	c := repo.seedCategory("Lighting")
	repo.deleteCategoryErr = deleteCategoryError(&pgconn.PgError{Code: "23503", ConstraintName: productsCategoryFK})
	svc := NewService(repo, nil, nil)

	err := svc.DeleteCategory(context.Background(), c.ID)
	assert.ErrorIs(t, err, ErrCategoryInUse)
	assert.ErrorIs(t, err, httpx.ErrConflict)
}

func TestDeleteCategoryErrorMapping(t *testing.T) {
	other := deleteCategoryError(&pgconn.PgError{Code: "23503", ConstraintName: "audit_logs_entity_fkey"})
	assert.NotErrorIs(t, other, ErrCategoryInUse)
	assert.NotErrorIs(t, deleteCategoryError(errors.New("conn reset")), ErrCategoryInUse)
}

func TestDeleteCategoryCountFailureIssuesNoDelete(t *testing.T) {
	repo := newMockRepository()
	c := repo.seedCategory("Garden")
	repo.countError = errors.New("connection reset")
	svc := NewService(repo, nil, nil)

	err := svc.DeleteCategory(context.Background(), c.ID)
	require.Error(t, err)
	assert.Equal(t, 0, repo.deleteCategoryCalls)
}

func TestCreateCategoryDuplicateIgnoresCase(t *testing.T) {
	repo := newMockRepository()
	repo.seedCategory("Electronics")
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "  ELECTRONICS "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateCategory))
	assert.Len(t, repo.categories, 1)
}

func TestCreateCategoryRequiresName(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)

	_, err := svc.CreateCategory(context.Background(), CategoryInput{Name: "   "})
	var fields httpx.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "is required", fields["name"])
}

func TestUpdateCategoryMayKeepItsOwnName(t *testing.T) {
	repo := newMockRepository()
	c := repo.seedCategory("Books")
	repo.seedCategory("Music")
	svc := NewService(repo, nil, nil)

	got, err := svc.UpdateCategory(context.Background(), c.ID, CategoryInput{Name: "books"})
	require.NoError(t, err)
	assert.Equal(t, "books", got.Name)

	_, err = svc.UpdateCategory(context.Background(), c.ID, CategoryInput{Name: "MUSIC"})
	assert.True(t, errors.Is(err, ErrDuplicateCategory))
}

// ============================================================================
// PRODUCT TESTS
// ============================================================================

func TestCreateProductValidation(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)

	in := validProductInput()
	in.Name = ""
	in.Price = dec("0")
	in.Stock = -1
	in.CategoryID = ptr[int64](99)

	_, err := svc.CreateProduct(context.Background(), in)
	var fields httpx.FieldErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be greater than 0", fields["price"])
	assert.Equal(t, "must be at least 0", fields["stock"])
	assert.Equal(t, "does not exist", fields["category_id"])
	assert.Empty(t, repo.products, "nothing is written on validation failure")
}

func TestCreateProductRejectsValuesTheColumnsCannotHold(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, nil, nil)

	cases := []struct {
		name  string
		edit  func(*ProductInput)
		field string
		msg   string
	}{
		{"sub-cent price", func(in *ProductInput) { in.Price = dec("0.001") }, "price", "must have at most 2 decimal places"},
		{"three decimals", func(in *ProductInput) { in.Price = dec("19.999") }, "price", "must have at most 2 decimal places"},
		{"price overflow", func(in *ProductInput) { in.Price = dec("10000000000") }, "price", "must be at most 9999999999.99"},
		{"stock overflow", func(in *ProductInput) { in.Stock = 2147483648 }, "stock", "must be at most 2147483647"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validProductInput()
			tc.edit(&in)
			_, err := svc.CreateProduct(context.Background(), in)
			var fields httpx.FieldErrors
			require.True(t, errors.As(err, &fields))
			assert.Equal(t, tc.msg, fields[tc.field])
		})
	}
	assert.Empty(t, repo.products)

	in := validProductInput()
	in.Price = dec("19.90")
	_, err := svc.CreateProduct(context.Background(), in)
	assert.NoError(t, err, "trailing zeros are fine")
}

func TestCreateProductPersists(t *testing.T) {
	repo := newMockRepository()
	c := repo.seedCategory("Lighting")
	svc := NewService(repo, nil, nil)

	in := validProductInput()
	in.CategoryID = ptr(c.ID)
	p, err := svc.CreateProduct(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.True(t, p.InCategory(c.ID))
}

func TestUpdateAndDeleteUnknownProduct(t *testing.T) {
	svc := NewService(newMockRepository(), nil, nil)

	_, err := svc.UpdateProduct(context.Background(), 42, validProductInput())
	assert.True(t, errors.Is(err, httpx.ErrNotFound))

	err = svc.DeleteProduct(context.Background(), 42)
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

func TestProductsAppliesFilters(t *testing.T) {
	repo := newMockRepository()
	for _, p := range fixtureProducts() {
		repo.seedProduct(p)
	}
	svc := NewService(repo, nil, nil)

	got, err := svc.Products(context.Background(), FilterOptions{Search: "mesa", Sort: SortByPriceAsc})
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 2}, ids(got))
}

func TestProductsPropagatesLoadFailure(t *testing.T) {
	repo := newMockRepository()
	repo.listError = errors.New("db down")
	svc := NewService(repo, nil, nil)

	_, err := svc.Products(context.Background(), DefaultFilters())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestLowStockDefaultsThreshold(t *testing.T) {
	repo := newMockRepository()
	repo.seedProduct(Product{Name: "a", Stock: 4})
	repo.seedProduct(Product{Name: "b", Stock: 5})
	repo.seedProduct(Product{Name: "c", Stock: 0})
	svc := NewService(repo, nil, nil)

	got, err := svc.LowStock(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Name)
	assert.Equal(t, "a", got[1].Name)
}
