package pricelist

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
)

type mockRepo struct {
	lists   map[string]*PriceList
	entries map[[2]string]decimal.Decimal
	// takenSKUs makes Create fail with ErrSKUTaken this many times.
	takenSKUs int
	skus      []string
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		lists:   make(map[string]*PriceList),
		entries: make(map[[2]string]decimal.Decimal),
	}
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*PriceList, error) {
	pl, ok := m.lists[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *pl
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, pl *PriceList) error {
	m.skus = append(m.skus, pl.SKU)
	if m.takenSKUs > 0 {
		m.takenSKUs--
		return ErrSKUTaken
	}
	cp := *pl
	m.lists[pl.ID] = &cp
	return nil
}

func (m *mockRepo) Update(_ context.Context, pl *PriceList) error {
	if _, ok := m.lists[pl.ID]; !ok {
		return ErrNotFound
	}
	cp := *pl
	m.lists[pl.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.lists[id]; !ok {
		return ErrNotFound
	}
	delete(m.lists, id)
	for k := range m.entries {
		if k[0] == id {
			delete(m.entries, k)
		}
	}
	return nil
}

func (m *mockRepo) GetEntry(_ context.Context, listID, productID string) (*Entry, error) {
	price, ok := m.entries[[2]string{listID, productID}]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &Entry{PriceListID: listID, ProductID: productID, Price: price}, nil
}

func (m *mockRepo) GetActiveEntry(ctx context.Context, listID, productID string) (*Entry, error) {
	if pl, ok := m.lists[listID]; !ok || !pl.Active {
		return nil, ErrEntryNotFound
	}
	return m.GetEntry(ctx, listID, productID)
}

func (m *mockRepo) CreateEntry(_ context.Context, e Entry) error {
	m.entries[[2]string{e.PriceListID, e.ProductID}] = e.Price
	return nil
}

func (m *mockRepo) UpdateEntry(_ context.Context, e Entry) error {
	m.entries[[2]string{e.PriceListID, e.ProductID}] = e.Price
	return nil
}

func (m *mockRepo) DeleteEntry(_ context.Context, listID, productID string) error {
	delete(m.entries, [2]string{listID, productID})
	return nil
}

type mockProducts struct {
	byID map[string]*product.Product
}

func (m *mockProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProducts) GetByIDs(_ context.Context, _ []string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProducts) Upsert(_ context.Context, _ *product.Product) error { return nil }

type mockUsers struct {
	byID map[string]*user.User
}

func (m *mockUsers) GetByID(_ context.Context, id string) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUsers) SetPriceList(_ context.Context, userID, listID string) error {
	m.byID[userID].PriceListID = listID
	return nil
}

func (m *mockUsers) Upsert(_ context.Context, _ *user.User) error { return nil }

type fixture struct {
	svc   *Service
	repo  *mockRepo
	users *mockUsers
}

func newFixture() fixture {
	repo := newMockRepo()
	repo.lists["active"] = &PriceList{ID: "active", Name: "VIP", Active: true}
	repo.lists["inactive"] = &PriceList{ID: "inactive", Name: "Old"}

	products := &mockProducts{byID: map[string]*product.Product{
		"widget": {ID: "widget", Price: decimal.NewFromInt(100), Published: true},
		"hidden": {ID: "hidden", Price: decimal.NewFromInt(50)},
	}}
	users := &mockUsers{byID: map[string]*user.User{
		"u1": {ID: "u1"},
	}}

	svc := NewService(repo, products, users)
	svc.now = func() time.Time { return time.Date(2024, 3, 25, 7, 17, 0, 0, time.UTC) }
	return fixture{svc: svc, repo: repo, users: users}
}

var skuPattern = regexp.MustCompile(`^PL-20240325071700-\d{4}$`)

func TestService_Create(t *testing.T) {
	f := newFixture()

	pl, err := f.svc.Create(context.Background(), CreateRequest{Name: "Wholesale", Active: true})
	require.NoError(t, err)

	assert.NotEmpty(t, pl.ID)
	assert.Regexp(t, skuPattern, pl.SKU)
	assert.True(t, pl.Active)

	got, err := f.svc.Get(context.Background(), pl.ID)
	require.NoError(t, err)
	assert.Equal(t, pl.SKU, got.SKU)
}

func TestService_EntryLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.AssignProduct(ctx, "active", "widget", decimal.NewFromInt(90)))

	err := f.svc.AssignProduct(ctx, "active", "widget", decimal.NewFromInt(80))
	require.ErrorIs(t, err, ErrEntryExists)

	require.NoError(t, f.svc.UpdateProductPrice(ctx, "active", "widget", decimal.NewFromInt(85)))
	assert.True(t, decimal.NewFromInt(85).Equal(f.repo.entries[[2]string{"active", "widget"}]))

	require.NoError(t, f.svc.RemoveProduct(ctx, "active", "widget"))
	assert.Empty(t, f.repo.entries)

	err = f.svc.RemoveProduct(ctx, "active", "widget")
	require.ErrorIs(t, err, ErrEntryNotFound)

	err = f.svc.UpdateProductPrice(ctx, "active", "widget", decimal.NewFromInt(85))
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestService_AssignProductValidation(t *testing.T) {
	tests := []struct {
		name      string
		listID    string
		productID string
		price     decimal.Decimal
		wantErr   error
	}{
		{name: "unknown list", listID: "ghost", productID: "widget", price: decimal.NewFromInt(1), wantErr: ErrNotFound},
		{name: "inactive list", listID: "inactive", productID: "widget", price: decimal.NewFromInt(1), wantErr: ErrInactive},
		{name: "unknown product", listID: "active", productID: "ghost", price: decimal.NewFromInt(1), wantErr: product.ErrNotFound},
		{name: "unpublished product", listID: "active", productID: "hidden", price: decimal.NewFromInt(1), wantErr: product.ErrNotPublished},
		{name: "negative price", listID: "active", productID: "widget", price: decimal.NewFromInt(-1), wantErr: ErrNegativePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			err := f.svc.AssignProduct(context.Background(), tt.listID, tt.productID, tt.price)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.repo.entries)
		})
	}
}

func TestService_UserAssignment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	require.NoError(t, f.svc.AssignUser(ctx, "active", "u1"))
	assert.Equal(t, "active", f.users.byID["u1"].PriceListID)

	err := f.svc.AssignUser(ctx, "inactive", "u1")
	require.ErrorIs(t, err, ErrInactive)
	assert.Equal(t, "active", f.users.byID["u1"].PriceListID)

	err = f.svc.AssignUser(ctx, "active", "ghost")
	require.ErrorIs(t, err, user.ErrNotFound)

	require.NoError(t, f.svc.UnassignUser(ctx, "u1"))
	assert.Empty(t, f.users.byID["u1"].PriceListID)
}

func TestService_CreateRetriesTakenSKU(t *testing.T) {
	tests := []struct {
		name     string
		taken    int
		wantErr  error
		attempts int
	}{
		{name: "first collides", taken: 1, attempts: 2},
		{name: "two collide", taken: 2, attempts: 3},
		{name: "exhausted", taken: 3, wantErr: ErrSKUTaken, attempts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.repo.takenSKUs = tt.taken

			pl, err := f.svc.Create(context.Background(), CreateRequest{Name: "Wholesale"})
			assert.Len(t, f.repo.skus, tt.attempts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, f.repo.skus[len(f.repo.skus)-1], pl.SKU)
		})
	}
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	pl, err := f.svc.Update(ctx, "active", UpdateRequest{Name: "VIP 2", Description: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "VIP 2", pl.Name)
	assert.False(t, pl.Active)

	stored := f.repo.lists["active"]
	assert.Equal(t, "renamed", stored.Description)
	assert.False(t, stored.Active)

	err = f.svc.AssignProduct(ctx, "active", "widget", decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInactive)

	pl, err = f.svc.Update(ctx, "inactive", UpdateRequest{Name: "Old", Active: true})
	require.NoError(t, err)
	assert.True(t, pl.Active)

	_, err = f.svc.Update(ctx, "ghost", UpdateRequest{Name: "x"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.svc.AssignProduct(ctx, "active", "widget", decimal.NewFromInt(90)))

	require.NoError(t, f.svc.Delete(ctx, "active"))
	assert.NotContains(t, f.repo.lists, "active")
	assert.Empty(t, f.repo.entries)

	_, err := f.svc.Get(ctx, "active")
	require.ErrorIs(t, err, ErrNotFound)

	err = f.svc.Delete(ctx, "active")
	require.ErrorIs(t, err, ErrNotFound)
}
