package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

func TestInventoryLevelsJoinsLocationNames(t *testing.T) {
	client := new(mockCatalogClient)
	client.On("GetInventoryLevels", mock.Anything, []int64{3001}).Return([]clients.InventoryLevel{
		{InventoryItemID: 3001, LocationID: 1, Available: 4},
		{InventoryItemID: 3001, LocationID: 2, Available: 0},
	}, nil)
	client.On("ListLocations", mock.Anything).Return([]clients.Location{
		{ID: 1, Name: "Warehouse", Active: true},
		{ID: 2, Name: "Pop-up", Active: false},
	}, nil)

	svc := NewCatalogService(client, nil, nil, quietLogger())
	views, err := svc.InventoryLevels(context.Background(), 3001)
	require.NoError(t, err)

	require.Len(t, views, 2)
	assert.Equal(t, "Warehouse", views[0].LocationName)
	assert.Equal(t, 4, views[0].Available)
	assert.Equal(t, "Pop-up", views[1].LocationName)
}

func TestLocationsReturnsActiveOnly(t *testing.T) {
	client := new(mockCatalogClient)
	client.On("ListLocations", mock.Anything).Return([]clients.Location{
		{ID: 1, Name: "Warehouse", Active: true},
		{ID: 2, Name: "Closed", Active: false},
	}, nil)

	locations, err := NewCatalogService(client, nil, nil, quietLogger()).Locations(context.Background())
	require.NoError(t, err)
	require.Len(t, locations, 1)
	assert.Equal(t, int64(1), locations[0].ID)
}

func TestFindByHandle(t *testing.T) {
	client := new(mockCatalogClient)
	client.On("ListProducts", mock.Anything, &clients.ListOptions{Handle: "t-shirt", Limit: 1}).
		Return(&clients.ProductsResult{Products: []clients.Product{*tshirt()}}, nil)
	client.On("ListProducts", mock.Anything, &clients.ListOptions{Handle: "missing", Limit: 1}).
		Return(&clients.ProductsResult{}, nil)
	svc := NewCatalogService(client, nil, nil, quietLogger())

	p, err := svc.FindByHandle(context.Background(), " t-shirt ")
	require.NoError(t, err)
	assert.Equal(t, int64(1001), p.ID)

	_, err = svc.FindByHandle(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.FindByHandle(context.Background(), "")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestGetMirrorFallsBackToLocalID(t *testing.T) {
	db := openTestDB(t)
	products := repository.NewProductRepository(db)
	ctx := context.Background()
	res, err := products.ReplaceProduct(ctx, &models.LocalProduct{ShopifyProductID: 1001, Title: "T-Shirt"}, nil)
	require.NoError(t, err)

	svc := NewCatalogService(new(mockCatalogClient), products, nil, quietLogger())

	byRemote, err := svc.GetMirror(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, "T-Shirt", byRemote.Title)

	byLocal, err := svc.GetMirror(ctx, res.Product.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), byLocal.ShopifyProductID)

	_, err = svc.GetMirror(ctx, 424242)
	assert.ErrorIs(t, err, ErrNotFound)
}
