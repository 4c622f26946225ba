package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
)

func levelsAt(location int64, qty map[int64]int) []clients.InventoryLevel {
	out := make([]clients.InventoryLevel, 0, len(qty))
	for item, q := range qty {
		out = append(out, clients.InventoryLevel{InventoryItemID: item, LocationID: location, Available: q})
	}
	return out
}

func TestCreateVariantProduct(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()

	var sent *clients.ProductPayload
	h.client.On("CreateProduct", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*clients.ProductPayload) }).
		Return(tshirt(), nil).Once()
	h.client.On("SetInventoryLevel", mock.Anything, clients.SetInventoryInput{InventoryItemID: 3001, LocationID: 900, Available: 5}).
		Return(&clients.InventoryLevel{}, nil).Once()
	h.client.On("SetInventoryLevel", mock.Anything, clients.SetInventoryInput{InventoryItemID: 3002, LocationID: 900, Available: 3}).
		Return(&clients.InventoryLevel{}, nil).Once()
	h.client.On("GetProduct", mock.Anything, int64(1001)).Return(tshirt(), nil)
	h.client.On("GetInventoryLevels", mock.Anything, []int64{3001, 3002}).
		Return(levelsAt(900, map[int64]int{3001: 5, 3002: 3}), nil)

	result, err := h.writer.Create(ctx, &ProductInput{
		Title:      "T-Shirt",
		LocationID: 900,
		Variants: []VariantInput{
			{Option1: "Red", Price: floatPtr(10), SKU: "A", Quantity: intPtr(5)},
			{Option1: "Blue", Price: floatPtr(12), SKU: "B", Quantity: intPtr(3)},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, "T-Shirt", sent.Title)
	assert.Equal(t, []clients.OptionPayload{{Name: "Opción 1", Values: []string{"Red", "Blue"}}}, sent.Options)
	require.Len(t, sent.Variants, 2)
	assert.Equal(t, "10.00", sent.Variants[0].Price)
	assert.Equal(t, "12.00", sent.Variants[1].Price)
	h.client.AssertNumberOfCalls(t, "CreateProduct", 1)
	h.client.AssertNumberOfCalls(t, "SetInventoryLevel", 2)

	assert.False(t, result.Partial())
	require.Len(t, result.Inventory, 2)
	assert.True(t, result.Inventory[0].OK)
	require.NotNil(t, result.Mirror)
	assert.Len(t, result.Mirror.Variants, 2)

	var products, variants int64
	require.NoError(t, h.db.Model(&models.LocalProduct{}).Count(&products).Error)
	require.NoError(t, h.db.Model(&models.LocalVariant{}).Count(&variants).Error)
	assert.Equal(t, int64(1), products)
	assert.Equal(t, int64(2), variants)
}

func TestUpdateResolvesVariantBySKUAndKeepsOptionName(t *testing.T) {
	h := newHarness(t, 900)
	ctx := context.Background()

	updated := tshirt()
	updated.Options[0].Values = []string{"Red"}
	updated.Variants = updated.Variants[:1]
	updated.Variants[0].Price = 15

	var sent *clients.ProductPayload
	h.client.On("GetProduct", mock.Anything, int64(1001)).Return(tshirt(), nil).Once()
	h.client.On("UpdateProduct", mock.Anything, int64(1001), mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(*clients.ProductPayload) }).
		Return(updated, nil).Once()
	h.client.On("GetProduct", mock.Anything, int64(1001)).Return(updated, nil)
	h.client.On("GetInventoryLevels", mock.Anything, []int64{3001}).
		Return(levelsAt(900, map[int64]int{3001: 5}), nil)

	result, err := h.writer.Update(ctx, 1001, &ProductInput{
		OptionNames: []string{},
		Variants:    []VariantInput{{SKU: "A", Price: floatPtr(15)}},
	})
	require.NoError(t, err)

	require.NotNil(t, sent)
	require.Len(t, sent.Variants, 1)
	assert.Equal(t, int64(2001), sent.Variants[0].ID)
	assert.Equal(t, "Red", sent.Variants[0].Option1)
	assert.Equal(t, "15.00", sent.Variants[0].Price)
	require.Len(t, sent.Options, 1)
	assert.Equal(t, "Opción 1", sent.Options[0].Name)

	h.client.AssertNotCalled(t, "SetInventoryLevel", mock.Anything, mock.Anything)
	require.NotNil(t, result.Mirror)
	require.Len(t, result.Mirror.Variants, 1)
	assert.InDelta(t, 15.0, result.Mirror.Variants[0].Price, 0.001)
}

func TestUpdateAppliesInventoryByResolvedVariant(t *testing.T) {
	h := newHarness(t, 900)
	ctx := context.Background()

	// Remote returns variants in a different order than submitted.
	reordered := tshirt()
	reordered.Variants[0], reordered.Variants[1] = reordered.Variants[1], reordered.Variants[0]

	h.client.On("GetProduct", mock.Anything, int64(1001)).Return(tshirt(), nil).Once()
	h.client.On("UpdateProduct", mock.Anything, int64(1001), mock.Anything).Return(reordered, nil).Once()
	h.client.On("SetInventoryLevel", mock.Anything, clients.SetInventoryInput{InventoryItemID: 3001, LocationID: 900, Available: 7}).
		Return(&clients.InventoryLevel{}, nil).Once()
	h.client.On("GetProduct", mock.Anything, int64(1001)).Return(reordered, nil)
	h.client.On("GetInventoryLevels", mock.Anything, mock.Anything).Return([]clients.InventoryLevel{}, nil)

	result, err := h.writer.Update(ctx, 1001, &ProductInput{
		Variants: []VariantInput{
			{SKU: "A", Quantity: intPtr(7)},
			{SKU: "B"},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Inventory, 1)
	assert.Equal(t, int64(2001), result.Inventory[0].VariantID)
	h.client.AssertExpectations(t)
}

func TestCreateRejectsInvalidInputBeforeRemote(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.writer.Create(context.Background(), &ProductInput{Title: "Mug"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	h.client.AssertNotCalled(t, "CreateProduct", mock.Anything, mock.Anything)
}

func TestCreateSimpleProductFallsBackToFirstActiveLocation(t *testing.T) {
	h := newHarness(t, 0)
	mug := &clients.Product{ID: 55, Title: "Mug", Variants: []clients.Variant{{ID: 56, InventoryItemID: 57, Price: 4.5}}}

	var sent *clients.ProductPayload
	h.client.On("CreateProduct", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(*clients.ProductPayload) }).
		Return(mug, nil)
	h.client.On("ListLocations", mock.Anything).
		Return([]clients.Location{{ID: 1, Active: false}, {ID: 2, Active: true}}, nil)
	h.client.On("SetInventoryLevel", mock.Anything, clients.SetInventoryInput{InventoryItemID: 57, LocationID: 2, Available: 9}).
		Return(&clients.InventoryLevel{}, nil)
	h.client.On("GetProduct", mock.Anything, int64(55)).Return(mug, nil)
	h.client.On("GetInventoryLevels", mock.Anything, []int64{57}).Return(levelsAt(2, map[int64]int{57: 9}), nil)

	result, err := h.writer.Create(context.Background(), &ProductInput{Title: "Mug", Price: floatPtr(4.5), Quantity: intPtr(9), SKU: "MUG"})
	require.NoError(t, err)

	assert.Empty(t, sent.Options)
	require.Len(t, sent.Variants, 1)
	assert.Equal(t, "4.50", sent.Variants[0].Price)
	assert.Equal(t, "MUG", sent.Variants[0].SKU)
	require.Len(t, result.Inventory, 1)
	assert.Equal(t, int64(2), result.Inventory[0].LocationID)
	require.NotNil(t, result.Mirror.LocationID)
	assert.Equal(t, 9, result.Mirror.Variants[0].Quantity)
}

func TestCreateReportsReconciliationFailureSeparately(t *testing.T) {
	h := newHarness(t, 900)
	mug := &clients.Product{ID: 55, Title: "Mug", Variants: []clients.Variant{{ID: 56}}}

	h.client.On("CreateProduct", mock.Anything, mock.Anything).Return(mug, nil)
	h.client.On("SetInventoryLevel", mock.Anything, mock.Anything).Return(&clients.InventoryLevel{}, nil)
	h.client.On("GetProduct", mock.Anything, int64(55)).
		Return(nil, &clients.RemoteHTTPError{Method: "GET", Path: "/products/55.json", StatusCode: 502, Body: "bad gateway"})

	result, err := h.writer.Create(context.Background(), &ProductInput{Title: "Mug", Price: floatPtr(1), Quantity: intPtr(0)})
	require.NoError(t, err)

	assert.Equal(t, int64(55), result.Product.ID)
	assert.NotEmpty(t, result.SyncError)
	var rerr *ReconciliationError
	assert.ErrorAs(t, result.ReconciliationErr(), &rerr)
	assert.True(t, result.Partial())
}

func TestUpdateSimplePriceRejectedForMultiVariantProduct(t *testing.T) {
	h := newHarness(t, 0)
	h.client.On("GetProduct", mock.Anything, int64(1001)).Return(tshirt(), nil)

	_, err := h.writer.Update(context.Background(), 1001, &ProductInput{Price: floatPtr(3)})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	h.client.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateRejectsNewVariantWithoutPrice(t *testing.T) {
	h := newHarness(t, 900)
	h.client.On("GetProduct", mock.Anything, int64(1001)).Return(tshirt(), nil)

	_, err := h.writer.Update(context.Background(), 1001, &ProductInput{
		Variants: []VariantInput{
			{SKU: "A"},
			{Option1: "Green", SKU: "C"},
		},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{"variants[1].price": "price is required for a new variant"}, verr.Fields)
	h.client.AssertNotCalled(t, "UpdateProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteKeepsMirrorWhenRemoteFails(t *testing.T) {
	h := newHarness(t, 0)
	ctx := context.Background()
	_, err := h.products.ReplaceProduct(ctx, &models.LocalProduct{ShopifyProductID: 1001, Title: "T-Shirt"}, nil)
	require.NoError(t, err)

	h.client.On("DeleteProduct", mock.Anything, int64(1001)).
		Return(&clients.RemoteHTTPError{Method: "DELETE", StatusCode: 500, Body: "boom"}).Once()

	err = h.writer.Delete(ctx, 1001)
	require.Error(t, err)

	_, err = h.products.GetByShopifyID(ctx, 1001)
	require.NoError(t, err, "mirror must survive a failed remote delete")

	h.client.On("DeleteProduct", mock.Anything, int64(1001)).Return(nil)
	require.NoError(t, h.writer.Delete(ctx, 1001))

	_, err = h.products.GetByShopifyID(ctx, 1001)
	assert.True(t, errors.Is(notFoundErr(err), ErrNotFound))
}
