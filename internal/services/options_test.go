package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-sync-service/internal/clients"
)

func TestDeriveOptionValues(t *testing.T) {
	variants := []VariantInput{
		{Option1: "Red", Option2: "S"},
		{Option1: "Blue", Option2: "S"},
		{Option1: "Red", Option2: "M"},
		{Option1: " Blue "},
	}

	values := DeriveOptionValues(variants)

	require.Len(t, values, 2)
	assert.Equal(t, []string{"Red", "Blue"}, values[0])
	assert.Equal(t, []string{"S", "M"}, values[1])
}

func TestDeriveOptionValuesKeepsSlotPositions(t *testing.T) {
	values := DeriveOptionValues([]VariantInput{{Option3: "Cotton"}})

	require.Len(t, values, 3)
	assert.Empty(t, values[0])
	assert.Empty(t, values[1])
	assert.Equal(t, []string{"Cotton"}, values[2])
}

func TestDeriveOptionValuesEmpty(t *testing.T) {
	assert.Empty(t, DeriveOptionValues([]VariantInput{{SKU: "A"}}))
}

func TestResolveOptionNames(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		requested []string
		remote    []string
		want      []string
	}{
		{"defaults", 2, nil, nil, []string{"Opción 1", "Opción 2"}},
		{"caller wins", 2, []string{"Color", ""}, []string{"Colour", "Size"}, []string{"Color", "Size"}},
		{"remote fallback", 1, []string{" "}, []string{"Colour"}, []string{"Colour"}},
		{"placeholder remote name ignored", 1, nil, []string{"Title"}, []string{"Opción 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveOptionNames(tt.count, tt.requested, tt.remote))
		})
	}
}

func TestResolveVariantMatchesSKUBeforeOptions(t *testing.T) {
	existing := []clients.Variant{
		{ID: 1, SKU: "A", Option1: "Red"},
		{ID: 2, SKU: "B", Option1: "Blue"},
	}

	got := ResolveVariant(existing, "A", [3]string{"Blue"})
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	assert.Nil(t, ResolveVariant(existing, "Z", [3]string{"Red"}))
}

func TestResolveVariantEmptySKUUsesExactTuple(t *testing.T) {
	existing := []clients.Variant{
		{ID: 1, Option1: "Red", Option2: "S"},
		{ID: 2, Option1: "Red", Option2: "M"},
	}

	got := ResolveVariant(existing, "", [3]string{"Red", "M"})
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)

	assert.Nil(t, ResolveVariant(existing, "", [3]string{"Red"}))
}

func TestResolveVariantDuplicateSKUFirstWins(t *testing.T) {
	existing := []clients.Variant{{ID: 1, SKU: "A"}, {ID: 2, SKU: "A"}}

	got := ResolveVariant(existing, "A", [3]string{})
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestValidateCreateShapes(t *testing.T) {
	err := ValidateCreate(&ProductInput{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "price")
	assert.Contains(t, verr.Fields, "quantity")

	err = ValidateCreate(&ProductInput{
		Title:    "Mug",
		Price:    floatPtr(5),
		Variants: []VariantInput{{Option1: "Red", Price: floatPtr(5)}},
	})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "price")

	err = ValidateCreate(&ProductInput{Title: "Mug", Status: "live", Price: floatPtr(5), Quantity: intPtr(1)})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "status")

	assert.NoError(t, ValidateCreate(&ProductInput{Title: "Mug", Price: floatPtr(5), Quantity: intPtr(0)}))
}

func TestProductInputLocationIDForms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int64
	}{
		{"number", `{"title":"Mug","location_id":123}`, 123},
		{"string", `{"title":"Mug","location_id":"123"}`, 123},
		{"padded string", `{"title":"Mug","location_id":" 77 "}`, 77},
		{"empty string", `{"title":"Mug","location_id":""}`, 0},
		{"null", `{"title":"Mug","location_id":null}`, 0},
		{"absent", `{"title":"Mug"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in ProductInput
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))
			assert.Equal(t, "Mug", in.Title)
			assert.Equal(t, tt.want, in.LocationID)
		})
	}

	var in ProductInput
	err := json.Unmarshal([]byte(`{"location_id":"main"}`), &in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "location_id")
}
