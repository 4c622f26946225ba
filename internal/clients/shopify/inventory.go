package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"catalog-sync-service/internal/clients"
)

// ListLocations returns the store's stock locations.
func (c *Client) ListLocations(ctx context.Context) ([]clients.Location, error) {
	body, _, err := c.doREST(ctx, "locations.list", http.MethodGet, "/locations.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Locations []clients.Location `json:"locations"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse locations response: %w", err)
	}
	return response.Locations, nil
}

// GetInventoryLevels returns the levels of the given inventory items across all locations.
func (c *Client) GetInventoryLevels(ctx context.Context, inventoryItemIDs []int64) ([]clients.InventoryLevel, error) {
	if len(inventoryItemIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(inventoryItemIDs))
	for i, id := range inventoryItemIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("inventory_item_ids", strings.Join(ids, ","))
	params.Set("limit", strconv.Itoa(maxPageSize))

	body, _, err := c.doREST(ctx, "inventory_levels.list", http.MethodGet, "/inventory_levels.json", params, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		InventoryLevels []clients.InventoryLevel `json:"inventory_levels"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse inventory levels response: %w", err)
	}
	return response.InventoryLevels, nil
}

// SetInventoryLevel sets the absolute available quantity of an item at a location.
func (c *Client) SetInventoryLevel(ctx context.Context, input clients.SetInventoryInput) (*clients.InventoryLevel, error) {
	body, _, err := c.doREST(ctx, "inventory_levels.set", http.MethodPost, "/inventory_levels/set.json", nil, input)
	if err != nil {
		return nil, err
	}

	var response struct {
		InventoryLevel clients.InventoryLevel `json:"inventory_level"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse inventory level response: %w", err)
	}
	return &response.InventoryLevel, nil
}
