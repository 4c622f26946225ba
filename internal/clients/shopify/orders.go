package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"catalog-sync-service/internal/clients"
)

// ListOrders fetches one page of orders in any status, passed through untouched.
func (c *Client) ListOrders(ctx context.Context, opts *clients.ListOptions) (*clients.OrdersResult, error) {
	params := pageParams(opts, 50)
	if opts == nil || opts.Cursor == "" {
		status := "any"
		if opts != nil && opts.Status != "" {
			status = opts.Status
		}
		params.Set("status", status)
	}

	body, headers, err := c.doREST(ctx, "orders.list", http.MethodGet, "/orders.json", params, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Orders []json.RawMessage `json:"orders"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse orders response: %w", err)
	}

	result := &clients.OrdersResult{Orders: response.Orders}
	if linkHeader := headers.Get("Link"); linkHeader != "" {
		result.NextCursor, result.HasMore = parsePagination(linkHeader)
	}
	return result, nil
}

// GetOrder fetches a single order by ID
func (c *Client) GetOrder(ctx context.Context, orderID int64) (json.RawMessage, error) {
	body, _, err := c.doREST(ctx, "orders.get", http.MethodGet, fmt.Sprintf("/orders/%d.json", orderID), nil, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Order json.RawMessage `json:"order"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}
	return response.Order, nil
}
