package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"catalog-sync-service/internal/clients"
)

type productEnvelope struct {
	Product shopifyProduct `json:"product"`
}

type productPayloadEnvelope struct {
	Product *clients.ProductPayload `json:"product"`
}

// CreateProduct creates a product with its options and variants in one call.
func (c *Client) CreateProduct(ctx context.Context, payload *clients.ProductPayload) (*clients.Product, error) {
	body, _, err := c.doREST(ctx, "products.create", http.MethodPost, "/products.json", nil, productPayloadEnvelope{Product: payload})
	if err != nil {
		return nil, err
	}
	return decodeProduct(body)
}

// UpdateProduct modifies a product. Variants carrying an id are updated in place.
func (c *Client) UpdateProduct(ctx context.Context, productID int64, payload *clients.ProductPayload) (*clients.Product, error) {
	payload.ID = productID
	path := fmt.Sprintf("/products/%d.json", productID)
	body, _, err := c.doREST(ctx, "products.update", http.MethodPut, path, nil, productPayloadEnvelope{Product: payload})
	if err != nil {
		return nil, err
	}
	return decodeProduct(body)
}

// GetProduct fetches a single product by ID
func (c *Client) GetProduct(ctx context.Context, productID int64) (*clients.Product, error) {
	body, _, err := c.doREST(ctx, "products.get", http.MethodGet, fmt.Sprintf("/products/%d.json", productID), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeProduct(body)
}

// DeleteProduct deletes a product and, remotely, all of its variants and media.
func (c *Client) DeleteProduct(ctx context.Context, productID int64) error {
	_, _, err := c.doREST(ctx, "products.delete", http.MethodDelete, fmt.Sprintf("/products/%d.json", productID), nil, nil)
	return err
}

// ListProducts fetches one page of products. Follow NextCursor until HasMore is false.
func (c *Client) ListProducts(ctx context.Context, opts *clients.ListOptions) (*clients.ProductsResult, error) {
	params := pageParams(opts, 50)
	if opts != nil && opts.Cursor == "" {
		if opts.Handle != "" {
			params.Set("handle", opts.Handle)
		}
		if opts.Status != "" {
			params.Set("status", opts.Status)
		}
	}
	if opts != nil && opts.Fields != "" {
		params.Set("fields", opts.Fields)
	}

	body, headers, err := c.doREST(ctx, "products.list", http.MethodGet, "/products.json", params, nil)
	if err != nil {
		return nil, err
	}

	var response struct {
		Products []shopifyProduct `json:"products"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse products response: %w", err)
	}

	products := make([]clients.Product, 0, len(response.Products))
	for _, p := range response.Products {
		products = append(products, convertProduct(p))
	}

	result := &clients.ProductsResult{Products: products}
	if linkHeader := headers.Get("Link"); linkHeader != "" {
		result.NextCursor, result.HasMore = parsePagination(linkHeader)
	}
	return result, nil
}

func decodeProduct(body []byte) (*clients.Product, error) {
	var response productEnvelope
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to parse product response: %w", err)
	}
	product := convertProduct(response.Product)
	return &product, nil
}

// Shopify data structures
type shopifyProduct struct {
	ID                int64            `json:"id"`
	AdminGraphQLAPIID string           `json:"admin_graphql_api_id"`
	Title             string           `json:"title"`
	BodyHTML          string           `json:"body_html"`
	Vendor            string           `json:"vendor"`
	ProductType       string           `json:"product_type"`
	Handle            string           `json:"handle"`
	Status            string           `json:"status"`
	Tags              string           `json:"tags"`
	Variants          []shopifyVariant `json:"variants"`
	Images            []shopifyImage   `json:"images"`
	Options           []shopifyOption  `json:"options"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

type shopifyVariant struct {
	ID                int64   `json:"id"`
	ProductID         int64   `json:"product_id"`
	Title             string  `json:"title"`
	SKU               string  `json:"sku"`
	Price             string  `json:"price"`
	InventoryQuantity int     `json:"inventory_quantity"`
	InventoryItemID   int64   `json:"inventory_item_id"`
	ImageID           *int64  `json:"image_id"`
	Position          int     `json:"position"`
	Option1           *string `json:"option1"`
	Option2           *string `json:"option2"`
	Option3           *string `json:"option3"`
}

type shopifyImage struct {
	ID         int64   `json:"id"`
	Src        string  `json:"src"`
	Alt        string  `json:"alt"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Position   int     `json:"position"`
	VariantIDs []int64 `json:"variant_ids"`
}

type shopifyOption struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

func convertProduct(p shopifyProduct) clients.Product {
	product := clients.Product{
		ID:          p.ID,
		GID:         p.AdminGraphQLAPIID,
		Title:       p.Title,
		BodyHTML:    p.BodyHTML,
		Vendor:      p.Vendor,
		ProductType: p.ProductType,
		Handle:      p.Handle,
		Status:      clients.ProductStatus(p.Status),
		Tags:        clients.SplitTags(p.Tags),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if product.GID == "" && p.ID != 0 {
		product.GID = clients.GID("Product", p.ID)
	}

	for _, v := range p.Variants {
		variant := clients.Variant{
			ID:                v.ID,
			ProductID:         v.ProductID,
			Title:             v.Title,
			SKU:               v.SKU,
			InventoryQuantity: v.InventoryQuantity,
			InventoryItemID:   v.InventoryItemID,
			Position:          v.Position,
			Option1:           deref(v.Option1),
			Option2:           deref(v.Option2),
			Option3:           deref(v.Option3),
		}
		variant.Price, _ = strconv.ParseFloat(v.Price, 64)
		if v.ImageID != nil {
			variant.ImageID = *v.ImageID
		}
		product.Variants = append(product.Variants, variant)
	}

	for _, img := range p.Images {
		product.Images = append(product.Images, clients.Image{
			ID:         img.ID,
			Src:        img.Src,
			Alt:        img.Alt,
			Width:      img.Width,
			Height:     img.Height,
			Position:   img.Position,
			VariantIDs: img.VariantIDs,
		})
	}

	for _, opt := range p.Options {
		product.Options = append(product.Options, clients.Option{
			ID:       opt.ID,
			Name:     opt.Name,
			Position: opt.Position,
			Values:   opt.Values,
		})
	}

	return product
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
