package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// CatalogClient is the typed boundary to the remote commerce platform.
// Implementations never retry; retry policy belongs to the caller.
type CatalogClient interface {
	// Products
	CreateProduct(ctx context.Context, payload *ProductPayload) (*Product, error)
	UpdateProduct(ctx context.Context, productID int64, payload *ProductPayload) (*Product, error)
	GetProduct(ctx context.Context, productID int64) (*Product, error)
	DeleteProduct(ctx context.Context, productID int64) error
	ListProducts(ctx context.Context, opts *ListOptions) (*ProductsResult, error)

	// Inventory
	ListLocations(ctx context.Context) ([]Location, error)
	GetInventoryLevels(ctx context.Context, inventoryItemIDs []int64) ([]InventoryLevel, error)
	SetInventoryLevel(ctx context.Context, input SetInventoryInput) (*InventoryLevel, error)

	// Media
	CreateStagedUpload(ctx context.Context, input StagedUploadInput) (*StagedTarget, error)
	TransferFile(ctx context.Context, target *StagedTarget, file UploadFile) error
	CreateProductMedia(ctx context.Context, productID int64, media []MediaInput) ([]CreatedMedia, error)
	DeleteProductMedia(ctx context.Context, productID int64, mediaIDs []string) ([]string, error)
	ReorderProductMedia(ctx context.Context, productID int64, moves []MediaMove) error
	AppendVariantMedia(ctx context.Context, productID, variantID int64, mediaIDs []string) error
	GetProductMedia(ctx context.Context, productID int64) ([]Media, error)
	ListProductsMedia(ctx context.Context, first int, after string) (*ProductMediaPage, error)
	GetCollectionMedia(ctx context.Context, collectionID int64) (*CollectionMedia, error)

	// Orders
	ListOrders(ctx context.Context, opts *ListOptions) (*OrdersResult, error)
	GetOrder(ctx context.Context, orderID int64) (json.RawMessage, error)

	// Webhooks
	VerifyWebhook(payload []byte, signature string) error
}

// ListOptions contains common pagination options
type ListOptions struct {
	Limit  int
	Cursor string
	Handle string
	Status string
	Fields string
}

// ProductsResult contains paginated product results
type ProductsResult struct {
	Products   []Product
	NextCursor string
	HasMore    bool
}

// OrdersResult is a raw page of orders
type OrdersResult struct {
	Orders     []json.RawMessage
	NextCursor string
	HasMore    bool
}

// ProductStatus is the remote tri-state product status.
type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductDraft    ProductStatus = "draft"
	ProductArchived ProductStatus = "archived"
)

// Product is the canonical remote product.
type Product struct {
	ID          int64         `json:"id"`
	GID         string        `json:"admin_graphql_api_id"`
	Title       string        `json:"title"`
	BodyHTML    string        `json:"body_html"`
	Vendor      string        `json:"vendor"`
	ProductType string        `json:"product_type"`
	Handle      string        `json:"handle"`
	Status      ProductStatus `json:"status"`
	Tags        []string      `json:"tags"`
	Options     []Option      `json:"options"`
	Variants    []Variant     `json:"variants"`
	Images      []Image       `json:"images"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PrimaryImage returns the first image, which is conventionally the product's primary media.
func (p *Product) PrimaryImage() *Image {
	if len(p.Images) == 0 {
		return nil
	}
	return &p.Images[0]
}

// ImageByID finds an image of the product by id.
func (p *Product) ImageByID(id int64) *Image {
	for i := range p.Images {
		if p.Images[i].ID == id {
			return &p.Images[i]
		}
	}
	return nil
}

// IsSimple reports whether the product has only the placeholder variant the store
// creates for a product without options.
func (p *Product) IsSimple() bool {
	return len(p.Variants) == 1 && p.Variants[0].IsDefault()
}

// OptionNames returns the product's option names ordered by position.
func (p *Product) OptionNames() []string {
	names := make([]string, len(p.Options))
	for i, o := range p.Options {
		names[i] = o.Name
	}
	return names
}

// DefaultVariantTitle is the option value of the only variant of a product without options.
const DefaultVariantTitle = "Default Title"

// Variant is a child of Product.
type Variant struct {
	ID                int64   `json:"id"`
	ProductID         int64   `json:"product_id"`
	Title             string  `json:"title"`
	SKU               string  `json:"sku"`
	Price             float64 `json:"price"`
	Option1           string  `json:"option1"`
	Option2           string  `json:"option2"`
	Option3           string  `json:"option3"`
	InventoryItemID   int64   `json:"inventory_item_id"`
	InventoryQuantity int     `json:"inventory_quantity"`
	ImageID           int64   `json:"image_id"`
	Position          int     `json:"position"`
}

// OptionValues returns the three option slots.
func (v Variant) OptionValues() [3]string {
	return [3]string{v.Option1, v.Option2, v.Option3}
}

// IsDefault reports whether v is the placeholder variant of a product without options.
func (v Variant) IsDefault() bool {
	return v.Option1 == DefaultVariantTitle && v.Option2 == "" && v.Option3 == ""
}

// Option is a named axis of variation.
type Option struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Position int      `json:"position"`
	Values   []string `json:"values"`
}

// Image is a REST product image.
type Image struct {
	ID         int64   `json:"id"`
	Src        string  `json:"src"`
	Alt        string  `json:"alt"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Position   int     `json:"position"`
	VariantIDs []int64 `json:"variant_ids"`
}

// ProductPayload is the REST body for create and update.
type ProductPayload struct {
	ID          int64            `json:"id,omitempty"`
	Title       string           `json:"title,omitempty"`
	BodyHTML    *string          `json:"body_html,omitempty"`
	ProductType string           `json:"product_type,omitempty"`
	Tags        *string          `json:"tags,omitempty"`
	Status      ProductStatus    `json:"status,omitempty"`
	Options     []OptionPayload  `json:"options,omitempty"`
	Variants    []VariantPayload `json:"variants,omitempty"`
}

// OptionPayload defines an option on write.
type OptionPayload struct {
	Name   string   `json:"name"`
	Values []string `json:"values,omitempty"`
}

// VariantPayload defines a variant on write. A non-zero ID modifies an existing variant.
type VariantPayload struct {
	ID                  int64  `json:"id,omitempty"`
	Option1             string `json:"option1,omitempty"`
	Option2             string `json:"option2,omitempty"`
	Option3             string `json:"option3,omitempty"`
	Price               string `json:"price,omitempty"`
	SKU                 string `json:"sku,omitempty"`
	InventoryManagement string `json:"inventory_management,omitempty"`
}

// FormatPrice renders a decimal price the way the REST API expects it.
func FormatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// JoinTags renders a tag set as the comma-joined wire string.
func JoinTags(tags []string) string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, ", ")
}

// SplitTags parses the comma-joined wire string.
func SplitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// Location is a stock location.
type Location struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
	Address1 string `json:"address1,omitempty"`
	City     string `json:"city,omitempty"`
	Country  string `json:"country,omitempty"`
}

// InventoryLevel is the available quantity of an inventory item at a location.
type InventoryLevel struct {
	InventoryItemID int64     `json:"inventory_item_id"`
	LocationID      int64     `json:"location_id"`
	Available       int       `json:"available"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SetInventoryInput sets the absolute available quantity for one (item, location) pair.
type SetInventoryInput struct {
	InventoryItemID int64 `json:"inventory_item_id"`
	LocationID      int64 `json:"location_id"`
	Available       int   `json:"available"`
}

// StagedUploadInput describes one file to stage.
type StagedUploadInput struct {
	Filename string
	MimeType string
	FileSize int64
	Resource MediaKind
}

// StagedTarget is the short-lived upload target returned by the remote.
type StagedTarget struct {
	URL         string
	ResourceURL string
	Parameters  []StagedParameter
}

// StagedParameter is one signed form field, replayed verbatim during transfer.
type StagedParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// UploadFile is the byte source of a staged transfer.
type UploadFile struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// MediaInput registers a staged resource as product media.
type MediaInput struct {
	OriginalSource   string
	MediaContentType MediaKind
	Alt              string
}

// CreatedMedia is what the attach mutation returns for each new media item.
type CreatedMedia struct {
	ID               string    `json:"id"`
	Alt              string    `json:"alt,omitempty"`
	MediaContentType MediaKind `json:"media_content_type"`
	Status           string    `json:"status"`
}

// MediaMove moves a media item to a new zero-based position.
type MediaMove struct {
	ID          string
	NewPosition int
}

// ProductMediaSummary is a product with its primary media only.
type ProductMediaSummary struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ProductType string  `json:"product_type,omitempty"`
	Media       []Media `json:"media"`
}

// ProductMediaPage is a cursor page of products with their primary media.
type ProductMediaPage struct {
	Products    []ProductMediaSummary `json:"products"`
	HasNextPage bool                  `json:"has_next_page"`
	EndCursor   string                `json:"end_cursor,omitempty"`
}

// CollectionImage is the collection's own image.
type CollectionImage struct {
	URL     string `json:"url"`
	AltText string `json:"alt_text,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// CollectionMedia is a collection with each product's primary media.
type CollectionMedia struct {
	ID              int64                 `json:"id"`
	Title           string                `json:"title"`
	DescriptionHTML string                `json:"description_html,omitempty"`
	Image           *CollectionImage      `json:"image"`
	Products        []ProductMediaSummary `json:"products"`
}

const gidPrefix = "gid://shopify/"

// GID builds a global id such as gid://shopify/Product/123.
func GID(resource string, id int64) string {
	return fmt.Sprintf("%s%s/%d", gidPrefix, resource, id)
}

// ParseGID extracts the numeric id from a global id. Plain numeric strings are accepted too.
func ParseGID(gid string) (int64, error) {
	s := gid
	if strings.HasPrefix(s, gidPrefix) {
		s = s[strings.LastIndex(s, "/")+1:]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid global id %q", gid)
	}
	return id, nil
}
