package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// LocalProduct is the local mirror of a remote product. Rows are written only by reconciliation.
type LocalProduct struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopifyProductID int64      `gorm:"column:shopify_product_id;not null;uniqueIndex" json:"shopifyProductId"`
	Title            string     `gorm:"column:titulo;type:varchar(255);not null" json:"title"`
	Description      string     `gorm:"column:descripcion;type:text" json:"description"`
	ProductType      string     `gorm:"column:tipo_producto;type:varchar(255)" json:"productType"`
	Tags             StringList `gorm:"column:tags;type:text" json:"tags"`
	Status           string     `gorm:"column:estado;type:varchar(50)" json:"status"`
	LocationID       *int64     `gorm:"column:locacion_id" json:"locationId,omitempty"`
	MediaURL         string     `gorm:"column:url_media;type:text" json:"mediaUrl,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`

	Variants []LocalVariant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variants,omitempty"`
}

// TableName specifies the table name for LocalProduct
func (LocalProduct) TableName() string {
	return "productos"
}

// SameContent reports whether two mirror rows carry the same remote-derived values.
func (p *LocalProduct) SameContent(o *LocalProduct) bool {
	return p.ShopifyProductID == o.ShopifyProductID &&
		p.Title == o.Title &&
		p.Description == o.Description &&
		p.ProductType == o.ProductType &&
		p.Tags.String() == o.Tags.String() &&
		p.Status == o.Status &&
		equalInt64Ptr(p.LocationID, o.LocationID) &&
		p.MediaURL == o.MediaURL
}

// LocalVariant mirrors one remote variant. ProductID references productos.id.
type LocalVariant struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID        int64     `gorm:"column:producto_id;not null;index" json:"productId"`
	ShopifyVariantID int64     `gorm:"column:shopify_variant_id;not null;uniqueIndex" json:"shopifyVariantId"`
	Option1          string    `gorm:"column:opcion1;type:varchar(255)" json:"option1,omitempty"`
	Option2          string    `gorm:"column:opcion2;type:varchar(255)" json:"option2,omitempty"`
	Option3          string    `gorm:"column:opcion3;type:varchar(255)" json:"option3,omitempty"`
	Price            float64   `gorm:"column:precio;type:decimal(10,2)" json:"price"`
	Quantity         int       `gorm:"column:cantidad" json:"quantity"`
	SKU              string    `gorm:"column:sku;type:varchar(255)" json:"sku,omitempty"`
	InventoryItemID  int64     `gorm:"column:inventory_item_id" json:"inventoryItemId,omitempty"`
	MediaURL         string    `gorm:"column:url_media;type:text" json:"mediaUrl,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// TableName specifies the table name for LocalVariant
func (LocalVariant) TableName() string {
	return "producto_variantes"
}

// SameContent reports whether two variant rows carry the same remote-derived values.
// Prices are compared at cent precision, matching the column scale.
func (v *LocalVariant) SameContent(o *LocalVariant) bool {
	return v.ShopifyVariantID == o.ShopifyVariantID &&
		v.ProductID == o.ProductID &&
		v.Option1 == o.Option1 &&
		v.Option2 == o.Option2 &&
		v.Option3 == o.Option3 &&
		math.Round(v.Price*100) == math.Round(o.Price*100) &&
		v.Quantity == o.Quantity &&
		v.SKU == o.SKU &&
		v.InventoryItemID == o.InventoryItemID &&
		v.MediaURL == o.MediaURL
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// StringList is stored as a JSON array in a text column. Comma-joined values written
// before the column held JSON are still read.
type StringList []string

func (l StringList) String() string {
	return strings.Join(l, ", ")
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}

	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return fmt.Errorf("failed to unmarshal StringList: %w", err)
		}
		if len(out) == 0 {
			out = nil
		}
		*l = out
		return nil
	}

	var out StringList
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*l = out
	return nil
}
