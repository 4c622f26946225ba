package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"catalog-sync-service/internal/models"
)

// ProductRepository persists the local product/variant mirror
type ProductRepository struct {
	db *gorm.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// ProductListOptions contains filtering options for local product listing
type ProductListOptions struct {
	Search string
	Limit  int
	Offset int
}

// MirrorResult describes what a ReplaceProduct call actually wrote
type MirrorResult struct {
	Product         *models.LocalProduct
	ProductCreated  bool
	ProductUpdated  bool
	VariantsCreated int
	VariantsUpdated int
	VariantsDeleted int
}

// Changed reports whether any row was written
func (m *MirrorResult) Changed() bool {
	return m.ProductCreated || m.ProductUpdated || m.VariantsCreated > 0 || m.VariantsUpdated > 0 || m.VariantsDeleted > 0
}

// ReplaceProduct makes the mirror of one product equal to the given rows in a single transaction.
// Unchanged rows are not written and variants missing from the list are deleted.
func (r *ProductRepository) ReplaceProduct(ctx context.Context, product *models.LocalProduct, variants []models.LocalVariant) (*MirrorResult, error) {
	result := &MirrorResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *product
		row.Variants = nil

		var existing models.LocalProduct
		err := tx.Where("shopify_product_id = ?", product.ShopifyProductID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row.ID = 0
			if err := tx.Omit(clause.Associations).Create(&row).Error; err != nil {
				return err
			}
			result.ProductCreated = true
		case err != nil:
			return err
		default:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if existing.SameContent(&row) {
				row = existing
			} else {
				if err := tx.Omit(clause.Associations).Save(&row).Error; err != nil {
					return err
				}
				result.ProductUpdated = true
			}
		}

		var current []models.LocalVariant
		if err := tx.Where("producto_id = ?", row.ID).Find(&current).Error; err != nil {
			return err
		}
		byRemoteID := make(map[int64]models.LocalVariant, len(current))
		for _, v := range current {
			byRemoteID[v.ShopifyVariantID] = v
		}

		keep := make(map[int64]bool, len(variants))
		for _, v := range variants {
			v.ProductID = row.ID
			keep[v.ShopifyVariantID] = true

			old, ok := byRemoteID[v.ShopifyVariantID]
			if !ok {
				v.ID = 0
				if err := tx.Create(&v).Error; err != nil {
					return err
				}
				result.VariantsCreated++
				continue
			}
			v.ID = old.ID
			v.CreatedAt = old.CreatedAt
			if old.SameContent(&v) {
				continue
			}
			if err := tx.Save(&v).Error; err != nil {
				return err
			}
			result.VariantsUpdated++
		}

		var stale []int64
		for _, v := range current {
			if !keep[v.ShopifyVariantID] {
				stale = append(stale, v.ID)
			}
		}
		if len(stale) > 0 {
			if err := tx.Where("id IN ?", stale).Delete(&models.LocalVariant{}).Error; err != nil {
				return err
			}
			result.VariantsDeleted = len(stale)
		}

		result.Product = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	loaded, err := r.GetByShopifyID(ctx, product.ShopifyProductID)
	if err != nil {
		return nil, err
	}
	result.Product = loaded
	return result, nil
}

// DeleteByShopifyID removes a mirrored product and its variants. Reports whether a row existed.
func (r *ProductRepository) DeleteByShopifyID(ctx context.Context, shopifyProductID int64) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.LocalProduct
		err := tx.Where("shopify_product_id = ?", shopifyProductID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		// Explicit child delete; not every driver enforces the cascade.
		if err := tx.Where("producto_id = ?", existing.ID).Delete(&models.LocalVariant{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// GetByShopifyID retrieves a mirrored product with variants by remote id
func (r *ProductRepository) GetByShopifyID(ctx context.Context, shopifyProductID int64) (*models.LocalProduct, error) {
	var product models.LocalProduct
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("shopify_product_id = ?", shopifyProductID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetByID retrieves a mirrored product with variants by local id
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.LocalProduct, error) {
	var product models.LocalProduct
	err := r.db.WithContext(ctx).
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// List retrieves mirrored products with pagination. Search matches the title, or either id when numeric.
func (r *ProductRepository) List(ctx context.Context, opts ProductListOptions) ([]models.LocalProduct, int64, error) {
	var products []models.LocalProduct
	var total int64

	query := r.db.WithContext(ctx).Model(&models.LocalProduct{})

	if search := strings.TrimSpace(opts.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		if n, err := strconv.ParseInt(search, 10, 64); err == nil {
			query = query.Where("LOWER(titulo) LIKE ? OR shopify_product_id = ? OR id = ?", pattern, n, n)
		} else {
			query = query.Where("LOWER(titulo) LIKE ?", pattern)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		query = query.Offset(opts.Offset)
	}

	err := query.
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("id DESC").
		Find(&products).Error
	return products, total, err
}

// ListShopifyIDs returns the remote ids of every mirrored product
func (r *ProductRepository) ListShopifyIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.LocalProduct{}).Order("id ASC").Pluck("shopify_product_id", &ids).Error
	return ids, err
}
