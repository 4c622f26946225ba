package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

const (
	locationsCacheKey = "catalog-sync:locations"
	locationsCacheTTL = 10 * time.Minute
)

// InventoryLevelView is an inventory level joined with its location name.
type InventoryLevelView struct {
	InventoryItemID int64     `json:"inventoryItemId"`
	LocationID      int64     `json:"locationId"`
	LocationName    string    `json:"locationName"`
	Available       int       `json:"available"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// CatalogService serves read-only projections of the remote catalog and the local mirror.
type CatalogService struct {
	client   clients.CatalogClient
	products *repository.ProductRepository
	redis    *redis.Client
	logger   *logrus.Entry
}

// NewCatalogService creates a new catalog service. redisClient may be nil.
func NewCatalogService(client clients.CatalogClient, products *repository.ProductRepository, redisClient *redis.Client, logger *logrus.Logger) *CatalogService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CatalogService{
		client:   client,
		products: products,
		redis:    redisClient,
		logger:   logger.WithField("component", "catalog-reads"),
	}
}

// ListMirror lists mirrored products
func (s *CatalogService) ListMirror(ctx context.Context, opts repository.ProductListOptions) ([]models.LocalProduct, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 250 {
		opts.Limit = 50
	}
	return s.products.List(ctx, opts)
}

// GetMirror returns a mirrored product by remote id, falling back to the local id.
func (s *CatalogService) GetMirror(ctx context.Context, id int64) (*models.LocalProduct, error) {
	product, err := s.products.GetByShopifyID(ctx, id)
	if err == nil {
		return product, nil
	}
	if !errors.Is(notFoundErr(err), ErrNotFound) {
		return nil, err
	}
	product, err = s.products.GetByID(ctx, id)
	return product, notFoundErr(err)
}

// ListRemote returns one page of remote products.
func (s *CatalogService) ListRemote(ctx context.Context, opts *clients.ListOptions) (*clients.ProductsResult, error) {
	return s.client.ListProducts(ctx, opts)
}

// GetRemote returns a remote product.
func (s *CatalogService) GetRemote(ctx context.Context, id int64) (*clients.Product, error) {
	return s.client.GetProduct(ctx, id)
}

// FindByHandle looks a remote product up by its handle.
func (s *CatalogService) FindByHandle(ctx context.Context, handle string) (*clients.Product, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, invalid("handle", "handle is required")
	}
	page, err := s.client.ListProducts(ctx, &clients.ListOptions{Handle: handle, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(page.Products) == 0 {
		return nil, ErrNotFound
	}
	return &page.Products[0], nil
}

// ProductMedia returns every media item of a product.
func (s *CatalogService) ProductMedia(ctx context.Context, productID int64) ([]clients.Media, error) {
	return s.client.GetProductMedia(ctx, productID)
}

// ProductsMedia returns a page of products with their primary media.
func (s *CatalogService) ProductsMedia(ctx context.Context, first int, after string) (*clients.ProductMediaPage, error) {
	if first <= 0 || first > 250 {
		first = 50
	}
	return s.client.ListProductsMedia(ctx, first, after)
}

// CollectionMedia returns a collection with its products' primary media.
func (s *CatalogService) CollectionMedia(ctx context.Context, collectionID int64) (*clients.CollectionMedia, error) {
	return s.client.GetCollectionMedia(ctx, collectionID)
}

// Locations returns the active locations.
func (s *CatalogService) Locations(ctx context.Context) ([]clients.Location, error) {
	all, err := s.allLocations(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]clients.Location, 0, len(all))
	for _, l := range all {
		if l.Active {
			active = append(active, l)
		}
	}
	return active, nil
}

func (s *CatalogService) allLocations(ctx context.Context) ([]clients.Location, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, locationsCacheKey).Result()
		if err == nil {
			var cached []clients.Location
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			s.logger.WithError(err).Debug("Location cache unavailable")
		}
	}

	locations, err := s.client.ListLocations(ctx)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(locations); err == nil {
			s.redis.Set(ctx, locationsCacheKey, data, locationsCacheTTL)
		}
	}
	return locations, nil
}

// InventoryLevels returns the levels of an inventory item with location names.
// Levels and locations are fetched concurrently.
func (s *CatalogService) InventoryLevels(ctx context.Context, inventoryItemID int64) ([]InventoryLevelView, error) {
	var levels []clients.InventoryLevel
	var locations []clients.Location

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		levels, err = s.client.GetInventoryLevels(gctx, []int64{inventoryItemID})
		if err != nil {
			return fmt.Errorf("fetch inventory levels: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		locations, err = s.allLocations(gctx)
		if err != nil {
			return fmt.Errorf("fetch locations: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make(map[int64]string, len(locations))
	for _, l := range locations {
		names[l.ID] = l.Name
	}
	views := make([]InventoryLevelView, 0, len(levels))
	for _, l := range levels {
		views = append(views, InventoryLevelView{
			InventoryItemID: l.InventoryItemID,
			LocationID:      l.LocationID,
			LocationName:    names[l.LocationID],
			Available:       l.Available,
			UpdatedAt:       l.UpdatedAt,
		})
	}
	return views, nil
}

// ListOrders returns one page of remote orders.
func (s *CatalogService) ListOrders(ctx context.Context, opts *clients.ListOptions) (*clients.OrdersResult, error) {
	return s.client.ListOrders(ctx, opts)
}

// GetOrder returns a remote order.
func (s *CatalogService) GetOrder(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.client.GetOrder(ctx, id)
}
