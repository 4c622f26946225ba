package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/metrics"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

// ReconciliationService is the only writer of the local product mirror.
// Every write derives local rows from the remote's current state.
type ReconciliationService struct {
	client            clients.CatalogClient
	products          *repository.ProductRepository
	locker            *ProductLocker
	defaultLocationID int64
	logger            *logrus.Entry
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	client clients.CatalogClient,
	products *repository.ProductRepository,
	locker *ProductLocker,
	defaultLocationID int64,
	logger *logrus.Logger,
) *ReconciliationService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if locker == nil {
		locker = NewProductLocker(nil, nil, logger)
	}
	return &ReconciliationService{
		client:            client,
		products:          products,
		locker:            locker,
		defaultLocationID: defaultLocationID,
		logger:            logger.WithField("component", "reconciliation"),
	}
}

// SyncProduct overwrites the mirror of one product with the remote's canonical state.
// Repeated calls without a remote change write nothing. A remote 404 removes the mirror
// and the 404 is returned.
func (s *ReconciliationService) SyncProduct(ctx context.Context, remoteID int64) (*repository.MirrorResult, error) {
	release, err := s.locker.Acquire(ctx, remoteID)
	if err != nil {
		return nil, err
	}
	defer release()

	log := s.logger.WithField("productId", remoteID)

	product, err := s.client.GetProduct(ctx, remoteID)
	if err != nil {
		if clients.IsNotFound(err) {
			if _, rmErr := s.products.DeleteByShopifyID(ctx, remoteID); rmErr != nil {
				metrics.RecordReconciliation("failed")
				return nil, &ReconciliationError{ProductID: remoteID, Err: rmErr}
			}
			metrics.RecordReconciliation("removed")
			log.Info("Remote product gone, mirror removed")
		}
		return nil, err
	}

	row, variants := s.mirrorRows(ctx, product)

	result, err := s.products.ReplaceProduct(ctx, row, variants)
	if err != nil {
		metrics.RecordReconciliation("failed")
		log.WithError(err).Error("Failed to write product mirror")
		return nil, &ReconciliationError{ProductID: remoteID, Err: err}
	}

	if result.Changed() {
		metrics.RecordReconciliation("synced")
		log.WithFields(logrus.Fields{
			"created":         result.ProductCreated,
			"variantsCreated": result.VariantsCreated,
			"variantsUpdated": result.VariantsUpdated,
			"variantsDeleted": result.VariantsDeleted,
		}).Info("Product mirror synced")
	} else {
		metrics.RecordReconciliation("unchanged")
	}
	return result, nil
}

// Remove deletes the mirror of a product. Reports whether a row existed.
func (s *ReconciliationService) Remove(ctx context.Context, remoteID int64) (bool, error) {
	release, err := s.locker.Acquire(ctx, remoteID)
	if err != nil {
		return false, err
	}
	defer release()

	removed, err := s.products.DeleteByShopifyID(ctx, remoteID)
	if err != nil {
		metrics.RecordReconciliation("failed")
		return false, &ReconciliationError{ProductID: remoteID, Err: err}
	}
	if removed {
		metrics.RecordReconciliation("removed")
	}
	return removed, nil
}

// mirrorRows converts the remote product. Quantities come from the representative location;
// when the inventory lookup fails the variant's reported quantity is kept.
func (s *ReconciliationService) mirrorRows(ctx context.Context, product *clients.Product) (*models.LocalProduct, []models.LocalVariant) {
	row := &models.LocalProduct{
		ShopifyProductID: product.ID,
		Title:            product.Title,
		Description:      product.BodyHTML,
		ProductType:      product.ProductType,
		Tags:             models.StringList(product.Tags),
		Status:           string(product.Status),
	}
	if img := product.PrimaryImage(); img != nil {
		row.MediaURL = img.Src
	}

	locationID, available := s.representativeLevels(ctx, product)
	if locationID != 0 {
		row.LocationID = &locationID
	}

	variants := make([]models.LocalVariant, 0, len(product.Variants))
	for _, v := range product.Variants {
		lv := models.LocalVariant{
			ShopifyVariantID: v.ID,
			Option1:          v.Option1,
			Option2:          v.Option2,
			Option3:          v.Option3,
			Price:            v.Price,
			Quantity:         v.InventoryQuantity,
			SKU:              v.SKU,
			InventoryItemID:  v.InventoryItemID,
		}
		if qty, ok := available[v.InventoryItemID]; ok {
			lv.Quantity = qty
		}
		if img := product.ImageByID(v.ImageID); img != nil {
			lv.MediaURL = img.Src
		}
		variants = append(variants, lv)
	}
	return row, variants
}

func (s *ReconciliationService) representativeLevels(ctx context.Context, product *clients.Product) (int64, map[int64]int) {
	itemIDs := make([]int64, 0, len(product.Variants))
	for _, v := range product.Variants {
		if v.InventoryItemID != 0 {
			itemIDs = append(itemIDs, v.InventoryItemID)
		}
	}
	if len(itemIDs) == 0 {
		return s.defaultLocationID, nil
	}

	levels, err := s.client.GetInventoryLevels(ctx, itemIDs)
	if err != nil {
		s.logger.WithError(err).WithField("productId", product.ID).Warn("Inventory lookup failed, keeping reported quantities")
		return s.defaultLocationID, nil
	}

	locationID := s.defaultLocationID
	if locationID == 0 && len(levels) > 0 {
		locationID = levels[0].LocationID
	}
	available := make(map[int64]int, len(levels))
	for _, l := range levels {
		if l.LocationID == locationID {
			available[l.InventoryItemID] = l.Available
		}
	}
	return locationID, available
}

