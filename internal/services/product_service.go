package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/events"
	"catalog-sync-service/internal/models"
)

// InventoryOutcome is the result of one inventory set after a product write.
type InventoryOutcome struct {
	VariantID       int64  `json:"variantId,omitempty"`
	SKU             string `json:"sku,omitempty"`
	InventoryItemID int64  `json:"inventoryItemId,omitempty"`
	LocationID      int64  `json:"locationId,omitempty"`
	Quantity        int    `json:"quantity"`
	OK              bool   `json:"ok"`
	Error           string `json:"error,omitempty"`
}

// WriteResult is the report of a create or update. The remote product has been written
// whenever a WriteResult is returned; side-effect failures are listed, not returned.
type WriteResult struct {
	Product   *clients.Product     `json:"product"`
	Mirror    *models.LocalProduct `json:"mirror,omitempty"`
	Inventory []InventoryOutcome   `json:"inventory,omitempty"`
	Media     []FileOutcome        `json:"media,omitempty"`
	SyncError string               `json:"syncError,omitempty"`

	syncErr error
}

// ReconciliationErr returns the mirror failure that followed a successful remote write, if any.
func (r *WriteResult) ReconciliationErr() error {
	return r.syncErr
}

// Partial reports whether any side effect failed.
func (r *WriteResult) Partial() bool {
	if r.syncErr != nil {
		return true
	}
	for _, o := range r.Inventory {
		if !o.OK {
			return true
		}
	}
	for _, o := range r.Media {
		if !o.OK {
			return true
		}
	}
	return false
}

// ProductService orchestrates remote product writes and their dependent side effects:
// inventory levels, media uploads and the local mirror.
type ProductService struct {
	client            clients.CatalogClient
	media             *MediaPipeline
	reconciler        *ReconciliationService
	publisher         *events.Publisher
	defaultLocationID int64
	logger            *logrus.Entry
}

// NewProductService creates a new product service. publisher may be nil.
func NewProductService(
	client clients.CatalogClient,
	media *MediaPipeline,
	reconciler *ReconciliationService,
	publisher *events.Publisher,
	defaultLocationID int64,
	logger *logrus.Logger,
) *ProductService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ProductService{
		client:            client,
		media:             media,
		reconciler:        reconciler,
		publisher:         publisher,
		defaultLocationID: defaultLocationID,
		logger:            logger.WithField("component", "product-writer"),
	}
}

// pendingVariant pairs a write-side variant with the caller's input it came from.
type pendingVariant struct {
	input   VariantInput
	payload clients.VariantPayload
}

// Create creates the remote product, then sets inventory, uploads media and mirrors it locally.
func (s *ProductService) Create(ctx context.Context, in *ProductInput) (*WriteResult, error) {
	if err := ValidateCreate(in); err != nil {
		return nil, err
	}

	payload := s.basePayload(in)
	payload.Title = strings.TrimSpace(in.Title)

	var pending []pendingVariant
	if in.isSimple() {
		payload.Variants = []clients.VariantPayload{{
			Price:               clients.FormatPrice(*in.Price),
			SKU:                 in.SKU,
			InventoryManagement: "shopify",
		}}
	} else {
		pending = make([]pendingVariant, len(in.Variants))
		for i, v := range in.Variants {
			opts := v.OptionValues()
			pending[i] = pendingVariant{input: v, payload: clients.VariantPayload{
				Option1:             opts[0],
				Option2:             opts[1],
				Option3:             opts[2],
				Price:               clients.FormatPrice(*v.Price),
				SKU:                 v.SKU,
				InventoryManagement: "shopify",
			}}
		}
		s.applyOptions(payload, pending, in.OptionNames, nil)
	}

	product, err := s.client.CreateProduct(ctx, payload)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"productId": product.ID, "variants": len(product.Variants)}).Info("Remote product created")

	result := &WriteResult{Product: product}
	s.applySideEffects(ctx, in, product, pending, result)
	_ = s.publisher.PublishProductCreated(ctx, product)
	return result, nil
}

// Update modifies an existing remote product. Incoming variants are matched to existing ones
// by SKU, or by option tuple when the SKU is empty, and keep their remote ids.
func (s *ProductService) Update(ctx context.Context, productID int64, in *ProductInput) (*WriteResult, error) {
	if err := ValidateUpdate(in); err != nil {
		return nil, err
	}

	current, err := s.client.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	payload := s.basePayload(in)
	payload.Title = strings.TrimSpace(in.Title)

	var pending []pendingVariant
	switch {
	case !in.isSimple():
		pending = make([]pendingVariant, len(in.Variants))
		fields := make(map[string]string)
		for i, v := range in.Variants {
			pending[i] = mergeVariant(current.Variants, v)
			if pending[i].payload.ID == 0 && v.Price == nil {
				fields[fmt.Sprintf("variants[%d].price", i)] = "price is required for a new variant"
			}
		}
		if err := toValidationError(fields); err != nil {
			return nil, err
		}
		s.applyOptions(payload, pending, in.OptionNames, current.OptionNames())

	case in.Price != nil || in.Quantity != nil:
		if len(current.Variants) != 1 {
			return nil, invalid("price", "price and quantity apply to single-variant products only; send variants instead")
		}
		if in.Price != nil {
			payload.Variants = []clients.VariantPayload{{ID: current.Variants[0].ID, Price: clients.FormatPrice(*in.Price)}}
		}

	case len(in.OptionNames) > 0 && len(current.Options) > 0:
		names := ResolveOptionNames(len(current.Options), in.OptionNames, current.OptionNames())
		payload.Options = make([]clients.OptionPayload, len(current.Options))
		for i, o := range current.Options {
			payload.Options[i] = clients.OptionPayload{Name: names[i], Values: o.Values}
		}
	}

	product, err := s.client.UpdateProduct(ctx, productID, payload)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"productId": product.ID, "variants": len(product.Variants)}).Info("Remote product updated")

	result := &WriteResult{Product: product}
	s.applySideEffects(ctx, in, product, pending, result)
	_ = s.publisher.PublishProductUpdated(ctx, product, changedFields(in))
	return result, nil
}

// Delete removes the remote product first; the mirror is only touched when that succeeds.
func (s *ProductService) Delete(ctx context.Context, productID int64) error {
	if err := s.client.DeleteProduct(ctx, productID); err != nil {
		return err
	}
	s.logger.WithField("productId", productID).Info("Remote product deleted")

	_ = s.publisher.PublishProductDeleted(ctx, productID)

	if _, err := s.reconciler.Remove(ctx, productID); err != nil {
		s.logger.WithError(err).WithField("productId", productID).Error("Remote product deleted but mirror not removed")
		return err
	}
	return nil
}

func (s *ProductService) basePayload(in *ProductInput) *clients.ProductPayload {
	payload := &clients.ProductPayload{
		BodyHTML:    in.Description,
		ProductType: in.ProductType,
		Status:      in.Status,
	}
	if in.Tags != nil {
		tags := clients.JoinTags(in.Tags)
		payload.Tags = &tags
	}
	return payload
}

func (s *ProductService) applyOptions(payload *clients.ProductPayload, pending []pendingVariant, requested, remote []string) {
	merged := make([]VariantInput, len(pending))
	for i, p := range pending {
		merged[i] = VariantInput{Option1: p.payload.Option1, Option2: p.payload.Option2, Option3: p.payload.Option3}
	}
	values := DeriveOptionValues(merged)
	if len(values) > 0 {
		names := ResolveOptionNames(len(values), requested, remote)
		payload.Options = BuildOptions(names, values)
	}
	payload.Variants = make([]clients.VariantPayload, len(pending))
	for i, p := range pending {
		payload.Variants[i] = p.payload
	}
}

// mergeVariant resolves an incoming variant against the current remote variants.
// A match keeps its id and lends its option values and price to empty input fields.
func mergeVariant(existing []clients.Variant, v VariantInput) pendingVariant {
	opts := v.OptionValues()
	payload := clients.VariantPayload{
		Option1:             opts[0],
		Option2:             opts[1],
		Option3:             opts[2],
		SKU:                 v.SKU,
		InventoryManagement: "shopify",
	}
	if v.Price != nil {
		payload.Price = clients.FormatPrice(*v.Price)
	}

	if match := ResolveVariant(existing, v.SKU, opts); match != nil {
		payload.ID = match.ID
		payload.InventoryManagement = ""
		prev := match.OptionValues()
		if payload.Option1 == "" {
			payload.Option1 = prev[0]
		}
		if payload.Option2 == "" {
			payload.Option2 = prev[1]
		}
		if payload.Option3 == "" {
			payload.Option3 = prev[2]
		}
		if payload.Price == "" {
			payload.Price = clients.FormatPrice(match.Price)
		}
	}
	return pendingVariant{input: v, payload: payload}
}

// applySideEffects runs inventory sets, media uploads and the mirror sync. None of them
// fail the write; each outcome is recorded in result.
func (s *ProductService) applySideEffects(ctx context.Context, in *ProductInput, product *clients.Product, pending []pendingVariant, result *WriteResult) {
	type target struct {
		variant *clients.Variant
		input   VariantInput
		label   string
	}
	var targets []target
	if in.isSimple() {
		if len(product.Variants) > 0 && in.Quantity != nil {
			targets = append(targets, target{variant: &product.Variants[0], input: VariantInput{SKU: in.SKU, Quantity: in.Quantity}})
		}
	} else {
		for i, p := range pending {
			opts := [3]string{p.payload.Option1, p.payload.Option2, p.payload.Option3}
			targets = append(targets, target{
				variant: ResolveVariant(product.Variants, p.payload.SKU, opts),
				input:   p.input,
				label:   fmt.Sprintf("variants[%d]", i),
			})
		}
	}

	var locationID int64
	var locationErr error
	locationResolved := false
	for _, t := range targets {
		if t.input.Quantity == nil {
			continue
		}
		out := InventoryOutcome{SKU: t.input.SKU, Quantity: *t.input.Quantity}
		if t.variant == nil {
			out.Error = fmt.Sprintf("%s not found in remote product", t.label)
			result.Inventory = append(result.Inventory, out)
			continue
		}
		out.VariantID = t.variant.ID
		out.InventoryItemID = t.variant.InventoryItemID

		if !locationResolved {
			locationID, locationErr = s.resolveLocation(ctx, in.LocationID)
			locationResolved = true
		}
		out.LocationID = locationID
		if locationErr != nil {
			out.Error = locationErr.Error()
			result.Inventory = append(result.Inventory, out)
			continue
		}

		_, err := s.client.SetInventoryLevel(ctx, clients.SetInventoryInput{
			InventoryItemID: t.variant.InventoryItemID,
			LocationID:      locationID,
			Available:       *t.input.Quantity,
		})
		if err != nil {
			out.Error = err.Error()
			s.logger.WithError(err).WithFields(logrus.Fields{
				"productId":       product.ID,
				"inventoryItemId": t.variant.InventoryItemID,
			}).Warn("Inventory set failed")
		} else {
			out.OK = true
		}
		result.Inventory = append(result.Inventory, out)
	}

	if len(in.Media) > 0 {
		result.Media = append(result.Media, s.media.Upload(ctx, product.ID, 0, in.Media)...)
	}
	for _, t := range targets {
		if len(t.input.Media) == 0 {
			continue
		}
		var variantID int64
		if t.variant != nil {
			variantID = t.variant.ID
		}
		result.Media = append(result.Media, s.media.Upload(ctx, product.ID, variantID, t.input.Media)...)
	}

	mirror, err := s.reconciler.SyncProduct(ctx, product.ID)
	if err != nil {
		var recErr *ReconciliationError
		if !errors.As(err, &recErr) {
			err = &ReconciliationError{ProductID: product.ID, Err: err}
		}
		result.syncErr = err
		result.SyncError = err.Error()
		s.logger.WithError(err).WithField("productId", product.ID).Error("Remote write succeeded but mirror sync failed")
		return
	}
	result.Mirror = mirror.Product
}

// resolveLocation picks the inventory location: request, configured default, first active location.
func (s *ProductService) resolveLocation(ctx context.Context, requested int64) (int64, error) {
	if requested > 0 {
		return requested, nil
	}
	if s.defaultLocationID > 0 {
		return s.defaultLocationID, nil
	}
	locations, err := s.client.ListLocations(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve location: %w", err)
	}
	for _, l := range locations {
		if l.Active {
			return l.ID, nil
		}
	}
	return 0, errors.New("no active location available for inventory")
}

func changedFields(in *ProductInput) []string {
	var fields []string
	if in.Title != "" {
		fields = append(fields, "title")
	}
	if in.Description != nil {
		fields = append(fields, "description")
	}
	if in.ProductType != "" {
		fields = append(fields, "product_type")
	}
	if in.Tags != nil {
		fields = append(fields, "tags")
	}
	if in.Status != "" {
		fields = append(fields, "status")
	}
	if in.Price != nil || len(in.Variants) > 0 {
		fields = append(fields, "variants")
	}
	if len(in.OptionNames) > 0 {
		fields = append(fields, "options")
	}
	return fields
}
