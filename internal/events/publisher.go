package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
)

// Publisher wraps the go-shared events publisher for catalog product events.
// A nil *Publisher is valid and publishes nothing.
type Publisher struct {
	publisher *events.Publisher
	shop      string
	logger    *logrus.Entry
}

// NewPublisher connects to NATS. The shop domain is used as the event tenant.
func NewPublisher(natsURL, shop string, logger *logrus.Logger) (*Publisher, error) {
	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalog-sync-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		shop:      shop,
		logger:    logger.WithField("component", "catalog-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p != nil && p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishProductCreated publishes a product.created event
func (p *Publisher) PublishProductCreated(ctx context.Context, product *clients.Product) error {
	if p == nil || product == nil {
		return nil
	}
	event := p.buildProductEvent(events.ProductCreated, product)
	event.ChangeType = "created"
	return p.publish(ctx, event)
}

// PublishProductUpdated publishes a product.updated event
func (p *Publisher) PublishProductUpdated(ctx context.Context, product *clients.Product, changedFields []string) error {
	if p == nil || product == nil {
		return nil
	}
	event := p.buildProductEvent(events.ProductUpdated, product)
	event.ChangeType = "updated"
	event.ChangedFields = changedFields
	return p.publish(ctx, event)
}

// PublishProductDeleted publishes a product.deleted event
func (p *Publisher) PublishProductDeleted(ctx context.Context, productID int64) error {
	if p == nil {
		return nil
	}
	event := p.buildProductEvent(events.ProductDeleted, &clients.Product{ID: productID})
	event.ChangeType = "deleted"
	return p.publish(ctx, event)
}

func (p *Publisher) buildProductEvent(eventType string, product *clients.Product) *events.ProductEvent {
	event := events.NewProductEvent(eventType, p.shop)
	event.SourceID = uuid.New().String()
	event.ProductID = strconv.FormatInt(product.ID, 10)
	event.ProductName = product.Title
	event.Status = string(product.Status)
	if len(product.Variants) > 0 {
		event.SKU = product.Variants[0].SKU
		event.Price = product.Variants[0].Price
	}
	return event
}

// publish sends asynchronously so remote writes are never blocked on NATS
func (p *Publisher) publish(_ context.Context, event *events.ProductEvent) error {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		fields := logrus.Fields{
			"eventType": event.EventType,
			"productID": event.ProductID,
			"shop":      event.TenantID,
		}
		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(fields).WithError(err).Error("Failed to publish product event")
			return
		}
		p.logger.WithFields(fields).Debug("Product event published")
	}()
	return nil
}
