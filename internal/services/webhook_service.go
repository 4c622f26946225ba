package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

const (
	webhookDedupePrefix = "catalog-sync:webhook:"
	webhookDedupeTTL    = 24 * time.Hour
)

var (
	// ErrDuplicateWebhook is returned for a delivery id that was already accepted.
	ErrDuplicateWebhook = errors.New("duplicate webhook delivery")
	// ErrUnverifiedWebhook is returned when the delivery signature does not verify.
	ErrUnverifiedWebhook = errors.New("webhook verification failed")
)

// WebhookDelivery is one inbound webhook request.
type WebhookDelivery struct {
	Topic      string
	ShopDomain string
	EventID    string
	Signature  string
	Payload    []byte
}

// WebhookService verifies product webhooks and reconciles the affected product
type WebhookService struct {
	client      clients.CatalogClient
	webhookRepo *repository.WebhookRepository
	reconciler  *ReconciliationService
	redis       *redis.Client
	logger      *logrus.Entry
	wg          sync.WaitGroup
}

// NewWebhookService creates a new webhook service. redisClient may be nil.
func NewWebhookService(
	client clients.CatalogClient,
	webhookRepo *repository.WebhookRepository,
	reconciler *ReconciliationService,
	redisClient *redis.Client,
	logger *logrus.Logger,
) *WebhookService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WebhookService{
		client:      client,
		webhookRepo: webhookRepo,
		reconciler:  reconciler,
		redis:       redisClient,
		logger:      logger.WithField("component", "webhooks"),
	}
}

// ProcessWebhook verifies and records a delivery, then reconciles it in the background.
func (s *WebhookService) ProcessWebhook(ctx context.Context, d WebhookDelivery) (*models.WebhookEvent, error) {
	if err := s.client.VerifyWebhook(d.Payload, d.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnverifiedWebhook, err)
	}

	var body struct {
		ID        int64  `json:"id"`
		UpdatedAt string `json:"updated_at"`
	}
	if err := json.Unmarshal(d.Payload, &body); err != nil {
		return nil, invalid("payload", "payload is not valid JSON")
	}

	if d.EventID == "" {
		d.EventID = fmt.Sprintf("%s:%d:%s", d.Topic, body.ID, body.UpdatedAt)
	}

	dedupeKey := webhookDedupePrefix + d.EventID
	claimed := false
	if s.redis != nil {
		ok, err := s.redis.SetNX(ctx, dedupeKey, 1, webhookDedupeTTL).Result()
		if err == nil && !ok {
			return nil, ErrDuplicateWebhook
		}
		if err != nil {
			s.logger.WithError(err).Debug("Webhook dedupe cache unavailable")
		}
		claimed = ok
	}

	var payload models.JSONB
	_ = json.Unmarshal(d.Payload, &payload)

	event := &models.WebhookEvent{
		EventID:    d.EventID,
		Topic:      d.Topic,
		ShopDomain: d.ShopDomain,
		ResourceID: body.ID,
		Payload:    payload,
	}
	created, err := s.webhookRepo.Create(ctx, event)
	if err != nil {
		// The sender retries this delivery id; it must not be acked as a duplicate.
		if claimed {
			if delErr := s.redis.Del(context.WithoutCancel(ctx), dedupeKey).Err(); delErr != nil {
				s.logger.WithError(delErr).WithField("event_id", d.EventID).Warn("Failed to release webhook dedupe key")
			}
		}
		return nil, err
	}
	if !created {
		return nil, ErrDuplicateWebhook
	}

	s.dispatch(event)
	return event, nil
}

// RetryPending re-dispatches recorded deliveries that failed earlier.
func (s *WebhookService) RetryPending(ctx context.Context, limit int) (int, error) {
	events, err := s.webhookRepo.GetUnprocessedEvents(ctx, limit)
	if err != nil {
		return 0, err
	}
	for i := range events {
		s.dispatch(&events[i])
	}
	return len(events), nil
}

// Wait blocks until every dispatched delivery has been handled.
func (s *WebhookService) Wait() {
	s.wg.Wait()
}

func (s *WebhookService) dispatch(event *models.WebhookEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		err := s.handle(ctx, event)
		log := s.logger.WithFields(logrus.Fields{"topic": event.Topic, "productId": event.ResourceID, "eventId": event.EventID})
		if err != nil {
			log.WithError(err).Warn("Webhook processing failed")
		} else {
			log.Debug("Webhook processed")
		}
		if markErr := s.webhookRepo.MarkProcessed(ctx, event.ID, err); markErr != nil {
			log.WithError(markErr).Error("Failed to mark webhook processed")
		}
	}()
}

func (s *WebhookService) handle(ctx context.Context, event *models.WebhookEvent) error {
	if event.ResourceID == 0 {
		return nil
	}
	switch event.Topic {
	case models.TopicProductsCreate, models.TopicProductsUpdate:
		_, err := s.reconciler.SyncProduct(ctx, event.ResourceID)
		if clients.IsNotFound(err) {
			return nil
		}
		return err
	case models.TopicProductsDelete:
		_, err := s.reconciler.Remove(ctx, event.ResourceID)
		return err
	}
	return nil
}
