package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"

	"catalog-sync-service/internal/config"
)

// ShopifyCredentials is the JSON document stored for the store connection
type ShopifyCredentials struct {
	Store         string `json:"store"`        // store name or *.myshopify.com domain
	AccessToken   string `json:"access_token"` // Admin API access token
	WebhookSecret string `json:"webhook_secret,omitempty"`
	LocationID    int64  `json:"location_id,omitempty"`
}

// Apply fills the empty fields of cfg. Values already set from the environment win.
func (c *ShopifyCredentials) Apply(cfg *config.ShopifyConfig) {
	if cfg.ShopDomain == "" {
		cfg.ShopDomain = c.Store
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = c.AccessToken
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = c.WebhookSecret
	}
	if cfg.DefaultLocationID == 0 {
		cfg.DefaultLocationID = c.LocationID
	}
}

// versionAccessor is the subset of the Secret Manager client used here
type versionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// cacheEntry represents a cached secret payload with expiration
type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// GCPSecretManager reads secrets from Google Cloud Secret Manager
type GCPSecretManager struct {
	client    versionAccessor
	closer    func() error
	projectID string
	cache     map[string]*cacheEntry
	cacheMu   sync.RWMutex
	cacheTTL  time.Duration
}

// NewGCPSecretManager creates a new GCP Secret Manager client
func NewGCPSecretManager(ctx context.Context, projectID string) (*GCPSecretManager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	sm := newManager(client, projectID, 5*time.Minute)
	sm.closer = client.Close
	return sm, nil
}

func newManager(client versionAccessor, projectID string, ttl time.Duration) *GCPSecretManager {
	return &GCPSecretManager{
		client:    client,
		projectID: projectID,
		cache:     make(map[string]*cacheEntry),
		cacheTTL:  ttl,
	}
}

// Close closes the Secret Manager client
func (sm *GCPSecretManager) Close() error {
	if sm.closer != nil {
		return sm.closer()
	}
	return nil
}

// SecretName expands a bare secret id to projects/{project}/secrets/{id}
func (sm *GCPSecretManager) SecretName(secret string) string {
	if strings.HasPrefix(secret, "projects/") {
		return secret
	}
	return fmt.Sprintf("projects/%s/secrets/%s", sm.projectID, secret)
}

// GetSecret returns the latest version of a secret, served from cache while fresh
func (sm *GCPSecretManager) GetSecret(ctx context.Context, secret string) ([]byte, error) {
	name := sm.SecretName(secret)

	sm.cacheMu.RLock()
	if entry, ok := sm.cache[name]; ok && time.Now().Before(entry.expiresAt) {
		sm.cacheMu.RUnlock()
		return entry.data, nil
	}
	sm.cacheMu.RUnlock()

	result, err := sm.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: name + "/versions/latest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret: %w", err)
	}
	data := result.GetPayload().GetData()

	sm.cacheMu.Lock()
	sm.cache[name] = &cacheEntry{data: data, expiresAt: time.Now().Add(sm.cacheTTL)}
	sm.cacheMu.Unlock()

	return data, nil
}

// GetShopifyCredentials reads and parses the store credentials secret
func (sm *GCPSecretManager) GetShopifyCredentials(ctx context.Context, secret string) (*ShopifyCredentials, error) {
	data, err := sm.GetSecret(ctx, secret)
	if err != nil {
		return nil, err
	}

	var creds ShopifyCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secret: %w", err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("secret %s has no access_token", secret)
	}
	return &creds, nil
}

// InvalidateCache removes a secret from the cache
func (sm *GCPSecretManager) InvalidateCache(secret string) {
	sm.cacheMu.Lock()
	delete(sm.cache, sm.SecretName(secret))
	sm.cacheMu.Unlock()
}
