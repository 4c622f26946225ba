package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	secretmanagerpb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-sync-service/internal/config"
)

type mockAccessor struct {
	mock.Mock
}

func (m *mockAccessor) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	args := m.Called(req.GetName())
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(args.String(0))},
	}, args.Error(1)
}

func TestGetShopifyCredentialsCachesPayload(t *testing.T) {
	client := new(mockAccessor)
	client.On("AccessSecretVersion", "projects/p1/secrets/shopify/versions/latest").
		Return(`{"store":"demo","access_token":"shpat_x","webhook_secret":"whsec","location_id":900}`, nil).Once()

	sm := newManager(client, "p1", time.Minute)

	creds, err := sm.GetShopifyCredentials(context.Background(), "shopify")
	require.NoError(t, err)
	assert.Equal(t, "shpat_x", creds.AccessToken)

	_, err = sm.GetShopifyCredentials(context.Background(), "projects/p1/secrets/shopify")
	require.NoError(t, err)
	client.AssertNumberOfCalls(t, "AccessSecretVersion", 1)
}

func TestInvalidateCacheRefetches(t *testing.T) {
	client := new(mockAccessor)
	client.On("AccessSecretVersion", mock.Anything).Return(`{"access_token":"a"}`, nil)

	sm := newManager(client, "p1", time.Minute)
	_, err := sm.GetSecret(context.Background(), "shopify")
	require.NoError(t, err)
	sm.InvalidateCache("shopify")
	_, err = sm.GetSecret(context.Background(), "shopify")
	require.NoError(t, err)

	client.AssertNumberOfCalls(t, "AccessSecretVersion", 2)
}

func TestGetShopifyCredentialsErrors(t *testing.T) {
	client := new(mockAccessor)
	client.On("AccessSecretVersion", "projects/p1/secrets/missing/versions/latest").Return(nil, errors.New("NotFound"))
	client.On("AccessSecretVersion", "projects/p1/secrets/empty/versions/latest").Return(`{"store":"demo"}`, nil)
	client.On("AccessSecretVersion", "projects/p1/secrets/garbage/versions/latest").Return(`not json`, nil)

	sm := newManager(client, "p1", time.Minute)
	for _, name := range []string{"missing", "empty", "garbage"} {
		_, err := sm.GetShopifyCredentials(context.Background(), name)
		assert.Error(t, err, name)
	}
}

func TestApplyKeepsEnvironmentValues(t *testing.T) {
	cfg := config.ShopifyConfig{ShopDomain: "env-store"}
	creds := &ShopifyCredentials{Store: "secret-store", AccessToken: "shpat_x", WebhookSecret: "whsec", LocationID: 900}

	creds.Apply(&cfg)

	assert.Equal(t, "env-store", cfg.ShopDomain)
	assert.Equal(t, "shpat_x", cfg.AccessToken)
	assert.Equal(t, "whsec", cfg.WebhookSecret)
	assert.Equal(t, int64(900), cfg.DefaultLocationID)
}
