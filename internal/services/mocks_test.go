package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
)

type mockCatalogClient struct {
	mock.Mock
}

var _ clients.CatalogClient = (*mockCatalogClient)(nil)

func (m *mockCatalogClient) CreateProduct(ctx context.Context, payload *clients.ProductPayload) (*clients.Product, error) {
	args := m.Called(ctx, payload)
	if p := args.Get(0); p != nil {
		return p.(*clients.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) UpdateProduct(ctx context.Context, productID int64, payload *clients.ProductPayload) (*clients.Product, error) {
	args := m.Called(ctx, productID, payload)
	if p := args.Get(0); p != nil {
		return p.(*clients.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) GetProduct(ctx context.Context, productID int64) (*clients.Product, error) {
	args := m.Called(ctx, productID)
	if p := args.Get(0); p != nil {
		return p.(*clients.Product), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) DeleteProduct(ctx context.Context, productID int64) error {
	return m.Called(ctx, productID).Error(0)
}

func (m *mockCatalogClient) ListProducts(ctx context.Context, opts *clients.ListOptions) (*clients.ProductsResult, error) {
	args := m.Called(ctx, opts)
	if p := args.Get(0); p != nil {
		return p.(*clients.ProductsResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) ListLocations(ctx context.Context) ([]clients.Location, error) {
	args := m.Called(ctx)
	if p := args.Get(0); p != nil {
		return p.([]clients.Location), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) GetInventoryLevels(ctx context.Context, ids []int64) ([]clients.InventoryLevel, error) {
	args := m.Called(ctx, ids)
	if p := args.Get(0); p != nil {
		return p.([]clients.InventoryLevel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) SetInventoryLevel(ctx context.Context, input clients.SetInventoryInput) (*clients.InventoryLevel, error) {
	args := m.Called(ctx, input)
	if p := args.Get(0); p != nil {
		return p.(*clients.InventoryLevel), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) CreateStagedUpload(ctx context.Context, input clients.StagedUploadInput) (*clients.StagedTarget, error) {
	args := m.Called(ctx, input)
	if p := args.Get(0); p != nil {
		return p.(*clients.StagedTarget), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) TransferFile(ctx context.Context, target *clients.StagedTarget, file clients.UploadFile) error {
	return m.Called(ctx, target, file).Error(0)
}

func (m *mockCatalogClient) CreateProductMedia(ctx context.Context, productID int64, media []clients.MediaInput) ([]clients.CreatedMedia, error) {
	args := m.Called(ctx, productID, media)
	if p := args.Get(0); p != nil {
		return p.([]clients.CreatedMedia), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) DeleteProductMedia(ctx context.Context, productID int64, mediaIDs []string) ([]string, error) {
	args := m.Called(ctx, productID, mediaIDs)
	if p := args.Get(0); p != nil {
		return p.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) ReorderProductMedia(ctx context.Context, productID int64, moves []clients.MediaMove) error {
	return m.Called(ctx, productID, moves).Error(0)
}

func (m *mockCatalogClient) AppendVariantMedia(ctx context.Context, productID, variantID int64, mediaIDs []string) error {
	return m.Called(ctx, productID, variantID, mediaIDs).Error(0)
}

func (m *mockCatalogClient) GetProductMedia(ctx context.Context, productID int64) ([]clients.Media, error) {
	args := m.Called(ctx, productID)
	if p := args.Get(0); p != nil {
		return p.([]clients.Media), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) ListProductsMedia(ctx context.Context, first int, after string) (*clients.ProductMediaPage, error) {
	args := m.Called(ctx, first, after)
	if p := args.Get(0); p != nil {
		return p.(*clients.ProductMediaPage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) GetCollectionMedia(ctx context.Context, collectionID int64) (*clients.CollectionMedia, error) {
	args := m.Called(ctx, collectionID)
	if p := args.Get(0); p != nil {
		return p.(*clients.CollectionMedia), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) ListOrders(ctx context.Context, opts *clients.ListOptions) (*clients.OrdersResult, error) {
	args := m.Called(ctx, opts)
	if p := args.Get(0); p != nil {
		return p.(*clients.OrdersResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) GetOrder(ctx context.Context, orderID int64) (json.RawMessage, error) {
	args := m.Called(ctx, orderID)
	if p := args.Get(0); p != nil {
		return p.(json.RawMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogClient) VerifyWebhook(payload []byte, signature string) error {
	return m.Called(payload, signature).Error(0)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&models.LocalProduct{}, &models.LocalVariant{}, &models.CatalogSyncJob{}, &models.WebhookEvent{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func textFile(name, contentType, body string) MediaFile {
	return MediaFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// tshirt is the remote state after creating the two-variant T-Shirt.
func tshirt() *clients.Product {
	return &clients.Product{
		ID:     1001,
		GID:    "gid://shopify/Product/1001",
		Title:  "T-Shirt",
		Status: clients.ProductActive,
		Options: []clients.Option{
			{ID: 1, Name: "Opción 1", Position: 1, Values: []string{"Red", "Blue"}},
		},
		Variants: []clients.Variant{
			{ID: 2001, ProductID: 1001, SKU: "A", Price: 10, Option1: "Red", InventoryItemID: 3001, InventoryQuantity: 5},
			{ID: 2002, ProductID: 1001, SKU: "B", Price: 12, Option1: "Blue", InventoryItemID: 3002, InventoryQuantity: 3},
		},
	}
}

type harness struct {
	client     *mockCatalogClient
	db         *gorm.DB
	products   *repository.ProductRepository
	reconciler *ReconciliationService
	media      *MediaPipeline
	writer     *ProductService
}

func newHarness(t *testing.T, defaultLocation int64) *harness {
	t.Helper()
	client := new(mockCatalogClient)
	db := openTestDB(t)
	products := repository.NewProductRepository(db)
	log := quietLogger()
	reconciler := NewReconciliationService(client, products, NewProductLocker(nil, nil, log), defaultLocation, log)
	media := NewMediaPipeline(client, log)
	return &harness{
		client:     client,
		db:         db,
		products:   products,
		reconciler: reconciler,
		media:      media,
		writer:     NewProductService(client, media, reconciler, nil, defaultLocation, log),
	}
}
