package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/models"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/services"
)

// MockCatalogReader is a mock implementation of CatalogReader
type MockCatalogReader struct {
	mock.Mock
}

func (m *MockCatalogReader) ListRemote(ctx context.Context, opts *clients.ListOptions) (*clients.ProductsResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.ProductsResult), args.Error(1)
}

func (m *MockCatalogReader) GetRemote(ctx context.Context, id int64) (*clients.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Product), args.Error(1)
}

func (m *MockCatalogReader) FindByHandle(ctx context.Context, handle string) (*clients.Product, error) {
	args := m.Called(ctx, handle)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.Product), args.Error(1)
}

func (m *MockCatalogReader) Locations(ctx context.Context) ([]clients.Location, error) {
	args := m.Called(ctx)
	return args.Get(0).([]clients.Location), args.Error(1)
}

func (m *MockCatalogReader) InventoryLevels(ctx context.Context, inventoryItemID int64) ([]services.InventoryLevelView, error) {
	args := m.Called(ctx, inventoryItemID)
	return args.Get(0).([]services.InventoryLevelView), args.Error(1)
}

func (m *MockCatalogReader) ListOrders(ctx context.Context, opts *clients.ListOptions) (*clients.OrdersResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*clients.OrdersResult), args.Error(1)
}

func (m *MockCatalogReader) GetOrder(ctx context.Context, id int64) (json.RawMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

// MockExporter is a mock implementation of CatalogExporter
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) Collect(ctx context.Context) ([]clients.Product, error) {
	args := m.Called(ctx)
	return args.Get(0).([]clients.Product), args.Error(1)
}

func (m *MockExporter) WriteXLSX(products []clients.Product, w io.Writer) error {
	args := m.Called(products, w)
	if err := args.Error(0); err != nil {
		return err
	}
	_, err := w.Write([]byte("xlsx"))
	return err
}

// MockImporter is a mock implementation of ProductImporter
type MockImporter struct {
	mock.Mock
}

func (m *MockImporter) Import(ctx context.Context, items []services.ProductInput) ([]services.ItemOutcome, error) {
	args := m.Called(ctx, items)
	return args.Get(0).([]services.ItemOutcome), args.Error(1)
}

func setupCatalogRouter() (*gin.Engine, *MockCatalogReader, *MockExporter, *MockImporter) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	reader := new(MockCatalogReader)
	exporter := new(MockExporter)
	importer := new(MockImporter)
	h := NewCatalogHandler(reader, exporter, importer)
	r.GET("/remote/products", h.ListRemote)
	r.GET("/remote/products/:id", h.GetRemote)
	r.GET("/remote/orders/:id", h.GetOrder)
	r.GET("/inventory/:inventory_item_id", h.InventoryLevels)
	r.GET("/export", h.Export)
	r.POST("/import", h.Import)
	return r, reader, exporter, importer
}

func TestListRemoteByHandle(t *testing.T) {
	r, reader, _, _ := setupCatalogRouter()
	reader.On("FindByHandle", mock.Anything, "t-shirt").Return(&clients.Product{ID: 1001, Handle: "t-shirt"}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/remote/products?handle=t-shirt", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, float64(1001), data["id"])
	reader.AssertNotCalled(t, "ListRemote", mock.Anything, mock.Anything)
}

func TestListRemotePage(t *testing.T) {
	r, reader, _, _ := setupCatalogRouter()
	reader.On("ListRemote", mock.Anything, &clients.ListOptions{Limit: 5, Cursor: "abc", Status: "active"}).
		Return(&clients.ProductsResult{Products: []clients.Product{{ID: 1}}, NextCursor: "def", HasMore: true}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/remote/products?limit=5&page_info=abc&status=active", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["hasMore"])
	assert.Equal(t, "def", body["nextPageInfo"])
}

func TestGetRemoteUpstreamFailure(t *testing.T) {
	r, reader, _, _ := setupCatalogRouter()
	reader.On("GetRemote", mock.Anything, int64(9)).
		Return(nil, &clients.RemoteHTTPError{Method: "GET", Path: "products/9.json", StatusCode: http.StatusServiceUnavailable})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/remote/products/9", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, ErrCodeRemote, errorCode(t, w))
}

func TestGetOrderReturnsRawDocument(t *testing.T) {
	r, reader, _, _ := setupCatalogRouter()
	reader.On("GetOrder", mock.Anything, int64(450)).Return(json.RawMessage(`{"id":450,"name":"#1001"}`), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/remote/orders/450", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "#1001", data["name"])
}

func TestInventoryLevelsHandler(t *testing.T) {
	r, reader, _, _ := setupCatalogRouter()
	reader.On("InventoryLevels", mock.Anything, int64(3001)).Return([]services.InventoryLevelView{
		{InventoryItemID: 3001, LocationID: 900, LocationName: "Warehouse", Available: 4},
	}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/inventory/3001", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	levels := decodeBody(t, w)["data"].([]interface{})
	require.Len(t, levels, 1)
	assert.Equal(t, "Warehouse", levels[0].(map[string]interface{})["locationName"])
}

func TestExportXLSX(t *testing.T) {
	r, _, exporter, _ := setupCatalogRouter()
	products := []clients.Product{{ID: 1, Title: "Mug"}}
	exporter.On("Collect", mock.Anything).Return(products, nil)
	exporter.On("WriteXLSX", products, mock.Anything).Return(nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export?format=xlsx", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=catalog_")
	assert.Equal(t, "xlsx", w.Body.String())
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	r, _, exporter, _ := setupCatalogRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export?format=csv", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	exporter.AssertNotCalled(t, "Collect", mock.Anything)
}

func TestImportJSONPartialFailure(t *testing.T) {
	r, _, _, importer := setupCatalogRouter()
	outcomes := []services.ItemOutcome{
		{Index: 0, Title: "A", ProductID: 1, Status: services.ItemSucceeded},
		{Index: 1, Title: "B", Status: services.ItemFailed, Error: "rate limited"},
	}
	importer.On("Import", mock.Anything, mock.MatchedBy(func(items []services.ProductInput) bool {
		return len(items) == 2 && items[1].Title == "B"
	})).Return(outcomes, &services.PartialFailure{Items: outcomes})

	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewBufferString(`[{"title":"A","price":1},{"title":"B","price":2}]`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Len(t, body["data"], 2)
}

func TestImportRejectsNonArrayBody(t *testing.T) {
	r, _, _, importer := setupCatalogRouter()

	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewBufferString(`{"title":"A"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	importer.AssertNotCalled(t, "Import", mock.Anything, mock.Anything)
}

func TestImportRejectsGarbageWorkbook(t *testing.T) {
	r, _, _, importer := setupCatalogRouter()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	addFile(t, mw, "file", "catalog.xlsx", "application/octet-stream", []byte("not a workbook"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	importer.AssertNotCalled(t, "Import", mock.Anything, mock.Anything)
}

func TestImportWorkbookRoundTrip(t *testing.T) {
	r, _, _, importer := setupCatalogRouter()

	var workbook bytes.Buffer
	require.NoError(t, services.NewExportService(nil, nil, logrus.New()).WriteXLSX([]clients.Product{{
		ID:       1,
		Title:    "Mug",
		Status:   clients.ProductActive,
		Variants: []clients.Variant{{ID: 11, Price: 9.5, SKU: "MUG-1", InventoryQuantity: 3}},
	}}, &workbook))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	addFile(t, mw, "file", "catalog.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook.Bytes())
	require.NoError(t, mw.Close())

	importer.On("Import", mock.Anything, mock.MatchedBy(func(items []services.ProductInput) bool {
		return len(items) == 1 && items[0].Title == "Mug"
	})).Return([]services.ItemOutcome{{Index: 0, Title: "Mug", ProductID: 5, Status: services.ItemSucceeded}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	importer.AssertExpectations(t)
}

// MockSyncJobs is a mock implementation of SyncJobs
type MockSyncJobs struct {
	mock.Mock
}

func (m *MockSyncJobs) CreateJob(ctx context.Context, req *services.CreateJobRequest) (*models.CatalogSyncJob, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogSyncJob), args.Error(1)
}

func (m *MockSyncJobs) GetJob(ctx context.Context, id uuid.UUID) (*models.CatalogSyncJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CatalogSyncJob), args.Error(1)
}

func (m *MockSyncJobs) ListJobs(ctx context.Context, opts repository.SyncListOptions) ([]models.CatalogSyncJob, int64, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).([]models.CatalogSyncJob), args.Get(1).(int64), args.Error(2)
}

func (m *MockSyncJobs) CancelJob(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func setupSyncRouter() (*gin.Engine, *MockSyncJobs) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	jobs := new(MockSyncJobs)
	h := NewSyncHandler(jobs)
	r.GET("/sync/jobs", h.ListJobs)
	r.POST("/sync/jobs", h.CreateJob)
	r.GET("/sync/jobs/:id", h.GetJob)
	r.POST("/sync/jobs/:id/cancel", h.CancelJob)
	return r, jobs
}

func TestCreateSyncJobWithEmptyBody(t *testing.T) {
	r, jobs := setupSyncRouter()
	id := uuid.New()
	jobs.On("CreateJob", mock.Anything, &services.CreateJobRequest{}).
		Return(&models.CatalogSyncJob{ID: id, JobType: models.JobTypeFullReconcile, Status: models.SyncStatusPending}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/jobs", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, id.String(), data["id"])
}

func TestCreateSyncJobConflict(t *testing.T) {
	r, jobs := setupSyncRouter()
	jobs.On("CreateJob", mock.Anything, mock.Anything).Return(nil, services.ErrSyncInProgress)

	req := httptest.NewRequest(http.MethodPost, "/sync/jobs", bytes.NewBufferString(`{"jobType":"FULL_RECONCILE"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrCodeConflict, errorCode(t, w))
}

func TestListSyncJobsFiltersByStatus(t *testing.T) {
	r, jobs := setupSyncRouter()
	jobs.On("ListJobs", mock.Anything, repository.SyncListOptions{Status: models.SyncStatusFailed, Limit: 20, Offset: 0}).
		Return([]models.CatalogSyncJob{}, int64(0), nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs?status=failed", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	jobs.AssertExpectations(t)
}

func TestGetSyncJobBadID(t *testing.T) {
	r, jobs := setupSyncRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/jobs/not-a-uuid", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	jobs.AssertNotCalled(t, "GetJob", mock.Anything, mock.Anything)
}

func TestCancelSyncJobNotRunning(t *testing.T) {
	r, jobs := setupSyncRouter()
	id := uuid.New()
	jobs.On("CancelJob", mock.Anything, id).Return(fmt.Errorf("cancel %s: %w", id, services.ErrJobNotRunning))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/jobs/"+id.String()+"/cancel", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

// MockWebhookProcessor is a mock implementation of WebhookProcessor
type MockWebhookProcessor struct {
	mock.Mock
}

func (m *MockWebhookProcessor) ProcessWebhook(ctx context.Context, d services.WebhookDelivery) (*models.WebhookEvent, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WebhookEvent), args.Error(1)
}

func webhookRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/shopify", bytes.NewBufferString(body))
	req.Header.Set("X-Shopify-Topic", "products/update")
	req.Header.Set("X-Shopify-Shop-Domain", "demo.myshopify.com")
	req.Header.Set("X-Shopify-Webhook-Id", "evt-1")
	req.Header.Set("X-Shopify-Hmac-Sha256", "c2lnbmF0dXJl")
	return req
}

func TestWebhookHandlerPassesHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	processor := new(MockWebhookProcessor)
	r.POST("/webhooks/shopify", NewWebhookHandler(processor).HandleShopifyWebhook)

	processor.On("ProcessWebhook", mock.Anything, services.WebhookDelivery{
		Topic:      "products/update",
		ShopDomain: "demo.myshopify.com",
		EventID:    "evt-1",
		Signature:  "c2lnbmF0dXJl",
		Payload:    []byte(`{"id":1001}`),
	}).Return(&models.WebhookEvent{EventID: "evt-1"}, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, webhookRequest(`{"id":1001}`))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "evt-1", data["eventId"])
}

func TestWebhookHandlerAcknowledgesDuplicates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	processor := new(MockWebhookProcessor)
	r.POST("/webhooks/shopify", NewWebhookHandler(processor).HandleShopifyWebhook)
	processor.On("ProcessWebhook", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateWebhook)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, webhookRequest(`{"id":1001}`))

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, true, data["duplicate"])
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	processor := new(MockWebhookProcessor)
	r.POST("/webhooks/shopify", NewWebhookHandler(processor).HandleShopifyWebhook)
	processor.On("ProcessWebhook", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: %v", services.ErrUnverifiedWebhook, errors.New("hmac mismatch")))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, webhookRequest(`{"id":1001}`))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrCodeUnauthorized, errorCode(t, w))
}
