package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	sharedsecrets "github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"catalog-sync-service/internal/clients"
	"catalog-sync-service/internal/clients/shopify"
	"catalog-sync-service/internal/config"
	"catalog-sync-service/internal/database"
	"catalog-sync-service/internal/events"
	"catalog-sync-service/internal/handlers"
	"catalog-sync-service/internal/middleware"
	"catalog-sync-service/internal/repository"
	"catalog-sync-service/internal/secrets"
	"catalog-sync-service/internal/services"
)

const serviceName = "catalog-sync-service"

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	// Resolve the Shopify token from Secret Manager when the environment does not carry it
	if cfg.Shopify.AccessToken == "" && cfg.GCPProjectID != "" && cfg.ShopifyCredentialsSecret != "" {
		if err := loadShopifyCredentials(cfg, logger); err != nil {
			logger.WithError(err).Warn("Failed to load Shopify credentials from Secret Manager")
		}
	}

	client, err := shopify.NewClient(cfg.Shopify, shopify.WithLogger(logger))
	if err != nil {
		logger.WithError(err).Fatal("Invalid Shopify configuration")
	}

	db, err := database.Connect(cfg.DatabaseURL, cfg.Environment)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.WithError(err).Fatal("Auto-migration failed")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithError(err).Fatal("Failed to get sql.DB")
	}

	redisClient := connectRedis(cfg.RedisURL, logger)

	// Initialize event publisher only if NATS_URL is set
	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL, config.NormalizeShopDomain(cfg.Shopify.ShopDomain), logger)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect events publisher (continuing without events)")
			publisher = nil
		} else {
			logger.Info("Events publisher connected")
		}
	}

	// Repositories
	productRepo := repository.NewProductRepository(db)
	syncRepo := repository.NewSyncRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)

	// Services
	locker := services.NewProductLocker(redisClient, nil, logger)
	reconciler := services.NewReconciliationService(client, productRepo, locker, cfg.Shopify.DefaultLocationID, logger)
	media := services.NewMediaPipeline(client, logger)
	productService := services.NewProductService(client, media, reconciler, publisher, cfg.Shopify.DefaultLocationID, logger)
	catalogService := services.NewCatalogService(client, productRepo, redisClient, logger)
	retrier := clients.NewRetrier(clients.DefaultRetryConfig())
	exportService := services.NewExportService(client, retrier, logger)
	importService := services.NewImportService(productService, retrier, nil, logger)
	syncService := services.NewSyncService(syncRepo, productRepo, client, reconciler, cfg, logger)
	webhookService := services.NewWebhookService(client, webhookRepo, reconciler, redisClient, logger)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	syncService.RecoverOrphanedJobs(startupCtx)
	if n, err := webhookService.RetryPending(startupCtx, 100); err != nil {
		logger.WithError(err).Warn("Failed to replay pending webhooks")
	} else if n > 0 {
		logger.WithField("count", n).Info("Replayed pending webhooks")
	}
	cancelStartup()

	// Handlers
	healthHandler := handlers.NewHealthHandler(sqlDB)
	productHandler := handlers.NewProductHandler(productService, catalogService, reconciler, cfg.MaxUploadSize)
	mediaHandler := handlers.NewMediaHandler(media, catalogService, cfg.MaxUploadSize)
	catalogHandler := handlers.NewCatalogHandler(catalogService, exportService, importService)
	syncHandler := handlers.NewSyncHandler(syncService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.Environment == "production" {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig(serviceName))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig(serviceName))
	}
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize tracing (continuing without tracing)")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	httpMetrics := gosharedmw.InitGlobalMetrics("tesseract", "catalog_sync_service")
	router.Use(httpMetrics.Middleware())
	router.Use(tracing.GinMiddleware(serviceName))
	router.Use(gosharedmw.CompressionMiddleware())

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)
	router.GET("/metrics", gosharedmw.Handler())

	writeDeadline := middleware.Timeout(cfg.WriteTimeout)

	api := router.Group("/api/v1")
	{
		products := api.Group("/products")
		{
			products.POST("", writeDeadline, productHandler.Create)
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
			products.PUT("/:id", writeDeadline, productHandler.Update)
			products.DELETE("/:id", productHandler.Delete)
			products.POST("/:id/sync", productHandler.Sync)

			products.GET("/:id/media", mediaHandler.List)
			products.POST("/:id/media", writeDeadline, mediaHandler.Upload)
			products.POST("/:id/media/attach", mediaHandler.Attach)
			products.POST("/:id/media/delete", mediaHandler.Delete)
			products.POST("/:id/media/first", mediaHandler.SetFirst)
		}

		api.POST("/media/uploads", writeDeadline, mediaHandler.Stage)
		api.GET("/media/products", mediaHandler.ProductsMedia)
		api.GET("/collections/:id/media", mediaHandler.CollectionMedia)

		api.POST("/imports/products", catalogHandler.Import)
		api.GET("/catalog/export", catalogHandler.Export)
		api.GET("/remote/products", catalogHandler.ListRemote)
		api.GET("/remote/products/:id", catalogHandler.GetRemote)
		api.GET("/locations", catalogHandler.Locations)
		api.GET("/inventory-levels/:inventory_item_id", catalogHandler.InventoryLevels)
		api.GET("/orders", catalogHandler.ListOrders)
		api.GET("/orders/:id", catalogHandler.GetOrder)

		syncJobs := api.Group("/sync/jobs")
		{
			syncJobs.POST("", syncHandler.CreateJob)
			syncJobs.GET("", syncHandler.ListJobs)
			syncJobs.GET("/:id", syncHandler.GetJob)
			syncJobs.POST("/:id/cancel", syncHandler.CancelJob)
		}
	}

	// Webhook endpoint - public but with signature verification
	router.POST("/webhooks/shopify", webhookHandler.HandleShopifyWebhook)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.WithFields(logrus.Fields{
			"port":        cfg.Port,
			"environment": cfg.Environment,
			"shop":        config.NormalizeShopDomain(cfg.Shopify.ShopDomain),
		}).Info("Catalog sync service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-quit
	logger.Info("Shutting down catalog-sync-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
	}
	syncService.Shutdown(ctx)
	webhookService.Wait()
	publisher.Close()

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("Error shutting down tracer provider")
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	_ = sqlDB.Close()

	logger.Info("Catalog sync service stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable; locks, location
// caching and webhook dedupe then fall back to in-process behaviour.
func connectRedis(redisURL string, logger *logrus.Logger) *redis.Client {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.WithError(err).Warn("Failed to parse Redis URL (continuing without Redis)")
		return nil
	}
	if password := sharedsecrets.GetRedisPassword(); password != "" {
		opts.Password = password
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Failed to connect to Redis (continuing without Redis)")
		_ = client.Close()
		return nil
	}
	logger.Info("Redis connected")
	return client
}

func loadShopifyCredentials(cfg *config.Config, logger *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sm, err := secrets.NewGCPSecretManager(ctx, cfg.GCPProjectID)
	if err != nil {
		return err
	}
	defer sm.Close()

	creds, err := sm.GetShopifyCredentials(ctx, cfg.ShopifyCredentialsSecret)
	if err != nil {
		return err
	}
	creds.Apply(&cfg.Shopify)
	logger.WithField("secret", cfg.ShopifyCredentialsSecret).Info("Shopify credentials loaded from Secret Manager")
	return nil
}
