package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"catalog-sync-service/internal/models"
)

// Connect opens the Postgres connection used for the local catalog mirror
func Connect(databaseURL, environment string) (*gorm.DB, error) {
	logLevel := logger.Info
	if environment == "production" {
		logLevel = logger.Error
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

// AutoMigrate keeps the mirror and job tables up to date
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running auto-migrations...")
	return db.AutoMigrate(
		&models.LocalProduct{},
		&models.LocalVariant{},
		&models.CatalogSyncJob{},
		&models.WebhookEvent{},
	)
}
