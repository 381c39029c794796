package database

import (
	"fmt"
	"os"
	"path/filepath"

	"paper-trade-bot-go/internal/config"
	"paper-trade-bot-go/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the sqlite database, creating its directory if needed, and
// migrates the schema.
func NewDatabase(cfg config.Database) (*gorm.DB, error) {
	if dir := filepath.Dir(cfg.DSN); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows a single writer; one connection avoids "database is locked".
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the ledger tables. Existing rows are kept;
// durable state is what the ledger restores from.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Trade{},
		&models.Position{},
		&models.Account{},
		&models.EquitySnapshot{},
		&models.Candle{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}
