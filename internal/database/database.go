package database

import (
	"fmt"

	"coin-exchange-go/internal/config"
	"coin-exchange-go/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase creates a new database connection and performs auto-migration.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the schema and seeds the tracked coins from the config.
// Existing rows are kept; seeding only fills in coins that are missing, so
// restarting the service never wipes accumulated price history.
func Migrate(db *gorm.DB, cfg *config.Config) error {
	if err := db.AutoMigrate(&models.Coin{}, &models.PricePoint{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	for _, tracked := range cfg.Market.Coins {
		coin := models.Coin{
			ID:          tracked.ID,
			Name:        tracked.Name,
			Symbol:      tracked.Symbol,
			Category:    tracked.Category,
			Status:      "active",
			Description: tracked.Description,
		}
		if coin.Category == "" {
			coin.Category = "infrastructure"
		}
		if err := db.FirstOrCreate(&coin, models.Coin{ID: tracked.ID}).Error; err != nil {
			return fmt.Errorf("failed to seed coin '%s': %w", tracked.ID, err)
		}
	}

	return nil
}
