package store

import (
	"errors"
	"fmt"
	"time"

	"coin-exchange-go/internal/models"
	"gorm.io/gorm"
)

// CoinStore is the persistence contract shared by the simulation engine,
// the market refresher and the HTTP API.
type CoinStore interface {
	// GetCoin returns the coin for the given id, or (nil, nil) when unknown.
	GetCoin(id string) (*models.Coin, error)

	// ListCoins returns all tracked coins ordered by market cap.
	ListCoins() ([]models.Coin, error)

	// UpdateCoinPrice overwrites only the price and update timestamp of a coin.
	UpdateCoinPrice(id string, price float64, updatedAt time.Time) error

	// UpdateCoinMarket overwrites the full market snapshot of a coin
	// (price, 24h change, market cap, volume).
	UpdateCoinMarket(coin *models.Coin) error

	// AppendPriceHistory inserts one immutable price history row.
	AppendPriceHistory(id string, point models.PricePoint) error

	// PriceHistory returns up to limit history rows for a coin,
	// most recent first.
	PriceHistory(id string, limit int) ([]models.PricePoint, error)

	// CleanupPriceHistory deletes history rows older than the cutoff and
	// returns the number of rows removed.
	CleanupPriceHistory(olderThan time.Time) (int64, error)
}

// gormStore implements CoinStore on top of gorm.
type gormStore struct {
	db *gorm.DB
}

var _ CoinStore = (*gormStore)(nil)

// NewCoinStore creates a CoinStore backed by the given database.
func NewCoinStore(db *gorm.DB) CoinStore {
	return &gormStore{db: db}
}

func (s *gormStore) GetCoin(id string) (*models.Coin, error) {
	var coin models.Coin
	err := s.db.First(&coin, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coin '%s': %w", id, err)
	}
	return &coin, nil
}

func (s *gormStore) ListCoins() ([]models.Coin, error) {
	var coins []models.Coin
	if err := s.db.Order("market_cap desc").Find(&coins).Error; err != nil {
		return nil, fmt.Errorf("failed to list coins: %w", err)
	}
	return coins, nil
}

func (s *gormStore) UpdateCoinPrice(id string, price float64, updatedAt time.Time) error {
	res := s.db.Model(&models.Coin{}).Where("id = ?", id).Updates(map[string]interface{}{
		"price":      price,
		"updated_at": updatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update price for coin '%s': %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no coin '%s' to update", id)
	}
	return nil
}

func (s *gormStore) UpdateCoinMarket(coin *models.Coin) error {
	res := s.db.Model(&models.Coin{}).Where("id = ?", coin.ID).Updates(map[string]interface{}{
		"price":        coin.Price,
		"price_change": coin.PriceChange,
		"market_cap":   coin.MarketCap,
		"volume":       coin.Volume,
		"updated_at":   coin.UpdatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update market data for coin '%s': %w", coin.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no coin '%s' to update", coin.ID)
	}
	return nil
}

func (s *gormStore) AppendPriceHistory(id string, point models.PricePoint) error {
	point.ID = 0
	point.CoinID = id
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now()
	}
	if err := s.db.Create(&point).Error; err != nil {
		return fmt.Errorf("failed to append price history for coin '%s': %w", id, err)
	}
	return nil
}

func (s *gormStore) PriceHistory(id string, limit int) ([]models.PricePoint, error) {
	if limit <= 0 {
		limit = 100
	}
	var points []models.PricePoint
	err := s.db.Where("coin_id = ?", id).
		Order("timestamp desc").
		Limit(limit).
		Find(&points).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get price history for coin '%s': %w", id, err)
	}
	return points, nil
}

func (s *gormStore) CleanupPriceHistory(olderThan time.Time) (int64, error) {
	res := s.db.Where("timestamp < ?", olderThan).Delete(&models.PricePoint{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean up price history: %w", res.Error)
	}
	return res.RowsAffected, nil
}
