package database

import (
	"testing"

	"coin-exchange-go/internal/config"
	"coin-exchange-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		Market: config.Market{
			Coins: []config.TrackedCoin{
				{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Category: "infrastructure"},
				{ID: "dogecoin", Name: "Dogecoin", Symbol: "DOGE", Category: "meme"},
			},
		},
	}
}

func TestMigrate_SeedsTrackedCoins(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(db, testConfig()))

	var coins []models.Coin
	require.NoError(t, db.Find(&coins).Error)
	assert.Len(t, coins, 2)

	var doge models.Coin
	require.NoError(t, db.First(&doge, "id = ?", "dogecoin").Error)
	assert.Equal(t, "DOGE", doge.Symbol)
	assert.Equal(t, "meme", doge.Category)
	assert.Equal(t, "active", doge.Status)
}

func TestMigrate_KeepsExistingData(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := testConfig()
	require.NoError(t, Migrate(db, cfg))

	// Simulate accumulated state between restarts.
	require.NoError(t, db.Model(&models.Coin{}).Where("id = ?", "bitcoin").Update("price", 43250).Error)
	require.NoError(t, db.Create(&models.PricePoint{CoinID: "bitcoin", Price: 43250}).Error)

	require.NoError(t, Migrate(db, cfg))

	var btc models.Coin
	require.NoError(t, db.First(&btc, "id = ?", "bitcoin").Error)
	assert.Equal(t, 43250.0, btc.Price)

	var count int64
	require.NoError(t, db.Model(&models.PricePoint{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
