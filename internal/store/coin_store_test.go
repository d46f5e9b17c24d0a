package store

import (
	"testing"
	"time"

	"coin-exchange-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupStore(t *testing.T) CoinStore {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Coin{}, &models.PricePoint{})
	require.NoError(t, err)

	err = db.Create(&models.Coin{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Price: 43250, MarketCap: 850e9}).Error
	require.NoError(t, err)
	err = db.Create(&models.Coin{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Price: 2280, MarketCap: 270e9}).Error
	require.NoError(t, err)

	return NewCoinStore(db)
}

func TestGetCoin(t *testing.T) {
	s := setupStore(t)

	coin, err := s.GetCoin("bitcoin")
	require.NoError(t, err)
	require.NotNil(t, coin)
	assert.Equal(t, "BTC", coin.Symbol)
	assert.Equal(t, 43250.0, coin.Price)

	// Unknown ids are not an error.
	coin, err = s.GetCoin("doesnotexist")
	assert.NoError(t, err)
	assert.Nil(t, coin)
}

func TestListCoins_OrderedByMarketCap(t *testing.T) {
	s := setupStore(t)

	coins, err := s.ListCoins()
	require.NoError(t, err)
	require.Len(t, coins, 2)
	assert.Equal(t, "bitcoin", coins[0].ID)
	assert.Equal(t, "ethereum", coins[1].ID)
}

func TestUpdateCoinPrice(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	err := s.UpdateCoinPrice("bitcoin", 50000, now)
	require.NoError(t, err)

	coin, err := s.GetCoin("bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 50000.0, coin.Price)
	// Only the price moved; market data is untouched.
	assert.Equal(t, 850e9, coin.MarketCap)

	err = s.UpdateCoinPrice("doesnotexist", 50000, now)
	assert.Error(t, err)
}

func TestUpdateCoinMarket(t *testing.T) {
	s := setupStore(t)

	err := s.UpdateCoinMarket(&models.Coin{
		ID:          "ethereum",
		Price:       2400,
		PriceChange: 3.2,
		MarketCap:   288e9,
		Volume:      12e9,
		UpdatedAt:   time.Now(),
	})
	require.NoError(t, err)

	coin, err := s.GetCoin("ethereum")
	require.NoError(t, err)
	assert.Equal(t, 2400.0, coin.Price)
	assert.Equal(t, 3.2, coin.PriceChange)
	assert.Equal(t, 288e9, coin.MarketCap)
}

func TestPriceHistory_LimitAndOrder(t *testing.T) {
	s := setupStore(t)
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := s.AppendPriceHistory("bitcoin", models.PricePoint{
			Price:     43000 + float64(i)*100,
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	points, err := s.PriceHistory("bitcoin", 3)
	require.NoError(t, err)
	require.Len(t, points, 3)
	// Most recent first.
	assert.Equal(t, 43400.0, points[0].Price)
	assert.Equal(t, 43300.0, points[1].Price)
	assert.Equal(t, 43200.0, points[2].Price)
}

func TestCleanupPriceHistory(t *testing.T) {
	s := setupStore(t)
	now := time.Now()

	require.NoError(t, s.AppendPriceHistory("bitcoin", models.PricePoint{Price: 1, Timestamp: now.Add(-40 * 24 * time.Hour)}))
	require.NoError(t, s.AppendPriceHistory("bitcoin", models.PricePoint{Price: 2, Timestamp: now.Add(-35 * 24 * time.Hour)}))
	require.NoError(t, s.AppendPriceHistory("bitcoin", models.PricePoint{Price: 3, Timestamp: now.Add(-time.Hour)}))

	removed, err := s.CleanupPriceHistory(now.Add(-30 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	points, err := s.PriceHistory("bitcoin", 10)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 3.0, points[0].Price)
}
