package market

import (
	"context"
	"errors"
	"testing"

	"coin-exchange-go/internal/coingecko"
	"coin-exchange-go/internal/config"
	"coin-exchange-go/internal/models"
	"coin-exchange-go/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// MockPriceClient is a mock implementation of the coingecko.Client interface.
type MockPriceClient struct {
	mock.Mock
}

func (m *MockPriceClient) GetSimplePrices(ctx context.Context, ids []string) (map[string]coingecko.SimplePrice, error) {
	args := m.Called(ids)
	return args.Get(0).(map[string]coingecko.SimplePrice), args.Error(1)
}

func (m *MockPriceClient) GetRealPrice(ctx context.Context, id string) (float64, error) {
	args := m.Called(id)
	return args.Get(0).(float64), args.Error(1)
}

// stubChecker marks a fixed set of coins as under simulation.
type stubChecker struct {
	active map[string]bool
}

func (s *stubChecker) IsActive(coinID string) bool {
	return s.active[coinID]
}

func setupRefresher(t *testing.T, checker SimulationChecker) (*Refresher, store.CoinStore, *MockPriceClient) {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Coin{}, &models.PricePoint{})
	require.NoError(t, err)

	err = db.Create(&models.Coin{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC", Price: 43250}).Error
	require.NoError(t, err)
	err = db.Create(&models.Coin{ID: "ethereum", Name: "Ethereum", Symbol: "ETH", Price: 2280}).Error
	require.NoError(t, err)

	coinStore := store.NewCoinStore(db)
	mockClient := new(MockPriceClient)

	cfg := &config.Market{
		RefreshInterval: 300,
		RetentionDays:   30,
		Coins: []config.TrackedCoin{
			{ID: "bitcoin", Name: "Bitcoin", Symbol: "BTC"},
			{ID: "ethereum", Name: "Ethereum", Symbol: "ETH"},
		},
	}
	r := NewRefresher(zap.NewNop(), cfg, coinStore, mockClient, checker)

	return r, coinStore, mockClient
}

func TestRefreshOnce_WritesAllCoins(t *testing.T) {
	r, coinStore, mockClient := setupRefresher(t, &stubChecker{active: map[string]bool{}})

	mockClient.On("GetSimplePrices", []string{"bitcoin", "ethereum"}).Return(map[string]coingecko.SimplePrice{
		"bitcoin":  {USD: 44000, Change24h: 1.7, MarketCap: 860e9, Volume24h: 25e9},
		"ethereum": {USD: 2300, Change24h: 0.9, MarketCap: 276e9, Volume24h: 12e9},
	}, nil)

	err := r.RefreshOnce(context.Background())
	require.NoError(t, err)

	btc, err := coinStore.GetCoin("bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 44000.0, btc.Price)
	assert.Equal(t, 1.7, btc.PriceChange)

	eth, err := coinStore.GetCoin("ethereum")
	require.NoError(t, err)
	assert.Equal(t, 2300.0, eth.Price)

	points, err := coinStore.PriceHistory("bitcoin", 10)
	require.NoError(t, err)
	assert.Len(t, points, 1)

	mockClient.AssertExpectations(t)
}

func TestRefreshOnce_SkipsSimulatedCoins(t *testing.T) {
	checker := &stubChecker{active: map[string]bool{"bitcoin": true}}
	r, coinStore, mockClient := setupRefresher(t, checker)

	mockClient.On("GetSimplePrices", mock.Anything).Return(map[string]coingecko.SimplePrice{
		"bitcoin":  {USD: 44000},
		"ethereum": {USD: 2300},
	}, nil)

	err := r.RefreshOnce(context.Background())
	require.NoError(t, err)

	// The simulated coin keeps its price; no history row is written for it.
	btc, err := coinStore.GetCoin("bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, btc.Price)

	points, err := coinStore.PriceHistory("bitcoin", 10)
	require.NoError(t, err)
	assert.Empty(t, points)

	eth, err := coinStore.GetCoin("ethereum")
	require.NoError(t, err)
	assert.Equal(t, 2300.0, eth.Price)
}

func TestRefreshOnce_FetchError(t *testing.T) {
	r, coinStore, mockClient := setupRefresher(t, &stubChecker{active: map[string]bool{}})

	mockClient.On("GetSimplePrices", mock.Anything).Return(map[string]coingecko.SimplePrice{}, errors.New("API down"))

	err := r.RefreshOnce(context.Background())
	assert.Error(t, err)

	// Nothing was written.
	btc, err := coinStore.GetCoin("bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, btc.Price)
}

func TestRefreshOnce_MissingCoinInResponse(t *testing.T) {
	r, coinStore, mockClient := setupRefresher(t, &stubChecker{active: map[string]bool{}})

	mockClient.On("GetSimplePrices", mock.Anything).Return(map[string]coingecko.SimplePrice{
		"ethereum": {USD: 2300},
	}, nil)

	err := r.RefreshOnce(context.Background())
	require.NoError(t, err)

	// The coin absent from the response is left alone, the other is updated.
	btc, err := coinStore.GetCoin("bitcoin")
	require.NoError(t, err)
	assert.Equal(t, 43250.0, btc.Price)

	eth, err := coinStore.GetCoin("ethereum")
	require.NoError(t, err)
	assert.Equal(t, 2300.0, eth.Price)
}
