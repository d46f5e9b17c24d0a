package market

import (
	"context"
	"time"

	"coin-exchange-go/internal/coingecko"
	"coin-exchange-go/internal/config"
	"coin-exchange-go/internal/models"
	"coin-exchange-go/internal/store"
	"go.uber.org/zap"
)

// SimulationChecker reports whether a coin's price is currently owned by an
// active simulation. The refresher must never write over a simulated price.
type SimulationChecker interface {
	IsActive(coinID string) bool
}

// Refresher periodically pulls live market data for every tracked coin and
// persists it, skipping coins that are under simulation. It also runs the
// price-history retention cleanup once a day.
type Refresher struct {
	logger    *zap.Logger
	store     store.CoinStore
	prices    coingecko.Client
	sims      SimulationChecker
	interval  time.Duration
	retention time.Duration
	coinIDs   []string
}

// NewRefresher creates a market refresher for the configured coin list.
func NewRefresher(logger *zap.Logger, cfg *config.Market, coinStore store.CoinStore, prices coingecko.Client, sims SimulationChecker) *Refresher {
	interval := time.Duration(cfg.RefreshInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	retentionDays := cfg.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}

	ids := make([]string, 0, len(cfg.Coins))
	for _, coin := range cfg.Coins {
		ids = append(ids, coin.ID)
	}

	return &Refresher{
		logger:    logger,
		store:     coinStore,
		prices:    prices,
		sims:      sims,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		coinIDs:   ids,
	}
}

// Run refreshes immediately, then on every interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("Market refresher starting",
		zap.Duration("interval", r.interval),
		zap.Int("coins", len(r.coinIDs)),
	)

	if err := r.RefreshOnce(ctx); err != nil {
		r.logger.Error("Initial market refresh failed", zap.Error(err))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	cleanup := time.NewTicker(24 * time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Market refresher stopped")
			return
		case <-ticker.C:
			if err := r.RefreshOnce(ctx); err != nil {
				r.logger.Error("Market refresh failed", zap.Error(err))
			}
		case <-cleanup.C:
			r.cleanupHistory()
		}
	}
}

// RefreshOnce fetches a market snapshot for all tracked coins and writes the
// ones not under simulation.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	if len(r.coinIDs) == 0 {
		return nil
	}

	snapshot, err := r.prices.GetSimplePrices(ctx, r.coinIDs)
	if err != nil {
		return err
	}

	now := time.Now()
	updated, skipped := 0, 0

	for _, coinID := range r.coinIDs {
		data, ok := snapshot[coinID]
		if !ok {
			r.logger.Warn("No market data returned for coin", zap.String("coin", coinID))
			continue
		}

		// The simulated price trajectory owns this coin until the
		// simulation is gone.
		if r.sims.IsActive(coinID) {
			r.logger.Debug("Skipping price update, simulation active", zap.String("coin", coinID))
			skipped++
			continue
		}

		coin := models.Coin{
			ID:          coinID,
			Price:       data.USD,
			PriceChange: data.Change24h,
			MarketCap:   data.MarketCap,
			Volume:      data.Volume24h,
			UpdatedAt:   now,
		}
		if err := r.store.UpdateCoinMarket(&coin); err != nil {
			r.logger.Error("Failed to update coin market data",
				zap.String("coin", coinID), zap.Error(err))
			continue
		}

		point := models.PricePoint{
			Price:       data.USD,
			PriceChange: data.Change24h,
			MarketCap:   data.MarketCap,
			Volume:      data.Volume24h,
			Timestamp:   now,
		}
		if err := r.store.AppendPriceHistory(coinID, point); err != nil {
			r.logger.Error("Failed to append price history",
				zap.String("coin", coinID), zap.Error(err))
			continue
		}
		updated++
	}

	r.logger.Info("Market refresh complete",
		zap.Int("updated", updated),
		zap.Int("skipped", skipped),
	)
	return nil
}

func (r *Refresher) cleanupHistory() {
	cutoff := time.Now().Add(-r.retention)
	removed, err := r.store.CleanupPriceHistory(cutoff)
	if err != nil {
		r.logger.Error("Price history cleanup failed", zap.Error(err))
		return
	}
	r.logger.Info("Price history cleanup complete",
		zap.Int64("rows_removed", removed),
		zap.Time("cutoff", cutoff),
	)
}
