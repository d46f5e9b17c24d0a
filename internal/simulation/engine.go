package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"coin-exchange-go/internal/coingecko"
	"coin-exchange-go/internal/config"
	"coin-exchange-go/internal/models"
	"coin-exchange-go/internal/store"
	"go.uber.org/zap"
)

// Validation and lifecycle errors surfaced to the request boundary.
var (
	ErrCoinNotFound       = errors.New("coin not found")
	ErrAlreadyActive      = errors.New("simulation already active for this coin")
	ErrInvalidTargetPrice = errors.New("target price must be greater than 0")
	ErrInvalidDuration    = errors.New("duration must be between 1 and 10080 minutes")
	ErrNotActive          = errors.New("no active simulation for this coin")
)

const (
	minDurationMinutes = 1
	maxDurationMinutes = 10080 // one week

	// reconcileTimeout bounds the final reference-price fetch; it covers the
	// client's own per-request timeout plus its retry backoff.
	reconcileTimeout = 2 * time.Minute
)

// Engine drives per-coin price simulations. Each active simulation owns one
// recurring ticker goroutine; all state transitions go through a single mutex
// so start, stop and ticks are serialized and a stopped simulation can never
// receive a stale tick.
type Engine struct {
	logger       *zap.Logger
	store        store.CoinStore
	prices       coingecko.Client
	tickInterval time.Duration
	fallDuration time.Duration

	// now is swapped out in tests to drive simulated time.
	now func() time.Time

	mu      sync.Mutex
	sims    map[string]*Simulation
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewEngine creates a simulation engine.
func NewEngine(logger *zap.Logger, cfg *config.Simulation, coinStore store.CoinStore, prices coingecko.Client) *Engine {
	tickInterval := time.Duration(cfg.TickInterval) * time.Second
	if tickInterval <= 0 {
		tickInterval = 5 * time.Minute
	}
	fallDuration := time.Duration(cfg.FallDuration) * time.Minute
	if fallDuration <= 0 {
		fallDuration = 30 * time.Minute
	}

	return &Engine{
		logger:       logger,
		store:        coinStore,
		prices:       prices,
		tickInterval: tickInterval,
		fallDuration: fallDuration,
		now:          time.Now,
		sims:         make(map[string]*Simulation),
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Start validates the request and registers a new simulation for the coin.
// The first price update happens synchronously before Start returns, so the
// effect is observable immediately rather than after the first tick interval.
func (e *Engine) Start(ctx context.Context, coinID string, targetPrice float64, durationMinutes int) (*Simulation, error) {
	if targetPrice <= 0 {
		return nil, ErrInvalidTargetPrice
	}
	if durationMinutes < minDurationMinutes || durationMinutes > maxDurationMinutes {
		return nil, ErrInvalidDuration
	}

	coin, err := e.store.GetCoin(coinID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up coin '%s': %w", coinID, err)
	}
	if coin == nil {
		return nil, ErrCoinNotFound
	}

	e.mu.Lock()
	if _, exists := e.sims[coinID]; exists {
		e.mu.Unlock()
		return nil, ErrAlreadyActive
	}

	now := e.now()
	sim := &Simulation{
		CoinID:               coinID,
		StartPrice:           coin.Price,
		TargetPrice:          targetPrice,
		StartTime:            now,
		EndTime:              now.Add(time.Duration(durationMinutes) * time.Minute),
		PriceChangePerMinute: (targetPrice - coin.Price) / float64(durationMinutes),
		Phase:                PhaseRising,
		Active:               true,
	}
	e.sims[coinID] = sim

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancels[coinID] = cancel
	e.wg.Add(1)
	go e.run(runCtx, coinID)

	snapshot := *sim
	e.mu.Unlock()

	e.logger.Info("Simulation started",
		zap.String("coin", coinID),
		zap.Float64("start_price", snapshot.StartPrice),
		zap.Float64("target_price", targetPrice),
		zap.Int("duration_minutes", durationMinutes),
	)

	e.tick(ctx, coinID)

	return &snapshot, nil
}

// Stop cancels the coin's ticker, removes the simulation and reconciles the
// coin back to the reference price. Returns ErrNotActive when nothing is
// running for the coin. Reconciliation runs on a detached context so a client
// disconnect on the request path cannot leave the coin un-restored.
func (e *Engine) Stop(ctx context.Context, coinID string) error {
	e.mu.Lock()
	sim, ok := e.sims[coinID]
	if !ok {
		e.mu.Unlock()
		return ErrNotActive
	}
	e.removeLocked(coinID, sim)
	e.mu.Unlock()

	e.reconcile(coinID)
	return nil
}

// Status returns a read-only snapshot of the coin's simulation, or nil when
// none is active. It never mutates engine state.
func (e *Engine) Status(coinID string) *Simulation {
	e.mu.Lock()
	defer e.mu.Unlock()

	sim, ok := e.sims[coinID]
	if !ok {
		return nil
	}
	snapshot := *sim
	return &snapshot
}

// IsActive reports whether the coin currently has a simulation. The market
// refresher consults this before every write so an unrelated price refresh
// never clobbers a simulated price.
func (e *Engine) IsActive(coinID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.sims[coinID]
	return ok
}

// Shutdown cancels every running simulation without reconciliation writes and
// waits for the ticker goroutines to exit.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	for coinID, cancel := range e.cancels {
		cancel()
		delete(e.cancels, coinID)
		delete(e.sims, coinID)
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.logger.Info("Simulation engine shut down")
}

// run is the per-coin ticker loop.
func (e *Engine) run(ctx context.Context, coinID string) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx, coinID)
		}
	}
}

// tick recomputes the coin's simulated price and persists it. A tick that hits
// a transient store or fetch error is abandoned; the next scheduled tick
// retries naturally.
func (e *Engine) tick(ctx context.Context, coinID string) {
	e.mu.Lock()

	sim, ok := e.sims[coinID]
	if !ok || !sim.Active {
		// Covers the race where a stop landed between schedule and fire.
		e.mu.Unlock()
		return
	}

	now := e.now()
	var newPrice float64

	switch sim.Phase {
	case PhaseRising:
		elapsedMinutes := now.Sub(sim.StartTime).Minutes()
		newPrice = sim.StartPrice + sim.PriceChangePerMinute*elapsedMinutes

		// Sign-aware target check: the slope is negative when simulating a drop.
		if (sim.PriceChangePerMinute > 0 && newPrice >= sim.TargetPrice) ||
			(sim.PriceChangePerMinute < 0 && newPrice <= sim.TargetPrice) {
			newPrice = sim.TargetPrice
			sim.Phase = PhaseFalling
			sim.FallStartTime = now
			sim.FallStartPrice = sim.TargetPrice

			e.logger.Info("Target price reached, entering falling phase",
				zap.String("coin", coinID),
				zap.Float64("target_price", sim.TargetPrice),
			)
		}

	case PhaseFalling:
		fallElapsed := now.Sub(sim.FallStartTime)
		if fallElapsed >= e.fallDuration {
			e.logger.Info("Falling phase complete", zap.String("coin", coinID))
			e.removeLocked(coinID, sim)
			e.mu.Unlock()
			e.reconcile(coinID)
			return
		}

		// The reference fetch is an external HTTP call; release the lock so
		// one slow response cannot stall other coins or the API surface.
		fallStartPrice := sim.FallStartPrice
		e.mu.Unlock()
		realPrice, err := e.prices.GetRealPrice(ctx, coinID)
		e.mu.Lock()

		// Revalidate: a stop may have landed while the fetch was in flight.
		if current, stillThere := e.sims[coinID]; !stillThere || current != sim {
			e.mu.Unlock()
			return
		}
		if err != nil || realPrice <= 0 {
			e.mu.Unlock()
			// Leave the last computed price in place and retry next tick.
			e.logger.Warn("Reference price unavailable, skipping tick",
				zap.String("coin", coinID), zap.Error(err))
			return
		}

		progress := fallElapsed.Minutes() / e.fallDuration.Minutes()
		newPrice = fallStartPrice + (realPrice-fallStartPrice)*progress

	default:
		e.mu.Unlock()
		return
	}

	// Persist while still holding the lock so a concurrent stop cannot
	// interleave its reconciliation write with this tick's.
	if err := e.store.UpdateCoinPrice(coinID, newPrice, now); err != nil {
		e.mu.Unlock()
		e.logger.Error("Failed to write simulated price",
			zap.String("coin", coinID), zap.Error(err))
		return
	}

	point := models.PricePoint{
		Price:       newPrice,
		PriceChange: historyChange(newPrice, sim.StartPrice),
		Timestamp:   now,
	}
	err := e.store.AppendPriceHistory(coinID, point)
	phase := sim.Phase
	e.mu.Unlock()

	if err != nil {
		e.logger.Error("Failed to append simulated price history",
			zap.String("coin", coinID), zap.Error(err))
		return
	}

	e.logger.Debug("Simulation tick",
		zap.String("coin", coinID),
		zap.String("phase", string(phase)),
		zap.Float64("price", newPrice),
	)
}

// removeLocked cancels the coin's ticker and deletes the simulation entry.
// Caller must hold e.mu.
func (e *Engine) removeLocked(coinID string, sim *Simulation) {
	if cancel, ok := e.cancels[coinID]; ok {
		cancel()
		delete(e.cancels, coinID)
	}
	delete(e.sims, coinID)
	sim.Phase = PhaseCompleted
	sim.Active = false
}

// reconcile restores the coin to the reference price after its simulation has
// been removed. It must not run under e.mu and must not inherit the caller's
// context: the completion path has just cancelled the simulation's own run
// context, and an operator stop may arrive on an already-disconnected request.
// A failed or zero fetch must not block removal; the coin keeps its last
// simulated price until the refresh job picks it up again.
func (e *Engine) reconcile(coinID string) {
	ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
	defer cancel()

	realPrice, err := e.prices.GetRealPrice(ctx, coinID)
	if err != nil {
		e.logger.Warn("Failed to fetch reference price at stop",
			zap.String("coin", coinID), zap.Error(err))
	}

	if realPrice > 0 {
		e.mu.Lock()
		// A new simulation may have started while the fetch was in flight;
		// its trajectory owns the price now.
		if _, active := e.sims[coinID]; !active {
			now := e.now()
			if err := e.store.UpdateCoinPrice(coinID, realPrice, now); err != nil {
				e.logger.Error("Failed to restore reference price",
					zap.String("coin", coinID), zap.Error(err))
			} else if err := e.store.AppendPriceHistory(coinID, models.PricePoint{
				Price:       realPrice,
				PriceChange: 0,
				Timestamp:   now,
			}); err != nil {
				e.logger.Error("Failed to append reconciliation snapshot",
					zap.String("coin", coinID), zap.Error(err))
			}
		}
		e.mu.Unlock()
	}

	e.logger.Info("Simulation stopped",
		zap.String("coin", coinID),
		zap.Float64("reference_price", realPrice),
	)
}

// historyChange is the percentage deviation written to simulated history rows.
// It is always computed against the simulation's start price, in both phases;
// falling-phase rows therefore do not describe the decay trajectory. That
// matches the shipped behavior and downstream consumers rely on it.
func historyChange(price, startPrice float64) float64 {
	if startPrice == 0 {
		return 0
	}
	return ((price - startPrice) / startPrice) * 100
}
