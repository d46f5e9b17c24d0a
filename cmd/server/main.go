package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-exchange-go/internal/api"
	"coin-exchange-go/internal/coingecko"
	"coin-exchange-go/internal/config"
	"coin-exchange-go/internal/database"
	"coin-exchange-go/internal/logger"
	"coin-exchange-go/internal/market"
	"coin-exchange-go/internal/simulation"
	"coin-exchange-go/internal/store"
	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database and seed tracked coins
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	coinStore := store.NewCoinStore(db)

	// Initialize CoinGecko REST client
	prices := coingecko.NewRestClient(&cfg.CoinGecko, log.Named("coingecko"))

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Simulation engine and market refresher share the store; the refresher
	// asks the engine before every write so simulated prices survive refreshes.
	engine := simulation.NewEngine(log.Named("simulation"), &cfg.Simulation, coinStore, prices)

	refresher := market.NewRefresher(log.Named("market"), &cfg.Market, coinStore, prices, engine)
	go refresher.Run(ctx)

	apiServer := api.NewServer(cfg.Server.Port, log, coinStore, engine)
	apiServer.Start()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Failed to stop API server cleanly", zap.Error(err))
	}
	engine.Shutdown()

	log.Info("Service has been shut down.")
}
