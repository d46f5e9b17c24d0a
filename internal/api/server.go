package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"coin-exchange-go/internal/simulation"
	"coin-exchange-go/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// SimulationEngine is the part of the engine the API needs.
type SimulationEngine interface {
	Start(ctx context.Context, coinID string, targetPrice float64, durationMinutes int) (*simulation.Simulation, error)
	Stop(ctx context.Context, coinID string) error
	Status(coinID string) *simulation.Simulation
}

// Server exposes the coin data and the simulation controls over HTTP.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer builds the router and wires the handlers.
func NewServer(port int, logger *zap.Logger, coinStore store.CoinStore, engine SimulationEngine) *Server {
	h := &handler{
		logger: logger.Named("api"),
		store:  coinStore,
		engine: engine,
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/api/coins", h.listCoins).Methods(http.MethodGet)
	r.HandleFunc("/api/coins/{id}", h.getCoin).Methods(http.MethodGet)
	r.HandleFunc("/api/coins/{id}/history", h.priceHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/coins/{id}/simulation", h.startSimulation).Methods(http.MethodPost)
	r.HandleFunc("/api/coins/{id}/simulation/stop", h.stopSimulation).Methods(http.MethodPost)
	r.HandleFunc("/api/coins/{id}/simulation", h.simulationStatus).Methods(http.MethodGet)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.Named("api-server"),
	}
}

// Handler returns the underlying router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
