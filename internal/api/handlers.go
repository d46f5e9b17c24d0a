package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coin-exchange-go/internal/simulation"
	"coin-exchange-go/internal/store"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type handler struct {
	logger *zap.Logger
	store  store.CoinStore
	engine SimulationEngine
}

// startSimulationRequest is the body of POST /api/coins/{id}/simulation.
type startSimulationRequest struct {
	TargetPrice float64 `json:"targetPrice"`
	TimeMinutes int     `json:"timeMinutes"`
}

type simulationSummary struct {
	CoinID          string  `json:"coinId"`
	StartPrice      float64 `json:"startPrice"`
	TargetPrice     float64 `json:"targetPrice"`
	DurationMinutes int     `json:"durationMinutes"`
}

type simulationStatusView struct {
	CoinID               string  `json:"coinId"`
	IsActive             bool    `json:"isActive"`
	Phase                string  `json:"phase"`
	StartPrice           float64 `json:"startPrice"`
	TargetPrice          float64 `json:"targetPrice"`
	StartTime            int64   `json:"startTime"` // unix milliseconds
	PriceChangePerMinute float64 `json:"priceChangePerMinute"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "ok"})
}

func (h *handler) listCoins(w http.ResponseWriter, r *http.Request) {
	coins, err := h.store.ListCoins()
	if err != nil {
		h.logger.Error("Failed to list coins", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load coins")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "coins": coins})
}

func (h *handler) getCoin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	coin, err := h.store.GetCoin(id)
	if err != nil {
		h.logger.Error("Failed to get coin", zap.String("coin", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load coin")
		return
	}
	if coin == nil {
		writeError(w, http.StatusNotFound, "coin not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "coin": coin})
}

func (h *handler) priceHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	coin, err := h.store.GetCoin(id)
	if err != nil {
		h.logger.Error("Failed to get coin for history", zap.String("coin", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load coin")
		return
	}
	if coin == nil {
		writeError(w, http.StatusNotFound, "coin not found")
		return
	}

	points, err := h.store.PriceHistory(id, limit)
	if err != nil {
		h.logger.Error("Failed to get price history", zap.String("coin", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "history": points})
}

func (h *handler) startSimulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req startSimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sim, err := h.engine.Start(r.Context(), id, req.TargetPrice, req.TimeMinutes)
	if err != nil {
		h.writeEngineError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "simulation started",
		"simulation": simulationSummary{
			CoinID:          sim.CoinID,
			StartPrice:      sim.StartPrice,
			TargetPrice:     sim.TargetPrice,
			DurationMinutes: req.TimeMinutes,
		},
	})
}

func (h *handler) stopSimulation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.engine.Stop(r.Context(), id); err != nil {
		h.writeEngineError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "simulation stopped",
	})
}

func (h *handler) simulationStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	sim := h.engine.Status(id)
	if sim == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":    true,
			"simulation": nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"simulation": simulationStatusView{
			CoinID:               sim.CoinID,
			IsActive:             sim.Active,
			Phase:                string(sim.Phase),
			StartPrice:           sim.StartPrice,
			TargetPrice:          sim.TargetPrice,
			StartTime:            sim.StartTime.UnixMilli(),
			PriceChangePerMinute: sim.PriceChangePerMinute,
		},
	})
}

func (h *handler) writeEngineError(w http.ResponseWriter, coinID string, err error) {
	switch {
	case errors.Is(err, simulation.ErrCoinNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, simulation.ErrInvalidTargetPrice),
		errors.Is(err, simulation.ErrInvalidDuration),
		errors.Is(err, simulation.ErrAlreadyActive),
		errors.Is(err, simulation.ErrNotActive):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Simulation request failed", zap.String("coin", coinID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, messages ...string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"errors":  messages,
	})
}
