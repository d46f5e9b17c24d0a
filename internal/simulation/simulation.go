package simulation

import "time"

// Phase identifies where a simulation is in its lifecycle.
type Phase string

const (
	// PhaseRising moves the price linearly from the start price to the target.
	PhaseRising Phase = "rising"
	// PhaseFalling decays the price from the target back to the real market price.
	PhaseFalling Phase = "falling"
	// PhaseCompleted marks a finished simulation. The engine never keeps
	// completed entries in its map; the phase exists so callers holding a
	// snapshot can observe termination explicitly.
	PhaseCompleted Phase = "completed"
)

// Simulation is the per-coin state of one admin-driven price override.
// At most one simulation exists per coin at any time.
type Simulation struct {
	CoinID               string    `json:"coinId"`
	StartPrice           float64   `json:"startPrice"`
	TargetPrice          float64   `json:"targetPrice"`
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"` // informational; transition is price-based
	PriceChangePerMinute float64   `json:"priceChangePerMinute"`
	Phase                Phase     `json:"phase"`
	FallStartTime        time.Time `json:"fallStartTime,omitempty"`
	FallStartPrice       float64   `json:"fallStartPrice,omitempty"`
	Active               bool      `json:"isActive"`
}
