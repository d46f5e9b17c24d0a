package models

import "time"

// PricePoint is one append-only price history record for a coin.
// Rows are never updated after insertion; retention is handled by a
// periodic cleanup, not by compaction.
type PricePoint struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CoinID      string    `gorm:"index;not null" json:"coinId"`
	Price       float64   `json:"price"`
	PriceChange float64   `json:"priceChange"` // percent, semantics depend on the writer
	MarketCap   float64   `json:"marketCap"`
	Volume      float64   `json:"volume"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
}
