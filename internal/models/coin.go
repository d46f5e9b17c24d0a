package models

import "time"

// Coin represents a tracked crypto asset. The primary key is the CoinGecko
// identifier ("bitcoin", "ethereum", ...), not a synthetic integer, because
// every external lookup is keyed by that id.
type Coin struct {
	ID          string  `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"not null" json:"name"`
	Symbol      string  `gorm:"uniqueIndex;not null" json:"symbol"`
	Price       float64 `json:"price"`
	PriceChange float64 `json:"priceChange"` // 24h change, percent
	MarketCap   float64 `json:"marketCap"`
	Volume      float64 `json:"volume"`
	Category    string  `gorm:"default:infrastructure" json:"category"`
	Status      string  `gorm:"default:active" json:"status"`
	Description string  `json:"description"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
