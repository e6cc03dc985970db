package items

import (
	"time"
)

// TrackBy indicates how stock for an item is counted.
type TrackBy string

const (
	// TrackByQuantity items are counted in pieces.
	TrackByQuantity TrackBy = "quantity"
	// TrackByWeight items are weighed in grams.
	TrackByWeight TrackBy = "weight"
	// TrackByBoth items carry both a piece count and a weight.
	TrackByBoth TrackBy = "both"
)

// Valid reports whether the tracking mode is known.
func (t TrackBy) Valid() bool {
	switch t {
	case TrackByQuantity, TrackByWeight, TrackByBoth:
		return true
	}
	return false
}

// Item represents a jewelry inventory item definition.
type Item struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	TrackBy   TrackBy   `json:"track_by"`
	Metal     string    `json:"metal"`
	Purity    []string  `json:"purity"`
	Stone     string    `json:"stone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
