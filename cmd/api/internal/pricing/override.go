// Package pricing rescales upstream item prices with configured multipliers.
package pricing

import (
	"math"

	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// minPrice is the lowest price an override may produce. Consumers read 0 as
// "unavailable".
const minPrice = 1

// Scale returns max(floor(price*multiplier), 1).
func Scale(price int, multiplier float64) int {
	scaled := math.Floor(float64(price) * multiplier)
	if math.IsNaN(scaled) || scaled < minPrice {
		return minPrice
	}
	if scaled > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(scaled)
}

// ApplyOverrides rescales, in place, the price and wiki price of every item
// that has an entry in overrides. Items without an entry are untouched. It
// returns the number of items rescaled.
func ApplyOverrides(items []models.ItemPrice, overrides models.PriceOverrides, logger *zap.Logger) int {
	if len(overrides) == 0 {
		return 0
	}

	applied := 0
	for i := range items {
		item := &items[i]
		multiplier, ok := overrides[item.ID]
		if !ok {
			continue
		}

		oldWiki := item.WikiPrice
		item.Price = Scale(item.Price, multiplier)
		item.WikiPrice = Scale(item.WikiPrice, multiplier)
		applied++

		logger.Debug("Applied price override",
			zap.Int("id", item.ID),
			zap.String("name", item.Name),
			zap.Float64("multiplier", multiplier),
			zap.Int("from", oldWiki),
			zap.Int("to", item.WikiPrice),
		)
	}
	return applied
}
