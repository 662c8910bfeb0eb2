package models

// ItemPrice is one tradeable item as served by the upstream price feed.
type ItemPrice struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
	WikiPrice int    `json:"wikiPrice"`
}

// PriceOverrides maps an item id to the multiplier applied to its prices.
type PriceOverrides map[int]float64
