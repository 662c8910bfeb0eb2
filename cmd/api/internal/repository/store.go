package repository

import (
	"context"

	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

const (
	// KeyPriceOverrides is the hash of item id -> price multiplier.
	KeyPriceOverrides = "item_prices"
	// KeyWorlds is the set of JSON-encoded worlds.
	KeyWorlds = "worlds"
)

type OverrideSource interface {
	FetchPriceOverrides(ctx context.Context) (models.PriceOverrides, error)
}

type WorldSource interface {
	FetchWorlds(ctx context.Context) ([]models.World, error)
}

type ServerRegistry interface {
	RegisterServer(ctx context.Context, key, member, role string) error
}

// TriggerSource delivers refresh notifications published on a channel.
// Subscribe returns once the subscription is established; the returned
// channel is closed when ctx is done or the subscription ends.
type TriggerSource interface {
	Subscribe(ctx context.Context, channel string) (<-chan string, error)
}
