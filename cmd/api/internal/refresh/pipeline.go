// Package refresh builds domain snapshots and installs them into the cache,
// once at startup (Bootstrap) and then on every refresh trigger (Listener).
package refresh

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/pricing"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/repository"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// Stages of a refresh cycle, reported with failures.
const (
	StageResolveVersion = "resolve_version"
	StageFetchPrices    = "fetch_prices"
	StageFetchOverrides = "fetch_overrides"
	StageFetchWorlds    = "fetch_worlds"
	StageEncode         = "encode"
	// StagePanic marks a cycle that panicked; where it panicked is in the error.
	StagePanic          = "panic"
)

// StageError tags a refresh failure with the domain and stage it happened in.
type StageError struct {
	Domain models.Domain
	Stage  string
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s refresh failed at %s: %v", e.Domain, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline produces the complete serialized snapshot of one domain.
type Pipeline interface {
	Domain() models.Domain
	Build(ctx context.Context) ([]byte, error)
}

// PriceFeed is the HTTP side of the price domain.
type PriceFeed interface {
	ResolveVersion(ctx context.Context) (string, error)
	FetchItemPrices(ctx context.Context, version string) ([]models.ItemPrice, error)
}

// PricePipeline resolves the feed version, fetches prices and applies the
// stored multipliers.
type PricePipeline struct {
	feed      PriceFeed
	overrides repository.OverrideSource
	logger    *zap.Logger
}

func NewPricePipeline(feed PriceFeed, overrides repository.OverrideSource, logger *zap.Logger) *PricePipeline {
	return &PricePipeline{feed: feed, overrides: overrides, logger: logger}
}

func (p *PricePipeline) Domain() models.Domain { return models.DomainPrices }

func (p *PricePipeline) Build(ctx context.Context) ([]byte, error) {
	version, err := p.feed.ResolveVersion(ctx)
	if err != nil {
		return nil, p.fail(StageResolveVersion, err)
	}

	items, err := p.feed.FetchItemPrices(ctx, version)
	if err != nil {
		return nil, p.fail(StageFetchPrices, err)
	}

	overrides, err := p.overrides.FetchPriceOverrides(ctx)
	if err != nil {
		return nil, p.fail(StageFetchOverrides, err)
	}

	applied := pricing.ApplyOverrides(items, overrides, p.logger)

	payload, err := json.Marshal(items)
	if err != nil {
		return nil, p.fail(StageEncode, err)
	}

	p.logger.Info("Built price snapshot",
		zap.String("version", version),
		zap.Int("items", len(items)),
		zap.Int("overrides_applied", applied),
	)
	return payload, nil
}

func (p *PricePipeline) fail(stage string, err error) error {
	return &StageError{Domain: models.DomainPrices, Stage: stage, Err: err}
}

// WorldPipeline wraps the stored worlds into a WorldsSnapshot.
type WorldPipeline struct {
	worlds repository.WorldSource
	logger *zap.Logger
}

func NewWorldPipeline(worlds repository.WorldSource, logger *zap.Logger) *WorldPipeline {
	return &WorldPipeline{worlds: worlds, logger: logger}
}

func (p *WorldPipeline) Domain() models.Domain { return models.DomainWorlds }

func (p *WorldPipeline) Build(ctx context.Context) ([]byte, error) {
	worlds, err := p.worlds.FetchWorlds(ctx)
	if err != nil {
		return nil, &StageError{Domain: models.DomainWorlds, Stage: StageFetchWorlds, Err: err}
	}
	if worlds == nil {
		worlds = []models.World{}
	}

	payload, err := json.Marshal(models.WorldsSnapshot{Worlds: worlds})
	if err != nil {
		return nil, &StageError{Domain: models.DomainWorlds, Stage: StageEncode, Err: err}
	}

	p.logger.Info("Built world snapshot", zap.Int("worlds", len(worlds)))
	return payload, nil
}
