package refresh

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/apperr"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/cache"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

var errUnknownDomain = errors.New("no cache slot for domain")

// Bootstrap builds every pipeline concurrently and, only if all of them
// succeed, installs the results into store. Any failure is returned as a
// *apperr.BootstrapError and nothing is installed.
func Bootstrap(ctx context.Context, store *cache.Store, logger *zap.Logger, pipelines ...Pipeline) error {
	var (
		mu       sync.Mutex
		payloads = make(map[models.Domain][]byte, len(pipelines))
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pipelines {
		p := p
		g.Go(func() error {
			payload, err := p.Build(gctx)
			if err != nil {
				return &apperr.BootstrapError{Domain: string(p.Domain()), Err: err}
			}
			mu.Lock()
			payloads[p.Domain()] = payload
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, p := range pipelines {
		slot := store.Slot(p.Domain())
		if slot == nil {
			return &apperr.BootstrapError{Domain: string(p.Domain()), Err: errUnknownDomain}
		}
		snap := slot.Replace(payloads[p.Domain()])
		logger.Info("Bootstrap snapshot installed",
			zap.String("domain", string(snap.Domain)),
			zap.Int("bytes", len(snap.Payload)),
		)
	}
	return nil
}
