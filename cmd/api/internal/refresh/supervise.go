package refresh

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// RunAll runs every listener until ctx is done. A listener that stops on its
// own is logged and does not stop the others.
func RunAll(ctx context.Context, logger *zap.Logger, listeners ...*Listener) {
	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func(l *Listener) {
			defer wg.Done()
			err := l.Run(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("Refresh listener stopped; its domain will no longer refresh",
				zap.String("domain", string(l.pipeline.Domain())),
				zap.String("channel", l.channel),
				zap.Error(err),
			)
		}(l)
	}
	wg.Wait()
}
