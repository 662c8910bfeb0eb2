package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/apperr"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/cache"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/repository"
)

// Listener refreshes one domain every time a trigger arrives on its channel.
// Refreshes of a domain are serialized by the single loop in Run.
type Listener struct {
	pipeline Pipeline
	slot     *cache.Slot
	source   repository.TriggerSource
	channel  string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewListener(pipeline Pipeline, slot *cache.Slot, source repository.TriggerSource, channel string, timeout time.Duration, logger *zap.Logger) *Listener {
	return &Listener{
		pipeline: pipeline,
		slot:     slot,
		source:   source,
		channel:  channel,
		timeout:  timeout,
		logger:   logger.With(zap.String("domain", string(pipeline.Domain())), zap.String("channel", channel)),
	}
}

// Run blocks until ctx is done or the subscription fails. A failed refresh is
// logged and the previous snapshot stays installed; it never ends the loop.
// Run returns a *apperr.SubscribeError if the channel cannot be subscribed and
// apperr.ErrSubscriptionClosed if the trigger stream ends on its own.
func (l *Listener) Run(ctx context.Context) error {
	triggers, err := l.source.Subscribe(ctx, l.channel)
	if err != nil {
		var subErr *apperr.SubscribeError
		if !errors.As(err, &subErr) {
			err = &apperr.SubscribeError{Channel: l.channel, Err: err}
		}
		return err
	}

	l.logger.Info("Listening for refresh triggers")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-triggers:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return apperr.ErrSubscriptionClosed
			}

			l.logger.Info("Refresh triggered", zap.String("payload", payload))
			snap, err := l.Refresh(ctx)
			if err != nil {
				l.logger.Error("Refresh failed, keeping previous snapshot",
					zap.String("stage", stageOf(err)),
					zap.Error(err),
				)
				continue
			}
			l.logger.Info("Snapshot installed",
				zap.Uint64("generation", snap.Generation),
				zap.Int("bytes", len(snap.Payload)),
			)
		}
	}
}

// Refresh runs one fetch/transform/install cycle. Nothing is installed unless
// the whole cycle succeeds.
func (l *Listener) Refresh(ctx context.Context) (snap cache.Snapshot, err error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Domain: l.pipeline.Domain(), Stage: StagePanic, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	payload, err := l.pipeline.Build(ctx)
	if err != nil {
		return cache.Snapshot{}, err
	}
	return l.slot.Replace(payload), nil
}

func stageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return "unknown"
}
