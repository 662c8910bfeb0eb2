// Package trigger provides a Kafka-backed source of refresh notifications,
// used instead of Redis pub/sub when trigger.backend is "kafka".
package trigger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/apperr"
	"github.com/shubham-shewale/price-world-cache/cmd/api/internal/repository"
)

var _ repository.TriggerSource = (*KafkaSource)(nil)

const (
	readErrorBackoff = time.Second
	// Trigger topics have a single partition.
	triggerPartition = 0
)

// KafkaReader abstracts the input stream
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaSource turns every message on a topic into a refresh trigger. It reads
// the partition directly, without a consumer group: every instance holds its
// own cache and must see every trigger, and nothing is committed.
type KafkaSource struct {
	brokers []string
	logger  *zap.Logger

	newReader  func(topic string, offset int64) KafkaReader
	lastOffset func(ctx context.Context, topic string) (int64, error)
}

// Option configures a KafkaSource.
type Option func(*KafkaSource)

// WithReaderFactory replaces the kafka-go reader, mainly for tests. The reader
// must start at offset.
func WithReaderFactory(fn func(topic string, offset int64) KafkaReader) Option {
	return func(k *KafkaSource) {
		k.newReader = fn
	}
}

// WithOffsetLookup replaces the broker lookup of the topic's end offset.
func WithOffsetLookup(fn func(ctx context.Context, topic string) (int64, error)) Option {
	return func(k *KafkaSource) {
		k.lastOffset = fn
	}
}

func NewKafkaSource(brokers []string, logger *zap.Logger, opts ...Option) *KafkaSource {
	k := &KafkaSource{
		brokers: brokers,
		logger:  logger,
	}
	k.newReader = k.defaultReader
	k.lastOffset = k.defaultLastOffset

	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Subscribe pins the topic's current end offset and then streams every message
// value written from that point on, including ones written before the first
// read.
func (k *KafkaSource) Subscribe(ctx context.Context, topic string) (<-chan string, error) {
	offset, err := k.lastOffset(ctx, topic)
	if err != nil {
		return nil, &apperr.SubscribeError{Channel: topic, Err: err}
	}

	reader := k.newReader(topic, offset)
	out := make(chan string)

	go func() {
		defer close(out)
		defer func() {
			if err := reader.Close(); err != nil {
				k.logger.Error("Error closing Kafka reader", zap.String("topic", topic), zap.Error(err))
			}
		}()

		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
					return
				}
				k.logger.Error("Kafka Read Error", zap.String("topic", topic), zap.Error(err))
				select {
				case <-time.After(readErrorBackoff):
				case <-ctx.Done():
					return
				}
				continue
			}

			select {
			case out <- string(m.Value):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (k *KafkaSource) defaultReader(topic string, offset int64) KafkaReader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   k.brokers,
		Topic:     topic,
		Partition: triggerPartition,
		MinBytes:  1,
		MaxBytes:  1e6,
	})
	if err := r.SetOffset(offset); err != nil {
		k.logger.Warn("Could not pin reader offset", zap.String("topic", topic), zap.Int64("offset", offset), zap.Error(err))
	}
	return r
}

func (k *KafkaSource) defaultLastOffset(ctx context.Context, topic string) (int64, error) {
	lastErr := errors.New("no brokers configured")
	for _, addr := range k.brokers {
		conn, err := kafka.DialLeader(ctx, "tcp", addr, topic, triggerPartition)
		if err != nil {
			lastErr = err
			continue
		}
		offset, err := conn.ReadLastOffset()
		conn.Close()
		if err != nil {
			return 0, fmt.Errorf("read last offset of %s: %w", topic, err)
		}
		return offset, nil
	}
	return 0, fmt.Errorf("dial leader of %s: %w", topic, lastErr)
}
