// Package notifier publishes refresh triggers for the cache service.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Publisher delivers one trigger payload to a channel or topic.
type Publisher interface {
	Publish(ctx context.Context, channel, payload string) error
}

// RedisPublisher publishes on Redis pub/sub.
type RedisPublisher struct {
	client RedisClient
	logger *zap.Logger
}

func NewRedisPublisher(client RedisClient, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, logger: logger}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel, payload string) error {
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	if receivers == 0 {
		p.logger.Warn("No cache instance is subscribed", zap.String("channel", channel))
	}
	return nil
}

// KafkaPublisher writes the trigger to a Kafka topic named like the channel.
type KafkaPublisher struct {
	writer KafkaWriter
}

func NewKafkaPublisher(writer KafkaWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, channel, payload string) error {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Topic: channel, Value: []byte(payload)}); err != nil {
		return fmt.Errorf("write %s: %w", channel, err)
	}
	return nil
}

// Notifier asks running cache instances to refresh one or more domains.
type Notifier struct {
	publisher Publisher
	logger    *zap.Logger
	clock     Clock
}

func NewNotifier(publisher Publisher, logger *zap.Logger, clock Clock) *Notifier {
	return &Notifier{publisher: publisher, logger: logger, clock: clock}
}

// Notify publishes message on every channel. An empty message is replaced by
// a timestamped default; the cache only logs the payload.
func (n *Notifier) Notify(ctx context.Context, channels []string, message string) error {
	if message == "" {
		message = "refresh requested at " + n.clock.Now().UTC().Format(time.RFC3339)
	}

	for _, channel := range channels {
		if err := n.publisher.Publish(ctx, channel, message); err != nil {
			n.logger.Error("Trigger failed", zap.String("channel", channel), zap.Error(err))
			return err
		}
		n.logger.Info("Trigger sent", zap.String("channel", channel), zap.String("message", message))
	}
	return nil
}
