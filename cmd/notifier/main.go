package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/price-world-cache/cmd/notifier/internal/notifier"
	"github.com/shubham-shewale/price-world-cache/pkg/config"
	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

func main() {
	domainFlag := flag.String("domain", "all", "domain to refresh: prices, worlds or all")
	message := flag.String("message", "", "payload sent with the trigger")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	channels, err := resolveChannels(cfg.Trigger, *domainFlag)
	if err != nil {
		logger.Fatal("Invalid domain", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var publisher notifier.Publisher
	switch cfg.Trigger.Backend {
	case config.TriggerBackendKafka:
		creator := notifier.NewTopicCreator(logger, &notifier.RealKafkaDialer{Dialer: kafka.DefaultDialer}, notifier.RealClock{})
		creator.Create(cfg.Kafka.Brokers, channels...)

		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		}
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("Error closing Kafka writer", zap.Error(err))
			}
		}()
		publisher = notifier.NewKafkaPublisher(writer)
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		publisher = notifier.NewRedisPublisher(rdb, logger)
	}

	n := notifier.NewNotifier(publisher, logger, notifier.RealClock{})
	if err := n.Notify(ctx, channels, *message); err != nil {
		logger.Fatal("Failed to send refresh trigger", zap.Error(err))
	}
}

func resolveChannels(trigger config.TriggerConfig, domain string) ([]string, error) {
	if domain == "all" {
		channels := make([]string, 0, len(models.Domains))
		for _, d := range models.Domains {
			channels = append(channels, trigger.Channel(d))
		}
		return channels, nil
	}
	d, ok := models.ParseDomain(domain)
	if !ok {
		return nil, fmt.Errorf("unknown domain %q", domain)
	}
	return []string{trigger.Channel(d)}, nil
}
