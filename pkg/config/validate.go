package config

import (
	"errors"
	"fmt"

	"github.com/shubham-shewale/price-world-cache/pkg/models"
)

// Validate checks the loaded configuration for values the service cannot run with.
func (c *Config) Validate() error {
	switch c.Trigger.Backend {
	case TriggerBackendRedis:
	case TriggerBackendKafka:
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka brokers cannot be empty when trigger.backend is kafka")
		}
	default:
		return fmt.Errorf("unknown trigger backend %q", c.Trigger.Backend)
	}

	if c.Trigger.PricesChannel == "" || c.Trigger.WorldsChannel == "" {
		return errors.New("trigger channels cannot be empty")
	}
	if c.Trigger.PricesChannel == c.Trigger.WorldsChannel {
		return errors.New("prices and worlds trigger channels must differ")
	}

	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive, got %s", c.Upstream.Timeout)
	}
	if c.Refresh.Timeout <= 0 {
		return fmt.Errorf("refresh.timeout must be positive, got %s", c.Refresh.Timeout)
	}

	if c.Registry.Enabled && c.Registry.PublicIP == "" && c.Registry.IPLookupURL == "" {
		return errors.New("registry needs either public_ip or ip_lookup_url")
	}

	return nil
}

// Channel returns the refresh channel (or Kafka topic) of a domain.
func (t TriggerConfig) Channel(domain models.Domain) string {
	if domain == models.DomainWorlds {
		return t.WorldsChannel
	}
	return t.PricesChannel
}
