package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	TriggerBackendRedis = "redis"
	TriggerBackendKafka = "kafka"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Trigger  TriggerConfig  `mapstructure:"trigger"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Registry RegistryConfig `mapstructure:"registry"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// UpstreamConfig locates the HTTP sources of the price domain.
type UpstreamConfig struct {
	BootstrapURL string        `mapstructure:"bootstrap_url"`
	PriceBaseURL string        `mapstructure:"price_base_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// RefreshConfig controls the refresh cycle of both domains.
type RefreshConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// TriggerConfig names the channels (or topics) that request a refresh.
type TriggerConfig struct {
	Backend       string `mapstructure:"backend"`
	PricesChannel string `mapstructure:"prices_channel"`
	WorldsChannel string `mapstructure:"worlds_channel"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// RegistryConfig controls how this instance announces itself in the servers hash.
type RegistryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Key         string `mapstructure:"key"`
	Role        string `mapstructure:"role"`
	IPLookupURL string `mapstructure:"ip_lookup_url"`
	PublicIP    string `mapstructure:"public_ip"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// Load .env into the process environment so viper sees it like any other env var
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	setDefaults(v)

	// "app.port" -> "APP_PORT"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "redis.addr", "redis.db")
	bindEnv(v, "upstream.bootstrap_url", "upstream.price_base_url", "upstream.user_agent", "upstream.timeout")
	bindEnv(v, "refresh.timeout")
	bindEnv(v, "trigger.backend", "trigger.prices_channel", "trigger.worlds_channel")
	bindEnv(v, "kafka.brokers")
	bindEnv(v, "registry.enabled", "registry.key", "registry.role", "registry.ip_lookup_url", "registry.public_ip")
	bindEnv(v, "logger.level", "logger.encoding", "logger.development")

	// The password also answers to the variable name of the original deployment
	if err := v.BindEnv("redis.password", "REDIS_PASSWORD", "API_SERVER_REDIS_PASSWORD"); err != nil {
		log.Printf("Could not bind env var for key redis.password: %v", err)
	}
	applyLegacyEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("upstream.bootstrap_url", "https://static.runelite.net/bootstrap.json")
	v.SetDefault("upstream.price_base_url", "https://api.runelite.net")
	v.SetDefault("upstream.user_agent", "price-world-cache")
	v.SetDefault("upstream.timeout", 30*time.Second)

	v.SetDefault("refresh.timeout", 2*time.Minute)

	v.SetDefault("trigger.backend", TriggerBackendRedis)
	v.SetDefault("trigger.prices_channel", "items_refresh")
	v.SetDefault("trigger.worlds_channel", "worlds_refresh")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.key", "servers")
	v.SetDefault("registry.role", "API_SERVER")
	v.SetDefault("registry.ip_lookup_url", "https://checkip.amazonaws.com/")
	v.SetDefault("registry.public_ip", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.development", false)
}

// applyLegacyEnv maps API_SERVER_* variables onto the current keys when the
// current names are not set.
func applyLegacyEnv(v *viper.Viper) {
	if port, ok := os.LookupEnv("API_SERVER_PORT"); ok && !isSet("APP_PORT") {
		v.Set("app.port", ":"+strings.TrimPrefix(port, ":"))
	}

	host, ok := os.LookupEnv("API_SERVER_REDIS_URL")
	if !ok || isSet("REDIS_ADDR") {
		return
	}
	port := os.Getenv("API_SERVER_REDIS_PORT")
	if port == "" {
		port = "6379"
	}
	v.Set("redis.addr", net.JoinHostPort(host, port))
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
