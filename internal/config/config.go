// Package config loads storefront settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Mongo    MongoConfig    `yaml:"mongo"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Payment  PaymentConfig  `yaml:"payment"`
	Chatbot  ChatbotConfig  `yaml:"chatbot"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Port               string        `yaml:"port"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	MaxRequestBodySize int64         `yaml:"max_request_body_size"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig drives the outbox publisher and the cart cleanup consumer.
// With no brokers configured outbox events are kept but not published.
type KafkaConfig struct {
	Brokers         []string      `yaml:"brokers"`
	Topic           string        `yaml:"topic"`
	GroupID         string        `yaml:"group_id"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	BatchSize       int           `yaml:"batch_size"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Retention       time.Duration `yaml:"retention"` // how long published events are kept
}

type PaymentConfig struct {
	GatewayURL       string        `yaml:"gateway_url"`
	Timeout          time.Duration `yaml:"timeout"`
	BreakerFailures  uint32        `yaml:"breaker_failures"`
	BreakerOpenDelay time.Duration `yaml:"breaker_open_delay"`
}

type ChatbotConfig struct {
	BackendURL string        `yaml:"backend_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

type PricingConfig struct {
	TaxRate  string `yaml:"tax_rate"`
	Currency string `yaml:"currency"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:               "8080",
			RequestTimeout:     30 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxRequestBodySize: 1 << 20, // 1MB
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "./storefront.db",
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "storefront",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			Topic:           "storefront-outbox",
			GroupID:         "storefront-cart-cleaner",
			PollInterval:    time.Second,
			BatchSize:       100,
			CleanupInterval: time.Hour,
			Retention:       7 * 24 * time.Hour,
		},
		Payment: PaymentConfig{
			GatewayURL:       "http://localhost:8090",
			Timeout:          5 * time.Second,
			BreakerFailures:  5,
			BreakerOpenDelay: 30 * time.Second,
		},
		Chatbot: ChatbotConfig{
			Timeout: 3 * time.Second,
		},
		Pricing: PricingConfig{
			TaxRate:  "0.20",
			Currency: "EUR",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path when it exists, applies environment overrides and validates
// the result. An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	c.HTTP.Port = getEnv("HTTP_PORT", c.HTTP.Port)
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_DSN", c.Database.DSN)
	c.Mongo.URI = getEnv("MONGO_URI", c.Mongo.URI)
	c.Mongo.Database = getEnv("MONGO_DB_NAME", c.Mongo.Database)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)
	c.Payment.GatewayURL = getEnv("PAYMENT_GATEWAY_URL", c.Payment.GatewayURL)
	c.Chatbot.BackendURL = getEnv("CHATBOT_BACKEND_URL", c.Chatbot.BackendURL)
	c.Pricing.TaxRate = getEnv("TAX_RATE", c.Pricing.TaxRate)
	c.Pricing.Currency = getEnv("CURRENCY", c.Pricing.Currency)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)

	if brokers, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(brokers)
	}

	var err error
	if c.Redis.DB, err = atoiEnv("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	if c.HTTP.RequestTimeout, err = durationEnv("HTTP_REQUEST_TIMEOUT", c.HTTP.RequestTimeout); err != nil {
		return err
	}
	if c.Payment.Timeout, err = durationEnv("PAYMENT_TIMEOUT", c.Payment.Timeout); err != nil {
		return err
	}
	return nil
}

var validDrivers = []string{"sqlite", "postgres"}

func (c *Config) Validate() error {
	validDriver := false
	for _, d := range validDrivers {
		if c.Database.Driver == d {
			validDriver = true
			break
		}
	}
	if !validDriver {
		return fmt.Errorf("invalid database driver: %s (valid: %v)", c.Database.Driver, validDrivers)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn not configured (set DB_DSN)")
	}
	if c.HTTP.Port == "" {
		return errors.New("http port not configured (set HTTP_PORT)")
	}
	if c.HTTP.RequestTimeout <= 0 {
		return fmt.Errorf("invalid http request timeout: %s", c.HTTP.RequestTimeout)
	}
	if _, err := c.TaxRate(); err != nil {
		return err
	}
	if c.Pricing.Currency == "" {
		return errors.New("currency not configured (set CURRENCY)")
	}
	if c.Kafka.BatchSize <= 0 {
		return fmt.Errorf("invalid kafka batch size: %d", c.Kafka.BatchSize)
	}
	if c.Kafka.PollInterval <= 0 || c.Kafka.CleanupInterval <= 0 {
		return errors.New("kafka poll and cleanup intervals must be positive")
	}
	return nil
}

// TaxRate parses the configured rate as a fraction (0.20 for 20%).
func (c *Config) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Pricing.TaxRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid tax rate %q: %w", c.Pricing.TaxRate, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("tax rate %s out of range [0, 1)", rate)
	}
	return rate, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func atoiEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
