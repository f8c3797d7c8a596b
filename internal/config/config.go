package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Queue    QueueConfig
	Webhook  WebhookConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	// PostgresURL is optional; when empty the service runs on the in-memory
	// client store.
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type QueueConfig struct {
	DelayBetweenMessages time.Duration
	MaxQueueSize         int
	MaxRetries           int
}

type WebhookConfig struct {
	URL           string
	HealthURL     string
	RatePerMinute int
}

type MetricsConfig struct {
	Address string
}

func LoadAll() (*Config, error) {
	var errs []error

	webhookURL, err := requireEnv("WEBHOOK_URL")
	if err != nil {
		errs = append(errs, err)
	}

	delaySeconds, err := getEnvInt("QUEUE_DELAY_SECONDS", 60)
	if err != nil {
		errs = append(errs, err)
	}
	maxQueue, err := getEnvInt("QUEUE_MAX_SIZE", 1000)
	if err != nil {
		errs = append(errs, err)
	}
	maxRetries, err := getEnvInt("QUEUE_MAX_RETRIES", 3)
	if err != nil {
		errs = append(errs, err)
	}
	ratePerMinute, err := getEnvInt("WEBHOOK_RATE_PER_MINUTE", 20)
	if err != nil {
		errs = append(errs, err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: os.Getenv("POSTGRES_URL"),
		},
		Redis: redisCfg,
		Queue: QueueConfig{
			DelayBetweenMessages: time.Duration(delaySeconds) * time.Second,
			MaxQueueSize:         maxQueue,
			MaxRetries:           maxRetries,
		},
		Webhook: WebhookConfig{
			URL:           webhookURL,
			HealthURL:     os.Getenv("WEBHOOK_HEALTH_URL"),
			RatePerMinute: ratePerMinute,
		},
		Metrics: MetricsConfig{
			Address: getEnv("METRICS_ADDRESS", ":9090"),
		},
	}

	errs = append(errs, validate(cfg)...)

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 30*86400)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, nil
}

func validate(cfg *Config) []error {
	var errs []error
	if cfg.Queue.DelayBetweenMessages <= 0 {
		errs = append(errs, errors.New("QUEUE_DELAY_SECONDS must be > 0"))
	}
	if cfg.Queue.MaxQueueSize <= 0 {
		errs = append(errs, errors.New("QUEUE_MAX_SIZE must be > 0"))
	}
	if cfg.Queue.MaxRetries <= 0 {
		errs = append(errs, errors.New("QUEUE_MAX_RETRIES must be > 0"))
	}
	if cfg.Webhook.RatePerMinute <= 0 {
		errs = append(errs, errors.New("WEBHOOK_RATE_PER_MINUTE must be > 0"))
	}
	return errs
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	return errors.Join(errs...)
}
