package config

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var envMu sync.Mutex

func TestLoadAll_HappyPath_Defaults(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Setenv("WEBHOOK_URL", "https://example.com/webhook")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Webhook.URL != "https://example.com/webhook" {
		t.Fatalf("unexpected Webhook.URL: %q", cfg.Webhook.URL)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected Server.Address default: %q", cfg.Server.Address)
	}
	if cfg.Metrics.Address != ":9090" {
		t.Fatalf("unexpected Metrics.Address default: %q", cfg.Metrics.Address)
	}
	if cfg.Queue.DelayBetweenMessages != 60*time.Second {
		t.Fatalf("unexpected Queue.DelayBetweenMessages default: %v", cfg.Queue.DelayBetweenMessages)
	}
	if cfg.Queue.MaxQueueSize != 1000 {
		t.Fatalf("unexpected Queue.MaxQueueSize default: %d", cfg.Queue.MaxQueueSize)
	}
	if cfg.Queue.MaxRetries != 3 {
		t.Fatalf("unexpected Queue.MaxRetries default: %d", cfg.Queue.MaxRetries)
	}
	if cfg.Webhook.RatePerMinute != 20 {
		t.Fatalf("unexpected Webhook.RatePerMinute default: %d", cfg.Webhook.RatePerMinute)
	}
	if cfg.Database.PostgresURL != "" {
		t.Fatalf("expected empty PostgresURL, got %q", cfg.Database.PostgresURL)
	}
	if cfg.Redis.Enabled {
		t.Fatalf("expected Redis disabled when REDIS_ADDR not set")
	}
}

func TestLoadAll_HappyPath_WithRedis(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	t.Setenv("WEBHOOK_URL", "https://example.com/webhook")
	t.Setenv("POSTGRES_URL", "postgres://u:p@localhost:5432/db?sslmode=disable")

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_PASSWORD", "secret")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TTL_SECONDS", "42")

	cfg, err := LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error: %v", err)
	}

	if cfg.Database.PostgresURL != "postgres://u:p@localhost:5432/db?sslmode=disable" {
		t.Fatalf("unexpected PostgresURL: %q", cfg.Database.PostgresURL)
	}
	if !cfg.Redis.Enabled {
		t.Fatalf("expected Redis enabled")
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Fatalf("unexpected Redis.Address: %q", cfg.Redis.Address)
	}
	if cfg.Redis.Password != "secret" {
		t.Fatalf("unexpected Redis.Password: %q", cfg.Redis.Password)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("unexpected Redis.DB: %d", cfg.Redis.DB)
	}
	if cfg.Redis.TTL != 42*time.Second {
		t.Fatalf("unexpected Redis.TTL: %v", cfg.Redis.TTL)
	}
}

func TestLoadAll_MissingWebhookURL(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	_, err := LoadAll()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "WEBHOOK_URL") {
		t.Fatalf("expected error mentioning WEBHOOK_URL, got: %v", err)
	}
}

func TestLoadAll_InvalidInts(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"invalid QUEUE_DELAY_SECONDS", "QUEUE_DELAY_SECONDS", "abc"},
		{"invalid QUEUE_MAX_SIZE", "QUEUE_MAX_SIZE", "nope"},
		{"invalid QUEUE_MAX_RETRIES", "QUEUE_MAX_RETRIES", "x"},
		{"invalid WEBHOOK_RATE_PER_MINUTE", "WEBHOOK_RATE_PER_MINUTE", "y"},
		{"invalid REDIS_DB", "REDIS_DB", "bad"},
		{"invalid REDIS_TTL_SECONDS", "REDIS_TTL_SECONDS", "bad"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)

			t.Setenv("WEBHOOK_URL", "https://example.com/webhook")
			if strings.HasPrefix(tc.key, "REDIS_") {
				t.Setenv("REDIS_ADDR", "localhost:6379")
			}
			t.Setenv(tc.key, tc.val)

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.key) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.key, err)
			}
		})
	}
}

func TestLoadAll_ValidationFailures(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	cases := []struct {
		name string
		key  string
		want string
	}{
		{"delay <= 0", "QUEUE_DELAY_SECONDS", "QUEUE_DELAY_SECONDS"},
		{"queue size <= 0", "QUEUE_MAX_SIZE", "QUEUE_MAX_SIZE"},
		{"retries <= 0", "QUEUE_MAX_RETRIES", "QUEUE_MAX_RETRIES"},
		{"rate <= 0", "WEBHOOK_RATE_PER_MINUTE", "WEBHOOK_RATE_PER_MINUTE"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			clearTestEnv(t)

			t.Setenv("WEBHOOK_URL", "https://example.com/webhook")
			t.Setenv(tc.key, "0")

			_, err := LoadAll()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got: %v", tc.want, err)
			}
		})
	}
}

func TestRequireEnv(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	_, err := requireEnv("MISSING_KEY")
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	t.Setenv("FOO", "bar")
	v, err := requireEnv("FOO")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "bar" {
		t.Fatalf("expected %q, got %q", "bar", v)
	}
}

func TestGetEnv(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	if got := getEnv("NOPE", "default"); got != "default" {
		t.Fatalf("expected default, got %q", got)
	}

	t.Setenv("A", "x")
	if got := getEnv("A", "default"); got != "x" {
		t.Fatalf("expected x, got %q", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	envMu.Lock()
	defer envMu.Unlock()

	clearTestEnv(t)

	got, err := getEnvInt("MISSING", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 {
		t.Fatalf("expected default 7, got %d", got)
	}

	t.Setenv("N", "123")
	got, err = getEnvInt("N", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 123 {
		t.Fatalf("expected 123, got %d", got)
	}

	t.Setenv("BAD", "abc")
	_, err = getEnvInt("BAD", 7)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "BAD") {
		t.Fatalf("expected error mentioning BAD, got: %v", err)
	}
}

func TestJoinErrors(t *testing.T) {
	if err := joinErrors(nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}

	e1 := errors.New("one")
	e2 := errors.New("two")
	err := joinErrors([]error{e1, e2})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}

	if !errors.Is(err, e1) {
		t.Fatalf("expected errors.Is(err, e1) to be true")
	}
	if !errors.Is(err, e2) {
		t.Fatalf("expected errors.Is(err, e2) to be true")
	}
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"WEBHOOK_URL",
		"WEBHOOK_HEALTH_URL",
		"WEBHOOK_RATE_PER_MINUTE",
		"POSTGRES_URL",
		"SERVER_ADDRESS",
		"METRICS_ADDRESS",
		"QUEUE_DELAY_SECONDS",
		"QUEUE_MAX_SIZE",
		"QUEUE_MAX_RETRIES",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"REDIS_TTL_SECONDS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}
