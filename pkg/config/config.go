package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const paywallPolicyPrefix = "PAYWALL_POLICY_"

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string
	HTTPAddr string

	// Ledger storage: memory, redis://, sqlite file or postgres://
	LedgerURL string

	// Redis (session locks). Empty disables the shared lock.
	RedisURL string

	// RabbitMQ. Empty falls back to the in-process bus.
	RabbitMQURL string

	// Worker
	WorkerHealthAddr string

	// Generation
	GenerationProvider       string
	GeminiAPIKey             string
	OpenRouterAPIKey         string
	OpenRouterBaseURL        string
	GenerationRetryBudget    int
	GenerationAttemptDelay   time.Duration
	GenerationBackendDelay   time.Duration
	GenerationTimeout        time.Duration
	GenerationCircuitBreaker bool

	// Entitlement
	FreeMessageLimit int
	PaywallPolicy    string
	ModulePolicies   map[string]string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", "0.0.0.0:8080"),

		LedgerURL:   getEnv("LEDGER_URL", "memory"),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		GenerationProvider:       getEnv("GENERATION_PROVIDER", "gemini"),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		OpenRouterAPIKey:         getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL:        getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		GenerationRetryBudget:    getIntEnv("GENERATION_RETRY_BUDGET", 3),
		GenerationAttemptDelay:   getDurationEnv("GENERATION_ATTEMPT_DELAY", 500*time.Millisecond),
		GenerationBackendDelay:   getDurationEnv("GENERATION_BACKEND_DELAY", time.Second),
		GenerationTimeout:        getDurationEnv("GENERATION_TIMEOUT", 30*time.Second),
		GenerationCircuitBreaker: getBoolEnv("GENERATION_CIRCUIT_BREAKER", false),

		FreeMessageLimit: getIntEnv("FREE_MESSAGE_LIMIT", 3),
		PaywallPolicy:    getEnv("PAYWALL_POLICY", "teaser_then_block"),
		ModulePolicies:   getPrefixedEnv(paywallPolicyPrefix),
	}

	if cfg.FreeMessageLimit < 1 {
		return nil, fmt.Errorf("FREE_MESSAGE_LIMIT must be at least 1, got %d", cfg.FreeMessageLimit)
	}
	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// PolicyFor returns the paywall policy name configured for a module,
// falling back to the global PAYWALL_POLICY.
func (c *Config) PolicyFor(module string) string {
	if p, ok := c.ModulePolicies[strings.ToLower(module)]; ok {
		return p
	}
	return c.PaywallPolicy
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getPrefixedEnv collects KEY=value pairs whose key starts with prefix,
// keyed by the lowercased remainder.
func getPrefixedEnv(prefix string) map[string]string {
	out := map[string]string{}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, prefix))
		if name != "" {
			out[name] = value
		}
	}
	return out
}
