package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

/* Config is a helper package. It could be an external lib */

type Config struct {
	Port string `mapstructure:"PORT"`

	// StorageDriver selects the backing store: "redis" or "postgres"
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	PostgresDSN string `mapstructure:"POSTGRES_DSN"`

	// BackendURL is the internal order ingestion endpoint
	BackendURL string `mapstructure:"BACKEND_URL"`

	// ProvidersFile holds per-provider secrets, rate limits and allow-lists
	ProvidersFile string `mapstructure:"PROVIDERS_FILE"`

	// FastAck acknowledges queued deliveries with 200 instead of 503
	FastAck bool `mapstructure:"FAST_ACK"`

	// CompletedTTLHours expires completed audit records; 0 keeps them forever
	CompletedTTLHours int `mapstructure:"COMPLETED_TTL_HOURS"`

	// Rate limiting fallback for providers without an explicit limit
	RateLimitDefault int `mapstructure:"RATE_LIMIT_DEFAULT"`
	RateWindowSecs   int `mapstructure:"RATE_WINDOW_SECS"`

	// Circuit breaker tuning
	BreakerErrorThresholdPct int `mapstructure:"BREAKER_ERROR_THRESHOLD_PCT"`
	BreakerMinSamples        int `mapstructure:"BREAKER_MIN_SAMPLES"`
	BreakerWindowSize        int `mapstructure:"BREAKER_WINDOW_SIZE"`
	BreakerResetTimeoutSecs  int `mapstructure:"BREAKER_RESET_TIMEOUT_SECS"`
	BreakerCallTimeoutSecs   int `mapstructure:"BREAKER_CALL_TIMEOUT_SECS"`

	// Retry processor tuning
	RetryIntervalSecs       int `mapstructure:"RETRY_INTERVAL_SECS"`
	RetryBatchSize          int `mapstructure:"RETRY_BATCH_SIZE"`
	RetryWorkers            int `mapstructure:"RETRY_WORKERS"`
	RetryMaxAttempts        int `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryInitialBackoffSecs int `mapstructure:"RETRY_INITIAL_BACKOFF_SECS"`
	RetryMaxBackoffSecs     int `mapstructure:"RETRY_MAX_BACKOFF_SECS"`
}

func GetConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("STORAGE_DRIVER", "redis")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("POSTGRES_DSN", "")
	viper.SetDefault("PROVIDERS_FILE", "providers.yaml")
	viper.SetDefault("FAST_ACK", false)
	viper.SetDefault("COMPLETED_TTL_HOURS", 0)
	viper.SetDefault("RATE_LIMIT_DEFAULT", 100)
	viper.SetDefault("RATE_WINDOW_SECS", 60)
	viper.SetDefault("BREAKER_ERROR_THRESHOLD_PCT", 50)
	viper.SetDefault("BREAKER_MIN_SAMPLES", 5)
	viper.SetDefault("BREAKER_WINDOW_SIZE", 20)
	viper.SetDefault("BREAKER_RESET_TIMEOUT_SECS", 30)
	viper.SetDefault("BREAKER_CALL_TIMEOUT_SECS", 10)
	viper.SetDefault("RETRY_INTERVAL_SECS", 5)
	viper.SetDefault("RETRY_BATCH_SIZE", 50)
	viper.SetDefault("RETRY_WORKERS", 4)
	viper.SetDefault("RETRY_MAX_ATTEMPTS", 10)
	viper.SetDefault("RETRY_INITIAL_BACKOFF_SECS", 1)
	viper.SetDefault("RETRY_MAX_BACKOFF_SECS", 86400)

	if err := viper.ReadInConfig(); err != nil {
		// Environment-only configuration is fine; a broken file is not
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "redis", "postgres":
	default:
		return fmt.Errorf("invalid STORAGE_DRIVER %q: must be redis or postgres", c.StorageDriver)
	}
	if c.StorageDriver == "postgres" && c.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required when STORAGE_DRIVER is postgres")
	}
	if c.BackendURL == "" {
		return errors.New("BACKEND_URL is required")
	}
	return nil
}
