// Package conf provides configuration management using Viper.
// It supports loading configuration from YAML files and environment variables,
// with CLI flag overrides.
package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// NewBootstrap creates and initializes a Bootstrap configuration.
// It loads configuration from the specified config file path, applies defaults,
// and allows overrides from environment variables prefixed with PROJECTHUB_.
//
// Configuration priority: CLI flags > Environment variables > Config file > Defaults
//
// Required environment variables:
//   - MYSQL_DSN or PROJECTHUB_DATA_DATABASE_SOURCE: MySQL connection string
//   - OPENROUTER_API_KEY or PROJECTHUB_OPENROUTER_API_KEY: AI routing API key
func NewBootstrap(configPath string) (*Bootstrap, error) {
	v := viper.New()

	setDefaults(v)

	// Enable environment variable support with PROJECTHUB_ prefix
	v.SetEnvPrefix("PROJECTHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow direct environment variable names (without PROJECTHUB_ prefix) for compatibility
	_ = v.BindEnv("data.database.source", "MYSQL_DSN", "PROJECTHUB_DATA_DATABASE_SOURCE")
	_ = v.BindEnv("data.redis.addr", "PROJECTHUB_DATA_REDIS_ADDR")
	_ = v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY", "PROJECTHUB_OPENROUTER_API_KEY")
	_ = v.BindEnv("server.http.api_key", "PROJECTHUB_SERVER_HTTP_API_KEY")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	bc := &Bootstrap{
		Server: &Server{
			Http: &ServerHTTP{
				Network: v.GetString("server.http.network"),
				Addr:    v.GetString("server.http.addr"),
				Timeout: v.GetDuration("server.http.timeout"),
				ApiKey:  v.GetString("server.http.api_key"),
			},
		},
		Data: &Data{
			Database: &Database{
				Driver: v.GetString("data.database.driver"),
				Source: v.GetString("data.database.source"),
			},
			Redis: &Redis{
				Network:      v.GetString("data.redis.network"),
				Addr:         v.GetString("data.redis.addr"),
				ReadTimeout:  v.GetDuration("data.redis.read_timeout"),
				WriteTimeout: v.GetDuration("data.redis.write_timeout"),
			},
		},
		OpenRouter: &OpenRouter{
			BaseURL:        v.GetString("openrouter.base_url"),
			ApiKey:         v.GetString("openrouter.api_key"),
			DefaultModel:   v.GetString("openrouter.default_model"),
			RequestTimeout: v.GetDuration("openrouter.request_timeout"),
			ProxyURL:       v.GetString("openrouter.proxy_url"),
		},
		Resilience: &Resilience{
			Retry: &Retry{
				MaxAttempts:       v.GetInt("resilience.retry.max_attempts"),
				BaseDelay:         v.GetDuration("resilience.retry.base_delay"),
				MaxDelay:          v.GetDuration("resilience.retry.max_delay"),
				BackoffMultiplier: v.GetFloat64("resilience.retry.backoff_multiplier"),
			},
			Breaker: &Breaker{
				FailureThreshold: v.GetInt("resilience.breaker.failure_threshold"),
				CooldownPeriod:   v.GetDuration("resilience.breaker.cooldown_period"),
			},
			Budget: &Budget{
				WarningThreshold:  v.GetFloat64("resilience.budget.warning_threshold"),
				CriticalThreshold: v.GetFloat64("resilience.budget.critical_threshold"),
			},
			RateLimit: &RateLimit{
				UserRPM: v.GetInt32("resilience.rate_limit.user_rpm"),
				UserTPM: v.GetInt32("resilience.rate_limit.user_tpm"),
			},
			EnableDegradation: v.GetBool("resilience.enable_degradation"),
			AutoFallback:      v.GetBool("resilience.auto_fallback"),
		},
		Log: &Log{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			Env:        v.GetString("log.env"),
			OutputFile: v.GetString("log.output_file"),
		},
	}

	if err := Validate(bc); err != nil {
		return nil, err
	}

	return bc, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http.network", "tcp")
	v.SetDefault("server.http.addr", ":8080")
	v.SetDefault("server.http.timeout", 2*time.Minute)

	// Data defaults
	v.SetDefault("data.database.driver", "mysql")
	// Note: data.database.source (MYSQL_DSN) is required from environment

	v.SetDefault("data.redis.network", "tcp")
	v.SetDefault("data.redis.addr", "127.0.0.1:6379")
	v.SetDefault("data.redis.read_timeout", 200*time.Millisecond)
	v.SetDefault("data.redis.write_timeout", 200*time.Millisecond)

	// OpenRouter defaults
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api")
	v.SetDefault("openrouter.default_model", "openai/gpt-4o-mini")
	v.SetDefault("openrouter.request_timeout", 30*time.Second)
	// Note: openrouter.api_key (OPENROUTER_API_KEY) is required from environment

	// Resilience defaults
	v.SetDefault("resilience.retry.max_attempts", 3)
	v.SetDefault("resilience.retry.base_delay", 1*time.Second)
	v.SetDefault("resilience.retry.max_delay", 30*time.Second)
	v.SetDefault("resilience.retry.backoff_multiplier", 2.0)
	v.SetDefault("resilience.breaker.failure_threshold", 5)
	v.SetDefault("resilience.breaker.cooldown_period", 60*time.Second)
	v.SetDefault("resilience.budget.warning_threshold", 0.8)
	v.SetDefault("resilience.budget.critical_threshold", 0.95)
	v.SetDefault("resilience.enable_degradation", true)
	v.SetDefault("resilience.auto_fallback", true)
	v.SetDefault("resilience.rate_limit.user_rpm", 20)
	v.SetDefault("resilience.rate_limit.user_tpm", 40000)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration fields are present and valid.
// It returns an error listing all missing required fields.
func Validate(bc *Bootstrap) error {
	var missingFields []string

	if bc.Data == nil || bc.Data.Database == nil || bc.Data.Database.Source == "" {
		missingFields = append(missingFields, "data.database.source (MYSQL_DSN)")
	}

	if bc.OpenRouter == nil || bc.OpenRouter.ApiKey == "" {
		missingFields = append(missingFields, "openrouter.api_key (OPENROUTER_API_KEY)")
	}

	if len(missingFields) > 0 {
		return fmt.Errorf("missing required configuration fields: %s", strings.Join(missingFields, ", "))
	}

	if bc.Resilience != nil && bc.Resilience.Budget != nil {
		b := bc.Resilience.Budget
		if b.WarningThreshold > b.CriticalThreshold {
			return fmt.Errorf("resilience.budget.warning_threshold (%v) must not exceed critical_threshold (%v)",
				b.WarningThreshold, b.CriticalThreshold)
		}
	}

	return nil
}
