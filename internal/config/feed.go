package config

import (
	"os"

	"github.com/spf13/viper"

	"github.com/Veraticus/attendance-engine/internal/feed"
	"github.com/Veraticus/attendance-engine/internal/service"
)

// LoadFeedConfig loads the terminal feed configuration.
// It follows this precedence:
// 1. Viper configuration (from config file or ATTEND_ env vars)
// 2. Direct environment variables (PUNCH_FEED_*)
// 3. Default values
func LoadFeedConfig(v *viper.Viper) feed.Config {
	cfg := feed.Config{
		BaseURL:           v.GetString("feed.url"),
		Token:             v.GetString("feed.token"),
		Name:              v.GetString("feed.name"),
		Timeout:           v.GetDuration("feed.timeout"),
		RequestsPerMinute: v.GetInt("feed.requests_per_minute"),
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("PUNCH_FEED_URL")
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("PUNCH_FEED_TOKEN")
	}
	return cfg
}

// LoadRetryOptions reads "feed.retry" over the default backoff.
func LoadRetryOptions(v *viper.Viper) service.RetryOptions {
	opts := service.DefaultRetryOptions()
	if key := "feed.retry.max_attempts"; v.IsSet(key) {
		opts.MaxAttempts = v.GetInt(key)
	}
	if key := "feed.retry.initial_delay"; v.IsSet(key) {
		opts.InitialDelay = v.GetDuration(key)
	}
	if key := "feed.retry.max_delay"; v.IsSet(key) {
		opts.MaxDelay = v.GetDuration(key)
	}
	if key := "feed.retry.multiplier"; v.IsSet(key) {
		opts.Multiplier = v.GetFloat64(key)
	}
	if key := "feed.retry.max_rate_limit_waits"; v.IsSet(key) {
		opts.MaxRateLimitWaits = v.GetInt(key)
	}
	return opts
}
