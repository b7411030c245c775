package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rshade/finwatch/internal/engine/cache"
)

// Environment variables read by finwatch.
const (
	EnvHome            = "FINWATCH_HOME"
	EnvProjectDir      = "FINWATCH_PROJECT_DIR"
	EnvLogLevel        = "FINWATCH_LOG_LEVEL"
	EnvLogFormat       = "FINWATCH_LOG_FORMAT"
	EnvSource          = "FINWATCH_SOURCE"
	EnvRefreshInterval = "FINWATCH_REFRESH_INTERVAL"
	EnvCacheTTL        = "FINWATCH_CACHE_TTL"
	EnvHTTPBaseURL     = "FINWATCH_HTTP_BASE_URL"
	EnvHTTPAPIKey      = "FINWATCH_HTTP_API_KEY" //nolint:gosec // variable name, not a credential
	EnvRedisAddr       = "FINWATCH_REDIS_ADDR"
	EnvKafkaBrokers    = "FINWATCH_KAFKA_BROKERS"
	EnvWatchlist       = "FINWATCH_WATCHLIST"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(string) (string, bool)

// ApplyEnv applies FINWATCH_* overrides. Every valid override is applied;
// the first invalid one is reported.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	var firstErr error
	fail := func(name string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", name, err)
		}
	}

	set := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	set(EnvLogLevel, &c.Logging.Level)
	set(EnvLogFormat, &c.Logging.Format)
	set(EnvSource, &c.Source.Kind)
	set(EnvHTTPBaseURL, &c.Source.HTTP.BaseURL)
	set(EnvHTTPAPIKey, &c.Source.HTTP.APIKey)
	set(EnvRedisAddr, &c.Source.Redis.Addr)
	set(EnvWatchlist, &c.Watchlist.File)

	if v, ok := lookup(EnvRefreshInterval); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			fail(EnvRefreshInterval, err)
		} else {
			c.Engine.RefreshInterval = d
		}
	}
	if v, ok := lookup(EnvCacheTTL); ok && v != "" {
		ttl, err := cache.ParseTTL(v)
		if err != nil {
			fail(EnvCacheTTL, err)
		} else {
			c.Engine.CacheTTL = ttl
		}
	}
	if v, ok := lookup(EnvKafkaBrokers); ok && v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Notify.Kafka.Brokers = brokers
		c.Notify.Kafka.Enabled = len(brokers) > 0
	}

	return firstErr
}
