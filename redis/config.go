package redis

import (
	"fmt"
	"time"
)

// Config is the conf block of a cache entry. Durations are strings such
// as "5s" so the entries file stays plain JSON.
type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	// MaxRetries is the number of command retries; go-redis backs off
	// between MinRetryBackoff and MaxRetryBackoff.
	MaxRetries      int    `mapstructure:"max_retries"`
	MinRetryBackoff string `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff string `mapstructure:"max_retry_backoff"`

	DialTimeout     string `mapstructure:"dial_timeout"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	PoolTimeout     string `mapstructure:"pool_timeout"`
	ConnMaxIdleTime string `mapstructure:"idle_timeout"`
	// ConnMaxLifetime of "" or "0" reuses connections forever.
	ConnMaxLifetime string `mapstructure:"max_conn_age"`

	// TTL is the expiry applied by Store.Set. "0" keeps keys forever.
	TTL string `mapstructure:"ttl"`
}

// DefaultTTL is four days.
const DefaultTTL = 96 * time.Hour

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MinRetryBackoff == "" {
		c.MinRetryBackoff = "8ms"
	}
	if c.MaxRetryBackoff == "" {
		c.MaxRetryBackoff = "512ms"
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
	if c.TTL == "" {
		c.TTL = DefaultTTL.String()
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be > 0")
	}
	for key, v := range map[string]string{
		"dial_timeout":  c.DialTimeout,
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
	}
	if d, err := time.ParseDuration(c.TTL); err != nil || d < 0 {
		return fmt.Errorf("invalid ttl %q", c.TTL)
	}
	return nil
}

// StoreTTL returns the parsed TTL, or DefaultTTL when unset or invalid.
func (c *Config) StoreTTL() time.Duration {
	if c.TTL == "" {
		return DefaultTTL
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d < 0 {
		return DefaultTTL
	}
	return d
}
