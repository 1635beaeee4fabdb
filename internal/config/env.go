package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// envBindings maps EVENTIFY_* variables to configuration keys.
var envBindings = []struct {
	env string
	key string
}{
	{"EVENTIFY_API_URL", "api.url"},
	{"EVENTIFY_API_TIMEOUT", "api.timeout"},
	{"EVENTIFY_SESSION_BACKEND", "session.backend"},
	{"EVENTIFY_SESSION_PROFILE", "session.profile"},
	{"EVENTIFY_SESSION_PATH", "session.path"},
	{"EVENTIFY_SESSION_PASSPHRASE", "session.passphrase"},
	{"EVENTIFY_REDIS_URL", "session.redis_url"},
	{"EVENTIFY_CACHE_STALE_TIME", "cache.stale_time"},
	{"EVENTIFY_CACHE_GC_TIME", "cache.gc_time"},
	{"EVENTIFY_LOG_LEVEL", "logging.level"},
	{"EVENTIFY_LOG_FORMAT", "logging.format"},
	{"EVENTIFY_LOG_FILE", "logging.file"},
	{"EVENTIFY_METRICS_ADDR", "metrics.addr"},
	{"EVENTIFY_OUTPUT_FORMAT", "output.format"},
	{"EVENTIFY_NO_COLOR", "output.no_color"},
}

// ApplyEnv overrides file values with EVENTIFY_* variables. A nil lookup
// reads the process environment.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, b := range envBindings {
		v, ok := lookup(b.env)
		if !ok || v == "" {
			continue
		}
		if err := c.Set(b.key, v); err != nil {
			return fmt.Errorf("%s: %w", b.env, err)
		}
	}
	return nil
}

// Keys lists every key accepted by Get and Set.
func Keys() []string {
	keys := make([]string, 0, len(envBindings))
	for _, b := range envBindings {
		keys = append(keys, b.key)
	}
	return keys
}

// Get returns a configuration value by dotted key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api.url":
		return c.API.URL, nil
	case "api.timeout":
		return c.API.Timeout.String(), nil
	case "session.backend":
		return c.Session.Backend, nil
	case "session.profile":
		return c.Session.Profile, nil
	case "session.path":
		return c.Session.Path, nil
	case "session.passphrase":
		if c.Session.Passphrase == "" {
			return "", nil
		}
		return "********", nil
	case "session.redis_url":
		return c.Session.RedisURL, nil
	case "cache.stale_time":
		return c.Cache.StaleTime.String(), nil
	case "cache.gc_time":
		return c.Cache.GCTime.String(), nil
	case "logging.level":
		return c.Logging.Level, nil
	case "logging.format":
		return c.Logging.Format, nil
	case "logging.file":
		return c.Logging.File, nil
	case "metrics.addr":
		return c.Metrics.Addr, nil
	case "output.format":
		return c.Output.Format, nil
	case "output.no_color":
		return strconv.FormatBool(c.Output.NoColor), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// Set assigns a configuration value by dotted key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api.url":
		c.API.URL = value
	case "api.timeout":
		return setDuration(&c.API.Timeout, value)
	case "session.backend":
		switch value {
		case BackendFile, BackendMemory, BackendRedis:
			c.Session.Backend = value
		default:
			return fmt.Errorf("unknown session backend %q (file, memory, redis)", value)
		}
	case "session.profile":
		c.Session.Profile = value
	case "session.path":
		c.Session.Path = value
	case "session.passphrase":
		c.Session.Passphrase = value
	case "session.redis_url":
		c.Session.RedisURL = value
	case "cache.stale_time":
		return setDuration(&c.Cache.StaleTime, value)
	case "cache.gc_time":
		return setDuration(&c.Cache.GCTime, value)
	case "logging.level":
		c.Logging.Level = value
	case "logging.format":
		c.Logging.Format = value
	case "logging.file":
		c.Logging.File = value
	case "metrics.addr":
		c.Metrics.Addr = value
	case "output.format":
		c.Output.Format = value
	case "output.no_color":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", value)
		}
		c.Output.NoColor = b
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setDuration(dst *time.Duration, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d <= 0 {
		return fmt.Errorf("duration %q must be positive", value)
	}
	*dst = d
	return nil
}
