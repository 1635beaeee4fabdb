// Package config loads the eventify configuration: a YAML file under
// ~/.eventify, optional .env files and EVENTIFY_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// Session backends
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

const (
	defaultAPIURL    = "http://localhost:5000"
	defaultTimeout   = 30 * time.Second
	defaultStaleTime = 30 * time.Second
	defaultGCTime    = 5 * time.Minute
	defaultProfile   = "default"
	defaultRedisURL  = "redis://localhost:6379/0"
)

// APIConfig locates the Eventify REST API.
type APIConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// SessionConfig selects where the session token is persisted.
type SessionConfig struct {
	// Backend is one of file, memory or redis.
	Backend string `yaml:"backend" json:"backend"`
	// Profile names the session, letting several accounts coexist.
	Profile string `yaml:"profile" json:"profile"`
	// Path is the session document for the file backend.
	Path string `yaml:"path" json:"path"`
	// Passphrase, when set, seals the session file at rest.
	Passphrase string `yaml:"passphrase,omitempty" json:"-"`
	// RedisURL is used by the redis backend.
	RedisURL string `yaml:"redis_url" json:"redis_url"`
}

// CacheConfig tunes the query cache.
type CacheConfig struct {
	StaleTime time.Duration `yaml:"stale_time" json:"stale_time"`
	GCTime    time.Duration `yaml:"gc_time" json:"gc_time"`
}

// LoggingConfig configures internal/log.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	// File receives logs instead of stderr when set. The TUI discards
	// logs unless a file is configured.
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// OutputConfig holds defaults for command output.
type OutputConfig struct {
	Format  string `yaml:"format" json:"format"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// Config is the top-level eventify configuration.
type Config struct {
	API     APIConfig     `yaml:"api" json:"api"`
	Session SessionConfig `yaml:"session" json:"session"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Output  OutputConfig  `yaml:"output" json:"output"`
}

// Dir returns the eventify state directory, $EVENTIFY_HOME or ~/.eventify.
func Dir() (string, error) {
	if dir := os.Getenv("EVENTIFY_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".eventify"), nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		API: APIConfig{
			URL:     defaultAPIURL,
			Timeout: defaultTimeout,
		},
		Session: SessionConfig{
			Backend:  BackendFile,
			Profile:  defaultProfile,
			RedisURL: defaultRedisURL,
		},
		Cache: CacheConfig{
			StaleTime: defaultStaleTime,
			GCTime:    defaultGCTime,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Output: OutputConfig{
			Format: "table",
		},
	}
	cfg.Normalize()
	return cfg
}

// Normalize fills in missing or zero values with defaults so that
// partially filled files still behave.
func (c *Config) Normalize() {
	if c.API.URL == "" {
		c.API.URL = defaultAPIURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = defaultTimeout
	}
	switch c.Session.Backend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		c.Session.Backend = BackendFile
	}
	if c.Session.Profile == "" {
		c.Session.Profile = defaultProfile
	}
	if c.Session.Path == "" {
		if dir, err := Dir(); err == nil {
			c.Session.Path = filepath.Join(dir, "session.json")
		}
	}
	if c.Session.RedisURL == "" {
		c.Session.RedisURL = defaultRedisURL
	}
	if c.Cache.StaleTime <= 0 {
		c.Cache.StaleTime = defaultStaleTime
	}
	if c.Cache.GCTime <= 0 {
		c.Cache.GCTime = defaultGCTime
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Output.Format == "" {
		c.Output.Format = "table"
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.NewValidationError("api.url", fmt.Sprintf("%q is not an http(s) URL", c.API.URL))
	}
	switch c.Session.Backend {
	case BackendFile, BackendMemory, BackendRedis:
	default:
		return apperrors.NewValidationError("session.backend", fmt.Sprintf("unknown backend %q", c.Session.Backend))
	}
	switch c.Output.Format {
	case "table", "text", "json", "yaml":
	default:
		return apperrors.NewValidationError("output.format", fmt.Sprintf("unknown format %q", c.Output.Format))
	}
	return nil
}

// Load loads configuration from the given YAML path. On first run the
// parent directory is created and the defaults are written with 0600
// permissions.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeFileReadFailed, "failed to read config", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperrors.NewFileUnmarshalError(path, "YAML", err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with the
// final file at 0600 and its directory at 0700.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := WriteFileAtomic(path, data); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFileWriteFailed, "failed to write config", err)
	}
	return nil
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".eventify-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored; variables already set are not overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
