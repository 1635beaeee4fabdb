package session

import (
	"fmt"

	"github.com/felixgeelhaar/eventify/internal/config"
)

// NewBackend builds the backend selected by cfg.Backend.
func NewBackend(cfg config.SessionConfig) (Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryBackend(), nil
	case config.BackendRedis:
		return DialRedis(cfg.RedisURL, cfg.Profile)
	case config.BackendFile, "":
		if cfg.Path == "" {
			return nil, fmt.Errorf("session.path is empty")
		}
		return NewFileBackend(cfg.Path, cfg.Profile, cfg.Passphrase), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
