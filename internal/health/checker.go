// Package health reports whether the collaborators of a running eventify
// process are usable: the Eventify API and the session backend.
//
//	probes := health.NewProbeManager(version.Version)
//	probes.AddChecker(health.NewAPIChecker(cfg.API.URL, nil))
//	probes.AddChecker(health.NewSessionChecker(backend))
//
// The probes are served by internal/server next to /metrics.
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency.
type Checker interface {
	// Name is lowercase with hyphens, e.g. "eventify-api".
	Name() string

	// Check must respect the context deadline.
	Check(ctx context.Context) *Result
}

// Status of a check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) String() string {
	return string(s)
}

// Result of a single check.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency time.Duration  `json:"latency"`
}

// NewResult creates a result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]any),
	}
}

// WithDetail adds a detail and returns r for chaining.
func (r *Result) WithDetail(key string, value any) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns r for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}

// CheckFunc adapts a function to a Checker.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) *Result
}

// NewCheckFunc names fn as a Checker.
func NewCheckFunc(name string, fn func(ctx context.Context) *Result) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) *Result { return c.fn(ctx) }
