package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// APIChecker probes the Eventify API with an anonymous public events request.
type APIChecker struct {
	baseURL string
	client  *http.Client
}

// NewAPIChecker probes baseURL. A nil client uses a 5 second timeout.
func NewAPIChecker(baseURL string, client *http.Client) *APIChecker {
	if client == nil {
		client = &http.Client{Timeout: DefaultCheckTimeout}
	}
	return &APIChecker{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *APIChecker) Name() string { return "eventify-api" }

func (c *APIChecker) Check(ctx context.Context) *Result {
	start := time.Now()
	url := c.baseURL + "/api/events/public"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Unhealthy("invalid api url").WithDetail("error", err.Error())
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Unhealthy("api unreachable").
			WithDetail("url", url).
			WithDetail("error", err.Error()).
			WithLatency(time.Since(start))
	}
	defer resp.Body.Close()

	var res *Result
	switch {
	case resp.StatusCode < 300:
		res = Healthy("api reachable")
	case resp.StatusCode >= 500:
		res = Unhealthy(fmt.Sprintf("api answered %d", resp.StatusCode))
	default:
		res = Degraded(fmt.Sprintf("api answered %d", resp.StatusCode))
	}
	return res.WithDetail("url", url).WithDetail("status_code", resp.StatusCode).WithLatency(time.Since(start))
}

// TokenSource is the part of a session backend the session check needs.
type TokenSource interface {
	Name() string
	Load(ctx context.Context) (string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// SessionChecker verifies that the session backend answers. Backends with a
// Ping method are pinged; others must load without error.
type SessionChecker struct {
	backend TokenSource
}

func NewSessionChecker(backend TokenSource) *SessionChecker {
	return &SessionChecker{backend: backend}
}

func (c *SessionChecker) Name() string { return "session-backend" }

func (c *SessionChecker) Check(ctx context.Context) *Result {
	var err error
	if p, ok := c.backend.(pinger); ok {
		err = p.Ping(ctx)
	} else {
		_, err = c.backend.Load(ctx)
	}
	if err != nil {
		return Unhealthy(c.backend.Name()+" backend failed").WithDetail("error", err.Error())
	}
	return Healthy(c.backend.Name() + " backend ok").WithDetail("backend", c.backend.Name())
}
