package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (s *stubChecker) Name() string { return s.name }

func (s *stubChecker) Check(ctx context.Context) *Result {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Unhealthy("check cancelled").WithDetail("error", ctx.Err().Error())
		}
	}
	return s.result
}

func TestManager_AddReplaceRemove(t *testing.T) {
	m := NewManager()
	m.AddChecker(&stubChecker{name: "a", result: Healthy("ok")})
	m.AddChecker(&stubChecker{name: "b", result: Healthy("ok")})
	m.AddChecker(&stubChecker{name: "a", result: Degraded("slow")})

	assert.Equal(t, []string{"a", "b"}, m.CheckNames())
	assert.Equal(t, StatusDegraded, m.Check(context.Background())["a"].Status)

	assert.True(t, m.RemoveChecker("a"))
	assert.False(t, m.RemoveChecker("a"))
	assert.Equal(t, 1, m.Count())
}

func TestManager_CheckTimesOut(t *testing.T) {
	m := NewManager().WithTimeout(20 * time.Millisecond)
	m.AddChecker(&stubChecker{name: "slow", result: Healthy("ok"), delay: time.Second})
	m.AddChecker(&stubChecker{name: "fast", result: Healthy("ok")})

	start := time.Now()
	results := m.Check(context.Background())

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, StatusHealthy, results["fast"].Status)
	assert.Positive(t, results["fast"].Latency)
}

func TestManager_NilResult(t *testing.T) {
	m := NewManager()
	m.AddChecker(NewCheckFunc("nil", func(context.Context) *Result { return nil }))

	assert.Equal(t, StatusUnhealthy, m.Check(context.Background())["nil"].Status)
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]*Result
		want    Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", map[string]*Result{"a": Healthy(""), "b": Healthy("")}, StatusHealthy},
		{"one degraded", map[string]*Result{"a": Healthy(""), "b": Degraded("")}, StatusDegraded},
		{"unhealthy wins", map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OverallStatus(tt.results))
		})
	}
}

func TestProbeManager_Readiness(t *testing.T) {
	pm := NewProbeManager("1.2.3")
	pm.AddChecker(&stubChecker{name: "dep", result: Healthy("ok")})
	ctx := context.Background()

	assert.Equal(t, StatusUnhealthy, pm.CheckReadiness(ctx).Status, "not ready before MarkReady")

	pm.MarkReady()
	res := pm.CheckReadiness(ctx)
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, "1.2.3", res.Version)
	assert.Contains(t, res.Checks, "dep")

	pm.MarkShutdown()
	assert.Equal(t, StatusUnhealthy, pm.CheckReadiness(ctx).Status)
	assert.Equal(t, StatusDegraded, pm.CheckLiveness(ctx).Status)
}

func TestAPIChecker(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events/public", r.URL.Path)
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := NewAPIChecker(srv.URL+"/", nil)
	ctx := context.Background()

	res := c.Check(ctx)
	assert.Equal(t, StatusHealthy, res.Status)
	assert.Equal(t, http.StatusOK, res.Details["status_code"])

	status = http.StatusUnauthorized
	assert.Equal(t, StatusDegraded, c.Check(ctx).Status)

	status = http.StatusBadGateway
	assert.Equal(t, StatusUnhealthy, c.Check(ctx).Status)
}

func TestAPIChecker_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewAPIChecker(url, nil).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Contains(t, res.Details, "error")
}

type stubBackend struct {
	err     error
	pingErr error
	pinged  bool
}

func (b *stubBackend) Name() string { return "stub" }
func (b *stubBackend) Load(context.Context) (string, error) { return "", b.err }

type pingBackend struct{ stubBackend }

func (b *pingBackend) Ping(context.Context) error { b.pinged = true; return b.pingErr }

func TestSessionChecker(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, StatusHealthy, NewSessionChecker(&stubBackend{}).Check(ctx).Status)

	res := NewSessionChecker(&stubBackend{err: errors.New("sealed")}).Check(ctx)
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "sealed", res.Details["error"])

	pb := &pingBackend{stubBackend{err: errors.New("load not used"), pingErr: nil}}
	require.Equal(t, StatusHealthy, NewSessionChecker(pb).Check(ctx).Status)
	assert.True(t, pb.pinged)
}
