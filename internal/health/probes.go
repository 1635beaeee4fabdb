package health

import (
	"context"
	"sync/atomic"
	"time"
)

// ProbeManager adds liveness and readiness state to a Manager.
type ProbeManager struct {
	*Manager

	startTime  time.Time
	ready      atomic.Bool
	inShutdown atomic.Bool
	version    string
}

func NewProbeManager(version string) *ProbeManager {
	return &ProbeManager{
		Manager:   NewManager(),
		startTime: time.Now(),
		version:   version,
	}
}

// MarkReady is called once the listener accepts connections.
func (pm *ProbeManager) MarkReady() { pm.ready.Store(true) }

// MarkShutdown makes readiness fail while connections drain.
func (pm *ProbeManager) MarkShutdown() { pm.inShutdown.Store(true) }

func (pm *ProbeManager) IsReady() bool        { return pm.ready.Load() }
func (pm *ProbeManager) IsShuttingDown() bool { return pm.inShutdown.Load() }

func (pm *ProbeManager) Uptime() time.Duration { return time.Since(pm.startTime) }

// ProbeResult is the JSON body of a probe endpoint.
type ProbeResult struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (pm *ProbeManager) result(status Status, checks map[string]*Result) *ProbeResult {
	return &ProbeResult{
		Status:    status,
		Version:   pm.version,
		Uptime:    pm.Uptime().Round(time.Second).String(),
		Checks:    checks,
		Timestamp: time.Now(),
	}
}

// CheckLiveness never runs dependency checks. It reports degraded during
// shutdown.
func (pm *ProbeManager) CheckLiveness(context.Context) *ProbeResult {
	if pm.IsShuttingDown() {
		return pm.result(StatusDegraded, nil)
	}
	return pm.result(StatusHealthy, nil)
}

// CheckReadiness fails before MarkReady and after MarkShutdown; otherwise it
// aggregates every registered check.
func (pm *ProbeManager) CheckReadiness(ctx context.Context) *ProbeResult {
	if !pm.IsReady() || pm.IsShuttingDown() {
		return pm.result(StatusUnhealthy, nil)
	}
	checks := pm.Check(ctx)
	return pm.result(OverallStatus(checks), checks)
}
