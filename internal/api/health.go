package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/walletguard/internal/security/engine"
)

// SystemStatus represents the health state of the service or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// Component is a dependency probed on every health check.
type Component struct {
	Name  string
	Check func(ctx context.Context) error
}

// ComponentHealth is the result of probing one Component.
type ComponentHealth struct {
	Status SystemStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// HealthReport contains the full health report.
type HealthReport struct {
	SystemStatus SystemStatus               `json:"system_status"`
	Components   map[string]ComponentHealth `json:"components"`
	Engine       engine.Stats               `json:"engine"`
}

// HealthMonitor aggregates engine state and component probes.
type HealthMonitor struct {
	engine     *engine.Engine
	components []Component
	ttl        time.Duration

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport *HealthReport
}

func NewHealthMonitor(eng *engine.Engine, components ...Component) *HealthMonitor {
	return &HealthMonitor{
		engine:     eng,
		components: components,
		ttl:        5 * time.Second,
	}
}

// CheckHealth probes every component. Results are cached for a few seconds.
func (m *HealthMonitor) CheckHealth(ctx context.Context) *HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.lastReport != nil && time.Since(m.lastCheck) < m.ttl {
		return m.lastReport
	}

	report := &HealthReport{
		SystemStatus: StatusHealthy,
		Components:   make(map[string]ComponentHealth, len(m.components)),
		Engine:       m.engine.Stats(),
	}
	if report.Engine.Paused {
		report.SystemStatus = StatusDegraded
	}

	for _, c := range m.components {
		cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := c.Check(cctx)
		cancel()

		if err != nil {
			report.Components[c.Name] = ComponentHealth{Status: StatusCritical, Error: err.Error()}
			report.SystemStatus = StatusCritical
			continue
		}
		report.Components[c.Name] = ComponentHealth{Status: StatusHealthy}
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

func (m *HealthMonitor) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := m.CheckHealth(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.SystemStatus == StatusCritical {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"status": string(report.SystemStatus)})
}

func (m *HealthMonitor) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := m.CheckHealth(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}
