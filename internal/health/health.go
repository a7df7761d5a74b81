// Package health tracks the agent's component health for the status
// endpoint and the doctor report.
package health

import (
	"sync"
	"time"

	"github.com/slotpaste/agent/internal/logging"
)

var log = logging.L("health")

// Status represents the health status of a component.
type Status string

const (
	Healthy   Status = "healthy"
	Degraded  Status = "degraded"
	Unhealthy Status = "unhealthy"
	Unknown   Status = "unknown"
)

// Components reported by the agent.
const (
	Capture  = "capture"
	Listener = "listener"
	Store    = "store"
	Chooser  = "chooser"
)

func (s Status) IsValid() bool {
	switch s {
	case Healthy, Degraded, Unhealthy, Unknown:
		return true
	}
	return false
}

// Check stores the latest health result for a named component.
type Check struct {
	Name      string    `json:"name"`
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Monitor tracks health checks for multiple components.
type Monitor struct {
	mu       sync.RWMutex
	checks   map[string]Check
	onChange func(Check)

	notifyMu sync.Mutex
	notified map[string]Status
}

func NewMonitor() *Monitor {
	return &Monitor{
		checks:   make(map[string]Check),
		notified: make(map[string]Status),
	}
}

// OnChange registers fn to run after status transitions. fn runs outside the
// monitor lock, one call at a time, and always sees the component's current
// check, so the last call for a component matches Get. fn must not call
// Update.
func (m *Monitor) OnChange(fn func(Check)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Update records the health status for a named component. Invalid statuses
// are recorded as Unhealthy.
func (m *Monitor) Update(name string, status Status, message string) {
	if !status.IsValid() {
		status = Unhealthy
	}

	m.mu.Lock()
	prev, had := m.checks[name]
	c := Check{
		Name:      name,
		Status:    status,
		Message:   message,
		UpdatedAt: time.Now(),
	}
	m.checks[name] = c
	m.mu.Unlock()

	if had && prev.Status == status {
		return
	}
	if status != Healthy {
		log.Warn("health check degraded", "component", name, "status", string(status), "message", message)
	} else if had {
		log.Info("health check recovered", "component", name)
	}
	m.notify(name)
}

// notify hands the hook the latest check for name unless the hook has
// already seen that status.
func (m *Monitor) notify(name string) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.RLock()
	fn := m.onChange
	cur := m.checks[name]
	m.mu.RUnlock()

	if fn == nil {
		return
	}
	if last, ok := m.notified[name]; ok && last == cur.Status {
		return
	}
	m.notified[name] = cur.Status
	fn(cur)
}

// Get returns the health check for a named component.
func (m *Monitor) Get(name string) (Check, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.checks[name]
	return c, ok
}

// Overall returns the worst status across all registered checks, or
// Unknown if nothing has reported yet.
func (m *Monitor) Overall() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.overallLocked()
}

func (m *Monitor) overallLocked() Status {
	if len(m.checks) == 0 {
		return Unknown
	}
	worst := Healthy
	for _, c := range m.checks {
		if worse(c.Status, worst) {
			worst = c.Status
		}
	}
	return worst
}

// All returns a snapshot of all current health checks.
func (m *Monitor) All() []Check {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Check, 0, len(m.checks))
	for _, c := range m.checks {
		result = append(result, c)
	}
	return result
}

// Summary returns a JSON-friendly map for the status endpoint. Overall and
// components come from the same snapshot.
func (m *Monitor) Summary() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make(map[string]string, len(m.checks))
	for _, c := range m.checks {
		components[c.Name] = string(c.Status)
	}

	return map[string]any{
		"status":     string(m.overallLocked()),
		"components": components,
	}
}

// worse returns true if a is worse than b.
func worse(a, b Status) bool {
	return statusRank(a) > statusRank(b)
}

func statusRank(s Status) int {
	switch s {
	case Healthy:
		return 0
	case Degraded:
		return 1
	case Unhealthy:
		return 2
	case Unknown:
		return 3
	default:
		return 2
	}
}
