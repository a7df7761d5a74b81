// Package metrics exposes agent counters to prometheus and serves the local
// status endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/slotpaste/agent/internal/health"
	"github.com/slotpaste/agent/internal/modes"
)

const namespace = "slotpaste"

// Collector implements the recorder interfaces of the mode machine, the
// chooser transport and the capture gate. All methods are safe to call from
// any goroutine and never block.
type Collector struct {
	reg *prometheus.Registry

	armed       *prometheus.CounterVec
	resolved    *prometheus.CounterVec
	stale       *prometheus.CounterVec
	messages    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	intercepted *prometheus.CounterVec
	rejected    prometheus.Counter
	health      *prometheus.GaugeVec
}

// New registers the agent metrics on a private registry, plus the Go runtime
// and process collectors.
func New() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		armed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chooser_armed_total",
			Help:      "Chooser flows started, by flow.",
		}, []string{"flow"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chooser_resolved_total",
			Help:      "Chooser flows finished, by flow and outcome.",
		}, []string{"flow", "outcome"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_total",
			Help:      "Replies and timeouts ignored because their token was not current.",
		}, []string{"event"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chooser_messages_total",
			Help:      "Datagrams exchanged with the chooser surface.",
		}, []string{"direction", "type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chooser_dropped_total",
			Help:      "Inbound datagrams rejected, by reason.",
		}, []string{"reason"}),
		intercepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyboard_events_total",
			Help:      "Keyboard events seen by the capture gate, by action.",
		}, []string{"action"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_rejected_total",
			Help:      "Chooser sends dropped because the send queue was full.",
		}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "component_health",
			Help:      "Component health: 0 healthy, 1 degraded, 2 unhealthy, 3 unknown.",
		}, []string{"component"}),
	}

	c.reg.MustRegister(
		c.armed, c.resolved, c.stale,
		c.messages, c.dropped, c.intercepted,
		c.rejected, c.health,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry is the registry served on /metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.reg
}

func (c *Collector) Armed(flow modes.Flow) {
	c.armed.WithLabelValues(string(flow)).Inc()
}

func (c *Collector) Resolved(flow modes.Flow, outcome string) {
	c.resolved.WithLabelValues(string(flow), outcome).Inc()
}

func (c *Collector) Stale(ev modes.EventType) {
	c.stale.WithLabelValues(ev.String()).Inc()
}

func (c *Collector) Sent(msgType string) {
	c.messages.WithLabelValues("sent", msgType).Inc()
}

func (c *Collector) SendFailed(msgType string) {
	c.messages.WithLabelValues("send_failed", msgType).Inc()
}

func (c *Collector) Received(msgType string) {
	c.messages.WithLabelValues("received", msgType).Inc()
}

func (c *Collector) Dropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

func (c *Collector) Intercepted(action string) {
	c.intercepted.WithLabelValues(action).Inc()
}

// SendRejected is the worker pool reject hook.
func (c *Collector) SendRejected() {
	c.rejected.Inc()
}

// ObserveHealth tracks a health transition. Register it with
// health.Monitor.OnChange.
func (c *Collector) ObserveHealth(check health.Check) {
	c.health.WithLabelValues(check.Name).Set(healthValue(check.Status))
}

func healthValue(s health.Status) float64 {
	switch s {
	case health.Healthy:
		return 0
	case health.Degraded:
		return 1
	case health.Unhealthy:
		return 2
	default:
		return 3
	}
}
