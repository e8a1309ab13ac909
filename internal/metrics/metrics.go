// Package metrics exposes Prometheus collectors for blackboard and relay activity.
package metrics

import (
	"github.com/fangligamedev/OiiLike/pkg/blackboard"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "oiilike"
	subsystem = "blackboard"
)

// Metrics implements blackboard.Observer and relay.ErrorRecorder on top of
// Prometheus collectors.
type Metrics struct {
	tasksPublished  *prometheus.CounterVec
	tasksClaimed    *prometheus.CounterVec
	tasksCompleted  *prometheus.CounterVec
	tasksFailed     *prometheus.CounterVec
	resourceUpdates *prometheus.CounterVec
	relayErrors     *prometheus.CounterVec
	tasksPending    prometheus.Gauge
	tasksRunning    prometheus.Gauge
}

var _ blackboard.Observer = (*Metrics)(nil)

// New constructs Metrics and registers the collectors with reg.
// Collectors already registered on reg are reused, so building Metrics twice
// against the same registry (for example in tests) does not panic.
// Any other registration error panics, mirroring the promauto helpers.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		tasksPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_published_total",
			Help:      "Tasks published to the blackboard.",
		}, []string{"kind"}),
		tasksClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_claimed_total",
			Help:      "Tasks claimed by an agent.",
		}, []string{"agent"}),
		tasksCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_completed_total",
			Help:      "Tasks completed by an agent.",
		}, []string{"agent"}),
		tasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_failed_total",
			Help:      "Tasks failed by an agent.",
		}, []string{"agent"}),
		resourceUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resource_updates_total",
			Help:      "Resource writes per category.",
		}, []string{"category"}),
		relayErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "errors_total",
			Help:      "Failures while forwarding events to Redis.",
		}, []string{"stage"}),
		tasksPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_pending",
			Help:      "Tasks currently waiting to be claimed.",
		}),
		tasksRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "tasks_running",
			Help:      "Tasks currently claimed and not yet finished.",
		}),
	}

	m.tasksPublished = registerCounterVec(reg, m.tasksPublished)
	m.tasksClaimed = registerCounterVec(reg, m.tasksClaimed)
	m.tasksCompleted = registerCounterVec(reg, m.tasksCompleted)
	m.tasksFailed = registerCounterVec(reg, m.tasksFailed)
	m.resourceUpdates = registerCounterVec(reg, m.resourceUpdates)
	m.relayErrors = registerCounterVec(reg, m.relayErrors)
	m.tasksPending = registerGauge(reg, m.tasksPending)
	m.tasksRunning = registerGauge(reg, m.tasksRunning)

	return m
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(*prometheus.CounterVec)
		}
		panic(err)
	}
	return c
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) prometheus.Gauge {
	if err := reg.Register(g); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return already.ExistingCollector.(prometheus.Gauge)
		}
		panic(err)
	}
	return g
}

// TaskPublished increments the published counter for kind.
func (m *Metrics) TaskPublished(kind blackboard.TaskKind) {
	if m == nil {
		return
	}
	m.tasksPublished.WithLabelValues(string(kind)).Inc()
}

// TaskClaimed increments the claimed counter for agent.
func (m *Metrics) TaskClaimed(agent blackboard.AgentRole) {
	if m == nil {
		return
	}
	m.tasksClaimed.WithLabelValues(string(agent)).Inc()
}

// TaskCompleted increments the completed counter for agent.
func (m *Metrics) TaskCompleted(agent blackboard.AgentRole) {
	if m == nil {
		return
	}
	m.tasksCompleted.WithLabelValues(string(agent)).Inc()
}

// TaskFailed increments the failed counter for agent.
func (m *Metrics) TaskFailed(agent blackboard.AgentRole) {
	if m == nil {
		return
	}
	m.tasksFailed.WithLabelValues(string(agent)).Inc()
}

// ResourceUpdated increments the resource write counter for category.
func (m *Metrics) ResourceUpdated(category string) {
	if m == nil {
		return
	}
	m.resourceUpdates.WithLabelValues(category).Inc()
}

// QueueDepth sets the pending and running gauges.
func (m *Metrics) QueueDepth(pending, running int) {
	if m == nil {
		return
	}
	m.tasksPending.Set(float64(pending))
	m.tasksRunning.Set(float64(running))
}

// RelayError increments the relay error counter for stage.
func (m *Metrics) RelayError(stage string) {
	if m == nil {
		return
	}
	m.relayErrors.WithLabelValues(stage).Inc()
}
