package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riskibarqy/korfbal-live/internal/platform/livehub"
	"github.com/riskibarqy/korfbal-live/internal/platform/resilience"
)

// Metrics implements the hub, command, derivation and circuit observers on a
// dedicated Prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	hubPublished   *prometheus.CounterVec
	hubSubscribers *prometheus.GaugeVec
	hubDropped     *prometheus.CounterVec
	commands       *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	derivations    *prometheus.CounterVec
	derivationTime *prometheus.HistogramVec
	circuitChanges *prometheus.CounterVec
	circuitOpen    *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		hubPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "korfbal_hub_published_total",
			Help: "Messages published on the live hub",
		}, []string{"role", "kind"}),
		hubSubscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "korfbal_hub_subscribers",
			Help: "Currently attached live subscribers",
		}, []string{"role"}),
		hubDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "korfbal_hub_dropped_subscribers_total",
			Help: "Subscribers dropped because their queue was full",
		}, []string{"role"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "korfbal_tracker_commands_total",
			Help: "Tracker commands by outcome",
		}, []string{"command", "outcome"}),
		commandLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "korfbal_tracker_command_duration_seconds",
			Help:    "Tracker command latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		derivations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "korfbal_derivation_tasks_total",
			Help: "Derivation task runs by outcome",
		}, []string{"task", "outcome"}),
		derivationTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "korfbal_derivation_task_duration_seconds",
			Help:    "Derivation task latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"task"}),
		circuitChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "korfbal_circuit_transitions_total",
			Help: "Circuit breaker state transitions by target state",
		}, []string{"breaker", "to"}),
		circuitOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "korfbal_circuit_open",
			Help: "1 while the breaker rejects calls",
		}, []string{"breaker"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Published(role livehub.Role, kind livehub.Kind) {
	m.hubPublished.WithLabelValues(string(role), string(kind)).Inc()
}

func (m *Metrics) SubscriberAdded(role livehub.Role) {
	m.hubSubscribers.WithLabelValues(string(role)).Inc()
}

func (m *Metrics) SubscriberRemoved(role livehub.Role, dropped bool) {
	m.hubSubscribers.WithLabelValues(string(role)).Dec()
	if dropped {
		m.hubDropped.WithLabelValues(string(role)).Inc()
	}
}

func (m *Metrics) ObserveCommand(command, outcome string, elapsed time.Duration) {
	m.commands.WithLabelValues(command, outcome).Inc()
	m.commandLatency.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveDerivation(task, outcome string, elapsed time.Duration) {
	m.derivations.WithLabelValues(task, outcome).Inc()
	m.derivationTime.WithLabelValues(task).Observe(elapsed.Seconds())
}

// CircuitStateChanged matches resilience.StateObserver.
func (m *Metrics) CircuitStateChanged(name string, _, to resilience.CircuitState) {
	m.circuitChanges.WithLabelValues(name, string(to)).Inc()
	open := 0.0
	if to == resilience.CircuitStateOpen {
		open = 1
	}
	m.circuitOpen.WithLabelValues(name).Set(open)
}
