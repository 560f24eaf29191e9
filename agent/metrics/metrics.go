package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	resiliencex "github.com/tanpawarit/Chative-Voice-Qualification/agent/resilience"
)

const namespace = "voiceq"

// Metrics groups the collectors exported by the agent.
type Metrics struct {
	BreakerState       *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	CapabilityCalls    *prometheus.CounterVec
	CapabilityAttempts *prometheus.HistogramVec
	Turns              *prometheus.CounterVec
	TurnLatency        prometheus.Histogram
	PolicyViolations   *prometheus.CounterVec
	TelemetryDropped   *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker status per dependency (0 closed, 1 open, 2 half-open)",
			},
			[]string{"dependency"},
		),
		BreakerTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "breaker_transitions_total",
				Help:      "Circuit breaker status changes",
			},
			[]string{"dependency", "from", "to"},
		),
		CapabilityCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capability_calls_total",
				Help:      "Capability invocations by outcome",
			},
			[]string{"capability", "outcome"},
		),
		CapabilityAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capability_attempts",
				Help:      "Attempts made per capability invocation",
				Buckets:   []float64{0, 1, 2, 3, 4, 6},
			},
			[]string{"capability"},
		),
		Turns: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "turns_total",
				Help:      "Processed caller turns by resulting phase and tier",
			},
			[]string{"phase", "tier"},
		),
		TurnLatency: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "turn_duration_seconds",
				Help:      "Wall-clock time to process one caller turn",
				Buckets:   []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 4, 8},
			},
		),
		PolicyViolations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Rejected phase transitions",
			},
			[]string{"from", "to"},
		),
		TelemetryDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_dropped_total",
				Help:      "Telemetry records discarded because the buffer was full",
			},
			[]string{"kind"},
		),
	}
}

func statusValue(s resiliencex.Status) float64 {
	switch s {
	case resiliencex.StatusOpen:
		return 1
	case resiliencex.StatusHalfOpen:
		return 2
	default:
		return 0
	}
}

// TrackBreakers seeds the state gauge for every registered dependency.
func (m *Metrics) TrackBreakers(reg *resiliencex.Registry) {
	for _, name := range reg.Names() {
		if b, ok := reg.Get(name); ok {
			m.BreakerState.WithLabelValues(name).Set(statusValue(b.Status()))
		}
	}
}

// ObserveTransition is suitable as a breaker state listener.
func (m *Metrics) ObserveTransition(tr resiliencex.Transition) {
	m.BreakerState.WithLabelValues(tr.Dependency).Set(statusValue(tr.To))
	m.BreakerTransitions.WithLabelValues(tr.Dependency, tr.From.String(), tr.To.String()).Inc()
}

func (m *Metrics) ObserveCapability(capability, outcome string, attempts int) {
	m.CapabilityCalls.WithLabelValues(capability, outcome).Inc()
	m.CapabilityAttempts.WithLabelValues(capability).Observe(float64(attempts))
}

func (m *Metrics) ObserveTurn(phase, tier string, elapsed time.Duration) {
	m.Turns.WithLabelValues(phase, tier).Inc()
	m.TurnLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObservePolicyViolation(from, to string) {
	m.PolicyViolations.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveTelemetryDrop(kind string) {
	m.TelemetryDropped.WithLabelValues(kind).Inc()
}
