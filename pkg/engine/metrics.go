package engine

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// Metrics exposes Prometheus collectors that report engine activity.
// A nil *Metrics records nothing.
type Metrics struct {
	fireDuration *prometheus.HistogramVec
	fires        *prometheus.CounterVec
	firesActive  prometheus.Gauge
	tickErrors   prometheus.Counter
	triggers     *prometheus.GaugeVec
}

// MustNewMetrics constructs and registers the engine collectors. A nil
// registerer means the default registry. Collectors that are already
// registered are reused, so several engines can share one registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		fireDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "studentsvc",
				Subsystem: "scheduler",
				Name:      "fire_duration_seconds",
				Help:      "Time spent in job work functions.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job_type", "status"},
		),
		fires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "studentsvc",
				Subsystem: "scheduler",
				Name:      "fires_total",
				Help:      "Trigger fires by job type and outcome.",
			},
			[]string{"job_type", "status"},
		),
		firesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "studentsvc",
				Subsystem: "scheduler",
				Name:      "fires_active",
				Help:      "Work functions currently running.",
			},
		),
		tickErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "studentsvc",
				Subsystem: "scheduler",
				Name:      "tick_errors_total",
				Help:      "Polling ticks that could not read due triggers.",
			},
		),
		triggers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "studentsvc",
				Subsystem: "scheduler",
				Name:      "triggers",
				Help:      "Stored triggers by state.",
			},
			[]string{"state"},
		),
	}

	m.fireDuration = register(reg, m.fireDuration)
	m.fires = register(reg, m.fires)
	m.firesActive = register(reg, m.firesActive)
	m.tickErrors = register(reg, m.tickErrors)
	m.triggers = register(reg, m.triggers)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) fireStarted() {
	if m == nil {
		return
	}
	m.firesActive.Inc()
}

func (m *Metrics) fireFinished(jobType string, status core.FireStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.firesActive.Dec()
	m.fires.WithLabelValues(jobType, string(status)).Inc()
	m.fireDuration.WithLabelValues(jobType, string(status)).Observe(d.Seconds())
}

func (m *Metrics) tickFailed() {
	if m == nil {
		return
	}
	m.tickErrors.Inc()
}

func (m *Metrics) setStateCounts(counts map[core.TriggerState]int64) {
	if m == nil {
		return
	}
	for _, s := range []core.TriggerState{
		core.StateNormal, core.StatePaused, core.StateBlocked, core.StateComplete, core.StateError,
	} {
		m.triggers.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
